package asm

import "fmt"

// LookupError reports a symbolic name that could not be resolved: an opcode
// name missing from the backend's symbol table, or a backend role with no
// registered provider. Opcode lookups treat it as a caller bug and panic with
// it rather than returning it.
type LookupError struct {
	Kind string // "opcode" or "backend"
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("asm: no %s named %q", e.Kind, e.Name)
}

// BackendError wraps a failure reported by the resolved backend while
// assembling a class. The build that produced it is unusable and must be
// restarted from scratch.
type BackendError struct {
	Op  string // the assembly operation that failed
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("asm: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
