// Package asm is the class-assembly façade: opcode-name resolution, type
// descriptor encoding, a builder for class metadata, fields, and method
// bodies, and installation of the finished bytes into the running process.
//
// The package resolves its code-generation backend once, on first use. An
// externally registered backend is preferred; the built-in class-file writer
// is the fallback and is always present.
package asm

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/classforge/backend"
	_ "github.com/chazu/classforge/classfile"
)

var log = commonlog.GetLogger("forge.asm")

// ExternalName is the registry name an externally supplied backend registers
// under to take precedence over the built-in one.
const ExternalName = "external"

var (
	initOnce sync.Once
	initErr  error

	// resolveMu guards preference and provider until resolution; readers
	// that have passed initOnce see provider through the Once barrier.
	resolveMu  sync.Mutex
	preference = []string{ExternalName, "classfile"}

	provider backend.Provider
	opcodes  map[string]int
)

// SetPreference overrides the backend resolution order. It must be called
// before the package's first opcode lookup or assembly; afterwards the
// backend is locked in for the life of the process.
func SetPreference(names ...string) error {
	resolveMu.Lock()
	defer resolveMu.Unlock()
	if provider != nil {
		return fmt.Errorf("asm: backend already resolved to %q", provider.Name())
	}
	if len(names) == 0 {
		return fmt.Errorf("asm: empty backend preference")
	}
	preference = names
	return nil
}

func initBackend() {
	resolveMu.Lock()
	defer resolveMu.Unlock()
	p, err := backend.Locate(preference...)
	if err != nil {
		initErr = err
		return
	}
	provider = p
	opcodes = p.Constants()
	log.Infof("resolved assembly backend %q (%d symbols)", p.Name(), len(opcodes))
}

// Backend returns the resolved backend provider, resolving it on first call.
func Backend() (backend.Provider, error) {
	initOnce.Do(initBackend)
	if initErr != nil {
		return nil, initErr
	}
	return provider, nil
}

// Opcode resolves a symbolic instruction, access-flag, or version name to its
// numeric value. A missing name is a caller bug and panics with a
// *LookupError; use LookupOpcode for a checked variant.
func Opcode(name string) int {
	initOnce.Do(initBackend)
	if initErr != nil {
		panic(initErr)
	}
	value, ok := opcodes[name]
	if !ok {
		panic(&LookupError{Kind: "opcode", Name: name})
	}
	return value
}

// LookupOpcode resolves a symbolic name, reporting absence instead of
// panicking.
func LookupOpcode(name string) (int, bool) {
	initOnce.Do(initBackend)
	if initErr != nil {
		return 0, false
	}
	value, ok := opcodes[name]
	return value, ok
}
