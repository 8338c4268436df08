// Package classfile is the built-in class-assembly backend: a class-file
// writer with a deduplicating constant pool and automatic max-stack/
// max-locals accounting. It registers itself with the backend registry under
// the name "classfile" so the locator can always fall back to it when no
// external backend is supplied.
package classfile

import (
	"github.com/chazu/classforge/backend"
)

// Name is the registry name of the built-in backend.
const Name = "classfile"

type provider struct{}

func (provider) Name() string { return Name }

// Constants returns a copy of the fixed symbol table. Callers own the copy;
// the table itself is never mutated after package init.
func (provider) Constants() map[string]int {
	out := make(map[string]int, len(constants))
	for name, value := range constants {
		out[name] = value
	}
	return out
}

func (provider) NewClassWriter(flags int) (backend.ClassWriter, error) {
	return newClassWriter(flags), nil
}

func init() {
	backend.Register(provider{})
}
