package loader

import (
	"fmt"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Process-wide class registry
// ---------------------------------------------------------------------------

// The registry holds every strongly installed class by name. Transient
// installs never enter it: their only identity is the returned handle, which
// becomes collectible as soon as the caller drops it.
var registry = struct {
	sync.RWMutex
	classes map[string]*Class
}{classes: make(map[string]*Class)}

// Lookup finds a strongly installed class by binary name. Returns nil when
// no class with that name has been installed.
func Lookup(name string) *Class {
	registry.RLock()
	defer registry.RUnlock()
	return registry.classes[name]
}

// RegisteredNames returns the names of all strongly installed classes,
// sorted.
func RegisteredNames() []string {
	registry.RLock()
	defer registry.RUnlock()

	names := make([]string, 0, len(registry.classes))
	for name := range registry.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func register(c *Class) error {
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.classes[c.name]; ok {
		return fmt.Errorf("loader: class %s is already installed", c.name)
	}
	registry.classes[c.name] = c
	return nil
}

// ---------------------------------------------------------------------------
// Built-in root class
// ---------------------------------------------------------------------------

// RootClass is the built-in java/lang/Object stand-in every installed class
// ultimately extends. Its constructor is a no-op.
var RootClass = newRootClass()

func newRootClass() *Class {
	c := &Class{
		name:    "java/lang/Object",
		methods: make(map[string]*Method),
	}
	c.methods["<init>()V"] = &Method{
		class:      c,
		name:       "<init>",
		descriptor: "()V",
		builtin: func(*Instance, []any) (any, error) {
			return nil, nil
		},
	}
	return c
}

func init() {
	if err := register(RootClass); err != nil {
		panic(err)
	}
}
