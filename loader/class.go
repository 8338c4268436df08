package loader

import (
	"fmt"
	"strings"
	"sync"

	parser "github.com/wreulicke/classfile-parser"
)

// ---------------------------------------------------------------------------
// Class: one installed binary unit
// ---------------------------------------------------------------------------

// Class is a loaded, instantiable class. Instances are created with
// NewInstance, which runs the class's own constructor bytecode.
type Class struct {
	name   string
	access int
	super  *Class

	fields  []FieldDecl
	methods map[string]*Method // keyed by name + descriptor

	cp *parser.ConstantPool // pool of the defining class bytes, nil for built-ins

	host     *Class // classloading context the unit was installed against
	nestHost *Class // non-nil only for nest members
	hidden   bool   // transient install

	nestMu sync.Mutex
	nest   []*Class // nest members recorded on the host
}

// FieldDecl describes one declared (non-inherited) field.
type FieldDecl struct {
	Name       string
	Descriptor string
	Access     int
}

// Method is one executable method of a loaded class.
type Method struct {
	class      *Class
	name       string
	descriptor string
	access     int

	maxStack  int
	maxLocals int
	code      []byte

	builtin func(recv *Instance, args []any) (any, error)
}

// Name returns the class's binary name with slashes. Transient installs
// carry a synthetic suffix (name/0x...), mirroring their anonymous identity.
func (c *Class) Name() string { return c.name }

// Super returns the superclass, nil only for the built-in root.
func (c *Class) Super() *Class { return c.super }

// IsHidden reports whether the class was installed transiently and has no
// durable registry identity.
func (c *Class) IsHidden() bool { return c.hidden }

// NestHost returns the host whose nest this class joined, or nil.
func (c *Class) NestHost() *Class { return c.nestHost }

// NestMembers returns the classes installed into this class's nest.
func (c *Class) NestMembers() []*Class {
	c.nestMu.Lock()
	defer c.nestMu.Unlock()
	out := make([]*Class, len(c.nest))
	copy(out, c.nest)
	return out
}

func (c *Class) addNestMember(member *Class) {
	c.nestMu.Lock()
	defer c.nestMu.Unlock()
	c.nest = append(c.nest, member)
}

// Fields returns the declared fields in declaration order.
func (c *Class) Fields() []FieldDecl {
	out := make([]FieldDecl, len(c.fields))
	copy(out, c.fields)
	return out
}

// HasMethod reports whether the class itself declares a method with the
// given name and descriptor.
func (c *Class) HasMethod(name, descriptor string) bool {
	_, ok := c.methods[name+descriptor]
	return ok
}

// Methods returns the name+descriptor keys of the declared methods.
func (c *Class) Methods() []string {
	out := make([]string, 0, len(c.methods))
	for key := range c.methods {
		out = append(out, key)
	}
	return out
}

func (c *Class) String() string { return c.name }

// findByArity finds a method by name and parameter count, walking up the
// superclass chain. Returns nil if no class in the chain declares one.
func (c *Class) findByArity(name string, argc int) *Method {
	for cur := c; cur != nil; cur = cur.super {
		for _, m := range cur.methods {
			if m.name == name && paramCount(m.descriptor) == argc {
				return m
			}
		}
	}
	return nil
}

// findByDescriptor finds a method by exact name and descriptor, walking up
// the superclass chain.
func (c *Class) findByDescriptor(name, descriptor string) *Method {
	for cur := c; cur != nil; cur = cur.super {
		if m, ok := cur.methods[name+descriptor]; ok {
			return m
		}
	}
	return nil
}

// NewInstance allocates an instance and runs the matching constructor.
func (c *Class) NewInstance(args ...any) (*Instance, error) {
	ctor := c.findByArity("<init>", len(args))
	if ctor == nil {
		return nil, fmt.Errorf("loader: %s has no %d-argument constructor", c.name, len(args))
	}
	inst := &Instance{class: c, fields: make(map[string]any)}
	for cur := c; cur != nil; cur = cur.super {
		for _, f := range cur.fields {
			inst.fields[f.Name] = zeroValue(f.Descriptor)
		}
	}
	if _, err := ctor.invoke(inst, args); err != nil {
		return nil, err
	}
	return inst, nil
}

func (m *Method) isBuiltin() bool { return m.builtin != nil }

// ---------------------------------------------------------------------------
// Instance
// ---------------------------------------------------------------------------

// Instance is one object of a loaded class. Field slots are held by name;
// declaration order is preserved on the Class.
type Instance struct {
	class  *Class
	fields map[string]any
}

// Class returns the instance's class.
func (i *Instance) Class() *Class { return i.class }

// Invoke runs the named method, resolved by name and argument count along
// the superclass chain.
func (i *Instance) Invoke(name string, args ...any) (any, error) {
	m := i.class.findByArity(name, len(args))
	if m == nil {
		return nil, fmt.Errorf("loader: %s has no method %s/%d", i.class.name, name, len(args))
	}
	return m.invoke(i, args)
}

// InvokeExact runs the method with the exact descriptor.
func (i *Instance) InvokeExact(name, descriptor string, args ...any) (any, error) {
	m := i.class.findByDescriptor(name, descriptor)
	if m == nil {
		return nil, fmt.Errorf("loader: %s has no method %s%s", i.class.name, name, descriptor)
	}
	return m.invoke(i, args)
}

// Field returns the value of an instance field by name.
func (i *Instance) Field(name string) (any, bool) {
	v, ok := i.fields[name]
	return v, ok
}

// ---------------------------------------------------------------------------
// Descriptor helpers
// ---------------------------------------------------------------------------

// paramCount returns the number of parameters in a method descriptor, or -1
// when the descriptor is malformed.
func paramCount(descriptor string) int {
	if len(descriptor) < 3 || descriptor[0] != '(' {
		return -1
	}
	count := 0
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		for i < len(descriptor) && descriptor[i] == '[' {
			i++
		}
		if i >= len(descriptor) {
			return -1
		}
		if descriptor[i] == 'L' {
			end := strings.IndexByte(descriptor[i:], ';')
			if end < 0 {
				return -1
			}
			i += end + 1
		} else {
			i++
		}
		count++
	}
	return count
}

// zeroValue returns the default value for a field descriptor.
func zeroValue(descriptor string) any {
	switch descriptor {
	case "Z", "B", "S", "C", "I":
		return int32(0)
	case "J":
		return int64(0)
	case "F":
		return float32(0)
	case "D":
		return float64(0)
	default:
		return nil
	}
}

// wide reports whether a value occupies two local slots.
func wide(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}
