package classfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/classforge/backend"
)

// accStatic is the only access flag the writer itself needs to interpret
// (for the implicit receiver slot in max-locals accounting).
const accStatic = 0x0008

// ---------------------------------------------------------------------------
// classWriter
// ---------------------------------------------------------------------------

// classWriter implements backend.ClassWriter. It accumulates header, field
// and method data against a shared constant pool and serializes everything
// in ToByteArray. A classWriter is single-use and not safe for concurrent
// use; both restrictions come with the builder contract.
type classWriter struct {
	flags int
	pool  *constPool

	visited   bool
	version   int
	access    int
	thisIdx   uint16
	superIdx  uint16
	ifaceIdxs []uint16
	sigIdx    uint16 // 0 when the class has no generic signature

	fields  []*fieldWriter
	methods []*methodWriter
}

func newClassWriter(flags int) *classWriter {
	return &classWriter{
		flags: flags,
		pool:  newConstPool(),
	}
}

func (w *classWriter) Visit(version, access int, name, signature, superName string, interfaces []string) error {
	if w.visited {
		return errors.New("classfile: class header already visited")
	}
	if name == "" {
		return errors.New("classfile: empty class name")
	}
	if strings.ContainsAny(name, ".;[") {
		return fmt.Errorf("classfile: malformed class name %q (binary names use slashes)", name)
	}
	if superName == "" {
		return errors.New("classfile: empty super class name")
	}

	w.visited = true
	w.version = version
	w.access = access
	w.thisIdx = w.pool.Class(name)
	w.superIdx = w.pool.Class(superName)
	for _, iface := range interfaces {
		w.ifaceIdxs = append(w.ifaceIdxs, w.pool.Class(iface))
	}
	if signature != "" {
		w.sigIdx = w.pool.Utf8(signature)
	}
	return nil
}

func (w *classWriter) VisitField(access int, name, descriptor, signature string, value any) (backend.FieldWriter, error) {
	if !w.visited {
		return nil, errors.New("classfile: field visited before class header")
	}
	if name == "" || descriptor == "" {
		return nil, errors.New("classfile: field needs a name and a descriptor")
	}

	f := &fieldWriter{
		access:  access,
		nameIdx: w.pool.Utf8(name),
		descIdx: w.pool.Utf8(descriptor),
	}
	if signature != "" {
		f.sigIdx = w.pool.Utf8(signature)
	}
	if value != nil {
		idx, err := w.constantValueIndex(descriptor, value)
		if err != nil {
			return nil, err
		}
		f.constIdx = idx
	}
	w.fields = append(w.fields, f)
	return f, nil
}

// constantValueIndex picks the pool entry kind for a ConstantValue attribute
// from the field descriptor, not from the Go type of the value.
func (w *classWriter) constantValueIndex(descriptor string, value any) (uint16, error) {
	switch descriptor {
	case "Z", "B", "S", "C", "I":
		switch v := value.(type) {
		case int:
			return w.pool.Int(int32(v)), nil
		case int32:
			return w.pool.Int(v), nil
		case bool:
			if v {
				return w.pool.Int(1), nil
			}
			return w.pool.Int(0), nil
		}
	case "J":
		switch v := value.(type) {
		case int:
			return w.pool.Long(int64(v)), nil
		case int64:
			return w.pool.Long(v), nil
		}
	case "F":
		if v, ok := value.(float32); ok {
			return w.pool.Float(v), nil
		}
	case "D":
		if v, ok := value.(float64); ok {
			return w.pool.Double(v), nil
		}
	case "Ljava/lang/String;":
		if v, ok := value.(string); ok {
			return w.pool.String(v), nil
		}
	}
	return 0, fmt.Errorf("classfile: constant value %T does not fit field descriptor %q", value, descriptor)
}

func (w *classWriter) VisitMethod(access int, name, descriptor, signature string, exceptions []string) (backend.MethodWriter, error) {
	if !w.visited {
		return nil, errors.New("classfile: method visited before class header")
	}
	if name == "" {
		return nil, errors.New("classfile: empty method name")
	}
	argSlots, err := argSlotCount(descriptor)
	if err != nil {
		return nil, err
	}
	if access&accStatic == 0 {
		argSlots++ // receiver
	}

	m := &methodWriter{
		owner:     w,
		access:    access,
		nameIdx:   w.pool.Utf8(name),
		descIdx:   w.pool.Utf8(descriptor),
		argSlots:  argSlots,
		maxLocals: argSlots,
	}
	if signature != "" {
		m.sigIdx = w.pool.Utf8(signature)
	}
	for _, exc := range exceptions {
		m.excIdxs = append(m.excIdxs, w.pool.Class(exc))
	}
	w.methods = append(w.methods, m)
	return m, nil
}

func (w *classWriter) ToByteArray() ([]byte, error) {
	if !w.visited {
		return nil, errors.New("classfile: class header never visited")
	}
	for _, m := range w.methods {
		if !m.ended {
			return nil, fmt.Errorf("classfile: method body %d still open at serialization", m.descIdx)
		}
	}

	// Attribute names must be interned before the pool is serialized.
	codeAttr := w.pool.Utf8("Code")
	var sigAttr, constAttr, excAttr uint16
	if w.sigIdx != 0 {
		sigAttr = w.pool.Utf8("Signature")
	}
	for _, f := range w.fields {
		if f.sigIdx != 0 {
			sigAttr = w.pool.Utf8("Signature")
		}
		if f.constIdx != 0 {
			constAttr = w.pool.Utf8("ConstantValue")
		}
	}
	for _, m := range w.methods {
		if m.sigIdx != 0 {
			sigAttr = w.pool.Utf8("Signature")
		}
		if len(m.excIdxs) > 0 {
			excAttr = w.pool.Utf8("Exceptions")
		}
	}

	out := &stream{}
	out.u32(0xCAFEBABE)
	out.u16(uint16(w.version >> 16))    // minor
	out.u16(uint16(w.version & 0xFFFF)) // major
	w.pool.WriteTo(out)

	out.u16(uint16(w.access))
	out.u16(w.thisIdx)
	out.u16(w.superIdx)

	out.u16(uint16(len(w.ifaceIdxs)))
	for _, idx := range w.ifaceIdxs {
		out.u16(idx)
	}

	out.u16(uint16(len(w.fields)))
	for _, f := range w.fields {
		f.writeTo(out, sigAttr, constAttr)
	}

	out.u16(uint16(len(w.methods)))
	for _, m := range w.methods {
		m.writeTo(out, codeAttr, sigAttr, excAttr)
	}

	// Class attributes: only Signature, when present.
	if w.sigIdx != 0 {
		out.u16(1)
		out.u16(sigAttr)
		out.u32(2)
		out.u16(w.sigIdx)
	} else {
		out.u16(0)
	}
	return out.bytes(), nil
}

// ---------------------------------------------------------------------------
// fieldWriter
// ---------------------------------------------------------------------------

type fieldWriter struct {
	access   int
	nameIdx  uint16
	descIdx  uint16
	sigIdx   uint16
	constIdx uint16
	ended    bool
}

func (f *fieldWriter) VisitEnd() error {
	f.ended = true
	return nil
}

func (f *fieldWriter) writeTo(out *stream, sigAttr, constAttr uint16) {
	out.u16(uint16(f.access))
	out.u16(f.nameIdx)
	out.u16(f.descIdx)

	count := uint16(0)
	if f.sigIdx != 0 {
		count++
	}
	if f.constIdx != 0 {
		count++
	}
	out.u16(count)
	if f.constIdx != 0 {
		out.u16(constAttr)
		out.u32(2)
		out.u16(f.constIdx)
	}
	if f.sigIdx != 0 {
		out.u16(sigAttr)
		out.u32(2)
		out.u16(f.sigIdx)
	}
}

// ---------------------------------------------------------------------------
// Descriptor slot accounting
// ---------------------------------------------------------------------------

// argSlotCount returns the number of local-variable slots the parameters of
// a method descriptor occupy (long and double take two).
func argSlotCount(descriptor string) (int, error) {
	if len(descriptor) < 3 || descriptor[0] != '(' {
		return 0, fmt.Errorf("classfile: malformed method descriptor %q", descriptor)
	}
	slots := 0
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		switch descriptor[i] {
		case 'J', 'D':
			slots += 2
			i++
		case 'B', 'C', 'F', 'I', 'S', 'Z':
			slots++
			i++
		case '[':
			slots++
			for i < len(descriptor) && descriptor[i] == '[' {
				i++
			}
			if i < len(descriptor) && descriptor[i] == 'L' {
				end := strings.IndexByte(descriptor[i:], ';')
				if end < 0 {
					return 0, fmt.Errorf("classfile: malformed method descriptor %q", descriptor)
				}
				i += end + 1
			} else {
				i++
			}
		case 'L':
			end := strings.IndexByte(descriptor[i:], ';')
			if end < 0 {
				return 0, fmt.Errorf("classfile: malformed method descriptor %q", descriptor)
			}
			slots++
			i += end + 1
		default:
			return 0, fmt.Errorf("classfile: malformed method descriptor %q", descriptor)
		}
	}
	if i >= len(descriptor) || descriptor[i] != ')' {
		return 0, fmt.Errorf("classfile: malformed method descriptor %q", descriptor)
	}
	return slots, nil
}

// returnWidth returns the stack width of a method descriptor's return type:
// 0 for void, 2 for long and double, 1 otherwise.
func returnWidth(descriptor string) int {
	i := strings.IndexByte(descriptor, ')')
	if i < 0 || i+1 >= len(descriptor) {
		return 0
	}
	switch descriptor[i+1] {
	case 'V':
		return 0
	case 'J', 'D':
		return 2
	}
	return 1
}

// typeWidth returns the stack width of a field descriptor.
func typeWidth(descriptor string) int {
	if descriptor == "J" || descriptor == "D" {
		return 2
	}
	return 1
}
