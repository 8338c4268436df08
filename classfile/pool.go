package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Big-endian byte stream
// ---------------------------------------------------------------------------

// stream is a growable big-endian byte writer. The class-file format is
// big-endian throughout.
type stream struct {
	buf bytes.Buffer
}

func (s *stream) u8(v uint8)   { s.buf.WriteByte(v) }
func (s *stream) u16(v uint16) { s.raw(binary.BigEndian.AppendUint16(nil, v)) }
func (s *stream) u32(v uint32) { s.raw(binary.BigEndian.AppendUint32(nil, v)) }
func (s *stream) u64(v uint64) { s.raw(binary.BigEndian.AppendUint64(nil, v)) }

func (s *stream) raw(b []byte) { s.buf.Write(b) }

func (s *stream) len() int      { return s.buf.Len() }
func (s *stream) bytes() []byte { return s.buf.Bytes() }

// ---------------------------------------------------------------------------
// Constant pool
// ---------------------------------------------------------------------------

// Constant pool entry tags.
const (
	tagUtf8            = 1
	tagInteger         = 3
	tagFloat           = 4
	tagLong            = 5
	tagDouble          = 6
	tagClass           = 7
	tagString          = 8
	tagFieldref        = 9
	tagMethodref       = 10
	tagInterfaceMethod = 11
	tagNameAndType     = 12
)

type poolKey struct {
	tag byte
	str string
	num uint64
	ref uint32 // two u16 indices packed for ref-style entries
}

// constPool is a deduplicating class-file constant pool. Entries are
// serialized as they are added; equal entries share one index. Long and
// double entries occupy two index slots, as the format requires.
type constPool struct {
	data   stream
	lookup map[poolKey]uint16
	next   uint16 // index of the next entry added (pool indices are 1-based)
}

func newConstPool() *constPool {
	return &constPool{
		lookup: make(map[poolKey]uint16),
		next:   1,
	}
}

// Count returns the value for the constant_pool_count field: one greater
// than the highest used index.
func (p *constPool) Count() uint16 { return p.next }

// WriteTo appends the pool count and every entry to the output stream.
func (p *constPool) WriteTo(out *stream) {
	out.u16(p.Count())
	out.raw(p.data.bytes())
}

func (p *constPool) add(key poolKey, wide bool, write func(*stream)) uint16 {
	if idx, ok := p.lookup[key]; ok {
		return idx
	}
	idx := p.next
	write(&p.data)
	p.lookup[key] = idx
	if wide {
		p.next += 2
	} else {
		p.next++
	}
	return idx
}

// Utf8 interns a CONSTANT_Utf8 entry.
func (p *constPool) Utf8(s string) uint16 {
	return p.add(poolKey{tag: tagUtf8, str: s}, false, func(out *stream) {
		out.u8(tagUtf8)
		out.u16(uint16(len(s)))
		out.raw([]byte(s))
	})
}

// Class interns a CONSTANT_Class entry for a binary name with slashes.
func (p *constPool) Class(name string) uint16 {
	nameIdx := p.Utf8(name)
	return p.add(poolKey{tag: tagClass, str: name}, false, func(out *stream) {
		out.u8(tagClass)
		out.u16(nameIdx)
	})
}

// String interns a CONSTANT_String entry.
func (p *constPool) String(s string) uint16 {
	strIdx := p.Utf8(s)
	return p.add(poolKey{tag: tagString, str: s}, false, func(out *stream) {
		out.u8(tagString)
		out.u16(strIdx)
	})
}

// Int interns a CONSTANT_Integer entry.
func (p *constPool) Int(v int32) uint16 {
	return p.add(poolKey{tag: tagInteger, num: uint64(uint32(v))}, false, func(out *stream) {
		out.u8(tagInteger)
		out.u32(uint32(v))
	})
}

// Float interns a CONSTANT_Float entry.
func (p *constPool) Float(v float32) uint16 {
	bits := math.Float32bits(v)
	return p.add(poolKey{tag: tagFloat, num: uint64(bits)}, false, func(out *stream) {
		out.u8(tagFloat)
		out.u32(bits)
	})
}

// Long interns a CONSTANT_Long entry. Takes two index slots.
func (p *constPool) Long(v int64) uint16 {
	return p.add(poolKey{tag: tagLong, num: uint64(v)}, true, func(out *stream) {
		out.u8(tagLong)
		out.u64(uint64(v))
	})
}

// Double interns a CONSTANT_Double entry. Takes two index slots.
func (p *constPool) Double(v float64) uint16 {
	bits := math.Float64bits(v)
	return p.add(poolKey{tag: tagDouble, num: bits}, true, func(out *stream) {
		out.u8(tagDouble)
		out.u64(bits)
	})
}

// NameAndType interns a CONSTANT_NameAndType entry.
func (p *constPool) NameAndType(name, descriptor string) uint16 {
	nameIdx := p.Utf8(name)
	descIdx := p.Utf8(descriptor)
	return p.add(poolKey{tag: tagNameAndType, ref: pack(nameIdx, descIdx)}, false, func(out *stream) {
		out.u8(tagNameAndType)
		out.u16(nameIdx)
		out.u16(descIdx)
	})
}

// Fieldref interns a CONSTANT_Fieldref entry.
func (p *constPool) Fieldref(owner, name, descriptor string) uint16 {
	return p.memberRef(tagFieldref, owner, name, descriptor)
}

// Methodref interns a CONSTANT_Methodref or CONSTANT_InterfaceMethodref
// entry depending on whether the owner is an interface.
func (p *constPool) Methodref(owner, name, descriptor string, isInterface bool) uint16 {
	tag := byte(tagMethodref)
	if isInterface {
		tag = tagInterfaceMethod
	}
	return p.memberRef(tag, owner, name, descriptor)
}

func (p *constPool) memberRef(tag byte, owner, name, descriptor string) uint16 {
	classIdx := p.Class(owner)
	natIdx := p.NameAndType(name, descriptor)
	return p.add(poolKey{tag: tag, ref: pack(classIdx, natIdx)}, false, func(out *stream) {
		out.u8(tag)
		out.u16(classIdx)
		out.u16(natIdx)
	})
}

// Constant interns an arbitrary loadable constant for LDC-style use.
// Returns the pool index and whether the constant is a two-slot (long or
// double) value.
func (p *constPool) Constant(value any) (uint16, bool, error) {
	switch v := value.(type) {
	case string:
		return p.String(v), false, nil
	case int:
		return p.Int(int32(v)), false, nil
	case int32:
		return p.Int(v), false, nil
	case int64:
		return p.Long(v), true, nil
	case float32:
		return p.Float(v), false, nil
	case float64:
		return p.Double(v), true, nil
	default:
		return 0, false, fmt.Errorf("classfile: unsupported constant type %T", value)
	}
}

func pack(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}
