package asm

import "strings"

// ---------------------------------------------------------------------------
// Types and descriptors
// ---------------------------------------------------------------------------

// Kind classifies a Type.
type Kind int

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindShort
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindArray
)

// Type is one assembly-time type: a primitive, a named reference type, or an
// array of another Type.
type Type struct {
	kind Kind
	name string // dotted or slashed binary name, object types only
	elem *Type  // array element, array types only
}

// The primitive types.
var (
	Void    = Type{kind: KindVoid}
	Boolean = Type{kind: KindBoolean}
	Byte    = Type{kind: KindByte}
	Short   = Type{kind: KindShort}
	Char    = Type{kind: KindChar}
	Int     = Type{kind: KindInt}
	Long    = Type{kind: KindLong}
	Float   = Type{kind: KindFloat}
	Double  = Type{kind: KindDouble}
)

// Object returns the reference type with the given name. Dots and slashes
// are both accepted as package separators.
func Object(name string) Type {
	return Type{kind: KindObject, name: name}
}

// Array returns the array type with the given element type.
func Array(elem Type) Type {
	e := elem
	return Type{kind: KindArray, elem: &e}
}

// Kind returns the type's classification.
func (t Type) Kind() Kind { return t.kind }

// Elem returns an array type's element type.
func (t Type) Elem() Type {
	if t.elem == nil {
		return Void
	}
	return *t.elem
}

// Slash converts a dotted name to the binary form with slashes.
func Slash(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// Desc encodes a type as its descriptor. The encoding is pure and
// deterministic: primitives are single fixed letters, arrays prefix one '['
// per dimension, reference types are "L<binary-name>;".
func Desc(t Type) string {
	switch t.kind {
	case KindVoid:
		return "V"
	case KindBoolean:
		return "Z"
	case KindByte:
		return "B"
	case KindShort:
		return "S"
	case KindChar:
		return "C"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindArray:
		return "[" + Desc(t.Elem())
	default:
		return "L" + Slash(t.name) + ";"
	}
}

// DescOf encodes a named reference type directly.
func DescOf(name string) string {
	return "L" + Slash(name) + ";"
}

// MethodDesc encodes a method signature: "(" + parameter descriptors + ")" +
// return descriptor.
func MethodDesc(params []Type, ret Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(Desc(p))
	}
	b.WriteByte(')')
	b.WriteString(Desc(ret))
	return b.String()
}

// ---------------------------------------------------------------------------
// Category opcode selection
// ---------------------------------------------------------------------------

// LoadOpcode returns the local-variable load opcode for a type. The integer
// category covers boolean, byte, char, short, and int; long, float, and
// double each have their own; reference and array types use the object
// category. Void has no load opcode and panics with a *LookupError.
func LoadOpcode(t Type) int {
	switch t.kind {
	case KindBoolean, KindByte, KindShort, KindChar, KindInt:
		return Opcode("ILOAD")
	case KindLong:
		return Opcode("LLOAD")
	case KindFloat:
		return Opcode("FLOAD")
	case KindDouble:
		return Opcode("DLOAD")
	case KindVoid:
		panic(&LookupError{Kind: "opcode", Name: "load of void"})
	default:
		return Opcode("ALOAD")
	}
}

// ReturnOpcode returns the return opcode for a type. Grouping matches
// LoadOpcode, except void has its own dedicated return opcode.
func ReturnOpcode(t Type) int {
	switch t.kind {
	case KindBoolean, KindByte, KindShort, KindChar, KindInt:
		return Opcode("IRETURN")
	case KindLong:
		return Opcode("LRETURN")
	case KindFloat:
		return Opcode("FRETURN")
	case KindDouble:
		return Opcode("DRETURN")
	case KindVoid:
		return Opcode("RETURN")
	default:
		return Opcode("ARETURN")
	}
}
