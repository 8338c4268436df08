// Package backend defines the roles a class-assembly backend must fill and a
// process-wide registry used to pick between implementations.
//
// A backend is anything that can write JVM class files through the visitor
// API below. The built-in implementation lives in the classfile package; an
// externally supplied one can register itself under its own name and be
// preferred by the locator.
package backend

// Writer flags passed to NewClassWriter.
const (
	// ComputeMaxs asks the writer to compute the max stack depth and max
	// local slot count of each method body itself. When set, the values
	// passed to VisitMaxs are ignored.
	ComputeMaxs = 2
)

// ClassConst is a class-literal constant for MethodWriter.VisitLdcInsn.
// The value is the class's binary name with slashes (e.g. "java/lang/String").
type ClassConst string

// Provider is one registered backend implementation.
type Provider interface {
	// Name is the registry key the provider was registered under.
	Name() string

	// Constants returns the backend's full symbol table: instruction
	// opcodes, access flags, array-type codes and class-file version tags,
	// keyed by their fixed symbolic names.
	Constants() map[string]int

	// NewClassWriter allocates a fresh single-use class writer.
	NewClassWriter(flags int) (ClassWriter, error)
}

// ClassWriter assembles one class. It is single-use: after ToByteArray the
// writer must not be visited again.
type ClassWriter interface {
	// Visit records the class header. Must be called exactly once, before
	// any field or method visit.
	Visit(version, access int, name, signature, superName string, interfaces []string) error

	// VisitField emits one field declaration.
	VisitField(access int, name, descriptor, signature string, value any) (FieldWriter, error)

	// VisitMethod opens one method body.
	VisitMethod(access int, name, descriptor, signature string, exceptions []string) (MethodWriter, error)

	// ToByteArray finalizes and serializes the class.
	ToByteArray() ([]byte, error)
}

// FieldWriter finishes one field declaration.
type FieldWriter interface {
	VisitEnd() error
}

// MethodWriter emits one method body, one call per instruction, in emission
// order. VisitMaxs followed by VisitEnd closes the body.
type MethodWriter interface {
	VisitCode() error
	VisitInsn(opcode int) error
	VisitIntInsn(opcode, operand int) error
	VisitVarInsn(opcode, slot int) error
	VisitTypeInsn(opcode int, typeName string) error
	VisitFieldInsn(opcode int, owner, name, descriptor string) error
	VisitMethodInsn(opcode int, owner, name, descriptor string, isInterface bool) error
	VisitLdcInsn(value any) error
	VisitIincInsn(slot, delta int) error
	VisitMultiANewArrayInsn(descriptor string, dims int) error
	VisitMaxs(maxStack, maxLocals int) error
	VisitEnd() error
}
