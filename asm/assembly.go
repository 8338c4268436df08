package asm

import (
	"github.com/chazu/classforge/backend"
)

// ClassConst marks an Ldc value as a class literal rather than a string.
type ClassConst = backend.ClassConst

// Assembly builds one class. It is single-use: created by New, populated by
// the visit methods, consumed by ToByteArray, then discarded. Reusing it for
// a second class is not supported. An Assembly and the MethodAssembly values
// it hands out are not safe for concurrent use.
type Assembly struct {
	writer backend.ClassWriter
	name   string
}

// New opens a class assembly with the given access flags, binary name,
// optional generic signature, superclass name, and optional interfaces.
// Names use slashes. The backend is configured to compute stack and local
// frame sizes itself.
func New(access int, name, signature, superName string, interfaces ...string) (*Assembly, error) {
	p, err := Backend()
	if err != nil {
		return nil, err
	}
	w, err := p.NewClassWriter(backend.ComputeMaxs)
	if err != nil {
		return nil, &BackendError{Op: "new class writer", Err: err}
	}
	if err := w.Visit(Opcode("V1_8"), access, name, signature, superName, interfaces); err != nil {
		return nil, &BackendError{Op: "visit class " + name, Err: err}
	}
	return &Assembly{writer: w, name: name}, nil
}

// Name returns the binary name the assembly was opened with.
func (a *Assembly) Name() string { return a.name }

// VisitField declares one field and immediately closes it. value, when
// non-nil, becomes the field's constant initial value.
func (a *Assembly) VisitField(access int, name, descriptor, signature string, value any) error {
	fw, err := a.writer.VisitField(access, name, descriptor, signature, value)
	if err != nil {
		return &BackendError{Op: "visit field " + name, Err: err}
	}
	if err := fw.VisitEnd(); err != nil {
		return &BackendError{Op: "close field " + name, Err: err}
	}
	return nil
}

// VisitMethod opens one method body and returns the emitter bound to it.
// The caller must close the body with VisitMaxs and VisitEnd before calling
// ToByteArray.
func (a *Assembly) VisitMethod(access int, name, descriptor, signature string, exceptions ...string) (*MethodAssembly, error) {
	mw, err := a.writer.VisitMethod(access, name, descriptor, signature, exceptions)
	if err != nil {
		return nil, &BackendError{Op: "visit method " + name, Err: err}
	}
	if err := mw.VisitCode(); err != nil {
		return nil, &BackendError{Op: "open method body " + name, Err: err}
	}
	return &MethodAssembly{writer: mw, name: name}, nil
}

// ToByteArray finalizes the class and returns its serialized bytes.
func (a *Assembly) ToByteArray() ([]byte, error) {
	code, err := a.writer.ToByteArray()
	if err != nil {
		return nil, &BackendError{Op: "serialize class " + a.name, Err: err}
	}
	return code, nil
}

// MethodAssembly emits the instruction stream of one method body, in call
// order. A failed emission leaves the body in a partial state; the caller
// must abandon the whole class assembly.
type MethodAssembly struct {
	writer backend.MethodWriter
	name   string
}

func (m *MethodAssembly) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op + " in " + m.name, Err: err}
}

// VisitInsn emits a no-operand instruction.
func (m *MethodAssembly) VisitInsn(opcode int) error {
	return m.wrap("emit instruction", m.writer.VisitInsn(opcode))
}

// VisitIntInsn emits an instruction with a small integer operand.
func (m *MethodAssembly) VisitIntInsn(opcode, operand int) error {
	return m.wrap("emit int instruction", m.writer.VisitIntInsn(opcode, operand))
}

// VisitVarInsn emits a local-variable instruction.
func (m *MethodAssembly) VisitVarInsn(opcode, slot int) error {
	return m.wrap("emit var instruction", m.writer.VisitVarInsn(opcode, slot))
}

// VisitTypeInsn emits an instruction with a type-name operand.
func (m *MethodAssembly) VisitTypeInsn(opcode int, name string) error {
	return m.wrap("emit type instruction", m.writer.VisitTypeInsn(opcode, name))
}

// VisitFieldInsn emits a field-access instruction.
func (m *MethodAssembly) VisitFieldInsn(opcode int, owner, name, descriptor string) error {
	return m.wrap("emit field instruction", m.writer.VisitFieldInsn(opcode, owner, name, descriptor))
}

// VisitMethodInsn emits a method-call instruction.
func (m *MethodAssembly) VisitMethodInsn(opcode int, owner, name, descriptor string, isInterface bool) error {
	return m.wrap("emit call instruction", m.writer.VisitMethodInsn(opcode, owner, name, descriptor, isInterface))
}

// VisitLdcInsn emits a constant load. Accepted values are strings, integer
// and floating-point numbers, and ClassConst literals.
func (m *MethodAssembly) VisitLdcInsn(value any) error {
	return m.wrap("emit constant load", m.writer.VisitLdcInsn(value))
}

// VisitIincInsn emits an increment-in-place of a local variable.
func (m *MethodAssembly) VisitIincInsn(slot, delta int) error {
	return m.wrap("emit increment", m.writer.VisitIincInsn(slot, delta))
}

// VisitMultiANewArrayInsn emits a multi-dimensional array construction.
func (m *MethodAssembly) VisitMultiANewArrayInsn(descriptor string, dims int) error {
	return m.wrap("emit array construction", m.writer.VisitMultiANewArrayInsn(descriptor, dims))
}

// VisitMaxs finalizes the body's frame sizes. The given values are advisory
// when the backend computes frame sizes itself.
func (m *MethodAssembly) VisitMaxs(maxStack, maxLocals int) error {
	return m.wrap("finalize frames", m.writer.VisitMaxs(maxStack, maxLocals))
}

// VisitEnd closes the method body.
func (m *MethodAssembly) VisitEnd() error {
	return m.wrap("close method body", m.writer.VisitEnd())
}
