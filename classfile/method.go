package classfile

import (
	"errors"
	"fmt"

	"github.com/chazu/classforge/backend"
)

// ---------------------------------------------------------------------------
// methodWriter
// ---------------------------------------------------------------------------

// methodWriter implements backend.MethodWriter. Instructions are appended in
// visit order; there is no buffering or reordering. Because the visitor API
// exposes no branch instructions, a body is a single straight-line block and
// the ComputeMaxs stack accounting below is exact.
type methodWriter struct {
	owner   *classWriter
	access  int
	nameIdx uint16
	descIdx uint16
	sigIdx  uint16
	excIdxs []uint16

	code  stream
	ended bool

	argSlots  int
	maxLocals int
	curStack  int
	maxStack  int
}

func (m *methodWriter) open() error {
	if m.ended {
		return errors.New("classfile: method body already closed")
	}
	return nil
}

func (m *methodWriter) push(n int) {
	m.curStack += n
	if m.curStack > m.maxStack {
		m.maxStack = m.curStack
	}
	if m.curStack < 0 {
		m.curStack = 0
	}
}

func (m *methodWriter) useSlot(slot, width int) {
	if slot+width > m.maxLocals {
		m.maxLocals = slot + width
	}
}

func (m *methodWriter) VisitCode() error {
	return m.open()
}

func (m *methodWriter) VisitInsn(opcode int) error {
	if err := m.open(); err != nil {
		return err
	}
	if shapeOf(opcode) != shapeNone {
		return fmt.Errorf("classfile: opcode %d takes operands, emitted without any", opcode)
	}
	m.code.u8(uint8(opcode))
	m.push(plainDelta(opcode))
	if opcode >= opIRETURN && opcode <= opRETURN || opcode == 191 { // returns, athrow
		m.curStack = 0
	}
	return nil
}

func (m *methodWriter) VisitIntInsn(opcode, operand int) error {
	if err := m.open(); err != nil {
		return err
	}
	switch opcode {
	case opBIPUSH:
		if operand < -128 || operand > 127 {
			return fmt.Errorf("classfile: bipush operand %d out of range", operand)
		}
		m.code.u8(opBIPUSH)
		m.code.u8(uint8(int8(operand)))
		m.push(1)
	case opSIPUSH:
		if operand < -32768 || operand > 32767 {
			return fmt.Errorf("classfile: sipush operand %d out of range", operand)
		}
		m.code.u8(opSIPUSH)
		m.code.u16(uint16(int16(operand)))
		m.push(1)
	case opNEWARRAY:
		if operand < 4 || operand > 11 {
			return fmt.Errorf("classfile: newarray type code %d out of range", operand)
		}
		m.code.u8(opNEWARRAY)
		m.code.u8(uint8(operand))
	default:
		return fmt.Errorf("classfile: opcode %d is not an integer-operand instruction", opcode)
	}
	return nil
}

func (m *methodWriter) VisitVarInsn(opcode, slot int) error {
	if err := m.open(); err != nil {
		return err
	}
	if shapeOf(opcode) != shapeVar || opcode == 169 { // ret is unsupported output
		return fmt.Errorf("classfile: opcode %d is not a local-variable instruction", opcode)
	}
	if slot < 0 || slot > 0xFFFF {
		return fmt.Errorf("classfile: local slot %d out of range", slot)
	}

	width := 1
	delta := 1
	switch opcode {
	case 22, 24: // lload, dload
		width, delta = 2, 2
	case 55, 57: // lstore, dstore
		width, delta = 2, -2
	case 54, 56, 58: // istore, fstore, astore
		delta = -1
	}

	switch {
	case slot <= 3 && opcode >= opILOAD && opcode <= opALOAD:
		m.code.u8(uint8(26 + (opcode-opILOAD)*4 + slot))
	case slot <= 3 && opcode >= opISTORE && opcode <= opASTORE:
		m.code.u8(uint8(59 + (opcode-opISTORE)*4 + slot))
	case slot <= 0xFF:
		m.code.u8(uint8(opcode))
		m.code.u8(uint8(slot))
	default:
		m.code.u8(196) // wide
		m.code.u8(uint8(opcode))
		m.code.u16(uint16(slot))
	}
	m.useSlot(slot, width)
	m.push(delta)
	return nil
}

func (m *methodWriter) VisitTypeInsn(opcode int, typeName string) error {
	if err := m.open(); err != nil {
		return err
	}
	if shapeOf(opcode) != shapeType {
		return fmt.Errorf("classfile: opcode %d is not a type instruction", opcode)
	}
	if typeName == "" {
		return errors.New("classfile: empty type name")
	}
	m.code.u8(uint8(opcode))
	m.code.u16(m.owner.pool.Class(typeName))
	if opcode == opNEW {
		m.push(1)
	}
	return nil
}

func (m *methodWriter) VisitFieldInsn(opcode int, owner, name, descriptor string) error {
	if err := m.open(); err != nil {
		return err
	}
	if shapeOf(opcode) != shapeField {
		return fmt.Errorf("classfile: opcode %d is not a field instruction", opcode)
	}
	if owner == "" || name == "" || descriptor == "" {
		return errors.New("classfile: field instruction needs owner, name and descriptor")
	}
	m.code.u8(uint8(opcode))
	m.code.u16(m.owner.pool.Fieldref(owner, name, descriptor))

	width := typeWidth(descriptor)
	switch opcode {
	case opGETSTATIC:
		m.push(width)
	case opPUTSTATIC:
		m.push(-width)
	case opGETFIELD:
		m.push(width - 1)
	case opPUTFIELD:
		m.push(-width - 1)
	}
	return nil
}

func (m *methodWriter) VisitMethodInsn(opcode int, owner, name, descriptor string, isInterface bool) error {
	if err := m.open(); err != nil {
		return err
	}
	if shapeOf(opcode) != shapeMethod || opcode == 186 { // invokedynamic needs bootstrap data
		return fmt.Errorf("classfile: opcode %d is not a plain method instruction", opcode)
	}
	argSlots, err := argSlotCount(descriptor)
	if err != nil {
		return err
	}

	m.code.u8(uint8(opcode))
	m.code.u16(m.owner.pool.Methodref(owner, name, descriptor, isInterface))
	if opcode == opINVOKEIFACE {
		m.code.u8(uint8(argSlots + 1)) // count includes the receiver
		m.code.u8(0)
	}

	delta := returnWidth(descriptor) - argSlots
	if opcode != opINVOKESTATIC {
		delta-- // receiver
	}
	m.push(delta)
	return nil
}

func (m *methodWriter) VisitLdcInsn(value any) error {
	if err := m.open(); err != nil {
		return err
	}

	var (
		idx  uint16
		wide bool
		err  error
	)
	if cc, ok := value.(backend.ClassConst); ok {
		idx = m.owner.pool.Class(string(cc))
	} else {
		idx, wide, err = m.owner.pool.Constant(value)
		if err != nil {
			return err
		}
	}

	switch {
	case wide:
		m.code.u8(opLDC2w)
		m.code.u16(idx)
		m.push(2)
	case idx > 0xFF:
		m.code.u8(opLDCw)
		m.code.u16(idx)
		m.push(1)
	default:
		m.code.u8(opLDC)
		m.code.u8(uint8(idx))
		m.push(1)
	}
	return nil
}

func (m *methodWriter) VisitIincInsn(slot, delta int) error {
	if err := m.open(); err != nil {
		return err
	}
	if slot < 0 || slot > 0xFFFF {
		return fmt.Errorf("classfile: local slot %d out of range", slot)
	}
	if delta < -32768 || delta > 32767 {
		return fmt.Errorf("classfile: iinc delta %d out of range", delta)
	}
	if slot <= 0xFF && delta >= -128 && delta <= 127 {
		m.code.u8(opIINC)
		m.code.u8(uint8(slot))
		m.code.u8(uint8(int8(delta)))
	} else {
		m.code.u8(196) // wide
		m.code.u8(opIINC)
		m.code.u16(uint16(slot))
		m.code.u16(uint16(int16(delta)))
	}
	m.useSlot(slot, 1)
	return nil
}

func (m *methodWriter) VisitMultiANewArrayInsn(descriptor string, dims int) error {
	if err := m.open(); err != nil {
		return err
	}
	if dims < 1 || dims > 255 {
		return fmt.Errorf("classfile: multianewarray dimension count %d out of range", dims)
	}
	if len(descriptor) < dims || descriptor[0] != '[' {
		return fmt.Errorf("classfile: %q is not an array descriptor for %d dimensions", descriptor, dims)
	}
	m.code.u8(opMULTIANEWARRAY)
	m.code.u16(m.owner.pool.Class(descriptor))
	m.code.u8(uint8(dims))
	m.push(1 - dims)
	return nil
}

func (m *methodWriter) VisitMaxs(maxStack, maxLocals int) error {
	if err := m.open(); err != nil {
		return err
	}
	if m.owner.flags&backend.ComputeMaxs == 0 {
		m.maxStack = maxStack
		m.maxLocals = maxLocals
	}
	return nil
}

func (m *methodWriter) VisitEnd() error {
	if err := m.open(); err != nil {
		return err
	}
	m.ended = true
	return nil
}

func (m *methodWriter) writeTo(out *stream, codeAttr, sigAttr, excAttr uint16) {
	out.u16(uint16(m.access))
	out.u16(m.nameIdx)
	out.u16(m.descIdx)

	count := uint16(1) // Code
	if m.sigIdx != 0 {
		count++
	}
	if len(m.excIdxs) > 0 {
		count++
	}
	out.u16(count)

	// Code attribute: maxs, code, empty exception table, no nested attributes.
	out.u16(codeAttr)
	out.u32(uint32(2 + 2 + 4 + m.code.len() + 2 + 2))
	out.u16(uint16(m.maxStack))
	out.u16(uint16(m.maxLocals))
	out.u32(uint32(m.code.len()))
	out.raw(m.code.bytes())
	out.u16(0)
	out.u16(0)

	if len(m.excIdxs) > 0 {
		out.u16(excAttr)
		out.u32(uint32(2 + 2*len(m.excIdxs)))
		out.u16(uint16(len(m.excIdxs)))
		for _, idx := range m.excIdxs {
			out.u16(idx)
		}
	}
	if m.sigIdx != 0 {
		out.u16(sigAttr)
		out.u32(2)
		out.u16(m.sigIdx)
	}
}

// ---------------------------------------------------------------------------
// Stack deltas for no-operand instructions
// ---------------------------------------------------------------------------

// plainDelta returns the net stack effect (in slots, long and double count
// as two) of a no-operand instruction.
func plainDelta(opcode int) int {
	switch {
	case opcode == 0: // nop
		return 0
	case opcode == 1, opcode >= 2 && opcode <= 8, opcode >= 11 && opcode <= 13: // aconst_null, iconst, fconst
		return 1
	case opcode == 9, opcode == 10, opcode == 14, opcode == 15: // lconst, dconst
		return 2
	case opcode >= 26 && opcode <= 29, opcode >= 34 && opcode <= 37, opcode >= 42 && opcode <= 45: // iload_n, fload_n, aload_n
		return 1
	case opcode >= 30 && opcode <= 33, opcode >= 38 && opcode <= 41: // lload_n, dload_n
		return 2
	case opcode == 47, opcode == 49: // laload, daload
		return 0
	case opcode >= 46 && opcode <= 53: // other array loads
		return -1
	case opcode >= 59 && opcode <= 62, opcode >= 67 && opcode <= 70, opcode >= 75 && opcode <= 78: // istore_n, fstore_n, astore_n
		return -1
	case opcode >= 63 && opcode <= 66, opcode >= 71 && opcode <= 74: // lstore_n, dstore_n
		return -2
	case opcode == 80, opcode == 82: // lastore, dastore
		return -4
	case opcode >= 79 && opcode <= 86: // other array stores
		return -3
	case opcode == 87: // pop
		return -1
	case opcode == 88: // pop2
		return -2
	case opcode >= 89 && opcode <= 91: // dup family
		return 1
	case opcode >= 92 && opcode <= 94: // dup2 family
		return 2
	case opcode == 95: // swap
		return 0
	case opcode >= 96 && opcode <= 115: // arithmetic: iadd..drem
		if (opcode-96)%4 == 1 || (opcode-96)%4 == 3 { // long/double forms
			return -2
		}
		return -1
	case opcode >= 116 && opcode <= 119: // neg
		return 0
	case opcode >= 120 && opcode <= 125: // shifts pop an int shift amount
		return -1
	case opcode >= 126 && opcode <= 131: // and/or/xor
		if opcode%2 == 1 {
			return -2
		}
		return -1
	case opcode == 133, opcode == 135, opcode == 140, opcode == 141: // widening to 2 slots
		return 1
	case opcode == 136, opcode == 137, opcode == 142, opcode == 144: // narrowing to 1 slot
		return -1
	case opcode >= 133 && opcode <= 147: // remaining conversions
		return 0
	case opcode == 148, opcode == 151, opcode == 152: // lcmp, dcmp
		return -3
	case opcode == 149, opcode == 150: // fcmp
		return -1
	case opcode == 172, opcode == 174, opcode == 176: // ireturn, freturn, areturn
		return -1
	case opcode == 173, opcode == 175: // lreturn, dreturn
		return -2
	case opcode == 177: // return
		return 0
	case opcode == 190: // arraylength
		return 0
	case opcode == 191: // athrow
		return -1
	case opcode == 194, opcode == 195: // monitorenter/exit
		return -1
	default:
		return 0
	}
}
