package loader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	parser "github.com/wreulicke/classfile-parser"
)

// ClassRef is a class constant loaded by ldc: the referenced class's binary
// name with slashes.
type ClassRef string

// ---------------------------------------------------------------------------
// Constant pool resolution
// ---------------------------------------------------------------------------

func (c *Class) constant(idx uint16) (any, error) {
	if c.cp == nil || int(idx) < 1 || int(idx) > len(c.cp.Constants) {
		return nil, fmt.Errorf("loader: constant pool index %d out of range in %s", idx, c.name)
	}
	switch v := c.cp.Constants[idx-1].(type) {
	case *parser.ConstantString:
		if u := c.cp.LookupUtf8(v.StringIndex); u != nil {
			return u.String(), nil
		}
	case *parser.ConstantInteger:
		return int32(v.Bytes), nil
	case *parser.ConstantFloat:
		return math.Float32frombits(uint32(v.Bytes)), nil
	case *parser.ConstantLong:
		return int64(uint64(v.HighBytes)<<32 | uint64(v.LowBytes)), nil
	case *parser.ConstantDouble:
		return math.Float64frombits(uint64(v.HighBytes)<<32 | uint64(v.LowBytes)), nil
	case *parser.ConstantClass:
		if u := c.cp.LookupUtf8(v.NameIndex); u != nil {
			return ClassRef(u.String()), nil
		}
	}
	return nil, fmt.Errorf("loader: constant pool entry %d in %s is not loadable", idx, c.name)
}

func (c *Class) memberRef(idx uint16) (owner, name, descriptor string, err error) {
	if c.cp == nil || int(idx) < 1 || int(idx) > len(c.cp.Constants) {
		return "", "", "", fmt.Errorf("loader: constant pool index %d out of range in %s", idx, c.name)
	}

	var classIdx, natIdx uint16
	switch v := c.cp.Constants[idx-1].(type) {
	case *parser.ConstantFieldref:
		classIdx, natIdx = v.ClassIndex, v.NameAndTypeIndex
	case *parser.ConstantMethodref:
		classIdx, natIdx = v.ClassIndex, v.NameAndTypeIndex
	case *parser.ConstantInterfaceMethodref:
		classIdx, natIdx = v.ClassIndex, v.NameAndTypeIndex
	default:
		return "", "", "", fmt.Errorf("loader: constant pool entry %d in %s is not a member reference", idx, c.name)
	}

	owner, err = c.cp.GetClassName(classIdx)
	if err != nil {
		return "", "", "", fmt.Errorf("loader: bad member owner in %s: %w", c.name, err)
	}
	nat, ok := c.cp.Constants[natIdx-1].(*parser.ConstantNameAndType)
	if !ok {
		return "", "", "", fmt.Errorf("loader: bad name-and-type in %s", c.name)
	}
	nameU := c.cp.LookupUtf8(nat.NameIndex)
	descU := c.cp.LookupUtf8(nat.DescriptorIndex)
	if nameU == nil || descU == nil {
		return "", "", "", fmt.Errorf("loader: dangling member reference in %s", c.name)
	}
	return owner, nameU.String(), descU.String(), nil
}

// resolveOwner finds the class an owner name refers to, preferring the
// receiver's own superclass chain. Transient classes carry a synthetic name
// suffix, so their code still references the original name.
func resolveOwner(start *Class, owner string) *Class {
	for cur := start; cur != nil; cur = cur.super {
		if cur.name == owner || (cur.hidden && strings.HasPrefix(cur.name, owner+"/0x")) {
			return cur
		}
	}
	return Lookup(owner)
}

// ---------------------------------------------------------------------------
// Method execution
// ---------------------------------------------------------------------------

func (m *Method) invoke(recv *Instance, args []any) (any, error) {
	if m.builtin != nil {
		return m.builtin(recv, args)
	}
	if m.code == nil {
		return nil, fmt.Errorf("loader: %s.%s%s has no code", m.class.name, m.name, m.descriptor)
	}

	locals := make([]any, m.maxLocals+2)
	slot := 0
	if m.access&0x0008 == 0 { // non-static: receiver in slot 0
		locals[0] = recv
		slot = 1
	}
	for _, a := range args {
		if slot >= len(locals) {
			locals = append(locals, nil)
		}
		locals[slot] = a
		slot++
		if wide(a) {
			slot++
		}
	}
	return m.exec(locals)
}

func (m *Method) exec(locals []any) (result any, err error) {
	code := m.code
	var stack []any
	pc := 0

	// Hostile but parseable bytes can still trip a decode panic, such as an
	// instruction truncated at the end of the body. Surface those as faults.
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, m.fault(pc, fmt.Sprintf("execution panic: %v", r))
		}
	}()

	push := func(v any) { stack = append(stack, v) }
	pop := func() (any, error) {
		if len(stack) == 0 {
			return nil, m.fault(pc, "operand stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	popInt := func() (int32, error) {
		v, err := pop()
		if err != nil {
			return 0, err
		}
		n, ok := v.(int32)
		if !ok {
			return 0, m.fault(pc, fmt.Sprintf("expected int on stack, have %T", v))
		}
		return n, nil
	}
	// Declared max-locals is not verified against the code, so every slot
	// access is bounds-checked.
	localGet := func(slot int) (any, error) {
		if slot < 0 || slot >= len(locals) {
			return nil, m.fault(pc, fmt.Sprintf("local slot %d out of range", slot))
		}
		return locals[slot], nil
	}
	localSet := func(slot int, v any) error {
		if slot < 0 || slot >= len(locals) {
			return m.fault(pc, fmt.Sprintf("local slot %d out of range", slot))
		}
		locals[slot] = v
		return nil
	}

	for pc < len(code) {
		op := code[pc]
		switch {
		case op == 0: // nop
			pc++

		// ----- constants -----
		case op == 1: // aconst_null
			push(nil)
			pc++
		case op >= 2 && op <= 8: // iconst_m1..iconst_5
			push(int32(op) - 3)
			pc++
		case op == 9 || op == 10: // lconst
			push(int64(op - 9))
			pc++
		case op >= 11 && op <= 13: // fconst
			push(float32(op - 11))
			pc++
		case op == 14 || op == 15: // dconst
			push(float64(op - 14))
			pc++
		case op == 16: // bipush
			push(int32(int8(code[pc+1])))
			pc += 2
		case op == 17: // sipush
			push(int32(int16(binary.BigEndian.Uint16(code[pc+1:]))))
			pc += 3
		case op == 18: // ldc
			v, err := m.class.constant(uint16(code[pc+1]))
			if err != nil {
				return nil, err
			}
			push(v)
			pc += 2
		case op == 19 || op == 20: // ldc_w, ldc2_w
			v, err := m.class.constant(binary.BigEndian.Uint16(code[pc+1:]))
			if err != nil {
				return nil, err
			}
			push(v)
			pc += 3

		// ----- locals -----
		case op >= 21 && op <= 25: // ?load
			v, err := localGet(int(code[pc+1]))
			if err != nil {
				return nil, err
			}
			push(v)
			pc += 2
		case op >= 26 && op <= 45: // ?load_n
			v, err := localGet(int((op - 26) % 4))
			if err != nil {
				return nil, err
			}
			push(v)
			pc++
		case op >= 54 && op <= 58: // ?store
			v, err := pop()
			if err != nil {
				return nil, err
			}
			if err := localSet(int(code[pc+1]), v); err != nil {
				return nil, err
			}
			pc += 2
		case op >= 59 && op <= 78: // ?store_n
			v, err := pop()
			if err != nil {
				return nil, err
			}
			if err := localSet(int((op-59)%4), v); err != nil {
				return nil, err
			}
			pc++
		case op == 132: // iinc
			slot := int(code[pc+1])
			cur, err := localGet(slot)
			if err != nil {
				return nil, err
			}
			n, ok := cur.(int32)
			if !ok {
				return nil, m.fault(pc, "iinc on non-int local")
			}
			locals[slot] = n + int32(int8(code[pc+2]))
			pc += 3

		// ----- arrays -----
		case op == 188: // newarray
			n, err := popInt()
			if err != nil {
				return nil, err
			}
			push(newPrimitiveArray(code[pc+1], int(n)))
			pc += 2
		case op == 189: // anewarray
			n, err := popInt()
			if err != nil {
				return nil, err
			}
			push(make([]any, n))
			pc += 3
		case op == 197: // multianewarray
			dims := int(code[pc+3])
			counts := make([]int, dims)
			for d := dims - 1; d >= 0; d-- {
				n, err := popInt()
				if err != nil {
					return nil, err
				}
				counts[d] = int(n)
			}
			push(makeMultiArray(counts))
			pc += 4
		case op >= 46 && op <= 53: // ?aload
			idx, err := popInt()
			if err != nil {
				return nil, err
			}
			arr, err := pop()
			if err != nil {
				return nil, err
			}
			a, ok := arr.([]any)
			if !ok || int(idx) < 0 || int(idx) >= len(a) {
				return nil, m.fault(pc, "bad array load")
			}
			push(a[idx])
			pc++
		case op >= 79 && op <= 86: // ?astore
			v, err := pop()
			if err != nil {
				return nil, err
			}
			idx, err := popInt()
			if err != nil {
				return nil, err
			}
			arr, err := pop()
			if err != nil {
				return nil, err
			}
			a, ok := arr.([]any)
			if !ok || int(idx) < 0 || int(idx) >= len(a) {
				return nil, m.fault(pc, "bad array store")
			}
			a[idx] = v
			pc++
		case op == 190: // arraylength
			arr, err := pop()
			if err != nil {
				return nil, err
			}
			a, ok := arr.([]any)
			if !ok {
				return nil, m.fault(pc, "arraylength on non-array")
			}
			push(int32(len(a)))
			pc++

		// ----- operand stack -----
		case op == 87: // pop
			if _, err := pop(); err != nil {
				return nil, err
			}
			pc++
		case op == 88: // pop2
			v, err := pop()
			if err != nil {
				return nil, err
			}
			if !wide(v) {
				if _, err := pop(); err != nil {
					return nil, err
				}
			}
			pc++
		case op == 89: // dup
			v, err := pop()
			if err != nil {
				return nil, err
			}
			push(v)
			push(v)
			pc++
		case op == 95: // swap
			a, err := pop()
			if err != nil {
				return nil, err
			}
			b, err := pop()
			if err != nil {
				return nil, err
			}
			push(a)
			push(b)
			pc++

		// ----- int arithmetic -----
		case op == 96 || op == 100 || op == 104 || op == 108 || op == 112: // iadd..irem
			b, err := popInt()
			if err != nil {
				return nil, err
			}
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			var r int32
			switch op {
			case 96:
				r = a + b
			case 100:
				r = a - b
			case 104:
				r = a * b
			case 108:
				if b == 0 {
					return nil, m.fault(pc, "integer division by zero")
				}
				r = a / b
			case 112:
				if b == 0 {
					return nil, m.fault(pc, "integer division by zero")
				}
				r = a % b
			}
			push(r)
			pc++
		case op == 116: // ineg
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(-a)
			pc++

		// ----- conversions -----
		case op == 133: // i2l
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(int64(a))
			pc++
		case op == 134: // i2f
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(float32(a))
			pc++
		case op == 135: // i2d
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(float64(a))
			pc++
		case op == 136: // l2i
			v, err := pop()
			if err != nil {
				return nil, err
			}
			n, ok := v.(int64)
			if !ok {
				return nil, m.fault(pc, "l2i on non-long")
			}
			push(int32(n))
			pc++
		case op == 145: // i2b
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(int32(int8(a)))
			pc++
		case op == 146: // i2c
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(int32(uint16(a)))
			pc++
		case op == 147: // i2s
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			push(int32(int16(a)))
			pc++

		// ----- branches -----
		case op >= 153 && op <= 158: // ifeq..ifle
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			if intCond(op-153, a, 0) {
				pc += int(int16(binary.BigEndian.Uint16(code[pc+1:])))
			} else {
				pc += 3
			}
		case op >= 159 && op <= 164: // if_icmp*
			b, err := popInt()
			if err != nil {
				return nil, err
			}
			a, err := popInt()
			if err != nil {
				return nil, err
			}
			if intCond(op-159, a, b) {
				pc += int(int16(binary.BigEndian.Uint16(code[pc+1:])))
			} else {
				pc += 3
			}
		case op == 165 || op == 166: // if_acmpeq/ne
			b, err := pop()
			if err != nil {
				return nil, err
			}
			a, err := pop()
			if err != nil {
				return nil, err
			}
			if refIdentical(a, b) == (op == 165) {
				pc += int(int16(binary.BigEndian.Uint16(code[pc+1:])))
			} else {
				pc += 3
			}
		case op == 167: // goto
			pc += int(int16(binary.BigEndian.Uint16(code[pc+1:])))
		case op == 198 || op == 199: // ifnull/ifnonnull
			a, err := pop()
			if err != nil {
				return nil, err
			}
			if (a == nil) == (op == 198) {
				pc += int(int16(binary.BigEndian.Uint16(code[pc+1:])))
			} else {
				pc += 3
			}

		// ----- fields -----
		case op == 180: // getfield
			_, name, desc, err := m.class.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err != nil {
				return nil, err
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			inst, ok := recv.(*Instance)
			if !ok {
				return nil, m.fault(pc, "getfield on non-object")
			}
			v, ok := inst.fields[name]
			if !ok {
				v = zeroValue(desc)
			}
			push(v)
			pc += 3
		case op == 181: // putfield
			_, name, _, err := m.class.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err != nil {
				return nil, err
			}
			v, err := pop()
			if err != nil {
				return nil, err
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			inst, ok := recv.(*Instance)
			if !ok {
				return nil, m.fault(pc, "putfield on non-object")
			}
			inst.fields[name] = v
			pc += 3

		// ----- calls -----
		case op == 182 || op == 183 || op == 185: // invokevirtual/special/interface
			owner, name, desc, err := m.class.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err != nil {
				return nil, err
			}
			argc := paramCount(desc)
			if argc < 0 {
				return nil, m.fault(pc, "malformed call descriptor "+desc)
			}
			args := make([]any, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i], err = pop()
				if err != nil {
					return nil, err
				}
			}
			recv, err := pop()
			if err != nil {
				return nil, err
			}
			inst, ok := recv.(*Instance)
			if !ok {
				return nil, m.fault(pc, "call on non-object receiver")
			}

			var target *Method
			if op == 183 { // invokespecial: static dispatch by owner
				ownerClass := resolveOwner(inst.class, owner)
				if ownerClass == nil {
					return nil, m.fault(pc, "call to method of unknown class "+owner)
				}
				target = ownerClass.findByDescriptor(name, desc)
			} else { // dynamic dispatch
				target = inst.class.findByDescriptor(name, desc)
			}
			if target == nil {
				return nil, m.fault(pc, fmt.Sprintf("no method %s.%s%s", owner, name, desc))
			}

			result, err := target.invoke(inst, args)
			if err != nil {
				return nil, err
			}
			if returnsValue(desc) {
				push(result)
			}
			if op == 185 {
				pc += 5
			} else {
				pc += 3
			}

		// ----- returns -----
		case op == 177: // return
			return nil, nil
		case op == 172 || op == 173 || op == 174 || op == 175 || op == 176:
			return pop()

		default:
			return nil, m.fault(pc, fmt.Sprintf("unsupported instruction 0x%02x", op))
		}
	}
	return nil, m.fault(len(code), "fell off end of method body")
}

func (m *Method) fault(pc int, msg string) error {
	return fmt.Errorf("loader: %s.%s%s at pc %d: %s", m.class.name, m.name, m.descriptor, pc, msg)
}

// refIdentical implements reference identity for if_acmp operands. Array
// references are Go slices, which == panics on, so they compare by backing
// array identity instead.
func refIdentical(a, b any) bool {
	aa, aok := a.([]any)
	bb, bok := b.([]any)
	if aok || bok {
		return aok && bok && len(aa) == len(bb) && (len(aa) == 0 || &aa[0] == &bb[0])
	}
	return a == b
}

// intCond evaluates the eq/ne/lt/ge/gt/le condition family, in opcode order.
func intCond(kind byte, a, b int32) bool {
	switch kind {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	default:
		return a <= b
	}
}

// returnsValue reports whether a method descriptor returns a value.
func returnsValue(descriptor string) bool {
	return !strings.HasSuffix(descriptor, ")V")
}

func newPrimitiveArray(typeCode byte, n int) []any {
	if n < 0 {
		n = 0
	}
	a := make([]any, n)
	var zero any
	switch typeCode {
	case 6: // T_FLOAT
		zero = float32(0)
	case 7: // T_DOUBLE
		zero = float64(0)
	case 11: // T_LONG
		zero = int64(0)
	default: // boolean, char, byte, short, int
		zero = int32(0)
	}
	for i := range a {
		a[i] = zero
	}
	return a
}

func makeMultiArray(counts []int) []any {
	n := counts[0]
	if n < 0 {
		n = 0
	}
	a := make([]any, n)
	if len(counts) > 1 {
		for i := range a {
			a[i] = makeMultiArray(counts[1:])
		}
	}
	return a
}
