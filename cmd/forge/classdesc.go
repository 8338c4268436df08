package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/classforge/asm"
)

// classDesc is the TOML description of one class to assemble.
type classDesc struct {
	Name       string       `toml:"name"`
	Super      string       `toml:"super"`
	Signature  string       `toml:"signature"`
	Access     []string     `toml:"access"`
	Interfaces []string     `toml:"interfaces"`
	Fields     []fieldDesc  `toml:"fields"`
	Methods    []methodDesc `toml:"methods"`
}

type fieldDesc struct {
	Name       string   `toml:"name"`
	Descriptor string   `toml:"descriptor"`
	Signature  string   `toml:"signature"`
	Access     []string `toml:"access"`
	Value      string   `toml:"value"`
}

type methodDesc struct {
	Name       string   `toml:"name"`
	Descriptor string   `toml:"descriptor"`
	Signature  string   `toml:"signature"`
	Access     []string `toml:"access"`
	Exceptions []string `toml:"exceptions"`

	// Instructions are emitted in order. Each entry is the symbolic opcode
	// name followed by its operands, all as strings.
	Instructions [][]string `toml:"instructions"`
}

func loadClassDesc(path string) (*classDesc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var d classDesc
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%s: class description has no name", path)
	}
	if d.Super == "" {
		d.Super = "java/lang/Object"
	}
	return &d, nil
}

// assemble builds the described class and returns its bytes.
func assemble(d *classDesc) ([]byte, error) {
	access, err := accessFlags(d.Access)
	if err != nil {
		return nil, err
	}

	a, err := asm.New(access, asm.Slash(d.Name), d.Signature, asm.Slash(d.Super), slashAll(d.Interfaces)...)
	if err != nil {
		return nil, err
	}

	for _, f := range d.Fields {
		facc, err := accessFlags(f.Access)
		if err != nil {
			return nil, err
		}
		var value any
		if f.Value != "" {
			value = constOperand(f.Value)
		}
		if err := a.VisitField(facc, f.Name, f.Descriptor, f.Signature, value); err != nil {
			return nil, err
		}
	}

	for _, m := range d.Methods {
		macc, err := accessFlags(m.Access)
		if err != nil {
			return nil, err
		}
		mv, err := a.VisitMethod(macc, m.Name, m.Descriptor, m.Signature, slashAll(m.Exceptions)...)
		if err != nil {
			return nil, err
		}
		for i, insn := range m.Instructions {
			if err := emit(mv, insn); err != nil {
				return nil, fmt.Errorf("%s.%s instruction %d: %w", d.Name, m.Name, i, err)
			}
		}
		if err := mv.VisitMaxs(0, 0); err != nil {
			return nil, err
		}
		if err := mv.VisitEnd(); err != nil {
			return nil, err
		}
	}

	return a.ToByteArray()
}

// emit dispatches one symbolic instruction to the matching emitter call.
func emit(mv *asm.MethodAssembly, insn []string) error {
	if len(insn) == 0 {
		return fmt.Errorf("empty instruction")
	}
	mnemonic := strings.ToUpper(insn[0])
	opcode, ok := asm.LookupOpcode(mnemonic)
	if !ok {
		return fmt.Errorf("unknown opcode %q", mnemonic)
	}
	operands := insn[1:]

	switch mnemonic {
	case "LDC":
		if len(operands) != 1 {
			return fmt.Errorf("LDC takes one operand")
		}
		return mv.VisitLdcInsn(constOperand(operands[0]))

	case "BIPUSH", "SIPUSH", "NEWARRAY":
		n, err := intOperand(mnemonic, operands)
		if err != nil {
			return err
		}
		return mv.VisitIntInsn(opcode, n)

	case "ILOAD", "LLOAD", "FLOAD", "DLOAD", "ALOAD",
		"ISTORE", "LSTORE", "FSTORE", "DSTORE", "ASTORE":
		slot, err := intOperand(mnemonic, operands)
		if err != nil {
			return err
		}
		return mv.VisitVarInsn(opcode, slot)

	case "NEW", "ANEWARRAY", "CHECKCAST", "INSTANCEOF":
		if len(operands) != 1 {
			return fmt.Errorf("%s takes one type operand", mnemonic)
		}
		return mv.VisitTypeInsn(opcode, asm.Slash(operands[0]))

	case "GETFIELD", "PUTFIELD", "GETSTATIC", "PUTSTATIC":
		if len(operands) != 3 {
			return fmt.Errorf("%s takes owner, name, descriptor", mnemonic)
		}
		return mv.VisitFieldInsn(opcode, asm.Slash(operands[0]), operands[1], operands[2])

	case "INVOKEVIRTUAL", "INVOKESPECIAL", "INVOKESTATIC", "INVOKEINTERFACE":
		if len(operands) != 3 {
			return fmt.Errorf("%s takes owner, name, descriptor", mnemonic)
		}
		return mv.VisitMethodInsn(opcode, asm.Slash(operands[0]), operands[1], operands[2],
			mnemonic == "INVOKEINTERFACE")

	case "IINC":
		if len(operands) != 2 {
			return fmt.Errorf("IINC takes slot, delta")
		}
		slot, err := strconv.Atoi(operands[0])
		if err != nil {
			return fmt.Errorf("bad IINC slot %q", operands[0])
		}
		delta, err := strconv.Atoi(operands[1])
		if err != nil {
			return fmt.Errorf("bad IINC delta %q", operands[1])
		}
		return mv.VisitIincInsn(slot, delta)

	case "MULTIANEWARRAY":
		if len(operands) != 2 {
			return fmt.Errorf("MULTIANEWARRAY takes descriptor, dims")
		}
		dims, err := strconv.Atoi(operands[1])
		if err != nil {
			return fmt.Errorf("bad dimension count %q", operands[1])
		}
		return mv.VisitMultiANewArrayInsn(operands[0], dims)

	default:
		if len(operands) != 0 {
			return fmt.Errorf("%s takes no operands", mnemonic)
		}
		return mv.VisitInsn(opcode)
	}
}

// constOperand interprets a constant literal: "class:" prefixed names are
// class constants, numeric strings are numbers, everything else is a string.
// Suffixes L, F, and D force long, float, and double.
func constOperand(s string) any {
	if name, ok := strings.CutPrefix(s, "class:"); ok {
		return asm.ClassConst(asm.Slash(name))
	}
	if len(s) > 1 {
		body := s[:len(s)-1]
		switch s[len(s)-1] {
		case 'L':
			if n, err := strconv.ParseInt(body, 10, 64); err == nil {
				return n
			}
		case 'F':
			if f, err := strconv.ParseFloat(body, 32); err == nil {
				return float32(f)
			}
		case 'D':
			if f, err := strconv.ParseFloat(body, 64); err == nil {
				return f
			}
		}
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(n)
	}
	return s
}

func intOperand(mnemonic string, operands []string) (int, error) {
	if len(operands) != 1 {
		return 0, fmt.Errorf("%s takes one integer operand", mnemonic)
	}
	n, err := strconv.Atoi(operands[0])
	if err != nil {
		return 0, fmt.Errorf("bad %s operand %q", mnemonic, operands[0])
	}
	return n, nil
}

// accessFlags ORs together symbolic flag names, e.g. ACC_PUBLIC.
func accessFlags(names []string) (int, error) {
	access := 0
	for _, name := range names {
		v, ok := asm.LookupOpcode(strings.ToUpper(name))
		if !ok {
			return 0, fmt.Errorf("unknown access flag %q", name)
		}
		access |= v
	}
	return access, nil
}

func slashAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = asm.Slash(n)
	}
	return out
}
