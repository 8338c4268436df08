package classfile

// The fixed symbol table of the class-file format: instruction opcodes,
// access flags, array-type codes, method-handle kinds and version tags.
// Names and numeric values are those of the JVM instruction set; the table is
// read-only after package init and is handed to callers as a copy.
var constants = map[string]int{
	// Class-file version tags (major version, minor 0).
	"V1_1": 3<<16 | 45,
	"V1_2": 46, "V1_3": 47, "V1_4": 48, "V1_5": 49, "V1_6": 50, "V1_7": 51,
	"V1_8": 52, "V9": 53, "V10": 54, "V11": 55, "V12": 56, "V13": 57,
	"V14": 58, "V15": 59, "V16": 60, "V17": 61, "V18": 62, "V19": 63,
	"V20": 64, "V21": 65,

	// Access flags. Some values are shared between member kinds, exactly as
	// in the format itself.
	"ACC_PUBLIC":       0x0001,
	"ACC_PRIVATE":      0x0002,
	"ACC_PROTECTED":    0x0004,
	"ACC_STATIC":       0x0008,
	"ACC_FINAL":        0x0010,
	"ACC_SUPER":        0x0020,
	"ACC_SYNCHRONIZED": 0x0020,
	"ACC_VOLATILE":     0x0040,
	"ACC_BRIDGE":       0x0040,
	"ACC_TRANSIENT":    0x0080,
	"ACC_VARARGS":      0x0080,
	"ACC_NATIVE":       0x0100,
	"ACC_INTERFACE":    0x0200,
	"ACC_ABSTRACT":     0x0400,
	"ACC_STRICT":       0x0800,
	"ACC_SYNTHETIC":    0x1000,
	"ACC_ANNOTATION":   0x2000,
	"ACC_ENUM":         0x4000,
	"ACC_MANDATED":     0x8000,
	"ACC_MODULE":       0x8000,

	// Array type codes for NEWARRAY.
	"T_BOOLEAN": 4, "T_CHAR": 5, "T_FLOAT": 6, "T_DOUBLE": 7,
	"T_BYTE": 8, "T_SHORT": 9, "T_INT": 10, "T_LONG": 11,

	// Method handle kinds.
	"H_GETFIELD": 1, "H_GETSTATIC": 2, "H_PUTFIELD": 3, "H_PUTSTATIC": 4,
	"H_INVOKEVIRTUAL": 5, "H_INVOKESTATIC": 6, "H_INVOKESPECIAL": 7,
	"H_NEWINVOKESPECIAL": 8, "H_INVOKEINTERFACE": 9,

	// Instruction opcodes.
	"NOP": 0, "ACONST_NULL": 1,
	"ICONST_M1": 2, "ICONST_0": 3, "ICONST_1": 4, "ICONST_2": 5,
	"ICONST_3": 6, "ICONST_4": 7, "ICONST_5": 8,
	"LCONST_0": 9, "LCONST_1": 10,
	"FCONST_0": 11, "FCONST_1": 12, "FCONST_2": 13,
	"DCONST_0": 14, "DCONST_1": 15,
	"BIPUSH": 16, "SIPUSH": 17,
	"LDC":   18,
	"ILOAD": 21, "LLOAD": 22, "FLOAD": 23, "DLOAD": 24, "ALOAD": 25,
	"IALOAD": 46, "LALOAD": 47, "FALOAD": 48, "DALOAD": 49, "AALOAD": 50,
	"BALOAD": 51, "CALOAD": 52, "SALOAD": 53,
	"ISTORE": 54, "LSTORE": 55, "FSTORE": 56, "DSTORE": 57, "ASTORE": 58,
	"IASTORE": 79, "LASTORE": 80, "FASTORE": 81, "DASTORE": 82,
	"AASTORE": 83, "BASTORE": 84, "CASTORE": 85, "SASTORE": 86,
	"POP": 87, "POP2": 88,
	"DUP": 89, "DUP_X1": 90, "DUP_X2": 91,
	"DUP2": 92, "DUP2_X1": 93, "DUP2_X2": 94,
	"SWAP": 95,
	"IADD": 96, "LADD": 97, "FADD": 98, "DADD": 99,
	"ISUB": 100, "LSUB": 101, "FSUB": 102, "DSUB": 103,
	"IMUL": 104, "LMUL": 105, "FMUL": 106, "DMUL": 107,
	"IDIV": 108, "LDIV": 109, "FDIV": 110, "DDIV": 111,
	"IREM": 112, "LREM": 113, "FREM": 114, "DREM": 115,
	"INEG": 116, "LNEG": 117, "FNEG": 118, "DNEG": 119,
	"ISHL": 120, "LSHL": 121, "ISHR": 122, "LSHR": 123,
	"IUSHR": 124, "LUSHR": 125,
	"IAND": 126, "LAND": 127, "IOR": 128, "LOR": 129, "IXOR": 130, "LXOR": 131,
	"IINC": 132,
	"I2L":  133, "I2F": 134, "I2D": 135,
	"L2I": 136, "L2F": 137, "L2D": 138,
	"F2I": 139, "F2L": 140, "F2D": 141,
	"D2I": 142, "D2L": 143, "D2F": 144,
	"I2B": 145, "I2C": 146, "I2S": 147,
	"LCMP": 148, "FCMPL": 149, "FCMPG": 150, "DCMPL": 151, "DCMPG": 152,
	"IFEQ": 153, "IFNE": 154, "IFLT": 155, "IFGE": 156, "IFGT": 157, "IFLE": 158,
	"IF_ICMPEQ": 159, "IF_ICMPNE": 160, "IF_ICMPLT": 161,
	"IF_ICMPGE": 162, "IF_ICMPGT": 163, "IF_ICMPLE": 164,
	"IF_ACMPEQ": 165, "IF_ACMPNE": 166,
	"GOTO": 167, "JSR": 168, "RET": 169,
	"TABLESWITCH": 170, "LOOKUPSWITCH": 171,
	"IRETURN": 172, "LRETURN": 173, "FRETURN": 174, "DRETURN": 175,
	"ARETURN": 176, "RETURN": 177,
	"GETSTATIC": 178, "PUTSTATIC": 179, "GETFIELD": 180, "PUTFIELD": 181,
	"INVOKEVIRTUAL": 182, "INVOKESPECIAL": 183, "INVOKESTATIC": 184,
	"INVOKEINTERFACE": 185, "INVOKEDYNAMIC": 186,
	"NEW": 187, "NEWARRAY": 188, "ANEWARRAY": 189,
	"ARRAYLENGTH": 190, "ATHROW": 191,
	"CHECKCAST": 192, "INSTANCEOF": 193,
	"MONITORENTER": 194, "MONITOREXIT": 195,
	"MULTIANEWARRAY": 197,
	"IFNULL":         198, "IFNONNULL": 199,
}

// Raw opcode values the writer needs by name. Kept as Go constants so the
// encoder does not go through the map on every instruction.
const (
	opNOP            = 0
	opBIPUSH         = 16
	opSIPUSH         = 17
	opLDC            = 18
	opLDCw           = 19
	opLDC2w          = 20
	opILOAD          = 21
	opALOAD          = 25
	opISTORE         = 54
	opASTORE         = 58
	opIINC           = 132
	opIRETURN        = 172
	opRETURN         = 177
	opGETSTATIC      = 178
	opPUTSTATIC      = 179
	opGETFIELD       = 180
	opPUTFIELD       = 181
	opINVOKEVIRTUAL  = 182
	opINVOKESPECIAL  = 183
	opINVOKESTATIC   = 184
	opINVOKEIFACE    = 185
	opNEW            = 187
	opNEWARRAY       = 188
	opANEWARRAY      = 189
	opCHECKCAST      = 192
	opINSTANCEOF     = 193
	opMULTIANEWARRAY = 197
)

// ---------------------------------------------------------------------------
// Instruction shapes
// ---------------------------------------------------------------------------

// shape classifies an opcode by the operand layout its visit call must use.
type shape int

const (
	shapeNone   shape = iota
	shapeInt          // bipush, sipush, newarray
	shapeVar          // ?load, ?store, ret
	shapeType         // new, anewarray, checkcast, instanceof
	shapeField        // getstatic..putfield
	shapeMethod       // invokevirtual..invokeinterface
	shapeOther        // ldc, iinc, jumps, switches, multianewarray
)

// shapeOf returns the operand shape for an opcode, or -1 for an undefined
// opcode byte.
func shapeOf(opcode int) shape {
	if opcode < 0 || opcode > 255 {
		return -1
	}
	switch {
	case opcode == opBIPUSH || opcode == opSIPUSH || opcode == opNEWARRAY:
		return shapeInt
	case (opcode >= opILOAD && opcode <= opALOAD) ||
		(opcode >= opISTORE && opcode <= opASTORE) || opcode == 169:
		return shapeVar
	case opcode == opNEW || opcode == opANEWARRAY ||
		opcode == opCHECKCAST || opcode == opINSTANCEOF:
		return shapeType
	case opcode >= opGETSTATIC && opcode <= opPUTFIELD:
		return shapeField
	case opcode >= opINVOKEVIRTUAL && opcode <= opINVOKEIFACE:
		return shapeMethod
	case opcode == opLDC || opcode == opLDCw || opcode == opLDC2w ||
		opcode == opIINC || opcode == opMULTIANEWARRAY ||
		(opcode >= 153 && opcode <= 168) || opcode == 170 || opcode == 171 ||
		opcode == 186 || opcode == 196 || (opcode >= 198 && opcode <= 201):
		return shapeOther
	default:
		if !definedOpcode(opcode) {
			return -1
		}
		return shapeNone
	}
}

// definedOpcode reports whether the byte value is a defined instruction.
func definedOpcode(opcode int) bool {
	return opcode >= 0 && opcode <= 201
}
