package classfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	parser "github.com/wreulicke/classfile-parser"

	"github.com/chazu/classforge/backend"
)

const (
	testVersion = 52 // major 52, minor 0
	accPublic   = 0x0001
)

// buildGreeter assembles a small class with one string field, a constructor,
// and a zero-argument method returning a constant string.
func buildGreeter(t *testing.T) []byte {
	t.Helper()

	w := newClassWriter(backend.ComputeMaxs)
	if err := w.Visit(testVersion, accPublic, "demo/Greeter", "", "java/lang/Object", nil); err != nil {
		t.Fatalf("Visit: %v", err)
	}

	fw, err := w.VisitField(accPublic, "greeting", "Ljava/lang/String;", "", nil)
	if err != nil {
		t.Fatalf("VisitField: %v", err)
	}
	if err := fw.VisitEnd(); err != nil {
		t.Fatalf("field VisitEnd: %v", err)
	}

	ctor, err := w.VisitMethod(accPublic, "<init>", "()V", "", nil)
	if err != nil {
		t.Fatalf("VisitMethod <init>: %v", err)
	}
	if err := ctor.VisitCode(); err != nil {
		t.Fatalf("VisitCode: %v", err)
	}
	if err := ctor.VisitVarInsn(constants["ALOAD"], 0); err != nil {
		t.Fatalf("ALOAD 0: %v", err)
	}
	if err := ctor.VisitMethodInsn(constants["INVOKESPECIAL"], "java/lang/Object", "<init>", "()V", false); err != nil {
		t.Fatalf("INVOKESPECIAL: %v", err)
	}
	if err := ctor.VisitInsn(constants["RETURN"]); err != nil {
		t.Fatalf("RETURN: %v", err)
	}
	if err := ctor.VisitMaxs(0, 0); err != nil {
		t.Fatalf("VisitMaxs: %v", err)
	}
	if err := ctor.VisitEnd(); err != nil {
		t.Fatalf("VisitEnd: %v", err)
	}

	greet, err := w.VisitMethod(accPublic, "greet", "()Ljava/lang/String;", "", nil)
	if err != nil {
		t.Fatalf("VisitMethod greet: %v", err)
	}
	if err := greet.VisitCode(); err != nil {
		t.Fatalf("VisitCode: %v", err)
	}
	if err := greet.VisitLdcInsn("hello"); err != nil {
		t.Fatalf("LDC: %v", err)
	}
	if err := greet.VisitInsn(constants["ARETURN"]); err != nil {
		t.Fatalf("ARETURN: %v", err)
	}
	if err := greet.VisitMaxs(0, 0); err != nil {
		t.Fatalf("VisitMaxs: %v", err)
	}
	if err := greet.VisitEnd(); err != nil {
		t.Fatalf("VisitEnd: %v", err)
	}

	code, err := w.ToByteArray()
	if err != nil {
		t.Fatalf("ToByteArray: %v", err)
	}
	return code
}

// ---------------------------------------------------------------------------
// Serialization round-trip tests
// ---------------------------------------------------------------------------

func TestWriterHeader(t *testing.T) {
	code := buildGreeter(t)
	if len(code) < 8 {
		t.Fatalf("class too short: %d bytes", len(code))
	}
	if magic := binary.BigEndian.Uint32(code); magic != 0xCAFEBABE {
		t.Errorf("magic = 0x%08X, want 0xCAFEBABE", magic)
	}
	if minor := binary.BigEndian.Uint16(code[4:]); minor != 0 {
		t.Errorf("minor version = %d, want 0", minor)
	}
	if major := binary.BigEndian.Uint16(code[6:]); major != testVersion {
		t.Errorf("major version = %d, want %d", major, testVersion)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	code := buildGreeter(t)

	cf, err := parser.New(bytes.NewReader(code)).Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	cp := cf.ConstantPool

	name, err := cf.ThisClassName()
	if err != nil {
		t.Fatalf("ThisClassName: %v", err)
	}
	if name != "demo/Greeter" {
		t.Errorf("class name = %q, want %q", name, "demo/Greeter")
	}
	super, err := cf.SuperClassName()
	if err != nil {
		t.Fatalf("SuperClassName: %v", err)
	}
	if super != "java/lang/Object" {
		t.Errorf("super name = %q, want %q", super, "java/lang/Object")
	}

	if len(cf.Fields) != 1 {
		t.Fatalf("field count = %d, want 1", len(cf.Fields))
	}
	fname, err := cf.Fields[0].Name(cp)
	if err != nil {
		t.Fatalf("field name: %v", err)
	}
	if fname != "greeting" {
		t.Errorf("field name = %q, want %q", fname, "greeting")
	}

	if len(cf.Methods) != 2 {
		t.Fatalf("method count = %d, want 2", len(cf.Methods))
	}
	for _, m := range cf.Methods {
		if m.Code() == nil {
			mname, _ := m.Name(cp)
			t.Errorf("method %s has no code attribute", mname)
		}
	}
}

func TestWriterComputesFrameSizes(t *testing.T) {
	code := buildGreeter(t)

	cf, err := parser.New(bytes.NewReader(code)).Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	cp := cf.ConstantPool

	for _, m := range cf.Methods {
		mname, err := m.Name(cp)
		if err != nil {
			t.Fatalf("method name: %v", err)
		}
		attr := m.Code()
		if attr == nil {
			t.Fatalf("method %s has no code", mname)
		}
		// Both bodies reach stack depth 1 and use only the receiver slot.
		if attr.MaxStack != 1 {
			t.Errorf("%s: max stack = %d, want 1", mname, attr.MaxStack)
		}
		if attr.MaxLocals != 1 {
			t.Errorf("%s: max locals = %d, want 1", mname, attr.MaxLocals)
		}
	}
}

func TestCompactVarEncoding(t *testing.T) {
	code := buildGreeter(t)

	cf, err := parser.New(bytes.NewReader(code)).Parse()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	cp := cf.ConstantPool

	for _, m := range cf.Methods {
		mname, err := m.Name(cp)
		if err != nil {
			t.Fatalf("method name: %v", err)
		}
		if mname != "<init>" {
			continue
		}
		body := m.Code().Codes
		if len(body) == 0 {
			t.Fatal("empty constructor body")
		}
		// ALOAD 0 must use the single-byte aload_0 form.
		if body[0] != 42 {
			t.Errorf("first byte = %d, want aload_0 (42)", body[0])
		}
	}
}

// ---------------------------------------------------------------------------
// Validation tests
// ---------------------------------------------------------------------------

func TestVisitRejectsBadNames(t *testing.T) {
	tests := []struct {
		name      string
		className string
		superName string
	}{
		{"empty name", "", "java/lang/Object"},
		{"dotted name", "demo.Greeter", "java/lang/Object"},
		{"descriptor syntax", "Ldemo/Greeter;", "java/lang/Object"},
		{"array syntax", "[demo/Greeter", "java/lang/Object"},
		{"empty super", "demo/Greeter", ""},
	}
	for _, tt := range tests {
		w := newClassWriter(backend.ComputeMaxs)
		if err := w.Visit(testVersion, accPublic, tt.className, "", tt.superName, nil); err == nil {
			t.Errorf("%s: Visit accepted class %q super %q", tt.name, tt.className, tt.superName)
		}
	}
}

func TestVisitTwiceFails(t *testing.T) {
	w := newClassWriter(backend.ComputeMaxs)
	if err := w.Visit(testVersion, accPublic, "demo/A", "", "java/lang/Object", nil); err != nil {
		t.Fatalf("first Visit: %v", err)
	}
	if err := w.Visit(testVersion, accPublic, "demo/B", "", "java/lang/Object", nil); err == nil {
		t.Error("second Visit succeeded")
	}
}

func TestMemberBeforeHeaderFails(t *testing.T) {
	w := newClassWriter(backend.ComputeMaxs)
	if _, err := w.VisitField(accPublic, "f", "I", "", nil); err == nil {
		t.Error("VisitField before Visit succeeded")
	}
	if _, err := w.VisitMethod(accPublic, "m", "()V", "", nil); err == nil {
		t.Error("VisitMethod before Visit succeeded")
	}
}

func TestToByteArrayWithOpenBodyFails(t *testing.T) {
	w := newClassWriter(backend.ComputeMaxs)
	if err := w.Visit(testVersion, accPublic, "demo/Open", "", "java/lang/Object", nil); err != nil {
		t.Fatalf("Visit: %v", err)
	}
	m, err := w.VisitMethod(accPublic, "m", "()V", "", nil)
	if err != nil {
		t.Fatalf("VisitMethod: %v", err)
	}
	if err := m.VisitCode(); err != nil {
		t.Fatalf("VisitCode: %v", err)
	}
	if _, err := w.ToByteArray(); err == nil {
		t.Error("ToByteArray succeeded with an open method body")
	}
}

func TestConstantValueKinds(t *testing.T) {
	w := newClassWriter(backend.ComputeMaxs)
	if err := w.Visit(testVersion, accPublic, "demo/Consts", "", "java/lang/Object", nil); err != nil {
		t.Fatalf("Visit: %v", err)
	}

	good := []struct {
		descriptor string
		value      any
	}{
		{"I", int32(7)},
		{"Z", true},
		{"J", int64(7)},
		{"F", float32(1.5)},
		{"D", 1.5},
		{"Ljava/lang/String;", "hi"},
	}
	for i, tt := range good {
		name := string(rune('a' + i))
		if _, err := w.VisitField(accPublic, name, tt.descriptor, "", tt.value); err != nil {
			t.Errorf("field %s %s = %v rejected: %v", name, tt.descriptor, tt.value, err)
		}
	}

	if _, err := w.VisitField(accPublic, "bad", "I", "", "not an int"); err == nil {
		t.Error("string constant accepted for int field")
	}
	if _, err := w.VisitField(accPublic, "bad2", "Ljava/lang/Object;", "", "text"); err == nil {
		t.Error("constant accepted for non-string reference field")
	}
}

// ---------------------------------------------------------------------------
// Descriptor slot accounting tests
// ---------------------------------------------------------------------------

func TestArgSlotCount(t *testing.T) {
	tests := []struct {
		descriptor string
		slots      int
	}{
		{"()V", 0},
		{"(I)V", 1},
		{"(IJ)V", 3},
		{"(JD)V", 4},
		{"(Ljava/lang/String;)Z", 1},
		{"([I[Ljava/lang/String;)V", 2},
		{"(ZBSCIJFD)V", 10},
	}
	for _, tt := range tests {
		slots, err := argSlotCount(tt.descriptor)
		if err != nil {
			t.Errorf("argSlotCount(%q): %v", tt.descriptor, err)
			continue
		}
		if slots != tt.slots {
			t.Errorf("argSlotCount(%q) = %d, want %d", tt.descriptor, slots, tt.slots)
		}
	}
}

func TestArgSlotCountMalformed(t *testing.T) {
	for _, desc := range []string{"", "I", "(I", "(Q)V", "(Ljava/lang/String)V"} {
		if _, err := argSlotCount(desc); err == nil {
			t.Errorf("argSlotCount(%q) accepted a malformed descriptor", desc)
		}
	}
}
