package asm

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/chazu/classforge/loader"
)

// ---------------------------------------------------------------------------
// Opcode table tests
// ---------------------------------------------------------------------------

func TestOpcodeValues(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"NOP", 0},
		{"ALOAD", 25},
		{"ARETURN", 176},
		{"RETURN", 177},
		{"INVOKESPECIAL", 183},
		{"ACC_PUBLIC", 0x0001},
		{"ACC_STATIC", 0x0008},
		{"V1_8", 52},
		{"T_INT", 10},
	}
	for _, tt := range tests {
		if got := Opcode(tt.name); got != tt.want {
			t.Errorf("Opcode(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestOpcodeUnknownPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Opcode did not panic on an unknown name")
		}
		le, ok := r.(*LookupError)
		if !ok {
			t.Fatalf("panic value is %T, want *LookupError", r)
		}
		if le.Name != "NO_SUCH_OPCODE" {
			t.Errorf("LookupError.Name = %q, want %q", le.Name, "NO_SUCH_OPCODE")
		}
	}()
	Opcode("NO_SUCH_OPCODE")
}

func TestLookupOpcode(t *testing.T) {
	if v, ok := LookupOpcode("GOTO"); !ok || v != 167 {
		t.Errorf("LookupOpcode(GOTO) = (%d, %t), want (167, true)", v, ok)
	}
	if _, ok := LookupOpcode("NO_SUCH_OPCODE"); ok {
		t.Error("LookupOpcode found a nonexistent name")
	}
}

func TestSetPreferenceConcurrentWithResolution(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = SetPreference(ExternalName, "classfile")
		}()
		go func() {
			defer wg.Done()
			_, _ = LookupOpcode("NOP")
		}()
	}
	wg.Wait()

	if Opcode("NOP") != 0 {
		t.Error("NOP did not resolve to 0 after concurrent use")
	}
}

func TestSetPreferenceAfterResolutionFails(t *testing.T) {
	// Force resolution.
	Opcode("NOP")
	if err := SetPreference("classfile"); err == nil {
		t.Error("SetPreference succeeded after the backend was resolved")
	}
}

func TestBackendResolvesToFallback(t *testing.T) {
	p, err := Backend()
	if err != nil {
		t.Fatalf("Backend: %v", err)
	}
	// No external backend is registered in tests, so resolution falls back
	// to the built-in writer.
	if p.Name() != "classfile" {
		t.Errorf("backend = %q, want %q", p.Name(), "classfile")
	}
}

// ---------------------------------------------------------------------------
// End-to-end assembly and installation tests
// ---------------------------------------------------------------------------

// assembleGreeter builds a class with a default constructor and a greet()
// method returning the given constant string.
func assembleGreeter(t *testing.T, name, message string) *Assembly {
	t.Helper()

	a, err := New(Opcode("ACC_PUBLIC"), name, "", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctor, err := a.VisitMethod(Opcode("ACC_PUBLIC"), "<init>", MethodDesc(nil, Void), "")
	if err != nil {
		t.Fatalf("VisitMethod <init>: %v", err)
	}
	if err := ctor.VisitVarInsn(LoadOpcode(Object(name)), 0); err != nil {
		t.Fatal(err)
	}
	if err := ctor.VisitMethodInsn(Opcode("INVOKESPECIAL"), "java/lang/Object", "<init>", "()V", false); err != nil {
		t.Fatal(err)
	}
	if err := ctor.VisitInsn(ReturnOpcode(Void)); err != nil {
		t.Fatal(err)
	}
	if err := ctor.VisitMaxs(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := ctor.VisitEnd(); err != nil {
		t.Fatal(err)
	}

	greet, err := a.VisitMethod(Opcode("ACC_PUBLIC"), "greet", MethodDesc(nil, Object("java.lang.String")), "")
	if err != nil {
		t.Fatalf("VisitMethod greet: %v", err)
	}
	if err := greet.VisitLdcInsn(message); err != nil {
		t.Fatal(err)
	}
	if err := greet.VisitInsn(ReturnOpcode(Object("java.lang.String"))); err != nil {
		t.Fatal(err)
	}
	if err := greet.VisitMaxs(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := greet.VisitEnd(); err != nil {
		t.Fatal(err)
	}

	return a
}

func TestAssembleAndInstallTransient(t *testing.T) {
	a := assembleGreeter(t, "demo/TransientGreeter", "hello from transient")

	c, err := a.DefineTransient(loader.RootClass)
	if err != nil {
		t.Fatalf("DefineTransient: %v", err)
	}
	if !c.IsHidden() {
		t.Error("transient install produced a non-hidden class")
	}
	if loader.Lookup("demo/TransientGreeter") != nil {
		t.Error("transient class appeared in the registry")
	}

	inst, err := c.NewInstance()
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	got, err := inst.Invoke("greet")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "hello from transient" {
		t.Errorf("greet() = %v, want %q", got, "hello from transient")
	}
}

func TestInstallNestmatePersists(t *testing.T) {
	a := assembleGreeter(t, "demo/NestGreeter", "hello from nest")

	c, err := a.DefineNestmate(loader.RootClass)
	if err != nil {
		t.Fatalf("DefineNestmate: %v", err)
	}
	if c.IsHidden() {
		t.Error("nestmate install produced a hidden class")
	}
	if c.NestHost() != loader.RootClass {
		t.Error("nest host is not the install host")
	}

	// Drop the handle; identity must survive collection pressure.
	c = nil
	runtime.GC()

	found := loader.Lookup("demo/NestGreeter")
	if found == nil {
		t.Fatal("nestmate class lost its registry identity")
	}
	inst, err := found.NewInstance()
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	got, err := inst.Invoke("greet")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "hello from nest" {
		t.Errorf("greet() = %v, want %q", got, "hello from nest")
	}
}

func TestNestmateJoinsHostNest(t *testing.T) {
	a := assembleGreeter(t, "demo/NestMemberA", "a")
	c, err := a.DefineNestmate(loader.RootClass)
	if err != nil {
		t.Fatalf("DefineNestmate: %v", err)
	}

	members := loader.RootClass.NestMembers()
	found := false
	for _, m := range members {
		if m == c {
			found = true
		}
	}
	if !found {
		t.Error("installed nestmate missing from the host's nest")
	}
}

func TestBackendErrorSurfacesAtCallSite(t *testing.T) {
	a, err := New(Opcode("ACC_PUBLIC"), "demo/Broken", "", "java/lang/Object")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m, err := a.VisitMethod(Opcode("ACC_PUBLIC"), "m", "()V", "")
	if err != nil {
		t.Fatalf("VisitMethod: %v", err)
	}

	// bipush cannot hold 4096; the failure must surface on the emit call.
	err = m.VisitIntInsn(Opcode("BIPUSH"), 4096)
	if err == nil {
		t.Fatal("invalid operand accepted")
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Errorf("error is %T, want *BackendError", err)
	}
}

func TestNewRejectsMalformedName(t *testing.T) {
	_, err := New(Opcode("ACC_PUBLIC"), "demo.Dotted", "", "java/lang/Object")
	if err == nil {
		t.Fatal("New accepted a dotted class name")
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Errorf("error is %T, want *BackendError", err)
	}
}

func TestInstallRejectsBadBytes(t *testing.T) {
	if _, err := InstallTransient(loader.RootClass, []byte{0xDE, 0xAD, 0xBE, 0xEF}); err == nil {
		t.Error("install accepted garbage bytes")
	}
}
