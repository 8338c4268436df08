package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "forge.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[backend]
preference = ["external", "classfile"]

[assemble]
version = "V11"

[log]
verbosity = 2
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want %q", m.Project.Name, "demo")
	}
	if m.Assemble.Version != "V11" {
		t.Errorf("assemble version = %q, want %q", m.Assemble.Version, "V11")
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.Dir == "" {
		t.Error("Dir not set at load time")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "sparse"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Backend.Preference) != 2 || m.Backend.Preference[0] != "external" {
		t.Errorf("preference = %v, want [external classfile]", m.Backend.Preference)
	}
	if m.Assemble.Version != "V1_8" {
		t.Errorf("assemble version = %q, want %q", m.Assemble.Version, "V1_8")
	}
	if m.Assemble.Superclass != "java/lang/Object" {
		t.Errorf("superclass = %q, want %q", m.Assemble.Superclass, "java/lang/Object")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[backend\npreference = ?")
	if _, err := Load(dir); err == nil {
		t.Error("malformed manifest accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("missing manifest accepted")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "walkup"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil {
		t.Fatal("manifest not found from nested directory")
	}
	if m.Project.Name != "walkup" {
		t.Errorf("project name = %q, want %q", m.Project.Name, "walkup")
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("found a manifest where none exists: %+v", m)
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if len(m.Backend.Preference) == 0 {
		t.Error("default manifest has no backend preference")
	}
	if m.Assemble.Version == "" {
		t.Error("default manifest has no assemble version")
	}
}
