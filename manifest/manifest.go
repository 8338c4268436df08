// Package manifest handles forge.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a forge.toml project configuration.
type Manifest struct {
	Project  Project  `toml:"project"`
	Backend  Backend  `toml:"backend"`
	Assemble Assemble `toml:"assemble"`
	Log      Log      `toml:"log"`

	// Dir is the directory containing the forge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Backend configures code-generation backend resolution.
type Backend struct {
	// Preference is the backend resolution order by registry name.
	Preference []string `toml:"preference"`
}

// Assemble configures class assembly defaults.
type Assemble struct {
	// Version is the symbolic class version tag, e.g. "V1_8".
	Version string `toml:"version"`

	// Superclass is the default superclass for assembled classes.
	Superclass string `toml:"superclass"`
}

// Log configures logging output.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Load parses a forge.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "forge.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a forge.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "forge.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the configuration used when no forge.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if len(m.Backend.Preference) == 0 {
		m.Backend.Preference = []string{"external", "classfile"}
	}
	if m.Assemble.Version == "" {
		m.Assemble.Version = "V1_8"
	}
	if m.Assemble.Superclass == "" {
		m.Assemble.Superclass = "java/lang/Object"
	}
}
