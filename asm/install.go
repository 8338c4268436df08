package asm

import (
	"github.com/chazu/classforge/loader"
)

// InstallTransient installs finished class bytes against a host class with
// anonymous, collectible identity. The loaded class is reachable only
// through the returned handle.
func InstallTransient(host *loader.Class, code []byte) (*loader.Class, error) {
	return loader.Install(code, host)
}

// InstallNestmate installs finished class bytes as a durable member of the
// host class's nest. The loaded class is registered under its own name and
// survives independently of the caller's references.
func InstallNestmate(host *loader.Class, code []byte) (*loader.Class, error) {
	return loader.Install(code, host, loader.Nestmate, loader.Strong)
}

// DefineTransient finalizes the assembly and installs the result
// transiently.
func (a *Assembly) DefineTransient(host *loader.Class) (*loader.Class, error) {
	code, err := a.ToByteArray()
	if err != nil {
		return nil, err
	}
	return InstallTransient(host, code)
}

// DefineNestmate finalizes the assembly and installs the result as a
// nestmate of the host.
func (a *Assembly) DefineNestmate(host *loader.Class) (*loader.Class, error) {
	code, err := a.ToByteArray()
	if err != nil {
		return nil, err
	}
	return InstallNestmate(host, code)
}
