// Package loader installs assembled class bytes into the running process.
//
// Installation parses and validates the bytes, links the class against its
// already-installed superclass, and hands back an instantiable Class. Two
// lifetime policies exist: transient installs get an anonymous, suffixed
// identity that lives only as long as the returned handle; strong nestmate
// installs are registered durably and recorded as members of the host
// class's nest.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	parser "github.com/wreulicke/classfile-parser"
)

var log = commonlog.GetLogger("forge.loader")

// Option is an installation flag. The zero set of options yields a
// transient, anonymous install.
type Option string

const (
	// Nestmate records the unit as a member of the host class's nest.
	Nestmate Option = "NESTMATE"

	// Strong gives the unit durable registry identity instead of an
	// anonymous, collectible one.
	Strong Option = "STRONG"
)

// Install loads class bytes against a host class and returns the loaded,
// instantiable class. The host supplies the classloading context: its nest
// receives the unit when Nestmate is given. Invalid bytes are rejected with
// a load failure; nothing is registered in that case.
func Install(code []byte, host *Class, opts ...Option) (*Class, error) {
	if host == nil {
		return nil, errors.New("loader: install requires a host class")
	}

	nestmate, strong := false, false
	for _, opt := range opts {
		switch opt {
		case Nestmate:
			nestmate = true
		case Strong:
			strong = true
		default:
			return nil, fmt.Errorf("loader: unknown install option %q", string(opt))
		}
	}

	c, err := define(code)
	if err != nil {
		return nil, err
	}
	c.host = host

	if !strong {
		// Anonymous identity: suffix the name, keep the class out of the
		// registry entirely.
		c.hidden = true
		c.name = fmt.Sprintf("%s/0x%s", c.name, anonSuffix())
	}
	if nestmate {
		nestHost := host
		if host.nestHost != nil {
			nestHost = host.nestHost
		}
		c.nestHost = nestHost
		nestHost.addNestMember(c)
	}
	if strong {
		if err := register(c); err != nil {
			return nil, err
		}
	}

	log.Infof("installed %s (host=%s nestmate=%t strong=%t)", c.name, host.name, nestmate, strong)
	return c, nil
}

// define parses class bytes into an unlinked Class.
func define(code []byte) (*Class, error) {
	cf, err := parser.New(bytes.NewReader(code)).Parse()
	if err != nil {
		return nil, fmt.Errorf("loader: rejected class bytes: %w", err)
	}
	cp := cf.ConstantPool

	name, err := cf.ThisClassName()
	if err != nil {
		return nil, fmt.Errorf("loader: class bytes carry no name: %w", err)
	}
	if cf.SuperClass == 0 {
		return nil, fmt.Errorf("loader: class %s declares no superclass", name)
	}
	superName, err := cf.SuperClassName()
	if err != nil {
		return nil, fmt.Errorf("loader: class %s has an unresolvable superclass: %w", name, err)
	}
	super := Lookup(superName)
	if super == nil {
		return nil, fmt.Errorf("loader: superclass %s of %s is not installed", superName, name)
	}

	c := &Class{
		name:    name,
		access:  int(cf.AccessFlags),
		super:   super,
		methods: make(map[string]*Method),
		cp:      cp,
	}

	for _, f := range cf.Fields {
		fname, err := f.Name(cp)
		if err != nil {
			return nil, fmt.Errorf("loader: unreadable field in %s: %w", name, err)
		}
		fdesc, err := f.Descriptor(cp)
		if err != nil {
			return nil, fmt.Errorf("loader: unreadable field descriptor in %s: %w", name, err)
		}
		c.fields = append(c.fields, FieldDecl{
			Name:       fname,
			Descriptor: fdesc,
			Access:     int(f.AccessFlags),
		})
	}

	for _, m := range cf.Methods {
		mname, err := m.Name(cp)
		if err != nil {
			return nil, fmt.Errorf("loader: unreadable method in %s: %w", name, err)
		}
		mdesc, err := m.Descriptor(cp)
		if err != nil {
			return nil, fmt.Errorf("loader: unreadable method descriptor in %s: %w", name, err)
		}
		method := &Method{
			class:      c,
			name:       mname,
			descriptor: mdesc,
			access:     int(m.AccessFlags),
		}
		if codeAttr := m.Code(); codeAttr != nil {
			method.maxStack = int(codeAttr.MaxStack)
			method.maxLocals = int(codeAttr.MaxLocals)
			method.code = codeAttr.Codes
		}
		c.methods[mname+mdesc] = method
	}
	return c, nil
}

// anonSuffix returns a short unique identity suffix for a transient class.
func anonSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
