// Forge CLI - assemble, inspect, and install classes described in TOML.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	parser "github.com/wreulicke/classfile-parser"

	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/classforge/asm"
	"github.com/chazu/classforge/backend"
	"github.com/chazu/classforge/bundle"
	"github.com/chazu/classforge/loader"
	"github.com/chazu/classforge/manifest"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	m := loadManifest()
	commonlog.Configure(m.Log.Verbosity, nil)
	if err := asm.SetPreference(m.Backend.Preference...); err != nil {
		fail(err)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "asm":
		err = cmdAsm(flag.Args()[1:])
	case "install":
		err = cmdInstall(flag.Args()[1:])
	case "inspect":
		err = cmdInspect(flag.Args()[1:])
	case "backends":
		err = cmdBackends()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: forge <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  asm -f class.toml [-o out.cfb] [-host NAME] [-nestmate]\n")
	fmt.Fprintf(os.Stderr, "      Assemble a class description into an installable bundle.\n")
	fmt.Fprintf(os.Stderr, "  install -f out.cfb [-run METHOD]\n")
	fmt.Fprintf(os.Stderr, "      Install a bundle and optionally instantiate and run a method.\n")
	fmt.Fprintf(os.Stderr, "  inspect -f out.cfb\n")
	fmt.Fprintf(os.Stderr, "      Print the structure of a bundle's class bytes.\n")
	fmt.Fprintf(os.Stderr, "  backends\n")
	fmt.Fprintf(os.Stderr, "      List registered assembly backends and the resolution order.\n")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadManifest finds forge.toml upward from the working directory, falling
// back to defaults when none exists.
func loadManifest() *manifest.Manifest {
	cwd, err := os.Getwd()
	if err != nil {
		return manifest.Default()
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fail(err)
	}
	if m == nil {
		return manifest.Default()
	}
	return m
}

func cmdAsm(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	file := fs.String("f", "", "Class description TOML file")
	out := fs.String("o", "", "Output bundle file (default: stdout)")
	host := fs.String("host", "java/lang/Object", "Host class the bundle installs against")
	nestmate := fs.Bool("nestmate", false, "Install as a durable nestmate instead of transiently")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("asm requires -f")
	}
	desc, err := loadClassDesc(*file)
	if err != nil {
		return err
	}
	code, err := assemble(desc)
	if err != nil {
		return err
	}

	b := &bundle.Bundle{
		Name: asm.Slash(desc.Name),
		Host: asm.Slash(*host),
		Code: code,
	}
	if *nestmate {
		b.Options = []string{string(loader.Nestmate), string(loader.Strong)}
	}
	data, err := bundle.Marshal(b)
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Assembled %s (%d bytes of class, %d bytes of bundle)\n", desc.Name, len(code), len(data))
	return nil
}

func cmdInstall(args []string) error {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	file := fs.String("f", "", "Bundle file")
	run := fs.String("run", "", "Instantiate the class and run this zero-argument method")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("install requires -f")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	b, err := bundle.Unmarshal(data)
	if err != nil {
		return err
	}

	host := loader.Lookup(b.Host)
	if host == nil {
		return fmt.Errorf("host class %s is not installed", b.Host)
	}
	opts := make([]loader.Option, len(b.Options))
	for i, o := range b.Options {
		opts[i] = loader.Option(o)
	}

	c, err := loader.Install(b.Code, host, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("Installed %s (hidden=%t)\n", c.Name(), c.IsHidden())

	if *run != "" {
		inst, err := c.NewInstance()
		if err != nil {
			return err
		}
		result, err := inst.Invoke(*run)
		if err != nil {
			return err
		}
		fmt.Printf("%s() = %v\n", *run, result)
	}
	return nil
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	file := fs.String("f", "", "Bundle file")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("inspect requires -f")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	b, err := bundle.Unmarshal(data)
	if err != nil {
		return err
	}

	cf, err := parser.New(bytes.NewReader(b.Code)).Parse()
	if err != nil {
		return fmt.Errorf("bundle %s carries unparseable class bytes: %w", b.Name, err)
	}
	cp := cf.ConstantPool

	name, err := cf.ThisClassName()
	if err != nil {
		return err
	}
	super, err := cf.SuperClassName()
	if err != nil {
		return err
	}
	fmt.Printf("class %s extends %s (access 0x%04x)\n", name, super, cf.AccessFlags)
	fmt.Printf("host %s, options %s\n", b.Host, strings.Join(b.Options, ","))

	for _, f := range cf.Fields {
		fname, err := f.Name(cp)
		if err != nil {
			return err
		}
		fdesc, err := f.Descriptor(cp)
		if err != nil {
			return err
		}
		fmt.Printf("  field  %s %s\n", fname, fdesc)
	}
	for _, mm := range cf.Methods {
		mname, err := mm.Name(cp)
		if err != nil {
			return err
		}
		mdesc, err := mm.Descriptor(cp)
		if err != nil {
			return err
		}
		if code := mm.Code(); code != nil {
			fmt.Printf("  method %s%s (stack %d, locals %d, %d bytes)\n",
				mname, mdesc, code.MaxStack, code.MaxLocals, len(code.Codes))
		} else {
			fmt.Printf("  method %s%s (no body)\n", mname, mdesc)
		}
	}
	return nil
}

func cmdBackends() error {
	names := backend.Names()
	p, err := asm.Backend()
	if err != nil {
		return err
	}
	for _, name := range names {
		marker := " "
		if name == p.Name() {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	return nil
}
