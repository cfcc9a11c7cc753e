package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/purplegarden/compiler"
	"github.com/chazu/purplegarden/image"
	"github.com/chazu/purplegarden/store"
	"github.com/chazu/purplegarden/vm"
)

// SourceExt and ImageExt select how a target path is loaded.
const (
	SourceExt = ".garden"
	ImageExt  = ".pgc"
)

// load resolves a target to an image. A .garden path is compiled, any other
// existing file is decoded as an image, and anything else is looked up in
// the store.
func (e *env) load(target string, builtins *vm.Registry) (*vm.Image, error) {
	if strings.HasSuffix(target, SourceExt) {
		return compileFile(target, builtins)
	}
	if _, err := os.Stat(target); err == nil {
		return image.ReadFile(target, builtins)
	}

	s, err := e.openStore()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	data, _, err := s.Load(target)
	if err != nil {
		return nil, err
	}
	return image.Unmarshal(data, builtins)
}

func compileFile(path string, builtins *vm.Registry) (*vm.Image, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	nodes, err := compiler.Parse(string(src))
	if err != nil {
		return nil, err
	}
	c := compiler.NewCompiler(builtins)
	for _, n := range nodes {
		if err := c.Compile(n); err != nil {
			return nil, err
		}
	}
	return c.Finalize()
}

func (e *env) openStore() (*store.Store, error) {
	return store.Open(e.cfg.StorePath())
}

// pg run [-profile] <target>
func (e *env) runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	profile := fs.Bool("profile", false, "Print instruction and call counts to stderr")
	if err := fs.Parse(args); err != nil {
		return parseError("run", err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: %w: expected a target", errUsage)
	}
	builtins := vm.StdBuiltins()
	img, err := e.load(fs.Arg(0), builtins)
	if err != nil {
		return err
	}

	opts := e.cfg.VMOptions()
	opts.Builtins = builtins
	opts.Output = e.stdout
	if *profile {
		opts.Profiler = vm.NewProfiler()
	}
	m := vm.New(img, opts)
	err = m.Run()
	if opts.Profiler != nil {
		opts.Profiler.Report(e.stderr, 10)
	}
	if err != nil {
		return err
	}
	stats := m.Stats()
	log.Debugf("finished: %d collections, %d freed, %d live", stats.Collections, stats.TotalFreed, m.Heap().Live())
	return nil
}

// pg dis <target>
func (e *env) disCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("dis: %w: expected a target", errUsage)
	}
	builtins := vm.StdBuiltins()
	img, err := e.load(args[0], builtins)
	if err != nil {
		return err
	}
	fmt.Fprint(e.stdout, vm.DisassembleGlobals(img))
	fmt.Fprint(e.stdout, vm.Disassemble(img, builtins))
	return nil
}

// pg build [-o out.pgc] [-put] [-tag name] <file.garden>
func (e *env) buildCommand(args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	output := fs.String("o", "", "Output image path (default: source name with .pgc)")
	put := fs.Bool("put", false, "Also add the image to the store")
	tag := fs.String("tag", "", "Tag the stored image (implies -put)")
	if err := fs.Parse(args); err != nil {
		return parseError("build", err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("build: %w: expected one source file", errUsage)
	}
	src := fs.Arg(0)
	if !strings.HasSuffix(src, SourceExt) {
		return fmt.Errorf("build: %s is not a %s file", src, SourceExt)
	}

	builtins := vm.StdBuiltins()
	img, err := compileFile(src, builtins)
	if err != nil {
		return err
	}
	data, err := image.Marshal(img, builtins)
	if err != nil {
		return err
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(src, SourceExt) + ImageExt
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s (%d instructions, %d bytes)\n", filepath.Base(out), len(img.Code), len(data))

	if !*put && *tag == "" {
		return nil
	}
	s, err := e.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	h, err := s.Put(data)
	if err != nil {
		return err
	}
	if *tag != "" {
		if err := s.Tag(*tag, h); err != nil {
			return err
		}
	}
	fmt.Fprintln(e.stdout, h)
	return nil
}
