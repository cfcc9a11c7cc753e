package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/chazu/purplegarden/image"
	"github.com/chazu/purplegarden/server"
	"github.com/chazu/purplegarden/vm"
)

// pg store <put|ls|tag|rm> ...
func (e *env) storeCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("store: %w: expected put, ls, tag or rm", errUsage)
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "put":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("store put: %w: expected <target> [tag]", errUsage)
		}
		builtins := vm.StdBuiltins()
		img, err := e.load(args[0], builtins)
		if err != nil {
			return err
		}
		data, err := image.Marshal(img, builtins)
		if err != nil {
			return err
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
		if len(args) == 2 {
			if err := s.Tag(args[1], h); err != nil {
				return err
			}
		}
		fmt.Fprintln(e.stdout, h)
		return nil

	case "ls":
		s, err := e.openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		entries, err := s.List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HASH\tSIZE\tCREATED\tTAGS")
		for _, en := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				en.Hash[:12], en.Size, en.Created.Format("2006-01-02 15:04:05"), strings.Join(en.Tags, ","))
		}
		return w.Flush()

	case "tag":
		if len(args) != 2 {
			return fmt.Errorf("store tag: %w: expected <name> <ref>", errUsage)
		}
		s, err := e.openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		h, err := s.Resolve(args[1])
		if err != nil {
			return err
		}
		return s.Tag(args[0], h)

	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("store rm: %w: expected <ref>", errUsage)
		}
		s, err := e.openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		h, err := s.Resolve(args[0])
		if err != nil {
			return err
		}
		return s.Delete(h)
	}
	return fmt.Errorf("store: %w: unknown subcommand %q", errUsage, sub)
}

// pg lsp
func (e *env) lspCommand(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("lsp: %w", errUsage)
	}
	return server.NewLSP(nil).Run()
}
