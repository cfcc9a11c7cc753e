// pg - compile, run and store purple garden programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/purplegarden/compiler"
	"github.com/chazu/purplegarden/config"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("purplegarden.pg")

// env carries what every subcommand needs.
type env struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit status.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output (debug logging)")
	configDir := fs.String("config", ".", "Directory to search upwards for garden.toml")
	storePath := fs.String("store", "", "Image store database (overrides garden.toml)")
	trace := fs.Bool("trace", false, "Log every executed instruction")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pg [options] <command> [args...]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  run [-profile] <target>      Run a .garden file, .pgc image or stored image\n")
		fmt.Fprintf(stderr, "  build [-o out] [-put] [-tag name] <file.garden>\n")
		fmt.Fprintf(stderr, "                               Compile to an image file or into the store\n")
		fmt.Fprintf(stderr, "  dis <target>                 Disassemble a program\n")
		fmt.Fprintf(stderr, "  store put <target> [tag]     Add an image to the store\n")
		fmt.Fprintf(stderr, "  store ls                     List stored images\n")
		fmt.Fprintf(stderr, "  store tag <name> <ref>       Name a stored image\n")
		fmt.Fprintf(stderr, "  store rm <ref>               Delete a stored image\n")
		fmt.Fprintf(stderr, "  lsp                          Start the language server on stdio\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nA stored image is referenced by tag, hash or unique hash prefix.\n")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *trace {
		cfg.VM.Trace = true
	}
	verbosity := cfg.Log.Verbosity
	if *verbose || cfg.VM.Trace {
		verbosity = 2
	}
	commonlog.Configure(verbosity, cfg.LogFile())

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "run":
		err = e.runCommand(rest)
	case "build":
		err = e.buildCommand(rest)
	case "dis":
		err = e.disCommand(rest)
	case "store":
		err = e.storeCommand(rest)
	case "lsp":
		err = e.lspCommand(rest)
	default:
		fmt.Fprintf(stderr, "Unknown command %q\n\n", cmd)
		fs.Usage()
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	case errors.Is(err, errUsage):
		e.report(err)
		return 2
	}
	e.report(err)
	return 1
}

// report prints err; compile diagnostics keep their own format.
func (e *env) report(err error) {
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		cerr.Render(e.stderr)
		return
	}
	fmt.Fprintf(e.stderr, "Error: %v\n", err)
}

var errUsage = errors.New("usage error")

// parseError marks a subcommand flag error as a usage error. The flag
// package has already printed the details.
func parseError(cmd string, err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", cmd, errUsage, err)
}
