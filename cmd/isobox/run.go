package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/nullbox/isobox/config"
	"github.com/nullbox/isobox/internal/obslog"
	"github.com/nullbox/isobox/isolate"
)

const programName = "isobox"

// globalFlags are the flags shared by every subcommand.
type globalFlags struct {
	configPath string
	boxID      uint32
	verbose    bool
}

func bindGlobalFlags(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}

	fs.StringVarP(&g.configPath, "config", "c", "", "path to the top-level config file")
	fs.Uint32VarP(&g.boxID, "box-id", "b", 0, "sandbox box id to use")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "print progress details (command, language, cgroup fallback, result) to stderr")

	return g
}

// Run is the CLI's isolated entry point: every dependency on process-global
// state (stdio, os.Args) is passed in explicitly, so tests can
// drive it without touching the real process.
func Run(stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	if len(args) < 2 {
		printUsage(stdout)

		return 0
	}

	sub := args[1]
	rest := args[2:]

	switch sub {
	case "init":
		return cmdInit(stdout, stderr, rest)
	case "compile":
		return cmdCompile(stdin, stdout, stderr, rest)
	case "run":
		return cmdRun(stdin, stdout, stderr, rest)
	case "languages":
		return cmdLanguages(stdout, stderr, rest)
	case "show-config":
		return cmdShowConfig(stdout, stderr, rest)
	case "-h", "--help", "help":
		printUsage(stdout)

		return 0
	default:
		fmt.Fprintf(stderr, "isobox: unknown subcommand %q\n\n", sub)
		printUsage(stderr)

		return 1
	}
}

func loadConfigOrDefault(path string) (config.Config, error) {
	if path == "" {
		return config.Empty(), nil
	}

	return config.Load(path)
}

func newLogger(stderr io.Writer, verbose bool) *obslog.Logger {
	if !verbose {
		return obslog.New(nil)
	}

	return obslog.New(stderr)
}

// prepareCgroup sets up the cgroup v2 hierarchy when cfg requests it,
// downgrading to RLIMIT_AS-style limiting (cfg.Cgroup = false) rather than
// failing the whole command when the hierarchy can't be prepared: a missing
// memory controller or insufficient privilege is common in constrained CI
// environments and isn't worth refusing to run at all.
func prepareCgroup(cfg *config.Config, logger *obslog.Logger) {
	if !cfg.Cgroup {
		return
	}

	if err := isolate.PrepareCgroup(cfg.CgRoot); err != nil {
		logger.Bulletf("cgroup setup failed (%v), falling back to RLIMIT_AS memory limiting", err)
		cfg.Cgroup = false
	}
}

const usageHelp = `isobox - sandboxed code compilation and execution

Usage: isobox <command> [flags]

Commands:
  init          write an example language dictionary file
  compile       compile source read from stdin
  run           compile (if needed) and run source read from stdin
  languages     list configured languages
  show-config   print the effective configuration

Global flags:
  -c, --config <file>   path to the top-level config file
  -b, --box-id <id>      sandbox box id to use (default 0)
  -v, --verbose          print progress details to stderr

Run "isobox <command> --help" for command-specific flags.
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usageHelp)
}

func fprintError(w io.Writer, err error) {
	fmt.Fprintf(w, "isobox: %v\n", err)
}
