package main

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/nullbox/isobox/config"
	"github.com/nullbox/isobox/isolate"
)

// userLimitsFromFlags builds a ResourceLimits containing only the limits a
// caller explicitly passed, so unset flags never clobber per-language
// defaults during the merge.
func userLimitsFromFlags(fs *flag.FlagSet, timeLimit, memLimit *float64MB) isolate.ResourceLimits {
	var limits isolate.ResourceLimits

	if fs.Changed("time-limit") {
		limits.CPUTimeSeconds = isolate.Float64(timeLimit.value)
	}

	if fs.Changed("memory-limit") {
		limits.MemoryKB = isolate.Uint64(uint64(memLimit.value))
	}

	return limits
}

// float64MB is a tiny pflag.Value adapter so -t/-m accept plain floats
// without pulling in a units-parsing dependency for two flags.
type float64MB struct{ value float64 }

func (f *float64MB) String() string   { return fmt.Sprintf("%g", f.value) }
func (f *float64MB) Set(s string) error {
	_, err := fmt.Sscanf(s, "%g", &f.value)

	return err
}
func (f *float64MB) Type() string { return "float" }

func cmdCompile(stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("isobox compile", flag.ContinueOnError)
	fs.SetOutput(stderr)

	g := bindGlobalFlags(fs)
	language := fs.StringP("language", "l", "", "language id to compile for")
	sourcePath := fs.StringP("source", "s", "", "source file path (default: read from stdin)")

	timeLimit := &float64MB{}
	memLimit := &float64MB{}
	fs.VarP(timeLimit, "time-limit", "t", "compile time limit override, in seconds")
	fs.VarP(memLimit, "memory-limit", "m", "compile memory limit override, in KB")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *language == "" {
		fprintError(stderr, fmt.Errorf("--language is required"))

		return 1
	}

	cfg, err := loadConfigOrDefault(g.configPath)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	logger := newLogger(stderr, g.verbose)
	prepareCgroup(&cfg, logger)

	binding, err := config.Bind(cfg, *language)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	if !binding.Lang.IsCompiled() {
		fmt.Fprintf(stdout, "Language %q does not require compilation\n", binding.Lang.Name)

		return 0
	}

	source, err := readSource(stdin, *sourcePath)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	pool := isolate.NewBoxPool(cfg.IsolateBinary(), g.boxID, 1, cfg.Cgroup)
	runner := isolate.NewRunner(pool)

	logger.Section("Compile")
	logger.Bulletf("language: %s", binding.Lang.Name)

	_, release, result, err := runner.Compile(context.Background(), binding, source, userLimitsFromFlags(fs, timeLimit, memLimit))
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	defer release()

	if result.IsSuccess() {
		fmt.Fprintln(stdout, "Compilation successful")
		fmt.Fprintf(stdout, "Time: %.3fs\n", result.CPUTimeSeconds)
		fmt.Fprintf(stdout, "Memory: %d KB\n", result.MemoryKB)

		return 0
	}

	fmt.Fprintln(stdout, "Compilation failed")

	if result.ExitCode != nil {
		fmt.Fprintf(stdout, "Exit code: %d\n", *result.ExitCode)
	}

	if result.Diagnostics != "" {
		fmt.Fprintf(stdout, "\nCompiler output:\n%s\n", result.Diagnostics)
	}

	return 1
}

func readSource(stdin io.Reader, path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(stdin)
	}

	return os.ReadFile(path)
}
