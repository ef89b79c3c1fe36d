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

func cmdRun(stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("isobox run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	g := bindGlobalFlags(fs)
	language := fs.StringP("language", "l", "", "language id to run")
	sourcePath := fs.StringP("source", "s", "", "source file path (default: read from stdin)")
	inputPath := fs.StringP("input", "i", "", "stdin file for the program being run (default: none)")

	timeLimit := &float64MB{}
	memLimit := &float64MB{}
	fs.VarP(timeLimit, "time-limit", "t", "run time limit override, in seconds")
	fs.VarP(memLimit, "memory-limit", "m", "run memory limit override, in KB")

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

	source, err := readSource(stdin, *sourcePath)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	var programStdin []byte

	if *inputPath != "" {
		programStdin, err = os.ReadFile(*inputPath)
		if err != nil {
			fprintError(stderr, err)

			return 1
		}
	}

	pool := isolate.NewBoxPool(cfg.IsolateBinary(), g.boxID, 1, cfg.Cgroup)
	runner := isolate.NewRunner(pool)

	logger.Section("Run")
	logger.Bulletf("language: %s", binding.Lang.Name)

	overrides := userLimitsFromFlags(fs, timeLimit, memLimit)

	result, compileResult, err := runner.CompileAndRun(context.Background(), binding, isolate.CompileAndRunRequest{
		Source: source,
		Limits: overrides,
		Stdin:  programStdin,
	})
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	if compileResult != nil && binding.Lang.IsCompiled() && !compileResult.IsSuccess() {
		fmt.Fprintln(stderr, "Compilation failed:")
		fmt.Fprintln(stderr, compileResult.Diagnostics)

		return 1
	}

	if len(result.Stdout) > 0 {
		stdout.Write(result.Stdout)
	}

	if len(result.Stderr) > 0 {
		stderr.Write(result.Stderr)
	}

	logger.Result("execution", result.String())

	if result.IsSuccess() {
		return 0
	}

	if result.ExitCode != nil {
		return *result.ExitCode
	}

	return 1
}
