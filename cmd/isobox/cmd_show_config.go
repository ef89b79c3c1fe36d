package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

func cmdShowConfig(stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("isobox show-config", flag.ContinueOnError)
	fs.SetOutput(stderr)

	g := bindGlobalFlags(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfigOrDefault(g.configPath)
	if err != nil {
		fprintError(stderr, err)

		return 1
	}

	fmt.Fprintf(stdout, "isolate_path: %s\n", cfg.IsolateBinary())
	fmt.Fprintf(stdout, "cgroup:       %t\n", cfg.Cgroup)
	fmt.Fprintf(stdout, "cg_root:      %s\n", cfg.CgRoot)
	fmt.Fprintf(stdout, "languages:    %d configured\n", len(cfg.Languages))

	fmt.Fprintln(stdout, "\ndefault_limits:")
	printLimit(stdout, "time_limit", cfg.DefaultLimits.CPUTimeSeconds)
	printLimit(stdout, "wall_time_limit", cfg.DefaultLimits.WallTimeSeconds)
	printLimit(stdout, "memory_limit", cfg.DefaultLimits.MemoryKB)
	printLimit(stdout, "stack_limit", cfg.DefaultLimits.StackKB)
	printLimit(stdout, "max_processes", cfg.DefaultLimits.MaxProcesses)
	printLimit(stdout, "max_output", cfg.DefaultLimits.MaxOutputKB)
	printLimit(stdout, "max_open_files", cfg.DefaultLimits.MaxOpenFiles)
	printLimit(stdout, "extra_time", cfg.DefaultLimits.ExtraGraceSeconds)

	if len(cfg.SandboxMounts) > 0 {
		fmt.Fprintln(stdout, "\nsandbox_mounts:")

		for _, m := range cfg.SandboxMounts {
			fmt.Fprintf(stdout, "  %s -> %s (writable=%t optional=%t)\n", m.Source, m.Target, m.Writable, m.Optional)
		}
	}

	return 0
}

func printLimit[T any](w io.Writer, name string, v *T) {
	if v == nil {
		fmt.Fprintf(w, "  %-16s (unset)\n", name)

		return
	}

	fmt.Fprintf(w, "  %-16s %v\n", name, *v)
}
