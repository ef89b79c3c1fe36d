package main

import (
	"fmt"
	"io"
	"sort"

	flag "github.com/spf13/pflag"
)

func cmdLanguages(stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("isobox languages", flag.ContinueOnError)
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

	fmt.Fprintln(stdout, "Available languages:")
	fmt.Fprintln(stdout)

	ids := make([]string, 0, len(cfg.Languages))
	for id := range cfg.Languages {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		lang := cfg.Languages[id]

		kind := "interpreted"
		if lang.IsCompiled() {
			kind = "compiled"
		}

		fmt.Fprintf(stdout, "  %-12s %-24s (%s, .%s)\n", id, lang.Name, kind, lang.Extension)
	}

	if len(ids) == 0 {
		fmt.Fprintln(stdout, "  (none configured)")
	}

	return 0
}
