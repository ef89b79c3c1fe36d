package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

const exampleLanguageTOML = `# Example language dictionary for isobox.
# Reference this file from a top-level config's "language_files" list.

[languages.python3]
name = "Python 3"
extension = "py"

[languages.python3.run]
command = ["/usr/bin/python3", "{source}"]

[languages.cpp17]
name = "C++17 (GCC)"
extension = "cpp"

[languages.cpp17.compile]
command = ["/usr/bin/g++", "-std=c++17", "-O2", "{source}", "-o", "{output}"]

[languages.cpp17.run]
command = ["./{binary}"]
`

// cmdInit writes a starter language dictionary file, the way a new
// deployment bootstraps its configuration.
func cmdInit(stdout, stderr io.Writer, args []string) int {
	fs := flag.NewFlagSet("isobox init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	output := fs.StringP("output", "o", "languages.toml", "output path for the example language file")
	force := fs.BoolP("force", "f", false, "overwrite an existing file")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if !*force {
		if _, err := os.Stat(*output); err == nil {
			fprintError(stderr, fmt.Errorf("%s already exists, use --force to overwrite", *output))

			return 1
		}
	}

	if err := os.WriteFile(*output, []byte(exampleLanguageTOML), 0o644); err != nil {
		fprintError(stderr, err)

		return 1
	}

	fmt.Fprintf(stdout, "Wrote example language file to %s\n", *output)

	return 0
}
