package isolate

import (
	"fmt"
	"strings"
)

// FileExtension is a validated source file extension: no leading dot, and
// never containing "/" or ".".
type FileExtension string

// NewFileExtension validates ext and returns a FileExtension. The empty
// string is valid (meaning "no extension").
func NewFileExtension(ext string) (FileExtension, error) {
	if strings.Contains(ext, "/") {
		return "", fmt.Errorf("isolate: file extension %q must not contain '/'", ext)
	}

	if strings.Contains(ext, ".") {
		return "", fmt.Errorf("isolate: file extension %q must not contain '.'", ext)
	}

	return FileExtension(ext), nil
}

// CompileConfig describes how to turn source into an executable artifact
// inside a box. A Language with a nil CompileConfig is interpreted directly.
type CompileConfig struct {
	// Command is the argv template, e.g. []string{"/usr/bin/gcc", "{source}", "-o", "{output}"}.
	Command []string
	// Limits overrides the runner's compile-phase defaults for this language.
	Limits ResourceLimits
}

// RunConfig describes how to execute a language's program (compiled or
// interpreted) inside a box.
type RunConfig struct {
	// Command is the argv template. For compiled languages this typically
	// references {binary}; for interpreted languages, {source}.
	Command []string
	// Path is the sandbox PATH environment passed to the run, defaulting to
	// "/usr/bin:/bin" when empty.
	Path string
	// Limits overrides the runner's run-phase defaults for this language.
	Limits ResourceLimits
}

// DefaultRunPath is used when a RunConfig does not specify Path.
const DefaultRunPath = "/usr/bin:/bin"

// EffectivePath returns r.Path, or DefaultRunPath if unset.
func (r RunConfig) EffectivePath() string {
	if r.Path == "" {
		return DefaultRunPath
	}

	return r.Path
}

// Language describes one supported programming language: its source file
// extension, optional compile step, and run step.
type Language struct {
	Name      string
	Extension FileExtension
	// Compile is nil for interpreted languages.
	Compile *CompileConfig
	Run     RunConfig
}

// IsCompiled reports whether this language has a compile step.
func (l Language) IsCompiled() bool {
	return l.Compile != nil
}

// SourceName returns the canonical source file name for a submission in this
// language, e.g. "main.py" or "main" if Extension is empty.
func (l Language) SourceName() string {
	if l.Extension == "" {
		return "main"
	}

	return "main." + string(l.Extension)
}

// BinaryName is the canonical compiled artifact name staged into a box.
const BinaryName = "a.out"

// ExpandCommand substitutes the {source}, {output} and {binary} placeholders
// in template with the given values. Callers pass the bare artifact names
// (e.g. "main.c", "a.out"), not sandbox paths: compiled and run commands
// execute with their working directory set to the box root, so a template
// like "./{binary}" is meant to resolve relative to that cwd. Placeholders
// are substituted wherever they appear inside a token; a token containing
// none of them is passed through unchanged.
func ExpandCommand(template []string, source, output, binary string) []string {
	replacer := strings.NewReplacer(
		"{source}", source,
		"{output}", output,
		"{binary}", binary,
	)

	expanded := make([]string, len(template))
	for i, tok := range template {
		expanded[i] = replacer.Replace(tok)
	}

	return expanded
}
