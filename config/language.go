// Package config loads the runner's top-level configuration and its
// per-language command dictionary from disk.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/nullbox/isobox/isolate"
)

// compileSpec mirrors isolate.CompileConfig's TOML shape.
type compileSpec struct {
	Command []string       `toml:"command"`
	Limits  *limitsSpec    `toml:"limits"`
}

// runSpec mirrors isolate.RunConfig's TOML shape.
type runSpec struct {
	Command []string    `toml:"command"`
	Path    string      `toml:"path"`
	Limits  *limitsSpec `toml:"limits"`
}

// limitsSpec mirrors isolate.ResourceLimits, but with plain Go-optional
// (pointer) fields matching TOML's native representation of "absent key".
type limitsSpec struct {
	TimeLimit      *float64 `toml:"time_limit"`
	WallTimeLimit  *float64 `toml:"wall_time_limit"`
	MemoryLimit    *uint64  `toml:"memory_limit"`
	StackLimit     *uint64  `toml:"stack_limit"`
	MaxProcesses   *uint32  `toml:"max_processes"`
	MaxOutput      *uint64  `toml:"max_output"`
	MaxOpenFiles   *uint32  `toml:"max_open_files"`
	ExtraTime      *float64 `toml:"extra_time"`
}

func (l *limitsSpec) toResourceLimits() isolate.ResourceLimits {
	if l == nil {
		return isolate.ResourceLimits{}
	}

	return isolate.ResourceLimits{
		CPUTimeSeconds:    l.TimeLimit,
		WallTimeSeconds:   l.WallTimeLimit,
		MemoryKB:          l.MemoryLimit,
		StackKB:           l.StackLimit,
		MaxProcesses:      l.MaxProcesses,
		MaxOutputKB:       l.MaxOutput,
		MaxOpenFiles:      l.MaxOpenFiles,
		ExtraGraceSeconds: l.ExtraTime,
	}
}

// languageSpec is the raw TOML shape of one [languages.<id>] table.
type languageSpec struct {
	Name      string       `toml:"name"`
	Extension string       `toml:"extension"`
	Compile   *compileSpec `toml:"compile"`
	Run       runSpec      `toml:"run"`
}

// LanguageFile is the raw decode target for a language TOML dictionary:
// top-level [languages.<id>] tables.
type LanguageFile struct {
	Languages map[string]languageSpec `toml:"languages"`
}

// LoadLanguages parses a TOML language dictionary file, returning a map
// keyed by language id. It rejects entries with an empty name, extension,
// or run command, matching the original loader's validation.
func LoadLanguages(path string) (map[string]isolate.Language, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading language file %s: %w", path, err)
	}

	return ParseLanguagesTOML(content)
}

// ParseLanguagesTOML decodes and validates TOML language dictionary content.
func ParseLanguagesTOML(content []byte) (map[string]isolate.Language, error) {
	var file LanguageFile

	if _, err := toml.Decode(string(content), &file); err != nil {
		return nil, fmt.Errorf("config: parsing language TOML: %w", err)
	}

	languages := make(map[string]isolate.Language, len(file.Languages))

	for id, spec := range file.Languages {
		lang, err := spec.toLanguage(id)
		if err != nil {
			return nil, err
		}

		languages[id] = lang
	}

	return languages, nil
}

func (s languageSpec) toLanguage(id string) (isolate.Language, error) {
	if s.Name == "" {
		return isolate.Language{}, fmt.Errorf("config: language %q has empty name", id)
	}

	if s.Extension == "" {
		return isolate.Language{}, fmt.Errorf("config: language %q has empty extension", id)
	}

	if len(s.Run.Command) == 0 {
		return isolate.Language{}, fmt.Errorf("config: language %q has empty run command", id)
	}

	ext, err := isolate.NewFileExtension(s.Extension)
	if err != nil {
		return isolate.Language{}, fmt.Errorf("config: language %q: %w", id, err)
	}

	lang := isolate.Language{
		Name:      s.Name,
		Extension: ext,
		Run: isolate.RunConfig{
			Command: s.Run.Command,
			Path:    s.Run.Path,
			Limits:  s.Run.Limits.toResourceLimits(),
		},
	}

	if s.Compile != nil {
		if len(s.Compile.Command) == 0 {
			return isolate.Language{}, fmt.Errorf("config: language %q has empty compile command", id)
		}

		lang.Compile = &isolate.CompileConfig{
			Command: s.Compile.Command,
			Limits:  s.Compile.Limits.toResourceLimits(),
		}
	}

	return lang, nil
}
