package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/nullbox/isobox/isolate"
)

// DefaultCgRoot is used when a config file omits cg_root.
const DefaultCgRoot = "/sys/fs/cgroup/isolate"

// mountSpec is the JSON shape of one sandbox_mounts entry.
type mountSpec struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Writable bool   `json:"writable,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

func (m mountSpec) toMountConfig() isolate.MountConfig {
	return isolate.MountConfig{Source: m.Source, Target: m.Target, Writable: m.Writable, Optional: m.Optional}
}

// raw mirrors the on-disk JWCC (JSON-with-comments) document shape; decoded
// via hujson then lifted into Config.
type raw struct {
	IsolatePath   string       `json:"isolate_path,omitempty"`
	Cgroup        bool         `json:"cgroup,omitempty"`
	CgRoot        string       `json:"cg_root,omitempty"`
	SandboxMounts []mountSpec  `json:"sandbox_mounts,omitempty"`
	DefaultLimits *limitsSpec2 `json:"default_limits,omitempty"`
	LanguageFiles []string     `json:"language_files,omitempty"`
}

// limitsSpec2 is config.go's JSON counterpart to language.go's TOML
// limitsSpec; duplicated rather than shared because the two source formats
// use different tag conventions and this is the top-level, not per-language,
// defaults layer.
type limitsSpec2 struct {
	TimeLimit     *float64 `json:"time_limit,omitempty"`
	WallTimeLimit *float64 `json:"wall_time_limit,omitempty"`
	MemoryLimit   *uint64  `json:"memory_limit,omitempty"`
	StackLimit    *uint64  `json:"stack_limit,omitempty"`
	MaxProcesses  *uint32  `json:"max_processes,omitempty"`
	MaxOutput     *uint64  `json:"max_output,omitempty"`
	MaxOpenFiles  *uint32  `json:"max_open_files,omitempty"`
	ExtraTime     *float64 `json:"extra_time,omitempty"`
}

func (l *limitsSpec2) toResourceLimits() isolate.ResourceLimits {
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

// Config is the fully loaded, ready-to-use runner configuration: top-level
// settings plus every language pulled in from LanguageFiles.
type Config struct {
	IsolatePath   string // empty means "resolve from PATH"
	Cgroup        bool
	CgRoot        string
	SandboxMounts []isolate.MountConfig
	DefaultLimits isolate.ResourceLimits
	Languages     map[string]isolate.Language
}

// Empty returns a Config with no languages and package defaults, the
// starting point for a from-scratch builder or for tests.
func Empty() Config {
	return Config{CgRoot: DefaultCgRoot, Languages: map[string]isolate.Language{}}
}

// Load reads and validates the top-level config document at path (JWCC:
// JSON plus comments and trailing commas), then loads every TOML file
// named in its language_files list, relative to path's directory.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	return parse(content, dirOf(path))
}

// ParseJSON parses top-level config content directly (language_files paths,
// if any, are resolved relative to baseDir).
func ParseJSON(content []byte, baseDir string) (Config, error) {
	return parse(content, baseDir)
}

func parse(content []byte, baseDir string) (Config, error) {
	standardized, err := hujson.Standardize(content)
	if err != nil {
		return Config{}, fmt.Errorf("config: parsing: %w", err)
	}

	var r raw

	if err := json.Unmarshal(standardized, &r); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}

	defaultLimits := defaultRunLimits()
	if r.DefaultLimits != nil {
		// Present-but-partial tables are taken as specified: unset fields
		// stay nil rather than being backfilled from the package defaults.
		defaultLimits = r.DefaultLimits.toResourceLimits()
	}

	cfg := Config{
		IsolatePath:   r.IsolatePath,
		Cgroup:        r.Cgroup,
		CgRoot:        r.CgRoot,
		DefaultLimits: defaultLimits,
		Languages:     map[string]isolate.Language{},
	}

	if cfg.CgRoot == "" {
		cfg.CgRoot = DefaultCgRoot
	}

	for _, m := range r.SandboxMounts {
		cfg.SandboxMounts = append(cfg.SandboxMounts, m.toMountConfig())
	}

	for _, rel := range r.LanguageFiles {
		path := joinIfRelative(baseDir, rel)

		langs, err := LoadLanguages(path)
		if err != nil {
			return Config{}, err
		}

		for id, lang := range langs {
			cfg.Languages[id] = lang
		}
	}

	return cfg, nil
}

// GetLanguage looks up a language by id.
func (c Config) GetLanguage(id string) (isolate.Language, error) {
	lang, ok := c.Languages[id]
	if !ok {
		return isolate.Language{}, fmt.Errorf("config: language %q not found in configuration", id)
	}

	return lang, nil
}

// IsolateBinary returns the configured supervisor path, or "isolate" to be
// resolved from PATH if unset.
func (c Config) IsolateBinary() string {
	if c.IsolatePath == "" {
		return "isolate"
	}

	return c.IsolatePath
}

// EffectiveLimits merges overrides on top of c.DefaultLimits.
func (c Config) EffectiveLimits(overrides isolate.ResourceLimits) isolate.ResourceLimits {
	return c.DefaultLimits.Merge(overrides)
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

func joinIfRelative(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(baseDir, path)
}
