package config

import "github.com/nullbox/isobox/isolate"

// defaultCompileLimits mirrors the original runner's compile-phase base
// layer: generous enough for a real compiler invocation, independent of
// any per-language or per-request override.
func defaultCompileLimits() isolate.ResourceLimits {
	return isolate.ResourceLimits{
		CPUTimeSeconds:  isolate.Float64(30),
		WallTimeSeconds: isolate.Float64(60),
		MemoryKB:        isolate.Uint64(524288),
		MaxProcesses:    isolate.Uint32(10),
		MaxOutputKB:     isolate.Uint64(65536),
	}
}

// defaultRunLimits mirrors the original runner's execute-phase base layer.
func defaultRunLimits() isolate.ResourceLimits {
	return isolate.ResourceLimits{
		CPUTimeSeconds:    isolate.Float64(2),
		WallTimeSeconds:   isolate.Float64(5),
		MemoryKB:          isolate.Uint64(262144),
		StackKB:           isolate.Uint64(262144),
		MaxProcesses:      isolate.Uint32(1),
		MaxOutputKB:       isolate.Uint64(65536),
		MaxOpenFiles:      isolate.Uint32(64),
		ExtraGraceSeconds: isolate.Float64(0.5),
	}
}

// LanguageBinding adapts a Config plus a resolved Language into the
// isolate.LanguageSource interface the Runner consumes, so the isolate
// package stays free of any dependency on this package's concrete Config
// type.
type LanguageBinding struct {
	Config Config
	Lang   isolate.Language
}

// Bind resolves id against cfg and returns a LanguageBinding ready to pass
// to isolate.Runner.
func Bind(cfg Config, id string) (LanguageBinding, error) {
	lang, err := cfg.GetLanguage(id)
	if err != nil {
		return LanguageBinding{}, err
	}

	return LanguageBinding{Config: cfg, Lang: lang}, nil
}

func (b LanguageBinding) Language() isolate.Language { return b.Lang }

// DefaultCompileLimits returns the runner's fixed compile-phase base layer.
// Unlike DefaultRunLimits, this base is independent of Config.DefaultLimits:
// a compile step needs headroom a typical sandboxed run does not (a
// multi-process toolchain, more time, more memory), so it is not governed
// by the same operator-tunable default.
func (b LanguageBinding) DefaultCompileLimits() isolate.ResourceLimits {
	return defaultCompileLimits()
}

// DefaultRunLimits returns Config.DefaultLimits, the operator-tunable base
// layer beneath a language's own run.limits and any caller override.
func (b LanguageBinding) DefaultRunLimits() isolate.ResourceLimits {
	return b.Config.DefaultLimits
}
