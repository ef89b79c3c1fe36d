package isolate

import (
	"context"
	"fmt"
	"os"
)

// sandboxChdir is the working directory every compile and run command
// executes in, matching the box layout the supervisor exposes as "/box".
const sandboxChdir = "/box"

// LanguageSource supplies the Runner with a Language and its base limit
// layers, decoupling this package from the config package's concrete
// representation.
type LanguageSource interface {
	Language() Language
	// DefaultCompileLimits and DefaultRunLimits are the runner-wide base
	// layer, beneath the language's own overrides.
	DefaultCompileLimits() ResourceLimits
	DefaultRunLimits() ResourceLimits
}

// Runner drives the full compile/run lifecycle against a BoxPool.
type Runner struct {
	pool *BoxPool
}

// NewRunner creates a Runner over pool.
func NewRunner(pool *BoxPool) *Runner {
	return &Runner{pool: pool}
}

// CompileAndRunRequest is the input to Runner.CompileAndRun.
type CompileAndRunRequest struct {
	Source      []byte
	Limits      ResourceLimits // user-supplied overrides, topmost layer
	Stdin       []byte
	MaxOutputKB uint64
}

// stage acquires a box and writes source into it under lang's canonical
// source name, shared by Compile and every interpreted-language caller that
// needs a box without invoking the compiler.
func (r *Runner) stage(ctx context.Context, lang LanguageSource, source []byte) (*IsolateBox, func(), error) {
	box, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := box.WriteFile(lang.Language().SourceName(), source, 0o644); err != nil {
		release()

		return nil, nil, err
	}

	return box, release, nil
}

// Compile stages source into a fresh box and compiles it. It requires lang
// to have a compile step; callers driving an interpreted language should
// stage source directly instead (see CompileAndRun, RunInterpreted).
func (r *Runner) Compile(ctx context.Context, lang LanguageSource, source []byte, overrides ResourceLimits) (*IsolateBox, func(), CompileResult, error) {
	box, release, err := r.stage(ctx, lang, source)
	if err != nil {
		return nil, nil, CompileResult{}, err
	}

	language := lang.Language()

	if !language.IsCompiled() {
		release()

		return nil, nil, CompileResult{}, ErrNotCompiled
	}

	// Templates expand against bare names: the compiled program runs with
	// Chdir set to the box root, so "{binary}"/"./{binary}"-style templates
	// resolve relative to that cwd, not to the box's host-side path.
	argv := ExpandCommand(language.Compile.Command, language.SourceName(), BinaryName, BinaryName)

	// Resolution happens against the host's own PATH, since the compile
	// command typically names a compiler installed on the host (e.g. "gcc"),
	// not anything staged inside the sandbox.
	argv, err = ResolveCommand(argv, os.Getenv("PATH"))
	if err != nil {
		release()

		return nil, nil, CompileResult{}, &PhaseError{Phase: PhaseCompile, Err: err}
	}

	limits := lang.DefaultCompileLimits().Merge(language.Compile.Limits).Merge(overrides)

	result, err := RunCompile(RunRequest{
		Box:     box,
		Command: argv,
		Limits:  limits,
		Chdir:   sandboxChdir,
	})
	if err != nil {
		release()

		return nil, nil, CompileResult{}, &PhaseError{Phase: PhaseCompile, Err: err}
	}

	if result.IsSuccess() {
		if err := box.MakeExecutable(BinaryName); err != nil {
			release()

			return nil, nil, CompileResult{}, &PhaseError{Phase: PhaseCompile, Err: err}
		}
	}

	return box, release, result, nil
}

// buildRunCommand checks that the program box.Run expects to execute has
// actually been staged, then expands and host-resolves its argv. name is the
// bare artifact name (the binary for compiled languages, the source file for
// interpreted ones); the check mirrors the ground truth's file_exists guard
// before building the run command.
func buildRunCommand(box *IsolateBox, language Language) ([]string, error) {
	var (
		argv []string
		name string
	)

	if language.IsCompiled() {
		name = BinaryName
	} else {
		name = language.SourceName()
	}

	if !box.FileExists(name) {
		return nil, ErrNotStarted
	}

	if language.IsCompiled() {
		argv = ExpandCommand(language.Run.Command, "", "", BinaryName)
	} else {
		argv = ExpandCommand(language.Run.Command, language.SourceName(), "", "")
	}

	return ResolveCommand(argv, os.Getenv("PATH"))
}

// Run executes an already-compiled or interpreted program staged in box.
// memoryLimitUpgradeThresholdPct upgrades the reported limit to LimitMemory when the
// run otherwise looks like a silent OOM kill: see detectMemoryLimit.
func (r *Runner) Run(ctx context.Context, box *IsolateBox, lang LanguageSource, stdin []byte, overrides ResourceLimits) (ExecutionResult, error) {
	language := lang.Language()

	argv, err := buildRunCommand(box, language)
	if err != nil {
		return ExecutionResult{}, &PhaseError{Phase: PhaseExecute, Err: err}
	}

	limits := lang.DefaultRunLimits().Merge(language.Run.Limits).Merge(overrides)

	result, err := RunBatch(RunRequest{
		Box:     box,
		Command: argv,
		Limits:  limits,
		Stdin:   stdin,
		Chdir:   sandboxChdir,
		Env:     map[string]string{"PATH": language.Run.EffectivePath()},
	})
	if err != nil {
		return ExecutionResult{}, &PhaseError{Phase: PhaseExecute, Err: err}
	}

	detectMemoryLimit(&result, limits.MemoryKB)

	return result, nil
}

// memoryLimitUpgradeThresholdPct is the fraction (as a percentage, 0-100)
// of the configured memory limit a run's reported memory usage must reach
// before an otherwise-unattributed failure is reclassified as a memory
// limit violation. The supervisor sometimes reports a bare "RE" (runtime
// error, usually SIGKILL-by-OOM-killer) without an explicit memory-limit
// message, since an out-of-cgroup OOM kill is indistinguishable from any
// other fatal signal at the supervisor's report layer. 95% is chosen as a
// conservative trigger: legitimate large-but-within-budget allocations
// rarely sit within 5% of the configured ceiling, so false positives are
// expected to be rare at the cost of occasionally missing a limit
// violation at, say, 90% usage.
const memoryLimitUpgradeThresholdPct = 95

// detectMemoryLimit upgrades result.LimitExceeded to LimitMemory when no
// limit was otherwise attributed, the run did not exit cleanly, and
// reported memory usage is at or above memoryLimitUpgradeThresholdPct of
// the configured limit. It is a no-op when memLimitKB is nil (no memory
// limit was configured) or the run already carries an explicit
// attribution.
func detectMemoryLimit(result *ExecutionResult, memLimitKB *uint64) {
	if memLimitKB == nil || *memLimitKB == 0 {
		return
	}

	if result.LimitExceeded.IsExceeded() {
		return
	}

	if result.Status == StatusOK {
		return
	}

	threshold := *memLimitKB * memoryLimitUpgradeThresholdPct / 100
	if result.MemoryKB >= threshold {
		result.LimitExceeded = LimitMemory
	}
}

// CompileAndRun compiles (if needed) then runs source against lang,
// releasing the box in all cases before returning. It distinguishes which
// phase an error occurred in via PhaseError.
func (r *Runner) CompileAndRun(ctx context.Context, lang LanguageSource, req CompileAndRunRequest) (ExecutionResult, *CompileResult, error) {
	language := lang.Language()

	var (
		box           *IsolateBox
		release       func()
		compileResult *CompileResult
		err           error
	)

	if language.IsCompiled() {
		var cr CompileResult

		box, release, cr, err = r.Compile(ctx, lang, req.Source, req.Limits)
		if err != nil {
			return ExecutionResult{}, nil, err
		}

		compileResult = &cr
	} else {
		box, release, err = r.stage(ctx, lang, req.Source)
		if err != nil {
			return ExecutionResult{}, nil, err
		}
	}

	defer release()

	if compileResult != nil && !compileResult.IsSuccess() {
		return ExecutionResult{}, compileResult, nil
	}

	result, err := r.Run(ctx, box, lang, req.Stdin, req.Limits)
	if err != nil {
		return ExecutionResult{}, compileResult, err
	}

	return result, compileResult, nil
}

// RunInterpreted is a convenience wrapper for languages with no compile
// step: it stages source and immediately runs it.
func (r *Runner) RunInterpreted(ctx context.Context, lang LanguageSource, source, stdin []byte, overrides ResourceLimits) (ExecutionResult, error) {
	language := lang.Language()
	if language.IsCompiled() {
		return ExecutionResult{}, fmt.Errorf("isolate: %s is a compiled language, use CompileAndRun", language.Name)
	}

	box, release, err := r.stage(ctx, lang, source)
	if err != nil {
		return ExecutionResult{}, err
	}

	defer release()

	return r.Run(ctx, box, lang, stdin, overrides)
}

// RunInteractive stages source (compiling it first if lang requires it)
// and starts an interactive session against it. The caller owns the
// returned release func and must call it once the session and its events
// channel are fully drained.
func (r *Runner) RunInteractive(ctx context.Context, lang LanguageSource, source []byte, overrides ResourceLimits) (*InteractiveSession, func(), error) {
	language := lang.Language()

	var (
		box     *IsolateBox
		release func()
		err     error
	)

	if language.IsCompiled() {
		var compileResult CompileResult

		box, release, compileResult, err = r.Compile(ctx, lang, source, overrides)
		if err != nil {
			return nil, nil, err
		}

		if !compileResult.IsSuccess() {
			release()

			return nil, nil, &PhaseError{Phase: PhaseCompile, Err: fmt.Errorf("compile failed: %s", compileResult.Diagnostics)}
		}
	} else {
		box, release, err = r.stage(ctx, lang, source)
		if err != nil {
			return nil, nil, err
		}
	}

	argv, err := buildRunCommand(box, language)
	if err != nil {
		release()

		return nil, nil, &PhaseError{Phase: PhaseExecute, Err: err}
	}

	limits := lang.DefaultRunLimits().Merge(language.Run.Limits).Merge(overrides)

	session, err := StartInteractive(RunRequest{
		Box:     box,
		Command: argv,
		Limits:  limits,
		Chdir:   sandboxChdir,
		Env:     map[string]string{"PATH": language.Run.EffectivePath()},
	})
	if err != nil {
		release()

		return nil, nil, &PhaseError{Phase: PhaseExecute, Err: err}
	}

	return session, release, nil
}
