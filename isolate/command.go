package isolate

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Action selects which of the supervisor's three operating modes a
// CommandBuilder synthesizes an argument vector for.
type Action int

const (
	// ActionInit builds an "--init" invocation.
	ActionInit Action = iota
	// ActionRun builds a "--run" invocation.
	ActionRun
	// ActionCleanup builds a "--cleanup" invocation.
	ActionCleanup
)

// CommandBuilder synthesizes an argument vector for the supervisor binary.
//
// It is a plain value builder (not a suspension point, per the concurrency
// model): construction and Build never touch the filesystem or spawn a
// process, except for the defense-in-depth existence check Build performs on
// optional mount sources.
type CommandBuilder struct {
	supervisorPath string
	boxID          uint32
	cgroup         bool
	action         Action

	limits ResourceLimits
	mounts []MountConfig

	env        map[string]string
	envInherit []string
	fullEnv    bool

	metaFile  string
	stdin     string
	stdout    string
	stderr    string
	chdir     string
	command   []string
}

// NewCommandBuilder creates a builder for boxID, targeting the given
// supervisor binary path.
func NewCommandBuilder(supervisorPath string, boxID uint32) *CommandBuilder {
	return &CommandBuilder{
		supervisorPath: supervisorPath,
		boxID:          boxID,
		action:         ActionRun,
		env:            make(map[string]string),
	}
}

func (b *CommandBuilder) WithAction(a Action) *CommandBuilder { b.action = a; return b }
func (b *CommandBuilder) WithCgroup(enable bool) *CommandBuilder { b.cgroup = enable; return b }
func (b *CommandBuilder) WithLimits(l ResourceLimits) *CommandBuilder { b.limits = l; return b }

func (b *CommandBuilder) WithMounts(mounts ...MountConfig) *CommandBuilder {
	b.mounts = append(b.mounts, mounts...)

	return b
}

func (b *CommandBuilder) WithEnv(key, value string) *CommandBuilder {
	b.env[key] = value

	return b
}

func (b *CommandBuilder) WithEnvInherit(key string) *CommandBuilder {
	b.envInherit = append(b.envInherit, key)

	return b
}

func (b *CommandBuilder) WithFullEnv(enable bool) *CommandBuilder { b.fullEnv = enable; return b }

func (b *CommandBuilder) WithMetaFile(path string) *CommandBuilder { b.metaFile = path; return b }
func (b *CommandBuilder) WithStdin(path string) *CommandBuilder   { b.stdin = path; return b }
func (b *CommandBuilder) WithStdout(path string) *CommandBuilder  { b.stdout = path; return b }
func (b *CommandBuilder) WithStderr(path string) *CommandBuilder  { b.stderr = path; return b }
func (b *CommandBuilder) WithChdir(dir string) *CommandBuilder    { b.chdir = dir; return b }

func (b *CommandBuilder) WithCommand(argv []string) *CommandBuilder {
	b.command = argv

	return b
}

// Build synthesizes the full argument vector, argv[0] == the supervisor
// path. For ActionInit/ActionCleanup the vector is exactly three or four
// tokens: [supervisor, --box-id=<id>, (--cg,)? --init|--cleanup]. All other
// configured fields are silently ignored for those two actions.
//
// For ActionRun, Build returns ErrEmptyCommand if no command was set.
func (b *CommandBuilder) Build() ([]string, error) {
	args := []string{b.supervisorPath, fmt.Sprintf("--box-id=%d", b.boxID)}

	if b.cgroup {
		args = append(args, "--cg")
	}

	switch b.action {
	case ActionInit:
		return append(args, "--init"), nil
	case ActionCleanup:
		return append(args, "--cleanup"), nil
	case ActionRun:
		// fall through to the full run-argument synthesis below.
	}

	if len(b.command) == 0 {
		return nil, ErrEmptyCommand
	}

	args = append(args, "--run")
	args = append(args, b.limitArgs()...)
	args = append(args, b.mountArgs()...)
	args = append(args, b.envArgs()...)

	if b.metaFile != "" {
		args = append(args, "--meta="+b.metaFile)
	}

	if b.stdin != "" {
		args = append(args, "--stdin="+b.stdin)
	}

	if b.stdout != "" {
		args = append(args, "--stdout="+b.stdout)
	}

	if b.stderr != "" {
		args = append(args, "--stderr="+b.stderr)
	}

	if b.chdir != "" {
		args = append(args, "--chdir="+b.chdir)
	}

	args = append(args, "--")
	args = append(args, b.command...)

	return args, nil
}

func (b *CommandBuilder) limitArgs() []string {
	var args []string

	if v := b.limits.CPUTimeSeconds; v != nil {
		args = append(args, "--time="+formatFloat(*v))
	}

	if v := b.limits.WallTimeSeconds; v != nil {
		args = append(args, "--wall-time="+formatFloat(*v))
	}

	if v := b.limits.ExtraGraceSeconds; v != nil {
		args = append(args, "--extra-time="+formatFloat(*v))
	}

	if v := b.limits.MemoryKB; v != nil {
		if b.cgroup {
			args = append(args, fmt.Sprintf("--cg-mem=%d", *v))
		} else {
			args = append(args, fmt.Sprintf("--mem=%d", *v))
		}
	}

	if v := b.limits.StackKB; v != nil {
		args = append(args, fmt.Sprintf("--stack=%d", *v))
	}

	if v := b.limits.MaxProcesses; v != nil {
		args = append(args, fmt.Sprintf("--processes=%d", *v))
	}

	if v := b.limits.MaxOutputKB; v != nil {
		args = append(args, fmt.Sprintf("--fsize=%d", *v))
	}

	if v := b.limits.MaxOpenFiles; v != nil {
		args = append(args, fmt.Sprintf("--open-files=%d", *v))
	}

	return args
}

// mountArgs emits --dir flags. An optional mount whose source does not exist
// on the host is elided entirely, as defense in depth against the
// supervisor's own :maybe handling.
func (b *CommandBuilder) mountArgs() []string {
	args := make([]string, 0, len(b.mounts))

	for _, m := range b.mounts {
		if m.Optional {
			if _, err := os.Stat(m.Source); err != nil {
				continue
			}
		}

		opts := ""
		if m.Writable {
			opts += ":rw"
		}

		if m.Optional {
			opts += ":maybe"
		}

		args = append(args, fmt.Sprintf("--dir=%s=%s%s", m.Target, m.Source, opts))
	}

	return args
}

func (b *CommandBuilder) envArgs() []string {
	var args []string

	if b.fullEnv {
		args = append(args, "--full-env")
	}

	keys := make([]string, 0, len(b.env))
	for k := range b.env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, fmt.Sprintf("--env=%s=%s", k, b.env[k]))
	}

	for _, k := range b.envInherit {
		args = append(args, "--env="+k)
	}

	return args
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
