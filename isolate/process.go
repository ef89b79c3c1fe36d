package isolate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// RunRequest bundles everything needed to drive one supervisor run inside
// an already-initialized box.
type RunRequest struct {
	Box     *IsolateBox
	Command []string // already PATH-resolved, argv[0] absolute
	Limits  ResourceLimits
	Mounts  []MountConfig
	Env     map[string]string
	Stdin   []byte
	Chdir   string
}

const (
	metaFileName   = "meta.txt"
	stdinFileName  = "stdin.txt"
	stdoutFileName = "stdout.txt"
	stderrFileName = "stderr.txt"
)

// RunBatch executes req to completion non-interactively and returns the
// classified result with Stdout/Stderr populated. The stdin file is always
// written, even when req.Stdin is empty, so the supervisor never blocks
// waiting on a missing file.
func RunBatch(req RunRequest) (ExecutionResult, error) {
	if err := req.Box.WriteFile(stdinFileName, req.Stdin, 0o644); err != nil {
		return ExecutionResult{}, err
	}

	metaHost, err := req.Box.HostPath(metaFileName)
	if err != nil {
		return ExecutionResult{}, err
	}

	stdinSandbox, err := req.Box.SandboxPath(stdinFileName)
	if err != nil {
		return ExecutionResult{}, err
	}

	stdoutSandbox, err := req.Box.SandboxPath(stdoutFileName)
	if err != nil {
		return ExecutionResult{}, err
	}

	stderrSandbox, err := req.Box.SandboxPath(stderrFileName)
	if err != nil {
		return ExecutionResult{}, err
	}

	builder := NewCommandBuilder(req.Box.supervisorPath, req.Box.id).
		WithCgroup(req.Box.cgroup).
		WithLimits(req.Limits).
		WithMounts(req.Mounts...).
		WithMetaFile(metaHost).
		WithStdin(stdinSandbox).
		WithStdout(stdoutSandbox).
		WithStderr(stderrSandbox).
		WithCommand(req.Command)

	for k, v := range req.Env {
		builder.WithEnv(k, v)
	}

	if req.Chdir != "" {
		builder.WithChdir(req.Chdir)
	}

	argv, err := builder.Build()
	if err != nil {
		return ExecutionResult{}, err
	}

	// The supervisor itself reports the run's outcome via exit code and the
	// meta file; a non-zero exit here without a meta file means the
	// supervisor failed to even start the sandboxed process.
	var supervisorStderr bytes.Buffer

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = &supervisorStderr
	runErr := cmd.Run()

	metaContent, readErr := os.ReadFile(metaHost)
	if readErr != nil {
		diag := strings.TrimSpace(supervisorStderr.String())

		if runErr != nil {
			return ExecutionResult{}, fmt.Errorf("isolate: supervisor run failed: %w: %s", runErr, diag)
		}

		return ExecutionResult{}, fmt.Errorf("%w: %s", ErrNoMetaFile, diag)
	}

	meta := ParseMeta(string(metaContent))
	result := meta.ToExecutionResult()

	result.Stdout, _ = req.Box.ReadFile(stdoutFileName)
	result.Stderr, _ = req.Box.ReadFile(stderrFileName)

	return result, nil
}

// CompileResult is the outcome of a compile-phase run: the classified
// execution result plus the combined diagnostic text a caller would show a
// user when compilation failed.
type CompileResult struct {
	ExecutionResult
	// Diagnostics is stdout+stderr joined by a newline, falling back to the
	// meta file's message when both streams are empty.
	Diagnostics string
}

// RunCompile executes req (expected to invoke a compiler) and folds
// stdout/stderr into a single diagnostics string, the way a user-facing
// "why did my compile fail" message is assembled.
func RunCompile(req RunRequest) (CompileResult, error) {
	result, err := RunBatch(req)
	if err != nil {
		return CompileResult{}, err
	}

	var parts []string

	if len(result.Stdout) > 0 {
		parts = append(parts, strings.TrimRight(string(result.Stdout), "\n"))
	}

	if len(result.Stderr) > 0 {
		parts = append(parts, strings.TrimRight(string(result.Stderr), "\n"))
	}

	diagnostics := strings.Join(parts, "\n")
	if diagnostics == "" {
		diagnostics = result.Message
	}

	return CompileResult{ExecutionResult: result, Diagnostics: diagnostics}, nil
}

// InteractiveEvent is one item from an InteractiveSession's event stream.
type InteractiveEvent struct {
	// Kind is one of "stdout", "stderr", or "exited".
	Kind   string
	Data   []byte
	Result *ExecutionResult // set only when Kind == "exited"
	Err    error
}

// InteractiveSession drives a long-lived supervisor run with live stdin/
// stdout/stderr piping, for REPL-style or otherwise interactive programs.
type InteractiveSession struct {
	ID  string // correlation id for logging, independent of the box id
	cmd *exec.Cmd

	stdinPipe  io.WriteCloser
	stdoutPipe io.ReadCloser
	stderrPipe io.ReadCloser

	box *IsolateBox

	mu          sync.Mutex
	stdinClosed bool
	terminated  bool
}

// StartInteractive launches req's command under the supervisor with piped
// stdio, suitable for subsequent Write/Events use. req.Stdin is ignored;
// use Write instead.
func StartInteractive(req RunRequest) (*InteractiveSession, error) {
	metaHost, err := req.Box.HostPath(metaFileName)
	if err != nil {
		return nil, err
	}

	builder := NewCommandBuilder(req.Box.supervisorPath, req.Box.id).
		WithCgroup(req.Box.cgroup).
		WithLimits(req.Limits).
		WithMounts(req.Mounts...).
		WithMetaFile(metaHost).
		WithCommand(req.Command)

	for k, v := range req.Env {
		builder.WithEnv(k, v)
	}

	if req.Chdir != "" {
		builder.WithChdir(req.Chdir)
	}

	argv, err := builder.Build()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("isolate: interactive stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("isolate: interactive stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("isolate: interactive stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("isolate: interactive start: %w", err)
	}

	return &InteractiveSession{
		ID:         uuid.NewString(),
		cmd:        cmd,
		stdinPipe:  stdin,
		stdoutPipe: stdout,
		stderrPipe: stderr,
		box:        req.Box,
	}, nil
}

// Write sends data to the session's stdin.
func (s *InteractiveSession) Write(data []byte) error {
	s.mu.Lock()
	closed := s.stdinClosed
	terminated := s.terminated
	s.mu.Unlock()

	if closed {
		return ErrStdinClosed
	}

	if terminated {
		return ErrSessionTerminated
	}

	_, err := s.stdinPipe.Write(data)

	return err
}

// CloseStdin closes the session's stdin, typically signaling EOF to the
// sandboxed program.
func (s *InteractiveSession) CloseStdin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdinClosed {
		return nil
	}

	s.stdinClosed = true

	return s.stdinPipe.Close()
}

// Kill sends SIGKILL to the sandboxed process via the supervisor and marks
// the session terminated.
func (s *InteractiveSession) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated || s.cmd.Process == nil {
		return ErrSessionTerminated
	}

	if err := s.cmd.Process.Signal(unix.SIGKILL); err != nil {
		return err
	}

	s.terminated = true

	return nil
}

// Events returns a channel of InteractiveEvent, closed once the session has
// exited and its final Exited event has been emitted. The read loop is
// biased toward draining stdout over detecting termination, so that output
// produced right before exit is never dropped: a closed stdout pipe
// triggers a Wait() only after all buffered stdout has been delivered.
func (s *InteractiveSession) Events(ctx context.Context) <-chan InteractiveEvent {
	events := make(chan InteractiveEvent, 16)

	go func() {
		defer close(events)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()
			s.pump(ctx, s.stdoutPipe, "stdout", events)
		}()

		go func() {
			defer wg.Done()
			s.pump(ctx, s.stderrPipe, "stderr", events)
		}()

		wg.Wait()

		err := s.cmd.Wait()

		s.mu.Lock()
		s.terminated = true
		s.mu.Unlock()

		result, metaErr := s.collectResult(err)
		if metaErr != nil {
			events <- InteractiveEvent{Kind: "exited", Err: metaErr}

			return
		}

		events <- InteractiveEvent{Kind: "exited", Result: &result}
	}()

	return events
}

func (s *InteractiveSession) pump(ctx context.Context, r io.Reader, kind string, events chan<- InteractiveEvent) {
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			select {
			case events <- InteractiveEvent{Kind: kind, Data: chunk}:
			case <-ctx.Done():
				return
			}
		}

		if err != nil {
			return
		}
	}
}

func (s *InteractiveSession) collectResult(waitErr error) (ExecutionResult, error) {
	metaHost, err := s.box.HostPath(metaFileName)
	if err != nil {
		return ExecutionResult{}, err
	}

	content, err := os.ReadFile(metaHost)
	if err != nil {
		if waitErr != nil {
			return ExecutionResult{}, fmt.Errorf("isolate: interactive session exited abnormally: %w", waitErr)
		}

		return ExecutionResult{}, ErrNoMetaFile
	}

	meta := ParseMeta(string(content))

	return meta.ToExecutionResult(), nil
}

// IsTerminated reports whether the session has exited or been killed.
func (s *InteractiveSession) IsTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.terminated
}
