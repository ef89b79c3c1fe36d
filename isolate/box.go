package isolate

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// IsolateBox owns one supervisor sandbox slot. It must be initialized with
// Init before use and released with Cleanup when done; a box left
// uncleaned leaks a supervisor slot until the process that owns it exits.
type IsolateBox struct {
	supervisorPath string
	id             uint32
	cgroup         bool

	mu          sync.Mutex
	initialized bool
	boxDir      string // host-side root of the box, e.g. "/var/local/lib/isolate/0"
}

// NewIsolateBox constructs a box bound to id, not yet initialized. A
// finalizer is attached so a box a caller forgot to Cleanup is still
// reclaimed, best-effort, on garbage collection.
func NewIsolateBox(supervisorPath string, id uint32, cgroup bool) *IsolateBox {
	b := &IsolateBox{supervisorPath: supervisorPath, id: id, cgroup: cgroup}
	runtime.SetFinalizer(b, finalizeBox)

	return b
}

// finalizeBox is the box's finalizer: it only fires a warning and a
// detached best-effort Cleanup when the box was left initialized, never
// blocking the collector that invokes it.
func finalizeBox(b *IsolateBox) {
	b.mu.Lock()
	initialized := b.initialized
	b.mu.Unlock()

	if !initialized {
		return
	}

	log.Printf("isolate: box %d garbage collected without Cleanup, running detached best-effort cleanup", b.id)

	go b.Cleanup()
}

// ID returns the box's numeric identifier.
func (b *IsolateBox) ID() uint32 { return b.id }

// Init runs "--init", recording the box directory the supervisor reports on
// stdout (a single line, the box's host-side root).
func (b *IsolateBox) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	argv, err := NewCommandBuilder(b.supervisorPath, b.id).WithAction(ActionInit).WithCgroup(b.cgroup).Build()
	if err != nil {
		return err
	}

	out, err := exec.Command(argv[0], argv[1:]...).Output()
	if err != nil {
		return &BoxLifecycleError{Action: "init", BoxID: b.id, Message: err.Error()}
	}

	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return &BoxLifecycleError{Action: "init", BoxID: b.id, Message: "supervisor reported no box directory"}
	}

	b.boxDir = dir
	b.initialized = true

	return nil
}

// Cleanup runs "--cleanup", releasing the box's filesystem state. It is
// idempotent and safe to call on a box that was never initialized.
func (b *IsolateBox) Cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil
	}

	argv, err := NewCommandBuilder(b.supervisorPath, b.id).WithAction(ActionCleanup).WithCgroup(b.cgroup).Build()
	if err != nil {
		return err
	}

	if err := exec.Command(argv[0], argv[1:]...).Run(); err != nil {
		return &BoxLifecycleError{Action: "cleanup", BoxID: b.id, Message: err.Error()}
	}

	b.initialized = false
	b.boxDir = ""

	return nil
}

// boxSubdir is the name of the directory, under the box's host root, that
// the supervisor exposes inside the sandbox as "/box".
const boxSubdir = "box"

// validateRelPath rejects any name that starts with "/" or contains "..", so
// no accepted name can escape the box.
func validateRelPath(name string) error {
	if strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return ErrPathTraversal
	}

	return nil
}

// HostPath returns the host-visible path to name within the box, for
// reading/writing files from outside the sandbox.
func (b *IsolateBox) HostPath(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return "", ErrBoxNotInitialized
	}

	if err := validateRelPath(name); err != nil {
		return "", err
	}

	return filepath.Join(b.boxDir, boxSubdir, name), nil
}

// SandboxPath returns the path name resolves to from inside the sandbox,
// for use in command lines handed to the supervisor (--meta, --stdin, argv
// placeholders, and so on).
func (b *IsolateBox) SandboxPath(name string) (string, error) {
	if err := validateRelPath(name); err != nil {
		return "", err
	}

	return "/box/" + name, nil
}

// WriteFile stages content into the box under name.
func (b *IsolateBox) WriteFile(name string, content []byte, perm os.FileMode) error {
	host, err := b.HostPath(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(host), 0o755); err != nil {
		return fmt.Errorf("isolate: staging %s: %w", name, err)
	}

	if err := os.WriteFile(host, content, perm); err != nil {
		return fmt.Errorf("isolate: staging %s: %w", name, err)
	}

	return nil
}

// ReadFile reads name back out of the box.
func (b *IsolateBox) ReadFile(name string) ([]byte, error) {
	host, err := b.HostPath(name)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(host)
	if err != nil {
		return nil, fmt.Errorf("isolate: reading %s: %w", name, err)
	}

	return content, nil
}

// FileExists reports whether name exists in the box.
func (b *IsolateBox) FileExists(name string) bool {
	host, err := b.HostPath(name)
	if err != nil {
		return false
	}

	_, err = os.Stat(host)

	return err == nil
}

// MakeExecutable marks name as executable, for staged compile artifacts.
func (b *IsolateBox) MakeExecutable(name string) error {
	host, err := b.HostPath(name)
	if err != nil {
		return err
	}

	if err := os.Chmod(host, 0o755); err != nil {
		return fmt.Errorf("isolate: marking %s executable: %w", name, err)
	}

	return nil
}
