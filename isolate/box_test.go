package isolate_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/nullbox/isobox/isolate"
)

func Test_IsolateBox_HostPath_Fails_Before_Init(t *testing.T) {
	t.Parallel()

	box := isolate.NewIsolateBox("/usr/bin/isolate", 0, false)

	if _, err := box.HostPath("main.py"); err != isolate.ErrBoxNotInitialized {
		t.Fatalf("expected ErrBoxNotInitialized, got %v", err)
	}
}

func Test_IsolateBox_SandboxPath_Rejects_Traversal(t *testing.T) {
	t.Parallel()

	box := isolate.NewIsolateBox("/usr/bin/isolate", 0, false)

	cases := []string{"../etc/passwd", "/etc/passwd", "a/../../b", ".."}

	for _, name := range cases {
		if _, err := box.SandboxPath(name); err != isolate.ErrPathTraversal {
			t.Errorf("SandboxPath(%q): expected ErrPathTraversal, got %v", name, err)
		}
	}
}

func Test_IsolateBox_SandboxPath_Accepts_Plain_Name(t *testing.T) {
	t.Parallel()

	box := isolate.NewIsolateBox("/usr/bin/isolate", 0, false)

	got, err := box.SandboxPath("main.py")
	if err != nil {
		t.Fatalf("SandboxPath: %v", err)
	}

	if got != "/box/main.py" {
		t.Fatalf("SandboxPath() = %q, want /box/main.py", got)
	}
}

func Test_IsolateBox_Cleanup_Is_Idempotent_Before_Init(t *testing.T) {
	t.Parallel()

	box := isolate.NewIsolateBox("/usr/bin/isolate", 0, false)

	if err := box.Cleanup(); err != nil {
		t.Fatalf("Cleanup on never-initialized box should be a no-op, got %v", err)
	}
}

// Test_IsolateBox_Finalizer_Cleans_Up_When_GCed_While_Initialized exercises
// the detached best-effort Cleanup a box's finalizer runs when a caller lets
// an initialized box become unreachable without ever calling Cleanup itself.
func Test_IsolateBox_Finalizer_Cleans_Up_When_GCed_While_Initialized(t *testing.T) {
	boxRoot := t.TempDir()
	supervisor := fakeSupervisor(t, boxRoot)

	func() {
		box := isolate.NewIsolateBox(supervisor, 42, false)
		if err := box.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
		// box becomes unreachable once this closure returns, without Cleanup
		// ever being called.
	}()

	boxDir := filepath.Join(boxRoot, "42")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)

		if _, err := os.Stat(boxDir); os.IsNotExist(err) {
			return
		}
	}

	t.Fatalf("expected finalizer's detached Cleanup to remove %s, but it still exists", boxDir)
}
