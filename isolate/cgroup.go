package isolate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCgroupFSRoot is the real kernel cgroup v2 mount point.
const DefaultCgroupFSRoot = "/sys/fs/cgroup"

// PrepareCgroup ensures the host's cgroup v2 hierarchy is ready for the
// supervisor to place boxes under cgRoot (e.g. "/sys/fs/cgroup/isolate"),
// using the real kernel mount point.
func PrepareCgroup(cgRoot string) error {
	return PrepareCgroupAt(DefaultCgroupFSRoot, cgRoot)
}

// PrepareCgroupAt is PrepareCgroup parameterized over the cgroup v2 mount
// point, so tests can exercise the preparation sequence against a fake
// filesystem tree instead of the real kernel interface:
//
//  1. confirm cgroup.controllers lists "memory";
//  2. if cgroup.subtree_control at the root already lists "memory" and
//     "pids", the root is already prepared by someone else - skip to step 5;
//  3. otherwise relocate the current process into <fsRoot>/init, so the
//     root cgroup has no attached processes (a v2 requirement for writing
//     subtree_control at the root);
//  4. enable "+memory +pids" in the root's subtree_control;
//  5. create cgRoot and enable "+memory +pids" there too, so boxes nested
//     under it can themselves delegate controllers to their children.
func PrepareCgroupAt(fsRoot, cgRoot string) error {
	controllers, err := os.ReadFile(filepath.Join(fsRoot, "cgroup.controllers"))
	if err != nil {
		return fmt.Errorf("isolate: reading cgroup.controllers: %w", err)
	}

	if !hasField(string(controllers), "memory") {
		return fmt.Errorf("isolate: cgroup v2 memory controller not available")
	}

	rootSubtree := filepath.Join(fsRoot, "cgroup.subtree_control")

	ready, err := subtreeHasControllers(rootSubtree, "memory", "pids")
	if err != nil {
		return err
	}

	if ready {
		return prepareBoxRoot(cgRoot)
	}

	if err := relocateSelf(fsRoot); err != nil {
		return err
	}

	if err := enableControllers(rootSubtree, "+memory", "+pids"); err != nil {
		return fmt.Errorf("isolate: enabling root subtree_control: %w", err)
	}

	return prepareBoxRoot(cgRoot)
}

// relocateSelf moves the calling process into <fsRoot>/init, which must
// exist (or be creatable) with no competing children, emptying the root
// cgroup of processes.
func relocateSelf(fsRoot string) error {
	initGroup := filepath.Join(fsRoot, "init")

	if err := os.MkdirAll(initGroup, 0o755); err != nil {
		return fmt.Errorf("isolate: creating %s: %w", initGroup, err)
	}

	procsFile := filepath.Join(initGroup, "cgroup.procs")

	if err := os.WriteFile(procsFile, []byte("0"), 0o644); err != nil {
		return fmt.Errorf("isolate: relocating into %s: %w", initGroup, err)
	}

	return nil
}

func prepareBoxRoot(cgRoot string) error {
	if err := os.MkdirAll(cgRoot, 0o755); err != nil {
		return fmt.Errorf("isolate: creating %s: %w", cgRoot, err)
	}

	subtree := filepath.Join(cgRoot, "cgroup.subtree_control")

	ready, err := subtreeHasControllers(subtree, "memory", "pids")
	if err != nil {
		return err
	}

	if ready {
		return nil
	}

	if err := enableControllers(subtree, "+memory", "+pids"); err != nil {
		return fmt.Errorf("isolate: enabling subtree_control at %s: %w", cgRoot, err)
	}

	return nil
}

func enableControllers(subtreeControlPath string, flags ...string) error {
	return os.WriteFile(subtreeControlPath, []byte(strings.Join(flags, " ")), 0o644)
}

func subtreeHasControllers(subtreeControlPath string, names ...string) (bool, error) {
	content, err := os.ReadFile(subtreeControlPath)
	if os.IsNotExist(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("isolate: reading %s: %w", subtreeControlPath, err)
	}

	for _, name := range names {
		if !hasField(string(content), name) {
			return false, nil
		}
	}

	return true, nil
}

func hasField(content, field string) bool {
	for _, f := range strings.Fields(content) {
		if f == field {
			return true
		}
	}

	return false
}
