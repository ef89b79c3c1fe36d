package isolate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nullbox/isobox/isolate"
)

// fakeRunSupervisor builds a shell-script stand-in for the supervisor that
// understands enough of --init/--run/--cleanup to drive RunBatch: it stages
// a box directory, then for --run parses --meta/--stdout/--stderr and
// writes a canned meta report, a fixed "hello from sandbox" stdout and an
// empty stderr.
func fakeRunSupervisor(t *testing.T, metaBody string) string {
	t.Helper()

	boxRoot := t.TempDir()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-isolate")

	script := `#!/bin/sh
meta=""
stdin=""
stdout=""
stderr=""
for arg in "$@"; do
  case "$arg" in
    --box-id=*) id="${arg#--box-id=}" ;;
    --init) mkdir -p "` + boxRoot + `/$id/box"; echo "` + boxRoot + `/$id"; exit 0 ;;
    --cleanup) rm -rf "` + boxRoot + `/$id"; exit 0 ;;
    --meta=*) meta="${arg#--meta=}" ;;
    --stdin=*) stdin="${arg#--stdin=}" ;;
    --stdout=*) stdout="${arg#--stdout=}" ;;
    --stderr=*) stderr="${arg#--stderr=}" ;;
  esac
done
printf '%s' "` + metaBody + `" > "$meta"
if [ -n "$stdout" ]; then printf 'hello from sandbox' > "` + boxRoot + `/$id/box/$(basename "$stdout")"; fi
if [ -n "$stderr" ]; then printf '' > "` + boxRoot + `/$id/box/$(basename "$stderr")"; fi
exit 0
`

	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake supervisor: %v", err)
	}

	return path
}

func Test_RunBatch_Reports_Success_And_Captures_Output(t *testing.T) {
	t.Parallel()

	supervisor := fakeRunSupervisor(t, "status:OK\ntime:0.01\ntime-wall:0.02\nmax-rss:1024\nexitcode:0\n")

	box := isolate.NewIsolateBox(supervisor, 0, false)
	if err := box.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	defer box.Cleanup()

	result, err := isolate.RunBatch(isolate.RunRequest{
		Box:     box,
		Command: []string{"/bin/true"},
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if !result.IsSuccess() {
		t.Fatalf("expected success, got %+v", result)
	}

	if string(result.Stdout) != "hello from sandbox" {
		t.Fatalf("stdout = %q, want %q", result.Stdout, "hello from sandbox")
	}
}

func Test_RunBatch_Writes_Empty_Stdin_File_Even_When_Stdin_Nil(t *testing.T) {
	t.Parallel()

	supervisor := fakeRunSupervisor(t, "status:OK\nexitcode:0\n")

	box := isolate.NewIsolateBox(supervisor, 0, false)
	if err := box.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	defer box.Cleanup()

	if _, err := isolate.RunBatch(isolate.RunRequest{Box: box, Command: []string{"/bin/true"}}); err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if !box.FileExists("stdin.txt") {
		t.Fatal("expected stdin.txt to be staged even with empty stdin")
	}
}

func Test_RunCompile_Reports_Failure_For_Runtime_Error_Meta(t *testing.T) {
	t.Parallel()

	supervisor := fakeRunSupervisor(t, "status:RE\nexitcode:1\nmessage:compiler crashed\n")

	box := isolate.NewIsolateBox(supervisor, 0, false)
	if err := box.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	defer box.Cleanup()

	result, err := isolate.RunCompile(isolate.RunRequest{Box: box, Command: []string{"/bin/false"}})
	if err != nil {
		t.Fatalf("RunCompile: %v", err)
	}

	if result.IsSuccess() {
		t.Fatal("expected compile failure")
	}
}
