package isolate_test

import (
	"strings"
	"testing"

	"github.com/nullbox/isobox/isolate"
)

func mustContainSubsequence(t *testing.T, haystack, needle []string) {
	t.Helper()

	if len(needle) == 0 {
		return
	}

	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true

		for j, tok := range needle {
			if haystack[i+j] != tok {
				match = false

				break
			}
		}

		if match {
			return
		}
	}

	t.Fatalf("expected subsequence %v in %v", needle, haystack)
}

func Test_CommandBuilder_Build_Init_Is_Minimal(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 3).WithAction(isolate.ActionInit).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"/usr/bin/isolate", "--box-id=3", "--init"}

	if strings.Join(argv, " ") != strings.Join(want, " ") {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
}

func Test_CommandBuilder_Build_Cleanup_Includes_Cgroup_Flag(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 0).
		WithAction(isolate.ActionCleanup).
		WithCgroup(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"/usr/bin/isolate", "--box-id=0", "--cg", "--cleanup"}

	if strings.Join(argv, " ") != strings.Join(want, " ") {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
}

func Test_CommandBuilder_Build_Run_Without_Command_Fails(t *testing.T) {
	t.Parallel()

	_, err := isolate.NewCommandBuilder("/usr/bin/isolate", 0).Build()
	if err != isolate.ErrEmptyCommand {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func Test_CommandBuilder_Build_Run_Includes_All_Flags_And_Ends_With_Command(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 1).
		WithLimits(isolate.ResourceLimits{
			CPUTimeSeconds:  isolate.Float64(2),
			WallTimeSeconds: isolate.Float64(5),
			MemoryKB:        isolate.Uint64(262144),
		}).
		WithMetaFile("/tmp/box/1/meta.txt").
		WithStdin("/box/stdin.txt").
		WithStdout("/box/stdout.txt").
		WithCommand([]string{"/usr/bin/python3", "/box/main.py"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mustContainSubsequence(t, argv, []string{"--run"})
	mustContainSubsequence(t, argv, []string{"--time=2"})
	mustContainSubsequence(t, argv, []string{"--wall-time=5"})
	mustContainSubsequence(t, argv, []string{"--mem=262144"})
	mustContainSubsequence(t, argv, []string{"--meta=/tmp/box/1/meta.txt"})
	mustContainSubsequence(t, argv, []string{"--stdin=/box/stdin.txt"})
	mustContainSubsequence(t, argv, []string{"--stdout=/box/stdout.txt"})
	mustContainSubsequence(t, argv, []string{"--", "/usr/bin/python3", "/box/main.py"})

	if argv[len(argv)-1] != "/box/main.py" {
		t.Fatalf("expected command args last, got %v", argv)
	}
}

func Test_CommandBuilder_Build_Run_Uses_CgMem_When_Cgroup_Enabled(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 0).
		WithCgroup(true).
		WithLimits(isolate.ResourceLimits{MemoryKB: isolate.Uint64(131072)}).
		WithCommand([]string{"/bin/true"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mustContainSubsequence(t, argv, []string{"--cg-mem=131072"})
}

func Test_CommandBuilder_Build_Run_Elides_Optional_Mount_Missing_Source(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 0).
		WithMounts(isolate.MountConfig{Source: "/does/not/exist/xyz", Target: "/opt", Optional: true}).
		WithCommand([]string{"/bin/true"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, tok := range argv {
		if strings.Contains(tok, "--dir=/opt=") {
			t.Fatalf("expected missing optional mount to be elided, got %v", argv)
		}
	}
}

func Test_CommandBuilder_Build_Run_Includes_Required_Mount(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 0).
		WithMounts(isolate.MountConfig{Source: "/usr", Target: "/usr", Writable: false}).
		WithCommand([]string{"/bin/true"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mustContainSubsequence(t, argv, []string{"--dir=/usr=/usr"})
}

func Test_CommandBuilder_Build_Run_Sorts_Env_Deterministically(t *testing.T) {
	t.Parallel()

	argv, err := isolate.NewCommandBuilder("/usr/bin/isolate", 0).
		WithEnv("ZVAR", "1").
		WithEnv("AVAR", "2").
		WithCommand([]string{"/bin/true"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	mustContainSubsequence(t, argv, []string{"--env=AVAR=2", "--env=ZVAR=1"})
}
