package main

import (
	"bytes"
	"strings"
	"testing"
)

func Test_Run_With_No_Args_Prints_Usage(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	code := Run(strings.NewReader(""), &stdout, &bytes.Buffer{}, []string{"isobox"})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stdout.String(), "Usage") {
		t.Fatalf("expected usage text, got %q", stdout.String())
	}
}

func Test_Run_With_Unknown_Subcommand_Fails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	code := Run(strings.NewReader(""), &bytes.Buffer{}, &stderr, []string{"isobox", "bogus"})

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr.String(), "unknown subcommand") {
		t.Fatalf("expected unknown-subcommand error, got %q", stderr.String())
	}
}

func Test_Run_Languages_With_Empty_Config_Reports_None_Configured(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	code := Run(strings.NewReader(""), &stdout, &bytes.Buffer{}, []string{"isobox", "languages"})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stdout.String(), "none configured") {
		t.Fatalf("expected 'none configured', got %q", stdout.String())
	}
}

func Test_Run_ShowConfig_With_Empty_Config_Reports_Defaults(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	code := Run(strings.NewReader(""), &stdout, &bytes.Buffer{}, []string{"isobox", "show-config"})

	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}

	if !strings.Contains(stdout.String(), "cg_root:") {
		t.Fatalf("expected cg_root in output, got %q", stdout.String())
	}
}

func Test_Run_Compile_Without_Language_Flag_Fails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	code := Run(strings.NewReader(""), &bytes.Buffer{}, &stderr, []string{"isobox", "compile"})

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	if !strings.Contains(stderr.String(), "--language") {
		t.Fatalf("expected missing --language error, got %q", stderr.String())
	}
}
