package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nullbox/isobox/config"
)

func Test_ParseJSON_Defaults_CgRoot_And_Limits_When_Absent(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseJSON([]byte(`{}`), "")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if cfg.CgRoot != config.DefaultCgRoot {
		t.Fatalf("CgRoot = %q, want %q", cfg.CgRoot, config.DefaultCgRoot)
	}

	if cfg.DefaultLimits.CPUTimeSeconds == nil || *cfg.DefaultLimits.CPUTimeSeconds != 2 {
		t.Fatalf("expected default CPUTimeSeconds=2, got %v", cfg.DefaultLimits.CPUTimeSeconds)
	}
}

func Test_ParseJSON_Allows_Comments_Via_Hujson(t *testing.T) {
	t.Parallel()

	doc := `{
  // cgroup memory limiting is required for the JVM and Go runtimes
  "cgroup": true,
  "cg_root": "/sys/fs/cgroup/custom",
}`

	cfg, err := config.ParseJSON([]byte(doc), "")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if !cfg.Cgroup {
		t.Fatal("expected cgroup=true")
	}

	if cfg.CgRoot != "/sys/fs/cgroup/custom" {
		t.Fatalf("CgRoot = %q", cfg.CgRoot)
	}
}

func Test_ParseJSON_Partial_DefaultLimits_Does_Not_Backfill(t *testing.T) {
	t.Parallel()

	doc := `{"default_limits": {"time_limit": 10}}`

	cfg, err := config.ParseJSON([]byte(doc), "")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if *cfg.DefaultLimits.CPUTimeSeconds != 10 {
		t.Fatalf("time_limit = %v, want 10", cfg.DefaultLimits.CPUTimeSeconds)
	}

	if cfg.DefaultLimits.MemoryKB != nil {
		t.Fatalf("expected unspecified memory_limit to stay nil, got %v", *cfg.DefaultLimits.MemoryKB)
	}
}

func Test_Load_Resolves_Language_Files_Relative_To_Config_Dir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	langFile := filepath.Join(dir, "languages.toml")
	langTOML := `
[languages.test]
name = "Test"
extension = "test"

[languages.test.run]
command = ["./test"]
`
	if err := os.WriteFile(langFile, []byte(langTOML), 0o644); err != nil {
		t.Fatalf("writing language file: %v", err)
	}

	configFile := filepath.Join(dir, "isobox.json")
	if err := os.WriteFile(configFile, []byte(`{"language_files": ["languages.toml"]}`), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := cfg.Languages["test"]; !ok {
		t.Fatal("expected language 'test' to be loaded from relative path")
	}
}

func Test_Config_GetLanguage_Fails_For_Unknown_ID(t *testing.T) {
	t.Parallel()

	cfg := config.Empty()

	if _, err := cfg.GetLanguage("nope"); err == nil {
		t.Fatal("expected error for unknown language id")
	}
}

func Test_Config_IsolateBinary_Defaults_To_PATH_Lookup_Name(t *testing.T) {
	t.Parallel()

	cfg := config.Empty()

	if got := cfg.IsolateBinary(); got != "isolate" {
		t.Fatalf("IsolateBinary() = %q, want isolate", got)
	}
}
