package config_test

import (
	"testing"

	"github.com/nullbox/isobox/config"
)

func Test_ParseLanguagesTOML_Parses_Minimal_Language(t *testing.T) {
	t.Parallel()

	toml := `
[languages.test]
name = "Test Language"
extension = "test"

[languages.test.run]
command = ["./test"]
`

	langs, err := config.ParseLanguagesTOML([]byte(toml))
	if err != nil {
		t.Fatalf("ParseLanguagesTOML: %v", err)
	}

	lang, ok := langs["test"]
	if !ok {
		t.Fatal("expected language 'test' to be present")
	}

	if lang.Name != "Test Language" {
		t.Fatalf("Name = %q, want Test Language", lang.Name)
	}
}

func Test_ParseLanguagesTOML_Rejects_Empty_Name(t *testing.T) {
	t.Parallel()

	toml := `
[languages.test]
name = ""
extension = "test"

[languages.test.run]
command = ["./test"]
`

	if _, err := config.ParseLanguagesTOML([]byte(toml)); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func Test_ParseLanguagesTOML_Partial_Limits_Leave_Other_Fields_Nil(t *testing.T) {
	t.Parallel()

	toml := `
[languages.go]
name = "Go"
extension = "go"

[languages.go.compile]
command = ["go", "build", "-o", "{output}", "{source}"]

[languages.go.compile.limits]
max_processes = 50

[languages.go.run]
command = ["./{binary}"]
`

	langs, err := config.ParseLanguagesTOML([]byte(toml))
	if err != nil {
		t.Fatalf("ParseLanguagesTOML: %v", err)
	}

	limits := langs["go"].Compile.Limits

	if limits.MaxProcesses == nil || *limits.MaxProcesses != 50 {
		t.Fatalf("expected max_processes=50, got %v", limits.MaxProcesses)
	}

	if limits.CPUTimeSeconds != nil {
		t.Fatalf("expected unspecified time_limit to stay nil, got %v", *limits.CPUTimeSeconds)
	}
}

func Test_ParseLanguagesTOML_Rejects_Empty_Compile_Command(t *testing.T) {
	t.Parallel()

	toml := `
[languages.broken]
name = "Broken"
extension = "brk"

[languages.broken.compile]
command = []

[languages.broken.run]
command = ["./broken"]
`

	if _, err := config.ParseLanguagesTOML([]byte(toml)); err == nil {
		t.Fatal("expected error for empty compile command")
	}
}
