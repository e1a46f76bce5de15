package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestConfigParsing(t *testing.T) {
	content := `# Global options
log.level debug
context.reset-errors yes

[run]
format plain
log.level warn`

	c, err := LoadFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if c.HasWarnings() {
		t.Fatalf("unexpected warnings: %v", c.Warnings)
	}

	if v, ok := c.GetGlobalOption("log.level"); !ok || v != "debug" {
		t.Errorf("expected log.level=debug, got %q (exists: %v)", v, ok)
	}
	if !c.GetBool("context.reset-errors") {
		t.Errorf("expected context.reset-errors to be true")
	}
	if v, ok := c.GetCommandOption("run", "log.level"); !ok || v != "warn" {
		t.Errorf("expected run log.level=warn, got %q (exists: %v)", v, ok)
	}
	if v, ok := c.GetCommandOption("run", "context.reset-errors"); !ok || v != "yes" {
		t.Errorf("expected fallback to global, got %q (exists: %v)", v, ok)
	}
	if _, ok := c.GetCommandOption("nonexistent", "option"); ok {
		t.Errorf("expected nonexistent option to be missing")
	}
}

func TestConfigWarnings(t *testing.T) {
	content := `mystery 1
log.format yaml
context.reset-errors perhaps
[run]
fail-fast nope
bogus x`

	c, err := LoadFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if len(c.Warnings) != 5 {
		t.Fatalf("expected 5 warnings, got %d: %v", len(c.Warnings), c.Warnings)
	}
	joined := strings.Join(c.Warnings, "\n")
	for _, want := range []string{`"mystery"`, `"log.format"`, `"context.reset-errors"`, `"fail-fast"`, `"bogus"`} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a warning mentioning %s, got:\n%s", want, joined)
		}
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadFromPath(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(c.Global) != 0 {
		t.Errorf("expected empty config, got %v", c.Global)
	}

	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte("color never\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err = LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if c.GetString("color") != "never" {
		t.Errorf("expected color=never, got %q", c.GetString("color"))
	}

	if runtime.GOOS != "windows" {
		link := filepath.Join(dir, "link")
		if err := os.Symlink(path, link); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromPath(link); err == nil {
			t.Errorf("expected symlink to be rejected")
		}
	}
}

func TestSchemaResolve(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()

	if got := s.Resolve(c, "log.level"); got != "info" {
		t.Errorf("expected default info, got %q", got)
	}
	if got := s.Resolve(nil, "log.format"); got != "text" {
		t.Errorf("expected default text with nil config, got %q", got)
	}

	c.SetGlobalOption("log.level", "warn")
	if got := s.Resolve(c, "log.level"); got != "warn" {
		t.Errorf("expected config value warn, got %q", got)
	}

	t.Setenv("TESTABLE_LOG_LEVEL", "error")
	if got := s.Resolve(c, "log.level"); got != "error" {
		t.Errorf("expected env override error, got %q", got)
	}

	c.SetCommandOption("run", "format", "plain")
	if got := s.ResolveFor(c, "run", "format"); got != "plain" {
		t.Errorf("expected run format plain, got %q", got)
	}
	if got := s.ResolveFor(NewConfig(), "run", "format"); got != "pretty" {
		t.Errorf("expected run format default pretty, got %q", got)
	}
}

func TestSchemaResolveTyped(t *testing.T) {
	s := DefaultSchema()
	c := NewConfig()

	if b, err := s.ResolveBool(c, "context.reset-errors"); err != nil || b {
		t.Errorf("expected false, got %v (err %v)", b, err)
	}
	c.SetGlobalOption("context.reset-errors", "on")
	if b, err := s.ResolveBool(c, "context.reset-errors"); err != nil || !b {
		t.Errorf("expected true, got %v (err %v)", b, err)
	}
	c.SetGlobalOption("context.reset-errors", "maybe")
	if _, err := s.ResolveBool(c, "context.reset-errors"); err == nil {
		t.Errorf("expected an error for an invalid bool")
	}

	if b, err := s.ResolveBoolFor(c, "run", "fail-fast"); err != nil || b {
		t.Errorf("expected run fail-fast default false, got %v (err %v)", b, err)
	}
	c.SetCommandOption("run", "fail-fast", "yes")
	if b, err := s.ResolveBoolFor(c, "run", "fail-fast"); err != nil || !b {
		t.Errorf("expected run fail-fast true, got %v (err %v)", b, err)
	}

	if n, err := s.ResolveInt(c, "log.max-files"); err != nil || n != 5 {
		t.Errorf("expected 5, got %d (err %v)", n, err)
	}
	c.SetGlobalOption("log.max-files", "many")
	if _, err := s.ResolveInt(c, "log.max-files"); err == nil {
		t.Errorf("expected an error for an invalid int")
	}
}

func TestFormatHelp(t *testing.T) {
	help := DefaultSchema().FormatHelp()
	for _, want := range []string{
		"Global Options:",
		"log.level",
		"one of: debug, info, warn, error",
		"env: TESTABLE_LOG_LEVEL",
		"[run] Options:",
		"fail-fast",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help is missing %q:\n%s", want, help)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("TESTABLE_CONFIG", "/tmp/custom-config")
	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath: %v", err)
	}
	if got != "/tmp/custom-config" {
		t.Fatalf("expected override path, got %q", got)
	}

	home := t.TempDir()
	homeVar := "HOME"
	if runtime.GOOS == "windows" {
		homeVar = "USERPROFILE"
	}
	t.Setenv(homeVar, home)
	t.Setenv("TESTABLE_CONFIG", "")
	got, err = GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath: %v", err)
	}
	if want := filepath.Join(home, ".testable", "config"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config")

	if err := SetKeyInFile(path, "color", "auto"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "color auto\n" {
		t.Fatalf("expected %q, got %q", "color auto\n", got)
	}

	initial := "# settings\nlog.level info\n\n[run]\nlog.level warn\n"
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatal(err)
	}
	if err := SetKeyInFile(path, "log.level", "debug"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	if err := SetKeyInFile(path, "color", "never"); err != nil {
		t.Fatalf("SetKeyInFile: %v", err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "# settings\nlog.level debug\n\ncolor never\n[run]\nlog.level warn\n"
	if got := string(data); got != want {
		t.Fatalf("expected:\n%q\ngot:\n%q", want, got)
	}

	c, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := c.GetCommandOption("run", "log.level"); v != "warn" {
		t.Errorf("section value must be preserved, got %q", v)
	}
}
