package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

var envKeys = []string{
	"COMDESK_BASE_URL", "COMDESK_SESSION_ID", "COMDESK_CSRF_TOKEN",
	"COMDESK_REQUEST_TIMEOUT", "COMDESK_TYPE", "COMDESK_LOCALE",
	"COMDESK_EXPORT_DIR", "COMDESK_RESTOCK_SCRIPT", "COMDESK_LOG_LEVEL",
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	clearEnv(t, envKeys...)
	projectDir := t.TempDir()
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", cfg.Project.Version)
	}
	if cfg.Project.UI.SearchDebounce != 250*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.Project.UI.SearchDebounce)
	}
	if cfg.Project.UI.NoticeTTL != 6000*time.Millisecond {
		t.Fatalf("unexpected notice ttl: %s", cfg.Project.UI.NoticeTTL)
	}
	if cfg.Project.UI.ClockInterval != DefaultClockInterval {
		t.Fatalf("unexpected clock interval: %s", cfg.Project.UI.ClockInterval)
	}
	if cfg.Project.Export.Dir != filepath.Clean(projectDir) {
		t.Fatalf("expected export dir to resolve to project dir, got %s", cfg.Project.Export.Dir)
	}
	if !cfg.ShowClock() {
		t.Fatalf("clock should be shown by default")
	}
}

func TestInitDirWritesParsableTemplate(t *testing.T) {
	clearEnv(t, envKeys...)
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, ProjectDirName, "logs")); err != nil {
		t.Fatalf("logs dir missing: %v", err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig on template: %v", err)
	}
	if cfg.Project.Server.TablePath != DefaultTablePath {
		t.Fatalf("unexpected table path %q", cfg.Project.Server.TablePath)
	}
	if cfg.Project.UI.NoticeTTL != 6*time.Second {
		t.Fatalf("unexpected notice ttl %s", cfg.Project.UI.NoticeTTL)
	}
	if cfg.Project.UI.ClockInterval != time.Second {
		t.Fatalf("unexpected clock interval %s", cfg.Project.UI.ClockInterval)
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	clearEnv(t, envKeys...)
	projectDir := t.TempDir()
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
server:
  base_url: https://shop.example.com/
ui:
  type: Moto
  show_clock: false
  search_debounce: 400ms
restock:
  script: hooks/restock.go
log:
  level: DEBUG
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Project.Server.BaseURL != "https://shop.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Project.Server.BaseURL)
	}
	if cfg.Project.Server.PricePath != DefaultPricePath {
		t.Fatalf("missing keys should keep defaults, got %q", cfg.Project.Server.PricePath)
	}
	if cfg.Project.UI.Type != "moto" || cfg.ShowClock() {
		t.Fatalf("unexpected ui config: %+v", cfg.Project.UI)
	}
	if cfg.Project.UI.SearchDebounce != 400*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.Project.UI.SearchDebounce)
	}
	if !strings.HasPrefix(cfg.Project.Restock.Script, projectDir) {
		t.Fatalf("expected script path to be absolute, got %s", cfg.Project.Restock.Script)
	}
	if cfg.Project.Log.Level != "debug" {
		t.Fatalf("expected lower-cased level, got %s", cfg.Project.Log.Level)
	}
	if got := cfg.DashboardLocation().Query().Get("type"); got != "moto" {
		t.Fatalf("expected type in location, got %q", got)
	}
}

func TestNewConfigValidation(t *testing.T) {
	clearEnv(t, envKeys...)
	cases := map[string]string{
		"relative base":  "server:\n  base_url: shop.local\n",
		"bad type":       "ui:\n  type: bike\n",
		"bad path":       "server:\n  table_path: table/\n",
		"bad log level":  "log:\n  level: loud\n",
		"malformed yaml": "server: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			stateDir := filepath.Join(projectDir, ProjectDirName)
			if err := os.MkdirAll(stateDir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestDotEnvAndEnvironmentOverrides(t *testing.T) {
	clearEnv(t, envKeys...)
	projectDir := t.TempDir()
	dotenv := "COMDESK_SESSION_ID=from-dotenv\nCOMDESK_CSRF_TOKEN=tok-dotenv\n"
	if err := os.WriteFile(filepath.Join(projectDir, ".env"), []byte(dotenv), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COMDESK_CSRF_TOKEN", "tok-env")
	t.Setenv("COMDESK_REQUEST_TIMEOUT", "3s")
	t.Setenv("COMDESK_LOG_LEVEL", "nonsense-is-caught-by-validate")
	if _, err := NewConfig(projectDir); err == nil {
		t.Fatalf("expected invalid env log level to fail validation")
	}
	t.Setenv("COMDESK_LOG_LEVEL", "warn")
	cfg, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if cfg.Project.Server.SessionID != "from-dotenv" {
		t.Fatalf("expected session from .env, got %q", cfg.Project.Server.SessionID)
	}
	if cfg.Project.Server.CSRFToken != "tok-env" {
		t.Fatalf("process env must win over .env, got %q", cfg.Project.Server.CSRFToken)
	}
	if cfg.Project.Server.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Project.Server.RequestTimeout)
	}
	if cfg.Project.Log.Level != "warn" {
		t.Fatalf("unexpected level %s", cfg.Project.Log.Level)
	}
}
