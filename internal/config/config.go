// internal/config/config.go
//
// This package handles configuration and the .comdesk directory structure.
// Every working directory that runs comdesk gets a .comdesk/ folder holding
// config.yaml and the log file. Values are layered: built-in defaults, then
// config.yaml, then .env, then COMDESK_* environment variables.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in the working directory
	ProjectDirName = ".comdesk"

	DefaultBaseURL        = "http://127.0.0.1:8000"
	DefaultTablePath      = "/sales/commercial-dashboard/table/"
	DefaultPricePath      = "/sales/api/commercial/price-update/"
	DefaultRestockPath    = "/sales/api/commercial/restock/"
	DefaultCSRFCookie     = "csrftoken"
	DefaultCSRFHeader     = "X-CSRFToken"
	DefaultSessionCookie  = "sessionid"
	DefaultRequestTimeout = 15 * time.Second

	DefaultSearchDebounce = 250 * time.Millisecond
	DefaultNoticeTTL      = 6000 * time.Millisecond
	DefaultClockInterval  = time.Second

	DefaultSiteName       = "MotoShop"
	DefaultDashboardLabel = "Tableau de bord commercial"
	DefaultLocale         = "fr-FR"

	DefaultLogLevel = "info"
)

const defaultProjectConfigYAML = `# comdesk configuration
version: 1

server:
  base_url: http://127.0.0.1:8000
  # Paths of the dashboard endpoints, relative to base_url.
  table_path: /sales/commercial-dashboard/table/
  price_path: /sales/api/commercial/price-update/
  restock_path: /sales/api/commercial/restock/
  request_timeout: 15s
  # Credentials. Prefer COMDESK_SESSION_ID / COMDESK_CSRF_TOKEN in .env.
  session_cookie: sessionid
  csrf_cookie: csrftoken
  csrf_header: X-CSRFToken

ui:
  site: MotoShop
  dashboard_label: Tableau de bord commercial
  locale: fr-FR
  show_clock: true
  # Initial type filter: moto, piece, or empty for all products.
  type: ""
  search_debounce: 250ms
  notice_ttl: 6s
  clock_interval: 1s

export:
  dir: .

restock:
  # Optional Go script (interpreted) providing InitRestockModal,
  # CloseRestockModal and SubmitRestock. Empty uses the built-in form.
  script: ""

log:
  level: info
`

// ServerConfig describes where the dashboard endpoints live and how to authenticate.
type ServerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TablePath      string        `yaml:"table_path"`
	PricePath      string        `yaml:"price_path"`
	RestockPath    string        `yaml:"restock_path"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SessionCookie  string        `yaml:"session_cookie"`
	SessionID      string        `yaml:"session_id,omitempty"`
	CSRFCookie     string        `yaml:"csrf_cookie"`
	CSRFHeader     string        `yaml:"csrf_header"`
	CSRFToken      string        `yaml:"csrf_token,omitempty"`
}

// UIConfig captures the terminal dashboard preferences.
type UIConfig struct {
	Site           string        `yaml:"site"`
	DashboardLabel string        `yaml:"dashboard_label"`
	Locale         string        `yaml:"locale"`
	ShowClock      *bool         `yaml:"show_clock,omitempty"`
	Type           string        `yaml:"type"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
	NoticeTTL      time.Duration `yaml:"notice_ttl"`
	ClockInterval  time.Duration `yaml:"clock_interval"`
}

// ExportConfig controls where exported documents are written.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// RestockConfig points at an optional hook script.
type RestockConfig struct {
	Script string `yaml:"script"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ProjectConfig models .comdesk/config.yaml.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Server  ServerConfig  `yaml:"server"`
	UI      UIConfig      `yaml:"ui"`
	Export  ExportConfig  `yaml:"export"`
	Restock RestockConfig `yaml:"restock"`
	Log     LogConfig     `yaml:"log"`
}

// Config holds the runtime configuration for comdesk.
type Config struct {
	// ProjectDir is the directory where the user ran `comdesk` from
	ProjectDir string

	// StateDir is ProjectDir/.comdesk
	StateDir string

	Project ProjectConfig
}

// InitDir creates the .comdesk directory structure and writes the default
// config.yaml when none exists.
//
// Structure created:
// .comdesk/
// ├── config.yaml
// └── logs/
func InitDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, "logs"), 0o755); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := loadDotEnv(filepath.Join(projectDir, ".env")); err != nil {
		return nil, err
	}
	cfg.Project.applyEnvOverrides()
	cfg.Project.normalize(projectDir)
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// LogPath returns the log file used by the zap logger.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "comdesk.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// ShowClock reports whether the clock region is part of the screen.
func (c *Config) ShowClock() bool {
	if c.Project.UI.ShowClock == nil {
		return true
	}
	return *c.Project.UI.ShowClock
}

// DashboardLocation returns the navigation location the type filter is read from.
func (c *Config) DashboardLocation() *url.URL {
	loc := &url.URL{Path: "/sales/commercial-dashboard/"}
	if t := c.Project.UI.Type; t != "" {
		loc.RawQuery = url.Values{"type": []string{t}}.Encode()
	}
	return loc
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Server: ServerConfig{
			BaseURL:        DefaultBaseURL,
			TablePath:      DefaultTablePath,
			PricePath:      DefaultPricePath,
			RestockPath:    DefaultRestockPath,
			RequestTimeout: DefaultRequestTimeout,
			SessionCookie:  DefaultSessionCookie,
			CSRFCookie:     DefaultCSRFCookie,
			CSRFHeader:     DefaultCSRFHeader,
		},
		UI: UIConfig{
			Site:           DefaultSiteName,
			DashboardLabel: DefaultDashboardLabel,
			Locale:         DefaultLocale,
			SearchDebounce: DefaultSearchDebounce,
			NoticeTTL:      DefaultNoticeTTL,
			ClockInterval:  DefaultClockInterval,
		},
		Export: ExportConfig{Dir: "."},
		Log:    LogConfig{Level: DefaultLogLevel},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	def := defaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = 1
	}
	setDefault(&pc.Server.BaseURL, def.Server.BaseURL)
	setDefault(&pc.Server.TablePath, def.Server.TablePath)
	setDefault(&pc.Server.PricePath, def.Server.PricePath)
	setDefault(&pc.Server.RestockPath, def.Server.RestockPath)
	setDefault(&pc.Server.SessionCookie, def.Server.SessionCookie)
	setDefault(&pc.Server.CSRFCookie, def.Server.CSRFCookie)
	setDefault(&pc.Server.CSRFHeader, def.Server.CSRFHeader)
	if pc.Server.RequestTimeout <= 0 {
		pc.Server.RequestTimeout = def.Server.RequestTimeout
	}
	setDefault(&pc.UI.Site, def.UI.Site)
	setDefault(&pc.UI.DashboardLabel, def.UI.DashboardLabel)
	setDefault(&pc.UI.Locale, def.UI.Locale)
	if pc.UI.SearchDebounce <= 0 {
		pc.UI.SearchDebounce = def.UI.SearchDebounce
	}
	if pc.UI.NoticeTTL <= 0 {
		pc.UI.NoticeTTL = def.UI.NoticeTTL
	}
	if pc.UI.ClockInterval <= 0 {
		pc.UI.ClockInterval = def.UI.ClockInterval
	}
	setDefault(&pc.Export.Dir, def.Export.Dir)
	setDefault(&pc.Log.Level, def.Log.Level)
}

func (pc *ProjectConfig) normalize(base string) {
	pc.applyDefaults()
	pc.Server.BaseURL = strings.TrimRight(strings.TrimSpace(pc.Server.BaseURL), "/")
	pc.UI.Type = strings.ToLower(strings.TrimSpace(pc.UI.Type))
	pc.Log.Level = strings.ToLower(strings.TrimSpace(pc.Log.Level))
	pc.Export.Dir = resolvePath(base, pc.Export.Dir)
	pc.Restock.Script = resolvePath(base, pc.Restock.Script)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	parsed, err := url.Parse(pc.Server.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute URL, got %q", pc.Server.BaseURL)
	}
	for name, path := range map[string]string{
		"server.table_path":   pc.Server.TablePath,
		"server.price_path":   pc.Server.PricePath,
		"server.restock_path": pc.Server.RestockPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with '/'", name)
		}
	}
	switch pc.UI.Type {
	case "", "moto", "piece":
	default:
		return fmt.Errorf("ui.type must be 'moto', 'piece' or empty")
	}
	switch pc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// applyEnvOverrides reads COMDESK_* variables; invalid values are ignored.
func (pc *ProjectConfig) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("COMDESK_BASE_URL")); v != "" {
		pc.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_SESSION_ID")); v != "" {
		pc.Server.SessionID = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_CSRF_TOKEN")); v != "" {
		pc.Server.CSRFToken = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_REQUEST_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			pc.Server.RequestTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_TYPE")); v != "" {
		pc.UI.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_LOCALE")); v != "" {
		pc.UI.Locale = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_EXPORT_DIR")); v != "" {
		pc.Export.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_RESTOCK_SCRIPT")); v != "" {
		pc.Restock.Script = v
	}
	if v := strings.TrimSpace(os.Getenv("COMDESK_LOG_LEVEL")); v != "" {
		pc.Log.Level = v
	}
}

// loadDotEnv populates the process environment from path without
// overriding variables that are already set. A missing file is fine.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func setDefault(target *string, fallback string) {
	if strings.TrimSpace(*target) == "" {
		*target = fallback
	}
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
