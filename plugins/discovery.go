package plugins

import (
	"os"
	"path/filepath"

	"github.com/kingrea/comdesk/internal/config"
)

// DefaultScriptName is the restock script picked up from .comdesk/plugins
// when config.yaml does not name one.
const DefaultScriptName = "restock.go"

// PluginsDir returns the folder scanned for a restock script.
func PluginsDir(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.StateDir, "plugins")
}

// RestockScriptPath returns the configured restock script, falling back to
// .comdesk/plugins/restock.go when that file exists. It returns "" when no
// script applies.
func RestockScriptPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	if script := cfg.Project.Restock.Script; script != "" {
		return script
	}
	candidate := filepath.Join(PluginsDir(cfg), DefaultScriptName)
	info, err := os.Stat(candidate)
	if err != nil || info.IsDir() {
		return ""
	}
	return candidate
}
