package configdir

import (
	"os"
	"path/filepath"
)

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "CLASHTUI_CONFIG_DIR"

const appName = "clashtui"

// ConfigDir resolves the configuration directory respecting overrides:
// $CLASHTUI_CONFIG_DIR, then $XDG_CONFIG_HOME/clashtui, then ~/.config/clashtui.
func ConfigDir() string {
	if env := os.Getenv(EnvConfigDir); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", appName)
	}
	return "." + appName
}
