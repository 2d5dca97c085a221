package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"clashtui/internal/configdir"
)

const (
	configFileName = "config.yaml"
	logFileName    = "clashtui.log"
	// EnvPrefix prefixes environment overrides, e.g. CLASHTUI_CONTROLLER_API.
	EnvPrefix = "CLASHTUI"
)

// Load reads config.yaml from the config dir. A missing file yields the defaults.
// Priority: defaults < config file < CLASHTUI_* environment
func Load() (Config, error) {
	return load(ConfigPath(), true)
}

// LoadFrom loads configuration from a specific file path
func LoadFrom(path string) (Config, error) {
	return load(path, false)
}

func load(path string, optional bool) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()

	if validationErrors := cfg.Validate(); len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("clash_cfg_dir", d.ClashConfigDir)
	v.SetDefault("clash_cfg_path", d.ClashConfigPath)
	v.SetDefault("controller_api", d.ControllerAPI)
	v.SetDefault("controller_secret", d.ControllerSecret)
	v.SetDefault("proxy_addr", d.ProxyAddr)
	v.SetDefault("connectivity_url", d.ConnectivityURL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("probe_ttl", d.ProbeTTL)
	v.SetDefault("queue_size", d.QueueSize)
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// normalize expands ~ and fills paths derived from other fields.
func (c *Config) normalize() {
	c.ClashConfigDir = expandHome(c.ClashConfigDir)
	c.ClashConfigPath = expandHome(c.ClashConfigPath)
	if c.ClashConfigPath == "" && c.ClashConfigDir != "" {
		c.ClashConfigPath = filepath.Join(c.ClashConfigDir, "config.yaml")
	}
	c.Logging.File = expandHome(c.Logging.File)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// LogFile returns the TUI log file path
func (c Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(configdir.ConfigDir(), logFileName)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// formatValidationErrors formats validation errors for display
func formatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	if len(errors) == 1 {
		return errors[0].Error()
	}
	result := fmt.Sprintf("%d validation errors:\n", len(errors))
	for _, err := range errors {
		result += "  - " + err.Error() + "\n"
	}
	return result
}

// ConfigPath returns the path to the configuration file
func ConfigPath() string {
	return filepath.Join(configdir.ConfigDir(), configFileName)
}
