package config

import (
	"fmt"
	"time"
)

// Config represents the clashtui configuration
type Config struct {
	// ClashConfigDir is the daemon's working directory.
	ClashConfigDir string `mapstructure:"clash_cfg_dir" yaml:"clash_cfg_dir"`
	// ClashConfigPath is the active configuration file. Defaults to config.yaml in ClashConfigDir.
	ClashConfigPath  string        `mapstructure:"clash_cfg_path" yaml:"clash_cfg_path"`
	ControllerAPI    string        `mapstructure:"controller_api" yaml:"controller_api"`
	ControllerSecret string        `mapstructure:"controller_secret" yaml:"controller_secret"`
	ProxyAddr        string        `mapstructure:"proxy_addr" yaml:"proxy_addr"`
	ConnectivityURL  string        `mapstructure:"connectivity_url" yaml:"connectivity_url"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ProbeTTL         time.Duration `mapstructure:"probe_ttl" yaml:"probe_ttl"`
	QueueSize        int           `mapstructure:"queue_size" yaml:"queue_size"`
	TickInterval     time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Logging          LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File is where the TUI writes its log. Empty means clashtui.log in the config dir.
	File string `mapstructure:"file" yaml:"file"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}
