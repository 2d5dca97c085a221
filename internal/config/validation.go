package config

import (
	"fmt"
	"net/url"
	"time"
)

// MaxQueueSize bounds queue_size
const MaxQueueSize = 1024

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateEndpoints()...)
	errors = append(errors, c.validateTiming()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError
	if c.ClashConfigDir == "" {
		errors = append(errors, ValidationError{
			Path:    "clash_cfg_dir",
			Message: "must not be empty",
		})
	}
	return errors
}

func (c *Config) validateEndpoints() []ValidationError {
	var errors []ValidationError

	if msg := checkURL(c.ControllerAPI, false, "http", "https"); msg != "" {
		errors = append(errors, ValidationError{Path: "controller_api", Message: msg})
	}
	if msg := checkURL(c.ProxyAddr, true, "http", "https", "socks5", "socks5h"); msg != "" {
		errors = append(errors, ValidationError{Path: "proxy_addr", Message: msg})
	}
	if msg := checkURL(c.ConnectivityURL, true, "http", "https"); msg != "" {
		errors = append(errors, ValidationError{Path: "connectivity_url", Message: msg})
	}

	return errors
}

// checkURL returns a message describing why raw is unusable, or "".
func checkURL(raw string, optional bool, schemes ...string) string {
	if raw == "" {
		if optional {
			return ""
		}
		return "must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("must be an absolute URL, got '%s'", raw)
	}
	if !contains(schemes, u.Scheme) {
		return fmt.Sprintf("scheme must be one of %v, got '%s'", schemes, u.Scheme)
	}
	return ""
}

func (c *Config) validateTiming() []ValidationError {
	var errors []ValidationError

	if c.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Path:    "timeout",
			Message: fmt.Sprintf("must be positive, got %s", c.Timeout),
		})
	}
	if c.ProbeTTL < 0 {
		errors = append(errors, ValidationError{
			Path:    "probe_ttl",
			Message: fmt.Sprintf("must be non-negative, got %s", c.ProbeTTL),
		})
	}
	if c.QueueSize < 1 || c.QueueSize > MaxQueueSize {
		errors = append(errors, ValidationError{
			Path:    "queue_size",
			Message: fmt.Sprintf("must be between 1 and %d, got %d", MaxQueueSize, c.QueueSize),
		})
	}
	if c.TickInterval < time.Second {
		errors = append(errors, ValidationError{
			Path:    "tick_interval",
			Message: fmt.Sprintf("must be at least 1s, got %s", c.TickInterval),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
