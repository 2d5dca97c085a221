package config

import "time"

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ClashConfigDir:  "/etc/mihomo",
		ControllerAPI:   "http://127.0.0.1:9090",
		ProxyAddr:       "http://127.0.0.1:7890",
		ConnectivityURL: "https://www.gstatic.com/generate_204",
		Timeout:         10 * time.Second,
		ProbeTTL:        5 * time.Second,
		QueueSize:       16,
		TickInterval:    5 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
