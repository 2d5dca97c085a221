package diag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
	"clashtui/internal/redact"
)

// Bundle paths
const (
	bundleLog      = "logs/clashtui.log"
	bundleConfig   = "config/config.yaml"
	bundleRegistry = "config/profiles.yaml"
	bundleUIState  = "config/ui_state.json"
	bundleSystem   = "system_info.json"
)

// Collector gathers diagnostic artifacts. Profile bodies are never collected;
// they carry proxy credentials.
type Collector struct {
	config   *Config
	redactor *redact.Redactor
	logger   *logging.Logger
}

// NewCollector creates a new diagnostic collector
func NewCollector(config *Config, logger *logging.Logger) *Collector {
	return &Collector{
		config:   config,
		redactor: redact.Default,
		logger:   logger,
	}
}

// Collect returns every available artifact keyed by bundle path. Missing
// files are skipped; read errors are logged and skipped.
func (c *Collector) Collect() map[string][]byte {
	files := make(map[string][]byte)

	for _, src := range []struct {
		bundlePath string
		path       string
	}{
		{bundleLog, c.config.LogFile},
		{bundleConfig, c.config.ConfigFile},
		{bundleRegistry, c.config.RegistryFile},
		{bundleUIState, c.config.UIStateFile},
	} {
		content, ok := c.collectFile(src.path)
		if ok {
			files[src.bundlePath] = content
		}
	}

	sysInfo, err := c.systemInfo()
	if err != nil {
		c.logger.Error("diag.collect.sysinfo_error", "Failed to build system info", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		files[bundleSystem] = sysInfo
	}

	c.logger.Info("diag.collect.complete", "Artifact collection complete", map[string]interface{}{
		"file_count": len(files),
	})
	return files
}

func (c *Collector) collectFile(path string) ([]byte, bool) {
	if path == "" {
		return nil, false
	}
	content, err := fsutil.ReadOptional(path)
	if err != nil {
		c.logger.Warn("diag.collect.read_error", "Failed to read file", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil, false
	}
	if content == nil {
		c.logger.Debug("diag.collect.missing", "File not found", map[string]interface{}{
			"path": path,
		})
		return nil, false
	}
	return []byte(c.redactor.Redact(string(content))), true
}

func (c *Collector) systemInfo() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	daemon := c.config.DaemonVersion
	if daemon == "" {
		daemon = "unknown"
	}

	info := map[string]interface{}{
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"host":             hostname,
		"os":               runtime.GOOS,
		"arch":             runtime.GOARCH,
		"go_version":       runtime.Version(),
		"clashtui_version": c.config.Version,
		"daemon_version":   daemon,
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal system info: %w", err)
	}
	return data, nil
}

// CalculateSHA256 computes SHA256 hash of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
