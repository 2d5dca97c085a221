// Package diag bundles logs, configuration and registry into a ZIP that users
// can attach to bug reports. Everything copied in is redacted first.
package diag

import (
	"path/filepath"
	"time"
)

// ManifestFileName is the manifest entry inside every bundle
const ManifestFileName = "diag_manifest.json"

// Manifest describes the bundle contents
type Manifest struct {
	Timestamp       string         `json:"timestamp"`
	Host            string         `json:"host"`
	ClashtuiVersion string         `json:"clashtui_version"`
	DaemonVersion   string         `json:"daemon_version"`
	Files           []ManifestFile `json:"files"`
}

// ManifestFile represents a file in the diagnostic package
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Config locates the artifacts to collect
type Config struct {
	ConfigFile   string
	RegistryFile string
	UIStateFile  string
	LogFile      string
	OutputPath   string
	// Version is the clashtui version; DaemonVersion is empty when unknown.
	Version       string
	DaemonVersion string
}

// DefaultOutputPath names a bundle in dir after the current time
func DefaultOutputPath(dir string, now time.Time) string {
	return filepath.Join(dir, "clashtui-diag-"+now.UTC().Format("20060102-150405")+".zip")
}
