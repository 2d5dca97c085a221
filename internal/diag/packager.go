package diag

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
)

// Packager creates diagnostic ZIP packages
type Packager struct {
	config    *Config
	collector *Collector
	logger    *logging.Logger
}

// NewPackager creates a new diagnostic packager
func NewPackager(config *Config, logger *logging.Logger) *Packager {
	return &Packager{
		config:    config,
		collector: NewCollector(config, logger),
		logger:    logger,
	}
}

// CreatePackage collects, writes the ZIP and returns its path
func (p *Packager) CreatePackage() (string, error) {
	p.logger.Info("diag.package.start", "Creating diagnostic package", map[string]interface{}{
		"output": p.config.OutputPath,
	})

	files := p.collector.Collect()

	manifestJSON, err := json.MarshalIndent(p.createManifest(files), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	files[ManifestFileName] = manifestJSON

	if err := p.createZIP(files); err != nil {
		return "", err
	}

	p.logger.Info("diag.package.complete", "Diagnostic package created", map[string]interface{}{
		"output":     p.config.OutputPath,
		"file_count": len(files),
	})
	return p.config.OutputPath, nil
}

func (p *Packager) createManifest(files map[string][]byte) *Manifest {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	manifest := &Manifest{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Host:            hostname,
		ClashtuiVersion: p.config.Version,
		DaemonVersion:   p.config.DaemonVersion,
		Files:           make([]ManifestFile, 0, len(files)),
	}
	for _, path := range sortedKeys(files) {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(files[path])),
			SHA256:    CalculateSHA256(files[path]),
		})
	}
	return manifest
}

// createZIP writes the archive in path order. A failed entry aborts the
// package; a partial bundle is removed.
func (p *Packager) createZIP(files map[string][]byte) (err error) {
	if err := fsutil.EnsureDir(filepath.Dir(p.config.OutputPath)); err != nil {
		return err
	}
	zipFile, err := os.OpenFile(filepath.Clean(p.config.OutputPath), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fsutil.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := zipFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", closeErr)
		}
		if err != nil {
			_ = fsutil.RemoveIfExists(p.config.OutputPath)
		}
	}()

	zipWriter := zip.NewWriter(zipFile)
	for _, path := range sortedKeys(files) {
		w, err := zipWriter.Create(path)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", path, err)
		}
		if _, err := w.Write(files[path]); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish ZIP: %w", err)
	}
	return nil
}

func sortedKeys(files map[string][]byte) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
