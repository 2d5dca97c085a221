package backend

import (
	"path/filepath"
	"strings"

	"clashtui/internal/errs"
)

// File and directory names inside the clashtui config dir
const (
	ProfilesDirName  = "profiles"
	TemplatesDirName = "templates"
	RegistryFileName = "profiles.yaml"
	BaseFileName     = "basic_clash_config.yaml"
)

// Paths locates everything the backend reads and writes.
type Paths struct {
	ProfilesDir  string
	TemplatesDir string
	RegistryFile string
	BaseFile     string
	// ClashConfigDir is the daemon's working directory; provider paths are relative to it.
	ClashConfigDir string
	// ClashConfigPath is the active configuration the daemon loads.
	ClashConfigPath string
}

// NewPaths lays out the backend files under configDir
func NewPaths(configDir, clashConfigDir, clashConfigPath string) Paths {
	return Paths{
		ProfilesDir:     filepath.Join(configDir, ProfilesDirName),
		TemplatesDir:    filepath.Join(configDir, TemplatesDirName),
		RegistryFile:    filepath.Join(configDir, RegistryFileName),
		BaseFile:        filepath.Join(configDir, BaseFileName),
		ClashConfigDir:  clashConfigDir,
		ClashConfigPath: clashConfigPath,
	}
}

// ProfilePath returns the body file of profile name
func (p Paths) ProfilePath(name string) string {
	return filepath.Join(p.ProfilesDir, name)
}

// TemplatePath returns the document of template name
func (p Paths) TemplatePath(name string) string {
	return filepath.Join(p.TemplatesDir, name)
}

// validateName rejects names that cannot be used as a plain file name.
func validateName(what, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errs.New(errs.KindInvalid, "%s name must not be empty", what)
	case name == "." || name == "..":
		return errs.New(errs.KindInvalid, "invalid %s name %q", what, name)
	case strings.ContainsAny(name, `/\`):
		return errs.New(errs.KindInvalid, "%s name %q must not contain path separators", what, name)
	}
	return nil
}
