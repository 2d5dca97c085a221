// Package backend orchestrates profile selection, refresh and template
// generation. A Backend is owned by exactly one goroutine, normally the
// scheduler loop.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"

	"clashtui/internal/errs"
	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
	"clashtui/internal/profile"
	"clashtui/internal/redact"
)

// Downloader fetches remote documents
type Downloader interface {
	Download(ctx context.Context, url string, useProxy bool) ([]byte, error)
}

// Daemon is the proxy daemon's control surface
type Daemon interface {
	ReloadConfig(ctx context.Context, path string) error
	IsReachable(ctx context.Context) bool
	CheckConnectivity(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}

// Backend owns the registry and the base configuration.
type Backend struct {
	paths      Paths
	registry   *profile.Registry
	base       *profile.LocalProfile
	downloader Downloader
	daemon     Daemon
	logger     *logging.Logger
}

// ProfileInfo describes one registry entry for listing
type ProfileInfo struct {
	Name       string
	Kind       profile.Kind
	Current    bool
	Downloaded bool
}

// UpdateOptions controls a refresh
type UpdateOptions struct {
	// UseProxy forces the download route. Nil lets the backend decide.
	UseProxy *bool
	// Providers also refreshes the http proxy providers the profile references.
	Providers bool
}

// UpdateResult is the outcome of one profile in UpdateAll
type UpdateResult struct {
	Name string
	Err  error
}

// New loads the registry and base configuration and creates missing directories.
func New(paths Paths, downloader Downloader, daemon Daemon, logger *logging.Logger) (*Backend, error) {
	for _, dir := range []string{paths.ProfilesDir, paths.TemplatesDir} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, errs.IO("create "+dir, err)
		}
	}

	registry, err := profile.LoadRegistry(paths.RegistryFile)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, err, "load registry")
	}

	base, err := profile.Load(profile.Profile{Name: BaseFileName, Kind: profile.FileKind()}, paths.BaseFile)
	if err != nil {
		return nil, err
	}
	if !base.Loaded() {
		logger.Warn("backend.base.missing", "Base configuration is missing or empty; select will fail until it exists", map[string]interface{}{
			"path": paths.BaseFile,
		})
	}

	logger.Info("backend.init", "Backend initialized", map[string]interface{}{
		"profiles": registry.Len(),
	})

	return &Backend{
		paths:      paths,
		registry:   registry,
		base:       base,
		downloader: downloader,
		daemon:     daemon,
		logger:     logger,
	}, nil
}

// Paths returns the file layout in use
func (b *Backend) Paths() Paths {
	return b.paths
}

// Current returns the selected profile, if any
func (b *Backend) Current() (profile.Profile, bool) {
	return b.registry.Current()
}

// List returns every profile sorted by name
func (b *Backend) List() []ProfileInfo {
	current, hasCurrent := b.registry.Current()

	names := b.registry.All()
	out := make([]ProfileInfo, 0, len(names))
	for _, name := range names {
		kind, _ := b.registry.Get(name)
		out = append(out, ProfileInfo{
			Name:       name,
			Kind:       kind,
			Current:    hasCurrent && current.Name == name,
			Downloaded: fsutil.Exists(b.paths.ProfilePath(name)),
		})
	}
	return out
}

// Templates returns the template file names sorted ascending
func (b *Backend) Templates() ([]string, error) {
	entries, err := os.ReadDir(b.paths.TemplatesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.IO("list templates", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Select materializes name into the active configuration, records it as
// current and asks the daemon to reload. A failed reload leaves the new file
// and pointer in place and returns a DaemonUnreachable error.
func (b *Backend) Select(ctx context.Context, name string) error {
	b.logger.Info("profile.select.start", "Selecting profile", map[string]interface{}{
		"profile": name,
	})

	merged, p, err := b.merged(name)
	if err != nil {
		return err
	}

	data, err := merged.Marshal()
	if err != nil {
		return errs.Wrap(errs.KindStructural, err, "encode active configuration")
	}
	if err := fsutil.AtomicWriteFile(b.paths.ClashConfigPath, data, fsutil.SharedFilePermissions, b.logger); err != nil {
		return errs.IO("write active configuration", err)
	}

	// The active file is already written, so the daemon is reloaded even when
	// the pointer cannot be persisted.
	b.registry.SetCurrent(p)
	var saveErr error
	if err := b.registry.Save(b.paths.RegistryFile); err != nil {
		saveErr = errs.IO("save registry", err)
		b.logger.Error("profile.select.save_failed", "Could not persist current profile", map[string]interface{}{
			"profile": name,
			"error":   err.Error(),
		})
	}

	if err := b.daemon.ReloadConfig(ctx, b.paths.ClashConfigPath); err != nil {
		b.logger.Warn("profile.select.reload_failed", "Daemon did not reload", map[string]interface{}{
			"profile": name,
			"error":   err.Error(),
		})
		return errors.Join(errs.DaemonUnreachable(err), saveErr)
	}
	if saveErr != nil {
		return saveErr
	}

	b.logger.Info("profile.select.done", "Profile selected", map[string]interface{}{
		"profile": name,
		"path":    b.paths.ClashConfigPath,
	})
	return nil
}

// Preview returns the active configuration name would produce without writing it.
func (b *Backend) Preview(name string) ([]byte, error) {
	merged, _, err := b.merged(name)
	if err != nil {
		return nil, err
	}
	data, err := merged.Marshal()
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, err, "encode active configuration")
	}
	return data, nil
}

func (b *Backend) merged(name string) (profile.Tree, profile.Profile, error) {
	p, ok := b.registry.Profile(name)
	if !ok {
		return nil, profile.Profile{}, errs.ProfileNotFound(name)
	}

	lp, err := profile.Load(p, b.paths.ProfilePath(name))
	if err != nil {
		return nil, p, err
	}
	if !lp.Loaded() {
		return nil, p, errs.Structural("profile %s has no content; update it first", name)
	}

	merged, err := lp.MergeInto(b.base)
	if err != nil {
		return nil, p, err
	}
	return merged, p, nil
}

// Import registers a new profile. With a url it is a subscription and is
// downloaded right away; without one the body must already sit in the
// profiles directory.
func (b *Backend) Import(ctx context.Context, name, link string) error {
	if err := validateName("profile", name); err != nil {
		return err
	}
	if link != "" {
		u, err := url.Parse(link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errs.New(errs.KindInvalid, "subscription link must be an http(s) URL")
		}
	}
	if _, exists := b.registry.Get(name); exists {
		return errs.New(errs.KindInvalid, "profile %s already exists", name)
	}

	if link == "" {
		path := b.paths.ProfilePath(name)
		if !fsutil.Exists(path) {
			return errs.New(errs.KindNotFound, "profile file %s does not exist", path)
		}
		if _, err := profile.Load(profile.Profile{Name: name, Kind: profile.FileKind()}, path); err != nil {
			return err
		}
		b.registry.Insert(name, profile.FileKind())
	} else {
		b.registry.Insert(name, profile.RemoteKind(link))
	}

	if err := b.registry.Save(b.paths.RegistryFile); err != nil {
		return errs.IO("save registry", err)
	}

	b.logger.Info("profile.import", "Profile imported", map[string]interface{}{
		"profile": name,
		"url":     redact.URL(link),
	})

	if link == "" {
		return nil
	}
	return b.Update(ctx, name, UpdateOptions{})
}

// Remove drops a profile and its body. Removing the current profile clears
// the current pointer; the active configuration on disk is left alone.
func (b *Backend) Remove(_ context.Context, name string) error {
	if _, ok := b.registry.Remove(name); !ok {
		return errs.ProfileNotFound(name)
	}
	if err := fsutil.RemoveIfExists(b.paths.ProfilePath(name)); err != nil {
		return errs.IO("remove profile body", err)
	}
	if err := b.registry.Save(b.paths.RegistryFile); err != nil {
		return errs.IO("save registry", err)
	}

	b.logger.Info("profile.remove", "Profile removed", map[string]interface{}{
		"profile": name,
	})
	return nil
}

// Status is the daemon's state as seen by the last probe
type Status struct {
	State   State
	Version string
	Current string
}

// State is the daemon's coarse state
type State string

const (
	// StateRunning means the controller answered.
	StateRunning State = "running"
	// StateUnknown means the controller could not be queried.
	StateUnknown State = "unknown"
)

// Status queries the daemon version
func (b *Backend) Status(ctx context.Context) (Status, error) {
	st := Status{State: StateUnknown}
	if p, ok := b.registry.Current(); ok {
		st.Current = p.Name
	}

	version, err := b.daemon.Version(ctx)
	if err != nil {
		return st, fmt.Errorf("failed to query daemon version: %w", err)
	}
	st.State = StateRunning
	st.Version = version
	return st, nil
}
