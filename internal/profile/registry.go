package profile

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"clashtui/internal/fsutil"
)

// Registry maps profile names to their kind and tracks the current profile.
// It is not safe for concurrent use; the scheduler goroutine owns it.
type Registry struct {
	entries map[string]Kind
	current string
}

type registryFile struct {
	Entries map[string]Kind `yaml:"entries"`
	Current string          `yaml:"current,omitempty"`
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Kind)}
}

// LoadRegistry reads the registry file. A missing file yields an empty registry.
// A current pointer naming an unknown profile is dropped.
func LoadRegistry(path string) (*Registry, error) {
	data, err := fsutil.ReadOptional(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile registry: %w", err)
	}

	r := NewRegistry()
	if len(data) == 0 {
		return r, nil
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile registry %s: %w", path, err)
	}

	for name, kind := range file.Entries {
		r.entries[name] = kind
	}
	if _, ok := r.entries[file.Current]; ok {
		r.current = file.Current
	}

	return r, nil
}

// Save writes the registry to path atomically
func (r *Registry) Save(path string) error {
	file := registryFile{
		Entries: r.entries,
		Current: r.current,
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to encode profile registry: %w", err)
	}

	if err := fsutil.AtomicWriteFile(path, data, fsutil.DefaultFilePermissions, nil); err != nil {
		return fmt.Errorf("failed to save profile registry: %w", err)
	}
	return nil
}

// Insert adds or replaces an entry and returns the previous kind, if any
func (r *Registry) Insert(name string, kind Kind) (Kind, bool) {
	prev, existed := r.entries[name]
	r.entries[name] = kind
	return prev, existed
}

// Get returns the kind registered under name
func (r *Registry) Get(name string) (Kind, bool) {
	kind, ok := r.entries[name]
	return kind, ok
}

// Profile returns the named profile
func (r *Registry) Profile(name string) (Profile, bool) {
	kind, ok := r.entries[name]
	if !ok {
		return Profile{}, false
	}
	return Profile{Name: name, Kind: kind}, true
}

// Remove deletes an entry and returns it. Removing the current profile clears
// the current pointer.
func (r *Registry) Remove(name string) (Kind, bool) {
	kind, ok := r.entries[name]
	if !ok {
		return Kind{}, false
	}
	delete(r.entries, name)
	if r.current == name {
		r.current = ""
	}
	return kind, true
}

// All returns every profile name in ascending order
func (r *Registry) All() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered profiles
func (r *Registry) Len() int {
	return len(r.entries)
}

// Current returns the current profile, if one is set
func (r *Registry) Current() (Profile, bool) {
	if r.current == "" {
		return Profile{}, false
	}
	return r.Profile(r.current)
}

// SetCurrent marks p as the current profile.
// It panics if p is not registered: callers only pass names taken from the registry.
func (r *Registry) SetCurrent(p Profile) {
	if _, ok := r.entries[p.Name]; !ok {
		panic(fmt.Sprintf("profile: SetCurrent(%q): profile is not registered", p.Name))
	}
	r.current = p.Name
}
