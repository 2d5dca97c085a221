package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"clashtui/internal/logging"
)

type download struct {
	url   string
	proxy bool
}

type fakeDownloader struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  []download
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{bodies: make(map[string]string)}
}

func (f *fakeDownloader) Download(_ context.Context, url string, useProxy bool) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, download{url: url, proxy: useProxy})
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: connection refused", url)
	}
	return []byte(body), nil
}

func (f *fakeDownloader) last() download {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeDaemon struct {
	reachable  bool
	connErr    error
	reloadErr  error
	version    string
	versionErr error
	reloads    []string
}

func (f *fakeDaemon) ReloadConfig(_ context.Context, path string) error {
	f.reloads = append(f.reloads, path)
	return f.reloadErr
}

func (f *fakeDaemon) IsReachable(context.Context) bool { return f.reachable }

func (f *fakeDaemon) CheckConnectivity(context.Context) error { return f.connErr }

func (f *fakeDaemon) Version(context.Context) (string, error) {
	return f.version, f.versionErr
}

const baseConfig = `mixed-port: 7890
external-controller: 127.0.0.1:9090
mode: rule
proxies: []
rules:
  - MATCH,DIRECT
`

type harness struct {
	dir        string
	paths      Paths
	downloader *fakeDownloader
	daemon     *fakeDaemon
	backend    *Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	paths := NewPaths(filepath.Join(dir, "clashtui"), filepath.Join(dir, "mihomo"), filepath.Join(dir, "mihomo", "config.yaml"))
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.BaseFile), 0o750))
	require.NoError(t, os.WriteFile(paths.BaseFile, []byte(baseConfig), 0o600))

	h := &harness{
		dir:        dir,
		paths:      paths,
		downloader: newFakeDownloader(),
		daemon:     &fakeDaemon{version: "v1.18.0"},
	}
	h.reopen(t)
	return h
}

// reopen builds a fresh Backend over the same files.
func (h *harness) reopen(t *testing.T) {
	t.Helper()
	b, err := New(h.paths, h.downloader, h.daemon, logging.Discard())
	require.NoError(t, err)
	h.backend = b
}

func (h *harness) writeProfile(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.paths.ProfilePath(name), []byte(body), 0o600))
}

func (h *harness) writeTemplate(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.paths.TemplatePath(name), []byte(body), 0o600))
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func boolPtr(v bool) *bool { return &v }
