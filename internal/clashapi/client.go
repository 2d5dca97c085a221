// Package clashapi talks to the proxy daemon's external controller and fetches
// subscription documents, directly or through the daemon's mixed port.
package clashapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
	"clashtui/internal/redact"
)

const (
	// DefaultTimeout bounds every request the client makes.
	DefaultTimeout = 10 * time.Second
	// DefaultProbeTTL is how long a reachability answer is reused.
	DefaultProbeTTL = 5 * time.Second
	// MaxBodySize caps downloaded documents.
	MaxBodySize = 32 << 20

	userAgent = "clash.meta"
	probeKey  = "reachable"
)

// Options configures a Client
type Options struct {
	// Controller is the daemon's external-controller base URL, e.g. http://127.0.0.1:9090.
	Controller string
	// Secret is sent as a bearer token when non-empty.
	Secret string
	// ProxyAddr is the daemon's HTTP proxy, e.g. http://127.0.0.1:7890.
	ProxyAddr string
	// ConnectivityURL is fetched through the proxy to prove it forwards traffic.
	ConnectivityURL string
	Timeout         time.Duration
	ProbeTTL        time.Duration
}

// Client implements the daemon and downloader collaborators over HTTP.
type Client struct {
	opts    Options
	direct  *http.Client
	proxied *http.Client
	probes  *gocache.Cache
	logger  *logging.Logger
}

// VersionInfo is the body of GET /version
type VersionInfo struct {
	Version string `json:"version"`
	Meta    bool   `json:"meta"`
}

// New creates a client. A nil logger discards events.
func New(opts Options, logger *logging.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ProbeTTL <= 0 {
		opts.ProbeTTL = DefaultProbeTTL
	}
	opts.Controller = strings.TrimRight(opts.Controller, "/")
	if opts.Controller == "" {
		return nil, fmt.Errorf("controller address is required")
	}
	if _, err := url.ParseRequestURI(opts.Controller); err != nil {
		return nil, fmt.Errorf("invalid controller address %q: %w", opts.Controller, err)
	}

	c := &Client{
		opts:   opts,
		direct: &http.Client{Timeout: opts.Timeout},
		probes: gocache.New(opts.ProbeTTL, 2*opts.ProbeTTL),
		logger: logger,
	}

	if opts.ProxyAddr != "" {
		proxyURL, err := url.Parse(opts.ProxyAddr)
		if err != nil || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy address %q", opts.ProxyAddr)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		c.proxied = &http.Client{Timeout: opts.Timeout, Transport: transport}
	}

	return c, nil
}

// Download fetches a document. When useProxy is set and a proxy is configured
// the request goes through the daemon.
func (c *Client) Download(ctx context.Context, rawURL string, useProxy bool) ([]byte, error) {
	client := c.direct
	if useProxy && c.proxied != nil {
		client = c.proxied
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", redact.Error(err))
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("download.start", "Fetching document", map[string]interface{}{
		"url":       redact.URL(rawURL),
		"use_proxy": useProxy && c.proxied != nil,
	})

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", redact.Error(err))
	}
	defer fsutil.CloseWithError(resp.Body.Close, c.logger, "download response body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: unexpected status code %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("document exceeds %d bytes", MaxBodySize)
	}
	return body, nil
}

// ReloadConfig asks the daemon to reload its configuration from path.
func (c *Client) ReloadConfig(ctx context.Context, path string) error {
	payload, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return fmt.Errorf("failed to encode reload request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/configs?force=true", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.direct.Do(req)
	if err != nil {
		c.probes.Delete(probeKey)
		return fmt.Errorf("reload request failed: %w", err)
	}
	defer fsutil.CloseWithError(resp.Body.Close, c.logger, "reload response body")

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("reload rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.logger.Info("daemon.reload", "Daemon reloaded configuration", map[string]interface{}{
		"path": path,
	})
	return nil
}

// Version queries the daemon version.
func (c *Client) Version(ctx context.Context) (string, error) {
	info, err := c.VersionInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.Version, nil
}

// VersionInfo queries GET /version.
func (c *Client) VersionInfo(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo

	req, err := c.newRequest(ctx, http.MethodGet, "/version", nil)
	if err != nil {
		return info, err
	}

	resp, err := c.direct.Do(req)
	if err != nil {
		return info, fmt.Errorf("version request failed: %w", err)
	}
	defer fsutil.CloseWithError(resp.Body.Close, c.logger, "version response body")

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("unexpected status code: got %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&info); err != nil {
		return info, fmt.Errorf("failed to decode version: %w", err)
	}
	return info, nil
}

// IsReachable reports whether the controller answers. The answer is memoised
// for ProbeTTL.
func (c *Client) IsReachable(ctx context.Context) bool {
	if v, ok := c.probes.Get(probeKey); ok {
		if reachable, ok := v.(bool); ok {
			return reachable
		}
	}

	_, err := c.VersionInfo(ctx)
	reachable := err == nil
	if !reachable {
		c.logger.Debug("daemon.probe", "Controller not reachable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	c.probes.SetDefault(probeKey, reachable)
	return reachable
}

// CheckConnectivity fetches ConnectivityURL through the proxy.
func (c *Client) CheckConnectivity(ctx context.Context) error {
	if c.proxied == nil {
		return fmt.Errorf("no proxy address configured")
	}
	if c.opts.ConnectivityURL == "" {
		return fmt.Errorf("no connectivity url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.ConnectivityURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.proxied.Do(req)
	if err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	defer fsutil.CloseWithError(resp.Body.Close, c.logger, "connectivity response body")

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("connectivity check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.Controller+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.opts.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Secret)
	}
	return req, nil
}
