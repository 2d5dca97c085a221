package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"clashtui/internal/errs"
	"clashtui/internal/fsutil"
	"clashtui/internal/profile"
	"clashtui/internal/redact"
	"clashtui/internal/tpl"
)

// Update refreshes one profile. Remote profiles are re-downloaded, derived
// profiles are regenerated from their template. A downloaded body that is not
// a YAML mapping is rejected and the previous body is kept.
func (b *Backend) Update(ctx context.Context, name string, opts UpdateOptions) error {
	kind, ok := b.registry.Get(name)
	if !ok {
		return errs.ProfileNotFound(name)
	}

	if !kind.Upgradable() {
		return errs.NotUpgradable(name)
	}

	var useProxy bool
	if kind.Tag == profile.TagRemote || opts.Providers {
		useProxy = b.useProxy(ctx, opts.UseProxy)
	}

	if kind.Tag == profile.TagDerived {
		if _, err := b.Generate(ctx, kind.Template); err != nil {
			return err
		}
	} else if err := b.downloadProfile(ctx, name, kind.URL, useProxy); err != nil {
		return err
	}

	if opts.Providers {
		return b.updateProviders(ctx, name, useProxy)
	}
	return nil
}

// UpdateAll refreshes every upgradable profile in name order. A failure is
// recorded and the remaining profiles are still attempted.
func (b *Backend) UpdateAll(ctx context.Context, opts UpdateOptions) []UpdateResult {
	var results []UpdateResult
	for _, name := range b.registry.All() {
		kind, _ := b.registry.Get(name)
		if !kind.Upgradable() {
			continue
		}
		if err := ctx.Err(); err != nil {
			results = append(results, UpdateResult{Name: name, Err: err})
			continue
		}
		results = append(results, UpdateResult{Name: name, Err: b.Update(ctx, name, opts)})
	}
	return results
}

// useProxy resolves the download route. Without an explicit choice the proxy is
// used only when the daemon answers and forwards traffic.
func (b *Backend) useProxy(ctx context.Context, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	if !b.daemon.IsReachable(ctx) {
		return false
	}
	if err := b.daemon.CheckConnectivity(ctx); err != nil {
		b.logger.Debug("download.proxy.skip", "Proxy does not forward traffic; downloading directly", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return true
}

func (b *Backend) downloadProfile(ctx context.Context, name, url string, useProxy bool) error {
	b.logger.Info("profile.update.start", "Downloading profile", map[string]interface{}{
		"profile":   name,
		"url":       redact.URL(url),
		"use_proxy": useProxy,
	})

	body, err := b.downloader.Download(ctx, url, useProxy)
	if err != nil {
		return errs.IO(fmt.Sprintf("download profile %s", name), redact.Error(err))
	}

	tree, err := profile.ParseTree(body)
	if err != nil {
		return errs.Wrap(errs.KindStructural, err, "profile %s", name)
	}
	if len(tree) == 0 {
		return errs.Structural("profile %s: downloaded document is empty", name)
	}

	if err := fsutil.AtomicWriteFile(b.paths.ProfilePath(name), body, fsutil.DefaultFilePermissions, b.logger); err != nil {
		return errs.IO(fmt.Sprintf("write profile %s", name), err)
	}

	b.logger.Info("profile.update.done", "Profile updated", map[string]interface{}{
		"profile": name,
		"bytes":   len(body),
	})
	return nil
}

// updateProviders downloads every http proxy provider of the profile into the
// daemon's directory. Every provider is attempted; failures are joined.
func (b *Backend) updateProviders(ctx context.Context, name string, useProxy bool) error {
	p, _ := b.registry.Profile(name)
	lp, err := profile.Load(p, b.paths.ProfilePath(name))
	if err != nil {
		return err
	}
	if !lp.Loaded() {
		return nil
	}

	raw, ok := lp.Content[tpl.KeyProviders]
	if !ok || raw == nil {
		return nil
	}
	providers, ok := raw.(map[string]any)
	if !ok {
		return errs.Structural("profile %s: %s must be a mapping", name, tpl.KeyProviders)
	}
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)

	var failures []error
	for _, n := range names {
		body, ok := providers[n].(map[string]any)
		if !ok {
			failures = append(failures, errs.Structural("profile %s: provider %s must be a mapping", name, n))
			continue
		}
		if body["type"] != "http" {
			continue
		}
		url, _ := body["url"].(string)
		path, _ := body["path"].(string)
		if url == "" || path == "" {
			continue
		}
		if err := b.downloadProvider(ctx, n, url, path, useProxy); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (b *Backend) downloadProvider(ctx context.Context, name, url, path string, useProxy bool) error {
	path = filepath.Clean(path)
	if !filepath.IsLocal(path) {
		return errs.New(errs.KindInvalid, "provider %s: path %s escapes the daemon directory", name, path)
	}

	data, err := b.downloader.Download(ctx, url, useProxy)
	if err != nil {
		return errs.IO(fmt.Sprintf("download provider %s", name), redact.Error(err))
	}

	dest := filepath.Join(b.paths.ClashConfigDir, path)
	if err := fsutil.AtomicWriteFile(dest, data, fsutil.SharedFilePermissions, b.logger); err != nil {
		return errs.IO(fmt.Sprintf("write provider %s", name), err)
	}

	b.logger.Info("provider.update.done", "Provider updated", map[string]interface{}{
		"provider": name,
		"path":     dest,
	})
	return nil
}

// Generate expands template with the URLs of the profiles it uses, writes the
// result as "<template>.generated" and registers it. Names in uses that are
// unknown or not subscriptions are skipped. Nothing is written on error.
func (b *Backend) Generate(ctx context.Context, template string) (profile.Profile, error) {
	if err := validateName("template", template); err != nil {
		return profile.Profile{}, err
	}
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}

	data, err := fsutil.ReadOptional(b.paths.TemplatePath(template))
	if err != nil {
		return profile.Profile{}, errs.IO("read template "+template, err)
	}
	if data == nil {
		return profile.Profile{}, errs.TemplateNotFound(template)
	}

	doc, err := profile.ParseTree(data)
	if err != nil {
		return profile.Profile{}, errs.Wrap(errs.KindStructural, err, "template %s", template)
	}
	t, err := tpl.Parse(doc)
	if err != nil {
		return profile.Profile{}, errs.Wrap(errs.KindOf(err), err, "template %s", template)
	}

	var urls []string
	for _, use := range t.Uses {
		kind, ok := b.registry.Get(use)
		if !ok || kind.Tag != profile.TagRemote {
			b.logger.Debug("template.generate.skip_use", "Skipping profile that is not a subscription", map[string]interface{}{
				"template": template,
				"profile":  use,
			})
			continue
		}
		urls = append(urls, kind.URL)
	}

	out, err := t.Expand(template, urls)
	if err != nil {
		return profile.Profile{}, errs.Wrap(errs.KindOf(err), err, "template %s", template)
	}
	body, err := out.Marshal()
	if err != nil {
		return profile.Profile{}, errs.Wrap(errs.KindStructural, err, "encode generated profile")
	}

	p := profile.Profile{Name: profile.DerivedName(template), Kind: profile.DerivedKind(template)}
	if existing, ok := b.registry.Get(p.Name); ok && existing.Tag != profile.TagDerived {
		return profile.Profile{}, errs.New(errs.KindInvalid, "profile %s already exists as a %s profile", p.Name, existing)
	}
	if err := fsutil.AtomicWriteFile(b.paths.ProfilePath(p.Name), body, fsutil.DefaultFilePermissions, b.logger); err != nil {
		return profile.Profile{}, errs.IO("write "+p.Name, err)
	}
	b.registry.Insert(p.Name, p.Kind)
	if err := b.registry.Save(b.paths.RegistryFile); err != nil {
		return profile.Profile{}, errs.IO("save registry", err)
	}

	b.logger.Info("template.generate.done", "Template generated", map[string]interface{}{
		"template": template,
		"profile":  p.Name,
		"urls":     len(urls),
	})
	return p, nil
}
