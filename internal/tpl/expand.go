package tpl

import (
	"fmt"
	"strings"

	"clashtui/internal/errs"
	"clashtui/internal/profile"
)

// Expand parses doc and expands it for the given template name and URLs.
func Expand(doc profile.Tree, name string, urls []string) (profile.Tree, error) {
	t, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return t.Expand(name, urls)
}

// Expand produces the concrete configuration for this template. urls[i]
// feeds the i-th copy of every templated provider. The Template is not modified.
func (t *Template) Expand(name string, urls []string) (profile.Tree, error) {
	concrete, generated, err := t.expandProviders(name, urls)
	if err != nil {
		return nil, err
	}
	generatedNames := names(generated)

	var immediate, deferred []entry
	for _, g := range t.groups {
		if hasPlaceholder(g.body["proxies"]) {
			deferred = append(deferred, g)
		} else {
			immediate = append(immediate, g)
		}
	}

	var built []entry
	for _, g := range immediate {
		out, err := expandGroup(g, generatedNames)
		if err != nil {
			return nil, err
		}
		built = append(built, out...)
	}

	for _, g := range deferred {
		resolved := resolveProxies(g, built)
		out, err := expandGroup(resolved, generatedNames)
		if err != nil {
			return nil, err
		}
		built = append(built, out...)
	}

	providerNames := append(names(concrete), generatedNames...)
	for _, g := range built {
		if err := resolveUse(g, providerNames); err != nil {
			return nil, err
		}
	}

	out := t.rest.Clone()

	providers := make(map[string]any, len(concrete)+len(generated))
	for _, p := range concrete {
		providers[p.name] = p.body
	}
	for _, p := range generated {
		providers[p.name] = p.body
	}
	out[KeyProviders] = providers

	groups := make([]any, 0, len(built))
	for _, g := range built {
		groups = append(groups, g.body)
	}
	out[KeyGroups] = groups

	return out, nil
}

// expandProviders splits providers into concrete ones, passed through with the
// marker stripped, and copies of each templated one per URL.
func (t *Template) expandProviders(template string, urls []string) (concrete, generated []entry, err error) {
	taken := make(map[string]bool, len(t.providers))
	for _, p := range t.providers {
		if _, templated := p.body[KeyParam]; !templated {
			taken[p.name] = true
		}
	}

	for _, p := range t.providers {
		if _, templated := p.body[KeyParam]; !templated {
			concrete = append(concrete, entry{name: p.name, body: cloneBody(p.body)})
			continue
		}

		for i, url := range urls {
			name := fmt.Sprintf("%s%d", p.name, i)
			if taken[name] {
				return nil, nil, errs.Structural("generated provider %s collides with an existing provider", name)
			}
			taken[name] = true

			body := cloneBody(p.body)
			body["url"] = url
			body["path"] = ProviderPath(template, name)
			generated = append(generated, entry{name: name, body: body})
		}
	}
	return concrete, generated, nil
}

// expandGroup clones a group once per generated provider matching its
// tpl_param prefixes. Groups without tpl_param are returned as a single copy.
func expandGroup(g entry, generated []string) ([]entry, error) {
	prefixes, templated, err := groupPrefixes(g.body)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, err, "group %s", g.name)
	}
	if !templated {
		return []entry{{name: g.name, body: cloneBody(g.body)}}, nil
	}

	var out []entry
	for _, prefix := range prefixes {
		for _, provider := range generated {
			if !strings.HasPrefix(provider, prefix) {
				continue
			}
			name := g.name + "-" + provider
			body := cloneBody(g.body)
			body["name"] = name
			body["use"] = []any{provider}
			out = append(out, entry{name: name, body: body})
		}
	}
	return out, nil
}

// resolveProxies replaces <text> members of a group's proxies with the names
// of every built group starting with text. Literal members come first.
func resolveProxies(g entry, built []entry) entry {
	list, _ := g.body["proxies"].([]any)

	proxies := make([]any, 0, len(list))
	var placeholders []string
	for _, item := range list {
		if text, ok := placeholder(item); ok {
			placeholders = append(placeholders, text)
			continue
		}
		proxies = append(proxies, item)
	}

	for _, text := range placeholders {
		for _, b := range built {
			if strings.HasPrefix(b.name, text) {
				proxies = append(proxies, b.name)
			}
		}
	}

	// tpl_param survives so the resolved group can still be stamped out.
	body := profile.CloneValue(g.body).(map[string]any)
	body["proxies"] = proxies
	return entry{name: g.name, body: body}
}

// resolveUse replaces <text> entries of a group's use list in place with every
// provider name starting with text.
func resolveUse(g entry, providers []string) error {
	raw, ok := g.body["use"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return errs.Structural("group %s: use must be a sequence", g.name)
	}

	use := make([]any, 0, len(list))
	for _, item := range list {
		text, ok := placeholder(item)
		if !ok {
			use = append(use, item)
			continue
		}
		for _, p := range providers {
			if strings.HasPrefix(p, text) {
				use = append(use, p)
			}
		}
	}
	g.body["use"] = use
	return nil
}

func hasPlaceholder(raw any) bool {
	list, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := placeholder(item); ok {
			return true
		}
	}
	return false
}

// placeholder reports whether item is a "<text>" token and returns text.
func placeholder(item any) (string, bool) {
	s, ok := item.(string)
	if !ok || len(s) < 2 || s[0] != '<' || s[len(s)-1] != '>' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// cloneBody deep-copies a provider or group mapping without its tpl_param.
func cloneBody(body map[string]any) map[string]any {
	out := profile.CloneValue(body).(map[string]any)
	delete(out, KeyParam)
	return out
}

func names(entries []entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}
