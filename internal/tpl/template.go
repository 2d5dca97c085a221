// Package tpl expands clashtui templates: configuration fragments whose
// proxy providers and proxy groups are stamped out once per subscription URL.
//
// Recognized markers:
//
//	clashtui:
//	  uses: [profileA, profileB]     # profiles whose URLs feed the expansion
//	clashtui_template_version: 1     # absent or 1; anything newer is rejected
//	proxy-providers:
//	  prov:
//	    tpl_param:                   # stamp one provider per URL: prov0, prov1, ...
//	proxy-groups:
//	  - name: grp
//	    tpl_param:
//	      providers: [prov]          # one group per generated provider: grp-prov0, ...
//	  - name: combo
//	    proxies: [DIRECT, <grp>]     # <grp> becomes every built group named grp*
//	    use: [<prov>]                # <prov> becomes every provider named prov*
//
// Prefix matches are resolved in a fixed order so output never depends on map
// iteration: providers in ascending template-provider name then ascending index,
// groups in the order they were built.
package tpl

import (
	"fmt"
	"sort"

	"clashtui/internal/errs"
	"clashtui/internal/profile"
)

// MaxVersion is the newest template version this build can expand.
const MaxVersion = 1

// Marker and document keys
const (
	KeyGroups         = "proxy-groups"
	KeyProviders      = "proxy-providers"
	KeyMeta           = "clashtui"
	KeyVersion        = "clashtui_template_version"
	KeyUses           = "uses"
	KeyParam          = "tpl_param"
	KeyParamProviders = "providers"
)

// ProviderPath returns the path a generated provider caches its proxies at,
// relative to the daemon's config directory.
func ProviderPath(template, provider string) string {
	return fmt.Sprintf("proxy-providers/tpl/%s/%s.yaml", template, provider)
}

// Template is a parsed, validated template document.
type Template struct {
	// Version is 0 when the document carries no version marker.
	Version int
	// Uses lists the profile names whose URLs feed expansion, in order.
	Uses []string

	providers []entry
	groups    []entry
	rest      profile.Tree
}

// entry is a named mapping from proxy-providers or proxy-groups.
type entry struct {
	name string
	body map[string]any
}

// Parse validates doc and extracts its markers. doc is not modified.
func Parse(doc profile.Tree) (*Template, error) {
	if len(doc) == 0 {
		return nil, errs.Structural("template is empty")
	}

	version, err := parseVersion(doc)
	if err != nil {
		return nil, err
	}

	uses, err := parseUses(doc)
	if err != nil {
		return nil, err
	}

	providers, err := parseProviders(doc)
	if err != nil {
		return nil, err
	}

	groups, err := parseGroups(doc)
	if err != nil {
		return nil, err
	}

	rest := make(profile.Tree, len(doc))
	for k, v := range doc {
		switch k {
		case KeyMeta, KeyVersion, KeyGroups, KeyProviders:
			continue
		}
		rest[k] = profile.CloneValue(v)
	}

	return &Template{
		Version:   version,
		Uses:      uses,
		providers: providers,
		groups:    groups,
		rest:      rest,
	}, nil
}

func parseVersion(doc profile.Tree) (int, error) {
	raw, ok := doc[KeyVersion]
	if !ok || raw == nil {
		return 0, nil
	}
	v, ok := raw.(int)
	if !ok {
		return 0, errs.Structural("%s must be an integer, got %T", KeyVersion, raw)
	}
	if v < 0 {
		return 0, errs.Structural("%s must not be negative, got %d", KeyVersion, v)
	}
	if v > MaxVersion {
		return 0, errs.UnsupportedVersion(v, MaxVersion)
	}
	return v, nil
}

func parseUses(doc profile.Tree) ([]string, error) {
	raw, ok := doc[KeyMeta]
	if !ok || raw == nil {
		return nil, nil
	}
	meta, ok := raw.(map[string]any)
	if !ok {
		return nil, errs.Structural("%s must be a mapping", KeyMeta)
	}
	usesRaw, ok := meta[KeyUses]
	if !ok || usesRaw == nil {
		return nil, nil
	}
	uses, err := stringList(usesRaw)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, err, "%s.%s", KeyMeta, KeyUses)
	}
	return uses, nil
}

func parseProviders(doc profile.Tree) ([]entry, error) {
	raw, ok := doc[KeyProviders]
	if !ok {
		return nil, errs.Structural("template has no %s", KeyProviders)
	}
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errs.Structural("%s must be a mapping", KeyProviders)
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]entry, 0, len(names))
	for _, name := range names {
		body, ok := m[name].(map[string]any)
		if !ok {
			return nil, errs.Structural("%s.%s must be a mapping", KeyProviders, name)
		}
		out = append(out, entry{name: name, body: body})
	}
	return out, nil
}

func parseGroups(doc profile.Tree) ([]entry, error) {
	raw, ok := doc[KeyGroups]
	if !ok {
		return nil, errs.Structural("template has no %s", KeyGroups)
	}
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errs.Structural("%s must be a sequence", KeyGroups)
	}

	out := make([]entry, 0, len(list))
	for i, item := range list {
		body, ok := item.(map[string]any)
		if !ok {
			return nil, errs.Structural("%s[%d] must be a mapping", KeyGroups, i)
		}
		name, ok := body["name"].(string)
		if !ok || name == "" {
			return nil, errs.Structural("%s[%d] has no name", KeyGroups, i)
		}
		if _, _, err := groupPrefixes(body); err != nil {
			return nil, errs.Wrap(errs.KindStructural, err, "group %s", name)
		}
		out = append(out, entry{name: name, body: body})
	}
	return out, nil
}

// groupPrefixes returns the tpl_param.providers prefixes of a group.
// ok is false when the group carries no tpl_param.
func groupPrefixes(body map[string]any) (prefixes []string, ok bool, err error) {
	raw, ok := body[KeyParam]
	if !ok {
		return nil, false, nil
	}
	param, isMap := raw.(map[string]any)
	if !isMap {
		return nil, true, fmt.Errorf("%s must be a mapping", KeyParam)
	}
	prefixes, err = stringList(param[KeyParamProviders])
	if err != nil {
		return nil, true, fmt.Errorf("%s.%s: %w", KeyParam, KeyParamProviders, err)
	}
	return prefixes, true, nil
}

func stringList(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a sequence of strings")
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("item %d must be a string, got %T", i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
