package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// KindTag discriminates the three profile sources
type KindTag int

const (
	// TagFile marks a hand-imported profile; it cannot be refreshed.
	TagFile KindTag = iota
	// TagRemote marks a subscription link refreshed by re-download.
	TagRemote
	// TagDerived marks a profile produced by template expansion.
	TagDerived
)

// registry file tags
const (
	fileTag      = "File"
	urlTag       = "Url"
	generatedTag = "Generated"
)

// Kind is where a profile's body comes from.
// URL is set only for TagRemote, Template only for TagDerived.
type Kind struct {
	Tag      KindTag
	URL      string
	Template string
}

// FileKind returns the kind of a hand-imported profile
func FileKind() Kind { return Kind{Tag: TagFile} }

// RemoteKind returns the kind of a subscription profile
func RemoteKind(url string) Kind { return Kind{Tag: TagRemote, URL: url} }

// DerivedKind returns the kind of a profile generated from template
func DerivedKind(template string) Kind { return Kind{Tag: TagDerived, Template: template} }

// Upgradable reports whether the profile body can be refreshed
func (k Kind) Upgradable() bool {
	return k.Tag == TagRemote || k.Tag == TagDerived
}

func (k Kind) String() string {
	switch k.Tag {
	case TagRemote:
		return "url"
	case TagDerived:
		return "generated"
	default:
		return "file"
	}
}

// MarshalYAML encodes the kind as `File`, `{Url: ...}` or `{Generated: ...}`.
func (k Kind) MarshalYAML() (interface{}, error) {
	switch k.Tag {
	case TagFile:
		return fileTag, nil
	case TagRemote:
		return map[string]string{urlTag: k.URL}, nil
	case TagDerived:
		return map[string]string{generatedTag: k.Template}, nil
	default:
		return nil, fmt.Errorf("unknown profile kind tag %d", k.Tag)
	}
}

// UnmarshalYAML accepts the encodings produced by MarshalYAML.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != fileTag {
			return fmt.Errorf("line %d: unknown profile kind %q", node.Line, node.Value)
		}
		*k = FileKind()
		return nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		if len(m) != 1 {
			return fmt.Errorf("line %d: profile kind must have exactly one key, got %d", node.Line, len(m))
		}
		if url, ok := m[urlTag]; ok {
			*k = RemoteKind(url)
			return nil
		}
		if tpl, ok := m[generatedTag]; ok {
			*k = DerivedKind(tpl)
			return nil
		}
		return fmt.Errorf("line %d: unknown profile kind %v", node.Line, m)
	default:
		return fmt.Errorf("line %d: profile kind must be a scalar or a mapping", node.Line)
	}
}
