// Package profile holds the profile data model: the registry of named profiles,
// the on-disk profile bodies, and the merge that materializes a profile into the
// daemon's active configuration.
package profile

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"clashtui/internal/errs"
)

// GeneratedSuffix is appended to a template name to name its derived profile.
const GeneratedSuffix = ".generated"

// Profile is a named configuration source. Name is also the body's file name.
type Profile struct {
	Name string
	Kind Kind
}

// DerivedName returns the profile name generated from template
func DerivedName(template string) string {
	return template + GeneratedSuffix
}

// IsDerivedName reports whether name follows the generated naming scheme
func IsDerivedName(name string) bool {
	return strings.HasSuffix(name, GeneratedSuffix) && len(name) > len(GeneratedSuffix)
}

// Tree is a parsed daemon configuration document.
type Tree map[string]any

// ParseTree decodes a YAML document. An empty document yields a nil tree.
// Nested mappings decode as plain map[string]any.
func ParseTree(data []byte) (Tree, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.KindStructural, err, "document is not a YAML mapping")
	}
	if m == nil {
		return nil, nil
	}
	return Tree(m), nil
}

// Marshal encodes the tree. Mapping keys are emitted sorted, so equal trees
// produce identical bytes.
func (t Tree) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(t)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy of the tree
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded YAML value. Nested trees come back as
// map[string]any.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case Tree:
		return map[string]any(val.Clone())
	case map[any]any:
		out := make(map[any]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
