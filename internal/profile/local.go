package profile

import (
	"fmt"

	"clashtui/internal/errs"
	"clashtui/internal/fsutil"
)

// MergeKeys are the top-level keys a profile contributes to the active
// configuration. Every other key comes from the base configuration.
var MergeKeys = []string{
	"proxy-groups",
	"proxy-providers",
	"proxies",
	"sub-rules",
	"rules",
	"rule-providers",
}

// LocalProfile is one profile's body as read from disk.
// A nil Content means the body has not been downloaded yet.
type LocalProfile struct {
	Profile
	Path    string
	Content Tree
}

// Load reads and parses the body at path. A missing file is not an error.
func Load(p Profile, path string) (*LocalProfile, error) {
	lp := &LocalProfile{Profile: p, Path: path}

	data, err := fsutil.ReadOptional(path)
	if err != nil {
		return nil, errs.IO(fmt.Sprintf("read profile %s", p.Name), err)
	}
	if data == nil {
		return lp, nil
	}

	content, err := ParseTree(data)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, err, "profile %s", p.Name)
	}
	lp.Content = content
	return lp, nil
}

// Loaded reports whether the profile has any content
func (lp *LocalProfile) Loaded() bool {
	return len(lp.Content) > 0
}

// MergeInto returns a copy of base with the merge keys replaced by this
// profile's values. Keys the profile does not define keep the base value.
// Neither lp nor base is modified.
func (lp *LocalProfile) MergeInto(base *LocalProfile) (Tree, error) {
	if base == nil || !base.Loaded() {
		return nil, errs.Structural("base configuration is empty")
	}
	if !lp.Loaded() {
		return nil, errs.Structural("profile %s has no content; update it first", lp.Name)
	}

	merged := base.Content.Clone()
	for _, key := range MergeKeys {
		if v, ok := lp.Content[key]; ok {
			merged[key] = CloneValue(v)
		}
	}
	return merged, nil
}
