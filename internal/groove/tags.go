package groove

import (
	"sort"
	"strings"
)

// Common segment tags produced by the default tag provider
const (
	TagFill         = "fill"
	TagSectionStart = "section-start"
	TagDense        = "dense"
	TagChorus       = "chorus"
)

// TagSet is an immutable set of segment tags
type TagSet struct {
	tags []string
}

// NewTagSet builds a tag set; tags are lower-cased and deduplicated
func NewTagSet(tags ...string) TagSet {
	if len(tags) == 0 {
		return TagSet{}
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return TagSet{tags: out}
}

// Has reports whether tag is enabled
func (s TagSet) Has(tag string) bool {
	tag = strings.ToLower(tag)
	i := sort.SearchStrings(s.tags, tag)
	return i < len(s.tags) && s.tags[i] == tag
}

// ContainsAll reports whether every tag of other is in s. An empty other is
// contained in every set.
func (s TagSet) ContainsAll(other TagSet) bool {
	for _, t := range other.tags {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// With returns a new set with the extra tags added
func (s TagSet) With(tags ...string) TagSet {
	return NewTagSet(append(s.Slice(), tags...)...)
}

// Len returns the number of tags
func (s TagSet) Len() int {
	return len(s.tags)
}

// Slice returns the tags in sorted order
func (s TagSet) Slice() []string {
	out := make([]string, len(s.tags))
	copy(out, s.tags)
	return out
}

// Key is a canonical string form used for caching per tag set
func (s TagSet) Key() string {
	return strings.Join(s.tags, ",")
}

func (s TagSet) String() string {
	return "{" + s.Key() + "}"
}
