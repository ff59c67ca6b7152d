package pipeline

import (
	"strings"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

// DenseEnergy is the section energy from which the default provider adds
// the dense tag
const DenseEnergy = 0.75

// TagProvider supplies the enabled segment tags of a bar
type TagProvider interface {
	Tags(bar timeline.Bar) groove.TagSet
}

// TagProviderFunc adapts a function to TagProvider
type TagProviderFunc func(bar timeline.Bar) groove.TagSet

func (f TagProviderFunc) Tags(bar timeline.Bar) groove.TagSet { return f(bar) }

// DefaultTags derives tags from the bar itself: the section type, fill in
// fill windows, section-start on a section's first bar, and dense in
// energetic sections. Extra holds additional tags per section index.
type DefaultTags struct {
	Extra map[int][]string
}

func (d DefaultTags) Tags(bar timeline.Bar) groove.TagSet {
	tags := make([]string, 0, 4)
	if t := strings.TrimSpace(bar.Section.Type); t != "" {
		tags = append(tags, t)
	}
	if bar.IsFillWindow {
		tags = append(tags, groove.TagFill)
	}
	if bar.IsSectionStart() {
		tags = append(tags, groove.TagSectionStart)
	}
	if bar.Section.Energy >= DenseEnergy {
		tags = append(tags, groove.TagDense)
	}
	tags = append(tags, d.Extra[bar.SectionIndex]...)
	return groove.NewTagSet(tags...)
}
