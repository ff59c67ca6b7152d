package dsl

import (
	"strings"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
)

// HitKind is the grid symbol class of a hit
type HitKind int

const (
	HitNormal HitKind = iota
	HitAccent
	HitGhost
)

// AccentVelocity and GhostVelocity are the velocities of X and o grid cells
const (
	AccentVelocity = 127
	GhostVelocity  = 60
)

// Hit is one grid cell placed in a bar
type Hit struct {
	Beat     float64
	Kind     HitKind
	Velocity int
}

// Hits spreads the grid evenly over a bar of numerator beats
func (p Pattern) Hits(numerator int) []Hit {
	n := len(p.Grid)
	if n == 0 || numerator <= 0 {
		return nil
	}
	step := float64(numerator) / float64(n)
	out := make([]Hit, 0, CountHits(p.Grid))
	for i := 0; i < n; i++ {
		beat := 1 + float64(i)*step
		switch p.Grid[i] {
		case 'x':
			out = append(out, Hit{Beat: beat, Kind: HitNormal, Velocity: p.Velocity})
		case 'X':
			out = append(out, Hit{Beat: beat, Kind: HitAccent, Velocity: AccentVelocity})
		case 'o':
			out = append(out, Hit{Beat: beat, Kind: HitGhost, Velocity: GhostVelocity})
		}
	}
	return out
}

// PatternSet indexes patterns by section type and role. Section-specific
// patterns take precedence over patterns without a section; a later
// pattern for the same key replaces an earlier one.
//
// A PatternSet is read-only after construction and safe to share.
type PatternSet struct {
	bySection map[string]map[groove.Role]Pattern
	count     int
}

// NewPatternSet builds a set from parsed patterns
func NewPatternSet(patterns []Pattern) *PatternSet {
	s := &PatternSet{bySection: make(map[string]map[groove.Role]Pattern)}
	for _, p := range patterns {
		roles, ok := s.bySection[p.Section]
		if !ok {
			roles = make(map[groove.Role]Pattern)
			s.bySection[p.Section] = roles
		}
		if _, dup := roles[p.Role]; !dup {
			s.count++
		}
		roles[p.Role] = p
	}
	return s
}

// Lookup returns the pattern for a role in a section type
func (s *PatternSet) Lookup(sectionType string, role groove.Role) (Pattern, bool) {
	if s == nil {
		return Pattern{}, false
	}
	sectionType = strings.ToLower(sectionType)
	if p, ok := s.bySection[sectionType][role]; ok {
		return p, true
	}
	p, ok := s.bySection[""][role]
	return p, ok
}

// Has reports whether a pattern drives role in sectionType
func (s *PatternSet) Has(sectionType string, role groove.Role) bool {
	_, ok := s.Lookup(sectionType, role)
	return ok
}

// Len returns the number of distinct (section, role) patterns
func (s *PatternSet) Len() int {
	if s == nil {
		return 0
	}
	return s.count
}
