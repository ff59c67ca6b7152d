// Package operators is the built-in operator catalogue: drum anchors and
// refinements, fills, and the bass line operators.
package operators

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/dsl"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
)

// Operator ids. They feed candidate ids and seeds, so never rename one.
const (
	IDPattern      = "anchor.pattern"
	IDKickDownbeat = "anchor.kick-downbeat"
	IDBackbeat     = "anchor.backbeat"
	IDHatPulse     = "anchor.hat-pulse"
)

// PatternLookup answers whether a DSL grid drives a role in a section type
type PatternLookup interface {
	Lookup(sectionType string, role groove.Role) (dsl.Pattern, bool)
	Has(sectionType string, role groove.Role) bool
}

// Pattern places the hits of a groove DSL grid
type Pattern struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
	patterns PatternLookup
}

// NewPattern creates the grid anchor operator
func NewPattern(patterns PatternLookup) *Pattern {
	return &Pattern{
		Base:     operator.NewBase(IDPattern, operator.FamilyGrooveAnchor),
		patterns: patterns,
	}
}

func (o *Pattern) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return o.patterns != nil && o.patterns.Has(v.Bar.Section.Type, v.Role)
}

func (o *Pattern) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	p, ok := o.patterns.Lookup(v.Bar.Section.Type, v.Role)
	if !ok {
		return nil
	}
	hits := p.Hits(v.Bar.Numerator)
	out := make([]groove.Candidate, 0, len(hits))
	for _, h := range hits {
		strength := v.Bar.StrengthAt(h.Beat)
		score := 0.8
		switch h.Kind {
		case dsl.HitAccent:
			score = 0.85
		case dsl.HitGhost:
			strength = groove.StrengthGhost
			score = 0.6
		}
		out = append(out, groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, h.Beat, strength, score,
			groove.WithVelocity(h.Velocity)))
	}
	return out
}

// fallback is embedded by the built-in anchors that only play when no grid
// drives the role
type fallback struct {
	patterns PatternLookup
}

func (f fallback) overridden(v *operator.View) bool {
	return f.patterns != nil && f.patterns.Has(v.Bar.Section.Type, v.Role)
}

// KickDownbeat anchors the kick on beat 1 and the mid-bar strong beat
type KickDownbeat struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
	fallback
}

// NewKickDownbeat creates the kick anchor
func NewKickDownbeat(patterns PatternLookup) *KickDownbeat {
	return &KickDownbeat{
		Base:     operator.NewBase(IDKickDownbeat, operator.FamilyGrooveAnchor),
		fallback: fallback{patterns: patterns},
	}
}

func (o *KickDownbeat) CanApply(ctx *operator.DrumContext) bool {
	return !o.overridden(ctx.View())
}

func (o *KickDownbeat) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	bar := v.Bar.BarNumber
	out := []groove.Candidate{
		groove.NewCandidate(o.ID(), v.Role, bar, 1, groove.StrengthDownbeat, 0.95),
	}
	if mid := v.Bar.MidBeat(); mid > 0 {
		out = append(out, groove.NewCandidate(o.ID(), v.Role, bar, mid, groove.StrengthStrong, 0.85))
	}
	return out
}

// Backbeat anchors the snare on the meter's backbeats
type Backbeat struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
	fallback
}

// NewBackbeat creates the snare backbeat anchor
func NewBackbeat(patterns PatternLookup) *Backbeat {
	return &Backbeat{
		Base:     operator.NewBase(IDBackbeat, operator.FamilyGrooveAnchor),
		fallback: fallback{patterns: patterns},
	}
}

func (o *Backbeat) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return len(v.Bar.BackbeatBeats) > 0 && !o.overridden(v)
}

func (o *Backbeat) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	out := make([]groove.Candidate, 0, len(v.Bar.BackbeatBeats))
	for _, bb := range v.Bar.BackbeatBeats {
		out = append(out, groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, float64(bb), groove.StrengthBackbeat, 0.9))
	}
	return out
}

// HatPulse plays a steady eighth-note pulse with stronger downbeats
type HatPulse struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
	fallback
}

// NewHatPulse creates the hat/ride pulse anchor
func NewHatPulse(patterns PatternLookup) *HatPulse {
	return &HatPulse{
		Base:     operator.NewBase(IDHatPulse, operator.FamilyGrooveAnchor),
		fallback: fallback{patterns: patterns},
	}
}

func (o *HatPulse) CanApply(ctx *operator.DrumContext) bool {
	return !o.overridden(ctx.View())
}

func (o *HatPulse) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	bar := v.Bar
	var out []groove.Candidate
	for _, beat := range grid(bar.EighthBeats(), bar.LastBeat()) {
		strength := bar.StrengthAt(beat)
		score, vel := 0.6, 75
		if isWhole(beat) {
			score, vel = 0.7, 95
		}
		if beat == 1 {
			vel = 105
		}
		out = append(out, groove.NewCandidate(o.ID(), v.Role, bar.BarNumber, beat, strength, score,
			groove.WithVelocity(vel)))
	}
	return out
}
