package operators

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
)

const (
	IDGhostBeforeBackbeat = "micro.ghost-before-backbeat"
	IDKickPickup          = "micro.kick-pickup"
	IDHatThinning         = "removal.hat-thinning"
	IDKickBeforeFill      = "removal.kick-before-fill"
	IDHatSixteenths       = "subdivision.hat-sixteenths"
	IDOpenHatLift         = "idiom.open-hat-lift"
	IDSectionCrash        = "idiom.section-crash"
	IDKickOffBackbeat     = "cleanup.kick-off-backbeat"
	IDHatUnderCrash       = "cleanup.hat-under-crash"
)

// Energy thresholds of the drum refinements
const (
	GhostNoteEnergy     = 0.4
	HatThinningEnergy   = 0.35
	HatSixteenthsEnergy = 0.75
	KickBackbeatEnergy  = 0.8

	ghostVelocity = 35
)

// GhostBeforeBackbeat adds a snare ghost a sixteenth ahead of each backbeat
type GhostBeforeBackbeat struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
}

func NewGhostBeforeBackbeat() *GhostBeforeBackbeat {
	return &GhostBeforeBackbeat{Base: operator.NewBase(IDGhostBeforeBackbeat, operator.FamilyMicroAddition)}
}

func (o *GhostBeforeBackbeat) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return v.Energy >= GhostNoteEnergy && len(v.Bar.BackbeatBeats) > 0
}

func (o *GhostBeforeBackbeat) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	step := v.Bar.SixteenthBeats()
	var out []groove.Candidate
	for _, bb := range v.Bar.BackbeatBeats {
		beat := float64(bb) - step
		if beat < 1 {
			continue
		}
		out = append(out, groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, beat, groove.StrengthGhost, 0.5,
			groove.WithVelocity(ghostVelocity)))
	}
	return out
}

// KickPickup plays a kick on the last eighth before a new section, unless the
// previous bar already ended on one
type KickPickup struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
}

func NewKickPickup() *KickPickup {
	return &KickPickup{Base: operator.NewBase(IDKickPickup, operator.FamilyMicroAddition)}
}

func (o *KickPickup) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	if v.Next == nil || !v.Next.IsSectionStart() {
		return false
	}
	if hit, ok := v.Memory.LastHit(v.Role); ok && hit.Bar == v.Bar.BarNumber-1 && !isWhole(hit.Beat) && hit.Beat > float64(v.Bar.Numerator) {
		return false
	}
	return true
}

func (o *KickPickup) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	beat := v.Bar.LastBeat() - v.Bar.EighthBeats()
	return []groove.Candidate{
		groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, beat, groove.StrengthPickup, 0.65),
	}
}

// HatThinning drops off-beat hats in quiet sections
type HatThinning struct {
	operator.Base
	operator.Subtractive[*operator.DrumContext]
}

func NewHatThinning() *HatThinning {
	return &HatThinning{Base: operator.NewBase(IDHatThinning, operator.FamilyNoteRemoval)}
}

func (o *HatThinning) CanApply(ctx *operator.DrumContext) bool {
	return ctx.View().Energy < HatThinningEnergy
}

func (o *HatThinning) GenerateRemovals(ctx *operator.DrumContext) []groove.RemovalCandidate {
	v := ctx.View()
	var out []groove.RemovalCandidate
	for _, c := range v.Working {
		if !isWhole(c.Beat) {
			out = append(out, groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, c.Beat, "low energy"))
		}
	}
	return out
}

// KickBeforeFill clears the kick from the last quarter note of a fill bar
type KickBeforeFill struct {
	operator.Base
	operator.Subtractive[*operator.DrumContext]
}

func NewKickBeforeFill() *KickBeforeFill {
	return &KickBeforeFill{Base: operator.NewBase(IDKickBeforeFill, operator.FamilyNoteRemoval)}
}

func (o *KickBeforeFill) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return v.Bar.IsFillWindow && v.Bar.Numerator > 1
}

func (o *KickBeforeFill) GenerateRemovals(ctx *operator.DrumContext) []groove.RemovalCandidate {
	v := ctx.View()
	// the last eighth stays free for a pickup into the next section
	from := v.Bar.LastBeat() - 4*v.Bar.SixteenthBeats()
	to := v.Bar.LastBeat() - v.Bar.EighthBeats()
	var out []groove.RemovalCandidate
	for _, c := range v.Working {
		if c.Beat >= from-epsilon && c.Beat < to-epsilon {
			out = append(out, groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, c.Beat, "room for fill"))
		}
	}
	return out
}

// HatSixteenths fills sixteenths between consecutive working eighths in
// dense sections
type HatSixteenths struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
}

func NewHatSixteenths() *HatSixteenths {
	return &HatSixteenths{Base: operator.NewBase(IDHatSixteenths, operator.FamilySubdivisionTransform)}
}

func (o *HatSixteenths) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return v.Energy >= HatSixteenthsEnergy && !v.Bar.IsFillWindow && len(v.Working) > 0
}

func (o *HatSixteenths) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	eighth := v.Bar.EighthBeats()
	half := v.Bar.SixteenthBeats()
	var out []groove.Candidate
	for _, beat := range grid(eighth, v.Bar.LastBeat()) {
		if !v.HasWorking(beat) {
			continue
		}
		next := beat + eighth
		if next < v.Bar.LastBeat()-epsilon && !v.HasWorking(next) {
			continue
		}
		mid := beat + half
		if v.HasWorking(mid) {
			continue
		}
		out = append(out, groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, mid, v.Bar.StrengthAt(mid), 0.55,
			groove.WithVelocity(60)))
	}
	return out
}

// OpenHatLift opens the hat on the bar's last off-beat in choruses. Bound to
// hat_open it adds the open hit; bound to hat it removes the closed one.
type OpenHatLift struct {
	operator.Base
}

func NewOpenHatLift() *OpenHatLift {
	return &OpenHatLift{Base: operator.NewBase(IDOpenHatLift, operator.FamilyStyleIdiom)}
}

func (o *OpenHatLift) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return v.Tags.Has(groove.TagChorus) && v.Bar.Numerator > 1
}

func liftBeat(v *operator.View) float64 {
	return v.Bar.LastBeat() - v.Bar.EighthBeats()
}

func (o *OpenHatLift) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	if v.Role != groove.RoleOpenHat {
		return nil
	}
	return []groove.Candidate{
		groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, liftBeat(v), groove.StrengthOffbeat, 0.8,
			groove.WithArticulation("open")),
	}
}

func (o *OpenHatLift) GenerateRemovals(ctx *operator.DrumContext) []groove.RemovalCandidate {
	v := ctx.View()
	if v.Role != groove.RoleHat {
		return nil
	}
	beat := liftBeat(v)
	if !v.HasWorking(beat) {
		return nil
	}
	return []groove.RemovalCandidate{
		groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, beat, "open hat lift"),
	}
}

// SectionCrash marks the first bar of a section with a crash on beat 1
type SectionCrash struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
}

func NewSectionCrash() *SectionCrash {
	return &SectionCrash{Base: operator.NewBase(IDSectionCrash, operator.FamilyStyleIdiom)}
}

func (o *SectionCrash) CanApply(ctx *operator.DrumContext) bool {
	return ctx.View().Bar.IsSectionStart()
}

func (o *SectionCrash) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	return []groove.Candidate{
		groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, 1, groove.StrengthDownbeat, 0.9,
			groove.WithArticulation("crash")),
	}
}

// KickOffBackbeat keeps the kick off the snare's backbeats outside fills
type KickOffBackbeat struct {
	operator.Base
	operator.Subtractive[*operator.DrumContext]
}

func NewKickOffBackbeat() *KickOffBackbeat {
	return &KickOffBackbeat{Base: operator.NewBase(IDKickOffBackbeat, operator.FamilyCleanup)}
}

func (o *KickOffBackbeat) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return !v.Bar.IsFillWindow && v.Energy < KickBackbeatEnergy
}

func (o *KickOffBackbeat) GenerateRemovals(ctx *operator.DrumContext) []groove.RemovalCandidate {
	v := ctx.View()
	var out []groove.RemovalCandidate
	for _, c := range v.Working {
		if v.Bar.IsBackbeat(c.Beat) {
			out = append(out, groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, c.Beat, "kick on backbeat"))
		}
	}
	return out
}

// HatUnderCrash removes the closed hat wherever a crash was committed
type HatUnderCrash struct {
	operator.Base
	operator.Subtractive[*operator.DrumContext]
}

func NewHatUnderCrash() *HatUnderCrash {
	return &HatUnderCrash{Base: operator.NewBase(IDHatUnderCrash, operator.FamilyCleanup)}
}

func (o *HatUnderCrash) CanApply(ctx *operator.DrumContext) bool {
	return len(ctx.View().Committed[groove.RoleCrash]) > 0
}

func (o *HatUnderCrash) GenerateRemovals(ctx *operator.DrumContext) []groove.RemovalCandidate {
	v := ctx.View()
	var out []groove.RemovalCandidate
	for _, crash := range v.Committed[groove.RoleCrash] {
		if v.HasWorking(crash.Beat) {
			out = append(out, groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, crash.Beat, "under crash"))
		}
	}
	return out
}
