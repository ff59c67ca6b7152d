package operators

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
)

const (
	IDBassRoot         = "anchor.bass-root"
	IDBassApproach     = "micro.bass-approach"
	IDBassRegister     = "contour.bass-register"
	IDBassAnticipation = "idiom.bass-anticipation"
	IDBassKickLock     = "cleanup.bass-kick-lock"
)

// Energy thresholds of the bass operators
const (
	BassAnticipationEnergy = 0.7
	BassKickLockEnergy     = 0.3
)

// BassRoot plays the chord root on beat 1 and the mid-bar beat
type BassRoot struct {
	operator.Base
	operator.Additive[*operator.BassContext]
}

func NewBassRoot() *BassRoot {
	return &BassRoot{Base: operator.NewBase(IDBassRoot, operator.FamilyGrooveAnchor)}
}

func (o *BassRoot) CanApply(ctx *operator.BassContext) bool {
	_, ok := ctx.HarmonyAt(ctx.View().Bar.BarNumber, 1)
	return ok
}

func (o *BassRoot) GenerateCandidates(ctx *operator.BassContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	bar := v.Bar.BarNumber
	var out []groove.Candidate
	if h, ok := ctx.HarmonyAt(bar, 1); ok {
		out = append(out, groove.NewCandidate(o.ID(), v.Role, bar, 1, groove.StrengthDownbeat, 0.9,
			groove.WithPitch(h.Root)))
	}
	if mid := v.Bar.MidBeat(); mid > 0 {
		if h, ok := ctx.HarmonyAt(bar, mid); ok {
			out = append(out, groove.NewCandidate(o.ID(), v.Role, bar, mid, groove.StrengthStrong, 0.8,
				groove.WithPitch(h.Root)))
		}
	}
	return out
}

// BassApproach leads into the next bar's root by a semitone on the last eighth
type BassApproach struct {
	operator.Base
	operator.Additive[*operator.BassContext]
}

func NewBassApproach() *BassApproach {
	return &BassApproach{Base: operator.NewBase(IDBassApproach, operator.FamilyMicroAddition)}
}

func (o *BassApproach) CanApply(ctx *operator.BassContext) bool {
	v := ctx.View()
	if v.Next == nil {
		return false
	}
	_, ok := ctx.HarmonyAt(v.Next.BarNumber, 1)
	return ok
}

func (o *BassApproach) GenerateCandidates(ctx *operator.BassContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	next, ok := ctx.HarmonyAt(v.Next.BarNumber, 1)
	if !ok {
		return nil
	}
	beat := v.Bar.LastBeat() - v.Bar.EighthBeats()
	pitch := next.Root - 1
	if cur, ok := ctx.HarmonyAt(v.Bar.BarNumber, beat); ok && next.Root < cur.Root {
		pitch = next.Root + 1
	}
	return []groove.Candidate{
		groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, beat, groove.StrengthPickup, 0.6,
			groove.WithPitch(pitch),
			groove.WithArticulation("approach")),
	}
}

// BassRegister folds working notes outside the harmony's register window
// back in by octaves
type BassRegister struct {
	operator.Base
	operator.Additive[*operator.BassContext]
}

func NewBassRegister() *BassRegister {
	return &BassRegister{Base: operator.NewBase(IDBassRegister, operator.FamilyRegisterContour)}
}

func (o *BassRegister) CanApply(ctx *operator.BassContext) bool {
	return len(ctx.View().Working) > 0
}

func (o *BassRegister) GenerateCandidates(ctx *operator.BassContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	var out []groove.Candidate
	for _, c := range v.Working {
		if c.Pitch == nil {
			continue
		}
		h, ok := ctx.HarmonyAt(v.Bar.BarNumber, c.Beat)
		if !ok || h.Low > h.High {
			continue
		}
		p := *c.Pitch
		if p >= h.Low && p <= h.High {
			continue
		}
		opts := []groove.CandidateOption{groove.WithPitch(octaveInto(p, h.Low, h.High))}
		if c.Articulation != "" {
			opts = append(opts, groove.WithArticulation(c.Articulation))
		}
		if c.Velocity != nil {
			opts = append(opts, groove.WithVelocity(*c.Velocity))
		}
		out = append(out, groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, c.Beat, c.Strength, c.Score+0.05, opts...))
	}
	return out
}

// BassAnticipation pushes the mid-bar note an eighth early in energetic
// sections
type BassAnticipation struct {
	operator.Base
}

func NewBassAnticipation() *BassAnticipation {
	return &BassAnticipation{Base: operator.NewBase(IDBassAnticipation, operator.FamilyStyleIdiom)}
}

func (o *BassAnticipation) CanApply(ctx *operator.BassContext) bool {
	v := ctx.View()
	mid := v.Bar.MidBeat()
	return v.Energy >= BassAnticipationEnergy && mid > 0 && v.HasWorking(mid)
}

func (o *BassAnticipation) GenerateCandidates(ctx *operator.BassContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	mid := v.Bar.MidBeat()
	note, ok := v.WorkingAt(mid)
	if !ok {
		return nil
	}
	beat := mid - v.Bar.EighthBeats()
	var opts []groove.CandidateOption
	if note.Pitch != nil {
		opts = append(opts, groove.WithPitch(*note.Pitch))
	}
	opts = append(opts, groove.WithArticulation("anticipation"))
	return []groove.Candidate{
		groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, beat, groove.StrengthOffbeat, note.Score, opts...),
	}
}

func (o *BassAnticipation) GenerateRemovals(ctx *operator.BassContext) []groove.RemovalCandidate {
	v := ctx.View()
	return []groove.RemovalCandidate{
		groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, v.Bar.MidBeat(), "anticipated"),
	}
}

// BassKickLock drops bass off-beats the kick does not share in sparse sections
type BassKickLock struct {
	operator.Base
	operator.Subtractive[*operator.BassContext]
}

func NewBassKickLock() *BassKickLock {
	return &BassKickLock{Base: operator.NewBase(IDBassKickLock, operator.FamilyCleanup)}
}

func (o *BassKickLock) CanApply(ctx *operator.BassContext) bool {
	return ctx.View().Energy < BassKickLockEnergy
}

func (o *BassKickLock) GenerateRemovals(ctx *operator.BassContext) []groove.RemovalCandidate {
	v := ctx.View()
	var out []groove.RemovalCandidate
	for _, c := range v.Working {
		if isWhole(c.Beat) || v.CommittedHas(groove.RoleKick, c.Beat) {
			continue
		}
		out = append(out, groove.NewRemoval(o.ID(), v.Role, v.Bar.BarNumber, c.Beat, "not locked to kick"))
	}
	return out
}
