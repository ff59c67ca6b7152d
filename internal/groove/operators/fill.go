package operators

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
)

const IDFill = "subdivision.fill"

// FillArticulationPrefix marks fill onsets; memory reads the shape back from it
const FillArticulationPrefix = "fill:"

// FillMinEnergy is the energy from which two-beat fills are allowed
const FillMinEnergy = 0.6

// fillStroke is one hit of a fill shape, in sixteenths from the fill start
type fillStroke struct {
	role      groove.Role
	sixteenth int
}

// FillShape is a named fill spanning the last Beats quarter notes of a bar
type FillShape struct {
	Name    string
	Beats   int
	strokes []fillStroke
}

// Roles returns the roles the shape plays on, in role order
func (s FillShape) Roles() []groove.Role {
	roles := make([]groove.Role, 0, 3)
	for _, st := range s.strokes {
		roles = append(roles, st.role)
	}
	return groove.SortRoles(roles)
}

// Span returns the length of the shape in beat units of a meter whose
// sixteenth lasts step beats
func (s FillShape) Span(step float64) float64 {
	return float64(4*s.Beats) * step
}

// FillShapes is the shape library, in selection order
var FillShapes = []FillShape{
	{Name: "snare-run", Beats: 1, strokes: []fillStroke{
		{groove.RoleSnare, 0}, {groove.RoleSnare, 1}, {groove.RoleSnare, 2}, {groove.RoleSnare, 3},
	}},
	{Name: "tom-descend", Beats: 1, strokes: []fillStroke{
		{groove.RoleTomHigh, 0}, {groove.RoleTomHigh, 1}, {groove.RoleTomLow, 2}, {groove.RoleTomLow, 3},
	}},
	{Name: "snare-tom", Beats: 1, strokes: []fillStroke{
		{groove.RoleSnare, 0}, {groove.RoleSnare, 1}, {groove.RoleTomHigh, 2}, {groove.RoleTomLow, 3},
	}},
	{Name: "flam-accent", Beats: 1, strokes: []fillStroke{
		{groove.RoleSnare, 0}, {groove.RoleSnare, 2}, {groove.RoleTomLow, 3},
	}},
	{Name: "two-beat-roll", Beats: 2, strokes: []fillStroke{
		{groove.RoleSnare, 0}, {groove.RoleSnare, 2},
		{groove.RoleTomHigh, 4}, {groove.RoleTomHigh, 5}, {groove.RoleTomLow, 6}, {groove.RoleTomLow, 7},
	}},
}

// Fill plays a fill at the end of a section. The shape is picked from the
// bar's fill seed, skipping shapes memory saw recently, so every role of
// the bar agrees on the same shape.
type Fill struct {
	operator.Base
	operator.Additive[*operator.DrumContext]
	shapes []FillShape
}

// NewFill creates the fill operator over a shape library
func NewFill(shapes []FillShape) *Fill {
	if len(shapes) == 0 {
		shapes = FillShapes
	}
	return &Fill{
		Base:   operator.NewBase(IDFill, operator.FamilySubdivisionTransform),
		shapes: shapes,
	}
}

func (o *Fill) CanApply(ctx *operator.DrumContext) bool {
	v := ctx.View()
	return v.Bar.IsFillWindow && v.Bar.BarsUntilSectionEnd == 0 && v.Bar.Numerator >= 2
}

// ChooseShape picks the fill shape for the bar in view
func (o *Fill) ChooseShape(v *operator.View) (FillShape, bool) {
	step := v.Bar.SixteenthBeats()
	eligible := make([]FillShape, 0, len(o.shapes))
	for _, s := range o.shapes {
		// beat 1 stays clear of the fill
		if s.Span(step) > float64(v.Bar.Numerator-1)+epsilon {
			continue
		}
		if s.Beats > 1 && v.Energy < FillMinEnergy {
			continue
		}
		eligible = append(eligible, s)
	}
	if len(eligible) == 0 {
		return FillShape{}, false
	}

	fresh := make([]FillShape, 0, len(eligible))
	for _, s := range eligible {
		if !v.Memory.UsedRecently(s.Name) {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		fresh = eligible
	}
	return fresh[v.FillSeed%uint64(len(fresh))], true
}

func (o *Fill) GenerateCandidates(ctx *operator.DrumContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	shape, ok := o.ChooseShape(v)
	if !ok {
		return nil
	}
	step := v.Bar.SixteenthBeats()
	start := v.Bar.LastBeat() - shape.Span(step)
	var out []groove.Candidate
	for i, st := range shape.strokes {
		if st.role != v.Role {
			continue
		}
		beat := start + float64(st.sixteenth)*step
		vel := 90 + 5*i
		if vel > 127 {
			vel = 127
		}
		out = append(out, groove.NewCandidate(o.ID(), v.Role, v.Bar.BarNumber, beat, v.Bar.StrengthAt(beat), 0.75,
			groove.WithVelocity(vel),
			groove.WithArticulation(FillArticulationPrefix+shape.Name)))
	}
	return out
}
