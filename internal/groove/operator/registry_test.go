package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

// stubOp proposes one candidate on a fixed beat and optionally a removal
type stubOp struct {
	Base
	beat    float64
	apply   bool
	removal float64
	seeds   *[]uint64
}

func (s *stubOp) CanApply(*DrumContext) bool { return s.apply }

func (s *stubOp) GenerateCandidates(ctx *DrumContext, seed uint64) []groove.Candidate {
	if s.seeds != nil {
		*s.seeds = append(*s.seeds, seed)
	}
	v := ctx.View()
	return []groove.Candidate{groove.NewCandidate(s.ID(), v.Role, v.Bar.BarNumber, s.beat, groove.StrengthStrong, 0.5)}
}

func (s *stubOp) GenerateRemovals(ctx *DrumContext) []groove.RemovalCandidate {
	if s.removal == 0 {
		return nil
	}
	v := ctx.View()
	return []groove.RemovalCandidate{groove.NewRemoval(s.ID(), v.Role, v.Bar.BarNumber, s.removal, "stub")}
}

func stub(id string, family Family, beat float64) *stubOp {
	return &stubOp{Base: NewBase(id, family), beat: beat, apply: true}
}

func testView(role groove.Role) View {
	return View{
		Bar:  timeline.Bar{BarNumber: 3, Numerator: 4, Denominator: 4},
		Role: role,
	}
}

func TestRegistry_GatherOrderAndFiltering(t *testing.T) {
	r := NewDrumRegistry()
	r.Register(stub("b.second", FamilyMicroAddition, 2), groove.RoleSnare)
	r.Register(stub("a.first", FamilyMicroAddition, 1), groove.RoleSnare, groove.RoleKick)
	r.Register(stub("c.anchor", FamilyGrooveAnchor, 3), groove.RoleSnare)
	skipped := stub("d.skipped", FamilyMicroAddition, 4)
	skipped.apply = false
	r.Register(skipped, groove.RoleSnare)
	r.Register(stub("e.kick-only", FamilyMicroAddition, 4), groove.RoleKick)

	g := r.Gather(FamilyMicroAddition, testView(groove.RoleSnare), nil)
	require.Len(t, g.Groups, 2)
	assert.Equal(t, "b.second", g.Groups[0].OperatorID, "registration order, not id order")
	assert.Equal(t, "a.first", g.Groups[1].OperatorID)
	assert.Equal(t, []string{"d.skipped"}, g.Skipped)
	assert.Equal(t, 2, g.CandidateCount())
	assert.Equal(t, FamilyMicroAddition, g.Family)

	kick := r.Gather(FamilyMicroAddition, testView(groove.RoleKick), nil)
	require.Len(t, kick.Groups, 2)
	assert.Equal(t, "a.first", kick.Groups[0].OperatorID)
	assert.Equal(t, "e.kick-only", kick.Groups[1].OperatorID)

	assert.Empty(t, r.Gather(FamilyCleanup, testView(groove.RoleSnare), nil).Groups)
	assert.True(t, r.Serves(groove.RoleKick))
	assert.False(t, r.Serves(groove.RoleBass))
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, []string{"b.second", "a.first", "d.skipped", "e.kick-only"}, r.ByFamily()[FamilyMicroAddition])
}

func TestRegistry_SeedsAndRemovals(t *testing.T) {
	var seeds []uint64
	op := stub("x.op", FamilyNoteRemoval, 2)
	op.removal = 3
	op.seeds = &seeds

	r := NewDrumRegistry()
	r.Register(op, groove.RoleHat)

	g := r.Gather(FamilyNoteRemoval, testView(groove.RoleHat), func(id string) uint64 {
		assert.Equal(t, "x.op", id)
		return 1234
	})
	assert.Equal(t, []uint64{1234}, seeds)
	require.Len(t, g.Removals, 1)
	assert.Equal(t, 3.0, g.Removals[0].Beat)
	assert.Equal(t, "x.op", g.Removals[0].OperatorID)
}

func TestRegistry_RegisterPanics(t *testing.T) {
	r := NewDrumRegistry()
	r.Register(stub("dup", FamilyCleanup, 1), groove.RoleKick)

	tests := []struct {
		name  string
		op    Operator[*DrumContext]
		roles []groove.Role
	}{
		{name: "nil operator", op: nil, roles: []groove.Role{groove.RoleKick}},
		{name: "empty id", op: stub("", FamilyCleanup, 1), roles: []groove.Role{groove.RoleKick}},
		{name: "duplicate id", op: stub("dup", FamilyCleanup, 1), roles: []groove.Role{groove.RoleKick}},
		{name: "unknown family", op: stub("fam", Family(42), 1), roles: []groove.Role{groove.RoleKick}},
		{name: "no roles", op: stub("none", FamilyCleanup, 1)},
		{name: "unknown role", op: stub("role", FamilyCleanup, 1), roles: []groove.Role{"cowbell"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { r.Register(tt.op, tt.roles...) })
		})
	}
}

type fixedHarmony struct{}

func (fixedHarmony) At(bar int, beat float64) (Harmony, bool) {
	return Harmony{Chord: "Am", Root: 45, Low: 28, High: 55}, true
}

type bassStub struct {
	Base
	Additive[*BassContext]
}

func (b *bassStub) CanApply(ctx *BassContext) bool {
	_, ok := ctx.HarmonyAt(ctx.View().Bar.BarNumber, 1)
	return ok
}

func (b *bassStub) GenerateCandidates(ctx *BassContext, _ uint64) []groove.Candidate {
	v := ctx.View()
	h, _ := ctx.HarmonyAt(v.Bar.BarNumber, 1)
	return []groove.Candidate{groove.NewCandidate(b.ID(), v.Role, v.Bar.BarNumber, 1, groove.StrengthDownbeat, 0.9, groove.WithPitch(h.Root))}
}

func TestSources_RoutesByRole(t *testing.T) {
	drums := NewDrumRegistry()
	drums.Register(stub("drum.op", FamilyGrooveAnchor, 1), groove.RoleKick)

	bass := NewBassRegistry(fixedHarmony{})
	bass.Register(&bassStub{Base: NewBase("bass.op", FamilyGrooveAnchor)}, groove.RoleBass)

	src := Sources{drums, bass}
	assert.True(t, src.Serves(groove.RoleBass))
	assert.False(t, src.Serves(groove.RoleRide))

	g := src.Gather(FamilyGrooveAnchor, testView(groove.RoleBass), nil)
	require.Len(t, g.Groups, 1)
	require.Len(t, g.Groups[0].Candidates, 1)
	require.NotNil(t, g.Groups[0].Candidates[0].Pitch)
	assert.Equal(t, 45, *g.Groups[0].Candidates[0].Pitch)

	assert.Empty(t, src.Gather(FamilyGrooveAnchor, testView(groove.RoleRide), nil).Groups)

	// a bass registry without harmony never applies
	silent := NewBassRegistry(nil)
	silent.Register(&bassStub{Base: NewBase("bass.op", FamilyGrooveAnchor)}, groove.RoleBass)
	g = silent.Gather(FamilyGrooveAnchor, testView(groove.RoleBass), nil)
	assert.Empty(t, g.Groups)
	assert.Equal(t, []string{"bass.op"}, g.Skipped)
}

func TestFamilies(t *testing.T) {
	fams := Families()
	require.Len(t, fams, 7)
	assert.Equal(t, FamilyGrooveAnchor, fams[0])
	assert.Equal(t, FamilyCleanup, fams[len(fams)-1])
	for i := 1; i < len(fams); i++ {
		assert.Less(t, int(fams[i-1]), int(fams[i]))
	}
	assert.Equal(t, "register-contour", FamilyRegisterContour.String())
	assert.False(t, Family(-1).Valid())
}

func TestView_Helpers(t *testing.T) {
	v := testView(groove.RoleHat)
	v.Working = []groove.Candidate{groove.NewCandidate("op", groove.RoleHat, 3, 1.5, groove.StrengthOffbeat, 0.6)}
	v.Committed = map[groove.Role][]groove.Onset{groove.RoleCrash: {{Beat: 1}}}

	assert.True(t, v.HasWorking(1.5))
	assert.False(t, v.HasWorking(2))
	c, ok := v.WorkingAt(1.5)
	require.True(t, ok)
	assert.Equal(t, "op", c.OperatorID)
	assert.True(t, v.CommittedHas(groove.RoleCrash, 1))
	assert.False(t, v.CommittedHas(groove.RoleKick, 1))
}
