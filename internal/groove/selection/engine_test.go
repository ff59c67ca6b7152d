package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/memory"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/protection"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/rng"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

// fakeSource replays fixed proposals per family
type fakeSource struct {
	add      map[operator.Family][]groove.Candidate
	remove   map[operator.Family][]groove.RemovalCandidate
	families []operator.Family
	views    []operator.View
}

func (f *fakeSource) Serves(groove.Role) bool { return true }

func (f *fakeSource) Gather(fam operator.Family, v operator.View, seed operator.SeedFunc) operator.Gathered {
	f.families = append(f.families, fam)
	f.views = append(f.views, v)
	g := operator.Gathered{Family: fam}
	byOp := make(map[string]int)
	for _, c := range f.add[fam] {
		if c.Role != v.Role {
			continue
		}
		seed(c.OperatorID)
		i, ok := byOp[c.OperatorID]
		if !ok {
			i = len(g.Groups)
			byOp[c.OperatorID] = i
			g.Groups = append(g.Groups, operator.Group{OperatorID: c.OperatorID})
		}
		g.Groups[i].Candidates = append(g.Groups[i].Candidates, c)
	}
	for _, rm := range f.remove[fam] {
		if rm.Role == v.Role {
			g.Removals = append(g.Removals, rm)
		}
	}
	return g
}

// steady profiles without humanize jitter
func steady() Profiles {
	return Profiles{
		groove.RoleKick:  {DensityCap: 8, MinDuration: 10, DurationBeats: 0.25},
		groove.RoleSnare: {DensityCap: 8, MinDuration: 10, DurationBeats: 0.25},
		groove.RoleBass:  {DensityCap: 8, Monophonic: true, MinDuration: 30, DurationBeats: 1},
	}
}

func testBar(t *testing.T, number int) timeline.Bar {
	t.Helper()
	tl, err := timeline.BuildBars(nil, []timeline.Section{
		{Type: "verse", StartBar: 1, BarCount: 4, Energy: 0.5},
		{Type: "chorus", StartBar: 5, BarCount: 4, Energy: 0.8},
	}, timeline.DefaultOptions())
	require.NoError(t, err)
	b, err := tl.Bar(number)
	require.NoError(t, err)
	return b
}

func policy(role groove.Role, set protection.RoleProtectionSet) protection.Policy {
	return protection.Merge([]protection.Layer{{Name: "test", Roles: map[groove.Role]protection.RoleProtectionSet{role: set}}}, groove.TagSet{})
}

func resolve(t *testing.T, e *Engine, in BarInput, seed uint64, roles ...groove.Role) (map[groove.Role][]groove.Onset, *Diagnostics) {
	t.Helper()
	diag := &Diagnostics{}
	out := e.ResolveBar(in, roles, rng.NewSeeded(seed), memory.New(), diag)
	return out, diag
}

func TestResolveBar_MustHitKickKeepsBestCandidate(t *testing.T) {
	bar := testBar(t, 1)
	src := &fakeSource{add: map[operator.Family][]groove.Candidate{
		operator.FamilyGrooveAnchor: {
			groove.NewCandidate("op.strong", groove.RoleKick, 1, 1, groove.StrengthDownbeat, 0.9),
			groove.NewCandidate("op.weak", groove.RoleKick, 1, 1, groove.StrengthDownbeat, 0.4),
		},
	}}
	e := NewEngine(src, steady())
	in := BarInput{Bar: bar, Policy: policy(groove.RoleKick, protection.RoleProtectionSet{MustHit: groove.NewBeatSet(1)})}

	for seed := uint64(0); seed < 50; seed++ {
		out, diag := resolve(t, e, in, seed, groove.RoleKick)
		require.Len(t, out[groove.RoleKick], 1)
		assert.Equal(t, "op.strong", out[groove.RoleKick][0].OperatorID, "seed %d", seed)
		assert.Zero(t, diag.Synthesized)
		assert.Zero(t, diag.TieBreaks)
	}
}

func TestResolveBar_TieBreakIsSeeded(t *testing.T) {
	bar := testBar(t, 5)
	src := &fakeSource{add: map[operator.Family][]groove.Candidate{
		operator.FamilyMicroAddition: {
			groove.NewCandidate("op.a", groove.RoleSnare, 5, 2.5, groove.StrengthOffbeat, 0.7),
			groove.NewCandidate("op.b", groove.RoleSnare, 5, 2.5, groove.StrengthOffbeat, 0.7),
		},
	}}
	e := NewEngine(src, steady())
	in := BarInput{Bar: bar}

	winners := make(map[string]bool)
	for seed := uint64(0); seed < 64; seed++ {
		first, diag := resolve(t, e, in, seed, groove.RoleSnare)
		again, _ := resolve(t, e, in, seed, groove.RoleSnare)
		require.Len(t, first[groove.RoleSnare], 1)
		assert.Equal(t, first, again, "seed %d", seed)
		assert.Equal(t, 1, diag.TieBreaks)
		winners[first[groove.RoleSnare][0].OperatorID] = true
	}
	assert.Len(t, winners, 2, "both tied candidates win for some seed")
}

func TestResolveBar_FamilyOrderAndView(t *testing.T) {
	bar := testBar(t, 2)
	src := &fakeSource{}
	e := NewEngine(src, steady())
	e.ResolveBar(BarInput{Bar: bar}, []groove.Role{groove.RoleKick}, rng.NewSeeded(1), memory.New(), nil)

	assert.Equal(t, operator.Families(), src.families)
	for _, v := range src.views {
		assert.Equal(t, groove.RoleKick, v.Role)
		assert.Equal(t, 0.5, v.Energy)
	}
}

func TestResolveBar_Gating(t *testing.T) {
	bar := testBar(t, 1)
	src := &fakeSource{
		add: map[operator.Family][]groove.Candidate{
			operator.FamilyGrooveAnchor: {
				groove.NewCandidate("anchor", groove.RoleKick, 1, 1, groove.StrengthDownbeat, 0.9),
				groove.NewCandidate("anchor", groove.RoleKick, 1, 3, groove.StrengthStrong, 0.8),
			},
			operator.FamilyMicroAddition: {
				groove.NewCandidate("micro", groove.RoleKick, 1, 2.5, groove.StrengthOffbeat, 0.6),
				groove.NewCandidate("micro", groove.RoleKick, 1, 5.5, groove.StrengthOffbeat, 0.6),
				groove.NewCandidate("micro", groove.RoleKick, 2, 4, groove.StrengthStrong, 0.6),
			},
		},
		remove: map[operator.Family][]groove.RemovalCandidate{
			operator.FamilyNoteRemoval: {
				groove.NewRemoval("rm", groove.RoleKick, 1, 1, "test"),
				groove.NewRemoval("rm", groove.RoleKick, 1, 3, "test"),
			},
		},
	}
	e := NewEngine(src, steady())
	in := BarInput{Bar: bar, Policy: policy(groove.RoleKick, protection.RoleProtectionSet{
		NeverRemove: groove.NewBeatSet(1),
		NeverAdd:    groove.NewBeatSet(2.5),
	})}

	out, diag := resolve(t, e, in, 7, groove.RoleKick)
	assert.Equal(t, []float64{1}, groove.Beats(out[groove.RoleKick]))
	assert.Equal(t, 1, diag.GatedAdditions)
	assert.Equal(t, 1, diag.GatedRemovals)
	assert.Equal(t, 2, diag.OutOfBar)
	assert.Equal(t, 1, diag.RemovalsApplied)
}

func TestResolveBar_SynthesizesMustHits(t *testing.T) {
	bar := testBar(t, 3)
	e := NewEngine(&fakeSource{}, steady())
	in := BarInput{Bar: bar, Policy: policy(groove.RoleKick, protection.RoleProtectionSet{
		MustHit:  groove.NewBeatSet(1, 3),
		NeverAdd: groove.NewBeatSet(3),
	})}

	out, diag := resolve(t, e, in, 1, groove.RoleKick)
	kick := out[groove.RoleKick]
	require.Len(t, kick, 2)
	assert.Equal(t, []float64{1, 3}, groove.Beats(kick))
	for _, o := range kick {
		assert.Equal(t, MustHitOperatorID, o.OperatorID)
	}
	assert.Equal(t, 2, diag.Synthesized)

	// a nil source still honors must-hits
	out, _ = resolve(t, NewEngine(nil, steady()), in, 1, groove.RoleKick)
	assert.Len(t, out[groove.RoleKick], 2)
}

func TestResolveBar_LaterFamilyReplacesIncumbent(t *testing.T) {
	bar := testBar(t, 1)
	src := &fakeSource{add: map[operator.Family][]groove.Candidate{
		operator.FamilyGrooveAnchor:    {groove.NewCandidate("anchor", groove.RoleKick, 1, 3, groove.StrengthStrong, 0.6)},
		operator.FamilyStyleIdiom:      {groove.NewCandidate("idiom", groove.RoleKick, 1, 3, groove.StrengthStrong, 0.8, groove.WithArticulation("stomp"))},
		operator.FamilyRegisterContour: {groove.NewCandidate("contour", groove.RoleKick, 1, 3, groove.StrengthStrong, 0.5)},
	}}
	out, diag := resolve(t, NewEngine(src, steady()), BarInput{Bar: bar}, 3, groove.RoleKick)
	require.Len(t, out[groove.RoleKick], 1)
	assert.Equal(t, "idiom", out[groove.RoleKick][0].OperatorID)
	assert.Equal(t, "stomp", out[groove.RoleKick][0].Articulation)
	assert.Equal(t, 2, diag.Elections)
}

func TestEnforceDensity(t *testing.T) {
	anchors := []groove.Candidate{
		groove.NewCandidate("a", groove.RoleKick, 1, 1, groove.StrengthDownbeat, 0.9),
		groove.NewCandidate("a", groove.RoleKick, 1, 2.5, groove.StrengthOffbeat, 0.5),
		groove.NewCandidate("a", groove.RoleKick, 1, 3, groove.StrengthStrong, 0.8),
		groove.NewCandidate("a", groove.RoleKick, 1, 4.5, groove.StrengthOffbeat, 0.5),
	}

	tests := []struct {
		name    string
		cap     int
		protect protection.RoleProtectionSet
		want    []float64
		trimmed int
	}{
		{name: "uncapped", cap: 0, want: []float64{1, 2.5, 3, 4.5}},
		{name: "weakest latest first", cap: 3, want: []float64{1, 2.5, 3}, trimmed: 1},
		{name: "downbeat survives", cap: 1, want: []float64{1}, trimmed: 3},
		{
			name:    "locked beats exceed cap",
			cap:     1,
			protect: protection.RoleProtectionSet{MustHit: groove.NewBeatSet(2.5), Protected: groove.NewBeatSet(4.5)},
			want:    []float64{1, 2.5, 4.5},
			trimmed: 1,
		},
		{
			name:    "downbeat goes when it meets the cap",
			cap:     2,
			protect: protection.RoleProtectionSet{MustHit: groove.NewBeatSet(2.5), Protected: groove.NewBeatSet(4.5)},
			want:    []float64{2.5, 4.5},
			trimmed: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{add: map[operator.Family][]groove.Candidate{operator.FamilyGrooveAnchor: anchors}}
			profiles := Profiles{groove.RoleKick: {DensityCap: tt.cap, MinDuration: 10, DurationBeats: 0.25}}
			in := BarInput{Bar: testBar(t, 1), Policy: policy(groove.RoleKick, tt.protect)}
			out, diag := resolve(t, NewEngine(src, profiles), in, 1, groove.RoleKick)
			assert.Equal(t, tt.want, groove.Beats(out[groove.RoleKick]))
			assert.Equal(t, tt.trimmed, diag.DensityTrimmed)
		})
	}
}

func TestEnforceDensity_FillCap(t *testing.T) {
	var cands []groove.Candidate
	for _, b := range []float64{1, 2, 3, 4, 4.25, 4.5, 4.75} {
		cands = append(cands, groove.NewCandidate("a", groove.RoleSnare, 4, b, groove.StrengthStrong, 0.7))
	}
	src := &fakeSource{add: map[operator.Family][]groove.Candidate{operator.FamilyGrooveAnchor: cands}}
	profiles := Profiles{groove.RoleSnare: {DensityCap: 4, FillDensityCap: 7, MinDuration: 10, DurationBeats: 0.25}}

	fill := testBar(t, 4)
	require.True(t, fill.IsFillWindow)
	out, _ := resolve(t, NewEngine(src, profiles), BarInput{Bar: fill}, 1, groove.RoleSnare)
	assert.Len(t, out[groove.RoleSnare], 7)
}

func TestEnforceMonophony(t *testing.T) {
	bar := testBar(t, 1)
	pitch := groove.WithPitch(40)

	tests := []struct {
		name    string
		cands   []groove.Candidate
		protect protection.RoleProtectionSet
		want    []float64
		check   func(t *testing.T, onsets []groove.Onset)
	}{
		{
			name: "close notes keep the stronger",
			cands: []groove.Candidate{
				groove.NewCandidate("b", groove.RoleBass, 1, 2, groove.StrengthOffbeat, 0.7, pitch),
				groove.NewCandidate("b", groove.RoleBass, 1, 2.03125, groove.StrengthStrong, 0.7, pitch),
			},
			want: []float64{2.03125},
		},
		{
			name: "locked note wins over a stronger one",
			cands: []groove.Candidate{
				groove.NewCandidate("b", groove.RoleBass, 1, 2, groove.StrengthOffbeat, 0.7, pitch),
				groove.NewCandidate("b", groove.RoleBass, 1, 2.03125, groove.StrengthStrong, 0.7, pitch),
			},
			protect: protection.RoleProtectionSet{Protected: groove.NewBeatSet(2)},
			want:    []float64{2},
		},
		{
			name: "overlaps are shortened",
			cands: []groove.Candidate{
				groove.NewCandidate("b", groove.RoleBass, 1, 1, groove.StrengthDownbeat, 0.9, pitch, groove.WithDuration(960)),
				groove.NewCandidate("b", groove.RoleBass, 1, 2, groove.StrengthBackbeat, 0.9, pitch),
			},
			want: []float64{1, 2},
			check: func(t *testing.T, onsets []groove.Onset) {
				assert.Equal(t, 479, onsets[0].Duration)
				assert.Equal(t, 480, onsets[1].Duration)
			},
		},
		{
			name: "last note ends with the bar",
			cands: []groove.Candidate{
				groove.NewCandidate("b", groove.RoleBass, 1, 4, groove.StrengthBackbeat, 0.9, pitch, groove.WithDuration(960)),
			},
			want: []float64{4},
			check: func(t *testing.T, onsets []groove.Onset) {
				assert.Equal(t, 480, onsets[0].Duration)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{add: map[operator.Family][]groove.Candidate{operator.FamilyGrooveAnchor: tt.cands}}
			in := BarInput{Bar: bar, Policy: policy(groove.RoleBass, tt.protect)}
			out, _ := resolve(t, NewEngine(src, steady()), in, 1, groove.RoleBass)
			onsets := out[groove.RoleBass]
			assert.Equal(t, tt.want, groove.Beats(onsets))
			for i := 1; i < len(onsets); i++ {
				assert.LessOrEqual(t, onsets[i-1].End(), onsets[i].Start(), "no overlap")
			}
			for _, o := range onsets {
				assert.GreaterOrEqual(t, o.Duration, 30)
			}
			if tt.check != nil {
				tt.check(t, onsets)
			}
		})
	}
}

func TestRender_HumanizeStaysInRange(t *testing.T) {
	bar := testBar(t, 1)
	var cands []groove.Candidate
	for _, b := range []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5} {
		cands = append(cands, groove.NewCandidate("h", groove.RoleHat, 1, b, groove.StrengthOffbeat, 0.7, groove.WithVelocity(125)))
	}
	cands = append(cands, groove.NewCandidate("h", groove.RoleHat, 1, 4.98, groove.StrengthGhost, 0.7, groove.WithVelocity(2), groove.WithTimingOffset(40)))
	src := &fakeSource{add: map[operator.Family][]groove.Candidate{operator.FamilyGrooveAnchor: cands}}
	profiles := Profiles{groove.RoleHat: {DensityCap: 16, MinDuration: 10, DurationBeats: 0.25, VelocityJitter: 10, TimingJitter: 6}}
	e := NewEngine(src, profiles)

	for seed := uint64(0); seed < 20; seed++ {
		out, _ := resolve(t, e, BarInput{Bar: bar}, seed, groove.RoleHat)
		again, _ := resolve(t, e, BarInput{Bar: bar}, seed, groove.RoleHat)
		assert.Equal(t, out, again)
		for _, o := range out[groove.RoleHat] {
			assert.GreaterOrEqual(t, o.Velocity, 1)
			assert.LessOrEqual(t, o.Velocity, 127)
			assert.GreaterOrEqual(t, o.Start(), 0)
			assert.Less(t, o.Start(), bar.TicksPerMeasure)
			assert.Equal(t, 120, o.Duration)
			assert.NotEmpty(t, o.CandidateID)
		}
	}
}

// memoryProbe records what the snare saw of the kick while resolving
type memoryProbe struct {
	fakeSource
	sawKickInMemory    bool
	sawKickInCommitted bool
}

func (m *memoryProbe) Gather(fam operator.Family, v operator.View, seed operator.SeedFunc) operator.Gathered {
	if v.Role == groove.RoleSnare && fam == operator.FamilyGrooveAnchor {
		_, m.sawKickInMemory = v.Memory.LastHit(groove.RoleKick)
		m.sawKickInCommitted = v.CommittedHas(groove.RoleKick, 1)
	}
	return m.fakeSource.Gather(fam, v, seed)
}

func TestResolveBar_MemoryAndCommitted(t *testing.T) {
	bar := testBar(t, 1)
	probe := &memoryProbe{fakeSource: fakeSource{add: map[operator.Family][]groove.Candidate{
		operator.FamilyGrooveAnchor: {
			groove.NewCandidate("k", groove.RoleKick, 1, 1, groove.StrengthDownbeat, 0.9),
			groove.NewCandidate("s", groove.RoleSnare, 1, 2, groove.StrengthBackbeat, 0.9),
		},
	}}}
	mem := memory.New()
	e := NewEngine(probe, steady())
	out := e.ResolveBar(BarInput{Bar: bar}, []groove.Role{groove.RoleKick, groove.RoleSnare}, rng.NewSeeded(1), mem, nil)

	assert.False(t, probe.sawKickInMemory, "memory is read as of the bar start")
	assert.True(t, probe.sawKickInCommitted, "earlier roles are visible as committed")
	assert.Len(t, out, 2)

	kick, ok := mem.LastKickBeat()
	require.True(t, ok)
	assert.Equal(t, 1.0, kick)
	snare, ok := mem.LastSnareBeat()
	require.True(t, ok)
	assert.Equal(t, 2.0, snare)
}

func TestProfiles(t *testing.T) {
	p := DefaultProfiles()
	assert.Equal(t, groove.RoleOrder, p.Roles())
	assert.True(t, p.For(groove.RoleBass).Monophonic)
	assert.Equal(t, DefaultProfile, Profiles{}.For(groove.RoleKick))
	assert.Equal(t, 10, p.For(groove.RoleSnare).Cap(true))
	assert.Equal(t, 1, p.For(groove.RoleCrash).Cap(true))
}
