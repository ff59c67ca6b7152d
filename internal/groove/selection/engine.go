// Package selection resolves operator proposals into the finalized onsets of
// each bar.
//
// For every (bar, role) the engine runs one resolution round per operator
// family: gather, gate against the protection policy, group by beat slot,
// elect one candidate per slot, then apply removals. After the last family
// it enforces the density cap and monophony, renders onsets and commits
// them to cross-bar memory.
package selection

import (
	"sort"
	"strconv"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/memory"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/protection"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/rng"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
)

// MustHitOperatorID is the provenance of onsets forced in by a must-hit entry
const MustHitOperatorID = "protection.must-hit"

// mustHitScore is the score of a synthesized must-hit onset
const mustHitScore = 0.5

// BarInput is everything the engine needs to resolve one bar
type BarInput struct {
	Bar    timeline.Bar
	Next   *timeline.Bar
	Tags   groove.TagSet
	Policy protection.Policy
}

// Engine resolves bars against one candidate source. It holds no per-run
// state and may be shared by concurrent runs, each with its own RNG table
// and memory.
type Engine struct {
	source   operator.Source
	profiles Profiles
}

// NewEngine creates an engine. A nil source yields only synthesized
// must-hit onsets.
func NewEngine(source operator.Source, profiles Profiles) *Engine {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Engine{source: source, profiles: profiles}
}

// Profiles returns the engine's role profiles
func (e *Engine) Profiles() Profiles {
	return e.profiles
}

// ResolveBar resolves roles in the given order and commits each role's
// onsets to mem before the next role starts. Operators see mem as it was at
// the start of the bar.
func (e *Engine) ResolveBar(in BarInput, roles []groove.Role, rnd *rng.Table, mem *memory.DrummerMemory, diag *Diagnostics) map[groove.Role][]groove.Onset {
	if diag == nil {
		diag = &Diagnostics{}
	}
	bar := in.Bar.BarNumber
	snap := mem.Snapshot()
	fillSeed := rnd.Uint64At(rng.FillShape, rng.Key("fill", strconv.Itoa(bar)))

	committed := make(map[groove.Role][]groove.Onset, len(roles))
	for _, role := range roles {
		r := &roleRun{
			engine:    e,
			in:        in,
			role:      role,
			profile:   e.profiles.For(role),
			protect:   in.Policy.For(role),
			snap:      snap,
			fillSeed:  fillSeed,
			committed: committed,
			rnd:       rnd,
			working:   make(map[int64]groove.Candidate),
		}
		onsets := r.resolve()
		diag.Add(r.diag)

		committed[role] = onsets
		mem.Commit(bar, role, onsets)
	}
	return committed
}

// roleRun is the state machine of one (bar, role)
type roleRun struct {
	engine    *Engine
	in        BarInput
	role      groove.Role
	profile   RoleProfile
	protect   protection.RoleProtectionSet
	snap      memory.Snapshot
	fillSeed  uint64
	committed map[groove.Role][]groove.Onset
	rnd       *rng.Table

	working map[int64]groove.Candidate
	diag    Diagnostics
}

func (r *roleRun) resolve() []groove.Onset {
	serves := r.engine.source != nil && r.engine.source.Serves(r.role)

	for round, family := range operator.Families() {
		var g operator.Gathered
		if serves {
			g = r.engine.source.Gather(family, r.view(), r.operatorSeed)
		}
		r.diag.Candidates += g.CandidateCount()
		r.diag.Removals += len(g.Removals)
		r.diag.SkippedOperators += len(g.Skipped)

		buckets := r.gateAdditions(g.Groups)
		if round == 0 {
			r.synthesizeMustHits(buckets)
		}
		r.elect(buckets)
		r.applyRemovals(r.gateRemovals(g.Removals))
	}

	r.enforceDensity()
	onsets := r.render()
	if r.profile.Monophonic {
		onsets = r.enforceMonophony(onsets)
	}
	groove.SortOnsets(onsets)
	r.diag.Committed = len(onsets)

	logger.Debug("Role resolved", logger.Fields{
		"bar":             r.in.Bar.BarNumber,
		"role":            r.role,
		"onsets":          len(onsets),
		"gated_additions": r.diag.GatedAdditions,
		"gated_removals":  r.diag.GatedRemovals,
		"tie_breaks":      r.diag.TieBreaks,
		"density_trimmed": r.diag.DensityTrimmed,
	})
	return onsets
}

func (r *roleRun) view() operator.View {
	return operator.View{
		Bar:       r.in.Bar,
		Next:      r.in.Next,
		Role:      r.role,
		Tags:      r.in.Tags,
		Energy:    r.in.Bar.Section.Energy,
		Memory:    r.snap,
		FillSeed:  r.fillSeed,
		Working:   r.workingList(),
		Committed: r.committed,
	}
}

func (r *roleRun) operatorSeed(operatorID string) uint64 {
	return r.rnd.Uint64At(rng.OperatorSeed, rng.Key(strconv.Itoa(r.in.Bar.BarNumber), string(r.role), operatorID))
}

// workingList returns the working onsets in slot order
func (r *roleRun) workingList() []groove.Candidate {
	keys := r.workingKeys()
	out := make([]groove.Candidate, len(keys))
	for i, k := range keys {
		out[i] = r.working[k]
	}
	return out
}

func (r *roleRun) workingKeys() []int64 {
	keys := make([]int64, 0, len(r.working))
	for k := range r.working {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// foreign reports whether a proposal targets another role, bar or a beat
// outside the bar
func (r *roleRun) foreign(role groove.Role, bar int, beat float64) bool {
	return role != r.role || bar != r.in.Bar.BarNumber || !r.in.Bar.Contains(beat)
}

func (r *roleRun) gateAdditions(groups []operator.Group) map[int64][]groove.Candidate {
	buckets := make(map[int64][]groove.Candidate)
	for _, g := range groups {
		for _, c := range g.Candidates {
			if r.foreign(c.Role, c.Bar, c.Beat) {
				r.diag.OutOfBar++
				continue
			}
			if !r.protect.CanAdd(c.Beat) {
				r.diag.GatedAdditions++
				continue
			}
			k := c.Key()
			buckets[k] = appendUnique(buckets[k], c)
		}
	}
	return buckets
}

func (r *roleRun) gateRemovals(removals []groove.RemovalCandidate) []groove.RemovalCandidate {
	out := make([]groove.RemovalCandidate, 0, len(removals))
	for _, rm := range removals {
		if r.foreign(rm.Role, rm.Bar, rm.Beat) {
			r.diag.OutOfBar++
			continue
		}
		if !r.protect.CanRemove(rm.Beat) {
			r.diag.GatedRemovals++
			continue
		}
		out = append(out, rm)
	}
	return out
}

// synthesizeMustHits forces an onset on every must-hit beat nobody proposed
func (r *roleRun) synthesizeMustHits(buckets map[int64][]groove.Candidate) {
	for _, beat := range r.protect.MustHit.Beats() {
		if !r.in.Bar.Contains(beat) {
			continue
		}
		k := groove.BeatKey(beat)
		if len(buckets[k]) > 0 {
			continue
		}
		if _, ok := r.working[k]; ok {
			continue
		}
		buckets[k] = []groove.Candidate{
			groove.NewCandidate(MustHitOperatorID, r.role, r.in.Bar.BarNumber, beat, r.in.Bar.StrengthAt(beat), mustHitScore),
		}
		r.diag.Synthesized++
	}
}

// elect picks one candidate per slot. The incumbent working onset competes
// with the new proposals.
func (r *roleRun) elect(buckets map[int64][]groove.Candidate) {
	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		bucket := buckets[k]
		if inc, ok := r.working[k]; ok {
			bucket = appendUnique(bucket, inc)
		}
		if len(bucket) > 1 {
			r.diag.Elections++
		}
		r.working[k] = r.pick(k, bucket)
	}
}

// pick returns the highest-scoring candidate. Ties are broken by a keyed
// tie-break draw over the tied candidates sorted by id, so the outcome
// depends only on the seed and (bar, role, slot).
func (r *roleRun) pick(key int64, bucket []groove.Candidate) groove.Candidate {
	best := bucket[0].Score
	for _, c := range bucket[1:] {
		if c.Score > best {
			best = c.Score
		}
	}
	tied := make([]groove.Candidate, 0, len(bucket))
	for _, c := range bucket {
		if c.Score == best {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		return tied[0]
	}

	sort.Slice(tied, func(i, j int) bool { return tied[i].ID < tied[j].ID })
	r.diag.TieBreaks++
	drawKey := rng.Key("tie", strconv.Itoa(r.in.Bar.BarNumber), string(r.role), strconv.FormatInt(key, 10))
	return tied[r.rnd.IntAt(rng.TieBreak, drawKey, len(tied))]
}

func (r *roleRun) applyRemovals(removals []groove.RemovalCandidate) {
	for _, rm := range removals {
		k := rm.Key()
		if _, ok := r.working[k]; ok {
			delete(r.working, k)
			r.diag.RemovalsApplied++
		}
	}
}

func appendUnique(bucket []groove.Candidate, c groove.Candidate) []groove.Candidate {
	for _, b := range bucket {
		if b.ID == c.ID {
			return bucket
		}
	}
	return append(bucket, c)
}
