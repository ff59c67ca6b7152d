package selection

import (
	"math"
	"sort"
	"strconv"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/rng"
)

const downbeatKey = 0

// enforceDensity trims the working set down to the role's cap. Locked beats
// (must-hit, protected, never-remove) are never trimmed; beat 1 goes only
// when it is the last removable onset left and dropping it meets the cap.
func (r *roleRun) enforceDensity() {
	limit := r.profile.Cap(r.in.Bar.IsFillWindow)
	if limit <= 0 {
		return
	}
	for len(r.working) > limit {
		k, ok := r.densityVictim(limit)
		if !ok {
			return
		}
		delete(r.working, k)
		r.diag.DensityTrimmed++
	}
}

func (r *roleRun) densityVictim(limit int) (int64, bool) {
	removable := make([]groove.Candidate, 0, len(r.working))
	downbeatFree := false
	for k, c := range r.working {
		if r.protect.Locked(c.Beat) {
			continue
		}
		if k == downbeatKey {
			downbeatFree = true
			continue
		}
		removable = append(removable, c)
	}
	if len(removable) == 0 {
		if downbeatFree && len(r.working)-1 <= limit {
			return downbeatKey, true
		}
		return 0, false
	}

	sort.Slice(removable, func(i, j int) bool {
		a, b := removable[i], removable[j]
		if a.Strength != b.Strength {
			return a.Strength < b.Strength
		}
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.Key() != b.Key() {
			return a.Key() > b.Key()
		}
		return a.ID < b.ID
	})
	return removable[0].Key(), true
}

// render turns the working set into onsets: velocity and timing from hints
// or defaults plus keyed humanize jitter, duration from hint or profile
func (r *roleRun) render() []groove.Onset {
	bar := r.in.Bar
	working := r.workingList()
	out := make([]groove.Onset, 0, len(working))
	for _, c := range working {
		tick := bar.BeatToTick(c.Beat)
		slot := strconv.FormatInt(c.Key(), 10)
		barStr := strconv.Itoa(bar.BarNumber)

		vel := c.Strength.DefaultVelocity()
		if c.Velocity != nil {
			vel = *c.Velocity
		}
		if j := r.profile.VelocityJitter; j > 0 {
			vel += r.rnd.IntAt(rng.VelocityHumanize, rng.Key("vel", barStr, string(r.role), slot), 2*j+1) - j
		}
		vel = clamp(vel, 1, 127)

		offset := 0
		if c.TimingOffset != nil {
			offset = *c.TimingOffset
		}
		if j := r.profile.TimingJitter; j > 0 {
			offset += r.rnd.IntAt(rng.TimingHumanize, rng.Key("time", barStr, string(r.role), slot), 2*j+1) - j
		}
		// the performed start stays inside the bar
		offset = clamp(tick+offset, 0, bar.TicksPerMeasure-1) - tick

		dur := int(math.Round(r.profile.DurationBeats * float64(bar.TicksPerBeat)))
		if c.Duration != nil {
			dur = *c.Duration
		}
		if dur < r.profile.MinDuration {
			dur = r.profile.MinDuration
		}
		if dur < 1 {
			dur = 1
		}

		var pitch *int
		if c.Pitch != nil {
			p := clamp(*c.Pitch, 0, 127)
			pitch = &p
		}

		out = append(out, groove.Onset{
			Beat:         c.Beat,
			Tick:         tick,
			Strength:     c.Strength,
			Velocity:     vel,
			TimingOffset: offset,
			Duration:     dur,
			Articulation: c.Articulation,
			Pitch:        pitch,
			OperatorID:   c.OperatorID,
			CandidateID:  c.ID,
		})
	}
	return out
}

// enforceMonophony makes a single-voice role playable: notes closer than
// MinDuration+1 ticks keep only the stronger one, and overlapping notes are
// shortened to end one tick before the next start. Notes never run past
// the bar's end when the minimum duration allows it.
func (r *roleRun) enforceMonophony(onsets []groove.Onset) []groove.Onset {
	minDur := r.profile.MinDuration
	if minDur < 1 {
		minDur = 1
	}
	sort.SliceStable(onsets, func(i, j int) bool {
		if onsets[i].Start() != onsets[j].Start() {
			return onsets[i].Start() < onsets[j].Start()
		}
		return onsets[i].CandidateID < onsets[j].CandidateID
	})

	kept := make([]groove.Onset, 0, len(onsets))
	for _, n := range onsets {
		dropped := false
		for len(kept) > 0 {
			p := &kept[len(kept)-1]
			gap := n.Start() - p.Start()
			if gap >= minDur+1 {
				if p.End() > n.Start() {
					p.Duration = gap - 1
					r.diag.MonophonyShortened++
				}
				break
			}
			r.diag.MonophonyDropped++
			if r.outranks(*p, n) {
				dropped = true
				break
			}
			kept = kept[:len(kept)-1]
		}
		if !dropped {
			kept = append(kept, n)
		}
	}

	if len(kept) > 0 {
		last := &kept[len(kept)-1]
		if room := r.in.Bar.TicksPerMeasure - last.Start(); last.Duration > room && room >= minDur {
			last.Duration = room
			r.diag.MonophonyShortened++
		}
	}
	return kept
}

// outranks reports whether a keeps its place over b in a monophony clash
func (r *roleRun) outranks(a, b groove.Onset) bool {
	la, lb := r.protect.Locked(a.Beat), r.protect.Locked(b.Beat)
	if la != lb {
		return la
	}
	if a.Strength != b.Strength {
		return a.Strength > b.Strength
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
