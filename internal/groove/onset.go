package groove

import "sort"

// Onset is a finalized hit in a bar, ready for an external tick/MIDI renderer
type Onset struct {
	Beat         float64  `json:"beat"`
	Tick         int      `json:"tick"` // offset from the bar's start tick
	Strength     Strength `json:"strength"`
	Velocity     int      `json:"velocity"`
	TimingOffset int      `json:"timing_offset"`
	Duration     int      `json:"duration"`
	Articulation string   `json:"articulation,omitempty"`
	Pitch        *int     `json:"pitch,omitempty"`
	OperatorID   string   `json:"operator_id"`
	CandidateID  string   `json:"candidate_id"`
}

// Start returns the onset's performed start tick relative to the bar start
func (o Onset) Start() int {
	return o.Tick + o.TimingOffset
}

// End returns the last tick covered by the onset plus one
func (o Onset) End() int {
	return o.Start() + o.Duration
}

// SortOnsets orders onsets by beat, then by candidate id for a stable order
func SortOnsets(onsets []Onset) {
	sort.SliceStable(onsets, func(i, j int) bool {
		ki, kj := BeatKey(onsets[i].Beat), BeatKey(onsets[j].Beat)
		if ki != kj {
			return ki < kj
		}
		return onsets[i].CandidateID < onsets[j].CandidateID
	})
}

// Beats returns the beat positions of a list of onsets
func Beats(onsets []Onset) []float64 {
	out := make([]float64, len(onsets))
	for i, o := range onsets {
		out[i] = o.Beat
	}
	return out
}

// HasBeat reports whether any onset falls on beat's slot
func HasBeat(onsets []Onset, beat float64) bool {
	k := BeatKey(beat)
	for _, o := range onsets {
		if BeatKey(o.Beat) == k {
			return true
		}
	}
	return false
}
