package timeline

import (
	"math"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
)

// Bar is one measure with its absolute tick range and section context.
// Beat positions are 1-based and measured in units of TicksPerBeat, so a 6/8
// bar spans beats 1 through 6 even though it is felt in two.
type Bar struct {
	BarNumber       int   `json:"bar_number"`
	Numerator       int   `json:"numerator"`
	Denominator     int   `json:"denominator"`
	StartTick       int   `json:"start_tick"`
	EndTick         int   `json:"end_tick"`
	TicksPerMeasure int   `json:"ticks_per_measure"`
	TicksPerBeat    int   `json:"ticks_per_beat"`
	BeatsPerBar     int   `json:"beats_per_bar"`
	BackbeatBeats   []int `json:"backbeat_beats"`

	Section             Section `json:"section"`
	SectionIndex        int     `json:"section_index"`
	BarWithinSection    int     `json:"bar_within_section"`
	BarsUntilSectionEnd int     `json:"bars_until_section_end"`
	IsAtSectionBoundary bool    `json:"is_at_section_boundary"`
	IsFillWindow        bool    `json:"is_fill_window"`
	IsLastBar           bool    `json:"is_last_bar"`
}

func newBar(number, numerator, denominator, startTick, ppq int) (Bar, error) {
	if numerator <= 0 {
		return Bar{}, invalidf("bar %d: numerator must be positive, got %d", number, numerator)
	}
	if denominator <= 0 || denominator&(denominator-1) != 0 {
		return Bar{}, invalidf("bar %d: denominator must be a power of two, got %d", number, denominator)
	}
	perMeasure := ppq * 4 * numerator / denominator
	if perMeasure <= 0 || perMeasure%numerator != 0 {
		return Bar{}, invalidf("bar %d: %d/%d does not divide into whole ticks at %d ppq", number, numerator, denominator, ppq)
	}

	return Bar{
		BarNumber:       number,
		Numerator:       numerator,
		Denominator:     denominator,
		StartTick:       startTick,
		EndTick:         startTick + perMeasure,
		TicksPerMeasure: perMeasure,
		TicksPerBeat:    perMeasure / numerator,
		BeatsPerBar:     beatsPerBar(numerator, denominator),
		BackbeatBeats:   backbeats(numerator, denominator),
	}, nil
}

// IsCompound reports whether the meter is a compound meter felt in dotted beats
func IsCompound(numerator, denominator int) bool {
	return denominator == 8 && (numerator == 6 || numerator == 9 || numerator == 12)
}

func beatsPerBar(numerator, denominator int) int {
	if IsCompound(numerator, denominator) {
		return numerator / 3
	}
	return numerator
}

// backbeats returns accent positions for the meter in 1-based beat units
func backbeats(numerator, denominator int) []int {
	if IsCompound(numerator, denominator) {
		// second dotted beat of every pair: 6/8 -> 4, 9/8 -> 4,7, 12/8 -> 4,10
		switch numerator {
		case 6:
			return []int{4}
		case 9:
			return []int{4, 7}
		default:
			return []int{4, 10}
		}
	}
	switch numerator {
	case 1:
		return nil
	case 2:
		return []int{2}
	case 3:
		return []int{2, 3}
	case 4:
		return []int{2, 4}
	case 5:
		return []int{3, 5}
	}
	out := make([]int, 0, numerator/2)
	start := 2
	if numerator%2 == 1 {
		start = 3
	}
	for b := start; b <= numerator; b += 2 {
		out = append(out, b)
	}
	return out
}

// LastBeat returns one past the final beat position of the bar (numerator+1)
func (b Bar) LastBeat() float64 {
	return float64(b.Numerator + 1)
}

// Contains reports whether a beat lies inside the bar
func (b Bar) Contains(beat float64) bool {
	return beat >= 1 && beat < b.LastBeat()
}

// BeatToTick converts a 1-based beat to a tick offset from the bar start
func (b Bar) BeatToTick(beat float64) int {
	return int(math.Round((beat - 1) * float64(b.TicksPerBeat)))
}

// AbsoluteTick converts a 1-based beat to an absolute tick
func (b Bar) AbsoluteTick(beat float64) int {
	return b.StartTick + b.BeatToTick(beat)
}

// IsBackbeat reports whether beat is one of the bar's accent positions
func (b Bar) IsBackbeat(beat float64) bool {
	for _, bb := range b.BackbeatBeats {
		if math.Abs(beat-float64(bb)) < 1e-9 {
			return true
		}
	}
	return false
}

// MidBeat returns the strong beat in the middle of the bar (beat 3 in 4/4),
// or 0 when the meter has none
func (b Bar) MidBeat() float64 {
	if IsCompound(b.Numerator, b.Denominator) {
		return 0
	}
	if b.Numerator >= 4 && b.Numerator%2 == 0 {
		return float64(b.Numerator/2 + 1)
	}
	return 0
}

// EighthBeats returns the length of an eighth note in beat units
func (b Bar) EighthBeats() float64 {
	return float64(b.Denominator) / 8
}

// SixteenthBeats returns the length of a sixteenth note in beat units
func (b Bar) SixteenthBeats() float64 {
	return float64(b.Denominator) / 16
}

// IsSectionStart reports whether the bar opens its section
func (b Bar) IsSectionStart() bool {
	return b.BarWithinSection == 1
}

// StrengthAt classifies a beat position within the bar
func (b Bar) StrengthAt(beat float64) groove.Strength {
	switch {
	case math.Abs(beat-1) < 1e-9:
		return groove.StrengthDownbeat
	case b.IsBackbeat(beat):
		return groove.StrengthBackbeat
	case isWhole(beat) && IsCompound(b.Numerator, b.Denominator):
		if int(math.Round(beat)-1)%3 == 0 {
			return groove.StrengthStrong
		}
		return groove.StrengthOffbeat
	case isWhole(beat):
		return groove.StrengthStrong
	case isWhole(beat * 2):
		return groove.StrengthOffbeat
	default:
		return groove.StrengthGhost
	}
}

func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-9
}
