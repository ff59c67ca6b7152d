// Package timeline builds the ordered bar sequence a generation run walks.
//
// A timeline is a list of time-signature change events plus a section
// layout. BuildBars turns both into contiguous Bar records with absolute tick
// ranges and the section-derived flags operators rely on (fill window,
// section boundary, backbeat positions).
package timeline

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultTicksPerQuarter is the MIDI resolution used when none is configured
const DefaultTicksPerQuarter = 480

var (
	ErrInvalidTimeline = errors.New("invalid timeline")
	ErrBarNotFound     = errors.New("bar not found")
)

// TimelineError wraps deterministic timeline validation failures
type TimelineError struct {
	Kind error
	Msg  string
}

func (e *TimelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *TimelineError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &TimelineError{Kind: ErrInvalidTimeline, Msg: fmt.Sprintf(format, args...)}
}

// TimeSignatureEvent changes the meter starting at Bar (1-based)
type TimeSignatureEvent struct {
	Bar         int `json:"bar" yaml:"bar"`
	Numerator   int `json:"numerator" yaml:"numerator"`
	Denominator int `json:"denominator" yaml:"denominator"`
}

// Section is one block of the song layout
type Section struct {
	Type     string  `json:"type" yaml:"type"`
	StartBar int     `json:"start_bar" yaml:"start_bar"`
	BarCount int     `json:"bar_count" yaml:"bar_count"`
	Energy   float64 `json:"energy" yaml:"energy"`
}

// EndBar returns the last bar number covered by the section
func (s Section) EndBar() int {
	return s.StartBar + s.BarCount - 1
}

// Options tunes bar construction
type Options struct {
	TicksPerQuarter int
	// FillWindowBars is how many bars at the end of each section count as
	// the fill window. Zero disables fill windows.
	FillWindowBars int
}

// DefaultOptions returns the options used when the caller has no preference
func DefaultOptions() Options {
	return Options{
		TicksPerQuarter: DefaultTicksPerQuarter,
		FillWindowBars:  1,
	}
}

// Timeline is the ordered, immutable bar sequence of a song
type Timeline struct {
	bars []Bar
}

// BuildBars converts meter events and a section layout into a Timeline.
// Sections must be contiguous starting at bar 1; the first meter event must
// start at bar 1.
func BuildBars(events []TimeSignatureEvent, sections []Section, opts Options) (*Timeline, error) {
	if opts.TicksPerQuarter <= 0 {
		return nil, invalidf("ticks per quarter must be positive, got %d", opts.TicksPerQuarter)
	}
	if opts.FillWindowBars < 0 {
		return nil, invalidf("fill window must not be negative, got %d", opts.FillWindowBars)
	}
	if len(sections) == 0 {
		return nil, invalidf("at least one section is required")
	}
	if err := validateSections(sections); err != nil {
		return nil, err
	}
	meters, err := normalizeEvents(events)
	if err != nil {
		return nil, err
	}

	last := sections[len(sections)-1]
	total := last.EndBar()
	bars := make([]Bar, 0, total)

	tick := 0
	meterIdx := 0
	sectionIdx := 0
	for n := 1; n <= total; n++ {
		for meterIdx+1 < len(meters) && meters[meterIdx+1].Bar <= n {
			meterIdx++
		}
		for sections[sectionIdx].EndBar() < n {
			sectionIdx++
		}
		m := meters[meterIdx]
		sec := sections[sectionIdx]

		b, err := newBar(n, m.Numerator, m.Denominator, tick, opts.TicksPerQuarter)
		if err != nil {
			return nil, err
		}
		b.Section = sec
		b.SectionIndex = sectionIdx
		b.BarWithinSection = n - sec.StartBar + 1
		b.BarsUntilSectionEnd = sec.EndBar() - n
		b.IsAtSectionBoundary = b.BarWithinSection == 1 || b.BarsUntilSectionEnd == 0
		b.IsFillWindow = b.BarsUntilSectionEnd < opts.FillWindowBars
		b.IsLastBar = n == total

		bars = append(bars, b)
		tick = b.EndTick
	}

	return &Timeline{bars: bars}, nil
}

func validateSections(sections []Section) error {
	next := 1
	for i, s := range sections {
		if s.BarCount <= 0 {
			return invalidf("section %d (%s) has no bars", i, s.Type)
		}
		if s.StartBar != next {
			return invalidf("section %d (%s) starts at bar %d, expected %d", i, s.Type, s.StartBar, next)
		}
		if s.Energy < 0 || s.Energy > 1 {
			return invalidf("section %d (%s) energy %.2f outside [0,1]", i, s.Type, s.Energy)
		}
		next = s.EndBar() + 1
	}
	return nil
}

func normalizeEvents(events []TimeSignatureEvent) ([]TimeSignatureEvent, error) {
	if len(events) == 0 {
		return []TimeSignatureEvent{{Bar: 1, Numerator: 4, Denominator: 4}}, nil
	}
	sorted := make([]TimeSignatureEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Bar < sorted[j].Bar })

	if sorted[0].Bar != 1 {
		return nil, invalidf("first time signature must start at bar 1, got bar %d", sorted[0].Bar)
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Bar == sorted[i-1].Bar {
			return nil, invalidf("duplicate time signature at bar %d", sorted[i].Bar)
		}
	}
	return sorted, nil
}

// Bars returns a copy of the bar sequence
func (t *Timeline) Bars() []Bar {
	out := make([]Bar, len(t.bars))
	copy(out, t.bars)
	return out
}

// Len returns the number of bars
func (t *Timeline) Len() int {
	return len(t.bars)
}

// Bar looks up a bar by its 1-based number
func (t *Timeline) Bar(number int) (Bar, error) {
	if number < 1 || number > len(t.bars) {
		return Bar{}, fmt.Errorf("%w: bar %d (timeline has %d bars)", ErrBarNotFound, number, len(t.bars))
	}
	return t.bars[number-1], nil
}

// Next returns the bar after number, if any
func (t *Timeline) Next(number int) (Bar, bool) {
	if number < 1 || number >= len(t.bars) {
		return Bar{}, false
	}
	return t.bars[number], true
}

// TotalTicks returns the end tick of the last bar
func (t *Timeline) TotalTicks() int {
	if len(t.bars) == 0 {
		return 0
	}
	return t.bars[len(t.bars)-1].EndTick
}
