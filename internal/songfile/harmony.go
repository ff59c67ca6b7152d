package songfile

import (
	"fmt"
	"sort"

	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
)

// chordChange is one resolved chord of a progression
type chordChange struct {
	bar   int
	beat  float64
	chord string
	root  int
}

// Progression answers harmony queries from a list of chord changes. A chord
// holds until the next change.
type Progression struct {
	changes []chordChange
	low     int
	high    int
}

// NewProgression resolves chord changes into a harmony lookup for a bass
// register
func NewProgression(h HarmonySpec) (*Progression, error) {
	lowName, highName := DefaultRegisterLow, DefaultRegisterHigh
	if h.Register != nil {
		lowName, highName = h.Register.Low, h.Register.High
	}
	low, err := NoteNameToMIDI(lowName)
	if err != nil {
		return nil, fmt.Errorf("register low: %w", err)
	}
	high, err := NoteNameToMIDI(highName)
	if err != nil {
		return nil, fmt.Errorf("register high: %w", err)
	}
	if high-low < 11 {
		return nil, fmt.Errorf("register %s..%s is narrower than an octave", lowName, highName)
	}

	p := &Progression{low: low, high: high}
	for i, c := range h.Chords {
		pc, err := ChordRoot(c.Chord)
		if err != nil {
			return nil, fmt.Errorf("chord %d: %w", i+1, err)
		}
		root, _ := bassPitch(pc, low, high)
		beat := c.Beat
		if beat == 0 {
			beat = 1
		}
		p.changes = append(p.changes, chordChange{bar: c.Bar, beat: beat, chord: c.Chord, root: root})
	}
	sort.SliceStable(p.changes, func(i, j int) bool {
		a, b := p.changes[i], p.changes[j]
		if a.bar != b.bar {
			return a.bar < b.bar
		}
		return a.beat < b.beat
	})
	return p, nil
}

// At returns the chord sounding at (bar, beat)
func (p *Progression) At(bar int, beat float64) (operator.Harmony, bool) {
	i := sort.Search(len(p.changes), func(i int) bool {
		c := p.changes[i]
		return c.bar > bar || (c.bar == bar && c.beat > beat)
	})
	if i == 0 {
		return operator.Harmony{}, false
	}
	c := p.changes[i-1]
	return operator.Harmony{Chord: c.chord, Root: c.root, Low: p.low, High: p.high}, true
}

// Len returns the number of chord changes
func (p *Progression) Len() int {
	return len(p.changes)
}
