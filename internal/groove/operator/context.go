package operator

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/memory"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

// View is what every operator sees of the bar being resolved. The engine
// builds a fresh View per family round; operators must treat it as read-only.
type View struct {
	Bar    timeline.Bar
	Next   *timeline.Bar // following bar, nil on the last bar
	Role   groove.Role
	Tags   groove.TagSet
	Energy float64
	Memory memory.Snapshot
	// FillSeed is shared by every role of the bar so multi-voice fills agree
	FillSeed uint64

	// Working holds the onsets accepted by earlier families for this role
	Working []groove.Candidate
	// Committed holds finalized onsets of roles already resolved in this bar
	Committed map[groove.Role][]groove.Onset
}

// HasWorking reports whether the working set has an onset on beat's slot
func (v View) HasWorking(beat float64) bool {
	k := groove.BeatKey(beat)
	for _, c := range v.Working {
		if c.Key() == k {
			return true
		}
	}
	return false
}

// WorkingAt returns the working onset on beat's slot
func (v View) WorkingAt(beat float64) (groove.Candidate, bool) {
	k := groove.BeatKey(beat)
	for _, c := range v.Working {
		if c.Key() == k {
			return c, true
		}
	}
	return groove.Candidate{}, false
}

// CommittedHas reports whether role was committed with an onset on beat's slot
func (v View) CommittedHas(role groove.Role, beat float64) bool {
	return groove.HasBeat(v.Committed[role], beat)
}

// Context is the closed set of operator inputs. Only the variants in this
// package implement it.
type Context interface {
	View() *View
	sealed()
}

// DrumContext is the input of percussion operators
type DrumContext struct {
	view View
}

// NewDrumContext wraps a view for drum operators
func NewDrumContext(v View) *DrumContext {
	return &DrumContext{view: v}
}

func (c *DrumContext) View() *View { return &c.view }
func (c *DrumContext) sealed()     {}

// Harmony is what the harmony collaborator knows about a position
type Harmony struct {
	Chord string `json:"chord"`
	Root  int    `json:"root"` // MIDI note of the chord root in the bass register
	// Register window the bass may use
	Low  int `json:"low"`
	High int `json:"high"`
}

// HarmonyLookup answers read-only harmony queries by (bar, beat)
type HarmonyLookup interface {
	At(bar int, beat float64) (Harmony, bool)
}

// BassContext is the input of bass operators
type BassContext struct {
	view    View
	Harmony HarmonyLookup
}

// NewBassContext wraps a view and the harmony collaborator for bass operators
func NewBassContext(v View, h HarmonyLookup) *BassContext {
	return &BassContext{view: v, Harmony: h}
}

func (c *BassContext) View() *View { return &c.view }
func (c *BassContext) sealed()     {}

// HarmonyAt queries the harmony collaborator, tolerating a nil lookup
func (c *BassContext) HarmonyAt(bar int, beat float64) (Harmony, bool) {
	if c.Harmony == nil {
		return Harmony{}, false
	}
	return c.Harmony.At(bar, beat)
}
