// Package memory holds the small cross-bar state operators consult for
// continuity and anti-repetition.
package memory

import "github.com/Conceptual-Machines/magda-groove/internal/groove"

// RecentFillShapes is how many fill shapes are remembered for anti-repetition
const RecentFillShapes = 4

// Hit records where a role last played
type Hit struct {
	Bar          int     `json:"bar"`
	Beat         float64 `json:"beat"`
	Articulation string  `json:"articulation,omitempty"`
}

// DrummerMemory is the mutable cross-bar record of one generation run.
// Only the selection engine writes to it, after a bar's role is committed.
type DrummerMemory struct {
	lastHit    map[groove.Role]Hit
	fillShapes []string
	lastFillID string
	fillBar    int
	lastBar    int
}

// New returns an empty memory
func New() *DrummerMemory {
	return &DrummerMemory{lastHit: make(map[groove.Role]Hit)}
}

// Reset clears all state; call between independent songs
func (m *DrummerMemory) Reset() {
	m.lastHit = make(map[groove.Role]Hit)
	m.fillShapes = nil
	m.lastFillID = ""
	m.fillBar = 0
	m.lastBar = 0
}

// Commit records the finalized onsets of one role in one bar
func (m *DrummerMemory) Commit(bar int, role groove.Role, onsets []groove.Onset) {
	if bar > m.lastBar {
		m.lastBar = bar
	}
	if len(onsets) == 0 {
		return
	}

	last := onsets[0]
	for _, o := range onsets[1:] {
		if groove.BeatKey(o.Beat) > groove.BeatKey(last.Beat) {
			last = o
		}
	}
	m.lastHit[role] = Hit{Bar: bar, Beat: last.Beat, Articulation: last.Articulation}

	if shape, ok := fillShapeOf(onsets); ok {
		m.RecordFill(bar, shape)
	}
}

// RecordFill pushes a fill shape into the recent-shapes ring. A fill spread
// over several roles of the same bar is recorded once.
func (m *DrummerMemory) RecordFill(bar int, shape string) {
	if shape == "" || (bar == m.fillBar && shape == m.lastFillID) {
		return
	}
	m.lastFillID = shape
	m.fillBar = bar
	m.fillShapes = append(m.fillShapes, shape)
	if len(m.fillShapes) > RecentFillShapes {
		m.fillShapes = m.fillShapes[len(m.fillShapes)-RecentFillShapes:]
	}
}

// Snapshot returns a read-only copy handed to operators
func (m *DrummerMemory) Snapshot() Snapshot {
	hits := make(map[groove.Role]Hit, len(m.lastHit))
	for r, h := range m.lastHit {
		hits[r] = h
	}
	shapes := make([]string, len(m.fillShapes))
	copy(shapes, m.fillShapes)
	return Snapshot{
		lastHit:    hits,
		fillShapes: shapes,
		lastFillID: m.lastFillID,
		lastBar:    m.lastBar,
	}
}

// LastKickBeat returns the beat of the last committed kick
func (m *DrummerMemory) LastKickBeat() (float64, bool) {
	h, ok := m.lastHit[groove.RoleKick]
	return h.Beat, ok
}

// LastSnareBeat returns the beat of the last committed snare
func (m *DrummerMemory) LastSnareBeat() (float64, bool) {
	h, ok := m.lastHit[groove.RoleSnare]
	return h.Beat, ok
}

// LastFillShape returns the id of the most recent fill
func (m *DrummerMemory) LastFillShape() string {
	return m.lastFillID
}

// Snapshot is an immutable view of DrummerMemory at the start of a bar
type Snapshot struct {
	lastHit    map[groove.Role]Hit
	fillShapes []string
	lastFillID string
	lastBar    int
}

// LastHit returns where role last played
func (s Snapshot) LastHit(role groove.Role) (Hit, bool) {
	h, ok := s.lastHit[role]
	return h, ok
}

// RecentFills returns the remembered fill shapes, oldest first
func (s Snapshot) RecentFills() []string {
	out := make([]string, len(s.fillShapes))
	copy(out, s.fillShapes)
	return out
}

// UsedRecently reports whether shape is among the remembered fills
func (s Snapshot) UsedRecently(shape string) bool {
	for _, f := range s.fillShapes {
		if f == shape {
			return true
		}
	}
	return false
}

// LastFillShape returns the id of the most recent fill
func (s Snapshot) LastFillShape() string {
	return s.lastFillID
}

// LastBar returns the highest bar committed so far
func (s Snapshot) LastBar() int {
	return s.lastBar
}

// fill onsets carry articulation "fill:<shape>"
func fillShapeOf(onsets []groove.Onset) (string, bool) {
	const prefix = "fill:"
	for _, o := range onsets {
		if len(o.Articulation) > len(prefix) && o.Articulation[:len(prefix)] == prefix {
			return o.Articulation[len(prefix):], true
		}
	}
	return "", false
}
