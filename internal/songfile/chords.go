package songfile

import (
	"fmt"
	"strings"
)

// Bass register defaults: E1 to E3
const (
	DefaultRegisterLow  = "E1"
	DefaultRegisterHigh = "E3"
)

var noteOffsets = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDIToNoteName is the inverse of NoteNameToMIDI, spelling with sharps
func MIDIToNoteName(note int) string {
	if note < 0 || note > 127 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", sharpNames[note%12], note/12-1)
}

// NoteNameToMIDI converts a note name like "E1", "C4", "F#3", "Bb2" to MIDI note number
// Format: <note><accidental?><octave> where:
//   - note: A-G (case insensitive)
//   - accidental: # (sharp) or b (flat), optional
//   - octave: -1 to 9 (C4 = 60 = middle C)
func NoteNameToMIDI(noteName string) (int, error) {
	if len(noteName) < 2 {
		return 0, fmt.Errorf("note name too short: %s", noteName)
	}

	semitone, idx, err := pitchClass(noteName)
	if err != nil {
		return 0, err
	}

	// Parse octave (can be negative like -1)
	if idx >= len(noteName) {
		return 0, fmt.Errorf("missing octave in note name: %s", noteName)
	}
	var octave int
	if _, err := fmt.Sscanf(noteName[idx:], "%d", &octave); err != nil {
		return 0, fmt.Errorf("invalid octave in note name %s: %w", noteName, err)
	}

	// C-1 = 0, C0 = 12, C4 = 60
	midiNote := (octave+1)*12 + semitone
	if midiNote < 0 || midiNote > 127 {
		return 0, fmt.Errorf("note %s outside the MIDI range", noteName)
	}
	return midiNote, nil
}

// pitchClass reads the letter and optional accidental at the start of s and
// returns the semitone offset from C plus the index after them
func pitchClass(s string) (int, int, error) {
	if s == "" {
		return 0, 0, fmt.Errorf("empty note name")
	}
	letter := strings.ToUpper(s[:1])
	semitone, ok := noteOffsets[letter]
	if !ok {
		return 0, 0, fmt.Errorf("invalid note letter: %s", letter)
	}

	idx := 1
	if idx < len(s) {
		switch s[idx] {
		case '#':
			semitone++
			idx++
		case 'b':
			semitone--
			idx++
		}
	}
	return (semitone + 12) % 12, idx, nil
}

// ChordRoot returns the pitch class (0 = C) the bass should play for a chord
// symbol. Slash chords ("C/G") return the slash note.
// Supports: C, Em, Am7, Cmaj7, F#m7b5, Bb/D, etc.
func ChordRoot(chordSymbol string) (int, error) {
	chord := strings.TrimSpace(chordSymbol)
	if chord == "" {
		return 0, fmt.Errorf("empty chord symbol")
	}
	if i := strings.Index(chord, "/"); i >= 0 {
		bass := strings.TrimSpace(chord[i+1:])
		pc, n, err := pitchClass(bass)
		if err != nil {
			return 0, fmt.Errorf("invalid bass note in %s: %w", chordSymbol, err)
		}
		if n != len(bass) {
			return 0, fmt.Errorf("invalid bass note in %s", chordSymbol)
		}
		return pc, nil
	}

	// upper-case root letter only; "b" after it is a flat
	if chord[0] < 'A' || chord[0] > 'G' {
		return 0, fmt.Errorf("invalid chord root: %s", chordSymbol)
	}
	pc, _, err := pitchClass(chord)
	if err != nil {
		return 0, fmt.Errorf("invalid chord root: %w", err)
	}
	return pc, nil
}

// bassPitch places a pitch class at its lowest MIDI note inside [low, high]
func bassPitch(pc, low, high int) (int, bool) {
	for n := low; n <= high; n++ {
		if n%12 == pc {
			return n, true
		}
	}
	return 0, false
}
