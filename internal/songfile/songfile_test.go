package songfile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

func TestNoteNameToMIDI(t *testing.T) {
	tests := []struct {
		name     string
		expected int
		wantErr  bool
	}{
		{"C4", 60, false},
		{"E1", 28, false},
		{"E3", 52, false},
		{"F#3", 54, false},
		{"Bb2", 46, false},
		{"a0", 21, false},
		{"C-1", 0, false},
		{"G9", 127, false},
		{"G#9", 0, true},
		{"H2", 0, true},
		{"C", 0, true},
		{"Cx", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NoteNameToMIDI(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMIDIToNoteName(t *testing.T) {
	assert.Equal(t, "C4", MIDIToNoteName(60))
	assert.Equal(t, "E1", MIDIToNoteName(28))
	assert.Equal(t, "A#2", MIDIToNoteName(46))
	assert.Equal(t, "C-1", MIDIToNoteName(0))
	assert.Equal(t, "?128", MIDIToNoteName(128))

	for n := 0; n <= 127; n++ {
		back, err := NoteNameToMIDI(MIDIToNoteName(n))
		require.NoError(t, err)
		assert.Equal(t, n, back)
	}
}

func TestChordRoot(t *testing.T) {
	tests := []struct {
		chord   string
		pc      int
		wantErr bool
	}{
		{"C", 0, false},
		{"Am7", 9, false},
		{"F#m7b5", 6, false},
		{"Bb", 10, false},
		{"Ebmaj7", 3, false},
		{"C/G", 7, false},
		{"Bb/D", 2, false},
		{"am", 0, true},
		{"", 0, true},
		{"C/", 0, true},
		{"C/Gx", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.chord, func(t *testing.T) {
			pc, err := ChordRoot(tt.chord)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pc, pc)
		})
	}
}

func TestProgression_At(t *testing.T) {
	prog, err := NewProgression(HarmonySpec{Chords: []ChordSpec{
		{Bar: 3, Beat: 3, Chord: "G"},
		{Bar: 1, Chord: "Am"},
		{Bar: 3, Chord: "C/G"},
		{Bar: 2, Chord: "F"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 4, prog.Len())

	tests := []struct {
		bar   int
		beat  float64
		chord string
		root  int
	}{
		{1, 1, "Am", 33},
		{1, 4.5, "Am", 33},
		{2, 1, "F", 29},
		{3, 2.5, "C/G", 31},
		{3, 3, "G", 31},
		{9, 1, "G", 31},
	}
	for _, tt := range tests {
		h, ok := prog.At(tt.bar, tt.beat)
		require.True(t, ok, "bar %d beat %v", tt.bar, tt.beat)
		assert.Equal(t, tt.chord, h.Chord)
		assert.Equal(t, tt.root, h.Root, "bar %d beat %v", tt.bar, tt.beat)
		assert.Equal(t, 28, h.Low)
		assert.Equal(t, 52, h.High)
	}
}

func TestNewProgression_Errors(t *testing.T) {
	_, err := NewProgression(HarmonySpec{Chords: []ChordSpec{{Bar: 1, Chord: "Q"}}})
	assert.Error(t, err)

	_, err = NewProgression(HarmonySpec{
		Register: &RegisterSpec{Low: "E2", High: "C3"},
		Chords:   []ChordSpec{{Bar: 1, Chord: "C"}},
	})
	assert.Error(t, err, "register narrower than an octave")

	prog, err := NewProgression(HarmonySpec{Chords: []ChordSpec{{Bar: 2, Chord: "C"}}})
	require.NoError(t, err)
	_, ok := prog.At(1, 1)
	assert.False(t, ok, "no chord before the first change")
}

func TestLoad(t *testing.T) {
	d, err := Load("testdata/pop.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pop-demo", d.Name)
	assert.Len(t, d.Sections, 2)
	require.NotNil(t, d.FillWindowBars)
	assert.Equal(t, 1, *d.FillWindowBars)

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "name: [unclosed"},
		{name: "no name", yaml: "sections: [{type: verse, bars: 4}]"},
		{name: "no sections", yaml: "name: x"},
		{name: "zero bars", yaml: "name: x\nsections: [{type: verse, bars: 0}]"},
		{name: "energy out of range", yaml: "name: x\nsections: [{type: verse, bars: 4, energy: 1.5}]"},
		{name: "bad denominator", yaml: "name: x\nmeter: [{bar: 1, numerator: 4, denominator: 3}]\nsections: [{type: verse, bars: 4}]"},
		{name: "unknown role", yaml: "name: x\nroles: [cowbell]\nsections: [{type: verse, bars: 4}]"},
		{name: "unknown layer role", yaml: "name: x\nsections: [{type: verse, bars: 4}]\nprotection: [{name: l, roles: {cowbell: {must_hit: [1]}}}]"},
		{name: "beat before bar", yaml: "name: x\nsections: [{type: verse, bars: 4}]\nprotection: [{name: l, roles: {kick: {must_hit: [0.5]}}}]"},
		{name: "empty chord list", yaml: "name: x\nsections: [{type: verse, bars: 4}]\nharmony: {chords: []}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.True(t, errors.Is(err, ErrInvalidDesign), "got %v", err)
		})
	}
}

func TestDesign_Timeline(t *testing.T) {
	d, err := Load("testdata/pop.yaml")
	require.NoError(t, err)

	opts := timeline.Options{TicksPerQuarter: 960, FillWindowBars: 2}
	tl, err := d.Timeline(opts)
	require.NoError(t, err)
	assert.Equal(t, 8, tl.Len())

	first, err := tl.Bar(1)
	require.NoError(t, err)
	assert.Equal(t, 1920, first.TicksPerMeasure, "design ticks win over options")
	assert.Equal(t, "verse", first.Section.Type)
	assert.Equal(t, 0.5, first.Section.Energy)

	chorus, err := tl.Bar(5)
	require.NoError(t, err)
	assert.Equal(t, "chorus", chorus.Section.Type)
	assert.Equal(t, 5, chorus.Section.StartBar)

	waltz, err := tl.Bar(7)
	require.NoError(t, err)
	assert.Equal(t, 3, waltz.Numerator)
	assert.False(t, waltz.IsFillWindow, "design fill window of 1 wins over options")

	noEnergy := &Design{Name: "x", Sections: []SectionSpec{{Type: "intro", Bars: 2}}}
	tl, err = noEnergy.Timeline(timeline.DefaultOptions())
	require.NoError(t, err)
	b, _ := tl.Bar(2)
	assert.Equal(t, DefaultEnergy, b.Section.Energy)
}

func TestDesign_Song(t *testing.T) {
	d, err := Load("testdata/pop.yaml")
	require.NoError(t, err)

	song, opts, err := d.Song(context.Background(), timeline.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "pop-demo", song.Name)
	require.Len(t, song.Layers, 2)
	assert.True(t, song.Layers[1].IsAdditiveOnly)
	assert.True(t, song.Layers[1].AppliesWhenTagsAll.Has("chorus"))
	assert.True(t, song.Patterns.Has("verse", groove.RoleKick))
	require.NotNil(t, song.Harmony)

	g, err := pipeline.NewGenerator(song, opts...)
	require.NoError(t, err)
	track, err := g.Generate(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, track.Bars, 8)

	assert.Contains(t, track.Bars[4].Tags, "big", "section tags reach the chorus")
	assert.NotContains(t, track.Bars[0].Tags, "big")
	bass := 0
	for _, bar := range track.Bars {
		assert.True(t, groove.HasBeat(bar.Roles[groove.RoleKick], 1), "bar %d", bar.Bar)
		if bar.Section == "chorus" {
			assert.True(t, groove.HasBeat(bar.Roles[groove.RoleSnare], 1.5), "bar %d", bar.Bar)
		}
		bass += len(bar.Roles[groove.RoleBass])
	}
	assert.Positive(t, bass, "the progression drives the bass")
}

func TestDesign_SongRoles(t *testing.T) {
	d := &Design{
		Name:     "x",
		Sections: []SectionSpec{{Type: "verse", Bars: 2}},
		Roles:    []string{"Kick", "snare"},
	}
	require.NoError(t, d.Validate())

	song, opts, err := d.Song(context.Background(), timeline.DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, song.Patterns)
	assert.Nil(t, song.Harmony)

	g, err := pipeline.NewGenerator(song, opts...)
	require.NoError(t, err)
	assert.Equal(t, []groove.Role{groove.RoleKick, groove.RoleSnare}, g.Roles())

	bad := &Design{Name: "x", Sections: []SectionSpec{{Type: "verse", Bars: 2}}, Patterns: "kick x---"}
	_, _, err = bad.Song(context.Background(), timeline.DefaultOptions())
	assert.True(t, errors.Is(err, ErrInvalidDesign))
}

func TestDesign_Hash(t *testing.T) {
	a, err := Load("testdata/pop.yaml")
	require.NoError(t, err)
	b, err := Load("testdata/pop.yaml")
	require.NoError(t, err)

	opts := timeline.DefaultOptions()
	ha, err := a.Hash(opts)
	require.NoError(t, err)
	hb, err := b.Hash(opts)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	// the file overrides ticks and fill window, so server defaults do not matter
	hc, err := a.Hash(timeline.Options{TicksPerQuarter: 960, FillWindowBars: 2})
	require.NoError(t, err)
	assert.Equal(t, ha, hc)

	b.Name = "other"
	hb, err = b.Hash(opts)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)

	a.TicksPerQuarter = 0
	a.FillWindowBars = nil
	h480, err := a.Hash(timeline.Options{TicksPerQuarter: 480, FillWindowBars: 1})
	require.NoError(t, err)
	h960, err := a.Hash(timeline.Options{TicksPerQuarter: 960, FillWindowBars: 1})
	require.NoError(t, err)
	noFill, err := a.Hash(timeline.Options{TicksPerQuarter: 480})
	require.NoError(t, err)
	assert.NotEqual(t, h480, h960)
	assert.NotEqual(t, h480, noFill)
}
