package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

const songPath = "../../../examples/pop.yaml"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerate_Table(t *testing.T) {
	out, err := run(t, "generate", songPath, "--seed", "42")
	require.NoError(t, err)

	assert.Contains(t, out, "pop-demo")
	assert.Contains(t, out, "seed 42")
	assert.Contains(t, out, "kick")
	assert.Contains(t, out, "chorus")
	assert.Contains(t, out, "3/4", "bars 7 and 8 switch meter")

	again, err := run(t, "generate", songPath, "--seed", "42")
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestGenerate_JSON(t *testing.T) {
	out, err := run(t, "generate", songPath, "--seed", "7", "--format", "json", "--roles", "kick,snare")
	require.NoError(t, err)

	var track pipeline.Track
	require.NoError(t, json.Unmarshal([]byte(out), &track))
	assert.Equal(t, uint64(7), track.Seed)
	require.Len(t, track.Bars, 8)
	for _, bar := range track.Bars {
		assert.True(t, groove.HasBeat(bar.Roles[groove.RoleKick], 1), "bar %d", bar.Bar)
		assert.Empty(t, bar.Roles[groove.RoleBass], "bass was not requested")
	}
}

func TestGenerate_Seeds(t *testing.T) {
	out, err := run(t, "generate", songPath, "--seeds", "3,1,3", "--format", "json")
	require.NoError(t, err)

	var tracks []pipeline.Track
	require.NoError(t, json.Unmarshal([]byte(out), &tracks))
	require.Len(t, tracks, 3)
	assert.Equal(t, []uint64{3, 1, 3}, []uint64{tracks[0].Seed, tracks[1].Seed, tracks[2].Seed})

	a, err := tracks[0].Fingerprint()
	require.NoError(t, err)
	b, err := tracks[2].Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	table, err := run(t, "generate", songPath, "--seeds", "1,2")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(table, "fingerprint"))
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no file", args: []string{"generate"}},
		{name: "missing file", args: []string{"generate", "does-not-exist.yaml"}},
		{name: "bad format", args: []string{"generate", songPath, "--format", "xml"}},
		{name: "bad seed", args: []string{"generate", songPath, "--seeds", "1,x"}},
		{name: "unknown role", args: []string{"generate", songPath, "--roles", "cowbell"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestBars(t *testing.T) {
	out, err := run(t, "bars", songPath)
	require.NoError(t, err)
	assert.Contains(t, out, "section-start")
	assert.Contains(t, out, "last")

	out, err = run(t, "bars", songPath, "--json")
	require.NoError(t, err)
	var bars []timeline.Bar
	require.NoError(t, json.Unmarshal([]byte(out), &bars))
	require.Len(t, bars, 8)
	assert.Equal(t, 3, bars[6].Numerator)
	assert.Equal(t, "chorus", bars[4].Section.Type)
}

func TestFormatBeat(t *testing.T) {
	assert.Equal(t, "1", formatBeat(1))
	assert.Equal(t, "2.5", formatBeat(2.5))
	assert.Equal(t, "4.75", formatBeat(4.75))
}

func TestSetVersionInfo(t *testing.T) {
	root := NewRootCommand()
	SetVersionInfo(root, "1.2.3", "abc", "today")
	assert.Equal(t, "1.2.3 (commit: abc, built: today)", root.Version)
}
