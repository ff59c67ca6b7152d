package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operators"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
	"github.com/Conceptual-Machines/magda-groove/internal/services"
	"github.com/Conceptual-Machines/magda-groove/internal/songfile"
)

var (
	bold   = color.New(color.Bold)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	faint  = color.New(color.Faint)
)

// PrintError prints a command error to stderr
func PrintError(err error) {
	red.Fprintf(os.Stderr, "Error: ")
	fmt.Fprintf(os.Stderr, "%v\n", err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatBeat prints 1, 2.5, 3.25 without trailing zeros
func formatBeat(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

// formatOnset prints the beat plus markers: a pitch for the bass, g for
// ghost notes and * for fill hits
func formatOnset(o groove.Onset) string {
	s := formatBeat(o.Beat)
	if o.Pitch != nil {
		s += ":" + songfile.MIDIToNoteName(*o.Pitch)
	}
	if o.Strength == groove.StrengthGhost {
		s += "g"
	}
	if strings.HasPrefix(o.Articulation, operators.FillArticulationPrefix) {
		s += "*"
	}
	return s
}

func renderTrack(w io.Writer, res *services.Result) error {
	track := res.Track
	fp, err := track.Fingerprint()
	if err != nil {
		return err
	}
	bold.Fprintf(w, "%s", track.Song)
	fmt.Fprintf(w, "  seed %d  fingerprint %s  ", track.Seed, fp[:12])
	faint.Fprintf(w, "(%d bars, %d onsets, %d tie-breaks)\n", len(track.Bars), track.OnsetCount(), track.Diagnostics.TieBreaks)

	fmt.Fprintf(w, "%4s  %-5s  %-10s  %-9s  %s\n", "bar", "meter", "section", "role", "hits")
	for _, bar := range track.Bars {
		renderBar(w, bar)
	}
	return nil
}

func renderBar(w io.Writer, bar pipeline.TrackBar) {
	first := true
	for _, role := range groove.RoleOrder {
		onsets := bar.Roles[role]
		if len(onsets) == 0 {
			continue
		}
		hits := make([]string, 0, len(onsets))
		for _, o := range onsets {
			hits = append(hits, formatOnset(o))
		}
		if first {
			cyan.Fprintf(w, "%4d", bar.Bar)
			fmt.Fprintf(w, "  %-5s  ", fmt.Sprintf("%d/%d", bar.Numerator, bar.Denominator))
			yellow.Fprintf(w, "%-10s", bar.Section)
			first = false
		} else {
			fmt.Fprintf(w, "%4s  %-5s  %-10s", "", "", "")
		}
		fmt.Fprintf(w, "  %-9s  %s\n", role, strings.Join(hits, " "))
	}
	if first {
		cyan.Fprintf(w, "%4d", bar.Bar)
		fmt.Fprintf(w, "  %d/%d    ", bar.Numerator, bar.Denominator)
		faint.Fprintf(w, "%-10s  (empty)\n", bar.Section)
	}
}

func renderBars(w io.Writer, bars []timeline.Bar) {
	fmt.Fprintf(w, "%4s  %-5s  %10s  %-10s  %6s  %s\n", "bar", "meter", "start", "section", "energy", "flags")
	for _, b := range bars {
		var flags []string
		if b.IsSectionStart() {
			flags = append(flags, groove.TagSectionStart)
		}
		if b.IsFillWindow {
			flags = append(flags, groove.TagFill)
		}
		if b.IsLastBar {
			flags = append(flags, "last")
		}
		cyan.Fprintf(w, "%4d", b.BarNumber)
		fmt.Fprintf(w, "  %-5s  %10d  ", fmt.Sprintf("%d/%d", b.Numerator, b.Denominator), b.StartTick)
		yellow.Fprintf(w, "%-10s", b.Section.Type)
		fmt.Fprintf(w, "  %6.2f  %s\n", b.Section.Energy, strings.Join(flags, ","))
	}
}
