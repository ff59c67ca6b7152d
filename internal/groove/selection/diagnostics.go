package selection

// Diagnostics counts what the engine filtered and resolved. Gating never
// fails a bar; it only shows up here and in debug logs.
type Diagnostics struct {
	Candidates         int `json:"candidates"`
	Removals           int `json:"removals"`
	SkippedOperators   int `json:"skipped_operators"`
	GatedAdditions     int `json:"gated_additions"`
	GatedRemovals      int `json:"gated_removals"`
	OutOfBar           int `json:"out_of_bar"`
	Synthesized        int `json:"synthesized"`
	Elections          int `json:"elections"`
	TieBreaks          int `json:"tie_breaks"`
	RemovalsApplied    int `json:"removals_applied"`
	DensityTrimmed     int `json:"density_trimmed"`
	MonophonyDropped   int `json:"monophony_dropped"`
	MonophonyShortened int `json:"monophony_shortened"`
	Committed          int `json:"committed"`
}

// Add accumulates o into d
func (d *Diagnostics) Add(o Diagnostics) {
	d.Candidates += o.Candidates
	d.Removals += o.Removals
	d.SkippedOperators += o.SkippedOperators
	d.GatedAdditions += o.GatedAdditions
	d.GatedRemovals += o.GatedRemovals
	d.OutOfBar += o.OutOfBar
	d.Synthesized += o.Synthesized
	d.Elections += o.Elections
	d.TieBreaks += o.TieBreaks
	d.RemovalsApplied += o.RemovalsApplied
	d.DensityTrimmed += o.DensityTrimmed
	d.MonophonyDropped += o.MonophonyDropped
	d.MonophonyShortened += o.MonophonyShortened
	d.Committed += o.Committed
}
