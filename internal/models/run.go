package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
)

// GenerationRun is a stored generation result
type GenerationRun struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Song       string `gorm:"index" json:"song"`
	DesignHash string `gorm:"type:varchar(64);not null;index:idx_design_seed,priority:1" json:"design_hash"`
	// Seed is kept as decimal text; seeds use the full uint64 range
	Seed        string `gorm:"type:varchar(20);not null;index:idx_design_seed,priority:2" json:"seed"`
	Bars        int    `json:"bars"`
	Onsets      int    `json:"onsets"`
	Fingerprint string `gorm:"type:varchar(64)" json:"fingerprint"`
	DurationMs  int64  `json:"duration_ms"`
	Track       string `gorm:"type:text" json:"-"`
}

// SeedValue parses the stored seed
func (r *GenerationRun) SeedValue() (uint64, error) {
	return strconv.ParseUint(r.Seed, 10, 64)
}

// DecodeTrack decodes the stored track
func (r *GenerationRun) DecodeTrack() (*pipeline.Track, error) {
	var track pipeline.Track
	if err := json.Unmarshal([]byte(r.Track), &track); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", r.ID, err)
	}
	return &track, nil
}

// NewGenerationRun describes a finished track for storage. The id is left
// for the store to assign.
func NewGenerationRun(designHash string, track *pipeline.Track, duration time.Duration) (*GenerationRun, error) {
	data, err := json.Marshal(track)
	if err != nil {
		return nil, fmt.Errorf("failed to encode track: %w", err)
	}
	fp, err := track.Fingerprint()
	if err != nil {
		return nil, err
	}
	return &GenerationRun{
		Song:        track.Song,
		DesignHash:  designHash,
		Seed:        strconv.FormatUint(track.Seed, 10),
		Bars:        len(track.Bars),
		Onsets:      track.OnsetCount(),
		Fingerprint: fp,
		DurationMs:  duration.Milliseconds(),
		Track:       string(data),
	}, nil
}
