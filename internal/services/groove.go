package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/magda-groove/internal/cache"
	"github.com/Conceptual-Machines/magda-groove/internal/database"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
	"github.com/Conceptual-Machines/magda-groove/internal/metrics"
	"github.com/Conceptual-Machines/magda-groove/internal/models"
	"github.com/Conceptual-Machines/magda-groove/internal/songfile"
)

var (
	// ErrNoSeeds is returned for a batch without seeds
	ErrNoSeeds = errors.New("at least one seed is required")
	// ErrTooManySeeds is returned when a batch exceeds the configured limit
	ErrTooManySeeds = errors.New("too many seeds")
	// ErrNoStore is returned for run lookups when persistence is disabled
	ErrNoStore = errors.New("run store is not configured")
)

// TrackCache is the cache the service reads through. Misses are reported
// with an error for which cache.IsMiss is true.
type TrackCache interface {
	Get(ctx context.Context, designHash string, seed uint64) (*pipeline.Track, error)
	Put(ctx context.Context, designHash string, track *pipeline.Track) error
}

// RunStore persists generation runs. Lookups report a missing run with
// database.ErrRunNotFound.
type RunStore interface {
	Save(ctx context.Context, run *models.GenerationRun) error
	Get(ctx context.Context, id string) (*models.GenerationRun, error)
	FindBySeed(ctx context.Context, designHash string, seed uint64) (*models.GenerationRun, error)
	Recent(ctx context.Context, limit int) ([]models.GenerationRun, error)
}

// GrooveService generates tracks from song designs. The cache and store
// are optional.
type GrooveService struct {
	cache    TrackCache
	store    RunStore
	metrics  *metrics.Recorder
	opts     timeline.Options
	maxSeeds int
}

// GrooveOption configures a GrooveService
type GrooveOption func(*GrooveService)

// WithCache reads and writes tracks through c
func WithCache(c TrackCache) GrooveOption {
	return func(s *GrooveService) { s.cache = c }
}

// WithStore persists every generated track to store
func WithStore(store RunStore) GrooveOption {
	return func(s *GrooveService) { s.store = store }
}

// WithMetrics records generation runs to r
func WithMetrics(r *metrics.Recorder) GrooveOption {
	return func(s *GrooveService) { s.metrics = r }
}

// NewGrooveService creates the service. opts are the timeline defaults
// designs can override; maxSeeds bounds a batch.
func NewGrooveService(opts timeline.Options, maxSeeds int, options ...GrooveOption) *GrooveService {
	s := &GrooveService{opts: opts, maxSeeds: maxSeeds}
	for _, o := range options {
		o(s)
	}
	return s
}

// Result is one generated track and where it came from
type Result struct {
	RunID      string
	DesignHash string
	Cached     bool
	Track      *pipeline.Track
}

type prepared struct {
	gen  *pipeline.Generator
	hash string
	song string
}

func (s *GrooveService) prepare(ctx context.Context, d *songfile.Design) (*prepared, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	hash, err := d.Hash(s.opts)
	if err != nil {
		return nil, err
	}
	song, opts, err := d.Song(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	gen, err := pipeline.NewGenerator(song, opts...)
	if err != nil {
		return nil, err
	}
	return &prepared{gen: gen, hash: hash, song: d.Name}, nil
}

// Generate produces the track of d for seed
func (s *GrooveService) Generate(ctx context.Context, d *songfile.Design, seed uint64) (*Result, error) {
	p, err := s.prepare(ctx, d)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, p, seed)
}

// GenerateBatch produces one track per seed, in seed order. Cache hits are
// served first; the remaining seeds run concurrently in the generator.
func (s *GrooveService) GenerateBatch(ctx context.Context, d *songfile.Design, seeds []uint64) ([]*Result, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if s.maxSeeds > 0 && len(seeds) > s.maxSeeds {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), s.maxSeeds)
	}
	p, err := s.prepare(ctx, d)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(seeds))
	var missing []uint64
	var slots []int
	for i, seed := range seeds {
		if r, ok := s.cached(ctx, p, seed); ok {
			results[i] = r
			continue
		}
		missing = append(missing, seed)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	start := time.Now()
	tracks, err := p.gen.GenerateBatch(ctx, missing)
	elapsed := time.Since(start)
	if err != nil {
		s.record(ctx, metrics.Generation{Song: p.song, Duration: elapsed})
		return nil, err
	}
	// each run is charged an even share of the batch wall time
	share := elapsed / time.Duration(len(tracks))
	for i, track := range tracks {
		r, err := s.finish(ctx, p, track, share)
		if err != nil {
			return nil, err
		}
		results[slots[i]] = r
	}
	return results, nil
}

func (s *GrooveService) generate(ctx context.Context, p *prepared, seed uint64) (*Result, error) {
	if r, ok := s.cached(ctx, p, seed); ok {
		return r, nil
	}

	start := time.Now()
	track, err := p.gen.Generate(ctx, seed)
	duration := time.Since(start)
	if err != nil {
		s.record(ctx, metrics.Generation{Song: p.song, Seed: seed, Duration: duration})
		return nil, err
	}
	return s.finish(ctx, p, track, duration)
}

// cached serves a track from the cache. The stored run of the same design
// and seed, if any, supplies the run id.
func (s *GrooveService) cached(ctx context.Context, p *prepared, seed uint64) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	fields := logger.Fields{"song": p.song, "seed": seed, "design_hash": p.hash}
	track, err := s.cache.Get(ctx, p.hash, seed)
	if err != nil {
		if !cache.IsMiss(err) {
			logger.Warn("Track cache read failed", mergeFields(fields, logger.Fields{"error": err.Error()}))
		}
		return nil, false
	}
	s.record(ctx, metrics.Generation{Song: p.song, Seed: seed, Bars: len(track.Bars), Onsets: track.OnsetCount(), Cached: true, Success: true})

	result := &Result{DesignHash: p.hash, Cached: true, Track: track}
	if s.store != nil {
		run, err := s.store.FindBySeed(ctx, p.hash, seed)
		switch {
		case err == nil:
			result.RunID = run.ID
		case !errors.Is(err, database.ErrRunNotFound):
			logger.Warn("Run lookup failed", mergeFields(fields, logger.Fields{"error": err.Error()}))
		}
	}
	return result, true
}

// finish records, caches and stores a freshly generated track
func (s *GrooveService) finish(ctx context.Context, p *prepared, track *pipeline.Track, duration time.Duration) (*Result, error) {
	fields := logger.Fields{"song": p.song, "seed": track.Seed, "design_hash": p.hash}
	s.record(ctx, metrics.Generation{
		Song:      p.song,
		Seed:      track.Seed,
		Bars:      len(track.Bars),
		Onsets:    track.OnsetCount(),
		TieBreaks: track.Diagnostics.TieBreaks,
		Duration:  duration,
		Success:   true,
	})

	result := &Result{DesignHash: p.hash, Track: track}
	if s.cache != nil {
		if err := s.cache.Put(ctx, p.hash, track); err != nil {
			logger.Warn("Track cache write failed", mergeFields(fields, logger.Fields{"error": err.Error()}))
		}
	}
	if s.store != nil {
		run, err := models.NewGenerationRun(p.hash, track, duration)
		if err != nil {
			return nil, err
		}
		if err := s.store.Save(ctx, run); err != nil {
			logger.Error("Failed to persist generation run", err, fields)
		} else {
			result.RunID = run.ID
		}
	}
	return result, nil
}

func (s *GrooveService) record(ctx context.Context, g metrics.Generation) {
	if s.metrics != nil {
		s.metrics.RecordGeneration(ctx, g)
	}
}

// Bars previews the bar sequence of d
func (s *GrooveService) Bars(d *songfile.Design) ([]timeline.Bar, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	tl, err := d.Timeline(s.opts)
	if err != nil {
		return nil, err
	}
	return tl.Bars(), nil
}

// Run loads a stored run and its track
func (s *GrooveService) Run(ctx context.Context, id string) (*models.GenerationRun, *pipeline.Track, error) {
	if s.store == nil {
		return nil, nil, ErrNoStore
	}
	run, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	track, err := run.DecodeTrack()
	if err != nil {
		return nil, nil, err
	}
	return run, track, nil
}

// Runs lists the newest stored runs without their tracks
func (s *GrooveService) Runs(ctx context.Context, limit int) ([]models.GenerationRun, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Recent(ctx, limit)
}

func mergeFields(a, b logger.Fields) logger.Fields {
	out := make(logger.Fields, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
