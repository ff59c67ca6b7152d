// Package pipeline runs whole-song generation: it walks the bar sequence in
// order, derives each bar's tags and protection policy, and lets the
// selection engine resolve every role.
//
// All mutable state of a run lives in a GenerationContext. A Generator is
// read-only once built, so one Generator can serve concurrent runs as long
// as each run has its own context.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/dsl"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/memory"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operators"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/protection"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/rng"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/selection"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
)

// ErrNoTimeline is returned when a song has no bars to generate
var ErrNoTimeline = errors.New("song has no timeline")

// Song is the read-only design a generator works from
type Song struct {
	Name     string
	Timeline *timeline.Timeline
	Layers   []protection.Layer
	// Patterns drive the grid anchor; nil leaves the built-in anchors
	Patterns *dsl.PatternSet
	// Harmony feeds the bass operators; nil silences the bass
	Harmony operator.HarmonyLookup
}

// GenerationContext owns the mutable state of one run
type GenerationContext struct {
	RNG      *rng.Table
	Memory   *memory.DrummerMemory
	Policies *protection.Cache
}

// NewGenerationContext creates a fresh context for one run
func NewGenerationContext(seed uint64, layers []protection.Layer) *GenerationContext {
	return &GenerationContext{
		RNG:      rng.NewSeeded(seed),
		Memory:   memory.New(),
		Policies: protection.NewCache(layers),
	}
}

// TrackBar is the finalized output of one bar
type TrackBar struct {
	Bar         int                            `json:"bar"`
	Numerator   int                            `json:"numerator"`
	Denominator int                            `json:"denominator"`
	StartTick   int                            `json:"start_tick"`
	Section     string                         `json:"section"`
	Tags        []string                       `json:"tags"`
	Roles       map[groove.Role][]groove.Onset `json:"roles"`
}

// Track is the result of one generation run
type Track struct {
	Song        string                `json:"song,omitempty"`
	Seed        uint64                `json:"seed"`
	Bars        []TrackBar            `json:"bars"`
	Diagnostics selection.Diagnostics `json:"diagnostics"`
}

// OnsetCount returns the number of onsets across all bars and roles
func (t *Track) OnsetCount() int {
	n := 0
	for _, b := range t.Bars {
		for _, onsets := range b.Roles {
			n += len(onsets)
		}
	}
	return n
}

// Onsets returns the onsets of role in bar, or nil
func (t *Track) Onsets(bar int, role groove.Role) []groove.Onset {
	if bar < 1 || bar > len(t.Bars) {
		return nil
	}
	return t.Bars[bar-1].Roles[role]
}

// Fingerprint hashes the bars of the track. Two runs with the same design
// and seed always share a fingerprint.
func (t *Track) Fingerprint() (string, error) {
	data, err := json.Marshal(t.Bars)
	if err != nil {
		return "", fmt.Errorf("failed to encode track: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Generator turns a Song into Tracks
type Generator struct {
	song     Song
	source   operator.Source
	profiles selection.Profiles
	tags     TagProvider
	roles    []groove.Role
	engine   *selection.Engine
}

// Option configures a Generator
type Option func(*Generator)

// WithSource replaces the built-in operator catalogue
func WithSource(src operator.Source) Option {
	return func(g *Generator) { g.source = src }
}

// WithProfiles replaces the default role profiles
func WithProfiles(p selection.Profiles) Option {
	return func(g *Generator) { g.profiles = p }
}

// WithTags replaces the default tag provider
func WithTags(tp TagProvider) Option {
	return func(g *Generator) { g.tags = tp }
}

// WithRoles restricts generation to the given roles
func WithRoles(roles ...groove.Role) Option {
	return func(g *Generator) { g.roles = groove.SortRoles(roles) }
}

// NewGenerator builds a generator for song
func NewGenerator(song Song, opts ...Option) (*Generator, error) {
	if song.Timeline == nil || song.Timeline.Len() == 0 {
		return nil, ErrNoTimeline
	}
	g := &Generator{song: song}
	for _, opt := range opts {
		opt(g)
	}
	if g.source == nil {
		g.source = operators.Default(song.Patterns, song.Harmony)
	}
	if g.profiles == nil {
		g.profiles = selection.DefaultProfiles()
	}
	if g.tags == nil {
		g.tags = DefaultTags{}
	}
	if len(g.roles) == 0 {
		g.roles = g.profiles.Roles()
	}
	g.engine = selection.NewEngine(g.source, g.profiles)
	return g, nil
}

// Roles returns the roles the generator resolves, in order
func (g *Generator) Roles() []groove.Role {
	out := make([]groove.Role, len(g.roles))
	copy(out, g.roles)
	return out
}

// Generate runs the song once with a fresh context seeded by seed
func (g *Generator) Generate(ctx context.Context, seed uint64) (*Track, error) {
	start := time.Now()
	track, err := g.Run(ctx, NewGenerationContext(seed, g.song.Layers))
	if err != nil {
		return nil, err
	}
	logger.LogGenerationRun(ctx, seed, len(track.Bars), track.OnsetCount(), time.Since(start), logger.Fields{
		"song":       g.song.Name,
		"tie_breaks": track.Diagnostics.TieBreaks,
	})
	return track, nil
}

// Run walks every bar in order with gc. The context is checked between
// bars; a cancelled run returns no track.
func (g *Generator) Run(ctx context.Context, gc *GenerationContext) (*Track, error) {
	bars := g.song.Timeline.Bars()
	track := &Track{
		Song: g.song.Name,
		Seed: gc.RNG.MasterSeed(),
		Bars: make([]TrackBar, 0, len(bars)),
	}

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation abandoned before bar %d: %w", bar.BarNumber, err)
		}

		var next *timeline.Bar
		if i+1 < len(bars) {
			n := bars[i+1]
			next = &n
		}
		tags := g.tags.Tags(bar)
		in := selection.BarInput{
			Bar:    bar,
			Next:   next,
			Tags:   tags,
			Policy: gc.Policies.For(tags),
		}
		roles := g.engine.ResolveBar(in, g.roles, gc.RNG, gc.Memory, &track.Diagnostics)

		track.Bars = append(track.Bars, TrackBar{
			Bar:         bar.BarNumber,
			Numerator:   bar.Numerator,
			Denominator: bar.Denominator,
			StartTick:   bar.StartTick,
			Section:     bar.Section.Type,
			Tags:        tags.Slice(),
			Roles:       roles,
		})
	}
	return track, nil
}

// GenerateBatch runs the song once per seed concurrently. Each run gets its
// own context; results keep the order of seeds.
func (g *Generator) GenerateBatch(ctx context.Context, seeds []uint64) ([]*Track, error) {
	tracks := make([]*Track, len(seeds))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, seed := range seeds {
		eg.Go(func() error {
			t, err := g.Generate(egCtx, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			tracks[i] = t
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return tracks, nil
}
