// Package songfile reads song designs: the meter map, section layout,
// protection layers, groove DSL patterns and chord progression a generator
// works from. Designs come from YAML files or JSON request bodies.
package songfile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/dsl"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/pipeline"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/protection"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/selection"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/timeline"
)

// DefaultEnergy is the energy of a section that does not set one
const DefaultEnergy = 0.5

// ErrInvalidDesign wraps every validation failure of a design
var ErrInvalidDesign = errors.New("invalid song design")

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Design is a complete song design
type Design struct {
	Name string `yaml:"name" json:"name" validate:"required,max=128"`
	// TicksPerQuarter and FillWindowBars override the server defaults
	TicksPerQuarter int  `yaml:"ticks_per_quarter,omitempty" json:"ticks_per_quarter,omitempty" validate:"omitempty,min=24,max=15360"`
	FillWindowBars  *int `yaml:"fill_window_bars,omitempty" json:"fill_window_bars,omitempty" validate:"omitempty,min=0,max=16"`

	Meter      []MeterSpec   `yaml:"meter,omitempty" json:"meter,omitempty" validate:"dive"`
	Sections   []SectionSpec `yaml:"sections" json:"sections" validate:"required,min=1,dive"`
	Protection []LayerSpec   `yaml:"protection,omitempty" json:"protection,omitempty" validate:"dive"`
	// Patterns is groove DSL code
	Patterns string       `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Harmony  *HarmonySpec `yaml:"harmony,omitempty" json:"harmony,omitempty"`

	// Roles restricts generation; empty means every profiled role
	Roles    []string                         `yaml:"roles,omitempty" json:"roles,omitempty"`
	Profiles map[string]selection.RoleProfile `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// MeterSpec changes the time signature from Bar on
type MeterSpec struct {
	Bar         int `yaml:"bar" json:"bar" validate:"min=1"`
	Numerator   int `yaml:"numerator" json:"numerator" validate:"min=1,max=32"`
	Denominator int `yaml:"denominator" json:"denominator" validate:"oneof=1 2 4 8 16 32"`
}

// SectionSpec is one section; sections follow each other from bar 1
type SectionSpec struct {
	Type   string   `yaml:"type" json:"type" validate:"required"`
	Bars   int      `yaml:"bars" json:"bars" validate:"min=1,max=1024"`
	Energy *float64 `yaml:"energy,omitempty" json:"energy,omitempty" validate:"omitempty,min=0,max=1"`
	// Tags are added to the default tags of every bar in the section
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// LayerSpec is a protection layer
type LayerSpec struct {
	Name     string               `yaml:"name" json:"name" validate:"required"`
	Additive bool                 `yaml:"additive,omitempty" json:"additive,omitempty"`
	When     []string             `yaml:"when,omitempty" json:"when,omitempty"`
	Roles    map[string]RoleRules `yaml:"roles" json:"roles" validate:"required,min=1"`
}

// RoleRules lists protected beats of one role
type RoleRules struct {
	MustHit     []float64 `yaml:"must_hit,omitempty" json:"must_hit,omitempty"`
	Protected   []float64 `yaml:"protected,omitempty" json:"protected,omitempty"`
	NeverRemove []float64 `yaml:"never_remove,omitempty" json:"never_remove,omitempty"`
	NeverAdd    []float64 `yaml:"never_add,omitempty" json:"never_add,omitempty"`
}

// HarmonySpec is the chord progression the bass follows
type HarmonySpec struct {
	Register *RegisterSpec `yaml:"register,omitempty" json:"register,omitempty"`
	Chords   []ChordSpec   `yaml:"chords" json:"chords" validate:"required,min=1,dive"`
}

// RegisterSpec bounds the bass register with note names
type RegisterSpec struct {
	Low  string `yaml:"low" json:"low" validate:"required"`
	High string `yaml:"high" json:"high" validate:"required"`
}

// ChordSpec is a chord change; Beat defaults to 1
type ChordSpec struct {
	Bar   int     `yaml:"bar" json:"bar" validate:"min=1"`
	Beat  float64 `yaml:"beat,omitempty" json:"beat,omitempty" validate:"omitempty,min=1"`
	Chord string  `yaml:"chord" json:"chord" validate:"required"`
}

// Load reads and validates a YAML design file
func Load(path string) (*Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read song file: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes and validates a YAML design
func Parse(data []byte) (*Design, error) {
	var d Design
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDesign, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks field constraints and the names and beats they refer to
func (d *Design) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDesign, err)
	}
	for _, r := range d.Roles {
		if _, err := groove.ParseRole(r); err != nil {
			return fmt.Errorf("%w: roles: %v", ErrInvalidDesign, err)
		}
	}
	for r := range d.Profiles {
		if _, err := groove.ParseRole(r); err != nil {
			return fmt.Errorf("%w: profiles: %v", ErrInvalidDesign, err)
		}
	}
	for _, l := range d.Protection {
		for r, rules := range l.Roles {
			if _, err := groove.ParseRole(r); err != nil {
				return fmt.Errorf("%w: layer %s: %v", ErrInvalidDesign, l.Name, err)
			}
			for _, list := range [][]float64{rules.MustHit, rules.Protected, rules.NeverRemove, rules.NeverAdd} {
				for _, b := range list {
					if b < 1 {
						return fmt.Errorf("%w: layer %s: %s beat %v before beat 1", ErrInvalidDesign, l.Name, r, b)
					}
				}
			}
		}
	}
	return nil
}

// Options applies the design's tick and fill window overrides to opts
func (d *Design) Options(opts timeline.Options) timeline.Options {
	if d.TicksPerQuarter > 0 {
		opts.TicksPerQuarter = d.TicksPerQuarter
	}
	if d.FillWindowBars != nil {
		opts.FillWindowBars = *d.FillWindowBars
	}
	return opts
}

// Timeline builds the bar sequence. Design overrides win over opts.
func (d *Design) Timeline(opts timeline.Options) (*timeline.Timeline, error) {
	opts = d.Options(opts)

	events := make([]timeline.TimeSignatureEvent, 0, len(d.Meter))
	for _, m := range d.Meter {
		events = append(events, timeline.TimeSignatureEvent{Bar: m.Bar, Numerator: m.Numerator, Denominator: m.Denominator})
	}

	sections := make([]timeline.Section, 0, len(d.Sections))
	start := 1
	for _, s := range d.Sections {
		energy := DefaultEnergy
		if s.Energy != nil {
			energy = *s.Energy
		}
		sections = append(sections, timeline.Section{
			Type:     strings.ToLower(strings.TrimSpace(s.Type)),
			StartBar: start,
			BarCount: s.Bars,
			Energy:   energy,
		})
		start += s.Bars
	}
	return timeline.BuildBars(events, sections, opts)
}

// Layers converts the protection layers in declared order
func (d *Design) Layers() ([]protection.Layer, error) {
	layers := make([]protection.Layer, 0, len(d.Protection))
	for _, l := range d.Protection {
		roles := make(map[groove.Role]protection.RoleProtectionSet, len(l.Roles))
		for name, rules := range l.Roles {
			role, err := groove.ParseRole(name)
			if err != nil {
				return nil, fmt.Errorf("layer %s: %w", l.Name, err)
			}
			roles[role] = protection.RoleProtectionSet{
				MustHit:     groove.NewBeatSet(rules.MustHit...),
				Protected:   groove.NewBeatSet(rules.Protected...),
				NeverRemove: groove.NewBeatSet(rules.NeverRemove...),
				NeverAdd:    groove.NewBeatSet(rules.NeverAdd...),
			}
		}
		layers = append(layers, protection.Layer{
			Name:               l.Name,
			IsAdditiveOnly:     l.Additive,
			AppliesWhenTagsAll: groove.NewTagSet(l.When...),
			Roles:              roles,
		})
	}
	return layers, nil
}

// Song assembles everything a generator needs: the song and the generator
// options for tags, roles and profiles
func (d *Design) Song(ctx context.Context, opts timeline.Options) (pipeline.Song, []pipeline.Option, error) {
	tl, err := d.Timeline(opts)
	if err != nil {
		return pipeline.Song{}, nil, err
	}
	layers, err := d.Layers()
	if err != nil {
		return pipeline.Song{}, nil, err
	}

	song := pipeline.Song{Name: d.Name, Timeline: tl, Layers: layers}

	if strings.TrimSpace(d.Patterns) != "" {
		patterns, err := dsl.ParsePatterns(ctx, d.Patterns)
		if err != nil {
			return pipeline.Song{}, nil, fmt.Errorf("%w: patterns: %v", ErrInvalidDesign, err)
		}
		song.Patterns = dsl.NewPatternSet(patterns)
	}
	if d.Harmony != nil {
		prog, err := NewProgression(*d.Harmony)
		if err != nil {
			return pipeline.Song{}, nil, fmt.Errorf("%w: harmony: %v", ErrInvalidDesign, err)
		}
		song.Harmony = prog
	}

	var gen []pipeline.Option
	extra := make(map[int][]string)
	for i, s := range d.Sections {
		if len(s.Tags) > 0 {
			extra[i] = s.Tags
		}
	}
	gen = append(gen, pipeline.WithTags(pipeline.DefaultTags{Extra: extra}))

	if len(d.Profiles) > 0 {
		profiles := selection.DefaultProfiles()
		for name, p := range d.Profiles {
			profiles[groove.MustParseRole(name)] = p
		}
		gen = append(gen, pipeline.WithProfiles(profiles))
	}
	if len(d.Roles) > 0 {
		roles := make([]groove.Role, 0, len(d.Roles))
		for _, name := range d.Roles {
			roles = append(roles, groove.MustParseRole(name))
		}
		gen = append(gen, pipeline.WithRoles(roles...))
	}
	return song, gen, nil
}

// Hash identifies the design's content under the timeline options it is
// built with. Equal designs and options hash equally, so the hash plus a
// seed identifies a generated track.
func (d *Design) Hash(opts timeline.Options) (string, error) {
	opts = d.Options(opts)
	data, err := json.Marshal(struct {
		Design          *Design `json:"design"`
		TicksPerQuarter int     `json:"ticks_per_quarter"`
		FillWindowBars  int     `json:"fill_window_bars"`
	}{d, opts.TicksPerQuarter, opts.FillWindowBars})
	if err != nil {
		return "", fmt.Errorf("failed to encode design: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
