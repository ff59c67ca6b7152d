// Package dsl parses the groove DSL into per-role anchor patterns.
//
// The DSL is a list of pattern() calls, one grid per drum and optionally per
// section type:
//
//	pattern(drum=kick, grid="x---x---x---x---"); pattern(drum=snare, grid="----x-------x---")
package dsl

import (
	"context"
	"fmt"
	"strings"

	"github.com/Conceptual-Machines/grammar-school-go/gs"
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
)

// DefaultVelocity is the velocity of an unaccented grid hit
const DefaultVelocity = 100

// Pattern is one parsed pattern() call
type Pattern struct {
	Role     groove.Role `json:"role"`
	Grid     string      `json:"grid"`
	Velocity int         `json:"velocity"`
	// Section restricts the pattern to one section type; empty means any
	Section string `json:"section,omitempty"`
}

// Parser parses groove DSL code using Grammar School.
// A Parser is not safe for concurrent use.
type Parser struct {
	engine   *gs.Engine
	grooves  *grooveDSL
	patterns []Pattern
}

// grooveDSL implements the DSL side-effect methods
type grooveDSL struct {
	parser *Parser
}

// NewParser creates a new groove DSL parser
func NewParser() (*Parser, error) {
	parser := &Parser{
		grooves:  &grooveDSL{},
		patterns: make([]Pattern, 0),
	}
	parser.grooves.parser = parser

	engine, err := gs.NewEngine(Grammar(), parser.grooves, gs.NewLarkParser())
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	parser.engine = engine
	return parser, nil
}

// Parse parses DSL code and returns its patterns in source order
func (p *Parser) Parse(ctx context.Context, code string) ([]Pattern, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("empty DSL code")
	}

	p.patterns = make([]Pattern, 0)

	if err := p.engine.Execute(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to execute DSL: %w", err)
	}

	if len(p.patterns) == 0 {
		return nil, fmt.Errorf("no patterns found in DSL code")
	}

	logger.Debug("Groove DSL parsed", logger.Fields{"patterns": len(p.patterns)})
	return p.patterns, nil
}

// ParsePatterns parses code with a fresh parser
func ParsePatterns(ctx context.Context, code string) ([]Pattern, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, code)
}

// Pattern handles pattern() calls
func (d *grooveDSL) Pattern(args gs.Args) error {
	p := d.parser

	drumName := ""
	if drumValue, ok := args["drum"]; ok && drumValue.Kind == gs.ValueString {
		drumName = drumValue.Str
	}
	if drumName == "" {
		return fmt.Errorf("pattern: missing drum name")
	}
	role, err := groove.ParseRole(drumName)
	if err != nil {
		return fmt.Errorf("pattern: %w", err)
	}
	if !role.IsDrum() {
		return fmt.Errorf("pattern: %s is not a drum", role)
	}

	grid := ""
	if gridValue, ok := args["grid"]; ok && gridValue.Kind == gs.ValueString {
		grid = strings.Trim(gridValue.Str, "\"")
	}
	if grid == "" {
		return fmt.Errorf("pattern: missing grid")
	}
	if err := ValidateGrid(grid); err != nil {
		return fmt.Errorf("pattern: %w", err)
	}

	velocity := DefaultVelocity
	if velValue, ok := args["velocity"]; ok && velValue.Kind == gs.ValueNumber {
		velocity = int(velValue.Num)
	}
	if velocity < 1 || velocity > 127 {
		return fmt.Errorf("pattern: velocity %d outside 1..127", velocity)
	}

	section := ""
	if secValue, ok := args["section"]; ok && secValue.Kind == gs.ValueString {
		section = strings.ToLower(strings.Trim(secValue.Str, "\""))
	}

	p.patterns = append(p.patterns, Pattern{
		Role:     role,
		Grid:     grid,
		Velocity: velocity,
		Section:  section,
	})
	logger.Debug("Groove pattern", logger.Fields{
		"drum":    role,
		"grid":    grid,
		"hits":    CountHits(grid),
		"section": section,
	})

	return nil
}

// ValidateGrid checks that a grid only uses hit, accent, ghost and rest
func ValidateGrid(grid string) error {
	if grid == "" {
		return fmt.Errorf("empty grid")
	}
	for i, c := range grid {
		switch c {
		case 'x', 'X', 'o', '-':
		default:
			return fmt.Errorf("grid %q: unexpected %q at %d", grid, c, i)
		}
	}
	return nil
}

// CountHits counts the number of hits in a grid string
func CountHits(grid string) int {
	count := 0
	for _, c := range grid {
		if c == 'x' || c == 'X' || c == 'o' {
			count++
		}
	}
	return count
}
