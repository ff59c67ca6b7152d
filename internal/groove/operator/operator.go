// Package operator defines the pluggable generators of the groove pipeline.
//
// An Operator inspects one bar for one role and proposes onset additions
// (candidates) and removals. Operators are pure with respect to their
// context and seed: calling them twice with the same inputs must yield the
// same output in the same order, and they never write cross-bar memory.
//
// Operators are typed over a sealed Context variant, so a bass operator that
// needs the harmony lookup declares Operator[*BassContext] and can never be
// registered against drum roles by mistake.
package operator

import "github.com/Conceptual-Machines/magda-groove/internal/groove"

// Operator proposes candidates and removals for one bar and role
type Operator[C Context] interface {
	// ID is stable across versions; it feeds candidate ids and seeds
	ID() string
	Family() Family
	// CanApply is a cheap pure pre-filter
	CanApply(ctx C) bool
	GenerateCandidates(ctx C, seed uint64) []groove.Candidate
	GenerateRemovals(ctx C) []groove.RemovalCandidate
}

// Base carries the id and family of an operator. Embed it and implement the
// remaining methods.
type Base struct {
	id     string
	family Family
}

// NewBase builds a Base
func NewBase(id string, family Family) Base {
	return Base{id: id, family: family}
}

func (b Base) ID() string     { return b.id }
func (b Base) Family() Family { return b.family }

// Additive is embedded by operators that never propose removals
type Additive[C Context] struct{}

func (Additive[C]) GenerateRemovals(C) []groove.RemovalCandidate { return nil }

// Subtractive is embedded by operators that only propose removals
type Subtractive[C Context] struct{}

func (Subtractive[C]) GenerateCandidates(C, uint64) []groove.Candidate { return nil }
