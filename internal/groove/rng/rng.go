// Package rng provides the deterministic random streams of a generation run.
//
// A Table holds one independently seeded stream per Purpose. All streams are
// derived from a single master seed by drawing from a master generator in
// the order Purposes are enumerated, so that adding or removing draws for one
// purpose never shifts the sequence of another. The enumeration order is part
// of the reproducibility contract: reordering it changes every stream.
//
// A Table is owned by exactly one generation run and is not safe for
// concurrent use.
package rng

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	ErrNotInitialized     = errors.New("rng: table used before Initialize")
	ErrAlreadyInitialized = errors.New("rng: table already initialized")
	ErrInvalidRange       = errors.New("rng: invalid range")
)

// Purpose names one category of random decision
type Purpose int

// Purposes, in seeding order. Append new purposes at the end only.
const (
	TieBreak Purpose = iota
	OperatorSeed
	VelocityHumanize
	TimingHumanize
	FillShape
	purposeCount
)

var purposeNames = [...]string{"tie-break", "operator-seed", "velocity-humanize", "timing-humanize", "fill-shape"}

func (p Purpose) String() string {
	if p >= 0 && p < purposeCount {
		return purposeNames[p]
	}
	return fmt.Sprintf("purpose(%d)", int(p))
}

// Purposes lists every purpose in seeding order
func Purposes() []Purpose {
	out := make([]Purpose, 0, purposeCount)
	for p := Purpose(0); p < purposeCount; p++ {
		out = append(out, p)
	}
	return out
}

type stream struct {
	gen  *rand.Rand
	salt uint64
}

// Table holds the per-purpose streams of one run
type Table struct {
	masterSeed  uint64
	initialized bool
	streams     [purposeCount]stream
}

// New returns an uninitialized table
func New() *Table {
	return &Table{}
}

// NewSeeded returns a table initialized with masterSeed
func NewSeeded(masterSeed uint64) *Table {
	t := New()
	t.Initialize(masterSeed)
	return t
}

// Initialize derives every purpose stream from masterSeed. It must be called
// exactly once; a second call panics with ErrAlreadyInitialized.
func (t *Table) Initialize(masterSeed uint64) {
	if t.initialized {
		panic(ErrAlreadyInitialized)
	}
	master := rand.New(rand.NewPCG(masterSeed, masterSeed^0x9e3779b97f4a7c15))
	for p := Purpose(0); p < purposeCount; p++ {
		s1 := master.Uint64()
		s2 := master.Uint64()
		salt := master.Uint64()
		t.streams[p] = stream{
			gen:  rand.New(rand.NewPCG(s1, s2)),
			salt: salt,
		}
	}
	t.masterSeed = masterSeed
	t.initialized = true
}

// Initialized reports whether Initialize has been called
func (t *Table) Initialized() bool {
	return t.initialized
}

// MasterSeed returns the seed the table was initialized with
func (t *Table) MasterSeed() uint64 {
	t.mustBeReady()
	return t.masterSeed
}

// NextInt draws from the purpose stream in [lo, hi)
func (t *Table) NextInt(p Purpose, lo, hi int) int {
	s := t.stream(p)
	if hi <= lo {
		panic(fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, lo, hi))
	}
	return lo + s.gen.IntN(hi-lo)
}

// NextDouble draws from the purpose stream in [0, 1)
func (t *Table) NextDouble(p Purpose) float64 {
	return t.stream(p).gen.Float64()
}

// Uint64At returns a keyed value for the purpose. Keyed draws do not consume
// the purpose stream, so the value depends only on the master seed, the
// purpose and the key.
func (t *Table) Uint64At(p Purpose, key uint64) uint64 {
	s := t.stream(p)
	return splitmix64(s.salt ^ splitmix64(key))
}

// DoubleAt returns a keyed value in [0, 1)
func (t *Table) DoubleAt(p Purpose, key uint64) float64 {
	return float64(t.Uint64At(p, key)>>11) / (1 << 53)
}

// IntAt returns a keyed value in [0, n)
func (t *Table) IntAt(p Purpose, key uint64, n int) int {
	if n <= 0 {
		panic(fmt.Errorf("%w: n=%d", ErrInvalidRange, n))
	}
	return int(t.Uint64At(p, key) % uint64(n))
}

func (t *Table) stream(p Purpose) *stream {
	t.mustBeReady()
	if p < 0 || p >= purposeCount {
		panic(fmt.Errorf("rng: unknown purpose %d", int(p)))
	}
	return &t.streams[p]
}

func (t *Table) mustBeReady() {
	if t == nil || !t.initialized {
		panic(ErrNotInitialized)
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
