package groove

import (
	"fmt"
	"strings"
)

// Strength classifies the metric weight of an onset. Values are ordered
// weakest first so density trimming can sort ascending.
type Strength int

const (
	StrengthGhost Strength = iota
	StrengthPickup
	StrengthOffbeat
	StrengthStrong
	StrengthBackbeat
	StrengthDownbeat
)

var strengthNames = [...]string{"ghost", "pickup", "offbeat", "strong", "backbeat", "downbeat"}

func (s Strength) String() string {
	if s >= 0 && int(s) < len(strengthNames) {
		return strengthNames[s]
	}
	return "unknown"
}

// ParseStrength converts a strength name back into a Strength
func ParseStrength(name string) (Strength, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range strengthNames {
		if n == name {
			return Strength(i), nil
		}
	}
	return 0, fmt.Errorf("unknown strength: %q", name)
}

// MarshalText encodes the strength by name
func (s Strength) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a strength name
func (s *Strength) UnmarshalText(b []byte) error {
	v, err := ParseStrength(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Default velocities per strength class, used when a candidate carries no hint
var defaultVelocity = map[Strength]int{
	StrengthGhost:    40,
	StrengthPickup:   80,
	StrengthOffbeat:  85,
	StrengthStrong:   100,
	StrengthBackbeat: 110,
	StrengthDownbeat: 115,
}

// DefaultVelocity returns the velocity used for a strength when no hint is given
func (s Strength) DefaultVelocity() int {
	if v, ok := defaultVelocity[s]; ok {
		return v
	}
	return 100
}
