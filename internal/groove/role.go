package groove

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a role name is not part of the kit
var ErrUnknownRole = errors.New("unknown role")

// Role identifies an instrument part that receives its own onset list per bar
type Role string

// Canonical roles, matching the drum names used by the groove DSL
const (
	RoleKick    Role = "kick"
	RoleSnare   Role = "snare"
	RoleHat     Role = "hat"
	RoleOpenHat Role = "hat_open"
	RoleCrash   Role = "crash"
	RoleTomHigh Role = "tom_high"
	RoleTomLow  Role = "tom_low"
	RoleRide    Role = "ride"
	RoleBass    Role = "bass"
)

// RoleOrder is the order roles are resolved within a bar. Roles later in the
// list can observe the committed onsets of earlier ones.
var RoleOrder = []Role{
	RoleKick,
	RoleSnare,
	RoleCrash,
	RoleHat,
	RoleOpenHat,
	RoleRide,
	RoleTomHigh,
	RoleTomLow,
	RoleBass,
}

var knownRoles = func() map[Role]int {
	m := make(map[Role]int, len(RoleOrder))
	for i, r := range RoleOrder {
		m[r] = i
	}
	return m
}()

// ParseRole converts a role name into a Role, rejecting names outside the kit
func ParseRole(name string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return r, nil
}

// MustParseRole is ParseRole for static configuration; it panics on unknown names
func MustParseRole(name string) Role {
	r, err := ParseRole(name)
	if err != nil {
		panic(err)
	}
	return r
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// IsDrum returns true for percussion roles
func (r Role) IsDrum() bool {
	return r.Valid() && r != RoleBass
}

// Rank returns the resolution order index of the role, or -1 when unknown
func (r Role) Rank() int {
	if i, ok := knownRoles[r]; ok {
		return i
	}
	return -1
}

func (r Role) String() string {
	return string(r)
}

// SortRoles orders roles by RoleOrder, dropping unknown and duplicate entries
func SortRoles(roles []Role) []Role {
	seen := make(map[Role]bool, len(roles))
	for _, r := range roles {
		if r.Valid() {
			seen[r] = true
		}
	}
	out := make([]Role, 0, len(seen))
	for _, r := range RoleOrder {
		if seen[r] {
			out = append(out, r)
		}
	}
	return out
}
