package selection

import "github.com/Conceptual-Machines/magda-groove/internal/groove"

// RoleProfile holds the per-role limits the engine enforces after election
type RoleProfile struct {
	// DensityCap is the most onsets a bar may keep; 0 means uncapped
	DensityCap int `json:"density_cap" yaml:"density_cap"`
	// FillDensityCap replaces DensityCap in fill-window bars when set
	FillDensityCap int `json:"fill_density_cap" yaml:"fill_density_cap"`

	Monophonic bool `json:"monophonic" yaml:"monophonic"`
	// MinDuration is the shortest note in ticks monophony may produce
	MinDuration int `json:"min_duration" yaml:"min_duration"`
	// DurationBeats is the default note length in beats
	DurationBeats float64 `json:"duration_beats" yaml:"duration_beats"`

	// Humanize ranges, applied as keyed +/- jitter
	VelocityJitter int `json:"velocity_jitter" yaml:"velocity_jitter"`
	TimingJitter   int `json:"timing_jitter" yaml:"timing_jitter"`
}

// Cap returns the density cap for a bar
func (p RoleProfile) Cap(fillWindow bool) int {
	if fillWindow && p.FillDensityCap > 0 {
		return p.FillDensityCap
	}
	return p.DensityCap
}

// Profiles maps roles to their profile
type Profiles map[groove.Role]RoleProfile

// For returns the profile of role, falling back to DefaultProfile
func (p Profiles) For(role groove.Role) RoleProfile {
	if prof, ok := p[role]; ok {
		return prof
	}
	return DefaultProfile
}

// Roles returns the profiled roles in resolution order
func (p Profiles) Roles() []groove.Role {
	roles := make([]groove.Role, 0, len(p))
	for r := range p {
		roles = append(roles, r)
	}
	return groove.SortRoles(roles)
}

// DefaultProfile applies to roles without an explicit profile
var DefaultProfile = RoleProfile{
	DensityCap:     8,
	MinDuration:    10,
	DurationBeats:  0.25,
	VelocityJitter: 6,
	TimingJitter:   4,
}

// DefaultProfiles returns the built-in kit profiles
func DefaultProfiles() Profiles {
	return Profiles{
		groove.RoleKick:    {DensityCap: 6, FillDensityCap: 6, MinDuration: 10, DurationBeats: 0.25, VelocityJitter: 6, TimingJitter: 4},
		groove.RoleSnare:   {DensityCap: 6, FillDensityCap: 10, MinDuration: 10, DurationBeats: 0.25, VelocityJitter: 8, TimingJitter: 5},
		groove.RoleCrash:   {DensityCap: 1, MinDuration: 10, DurationBeats: 2, VelocityJitter: 4},
		groove.RoleHat:     {DensityCap: 16, MinDuration: 10, DurationBeats: 0.25, VelocityJitter: 10, TimingJitter: 6},
		groove.RoleOpenHat: {DensityCap: 2, MinDuration: 10, DurationBeats: 0.5, VelocityJitter: 6, TimingJitter: 4},
		groove.RoleRide:    {DensityCap: 8, MinDuration: 10, DurationBeats: 0.5, VelocityJitter: 8, TimingJitter: 4},
		groove.RoleTomHigh: {DensityCap: 4, FillDensityCap: 6, MinDuration: 10, DurationBeats: 0.25, VelocityJitter: 6, TimingJitter: 3},
		groove.RoleTomLow:  {DensityCap: 4, FillDensityCap: 6, MinDuration: 10, DurationBeats: 0.25, VelocityJitter: 6, TimingJitter: 3},
		groove.RoleBass:    {DensityCap: 6, Monophonic: true, MinDuration: 30, DurationBeats: 1, VelocityJitter: 5, TimingJitter: 3},
	}
}
