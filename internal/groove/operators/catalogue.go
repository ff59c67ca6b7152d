package operators

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
	"github.com/Conceptual-Machines/magda-groove/internal/groove/operator"
)

// NewDrumRegistry registers the drum catalogue in pass order. patterns may be
// nil, in which case the built-in anchors drive every drum role.
func NewDrumRegistry(patterns PatternLookup) *operator.Registry[*operator.DrumContext] {
	r := operator.NewDrumRegistry()

	drums := []groove.Role{
		groove.RoleKick, groove.RoleSnare, groove.RoleHat, groove.RoleOpenHat,
		groove.RoleCrash, groove.RoleRide, groove.RoleTomHigh, groove.RoleTomLow,
	}

	// GrooveAnchor
	r.Register(NewPattern(patterns), drums...)
	r.Register(NewKickDownbeat(patterns), groove.RoleKick)
	r.Register(NewBackbeat(patterns), groove.RoleSnare)
	r.Register(NewHatPulse(patterns), groove.RoleHat, groove.RoleRide)

	// MicroAddition
	r.Register(NewGhostBeforeBackbeat(), groove.RoleSnare)
	r.Register(NewKickPickup(), groove.RoleKick)

	// NoteRemoval
	r.Register(NewHatThinning(), groove.RoleHat)
	r.Register(NewKickBeforeFill(), groove.RoleKick)

	// SubdivisionTransform
	r.Register(NewHatSixteenths(), groove.RoleHat)
	r.Register(NewFill(FillShapes), groove.RoleSnare, groove.RoleTomHigh, groove.RoleTomLow)

	// StyleIdiom
	r.Register(NewOpenHatLift(), groove.RoleOpenHat, groove.RoleHat)
	r.Register(NewSectionCrash(), groove.RoleCrash)

	// Cleanup
	r.Register(NewKickOffBackbeat(), groove.RoleKick)
	r.Register(NewHatUnderCrash(), groove.RoleHat)

	return r
}

// NewBassRegistry registers the bass catalogue against a harmony lookup
func NewBassRegistry(harmony operator.HarmonyLookup) *operator.Registry[*operator.BassContext] {
	r := operator.NewBassRegistry(harmony)
	r.Register(NewBassRoot(), groove.RoleBass)
	r.Register(NewBassApproach(), groove.RoleBass)
	r.Register(NewBassRegister(), groove.RoleBass)
	r.Register(NewBassAnticipation(), groove.RoleBass)
	r.Register(NewBassKickLock(), groove.RoleBass)
	return r
}

// Default returns the full catalogue as one candidate source
func Default(patterns PatternLookup, harmony operator.HarmonyLookup) operator.Sources {
	return operator.Sources{
		NewDrumRegistry(patterns),
		NewBassRegistry(harmony),
	}
}
