// Package protection merges tag-gated protection layers into the per-role
// constraints the selection engine enforces.
//
// Conflicting entries for the same beat resolve by precedence
// must-hit > never-remove > never-add > protected.
package protection

import (
	"github.com/Conceptual-Machines/magda-groove/internal/groove"
)

// RoleProtectionSet constrains which beats of a role may be added or removed
type RoleProtectionSet struct {
	// MustHit beats cannot be removed and are force-added when absent
	MustHit groove.BeatSet `json:"must_hit"`
	// Protected beats cannot be removed but are not force-added
	Protected   groove.BeatSet `json:"protected"`
	NeverRemove groove.BeatSet `json:"never_remove"`
	NeverAdd    groove.BeatSet `json:"never_add"`
}

// Empty reports whether the set constrains nothing
func (s RoleProtectionSet) Empty() bool {
	return s.MustHit.Empty() && s.Protected.Empty() && s.NeverRemove.Empty() && s.NeverAdd.Empty()
}

// Union merges two sets list by list
func (s RoleProtectionSet) Union(o RoleProtectionSet) RoleProtectionSet {
	return RoleProtectionSet{
		MustHit:     s.MustHit.Union(o.MustHit),
		Protected:   s.Protected.Union(o.Protected),
		NeverRemove: s.NeverRemove.Union(o.NeverRemove),
		NeverAdd:    s.NeverAdd.Union(o.NeverAdd),
	}
}

// IsMustHit reports whether beat is a must-hit
func (s RoleProtectionSet) IsMustHit(beat float64) bool {
	return s.MustHit.Contains(beat)
}

// CanAdd reports whether an addition on beat survives gating. Must-hit wins
// over never-add.
func (s RoleProtectionSet) CanAdd(beat float64) bool {
	return s.MustHit.Contains(beat) || !s.NeverAdd.Contains(beat)
}

// CanRemove reports whether a removal on beat survives gating
func (s RoleProtectionSet) CanRemove(beat float64) bool {
	return !s.MustHit.Contains(beat) && !s.NeverRemove.Contains(beat) && !s.Protected.Contains(beat)
}

// Locked reports whether an onset on beat is exempt from density trimming
// and wins monophony conflicts
func (s RoleProtectionSet) Locked(beat float64) bool {
	return !s.CanRemove(beat)
}

// Layer is one named, tag-gated rule set
type Layer struct {
	Name string `json:"name"`
	// IsAdditiveOnly layers union into the accumulated lists; other layers
	// replace the lists of every role they mention
	IsAdditiveOnly bool `json:"is_additive_only"`
	// AppliesWhenTagsAll gates the layer; empty means always
	AppliesWhenTagsAll groove.TagSet                    `json:"-"`
	Roles              map[groove.Role]RoleProtectionSet `json:"roles"`
}

// AppliesTo reports whether the layer is active for the enabled tags
func (l Layer) AppliesTo(enabled groove.TagSet) bool {
	return enabled.ContainsAll(l.AppliesWhenTagsAll)
}

// Policy is the immutable result of merging layers for one tag set
type Policy struct {
	roles  map[groove.Role]RoleProtectionSet
	layers []string
}

// For returns the protection of role; untouched roles get the empty set
func (p Policy) For(role groove.Role) RoleProtectionSet {
	return p.roles[role]
}

// Roles returns the constrained roles in resolution order
func (p Policy) Roles() []groove.Role {
	roles := make([]groove.Role, 0, len(p.roles))
	for r := range p.roles {
		roles = append(roles, r)
	}
	return groove.SortRoles(roles)
}

// AppliedLayers returns the names of the layers that were active
func (p Policy) AppliedLayers() []string {
	out := make([]string, len(p.layers))
	copy(out, p.layers)
	return out
}

// Merge folds layers in declared order into a Policy for the enabled tags.
// It never mutates the layers.
func Merge(layers []Layer, enabled groove.TagSet) Policy {
	acc := make(map[groove.Role]RoleProtectionSet)
	var applied []string
	for _, l := range layers {
		if !l.AppliesTo(enabled) {
			continue
		}
		applied = append(applied, l.Name)
		for _, role := range sortedRoles(l.Roles) {
			set := l.Roles[role]
			if l.IsAdditiveOnly {
				acc[role] = acc[role].Union(set)
			} else {
				acc[role] = set
			}
		}
	}
	return Policy{roles: acc, layers: applied}
}

func sortedRoles(m map[groove.Role]RoleProtectionSet) []groove.Role {
	roles := make([]groove.Role, 0, len(m))
	for r := range m {
		roles = append(roles, r)
	}
	return groove.SortRoles(roles)
}

// Cache memoizes merged policies per enabled tag set. It belongs to one
// generation run and is not safe for concurrent use.
type Cache struct {
	layers []Layer
	byKey  map[string]Policy
	misses int
}

// NewCache creates a cache over a fixed layer list
func NewCache(layers []Layer) *Cache {
	return &Cache{layers: layers, byKey: make(map[string]Policy)}
}

// For returns the policy for the enabled tags, merging on first use
func (c *Cache) For(enabled groove.TagSet) Policy {
	key := enabled.Key()
	if p, ok := c.byKey[key]; ok {
		return p
	}
	c.misses++
	p := Merge(c.layers, enabled)
	c.byKey[key] = p
	return p
}

// Merges returns how many distinct tag sets were merged
func (c *Cache) Merges() int {
	return c.misses
}
