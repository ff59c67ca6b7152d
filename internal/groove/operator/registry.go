package operator

import (
	"fmt"

	"github.com/Conceptual-Machines/magda-groove/internal/groove"
)

// SeedFunc returns the per-operator seed for the bar being resolved
type SeedFunc func(operatorID string) uint64

// Group is the output of one operator in one family round
type Group struct {
	OperatorID string
	Candidates []groove.Candidate
}

// Gathered is everything one family proposed for a bar and role, in
// registration order
type Gathered struct {
	Family   Family
	Groups   []Group
	Removals []groove.RemovalCandidate
	// Skipped lists operators of the family whose CanApply returned false
	Skipped []string
}

// CandidateCount returns the number of candidates across all groups
func (g Gathered) CandidateCount() int {
	n := 0
	for _, grp := range g.Groups {
		n += len(grp.Candidates)
	}
	return n
}

// Source is what the selection engine pulls candidates from
type Source interface {
	// Serves reports whether any operator is bound to role
	Serves(role groove.Role) bool
	Gather(f Family, v View, seed SeedFunc) Gathered
}

type binding[C Context] struct {
	op    Operator[C]
	roles map[groove.Role]bool
}

// Registry holds the operators of one context variant. Operators keep their
// registration order; Gather filters them by family and role.
//
// A Registry is built once at startup and read-only afterwards.
type Registry[C Context] struct {
	bind     func(View) C
	bindings []binding[C]
	ids      map[string]bool
}

// NewRegistry creates an empty registry. bind turns the engine's View into
// the typed context operators of this registry expect.
func NewRegistry[C Context](bind func(View) C) *Registry[C] {
	return &Registry[C]{
		bind:     bind,
		bindings: make([]binding[C], 0, 16),
		ids:      make(map[string]bool),
	}
}

// NewDrumRegistry creates a registry for drum operators
func NewDrumRegistry() *Registry[*DrumContext] {
	return NewRegistry(NewDrumContext)
}

// NewBassRegistry creates a registry for bass operators backed by harmony
func NewBassRegistry(h HarmonyLookup) *Registry[*BassContext] {
	return NewRegistry(func(v View) *BassContext { return NewBassContext(v, h) })
}

// Register binds op to the roles it serves.
//
// Panics if op is nil, has an empty or duplicate id, an unknown family, or
// no valid roles; these are wiring mistakes caught at startup.
func (r *Registry[C]) Register(op Operator[C], roles ...groove.Role) {
	if op == nil {
		panic("operator must not be nil")
	}
	id := op.ID()
	if id == "" {
		panic("operator id must not be empty")
	}
	if r.ids[id] {
		panic(fmt.Sprintf("operator %q registered twice", id))
	}
	if !op.Family().Valid() {
		panic(fmt.Sprintf("operator %q has unknown family %d", id, int(op.Family())))
	}
	set := make(map[groove.Role]bool, len(roles))
	for _, role := range roles {
		if !role.Valid() {
			panic(fmt.Sprintf("operator %q bound to unknown role %q", id, role))
		}
		set[role] = true
	}
	if len(set) == 0 {
		panic(fmt.Sprintf("operator %q bound to no roles", id))
	}
	r.ids[id] = true
	r.bindings = append(r.bindings, binding[C]{op: op, roles: set})
}

// Len returns the number of registered operators
func (r *Registry[C]) Len() int {
	return len(r.bindings)
}

// IDs returns operator ids in registration order
func (r *Registry[C]) IDs() []string {
	out := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b.op.ID()
	}
	return out
}

// ByFamily groups operator ids by family, each group in registration order
func (r *Registry[C]) ByFamily() map[Family][]string {
	out := make(map[Family][]string)
	for _, b := range r.bindings {
		f := b.op.Family()
		out[f] = append(out[f], b.op.ID())
	}
	return out
}

// Serves reports whether any operator is bound to role
func (r *Registry[C]) Serves(role groove.Role) bool {
	for _, b := range r.bindings {
		if b.roles[role] {
			return true
		}
	}
	return false
}

// Gather runs every applicable operator of family f bound to the view's role
func (r *Registry[C]) Gather(f Family, v View, seed SeedFunc) Gathered {
	out := Gathered{Family: f}
	ctx := r.bind(v)
	for _, b := range r.bindings {
		if b.op.Family() != f || !b.roles[v.Role] {
			continue
		}
		if !b.op.CanApply(ctx) {
			out.Skipped = append(out.Skipped, b.op.ID())
			continue
		}
		var s uint64
		if seed != nil {
			s = seed(b.op.ID())
		}
		out.Groups = append(out.Groups, Group{
			OperatorID: b.op.ID(),
			Candidates: b.op.GenerateCandidates(ctx, s),
		})
		out.Removals = append(out.Removals, b.op.GenerateRemovals(ctx)...)
	}
	return out
}

// Sources combines registries of different context variants into one Source.
// The first source serving a role wins.
type Sources []Source

// Serves reports whether any source serves role
func (s Sources) Serves(role groove.Role) bool {
	return s.For(role) != nil
}

// For returns the source serving role, or nil
func (s Sources) For(role groove.Role) Source {
	for _, src := range s {
		if src.Serves(role) {
			return src
		}
	}
	return nil
}

// Gather delegates to the source serving the view's role
func (s Sources) Gather(f Family, v View, seed SeedFunc) Gathered {
	src := s.For(v.Role)
	if src == nil {
		return Gathered{Family: f}
	}
	return src.Gather(f, v, seed)
}
