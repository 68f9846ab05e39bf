// Package varpool provides the per-run SAT variable bookkeeping shared
// by satenc's allocation sites: a single counting allocator so that
// "variable allocation is injective" (spec.md §8 invariant 7) is true
// by construction rather than by convention, and a named family
// allocator for the bimander encoder's auxiliary index bits
// (original_source/src/sat/bimander_amo.cpp).
package varpool

import "fmt"

// Pool wraps a solver's fresh-variable call with a name and a running
// count. alloc is expected to both allocate the solver variable and
// record its name (satenc.Encoder wires this to inter.Liter.Lit plus
// the PVN diagnostic stream).
type Pool struct {
	alloc func(name string) int
	n     int
}

// New builds a Pool around alloc.
func New(alloc func(name string) int) *Pool {
	return &Pool{alloc: alloc}
}

// Get allocates one named variable.
func (p *Pool) Get(name string) int {
	p.n++
	return p.alloc(name)
}

// Count returns how many variables this Pool has allocated.
func (p *Pool) Count() int { return p.n }

// Aux allocates the i-th auxiliary variable of a named family, the
// shape the bimander at-most-one encoder needs for each group's binary
// index bits.
func (p *Pool) Aux(label string, i int) int {
	return p.Get(fmt.Sprintf("__amo_%s_%d", label, i))
}
