// Package satenc translates a Plan Decomposition Tree into CNF over a
// github.com/irifrance/gini inter.S instance (spec.md §4.5): variable
// allocation, hierarchy/primitiveness clauses, action and method effect
// clauses, frame axioms, partial-order "before" clauses, and mutex
// encoding.
package satenc

import (
	"fmt"
	"io"

	"github.com/irifrance/gini/inter"
	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/internal/varpool"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
)

// Solver is the narrow slice of github.com/irifrance/gini's inter.S that
// the encoder needs: fresh-variable generation and clause building. Any
// inter.S (in particular *gini.Gini, which package planner drives for
// solving) satisfies this; the encoder only ever adds clauses and never
// solves, so it doesn't need the rest of inter.S's surface.
type Solver interface {
	inter.Liter
	inter.Adder
}

// Encoder owns the solver handle and the grounded instance it is encoding
// against. One Encoder is reused across the whole incremental-deepening
// run (spec.md §4.6): new clauses are only ever added, never retracted.
type Encoder struct {
	S  Solver
	In *ground.Instance
	A  *pdt.Arena

	PartialOrder       bool
	UseEffectInference bool
	UseMutexes         bool

	// PVN, when non-nil, receives one "PVN: <dimacs> <name>" line per
	// allocated variable (SPEC_FULL.md §3 "print-variable-names").
	PVN io.Writer

	vars          *varpool.Pool
	numClauses    int
	nextBeforeKey int
}

// New builds an Encoder. s must already be wired to the solver the caller
// intends to run GoSolve/Solve against.
func New(s Solver, in *ground.Instance, a *pdt.Arena, partialOrder, useEffectInference, useMutexes bool) *Encoder {
	e := &Encoder{S: s, In: in, A: a, PartialOrder: partialOrder, UseEffectInference: useEffectInference, UseMutexes: useMutexes}
	e.vars = varpool.New(e.allocVar)
	return e
}

// allocVar is the varpool.Pool backing allocator: it asks the solver for
// a fresh literal and, if PVN is wired, records the name (SPEC_FULL.md
// §3 "PVN diagnostic stream").
func (e *Encoder) allocVar(name string) int {
	l := e.S.Lit()
	d := l.Dimacs()
	if e.PVN != nil {
		fmt.Fprintf(e.PVN, "PVN: %d %s\n", d, name)
	}
	return d
}

// newVar allocates a fresh solver variable and returns its positive Dimacs
// number, the representation satenc and pdt.Node use for every *Var field.
func (e *Encoder) newVar(name string) int {
	return e.vars.Get(name)
}

// NumVars and NumClauses report how much this Encoder has emitted so
// far, the counters package planner surfaces as Stats (SPEC_FULL.md §3
// "Statistics counters").
func (e *Encoder) NumVars() int    { return e.vars.Count() }
func (e *Encoder) NumClauses() int { return e.numClauses }

// lit converts a signed Dimacs int (as stored in the *Var maps/fields) to
// a z.Lit for Add/Assume.
func lit(d int) z.Lit { return z.Dimacs2Lit(d) }

// addClause adds a z.LitNull-terminated clause built from signed Dimacs
// ints; a negative entry is the negated literal of that variable.
func (e *Encoder) addClause(ds ...int) {
	for _, d := range ds {
		e.S.Add(lit(d))
	}
	e.S.Add(z.LitNull)
	e.numClauses++
}

// AllocateVariables assigns SAT variables to every node in ids, applying
// the reuse rule of spec.md §4.5: a node at offset 0 whose sole parent
// candidate is a single, unambiguous action reuses that parent's action
// and fact variables instead of allocating fresh ones.
func (e *Encoder) AllocateVariables(ids []pdt.NodeID) {
	for _, id := range ids {
		n := e.A.Get(id)
		reused := e.tryReuseParentVars(n)
		if !reused {
			e.allocFreshFactAndActionVars(n)
		}
		n.MethodVar = make(map[int]int, len(n.Methods))
		for _, mid := range n.Methods {
			n.MethodVar[mid] = e.newVar(fmt.Sprintf("method_%d_node%d", mid, id))
		}
		n.PrimVar = e.newVar(fmt.Sprintf("prim_node%d", id))
		n.LeafOverleafVar = e.newVar(fmt.Sprintf("leafoverleaf_node%d", id))
		n.NextNodeVar = make(map[pdt.NodeID]int, len(n.PossibleNextNodes))
		for succ := range n.PossibleNextNodes {
			n.NextNodeVar[succ] = e.newVar(fmt.Sprintf("next_node%d_node%d", id, succ))
		}
		if e.PartialOrder {
			n.BeforeVar = map[pdt.NodeID]int{}
		}
	}
}

func (e *Encoder) tryReuseParentVars(n *pdt.Node) bool {
	if n.Parent == pdt.NoParent || n.OffsetWithinParent != 0 {
		return false
	}
	parent := e.A.Get(n.Parent)
	if len(parent.Actions) != 1 || len(parent.Methods) != 0 {
		return false
	}
	if parent.Actions[0] == ground.Blank || parent.ActionVar == nil {
		return false
	}
	n.ActionVar = parent.ActionVar
	n.FactVar = parent.FactVar
	return true
}

func (e *Encoder) allocFreshFactAndActionVars(n *pdt.Node) {
	np := e.In.NumPredicates()
	n.FactVar = make(map[int]int, np)
	for p := 0; p < np; p++ {
		n.FactVar[p] = e.newVar(fmt.Sprintf("fact_node%d_%s", n.ID, e.In.Predicates[p].Name))
	}
	n.ActionVar = make(map[int]int, len(n.Actions))
	for _, aid := range n.Actions {
		n.ActionVar[aid] = e.newVar(fmt.Sprintf("action_%d_node%d", aid, n.ID))
	}
}

// beforeVar returns (allocating on demand) the before(src,dst) variable
// used by the PO ordering clauses (spec.md §4.5 "Ordering ('before')
// clauses"). Allocated lazily since the full node×node pair space is far
// larger than the sibling-pair space next_node_var is allocated over.
func (e *Encoder) beforeVar(src, dst *pdt.Node) int {
	if v, ok := src.BeforeVar[dst.ID]; ok {
		return v
	}
	v := e.newVar(fmt.Sprintf("before_node%d_node%d", src.ID, dst.ID))
	src.BeforeVar[dst.ID] = v
	return v
}
