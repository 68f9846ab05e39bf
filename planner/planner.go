// Package planner drives the incrementally-deepened search loop
// (spec.md §4.6 "Planner Driver"): expand the Plan Decomposition Tree
// one layer, encode it, assume primitiveness on the new leaves and
// non-padding on the leaves of every layer so far, and solve —
// deepening on UNSAT, optionally relaxing the non-padding assumption
// first.
package planner

import (
	"context"
	"time"

	"github.com/irifrance/gini/inter"
	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/htnerr"
	"github.com/gaspard-quenard/sibylsat-po/htnopts"
	"github.com/gaspard-quenard/sibylsat-po/infer"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
	"github.com/gaspard-quenard/sibylsat-po/satenc"
	"github.com/gaspard-quenard/sibylsat-po/structure"
)

// Solver is what the Planner needs beyond satenc.Solver: the ability to
// assume literals, run a cancellable solve, and read back a model.
// *gini.Gini satisfies this (it implements the whole of inter.S, a
// superset), the same way cmd/gini programs against inter.S rather than
// the concrete type.
type Solver interface {
	satenc.Solver
	inter.Assumable
	inter.GoSolvable
	inter.Model
	inter.MaxVar
}

// pollInterval bounds how long a single GoSolve().Try call blocks
// before the driver rechecks ctx, following the teacher's GoSolve/Try
// cancellation idiom (cmd/gini/icnf.go, gini_test.go TestGiniAsync).
const pollInterval = 200 * time.Millisecond

// Planner owns one incremental run: the solver handle, the grounded
// instance, the PDT arena it grows layer by layer, and the encoder
// writing clauses into the same solver handle across the whole run
// (spec.md §5 "the SAT solver is owned by the encoder and mutated only
// from within encoder methods").
type Planner struct {
	S       Solver
	In      *ground.Instance
	Arena   *pdt.Arena
	Grouper *structure.Grouper
	Enc     *satenc.Encoder
	Opts    htnopts.Options

	Stats Stats

	rootID pdt.NodeID
	goalID pdt.NodeID

	// history[i] is the set of LeafOverleafVar ints allocated for the
	// leaves introduced at depth i+1. Negating all of them is the
	// "this layer is not padding" assumption; relaxation drops entries
	// from the end first (most recently introduced), mirroring
	// original_source/src/algo/planner.cpp's _leafs_overleafs_vars_to_encode
	// stack (there one scalar per layer; here the per-node generalization
	// DESIGN.md records as an Open Question decision).
	history [][]int

	// frozenNextVars accumulates next_node_var ints pinned true by an
	// accepted relaxed layer, carried into every later depth's
	// assumptions (original_source's _previous_nexts_nodes). Under this
	// driver's "any SAT terminates immediately" reading of spec.md's
	// find_plan() pseudocode this set never actually gets populated in
	// practice (there is no "continue deepening after an accepted
	// relaxed layer" path) — it is kept for structural fidelity with the
	// external interface and documented in DESIGN.md.
	frozenNextVars []int
}

// New builds a Planner over a fresh root node for in.
func New(s Solver, in *ground.Instance, opts htnopts.Options) *Planner {
	arena, rootID := pdt.NewRoot(in)
	grouper := structure.NewGrouper()
	for _, m := range in.Methods {
		grouper.StructureIDFor(m)
	}
	enc := satenc.New(s, in, arena, opts.PartialOrder, opts.UseEffectInference, opts.UseMutexes)
	if opts.PrintVariableNames {
		enc.PVN = opts.PVNWriter
	}
	return &Planner{
		S:       s,
		In:      in,
		Arena:   arena,
		Grouper: grouper,
		Enc:     enc,
		Opts:    opts,
		rootID:  rootID,
		goalID:  pdt.NoParent,
	}
}

// FindPlan runs the deepening loop until a plan is found, the depth cap
// is reached, ctx is cancelled, or an unrecoverable error occurs
// (spec.md §4.6, §7).
func (p *Planner) FindPlan(ctx context.Context) (Result, error) {
	if p.Opts.UseEffectInference {
		if err := infer.Run(p.In); err != nil {
			return Result{Status: Error, Err: err}, err
		}
	}

	p.Enc.AllocateVariables([]pdt.NodeID{p.rootID})
	p.Enc.EncodeRoot(p.rootID)
	p.Enc.EncodeInitial(p.rootID)
	p.syncStats()

	leaves := []pdt.NodeID{p.rootID}
	maxDepth := p.Opts.EffectiveMaxDepth()
	logger := p.Opts.EffectiveLogger()

	for depth := 1; depth <= maxDepth; depth++ {
		if ctx.Err() != nil {
			return Result{Status: Cancelled}, nil
		}
		p.Stats.DepthReached = depth

		newLeaves, err := p.expand(leaves)
		if err != nil {
			return Result{Status: Error, Err: err}, err
		}

		p.Enc.AllocateVariables(newLeaves)
		p.Enc.EncodeFrontier(leaves, newLeaves)
		p.goalID = p.Enc.EnsureGoalNode(&p.goalID)
		p.Enc.AttachGoalFrontier(p.goalID, newLeaves)
		p.Enc.EncodeGoalNode(p.goalID)
		p.syncStats()

		logger.Printf("depth %d: %d leaves, %d vars, %d clauses", depth, len(newLeaves), p.Stats.VariablesAllocated, p.Stats.ClausesEmitted)

		sat, err := p.solveLayer(ctx, newLeaves)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Status: Cancelled}, nil
			}
			return Result{Status: Error, Err: err}, err
		}
		if sat {
			text, size, err := p.extractAndEmit()
			if err != nil {
				return Result{Status: Error, Err: err}, err
			}
			if p.Opts.VerifyPlan {
				if p.Opts.Verifier == nil {
					logger.Print("verify_plan is set but no Verifier was configured; skipping verification")
				} else if err := p.Opts.Verifier.Verify(p.In, text); err != nil {
					return Result{Status: Error, Err: err}, err
				}
			}
			return Result{Status: PlanFound, Text: text, Size: size}, nil
		}

		leaves = nextLayerLeaves(p.Arena, newLeaves)
	}
	err := &htnerr.DepthExhaustedError{MaxDepth: maxDepth}
	return Result{Status: NoPlan, Err: err}, nil
}

func (p *Planner) syncStats() {
	p.Stats.VariablesAllocated = p.Enc.NumVars()
	p.Stats.ClausesEmitted = p.Enc.NumClauses()
}

// nextLayerLeaves drops pure-padding leaves (their only candidate is
// ground.Blank) from the set handed to the next expand() call: such a
// node can never resolve to anything but Blank again, so re-expanding
// it only grows variable/clause count without adding search power.
func nextLayerLeaves(a *pdt.Arena, leaves []pdt.NodeID) []pdt.NodeID {
	out := make([]pdt.NodeID, 0, len(leaves))
	for _, id := range leaves {
		n := a.Get(id)
		if len(n.Methods) == 0 && len(n.Actions) == 1 && n.Actions[0] == ground.Blank {
			continue
		}
		out = append(out, id)
	}
	return out
}

// expand runs one layer's PDT expansion over leaves, either totally- or
// partially-ordered depending on Opts.PartialOrder.
func (p *Planner) expand(leaves []pdt.NodeID) ([]pdt.NodeID, error) {
	var all []pdt.NodeID
	for _, id := range leaves {
		var children []pdt.NodeID
		if p.Opts.PartialOrder {
			var err error
			children, err = p.Arena.ExpandPartiallyOrdered(id, p.Grouper)
			if err != nil {
				return nil, err
			}
		} else {
			children = p.Arena.ExpandTotallyOrdered(id)
		}
		all = append(all, children...)
	}
	return all, nil
}

// solve assumes the given signed Dimacs literals, runs one cancellable
// solve, and reports whether the result was SAT. A Try result of 0
// (no answer within pollInterval) with ctx still live means "keep
// polling"; the loop ends only on SAT (1), UNSAT (-1), or ctx
// cancellation, which stops the solver and returns ctx.Err().
func (p *Planner) solve(ctx context.Context, assume []int) (bool, error) {
	lits := make([]z.Lit, len(assume))
	for i, d := range assume {
		lits[i] = z.Dimacs2Lit(d)
	}
	p.S.Assume(lits...)
	p.Stats.SATCalls++
	handle := p.S.GoSolve()
	for {
		if ctx.Err() != nil {
			handle.Stop()
			return false, ctx.Err()
		}
		switch r := handle.Try(pollInterval); r {
		case 1:
			return true, nil
		case -1:
			return false, nil
		default:
			continue
		}
	}
}
