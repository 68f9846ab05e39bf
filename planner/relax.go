package planner

import (
	"context"

	"github.com/gaspard-quenard/sibylsat-po/pdt"
)

// solveLayer runs the assumption sequence spec.md §4.6 describes for one
// freshly-encoded layer: assume primitiveness on every new leaf plus
// "not padding" (¬leaf_overleaf) on every layer seen so far, solve; if
// UNSAT and relaxation is allowed, progressively relax — first the
// newest layer's padding assumption, then the frozen next-node pins,
// then older layers' padding assumptions one at a time, oldest
// relaxation attempted last (spec.md: "retry without the latest
// leaf_overleaf assumption... drop frozen next-node assumptions; pop
// older leaf_overleaf assumptions").
func (p *Planner) solveLayer(ctx context.Context, newLeaves []pdt.NodeID) (bool, error) {
	gen := make([]int, 0, len(newLeaves))
	for _, id := range newLeaves {
		gen = append(gen, p.Arena.Get(id).LeafOverleafVar)
	}
	p.history = append(p.history, gen)

	prim := make([]int, 0, len(newLeaves))
	for _, id := range newLeaves {
		prim = append(prim, p.Arena.Get(id).PrimVar)
	}
	frozen := p.frozenNextAssumptions(newLeaves)

	attempt := func(negateUpto int, withFrozen bool) (bool, error) {
		assume := append([]int{}, prim...)
		assume = append(assume, p.negateHistoryUpTo(negateUpto)...)
		if withFrozen {
			assume = append(assume, frozen...)
			assume = append(assume, p.frozenNextVars...)
		}
		return p.solve(ctx, assume)
	}

	sat, err := attempt(len(p.history), true)
	if err != nil || sat {
		return sat, err
	}
	if !p.Opts.AllowRelaxation {
		return false, nil
	}

	p.Stats.RelaxationsConsumed++
	sat, err = attempt(len(p.history)-1, true) // drop the newest layer's padding negation
	if err != nil || sat {
		return sat, err
	}

	p.Stats.RelaxationsConsumed++
	sat, err = attempt(len(p.history)-1, false) // also drop the frozen next-node pins
	if err != nil || sat {
		return sat, err
	}

	for upto := len(p.history) - 2; upto >= 0; upto-- {
		p.Stats.RelaxationsConsumed++
		sat, err = attempt(upto, false)
		if err != nil || sat {
			return sat, err
		}
	}
	return false, nil
}

// negateHistoryUpTo returns the negated LeafOverleafVar of every layer
// generation in history[:upto].
func (p *Planner) negateHistoryUpTo(upto int) []int {
	var out []int
	for i := 0; i < upto; i++ {
		for _, v := range p.history[i] {
			out = append(out, -v)
		}
	}
	return out
}

// frozenNextAssumptions forces true the next_node_var of any leaf whose
// PossibleNextNodes has exactly one entry: not a real ordering choice,
// so pinning it costs nothing and helps the solver (original_source's
// "frozen" next-node terminology for exactly this kind of forced pin).
func (p *Planner) frozenNextAssumptions(leaves []pdt.NodeID) []int {
	var out []int
	for _, id := range leaves {
		n := p.Arena.Get(id)
		if len(n.PossibleNextNodes) != 1 {
			continue
		}
		for next := range n.PossibleNextNodes {
			if v, ok := n.NextNodeVar[next]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}
