// Package infer computes, for every method of a grounded instance, the
// possible effects, certified effects, and certified preconditions used
// by the SAT encoder for the method clauses and the change-explaining
// disjuncts of the frame axioms (spec.md §4.2). Results are written
// back into ground.Method.
package infer

import (
	"github.com/gaspard-quenard/sibylsat-po/bitset"
	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/graph"
	"github.com/gaspard-quenard/sibylsat-po/order"
)

// Run computes possible(m), certified(m).{pos,neg}, and prec(m) for every
// method in in, writing the results into each *ground.Method. It fails if
// any method's ordering constraints are cyclic (spec.md §4.1).
func Run(in *ground.Instance) error {
	n := len(in.Methods)
	np := in.NumPredicates()

	orders := make([]*order.Info, n)
	for i, m := range in.Methods {
		info, err := order.Analyze(m)
		if err != nil {
			return err
		}
		orders[i] = info
	}

	adj := buildCallGraph(in)
	scc := graph.Tarjan(n, adj)

	local := make([]bitset.EffectBits, n)
	for i, m := range in.Methods {
		local[i] = bitset.NewEffectBits(np)
		for _, s := range m.Subtasks {
			if s.Kind != ground.SubtaskAction {
				continue
			}
			a := in.ActionByID(s.ActionID)
			local[i].Pos.OrWith(a.AddEff)
			local[i].Neg.OrWith(a.DelEff)
		}
	}

	possible := computePossible(in, scc, local, np)
	for i, m := range in.Methods {
		m.PossPos = possible[i].Pos.Clone()
		m.PossNeg = possible[i].Neg.Clone()
	}

	computeCertified(in, scc, orders, possible, np)
	computePreconditions(in, scc, orders, possible, np)

	refineMutexes(in)
	return nil
}

// buildCallGraph builds the caller-callee method graph: an edge m -> d
// for every decomposition method d of every abstract subtask of m.
func buildCallGraph(in *ground.Instance) [][]int {
	adj := make([][]int, len(in.Methods))
	for i, m := range in.Methods {
		seen := map[int]bool{}
		for _, s := range m.Subtasks {
			if s.Kind != ground.SubtaskAbstract {
				continue
			}
			t := in.AbstractTaskByID(s.TaskID)
			if t == nil {
				continue
			}
			for _, d := range t.Methods {
				if !seen[d] {
					seen[d] = true
					adj[i] = append(adj[i], d)
				}
			}
		}
	}
	return adj
}

// computePossible folds local effects bottom-up over the SCC condensation
// (spec.md §4.2 "Possible effects"): no cancellation, once a fluent is
// potentially touched anywhere under m it stays possible.
func computePossible(in *ground.Instance, scc *graph.SCCResult, local []bitset.EffectBits, np int) []bitset.EffectBits {
	compBits := make([]bitset.EffectBits, len(scc.Components))
	for _, c := range scc.ReverseTopo {
		bits := bitset.NewEffectBits(np)
		for _, mid := range scc.Components[c] {
			bits.OrWith(local[mid])
		}
		for _, callee := range scc.CondensedEdges[c] {
			bits.OrWith(compBits[callee])
		}
		compBits[c] = bits
	}
	out := make([]bitset.EffectBits, len(in.Methods))
	for mid := range in.Methods {
		out[mid] = compBits[scc.Component[mid]]
	}
	return out
}

// taskPossible is possible(·) for a subtask, per spec.md §4.2: the
// action's own effect bits if primitive, else the union of possible(d)
// over every decomposition method of the abstract task.
func taskPossible(in *ground.Instance, possible []bitset.EffectBits, s ground.Subtask, np int) bitset.EffectBits {
	if s.Kind == ground.SubtaskAction {
		a := in.ActionByID(s.ActionID)
		return bitset.EffectBits{Pos: a.AddEff, Neg: a.DelEff}
	}
	out := bitset.NewEffectBits(np)
	t := in.AbstractTaskByID(s.TaskID)
	if t == nil {
		return out
	}
	for _, d := range t.Methods {
		out.OrWith(possible[d])
	}
	return out
}

// computeCertified runs the certified-effects fixed point per component,
// in reverse-topological (callee-first) order, so a component's own
// inner fixed point never depends on an unresolved caller (spec.md §4.2
// "Certified effects").
func computeCertified(in *ground.Instance, scc *graph.SCCResult, orders []*order.Info, possible []bitset.EffectBits, np int) {
	for mid, m := range in.Methods {
		m.CertPos = bitset.New(np)
		m.CertNeg = bitset.New(np)
		_ = mid
	}
	for _, c := range scc.ReverseTopo {
		members := scc.Components[c]
		for {
			changed := false
			for _, mid := range members {
				m := in.Methods[mid]
				info := orders[mid]
				newCert := bitset.NewEffectBits(np)
				for i, s := range m.Subtasks {
					later := bitset.NewEffectBits(np)
					info.Successors[i].ForEachSet(func(j int) { later.OrWith(taskPossible(in, possible, m.Subtasks[j], np)) })
					info.Parallel[i].ForEachSet(func(j int) { later.OrWith(taskPossible(in, possible, m.Subtasks[j], np)) })

					base := certifiedBase(in, s, np)
					base.MinusWith(later)
					newCert.OrWith(base)
				}
				if m.CertPos.OrWith(newCert.Pos) {
					changed = true
				}
				if m.CertNeg.OrWith(newCert.Neg) {
					changed = true
				}
			}
			if !changed {
				break
			}
		}
	}
}

// certifiedBase is base(s) from spec.md §4.2 step 2: for a primitive
// subtask, the precondition-preservation trick pos = add ∪ (pre \
// delete), neg = delete; for an abstract subtask, the AND of certified(d)
// over every decomposition method.
func certifiedBase(in *ground.Instance, s ground.Subtask, np int) bitset.EffectBits {
	if s.Kind == ground.SubtaskAction {
		a := in.ActionByID(s.ActionID)
		pos := a.AddEff.Clone()
		preMinusDel := a.Pre.Clone()
		preMinusDel.MinusWith(a.DelEff)
		pos.OrWith(preMinusDel)
		return bitset.EffectBits{Pos: pos, Neg: a.DelEff.Clone()}
	}
	out := bitset.EffectBits{Pos: bitset.New(np), Neg: bitset.New(np)}
	t := in.AbstractTaskByID(s.TaskID)
	if t == nil || len(t.Methods) == 0 {
		return out // missing decomposition: contributes nothing (spec.md §4.2 "Failure semantics")
	}
	first := true
	for _, d := range t.Methods {
		dm := in.MethodByID(d)
		if first {
			out.Pos = dm.CertPos.Clone()
			out.Neg = dm.CertNeg.Clone()
			first = false
			continue
		}
		out.Pos.AndWith(dm.CertPos)
		out.Neg.AndWith(dm.CertNeg)
	}
	return out
}

// computePreconditions mirrors computeCertified for preconditions
// (spec.md §4.2 "Preconditions"): a single polarity-free bitset of facts
// required true, cancelled by possible positive effects of earlier/
// parallel subtasks instead of by a full EffectBits cross-cancellation.
func computePreconditions(in *ground.Instance, scc *graph.SCCResult, orders []*order.Info, possible []bitset.EffectBits, np int) {
	for _, m := range in.Methods {
		m.InferredPrec = bitset.New(np)
	}
	for _, c := range scc.ReverseTopo {
		members := scc.Components[c]
		for {
			changed := false
			for _, mid := range members {
				m := in.Methods[mid]
				info := orders[mid]
				newPrec := bitset.New(np)
				for i, s := range m.Subtasks {
					before := bitset.New(np)
					info.Predecessors[i].ForEachSet(func(j int) { before.OrWith(taskPossible(in, possible, m.Subtasks[j], np).Pos) })
					info.Parallel[i].ForEachSet(func(j int) { before.OrWith(taskPossible(in, possible, m.Subtasks[j], np).Pos) })

					base := precondBase(in, s, np)
					base.MinusWith(before)
					newPrec.OrWith(base)
				}
				newPrec.OrWith(m.ExplicitPrec)
				if m.InferredPrec.OrWith(newPrec) {
					changed = true
				}
			}
			if !changed {
				break
			}
		}
	}
}

func precondBase(in *ground.Instance, s ground.Subtask, np int) *bitset.Bitset {
	if s.Kind == ground.SubtaskAction {
		return in.ActionByID(s.ActionID).Pre.Clone()
	}
	t := in.AbstractTaskByID(s.TaskID)
	if t == nil || len(t.Methods) == 0 {
		return bitset.New(np)
	}
	var out *bitset.Bitset
	for _, d := range t.Methods {
		dm := in.MethodByID(d)
		if out == nil {
			out = dm.InferredPrec.Clone()
			continue
		}
		out.AndWith(dm.InferredPrec)
	}
	return out
}

// refineMutexes applies spec.md §4.2's "Mutex refinement" pass: once a
// fact is certified true (or required true), every other member of its
// mutex group can be struck from the possible set, and finally every
// direct pos/neg contradiction between possible and certified is
// resolved.
func refineMutexes(in *ground.Instance) {
	for _, m := range in.Methods {
		m.CertPos.ForEachSet(func(p int) {
			for _, gid := range in.MutexesOf[p] {
				for _, q := range in.MutexGroups[gid].Members {
					if q != p {
						m.PossPos.Clear(q)
					}
				}
			}
		})
		m.InferredPrec.ForEachSet(func(p int) {
			for _, gid := range in.MutexesOf[p] {
				for _, q := range in.MutexGroups[gid].Members {
					if q != p {
						m.PossNeg.Clear(q)
					}
				}
			}
		})
		m.PossPos.MinusWith(m.CertNeg)
		m.PossNeg.MinusWith(m.CertPos)
	}
}
