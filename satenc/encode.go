package satenc

import (
	"fmt"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
)

// relevant reports whether rel denotes an actual candidate ordering edge
// (as opposed to a sibling pair known to never be adjacent).
func relevant(rel pdt.SiblingRelation) bool {
	return rel == pdt.SiblingOrdering || rel == pdt.NonSiblingOrdering
}

// EncodeInitial forces the root node's fact variables to the initial
// state exactly (spec.md §4.5 "fact_var[init_root][p] forced true iff
// p ∈ initial_state, false otherwise").
func (e *Encoder) EncodeInitial(rootID pdt.NodeID) {
	root := e.A.Get(rootID)
	for p := 0; p < e.In.NumPredicates(); p++ {
		if e.In.InitState.Test(p) {
			e.addClause(root.FactVar[p])
		} else {
			e.addClause(-root.FactVar[p])
		}
	}
}

// EncodeRoot forces root to resolve as exactly one of its candidate
// decomposition methods (spec.md §4.5 "Root node carries exactly one
// method variable; assert it true"). Unlike every other node, root has
// no parent to derive its "OR of valid parents" clause from, so the OR
// is asserted directly.
func (e *Encoder) EncodeRoot(rootID pdt.NodeID) {
	root := e.A.Get(rootID)
	vars := candidateVars(root)
	if len(vars) > 0 {
		e.addClause(vars...)
	}
	e.encodeAMOFor(root, "root", vars)
}

// EnsureGoalNode creates (idempotently) a dedicated node whose only
// candidate is the ground.Goal sentinel action, used as the universal
// successor of every node that can legally end the plan. Grounded on
// ground.Instance's Init/Goal sentinel actions (parse.go): GoalAction.Pre
// is the goal state and has no effects, so the ordinary action-
// precondition clause applied to this node reproduces "fact_var[goal][p]
// forced true iff p ∈ goal_state, no negation clauses" (spec.md §4.5) as
// a consequence of the generic machinery instead of a special case.
func (e *Encoder) EnsureGoalNode(goalID *pdt.NodeID) pdt.NodeID {
	if *goalID != pdt.NoParent {
		return *goalID
	}
	id := e.A.NewDetachedNode()
	n := e.A.Get(id)
	n.Name = "goal"
	n.Actions = []int{ground.Goal}
	n.ParentsOfAction = map[int][]pdt.ParentRef{}
	*goalID = id
	return id
}

// AttachGoalFrontier wires every node in candidates that CanBeLastChild as
// a possible predecessor of the goal node (spec.md §4.6's deepening loop
// grows this set every depth; earlier expanded nodes simply stop being
// eligible because their action candidate, if any, keeps competing with
// their newly-added method candidates rather than being withdrawn).
func (e *Encoder) AttachGoalFrontier(goalID pdt.NodeID, candidates []pdt.NodeID) {
	goal := e.A.Get(goalID)
	for _, id := range candidates {
		n := e.A.Get(id)
		if !n.CanBeLastChild {
			continue
		}
		n.PossibleNextNodes[goalID] = pdt.SiblingOrdering
		goal.PossiblePrevNodes[id] = pdt.SiblingOrdering
	}
}

// EncodeGoalNode allocates the goal node's own variables (its single
// forced action candidate, fact vars, and a unit clause selecting it) and
// its incoming next_node_var's per current predecessor. Call once after
// EnsureGoalNode and whenever AttachGoalFrontier adds new predecessors.
func (e *Encoder) EncodeGoalNode(goalID pdt.NodeID) {
	goal := e.A.Get(goalID)
	if goal.FactVar == nil {
		e.allocFreshFactAndActionVars(goal)
		e.addClause(goal.ActionVar[ground.Goal])
		goal.PrimVar = e.newVar(fmt.Sprintf("prim_node%d", goalID))
		e.addClause(goal.PrimVar)
		goal.LeafOverleafVar = e.newVar(fmt.Sprintf("leafoverleaf_node%d", goalID))
		goal.NextNodeVar = map[pdt.NodeID]int{}
	}
	var preds []int
	for predID := range goal.PossiblePrevNodes {
		pred := e.A.Get(predID)
		if _, ok := pred.NextNodeVar[goalID]; !ok {
			pred.NextNodeVar[goalID] = e.newVar(fmt.Sprintf("next_node%d_node%d", predID, goalID))
		}
		preds = append(preds, pred.NextNodeVar[goalID])
	}
	// The plan is only complete once some eligible leaf actually transitions
	// into goal; at shallow depths this is expected to make the formula
	// UNSAT, which is exactly what drives find_plan()'s deepening loop
	// (spec.md §4.6).
	e.encodeOnePredecessorOrSuccessor(preds, fmt.Sprintf("pred_node%d", goalID))
	e.encodeActionClausesFor(goal)
}

// candidateVars collects every method and action candidate variable of n,
// including the BLANK padding action: a shorter sibling method leaves this
// slot with no real candidate but BLANK, and BLANK must compete in the
// same at-most-one/at-least-one group as every other candidate exactly
// like original_source/src/sat/encoding.cpp's encodeHierarchy, which
// iterates getActionAndVariables() uniformly with no BLANK special case.
func candidateVars(n *pdt.Node) []int {
	vars := make([]int, 0, len(n.Methods)+len(n.Actions))
	for _, mid := range n.Methods {
		vars = append(vars, n.MethodVar[mid])
	}
	for _, aid := range n.Actions {
		vars = append(vars, n.ActionVar[aid])
	}
	return vars
}

// EncodeFrontier encodes one freshly-allocated layer (spec.md §4.5,
// §4.6's "encode(new_leaves)"): hierarchy clauses linking parents to
// children, primitiveness, action/method precondition+effect clauses,
// frame axioms, and (when PartialOrder) the sibling ordering clauses for
// this layer. parents must already be encoded; children must already
// have AllocateVariables applied.
func (e *Encoder) EncodeFrontier(parents, children []pdt.NodeID) {
	for _, pid := range parents {
		p := e.A.Get(pid)
		e.encodeHierarchyDownward(p)
		e.encodeOrderingLift(p)
	}
	for _, cid := range children {
		n := e.A.Get(cid)
		e.encodeHierarchyUpward(n)
		e.encodeAMOFor(n, fmt.Sprintf("node%d", cid), candidateVars(n))
		e.encodePrimitiveness(n)
		e.encodeActionClausesFor(n)
		e.encodeMethodClausesFor(n)
		e.encodeFrameAxiomsFor(n)
	}
	if e.PartialOrder {
		for _, cid := range children {
			e.encodeOrderingFor(e.A.Get(cid))
		}
		for _, cid := range children {
			e.encodeOrderingTransitivity(e.A.Get(cid), children)
		}
	}
	if e.UseMutexes {
		for _, cid := range children {
			e.encodeMutexesFor(e.A.Get(cid))
		}
	}
}

// encodeHierarchyUpward implements spec.md §4.5 "For each candidate
// method/action m in this node, m ⇒ (OR over its valid parents)".
func (e *Encoder) encodeHierarchyUpward(n *pdt.Node) {
	if n.Parent == pdt.NoParent {
		return
	}
	parent := e.A.Get(n.Parent)
	for _, mid := range n.Methods {
		lits := []int{-n.MethodVar[mid]}
		for _, pmid := range n.ParentsOfMethod[mid] {
			lits = append(lits, parent.MethodVar[pmid])
		}
		e.addClause(lits...)
	}
	for _, aid := range n.Actions {
		lits := []int{-n.ActionVar[aid]}
		for _, ref := range n.ParentsOfAction[aid] {
			if ref.Kind == pdt.ParentMethod {
				lits = append(lits, parent.MethodVar[ref.ParentID])
			} else {
				lits = append(lits, parent.ActionVar[ref.ParentID])
			}
		}
		e.addClause(lits...)
	}
}

// encodeHierarchyDownward implements spec.md §4.5 "For each parent →
// child-set partition, parent ⇒ (OR children)": for every child slot and
// every candidate of parent that projects into it, parent's candidate
// implies at least one of that slot's candidates attributed to it.
func (e *Encoder) encodeHierarchyDownward(parent *pdt.Node) {
	for _, cid := range parent.Children {
		c := e.A.Get(cid)
		for _, mid := range parent.Methods {
			var ors []int
			for _, cmid := range c.Methods {
				if containsInt(c.ParentsOfMethod[cmid], mid) {
					ors = append(ors, c.MethodVar[cmid])
				}
			}
			for _, caid := range c.Actions {
				if containsParentRef(c.ParentsOfAction[caid], pdt.ParentRef{ParentID: mid, Kind: pdt.ParentMethod}) {
					ors = append(ors, c.ActionVar[caid])
				}
			}
			if len(ors) == 0 {
				continue
			}
			e.addClause(append([]int{-parent.MethodVar[mid]}, ors...)...)
		}
		for _, aid := range parent.Actions {
			var ors []int
			for _, caid := range c.Actions {
				if containsParentRef(c.ParentsOfAction[caid], pdt.ParentRef{ParentID: aid, Kind: pdt.ParentAction}) {
					ors = append(ors, c.ActionVar[caid])
				}
			}
			if len(ors) == 0 {
				continue
			}
			e.addClause(append([]int{-parent.ActionVar[aid]}, ors...)...)
		}
	}
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsParentRef(s []pdt.ParentRef, v pdt.ParentRef) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// encodeAMOFor implements spec.md §4.5's hierarchy at-most-one: whichever
// of "per parent" or "over all candidates" produces fewer pairwise
// comparisons.
func (e *Encoder) encodeAMOFor(n *pdt.Node, label string, allVars []int) {
	if len(allVars) <= 1 {
		return
	}
	groups := groupCandidatesByParent(n)
	perParentCost := 0
	for _, g := range groups {
		perParentCost += pairCount(len(g))
	}
	globalCost := pairCount(len(allVars))
	newVar := func(name string) int { return e.newVar(name) }
	if len(groups) > 0 && perParentCost < globalCost {
		for i, g := range groups {
			for _, cl := range atMostOne(g, fmt.Sprintf("%s_parent%d", label, i), newVar) {
				e.addClause(cl...)
			}
		}
		return
	}
	for _, cl := range atMostOne(allVars, label, newVar) {
		e.addClause(cl...)
	}
}

type parentKey struct {
	kind pdt.ParentKind
	id   int
}

// groupCandidatesByParent partitions n's candidate variables by which
// single parent-candidate contributed them (spec.md §4.5 "at-most-one
// over... the children-of-each-parent").
func groupCandidatesByParent(n *pdt.Node) [][]int {
	groups := map[parentKey][]int{}
	var order []parentKey
	add := func(k parentKey, v int) {
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}
	for _, mid := range n.Methods {
		for _, pmid := range n.ParentsOfMethod[mid] {
			add(parentKey{pdt.ParentMethod, pmid}, n.MethodVar[mid])
		}
	}
	for _, aid := range n.Actions {
		for _, ref := range n.ParentsOfAction[aid] {
			add(parentKey{ref.Kind, ref.ParentID}, n.ActionVar[aid])
		}
	}
	out := make([][]int, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k])
	}
	return out
}

// encodePrimitiveness implements spec.md §4.5 "Each candidate action
// variable implies prim_var; each candidate method variable implies
// ¬prim_var."
func (e *Encoder) encodePrimitiveness(n *pdt.Node) {
	for _, aid := range n.Actions {
		e.addClause(-n.ActionVar[aid], n.PrimVar)
	}
	for _, mid := range n.Methods {
		e.addClause(-n.MethodVar[mid], -n.PrimVar)
	}
}

// encodeActionClausesFor implements spec.md §4.5 "Actions": precondition
// and (weakened) effect clauses for every candidate action of n.
func (e *Encoder) encodeActionClausesFor(n *pdt.Node) {
	np := e.In.NumPredicates()
	for _, aid := range n.Actions {
		av := n.ActionVar[aid]
		act := e.In.ActionByID(aid)
		act.Pre.ForEachSet(func(p int) {
			if p < np {
				e.addClause(-av, n.FactVar[p])
			}
		})
		for succID, rel := range n.PossibleNextNodes {
			if !relevant(rel) {
				continue
			}
			succ := e.A.Get(succID)
			nextVar := n.NextNodeVar[succID]
			act.AddEff.ForEachSet(func(p int) {
				if p < np {
					e.addClause(-av, -nextVar, n.LeafOverleafVar, succ.FactVar[p])
				}
			})
			act.DelEff.ForEachSet(func(p int) {
				if p < np {
					e.addClause(-av, -nextVar, n.LeafOverleafVar, -succ.FactVar[p])
				}
			})
		}
	}
}

// encodeMethodClausesFor implements spec.md §4.5 "Methods (when effect
// inference is enabled)": same shape as actions, using certified effects
// and inferred preconditions, guarded by leaf_overleaf_var.
func (e *Encoder) encodeMethodClausesFor(n *pdt.Node) {
	if !e.UseEffectInference {
		return
	}
	np := e.In.NumPredicates()
	for _, mid := range n.Methods {
		m := e.In.MethodByID(mid)
		mv := n.MethodVar[mid]
		if m.InferredPrec != nil {
			m.InferredPrec.ForEachSet(func(p int) {
				if p < np {
					e.addClause(-mv, n.LeafOverleafVar, n.FactVar[p])
				}
			})
		}
		for succID, rel := range n.PossibleNextNodes {
			if !relevant(rel) {
				continue
			}
			succ := e.A.Get(succID)
			nextVar := n.NextNodeVar[succID]
			if m.CertPos != nil {
				m.CertPos.ForEachSet(func(p int) {
					if p < np {
						e.addClause(-mv, -nextVar, n.LeafOverleafVar, succ.FactVar[p])
					}
				})
			}
			if m.CertNeg != nil {
				m.CertNeg.ForEachSet(func(p int) {
					if p < np {
						e.addClause(-mv, -nextVar, n.LeafOverleafVar, -succ.FactVar[p])
					}
				})
			}
		}
	}
}

// encodeFrameAxiomsFor implements spec.md §4.5 "Frame axioms": a
// predicate can only change truth value across a next-edge if something
// that can affect it fired.
func (e *Encoder) encodeFrameAxiomsFor(n *pdt.Node) {
	np := e.In.NumPredicates()
	for succID, rel := range n.PossibleNextNodes {
		if !relevant(rel) {
			continue
		}
		succ := e.A.Get(succID)
		nextVar := n.NextNodeVar[succID]
		for p := 0; p < np; p++ {
			deleters := e.candidatesAffecting(n, p, false)
			creators := e.candidatesAffecting(n, p, true)
			e.addClause(append([]int{-n.FactVar[p], succ.FactVar[p], -nextVar, n.LeafOverleafVar}, deleters...)...)
			e.addClause(append([]int{n.FactVar[p], -succ.FactVar[p], -nextVar, n.LeafOverleafVar}, creators...)...)
		}
	}
}

// candidatesAffecting returns the candidate variables of n that can add
// (create=true) or delete (create=false) predicate p, using exact effects
// for actions and possible effects for methods (the frame axiom needs an
// upper bound on what a method might do, not its certified floor).
func (e *Encoder) candidatesAffecting(n *pdt.Node, p int, create bool) []int {
	var out []int
	for _, aid := range n.Actions {
		act := e.In.ActionByID(aid)
		eff := act.DelEff
		if create {
			eff = act.AddEff
		}
		if eff.Test(p) {
			out = append(out, n.ActionVar[aid])
		}
	}
	for _, mid := range n.Methods {
		m := e.In.MethodByID(mid)
		if !e.UseEffectInference {
			out = append(out, n.MethodVar[mid])
			continue
		}
		b := m.PossNeg
		if create {
			b = m.PossPos
		}
		if b != nil && b.Test(p) {
			out = append(out, n.MethodVar[mid])
		}
	}
	return out
}

// encodeOrderingFor implements spec.md §4.5's basic PO clauses for n:
// next implies before, before's contrapositive against the reverse next,
// hard precedence from must_be_executed_before/after, and at-least/at-
// most-one predecessor (symmetrically, successor) for nodes that cannot
// be first (respectively last).
func (e *Encoder) encodeOrderingFor(n *pdt.Node) {
	for succID, rel := range n.PossibleNextNodes {
		if !relevant(rel) {
			continue
		}
		succ := e.A.Get(succID)
		nextVar := n.NextNodeVar[succID]
		bVar := e.beforeVar(n, succ)
		e.addClause(-nextVar, bVar)
		if revNext, ok := succ.NextNodeVar[n.ID]; ok {
			e.addClause(-bVar, -revNext)
		}
	}
	for _, beforeID := range n.MustBeExecutedBefore {
		e.addClause(e.beforeVar(n, e.A.Get(beforeID)))
	}
	for _, afterID := range n.MustBeExecutedAfter {
		e.addClause(e.beforeVar(e.A.Get(afterID), n))
	}

	if !n.CanBeFirstChild {
		var preds []int
		for predID := range n.PossiblePrevNodes {
			pred := e.A.Get(predID)
			if v, ok := pred.NextNodeVar[n.ID]; ok {
				preds = append(preds, v)
			}
		}
		e.encodeOnePredecessorOrSuccessor(preds, fmt.Sprintf("pred_node%d", n.ID))
	}
	if !n.CanBeLastChild {
		var succs []int
		for succID := range n.PossibleNextNodes {
			if v, ok := n.NextNodeVar[succID]; ok {
				succs = append(succs, v)
			}
		}
		e.encodeOnePredecessorOrSuccessor(succs, fmt.Sprintf("succ_node%d", n.ID))
	}
}

func (e *Encoder) encodeOnePredecessorOrSuccessor(vars []int, label string) {
	if len(vars) == 0 {
		return
	}
	e.addClause(vars...)
	newVar := func(name string) int { return e.newVar(name) }
	for _, cl := range atMostOne(vars, label, newVar) {
		e.addClause(cl...)
	}
}

// encodeOrderingTransitivity implements a bounded form of spec.md §4.5's
// transitivity clause, restricted to triples sharing the same sibling
// group (siblings is the newly-expanded layer n belongs to): for every
// other sibling a with a before-relation to n already allocated,
// next(n,k) propagates (a before n) to (a before k) and its negation,
// for every k n has a relevant next-edge to. Restricting to one sibling
// group keeps the clause count proportional to the layer rather than the
// whole tree, since PDT siblings are where the ordering DAG actually
// lives (spec.md §4.3's compressed DAG is built per sibling group).
func (e *Encoder) encodeOrderingTransitivity(n *pdt.Node, siblings []pdt.NodeID) {
	for _, aID := range siblings {
		if aID == n.ID {
			continue
		}
		a := e.A.Get(aID)
		bAN, ok := a.BeforeVar[n.ID]
		if !ok {
			continue
		}
		for kID, rel := range n.PossibleNextNodes {
			if !relevant(rel) {
				continue
			}
			if kID == aID {
				continue
			}
			k := e.A.Get(kID)
			nextVar := n.NextNodeVar[kID]
			bAK := e.beforeVar(a, k)
			e.addClause(-bAN, -nextVar, bAK)
			e.addClause(bAN, -nextVar, -bAK)
		}
	}
}

// encodeOrderingLift implements spec.md §4.5's "Hierarchy-ordering lift":
// if p1 has a next-edge to p2, at least one eligible last-child of p1
// must be before an eligible first-child of p2.
func (e *Encoder) encodeOrderingLift(p1 *pdt.Node) {
	if !e.PartialOrder {
		return
	}
	for p2ID, rel := range p1.PossibleNextNodes {
		if !relevant(rel) {
			continue
		}
		p2 := e.A.Get(p2ID)
		nextVar, ok := p1.NextNodeVar[p2ID]
		if !ok || len(p1.Children) == 0 || len(p2.Children) == 0 {
			continue
		}
		var ors []int
		for _, aID := range p1.Children {
			a := e.A.Get(aID)
			if !a.CanBeLastChild {
				continue
			}
			for _, bID := range p2.Children {
				b := e.A.Get(bID)
				if !b.CanBeFirstChild {
					continue
				}
				ors = append(ors, e.beforeVar(a, b))
			}
		}
		if len(ors) > 0 {
			e.addClause(append([]int{-nextVar}, ors...)...)
		}
	}
}

// encodeMutexesFor implements spec.md §4.5 "Mutexes": at-most-one over
// each mutex group's fact variables at this node.
func (e *Encoder) encodeMutexesFor(n *pdt.Node) {
	newVar := func(name string) int { return e.newVar(name) }
	for _, g := range e.In.MutexGroups {
		vars := make([]int, 0, len(g.Members))
		for _, p := range g.Members {
			if v, ok := n.FactVar[p]; ok {
				vars = append(vars, v)
			}
		}
		for _, cl := range atMostOne(vars, fmt.Sprintf("mutex%d_node%d", g.ID, n.ID), newVar) {
			e.addClause(cl...)
		}
	}
}
