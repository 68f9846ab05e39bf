// Package emit renders a resolved Plan Decomposition Tree (every node's
// ChosenOp* fields set by package planner from a SAT model) into the
// raw plan text format spec.md §6 describes, grounded on
// original_source/src/algo/plan_manager.cpp's processNode /
// buildPlanRawString / generateRawPlanString.
package emit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
)

// Model is the minimal read-back surface Render needs to linearize a
// partially-ordered plan: github.com/irifrance/gini/inter.Model (and so
// *gini.Gini) satisfies it directly.
type Model interface {
	Value(m z.Lit) bool
}

// filteredPrefixes and filteredNames name the synthetic actions spec.md
// §6 says must not appear in the final plan text ("Action lines whose
// names begin with __method_precondition or equal __noop are
// filtered").
var filteredPrefixes = []string{"__method_precondition"}

const filteredNoop = "__noop"

func isFiltered(name string) bool {
	if name == filteredNoop {
		return true
	}
	for _, pre := range filteredPrefixes {
		if strings.HasPrefix(name, pre) {
			return true
		}
	}
	return false
}

// planAction is one real, un-filtered primitive step.
type planAction struct {
	opID int
	name string
}

// decomposition is one "parent -> method child..." line.
type decomposition struct {
	opID       int
	parentName string
	methodName string
	childIDs   []int
}

// renderer accumulates op-id assignments during the tree walk.
type renderer struct {
	arena        *pdt.Arena
	in           *ground.Instance
	partialOrder bool
	model        Model

	nextID int
	// seenActionVar dedupes an action's repeat-expansion chain (a node
	// reused from its parent via satenc's offset-0 variable-reuse rule
	// shares the very same ActionVar entry; it must be counted once).
	seenActionVar map[int]int     // action var -> op id already assigned
	opIDOf        map[pdt.NodeID]int // every visited, chosen-valid node -> its op id

	actions []planAction
	decomps []decomposition
}

// Render walks the tree from rootID and produces the raw plan text plus
// the count of real (post-filter) primitive steps.
func Render(arena *pdt.Arena, rootID pdt.NodeID, in *ground.Instance, partialOrder bool, model Model) (string, int, error) {
	r := &renderer{
		arena:         arena,
		in:            in,
		partialOrder:  partialOrder,
		model:         model,
		seenActionVar: map[int]int{},
		opIDOf:        map[pdt.NodeID]int{},
	}
	rootOpID, err := r.walk(rootID)
	if err != nil {
		return "", 0, err
	}

	order := r.linearize(rootID)
	byID := map[int]planAction{}
	for _, a := range r.actions {
		byID[a.opID] = a
	}

	var b strings.Builder
	b.WriteString("==>\n")
	size := 0
	for _, id := range order {
		a, ok := byID[id]
		if !ok || isFiltered(a.name) {
			continue
		}
		fmt.Fprintf(&b, "%d %s\n", a.opID, a.name)
		size++
	}
	fmt.Fprintf(&b, "root %d\n", rootOpID)
	for i := len(r.decomps) - 1; i >= 0; i-- {
		d := r.decomps[i]
		fmt.Fprintf(&b, "%d %s -> %s", d.opID, d.parentName, d.methodName)
		for _, c := range d.childIDs {
			fmt.Fprintf(&b, " %d", c)
		}
		b.WriteString("\n")
	}
	b.WriteString("<==\n")
	return b.String(), size, nil
}

// walk assigns op ids depth-first and records every action/decomposition
// line; it returns the op id assigned to id (or to the earlier node in
// its repeat-expansion chain, if id is a dedup continuation).
func (r *renderer) walk(id pdt.NodeID) (int, error) {
	n := r.arena.Get(id)
	if !n.ChosenOpValid {
		return -1, nil
	}

	if n.ChosenIsAction {
		v := n.ActionVar[n.ChosenOp.ActionID]
		if opID, dup := r.seenActionVar[v]; dup {
			r.opIDOf[id] = opID
			for _, c := range n.Children {
				if _, err := r.walk(c); err != nil {
					return -1, err
				}
			}
			return opID, nil
		}
		opID := r.nextID
		r.nextID++
		r.seenActionVar[v] = opID
		r.opIDOf[id] = opID
		name := r.in.ActionByID(n.ChosenOp.ActionID).Name
		r.actions = append(r.actions, planAction{opID: opID, name: name})
		for _, c := range n.Children {
			if _, err := r.walk(c); err != nil {
				return -1, err
			}
		}
		return opID, nil
	}

	opID := r.nextID
	r.nextID++
	r.opIDOf[id] = opID
	method := r.in.MethodByID(n.ChosenMethodID)
	task := r.in.AbstractTaskByID(n.ChosenOp.TaskID)

	type subtaskChild struct {
		idx int
		id  pdt.NodeID
	}
	var realChildren []subtaskChild
	for _, c := range n.Children {
		child := r.arena.Get(c)
		if idx, ok := child.ParentMethodIdxToSubtaskIdx[n.ChosenMethodID]; ok {
			realChildren = append(realChildren, subtaskChild{idx: idx, id: c})
		}
	}
	sort.Slice(realChildren, func(i, j int) bool { return realChildren[i].idx < realChildren[j].idx })

	d := decomposition{opID: opID, methodName: method.Name}
	if task != nil {
		d.parentName = task.Name
	}
	for _, rc := range realChildren {
		childOpID, err := r.walk(rc.id)
		if err != nil {
			return -1, err
		}
		if childOpID >= 0 {
			d.childIDs = append(d.childIDs, childOpID)
		}
	}
	// Children outside the chosen method's own subtask set (blank
	// padding, or another method's losing candidates) are still walked
	// so any real content further down a repeat-expansion chain gets an
	// op id, but they never appear in this decomposition line.
	for _, c := range n.Children {
		child := r.arena.Get(c)
		if _, ok := child.ParentMethodIdxToSubtaskIdx[n.ChosenMethodID]; ok {
			continue
		}
		if _, err := r.walk(c); err != nil {
			return -1, err
		}
	}
	r.decomps = append(r.decomps, d)
	return opID, nil
}

// linearize produces a stable total order of op ids consistent with
// every sibling-level ordering decision the SAT model made, by
// recursively flattening: order each node's children by its own
// resolved sibling order (the model's next_node_var edges in PO mode;
// list position, already a fixed chain, in TO mode) and concatenate
// each child's own flattened sequence in that order (SPEC_FULL.md §3
// item 3, simplified here as a direct recursive composition instead of
// precomputed per-node base/end time steps).
func (r *renderer) linearize(id pdt.NodeID) []int {
	n := r.arena.Get(id)
	if !n.ChosenOpValid {
		return nil
	}
	var out []int
	if opID, ok := r.opIDOf[id]; ok && n.ChosenIsAction {
		out = append(out, opID)
	}
	for _, c := range r.orderedChildren(n) {
		out = append(out, r.linearize(c)...)
	}
	return out
}

// orderedChildren sorts n.Children by the model's resolved next-edges
// (PO mode) or returns them as-is (TO mode, already a fixed chain; the
// next_node_var there is unconstrained by any clause and so meaningless
// to query).
func (r *renderer) orderedChildren(n *pdt.Node) []pdt.NodeID {
	if !r.partialOrder || len(n.Children) <= 1 {
		return n.Children
	}

	inSet := make(map[pdt.NodeID]bool, len(n.Children))
	for _, c := range n.Children {
		inSet[c] = true
	}
	indeg := make(map[pdt.NodeID]int, len(n.Children))
	succs := make(map[pdt.NodeID][]pdt.NodeID, len(n.Children))
	for _, c := range n.Children {
		child := r.arena.Get(c)
		for next, v := range child.NextNodeVar {
			if !inSet[next] || !r.model.Value(z.Dimacs2Lit(v)) {
				continue
			}
			succs[c] = append(succs[c], next)
			indeg[next]++
		}
	}

	var queue, out []pdt.NodeID
	for _, c := range n.Children {
		if indeg[c] == 0 {
			queue = append(queue, c)
		}
	}
	visited := make(map[pdt.NodeID]bool, len(n.Children))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out = append(out, cur)
		for _, next := range succs[cur] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	// Any child the SAT-true edges didn't reach (shouldn't happen given
	// a consistent model) keeps its original relative position.
	for _, c := range n.Children {
		if !visited[c] {
			out = append(out, c)
		}
	}
	return out
}
