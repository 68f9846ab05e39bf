package pdt

import (
	"sort"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/structure"
)

// ExpandTotallyOrdered implements spec.md §4.4 "Totally-ordered
// expansion": a node's child count is the max subtask count over its
// candidate methods; each method's i-th subtask fills the i-th child
// slot (or BLANK past its own length); each candidate action repeats
// into slot 0 and places BLANK elsewhere.
func (a *Arena) ExpandTotallyOrdered(id NodeID) []NodeID {
	node := a.Get(id)
	childCount := 0
	for _, mid := range node.Methods {
		if n := len(a.in.MethodByID(mid).Subtasks); n > childCount {
			childCount = n
		}
	}
	if childCount == 0 && len(node.Actions) > 0 {
		childCount = 1
	}

	children := make([]NodeID, childCount)
	for i := 0; i < childCount; i++ {
		children[i] = a.alloc(id, node.Layer+1, i, i)
	}

	for _, mid := range node.Methods {
		m := a.in.MethodByID(mid)
		for i := 0; i < childCount; i++ {
			child := a.Get(children[i])
			if i >= len(m.Subtasks) {
				addActionCandidate(child, ground.Blank, ParentRef{ParentID: mid, Kind: ParentMethod})
				continue
			}
			child.ParentMethodIdxToSubtaskIdx[mid] = i
			fillSubtask(a.in, child, m.Subtasks[i], mid)
		}
	}
	for _, aid := range node.Actions {
		for i := 0; i < childCount; i++ {
			child := a.Get(children[i])
			if i == 0 {
				addActionCandidate(child, aid, ParentRef{ParentID: aid, Kind: ParentAction})
			} else {
				addActionCandidate(child, ground.Blank, ParentRef{ParentID: aid, Kind: ParentAction})
			}
		}
	}

	wireTotallyOrderedSiblings(a, children)
	node.Children = children
	return children
}

// fillSubtask adds st's resolution (an action candidate, or every
// decomposition method of its abstract task) to child, attributed to
// parent method mid.
func fillSubtask(in *ground.Instance, child *Node, st ground.Subtask, mid int) {
	if st.Kind == ground.SubtaskAction {
		addActionCandidate(child, st.ActionID, ParentRef{ParentID: mid, Kind: ParentMethod})
		return
	}
	t := in.AbstractTaskByID(st.TaskID)
	if t == nil {
		return
	}
	for _, d := range t.Methods {
		addMethodCandidate(child, d, mid)
	}
}

// wireTotallyOrderedSiblings sets the fixed chain relation between
// consecutive slots of a totally-ordered expansion: slot i is always
// before slot i+1, there is no parallelism between siblings, and the
// endpoints get the can_be_first/last_child flags.
func wireTotallyOrderedSiblings(a *Arena, children []NodeID) {
	for i, id := range children {
		n := a.Get(id)
		n.CanBeFirstChild = i == 0
		n.CanBeLastChild = i == len(children)-1
		n.MustBeFirstChild = i == 0 && len(children) == 1
		if i+1 < len(children) {
			n.PossibleNextNodes[children[i+1]] = SiblingOrdering
			a.Get(children[i+1]).PossiblePrevNodes[id] = SiblingOrdering
		}
	}
}

// ExpandPartiallyOrdered implements spec.md §4.4 "Partially-ordered
// expansion (with before)": the compressed-DAG builder runs over the
// structure ids present among node's candidate methods, one child is
// created per compressed node, and candidates are filled in keyed by
// structure id via the compressed node's OriginalNodes map.
func (a *Arena) ExpandPartiallyOrdered(id NodeID, grouper *structure.Grouper) ([]NodeID, error) {
	node := a.Get(id)

	sidSet := map[int]bool{}
	for _, mid := range node.Methods {
		sidSet[a.in.MethodByID(mid).StructureID] = true
	}
	sids := make([]int, 0, len(sidSet))
	for sid := range sidSet {
		sids = append(sids, sid)
	}
	sort.Ints(sids)

	childCount := 1
	var dag *structure.CompressedDAG
	if len(sids) > 0 {
		var err error
		dag, err = structure.CompressDAGs(grouper, sids)
		if err != nil {
			return nil, err
		}
		childCount = len(dag.Nodes)
	}
	if childCount == 0 {
		childCount = 1
	}

	children := make([]NodeID, childCount)
	for i := 0; i < childCount; i++ {
		children[i] = a.alloc(id, node.Layer+1, i, i)
	}

	for _, mid := range node.Methods {
		m := a.in.MethodByID(mid)
		for i := 0; i < childCount; i++ {
			child := a.Get(children[i])
			var idx int
			var ok bool
			if dag != nil {
				idx, ok = dag.Nodes[i].OriginalNodes[m.StructureID]
			}
			if !ok {
				addActionCandidate(child, ground.Blank, ParentRef{ParentID: mid, Kind: ParentMethod})
				continue
			}
			child.ParentMethodIdxToSubtaskIdx[mid] = idx
			fillSubtask(a.in, child, m.Subtasks[idx], mid)
		}
	}
	// Action repetitions go to first children only (spec.md §4.4 step 5).
	for _, aid := range node.Actions {
		for i := 0; i < childCount; i++ {
			child := a.Get(children[i])
			if i == 0 {
				addActionCandidate(child, aid, ParentRef{ParentID: aid, Kind: ParentAction})
			} else {
				addActionCandidate(child, ground.Blank, ParentRef{ParentID: aid, Kind: ParentAction})
			}
		}
	}

	wirePartiallyOrderedSiblings(a, children, dag)
	propagateMustBeExecutedBefore(a, node, children)
	makeOrderingNoSibling(a, node, children)

	node.Children = children
	return children, nil
}

// wirePartiallyOrderedSiblings implements spec.md §4.4 steps 2-4: direct
// compressed edges become SIBLING_ORDERING, incomparable compressed
// nodes become SIBLING_NO_ORDERING, and can_be_first/last/must_be_first
// are derived from the presence of compressed predecessors/successors.
func wirePartiallyOrderedSiblings(a *Arena, children []NodeID, dag *structure.CompressedDAG) {
	n := len(children)
	if dag == nil {
		for _, id := range children {
			c := a.Get(id)
			c.CanBeFirstChild = true
			c.CanBeLastChild = true
			c.MustBeFirstChild = n == 1
		}
		return
	}

	hasPred := make([]bool, n)
	hasSucc := make([]bool, n)
	comparable := make([][]bool, n)
	for i := range comparable {
		comparable[i] = make([]bool, n)
	}
	for _, e := range dag.Edges {
		hasSucc[e.Src] = true
		hasPred[e.Dst] = true
		comparable[e.Src][e.Dst] = true
		comparable[e.Dst][e.Src] = true
		if !e.Transitive {
			a.Get(children[e.Src]).PossibleNextNodes[children[e.Dst]] = SiblingOrdering
			a.Get(children[e.Dst]).PossiblePrevNodes[children[e.Src]] = SiblingOrdering
		}
	}
	for i := 0; i < n; i++ {
		ci := a.Get(children[i])
		ci.CanBeFirstChild = !hasPred[i]
		ci.CanBeLastChild = !hasSucc[i]
		anyParallel := false
		for j := 0; j < n; j++ {
			if i == j || comparable[i][j] {
				continue
			}
			anyParallel = true
			ci.PossibleNextNodes[children[j]] = SiblingNoOrdering
		}
		ci.MustBeFirstChild = !hasPred[i] && !anyParallel
	}
}

// propagateMustBeExecutedBefore copies node's MustBeExecutedBefore and
// MustBeExecutedAfter entries, unchanged, onto every one of children.
// The entries are not re-targeted at leaf descendants of the nodes they
// name, and they are not filtered or intersected per child.
func propagateMustBeExecutedBefore(a *Arena, node *Node, children []NodeID) {
	if len(children) == 0 {
		return
	}
	for _, before := range node.MustBeExecutedBefore {
		for _, c := range children {
			a.Get(c).MustBeExecutedBefore = append(a.Get(c).MustBeExecutedBefore, before)
		}
	}
	for _, after := range node.MustBeExecutedAfter {
		for _, c := range children {
			a.Get(c).MustBeExecutedAfter = append(a.Get(c).MustBeExecutedAfter, after)
		}
	}
}

// makeOrderingNoSibling implements spec.md §4.4 step 6: if node has a
// SIBLING_ORDERING edge to another parent p2, only node's last children
// may precede p2's first children (NonSiblingOrdering); a
// SIBLING_NO_ORDERING edge lifts to NonSiblingNoOrdering across every
// pair of node's and p2's children.
func makeOrderingNoSibling(a *Arena, node *Node, children []NodeID) {
	for otherID, rel := range node.PossibleNextNodes {
		other := a.Get(otherID)
		if len(other.Children) == 0 {
			continue
		}
		for _, c := range children {
			cn := a.Get(c)
			isLast := cn.CanBeLastChild
			for _, d := range other.Children {
				dn := a.Get(d)
				switch rel {
				case SiblingOrdering:
					if isLast && dn.CanBeFirstChild {
						cn.PossibleNextNodes[d] = NonSiblingOrdering
						dn.PossiblePrevNodes[c] = NonSiblingOrdering
					}
				case SiblingNoOrdering:
					cn.PossibleNextNodes[d] = NonSiblingNoOrdering
					dn.PossiblePrevNodes[c] = NonSiblingNoOrdering
				}
			}
		}
	}
}
