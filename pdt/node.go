// Package pdt implements the Plan Decomposition Tree: the node shape
// shared by totally- and partially-ordered expansion, and the two layer
// expanders themselves (spec.md §3 "PDT Node", §4.4).
//
// The tree is modeled as an arena of nodes addressed by dense integer
// ids rather than nodes holding pointers to their parent/siblings
// (spec.md §9 "Design Notes — child nodes referring to siblings and
// ancestors"): ownership flows strictly downward (a node's Children
// slice), and every other relation (must-be-executed-before/after,
// possible-next/previous) is a read-only set of NodeID values into the
// same arena.
package pdt

import "github.com/gaspard-quenard/sibylsat-po/ground"

// NodeID addresses a Node within an Arena. The root is always id 0.
type NodeID int

// NoParent marks the root node's Parent field.
const NoParent NodeID = -1

// ParentKind tags whether a candidate operation's parent slot in
// ParentsOfMethod/ParentsOfAction was contributed by a method
// decomposing into this position, or by an action repeating into it
// because its own method had no further subtask here.
type ParentKind int

const (
	ParentMethod ParentKind = iota
	ParentAction
)

// ParentRef is one entry of Node.ParentsOfAction: which candidate of the
// parent node produced this child's action candidate, and how.
type ParentRef struct {
	ParentID int // method id or action id, depending on Kind
	Kind     ParentKind
}

// SiblingRelation classifies one entry of Node.PossibleNextNodes /
// PossiblePrevNodes (spec.md §3 "PDT Node").
type SiblingRelation int

const (
	SiblingOrdering SiblingRelation = iota
	SiblingNoOrdering
	NonSiblingOrdering
	NonSiblingNoOrdering
)

// Node is one position in the Plan Decomposition Tree.
type Node struct {
	ID                 NodeID
	Layer              int
	PositionIndex      int // this node's slot index within its parent's Children
	OffsetWithinParent int
	Name               string

	// Candidate operations at this position. A node with len(Methods)+
	// len(Actions) == 1 after SAT resolution is a committed position;
	// until then both sets may hold several candidates.
	Methods []int
	Actions []int

	ParentsOfMethod map[int][]int         // method id -> candidate parent method ids
	ParentsOfAction map[int][]ParentRef   // action id -> candidate parents
	ParentMethodIdxToSubtaskIdx map[int]int // parent method id -> subtask index realized here

	Parent   NodeID
	Children []NodeID

	MustBeExecutedBefore []NodeID
	MustBeExecutedAfter  []NodeID

	PossibleNextNodes map[NodeID]SiblingRelation
	PossiblePrevNodes map[NodeID]SiblingRelation

	CanBeFirstChild  bool
	CanBeLastChild   bool
	MustBeFirstChild bool

	// SAT variables, populated by package satenc once this node is
	// encoded. Zero means "not yet allocated".
	MethodVar       map[int]int
	ActionVar       map[int]int
	FactVar         map[int]int
	PrimVar         int
	LeafOverleafVar int
	NextNodeVar     map[NodeID]int
	BeforeVar       map[NodeID]int

	// ChosenOpValid, ChosenOp, ChosenIsAction and ChosenMethodID are
	// filled in by package planner after a SAT model is found.
	// ChosenTimeStep is not assigned by any package and stays zero;
	// package emit orders the plan from the next-node variables instead.
	ChosenOpValid  bool
	ChosenOp       ground.Subtask
	ChosenIsAction bool // ChosenOp.ActionID valid; false means ChosenOp.TaskID + the method in ChosenMethodID
	ChosenMethodID int
	ChosenTimeStep int
}

func newNode(id NodeID, parent NodeID, layer, positionIndex, offset int) *Node {
	return &Node{
		ID:                          id,
		Layer:                       layer,
		PositionIndex:               positionIndex,
		OffsetWithinParent:          offset,
		Parent:                      parent,
		ParentsOfMethod:             map[int][]int{},
		ParentsOfAction:             map[int][]ParentRef{},
		ParentMethodIdxToSubtaskIdx: map[int]int{},
		PossibleNextNodes:           map[NodeID]SiblingRelation{},
		PossiblePrevNodes:           map[NodeID]SiblingRelation{},
	}
}

// Arena owns every Node ever created during a planning run; nodes are
// never freed mid-run (spec.md §3 "Lifecycle").
type Arena struct {
	in    *ground.Instance
	nodes []*Node
}

// NewArena creates an empty arena over the given grounded instance.
func NewArena(in *ground.Instance) *Arena {
	return &Arena{in: in}
}

// Get resolves id to its Node.
func (a *Arena) Get(id NodeID) *Node { return a.nodes[id] }

// Len returns the number of nodes allocated so far.
func (a *Arena) Len() int { return len(a.nodes) }

func (a *Arena) alloc(parent NodeID, layer, positionIndex, offset int) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, newNode(id, parent, layer, positionIndex, offset))
	return id
}

// NewRoot builds the single root node: its candidate methods are the
// root task's decomposition methods (spec.md §4.6 "root ← PDT with one
// method = root decomposition method"; generalized here to however many
// the grounded instance actually declares — the SAT encoder's hierarchy
// clause, not this constructor, is what forces exactly one to hold).
func NewRoot(in *ground.Instance) (*Arena, NodeID) {
	a := NewArena(in)
	id := a.alloc(NoParent, 0, 0, 0)
	root := a.Get(id)
	root.Name = "root"
	root.CanBeFirstChild = true
	root.CanBeLastChild = true
	root.MustBeFirstChild = true
	t := in.AbstractTaskByID(in.RootTaskID)
	if t != nil {
		root.Methods = append(root.Methods, t.Methods...)
	}
	return a, id
}

// NewDetachedNode allocates a node with no parent and no position in any
// other node's Children, for positions that exist outside the strict
// decomposition tree (package satenc's goal node, spec.md §4.5).
func (a *Arena) NewDetachedNode() NodeID {
	return a.alloc(NoParent, -1, 0, 0)
}

// addMethodCandidate registers method id mid as a candidate of child,
// contributed by parent method parentMid, without duplicating either the
// candidate or the parent-link entry.
func addMethodCandidate(child *Node, mid, parentMid int) {
	if !containsInt(child.Methods, mid) {
		child.Methods = append(child.Methods, mid)
	}
	if !containsInt(child.ParentsOfMethod[mid], parentMid) {
		child.ParentsOfMethod[mid] = append(child.ParentsOfMethod[mid], parentMid)
	}
}

// addActionCandidate registers action id aid (possibly ground.Blank) as
// a candidate of child, contributed by the given parent reference.
func addActionCandidate(child *Node, aid int, ref ParentRef) {
	if !containsInt(child.Actions, aid) {
		child.Actions = append(child.Actions, aid)
	}
	refs := child.ParentsOfAction[aid]
	for _, r := range refs {
		if r == ref {
			return
		}
	}
	child.ParentsOfAction[aid] = append(refs, ref)
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// LeafDescendants returns, for id, every currently-childless node
// reachable from it (id itself if it has no children yet). Ancestor-
// assigned ordering constraints must be re-targeted at these nodes when
// the node they originally named gets expanded (spec.md §4.4 step 1,
// "taking the ancestor's leaf children recursively").
func (a *Arena) LeafDescendants(id NodeID) []NodeID {
	n := a.Get(id)
	if len(n.Children) == 0 {
		return []NodeID{id}
	}
	var out []NodeID
	for _, c := range n.Children {
		out = append(out, a.LeafDescendants(c)...)
	}
	return out
}
