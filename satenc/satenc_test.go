package satenc

import (
	"strings"
	"testing"

	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
	"github.com/gaspard-quenard/sibylsat-po/structure"
)

// fakeSolver is a minimal Solver: it hands out sequential variables and
// records every clause added, with no actual solving.
type fakeSolver struct {
	nextVar int
	clauses [][]int
	cur     []int
}

func (f *fakeSolver) Lit() z.Lit {
	f.nextVar++
	return z.Dimacs2Lit(f.nextVar)
}

func (f *fakeSolver) Add(m z.Lit) {
	if m == z.LitNull {
		f.clauses = append(f.clauses, f.cur)
		f.cur = nil
		return
	}
	f.cur = append(f.cur, m.Dimacs())
}

// fixture mirrors pdt's: root -> m0 = [a1, a2], a1 before a2.
const fixture = `;; #state features
2
+p
+q

;; Mutex Groups
0

;; further strict Mutex Groups
-1

;; further non strict Mutex Groups
-1

;; Actions
2
0
-1
0 0 -1
-1
0
0 -1
0 1 -1
-1

;; initial state
0 -1

;; goal
1 -1

;; tasks (primitive and abstract)
3
0 a1
0 a2
1 root

;; initial abstract task
2

;; methods
1
m0
2 -1
0 1 -1
0 1 -1
`

func mustParse(t *testing.T) *ground.Instance {
	in, err := ground.Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return in
}

func newTestGrouper(in *ground.Instance) *structure.Grouper {
	g := structure.NewGrouper()
	for _, m := range in.Methods {
		g.StructureIDFor(m)
	}
	return g
}

func TestEncodeFrontierTotallyOrderedChainIsSatisfiableShape(t *testing.T) {
	in := mustParse(t)
	arena, rootID := pdt.NewRoot(in)
	s := &fakeSolver{}
	enc := New(s, in, arena, false, false, false)

	enc.AllocateVariables([]pdt.NodeID{rootID})
	enc.EncodeRoot(rootID)
	enc.EncodeInitial(rootID)

	children := arena.ExpandTotallyOrdered(rootID)
	enc.AllocateVariables(children)
	enc.EncodeFrontier([]pdt.NodeID{rootID}, children)

	if len(s.clauses) == 0 {
		t.Fatal("expected at least one clause to be added")
	}
	c0 := arena.Get(children[0])
	if c0.ActionVar[c0.Actions[0]] == 0 {
		t.Fatal("action variable was never allocated")
	}
	if c0.PrimVar == 0 || c0.LeafOverleafVar == 0 {
		t.Fatal("prim_var / leaf_overleaf_var were never allocated")
	}
}

func TestEncodeFrontierPartiallyOrderedAllocatesBeforeVars(t *testing.T) {
	in := mustParse(t)
	arena, rootID := pdt.NewRoot(in)
	grouper := newTestGrouper(in)
	s := &fakeSolver{}
	enc := New(s, in, arena, true, false, false)

	enc.AllocateVariables([]pdt.NodeID{rootID})
	enc.EncodeRoot(rootID)
	enc.EncodeInitial(rootID)

	children, err := arena.ExpandPartiallyOrdered(rootID, grouper)
	if err != nil {
		t.Fatalf("ExpandPartiallyOrdered: %v", err)
	}
	enc.AllocateVariables(children)
	enc.EncodeFrontier([]pdt.NodeID{rootID}, children)

	c0 := arena.Get(children[0])
	if c0.BeforeVar == nil {
		t.Fatal("BeforeVar map not initialized in PO mode")
	}
	if len(c0.NextNodeVar) == 0 {
		t.Fatal("expected a next_node_var toward the sibling")
	}
}

func TestEnsureGoalNodeReusesPreconditionMachinery(t *testing.T) {
	in := mustParse(t)
	arena, rootID := pdt.NewRoot(in)
	s := &fakeSolver{}
	enc := New(s, in, arena, false, false, false)

	enc.AllocateVariables([]pdt.NodeID{rootID})
	children := arena.ExpandTotallyOrdered(rootID)
	enc.AllocateVariables(children)
	enc.EncodeFrontier([]pdt.NodeID{rootID}, children)

	goalID := pdt.NoParent
	gid := enc.EnsureGoalNode(&goalID)
	enc.AttachGoalFrontier(gid, children)
	enc.EncodeGoalNode(gid)

	goal := arena.Get(gid)
	if goal.ActionVar[ground.Goal] == 0 {
		t.Fatal("goal node's action variable was never allocated")
	}
	found := false
	for _, cl := range s.clauses {
		if len(cl) == 1 && cl[0] == goal.ActionVar[ground.Goal] {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a unit clause forcing the goal action variable")
	}
}

func TestAtMostOneNaiveBelowThreshold(t *testing.T) {
	vars := []int{1, 2, 3}
	cls := atMostOne(vars, "t", func(string) int { t.Fatal("should not allocate aux vars"); return 0 })
	if len(cls) != 3 {
		t.Fatalf("expected 3 pairwise clauses, got %d", len(cls))
	}
}

func TestAtMostOneBimanderAboveThreshold(t *testing.T) {
	vars := make([]int, 150)
	for i := range vars {
		vars[i] = i + 1
	}
	next := 1000
	newVar := func(string) int { next++; return next }
	cls := atMostOne(vars, "t", newVar)
	if len(cls) == 0 {
		t.Fatal("expected bimander clauses")
	}
}
