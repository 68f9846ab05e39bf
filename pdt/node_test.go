package pdt

import (
	"strings"
	"testing"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/structure"
)

func newTestGrouper(in *ground.Instance) *structure.Grouper {
	g := structure.NewGrouper()
	for _, m := range in.Methods {
		g.StructureIDFor(m)
	}
	return g
}

// fixture mirrors ground's parse_test fixture: root -> m0 = [a1, a2]
// ordered a1 before a2.
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

func TestNewRootHasRootMethodCandidate(t *testing.T) {
	in := mustParse(t)
	arena, rootID := NewRoot(in)
	root := arena.Get(rootID)
	if len(root.Methods) != 1 || root.Methods[0] != 0 {
		t.Errorf("root candidates = %v, want [0]", root.Methods)
	}
	if !root.MustBeFirstChild {
		t.Errorf("root should be its own first child by convention")
	}
}

func TestExpandTotallyOrderedTwoActionChain(t *testing.T) {
	in := mustParse(t)
	arena, rootID := NewRoot(in)
	children := arena.ExpandTotallyOrdered(rootID)
	if len(children) != 2 {
		t.Fatalf("expected 2 children (a1, a2), got %d", len(children))
	}
	c0, c1 := arena.Get(children[0]), arena.Get(children[1])
	if len(c0.Actions) != 1 || c0.Actions[0] != 0 {
		t.Errorf("child 0 actions = %v, want [0] (a1)", c0.Actions)
	}
	if len(c1.Actions) != 1 || c1.Actions[0] != 1 {
		t.Errorf("child 1 actions = %v, want [1] (a2)", c1.Actions)
	}
	if c0.PossibleNextNodes[children[1]] != SiblingOrdering {
		t.Errorf("expected child 0 -> child 1 SIBLING_ORDERING")
	}
	if !c0.CanBeFirstChild || c1.CanBeFirstChild {
		t.Errorf("only child 0 can be first")
	}
	if !c1.CanBeLastChild || c0.CanBeLastChild {
		t.Errorf("only child 1 can be last")
	}
}

func TestExpandPartiallyOrderedSingleMethodMatchesOrdering(t *testing.T) {
	in := mustParse(t)
	arena, rootID := NewRoot(in)

	grouper := newTestGrouper(in)

	children, err := arena.ExpandPartiallyOrdered(rootID, grouper)
	if err != nil {
		t.Fatalf("ExpandPartiallyOrdered: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	c0, c1 := arena.Get(children[0]), arena.Get(children[1])
	if len(c0.Actions) != 1 || c0.Actions[0] != 0 {
		t.Errorf("child 0 actions = %v, want [0] (a1)", c0.Actions)
	}
	if len(c1.Actions) != 1 || c1.Actions[0] != 1 {
		t.Errorf("child 1 actions = %v, want [1] (a2)", c1.Actions)
	}
	if c0.PossibleNextNodes[children[1]] != SiblingOrdering {
		t.Errorf("expected direct SIBLING_ORDERING between the two children")
	}
	if !c0.CanBeFirstChild || c1.CanBeFirstChild {
		t.Errorf("only the predecessor-free child can be first")
	}
}

func TestLeafDescendantsOfUnexpandedNode(t *testing.T) {
	in := mustParse(t)
	arena, rootID := NewRoot(in)
	leaves := arena.LeafDescendants(rootID)
	if len(leaves) != 1 || leaves[0] != rootID {
		t.Errorf("unexpanded root should be its own only leaf descendant, got %v", leaves)
	}
}

func TestLeafDescendantsAfterExpansion(t *testing.T) {
	in := mustParse(t)
	arena, rootID := NewRoot(in)
	children := arena.ExpandTotallyOrdered(rootID)
	leaves := arena.LeafDescendants(rootID)
	if len(leaves) != len(children) {
		t.Fatalf("expected %d leaves after one expansion, got %d", len(children), len(leaves))
	}
}
