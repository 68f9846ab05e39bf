package ground

import (
	"strings"
	"testing"
)

const foldFixture = `;; #state features
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
3
0
1 -1
-1
-1
0
-1
0 0 -1
-1
0
0 -1
0 1 -1
-1

;; initial state
1 -1

;; goal
0 -1

;; tasks (primitive and abstract)
4
0 __method_precondition_m0
0 a1
0 a2
1 root

;; initial abstract task
3

;; methods
1
m0
3 -1
0 1 2 -1
0 1 1 2 -1
`

func TestFoldMethodPreconditionActionsDropsFirstSubtaskAndShiftsOrdering(t *testing.T) {
	in, err := Parse(strings.NewReader(foldFixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := in.Methods[0]
	if len(m.Subtasks) != 3 {
		t.Fatalf("pre-fold subtask count = %d, want 3", len(m.Subtasks))
	}

	FoldMethodPreconditionActions(in)

	if len(m.Subtasks) != 2 {
		t.Fatalf("post-fold subtask count = %d, want 2", len(m.Subtasks))
	}
	if m.Subtasks[0].ActionID != 1 || m.Subtasks[1].ActionID != 2 {
		t.Fatalf("post-fold subtasks = %+v, want [a1, a2]", m.Subtasks)
	}
	if !m.ExplicitPrec.Test(1) {
		t.Fatal("ExplicitPrec should carry the folded action's precondition on predicate q (id 1)")
	}
	if len(m.Ordering) != 1 || m.Ordering[0] != (OrderingConstraint{Src: 0, Dst: 1}) {
		t.Fatalf("post-fold ordering = %+v, want [{0 1}]", m.Ordering)
	}
}

func TestFoldMethodPreconditionActionsSkipsMethodsWithoutThePrefix(t *testing.T) {
	in, err := Parse(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	before := len(in.Methods[0].Subtasks)

	FoldMethodPreconditionActions(in)

	if got := len(in.Methods[0].Subtasks); got != before {
		t.Fatalf("subtask count changed from %d to %d for a method with no precondition action", before, got)
	}
}
