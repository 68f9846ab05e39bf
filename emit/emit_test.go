package emit

import (
	"strings"
	"testing"

	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
)

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

type noModel struct{}

func (noModel) Value(m z.Lit) bool { return false }

func TestRenderTotallyOrderedPlan(t *testing.T) {
	in := mustParse(t)
	arena, rootID := pdt.NewRoot(in)
	children := arena.ExpandTotallyOrdered(rootID)

	root := arena.Get(rootID)
	method := in.Methods[0]
	root.ChosenOpValid = true
	root.ChosenIsAction = false
	root.ChosenMethodID = method.ID
	root.ChosenOp = ground.Subtask{Kind: ground.SubtaskAbstract, TaskID: method.ParentTask}

	for i, cid := range children {
		c := arena.Get(cid)
		aid := c.Actions[0]
		c.ActionVar = map[int]int{aid: 100 + i}
		c.ChosenOpValid = true
		c.ChosenIsAction = true
		c.ChosenOp = ground.Subtask{Kind: ground.SubtaskAction, ActionID: aid}
	}

	text, size, err := Render(arena, rootID, in, false, noModel{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if size != 2 {
		t.Fatalf("size = %d, want 2", size)
	}
	if !strings.HasPrefix(text, "==>\n") || !strings.HasSuffix(text, "<==\n") {
		t.Fatalf("missing ==>/<== markers: %q", text)
	}
	if !strings.Contains(text, "1 a1\n") || !strings.Contains(text, "2 a2\n") {
		t.Fatalf("expected both action lines in order: %q", text)
	}
	if !strings.Contains(text, "root 0\n") {
		t.Fatalf("expected root line naming the root's own op id: %q", text)
	}
	if !strings.Contains(text, "root -> m0 1 2\n") {
		t.Fatalf("expected decomposition line listing both children in subtask order: %q", text)
	}
}

func TestRenderFiltersMethodPreconditionActions(t *testing.T) {
	in := mustParse(t)
	arena, rootID := pdt.NewRoot(in)
	children := arena.ExpandTotallyOrdered(rootID)

	root := arena.Get(rootID)
	method := in.Methods[0]
	root.ChosenOpValid = true
	root.ChosenIsAction = false
	root.ChosenMethodID = method.ID
	root.ChosenOp = ground.Subtask{Kind: ground.SubtaskAbstract, TaskID: method.ParentTask}

	names := []string{"__method_precondition_m0", "a2"}
	for i, cid := range children {
		c := arena.Get(cid)
		aid := c.Actions[0]
		c.ActionVar = map[int]int{aid: 100 + i}
		c.ChosenOpValid = true
		c.ChosenIsAction = true
		c.ChosenOp = ground.Subtask{Kind: ground.SubtaskAction, ActionID: aid}
		in.ActionByID(aid).Name = names[i]
	}

	text, size, err := Render(arena, rootID, in, false, noModel{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if size != 1 {
		t.Fatalf("size = %d, want 1 (one action filtered)", size)
	}
	if strings.Contains(text, "__method_precondition") {
		t.Fatalf("filtered action name leaked into plan text: %q", text)
	}
}
