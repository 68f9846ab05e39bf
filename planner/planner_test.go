package planner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/irifrance/gini/inter"
	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/htnopts"
)

// fakeHandle is an immediately-SAT inter.Solve: enough to exercise
// FindPlan's control flow without a real solver.
type fakeHandle struct{}

func (fakeHandle) Test() (int, bool)         { return 1, true }
func (fakeHandle) Try(d time.Duration) int   { return 1 }
func (fakeHandle) Stop() int                 { return 1 }
func (fakeHandle) Pause() (res int, ok bool) { return 1, true }
func (fakeHandle) Unpause()                  {}
func (fakeHandle) Wait() int                 { return 1 }

// fakeSolver satisfies planner.Solver: it hands out variables, records
// nothing, and reports every solve as SAT with every variable true.
type fakeSolver struct {
	nextVar int
	maxVar  z.Var
}

func (f *fakeSolver) Lit() z.Lit {
	f.nextVar++
	f.maxVar = z.Var(f.nextVar)
	return z.Dimacs2Lit(f.nextVar)
}
func (f *fakeSolver) Add(m z.Lit)             {}
func (f *fakeSolver) Assume(m ...z.Lit)       {}
func (f *fakeSolver) Why(dst []z.Lit) []z.Lit { return dst }
func (f *fakeSolver) GoSolve() inter.Solve    { return fakeHandle{} }
func (f *fakeSolver) Value(m z.Lit) bool      { return true }
func (f *fakeSolver) MaxVar() z.Var           { return f.maxVar }

// fixture mirrors satenc's: root -> m0 = [a1, a2], a1 before a2.
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

func TestFindPlanTotallyOrderedReturnsPlanFoundOnImmediateSAT(t *testing.T) {
	in := mustParse(t)
	s := &fakeSolver{}
	p := New(s, in, htnopts.Options{MaxDepth: 5})

	res, err := p.FindPlan(context.Background())
	if err != nil {
		t.Fatalf("FindPlan: %v", err)
	}
	if res.Status != PlanFound {
		t.Fatalf("Status = %v, want PlanFound", res.Status)
	}
	if p.Stats.DepthReached != 1 {
		t.Fatalf("DepthReached = %d, want 1", p.Stats.DepthReached)
	}
	if p.Stats.SATCalls == 0 {
		t.Fatal("expected at least one SAT call")
	}
	if !strings.HasPrefix(res.Text, "==>\n") || !strings.HasSuffix(res.Text, "<==\n") {
		t.Fatalf("plan text missing ==>/<== markers: %q", res.Text)
	}
}

func TestFindPlanRespectsCancelledContext(t *testing.T) {
	in := mustParse(t)
	s := &fakeSolver{}
	p := New(s, in, htnopts.Options{MaxDepth: 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.FindPlan(ctx)
	if err != nil {
		t.Fatalf("FindPlan: %v", err)
	}
	if res.Status != Cancelled {
		t.Fatalf("Status = %v, want Cancelled", res.Status)
	}
}

func TestFindPlanPartiallyOrderedReturnsPlanFoundOnImmediateSAT(t *testing.T) {
	in := mustParse(t)
	s := &fakeSolver{}
	p := New(s, in, htnopts.Options{MaxDepth: 5, PartialOrder: true})

	res, err := p.FindPlan(context.Background())
	if err != nil {
		t.Fatalf("FindPlan: %v", err)
	}
	if res.Status != PlanFound {
		t.Fatalf("Status = %v, want PlanFound", res.Status)
	}
}
