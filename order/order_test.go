package order

import (
	"testing"

	"github.com/gaspard-quenard/sibylsat-po/ground"
)

func method(n int, ordering ...ground.OrderingConstraint) *ground.Method {
	return &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, n), Ordering: ordering}
}

func TestAnalyzeChain(t *testing.T) {
	m := method(3,
		ground.OrderingConstraint{Src: 0, Dst: 1},
		ground.OrderingConstraint{Src: 1, Dst: 2},
	)
	info, err := Analyze(m)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !info.Successors[0].Test(1) || !info.Successors[0].Test(2) {
		t.Errorf("0 should transitively precede 1 and 2: %v", info.Successors[0].Slice())
	}
	if !info.Predecessors[2].Test(0) || !info.Predecessors[2].Test(1) {
		t.Errorf("2 should transitively follow 0 and 1: %v", info.Predecessors[2].Slice())
	}
	for i := 0; i < 3; i++ {
		if !info.Parallel[i].IsEmpty() {
			t.Errorf("chain has no parallel subtasks, got %v for %d", info.Parallel[i].Slice(), i)
		}
		if info.Successors[i].Test(i) {
			t.Errorf("subtask %d must not be its own successor", i)
		}
	}
}

func TestAnalyzeParallel(t *testing.T) {
	m := method(2) // no constraints: both parallel
	info, err := Analyze(m)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !info.Parallel[0].Test(1) || !info.Parallel[1].Test(0) {
		t.Errorf("expected 0 and 1 to be parallel")
	}
}

func TestAnalyzeDetectsCycle(t *testing.T) {
	m := method(2,
		ground.OrderingConstraint{Src: 0, Dst: 1},
		ground.OrderingConstraint{Src: 1, Dst: 0},
	)
	if _, err := Analyze(m); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestAnalyzeRejectsSelfLoop(t *testing.T) {
	m := method(1, ground.OrderingConstraint{Src: 0, Dst: 0})
	if _, err := Analyze(m); err == nil {
		t.Fatalf("expected self-loop error")
	}
}

func TestAnalyzeDuplicateConstraintsIdempotent(t *testing.T) {
	m := method(2,
		ground.OrderingConstraint{Src: 0, Dst: 1},
		ground.OrderingConstraint{Src: 0, Dst: 1},
	)
	info, err := Analyze(m)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !info.Successors[0].Test(1) {
		t.Errorf("expected 0 before 1")
	}
}
