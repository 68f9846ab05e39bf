package structure

import (
	"testing"

	"github.com/gaspard-quenard/sibylsat-po/ground"
)

func TestGrouperAssignsSameIDToMatchingShape(t *testing.T) {
	g := NewGrouper()
	m1 := &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, 2),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}}}
	m2 := &ground.Method{ID: 2, Subtasks: make([]ground.Subtask, 2),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}}}

	if g.StructureIDFor(m1) != g.StructureIDFor(m2) {
		t.Errorf("methods with identical shape should share a structure id")
	}
	if g.NumStructures() != 1 {
		t.Errorf("expected 1 structure, got %d", g.NumStructures())
	}
}

func TestGrouperDistinguishesOrdering(t *testing.T) {
	g := NewGrouper()
	m1 := &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, 2),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}}}
	m2 := &ground.Method{ID: 2, Subtasks: make([]ground.Subtask, 2)} // no ordering: parallel

	if g.StructureIDFor(m1) == g.StructureIDFor(m2) {
		t.Errorf("different ordering shapes must get distinct structure ids")
	}
}

func TestGrouperOrderingIsKeyOrderIndependent(t *testing.T) {
	g := NewGrouper()
	m1 := &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, 3),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}, {Src: 1, Dst: 2}}}
	m2 := &ground.Method{ID: 2, Subtasks: make([]ground.Subtask, 3),
		Ordering: []ground.OrderingConstraint{{Src: 1, Dst: 2}, {Src: 0, Dst: 1}}}

	if g.StructureIDFor(m1) != g.StructureIDFor(m2) {
		t.Errorf("constraint list order should not affect the canonical key")
	}
}

func TestGrouperWritesBackStructureID(t *testing.T) {
	g := NewGrouper()
	m := &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, 1)}
	id := g.StructureIDFor(m)
	if m.StructureID != id {
		t.Errorf("expected m.StructureID to be written back, got %d want %d", m.StructureID, id)
	}
}

func TestCompressDAGsMergesDisjointChains(t *testing.T) {
	g := NewGrouper()
	// Structure A: a single chain 0 -> 1.
	mA := &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, 2),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}}}
	sidA := g.StructureIDFor(mA)
	// Structure B: a three-subtask chain 0 -> 1 -> 2, a different shape
	// from A, so it gets a distinct structure id.
	mB := &ground.Method{ID: 2, Subtasks: make([]ground.Subtask, 3),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}, {Src: 1, Dst: 2}}}
	sidB := g.StructureIDFor(mB)

	dag, err := CompressDAGs(g, []int{sidA, sidB})
	if err != nil {
		t.Fatalf("CompressDAGs: %v", err)
	}
	if len(dag.Nodes) == 0 {
		t.Fatalf("expected a non-empty compressed DAG")
	}

	// Every original intra-structure edge must survive as a compressed
	// edge between the corresponding mapped nodes (spec.md §4.3 property).
	checkSurvives := func(sid int, src, dst int) {
		u, okU := dag.Mapping[[2]int{sid, src}]
		v, okV := dag.Mapping[[2]int{sid, dst}]
		if !okU || !okV {
			t.Fatalf("missing mapping for structure %d subtasks %d/%d", sid, src, dst)
		}
		found := false
		for _, e := range dag.Edges {
			if e.Src == u && e.Dst == v {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected compressed edge for structure %d: %d -> %d (mapped %d -> %d)", sid, src, dst, u, v)
		}
	}
	checkSurvives(sidA, 0, 1)
	checkSurvives(sidB, 0, 1)
	checkSurvives(sidB, 1, 2)
}

func TestCompressDAGsNeverMergesSharedStructureIndices(t *testing.T) {
	g := NewGrouper()
	m := &ground.Method{ID: 1, Subtasks: make([]ground.Subtask, 2),
		Ordering: []ground.OrderingConstraint{{Src: 0, Dst: 1}}}
	sid := g.StructureIDFor(m)

	dag, err := CompressDAGs(g, []int{sid})
	if err != nil {
		t.Fatalf("CompressDAGs: %v", err)
	}
	// A single structure's own two subtasks can never land on the same
	// compressed node (disjoint-support requirement).
	u := dag.Mapping[[2]int{sid, 0}]
	v := dag.Mapping[[2]int{sid, 1}]
	if u == v {
		t.Errorf("subtasks of the same structure must never collapse onto one compressed node")
	}
}
