package graph

import "testing"

func TestTarjanRecursiveCycle(t *testing.T) {
	// 0 -> 1 -> 0 (cycle), 1 -> 2 (2 is a sink callee)
	adj := [][]int{
		{1},
		{0, 2},
		{},
	}
	res := Tarjan(3, adj)
	if res.Component[0] != res.Component[1] {
		t.Errorf("0 and 1 should be in the same SCC")
	}
	if res.Component[2] == res.Component[0] {
		t.Errorf("2 should be its own SCC")
	}
	// reverse topo: callee (2) before caller (0,1's component)
	pos := map[int]int{}
	for i, c := range res.ReverseTopo {
		pos[c] = i
	}
	if pos[res.Component[2]] >= pos[res.Component[0]] {
		t.Errorf("expected sink component before cyclic component in reverse topo, got %v", res.ReverseTopo)
	}
}

func TestTarjanDAG(t *testing.T) {
	adj := [][]int{
		{1, 2},
		{3},
		{3},
		{},
	}
	res := Tarjan(4, adj)
	if len(res.Components) != 4 {
		t.Errorf("expected 4 singleton components in a DAG, got %d", len(res.Components))
	}
	pos := map[int]int{}
	for i, c := range res.ReverseTopo {
		pos[c] = i
	}
	if pos[res.Component[3]] >= pos[res.Component[1]] || pos[res.Component[3]] >= pos[res.Component[2]] {
		t.Errorf("node 3 (sink) must precede 1 and 2 in reverse topo order")
	}
	if pos[res.Component[1]] >= pos[res.Component[0]] {
		t.Errorf("node 1 must precede node 0 in reverse topo order")
	}
}
