// Package order computes, for a single method, the transitive closure of
// its subtask precedence DAG: successors, predecessors, and the
// pairwise-incomparable ("parallel") relation (spec.md §4.1).
package order

import (
	"github.com/gaspard-quenard/sibylsat-po/bitset"
	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/htnerr"
)

// Info is the ordering analysis result for one method.
type Info struct {
	N            int
	Successors   []*bitset.Bitset // Successors[i]: transitive successors of subtask i
	Predecessors []*bitset.Bitset // Predecessors[i]: transitive predecessors of subtask i
	Parallel     []*bitset.Bitset // Parallel[i]: subtasks incomparable to i
}

// Analyze builds the Info for m. It fails with an *htnerr.InputError if
// the ordering constraints contain a cycle or a self-loop.
func Analyze(m *ground.Method) (*Info, error) {
	n := len(m.Subtasks)
	adj := make([][]int, n)
	radj := make([][]int, n)
	indeg := make([]int, n)

	seen := make(map[[2]int]bool, len(m.Ordering))
	for _, oc := range m.Ordering {
		if oc.Src == oc.Dst {
			return nil, htnerr.SelfLoopOrdering(m.ID, oc.Src)
		}
		key := [2]int{oc.Src, oc.Dst}
		if seen[key] {
			continue // duplicate constraints are idempotent (spec.md §4.1)
		}
		seen[key] = true
		adj[oc.Src] = append(adj[oc.Src], oc.Dst)
		radj[oc.Dst] = append(radj[oc.Dst], oc.Src)
		indeg[oc.Dst]++
	}

	if err := checkAcyclicKahn(n, adj, indeg, m.ID); err != nil {
		return nil, err
	}

	info := &Info{
		N:            n,
		Successors:   make([]*bitset.Bitset, n),
		Predecessors: make([]*bitset.Bitset, n),
		Parallel:     make([]*bitset.Bitset, n),
	}
	for i := 0; i < n; i++ {
		info.Successors[i] = reachable(n, adj, i)
		info.Predecessors[i] = reachable(n, radj, i)
	}
	for i := 0; i < n; i++ {
		p := bitset.New(n)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if !info.Successors[i].Test(j) && !info.Predecessors[i].Test(j) {
				p.Set(j)
			}
		}
		info.Parallel[i] = p
	}
	return info, nil
}

// checkAcyclicKahn runs Kahn's algorithm; if fewer than n nodes drain,
// the ordering graph has a cycle.
func checkAcyclicKahn(n int, adj [][]int, indeg []int, methodID int) error {
	deg := make([]int, n)
	copy(deg, indeg)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if deg[i] == 0 {
			queue = append(queue, i)
		}
	}
	drained := 0
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		drained++
		for _, v := range adj[u] {
			deg[v]--
			if deg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if drained != n {
		return htnerr.CyclicMethodOrdering(methodID)
	}
	return nil
}

// reachable runs a DFS from src over adj and returns the set of nodes
// reachable in one or more steps (src itself excluded).
func reachable(n int, adj [][]int, src int) *bitset.Bitset {
	visited := make([]bool, n)
	out := bitset.New(n)
	var stack []int
	stack = append(stack, adj[src]...)
	for _, v := range adj[src] {
		visited[v] = true
	}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out.Set(u)
		for _, v := range adj[u] {
			if !visited[v] {
				visited[v] = true
				stack = append(stack, v)
			}
		}
	}
	return out
}
