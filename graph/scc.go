// Package graph implements Tarjan strongly-connected-component detection
// and DAG condensation, used to resolve mutual recursion in the method
// call graph before the effects inferencer runs its bottom-up fixed point
// (spec.md §4.2, §9 "Design Notes — cyclic method call graph": condense
// first, never recurse the cycle directly).
package graph

// SCCResult is the outcome of running Tarjan on a directed graph with n
// nodes and adjacency list adj.
type SCCResult struct {
	// Component[i] is the condensed-component id containing node i.
	Component []int
	// Components[c] lists the original node ids belonging to component c,
	// in Tarjan discovery order.
	Components [][]int
	// CondensedEdges[c] lists the distinct components c has an edge to
	// (c excluded), derived from every original edge crossing components.
	CondensedEdges [][]int
	// ReverseTopo lists component ids such that every edge c -> c' has c
	// appearing after c' (callees before callers, spec.md §4.2).
	ReverseTopo []int
}

// Tarjan computes strongly connected components of the graph with n
// nodes and the given adjacency list, then condenses it into a DAG and
// computes components in reverse topological order (sinks first).
func Tarjan(n int, adj [][]int) *SCCResult {
	t := &tarjanState{
		n:       n,
		adj:     adj,
		index:   make([]int, n),
		low:     make([]int, n),
		onStack: make([]bool, n),
		comp:    make([]int, n),
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for v := 0; v < n; v++ {
		if t.index[v] == -1 {
			t.strongConnect(v)
		}
	}

	res := &SCCResult{Component: t.comp, Components: t.components}
	res.CondensedEdges = condenseEdges(n, adj, t.comp, len(t.components))
	res.ReverseTopo = reverseTopoOfCondensation(res.CondensedEdges, len(t.components))
	return res
}

type tarjanState struct {
	n          int
	adj        [][]int
	index      []int
	low        []int
	onStack    []bool
	stack      []int
	counter    int
	comp       []int
	components [][]int
}

// strongConnect is the standard iterative-free (recursive) Tarjan walk.
// Method call graphs in practice are shallow enough that recursion depth
// is not a concern; the fixed-point computation downstream is what must
// avoid naive recursion over cycles (spec.md §9), not this one-time scan.
func (t *tarjanState) strongConnect(v int) {
	t.index[v] = t.counter
	t.low[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adj[v] {
		if t.index[w] == -1 {
			t.strongConnect(w)
			if t.low[w] < t.low[v] {
				t.low[v] = t.low[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.low[v] {
				t.low[v] = t.index[w]
			}
		}
	}

	if t.low[v] == t.index[v] {
		compID := len(t.components)
		var members []int
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			t.comp[w] = compID
			members = append(members, w)
			if w == v {
				break
			}
		}
		t.components = append(t.components, members)
	}
}

func condenseEdges(n int, adj [][]int, comp []int, numComp int) [][]int {
	seen := make([]map[int]bool, numComp)
	for i := range seen {
		seen[i] = map[int]bool{}
	}
	edges := make([][]int, numComp)
	for u := 0; u < n; u++ {
		cu := comp[u]
		for _, v := range adj[u] {
			cv := comp[v]
			if cu == cv || seen[cu][cv] {
				continue
			}
			seen[cu][cv] = true
			edges[cu] = append(edges[cu], cv)
		}
	}
	return edges
}

func reverseTopoOfCondensation(edges [][]int, numComp int) []int {
	indeg := make([]int, numComp)
	for _, es := range edges {
		for _, v := range es {
			indeg[v]++
		}
	}
	queue := make([]int, 0, numComp)
	for c := 0; c < numComp; c++ {
		if indeg[c] == 0 {
			queue = append(queue, c)
		}
	}
	topo := make([]int, 0, numComp)
	deg := append([]int(nil), indeg...)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		topo = append(topo, u)
		for _, v := range edges[u] {
			deg[v]--
			if deg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	// Reverse so callees (sinks) come first.
	rev := make([]int, len(topo))
	for i, c := range topo {
		rev[len(topo)-1-i] = c
	}
	return rev
}
