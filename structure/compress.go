package structure

import (
	"sort"

	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/order"
)

// CompressedNode is one position in a compressed DAG. It carries, for
// each structure id it represents, the subtask index that structure maps
// to this position. Two structures never share a subtask index on the
// same node unless they are literally the same subtask slot, since nodes
// are only merged across structures with disjoint support.
type CompressedNode struct {
	ID            int
	OriginalNodes map[int]int // structure id -> subtask index
	alive         bool
}

// CompressedEdge is a directed ordering edge between two compressed
// nodes. Transitive is true for edges added by the transitive-link phase
// (spec.md §4.3 step 3) rather than inherited directly from an original
// ordering constraint — the PDT expander needs this distinction to tell
// SIBLING_ORDERING apart from a transitively-implied pair (spec.md
// §4.4 step 4).
type CompressedEdge struct {
	Src, Dst   int
	Transitive bool
}

// CompressedDAG is the merged representation of every structure present
// at one PDT position (spec.md §4.3).
type CompressedDAG struct {
	Nodes []*CompressedNode
	Edges []CompressedEdge
	// Mapping looks up the compressed node id for a (structure id,
	// subtask index) pair.
	Mapping map[[2]int]int
}

type structureGraph struct {
	id   int
	n    int
	succ []bitsetLike // reuse order.Info.Successors per index
}

type bitsetLike interface {
	Test(int) bool
}

// CompressDAGs merges the per-structure subtask DAGs of structureIDs
// into one CompressedDAG, following the greedy merge-then-link-transitive
// procedure described in spec.md §4.3, grounded on
// original_source/src/util/dag_compressor.cpp's two-phase approach
// (merge disjoint-support nodes, then add transitive edges that don't
// introduce a new intra-structure ordering).
func CompressDAGs(g *Grouper, structureIDs []int) (*CompressedDAG, error) {
	graphs := make(map[int]*structureGraph, len(structureIDs))
	for _, sid := range structureIDs {
		det := g.DetailsOf(sid)
		tmp := &ground.Method{ID: sid, Subtasks: make([]ground.Subtask, det.NumSubtasks), Ordering: det.Ordering}
		info, err := order.Analyze(tmp)
		if err != nil {
			return nil, err
		}
		sg := &structureGraph{id: sid, n: det.NumSubtasks, succ: make([]bitsetLike, det.NumSubtasks)}
		for i := range info.Successors {
			sg.succ[i] = info.Successors[i]
		}
		graphs[sid] = sg
	}

	dag := &CompressedDAG{Mapping: map[[2]int]int{}}
	for _, sid := range structureIDs {
		sg := graphs[sid]
		for idx := 0; idx < sg.n; idx++ {
			id := len(dag.Nodes)
			n := &CompressedNode{ID: id, OriginalNodes: map[int]int{sid: idx}, alive: true}
			dag.Nodes = append(dag.Nodes, n)
			dag.Mapping[[2]int{sid, idx}] = id
		}
	}

	edgeSet := map[[2]int]bool{}
	addEdge := func(u, v int) {
		if u == v {
			return
		}
		edgeSet[[2]int{u, v}] = true
	}
	for _, sid := range structureIDs {
		det := g.DetailsOf(sid)
		for _, oc := range det.Ordering {
			u := dag.Mapping[[2]int{sid, oc.Src}]
			v := dag.Mapping[[2]int{sid, oc.Dst}]
			addEdge(u, v)
		}
	}

	precedes := func(n *CompressedNode, m *CompressedNode) bool {
		// true iff, for every structure present in both n and m, n's
		// subtask transitively precedes m's subtask in that structure's
		// own ordering (or the structure isn't shared, which is vacuously
		// fine).
		for sid, uIdx := range n.OriginalNodes {
			vIdx, ok := m.OriginalNodes[sid]
			if !ok {
				continue
			}
			sg := graphs[sid]
			if !sg.succ[uIdx].Test(vIdx) {
				return false
			}
		}
		return true
	}

	disjoint := func(n, m *CompressedNode) bool {
		for sid := range n.OriginalNodes {
			if _, ok := m.OriginalNodes[sid]; ok {
				return false
			}
		}
		return true
	}

	transitive := map[[2]int]bool{}

	// Greedy merge phase: repeatedly merge the largest-combined-size
	// disjoint-support pair whose rebuilt edge set still only claims
	// orderings each shared structure actually has.
	type candidate struct {
		a, b int
		size int
	}
	for {
		var candidates []candidate
		for i, a := range dag.Nodes {
			if !a.alive {
				continue
			}
			for j := i + 1; j < len(dag.Nodes); j++ {
				b := dag.Nodes[j]
				if !b.alive || !disjoint(a, b) {
					continue
				}
				candidates = append(candidates, candidate{a.ID, b.ID, len(a.OriginalNodes) + len(b.OriginalNodes)})
			}
		}
		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].size > candidates[j].size })

		merged := false
		for _, c := range candidates {
			a, b := dag.Nodes[c.a], dag.Nodes[c.b]
			if !a.alive || !b.alive {
				continue
			}
			if tryMerge(dag, edgeSet, transitive, a, b, precedes) {
				merged = true
				break
			}
		}
		if !merged {
			break
		}
	}

	// Transitive-link phase: add edges implied by reachability in the
	// current compressed graph, as long as no shared structure's actual
	// ordering is contradicted.
	addTransitiveEdges(dag, edgeSet, transitive, precedes)

	finalizeDAG(dag, edgeSet, transitive)
	return dag, nil
}

// tryMerge tentatively merges b into a, rebuilds the edges that touch
// either, and accepts the merge only if every resulting edge between the
// merged node and any other alive node respects each shared structure's
// real ordering. On rejection, a and b are left untouched.
func tryMerge(dag *CompressedDAG, edgeSet map[[2]int]bool, transitive map[[2]int]bool, a, b *CompressedNode, precedes func(*CompressedNode, *CompressedNode) bool) bool {
	merged := &CompressedNode{ID: a.ID, OriginalNodes: map[int]int{}, alive: true}
	for sid, idx := range a.OriginalNodes {
		merged.OriginalNodes[sid] = idx
	}
	for sid, idx := range b.OriginalNodes {
		merged.OriginalNodes[sid] = idx
	}

	// Rebuild edge endpoints referencing a or b to point at merged (a.ID),
	// dropping self-loops and validating against every other alive node.
	newEdges := map[[2]int]bool{}
	newTransitive := map[[2]int]bool{}
	for e := range edgeSet {
		u, v := e[0], e[1]
		if u == b.ID {
			u = a.ID
		}
		if v == b.ID {
			v = a.ID
		}
		if u == v {
			continue
		}
		newEdges[[2]int{u, v}] = true
		if transitive[e] {
			newTransitive[[2]int{u, v}] = true
		}
	}

	for _, other := range dag.Nodes {
		if !other.alive || other.ID == a.ID || other.ID == b.ID {
			continue
		}
		if newEdges[[2]int{merged.ID, other.ID}] {
			if !precedes(merged, other) {
				return false
			}
		}
		if newEdges[[2]int{other.ID, merged.ID}] {
			if !precedes(other, merged) {
				return false
			}
		}
	}

	a.OriginalNodes = merged.OriginalNodes
	b.alive = false
	for sid, idx := range a.OriginalNodes {
		dag.Mapping[[2]int{sid, idx}] = a.ID
	}
	for k := range edgeSet {
		delete(edgeSet, k)
	}
	for k := range newEdges {
		edgeSet[k] = true
	}
	for k := range transitive {
		delete(transitive, k)
	}
	for k := range newTransitive {
		transitive[k] = true
	}
	return true
}

func addTransitiveEdges(dag *CompressedDAG, edgeSet map[[2]int]bool, transitive map[[2]int]bool, precedes func(*CompressedNode, *CompressedNode) bool) {
	alive := make([]*CompressedNode, 0, len(dag.Nodes))
	for _, n := range dag.Nodes {
		if n.alive {
			alive = append(alive, n)
		}
	}
	adj := map[int][]int{}
	for e := range edgeSet {
		adj[e[0]] = append(adj[e[0]], e[1])
	}
	for _, u := range alive {
		reach := map[int]bool{}
		var stack []int
		stack = append(stack, adj[u.ID]...)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reach[v] {
				continue
			}
			reach[v] = true
			stack = append(stack, adj[v]...)
		}
		for v := range reach {
			if v == u.ID || edgeSet[[2]int{u.ID, v}] {
				continue
			}
			var vNode *CompressedNode
			for _, n := range alive {
				if n.ID == v {
					vNode = n
					break
				}
			}
			if vNode != nil && precedes(u, vNode) {
				key := [2]int{u.ID, v}
				edgeSet[key] = true
				transitive[key] = true
			}
		}
	}
}

// finalizeDAG drops dead nodes, renumbers ids densely in a deterministic
// order (topological, ties broken by old id), and rewrites edges and the
// mapping table accordingly.
func finalizeDAG(dag *CompressedDAG, edgeSet map[[2]int]bool, transitive map[[2]int]bool) {
	var alive []*CompressedNode
	for _, n := range dag.Nodes {
		if n.alive {
			alive = append(alive, n)
		}
	}
	adj := map[int][]int{}
	indeg := map[int]int{}
	for _, n := range alive {
		indeg[n.ID] = 0
	}
	for e := range edgeSet {
		adj[e[0]] = append(adj[e[0]], e[1])
		indeg[e[1]]++
	}
	for _, adjList := range adj {
		sort.Ints(adjList)
	}

	var queue []int
	for _, n := range alive {
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	sort.Ints(queue)
	var topo []int
	deg := map[int]int{}
	for k, v := range indeg {
		deg[k] = v
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		topo = append(topo, u)
		var next []int
		for _, v := range adj[u] {
			deg[v]--
			if deg[v] == 0 {
				next = append(next, v)
			}
		}
		sort.Ints(next)
		queue = append(queue, next...)
		sort.Ints(queue)
	}

	remap := map[int]int{}
	byID := map[int]*CompressedNode{}
	for _, n := range alive {
		byID[n.ID] = n
	}
	nodes := make([]*CompressedNode, 0, len(alive))
	for newID, oldID := range topo {
		remap[oldID] = newID
		n := byID[oldID]
		n.ID = newID
		nodes = append(nodes, n)
	}

	edges := make([]CompressedEdge, 0, len(edgeSet))
	for e := range edgeSet {
		edges = append(edges, CompressedEdge{Src: remap[e[0]], Dst: remap[e[1]], Transitive: transitive[e]})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Src != edges[j].Src {
			return edges[i].Src < edges[j].Src
		}
		return edges[i].Dst < edges[j].Dst
	})

	mapping := map[[2]int]int{}
	for _, n := range nodes {
		for sid, idx := range n.OriginalNodes {
			mapping[[2]int{sid, idx}] = n.ID
		}
	}

	dag.Nodes = nodes
	dag.Edges = edges
	dag.Mapping = mapping
}
