// Package structure implements the Method Structure Grouper and the
// compressed-DAG builder used during PDT expansion (spec.md §4.3).
//
// Methods that share a subtask count and ordering skeleton are grouped
// under one dense structure id; at expansion time, multiple structures
// present at the same PDT position are merged into a compressed DAG so
// the expander creates one child per compressed position instead of one
// per (structure, subtask) pair.
package structure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gaspard-quenard/sibylsat-po/ground"
)

// Grouper assigns structure ids to methods in first-seen order, keyed by
// (subtask_count, sorted_ordering_constraints) (spec.md §3 "Method
// Structure").
type Grouper struct {
	nextID  int
	keyToID map[string]int
	details map[int]Details
}

// Details is the canonical shape shared by every method with a given
// structure id.
type Details struct {
	NumSubtasks int
	Ordering    []ground.OrderingConstraint // sorted, deduplicated
}

// NewGrouper creates an empty Grouper.
func NewGrouper() *Grouper {
	return &Grouper{keyToID: map[string]int{}, details: map[int]Details{}}
}

// CanonicalKey renders (n, ordering) as the string map key the spec
// defines: subtask count plus the lexicographically sorted ordering
// constraint list.
func CanonicalKey(n int, ordering []ground.OrderingConstraint) string {
	sorted := append([]ground.OrderingConstraint(nil), ordering...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Src != sorted[j].Src {
			return sorted[i].Src < sorted[j].Src
		}
		return sorted[i].Dst < sorted[j].Dst
	})
	// Deduplicate (duplicate constraints are idempotent, spec.md §4.1).
	dedup := sorted[:0:0]
	for i, oc := range sorted {
		if i == 0 || oc != sorted[i-1] {
			dedup = append(dedup, oc)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d|", n)
	for _, oc := range dedup {
		fmt.Fprintf(&b, "%d,%d;", oc.Src, oc.Dst)
	}
	return b.String()
}

// StructureIDFor assigns (or looks up) the structure id for m, writing it
// back into m.StructureID, and returns it.
func (g *Grouper) StructureIDFor(m *ground.Method) int {
	n := len(m.Subtasks)
	key := CanonicalKey(n, m.Ordering)
	id, ok := g.keyToID[key]
	if !ok {
		id = g.nextID
		g.nextID++
		g.keyToID[key] = id

		sorted := append([]ground.OrderingConstraint(nil), m.Ordering...)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Src != sorted[j].Src {
				return sorted[i].Src < sorted[j].Src
			}
			return sorted[i].Dst < sorted[j].Dst
		})
		dedup := sorted[:0:0]
		for i, oc := range sorted {
			if i == 0 || oc != sorted[i-1] {
				dedup = append(dedup, oc)
			}
		}
		g.details[id] = Details{NumSubtasks: n, Ordering: dedup}
	}
	m.StructureID = id
	return id
}

// DetailsOf returns the canonical shape for a structure id.
func (g *Grouper) DetailsOf(structureID int) Details {
	return g.details[structureID]
}

// NumStructures returns the number of distinct structures seen so far.
func (g *Grouper) NumStructures() int { return g.nextID }
