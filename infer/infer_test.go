package infer

import (
	"strings"
	"testing"

	"github.com/gaspard-quenard/sibylsat-po/ground"
)

// fixture: a single method m0 = [a1, a2] ordered a1 before a2, where a1
// adds p and a2 requires p and adds q. No mutex groups.
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

func TestRunPossibleEffectsUnionLocalActions(t *testing.T) {
	in := mustParse(t)
	if err := Run(in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	m := in.Methods[0]
	if !m.PossPos.Test(0) || !m.PossPos.Test(1) {
		t.Errorf("possible positive effects should include p and q, got %v", m.PossPos.Slice())
	}
	if !m.PossNeg.IsEmpty() {
		t.Errorf("no action deletes anything, expected empty possible negatives, got %v", m.PossNeg.Slice())
	}
}

func TestRunCertifiedEffectsIncludePreservedPrecondition(t *testing.T) {
	in := mustParse(t)
	if err := Run(in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	m := in.Methods[0]
	// a1 adds p and nothing ever deletes p, so p is certainly true at the
	// end of the method even though only a2 "needs" it.
	if !m.CertPos.Test(0) {
		t.Errorf("expected p to be a certified positive effect of m0, got %v", m.CertPos.Slice())
	}
	if !m.CertPos.Test(1) {
		t.Errorf("expected q to be a certified positive effect of m0, got %v", m.CertPos.Slice())
	}
	if !m.CertNeg.IsEmpty() {
		t.Errorf("expected no certified negative effects, got %v", m.CertNeg.Slice())
	}
}

func TestRunPreconditionsCancelledByEarlierSubtask(t *testing.T) {
	in := mustParse(t)
	if err := Run(in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	m := in.Methods[0]
	// a2 requires p, but a1 (ordered before it) always establishes p, so
	// the method itself has no outward precondition.
	if !m.InferredPrec.IsEmpty() {
		t.Errorf("expected no inferred precondition for m0, got %v", m.InferredPrec.Slice())
	}
}

func TestRunMutexRefinementPrunesPossibleEffects(t *testing.T) {
	in := mustParse(t)
	// Declare p and q mutually exclusive after the fact, as if the
	// grounder had emitted a mutex group over them.
	in.MutexGroups = []ground.MutexGroup{{ID: 0, Section: ground.MutexStrict, Members: []int{0, 1}}}
	in.MutexesOf = map[int][]int{0: {0}, 1: {0}}

	if err := Run(in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	m := in.Methods[0]
	// p is certified positive, so q (its mutex partner) must be struck
	// from the possible-positive set.
	if m.PossPos.Test(1) {
		t.Errorf("expected q to be pruned from possible positives by the p/q mutex, got %v", m.PossPos.Slice())
	}
}
