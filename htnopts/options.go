// Package htnopts holds the Planner's configuration surface: one flat
// struct of recognized keys, mirroring spec.md §6 "options is a
// configuration with recognized keys" the way the teacher's cmd/gini
// keeps its flags as package-level vars rather than a nested config
// tree.
package htnopts

import (
	"io"
	"log"

	"github.com/gaspard-quenard/sibylsat-po/ground"
)

// Verifier checks a found plan against the grounded instance it was
// produced from, following original_source/src/algo/plan_manager.cpp's
// verifyPlan() (there, an external "--verify" invocation of the parser
// binary against the domain/problem/plan files). This package has no
// domain/problem file paths to hand such a tool, so a concrete Verifier
// is supplied by the caller rather than shelled out to automatically.
type Verifier interface {
	Verify(in *ground.Instance, planText string) error
}

// Options configures a single planner.Planner run (spec.md §6).
type Options struct {
	// PartialOrder enables PO expansion (package structure's compressed
	// DAG) and the ordering/before clauses, instead of the default
	// totally-ordered expansion.
	PartialOrder bool

	// UseMutexes emits one at-most-one clause per mutex group per node.
	// It does not control mutex refinement: package infer refines
	// possible effects by the mutex groups whenever UseEffectInference
	// is set, whatever this option's value.
	UseMutexes bool

	// UseEffectInference computes method certified/possible effects and
	// preconditions (package infer) and enables the method-precondition
	// and frame-axiom clauses that depend on them. When false, methods
	// get no precondition/effect clauses of their own.
	UseEffectInference bool

	// RemoveMethodPreconditionAction folds a method's synthetic
	// __method_precondition_<name> first-subtask action into the
	// method's own precondition set, removing the subtask
	// (SPEC_FULL.md §3 item 1).
	RemoveMethodPreconditionAction bool

	// MaxDepth caps the number of deepening layers find_plan() will
	// attempt before returning NoPlan.
	MaxDepth int

	// VerifyPlan, when true, asks Verifier to check a found plan before
	// it is returned as PlanFound. If true and Verifier is nil, FindPlan
	// logs a warning instead of silently skipping verification.
	VerifyPlan bool

	// Verifier is consulted when VerifyPlan is true. Nil means no
	// verifier is available.
	Verifier Verifier

	// Seed is accepted and stored but not read by packages planner or
	// satenc; no seed is passed to the gini solver, so it has no effect
	// on the search.
	Seed int64

	// PrintVariableNames, when true, makes the encoder write one
	// "PVN: <id> <name>" line per allocated variable to PVNWriter.
	PrintVariableNames bool

	// AllowRelaxation enables the leaf-overleaf relaxation retries in
	// the deepening loop (spec.md §4.6) instead of deepening
	// immediately on UNSAT.
	AllowRelaxation bool

	// Logger receives planner progress/diagnostic lines. Defaults to
	// log.Default() when nil.
	Logger *log.Logger

	// PVNWriter receives the PVN diagnostic stream when
	// PrintVariableNames is set. Ignored otherwise.
	PVNWriter io.Writer
}

// EffectiveLogger returns o.Logger, or the standard logger if unset.
func (o *Options) EffectiveLogger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// DefaultMaxDepth is used when Options.MaxDepth is zero, matching
// original_source/src/algo/planner.cpp's fallback depth cap.
const DefaultMaxDepth = 50

// EffectiveMaxDepth returns o.MaxDepth, or DefaultMaxDepth when unset.
func (o *Options) EffectiveMaxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
