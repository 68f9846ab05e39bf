// Package htnerr defines the error taxonomy the planner's components use
// to signal failure: malformed input, encoder/solver invariant violations,
// external tool failures, and depth exhaustion (spec.md §7).
package htnerr

import "fmt"

// InputError reports a malformed grounded instance: a cyclic method
// ordering, an out-of-range subtask index, a self-loop ordering
// constraint, unsupported conditional effects, or similar. Fatal,
// surfaced with a source location.
type InputError struct {
	Where string // file offset, method id, or similar locator
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error at %s: %s", e.Where, e.Msg)
}

// CyclicMethodOrdering reports a method whose subtask ordering
// constraints contain a cycle (spec.md §4.1).
func CyclicMethodOrdering(methodID int) *InputError {
	return &InputError{Where: fmt.Sprintf("method %d", methodID), Msg: "cyclic subtask ordering"}
}

// SelfLoopOrdering reports a method with a self-loop ordering constraint.
func SelfLoopOrdering(methodID, subtaskIdx int) *InputError {
	return &InputError{
		Where: fmt.Sprintf("method %d", methodID),
		Msg:   fmt.Sprintf("self-loop ordering constraint on subtask %d", subtaskIdx),
	}
}

// InvariantViolation reports an encoder or extraction bug: more than one
// selected op at a node after SAT, a missing parent during hierarchy
// encoding, an ordering constraint referencing a missing compressed node.
// Fatal; indicates a defect in this implementation rather than the input.
type InvariantViolation struct {
	Where string
	Msg   string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated at %s: %s", e.Where, e.Msg)
}

// ExternalToolError reports a failed child-process invocation of the
// grounder, verifier, or plan converter. Fatal for the current plan.
type ExternalToolError struct {
	Tool string
	Err  error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool %q failed: %s", e.Tool, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// DepthExhaustedError is returned when the deepening loop reaches
// Options.MaxDepth without finding a satisfying plan.
type DepthExhaustedError struct {
	MaxDepth int
}

func (e *DepthExhaustedError) Error() string {
	return fmt.Sprintf("no plan found within max depth %d", e.MaxDepth)
}
