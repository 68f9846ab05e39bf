package planner

// ResultStatus classifies how FindPlan concluded (spec.md §6
// "planner.find_plan() → { PlanFound, NoPlan, Cancelled, Error }").
type ResultStatus int

const (
	NoPlan ResultStatus = iota
	PlanFound
	Cancelled
	Error
)

func (s ResultStatus) String() string {
	switch s {
	case NoPlan:
		return "NoPlan"
	case PlanFound:
		return "PlanFound"
	case Cancelled:
		return "Cancelled"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Result is FindPlan's return value. Text and Size are only meaningful
// when Status == PlanFound. Err carries the causing error when
// Status == Error, and a *htnerr.DepthExhaustedError when
// Status == NoPlan (spec.md §7 "DepthExhausted is surfaced as NoPlan
// after the loop cap").
type Result struct {
	Status ResultStatus
	Text   string
	Size   int
	Err    error
}

// Stats tallies progress across a FindPlan run (SPEC_FULL.md §3
// "Statistics counters", grounded on original_source's Statistics
// class being threaded through the grounder, encoder, and planner).
type Stats struct {
	DepthReached        int
	ClausesEmitted      int
	VariablesAllocated  int
	SATCalls            int
	RelaxationsConsumed int
}
