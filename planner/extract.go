package planner

import (
	"strconv"

	"github.com/irifrance/gini/z"

	"github.com/gaspard-quenard/sibylsat-po/emit"
	"github.com/gaspard-quenard/sibylsat-po/ground"
	"github.com/gaspard-quenard/sibylsat-po/htnerr"
	"github.com/gaspard-quenard/sibylsat-po/pdt"
)

// holds reports whether the model assigns the variable named by the
// signed Dimacs int d to true. Zero means "never allocated"; treated as
// false, since an un-encoded candidate can never have been chosen.
func (p *Planner) holds(d int) bool {
	if d == 0 {
		return false
	}
	return p.S.Value(z.Dimacs2Lit(d))
}

// extractChosen implements spec.md §4.5 "Extraction" / testable
// property 8: for every node, exactly one of its method_vars or
// action_vars holds in the model; record which, and recurse into its
// children.
func (p *Planner) extractChosen(id pdt.NodeID) error {
	n := p.Arena.Get(id)

	var chosenAction, sawAction = 0, false
	for _, aid := range n.Actions {
		if p.holds(n.ActionVar[aid]) {
			if sawAction {
				return &htnerr.InvariantViolation{Where: nodeLoc(id), Msg: "more than one action_var holds"}
			}
			chosenAction, sawAction = aid, true
		}
	}
	var chosenMethod, sawMethod = 0, false
	for _, mid := range n.Methods {
		if p.holds(n.MethodVar[mid]) {
			if sawMethod {
				return &htnerr.InvariantViolation{Where: nodeLoc(id), Msg: "more than one method_var holds"}
			}
			chosenMethod, sawMethod = mid, true
		}
	}
	if sawAction && sawMethod {
		return &htnerr.InvariantViolation{Where: nodeLoc(id), Msg: "both an action_var and a method_var hold"}
	}

	switch {
	case sawAction:
		n.ChosenIsAction = true
		n.ChosenOpValid = chosenAction != ground.Blank
		n.ChosenOp = ground.Subtask{Kind: ground.SubtaskAction, ActionID: chosenAction}
	case sawMethod:
		n.ChosenIsAction = false
		n.ChosenMethodID = chosenMethod
		n.ChosenOpValid = true
		if m := p.In.MethodByID(chosenMethod); m != nil {
			n.ChosenOp = ground.Subtask{Kind: ground.SubtaskAbstract, TaskID: m.ParentTask}
		}
	default:
		return &htnerr.InvariantViolation{Where: nodeLoc(id), Msg: "no candidate holds"}
	}

	for _, c := range n.Children {
		if err := p.extractChosen(c); err != nil {
			return err
		}
	}
	return nil
}

func nodeLoc(id pdt.NodeID) string {
	return "pdt node " + strconv.Itoa(int(id))
}

// extractAndEmit resolves the whole tree from a SAT model and renders
// the raw plan text (spec.md §6).
func (p *Planner) extractAndEmit() (string, int, error) {
	if err := p.extractChosen(p.rootID); err != nil {
		return "", 0, err
	}
	return emit.Render(p.Arena, p.rootID, p.In, p.Opts.PartialOrder, p.S)
}
