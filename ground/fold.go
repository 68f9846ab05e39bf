package ground

import "strings"

const methodPreconditionActionPrefix = "__method_precondition_"

// FoldMethodPreconditionActions implements the `remove_method_precondition_action`
// option (spec.md §6, SPEC_FULL.md §3 item 1): for every method whose first
// subtask is a primitive action named __method_precondition_*, union that
// action's preconditions into the method's own ExplicitPrec and drop the
// subtask, shifting every later subtask index (and the ordering constraints
// that reference them) down by one. Grounded on
// original_source/src/data/htn_instance.cpp's removeMethodPrecAction pass.
func FoldMethodPreconditionActions(in *Instance) {
	for _, m := range in.Methods {
		if len(m.Subtasks) == 0 {
			continue
		}
		first := m.Subtasks[0]
		if first.Kind != SubtaskAction {
			continue
		}
		act := in.ActionByID(first.ActionID)
		if act == nil || !strings.HasPrefix(act.Name, methodPreconditionActionPrefix) {
			continue
		}

		m.ExplicitPrec.OrWith(act.Pre)
		m.Subtasks = m.Subtasks[1:]

		kept := make([]OrderingConstraint, 0, len(m.Ordering))
		for _, oc := range m.Ordering {
			if oc.Src == 0 || oc.Dst == 0 {
				continue
			}
			kept = append(kept, OrderingConstraint{Src: oc.Src - 1, Dst: oc.Dst - 1})
		}
		m.Ordering = kept
	}
}
