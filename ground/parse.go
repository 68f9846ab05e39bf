package ground

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gaspard-quenard/sibylsat-po/bitset"
	"github.com/gaspard-quenard/sibylsat-po/htnerr"
)

// reader holds the line cursor over the grounded-instance text, following
// the same skip-until/parse-integer-list shape as
// original_source's HtnInstance line reader (adapted to bufio.Scanner).
type reader struct {
	sc      *bufio.Scanner
	lineIdx int
	peeked  *string
}

func newReader(r io.Reader) *reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	return &reader{sc: sc}
}

func (r *reader) next() (string, bool) {
	if r.peeked != nil {
		l := *r.peeked
		r.peeked = nil
		r.lineIdx++
		return l, true
	}
	if !r.sc.Scan() {
		return "", false
	}
	r.lineIdx++
	return r.sc.Text(), true
}

func (r *reader) peek() (string, bool) {
	if r.peeked == nil {
		if !r.sc.Scan() {
			return "", false
		}
		l := r.sc.Text()
		r.peeked = &l
	}
	return *r.peeked, true
}

func (r *reader) skipUntil(target string) error {
	for {
		l, ok := r.next()
		if !ok {
			return fmt.Errorf("section %q not found before end of input", target)
		}
		if l == target {
			return nil
		}
	}
}

// intLine parses a single -1-terminated, whitespace-separated integer
// list from the next line.
func (r *reader) intLine() ([]int, error) {
	l, ok := r.next()
	if !ok {
		return nil, fmt.Errorf("expected integer list, got EOF")
	}
	return parseDashOneList(l)
}

func parseDashOneList(line string) ([]int, error) {
	fields := strings.Fields(line)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", f, err)
		}
		if v == -1 {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInt(line string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(line))
}

// Parse reads a grounded problem instance from r in the line-oriented
// format of spec.md §6.
func Parse(r io.Reader) (*Instance, error) {
	rd := newReader(r)
	in := &Instance{}

	if err := parsePredicates(rd, in); err != nil {
		return nil, err
	}
	if err := parseMutexes(rd, in); err != nil {
		return nil, err
	}
	numActions, err := parseActions(rd, in)
	if err != nil {
		return nil, err
	}
	if err := parseInitGoal(rd, in); err != nil {
		return nil, err
	}
	totalTasks, err := parseTasks(rd, in, numActions)
	if err != nil {
		return nil, err
	}
	if err := parseRootTask(rd, in); err != nil {
		return nil, err
	}
	if err := parseMethods(rd, in, numActions, totalTasks); err != nil {
		return nil, err
	}

	buildSentinelActions(in)
	in.buildMutexIndex()
	return in, nil
}

func parsePredicates(rd *reader, in *Instance) error {
	if err := rd.skipUntil(";; #state features"); err != nil {
		return &htnerr.InputError{Where: "#state features", Msg: err.Error()}
	}
	l, ok := rd.next()
	if !ok {
		return &htnerr.InputError{Where: "#state features", Msg: "missing predicate count"}
	}
	n, err := parseInt(l)
	if err != nil {
		return &htnerr.InputError{Where: "#state features", Msg: err.Error()}
	}
	in.Predicates = make([]Predicate, 0, n)
	for i := 0; i < n; i++ {
		l, ok := rd.next()
		if !ok || l == "" {
			return &htnerr.InputError{Where: "#state features", Msg: "truncated predicate list"}
		}
		tag := ""
		if len(l) > 0 {
			tag = l[:1]
		}
		in.Predicates = append(in.Predicates, Predicate{ID: i, Name: l, PolarityTag: tag})
	}
	return nil
}

// parseMutexes always parses the Mutex Groups sections: they are a fixed
// part of the grounded-instance text regardless of options.UseMutexes,
// which instead controls only whether the encoder later consumes
// Instance.MutexGroups (spec.md §6).
func parseMutexes(rd *reader, in *Instance) error {
	if err := rd.skipUntil(";; Mutex Groups"); err != nil {
		return &htnerr.InputError{Where: "Mutex Groups", Msg: err.Error()}
	}
	nextID := 0
	for {
		l, ok := rd.peek()
		if !ok || l == "" || strings.HasPrefix(l, ";;") {
			break
		}
		rd.next()
		fields := strings.Fields(l)
		if len(fields) < 2 {
			continue
		}
		first, err1 := strconv.Atoi(fields[0])
		last, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil || first == last {
			continue
		}
		members := make([]int, 0, last-first+1)
		for i := first; i <= last; i++ {
			members = append(members, i)
		}
		in.MutexGroups = append(in.MutexGroups, MutexGroup{ID: nextID, Section: MutexRange, Members: members})
		nextID++
	}

	if err := rd.skipUntil(";; further strict Mutex Groups"); err != nil {
		return &htnerr.InputError{Where: "further strict Mutex Groups", Msg: err.Error()}
	}
	nextID = appendIntListGroups(rd, in, MutexStrict, nextID)

	if err := rd.skipUntil(";; further non strict Mutex Groups"); err != nil {
		return &htnerr.InputError{Where: "further non strict Mutex Groups", Msg: err.Error()}
	}
	appendIntListGroups(rd, in, MutexNonStrict, nextID)
	return nil
}

func appendIntListGroups(rd *reader, in *Instance, section MutexSection, nextID int) int {
	for {
		members, err := rd.intLine()
		if err != nil || len(members) <= 1 {
			break
		}
		in.MutexGroups = append(in.MutexGroups, MutexGroup{ID: nextID, Section: section, Members: members})
		nextID++
	}
	return nextID
}

func parseActions(rd *reader, in *Instance) (int, error) {
	if err := rd.skipUntil(";; Actions"); err != nil {
		return 0, &htnerr.InputError{Where: "Actions", Msg: err.Error()}
	}
	l, ok := rd.next()
	if !ok {
		return 0, &htnerr.InputError{Where: "Actions", Msg: "missing action count"}
	}
	n, err := parseInt(l)
	if err != nil {
		return 0, &htnerr.InputError{Where: "Actions", Msg: err.Error()}
	}
	in.Actions = make([]*Action, n)
	numPred := in.NumPredicates()
	for i := 0; i < n; i++ {
		costLine, ok := rd.next()
		if !ok {
			return 0, &htnerr.InputError{Where: fmt.Sprintf("action %d", i), Msg: "truncated action block"}
		}
		_ = costLine // cost is not modeled; the planner does not optimize (spec.md §1 Non-goals)

		preIDs, err := rd.intLine()
		if err != nil {
			return 0, &htnerr.InputError{Where: fmt.Sprintf("action %d", i), Msg: err.Error()}
		}
		addIDs, err := parseEffectBlock(rd, i)
		if err != nil {
			return 0, err
		}
		delIDs, err := parseEffectBlock(rd, i)
		if err != nil {
			return 0, err
		}

		a := &Action{
			ID:     i,
			Pre:    bitset.FromSlice(numPred, preIDs),
			AddEff: bitset.FromSlice(numPred, addIDs),
			DelEff: bitset.FromSlice(numPred, delIDs),
		}
		in.Actions[i] = a
	}
	return n, nil
}

// parseEffectBlock decodes a -1-terminated flat list of (ℓ, cond_1..cond_ℓ,
// eff) blocks. Only ℓ=0 is supported (spec.md §6); anything else is a
// fatal InputError since conditional effects are out of scope (spec.md
// §1 Non-goals).
func parseEffectBlock(rd *reader, actionIdx int) ([]int, error) {
	vals, err := rd.intLine()
	if err != nil {
		return nil, &htnerr.InputError{Where: fmt.Sprintf("action %d", actionIdx), Msg: err.Error()}
	}
	effects := make([]int, 0, len(vals)/2)
	for i := 0; i < len(vals); {
		l := vals[i]
		if l != 0 {
			return nil, &htnerr.InputError{
				Where: fmt.Sprintf("action %d", actionIdx),
				Msg:   "conditional effects are not supported",
			}
		}
		if i+1 >= len(vals) {
			return nil, &htnerr.InputError{Where: fmt.Sprintf("action %d", actionIdx), Msg: "truncated effect block"}
		}
		effects = append(effects, vals[i+1])
		i += 2
	}
	return effects, nil
}

func parseInitGoal(rd *reader, in *Instance) error {
	if err := rd.skipUntil(";; initial state"); err != nil {
		return &htnerr.InputError{Where: "initial state", Msg: err.Error()}
	}
	initIDs, err := rd.intLine()
	if err != nil {
		return &htnerr.InputError{Where: "initial state", Msg: err.Error()}
	}
	if err := rd.skipUntil(";; goal"); err != nil {
		return &htnerr.InputError{Where: "goal", Msg: err.Error()}
	}
	goalIDs, err := rd.intLine()
	if err != nil {
		return &htnerr.InputError{Where: "goal", Msg: err.Error()}
	}
	numPred := in.NumPredicates()
	in.InitState = bitset.FromSlice(numPred, initIDs)
	in.GoalState = bitset.FromSlice(numPred, goalIDs)
	return nil
}

// parseTasks reads the unified task numbering (spec.md §6): primitive
// tasks are assigned dense ids 0..numActions-1 (matching the Actions
// section's own ids one-for-one, in order), abstract tasks continue the
// same id space from numActions onward. Returns the total task count.
func parseTasks(rd *reader, in *Instance, numActions int) (int, error) {
	if err := rd.skipUntil(";; tasks (primitive and abstract)"); err != nil {
		return 0, &htnerr.InputError{Where: "tasks", Msg: err.Error()}
	}
	l, ok := rd.next()
	if !ok {
		return 0, &htnerr.InputError{Where: "tasks", Msg: "missing task count"}
	}
	n, err := parseInt(l)
	if err != nil {
		return 0, &htnerr.InputError{Where: "tasks", Msg: err.Error()}
	}
	in.AbstractTasks = make([]*AbstractTask, n)
	for taskID := 0; taskID < n; taskID++ {
		l, ok := rd.next()
		if !ok || l == "" {
			return 0, &htnerr.InputError{Where: "tasks", Msg: "truncated task list"}
		}
		isAbstract := len(l) > 0 && l[0] == '1'
		name := ""
		if len(l) > 2 {
			name = l[2:]
		}
		if isAbstract {
			in.AbstractTasks[taskID] = &AbstractTask{ID: taskID, Name: name}
		} else {
			if taskID >= numActions || in.Actions[taskID] == nil {
				return 0, &htnerr.InputError{Where: "tasks", Msg: fmt.Sprintf("primitive task %d has no matching action", taskID)}
			}
			in.Actions[taskID].Name = name
		}
	}
	return n, nil
}

func parseRootTask(rd *reader, in *Instance) error {
	if err := rd.skipUntil(";; initial abstract task"); err != nil {
		return &htnerr.InputError{Where: "initial abstract task", Msg: err.Error()}
	}
	l, ok := rd.next()
	if !ok {
		return &htnerr.InputError{Where: "initial abstract task", Msg: "missing root task id"}
	}
	id, err := parseInt(l)
	if err != nil {
		return &htnerr.InputError{Where: "initial abstract task", Msg: err.Error()}
	}
	in.RootTaskID = id
	return nil
}

func parseMethods(rd *reader, in *Instance, numActions, totalTasks int) error {
	if err := rd.skipUntil(";; methods"); err != nil {
		return &htnerr.InputError{Where: "methods", Msg: err.Error()}
	}
	l, ok := rd.next()
	if !ok {
		return &htnerr.InputError{Where: "methods", Msg: "missing method count"}
	}
	n, err := parseInt(l)
	if err != nil {
		return &htnerr.InputError{Where: "methods", Msg: err.Error()}
	}
	in.Methods = make([]*Method, 0, n)
	numPred := in.NumPredicates()

	for methodID := 0; methodID < n; methodID++ {
		name, ok := rd.next()
		if !ok {
			return &htnerr.InputError{Where: fmt.Sprintf("method %d", methodID), Msg: "truncated method block"}
		}
		atIDs, err := rd.intLine()
		if err != nil {
			return &htnerr.InputError{Where: name, Msg: err.Error()}
		}
		if len(atIDs) == 0 {
			return &htnerr.InputError{Where: name, Msg: "no abstract task id for method"}
		}
		if len(atIDs) > 1 {
			return &htnerr.InputError{Where: name, Msg: "multiple abstract task ids for method"}
		}
		parentTask := atIDs[0]

		subtaskIDs, err := rd.intLine()
		if err != nil {
			return &htnerr.InputError{Where: name, Msg: err.Error()}
		}
		orderRaw, err := rd.intLine()
		if err != nil {
			return &htnerr.InputError{Where: name, Msg: err.Error()}
		}
		if len(orderRaw)%2 != 0 {
			return &htnerr.InputError{Where: name, Msg: "ordering constraint list has odd length"}
		}

		subtasks := make([]Subtask, len(subtaskIDs))
		for i, tid := range subtaskIDs {
			if tid < 0 || tid >= totalTasks {
				return &htnerr.InputError{Where: name, Msg: fmt.Sprintf("subtask %d: task id %d out of range", i, tid)}
			}
			if tid < numActions {
				subtasks[i] = Subtask{Kind: SubtaskAction, ActionID: tid}
			} else {
				subtasks[i] = Subtask{Kind: SubtaskAbstract, TaskID: tid}
			}
		}

		ordering := make([]OrderingConstraint, 0, len(orderRaw)/2)
		for i := 0; i < len(orderRaw); i += 2 {
			u, v := orderRaw[i], orderRaw[i+1]
			if u < 0 || u >= len(subtasks) || v < 0 || v >= len(subtasks) {
				return &htnerr.InputError{Where: name, Msg: fmt.Sprintf("ordering constraint (%d,%d) out of range", u, v)}
			}
			if u == v {
				return htnerr.SelfLoopOrdering(methodID, u)
			}
			ordering = append(ordering, OrderingConstraint{Src: u, Dst: v})
		}

		m := &Method{
			ID:           methodID,
			Name:         name,
			ParentTask:   parentTask,
			Subtasks:     subtasks,
			Ordering:     ordering,
			ExplicitPrec: bitset.New(numPred),
		}
		in.Methods = append(in.Methods, m)

		if parentTask < 0 || parentTask >= len(in.AbstractTasks) || in.AbstractTasks[parentTask] == nil {
			return &htnerr.InputError{Where: name, Msg: fmt.Sprintf("parent task id %d is not abstract", parentTask)}
		}
		in.AbstractTasks[parentTask].Methods = append(in.AbstractTasks[parentTask].Methods, methodID)
	}
	return nil
}

func buildSentinelActions(in *Instance) {
	numPred := in.NumPredicates()

	in.BlankAction = &Action{ID: Blank, Name: "__blank__", Pre: bitset.New(numPred), AddEff: bitset.New(numPred), DelEff: bitset.New(numPred)}

	initAdd := in.InitState.Clone()
	initDel := bitset.New(numPred)
	for i := 0; i < numPred; i++ {
		if !in.InitState.Test(i) {
			initDel.Set(i)
		}
	}
	in.InitAction = &Action{ID: Init, Name: "__init__", Pre: bitset.New(numPred), AddEff: initAdd, DelEff: initDel}

	in.GoalAction = &Action{ID: Goal, Name: "__goal__", Pre: in.GoalState.Clone(), AddEff: bitset.New(numPred), DelEff: bitset.New(numPred)}
}
