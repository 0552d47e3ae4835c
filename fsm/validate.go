package fsm

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// maxConds bounds the number of conditions in one space so that condition
// values fit comfortably in every host integer type.
const maxConds = 30

// Validate checks the properties table construction relies on. It does not
// re-validate the machine's semantics; those are the minimizer's business.
func (m *Machine) Validate() error {
	var err error
	if m.KeyMin > m.KeyMax {
		err = multierr.Append(err, fmt.Errorf("key_min (%v) must be less than or equal to key_max (%v)", m.KeyMin, m.KeyMax))
	}
	if len(m.States) == 0 {
		return multierr.Append(err, fmt.Errorf("a machine must have at least one state"))
	}
	if !m.validState(m.StartState) {
		err = multierr.Append(err, fmt.Errorf("start state %v is out of range", m.StartState))
	}
	if m.ErrorState != None && !m.validState(m.ErrorState) {
		err = multierr.Append(err, fmt.Errorf("error state %v is out of range", m.ErrorState))
	}
	for i, a := range m.ActionTables {
		if len(a.Actions) == 0 {
			err = multierr.Append(err, fmt.Errorf("action table #%v: an action table must have at least one action", i))
		}
		for _, act := range a.Actions {
			if act < 0 || act >= len(m.Actions) {
				err = multierr.Append(err, fmt.Errorf("action table #%v: action %v is out of range", i, act))
			}
		}
	}
	for i, c := range m.CondSpaces {
		if len(c.Conds) == 0 || len(c.Conds) > maxConds {
			err = multierr.Append(err, fmt.Errorf("cond space #%v: a cond space must have 1 to %v conditions", i, maxConds))
		}
		for _, act := range c.Conds {
			if act < 0 || act >= len(m.Actions) {
				err = multierr.Append(err, fmt.Errorf("cond space #%v: action %v is out of range", i, act))
			}
		}
	}
	for i, t := range m.Transitions {
		err = multierr.Append(err, m.validateTrans(i, t))
	}
	for i, s := range m.States {
		err = multierr.Append(err, m.validateState(i, s))
	}
	if cycle := m.nfaCycle(); cycle != nil {
		err = multierr.Append(err, &NfaCycleError{
			States: cycle,
		})
	}
	return err
}

// NfaCycleError reports NFA records that lead back to a state without
// consuming input. Resuming such an alternative pushes it again, so a scan
// over them never ends.
type NfaCycleError struct {
	States []int
}

func (e *NfaCycleError) Error() string {
	var b strings.Builder
	for _, s := range e.States {
		fmt.Fprintf(&b, "%v -> ", s)
	}
	fmt.Fprintf(&b, "%v", e.States[0])
	return fmt.Sprintf("nfa records form a cycle: %v", b.String())
}

// nfaCycle returns the states of a cycle among NFA records in record order,
// or nil when there is none. Out-of-range targets are ignored.
func (m *Machine) nfaCycle() []int {
	const (
		unvisited = iota
		onPath
		finished
	)
	color := make([]int, len(m.States))
	var path []int
	var visit func(s int) []int
	visit = func(s int) []int {
		color[s] = onPath
		path = append(path, s)
		for _, n := range m.States[s].Nfa {
			if !m.validState(n.Target) {
				continue
			}
			switch color[n.Target] {
			case onPath:
				for i, p := range path {
					if p == n.Target {
						return append([]int{}, path[i:]...)
					}
				}
			case unvisited:
				if c := visit(n.Target); c != nil {
					return c
				}
			}
		}
		path = path[:len(path)-1]
		color[s] = finished
		return nil
	}
	for s := range m.States {
		if color[s] != unvisited {
			continue
		}
		if c := visit(s); c != nil {
			return c
		}
	}
	return nil
}

func (m *Machine) validState(id int) bool {
	return id >= 0 && id < len(m.States)
}

func (m *Machine) validActionTable(id int) bool {
	return id == None || (id >= 0 && id < len(m.ActionTables))
}

func (m *Machine) validCondSpace(id int) bool {
	return id >= 0 && id < len(m.CondSpaces)
}

func (m *Machine) validateTrans(i int, t *Trans) error {
	var err error
	if t.CondSpace == None {
		if len(t.Conds) != 1 {
			err = multierr.Append(err, fmt.Errorf("transition #%v: a transition without a cond space must have exactly one pair", i))
		}
	} else if !m.validCondSpace(t.CondSpace) {
		err = multierr.Append(err, fmt.Errorf("transition #%v: cond space %v is out of range", i, t.CondSpace))
	} else if len(t.Conds) == 0 {
		err = multierr.Append(err, fmt.Errorf("transition #%v: a conditional transition must have at least one pair", i))
	}
	for j, p := range t.Conds {
		if j > 0 && p.Key <= t.Conds[j-1].Key {
			err = multierr.Append(err, fmt.Errorf("transition #%v: cond keys must be sorted and distinct", i))
		}
		if !m.validState(p.Target) {
			err = multierr.Append(err, fmt.Errorf("transition #%v: target %v is out of range", i, p.Target))
		}
		if !m.validActionTable(p.Action) {
			err = multierr.Append(err, fmt.Errorf("transition #%v: action table %v is out of range", i, p.Action))
		}
		if t.CondSpace != None && m.validCondSpace(t.CondSpace) {
			n := len(m.CondSpaces[t.CondSpace].Conds)
			if p.Key < 0 || p.Key >= int64(1)<<uint(n) {
				err = multierr.Append(err, fmt.Errorf("transition #%v: cond key %v is out of the cond space", i, p.Key))
			}
		}
	}
	return err
}

func (m *Machine) validateState(i int, s *State) error {
	var err error
	for j, r := range s.Ranges {
		if r.Low > r.High {
			err = multierr.Append(err, fmt.Errorf("state #%v: range #%v has low > high", i, j))
		}
		if r.Low < m.KeyMin || r.High > m.KeyMax {
			err = multierr.Append(err, fmt.Errorf("state #%v: range #%v is out of the alphabet", i, j))
		}
		if j > 0 && r.Low <= s.Ranges[j-1].High {
			err = multierr.Append(err, fmt.Errorf("state #%v: ranges must be sorted and disjoint", i))
		}
		if r.Trans < 0 || r.Trans >= len(m.Transitions) {
			err = multierr.Append(err, fmt.Errorf("state #%v: transition %v is out of range", i, r.Trans))
		}
	}
	for _, a := range []int{s.ToStateAction, s.FromStateAction, s.EOFAction} {
		if !m.validActionTable(a) {
			err = multierr.Append(err, fmt.Errorf("state #%v: action table %v is out of range", i, a))
		}
	}
	if s.EOFTrans != None && (s.EOFTrans < 0 || s.EOFTrans >= len(m.Transitions)) {
		err = multierr.Append(err, fmt.Errorf("state #%v: eof transition %v is out of range", i, s.EOFTrans))
	}
	if s.EOFCondSpace != None {
		if !m.validCondSpace(s.EOFCondSpace) {
			err = multierr.Append(err, fmt.Errorf("state #%v: eof cond space %v is out of range", i, s.EOFCondSpace))
		}
		for j, k := range s.EOFCondKeys {
			if j > 0 && k <= s.EOFCondKeys[j-1] {
				err = multierr.Append(err, fmt.Errorf("state #%v: eof cond keys must be sorted and distinct", i))
			}
		}
	} else if len(s.EOFCondKeys) > 0 {
		err = multierr.Append(err, fmt.Errorf("state #%v: eof cond keys need an eof cond space", i))
	}
	for j, n := range s.Nfa {
		if !m.validState(n.Target) {
			err = multierr.Append(err, fmt.Errorf("state #%v: nfa target #%v is out of range", i, j))
		}
		if !m.validActionTable(n.Push) || !m.validActionTable(n.PopTest) {
			err = multierr.Append(err, fmt.Errorf("state #%v: nfa target #%v refers to an unknown action table", i, j))
		}
	}
	return err
}
