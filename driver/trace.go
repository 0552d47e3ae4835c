package driver

import (
	"github.com/nihei9/fsmgen/fsm"
)

type Event struct {
	Role   string `json:"role"`
	Action string `json:"action"`
	P      int    `json:"p"`
}

// Trace is an Env that records every action it runs. Conditions and pop
// tests named in Conds evaluate to the mapped value; any other is false.
type Trace struct {
	Events []Event
	Conds  map[string]bool
}

func NewTrace(conds map[string]bool) *Trace {
	if conds == nil {
		conds = map[string]bool{}
	}
	return &Trace{
		Conds: conds,
	}
}

func (t *Trace) Exec(a *fsm.Action, role fsm.Role, p int) {
	t.Events = append(t.Events, Event{
		Role:   role.String(),
		Action: a.Name,
		P:      p,
	})
}

func (t *Trace) Test(a *fsm.Action, p int) bool {
	return t.Conds[a.Name]
}

// Names returns the names of the recorded actions in order.
func (t *Trace) Names() []string {
	names := make([]string, 0, len(t.Events))
	for _, e := range t.Events {
		names = append(names, e.Action)
	}
	return names
}
