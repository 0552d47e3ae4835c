package driver

import (
	"fmt"

	"github.com/nihei9/fsmgen/fsm"
)

// graphProgram walks the analyzed machine directly.
type graphProgram struct {
	m *fsm.Machine
}

// NewGraphMachine runs m without generating tables. m is validated and
// analyzed on a copy; states are numbered as the code generator numbers
// them.
func NewGraphMachine(m *fsm.Machine, opts ...MachineOption) (*Machine, error) {
	err := m.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid machine: %w", err)
	}
	mach := m.Clone()
	_, err = mach.Analyze(fsm.AnalysisOptions{})
	if err != nil {
		return nil, err
	}
	return newMachine(&graphProgram{m: mach}, false, opts)
}

func (g *graphProgram) machine() *fsm.Machine {
	return g.m
}

func (g *graphProgram) start() int {
	return g.m.StartState
}

func (g *graphProgram) firstFinal() int {
	return g.m.FirstFinal
}

func (g *graphProgram) errState() int {
	return g.m.ErrorState
}

func (g *graphProgram) keySigned() bool {
	return g.m.KeyMin < 0
}

func (g *graphProgram) nfaDepth() int {
	return g.m.NfaDepth
}

func (g *graphProgram) list(id int) []*fsm.Action {
	if id == fsm.None {
		return nil
	}
	var acts []*fsm.Action
	for _, a := range g.m.ActionTables[id].Actions {
		acts = append(acts, g.m.Actions[a])
	}
	return acts
}

func (g *graphProgram) stateActions(role fsm.Role, cs int) []*fsm.Action {
	s := g.m.States[cs]
	switch role {
	case fsm.RoleToState:
		return g.list(s.ToStateAction)
	case fsm.RoleFromState:
		return g.list(s.FromStateAction)
	case fsm.RoleEOF:
		return g.list(s.EOFAction)
	}
	return nil
}

func (g *graphProgram) eofCond(cs int) (int, []int64, bool) {
	s := g.m.States[cs]
	if s.EOFCondSpace == fsm.None {
		return fsm.None, nil, false
	}
	return s.EOFCondSpace, s.EOFCondKeys, true
}

func (g *graphProgram) eofTrans(cs int) (int, bool) {
	t := g.m.States[cs].EOFTrans
	return t, t != fsm.None
}

func (g *graphProgram) locate(cs int, key int64) int {
	return g.m.TransAt(g.m.States[cs], key)
}

func (g *graphProgram) transSpace(trans int) int {
	return g.m.Transitions[trans].CondSpace
}

func (g *graphProgram) take(trans int, cpc int64) (int, []*fsm.Action) {
	for _, p := range g.m.Transitions[trans].Conds {
		if p.Key == cpc {
			return p.Target, g.list(p.Action)
		}
	}
	return g.m.ErrorState, nil
}

func (g *graphProgram) nfa(cs int) []nfaRec {
	var recs []nfaRec
	for _, n := range g.m.States[cs].Nfa {
		recs = append(recs, nfaRec{
			target: n.Target,
			push:   g.list(n.Push),
			pop:    g.list(n.PopTest),
		})
	}
	return recs
}
