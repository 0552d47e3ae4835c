// Package fsmtest provides small machines covering the features code
// generation handles: keyed transitions, conditions, EOF handling and
// backtracking.
package fsmtest

import "github.com/nihei9/fsmgen/fsm"

// Scenario goes from the start state to a final state on 'a' and runs `emit`.
// Every other key is an error.
func Scenario() *fsm.Machine {
	m := fsm.NewMachine("scenario")
	emit := m.AddActionTable(m.AddAction("emit", "emit();"))
	t := m.AddTrans(fsm.NewTrans(1, emit))
	m.AddState(fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: t}))
	m.AddState(final())
	return m
}

// Digits accepts `[0-9]+` or the single key 'a'. The number state runs
// `enter` when entered and `leave` when left.
func Digits() *fsm.Machine {
	m := fsm.NewMachine("digits")
	digit := m.AddActionTable(m.AddAction("digit", "digit();"))
	alpha := m.AddActionTable(m.AddAction("alpha", "alpha();"))
	enter := m.AddActionTable(m.AddAction("enter", "enter();"))
	leave := m.AddActionTable(m.AddAction("leave", "leave();"))
	toNum := m.AddTrans(fsm.NewTrans(1, digit))
	toAlpha := m.AddTrans(fsm.NewTrans(2, alpha))
	m.AddState(fsm.NewState(
		fsm.Range{Low: '0', High: '9', Trans: toNum},
		fsm.Range{Low: 'a', High: 'a', Trans: toAlpha},
	))
	num := final(fsm.Range{Low: '0', High: '9', Trans: toNum})
	num.ToStateAction = enter
	num.FromStateAction = leave
	m.AddState(num)
	m.AddState(final())
	return m
}

// Conditional takes 'a' only when the condition `c` holds and runs `yes`.
func Conditional() *fsm.Machine {
	m := fsm.NewMachine("cond")
	c := m.AddAction("c", "ok")
	yes := m.AddActionTable(m.AddAction("yes", "yes();"))
	space := m.AddCondSpace(c)
	t := m.AddTrans(&fsm.Trans{
		CondSpace: space,
		Conds: []fsm.CondPair{
			{Key: 1, Target: 1, Action: yes},
		},
	})
	m.AddState(fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: t}))
	m.AddState(final())
	return m
}

// EOFTrans reads `a+` and accepts only at the end of input: the loop state
// runs `eof` and then takes an EOF transition running `fin`.
func EOFTrans() *fsm.Machine {
	m := fsm.NewMachine("eoft")
	step := m.AddActionTable(m.AddAction("step", "step();"))
	eof := m.AddActionTable(m.AddAction("eof", "eof();"))
	fin := m.AddActionTable(m.AddAction("fin", "fin();"))
	loop := m.AddTrans(fsm.NewTrans(1, step))
	done := m.AddTrans(fsm.NewTrans(2, fin))
	m.AddState(fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: loop}))
	s := fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: loop})
	s.EOFAction = eof
	s.EOFTrans = done
	m.AddState(s)
	m.AddState(final())
	return m
}

// EOFCond accepts 'a' but fails at the end of input unless `c` holds. The
// final state runs `done` at the end of input.
func EOFCond() *fsm.Machine {
	m := fsm.NewMachine("eofc")
	c := m.AddAction("c", "ok")
	done := m.AddActionTable(m.AddAction("done", "done();"))
	space := m.AddCondSpace(c)
	t := m.AddTrans(fsm.NewTrans(1, fsm.None))
	m.AddState(fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: t}))
	s := final()
	s.EOFCondSpace = space
	s.EOFCondKeys = []int64{1}
	s.EOFAction = done
	m.AddState(s)
	return m
}

// Nfa has one alternative at the start state: 'a' leads to a dead end, while
// the alternative reads 'b' and accepts. Pushing runs `push`; the
// alternative resumes only when `pt` holds.
func Nfa() *fsm.Machine {
	m := fsm.NewMachine("nfa")
	push := m.AddActionTable(m.AddAction("push", "push();"))
	pt := m.AddActionTable(m.AddAction("pt", "ok"))
	toDead := m.AddTrans(fsm.NewTrans(1, fsm.None))
	toFinal := m.AddTrans(fsm.NewTrans(3, fsm.None))
	s := fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: toDead})
	s.Nfa = []fsm.NfaTarg{
		{Target: 2, Push: push, PopTest: pt},
	}
	m.AddState(s)
	m.AddState(fsm.NewState())
	m.AddState(fsm.NewState(fsm.Range{Low: 'b', High: 'b', Trans: toFinal}))
	m.AddState(final())
	return m
}

// NfaChain nests alternatives: the start state's alternative reads 'b' and
// has an alternative of its own that reads 'c'. Both lead to the final
// state; 'a' from the start state is a dead end.
func NfaChain() *fsm.Machine {
	m := fsm.NewMachine("nfachain")
	push := m.AddActionTable(m.AddAction("push", "push();"))
	pt := m.AddActionTable(m.AddAction("pt", "ok"))
	toDead := m.AddTrans(fsm.NewTrans(1, fsm.None))
	toFinal := m.AddTrans(fsm.NewTrans(4, fsm.None))
	s := fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: toDead})
	s.Nfa = []fsm.NfaTarg{
		{Target: 2, Push: push, PopTest: pt},
	}
	m.AddState(s)
	m.AddState(fsm.NewState())
	s = fsm.NewState(fsm.Range{Low: 'b', High: 'b', Trans: toFinal})
	s.Nfa = []fsm.NfaTarg{
		{Target: 3, Push: fsm.None, PopTest: pt},
	}
	m.AddState(s)
	m.AddState(fsm.NewState(fsm.Range{Low: 'c', High: 'c', Trans: toFinal}))
	m.AddState(final())
	return m
}

// All returns every machine of the package by name.
func All() map[string]*fsm.Machine {
	return map[string]*fsm.Machine{
		"scenario": Scenario(),
		"digits":   Digits(),
		"cond":     Conditional(),
		"eoft":     EOFTrans(),
		"eofc":     EOFCond(),
		"nfa":      Nfa(),
		"nfachain": NfaChain(),
	}
}

func final(ranges ...fsm.Range) *fsm.State {
	s := fsm.NewState(ranges...)
	s.Final = true
	return s
}
