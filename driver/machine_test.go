package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/fsm/fsmtest"
	"github.com/nihei9/fsmgen/host"
	"github.com/stretchr/testify/require"
)

func TestMachine_Exec(t *testing.T) {
	tests := []struct {
		caption  string
		machine  *fsm.Machine
		src      string
		atEOF    bool
		conds    map[string]bool
		accepted bool
		isErr    bool
		p        int
		events   []string
		pops     int
	}{
		{
			caption:  "'a' runs emit once and ends in a final state",
			machine:  fsmtest.Scenario(),
			src:      "a",
			atEOF:    true,
			accepted: true,
			p:        1,
			events:   []string{"emit"},
		},
		{
			caption: "an unexpected key moves to the error state",
			machine: fsmtest.Scenario(),
			src:     "b",
			atEOF:   true,
			isErr:   true,
			p:       0,
		},
		{
			caption: "empty input stays in the start state",
			machine: fsmtest.Scenario(),
			src:     "",
			atEOF:   true,
			p:       0,
		},
		{
			caption:  "to-state and from-state actions surround the transition actions",
			machine:  fsmtest.Digits(),
			src:      "09",
			accepted: true,
			p:        2,
			events:   []string{"digit", "enter", "leave", "digit", "enter"},
		},
		{
			caption:  "a single key next to a range",
			machine:  fsmtest.Digits(),
			src:      "a",
			accepted: true,
			p:        1,
			events:   []string{"alpha"},
		},
		{
			caption: "a key outside every range after a match",
			machine: fsmtest.Digits(),
			src:     "0a",
			isErr:   true,
			p:       1,
			events:  []string{"digit", "enter", "leave"},
		},
		{
			caption:  "a condition that holds",
			machine:  fsmtest.Conditional(),
			src:      "a",
			conds:    map[string]bool{"c": true},
			accepted: true,
			p:        1,
			events:   []string{"yes"},
		},
		{
			caption: "a condition that fails",
			machine: fsmtest.Conditional(),
			src:     "a",
			isErr:   true,
			p:       0,
		},
		{
			caption:  "EOF actions run before the EOF transition",
			machine:  fsmtest.EOFTrans(),
			src:      "aa",
			atEOF:    true,
			accepted: true,
			p:        2,
			events:   []string{"step", "step", "eof", "fin"},
		},
		{
			caption: "the end of a buffer is not the end of input",
			machine: fsmtest.EOFTrans(),
			src:     "aa",
			p:       2,
			events:  []string{"step", "step"},
		},
		{
			caption:  "an EOF condition that holds",
			machine:  fsmtest.EOFCond(),
			src:      "a",
			atEOF:    true,
			conds:    map[string]bool{"c": true},
			accepted: true,
			p:        1,
			events:   []string{"done"},
		},
		{
			caption: "an EOF condition that fails",
			machine: fsmtest.EOFCond(),
			src:     "a",
			atEOF:   true,
			isErr:   true,
			p:       1,
		},
		{
			caption:  "a failed path resumes the pushed alternative",
			machine:  fsmtest.Nfa(),
			src:      "b",
			atEOF:    true,
			conds:    map[string]bool{"pt": true},
			accepted: true,
			p:        1,
			events:   []string{"push"},
			pops:     1,
		},
		{
			caption: "a failing pop test drops the alternative",
			machine: fsmtest.Nfa(),
			src:     "b",
			atEOF:   true,
			isErr:   true,
			p:       0,
			events:  []string{"push"},
			pops:    1,
		},
		{
			caption: "every alternative fails",
			machine: fsmtest.Nfa(),
			src:     "a",
			atEOF:   true,
			conds:   map[string]bool{"pt": true},
			isErr:   true,
			p:       0,
			events:  []string{"push"},
			pops:    1,
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %s", i, tt.caption), func(t *testing.T) {
			mc, err := NewGraphMachine(tt.machine)
			require.NoError(t, err)
			tr := NewTrace(tt.conds)
			res, err := mc.Exec(tr, []byte(tt.src), tt.atEOF)
			require.NoError(t, err)
			require.Equal(t, tt.accepted, res.Accepted)
			require.Equal(t, tt.isErr, res.Error)
			require.Equal(t, tt.p, res.P)
			if len(tt.events) == 0 {
				require.Empty(t, tr.Events)
			} else {
				require.Equal(t, tt.events, tr.Names())
			}
			require.Equal(t, tt.pops, res.NfaPops)
		})
	}
}

func TestMachine_Exec_NfaDepth(t *testing.T) {
	mc, err := NewGraphMachine(fsmtest.Nfa())
	require.NoError(t, err)
	res, err := mc.Exec(NewTrace(map[string]bool{"pt": true}), []byte("b"), true)
	require.NoError(t, err)
	require.Equal(t, 1, res.MaxDepth)
}

func TestMachine_Exec_StepLimit(t *testing.T) {
	mc, err := NewGraphMachine(fsmtest.Digits(), WithStepLimit(1))
	require.NoError(t, err)
	_, err = mc.Exec(NewTrace(nil), []byte("09"), true)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrStepLimit))

	res, err := mc.Exec(NewTrace(nil), []byte("0"), true)
	require.NoError(t, err)
	require.Equal(t, 1, res.Iterations)
}

// Every resumed alternative scans at most the rest of the input, and one
// push point leads to at most as many alternatives as the stack holds.
func TestMachine_Exec_BacktrackingBound(t *testing.T) {
	inputs := []string{"", "a", "b", "c", "x", "ab", "bc", "aaaa", "bbbb", "cccc"}
	conds := []map[string]bool{{}, {"pt": true}}
	tests := []struct {
		machine *fsm.Machine
		depth   int
	}{
		{
			machine: fsmtest.Nfa(),
			depth:   1,
		},
		{
			machine: fsmtest.NfaChain(),
			depth:   2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.machine.Name, func(t *testing.T) {
			mc, err := NewGraphMachine(tt.machine)
			require.NoError(t, err)
			require.Equal(t, tt.depth, mc.prog.nfaDepth())
			for _, src := range inputs {
				for _, c := range conds {
					for _, atEOF := range []bool{false, true} {
						res, err := mc.Exec(NewTrace(c), []byte(src), atEOF)
						require.NoError(t, err)
						require.LessOrEqual(t, res.Iterations, len(src)*(tt.depth+1), "input: %q, conds: %v, eof: %v", src, c, atEOF)
						require.LessOrEqual(t, res.MaxDepth, tt.depth, "input: %q, conds: %v, eof: %v", src, c, atEOF)
					}
				}
			}
		})
	}
}

func TestMachine_Exec_NfaChain(t *testing.T) {
	mc, err := NewGraphMachine(fsmtest.NfaChain())
	require.NoError(t, err)
	res, err := mc.Exec(NewTrace(map[string]bool{"pt": true}), []byte("c"), true)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, 2, res.NfaPops)
	require.Equal(t, 3, res.Iterations)
	require.Equal(t, 1, res.MaxDepth)
}

func TestNewGraphMachine_NfaCycle(t *testing.T) {
	m := fsm.NewMachine("cycle")
	pt := m.AddActionTable(m.AddAction("pt", "ok"))
	s := fsm.NewState()
	s.Nfa = []fsm.NfaTarg{
		{Target: 1, Push: fsm.None, PopTest: pt},
	}
	m.AddState(s)
	s = fsm.NewState()
	s.Nfa = []fsm.NfaTarg{
		{Target: 0, Push: fsm.None, PopTest: pt},
	}
	m.AddState(s)

	_, err := NewGraphMachine(m)
	require.Error(t, err)
	var cycleErr *fsm.NfaCycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Equal(t, []int{0, 1}, cycleErr.States)
}

func TestNewGraphMachine_Invalid(t *testing.T) {
	m := fsmtest.Scenario()
	m.StartState = 9
	_, err := NewGraphMachine(m)
	require.Error(t, err)
}

func TestWithStepLimit(t *testing.T) {
	_, err := NewGraphMachine(fsmtest.Scenario(), WithStepLimit(0))
	require.Error(t, err)
}

var equivalenceInputs = []string{"", "a", "b", "c", "aa", "ab", "ba", "bc", "0", "09", "0a", "9z", "aaa"}

var equivalenceConds = []map[string]bool{
	{},
	{"c": true},
	{"pt": true},
	{"c": true, "pt": true},
}

// The tables of every table-driven style, read back by the table machine,
// behave exactly like the analyzed graph.
func TestTableMachine_MatchesGraph(t *testing.T) {
	styles := []codegen.Style{codegen.BinaryLoop, codegen.BinaryExp, codegen.FlatLoop, codegen.FlatExp}
	hosts := []host.Capability{host.C, host.Go, host.Java}
	for name, m := range fsmtest.All() {
		graph, err := NewGraphMachine(m)
		require.NoError(t, err)
		for _, h := range hosts {
			for _, style := range styles {
				t.Run(fmt.Sprintf("%v %v %v", name, h.Name(), style), func(t *testing.T) {
					out, err := codegen.Generate(m, h, style)
					require.NoError(t, err)
					tab, err := NewTableMachine(out)
					require.NoError(t, err)
					for _, src := range equivalenceInputs {
						for _, conds := range equivalenceConds {
							for _, atEOF := range []bool{false, true} {
								gt := NewTrace(conds)
								expected, err := graph.Exec(gt, []byte(src), atEOF)
								require.NoError(t, err)
								tt := NewTrace(conds)
								actual, err := tab.Exec(tt, []byte(src), atEOF)
								require.NoError(t, err)
								require.Equal(t, expected, actual, "input: %q, conds: %v, eof: %v", src, conds, atEOF)
								require.Equal(t, gt.Events, tt.Events, "input: %q, conds: %v, eof: %v", src, conds, atEOF)
							}
						}
					}
				})
			}
		}
	}
}

func TestNewTableMachine_ControlFlowShapes(t *testing.T) {
	for _, style := range []codegen.Style{codegen.SwitchLoop, codegen.SwitchExp, codegen.IpGoto} {
		out, err := codegen.Generate(fsmtest.Scenario(), host.C, style)
		require.NoError(t, err)
		_, err = NewTableMachine(out)
		require.Error(t, err)
	}
}

func TestStack(t *testing.T) {
	s := NewStack(2)
	require.Equal(t, 2, s.Cap())
	require.True(t, s.Fits(2))
	require.False(t, s.Fits(3))
	require.True(t, s.Push(Frame{State: 1, P: 0}))
	require.True(t, s.Push(Frame{State: 2, P: 3}))
	require.False(t, s.Push(Frame{State: 3, P: 4}))
	require.Equal(t, 2, s.Len())

	f, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, 2, f.State)
	require.Equal(t, 3, f.P)
	f, ok = s.Pop()
	require.True(t, ok)
	require.Equal(t, 1, f.State)
	_, ok = s.Pop()
	require.False(t, ok)
	require.Equal(t, 0, s.Len())
}
