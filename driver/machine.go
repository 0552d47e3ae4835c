package driver

import (
	"errors"
	"fmt"

	"github.com/nihei9/fsmgen/fsm"
)

// Env is the host side of an execution: it runs action code and evaluates
// conditions and pop tests.
type Env interface {
	Exec(a *fsm.Action, role fsm.Role, p int)
	Test(a *fsm.Action, p int) bool
}

type Result struct {
	// State is the final value of cs.
	State int `json:"state"`
	// P is the final input position.
	P        int  `json:"p"`
	Accepted bool `json:"accepted"`
	Error    bool `json:"error"`
	// NfaPops counts the alternatives taken off the backtracking stack.
	NfaPops int `json:"nfa_pops"`
	// MaxDepth is the deepest the backtracking stack got.
	MaxDepth   int `json:"max_depth"`
	Iterations int `json:"iterations"`
}

var ErrStepLimit = errors.New("step limit exceeded")

const defaultStepLimit = 1 << 20

// program is what a scan reads: either the emitted tables or the analyzed
// graph.
type program interface {
	start() int
	firstFinal() int
	errState() int
	keySigned() bool
	nfaDepth() int
	stateActions(role fsm.Role, cs int) []*fsm.Action
	// eofCond returns the EOF condition of a state and the condition values
	// that let the scan continue.
	eofCond(cs int) (space int, keys []int64, ok bool)
	eofTrans(cs int) (int, bool)
	locate(cs int, key int64) int
	transSpace(trans int) int
	// take returns the target and actions of a transition under the
	// condition value cpc.
	take(trans int, cpc int64) (int, []*fsm.Action)
	nfa(cs int) []nfaRec
	machine() *fsm.Machine
}

type nfaRec struct {
	target int
	push   []*fsm.Action
	pop    []*fsm.Action
}

// Machine runs a generated scanner in process with the same semantics as the
// emitted execution loop.
type Machine struct {
	prog      program
	noEnd     bool
	stepLimit int
}

type MachineOption func(mc *Machine) error

// WithStepLimit bounds the number of transitions one Exec may take,
// backtracking included.
func WithStepLimit(n int) MachineOption {
	return func(mc *Machine) error {
		if n <= 0 {
			return fmt.Errorf("the step limit must be positive: %v", n)
		}
		mc.stepLimit = n
		return nil
	}
}

func newMachine(prog program, noEnd bool, opts []MachineOption) (*Machine, error) {
	mc := &Machine{
		prog:      prog,
		noEnd:     noEnd,
		stepLimit: defaultStepLimit,
	}
	for _, opt := range opts {
		err := opt(mc)
		if err != nil {
			return nil, err
		}
	}
	return mc, nil
}

// Start returns the start state.
func (mc *Machine) Start() int {
	return mc.prog.start()
}

type scan struct {
	prog  program
	env   Env
	data  []byte
	noEnd bool
	atEOF bool
	limit int

	p     int
	cs    int
	stack *Stack
	res   *Result
}

// Exec scans data from the start state. When atEOF is set the end of data is
// also the end of input, so EOF actions, conditions and transitions apply.
func (mc *Machine) Exec(env Env, data []byte, atEOF bool) (*Result, error) {
	if env == nil {
		env = nopEnv{}
	}
	s := &scan{
		prog:  mc.prog,
		env:   env,
		data:  data,
		noEnd: mc.noEnd,
		atEOF: atEOF,
		limit: mc.stepLimit,
		cs:    mc.prog.start(),
		stack: NewStack(mc.prog.nfaDepth()),
		res:   &Result{},
	}
	err := s.run()
	if err != nil {
		return nil, err
	}
	s.res.State = s.cs
	s.res.P = s.p
	s.res.Error = s.isErr()
	s.res.Accepted = !s.res.Error && s.cs >= mc.prog.firstFinal()
	return s.res, nil
}

func (s *scan) isErr() bool {
	e := s.prog.errState()
	return e != fsm.None && s.cs == e
}

// run repeats the scan from popped alternatives until it ends in a final
// state or runs out of alternatives.
func (s *scan) run() error {
	repeat := true
	for {
		if repeat {
			err := s.scan()
			if err != nil {
				return err
			}
		}
		repeat = false
		if s.cs >= s.prog.firstFinal() {
			return nil
		}
		f, ok := s.stack.Pop()
		if !ok {
			return nil
		}
		s.res.NfaPops++
		s.p = f.P
		pass := true
		for _, a := range f.Pop {
			if !s.env.Test(a, s.p) {
				pass = false
			}
		}
		if pass {
			s.cs = f.State
			repeat = true
		}
	}
}

func (s *scan) exec(role fsm.Role, acts []*fsm.Action) {
	for _, a := range acts {
		s.env.Exec(a, role, s.p)
	}
}

func (s *scan) condValue(space int) int64 {
	if space == fsm.None {
		return 0
	}
	m := s.prog.machine()
	var cpc int64
	for i, c := range m.CondSpaces[space].Conds {
		if s.env.Test(m.Actions[c], s.p) {
			cpc += 1 << uint(i)
		}
	}
	return cpc
}

func (s *scan) key() int64 {
	if s.prog.keySigned() {
		return int64(int8(s.data[s.p]))
	}
	return int64(s.data[s.p])
}

func (s *scan) scan() error {
	pe := len(s.data)
	for {
		if s.isErr() {
			return nil
		}
		var trans int
		have := false
		if s.p == pe {
			if !s.noEnd && s.atEOF {
				if !s.eofConds() {
					return nil
				}
				s.exec(fsm.RoleEOF, s.prog.stateActions(fsm.RoleEOF, s.cs))
				if t, ok := s.prog.eofTrans(s.cs); ok {
					trans = t
					have = true
				}
			}
			if !have {
				return nil
			}
		}

		s.res.Iterations++
		if s.res.Iterations > s.limit {
			return fmt.Errorf("%w; limit: %v, position: %v", ErrStepLimit, s.limit, s.p)
		}

		if !have {
			s.exec(fsm.RoleFromState, s.prog.stateActions(fsm.RoleFromState, s.cs))
			s.push()
			trans = s.prog.locate(s.cs, s.key())
		}
		target, acts := s.prog.take(trans, s.condValue(s.prog.transSpace(trans)))
		s.cs = target
		s.exec(fsm.RoleTrans, acts)
		s.exec(fsm.RoleToState, s.prog.stateActions(fsm.RoleToState, s.cs))
		if s.isErr() || have {
			return nil
		}
		s.p++
	}
}

// eofConds evaluates the EOF condition of the current state. On failure the
// machine moves to the error state.
func (s *scan) eofConds() bool {
	space, keys, ok := s.prog.eofCond(s.cs)
	if !ok {
		return true
	}
	cpc := s.condValue(space)
	for _, k := range keys {
		if k == cpc {
			return true
		}
	}
	s.cs = s.prog.errState()
	return false
}

func (s *scan) push() {
	recs := s.prog.nfa(s.cs)
	if len(recs) == 0 || !s.stack.Fits(len(recs)) {
		return
	}
	for _, r := range recs {
		s.stack.Push(Frame{
			State: r.target,
			P:     s.p,
			Pop:   r.pop,
		})
		s.exec(fsm.RoleNfaPush, r.push)
	}
	if s.stack.Len() > s.res.MaxDepth {
		s.res.MaxDepth = s.stack.Len()
	}
}

type nopEnv struct{}

func (nopEnv) Exec(a *fsm.Action, role fsm.Role, p int) {}

func (nopEnv) Test(a *fsm.Action, p int) bool {
	return false
}
