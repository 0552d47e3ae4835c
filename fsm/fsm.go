package fsm

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// None marks an absent reference. Every reference in a machine is an index
// into one of the machine's arenas.
const None = -1

type Role int

const (
	RoleToState Role = iota
	RoleFromState
	RoleEOF
	RoleTrans
	RoleNfaPush
	RoleNfaPopTest

	numRoles
)

func (r Role) String() string {
	switch r {
	case RoleToState:
		return "to-state"
	case RoleFromState:
		return "from-state"
	case RoleEOF:
		return "eof"
	case RoleTrans:
		return "trans"
	case RoleNfaPush:
		return "nfa-push"
	case RoleNfaPopTest:
		return "nfa-pop-test"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Roles lists every dispatch role in emission order.
var Roles = []Role{RoleToState, RoleFromState, RoleEOF, RoleTrans, RoleNfaPush, RoleNfaPopTest}

// Usage counts references per dispatch role.
type Usage [numRoles]int

func (u Usage) Refs(r Role) int {
	return u[r]
}

type Action struct {
	ID   int      `json:"-" yaml:"-"`
	Name string   `json:"name" yaml:"name"`
	Code []string `json:"code" yaml:"code"`

	Usage Usage `json:"-" yaml:"-"`
}

// ActionTable is an action list. States, transitions, EOF slots and NFA
// records share lists by index.
type ActionTable struct {
	ID      int   `json:"-" yaml:"-"`
	Actions []int `json:"actions" yaml:"actions"`

	// Location is the offset of the list inside the flattened actions array,
	// not counting the leading empty list.
	Location int   `json:"-" yaml:"-"`
	Usage    Usage `json:"-" yaml:"-"`
}

type CondSpace struct {
	ID    int   `json:"-" yaml:"-"`
	Conds []int `json:"conds" yaml:"conds"`
}

type CondPair struct {
	Key    int64 `json:"key" yaml:"key"`
	Target int   `json:"target" yaml:"target"`
	Action int   `json:"action" yaml:"action"`
}

func (p *CondPair) setDefaults() {
	p.Action = None
}

func (p *CondPair) UnmarshalJSON(b []byte) error {
	type plain CondPair
	v := plain{}
	(*CondPair)(&v).setDefaults()
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	*p = CondPair(v)
	return nil
}

func (p *CondPair) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain CondPair
	v := plain{}
	(*CondPair)(&v).setDefaults()
	err := unmarshal(&v)
	if err != nil {
		return err
	}
	*p = CondPair(v)
	return nil
}

// Trans is a transition. A transition without a condition space carries a
// single pair keyed by 0.
type Trans struct {
	ID        int        `json:"-" yaml:"-"`
	CondSpace int        `json:"cond_space" yaml:"cond_space"`
	Conds     []CondPair `json:"conds" yaml:"conds"`
}

func (t *Trans) setDefaults() {
	t.CondSpace = None
}

func (t *Trans) UnmarshalJSON(b []byte) error {
	type plain Trans
	v := plain{}
	(*Trans)(&v).setDefaults()
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	*t = Trans(v)
	return nil
}

func (t *Trans) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Trans
	v := plain{}
	(*Trans)(&v).setDefaults()
	err := unmarshal(&v)
	if err != nil {
		return err
	}
	*t = Trans(v)
	return nil
}

// NewTrans returns a transition without conditions.
func NewTrans(target, action int) *Trans {
	return &Trans{
		CondSpace: None,
		Conds: []CondPair{
			{
				Key:    0,
				Target: target,
				Action: action,
			},
		},
	}
}

type Range struct {
	Low   int64 `json:"low" yaml:"low"`
	High  int64 `json:"high" yaml:"high"`
	Trans int   `json:"trans" yaml:"trans"`
}

func (r Range) span() uint64 {
	return uint64(r.High-r.Low) + 1
}

type NfaTarg struct {
	Target  int `json:"target" yaml:"target"`
	Push    int `json:"push" yaml:"push"`
	PopTest int `json:"pop_test" yaml:"pop_test"`
}

func (n *NfaTarg) setDefaults() {
	n.Push = None
	n.PopTest = None
}

func (n *NfaTarg) UnmarshalJSON(b []byte) error {
	type plain NfaTarg
	v := plain{}
	(*NfaTarg)(&v).setDefaults()
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	*n = NfaTarg(v)
	return nil
}

func (n *NfaTarg) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain NfaTarg
	v := plain{}
	(*NfaTarg)(&v).setDefaults()
	err := unmarshal(&v)
	if err != nil {
		return err
	}
	*n = NfaTarg(v)
	return nil
}

type State struct {
	ID              int       `json:"-" yaml:"-"`
	Final           bool      `json:"final" yaml:"final"`
	Ranges          []Range   `json:"ranges" yaml:"ranges"`
	ToStateAction   int       `json:"to_state_action" yaml:"to_state_action"`
	FromStateAction int       `json:"from_state_action" yaml:"from_state_action"`
	EOFAction       int       `json:"eof_action" yaml:"eof_action"`
	EOFTrans        int       `json:"eof_trans" yaml:"eof_trans"`
	EOFCondSpace    int       `json:"eof_cond_space" yaml:"eof_cond_space"`
	EOFCondKeys     []int64   `json:"eof_cond_keys" yaml:"eof_cond_keys"`
	Nfa             []NfaTarg `json:"nfa" yaml:"nfa"`

	// The following fields are owned by the analysis passes.

	// Default is the transition taken when no explicit key matches.
	Default int `json:"-" yaml:"-"`
	// Singles and OutRanges are the explicit keyed transitions, excluding
	// the default.
	Singles   []Range `json:"-" yaml:"-"`
	OutRanges []Range `json:"-" yaml:"-"`
	// SingleTrans is set when the default is the only transition.
	SingleTrans bool `json:"-" yaml:"-"`
	// FlatLow and FlatHigh bound the character classes with non-default
	// transitions. An empty span is [1, 0].
	FlatLow  int `json:"-" yaml:"-"`
	FlatHigh int `json:"-" yaml:"-"`

	covered []Range
}

func (s *State) setDefaults() {
	s.ToStateAction = None
	s.FromStateAction = None
	s.EOFAction = None
	s.EOFTrans = None
	s.EOFCondSpace = None
	s.Default = None
}

func (s *State) UnmarshalJSON(b []byte) error {
	type plain State
	v := plain{}
	(*State)(&v).setDefaults()
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	*s = State(v)
	return nil
}

func (s *State) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain State
	v := plain{}
	(*State)(&v).setDefaults()
	err := unmarshal(&v)
	if err != nil {
		return err
	}
	*s = State(v)
	return nil
}

// NewState returns a non-final state without actions.
func NewState(ranges ...Range) *State {
	s := &State{
		Ranges: ranges,
	}
	s.setDefaults()
	return s
}

// Covered returns the state's ranges with gaps filled by the error
// transition. It is available after ChooseDefaultSpan.
func (s *State) Covered() []Range {
	return s.covered
}

// Machine is a reduced state machine. It is produced by an upstream
// minimizer; code generation only reads it, apart from the analysis fields
// and the state numbering.
type Machine struct {
	Name         string         `json:"name" yaml:"name"`
	KeyMin       int64          `json:"key_min" yaml:"key_min"`
	KeyMax       int64          `json:"key_max" yaml:"key_max"`
	Actions      []*Action      `json:"actions" yaml:"actions"`
	ActionTables []*ActionTable `json:"action_tables" yaml:"action_tables"`
	CondSpaces   []*CondSpace   `json:"cond_spaces" yaml:"cond_spaces"`
	Transitions  []*Trans       `json:"transitions" yaml:"transitions"`
	States       []*State       `json:"states" yaml:"states"`
	StartState   int            `json:"start_state" yaml:"start_state"`
	ErrorState   int            `json:"error_state" yaml:"error_state"`

	// Analysis results.
	FirstFinal int     `json:"-" yaml:"-"`
	ErrTrans   int     `json:"-" yaml:"-"`
	Classes    []int   `json:"-" yaml:"-"`
	ClassKeys  []int64 `json:"-" yaml:"-"`
	NfaDepth   int     `json:"-" yaml:"-"`
}

func (m *Machine) setDefaults() {
	m.KeyMax = 255
	m.ErrorState = None
	m.ErrTrans = None
}

func (m *Machine) UnmarshalJSON(b []byte) error {
	type plain Machine
	v := plain{}
	(*Machine)(&v).setDefaults()
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	*m = Machine(v)
	m.Reindex()
	return nil
}

func (m *Machine) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Machine
	v := plain{}
	(*Machine)(&v).setDefaults()
	err := unmarshal(&v)
	if err != nil {
		return err
	}
	*m = Machine(v)
	m.Reindex()
	return nil
}

// NewMachine returns an empty machine over the byte alphabet.
func NewMachine(name string) *Machine {
	m := &Machine{
		Name: name,
	}
	m.setDefaults()
	return m
}

// Reindex sets the ID of every arena element to its position.
func (m *Machine) Reindex() {
	for i, a := range m.Actions {
		a.ID = i
	}
	for i, t := range m.ActionTables {
		t.ID = i
	}
	for i, c := range m.CondSpaces {
		c.ID = i
	}
	for i, t := range m.Transitions {
		t.ID = i
	}
	for i, s := range m.States {
		s.ID = i
	}
}

// Clone returns a deep copy of the machine.
func (m *Machine) Clone() *Machine {
	c := *m
	c.Actions = make([]*Action, len(m.Actions))
	for i, a := range m.Actions {
		ca := *a
		ca.Code = append([]string(nil), a.Code...)
		c.Actions[i] = &ca
	}
	c.ActionTables = make([]*ActionTable, len(m.ActionTables))
	for i, t := range m.ActionTables {
		ct := *t
		ct.Actions = append([]int(nil), t.Actions...)
		c.ActionTables[i] = &ct
	}
	c.CondSpaces = make([]*CondSpace, len(m.CondSpaces))
	for i, cs := range m.CondSpaces {
		ccs := *cs
		ccs.Conds = append([]int(nil), cs.Conds...)
		c.CondSpaces[i] = &ccs
	}
	c.Transitions = make([]*Trans, len(m.Transitions))
	for i, t := range m.Transitions {
		ct := *t
		ct.Conds = append([]CondPair(nil), t.Conds...)
		c.Transitions[i] = &ct
	}
	c.States = make([]*State, len(m.States))
	for i, s := range m.States {
		cs := *s
		cs.Ranges = append([]Range(nil), s.Ranges...)
		cs.EOFCondKeys = append([]int64(nil), s.EOFCondKeys...)
		cs.Nfa = append([]NfaTarg(nil), s.Nfa...)
		cs.Singles = append([]Range(nil), s.Singles...)
		cs.OutRanges = append([]Range(nil), s.OutRanges...)
		cs.covered = append([]Range(nil), s.covered...)
		c.States[i] = &cs
	}
	c.Classes = append([]int(nil), m.Classes...)
	c.ClassKeys = append([]int64(nil), m.ClassKeys...)
	return &c
}

// AddAction appends an action and returns its index.
func (m *Machine) AddAction(name string, code ...string) int {
	m.Actions = append(m.Actions, &Action{
		ID:   len(m.Actions),
		Name: name,
		Code: code,
	})
	return len(m.Actions) - 1
}

// AddActionTable appends an action list and returns its index.
func (m *Machine) AddActionTable(actions ...int) int {
	m.ActionTables = append(m.ActionTables, &ActionTable{
		ID:      len(m.ActionTables),
		Actions: actions,
	})
	return len(m.ActionTables) - 1
}

// AddCondSpace appends a condition space and returns its index.
func (m *Machine) AddCondSpace(conds ...int) int {
	m.CondSpaces = append(m.CondSpaces, &CondSpace{
		ID:    len(m.CondSpaces),
		Conds: conds,
	})
	return len(m.CondSpaces) - 1
}

// AddTrans appends a transition and returns its index.
func (m *Machine) AddTrans(t *Trans) int {
	t.ID = len(m.Transitions)
	m.Transitions = append(m.Transitions, t)
	return t.ID
}

// AddState appends a state and returns its index.
func (m *Machine) AddState(s *State) int {
	s.ID = len(m.States)
	m.States = append(m.States, s)
	return s.ID
}

type Format string

const (
	FormatJSON = Format("json")
	FormatYAML = Format("yaml")
)

// Decode reads a machine in the given format.
func Decode(r io.Reader, format Format) (*Machine, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m := NewMachine("")
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, m)
	case FormatYAML, "yml":
		err = yaml.Unmarshal(data, m)
	default:
		return nil, fmt.Errorf("unknown machine format: %v", format)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot decode a machine: %w", err)
	}
	return m, nil
}

// TransAt returns the transition a state takes on key. It is available
// after ChooseDefaultSpan.
func (m *Machine) TransAt(s *State, key int64) int {
	if s.SingleTrans {
		return s.Default
	}
	lo, hi := 0, len(s.covered)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		r := s.covered[mid]
		switch {
		case key < r.Low:
			hi = mid - 1
		case key > r.High:
			lo = mid + 1
		default:
			return r.Trans
		}
	}
	return s.Default
}
