package fsm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TieBreak decides which transition becomes a state's default when two
// transitions cover the same number of keys.
type TieBreak int

const (
	// TieBreakFirstSeen keeps the transition seen first in key order.
	TieBreakFirstSeen TieBreak = iota
	// TieBreakLastSeen keeps the transition seen last in key order.
	TieBreakLastSeen
)

func (t TieBreak) String() string {
	switch t {
	case TieBreakFirstSeen:
		return "first-seen"
	case TieBreakLastSeen:
		return "last-seen"
	}
	return fmt.Sprintf("tie-break(%d)", int(t))
}

func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "first-seen":
		return TieBreakFirstSeen, nil
	case "last-seen":
		return TieBreakLastSeen, nil
	}
	return 0, fmt.Errorf("unknown tie-break policy: %v", s)
}

// maxFlatAlphabet bounds the size of the character class array.
const maxFlatAlphabet = 1 << 16

var ErrAlphabetTooLarge = errors.New("the alphabet is too large for flat tables")

type AnalysisOptions struct {
	TieBreak TieBreak
	// Flat builds the character classes flat tables index by.
	Flat bool
	// NfaMax overrides the NFA stack capacity when greater than 0.
	NfaMax int
}

// Analyze runs the analysis passes in order and returns the state
// permutation applied by SortByStateID (perm[old] == new).
func (m *Machine) Analyze(opts AnalysisOptions) ([]int, error) {
	m.Reindex()
	m.EnsureErrorState()
	perm := m.SortByStateID()
	err := m.ChooseDefaultSpan(opts.TieBreak)
	if err != nil {
		return nil, err
	}
	m.MoveSelectTransToSingle()
	if opts.Flat {
		err := m.MakeFlatClass()
		if err != nil {
			return nil, err
		}
	}
	m.AnalyzeMachine()
	if opts.NfaMax > 0 {
		m.NfaDepth = opts.NfaMax
	}
	return perm, nil
}

func (m *Machine) hasGaps(ranges []Range) bool {
	if len(ranges) == 0 {
		return true
	}
	if ranges[0].Low > m.KeyMin || ranges[len(ranges)-1].High < m.KeyMax {
		return true
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Low > ranges[i-1].High+1 {
			return true
		}
	}
	return false
}

// EnsureErrorState adds an error state when some key or condition value has
// nowhere to go, and an error transition targeting it when some state does
// not cover the alphabet.
func (m *Machine) EnsureErrorState() {
	needErr := false
	for _, t := range m.Transitions {
		if t.CondSpace != None {
			needErr = true
		}
	}
	for _, s := range m.States {
		if s.EOFCondSpace != None || m.hasGaps(s.Ranges) {
			needErr = true
		}
	}
	if needErr && m.ErrorState == None {
		m.ErrorState = m.AddState(NewState())
	}
	if m.ErrorState == None || m.ErrTrans != None {
		return
	}
	for _, s := range m.States {
		if m.hasGaps(s.Ranges) {
			m.ErrTrans = m.AddTrans(NewTrans(m.ErrorState, None))
			return
		}
	}
}

func (m *Machine) successors(s *State) []int {
	var succ []int
	addTrans := func(id int) {
		for _, p := range m.Transitions[id].Conds {
			succ = append(succ, p.Target)
		}
	}
	for _, r := range s.Ranges {
		addTrans(r.Trans)
	}
	if s.EOFTrans != None {
		addTrans(s.EOFTrans)
	}
	for _, n := range s.Nfa {
		succ = append(succ, n.Target)
	}
	return succ
}

// SortByStateID renumbers the states densely: the error state first, then
// the non-final states, then the final states, each group in depth-first
// order from the start state followed by unreachable states in their
// original order. It returns the permutation perm[old] == new.
func (m *Machine) SortByStateID() []int {
	n := len(m.States)
	visited := make([]bool, n)
	var order []int
	stack := []int{m.StartState}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)
		succ := m.successors(m.States[id])
		for i := len(succ) - 1; i >= 0; i-- {
			if !visited[succ[i]] {
				stack = append(stack, succ[i])
			}
		}
	}
	for id := 0; id < n; id++ {
		if !visited[id] {
			order = append(order, id)
		}
	}

	var sorted []int
	if m.ErrorState != None {
		sorted = append(sorted, m.ErrorState)
	}
	for _, id := range order {
		if id != m.ErrorState && !m.States[id].Final {
			sorted = append(sorted, id)
		}
	}
	m.FirstFinal = len(sorted)
	for _, id := range order {
		if id != m.ErrorState && m.States[id].Final {
			sorted = append(sorted, id)
		}
	}

	perm := make([]int, n)
	states := make([]*State, n)
	for newID, oldID := range sorted {
		perm[oldID] = newID
		states[newID] = m.States[oldID]
		states[newID].ID = newID
	}
	m.States = states
	for _, t := range m.Transitions {
		for i := range t.Conds {
			t.Conds[i].Target = perm[t.Conds[i].Target]
		}
	}
	for _, s := range m.States {
		for i := range s.Nfa {
			s.Nfa[i].Target = perm[s.Nfa[i].Target]
		}
	}
	m.StartState = perm[m.StartState]
	if m.ErrorState != None {
		m.ErrorState = perm[m.ErrorState]
	}
	return perm
}

func (m *Machine) fillGaps(s *State) ([]Range, error) {
	if !m.hasGaps(s.Ranges) {
		return append([]Range(nil), s.Ranges...), nil
	}
	if m.ErrTrans == None {
		return nil, fmt.Errorf("state %v does not cover the alphabet and the machine has no error transition", s.ID)
	}
	var cov []Range
	next := m.KeyMin
	for _, r := range s.Ranges {
		if r.Low > next {
			cov = append(cov, Range{Low: next, High: r.Low - 1, Trans: m.ErrTrans})
		}
		cov = append(cov, r)
		next = r.High + 1
	}
	if len(s.Ranges) == 0 || s.Ranges[len(s.Ranges)-1].High < m.KeyMax {
		cov = append(cov, Range{Low: next, High: m.KeyMax, Trans: m.ErrTrans})
	}
	return cov, nil
}

// ChooseDefaultSpan picks, for every state, the transition covering the
// most keys as the default and keeps the remaining ranges as explicit ones.
func (m *Machine) ChooseDefaultSpan(tb TieBreak) error {
	for _, s := range m.States {
		cov, err := m.fillGaps(s)
		if err != nil {
			return err
		}
		s.covered = cov

		var order []int
		spans := map[int]uint64{}
		for _, r := range cov {
			if _, ok := spans[r.Trans]; !ok {
				order = append(order, r.Trans)
			}
			spans[r.Trans] += r.span()
		}
		def := None
		var max uint64
		for _, t := range order {
			sp := spans[t]
			if def == None || sp > max || (tb == TieBreakLastSeen && sp == max) {
				def = t
				max = sp
			}
		}
		s.Default = def

		s.OutRanges = nil
		s.Singles = nil
		for _, r := range cov {
			if r.Trans != def {
				s.OutRanges = append(s.OutRanges, r)
			}
		}
	}
	return nil
}

// MoveSelectTransToSingle moves explicit ranges spanning one key to the
// singles list and flags states whose only transition is the default.
func (m *Machine) MoveSelectTransToSingle() {
	for _, s := range m.States {
		var ranges []Range
		s.Singles = nil
		for _, r := range s.OutRanges {
			if r.Low == r.High {
				s.Singles = append(s.Singles, r)
			} else {
				ranges = append(ranges, r)
			}
		}
		s.OutRanges = ranges
		s.SingleTrans = len(s.Singles) == 0 && len(s.OutRanges) == 0
	}
}

// MakeFlatClass partitions the alphabet into classes of keys every state
// treats alike. Classes are numbered by first appearance in key order.
func (m *Machine) MakeFlatClass() error {
	size := uint64(m.KeyMax-m.KeyMin) + 1
	if size > maxFlatAlphabet || size == 0 {
		return fmt.Errorf("%w: [%v, %v]", ErrAlphabetTooLarge, m.KeyMin, m.KeyMax)
	}

	bounds := []int64{m.KeyMin}
	for _, s := range m.States {
		for _, r := range s.covered {
			bounds = append(bounds, r.Low)
			if r.High < m.KeyMax {
				bounds = append(bounds, r.High+1)
			}
		}
	}
	sort.Slice(bounds, func(i, j int) bool {
		return bounds[i] < bounds[j]
	})
	uniq := bounds[:1]
	for _, b := range bounds[1:] {
		if b != uniq[len(uniq)-1] {
			uniq = append(uniq, b)
		}
	}
	bounds = uniq

	m.Classes = make([]int, size)
	m.ClassKeys = nil
	sigs := map[string]int{}
	cursor := make([]int, len(m.States))
	for i, b := range bounds {
		end := m.KeyMax
		if i+1 < len(bounds) {
			end = bounds[i+1] - 1
		}
		var sig strings.Builder
		for si, s := range m.States {
			for cursor[si] < len(s.covered)-1 && s.covered[cursor[si]].High < b {
				cursor[si]++
			}
			t := s.Default
			if cursor[si] < len(s.covered) {
				r := s.covered[cursor[si]]
				if r.Low <= b && b <= r.High {
					t = r.Trans
				}
			}
			fmt.Fprintf(&sig, "%d,", t)
		}
		c, ok := sigs[sig.String()]
		if !ok {
			c = len(m.ClassKeys)
			sigs[sig.String()] = c
			m.ClassKeys = append(m.ClassKeys, b)
		}
		for k := b; k <= end; k++ {
			m.Classes[k-m.KeyMin] = c
			if k == end {
				break
			}
		}
	}

	for _, s := range m.States {
		s.FlatLow, s.FlatHigh = 1, 0
		for c, key := range m.ClassKeys {
			if m.TransAt(s, key) == s.Default {
				continue
			}
			if s.FlatLow > s.FlatHigh {
				s.FlatLow, s.FlatHigh = c, c
				continue
			}
			if c < s.FlatLow {
				s.FlatLow = c
			}
			if c > s.FlatHigh {
				s.FlatHigh = c
			}
		}
	}
	return nil
}

// AnalyzeMachine computes per-role reference counts for action lists and
// actions, the locations of action lists in the flattened actions array and
// the NFA stack bound.
func (m *Machine) AnalyzeMachine() {
	for _, a := range m.Actions {
		a.Usage = Usage{}
	}
	for _, t := range m.ActionTables {
		t.Usage = Usage{}
	}
	ref := func(table int, r Role) {
		if table != None {
			m.ActionTables[table].Usage[r]++
		}
	}

	used := make([]bool, len(m.Transitions))
	for _, s := range m.States {
		ref(s.ToStateAction, RoleToState)
		ref(s.FromStateAction, RoleFromState)
		ref(s.EOFAction, RoleEOF)
		ranges := s.covered
		if ranges == nil {
			ranges = s.Ranges
		}
		for _, r := range ranges {
			used[r.Trans] = true
		}
		if s.Default != None {
			used[s.Default] = true
		}
		if s.EOFTrans != None {
			used[s.EOFTrans] = true
		}
		for _, n := range s.Nfa {
			ref(n.Push, RoleNfaPush)
			ref(n.PopTest, RoleNfaPopTest)
		}
	}
	m.NfaDepth = m.nfaChainDepth()
	for i, t := range m.Transitions {
		if !used[i] {
			continue
		}
		for _, p := range t.Conds {
			ref(p.Action, RoleTrans)
		}
	}

	loc := 0
	for _, t := range m.ActionTables {
		t.Location = loc
		loc += len(t.Actions) + 1
		for _, r := range Roles {
			for _, a := range t.Actions {
				m.Actions[a].Usage[r] += t.Usage[r]
			}
		}
	}
}

// nfaChainDepth bounds the backtracking stack by the largest number of
// alternatives the records of one state lead to, counting the records each
// resumed alternative pushes in turn.
func (m *Machine) nfaChainDepth() int {
	depth := make([]int, len(m.States))
	seen := make([]bool, len(m.States))
	var visit func(s int) int
	visit = func(s int) int {
		if seen[s] {
			return depth[s]
		}
		seen[s] = true
		d := 0
		for _, n := range m.States[s].Nfa {
			d += 1 + visit(n.Target)
		}
		depth[s] = d
		return d
	}
	deepest := 0
	for s := range m.States {
		if d := visit(s); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// AnyRole reports whether some action list is referenced in role r.
func (m *Machine) AnyRole(r Role) bool {
	for _, t := range m.ActionTables {
		if t.Usage[r] > 0 {
			return true
		}
	}
	return false
}

// AnyActions reports whether some action list is referenced at all.
func (m *Machine) AnyActions() bool {
	for _, r := range Roles {
		if m.AnyRole(r) {
			return true
		}
	}
	return false
}

func (m *Machine) AnyEOFTrans() bool {
	for _, s := range m.States {
		if s.EOFTrans != None {
			return true
		}
	}
	return false
}

func (m *Machine) AnyEOFConds() bool {
	for _, s := range m.States {
		if s.EOFCondSpace != None {
			return true
		}
	}
	return false
}

func (m *Machine) AnyConds() bool {
	for _, t := range m.Transitions {
		if t.CondSpace != None {
			return true
		}
	}
	return false
}

func (m *Machine) AnyNfa() bool {
	for _, s := range m.States {
		if len(s.Nfa) > 0 {
			return true
		}
	}
	return false
}

// ActionsArray returns the flattened actions array: a leading empty list,
// then every list as its length followed by its action ids.
func (m *Machine) ActionsArray() []int64 {
	vals := []int64{0}
	for _, t := range m.ActionTables {
		vals = append(vals, int64(len(t.Actions)))
		for _, a := range t.Actions {
			vals = append(vals, int64(a))
		}
	}
	return vals
}
