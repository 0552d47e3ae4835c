package codegen

import (
	"fmt"

	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/table"
)

// Logical table names. The emitted identifier carries the output prefix.
const (
	TableActions          = "actions"
	TableKeyOffsets       = "key_offsets"
	TableKeys             = "trans_keys"
	TableSingleLens       = "single_lens"
	TableRangeLens        = "range_lens"
	TableIndexOffsets     = "index_offsets"
	TableIndicies         = "indicies"
	TableTransCondSpaces  = "trans_cond_spaces"
	TableTransOffsets     = "trans_offsets"
	TableTransLengths     = "trans_lengths"
	TableCondKeys         = "cond_keys"
	TableCondTargs        = "cond_targs"
	TableCondActions      = "cond_actions"
	TableToStateActions   = "to_state_actions"
	TableFromStateActions = "from_state_actions"
	TableEOFActions       = "eof_actions"
	TableEOFCondSpaces    = "eof_cond_spaces"
	TableEOFCondKeyOffs   = "eof_cond_key_offs"
	TableEOFCondKeyLens   = "eof_cond_key_lens"
	TableEOFCondKeys      = "eof_cond_keys"
	TableEOFTrans         = "eof_trans"
	TableNfaTargs         = "nfa_targs"
	TableNfaOffsets       = "nfa_offsets"
	TableNfaPushActions   = "nfa_push_actions"
	TableNfaPopTrans      = "nfa_pop_trans"
	TableCharClass        = "char_class"
	TableFlatIndexOffset  = "flat_index_offset"
	TableIndexDefaults    = "index_defaults"
)

// actRef is the stored reference to an action list: 0 for none, otherwise
// one plus the list id (exp) or one plus the list location (loop).
func (g *gen) actRef(list int) int64 {
	return ActionRef(g.m, g.st.ActMode(), list)
}

// ActionRef returns the value tables store for an action list reference.
func ActionRef(m *fsm.Machine, mode ActMode, list int) int64 {
	if list == fsm.None {
		return 0
	}
	if mode == ActLoop {
		return int64(m.ActionTables[list].Location) + 1
	}
	return int64(list) + 1
}

// NfaActionRef returns the value the NFA push and pop-test tables store for
// an action list: 0 for none, otherwise one plus the list id in every mode.
func NfaActionRef(list int) int64 {
	if list == fsm.None {
		return 0
	}
	return int64(list) + 1
}

func (g *gen) array(b *table.Builder, logical string, vals func(v func(int64))) {
	b.Start(g.tab(logical))
	vals(b.Value)
	b.Finish()
}

func (g *gen) taActions(b *table.Builder) {
	if g.st.ActMode() != ActLoop || !g.m.AnyActions() {
		return
	}
	g.array(b, TableActions, func(v func(int64)) {
		for _, a := range g.m.ActionsArray() {
			v(a)
		}
	})
}

func (g *gen) taStateActions(b *table.Builder, logical string, role fsm.Role, ref func(s *fsm.State) int) {
	if !g.m.AnyRole(role) {
		return
	}
	g.array(b, logical, func(v func(int64)) {
		for _, s := range g.m.States {
			v(g.actRef(ref(s)))
		}
	})
}

func (g *gen) taToStateActions(b *table.Builder) {
	g.taStateActions(b, TableToStateActions, fsm.RoleToState, func(s *fsm.State) int {
		return s.ToStateAction
	})
}

func (g *gen) taFromStateActions(b *table.Builder) {
	g.taStateActions(b, TableFromStateActions, fsm.RoleFromState, func(s *fsm.State) int {
		return s.FromStateAction
	})
}

func (g *gen) taEOFActions(b *table.Builder) {
	g.taStateActions(b, TableEOFActions, fsm.RoleEOF, func(s *fsm.State) int {
		return s.EOFAction
	})
}

func (g *gen) taEOFConds(b *table.Builder) {
	if !g.m.AnyEOFConds() {
		return
	}
	g.array(b, TableEOFCondSpaces, func(v func(int64)) {
		for _, s := range g.m.States {
			v(int64(s.EOFCondSpace))
		}
	})
	g.array(b, TableEOFCondKeyOffs, func(v func(int64)) {
		off := 0
		for _, s := range g.m.States {
			v(int64(off))
			off += len(s.EOFCondKeys)
		}
	})
	g.array(b, TableEOFCondKeyLens, func(v func(int64)) {
		for _, s := range g.m.States {
			v(int64(len(s.EOFCondKeys)))
		}
	})
	g.array(b, TableEOFCondKeys, func(v func(int64)) {
		for _, s := range g.m.States {
			for _, k := range s.EOFCondKeys {
				v(k)
			}
		}
	})
}

func (g *gen) taEOFTrans(b *table.Builder) {
	if !g.m.AnyEOFTrans() {
		return
	}
	g.array(b, TableEOFTrans, func(v func(int64)) {
		for _, s := range g.m.States {
			if s.EOFTrans == fsm.None {
				v(0)
				continue
			}
			v(int64(s.EOFTrans) + 1)
		}
	})
}

// taNfa writes the backtracking records. Index 0 of the record arrays is a
// shared empty group, so an offset of 0 means no records.
func (g *gen) taNfa(b *table.Builder) {
	if !g.m.AnyNfa() {
		return
	}
	g.array(b, TableNfaTargs, func(v func(int64)) {
		v(0)
		for _, s := range g.m.States {
			if len(s.Nfa) == 0 {
				continue
			}
			v(int64(len(s.Nfa)))
			for _, n := range s.Nfa {
				v(int64(n.Target))
			}
		}
	})
	g.array(b, TableNfaOffsets, func(v func(int64)) {
		off := 1
		for _, s := range g.m.States {
			if len(s.Nfa) == 0 {
				v(0)
				continue
			}
			v(int64(off))
			off += len(s.Nfa) + 1
		}
	})
	g.array(b, TableNfaPushActions, func(v func(int64)) {
		v(0)
		for _, s := range g.m.States {
			if len(s.Nfa) == 0 {
				continue
			}
			v(0)
			for _, n := range s.Nfa {
				v(NfaActionRef(n.Push))
			}
		}
	})
	g.array(b, TableNfaPopTrans, func(v func(int64)) {
		v(0)
		for _, s := range g.m.States {
			if len(s.Nfa) == 0 {
				continue
			}
			v(0)
			for _, n := range s.Nfa {
				v(NfaActionRef(n.PopTest))
			}
		}
	})
}

// errCondOffset is the index of the error condition pair appended after
// every transition's pairs.
func (g *gen) errCondOffset() int {
	n := 0
	for _, t := range g.m.Transitions {
		n += len(t.Conds)
	}
	return n
}

func (bs *binaryStrategy) tableData(g *gen, b *table.Builder) {
	m := g.m
	g.taActions(b)
	g.array(b, TableKeyOffsets, func(v func(int64)) {
		off := 0
		for _, s := range m.States {
			v(int64(off))
			off += len(s.Singles) + 2*len(s.OutRanges)
		}
	})
	g.array(b, TableSingleLens, func(v func(int64)) {
		for _, s := range m.States {
			v(int64(len(s.Singles)))
		}
	})
	g.array(b, TableRangeLens, func(v func(int64)) {
		for _, s := range m.States {
			v(int64(len(s.OutRanges)))
		}
	})
	g.array(b, TableIndexOffsets, func(v func(int64)) {
		off := 0
		for _, s := range m.States {
			v(int64(off))
			off += len(s.Singles) + len(s.OutRanges) + 1
		}
	})
	g.array(b, TableIndicies, func(v func(int64)) {
		for _, s := range m.States {
			for _, r := range s.Singles {
				v(int64(r.Trans))
			}
			for _, r := range s.OutRanges {
				v(int64(r.Trans))
			}
			v(int64(s.Default))
		}
	})
	g.array(b, TableTransCondSpaces, func(v func(int64)) {
		for _, t := range m.Transitions {
			v(int64(t.CondSpace))
		}
	})
	g.array(b, TableTransOffsets, func(v func(int64)) {
		off := 0
		for _, t := range m.Transitions {
			v(int64(off))
			off += len(t.Conds)
		}
	})
	g.array(b, TableTransLengths, func(v func(int64)) {
		for _, t := range m.Transitions {
			v(int64(len(t.Conds)))
		}
	})
	g.array(b, TableCondTargs, func(v func(int64)) {
		for _, t := range m.Transitions {
			for _, p := range t.Conds {
				v(int64(p.Target))
			}
		}
		if m.AnyConds() {
			v(int64(m.ErrorState))
		}
	})
	g.array(b, TableCondActions, func(v func(int64)) {
		for _, t := range m.Transitions {
			for _, p := range t.Conds {
				v(g.actRef(p.Action))
			}
		}
		if m.AnyConds() {
			v(0)
		}
	})
	g.taToStateActions(b)
	g.taFromStateActions(b)
	g.taEOFActions(b)
	g.taEOFConds(b)
	g.taEOFTrans(b)
	g.array(b, TableKeys, func(v func(int64)) {
		for _, s := range m.States {
			for _, r := range s.Singles {
				v(r.Low)
			}
			for _, r := range s.OutRanges {
				v(r.Low)
				v(r.High)
			}
		}
	})
	g.array(b, TableCondKeys, func(v func(int64)) {
		for _, t := range m.Transitions {
			for _, p := range t.Conds {
				v(p.Key)
			}
		}
	})
	g.taNfa(b)
}

// maxFlatConds bounds condition spaces flat tables expand densely.
const maxFlatConds = 16

func (fs *flatStrategy) check(m *fsm.Machine) error {
	for _, cs := range m.CondSpaces {
		if len(cs.Conds) > maxFlatConds {
			return fmt.Errorf("cond space #%v has %v conditions; flat tables support at most %v", cs.ID, len(cs.Conds), maxFlatConds)
		}
	}
	return nil
}

// flatCondWidth is the number of cond_targs entries a transition occupies:
// every value of its condition space is expanded.
func flatCondWidth(m *fsm.Machine, t *fsm.Trans) int {
	if t.CondSpace == fsm.None {
		return 1
	}
	return 1 << uint(len(m.CondSpaces[t.CondSpace].Conds))
}

// flatConds calls f for every expanded condition value of t with the pair
// it selects, or nil when no pair matches.
func flatConds(m *fsm.Machine, t *fsm.Trans, f func(p *fsm.CondPair)) {
	if t.CondSpace == fsm.None {
		f(&t.Conds[0])
		return
	}
	j := 0
	for k := 0; k < flatCondWidth(m, t); k++ {
		for j < len(t.Conds) && t.Conds[j].Key < int64(k) {
			j++
		}
		if j < len(t.Conds) && t.Conds[j].Key == int64(k) {
			f(&t.Conds[j])
			continue
		}
		f(nil)
	}
}

func (fs *flatStrategy) tableData(g *gen, b *table.Builder) {
	m := g.m
	g.taActions(b)
	g.array(b, TableKeys, func(v func(int64)) {
		for _, s := range m.States {
			v(int64(s.FlatLow))
			v(int64(s.FlatHigh))
		}
	})
	g.array(b, TableCharClass, func(v func(int64)) {
		for _, c := range m.Classes {
			v(int64(c))
		}
	})
	g.array(b, TableFlatIndexOffset, func(v func(int64)) {
		off := 0
		for _, s := range m.States {
			v(int64(off))
			if s.FlatLow <= s.FlatHigh {
				off += s.FlatHigh - s.FlatLow + 1
			}
		}
	})
	g.array(b, TableIndicies, func(v func(int64)) {
		for _, s := range m.States {
			for c := s.FlatLow; c <= s.FlatHigh; c++ {
				v(int64(m.TransAt(s, m.ClassKeys[c])))
			}
		}
	})
	g.array(b, TableIndexDefaults, func(v func(int64)) {
		for _, s := range m.States {
			v(int64(s.Default))
		}
	})
	g.array(b, TableTransCondSpaces, func(v func(int64)) {
		for _, t := range m.Transitions {
			v(int64(t.CondSpace))
		}
	})
	if m.AnyConds() {
		g.array(b, TableTransOffsets, func(v func(int64)) {
			off := 0
			for _, t := range m.Transitions {
				v(int64(off))
				off += flatCondWidth(m, t)
			}
		})
	}
	g.array(b, TableCondTargs, func(v func(int64)) {
		for _, t := range m.Transitions {
			flatConds(m, t, func(p *fsm.CondPair) {
				if p == nil {
					v(int64(m.ErrorState))
					return
				}
				v(int64(p.Target))
			})
		}
	})
	g.array(b, TableCondActions, func(v func(int64)) {
		for _, t := range m.Transitions {
			flatConds(m, t, func(p *fsm.CondPair) {
				if p == nil {
					v(0)
					return
				}
				v(g.actRef(p.Action))
			})
		}
	})
	g.taToStateActions(b)
	g.taFromStateActions(b)
	g.taEOFActions(b)
	g.taEOFConds(b)
	g.taEOFTrans(b)
	g.taNfa(b)
}

// taStateTables writes the tables the switch and goto shapes keep: action
// lists, per-state action references, EOF conditions and NFA records.
// Transitions themselves are encoded as control flow.
func (g *gen) taStateTables(b *table.Builder) {
	g.taActions(b)
	g.taToStateActions(b)
	g.taFromStateActions(b)
	g.taEOFActions(b)
	g.taEOFConds(b)
	g.taNfa(b)
}

func (ss *switchStrategy) tableData(g *gen, b *table.Builder) {
	g.taStateTables(b)
}

func (is *ipGotoStrategy) tableData(g *gen, b *table.Builder) {
	g.taStateTables(b)
}
