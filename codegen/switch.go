package codegen

import (
	"fmt"
	"sort"

	"github.com/nihei9/fsmgen/fsm"
)

// switchStrategy dispatches on the current state with a switch and encodes
// every key test as a comparison tree.
type switchStrategy struct {
	style Style
	act   ActMode
}

func (ss *switchStrategy) Name() string {
	return strategyName(ShapeSwitch, ss.act, ControlGoto)
}

func (ss *switchStrategy) Style() Style {
	return ss.style
}

func (ss *switchStrategy) Shape() Shape {
	return ShapeSwitch
}

func (ss *switchStrategy) Control() Control {
	return ControlGoto
}

func (ss *switchStrategy) ActMode() ActMode {
	return ss.act
}

func (ss *switchStrategy) analysisOptions() fsm.AnalysisOptions {
	return fsm.AnalysisOptions{}
}

// ipGotoStrategy gives every state its own label and jumps between states
// directly. Actions are always expanded in place.
type ipGotoStrategy struct{}

func (is *ipGotoStrategy) Name() string {
	return strategyName(ShapeGoto, ActExp, ControlGoto)
}

func (is *ipGotoStrategy) Style() Style {
	return IpGoto
}

func (is *ipGotoStrategy) Shape() Shape {
	return ShapeGoto
}

func (is *ipGotoStrategy) Control() Control {
	return ControlGoto
}

func (is *ipGotoStrategy) ActMode() ActMode {
	return ActExp
}

func (is *ipGotoStrategy) analysisOptions() fsm.AnalysisOptions {
	return fsm.AnalysisOptions{}
}

var (
	_ Strategy = &switchStrategy{}
	_ Strategy = &ipGotoStrategy{}
)

var switchVars = []string{
	"_cpc", "_acts", "_nacts", "_ckeys", "_klen", "_lower", "_mid", "_upper",
	"_found", "_eofcont", "_eofdone",
}

// pairBase returns the global index of the first condition pair of every
// transition.
func (g *gen) pairBase() []int {
	base := make([]int, len(g.m.Transitions))
	n := 0
	for i, t := range g.m.Transitions {
		base[i] = n
		n += len(t.Conds)
	}
	return base
}

// usedTrans reports the transitions some state can take.
func (g *gen) usedTrans() []bool {
	used := make([]bool, len(g.m.Transitions))
	for _, s := range g.m.States {
		for _, r := range s.Singles {
			used[r.Trans] = true
		}
		for _, r := range s.OutRanges {
			used[r.Trans] = true
		}
		if s.Default != fsm.None {
			used[s.Default] = true
		}
		if !g.noEnd && s.EOFTrans != fsm.None {
			used[s.EOFTrans] = true
		}
	}
	return used
}

func pairLabel(k int) string {
	return fmt.Sprintf("ctr%v", k)
}

func stateLabel(id int) string {
	return fmt.Sprintf("st%v", id)
}

// transLabel is where taking transition t starts. Transitions without
// conditions go to their only pair directly.
func (g *gen) transLabel(base []int, t int) string {
	if g.m.Transitions[t].CondSpace == fsm.None {
		return pairLabel(base[t])
	}
	return fmt.Sprintf("tr%v", t)
}

// explicitRanges returns the keyed transitions of s in key order.
func explicitRanges(s *fsm.State) []fsm.Range {
	rs := append(append([]fsm.Range(nil), s.Singles...), s.OutRanges...)
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Low < rs[j].Low
	})
	return rs
}

// writeStateKeys writes the key test of s. A state whose only transition is
// the default jumps to it without testing the key.
func (g *gen) writeStateKeys(w *writer, base []int, s *fsm.State) {
	if s.SingleTrans {
		w.gotoLabel(g.transLabel(base, s.Default))
		return
	}
	g.writeKeyTree(w, base, explicitRanges(s), s.Default)
}

func (g *gen) writeKeyTree(w *writer, base []int, rs []fsm.Range, def int) {
	if len(rs) == 0 {
		w.gotoLabel(g.transLabel(base, def))
		return
	}
	key := g.key()
	mid := len(rs) / 2
	r := rs[mid]
	w.ifThen(fmt.Sprintf("%v < %v", key, r.Low))
	g.writeKeyTree(w, base, rs[:mid], def)
	w.elseIf(fmt.Sprintf("%v > %v", key, r.High))
	g.writeKeyTree(w, base, rs[mid+1:], def)
	w.els()
	w.gotoLabel(g.transLabel(base, r.Trans))
	w.close()
}

// writeCondTrans writes the labels of conditional transitions: evaluate the
// condition space and jump to the matching pair, or to _cerr.
func (g *gen) writeCondTrans(w *writer, base []int, used []bool) {
	for i, t := range g.m.Transitions {
		if !used[i] || t.CondSpace == fsm.None {
			continue
		}
		w.label(fmt.Sprintf("tr%v", i))
		g.writeCondExecFor(w, t.CondSpace)
		for j, p := range t.Conds {
			w.ifThen(fmt.Sprintf("_cpc == %v", p.Key))
			w.gotoLabel(pairLabel(base[i] + j))
			w.close()
		}
		w.gotoLabel("_cerr")
	}
}

// writePairs writes one label per condition pair of the used transitions.
// after is called with the target once the pair's actions are written.
func (g *gen) writePairs(w *writer, base []int, used []bool, after func(target int)) {
	for i, t := range g.m.Transitions {
		if !used[i] {
			continue
		}
		for j, p := range t.Conds {
			w.label(pairLabel(base[i] + j))
			w.line("%v = %v;", g.cs(), p.Target)
			g.writeInlineActions(w, fsm.RoleTrans, p.Action, writeCode)
			after(p.Target)
		}
	}
}

// writeGotoEOF writes the end of input handling for the label-based shapes.
// The current state is in cs.
func (g *gen) writeGotoEOF(w *writer, base []int) {
	if !g.anyEOF() {
		return
	}
	cs := g.cs()
	w.ifThen(fmt.Sprintf("%v == %v", g.names.P, g.names.EOF))
	g.writeEOFConds(w)
	w.ifThen("_eofcont == 0")
	w.gotoLabel("_out")
	w.close()
	g.writeStateActions(w, fsm.RoleEOF, TableEOFActions, cs)
	if g.m.AnyEOFTrans() {
		w.switchOn(cs)
		for _, s := range g.m.States {
			if s.EOFTrans == fsm.None {
				continue
			}
			w.caseOf(s.ID)
			w.line("_eofdone = 1;")
			w.gotoLabel(g.transLabel(base, s.EOFTrans))
			w.endCase()
		}
		w.close()
	}
	w.close()
}

func (ss *switchStrategy) writeExec(g *gen, w *writer) {
	cs := g.cs()
	p := g.names.P
	base := g.pairBase()
	used := g.usedTrans()

	w.open("{")
	g.writeDecls(w, switchVars...)
	g.writeNfaLoop(w, func() {
		w.line("_eofdone = 0;")
		if chk := g.errStateCheck(); chk != "" {
			w.ifThen(chk)
			w.gotoLabel("_out")
			w.close()
		}
		if !g.noEnd {
			w.ifThen(fmt.Sprintf("%v == %v", p, g.names.PE))
			w.gotoLabel("_test_eof")
			w.close()
		}
		w.label("_resume")
		g.writeStateActions(w, fsm.RoleFromState, TableFromStateActions, cs)
		g.writeNfaPush(w)
		w.switchOn(cs)
		for _, s := range g.m.States {
			if s.ID == g.m.ErrorState {
				continue
			}
			w.caseOf(s.ID)
			g.writeStateKeys(w, base, s)
			w.endCase()
		}
		w.close()
		w.gotoLabel("_out")

		g.writeCondTrans(w, base, used)
		g.writePairs(w, base, used, func(target int) {
			w.gotoLabel("_again")
		})
		if g.m.AnyConds() {
			w.label("_cerr")
			w.line("%v = %v;", cs, g.m.ErrorState)
			w.gotoLabel("_again")
		}

		w.label("_again")
		g.writeStateActions(w, fsm.RoleToState, TableToStateActions, cs)
		if chk := g.errStateCheck(); chk != "" {
			w.ifThen(chk)
			w.gotoLabel("_out")
			w.close()
		}
		if g.eofTransUsed() {
			w.ifThen("_eofdone == 1")
			w.gotoLabel("_out")
			w.close()
		}
		w.line("%v += 1;", p)
		if g.noEnd {
			w.gotoLabel("_resume")
		} else {
			w.ifThen(fmt.Sprintf("%v != %v", p, g.names.PE))
			w.gotoLabel("_resume")
			w.close()
			w.label("_test_eof")
			g.writeGotoEOF(w, base)
		}
		w.label("_out")
	})
	w.close()
}

func (is *ipGotoStrategy) writeExec(g *gen, w *writer) {
	cs := g.cs()
	p := g.names.P
	base := g.pairBase()
	used := g.usedTrans()

	w.open("{")
	g.writeDecls(w, switchVars...)
	g.writeNfaLoop(w, func() {
		w.line("_eofdone = 0;")
		w.switchOn(cs)
		for _, s := range g.m.States {
			w.caseOf(s.ID)
			w.gotoLabel(stateLabel(s.ID))
			w.endCase()
		}
		w.close()
		w.gotoLabel("_out")

		for _, s := range g.m.States {
			w.label(stateLabel(s.ID))
			w.line("%v = %v;", cs, s.ID)
			if s.ID == g.m.ErrorState {
				w.gotoLabel("_out")
				continue
			}
			if !g.noEnd {
				w.ifThen(fmt.Sprintf("%v == %v", p, g.names.PE))
				w.gotoLabel("_test_eof")
				w.close()
			}
			g.writeStateActions(w, fsm.RoleFromState, TableFromStateActions, cs)
			g.writeNfaPush(w)
			g.writeStateKeys(w, base, s)
		}

		g.writeCondTrans(w, base, used)
		g.writePairs(w, base, used, func(target int) {
			g.writeStateActions(w, fsm.RoleToState, TableToStateActions, cs)
			if target == g.m.ErrorState {
				w.gotoLabel("_out")
				return
			}
			if g.eofTransUsed() {
				w.ifThen("_eofdone == 1")
				w.gotoLabel("_out")
				w.close()
			}
			w.line("%v += 1;", p)
			w.gotoLabel(stateLabel(target))
		})
		if g.m.AnyConds() {
			w.label("_cerr")
			w.line("%v = %v;", cs, g.m.ErrorState)
			g.writeStateActions(w, fsm.RoleToState, TableToStateActions, cs)
			w.gotoLabel("_out")
		}

		if !g.noEnd {
			w.label("_test_eof")
			g.writeGotoEOF(w, base)
		}
		w.label("_out")
	})
	w.close()
}
