package codegen

import (
	"fmt"

	"github.com/nihei9/fsmgen/fsm"
)

// tableLocator is implemented by the shapes that find transitions through
// tables.
type tableLocator interface {
	// locateTransition sets _trans for the current state and key.
	locateTransition(g *gen, w *writer)
	// locateCond sets _cond from _trans.
	locateCond(g *gen, w *writer)
}

type binaryStrategy struct {
	style Style
	act   ActMode
	ctl   Control
}

func (bs *binaryStrategy) Name() string {
	return strategyName(ShapeBinary, bs.act, bs.ctl)
}

func (bs *binaryStrategy) Style() Style {
	return bs.style
}

func (bs *binaryStrategy) Shape() Shape {
	return ShapeBinary
}

func (bs *binaryStrategy) Control() Control {
	return bs.ctl
}

func (bs *binaryStrategy) ActMode() ActMode {
	return bs.act
}

func (bs *binaryStrategy) analysisOptions() fsm.AnalysisOptions {
	return fsm.AnalysisOptions{}
}

func (bs *binaryStrategy) writeExec(g *gen, w *writer) {
	if bs.ctl == ControlGoto {
		g.writeGotoExec(w, bs)
		return
	}
	g.writeVarExec(w, bs)
}

type flatStrategy struct {
	style Style
	act   ActMode
	ctl   Control
}

func (fs *flatStrategy) Name() string {
	return strategyName(ShapeFlat, fs.act, fs.ctl)
}

func (fs *flatStrategy) Style() Style {
	return fs.style
}

func (fs *flatStrategy) Shape() Shape {
	return ShapeFlat
}

func (fs *flatStrategy) Control() Control {
	return fs.ctl
}

func (fs *flatStrategy) ActMode() ActMode {
	return fs.act
}

func (fs *flatStrategy) analysisOptions() fsm.AnalysisOptions {
	return fsm.AnalysisOptions{
		Flat: true,
	}
}

func (fs *flatStrategy) writeExec(g *gen, w *writer) {
	if fs.ctl == ControlGoto {
		g.writeGotoExec(w, fs)
		return
	}
	g.writeVarExec(w, fs)
}

var (
	_ Strategy     = &binaryStrategy{}
	_ Strategy     = &flatStrategy{}
	_ tableLocator = &binaryStrategy{}
	_ tableLocator = &flatStrategy{}
)

// writeBinarySearch writes a search of needle in arr[lo, lo+n-1] that runs
// onFound when the key is present and leaves _found at 0 otherwise. step is
// 1 for single keys and 2 for low/high pairs.
func (g *gen) writeBinarySearch(w *writer, arr, needle, lo, n string, step int, onFound func()) {
	d := g.d
	w.line("_lower = %v;", lo)
	if step == 1 {
		w.line("_upper = %v + %v - 1;", lo, n)
	} else {
		w.line("_upper = %v + (%v << 1) - 2;", lo, n)
	}
	w.while("_found == 0 && _lower <= _upper")
	if step == 1 {
		w.line("_mid = _lower + ((_upper - _lower) >> 1);")
		w.ifThen(fmt.Sprintf("%v < %v", needle, d.Deref(arr, "_mid")))
		w.line("_upper = _mid - 1;")
		w.elseIf(fmt.Sprintf("%v > %v", needle, d.Deref(arr, "_mid")))
		w.line("_lower = _mid + 1;")
	} else {
		w.line("_mid = _lower + (((_upper - _lower) >> 2) << 1);")
		w.ifThen(fmt.Sprintf("%v < %v", needle, d.Deref(arr, "_mid")))
		w.line("_upper = _mid - 2;")
		w.elseIf(fmt.Sprintf("%v > %v", needle, d.Deref(arr, "_mid + 1")))
		w.line("_lower = _mid + 2;")
	}
	w.els()
	onFound()
	w.line("_found = 1;")
	w.close()
	w.close()
}

func (bs *binaryStrategy) locateTransition(g *gen, w *writer) {
	d := g.d
	cs := g.cs()
	keys := g.tab(TableKeys)
	w.line("_keys = %v;", d.Offset(keys, d.Deref(g.tab(TableKeyOffsets), cs)))
	w.line("_trans = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableIndexOffsets), cs)))
	w.line("_found = 0;")

	w.line("_klen = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableSingleLens), cs)))
	w.ifThen("_klen > 0")
	g.writeBinarySearch(w, keys, g.key(), "_keys", "_klen", 1, func() {
		w.line("_trans += %v;", d.Cast(d.UInt(), "(_mid - _keys)"))
	})
	w.ifThen("_found == 0")
	w.line("_keys += _klen;")
	w.line("_trans += %v;", d.Cast(d.UInt(), "_klen"))
	w.close()
	w.close()

	w.ifThen("_found == 0")
	w.line("_klen = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableRangeLens), cs)))
	w.ifThen("_klen > 0")
	g.writeBinarySearch(w, keys, g.key(), "_keys", "_klen", 2, func() {
		w.line("_trans += %v;", d.Cast(d.UInt(), "((_mid - _keys) >> 1)"))
	})
	w.ifThen("_found == 0")
	w.line("_trans += %v;", d.Cast(d.UInt(), "_klen"))
	w.close()
	w.close()
	w.close()

	w.line("_trans = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableIndicies), "_trans")))
}

func (bs *binaryStrategy) locateCond(g *gen, w *writer) {
	d := g.d
	w.line("_cond = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableTransOffsets), "_trans")))
	if !g.m.AnyConds() {
		return
	}
	ckeys := g.tab(TableCondKeys)
	w.line("_ckeys = %v;", d.Offset(ckeys, d.Deref(g.tab(TableTransOffsets), "_trans")))
	w.line("_klen = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableTransLengths), "_trans")))
	g.writeCondExec(w, d.Deref(g.tab(TableTransCondSpaces), "_trans"))
	w.line("_found = 0;")
	g.writeBinarySearch(w, ckeys, "_cpc", "_ckeys", "_klen", 1, func() {
		w.line("_cond += %v;", d.Cast(d.UInt(), "(_mid - _ckeys)"))
	})
	w.ifThen("_found == 0")
	w.line("_cond = %v;", g.errCondOffset())
	w.close()
}

func (fs *flatStrategy) locateTransition(g *gen, w *writer) {
	d := g.d
	cs := g.cs()
	keys := g.tab(TableKeys)
	key := g.key()
	w.line("_keys = %v;", d.Offset(keys, fmt.Sprintf("(%v << 1)", cs)))
	w.line("_inds = %v;", d.Offset(g.tab(TableIndicies), d.Deref(g.tab(TableFlatIndexOffset), cs)))
	w.ifThen(fmt.Sprintf("%v <= %v && %v >= %v", key, g.m.KeyMax, key, g.m.KeyMin))
	w.line("_ic = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableCharClass), fmt.Sprintf("%v - %v", key, g.m.KeyMin))))
	w.ifThen(fmt.Sprintf("_ic <= %v && _ic >= %v", d.Deref(keys, "_keys + 1"), d.Deref(keys, "_keys")))
	w.line("_trans = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableIndicies), fmt.Sprintf("_inds + %v", d.Cast(d.Int(), fmt.Sprintf("(_ic - %v)", d.Deref(keys, "_keys")))))))
	w.els()
	w.line("_trans = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableIndexDefaults), cs)))
	w.close()
	w.els()
	w.line("_trans = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableIndexDefaults), cs)))
	w.close()
}

func (fs *flatStrategy) locateCond(g *gen, w *writer) {
	d := g.d
	if !g.m.AnyConds() {
		w.line("_cond = _trans;")
		return
	}
	w.line("_cond = %v;", d.Cast(d.UInt(), d.Deref(g.tab(TableTransOffsets), "_trans")))
	g.writeCondExec(w, d.Deref(g.tab(TableTransCondSpaces), "_trans"))
	w.line("_cond += %v;", d.Cast(d.UInt(), "_cpc"))
}

func (g *gen) anyEOF() bool {
	return !g.noEnd && (g.m.AnyRole(fsm.RoleEOF) || g.m.AnyEOFTrans() || g.m.AnyEOFConds())
}

func (g *gen) eofTransUsed() bool {
	return !g.noEnd && g.m.AnyEOFTrans()
}

// writeDecls declares the execution variables.
func (g *gen) writeDecls(w *writer, names ...string) {
	d := g.d
	for _, n := range names {
		w.decl(d.Int(), n, "0")
	}
	if !g.m.AnyNfa() {
		return
	}
	for _, n := range []string{"_nfa_len", "_nfa_cont", "_nfa_repeat", "_alt", "_new_recs", "_pop_test"} {
		w.decl(d.Int(), n, "0")
	}
	depth := g.m.NfaDepth
	if depth < 1 {
		depth = 1
	}
	for _, n := range []string{"_nfa_state", "_nfa_p", "_nfa_pop"} {
		w.line("%v", d.StackDecl(d.Int(), n, depth))
	}
}

// writeEOFConds checks the EOF condition of the current state. On failure
// _eofcont is cleared and the machine moves to the error state.
func (g *gen) writeEOFConds(w *writer) {
	w.line("_eofcont = 1;")
	if !g.m.AnyEOFConds() {
		return
	}
	d := g.d
	cs := g.cs()
	spaces := d.Deref(g.tab(TableEOFCondSpaces), cs)
	keys := g.tab(TableEOFCondKeys)
	w.ifThen(fmt.Sprintf("%v != -1", spaces))
	w.line("_ckeys = %v;", d.Offset(keys, d.Deref(g.tab(TableEOFCondKeyOffs), cs)))
	w.line("_klen = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableEOFCondKeyLens), cs)))
	g.writeCondExec(w, spaces)
	w.line("_found = 0;")
	g.writeBinarySearch(w, keys, "_cpc", "_ckeys", "_klen", 1, func() {})
	w.ifThen("_found == 0")
	w.line("_eofcont = 0;")
	w.line("%v = %v;", cs, g.m.ErrorState)
	w.close()
	w.close()
}

// writeNfaPush records the alternatives of the current state when they fit
// on the stack.
func (g *gen) writeNfaPush(w *writer) {
	if !g.m.AnyNfa() {
		return
	}
	d := g.d
	cs := g.cs()
	off := d.Deref(g.tab(TableNfaOffsets), cs)
	w.ifThen(fmt.Sprintf("%v != 0", off))
	w.line("_alt = 0;")
	w.line("_new_recs = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableNfaTargs), off)))
	w.ifThen(fmt.Sprintf("_nfa_len + _new_recs <= %v", g.m.NfaDepth))
	w.while("_alt < _new_recs")
	rec := fmt.Sprintf("%v + 1 + _alt", off)
	w.line("_nfa_state[_nfa_len] = %v;", d.Cast(d.Int(), d.Deref(g.tab(TableNfaTargs), rec)))
	w.line("_nfa_p[_nfa_len] = %v;", g.names.P)
	w.line("_nfa_pop[_nfa_len] = %v;", rec)
	g.writeExecActions(w, fsm.RoleNfaPush, d.Deref(g.tab(TableNfaPushActions), rec), writeCode)
	w.line("_nfa_len += 1;")
	w.line("_alt += 1;")
	w.close()
	w.close()
	w.close()
}

// writeNfaLoop wraps body in the backtracking loop. After each scan the
// loop stops in a final state or with an empty stack; otherwise it pops the
// most recent alternative and resumes it when its pop test passes.
func (g *gen) writeNfaLoop(w *writer, body func()) {
	if !g.m.AnyNfa() {
		body()
		return
	}
	d := g.d
	cs := g.cs()
	w.line("_nfa_len = 0;")
	w.line("_nfa_cont = 1;")
	w.line("_nfa_repeat = 1;")
	w.while("_nfa_cont == 1")
	w.ifThen("_nfa_repeat == 1")
	body()
	w.close()
	w.line("_nfa_repeat = 0;")
	w.ifThen(fmt.Sprintf("%v >= %v", cs, g.m.FirstFinal))
	w.line("_nfa_cont = 0;")
	w.elseIf("_nfa_len == 0")
	w.line("_nfa_cont = 0;")
	w.els()
	w.line("_nfa_len -= 1;")
	w.line("%v = _nfa_p[_nfa_len];", g.names.P)
	w.line("_pop_test = 1;")
	g.writeExecActions(w, fsm.RoleNfaPopTest, d.Deref(g.tab(TableNfaPopTrans), "_nfa_pop[_nfa_len]"), writePopTest)
	w.ifThen("_pop_test == 1")
	w.line("%v = _nfa_state[_nfa_len];", cs)
	w.line("_nfa_repeat = 1;")
	w.close()
	w.close()
	w.close()
}

var tableVars = []string{
	"_trans", "_cond", "_have", "_cont", "_acts", "_nacts", "_keys", "_ckeys",
	"_klen", "_cpc", "_lower", "_mid", "_upper", "_found", "_ic", "_inds",
	"_eofcont", "_eofdone",
}

// writeVarExec writes the loop for hosts without goto. Control is carried
// by the _cont and _have flags.
func (g *gen) writeVarExec(w *writer, loc tableLocator) {
	d := g.d
	cs := g.cs()
	p := g.names.P
	w.open("{")
	g.writeDecls(w, tableVars...)
	g.writeNfaLoop(w, func() {
		w.line("_cont = 1;")
		w.while("_cont == 1")
		if chk := g.errStateCheck(); chk != "" {
			w.ifThen(chk)
			w.line("_cont = 0;")
			w.close()
		}
		w.line("_have = 0;")
		if !g.noEnd {
			w.ifThen(fmt.Sprintf("_cont == 1 && %v == %v", p, g.names.PE))
			if g.anyEOF() {
				w.ifThen(fmt.Sprintf("%v == %v", p, g.names.EOF))
				g.writeEOFConds(w)
				w.ifThen("_eofcont == 1")
				g.writeStateActions(w, fsm.RoleEOF, TableEOFActions, cs)
				if g.m.AnyEOFTrans() {
					eofTrans := d.Deref(g.tab(TableEOFTrans), cs)
					w.ifThen(fmt.Sprintf("%v > 0", eofTrans))
					w.line("_trans = %v - 1;", d.Cast(d.UInt(), eofTrans))
					w.line("_have = 1;")
					w.close()
				}
				w.close()
				w.close()
			}
			w.ifThen("_have == 0")
			w.line("_cont = 0;")
			w.close()
			w.close()
		}

		w.ifThen("_cont == 1")
		w.ifThen("_have == 0")
		g.writeStateActions(w, fsm.RoleFromState, TableFromStateActions, cs)
		g.writeNfaPush(w)
		loc.locateTransition(g, w)
		w.close()
		loc.locateCond(g, w)
		w.line("%v = %v;", cs, d.Cast(d.Int(), d.Deref(g.tab(TableCondTargs), "_cond")))
		if g.m.AnyRole(fsm.RoleTrans) {
			ref := d.Deref(g.tab(TableCondActions), "_cond")
			w.ifThen(fmt.Sprintf("%v != 0", ref))
			g.writeExecActions(w, fsm.RoleTrans, ref, writeCode)
			w.close()
		}
		g.writeStateActions(w, fsm.RoleToState, TableToStateActions, cs)
		if chk := g.errStateCheck(); chk != "" {
			w.ifThen(chk)
			w.line("_cont = 0;")
			w.close()
		}
		if g.eofTransUsed() {
			w.ifThen("_have == 1")
			w.line("_cont = 0;")
			w.close()
		}
		w.ifThen("_cont == 1")
		w.line("%v += 1;", p)
		w.close()
		w.close()
		w.close()
	})
	w.close()
}

// writeGotoExec writes the loop for hosts with goto.
func (g *gen) writeGotoExec(w *writer, loc tableLocator) {
	d := g.d
	cs := g.cs()
	p := g.names.P
	w.open("{")
	g.writeDecls(w, tableVars...)
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
		loc.locateTransition(g, w)
		w.label("_match_cond")
		loc.locateCond(g, w)
		w.line("%v = %v;", cs, d.Cast(d.Int(), d.Deref(g.tab(TableCondTargs), "_cond")))
		if g.m.AnyRole(fsm.RoleTrans) {
			ref := d.Deref(g.tab(TableCondActions), "_cond")
			w.ifThen(fmt.Sprintf("%v == 0", ref))
			w.gotoLabel("_again")
			w.close()
			g.writeExecActions(w, fsm.RoleTrans, ref, writeCode)
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
			if g.anyEOF() {
				w.ifThen(fmt.Sprintf("%v == %v", p, g.names.EOF))
				g.writeEOFConds(w)
				w.ifThen("_eofcont == 0")
				w.gotoLabel("_out")
				w.close()
				g.writeStateActions(w, fsm.RoleEOF, TableEOFActions, cs)
				if g.m.AnyEOFTrans() {
					eofTrans := d.Deref(g.tab(TableEOFTrans), cs)
					w.ifThen(fmt.Sprintf("%v > 0", eofTrans))
					w.line("_trans = %v - 1;", d.Cast(d.UInt(), eofTrans))
					w.line("_eofdone = 1;")
					w.gotoLabel("_match_cond")
					w.close()
				}
				w.close()
			}
		}
		w.label("_out")
	})
	w.close()
}
