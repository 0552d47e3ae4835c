package codegen

import (
	"fmt"
	"strings"

	"github.com/nihei9/fsmgen/fsm"
)

type actionBody func(w *writer, a *fsm.Action)

func writeCode(w *writer, a *fsm.Action) {
	for _, c := range a.Code {
		w.line("%v", c)
	}
}

// condExpr is the boolean expression of a condition or pop-test action.
func condExpr(a *fsm.Action) string {
	return strings.Join(a.Code, " ")
}

// writePopTest clears _pop_test when the test fails.
func writePopTest(w *writer, a *fsm.Action) {
	w.ifThen(fmt.Sprintf("!( %v )", condExpr(a)))
	w.line("_pop_test = 0;")
	w.close()
}

// byList reports whether references in role are action list ids. NFA
// records refer to lists in every mode; other roles only in exp mode.
func (g *gen) byList(role fsm.Role) bool {
	return g.st.ActMode() == ActExp || role == fsm.RoleNfaPush || role == fsm.RoleNfaPopTest
}

// writeActionCases writes one case per action (loop mode) or per action
// list (exp mode and NFA records) referenced in the role. Nothing else is
// written.
func (g *gen) writeActionCases(w *writer, role fsm.Role, body actionBody) {
	if !g.byList(role) {
		for _, a := range g.m.Actions {
			if a.Usage.Refs(role) == 0 {
				continue
			}
			w.caseOf(a.ID)
			body(w, a)
			w.endCase()
		}
		return
	}
	for _, t := range g.m.ActionTables {
		if t.Usage.Refs(role) == 0 {
			continue
		}
		w.caseOf(t.ID + 1)
		for _, a := range t.Actions {
			body(w, g.m.Actions[a])
		}
		w.endCase()
	}
}

// writeExecActions dispatches the action list ref points at. ref is an
// expression yielding a stored (biased) reference. The dispatch is omitted
// when no list is referenced in the role.
func (g *gen) writeExecActions(w *writer, role fsm.Role, ref string, body actionBody) {
	if !g.m.AnyRole(role) {
		return
	}
	d := g.d
	if g.byList(role) {
		w.switchOn(ref)
		g.writeActionCases(w, role, body)
		w.close()
		return
	}
	acts := g.tab(TableActions)
	w.line("_acts = %v;", d.Offset(acts, ref))
	w.line("_nacts = %v;", d.Cast(d.UInt(), d.Deref(acts, "_acts")))
	w.line("_acts += 1;")
	w.while("_nacts > 0")
	w.switchOn(d.Deref(acts, "_acts"))
	g.writeActionCases(w, role, body)
	w.close()
	w.line("_nacts -= 1;")
	w.line("_acts += 1;")
	w.close()
}

// writeInlineActions writes the actions of one known list in place. In loop
// mode the list is still dispatched through the actions array.
func (g *gen) writeInlineActions(w *writer, role fsm.Role, list int, body actionBody) {
	if list == fsm.None {
		return
	}
	if !g.byList(role) {
		g.writeExecActions(w, role, fmt.Sprint(g.actRef(list)), body)
		return
	}
	for _, a := range g.m.ActionTables[list].Actions {
		body(w, g.m.Actions[a])
	}
}

// writeStateActions dispatches a per-state action table for the current
// state.
func (g *gen) writeStateActions(w *writer, role fsm.Role, logical string, state string) {
	if !g.m.AnyRole(role) {
		return
	}
	g.writeExecActions(w, role, g.d.Deref(g.tab(logical), state), writeCode)
}

// writeCondExec computes the condition value _cpc of the condition space
// space evaluates to.
func (g *gen) writeCondExec(w *writer, space string) {
	w.line("_cpc = 0;")
	if len(g.m.CondSpaces) == 0 {
		return
	}
	w.switchOn(space)
	for _, cs := range g.m.CondSpaces {
		w.caseOf(cs.ID)
		for i, c := range cs.Conds {
			w.ifThen(condExpr(g.m.Actions[c]))
			w.line("_cpc += %v;", 1<<uint(i))
			w.close()
		}
		w.endCase()
	}
	w.close()
}

// writeCondExecFor computes _cpc for a known condition space.
func (g *gen) writeCondExecFor(w *writer, space int) {
	w.line("_cpc = 0;")
	for i, c := range g.m.CondSpaces[space].Conds {
		w.ifThen(condExpr(g.m.Actions[c]))
		w.line("_cpc += %v;", 1<<uint(i))
		w.close()
	}
}

func (g *gen) key() string {
	return g.d.Deref(g.names.Data, g.names.P)
}

func (g *gen) cs() string {
	return g.names.CS
}

// errStateCheck is a condition true in the error state, or "" when the
// machine has none.
func (g *gen) errStateCheck() string {
	if g.m.ErrorState == fsm.None {
		return ""
	}
	return fmt.Sprintf("%v == %v", g.cs(), g.m.ErrorState)
}
