package codegen

import (
	"fmt"
	"strings"

	"github.com/nihei9/fsmgen/host"
)

type writer struct {
	d     host.Dialect
	b     strings.Builder
	depth int
}

func newWriter(d host.Dialect) *writer {
	return &writer{
		d: d,
	}
}

func (w *writer) line(format string, a ...interface{}) {
	s := fmt.Sprintf(format, a...)
	if s == "" {
		return
	}
	w.b.WriteString(strings.Repeat("\t", w.depth))
	w.b.WriteString(s)
	w.b.WriteString("\n")
}

// raw writes s without indentation. Labels are written this way.
func (w *writer) raw(s string) {
	w.b.WriteString(s)
	w.b.WriteString("\n")
}

func (w *writer) open(format string, a ...interface{}) {
	w.line(format, a...)
	w.depth++
}

func (w *writer) close() {
	w.closeWith("}")
}

func (w *writer) closeWith(s string) {
	w.depth--
	w.line("%v", s)
}

func (w *writer) ifThen(cond string) {
	w.open("if ( %v ) {", cond)
}

func (w *writer) elseIf(cond string) {
	w.depth--
	w.open("} else if ( %v ) {", cond)
}

func (w *writer) els() {
	w.depth--
	w.open("} else {")
}

func (w *writer) while(cond string) {
	w.open("%v", w.d.While(cond))
}

func (w *writer) switchOn(expr string) {
	w.open("%v", w.d.Switch(expr))
}

func (w *writer) caseOf(v interface{}) {
	w.open("%v", w.d.Case(fmt.Sprint(v)))
}

func (w *writer) endCase() {
	w.closeWith(w.d.CaseEnd())
}

func (w *writer) label(name string) {
	w.raw(w.d.Label(name))
}

func (w *writer) gotoLabel(name string) {
	w.line("%v", w.d.Goto(name))
}

func (w *writer) decl(typ, name, init string) {
	w.line("%v", w.d.VarDecl(typ, name, init))
}

func (w *writer) String() string {
	return w.b.String()
}
