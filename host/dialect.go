package host

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
)

// Dialect renders the syntax the execution loop is assembled from. Blocks
// are always braced; a statement-level helper includes its terminator.
type Dialect interface {
	Name() string

	// ArrayDecl declares a read-only array. An empty array is rendered with
	// a single 0 element.
	ArrayDecl(name string, t Type, vals []int64) string
	ConstDecl(name string, v int64) string
	// VarDecl declares a local variable, initialized when init is not empty.
	VarDecl(typ, name, init string) string
	// StackDecl declares a fixed-size local array of n elements.
	StackDecl(typ, name string, n int) string

	Int() string
	UInt() string
	Cast(typ, expr string) string
	// Deref reads arr[idx].
	Deref(arr, idx string) string
	// Offset yields a position inside arr usable as a search cursor.
	Offset(arr, idx string) string

	Switch(expr string) string
	Case(v string) string
	CaseEnd() string
	Default() string
	While(cond string) string
	Label(name string) string
	Goto(name string) string
}

var (
	CDialect          Dialect = cDialect{}
	GoDialect         Dialect = goDialect{}
	TranslatedDialect Dialect = translatedDialect{}
)

// DialectByName returns a builtin dialect.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "c":
		return CDialect, nil
	case "go":
		return GoDialect, nil
	case "translated", "":
		return TranslatedDialect, nil
	}
	return nil, fmt.Errorf("unknown dialect: %v", name)
}

const valuesPerLine = 10

func writeValues(b *strings.Builder, vals []int64, indent string) {
	if len(vals) == 0 {
		vals = []int64{0}
	}
	for i, v := range vals {
		if i%valuesPerLine == 0 {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(indent)
		} else {
			b.WriteString(" ")
		}
		b.WriteString(strconv.FormatInt(v, 10))
		if i < len(vals)-1 {
			b.WriteString(",")
		}
	}
	b.WriteString("\n")
}

type cDialect struct{}

func (cDialect) Name() string {
	return "c"
}

func (cDialect) ArrayDecl(name string, t Type, vals []int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "static const %v %v[] = {\n", t.Name, name)
	writeValues(&b, vals, "\t")
	b.WriteString("};\n")
	return b.String()
}

func (cDialect) ConstDecl(name string, v int64) string {
	return fmt.Sprintf("static const int %v = %v;\n", name, v)
}

func (cDialect) VarDecl(typ, name, init string) string {
	if init == "" {
		return fmt.Sprintf("%v %v;", typ, name)
	}
	return fmt.Sprintf("%v %v = %v;", typ, name, init)
}

func (cDialect) StackDecl(typ, name string, n int) string {
	return fmt.Sprintf("%v %v[%v];", typ, name, n)
}

func (cDialect) Int() string {
	return "int"
}

func (cDialect) UInt() string {
	return "unsigned int"
}

func (cDialect) Cast(typ, expr string) string {
	return fmt.Sprintf("((%v)%v)", typ, expr)
}

func (cDialect) Deref(arr, idx string) string {
	return fmt.Sprintf("%v[%v]", arr, idx)
}

func (cDialect) Offset(arr, idx string) string {
	return idx
}

func (cDialect) Switch(expr string) string {
	return fmt.Sprintf("switch ( %v ) {", expr)
}

func (cDialect) Case(v string) string {
	return fmt.Sprintf("case %v: {", v)
}

func (cDialect) CaseEnd() string {
	return "break; }"
}

func (cDialect) Default() string {
	return "default: {"
}

func (cDialect) While(cond string) string {
	return fmt.Sprintf("while ( %v ) {", cond)
}

func (cDialect) Label(name string) string {
	return fmt.Sprintf("%v: {}", name)
}

func (cDialect) Goto(name string) string {
	return fmt.Sprintf("goto %v;", name)
}

// goDialect renders declarations with jennifer; statements are plain text
// since they are spliced into a function body written by the user.
type goDialect struct{}

func (goDialect) Name() string {
	return "go"
}

func (goDialect) ArrayDecl(name string, t Type, vals []int64) string {
	if len(vals) == 0 {
		vals = []int64{0}
	}
	decl := jen.Var().Id(name).Op("=").Index().Id(t.Name).ValuesFunc(func(g *jen.Group) {
		for _, v := range vals {
			g.Lit(int(v))
		}
	})
	return fmt.Sprintf("%#v\n", decl)
}

func (goDialect) ConstDecl(name string, v int64) string {
	return fmt.Sprintf("%#v\n", jen.Const().Id(name).Op("=").Lit(int(v)))
}

// VarDecl also discards the variable so that declarations a particular
// machine does not need still compile.
func (goDialect) VarDecl(typ, name, init string) string {
	if init == "" {
		return fmt.Sprintf("var %v %v; _ = %v", name, typ, name)
	}
	return fmt.Sprintf("var %v %v = %v; _ = %v", name, typ, init, name)
}

func (goDialect) StackDecl(typ, name string, n int) string {
	return fmt.Sprintf("var %v [%v]%v; _ = %v", name, n, typ, name)
}

func (goDialect) Int() string {
	return "int"
}

// UInt is int as well; Go does not mix signedness in arithmetic.
func (goDialect) UInt() string {
	return "int"
}

func (goDialect) Cast(typ, expr string) string {
	return fmt.Sprintf("%v(%v)", typ, expr)
}

func (goDialect) Deref(arr, idx string) string {
	return fmt.Sprintf("int(%v[%v])", arr, idx)
}

func (goDialect) Offset(arr, idx string) string {
	return idx
}

func (goDialect) Switch(expr string) string {
	return fmt.Sprintf("switch %v {", expr)
}

func (goDialect) Case(v string) string {
	return fmt.Sprintf("case %v:", v)
}

func (goDialect) CaseEnd() string {
	return ""
}

func (goDialect) Default() string {
	return "default:"
}

func (goDialect) While(cond string) string {
	return fmt.Sprintf("for %v {", cond)
}

func (goDialect) Label(name string) string {
	return fmt.Sprintf("%v:", name)
}

func (goDialect) Goto(name string) string {
	return fmt.Sprintf("goto %v", name)
}

// translatedDialect renders the host-independent intermediate language that
// a host template translates.
type translatedDialect struct{}

func (translatedDialect) Name() string {
	return "translated"
}

func (translatedDialect) ArrayDecl(name string, t Type, vals []int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "array %v %v( %v, %v ) = {\n", t.Name, name, t.Min, t.Max)
	writeValues(&b, vals, "\t")
	b.WriteString("};\n")
	return b.String()
}

func (translatedDialect) ConstDecl(name string, v int64) string {
	return fmt.Sprintf("value int %v = %v;\n", name, v)
}

func (translatedDialect) VarDecl(typ, name, init string) string {
	if init == "" {
		return fmt.Sprintf("%v %v;", typ, name)
	}
	return fmt.Sprintf("%v %v = %v;", typ, name, init)
}

func (translatedDialect) StackDecl(typ, name string, n int) string {
	return fmt.Sprintf("stack %v %v[%v];", typ, name, n)
}

func (translatedDialect) Int() string {
	return "int"
}

func (translatedDialect) UInt() string {
	return "uint"
}

func (translatedDialect) Cast(typ, expr string) string {
	return fmt.Sprintf("cast(%v)%v", typ, expr)
}

func (translatedDialect) Deref(arr, idx string) string {
	return fmt.Sprintf("deref(%v, %v)", arr, idx)
}

func (translatedDialect) Offset(arr, idx string) string {
	return fmt.Sprintf("offset(%v, %v)", arr, idx)
}

func (translatedDialect) Switch(expr string) string {
	return fmt.Sprintf("switch ( %v ) {", expr)
}

func (translatedDialect) Case(v string) string {
	return fmt.Sprintf("case %v {", v)
}

func (translatedDialect) CaseEnd() string {
	return "}"
}

func (translatedDialect) Default() string {
	return "default {"
}

func (translatedDialect) While(cond string) string {
	return fmt.Sprintf("while ( %v ) {", cond)
}

func (translatedDialect) Label(name string) string {
	return fmt.Sprintf("label %v;", name)
}

func (translatedDialect) Goto(name string) string {
	return fmt.Sprintf("goto %v;", name)
}
