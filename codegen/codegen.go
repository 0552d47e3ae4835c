package codegen

import (
	"fmt"
	"io"
	"strings"

	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/host"
	"github.com/nihei9/fsmgen/log"
	"github.com/nihei9/fsmgen/table"
)

// Names are the identifiers of the scanner variables the generated code
// refers to. The host program declares them.
type Names struct {
	P    string `toml:"p"`
	PE   string `toml:"pe"`
	EOF  string `toml:"eof"`
	CS   string `toml:"cs"`
	Data string `toml:"data"`
}

func DefaultNames() Names {
	return Names{
		P:    "p",
		PE:   "pe",
		EOF:  "eof",
		CS:   "cs",
		Data: "data",
	}
}

func (n Names) withDefaults() Names {
	def := DefaultNames()
	if n.P == "" {
		n.P = def.P
	}
	if n.PE == "" {
		n.PE = def.PE
	}
	if n.EOF == "" {
		n.EOF = def.EOF
	}
	if n.CS == "" {
		n.CS = def.CS
	}
	if n.Data == "" {
		n.Data = def.Data
	}
	return n
}

type config struct {
	names    Names
	tieBreak fsm.TieBreak
	nfaMax   int
	noEnd    bool
	prefix   string
	stem     string
	logger   log.Logger
}

type GenerateOption func(c *config) error

func EnableLogging(w io.Writer) GenerateOption {
	return func(c *config) error {
		logger, err := log.NewLogger(w)
		if err != nil {
			return err
		}
		c.logger = logger
		return nil
	}
}

// WithLogger sets a logger built by the caller.
func WithLogger(l log.Logger) GenerateOption {
	return func(c *config) error {
		if l == nil {
			return fmt.Errorf("logger must be non-nil")
		}
		c.logger = l
		return nil
	}
}

func WithNames(n Names) GenerateOption {
	return func(c *config) error {
		c.names = n.withDefaults()
		return nil
	}
}

func WithTieBreak(tb fsm.TieBreak) GenerateOption {
	return func(c *config) error {
		c.tieBreak = tb
		return nil
	}
}

// WithNfaMax overrides the depth of the backtracking stack.
func WithNfaMax(n int) GenerateOption {
	return func(c *config) error {
		if n < 0 {
			return fmt.Errorf("the nfa stack depth must not be negative: %v", n)
		}
		c.nfaMax = n
		return nil
	}
}

// WithNoEnd omits the end-of-buffer tests; the scanner then stops only by
// reaching the error state.
func WithNoEnd() GenerateOption {
	return func(c *config) error {
		c.noEnd = true
		return nil
	}
}

// WithPrefix sets the prefix of generated identifiers. The default is
// `_<machine>_` for tables and `<machine>_` for state constants.
func WithPrefix(p string) GenerateOption {
	return func(c *config) error {
		c.prefix = p
		return nil
	}
}

// WithStem sets the input stem the output file name is derived from.
func WithStem(stem string) GenerateOption {
	return func(c *config) error {
		c.stem = stem
		return nil
	}
}

// Output is a generated scanner. Fragments are host text meant to be
// placed into a host template.
type Output struct {
	FileName string
	// Data declares the tables and the state constants.
	Data string
	// Init sets the start state.
	Init string
	// Exec is the execution loop.
	Exec string

	Tables   *table.Set
	Layout   *table.Layout
	Machine  *fsm.Machine
	Perm     []int
	Strategy Strategy
	Names    Names
	NoEnd    bool

	tablePrefix string
	constPrefix string
}

// TableName returns the identifier of a logical table.
func (o *Output) TableName(logical string) string {
	return o.tablePrefix + logical
}

// Table returns the committed array of a logical table.
func (o *Output) Table(logical string) (*table.Array, bool) {
	return o.Tables.Lookup(o.TableName(logical))
}

func (o *Output) ConstName(logical string) string {
	return o.constPrefix + logical
}

func (o *Output) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, frag := range []string{o.Data, "\n", o.Init, "\n", o.Exec} {
		c, err := io.WriteString(w, frag)
		n += int64(c)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Generate builds a scanner for m in the given style. m is not modified;
// the analysis runs on a copy. No output is returned unless every step
// succeeds.
func Generate(m *fsm.Machine, c host.Capability, style Style, opts ...GenerateOption) (*Output, error) {
	conf := &config{
		names:  DefaultNames(),
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		err := opt(conf)
		if err != nil {
			return nil, err
		}
	}
	logger := conf.logger

	st, err := Select(c, style)
	if err != nil {
		return nil, err
	}
	logger.Log("host: %v, style: %v, strategy: %v", c.Name(), style, st.Name())

	err = m.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid machine: %w", err)
	}

	mach := m.Clone()
	aopts := st.analysisOptions()
	aopts.TieBreak = conf.tieBreak
	aopts.NfaMax = conf.nfaMax
	perm, err := mach.Analyze(aopts)
	if err != nil {
		return nil, &ConfigError{
			Host:  c.Name(),
			Style: style,
			Cause: err,
		}
	}
	logger.Log("states: %v, first final: %v, error state: %v, nfa depth: %v", len(mach.States), mach.FirstFinal, mach.ErrorState, mach.NfaDepth)

	g := newGen(mach, c, st, conf)
	if fs, ok := st.(*flatStrategy); ok {
		err := fs.check(mach)
		if err != nil {
			return nil, &ConfigError{
				Host:  c.Name(),
				Style: style,
				Cause: err,
			}
		}
	}

	src := func(b *table.Builder) error {
		st.tableData(g, b)
		return nil
	}
	layout, err := table.Size(src, c.Types())
	if err != nil {
		return nil, err
	}
	for _, d := range layout.Decls {
		logger.Log("table %v: %v values in [%v, %v] as %v", d.Name, len(d.Values), d.Min, d.Max, d.Type.Name)
	}
	set, err := table.Emit(src, layout)
	if err != nil {
		return nil, err
	}
	g.tables = set

	out := &Output{
		Tables:      set,
		Layout:      layout,
		Machine:     mach,
		Perm:        perm,
		Strategy:    st,
		Names:       conf.names,
		NoEnd:       conf.noEnd,
		tablePrefix: g.tablePrefix,
		constPrefix: g.constPrefix,
	}
	out.Data = g.writeData()
	out.Init = g.writeInit()

	w := newWriter(c.Dialect())
	st.writeExec(g, w)
	out.Exec = w.String()

	stem := conf.stem
	if stem == "" {
		stem = g.machineName()
	}
	out.FileName = c.DefaultOutFileName(stem)
	logger.Log("generated %v", out.FileName)

	return out, nil
}

type gen struct {
	m      *fsm.Machine
	cap    host.Capability
	d      host.Dialect
	st     Strategy
	names  Names
	noEnd  bool
	tables *table.Set

	tablePrefix string
	constPrefix string
}

func newGen(m *fsm.Machine, c host.Capability, st Strategy, conf *config) *gen {
	g := &gen{
		m:     m,
		cap:   c,
		d:     c.Dialect(),
		st:    st,
		names: conf.names,
		noEnd: conf.noEnd,
	}
	if conf.prefix != "" {
		g.tablePrefix = conf.prefix
		g.constPrefix = conf.prefix
	} else {
		g.tablePrefix = "_" + g.machineName() + "_"
		g.constPrefix = g.machineName() + "_"
	}
	return g
}

func (g *gen) machineName() string {
	if g.m.Name == "" {
		return "fsm"
	}
	return g.m.Name
}

func (g *gen) tab(logical string) string {
	return g.tablePrefix + logical
}

func (g *gen) cnst(logical string) string {
	return g.constPrefix + logical
}

func (g *gen) writeData() string {
	var b strings.Builder
	for _, a := range g.tables.Arrays {
		b.WriteString(g.d.ArrayDecl(a.Name, a.Type, a.Values))
		b.WriteString("\n")
	}
	b.WriteString(g.d.ConstDecl(g.cnst(constStart), int64(g.m.StartState)))
	b.WriteString(g.d.ConstDecl(g.cnst(constFirstFinal), int64(g.m.FirstFinal)))
	errState := int64(0)
	if g.m.ErrorState != fsm.None {
		errState = int64(g.m.ErrorState)
	}
	b.WriteString(g.d.ConstDecl(g.cnst(constError), errState))
	return b.String()
}

func (g *gen) writeInit() string {
	return fmt.Sprintf("%v = %v;\n", g.names.CS, g.cnst(constStart))
}

const (
	constStart      = "start"
	constFirstFinal = "first_final"
	constError      = "error"
)
