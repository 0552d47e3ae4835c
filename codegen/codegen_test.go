package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/fsm/fsmtest"
	"github.com/nihei9/fsmgen/host"
	"github.com/nihei9/fsmgen/table"
	"github.com/stretchr/testify/require"
)

func values(t *testing.T, out *Output, logical string) []int64 {
	t.Helper()
	a, ok := out.Table(logical)
	require.True(t, ok, "table %v is missing", logical)
	return a.Values
}

func TestGenerate_ScenarioTables(t *testing.T) {
	m := fsmtest.Scenario()
	out, err := Generate(m, host.C, BinaryLoop)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2, 0}, out.Perm)
	require.Equal(t, []int64{'a'}, values(t, out, TableKeys))
	require.Equal(t, []int64{0, 0, 1}, values(t, out, TableKeyOffsets))
	require.Equal(t, []int64{0, 1, 0}, values(t, out, TableSingleLens))
	require.Equal(t, []int64{2, 0}, values(t, out, TableCondTargs))
	require.Equal(t, []int64{1, 0}, values(t, out, TableCondActions))
	require.Equal(t, []int64{0, 1, 0}, values(t, out, TableActions))

	require.Contains(t, out.Data, "static const int scenario_start = 1;")
	require.Contains(t, out.Data, "static const int scenario_first_final = 2;")
	require.Contains(t, out.Data, "static const int scenario_error = 0;")
	require.Equal(t, "cs = scenario_start;\n", out.Init)
	require.Equal(t, "scenario.c", out.FileName)

	// The input machine is left as it was.
	require.Len(t, m.States, 2)
	require.Equal(t, fsm.None, m.ErrorState)
	require.Equal(t, 0, m.StartState)
}

func TestGenerate_EOFAndNfaTables(t *testing.T) {
	tests := []struct {
		caption string
		machine *fsm.Machine
		style   Style
		tables  map[string][]int64
	}{
		{
			caption: "EOF transitions are stored biased by one",
			machine: fsmtest.EOFTrans(),
			style:   BinaryExp,
			tables: map[string][]int64{
				TableEOFTrans:   {0, 0, 2, 0},
				TableEOFActions: {0, 0, 2, 0},
			},
		},
		{
			caption: "EOF conditions",
			machine: fsmtest.EOFCond(),
			style:   FlatLoop,
			tables: map[string][]int64{
				TableEOFCondSpaces:  {-1, -1, 0},
				TableEOFCondKeyOffs: {0, 0, 0},
				TableEOFCondKeyLens: {0, 0, 1},
				TableEOFCondKeys:    {1},
			},
		},
		{
			caption: "nfa records refer to action lists in loop mode",
			machine: fsmtest.Nfa(),
			style:   BinaryLoop,
			tables: map[string][]int64{
				TableNfaOffsets:     {0, 1, 0, 0, 0},
				TableNfaTargs:       {0, 1, 3},
				TableNfaPushActions: {0, 0, 1},
				TableNfaPopTrans:    {0, 0, 2},
			},
		},
		{
			caption: "nfa records refer to action lists in exp mode",
			machine: fsmtest.Nfa(),
			style:   SwitchExp,
			tables: map[string][]int64{
				TableNfaPushActions: {0, 0, 1},
				TableNfaPopTrans:    {0, 0, 2},
			},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %s", i, tt.caption), func(t *testing.T) {
			out, err := Generate(tt.machine, host.C, tt.style)
			require.NoError(t, err)
			for name, vals := range tt.tables {
				require.Equal(t, vals, values(t, out, name), "table: %v", name)
			}
		})
	}
}

func TestActionRef(t *testing.T) {
	out, err := Generate(fsmtest.Digits(), host.C, BinaryLoop)
	require.NoError(t, err)
	m := out.Machine

	require.Equal(t, []int64{0, 1, 0, 1, 1, 1, 2, 1, 3}, m.ActionsArray())
	require.Equal(t, int64(0), ActionRef(m, ActLoop, fsm.None))
	require.Equal(t, int64(0), ActionRef(m, ActExp, fsm.None))
	require.Equal(t, int64(1), ActionRef(m, ActLoop, 0))
	require.Equal(t, int64(1), ActionRef(m, ActExp, 0))
	require.Equal(t, int64(3), ActionRef(m, ActLoop, 1))
	require.Equal(t, int64(2), ActionRef(m, ActExp, 1))
	require.Equal(t, int64(7), ActionRef(m, ActLoop, 3))
	require.Equal(t, int64(4), ActionRef(m, ActExp, 3))
	require.Equal(t, int64(0), NfaActionRef(fsm.None))
	require.Equal(t, int64(4), NfaActionRef(3))
}

func TestGenerate_NfaCycle(t *testing.T) {
	m := fsmtest.Nfa()
	m.States[2].Nfa = []fsm.NfaTarg{
		{Target: 0, Push: fsm.None, PopTest: fsm.None},
	}
	_, err := Generate(m, host.C, BinaryLoop)
	require.Error(t, err)
	var cycleErr *fsm.NfaCycleError
	require.ErrorAs(t, err, &cycleErr)
	require.Equal(t, []int{0, 2}, cycleErr.States)

	out, err := Generate(fsmtest.NfaChain(), host.C, BinaryLoop)
	require.NoError(t, err)
	require.Equal(t, 2, out.Machine.NfaDepth)
	require.Contains(t, out.Exec, "_nfa_len + _new_recs <= 2")
}

// NFA push and pop-test references are list ids in loop mode too, so the
// records dispatch through a switch over lists rather than the actions
// array.
func TestGenerate_NfaDispatch(t *testing.T) {
	for _, style := range []Style{BinaryLoop, FlatLoop, BinaryExp} {
		t.Run(style.String(), func(t *testing.T) {
			out, err := Generate(fsmtest.Nfa(), host.C, style)
			require.NoError(t, err)
			require.Contains(t, out.Exec, "switch ( _nfa_nfa_pop_trans[_nfa_pop[_nfa_len]] ) {")
			require.Contains(t, out.Exec, "case 2: {")
			require.NotContains(t, out.Exec, "_acts = _nfa_nfa_pop_trans")
			require.NotContains(t, out.Exec, "_acts = _nfa_nfa_push_actions")
		})
	}
}

func TestGenerate_RoleDispatch(t *testing.T) {
	out, err := Generate(fsmtest.Scenario(), host.C, BinaryLoop)
	require.NoError(t, err)
	for _, logical := range []string{TableToStateActions, TableFromStateActions, TableEOFActions, TableEOFTrans, TableNfaTargs} {
		_, ok := out.Table(logical)
		require.False(t, ok, "table: %v", logical)
		require.NotContains(t, out.Exec, out.TableName(logical))
	}

	out, err = Generate(fsmtest.Digits(), host.C, BinaryLoop)
	require.NoError(t, err)
	require.Contains(t, out.Data, "_digits_to_state_actions")
	require.Contains(t, out.Data, "_digits_from_state_actions")
	require.NotContains(t, out.Data, "_digits_eof_actions")
	require.Contains(t, out.Exec, "enter();")
	require.Contains(t, out.Exec, "leave();")

	// Exp mode keeps no actions array.
	out, err = Generate(fsmtest.Digits(), host.C, BinaryExp)
	require.NoError(t, err)
	_, ok := out.Table(TableActions)
	require.False(t, ok)
}

func TestGenerate_ExecShapes(t *testing.T) {
	tests := []struct {
		host     host.Capability
		style    Style
		contains []string
		excludes []string
	}{
		{
			host:     host.C,
			style:    BinaryLoop,
			contains: []string{"_resume: {}", "_match_cond: {}", "_digits_key_offsets[cs]", "while ( _nacts > 0 ) {"},
		},
		{
			host:     host.C,
			style:    FlatExp,
			contains: []string{"_digits_char_class[", "_digits_index_defaults[cs]", "_cond = _trans;"},
			excludes: []string{"_digits_actions["},
		},
		{
			host:     host.C,
			style:    SwitchLoop,
			contains: []string{"switch ( cs ) {", "ctr0: {}", "goto _again;", "_again: {}"},
			excludes: []string{"_digits_key_offsets"},
		},
		{
			host:     host.C,
			style:    SwitchExp,
			contains: []string{"digit();", "goto _again;"},
			excludes: []string{"_nacts > 0"},
		},
		{
			host:     host.C,
			style:    IpGoto,
			contains: []string{"st1: {}", "goto st2;", "digit();"},
			excludes: []string{"_again"},
		},
		{
			host:     host.Go,
			style:    BinaryLoop,
			contains: []string{"for _cont == 1 {", "var _trans int = 0; _ = _trans", "int(data[p])"},
			excludes: []string{"goto "},
		},
		{
			host:     host.Go,
			style:    FlatLoop,
			contains: []string{"for _cont == 1 {"},
			excludes: []string{"goto "},
		},
		{
			host:     host.Java,
			style:    BinaryExp,
			contains: []string{"deref(_digits_key_offsets, cs)", "while ( _cont == 1 ) {"},
			excludes: []string{"goto "},
		},
		{
			host:     host.D,
			style:    IpGoto,
			contains: []string{"label st1;", "goto st2;"},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v %v", i, tt.host.Name(), tt.style), func(t *testing.T) {
			out, err := Generate(fsmtest.Digits(), tt.host, tt.style)
			require.NoError(t, err)
			for _, s := range tt.contains {
				require.Contains(t, out.Exec, s)
			}
			for _, s := range tt.excludes {
				require.NotContains(t, out.Exec, s)
			}
			require.Equal(t, strings.Count(out.Exec, "{"), strings.Count(out.Exec, "}"))
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	for name, m := range fsmtest.All() {
		for _, style := range Styles {
			t.Run(fmt.Sprintf("%v %v", name, style), func(t *testing.T) {
				out1, err := Generate(m, host.C, style)
				require.NoError(t, err)
				out2, err := Generate(m, host.C, style)
				require.NoError(t, err)
				require.Equal(t, out1.Data, out2.Data)
				require.Equal(t, out1.Init, out2.Init)
				require.Equal(t, out1.Exec, out2.Exec)
			})
		}
	}
}

func TestGenerate_Options(t *testing.T) {
	out, err := Generate(fsmtest.Scenario(), host.C, BinaryLoop,
		WithPrefix("lex_"),
		WithNames(Names{CS: "state", Data: "buf"}),
		WithStem("dir/scanner.rl"),
	)
	require.NoError(t, err)
	require.Equal(t, "lex_trans_keys", out.TableName(TableKeys))
	require.Equal(t, "lex_start", out.ConstName(constStart))
	require.Contains(t, out.Data, "static const char lex_trans_keys[] = {")
	require.Equal(t, "state = lex_start;\n", out.Init)
	require.Contains(t, out.Exec, "buf[p]")
	require.Contains(t, out.Exec, "if ( state == 0 ) {")
	require.Equal(t, "dir/scanner.c", out.FileName)
	require.Equal(t, "pe", out.Names.PE)

	out, err = Generate(fsmtest.Nfa(), host.C, BinaryLoop, WithNfaMax(4))
	require.NoError(t, err)
	require.Equal(t, 4, out.Machine.NfaDepth)
	require.Contains(t, out.Exec, "_nfa_len + _new_recs <= 4")
	require.Contains(t, out.Exec, "int _nfa_state[4];")

	out, err = Generate(fsmtest.EOFTrans(), host.C, BinaryLoop, WithNoEnd())
	require.NoError(t, err)
	require.True(t, out.NoEnd)
	require.NotContains(t, out.Exec, "_test_eof")
	require.NotContains(t, out.Exec, "p == pe")

	_, err = Generate(fsmtest.Scenario(), host.C, BinaryLoop, WithNfaMax(-1))
	require.Error(t, err)

	var logs bytes.Buffer
	_, err = Generate(fsmtest.Scenario(), host.C, BinaryLoop, EnableLogging(&logs))
	require.NoError(t, err)
	require.Contains(t, logs.String(), "binary-loop-goto")
	require.Contains(t, logs.String(), "generated scenario.c")
}

func TestGenerate_Errors(t *testing.T) {
	tiny := host.NewLang("tiny", host.GotoFeature, host.Native, ".t", host.CDialect, []host.Type{
		{Name: "bit", Min: 0, Max: 1, Size: 1},
	})
	manyConds := func() *fsm.Machine {
		m := fsm.NewMachine("many")
		var conds []int
		for i := 0; i < 17; i++ {
			conds = append(conds, m.AddAction(fmt.Sprintf("c%v", i), "ok"))
		}
		space := m.AddCondSpace(conds...)
		tr := m.AddTrans(&fsm.Trans{
			CondSpace: space,
			Conds:     []fsm.CondPair{{Key: 0, Target: 1, Action: fsm.None}},
		})
		m.AddState(fsm.NewState(fsm.Range{Low: 'a', High: 'a', Trans: tr}))
		s := fsm.NewState()
		s.Final = true
		m.AddState(s)
		return m
	}
	invalid := fsmtest.Scenario()
	invalid.StartState = 7

	tests := []struct {
		caption   string
		machine   *fsm.Machine
		host      host.Capability
		style     Style
		configErr bool
		widthErr  bool
	}{
		{
			caption:   "a switch style on a host without goto",
			machine:   fsmtest.Scenario(),
			host:      host.Go,
			style:     SwitchLoop,
			configErr: true,
		},
		{
			caption:   "ip-goto on a host without goto",
			machine:   fsmtest.Scenario(),
			host:      host.Ruby,
			style:     IpGoto,
			configErr: true,
		},
		{
			caption:  "a table no host type can hold",
			machine:  fsmtest.Scenario(),
			host:     tiny,
			style:    BinaryLoop,
			widthErr: true,
		},
		{
			caption:   "too many conditions for flat tables",
			machine:   manyConds(),
			host:      host.C,
			style:     FlatExp,
			configErr: true,
		},
		{
			caption: "an invalid machine",
			machine: invalid,
			host:    host.C,
			style:   BinaryLoop,
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %s", i, tt.caption), func(t *testing.T) {
			out, err := Generate(tt.machine, tt.host, tt.style)
			require.Error(t, err)
			require.Nil(t, out)
			var cerr *ConfigError
			require.Equal(t, tt.configErr, errors.As(err, &cerr))
			var werr *table.WidthError
			require.Equal(t, tt.widthErr, errors.As(err, &werr))
		})
	}

	// Too many conditions are fine for binary tables.
	_, err := Generate(manyConds(), host.C, BinaryExp)
	require.NoError(t, err)
}

func TestOutput_WriteTo(t *testing.T) {
	out, err := Generate(fsmtest.Scenario(), host.Go, FlatExp)
	require.NoError(t, err)
	var b bytes.Buffer
	n, err := out.WriteTo(&b)
	require.NoError(t, err)
	require.Equal(t, int64(b.Len()), n)
	require.Equal(t, out.Data+"\n"+out.Init+"\n"+out.Exec, b.String())
	require.Contains(t, b.String(), "var _scenario_trans_keys = []int8{")
	require.Contains(t, b.String(), "const scenario_start = 1")
}
