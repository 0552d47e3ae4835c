package driver

import (
	"fmt"
	"sort"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/fsm"
)

// tableProgram reads the committed arrays of a binary or flat scanner.
type tableProgram struct {
	m     *fsm.Machine
	shape codegen.Shape
	act   codegen.ActMode
	out   *codegen.Output
}

// NewTableMachine runs the tables of a generated scanner. Only the binary
// and flat shapes carry transition tables.
func NewTableMachine(out *codegen.Output, opts ...MachineOption) (*Machine, error) {
	if out == nil {
		return nil, fmt.Errorf("out is nil")
	}
	shape := out.Strategy.Shape()
	if shape != codegen.ShapeBinary && shape != codegen.ShapeFlat {
		return nil, fmt.Errorf("%v tables do not encode transitions", shape)
	}
	return newMachine(&tableProgram{
		m:     out.Machine,
		shape: shape,
		act:   out.Strategy.ActMode(),
		out:   out,
	}, out.NoEnd, opts)
}

func (tp *tableProgram) tab(logical string) []int64 {
	a, ok := tp.out.Table(logical)
	if !ok {
		return nil
	}
	return a.Values
}

func (tp *tableProgram) machine() *fsm.Machine {
	return tp.m
}

func (tp *tableProgram) start() int {
	return tp.m.StartState
}

func (tp *tableProgram) firstFinal() int {
	return tp.m.FirstFinal
}

func (tp *tableProgram) errState() int {
	return tp.m.ErrorState
}

func (tp *tableProgram) keySigned() bool {
	return tp.m.KeyMin < 0
}

func (tp *tableProgram) nfaDepth() int {
	return tp.m.NfaDepth
}

// actions resolves a stored action list reference.
func (tp *tableProgram) actions(ref int64) []*fsm.Action {
	if ref == 0 {
		return nil
	}
	if tp.act != codegen.ActLoop {
		return tp.list(ref)
	}
	arr := tp.tab(codegen.TableActions)
	n := arr[ref]
	acts := make([]*fsm.Action, 0, n)
	for _, id := range arr[ref+1 : ref+1+n] {
		acts = append(acts, tp.m.Actions[id])
	}
	return acts
}

// list resolves a reference holding one plus an action list id.
func (tp *tableProgram) list(ref int64) []*fsm.Action {
	if ref == 0 {
		return nil
	}
	ids := tp.m.ActionTables[ref-1].Actions
	acts := make([]*fsm.Action, 0, len(ids))
	for _, id := range ids {
		acts = append(acts, tp.m.Actions[id])
	}
	return acts
}

var roleTables = map[fsm.Role]string{
	fsm.RoleToState:   codegen.TableToStateActions,
	fsm.RoleFromState: codegen.TableFromStateActions,
	fsm.RoleEOF:       codegen.TableEOFActions,
}

func (tp *tableProgram) stateActions(role fsm.Role, cs int) []*fsm.Action {
	arr := tp.tab(roleTables[role])
	if arr == nil {
		return nil
	}
	return tp.actions(arr[cs])
}

func (tp *tableProgram) eofCond(cs int) (int, []int64, bool) {
	spaces := tp.tab(codegen.TableEOFCondSpaces)
	if spaces == nil || spaces[cs] == -1 {
		return fsm.None, nil, false
	}
	off := tp.tab(codegen.TableEOFCondKeyOffs)[cs]
	n := tp.tab(codegen.TableEOFCondKeyLens)[cs]
	return int(spaces[cs]), tp.tab(codegen.TableEOFCondKeys)[off : off+n], true
}

func (tp *tableProgram) eofTrans(cs int) (int, bool) {
	arr := tp.tab(codegen.TableEOFTrans)
	if arr == nil || arr[cs] == 0 {
		return fsm.None, false
	}
	return int(arr[cs] - 1), true
}

func (tp *tableProgram) locate(cs int, key int64) int {
	if tp.shape == codegen.ShapeFlat {
		return tp.locateFlat(cs, key)
	}
	return tp.locateBinary(cs, key)
}

func (tp *tableProgram) locateBinary(cs int, key int64) int {
	keys := tp.tab(codegen.TableKeys)
	k := int(tp.tab(codegen.TableKeyOffsets)[cs])
	trans := int(tp.tab(codegen.TableIndexOffsets)[cs])
	inds := tp.tab(codegen.TableIndicies)

	n := int(tp.tab(codegen.TableSingleLens)[cs])
	singles := keys[k : k+n]
	i := sort.Search(n, func(i int) bool {
		return singles[i] >= key
	})
	if i < n && singles[i] == key {
		return int(inds[trans+i])
	}
	k += n
	trans += n

	n = int(tp.tab(codegen.TableRangeLens)[cs])
	ranges := keys[k : k+2*n]
	i = sort.Search(n, func(i int) bool {
		return ranges[2*i+1] >= key
	})
	if i < n && ranges[2*i] <= key {
		return int(inds[trans+i])
	}
	return int(inds[trans+n])
}

func (tp *tableProgram) locateFlat(cs int, key int64) int {
	keys := tp.tab(codegen.TableKeys)
	def := int(tp.tab(codegen.TableIndexDefaults)[cs])
	if key < tp.m.KeyMin || key > tp.m.KeyMax {
		return def
	}
	ic := tp.tab(codegen.TableCharClass)[key-tp.m.KeyMin]
	lo, hi := keys[2*cs], keys[2*cs+1]
	if ic < lo || ic > hi {
		return def
	}
	inds := tp.tab(codegen.TableFlatIndexOffset)[cs]
	return int(tp.tab(codegen.TableIndicies)[inds+ic-lo])
}

func (tp *tableProgram) transSpace(trans int) int {
	return int(tp.tab(codegen.TableTransCondSpaces)[trans])
}

// condIndex is the position in cond_targs and cond_actions a transition
// takes under the condition value cpc.
func (tp *tableProgram) condIndex(trans int, cpc int64) int {
	if tp.shape == codegen.ShapeFlat {
		if !tp.m.AnyConds() {
			return trans
		}
		return int(tp.tab(codegen.TableTransOffsets)[trans] + cpc)
	}
	off := int(tp.tab(codegen.TableTransOffsets)[trans])
	if !tp.m.AnyConds() {
		return off
	}
	ckeys := tp.tab(codegen.TableCondKeys)
	n := int(tp.tab(codegen.TableTransLengths)[trans])
	keys := ckeys[off : off+n]
	i := sort.Search(n, func(i int) bool {
		return keys[i] >= cpc
	})
	if i < n && keys[i] == cpc {
		return off + i
	}
	return len(ckeys)
}

func (tp *tableProgram) take(trans int, cpc int64) (int, []*fsm.Action) {
	i := tp.condIndex(trans, cpc)
	target := int(tp.tab(codegen.TableCondTargs)[i])
	return target, tp.actions(tp.tab(codegen.TableCondActions)[i])
}

func (tp *tableProgram) nfa(cs int) []nfaRec {
	offs := tp.tab(codegen.TableNfaOffsets)
	if offs == nil || offs[cs] == 0 {
		return nil
	}
	off := offs[cs]
	targs := tp.tab(codegen.TableNfaTargs)
	push := tp.tab(codegen.TableNfaPushActions)
	pop := tp.tab(codegen.TableNfaPopTrans)
	var recs []nfaRec
	for alt := int64(0); alt < targs[off]; alt++ {
		rec := off + 1 + alt
		recs = append(recs, nfaRec{
			target: int(targs[rec]),
			push:   tp.list(push[rec]),
			pop:    tp.list(pop[rec]),
		})
	}
	return recs
}
