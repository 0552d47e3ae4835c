package table

import (
	"fmt"
	"math"

	"github.com/nihei9/fsmgen/host"
)

// Source enumerates a table set. It is run twice, once by Size and once by
// Emit, and must make identical calls both times.
type Source func(b *Builder) error

type pass int

const (
	passSize pass = iota
	passEmit
)

// Builder receives the arrays of a table set.
type Builder struct {
	pass   pass
	layout *Layout
	set    *Set

	cur    *Decl
	curIdx int
	pos    int
	err    error
}

// Start opens the next array.
func (b *Builder) Start(name string) {
	if b.err != nil {
		return
	}
	if b.cur != nil {
		b.err = newContractError(name, "starting an array while %v is open", b.cur.Name)
		return
	}
	switch b.pass {
	case passSize:
		if _, ok := b.layout.index[name]; ok {
			b.err = newContractError(name, "the array is declared twice")
			return
		}
		d := &Decl{
			Name: name,
			Min:  math.MaxInt64,
			Max:  math.MinInt64,
		}
		b.layout.index[name] = len(b.layout.Decls)
		b.layout.Decls = append(b.layout.Decls, d)
		b.cur = d
	case passEmit:
		if b.curIdx >= len(b.layout.Decls) {
			b.err = newContractError(name, "the array was never declared")
			return
		}
		d := b.layout.Decls[b.curIdx]
		if d.Name != name {
			b.err = newContractError(name, "expected array %v", d.Name)
			return
		}
		b.cur = d
		b.pos = 0
		b.set.Arrays = append(b.set.Arrays, &Array{
			Name: d.Name,
			Type: d.Type,
		})
	}
}

// Value declares (first pass) or commits (second pass) the next value of the
// open array.
func (b *Builder) Value(v int64) {
	if b.err != nil {
		return
	}
	if b.cur == nil {
		b.err = newContractError("", "value %v outside of an array", v)
		return
	}
	switch b.pass {
	case passSize:
		d := b.cur
		d.Values = append(d.Values, v)
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
	case passEmit:
		d := b.cur
		if b.pos >= len(d.Values) {
			b.err = newContractError(d.Name, "value %v at %v was never declared", v, b.pos)
			return
		}
		if d.Values[b.pos] != v {
			b.err = newContractError(d.Name, "value %v at %v differs from the declared value %v", v, b.pos, d.Values[b.pos])
			return
		}
		a := b.set.Arrays[len(b.set.Arrays)-1]
		a.Values = append(a.Values, v)
		b.pos++
	}
}

// Finish closes the open array.
func (b *Builder) Finish() {
	if b.err != nil {
		return
	}
	if b.cur == nil {
		b.err = newContractError("", "finishing without an open array")
		return
	}
	if b.pass == passEmit {
		if b.pos != len(b.cur.Values) {
			b.err = newContractError(b.cur.Name, "%v values committed, %v declared", b.pos, len(b.cur.Values))
			return
		}
		b.curIdx++
	}
	b.cur = nil
}

// Decl is the declared content of one array.
type Decl struct {
	Name   string
	Values []int64
	Min    int64
	Max    int64
	Type   host.Type
}

// Layout is the result of the sizing pass.
type Layout struct {
	Decls []*Decl
	index map[string]int
}

func (l *Layout) Lookup(name string) (*Decl, bool) {
	i, ok := l.index[name]
	if !ok {
		return nil, false
	}
	return l.Decls[i], true
}

// Array is a committed array.
type Array struct {
	Name   string
	Type   host.Type
	Values []int64
}

// Set is the result of the generation pass.
type Set struct {
	Arrays []*Array
}

func (s *Set) Lookup(name string) (*Array, bool) {
	for _, a := range s.Arrays {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Size runs the sizing pass and chooses a host type for every array.
func Size(src Source, types []host.Type) (*Layout, error) {
	b := &Builder{
		pass: passSize,
		layout: &Layout{
			index: map[string]int{},
		},
	}
	err := src(b)
	if err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.cur != nil {
		return nil, newContractError(b.cur.Name, "the array is not finished")
	}
	for _, d := range b.layout.Decls {
		if len(d.Values) == 0 {
			d.Min, d.Max = 0, 0
		}
		t, ok := Narrowest(types, d.Min, d.Max)
		if !ok {
			return nil, &WidthError{
				Table: d.Name,
				Min:   d.Min,
				Max:   d.Max,
			}
		}
		d.Type = t
	}
	return b.layout, nil
}

// Emit runs the generation pass against a layout produced by Size.
func Emit(src Source, l *Layout) (*Set, error) {
	b := &Builder{
		pass:   passEmit,
		layout: l,
		set:    &Set{},
	}
	err := src(b)
	if err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.cur != nil {
		return nil, newContractError(b.cur.Name, "the array is not finished")
	}
	if b.curIdx != len(l.Decls) {
		return nil, newContractError(l.Decls[b.curIdx].Name, "the array was declared but never committed")
	}
	return b.set, nil
}

// Narrowest returns the smallest type holding [min, max]. Among types of
// the same size the earlier one wins.
func Narrowest(types []host.Type, min, max int64) (host.Type, bool) {
	var best host.Type
	found := false
	for _, t := range types {
		if !t.Fits(min, max) {
			continue
		}
		if !found || t.Size < best.Size {
			best = t
			found = true
		}
	}
	return best, found
}

// WidthError reports an array no host type can hold.
type WidthError struct {
	Table string
	Min   int64
	Max   int64
}

func (e *WidthError) Error() string {
	return fmt.Sprintf("no host type can hold table %v; range: [%v, %v]", e.Table, e.Min, e.Max)
}

// ContractError reports a generation pass that diverged from the sizing
// pass. It is always an internal defect.
type ContractError struct {
	Table  string
	Detail string
}

func newContractError(table string, format string, a ...interface{}) *ContractError {
	return &ContractError{
		Table:  table,
		Detail: fmt.Sprintf(format, a...),
	}
}

func (e *ContractError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("table pass contract violated: %v", e.Detail)
	}
	return fmt.Sprintf("table pass contract violated; table: %v: %v", e.Table, e.Detail)
}
