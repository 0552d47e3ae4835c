package table

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nihei9/fsmgen/host"
	"github.com/stretchr/testify/require"
)

func arrays(arrs map[string][]int64, order ...string) Source {
	return func(b *Builder) error {
		for _, name := range order {
			b.Start(name)
			for _, v := range arrs[name] {
				b.Value(v)
			}
			b.Finish()
		}
		return nil
	}
}

func TestSizeEmit(t *testing.T) {
	src := arrays(map[string][]int64{
		"keys":    {97, 98, 122},
		"offsets": {0, 300, 70000},
		"signed":  {-1, 5},
		"empty":   nil,
	}, "keys", "offsets", "signed", "empty")

	l, err := Size(src, host.C.Types())
	require.NoError(t, err)
	s, err := Emit(src, l)
	require.NoError(t, err)

	tests := []struct {
		name string
		typ  string
		min  int64
		max  int64
	}{
		{name: "keys", typ: "char", min: 97, max: 122},
		{name: "offsets", typ: "int", min: 0, max: 70000},
		{name: "signed", typ: "char", min: -1, max: 5},
		{name: "empty", typ: "char", min: 0, max: 0},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.name), func(t *testing.T) {
			d, ok := l.Lookup(tt.name)
			require.True(t, ok)
			require.Equal(t, tt.typ, d.Type.Name)
			require.Equal(t, tt.min, d.Min)
			require.Equal(t, tt.max, d.Max)

			a, ok := s.Lookup(tt.name)
			require.True(t, ok)
			require.Equal(t, d.Values, a.Values)
			for _, v := range a.Values {
				require.True(t, a.Type.Fits(v, v))
			}
		})
	}
	require.Len(t, s.Arrays, 4)
	require.Equal(t, "keys", s.Arrays[0].Name)
	require.Equal(t, "empty", s.Arrays[3].Name)
}

func TestSize_Narrowest(t *testing.T) {
	tests := []struct {
		caption string
		types   []host.Type
		min     int64
		max     int64
		typ     string
	}{
		{
			caption: "unsigned when the signed type of the same size is too small",
			types:   host.C.Types(),
			min:     0,
			max:     200,
			typ:     "unsigned char",
		},
		{
			caption: "declaration order breaks size ties",
			types:   host.C.Types(),
			min:     0,
			max:     100,
			typ:     "char",
		},
		{
			caption: "an unsigned type of the same size as a signed one",
			types:   host.Java.Types(),
			min:     0,
			max:     40000,
			typ:     "char",
		},
		{
			caption: "the narrowest type wins regardless of declaration order",
			types:   []host.Type{host.C.Types()[4], host.C.Types()[0]},
			min:     0,
			max:     1,
			typ:     "char",
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %s", i, tt.caption), func(t *testing.T) {
			typ, ok := Narrowest(tt.types, tt.min, tt.max)
			require.True(t, ok)
			require.Equal(t, tt.typ, typ.Name)
		})
	}
}

func TestSize_WidthError(t *testing.T) {
	src := arrays(map[string][]int64{
		"wide": {0, 1 << 40},
	}, "wide")
	_, err := Size(src, host.Java.Types())
	require.Error(t, err)
	var werr *WidthError
	require.True(t, errors.As(err, &werr))
	require.Equal(t, "wide", werr.Table)
	require.Equal(t, int64(1<<40), werr.Max)
}

func TestEmit_ContractError(t *testing.T) {
	base := map[string][]int64{
		"a": {1, 2},
		"b": {3},
	}
	tests := []struct {
		caption string
		src     Source
	}{
		{
			caption: "a value differs",
			src: arrays(map[string][]int64{
				"a": {1, 5},
				"b": {3},
			}, "a", "b"),
		},
		{
			caption: "arrays are reordered",
			src:     arrays(base, "b", "a"),
		},
		{
			caption: "an extra value",
			src: arrays(map[string][]int64{
				"a": {1, 2, 3},
				"b": {3},
			}, "a", "b"),
		},
		{
			caption: "a missing value",
			src: arrays(map[string][]int64{
				"a": {1},
				"b": {3},
			}, "a", "b"),
		},
		{
			caption: "an array is never committed",
			src:     arrays(base, "a"),
		},
		{
			caption: "an unknown array",
			src:     arrays(map[string][]int64{"a": {1, 2}, "b": {3}, "c": {0}}, "a", "b", "c"),
		},
		{
			caption: "a value outside of an array",
			src: func(b *Builder) error {
				b.Value(1)
				return nil
			},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %s", i, tt.caption), func(t *testing.T) {
			l, err := Size(arrays(base, "a", "b"), host.C.Types())
			require.NoError(t, err)
			s, err := Emit(tt.src, l)
			require.Nil(t, s)
			var cerr *ContractError
			require.True(t, errors.As(err, &cerr), "unexpected error: %v", err)
		})
	}
}

func TestSize_DuplicateArray(t *testing.T) {
	_, err := Size(arrays(map[string][]int64{"a": {1}}, "a", "a"), host.C.Types())
	var cerr *ContractError
	require.True(t, errors.As(err, &cerr))
}

func TestSize_SourceError(t *testing.T) {
	want := fmt.Errorf("broken source")
	_, err := Size(func(b *Builder) error {
		return want
	}, host.C.Types())
	require.Equal(t, want, err)
}
