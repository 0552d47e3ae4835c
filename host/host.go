package host

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Type is an integer type of a host language.
type Type struct {
	Name   string
	Signed bool
	Min    int64
	Max    uint64
	// Size is the storage width in bytes.
	Size int
}

// Fits reports whether every value in [min, max] is representable.
func (t Type) Fits(min, max int64) bool {
	if min < t.Min {
		return false
	}
	return max < 0 || uint64(max) <= t.Max
}

func (t Type) String() string {
	return t.Name
}

type Feature int

const (
	// VarFeature hosts express control flow with variables and loops only.
	VarFeature Feature = iota
	// GotoFeature hosts support label-based direct jumps.
	GotoFeature
)

func (f Feature) String() string {
	if f == GotoFeature {
		return "goto"
	}
	return "var"
}

func ParseFeature(s string) (Feature, error) {
	switch s {
	case "goto":
		return GotoFeature, nil
	case "var", "":
		return VarFeature, nil
	}
	return 0, fmt.Errorf("unknown feature: %v", s)
}

type Emission int

const (
	// Translated output is a host-independent program text glued into a
	// host template by a later translation step.
	Translated Emission = iota
	// Native output is host source code.
	Native
)

func (e Emission) String() string {
	if e == Native {
		return "native"
	}
	return "translated"
}

func ParseEmission(s string) (Emission, error) {
	switch s {
	case "native":
		return Native, nil
	case "translated", "":
		return Translated, nil
	}
	return 0, fmt.Errorf("unknown emission: %v", s)
}

// Capability is everything code generation knows about a host.
type Capability interface {
	Name() string
	Feature() Feature
	Types() []Type
	Emission() Emission
	DefaultOutFileName(stem string) string
	Dialect() Dialect
}

var _ Capability = &Lang{}

// Lang is a host described by data.
type Lang struct {
	name     string
	feature  Feature
	types    []Type
	emission Emission
	ext      string
	dialect  Dialect
}

func NewLang(name string, feature Feature, emission Emission, ext string, d Dialect, types []Type) *Lang {
	return &Lang{
		name:     name,
		feature:  feature,
		types:    types,
		emission: emission,
		ext:      ext,
		dialect:  d,
	}
}

func (l *Lang) Name() string {
	return l.name
}

func (l *Lang) Feature() Feature {
	return l.feature
}

func (l *Lang) Types() []Type {
	return l.types
}

func (l *Lang) Emission() Emission {
	return l.emission
}

func (l *Lang) Dialect() Dialect {
	return l.dialect
}

// DefaultOutFileName replaces the extension of stem with the host's.
func (l *Lang) DefaultOutFileName(stem string) string {
	return strings.TrimSuffix(stem, filepath.Ext(stem)) + l.ext
}

func signed(name string, size int) Type {
	bits := uint(size * 8)
	return Type{
		Name:   name,
		Signed: true,
		Min:    -1 << (bits - 1),
		Max:    uint64(1)<<(bits-1) - 1,
		Size:   size,
	}
}

func unsigned(name string, size int) Type {
	max := uint64(math.MaxUint64)
	if size < 8 {
		max = uint64(1)<<uint(size*8) - 1
	}
	return Type{
		Name: name,
		Min:  0,
		Max:  max,
		Size: size,
	}
}

var (
	C = NewLang("c", GotoFeature, Native, ".c", CDialect, []Type{
		signed("char", 1),
		unsigned("unsigned char", 1),
		signed("short", 2),
		unsigned("unsigned short", 2),
		signed("int", 4),
		unsigned("unsigned int", 4),
		signed("long", 8),
		unsigned("unsigned long", 8),
	})
	D = NewLang("d", GotoFeature, Translated, ".d", TranslatedDialect, []Type{
		signed("byte", 1),
		unsigned("ubyte", 1),
		signed("short", 2),
		unsigned("ushort", 2),
		signed("int", 4),
		unsigned("uint", 4),
		signed("long", 8),
		unsigned("ulong", 8),
	})
	CSharp = NewLang("csharp", GotoFeature, Translated, ".cs", TranslatedDialect, []Type{
		signed("sbyte", 1),
		unsigned("byte", 1),
		signed("short", 2),
		unsigned("ushort", 2),
		signed("int", 4),
		unsigned("uint", 4),
		signed("long", 8),
		unsigned("ulong", 8),
	})
	Go = NewLang("go", VarFeature, Native, ".go", GoDialect, []Type{
		signed("int8", 1),
		unsigned("uint8", 1),
		signed("int16", 2),
		unsigned("uint16", 2),
		signed("int32", 4),
		unsigned("uint32", 4),
		signed("int64", 8),
		unsigned("uint64", 8),
	})
	Java = NewLang("java", VarFeature, Translated, ".java", TranslatedDialect, []Type{
		signed("byte", 1),
		signed("short", 2),
		unsigned("char", 2),
		signed("int", 4),
	})
	Rust = NewLang("rust", VarFeature, Translated, ".rs", TranslatedDialect, []Type{
		signed("i8", 1),
		unsigned("u8", 1),
		signed("i16", 2),
		unsigned("u16", 2),
		signed("i32", 4),
		unsigned("u32", 4),
		signed("i64", 8),
		unsigned("u64", 8),
	})
	JavaScript = NewLang("js", VarFeature, Translated, ".js", TranslatedDialect, []Type{
		signed("s8", 1),
		unsigned("u8", 1),
		signed("s16", 2),
		unsigned("u16", 2),
		signed("s32", 4),
		unsigned("u32", 4),
	})
	Ruby = NewLang("ruby", VarFeature, Translated, ".rb", TranslatedDialect, []Type{
		signed("char", 1),
		unsigned("unsigned char", 1),
		signed("short", 2),
		unsigned("unsigned short", 2),
		signed("int", 4),
		unsigned("unsigned int", 4),
		signed("long", 8),
		unsigned("unsigned long", 8),
	})
)

// Builtins returns the builtin hosts in a fixed order.
func Builtins() []*Lang {
	return []*Lang{C, D, CSharp, Go, Java, Rust, JavaScript, Ruby}
}
