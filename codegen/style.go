package codegen

import (
	"fmt"
	"strings"

	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/host"
	"github.com/nihei9/fsmgen/table"
)

type Style int

const (
	BinaryLoop Style = iota
	BinaryExp
	FlatLoop
	FlatExp
	SwitchLoop
	SwitchExp
	IpGoto
)

// Styles lists every style in option order.
var Styles = []Style{BinaryLoop, BinaryExp, FlatLoop, FlatExp, SwitchLoop, SwitchExp, IpGoto}

var styleNames = map[Style]string{
	BinaryLoop: "binary-loop",
	BinaryExp:  "binary-exp",
	FlatLoop:   "flat-loop",
	FlatExp:    "flat-exp",
	SwitchLoop: "switch-loop",
	SwitchExp:  "switch-exp",
	IpGoto:     "ip-goto",
}

// styleFlags are the traditional short option spellings.
var styleFlags = map[string]Style{
	"-T0": BinaryLoop,
	"-T1": BinaryExp,
	"-F0": FlatLoop,
	"-F1": FlatExp,
	"-G0": SwitchLoop,
	"-G1": SwitchExp,
	"-G2": IpGoto,
}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("style(%d)", int(s))
}

func ParseStyle(s string) (Style, error) {
	if st, ok := styleFlags[s]; ok {
		return st, nil
	}
	norm := strings.ReplaceAll(strings.ToLower(s), "_", "-")
	for st, name := range styleNames {
		if norm == name || norm == strings.ReplaceAll(name, "-", "") {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown code style: %v", s)
}

// Shape is the physical form of transition lookup.
type Shape int

const (
	ShapeBinary Shape = iota
	ShapeFlat
	ShapeSwitch
	ShapeGoto
)

func (s Shape) String() string {
	switch s {
	case ShapeBinary:
		return "binary"
	case ShapeFlat:
		return "flat"
	case ShapeSwitch:
		return "switch"
	case ShapeGoto:
		return "goto"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Control is how the execution loop transfers control.
type Control int

const (
	ControlVar Control = iota
	ControlGoto
)

func (c Control) String() string {
	if c == ControlGoto {
		return "goto"
	}
	return "var"
}

// ActMode is how action lists are referenced and dispatched.
type ActMode int

const (
	// ActLoop stores the location of a list in the actions array and
	// dispatches every action through one switch keyed by action id.
	ActLoop ActMode = iota
	// ActExp stores the list id and dispatches through one switch keyed by
	// list.
	ActExp
)

func (a ActMode) String() string {
	if a == ActExp {
		return "exp"
	}
	return "loop"
}

// Strategy is one table shape and loop shape combination. The set of
// strategies is closed; Select is the only way to obtain one.
type Strategy interface {
	Name() string
	Style() Style
	Shape() Shape
	Control() Control
	ActMode() ActMode

	analysisOptions() fsm.AnalysisOptions
	tableData(g *gen, b *table.Builder)
	writeExec(g *gen, w *writer)
}

// ConfigError reports an unusable combination of host, style and machine.
type ConfigError struct {
	Host  string
	Style Style
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error; host: %v, style: %v: %v", e.Host, e.Style, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

var errUnsupportedStyle = fmt.Errorf("unsupported host/style combination")

// Select maps a style to a strategy for a host. Binary and flat styles fall
// back to variable-based control on hosts without goto; switch and goto
// styles need goto.
func Select(c host.Capability, style Style) (Strategy, error) {
	ctl := ControlVar
	if c.Feature() == host.GotoFeature {
		ctl = ControlGoto
	}
	switch style {
	case BinaryLoop:
		return &binaryStrategy{style: style, act: ActLoop, ctl: ctl}, nil
	case BinaryExp:
		return &binaryStrategy{style: style, act: ActExp, ctl: ctl}, nil
	case FlatLoop:
		return &flatStrategy{style: style, act: ActLoop, ctl: ctl}, nil
	case FlatExp:
		return &flatStrategy{style: style, act: ActExp, ctl: ctl}, nil
	case SwitchLoop, SwitchExp, IpGoto:
		if ctl != ControlGoto {
			return nil, &ConfigError{
				Host:  c.Name(),
				Style: style,
				Cause: errUnsupportedStyle,
			}
		}
		switch style {
		case SwitchLoop:
			return &switchStrategy{style: style, act: ActLoop}, nil
		case SwitchExp:
			return &switchStrategy{style: style, act: ActExp}, nil
		}
		return &ipGotoStrategy{}, nil
	}
	return nil, &ConfigError{
		Host:  c.Name(),
		Style: style,
		Cause: fmt.Errorf("unknown style"),
	}
}

func strategyName(shape Shape, act ActMode, ctl Control) string {
	return fmt.Sprintf("%v-%v-%v", shape, act, ctl)
}
