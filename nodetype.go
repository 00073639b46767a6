package looptide

import (
	"fmt"
	"sort"
	"strings"
)

type (
	// NodeParameter documents one modulatable parameter of a node type.
	NodeParameter struct {
		Name     string
		Default  float64
		Required bool   // if true, the parameter has no meaningful default
		Unit     string // for documentation only, e.g. "Hz" or "s"
	}

	// NodeOption documents a build time option. Options are fixed for the
	// lifetime of a graph instance and cannot be modulated.
	NodeOption struct {
		Name     string
		Values   []string // allowed values, nil if free form
		Default  string
		Required bool
	}

	// NodeType documents what a node type takes. Inputs is the exact number
	// of input signals, or AnyInputs.
	NodeType struct {
		Doc     string
		Params  []NodeParameter
		Options []NodeOption
		Inputs  int
	}
)

// AnyInputs marks node types accepting one or more inputs.
const AnyInputs = -1

var curves = []string{"linear", "quad", "cubic", "sine", "expo"}

// NodeTypes documents all the available node types.
var NodeTypes = map[string]NodeType{
	"osc": {
		Doc:     "band unlimited oscillator",
		Params:  []NodeParameter{{Name: "freq", Default: 440, Unit: "Hz"}},
		Options: []NodeOption{{Name: "wave", Values: []string{"sine", "saw", "square", "tri"}, Default: "sine"}},
	},
	"pulse": {
		Doc: "pulse oscillator with variable duty cycle",
		Params: []NodeParameter{
			{Name: "freq", Default: 440, Unit: "Hz"},
			{Name: "width", Default: 0.5}},
	},
	"fm": {
		Doc: "two operator FM pair, modulator at freq*ratio",
		Params: []NodeParameter{
			{Name: "freq", Default: 440, Unit: "Hz"},
			{Name: "ratio", Default: 2},
			{Name: "index", Default: 1}},
	},
	"noise": {
		Doc:     "noise generator",
		Options: []NodeOption{{Name: "color", Values: []string{"white", "brown"}, Default: "white"}},
	},
	"lpf": {
		Doc: "state variable lowpass filter",
		Params: []NodeParameter{
			{Name: "cutoff", Default: 1000, Unit: "Hz"},
			{Name: "q", Default: 0.707}},
		Inputs: 1,
	},
	"hpf": {
		Doc: "state variable highpass filter",
		Params: []NodeParameter{
			{Name: "cutoff", Default: 1000, Unit: "Hz"},
			{Name: "q", Default: 0.707}},
		Inputs: 1,
	},
	"bpf": {
		Doc: "state variable bandpass filter",
		Params: []NodeParameter{
			{Name: "cutoff", Default: 1000, Unit: "Hz"},
			{Name: "q", Default: 0.707}},
		Inputs: 1,
	},
	"delay": {
		Doc: "feedback delay line",
		Params: []NodeParameter{
			{Name: "time", Default: 0.25, Unit: "s"},
			{Name: "feedback", Default: 0.5},
			{Name: "mix", Default: 0.5}},
		Options: []NodeOption{{Name: "max", Default: "2"}},
		Inputs:  1,
	},
	"reverb": {
		Doc: "comb and allpass reverb",
		Params: []NodeParameter{
			{Name: "room", Default: 0.8},
			{Name: "damp", Default: 0.5},
			{Name: "mix", Default: 0.3}},
		Inputs: 1,
	},
	"adsr": {
		Doc: "envelope following a gate signal",
		Params: []NodeParameter{
			{Name: "gate", Required: true},
			{Name: "attack", Default: 0.01, Unit: "s"},
			{Name: "decay", Default: 0.1, Unit: "s"},
			{Name: "sustain", Default: 0.7},
			{Name: "release", Default: 0.3, Unit: "s"}},
		Options: []NodeOption{{Name: "curve", Values: curves, Default: "linear"}},
	},
	"pattern": {
		Doc: "evaluates a mini-notation pattern against the cycle clock",
		Options: []NodeOption{
			{Name: "pattern", Required: true},
			{Name: "mode", Values: []string{"value", "gate", "trigger"}, Default: "value"}},
	},
	"sampler": {
		Doc: "plays one-shot drum voices on pattern onsets",
		Params: []NodeParameter{
			{Name: "gain", Default: 1},
			{Name: "speed", Default: 1}},
		Options: []NodeOption{{Name: "pattern", Required: true}},
	},
	"mix": {
		Doc:    "sum of the inputs",
		Inputs: AnyInputs,
	},
	"gain": {
		Doc:    "multiplies the input",
		Params: []NodeParameter{{Name: "amount", Default: 1}},
		Inputs: 1,
	},
	"distort": {
		Doc:    "tanh waveshaper",
		Params: []NodeParameter{{Name: "drive", Default: 1}},
		Inputs: 1,
	},
	"limiter": {
		Doc: "peak limiter with instant attack",
		Params: []NodeParameter{
			{Name: "threshold", Default: 0.9},
			{Name: "release", Default: 0.1, Unit: "s"}},
		Inputs: 1,
	},
	"lag": {
		Doc:    "one pole smoother",
		Params: []NodeParameter{{Name: "time", Default: 0.01, Unit: "s"}},
		Inputs: 1,
	},
}

// Param finds a parameter by name.
func (t NodeType) Param(name string) (NodeParameter, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return NodeParameter{}, false
}

// Option finds an option by name.
func (t NodeType) Option(name string) (NodeOption, bool) {
	for _, o := range t.Options {
		if o.Name == name {
			return o, true
		}
	}
	return NodeOption{}, false
}

// NodeTypeNames returns the node type names in alphabetical order.
func NodeTypeNames() []string {
	ret := make([]string, 0, len(NodeTypes))
	for name := range NodeTypes {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Describe returns a one line human readable summary, used by the command
// line help.
func (t NodeType) Describe(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %s", name, t.Doc)
	for _, p := range t.Params {
		if p.Required {
			fmt.Fprintf(&b, "; %s (required)", p.Name)
			continue
		}
		fmt.Fprintf(&b, "; %s=%v%s", p.Name, p.Default, p.Unit)
	}
	for _, o := range t.Options {
		switch {
		case o.Required:
			fmt.Fprintf(&b, "; option %s (required)", o.Name)
		case o.Values != nil:
			fmt.Fprintf(&b, "; option %s=%s [%s]", o.Name, o.Default, strings.Join(o.Values, "|"))
		default:
			fmt.Fprintf(&b, "; option %s=%s", o.Name, o.Default)
		}
	}
	switch t.Inputs {
	case AnyInputs:
		b.WriteString("; inputs: 1+")
	case 0:
	default:
		fmt.Fprintf(&b, "; inputs: %d", t.Inputs)
	}
	return b.String()
}
