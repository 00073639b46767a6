package vm

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/looptide/looptide"
	"github.com/looptide/looptide/mini"
)

type Severity int

const (
	SeverityError Severity = iota
	// SeverityWarning diagnostics do not stop compilation.
	SeverityWarning
)

type (
	// Diagnostic is one problem found in a graph description. Node is the
	// index of the offending node, or -1 for graph level problems.
	Diagnostic struct {
		Severity Severity
		Node     int
		Field    string
		Msg      string
	}

	// CompileError lists every error found while compiling a description,
	// so that all of them can be shown to the user at once.
	CompileError struct {
		Diagnostics []Diagnostic
	}

	compiler struct {
		desc     looptide.Graph
		g        *Graph
		diags    []Diagnostic
		patterns map[string]*inlinePattern
	}
)

var validBusName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const maxDelaySeconds = 60

func (d Diagnostic) String() string {
	var where []string
	if d.Node >= 0 {
		where = append(where, fmt.Sprintf("node %d", d.Node))
	}
	if d.Field != "" {
		where = append(where, d.Field)
	}
	s := d.Msg
	if len(where) > 0 {
		s = strings.Join(where, " ") + ": " + s
	}
	if d.Severity == SeverityWarning {
		s = "warning: " + s
	}
	return s
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return "graph does not compile: " + strings.Join(msgs, "; ")
}

// Compile validates a graph description and builds a runnable graph for the
// given sample rate. All problems found are returned together in a
// *CompileError; on success, non-fatal findings are available through
// Graph.Warnings.
func Compile(desc looptide.Graph, sampleRate int, opts ...Option) (*Graph, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	c := &compiler{desc: desc, patterns: map[string]*inlinePattern{}}
	if math.IsNaN(desc.CPS) || math.IsInf(desc.CPS, 0) || desc.CPS <= 0 {
		c.errorf(-1, "cps", "cps must be a positive number, got %v", desc.CPS)
	}
	c.g = newGraph(sampleRate, desc.CPS)
	for _, o := range opts {
		o(c.g)
	}
	for i, n := range desc.Nodes {
		if n.Name == "" {
			continue
		}
		if !validBusName.MatchString(n.Name) {
			c.errorf(i, "name", "invalid bus name %q", n.Name)
			continue
		}
		if j, ok := c.g.buses[n.Name]; ok {
			c.errorf(i, "name", "bus %q is already bound to node %d", n.Name, j)
			continue
		}
		c.g.buses[n.Name] = i
	}
	c.g.nodes = make([]node, len(desc.Nodes))
	for i := range desc.Nodes {
		c.node(i)
	}
	c.g.output = c.signal(desc.Output, -1, "output")
	var errs []Diagnostic
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		} else {
			c.g.warnings = append(c.g.warnings, d)
		}
	}
	if len(errs) > 0 {
		return nil, &CompileError{Diagnostics: c.diags}
	}
	return c.g, nil
}

func (c *compiler) errorf(node int, field, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Severity: SeverityError, Node: node, Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (c *compiler) warnf(node int, field, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Severity: SeverityWarning, Node: node, Field: field, Msg: fmt.Sprintf(format, args...)})
}

func (c *compiler) node(i int) {
	desc := c.desc.Nodes[i]
	n := &c.g.nodes[i]
	n.name = desc.Name
	typ, ok := looptide.NodeTypes[desc.Type]
	kind, ok2 := nodeKinds[desc.Type]
	if !ok || !ok2 {
		c.errorf(i, "type", "unknown node type %q", desc.Type)
		return
	}
	n.kind = kind
	for _, name := range sortedKeys(desc.Params) {
		if _, ok := typ.Param(name); !ok {
			c.errorf(i, "params."+name, "%s has no parameter %q", desc.Type, name)
		}
	}
	n.params = make([]signal, len(typ.Params))
	for j, p := range typ.Params {
		s, ok := desc.Params[p.Name]
		if !ok {
			if p.Required {
				c.errorf(i, "params."+p.Name, "%s requires parameter %q", desc.Type, p.Name)
			}
			s = looptide.Value(p.Default)
		}
		n.params[j] = c.signal(s, i, "params."+p.Name)
	}
	switch {
	case typ.Inputs == looptide.AnyInputs && len(desc.Inputs) == 0:
		c.errorf(i, "inputs", "%s needs at least one input", desc.Type)
	case typ.Inputs != looptide.AnyInputs && len(desc.Inputs) != typ.Inputs:
		c.errorf(i, "inputs", "%s takes %d inputs, got %d", desc.Type, typ.Inputs, len(desc.Inputs))
	}
	n.inputs = make([]signal, len(desc.Inputs))
	for j, s := range desc.Inputs {
		n.inputs[j] = c.signal(s, i, fmt.Sprintf("inputs[%d]", j))
	}
	for _, name := range sortedKeys(desc.Options) {
		if _, ok := typ.Option(name); !ok {
			c.errorf(i, "options."+name, "%s has no option %q", desc.Type, name)
		}
	}
	options := map[string]string{}
	for _, o := range typ.Options {
		v := desc.Option(o.Name)
		switch {
		case o.Required && v == "":
			c.errorf(i, "options."+o.Name, "%s requires option %q", desc.Type, o.Name)
		case o.Values != nil && !slices.Contains(o.Values, v):
			c.errorf(i, "options."+o.Name, "%q is not one of %s", v, strings.Join(o.Values, ", "))
		}
		options[o.Name] = v
	}
	sr := c.g.sampleRate
	switch kind {
	case kindOsc:
		n.variant = variants["wave"][options["wave"]]
	case kindNoise:
		n.variant = variants["color"][options["color"]]
		n.seed = uint32(0x9e3779b9 + i)
	case kindADSR:
		n.curve = curves[options["curve"]]
		if n.curve == nil {
			n.curve = curves["linear"]
		}
	case kindPattern:
		n.variant = variants["mode"][options["mode"]]
		n.seq = c.sequencer(i, options["pattern"])
	case kindSampler:
		n.seq = c.sequencer(i, options["pattern"])
		n.samples = bankFor(sr)
		n.voices = make([]voice, 0, c.g.maxVoices)
	case kindDelay:
		seconds, err := strconv.ParseFloat(options["max"], 64)
		if err != nil || !(seconds > 0) || seconds > maxDelaySeconds {
			c.errorf(i, "options.max", "maximum delay must be a number of seconds in (0, %d], got %q", maxDelaySeconds, options["max"])
			seconds = 1
		}
		n.delay = make([]float32, int(seconds*float64(sr))+2)
	case kindReverb:
		n.reverb = newReverb(sr)
	}
}

func (c *compiler) sequencer(i int, text string) *sequencer {
	p, err := mini.Compile(text)
	if err != nil {
		c.errorf(i, "options.pattern", "%v", err)
	}
	return newSequencer(p)
}

func (c *compiler) signal(s looptide.Signal, i int, field string) signal {
	switch s.Kind {
	case looptide.ValueSignal:
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			c.errorf(i, field, "constant must be finite, got %v", s.Value)
			return constant(0)
		}
		return constant(float32(s.Value))
	case looptide.NodeSignal:
		if s.Node < 0 || s.Node >= len(c.desc.Nodes) {
			c.errorf(i, field, "node %d does not exist", s.Node)
			return constant(0)
		}
		return signal{kind: sigNode, node: s.Node}
	case looptide.BusSignal:
		if _, ok := c.g.buses[s.Name]; !ok {
			c.warnf(i, field, "bus ~%s does not exist and reads as silence", s.Name)
		}
		return signal{kind: sigBus, bus: s.Name}
	case looptide.PatternSignal:
		p, ok := c.patterns[s.Name]
		if !ok {
			pat, err := mini.Compile(s.Name)
			if err != nil {
				c.errorf(i, field, "%v", err)
			}
			p = &inlinePattern{pat: pat}
			c.patterns[s.Name] = p
		}
		return signal{kind: sigPattern, pat: p}
	case looptide.ExprSignal:
		op, ok := exprOps[s.Op]
		if !ok {
			c.errorf(i, field, "unknown operator %q", s.Op)
			return constant(0)
		}
		arity := 2
		if op == opScale {
			arity = 3
		}
		if len(s.Args) != arity {
			c.errorf(i, field, "%s takes %d operands, got %d", s.Op, arity, len(s.Args))
			return constant(0)
		}
		ret := signal{kind: sigExpr, op: op, args: make([]signal, arity)}
		for j, a := range s.Args {
			ret.args[j] = c.signal(a, i, fmt.Sprintf("%s.%s[%d]", field, s.Op, j))
		}
		return ret
	}
	c.errorf(i, field, "invalid signal kind %d", s.Kind)
	return constant(0)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
