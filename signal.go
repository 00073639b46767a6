package looptide

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

type (
	// SignalKind tells which member of the Signal union is in use.
	SignalKind int

	// Op is an arithmetic operator of an expression Signal.
	Op string

	// Signal describes where a node parameter or input gets its value from:
	// a constant, another node's output, a named bus, an inline mini-notation
	// pattern or an expression over other signals. Any Signal may drive any
	// parameter.
	//
	// In YAML, a number is a constant, "~name" is a bus, any other string is
	// an inline pattern, and mappings spell out the rest:
	//
	//	{node: 2}
	//	{bus: lfo}
	//	{pattern: "bd sn"}
	//	{mul: [{node: 0}, 0.5]}
	//	{scale: {input: ~lfo, min: 200, max: 2000}}
	Signal struct {
		Kind  SignalKind
		Value float64  // ValueSignal
		Node  int      // NodeSignal
		Name  string   // BusSignal name or PatternSignal text
		Op    Op       // ExprSignal
		Args  []Signal // ExprSignal operands; input, min and max for OpScale
	}
)

const (
	ValueSignal SignalKind = iota
	NodeSignal
	BusSignal
	PatternSignal
	ExprSignal
)

const (
	OpAdd   Op = "add"
	OpSub   Op = "sub"
	OpMul   Op = "mul"
	OpDiv   Op = "div"
	OpMod   Op = "mod"
	OpScale Op = "scale"
)

var binaryOps = map[Op]bool{OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true}

var busName = regexp.MustCompile(`^~[A-Za-z_][A-Za-z0-9_]*$`)

func Value(v float64) Signal           { return Signal{Kind: ValueSignal, Value: v} }
func NodeOutput(id int) Signal         { return Signal{Kind: NodeSignal, Node: id} }
func Bus(name string) Signal           { return Signal{Kind: BusSignal, Name: name} }
func InlinePattern(text string) Signal { return Signal{Kind: PatternSignal, Name: text} }

// Expr combines two signals with a binary operator.
func Expr(op Op, a, b Signal) Signal {
	return Signal{Kind: ExprSignal, Op: op, Args: []Signal{a, b}}
}

// Scale maps input from [0, 1] to [min, max].
func Scale(input, min, max Signal) Signal {
	return Signal{Kind: ExprSignal, Op: OpScale, Args: []Signal{input, min, max}}
}

func (s Signal) String() string {
	switch s.Kind {
	case ValueSignal:
		return fmt.Sprint(s.Value)
	case NodeSignal:
		return fmt.Sprintf("node %d", s.Node)
	case BusSignal:
		return "~" + s.Name
	case PatternSignal:
		return fmt.Sprintf("%q", s.Name)
	case ExprSignal:
		return fmt.Sprintf("%s%v", s.Op, s.Args)
	}
	return "invalid signal"
}

func (s *Signal) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!int" || n.Tag == "!!float" {
			var v float64
			if err := n.Decode(&v); err != nil {
				return err
			}
			*s = Value(v)
			return nil
		}
		if busName.MatchString(n.Value) {
			*s = Bus(n.Value[1:])
			return nil
		}
		*s = InlinePattern(n.Value)
		return nil
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return fmt.Errorf("line %d: signal mapping must have exactly one key", n.Line)
		}
		key, val := n.Content[0].Value, n.Content[1]
		switch {
		case key == "value":
			var v float64
			if err := val.Decode(&v); err != nil {
				return err
			}
			*s = Value(v)
		case key == "node":
			var id int
			if err := val.Decode(&id); err != nil {
				return err
			}
			*s = NodeOutput(id)
		case key == "bus":
			*s = Bus(val.Value)
		case key == "pattern":
			*s = InlinePattern(val.Value)
		case binaryOps[Op(key)]:
			var args []Signal
			if err := val.Decode(&args); err != nil {
				return err
			}
			if len(args) != 2 {
				return fmt.Errorf("line %d: %s takes 2 operands, got %d", n.Line, key, len(args))
			}
			*s = Expr(Op(key), args[0], args[1])
		case key == string(OpScale):
			var args struct {
				Input *Signal `yaml:"input"`
				Min   *Signal `yaml:"min"`
				Max   *Signal `yaml:"max"`
			}
			if err := val.Decode(&args); err != nil {
				return err
			}
			if args.Input == nil || args.Min == nil || args.Max == nil {
				return fmt.Errorf("line %d: scale needs input, min and max", n.Line)
			}
			*s = Scale(*args.Input, *args.Min, *args.Max)
		default:
			return fmt.Errorf("line %d: unknown signal key %q", n.Line, key)
		}
		return nil
	}
	return fmt.Errorf("line %d: a signal must be a number, a string or a mapping", n.Line)
}

func (s Signal) MarshalYAML() (any, error) {
	switch s.Kind {
	case ValueSignal:
		return s.Value, nil
	case NodeSignal:
		return map[string]int{"node": s.Node}, nil
	case BusSignal:
		if busName.MatchString("~" + s.Name) {
			return "~" + s.Name, nil
		}
		return map[string]string{"bus": s.Name}, nil
	case PatternSignal:
		if busName.MatchString(s.Name) {
			return map[string]string{"pattern": s.Name}, nil
		}
		return s.Name, nil
	case ExprSignal:
		if s.Op == OpScale && len(s.Args) == 3 {
			return map[string]any{"scale": map[string]Signal{"input": s.Args[0], "min": s.Args[1], "max": s.Args[2]}}, nil
		}
		return map[string][]Signal{string(s.Op): s.Args}, nil
	}
	return nil, fmt.Errorf("cannot marshal signal of kind %d", s.Kind)
}
