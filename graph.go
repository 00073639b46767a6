// Package looptide holds the data types shared by the engine: the graph
// description produced by front ends, the Signal union used for every node
// parameter, the node type table and the audio boundary interfaces.
package looptide

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	// Graph describes a signal graph: its nodes, which signal is the output,
	// and the tempo in cycles per second. A description is immutable input to
	// the evaluator; the runtime state lives elsewhere.
	Graph struct {
		CPS    float64 `yaml:"cps"`
		Output Signal  `yaml:"output"`
		Nodes  []Node  `yaml:"nodes"`
	}

	// Node describes one processing node. Nodes are referred to by their
	// index in Graph.Nodes. A non-empty Name binds the node to the bus of
	// the same name.
	Node struct {
		Name    string            `yaml:"name,omitempty"`
		Type    string            `yaml:"type"`
		Params  map[string]Signal `yaml:"params,omitempty"`
		Inputs  []Signal          `yaml:"inputs,omitempty"`
		Options map[string]string `yaml:"options,omitempty"`
	}
)

// ReadGraph decodes a YAML graph description. Unknown fields are errors.
func ReadGraph(r io.Reader) (Graph, error) {
	var g Graph
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		if err == io.EOF {
			return Graph{}, fmt.Errorf("empty graph description")
		}
		return Graph{}, fmt.Errorf("could not decode graph: %w", err)
	}
	return g, nil
}

// ParseGraph is ReadGraph on a byte slice.
func ParseGraph(b []byte) (Graph, error) {
	return ReadGraph(bytes.NewReader(b))
}

func (g Graph) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("could not encode graph: %w", err)
	}
	return enc.Close()
}

// Copy makes a deep copy of the description.
func (g Graph) Copy() Graph {
	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = n.Copy()
	}
	return Graph{CPS: g.CPS, Output: g.Output.Copy(), Nodes: nodes}
}

func (n Node) Copy() Node {
	ret := Node{Name: n.Name, Type: n.Type}
	if n.Params != nil {
		ret.Params = make(map[string]Signal, len(n.Params))
		for k, v := range n.Params {
			ret.Params[k] = v.Copy()
		}
	}
	if n.Inputs != nil {
		ret.Inputs = make([]Signal, len(n.Inputs))
		for i, v := range n.Inputs {
			ret.Inputs[i] = v.Copy()
		}
	}
	if n.Options != nil {
		ret.Options = make(map[string]string, len(n.Options))
		for k, v := range n.Options {
			ret.Options[k] = v
		}
	}
	return ret
}

func (s Signal) Copy() Signal {
	if s.Args == nil {
		return s
	}
	args := make([]Signal, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.Copy()
	}
	s.Args = args
	return s
}

// Param returns the signal bound to a parameter, falling back to the node
// type's default value.
func (n Node) Param(name string) Signal {
	if s, ok := n.Params[name]; ok {
		return s
	}
	if p, ok := NodeTypes[n.Type].Param(name); ok {
		return Value(p.Default)
	}
	return Value(0)
}

// Option returns the option value, falling back to the node type's default.
func (n Node) Option(name string) string {
	if v, ok := n.Options[name]; ok {
		return v
	}
	if o, ok := NodeTypes[n.Type].Option(name); ok {
		return o.Default
	}
	return ""
}
