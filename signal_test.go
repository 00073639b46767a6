package looptide_test

import (
	"bytes"
	"testing"

	"github.com/looptide/looptide"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const graphYAML = `
cps: 0.5
output: {node: 3}
nodes:
  - name: lfo
    type: osc
    params: {freq: 0.25}
  - type: osc
    params:
      freq: "<110 220>"
    options: {wave: saw}
  - type: adsr
    params:
      gate: {pattern: "1 0 1 1"}
  - type: lpf
    params:
      cutoff: {scale: {input: ~lfo, min: 200, max: 2000}}
      q: {mul: [{node: 2}, 2]}
    inputs: [{mul: [{node: 1}, {node: 2}]}]
`

func TestReadGraph(t *testing.T) {
	g, err := looptide.ParseGraph([]byte(graphYAML))
	require.NoError(t, err)
	require.Equal(t, 0.5, g.CPS)
	require.Equal(t, looptide.NodeOutput(3), g.Output)
	require.Len(t, g.Nodes, 4)
	require.Equal(t, "lfo", g.Nodes[0].Name)
	require.Equal(t, looptide.Value(0.25), g.Nodes[0].Params["freq"])
	require.Equal(t, looptide.InlinePattern("<110 220>"), g.Nodes[1].Params["freq"])
	require.Equal(t, "saw", g.Nodes[1].Options["wave"])
	require.Equal(t, looptide.InlinePattern("1 0 1 1"), g.Nodes[2].Params["gate"])
	require.Equal(t,
		looptide.Scale(looptide.Bus("lfo"), looptide.Value(200), looptide.Value(2000)),
		g.Nodes[3].Params["cutoff"])
	require.Equal(t,
		looptide.Expr(looptide.OpMul, looptide.NodeOutput(2), looptide.Value(2)),
		g.Nodes[3].Params["q"])
	require.Equal(t,
		[]looptide.Signal{looptide.Expr(looptide.OpMul, looptide.NodeOutput(1), looptide.NodeOutput(2))},
		g.Nodes[3].Inputs)
}

func TestGraphWriteRead(t *testing.T) {
	g, err := looptide.ParseGraph([]byte(graphYAML))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	g2, err := looptide.ReadGraph(&buf)
	require.NoError(t, err)
	require.Equal(t, g, g2)
}

func TestSignalScalars(t *testing.T) {
	tests := []struct {
		in   string
		want looptide.Signal
	}{
		{"3", looptide.Value(3)},
		{"-0.5", looptide.Value(-0.5)},
		{"~out", looptide.Bus("out")},
		{"'~ sn'", looptide.InlinePattern("~ sn")},
		{"bd sn", looptide.InlinePattern("bd sn")},
		{"'3'", looptide.InlinePattern("3")},
		{"{bus: x}", looptide.Bus("x")},
		{"{value: 2}", looptide.Value(2)},
		{"{pattern: ~foo}", looptide.InlinePattern("~foo")},
		{"{mod: [{node: 0}, 1]}", looptide.Expr(looptide.OpMod, looptide.NodeOutput(0), looptide.Value(1))},
	}
	for _, tt := range tests {
		var s looptide.Signal
		require.NoError(t, yaml.Unmarshal([]byte(tt.in), &s), tt.in)
		require.Equal(t, tt.want, s, tt.in)
	}
}

func TestSignalErrors(t *testing.T) {
	for _, in := range []string{
		"{add: [1]}",
		"{frobnicate: 1}",
		"{node: 1, bus: x}",
		"{scale: {input: 1, min: 0}}",
		"[1, 2]",
	} {
		var s looptide.Signal
		require.Error(t, yaml.Unmarshal([]byte(in), &s), in)
	}
}

func TestReadGraphUnknownField(t *testing.T) {
	_, err := looptide.ParseGraph([]byte("cps: 1\ntempo: 3\n"))
	require.Error(t, err)
	_, err = looptide.ParseGraph(nil)
	require.Error(t, err)
}

func TestNodeDefaults(t *testing.T) {
	n := looptide.Node{Type: "lpf", Params: map[string]looptide.Signal{"q": looptide.Value(2)}}
	require.Equal(t, looptide.Value(1000), n.Param("cutoff"))
	require.Equal(t, looptide.Value(2), n.Param("q"))
	require.Equal(t, "sine", looptide.Node{Type: "osc"}.Option("wave"))
	require.Equal(t, "", looptide.Node{Type: "osc"}.Option("nope"))
}

func TestNodeTypesDescribe(t *testing.T) {
	names := looptide.NodeTypeNames()
	require.Contains(t, names, "sampler")
	require.IsIncreasing(t, names)
	require.Equal(t,
		"lpf      state variable lowpass filter; cutoff=1000Hz; q=0.707; inputs: 1",
		looptide.NodeTypes["lpf"].Describe("lpf"))
}

func TestCopyIsDeep(t *testing.T) {
	g, err := looptide.ParseGraph([]byte(graphYAML))
	require.NoError(t, err)
	c := g.Copy()
	c.Nodes[3].Params["q"].Args[1] = looptide.Value(99)
	c.Nodes[1].Options["wave"] = "tri"
	require.Equal(t, looptide.Value(2), g.Nodes[3].Params["q"].Args[1])
	require.Equal(t, "saw", g.Nodes[1].Options["wave"])
}
