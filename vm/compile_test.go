package vm_test

import (
	"errors"
	"math"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/looptide/looptide"
	"github.com/looptide/looptide/vm"
	"github.com/stretchr/testify/require"
)

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{"UnknownType", "cps: 1\noutput: 0\nnodes:\n  - type: theremin\n", "type", "unknown node type"},
		{"UnknownParam", "cps: 1\noutput: 0\nnodes:\n  - type: osc\n    params: {pitch: 3}\n", "params.pitch", "no parameter"},
		{"MissingGate", "cps: 1\noutput: 0\nnodes:\n  - type: adsr\n", "params.gate", "requires parameter"},
		{"TooFewInputs", "cps: 1\noutput: 0\nnodes:\n  - type: lpf\n", "inputs", "takes 1 inputs"},
		{"EmptyMix", "cps: 1\noutput: 0\nnodes:\n  - type: mix\n", "inputs", "at least one input"},
		{"NodeOutOfRange", "cps: 1\noutput: {node: 3}\n", "output", "does not exist"},
		{"BadInlinePattern", "cps: 1\noutput: \"bd [sn\"\n", "output", "mini-notation"},
		{"BadWave", "cps: 1\noutput: 0\nnodes:\n  - type: osc\n    options: {wave: wobble}\n", "options.wave", "not one of"},
		{"UnknownOption", "cps: 1\noutput: 0\nnodes:\n  - type: gain\n    options: {mode: x}\n    inputs: [0]\n", "options.mode", "no option"},
		{"MissingPattern", "cps: 1\noutput: 0\nnodes:\n  - type: pattern\n", "options.pattern", "requires option"},
		{"BadPatternOption", "cps: 1\noutput: 0\nnodes:\n  - type: sampler\n    options: {pattern: \"bd(3)\"}\n", "options.pattern", "mini-notation"},
		{"DelayTooLong", "cps: 1\noutput: 0\nnodes:\n  - type: delay\n    options: {max: \"600\"}\n    inputs: [0]\n", "options.max", "maximum delay"},
		{"DuplicateBus", "cps: 1\noutput: 0\nnodes:\n  - {name: a, type: noise}\n  - {name: a, type: noise}\n", "name", "already bound"},
		{"InvalidBusName", "cps: 1\noutput: 0\nnodes:\n  - {name: 1st, type: noise}\n", "name", "invalid bus name"},
		{"ZeroCPS", "cps: 0\noutput: 0\n", "cps", "positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := looptide.ParseGraph([]byte(tt.src))
			require.NoError(t, err)
			g, err := vm.Compile(desc, 44100)
			require.Nil(t, g)
			var cerr *vm.CompileError
			require.True(t, errors.As(err, &cerr), "expected a *CompileError, got %v", err)
			found := false
			for _, d := range cerr.Diagnostics {
				if d.Severity == vm.SeverityError && d.Field == tt.field && strings.Contains(d.Msg, tt.msg) {
					found = true
				}
			}
			require.True(t, found, "no %q diagnostic on %s in %v", tt.msg, tt.field, cerr)
		})
	}
}

func TestCompileReportsAllErrors(t *testing.T) {
	desc, err := looptide.ParseGraph([]byte(`
cps: 1
output: {node: 9}
nodes:
  - type: theremin
  - type: osc
    params: {pitch: 3}
`))
	require.NoError(t, err)
	_, err = vm.Compile(desc, 44100)
	var cerr *vm.CompileError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Diagnostics, 3)
	require.Contains(t, err.Error(), "node 0 type: unknown node type")
}

func TestCompileNonFiniteConstant(t *testing.T) {
	desc := looptide.Graph{CPS: 1, Output: looptide.Value(math.Inf(1))}
	_, err := vm.Compile(desc, 44100)
	require.ErrorContains(t, err, "finite")
}

func TestCompileUnknownBusIsWarning(t *testing.T) {
	desc, err := looptide.ParseGraph([]byte("cps: 1\noutput: {add: [~drums, 0.25]}\n"))
	require.NoError(t, err)
	g, err := vm.Compile(desc, 1000)
	require.NoError(t, err)
	require.Len(t, g.Warnings(), 1)
	w := g.Warnings()[0]
	require.Equal(t, vm.SeverityWarning, w.Severity)
	require.Equal(t, -1, w.Node)
	require.True(t, strings.HasPrefix(w.String(), "warning: output"), w.String())
	buf := make([]float32, 4)
	g.Render(buf)
	require.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, buf)
}

func TestCompileInvalidSampleRate(t *testing.T) {
	_, err := vm.Compile(looptide.Graph{CPS: 1}, 0)
	require.Error(t, err)
	var cerr *vm.CompileError
	require.False(t, errors.As(err, &cerr))
}

func TestSilentGraph(t *testing.T) {
	g := vm.Silent(48000, 0.5)
	buf := []float32{1, 2, 3}
	g.Render(buf)
	require.Equal(t, []float32{0, 0, 0}, buf)
	require.Equal(t, int64(3), g.Samples())
	require.Equal(t, 0, g.NodeCount())
}

func TestAllExampleGraphs(t *testing.T) {
	_, myname, _, _ := runtime.Caller(0)
	files, err := filepath.Glob(path.Join(path.Dir(myname), "..", "examples", "*.yml"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no example graphs found")
	for _, filename := range files {
		basename := filepath.Base(filename)
		t.Run(strings.TrimSuffix(basename, path.Ext(basename)), func(t *testing.T) {
			f, err := os.Open(filename)
			require.NoError(t, err)
			defer f.Close()
			desc, err := looptide.ReadGraph(f)
			require.NoError(t, err)
			g, err := vm.Compile(desc, 22050)
			require.NoError(t, err)
			require.Empty(t, g.Warnings())
			buf := make([]float32, 22050)
			g.Render(buf)
			var energy float64
			for i, v := range buf {
				if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
					t.Fatalf("sample %d is not finite: %v", i, v)
				}
				energy += float64(v) * float64(v)
			}
			require.Greater(t, energy, 0.0, "example renders silence")
		})
	}
}
