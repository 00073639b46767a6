package vm

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/looptide/looptide/pattern"
)

type (
	// Graph is a compiled, runnable signal graph. A Graph is owned by one
	// goroutine at a time: whoever renders it holds its lock, and the only
	// state readable without the lock is the cycle clock.
	//
	// A Graph is never edited after compilation. Live changes compile a new
	// Graph and transplant state into it with TransferFrom.
	Graph struct {
		id         uuid.UUID
		nodes      []node
		buses      map[string]int
		output     signal
		sampleRate int
		cps        pattern.Fraction
		// step is the cycle time covered by one sample, cps / sampleRate
		step pattern.Fraction
		tick atomic.Int64
		// pos is the cycle position of the sample being rendered, and
		// window the span of cycle time it covers. After a transfer the
		// first window may start slightly before pos.
		pos     pattern.Fraction
		window  pattern.Span
		catchUp *pattern.Fraction

		generation uint64
		warnings   []Diagnostic
		maxVoices  int
		mu         sync.Mutex
	}

	// Option configures a Graph at compile time.
	Option func(*Graph)
)

// DefaultMaxVoices is the default polyphony of each sampler node.
const DefaultMaxVoices = 32

// maxCPSDenominator bounds the denominator of the tempo, which keeps the
// exact clock arithmetic far from overflowing.
const maxCPSDenominator = 1000

// WithMaxVoices sets the polyphony limit of sampler nodes. When a sampler
// runs out of voices, its oldest voice is stolen.
func WithMaxVoices(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxVoices = n
		}
	}
}

func newGraph(sampleRate int, cps float64) *Graph {
	g := &Graph{
		id:         uuid.New(),
		buses:      map[string]int{},
		sampleRate: sampleRate,
		cps:        pattern.FromFloat(cps, maxCPSDenominator),
		maxVoices:  DefaultMaxVoices,
	}
	if !g.cps.Gt(pattern.Fraction{}) {
		g.cps = pattern.Int(1)
	}
	g.step = g.cps.Div(pattern.Int(int64(sampleRate)))
	return g
}

// Silent returns a graph with no nodes that always outputs zero. It is what
// hush and panic swap in.
func Silent(sampleRate int, cps float64) *Graph {
	g := newGraph(sampleRate, cps)
	g.output = constant(0)
	return g
}

func (g *Graph) ID() uuid.UUID { return g.id }

func (g *Graph) SampleRate() int { return g.sampleRate }

// CPS returns the tempo in cycles per second.
func (g *Graph) CPS() pattern.Fraction { return g.cps }

func (g *Graph) NodeCount() int { return len(g.nodes) }

// Warnings returns the non-fatal diagnostics found while compiling, such as
// references to buses that do not exist.
func (g *Graph) Warnings() []Diagnostic { return g.warnings }

// Samples returns how many samples the clock has advanced. Safe to call
// without holding the lock.
func (g *Graph) Samples() int64 { return g.tick.Load() }

// CyclePosition returns the exact cycle position of the next sample to be
// rendered. Safe to call without holding the lock.
func (g *Graph) CyclePosition() pattern.Fraction {
	return pattern.Int(g.tick.Load()).Mul(g.step)
}

// SetCyclePosition moves the clock to the sample nearest to pos. Onsets
// between pos and the new clock position are still detected by the first
// sample rendered afterwards.
func (g *Graph) SetCyclePosition(pos pattern.Fraction) {
	ticks := pos.Div(g.step)
	t := ticks.Floor()
	if ticks.Sub(pattern.Int(t)).Gte(pattern.Frac(1, 2)) {
		t++
	}
	g.tick.Store(t)
	if at := pattern.Int(t).Mul(g.step); at != pos {
		p := pos
		g.catchUp = &p
	} else {
		g.catchUp = nil
	}
}

func (g *Graph) Lock()         { g.mu.Lock() }
func (g *Graph) Unlock()       { g.mu.Unlock() }
func (g *Graph) TryLock() bool { return g.mu.TryLock() }

// ProcessSample renders one sample and advances the clock and every stateful
// node by exactly one sample. The caller must hold the lock.
func (g *Graph) ProcessSample() float32 {
	g.generation++
	tick := g.tick.Load()
	g.pos = pattern.Int(tick).Mul(g.step)
	g.window = pattern.NewSpan(g.pos, g.pos.Add(g.step))
	if g.catchUp != nil {
		g.window.Begin = pattern.Min(*g.catchUp, g.pos)
		g.catchUp = nil
	}
	out := g.resolve(&g.output)
	g.tick.Store(tick + 1)
	return out
}

// Render fills buffer with consecutive samples. The caller must hold the
// lock.
func (g *Graph) Render(buffer []float32) {
	for i := range buffer {
		buffer[i] = g.ProcessSample()
	}
}

// evalNode returns the output of node i for the current sample, computing it
// at most once per sample. A node reached again while it is being computed
// returns its previous output, which turns cycles into one sample delays.
func (g *Graph) evalNode(i int) float32 {
	if i < 0 || i >= len(g.nodes) {
		return 0
	}
	n := &g.nodes[i]
	if n.stamp == g.generation || n.visiting {
		return n.out
	}
	n.visiting = true
	v := g.process(n)
	n.visiting = false
	if !isFinite(v) {
		n.reset()
		v = 0
	}
	n.out = v
	n.stamp = g.generation
	n.evals++
	return v
}

func (g *Graph) resolve(s *signal) float32 {
	switch s.kind {
	case sigValue:
		return s.value
	case sigNode:
		return g.evalNode(s.node)
	case sigBus:
		if i, ok := g.buses[s.bus]; ok {
			return g.evalNode(i)
		}
		return 0
	case sigPattern:
		return finite(s.pat.at(g.window))
	case sigExpr:
		return finite(g.resolveExpr(s))
	}
	return 0
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// finite maps NaN and ±Inf to 0.
func finite(v float32) float32 {
	if isFinite(v) {
		return v
	}
	return 0
}

func (g *Graph) resolveExpr(s *signal) float32 {
	a := g.resolve(&s.args[0])
	b := g.resolve(&s.args[1])
	switch s.op {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opDiv:
		if b == 0 {
			return 0
		}
		return a / b
	case opMod:
		if b == 0 {
			return 0
		}
		return float32(math.Mod(float64(a), float64(b)))
	case opScale:
		lo := b
		hi := g.resolve(&s.args[2])
		return a*(hi-lo) + lo
	}
	return 0
}
