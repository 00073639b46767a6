package vm

import (
	"math"

	"github.com/fogleman/ease"
	"github.com/looptide/looptide/pattern"
)

type nodeKind uint8

const (
	kindOsc nodeKind = iota
	kindPulse
	kindFM
	kindNoise
	kindLPF
	kindHPF
	kindBPF
	kindDelay
	kindReverb
	kindADSR
	kindPattern
	kindSampler
	kindMix
	kindGain
	kindDistort
	kindLimiter
	kindLag
)

var nodeKinds = map[string]nodeKind{
	"osc":     kindOsc,
	"pulse":   kindPulse,
	"fm":      kindFM,
	"noise":   kindNoise,
	"lpf":     kindLPF,
	"hpf":     kindHPF,
	"bpf":     kindBPF,
	"delay":   kindDelay,
	"reverb":  kindReverb,
	"adsr":    kindADSR,
	"pattern": kindPattern,
	"sampler": kindSampler,
	"mix":     kindMix,
	"gain":    kindGain,
	"distort": kindDistort,
	"limiter": kindLimiter,
	"lag":     kindLag,
}

// variant values, selected by options
const (
	waveSine = iota
	waveSaw
	waveSquare
	waveTri
)

const (
	noiseWhite = iota
	noiseBrown
)

const (
	modeValue = iota
	modeGate
	modeTrigger
)

var variants = map[string]map[string]int{
	"wave":  {"sine": waveSine, "saw": waveSaw, "square": waveSquare, "tri": waveTri},
	"color": {"white": noiseWhite, "brown": noiseBrown},
	"mode":  {"value": modeValue, "gate": modeGate, "trigger": modeTrigger},
}

var curves = map[string]ease.Function{
	"linear": ease.Linear,
	"quad":   ease.InQuad,
	"cubic":  ease.InCubic,
	"sine":   ease.InOutSine,
	"expo":   ease.InExpo,
}

type (
	// node is one processing node: its parameter signals in the order of
	// the node type's parameter table, and the DSP state it owns. The
	// meaning of the generic state slots depends on the kind.
	node struct {
		kind    nodeKind
		name    string
		params  []signal
		inputs  []signal
		variant int
		curve   ease.Function
		state   [8]float64
		seed    uint32

		delay   []float32
		cursor  int
		reverb  *reverb
		seq     *sequencer
		voices  []voice
		samples *drumBank

		out      float32
		stamp    uint64
		visiting bool
		evals    uint64
	}

	// sequencer detects pattern onsets against the cycle clock. It keeps
	// the onsets of the current cycle and remembers the last onset fired,
	// so an event never fires twice, even across a transfer.
	sequencer struct {
		pat       pattern.Pattern[string]
		cycle     int64
		loaded    bool
		onsets    []onset
		next      int
		lastOnset pattern.Fraction
		fired     bool
		// current event, for sample-and-hold and gates
		held    float32
		heldEnd pattern.Fraction
		word    string
	}

	onset struct {
		begin, end pattern.Fraction
		word       string
		value      float32
	}
)

// envelope phases
const (
	envIdle = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

// envelope state slots
const (
	envPhase = iota
	envElapsed
	envLevel
	envFrom
	envGate
)

func (n *node) reset() {
	n.state = [8]float64{}
	n.out = 0
	for i := range n.delay {
		n.delay[i] = 0
	}
	if n.reverb != nil {
		n.reverb.clear()
	}
	n.voices = n.voices[:0]
}

func (g *Graph) param(n *node, i int) float64 {
	return float64(finite(g.resolve(&n.params[i])))
}

func (g *Graph) input(n *node, i int) float32 {
	return g.resolve(&n.inputs[i])
}

// process advances n by one sample and returns its output.
func (g *Graph) process(n *node) float32 {
	sr := float64(g.sampleRate)
	switch n.kind {
	case kindOsc:
		phase := n.state[0]
		var v float64
		switch n.variant {
		case waveSine:
			v = math.Sin(2 * math.Pi * phase)
		case waveSaw:
			v = 2*phase - 1
		case waveSquare:
			v = 1
			if phase >= 0.5 {
				v = -1
			}
		case waveTri:
			v = 4*math.Abs(phase-0.5) - 1
		}
		n.state[0] = wrap(phase + g.param(n, 0)/sr)
		return float32(v)
	case kindPulse:
		phase := n.state[0]
		v := float32(-1)
		if phase < g.param(n, 1) {
			v = 1
		}
		n.state[0] = wrap(phase + g.param(n, 0)/sr)
		return v
	case kindFM:
		freq, ratio, index := g.param(n, 0), g.param(n, 1), g.param(n, 2)
		mod := math.Sin(2 * math.Pi * n.state[1])
		v := math.Sin(2*math.Pi*n.state[0] + index*mod)
		n.state[0] = wrap(n.state[0] + freq/sr)
		n.state[1] = wrap(n.state[1] + freq*ratio/sr)
		return float32(v)
	case kindNoise:
		white := n.random()
		if n.variant == noiseWhite {
			return white
		}
		n.state[0] = (n.state[0] + 0.02*float64(white)) / 1.02
		return float32(n.state[0] * 3.5)
	case kindLPF, kindHPF, kindBPF:
		return g.filter(n, sr)
	case kindDelay:
		return g.processDelay(n, sr)
	case kindReverb:
		return g.processReverb(n)
	case kindADSR:
		return g.envelope(n, sr)
	case kindPattern:
		return g.patternNode(n)
	case kindSampler:
		return g.sampler(n)
	case kindMix:
		var sum float32
		for i := range n.inputs {
			sum += g.input(n, i)
		}
		return sum
	case kindGain:
		return g.input(n, 0) * float32(g.param(n, 0))
	case kindDistort:
		drive := math.Max(g.param(n, 0), 0)
		return float32(math.Tanh(float64(g.input(n, 0)) * drive))
	case kindLimiter:
		x := float64(g.input(n, 0))
		threshold := math.Max(g.param(n, 0), 1e-6)
		release := math.Max(g.param(n, 1), 1e-4)
		peak := math.Max(math.Abs(x), n.state[0]*math.Exp(-1/(release*sr)))
		n.state[0] = peak
		if peak > threshold {
			x *= threshold / peak
		}
		return float32(x)
	case kindLag:
		x := float64(g.input(n, 0))
		t := g.param(n, 0)
		if t <= 0 {
			n.state[0] = x
			return float32(x)
		}
		n.state[0] += (x - n.state[0]) * (1 - math.Exp(-1/(t*sr)))
		return float32(n.state[0])
	}
	return 0
}

func wrap(phase float64) float64 {
	return phase - math.Floor(phase)
}

// random returns white noise in [-1, 1) from the node's own xorshift state.
func (n *node) random() float32 {
	if n.seed == 0 {
		n.seed = 0x9e3779b9
	}
	n.seed ^= n.seed << 13
	n.seed ^= n.seed >> 17
	n.seed ^= n.seed << 5
	return float32(int32(n.seed)) / (1 << 31)
}

// filter is a trapezoidal state variable filter. state[0] and state[1] are
// the two integrator memories.
func (g *Graph) filter(n *node, sr float64) float32 {
	in := float64(g.input(n, 0))
	cutoff := math.Min(math.Max(g.param(n, 0), 10), 0.49*sr)
	q := math.Max(g.param(n, 1), 0.05)
	gc := math.Tan(math.Pi * cutoff / sr)
	k := 1 / q
	a1 := 1 / (1 + gc*(gc+k))
	a2 := gc * a1
	a3 := gc * a2
	v3 := in - n.state[1]
	v1 := a1*n.state[0] + a2*v3
	v2 := n.state[1] + a2*n.state[0] + a3*v3
	n.state[0] = 2*v1 - n.state[0]
	n.state[1] = 2*v2 - n.state[1]
	switch n.kind {
	case kindHPF:
		return float32(in - k*v1 - v2)
	case kindBPF:
		return float32(v1)
	}
	return float32(v2)
}

// envelope runs the ADSR phase machine. The gate opens when it rises above
// 0.5 and closes when it falls back.
func (g *Graph) envelope(n *node, sr float64) float32 {
	gate := g.param(n, 0)
	attack, decay := g.param(n, 1)*sr, g.param(n, 2)*sr
	sustain := math.Min(math.Max(g.param(n, 3), 0), 1)
	release := g.param(n, 4) * sr
	s := &n.state
	open := gate > 0.5
	wasOpen := s[envGate] > 0.5
	s[envGate] = gate
	switch {
	case open && !wasOpen:
		s[envPhase], s[envElapsed], s[envFrom] = envAttack, 0, s[envLevel]
	case !open && wasOpen && s[envPhase] != envIdle:
		s[envPhase], s[envElapsed], s[envFrom] = envRelease, 0, s[envLevel]
	}
	progress := func(length float64) float64 {
		if length < 1 {
			return 1
		}
		return math.Min(s[envElapsed]/length, 1)
	}
	switch int(s[envPhase]) {
	case envIdle:
		s[envLevel] = 0
	case envAttack:
		t := progress(attack)
		s[envLevel] = s[envFrom] + (1-s[envFrom])*n.curve(t)
		if t >= 1 {
			s[envPhase], s[envElapsed] = envDecay, 0
			return float32(s[envLevel])
		}
	case envDecay:
		t := progress(decay)
		s[envLevel] = 1 - (1-sustain)*n.curve(t)
		if t >= 1 {
			s[envPhase], s[envElapsed] = envSustain, 0
			return float32(s[envLevel])
		}
	case envSustain:
		s[envLevel] = sustain
	case envRelease:
		t := progress(release)
		s[envLevel] = s[envFrom] * (1 - n.curve(t))
		if t >= 1 {
			s[envPhase], s[envElapsed], s[envLevel] = envIdle, 0, 0
			return 0
		}
	}
	s[envElapsed]++
	return float32(s[envLevel])
}
