package vm

import "math"

// processDelay is a feedback delay with a circular buffer. The read position
// is interpolated linearly so that the delay time can be modulated smoothly.
func (g *Graph) processDelay(n *node, sr float64) float32 {
	in := g.input(n, 0)
	size := len(n.delay)
	d := math.Min(math.Max(g.param(n, 0)*sr, 1), float64(size-1))
	if !(d >= 1) {
		d = 1
	}
	feedback := float32(math.Min(math.Max(g.param(n, 1), -0.99), 0.99))
	mix := float32(math.Min(math.Max(g.param(n, 2), 0), 1))
	whole := int(d)
	frac := float32(d - float64(whole))
	a := n.delay[(n.cursor-whole+size)%size]
	b := n.delay[(n.cursor-whole-1+2*size)%size]
	wet := a + (b-a)*frac
	n.delay[n.cursor] = in + wet*feedback
	n.cursor = (n.cursor + 1) % size
	return in*(1-mix) + wet*mix
}

type (
	// reverb is a mono Schroeder-Moorer network: parallel damped combs
	// followed by serial allpasses.
	reverb struct {
		combs     [8]comb
		allpasses [4]allpass
	}

	comb struct {
		buffer []float32
		index  int
		store  float32
	}

	allpass struct {
		buffer []float32
		index  int
	}
)

// tunings in samples at 44100 Hz
var (
	combTunings    = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTunings = [4]int{556, 441, 341, 225}
)

func newReverb(sampleRate int) *reverb {
	scale := float64(sampleRate) / 44100
	r := &reverb{}
	for i, t := range combTunings {
		r.combs[i].buffer = make([]float32, max(int(float64(t)*scale), 1))
	}
	for i, t := range allpassTunings {
		r.allpasses[i].buffer = make([]float32, max(int(float64(t)*scale), 1))
	}
	return r
}

func (r *reverb) clear() {
	for i := range r.combs {
		clear(r.combs[i].buffer)
		r.combs[i].store = 0
	}
	for i := range r.allpasses {
		clear(r.allpasses[i].buffer)
	}
}

// energy is the sum of squares of everything stored in the network.
func (r *reverb) energy() float64 {
	var e float64
	for i := range r.combs {
		for _, v := range r.combs[i].buffer {
			e += float64(v) * float64(v)
		}
	}
	for i := range r.allpasses {
		for _, v := range r.allpasses[i].buffer {
			e += float64(v) * float64(v)
		}
	}
	return e
}

func (g *Graph) processReverb(n *node) float32 {
	in := g.input(n, 0)
	room := float32(0.7 + 0.28*math.Min(math.Max(g.param(n, 0), 0), 1))
	damp := float32(math.Min(math.Max(g.param(n, 1), 0), 1))
	mix := float32(math.Min(math.Max(g.param(n, 2), 0), 1))
	r := n.reverb
	x := in * 0.015
	var wet float32
	for i := range r.combs {
		c := &r.combs[i]
		out := c.buffer[c.index]
		c.store = out*(1-damp) + c.store*damp
		c.buffer[c.index] = x + c.store*room
		c.index = (c.index + 1) % len(c.buffer)
		wet += out
	}
	for i := range r.allpasses {
		a := &r.allpasses[i]
		out := a.buffer[a.index]
		a.buffer[a.index] = wet + out*0.5
		a.index = (a.index + 1) % len(a.buffer)
		wet = out - wet
	}
	return in*(1-mix) + wet*mix
}
