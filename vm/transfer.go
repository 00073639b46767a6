package vm

import "github.com/looptide/looptide/pattern"

// TransferReport tells what TransferFrom carried over.
type TransferReport struct {
	Position pattern.Fraction
	Nodes    int // nodes whose state was carried over
	Voices   int // sampler voices still playing after the transfer
}

// TransferFrom continues old in g: the cycle clock always carries over, and
// DSP state (phases, filter memories, envelopes, delay and reverb tails,
// playing voices, last pattern onsets) carries over to every node of g that
// corresponds to a node of old. Nodes correspond when they are bound to the
// same bus, or else when they have the same index and kind.
//
// The caller must hold old's lock, and g must not have been rendered yet.
func (g *Graph) TransferFrom(old *Graph) TransferReport {
	pos := old.CyclePosition()
	g.SetCyclePosition(pos)
	rep := TransferReport{Position: pos}
	if old.sampleRate != g.sampleRate {
		return rep
	}
	used := make([]bool, len(old.nodes))
	for i := range g.nodes {
		j, ok := g.match(old, i, used)
		if !ok {
			continue
		}
		used[j] = true
		g.nodes[i].transfer(&old.nodes[j], g.maxVoices)
		rep.Nodes++
	}
	rep.Voices = g.ActiveVoices()
	return rep
}

func (g *Graph) match(old *Graph, i int, used []bool) (int, bool) {
	n := &g.nodes[i]
	if n.name != "" {
		if j, ok := old.buses[n.name]; ok && !used[j] && old.nodes[j].kind == n.kind {
			return j, true
		}
	}
	if i < len(old.nodes) && !used[i] {
		o := &old.nodes[i]
		if o.kind == n.kind && (o.name == "" || o.name == n.name) {
			return i, true
		}
	}
	return 0, false
}

func (n *node) transfer(o *node, maxVoices int) {
	n.state = o.state
	n.seed = o.seed
	n.out = o.out
	if n.delay != nil && o.delay != nil {
		copyDelay(n, o)
	}
	if n.reverb != nil && o.reverb != nil {
		n.reverb.copyFrom(o.reverb)
	}
	if n.seq != nil && o.seq != nil {
		n.seq.lastOnset, n.seq.fired = o.seq.lastOnset, o.seq.fired
		n.seq.held, n.seq.heldEnd, n.seq.word = o.seq.held, o.seq.heldEnd, o.seq.word
	}
	if n.kind == kindSampler {
		voices := o.voices
		if len(voices) > maxVoices {
			voices = voices[len(voices)-maxVoices:]
		}
		n.voices = append(n.voices[:0], voices...)
	}
}

// copyDelay keeps the most recent history of o, so that every echo still in
// flight comes out at the same time in n.
func copyDelay(n, o *node) {
	if len(n.delay) == len(o.delay) {
		copy(n.delay, o.delay)
		n.cursor = o.cursor
		return
	}
	m := min(len(n.delay), len(o.delay)) - 1
	for k := 1; k <= m; k++ {
		n.delay[m-k] = o.delay[(o.cursor-k+len(o.delay))%len(o.delay)]
	}
	n.cursor = m % len(n.delay)
}

func (r *reverb) copyFrom(o *reverb) {
	for i := range r.combs {
		if len(r.combs[i].buffer) == len(o.combs[i].buffer) {
			copy(r.combs[i].buffer, o.combs[i].buffer)
			r.combs[i].index, r.combs[i].store = o.combs[i].index, o.combs[i].store
		}
	}
	for i := range r.allpasses {
		if len(r.allpasses[i].buffer) == len(o.allpasses[i].buffer) {
			copy(r.allpasses[i].buffer, o.allpasses[i].buffer)
			r.allpasses[i].index = o.allpasses[i].index
		}
	}
}

// TailEnergy is the sum of squares of all samples stored in delay lines and
// reverbs, which is zero when no effect tail is ringing.
func (g *Graph) TailEnergy() float64 {
	var e float64
	for i := range g.nodes {
		for _, v := range g.nodes[i].delay {
			e += float64(v) * float64(v)
		}
		if r := g.nodes[i].reverb; r != nil {
			e += r.energy()
		}
	}
	return e
}
