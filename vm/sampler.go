package vm

import (
	"math"
	"strconv"
	"strings"
	"sync"
)

type (
	voice struct {
		data []float32
		pos  float64
		rate float64
	}

	// drumBank holds synthesized one-shot sounds rendered at one sample
	// rate. Banks are immutable once built and shared between graphs.
	drumBank struct {
		sounds map[string][][]float32
	}
)

const drumVariants = 4

var (
	banksMu sync.Mutex
	banks   = map[int]*drumBank{}
)

// DrumNames lists the sounds a sampler can play. A word "name:n" selects
// variant n, which is pitched up and shortened slightly.
var DrumNames = []string{"bd", "sn", "hh", "oh", "cp", "rim", "tom", "blip"}

func bankFor(sampleRate int) *drumBank {
	banksMu.Lock()
	defer banksMu.Unlock()
	if b, ok := banks[sampleRate]; ok {
		return b
	}
	b := &drumBank{sounds: map[string][][]float32{}}
	for _, name := range DrumNames {
		for v := 0; v < drumVariants; v++ {
			b.sounds[name] = append(b.sounds[name], synthesizeDrum(name, v, float64(sampleRate)))
		}
	}
	banks[sampleRate] = b
	return b
}

// get returns the sound for a word like "bd" or "sn:2", or nil.
func (b *drumBank) get(word string) []float32 {
	name, variant, _ := strings.Cut(word, ":")
	sounds, ok := b.sounds[name]
	if !ok {
		return nil
	}
	v, _ := strconv.Atoi(variant)
	return sounds[((v%drumVariants)+drumVariants)%drumVariants]
}

func synthesizeDrum(name string, variant int, sr float64) []float32 {
	pitch := 1 + 0.12*float64(variant)
	decay := 1 - 0.1*float64(variant)
	var length float64
	switch name {
	case "bd", "tom":
		length = 0.5
	case "oh", "sn", "cp":
		length = 0.4
	default:
		length = 0.15
	}
	data := make([]float32, int(length*decay*sr)+2)
	seed := uint32(0x2545f491 + variant)
	noise := func() float64 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		return float64(int32(seed)) / (1 << 31)
	}
	env := func(t, tau float64) float64 { return math.Exp(-t / (tau * decay)) }
	var phase, prev float64
	for i := range data {
		t := float64(i) / sr
		var v float64
		switch name {
		case "bd":
			freq := (50 + 100*math.Exp(-t/0.04)) * pitch
			phase += freq / sr
			v = math.Sin(2*math.Pi*phase) * env(t, 0.12)
		case "tom":
			freq := (110 + 110*math.Exp(-t/0.05)) * pitch
			phase += freq / sr
			v = math.Sin(2*math.Pi*phase) * env(t, 0.1)
		case "sn":
			phase += 180 * pitch / sr
			v = 0.5*math.Sin(2*math.Pi*phase)*env(t, 0.04) + 0.6*noise()*env(t, 0.07)
		case "hh", "oh":
			n := noise()
			tau := 0.02
			if name == "oh" {
				tau = 0.12
			}
			v = 0.5 * (n - prev) * env(t, tau)
			prev = n
		case "cp":
			burst := math.Mod(t, 0.011)
			a := env(burst, 0.003)
			if t > 0.033 {
				a = env(t-0.033, 0.06)
			}
			v = 0.7 * noise() * a
		case "rim":
			phase += 820 * pitch / sr
			v = math.Sin(2*math.Pi*phase)*env(t, 0.01) + 0.3*noise()*env(t, 0.002)
		case "blip":
			phase += 880 * pitch / sr
			v = 0.6 * math.Sin(2*math.Pi*phase) * env(t, 0.03)
		}
		data[i] = float32(v)
	}
	return data
}

// maxSpeed bounds the playback rate of sampler voices.
const maxSpeed = 64

// sampler starts a voice on every onset of its pattern and mixes the
// playing voices. When all voices are busy the oldest one is stolen.
func (g *Graph) sampler(n *node) float32 {
	gain := float32(g.param(n, 0))
	speed := math.Min(math.Max(math.Abs(g.param(n, 1)), 0.01), maxSpeed)
	n.seq.advance(g.window, func(o onset) {
		if !opens(o.word) {
			return
		}
		data := n.samples.get(o.word)
		if data == nil {
			return
		}
		if len(n.voices) >= g.maxVoices {
			copy(n.voices, n.voices[1:])
			n.voices = n.voices[:len(n.voices)-1]
		}
		n.voices = append(n.voices, voice{data: data, rate: speed})
	})
	var sum float32
	live := n.voices[:0]
	for _, v := range n.voices {
		if !(v.pos >= 0 && v.pos < float64(len(v.data)-1)) {
			continue
		}
		i := int(v.pos)
		frac := float32(v.pos - float64(i))
		sum += v.data[i] + (v.data[i+1]-v.data[i])*frac
		v.pos += v.rate
		live = append(live, v)
	}
	n.voices = live
	return sum * gain
}

// ActiveVoices counts the sampler voices still playing in the graph.
func (g *Graph) ActiveVoices() int {
	count := 0
	for i := range g.nodes {
		count += len(g.nodes[i].voices)
	}
	return count
}
