package vm

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/looptide/looptide"
	"github.com/looptide/looptide/pattern"
)

type sigKind uint8

const (
	sigValue sigKind = iota
	sigNode
	sigBus
	sigPattern
	sigExpr
)

type exprOp uint8

const (
	opAdd exprOp = iota
	opSub
	opMul
	opDiv
	opMod
	opScale
)

var exprOps = map[looptide.Op]exprOp{
	looptide.OpAdd:   opAdd,
	looptide.OpSub:   opSub,
	looptide.OpMul:   opMul,
	looptide.OpDiv:   opDiv,
	looptide.OpMod:   opMod,
	looptide.OpScale: opScale,
}

// signal is the runtime form of looptide.Signal: node references are
// indices, buses are looked up by name on every evaluation, and inline
// patterns are compiled.
type signal struct {
	kind  sigKind
	value float32
	node  int
	bus   string
	pat   *inlinePattern
	op    exprOp
	args  []signal
}

func constant(v float32) signal { return signal{kind: sigValue, value: v} }

// inlinePattern is a pattern queried as a continuous value. The value of the
// first event found is held for the duration of that event.
type inlinePattern struct {
	pat   pattern.Pattern[string]
	valid bool
	span  pattern.Span
	value float32
}

func (p *inlinePattern) at(window pattern.Span) float32 {
	if p.valid && p.span.Contains(window.Begin) {
		return p.value
	}
	haps := p.pat.QuerySpan(window.Begin, window.End)
	p.valid = false
	if len(haps) == 0 {
		return 0
	}
	h := haps[0]
	for _, c := range haps[1:] {
		if c.Part.Begin.Lt(h.Part.Begin) {
			h = c
		}
	}
	p.value = wordValue(h.Value)
	if h.Whole != nil {
		p.valid, p.span = true, *h.Whole
	}
	return p.value
}

// drumIndex maps percussion words to fixed numbers so that drum patterns
// can also drive numeric parameters.
var drumIndex = map[string]float32{
	"bd": 1, "sn": 2, "hh": 3, "cp": 4, "oh": 5, "lt": 6, "mt": 7, "ht": 8,
}

var noteName = regexp.MustCompile(`^([a-gA-G])(#|s|b|f)?(-?[0-9])?$`)

var semitones = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// wordValue converts a pattern word to a number: numbers parse as is, note
// names become frequencies in Hz, drum words map through drumIndex and
// anything else is 0.
func wordValue(w string) float32 {
	if v, err := strconv.ParseFloat(w, 32); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return float32(v)
	}
	if hz, ok := NoteFrequency(w); ok {
		return float32(hz)
	}
	name, _, _ := strings.Cut(w, ":")
	return drumIndex[name]
}

// NoteFrequency returns the equal tempered frequency of a note name such as
// "a4", "c#3", "eb" or "fs2". The octave defaults to 4; a4 is 440 Hz.
func NoteFrequency(name string) (float64, bool) {
	m := noteName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	note := semitones[strings.ToLower(m[1])[0]]
	switch m[2] {
	case "#", "s":
		note++
	case "b", "f":
		note--
	}
	octave := 4
	if m[3] != "" {
		octave, _ = strconv.Atoi(m[3])
	}
	midi := 12*(octave+1) + note
	return 440 * math.Pow(2, float64(midi-69)/12), true
}
