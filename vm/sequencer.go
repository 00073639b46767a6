package vm

import (
	"sort"
	"strconv"

	"github.com/looptide/looptide/pattern"
)

func newSequencer(p pattern.Pattern[string]) *sequencer {
	return &sequencer{pat: p}
}

// load queries a whole cycle at once and keeps its onsets in time order.
func (s *sequencer) load(cycle int64) {
	s.cycle, s.loaded, s.next = cycle, true, 0
	s.onsets = s.onsets[:0]
	for _, h := range s.pat.QueryCycle(cycle) {
		if !h.HasOnset() {
			continue
		}
		s.onsets = append(s.onsets, onset{
			begin: h.Whole.Begin,
			end:   h.Whole.End,
			word:  h.Value,
			value: wordValue(h.Value),
		})
	}
	sort.SliceStable(s.onsets, func(i, j int) bool { return s.onsets[i].begin.Lt(s.onsets[j].begin) })
}

// advance calls fire for every onset in window that has not fired yet.
func (s *sequencer) advance(window pattern.Span, fire func(onset)) {
	for c := window.Begin.Floor(); pattern.Int(c).Lt(window.End); c++ {
		if !s.loaded || s.cycle != c {
			s.load(c)
		}
		for s.next < len(s.onsets) {
			o := s.onsets[s.next]
			if !o.begin.Lt(window.End) {
				break
			}
			s.next++
			if o.begin.Lt(window.Begin) || (s.fired && !o.begin.Gt(s.lastOnset)) {
				continue
			}
			s.lastOnset, s.fired = o.begin, true
			s.held, s.heldEnd, s.word = o.value, o.end, o.word
			fire(o)
		}
	}
}

// active reports whether the last fired event is still sounding at t.
func (s *sequencer) active(t pattern.Fraction) bool {
	return s.fired && t.Lt(s.heldEnd)
}

// patternNode evaluates its pattern directly against the clock. In value
// mode it holds the value of the latest event; in gate mode it is 1 while an
// event sounds, dropping to 0 for the first sample of every onset so that
// consecutive events retrigger envelopes; in trigger mode it is 1 only on
// onset samples. Events whose word is the number 0 neither open the gate nor
// trigger.
func (g *Graph) patternNode(n *node) float32 {
	triggered := false
	n.seq.advance(g.window, func(o onset) {
		triggered = triggered || opens(o.word)
	})
	switch n.variant {
	case modeGate:
		if triggered || !n.seq.active(g.pos) || !opens(n.seq.word) {
			return 0
		}
		return 1
	case modeTrigger:
		if triggered {
			return 1
		}
		return 0
	}
	return n.seq.held
}

func opens(word string) bool {
	if v, err := strconv.ParseFloat(word, 64); err == nil {
		return v != 0
	}
	return true
}
