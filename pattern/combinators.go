package pattern

import "math"

// Pure repeats v once per cycle.
func Pure[T any](v T) Pattern[T] {
	return New(func(st State) []Hap[T] {
		var ret []Hap[T]
		for _, part := range st.Span.SpanCycles() {
			whole := Span{Begin: part.Begin.Sam(), End: part.Begin.NextSam()}
			ret = append(ret, Hap[T]{Whole: &whole, Part: part, Value: v})
		}
		return ret
	})
}

func Silence[T any]() Pattern[T] {
	return Pattern[T]{}
}

// Signal is a continuous pattern sampled at the start of each query.
func Signal[T any](f func(Fraction) T) Pattern[T] {
	return New(func(st State) []Hap[T] {
		return []Hap[T]{{Part: st.Span, Value: f(st.Span.Begin)}}
	})
}

// Saw rises from 0 to 1 over every cycle.
func Saw() Pattern[float64] {
	return Signal(func(t Fraction) float64 { return t.CyclePos().Float64() })
}

// Sine oscillates between 0 and 1 once per cycle.
func Sine() Pattern[float64] {
	return Signal(func(t Fraction) float64 {
		return (math.Sin(2*math.Pi*t.CyclePos().Float64()) + 1) / 2
	})
}

// Stack plays all patterns at the same time.
func Stack[T any](pats ...Pattern[T]) Pattern[T] {
	return New(func(st State) []Hap[T] {
		var ret []Hap[T]
		for _, p := range pats {
			ret = append(ret, p.Query(st)...)
		}
		return ret
	})
}

// SlowCat plays one pattern per cycle in rotation. Each pattern only advances
// through its own cycles while it is playing.
func SlowCat[T any](pats ...Pattern[T]) Pattern[T] {
	if len(pats) == 0 {
		return Silence[T]()
	}
	n := int64(len(pats))
	return New(func(st State) []Hap[T] {
		cycle := st.Span.Begin.Floor()
		i := ((cycle % n) + n) % n
		offset := Int(cycle - floorDiv(cycle, n))
		return pats[i].
			withHapTime(func(t Fraction) Fraction { return t.Add(offset) }).
			Query(st.withSpan(func(s Span) Span {
				return s.WithTime(func(t Fraction) Fraction { return t.Sub(offset) })
			}))
	}).splitQueries()
}

// Cat is an alias of SlowCat.
func Cat[T any](pats ...Pattern[T]) Pattern[T] {
	return SlowCat(pats...)
}

// FastCat squeezes all patterns into one cycle, giving each an equal share.
func FastCat[T any](pats ...Pattern[T]) Pattern[T] {
	steps := make([]Step[T], len(pats))
	for i, p := range pats {
		steps[i] = Step[T]{Weight: Int(1), Pattern: p}
	}
	return TimeCat(steps...)
}

// Step is a weighted member of a TimeCat sequence.
type Step[T any] struct {
	Weight  Fraction
	Pattern Pattern[T]
}

// TimeCat divides each cycle among the steps in proportion to their weights.
// A step occupying [b, e) of cycle c sees its own cycle c rescaled to that
// slot, so alternations inside a sequence still advance once per cycle.
func TimeCat[T any](steps ...Step[T]) Pattern[T] {
	total := Fraction{}
	for _, s := range steps {
		if s.Weight.Gt(Fraction{}) {
			total = total.Add(s.Weight)
		}
	}
	if total.IsZero() {
		return Silence[T]()
	}
	type slot struct {
		begin, width Fraction
		pat          Pattern[T]
	}
	slots := make([]slot, 0, len(steps))
	pos := Fraction{}
	for _, s := range steps {
		if !s.Weight.Gt(Fraction{}) {
			continue
		}
		w := s.Weight.Div(total)
		slots = append(slots, slot{begin: pos, width: w, pat: s.Pattern})
		pos = pos.Add(w)
	}
	return New(func(st State) []Hap[T] {
		cycle := st.Span.Begin.Sam()
		var ret []Hap[T]
		for _, sl := range slots {
			slotSpan := Span{Begin: cycle.Add(sl.begin), End: cycle.Add(sl.begin).Add(sl.width)}
			part, ok := slotSpan.Intersect(st.Span)
			if !ok {
				continue
			}
			toLocal := func(t Fraction) Fraction {
				return cycle.Add(t.Sub(slotSpan.Begin).Div(sl.width))
			}
			toGlobal := func(t Fraction) Fraction {
				return slotSpan.Begin.Add(t.Sub(cycle).Mul(sl.width))
			}
			for _, h := range sl.pat.Query(st.SetSpan(part.WithTime(toLocal))) {
				ret = append(ret, h.WithSpan(func(s Span) Span { return s.WithTime(toGlobal) }))
			}
		}
		return ret
	}).splitQueries()
}

// Fast speeds p up by factor. A non-positive factor yields silence.
func (p Pattern[T]) Fast(factor Fraction) Pattern[T] {
	if !factor.Gt(Fraction{}) {
		return Silence[T]()
	}
	return p.withQueryTime(func(t Fraction) Fraction { return t.Mul(factor) }).
		withHapTime(func(t Fraction) Fraction { return t.Div(factor) })
}

// Slow slows p down by factor. A non-positive factor yields silence.
func (p Pattern[T]) Slow(factor Fraction) Pattern[T] {
	if !factor.Gt(Fraction{}) {
		return Silence[T]()
	}
	return p.Fast(Int(1).Div(factor))
}

// Early shifts p backwards in time by offset cycles.
func (p Pattern[T]) Early(offset Fraction) Pattern[T] {
	return p.withQueryTime(func(t Fraction) Fraction { return t.Add(offset) }).
		withHapTime(func(t Fraction) Fraction { return t.Sub(offset) })
}

// Late shifts p forwards in time by offset cycles.
func (p Pattern[T]) Late(offset Fraction) Pattern[T] {
	return p.Early(offset.Neg())
}

// Rev mirrors every cycle of p.
func (p Pattern[T]) Rev() Pattern[T] {
	return New(func(st State) []Hap[T] {
		cycle := st.Span.Begin.Sam()
		next := st.Span.Begin.NextSam()
		reflect := func(s Span) Span {
			return Span{Begin: cycle.Add(next.Sub(s.End)), End: cycle.Add(next.Sub(s.Begin))}
		}
		haps := p.Query(st.withSpan(reflect))
		for i := range haps {
			haps[i] = haps[i].WithSpan(reflect)
		}
		return haps
	}).splitQueries()
}

// Every applies f to p on every nth cycle, starting with cycle 0.
func (p Pattern[T]) Every(n int64, f func(Pattern[T]) Pattern[T]) Pattern[T] {
	if n <= 0 {
		return p
	}
	transformed := f(p)
	return New(func(st State) []Hap[T] {
		if floorMod(st.Span.Begin.Floor(), n) == 0 {
			return transformed.Query(st)
		}
		return p.Query(st)
	}).splitQueries()
}

// Ply repeats each event n times within its own duration.
func (p Pattern[T]) Ply(n int64) Pattern[T] {
	if n <= 0 {
		return Silence[T]()
	}
	return New(func(st State) []Hap[T] {
		var ret []Hap[T]
		for _, h := range p.Query(st) {
			if h.Whole == nil {
				ret = append(ret, h)
				continue
			}
			d := h.Whole.Duration().Div(Int(n))
			for i := int64(0); i < n; i++ {
				b := h.Whole.Begin.Add(d.Mul(Int(i)))
				whole := Span{Begin: b, End: b.Add(d)}
				part, ok := whole.Intersect(h.Part)
				if !ok {
					continue
				}
				ret = append(ret, Hap[T]{Whole: &whole, Part: part, Value: h.Value})
			}
		}
		return ret
	})
}

// Segment samples p n times per cycle, turning it into discrete events.
func (p Pattern[T]) Segment(n int64) Pattern[T] {
	if n <= 0 {
		return Silence[T]()
	}
	return Struct(p, Pure(true).Fast(Int(n)))
}

// Struct restructures values according to the true events of structure.
// Event timing comes from structure; values are sampled from values.
func Struct[T any](values Pattern[T], structure Pattern[bool]) Pattern[T] {
	return appLeft(structure.Filter(func(b bool) bool { return b }), values)
}

func appLeft[S, T any](structure Pattern[S], values Pattern[T]) Pattern[T] {
	return New(func(st State) []Hap[T] {
		var ret []Hap[T]
		for _, s := range structure.Query(st) {
			for _, v := range values.Query(st.SetSpan(s.WholeOrPart())) {
				part, ok := s.Part.Intersect(v.Part)
				if !ok {
					continue
				}
				ret = append(ret, Hap[T]{Whole: s.Whole, Part: part, Value: v.Value})
			}
		}
		return ret
	})
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
