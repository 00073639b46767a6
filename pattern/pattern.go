// Package pattern implements cyclic temporal patterns: lazily evaluated,
// referentially transparent functions from a query span to the events active
// during it. All time is exact rational cycle time, so repeated subdivision
// never drifts.
package pattern

// State is the input of a pattern query.
type State struct {
	Span     Span
	Controls map[string]float64
}

// SetSpan returns a copy of the state with a different span.
func (s State) SetSpan(span Span) State {
	return State{Span: span, Controls: s.Controls}
}

func (s State) withSpan(f func(Span) Span) State {
	return s.SetSpan(f(s.Span))
}

// Query answers which events are active during a state's span.
type Query[T any] func(State) []Hap[T]

// Pattern is an immutable, freely shareable value. The zero Pattern is
// silence.
type Pattern[T any] struct {
	query Query[T]
}

func New[T any](q Query[T]) Pattern[T] {
	return Pattern[T]{query: q}
}

// Query returns every event intersecting st.Span, clipped to it.
func (p Pattern[T]) Query(st State) []Hap[T] {
	if p.query == nil {
		return nil
	}
	return p.query(st)
}

// QuerySpan is a convenience for querying [begin, end) without controls.
func (p Pattern[T]) QuerySpan(begin, end Fraction) []Hap[T] {
	return p.Query(State{Span: NewSpan(begin, end)})
}

// QueryCycle queries the whole of cycle c.
func (p Pattern[T]) QueryCycle(c int64) []Hap[T] {
	return p.QuerySpan(Int(c), Int(c+1))
}

// splitQueries makes the query function see at most one cycle at a time.
func (p Pattern[T]) splitQueries() Pattern[T] {
	return New(func(st State) []Hap[T] {
		cycles := st.Span.SpanCycles()
		if len(cycles) == 1 {
			return p.Query(st)
		}
		var ret []Hap[T]
		for _, span := range cycles {
			ret = append(ret, p.Query(st.SetSpan(span))...)
		}
		return ret
	})
}

func (p Pattern[T]) withQuerySpan(f func(Span) Span) Pattern[T] {
	return New(func(st State) []Hap[T] {
		return p.Query(st.withSpan(f))
	})
}

func (p Pattern[T]) withQueryTime(f func(Fraction) Fraction) Pattern[T] {
	return p.withQuerySpan(func(s Span) Span { return s.WithTime(f) })
}

func (p Pattern[T]) withHapSpan(f func(Span) Span) Pattern[T] {
	return New(func(st State) []Hap[T] {
		haps := p.Query(st)
		for i := range haps {
			haps[i] = haps[i].WithSpan(f)
		}
		return haps
	})
}

func (p Pattern[T]) withHapTime(f func(Fraction) Fraction) Pattern[T] {
	return p.withHapSpan(func(s Span) Span { return s.WithTime(f) })
}

// FilterHaps keeps only the events for which keep returns true.
func (p Pattern[T]) FilterHaps(keep func(Hap[T]) bool) Pattern[T] {
	return New(func(st State) []Hap[T] {
		haps := p.Query(st)
		ret := haps[:0]
		for _, h := range haps {
			if keep(h) {
				ret = append(ret, h)
			}
		}
		return ret
	})
}

// Filter keeps only the events whose value satisfies keep.
func (p Pattern[T]) Filter(keep func(T) bool) Pattern[T] {
	return p.FilterHaps(func(h Hap[T]) bool { return keep(h.Value) })
}

// Onsets drops fragments that do not contain the start of their event.
func (p Pattern[T]) Onsets() Pattern[T] {
	return p.FilterHaps(Hap[T].HasOnset)
}

// Fmap applies f to every value of p.
func Fmap[T, U any](p Pattern[T], f func(T) U) Pattern[U] {
	return New(func(st State) []Hap[U] {
		haps := p.Query(st)
		ret := make([]Hap[U], len(haps))
		for i, h := range haps {
			ret[i] = Hap[U]{Whole: h.Whole, Part: h.Part, Value: f(h.Value)}
		}
		return ret
	})
}
