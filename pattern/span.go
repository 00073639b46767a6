package pattern

import "fmt"

// Span is a half-open interval [Begin, End) of cycle time. A span with
// Begin == End is a point and is used for zero-width queries.
type Span struct {
	Begin, End Fraction
}

func NewSpan(begin, end Fraction) Span {
	return Span{Begin: begin, End: end}
}

func (s Span) Duration() Fraction { return s.End.Sub(s.Begin) }

func (s Span) IsPoint() bool { return s.Begin == s.End }

// Contains reports whether t lies in [Begin, End).
func (s Span) Contains(t Fraction) bool {
	return s.Begin.Lte(t) && t.Lt(s.End)
}

// Intersect returns the overlap of two spans. A single shared point counts as
// an overlap only if it is not the exclusive end of a non-empty span.
func (s Span) Intersect(o Span) (Span, bool) {
	b, e := Max(s.Begin, o.Begin), Min(s.End, o.End)
	if b.Gt(e) {
		return Span{}, false
	}
	if b == e {
		if (b == s.End && !s.IsPoint()) || (b == o.End && !o.IsPoint()) {
			return Span{}, false
		}
	}
	return Span{Begin: b, End: e}, true
}

func (s Span) WithTime(f func(Fraction) Fraction) Span {
	return Span{Begin: f(s.Begin), End: f(s.End)}
}

// CycleFloor is the first cycle start at or before Begin.
func (s Span) CycleFloor() Fraction { return s.Begin.Sam() }

// CycleCeil is the first cycle start at or after End.
func (s Span) CycleCeil() Fraction { return Int(s.End.Ceil()) }

// SpanCycles splits the span at cycle boundaries. A point span is returned
// as is; an inverted span yields nothing.
func (s Span) SpanCycles() []Span {
	if s.IsPoint() {
		return []Span{s}
	}
	var ret []Span
	for b := s.Begin; b.Lt(s.End); {
		e := Min(b.NextSam(), s.End)
		ret = append(ret, Span{Begin: b, End: e})
		b = e
	}
	return ret
}

func (s Span) String() string {
	return fmt.Sprintf("[%v, %v)", s.Begin, s.End)
}
