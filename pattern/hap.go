package pattern

import "fmt"

// Hap is a value active over a span of time. Part is the fragment that was
// delivered by a query and Whole, when present, is the full extent of the
// event. Continuous values have no Whole.
type Hap[T any] struct {
	Whole *Span
	Part  Span
	Value T
}

// HasOnset reports whether the fragment contains the start of its event.
func (h Hap[T]) HasOnset() bool {
	return h.Whole != nil && h.Whole.Begin == h.Part.Begin
}

// IsFragment reports whether the part is strictly smaller than the whole.
func (h Hap[T]) IsFragment() bool {
	return h.Whole != nil && *h.Whole != h.Part
}

func (h Hap[T]) WholeOrPart() Span {
	if h.Whole != nil {
		return *h.Whole
	}
	return h.Part
}

// WithSpan returns a copy with f applied to both part and whole.
func (h Hap[T]) WithSpan(f func(Span) Span) Hap[T] {
	ret := Hap[T]{Part: f(h.Part), Value: h.Value}
	if h.Whole != nil {
		w := f(*h.Whole)
		ret.Whole = &w
	}
	return ret
}

func (h Hap[T]) withValue(v T) Hap[T] {
	return Hap[T]{Whole: h.Whole, Part: h.Part, Value: v}
}

func (h Hap[T]) String() string {
	if h.Whole == nil {
		return fmt.Sprintf("~%v: %v", h.Part, h.Value)
	}
	return fmt.Sprintf("%v %v: %v", *h.Whole, h.Part, h.Value)
}
