package pattern_test

import (
	"fmt"
	"sort"
	"testing"

	"github.com/looptide/looptide/pattern"
	"github.com/stretchr/testify/require"
)

func fr(n, d int64) pattern.Fraction { return pattern.Frac(n, d) }

func span(b, e pattern.Fraction) *pattern.Span {
	s := pattern.NewSpan(b, e)
	return &s
}

// sorted orders haps by part begin so that results of different queries can
// be compared.
func sorted[T any](haps []pattern.Hap[T]) []pattern.Hap[T] {
	sort.SliceStable(haps, func(i, j int) bool {
		if c := haps[i].Part.Begin.Cmp(haps[j].Part.Begin); c != 0 {
			return c < 0
		}
		return fmt.Sprint(haps[i].Value) < fmt.Sprint(haps[j].Value)
	})
	return haps
}

func onsetCount[T any](haps []pattern.Hap[T]) int {
	n := 0
	for _, h := range haps {
		if h.HasOnset() {
			n++
		}
	}
	return n
}

func testPatterns() map[string]pattern.Pattern[string] {
	a, b, c := pattern.Pure("a"), pattern.Pure("b"), pattern.Pure("c")
	return map[string]pattern.Pattern[string]{
		"pure":     a,
		"fastcat":  pattern.FastCat(a, b, c),
		"slowcat":  pattern.SlowCat(a, b, c),
		"nested":   pattern.FastCat(a, pattern.SlowCat(b, c)),
		"fast":     pattern.FastCat(a, b).Fast(fr(3, 2)),
		"slow":     pattern.FastCat(a, b, c).Slow(fr(5, 3)),
		"rev":      pattern.FastCat(a, b, c).Rev(),
		"late":     pattern.FastCat(a, b).Late(fr(1, 3)),
		"degraded": pattern.FastCat(a, b, c, a, b, c, a, b).DegradeBy(0.5),
		"euclid":   pattern.Euclid(a, 3, 8, 1),
		"every":    pattern.FastCat(a, b).Every(3, pattern.Pattern[string].Rev),
		"ply":      pattern.FastCat(a, b).Ply(3),
		"stack":    pattern.Stack(a.Fast(pattern.Int(2)), pattern.FastCat(b, c)),
	}
}

func TestPureQuery(t *testing.T) {
	haps := pattern.Pure("x").QuerySpan(fr(1, 2), fr(3, 2))
	require.Equal(t, []pattern.Hap[string]{
		{Whole: span(pattern.Int(0), pattern.Int(1)), Part: pattern.NewSpan(fr(1, 2), pattern.Int(1)), Value: "x"},
		{Whole: span(pattern.Int(1), pattern.Int(2)), Part: pattern.NewSpan(pattern.Int(1), fr(3, 2)), Value: "x"},
	}, haps)
	require.True(t, haps[0].IsFragment())
	require.False(t, haps[0].HasOnset())
	require.True(t, haps[1].HasOnset())
}

func TestSilence(t *testing.T) {
	require.Empty(t, pattern.Silence[int]().QueryCycle(0))
	var zero pattern.Pattern[int]
	require.Empty(t, zero.QueryCycle(3))
}

func TestDeterminism(t *testing.T) {
	for name, p := range testPatterns() {
		for _, w := range []pattern.Span{
			pattern.NewSpan(pattern.Int(0), pattern.Int(1)),
			pattern.NewSpan(fr(7, 3), fr(29, 4)),
			pattern.NewSpan(pattern.Int(-3), fr(-1, 2)),
		} {
			first := p.Query(pattern.State{Span: w})
			second := p.Query(pattern.State{Span: w})
			require.Equal(t, first, second, "%s over %v", name, w)
		}
	}
}

func TestQueryOrderIndependent(t *testing.T) {
	p := testPatterns()["degraded"]
	c5 := p.QueryCycle(5)
	p.QueryCycle(3)
	p.QueryCycle(100)
	require.Equal(t, c5, p.QueryCycle(5))
}

func TestPartsWithinQueryAndWhole(t *testing.T) {
	for name, p := range testPatterns() {
		w := pattern.NewSpan(fr(1, 7), fr(23, 5))
		for _, h := range p.Query(pattern.State{Span: w}) {
			require.True(t, h.Part.Begin.Gte(w.Begin) && h.Part.End.Lte(w.End), "%s: %v outside %v", name, h, w)
			if h.Whole != nil {
				require.True(t, h.Part.Begin.Gte(h.Whole.Begin) && h.Part.End.Lte(h.Whole.End), "%s: %v part outside whole", name, h)
			}
		}
	}
}

func TestWindowDecomposition(t *testing.T) {
	a, b, c := fr(1, 3), fr(11, 6), fr(17, 4)
	for name, p := range testPatterns() {
		left := p.QuerySpan(a, b)
		right := p.QuerySpan(b, c)
		whole := p.QuerySpan(a, c)
		// an event crossing b is split in two; merge it back.
		merged := map[string]pattern.Fraction{}
		key := func(h pattern.Hap[string]) string { return fmt.Sprint(*h.Whole, h.Value) }
		for _, h := range append(left, right...) {
			merged[key(h)] = merged[key(h)].Add(h.Part.Duration())
		}
		want := map[string]pattern.Fraction{}
		for _, h := range whole {
			want[key(h)] = want[key(h)].Add(h.Part.Duration())
		}
		require.Equal(t, want, merged, name)
		require.Equal(t, onsetCount(whole), onsetCount(left)+onsetCount(right), name)
	}
}

func TestFastCatSlowCatDuality(t *testing.T) {
	p := pattern.Pure("bd")
	for n := 1; n <= 7; n++ {
		copies := make([]pattern.Pattern[string], n)
		for i := range copies {
			copies[i] = p
		}
		fast := pattern.FastCat(copies...).QueryCycle(0)
		slow := pattern.SlowCat(copies...).QuerySpan(pattern.Int(0), pattern.Int(int64(n)))
		require.Len(t, fast, n)
		require.Len(t, slow, len(fast))
	}
}

func TestFastSlowRoundTrip(t *testing.T) {
	for name, p := range testPatterns() {
		for _, n := range []pattern.Fraction{pattern.Int(2), fr(3, 4), fr(7, 5)} {
			w := pattern.NewSpan(pattern.Int(0), pattern.Int(4))
			got := p.Fast(n).Slow(n).Query(pattern.State{Span: w})
			require.Equal(t, sorted(p.Query(pattern.State{Span: w})), sorted(got), "%s with %v", name, n)
		}
	}
}

func TestFastCatSpans(t *testing.T) {
	haps := pattern.FastCat(pattern.Pure(1), pattern.Pure(2), pattern.Pure(3)).QueryCycle(4)
	require.Len(t, haps, 3)
	for i, h := range haps {
		b := pattern.Int(4).Add(fr(int64(i), 3))
		require.Equal(t, span(b, b.Add(fr(1, 3))), h.Whole)
		require.Equal(t, i+1, h.Value)
	}
}

func TestSlowCatRotation(t *testing.T) {
	p := pattern.SlowCat(pattern.Pure("a"), pattern.Pure("b"), pattern.Pure("c"))
	for c, want := range []string{"a", "b", "c", "a", "b"} {
		haps := p.QueryCycle(int64(c))
		require.Len(t, haps, 1)
		require.Equal(t, want, haps[0].Value)
		require.Equal(t, span(pattern.Int(int64(c)), pattern.Int(int64(c+1))), haps[0].Whole)
	}
	require.Equal(t, "c", p.QueryCycle(-1)[0].Value)
}

func TestSlowCatChildTime(t *testing.T) {
	// each child only advances while it plays
	inner := pattern.SlowCat(pattern.Pure("x"), pattern.Pure("y"))
	p := pattern.SlowCat(inner, pattern.Pure("b"))
	var got []string
	for c := int64(0); c < 4; c++ {
		got = append(got, p.QueryCycle(c)[0].Value)
	}
	require.Equal(t, []string{"x", "b", "y", "b"}, got)
}

func TestRev(t *testing.T) {
	haps := pattern.FastCat(pattern.Pure("a"), pattern.Pure("b"), pattern.Pure("c")).Rev().QueryCycle(1)
	haps = sorted(haps)
	require.Equal(t, []string{"c", "b", "a"}, []string{haps[0].Value, haps[1].Value, haps[2].Value})
	require.Equal(t, span(pattern.Int(1), fr(4, 3)), haps[0].Whole)
}

func TestEarlyLate(t *testing.T) {
	haps := pattern.Pure("a").Late(fr(1, 4)).QueryCycle(0)
	require.Len(t, haps, 2)
	haps = sorted(haps)
	require.Equal(t, span(fr(-3, 4), fr(1, 4)), haps[0].Whole)
	require.Equal(t, span(fr(1, 4), fr(5, 4)), haps[1].Whole)
	back := pattern.Pure("a").Late(fr(1, 4)).Early(fr(1, 4)).QueryCycle(0)
	require.Equal(t, pattern.Pure("a").QueryCycle(0), back)
}

func TestEuclidIdentity(t *testing.T) {
	for n := 1; n <= 16; n++ {
		for k := 0; k <= n; k++ {
			bools := pattern.EuclidBool(k, n, 0).QueryCycle(2)
			require.Len(t, bools, n)
			on := 0
			for _, h := range bools {
				if h.Value {
					on++
				}
			}
			require.Equal(t, k, on, "euclid(%d,%d)", k, n)
			require.Len(t, pattern.Euclid(pattern.Pure("x"), k, n, 0).QueryCycle(2), k, "euclid(%d,%d)", k, n)
		}
	}
}

func TestBjorklund(t *testing.T) {
	str := func(bits []bool) string {
		s := ""
		for _, b := range bits {
			if b {
				s += "x"
			} else {
				s += "."
			}
		}
		return s
	}
	require.Equal(t, "x..x..x.", str(pattern.Bjorklund(3, 8)))
	require.Equal(t, "x.x.x", str(pattern.Bjorklund(3, 5)))
	require.Equal(t, "x.xx.xx.", str(pattern.Bjorklund(5, 8)))
	require.Equal(t, ".xx.xx.x", str(pattern.Bjorklund(-3, 8)))
	require.Equal(t, "", str(pattern.Bjorklund(3, 0)))
}

func TestEuclidRotation(t *testing.T) {
	haps := pattern.EuclidBool(3, 8, 2).QueryCycle(0)
	var got []bool
	for _, h := range haps {
		got = append(got, h.Value)
	}
	require.Equal(t, []bool{false, true, false, false, true, false, true, false}, got)
}

func TestDegradeBy(t *testing.T) {
	p := pattern.Pure("x").Fast(pattern.Int(16))
	total := 0
	for c := int64(0); c < 64; c++ {
		total += len(p.DegradeBy(0.5).QueryCycle(c))
	}
	require.InDelta(t, 512, total, 80)
	require.Len(t, p.DegradeBy(0).QueryCycle(0), 16)
	require.Empty(t, p.DegradeBy(1).QueryCycle(0))
}

func TestDegradeSeeds(t *testing.T) {
	p := pattern.Pure("x").Fast(pattern.Int(8))
	// same seed and onsets: same decisions, regardless of the surrounding pattern
	for c := int64(0); c < 8; c++ {
		require.Equal(t, p.DegradeByWith(3, 0.5).QueryCycle(c), p.DegradeByWith(3, 0.5).QueryCycle(c))
	}
	// different seeds decorrelate
	same := 0
	for c := int64(0); c < 32; c++ {
		if len(p.DegradeByWith(1, 0.5).QueryCycle(c)) == len(p.DegradeByWith(2, 0.5).QueryCycle(c)) {
			same++
		}
	}
	require.Less(t, same, 32)
}

func TestSometimesBy(t *testing.T) {
	p := pattern.Pure(1).Fast(pattern.Int(8))
	haps := p.SometimesBy(5, 0.5, func(q pattern.Pattern[int]) pattern.Pattern[int] {
		return pattern.Fmap(q, func(v int) int { return v * 10 })
	}).QueryCycle(0)
	require.Len(t, haps, 8)
}

func TestEvery(t *testing.T) {
	p := pattern.FastCat(pattern.Pure("a"), pattern.Pure("b")).Every(2, pattern.Pattern[string].Rev)
	require.Equal(t, "b", sorted(p.QueryCycle(0))[0].Value)
	require.Equal(t, "a", sorted(p.QueryCycle(1))[0].Value)
	require.Equal(t, "b", sorted(p.QueryCycle(2))[0].Value)
}

func TestPlyAndSegment(t *testing.T) {
	require.Len(t, pattern.FastCat(pattern.Pure("a"), pattern.Pure("b")).Ply(3).QueryCycle(0), 6)
	seg := pattern.Saw().Segment(4).QueryCycle(0)
	require.Len(t, seg, 4)
	for i, h := range seg {
		require.InDelta(t, float64(i)/4, h.Value, 1e-9)
		require.NotNil(t, h.Whole)
	}
}

func TestSignal(t *testing.T) {
	haps := pattern.Sine().QuerySpan(fr(1, 4), fr(1, 2))
	require.Len(t, haps, 1)
	require.Nil(t, haps[0].Whole)
	require.InDelta(t, 1.0, haps[0].Value, 1e-9)
}

func TestStruct(t *testing.T) {
	values := pattern.FastCat(pattern.Pure(1), pattern.Pure(2))
	structure := pattern.FastCat(pattern.Pure(true), pattern.Pure(false), pattern.Pure(true), pattern.Pure(true))
	haps := sorted(pattern.Struct(values, structure).QueryCycle(0))
	require.Len(t, haps, 3)
	require.Equal(t, []int{1, 2, 2}, []int{haps[0].Value, haps[1].Value, haps[2].Value})
	require.Equal(t, span(fr(3, 4), pattern.Int(1)), haps[2].Whole)
}
