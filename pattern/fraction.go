package pattern

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Fraction is an exact rational number used for all pattern time. Values are
// always kept reduced with a positive denominator, so two equal fractions are
// also equal under ==. The zero value is the number 0.
//
// Arithmetic is exact as long as the result fits in int64. A sum or product
// that would overflow is rounded to the nearest fraction with a denominator
// of at most approxDen instead of wrapping around. Cmp is always exact.
type Fraction struct {
	num int64
	den int64 // 0 encodes the canonical zero, see d()
}

// Frac returns num/den reduced. It panics if den is zero, as that is always a
// programming error.
func Frac(num, den int64) Fraction {
	if den == 0 {
		panic("pattern: zero denominator")
	}
	return reduce(num, den)
}

// Int returns the fraction n/1.
func Int(n int64) Fraction {
	return reduce(n, 1)
}

func reduce(num, den int64) Fraction {
	if num == 0 {
		return Fraction{}
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	return Fraction{num: num / g, den: den / g}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

// approxDen bounds the denominator of results that could not be represented
// exactly.
const approxDen = 1 << 20

func uabs(a int64) uint64 {
	if a < 0 {
		return uint64(-a)
	}
	return uint64(a)
}

// mul64 multiplies a and b, reporting false on overflow.
func mul64(a, b int64) (int64, bool) {
	hi, lo := bits.Mul64(uabs(a), uabs(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	if (a < 0) != (b < 0) {
		return -int64(lo), true
	}
	return int64(lo), true
}

// add64 adds a and b, reporting false on overflow.
func add64(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

func approx(x float64) Fraction {
	const limit = 1 << 53
	return FromFloat(math.Max(math.Min(x, limit), -limit), approxDen)
}

func (f Fraction) d() int64 {
	if f.den == 0 {
		return 1
	}
	return f.den
}

// Num returns the reduced numerator.
func (f Fraction) Num() int64 { return f.num }

// Den returns the reduced denominator, which is always positive.
func (f Fraction) Den() int64 { return f.d() }

func (f Fraction) Add(o Fraction) Fraction {
	da, db := f.d(), o.d()
	g := gcd(da, db)
	l, ok1 := mul64(f.num, db/g)
	r, ok2 := mul64(o.num, da/g)
	den, ok3 := mul64(da/g, db)
	num, ok4 := add64(l, r)
	if !(ok1 && ok2 && ok3 && ok4) {
		return approx(f.Float64() + o.Float64())
	}
	return reduce(num, den)
}

func (f Fraction) Sub(o Fraction) Fraction {
	return f.Add(o.Neg())
}

func (f Fraction) Neg() Fraction {
	return Fraction{num: -f.num, den: f.den}
}

func (f Fraction) Mul(o Fraction) Fraction {
	if f.num == 0 || o.num == 0 {
		return Fraction{}
	}
	da, db := f.d(), o.d()
	g1 := gcd(abs(f.num), db)
	g2 := gcd(abs(o.num), da)
	num, ok1 := mul64(f.num/g1, o.num/g2)
	den, ok2 := mul64(da/g2, db/g1)
	if !(ok1 && ok2) {
		return approx(f.Float64() * o.Float64())
	}
	return reduce(num, den)
}

// Div panics when o is zero.
func (f Fraction) Div(o Fraction) Fraction {
	if o.num == 0 {
		panic("pattern: division by zero")
	}
	return f.Mul(Fraction{num: o.d(), den: o.num}.norm())
}

func (f Fraction) norm() Fraction {
	return reduce(f.num, f.den)
}

// Cmp returns -1, 0 or +1 depending on whether f is less than, equal to or
// greater than o.
func (f Fraction) Cmp(o Fraction) int {
	sf, so := sign(f.num), sign(o.num)
	if sf != so || sf == 0 {
		return cmpInt(sf, so)
	}
	// same sign: compare |f.num|*o.den with |o.num|*f.den in 128 bits
	lh, ll := bits.Mul64(uabs(f.num), uint64(o.d()))
	rh, rl := bits.Mul64(uabs(o.num), uint64(f.d()))
	c := cmpInt(lh, rh)
	if c == 0 {
		c = cmpInt(ll, rl)
	}
	return c * sf
}

func sign(a int64) int {
	switch {
	case a < 0:
		return -1
	case a > 0:
		return 1
	}
	return 0
}

func cmpInt[T int | uint64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (f Fraction) Eq(o Fraction) bool  { return f == o }
func (f Fraction) Lt(o Fraction) bool  { return f.Cmp(o) < 0 }
func (f Fraction) Lte(o Fraction) bool { return f.Cmp(o) <= 0 }
func (f Fraction) Gt(o Fraction) bool  { return f.Cmp(o) > 0 }
func (f Fraction) Gte(o Fraction) bool { return f.Cmp(o) >= 0 }
func (f Fraction) IsZero() bool        { return f.num == 0 }

func Min(a, b Fraction) Fraction {
	if a.Lt(b) {
		return a
	}
	return b
}

func Max(a, b Fraction) Fraction {
	if a.Gt(b) {
		return a
	}
	return b
}

// Floor rounds toward negative infinity.
func (f Fraction) Floor() int64 {
	d := f.d()
	q := f.num / d
	if f.num%d != 0 && f.num < 0 {
		q--
	}
	return q
}

// Ceil rounds toward positive infinity.
func (f Fraction) Ceil() int64 {
	return -f.Neg().Floor()
}

// Sam returns the start of the cycle containing f.
func (f Fraction) Sam() Fraction { return Int(f.Floor()) }

// NextSam returns the start of the cycle after the one containing f.
func (f Fraction) NextSam() Fraction { return Int(f.Floor() + 1) }

// CyclePos returns the position of f within its cycle, in [0, 1).
func (f Fraction) CyclePos() Fraction { return f.Sub(f.Sam()) }

func (f Fraction) Float64() float64 {
	return float64(f.num) / float64(f.d())
}

func (f Fraction) String() string {
	if f.d() == 1 {
		return strconv.FormatInt(f.num, 10)
	}
	return fmt.Sprintf("%d/%d", f.num, f.d())
}

// Limits of ParseFraction. They keep parsed values small enough that pattern
// arithmetic on them stays exact.
const (
	maxDecimals = 6
	maxParsed   = 1_000_000_000
)

// ParseFraction parses integers ("3"), ratios ("3/4") and decimals ("0.25")
// exactly. Decimals may have at most 6 places, and numerators and
// denominators may not exceed 10^9 in magnitude.
func ParseFraction(s string) (Fraction, error) {
	s = strings.TrimSpace(s)
	if n, d, ok := strings.Cut(s, "/"); ok {
		num, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return Fraction{}, fmt.Errorf("invalid numerator in %q: %w", s, err)
		}
		den, err := strconv.ParseInt(strings.TrimSpace(d), 10, 64)
		if err != nil {
			return Fraction{}, fmt.Errorf("invalid denominator in %q: %w", s, err)
		}
		if den == 0 {
			return Fraction{}, fmt.Errorf("zero denominator in %q", s)
		}
		if abs(num) > maxParsed || abs(den) > maxParsed {
			return Fraction{}, fmt.Errorf("%q is out of range", s)
		}
		return Frac(num, den), nil
	}
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	whole, frac, hasDot := strings.Cut(digits, ".")
	if whole == "" && (!hasDot || frac == "") {
		return Fraction{}, fmt.Errorf("invalid number %q", s)
	}
	if len(frac) > maxDecimals {
		return Fraction{}, fmt.Errorf("too many decimals in %q, at most %d are allowed", s, maxDecimals)
	}
	den := int64(1)
	for range frac {
		den *= 10
	}
	num, err := strconv.ParseInt(whole+frac, 10, 64)
	if whole+frac == "" || err != nil {
		return Fraction{}, fmt.Errorf("invalid number %q", s)
	}
	if num/den > maxParsed {
		return Fraction{}, fmt.Errorf("%q is out of range", s)
	}
	if neg {
		num = -num
	}
	return Frac(num, den), nil
}

// FromFloat returns the closest fraction to x whose denominator does not
// exceed maxDen, using continued fractions.
func FromFloat(x float64, maxDen int64) Fraction {
	if math.IsNaN(x) || math.IsInf(x, 0) || maxDen < 1 {
		return Fraction{}
	}
	sign := int64(1)
	if x < 0 {
		sign, x = -1, -x
	}
	h0, h1 := int64(0), int64(1)
	k0, k1 := int64(1), int64(0)
	f := x
	for i := 0; i < 64; i++ {
		a := math.Floor(f)
		if a > math.MaxInt32 {
			break
		}
		ai := int64(a)
		h2, k2 := ai*h1+h0, ai*k1+k0
		if k2 > maxDen {
			break
		}
		h0, h1, k0, k1 = h1, h2, k1, k2
		rem := f - a
		if rem < 1e-12 {
			break
		}
		f = 1 / rem
	}
	if k1 == 0 {
		return Int(sign * int64(math.Round(x)))
	}
	return reduce(sign*h1, k1)
}
