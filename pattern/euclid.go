package pattern

// Bjorklund distributes pulses onsets as evenly as possible over steps slots,
// starting with an onset. Negative pulses invert the result.
func Bjorklund(pulses, steps int) []bool {
	if steps <= 0 {
		return nil
	}
	invert := pulses < 0
	if invert {
		pulses = -pulses
	}
	if pulses > steps {
		pulses = steps
	}
	a := make([][]bool, pulses)
	for i := range a {
		a[i] = []bool{true}
	}
	b := make([][]bool, steps-pulses)
	for i := range b {
		b[i] = []bool{false}
	}
	for len(b) > 1 && len(a) > 1 {
		n := min(len(a), len(b))
		next := make([][]bool, n)
		for i := 0; i < n; i++ {
			next[i] = append(append([]bool{}, a[i]...), b[i]...)
		}
		var rest [][]bool
		if len(a) > n {
			rest = a[n:]
		} else {
			rest = b[n:]
		}
		a, b = next, rest
	}
	ret := make([]bool, 0, steps)
	for _, s := range append(a, b...) {
		ret = append(ret, s...)
	}
	if invert {
		for i := range ret {
			ret[i] = !ret[i]
		}
	}
	return ret
}

// EuclidBool is a boolean sequence with one step per slot, rotated left by
// rotation steps.
func EuclidBool(pulses, steps, rotation int) Pattern[bool] {
	bits := Bjorklund(pulses, steps)
	if len(bits) == 0 {
		return Silence[bool]()
	}
	r := ((rotation % len(bits)) + len(bits)) % len(bits)
	pats := make([]Pattern[bool], len(bits))
	for i := range bits {
		pats[i] = Pure(bits[(i+r)%len(bits)])
	}
	return FastCat(pats...)
}

// Euclid plays p on the onsets of the euclidean rhythm (pulses, steps,
// rotation) and rests elsewhere.
func Euclid[T any](p Pattern[T], pulses, steps, rotation int) Pattern[T] {
	return Struct(p, EuclidBool(pulses, steps, rotation))
}
