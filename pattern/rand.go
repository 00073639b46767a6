package pattern

// Random decisions are a pure function of (seed, cycle, position in cycle).
// The cycle number keeps replays of a cycle identical; the position keeps the
// events within one cycle independent of each other.

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// cycleRand returns a number in [0, 1) for the time t.
func cycleRand(seed uint64, t Fraction) float64 {
	cycle := t.Floor()
	pos := t.CyclePos()
	h := splitmix64(seed)
	h = splitmix64(h ^ uint64(cycle))
	h = splitmix64(h ^ uint64(pos.Num()))
	h = splitmix64(h ^ uint64(pos.Den()))
	return float64(h>>11) / (1 << 53)
}

// DegradeBy drops each event with probability prob, see DegradeByWith.
func (p Pattern[T]) DegradeBy(prob float64) Pattern[T] {
	return p.DegradeByWith(0, prob)
}

// DegradeByWith drops each event with probability prob. The decision for an
// event depends only on seed and the onset of its whole, so every query of
// the same cycle drops the same events. Patterns degraded with equal seeds
// make equal decisions for coinciding events.
func (p Pattern[T]) DegradeByWith(seed uint64, prob float64) Pattern[T] {
	return p.FilterHaps(func(h Hap[T]) bool {
		return cycleRand(seed, h.WholeOrPart().Begin) >= prob
	})
}

// UndegradeByWith keeps exactly the events DegradeByWith drops.
func (p Pattern[T]) UndegradeByWith(seed uint64, prob float64) Pattern[T] {
	return p.FilterHaps(func(h Hap[T]) bool {
		return cycleRand(seed, h.WholeOrPart().Begin) < prob
	})
}

// SometimesBy applies f to a random subset of events chosen with probability
// prob, leaving the rest untouched.
func (p Pattern[T]) SometimesBy(seed uint64, prob float64, f func(Pattern[T]) Pattern[T]) Pattern[T] {
	return Stack(p.DegradeByWith(seed, prob), f(p.UndegradeByWith(seed, prob)))
}
