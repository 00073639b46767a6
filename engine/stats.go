package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds the diagnostic counters of a running engine. All fields are
// updated with atomics so the hardware callback can count underruns without
// locking. The values are advisory and never affect what is rendered.
type Stats struct {
	underruns       atomic.Uint64
	underrunSamples atomic.Uint64
	discarded       atomic.Uint64
	blocks          atomic.Uint64
	blockTimeLast   atomic.Int64
	blockTimeMax    atomic.Int64
	swaps           atomic.Uint64
	transferSkips   atomic.Uint64
	compileErrors   atomic.Uint64
	renderPanics    atomic.Uint64
	peak            atomic.Uint32
	rms             atomic.Uint32
}

// Snapshot is a point in time copy of Stats.
type Snapshot struct {
	Underruns        uint64
	UnderrunSamples  uint64
	DiscardedSamples uint64
	Blocks           uint64
	BlockTimeLast    time.Duration
	BlockTimeMax     time.Duration
	Swaps            uint64
	TransferSkips    uint64
	CompileErrors    uint64
	RenderPanics     uint64
	Peak             float32
	RMS              float32
	QueueLen         int
	QueueCap         int
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Underruns:        s.underruns.Load(),
		UnderrunSamples:  s.underrunSamples.Load(),
		DiscardedSamples: s.discarded.Load(),
		Blocks:           s.blocks.Load(),
		BlockTimeLast:    time.Duration(s.blockTimeLast.Load()),
		BlockTimeMax:     time.Duration(s.blockTimeMax.Load()),
		Swaps:            s.swaps.Load(),
		TransferSkips:    s.transferSkips.Load(),
		CompileErrors:    s.compileErrors.Load(),
		RenderPanics:     s.renderPanics.Load(),
		Peak:             math.Float32frombits(s.peak.Load()),
		RMS:              math.Float32frombits(s.rms.Load()),
	}
}

func (s *Stats) recordUnderrun(samples int) {
	s.underruns.Add(1)
	s.underrunSamples.Add(uint64(samples))
}

func (s *Stats) recordBlock(elapsed time.Duration, peak, rms float32) {
	s.blocks.Add(1)
	s.blockTimeLast.Store(int64(elapsed))
	for {
		m := s.blockTimeMax.Load()
		if int64(elapsed) <= m || s.blockTimeMax.CompareAndSwap(m, int64(elapsed)) {
			break
		}
	}
	s.peak.Store(math.Float32bits(peak))
	s.rms.Store(math.Float32bits(rms))
}

// Collectors returns Prometheus collectors reading the counters at scrape
// time, plus a gauge for the fill level of queue if it is not nil.
func (s *Stats) Collectors(queue *Queue) []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "looptide",
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "looptide",
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		}, f)
	}
	ret := []prometheus.Collector{
		counter("underruns_total", "Hardware callbacks that found too few queued samples", &s.underruns),
		counter("underrun_samples_total", "Samples replaced by silence on underrun", &s.underrunSamples),
		counter("discarded_samples_total", "Queued samples dropped by hush or panic", &s.discarded),
		counter("blocks_total", "Blocks rendered by the producer", &s.blocks),
		counter("swaps_total", "Graphs published", &s.swaps),
		counter("transfer_skips_total", "Swaps that gave up on moving state from the old graph", &s.transferSkips),
		counter("compile_errors_total", "Graph descriptions that failed to compile", &s.compileErrors),
		counter("render_panics_total", "Blocks whose rendering panicked", &s.renderPanics),
		gauge("block_seconds", "Time spent rendering the last block", func() float64 {
			return time.Duration(s.blockTimeLast.Load()).Seconds()
		}),
		gauge("block_seconds_max", "Longest time spent rendering a block", func() float64 {
			return time.Duration(s.blockTimeMax.Load()).Seconds()
		}),
		gauge("peak", "Absolute peak of the last block", func() float64 {
			return float64(math.Float32frombits(s.peak.Load()))
		}),
		gauge("rms", "RMS level of the last block", func() float64 {
			return float64(math.Float32frombits(s.rms.Load()))
		}),
	}
	if queue != nil {
		ret = append(ret, gauge("queue_samples", "Samples waiting in the output queue", func() float64 {
			return float64(queue.Len())
		}))
	}
	return ret
}

// Register registers the collectors of s with reg.
func (s *Stats) Register(reg prometheus.Registerer, queue *Queue) error {
	for _, c := range s.Collectors(queue) {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
