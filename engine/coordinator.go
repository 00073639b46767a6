package engine

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looptide/looptide"
	"github.com/looptide/looptide/vm"
	"github.com/sirupsen/logrus"
)

type (
	// Coordinator owns the slot holding the live graph. The producer reads
	// the slot for every block; the editing side replaces it with Load,
	// Swap, Hush and Panic.
	Coordinator struct {
		slot       atomic.Pointer[vm.Graph]
		generation atomic.Uint64
		sampleRate int
		graphOpts  []vm.Option
		retry      RetryPolicy
		flush      chan Flush
		stats      *Stats
		log        *logrus.Entry
		mu         sync.Mutex // serializes swaps
	}

	// SwapMode tells Swap whether to move state out of the old graph.
	SwapMode int

	// RetryPolicy bounds how long a swap waits for the producer to release
	// the old graph: Attempts retries after the first try, Delay apart.
	RetryPolicy struct {
		Attempts int
		Delay    time.Duration
	}

	// Flush is sent to the consumer after every publish. Discard asks it to
	// drop the samples already queued.
	Flush struct {
		Generation uint64
		Discard    bool
	}

	// SwapReport describes what a swap did.
	SwapReport struct {
		Generation  uint64
		Graph       uuid.UUID
		Transferred bool
		Tries       int
		Transfer    vm.TransferReport
	}

	tryLocker interface {
		TryLock() bool
	}
)

const (
	// Transfer moves clock, tails and voices into the new graph.
	Transfer SwapMode = iota
	// Replace keeps only the clock position.
	Replace
)

// DefaultRetryPolicy waits at most about two milliseconds.
var DefaultRetryPolicy = RetryPolicy{Attempts: 8, Delay: 250 * time.Microsecond}

// NewCoordinator returns a coordinator whose slot holds a silent graph.
func NewCoordinator(sampleRate int, retry RetryPolicy, stats *Stats, log *logrus.Entry, opts ...vm.Option) *Coordinator {
	if stats == nil {
		stats = &Stats{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Coordinator{
		sampleRate: sampleRate,
		graphOpts:  opts,
		retry:      retry,
		flush:      make(chan Flush, 1),
		stats:      stats,
		log:        log.WithField("component", "coordinator"),
	}
	c.slot.Store(vm.Silent(sampleRate, 1))
	return c
}

// Current returns the live graph. The producer must lock it and check that
// it is still current before rendering.
func (c *Coordinator) Current() *vm.Graph { return c.slot.Load() }

// Generation counts the graphs published so far.
func (c *Coordinator) Generation() uint64 { return c.generation.Load() }

func (c *Coordinator) SampleRate() int { return c.sampleRate }

// Flushes delivers a notification after every publish. Only the latest
// notification is kept if the consumer falls behind.
func (c *Coordinator) Flushes() <-chan Flush { return c.flush }

// Load compiles desc and swaps it in with state transfer. On a compile error
// the live graph is left untouched.
func (c *Coordinator) Load(desc looptide.Graph) (SwapReport, error) {
	g, err := vm.Compile(desc, c.sampleRate, c.graphOpts...)
	if err != nil {
		c.stats.compileErrors.Add(1)
		c.log.WithError(err).Warn("graph rejected")
		return SwapReport{}, err
	}
	for _, w := range g.Warnings() {
		c.log.WithField("graph", g.ID()).Warn(w.String())
	}
	c.log.WithFields(logrus.Fields{"graph": g.ID(), "nodes": g.NodeCount(), "cps": g.CPS().String()}).Info("graph compiled")
	return c.Swap(g, Transfer), nil
}

// LoadYAML reads a graph description from r and loads it.
func (c *Coordinator) LoadYAML(r io.Reader) (SwapReport, error) {
	desc, err := looptide.ReadGraph(r)
	if err != nil {
		c.stats.compileErrors.Add(1)
		return SwapReport{}, fmt.Errorf("could not read graph: %w", err)
	}
	return c.Load(desc)
}

// Swap publishes g, which must not be shared with anybody yet. With
// Transfer, the old graph is locked with bounded retries and stays locked
// until g is published, so the producer cannot advance it after its state
// has been copied. If the lock cannot be taken, g is published without
// transfer, continuing only the clock.
func (c *Coordinator) Swap(g *vm.Graph, mode SwapMode) SwapReport {
	return c.swap(g, mode, false)
}

// Hush swaps in silence now. Like Panic it drops every tail and the queued
// audio, but it waits for the producer so that the clock is taken over
// exactly.
func (c *Coordinator) Hush() SwapReport {
	rep := c.swap(vm.Silent(c.sampleRate, c.Current().CPS().Float64()), Transfer, true)
	c.log.WithField("generation", rep.Generation).Info("hush")
	return rep
}

// Panic swaps in silence without moving any state out of the live graph,
// so no tail or voice survives. It never waits for the producer.
func (c *Coordinator) Panic() SwapReport {
	rep := c.swap(vm.Silent(c.sampleRate, c.Current().CPS().Float64()), Replace, true)
	c.log.WithField("generation", rep.Generation).Warn("panic")
	return rep
}

func (c *Coordinator) swap(g *vm.Graph, mode SwapMode, discard bool) SwapReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.slot.Load()
	rep := SwapReport{Graph: g.ID()}
	if mode == Transfer {
		var ok bool
		if rep.Tries, ok = tryLock(old, c.retry); ok {
			rep.Transfer = g.TransferFrom(old)
			rep.Transferred = true
			rep.Generation = c.publish(g)
			old.Unlock()
		} else {
			c.stats.transferSkips.Add(1)
		}
	}
	if !rep.Transferred {
		g.SetCyclePosition(old.CyclePosition())
		rep.Generation = c.publish(g)
	}
	c.notify(Flush{Generation: rep.Generation, Discard: discard})
	c.log.WithFields(logrus.Fields{
		"generation":  rep.Generation,
		"graph":       rep.Graph,
		"transferred": rep.Transferred,
		"tries":       rep.Tries,
		"nodes":       rep.Transfer.Nodes,
		"voices":      rep.Transfer.Voices,
		"position":    rep.Transfer.Position.String(),
	}).Debug("graph published")
	return rep
}

func (c *Coordinator) publish(g *vm.Graph) uint64 {
	c.slot.Store(g)
	c.stats.swaps.Add(1)
	return c.generation.Add(1)
}

// notify never blocks. A pending notification is replaced, keeping its
// discard request.
func (c *Coordinator) notify(f Flush) {
	if trySend(c.flush, f) {
		return
	}
	select {
	case old := <-c.flush:
		f.Discard = f.Discard || old.Discard
	default:
	}
	trySend(c.flush, f)
}

// tryLock tries to take l at most p.Attempts+1 times, sleeping p.Delay
// between tries. It returns the number of tries made.
func tryLock(l tryLocker, p RetryPolicy) (int, bool) {
	for i := 0; ; i++ {
		if l.TryLock() {
			return i + 1, true
		}
		if i >= p.Attempts {
			return i + 1, false
		}
		time.Sleep(p.Delay)
	}
}

func trySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
