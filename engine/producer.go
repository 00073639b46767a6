package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/looptide/looptide/vm"
	"github.com/sirupsen/logrus"
	"github.com/viterin/vek/vek32"
)

// Producer renders the live graph ahead of real time, one block at a time,
// into the queue.
type Producer struct {
	coord *Coordinator
	queue *Queue
	stats *Stats
	log   *logrus.Entry
	block []float32
	abs   []float32
	gain  float32
	idle  time.Duration
}

func NewProducer(coord *Coordinator, queue *Queue, blockSize int, gain float32, idle time.Duration, log *logrus.Entry) *Producer {
	blockSize = min(max(blockSize, 1), queue.Cap())
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Producer{
		coord: coord,
		queue: queue,
		stats: coord.stats,
		log:   log.WithField("component", "producer"),
		block: make([]float32, blockSize),
		abs:   make([]float32, blockSize),
		gain:  gain,
		idle:  idle,
	}
}

// Run keeps the queue full until ctx is done. When there is no room for a
// block it sleeps for the idle duration.
func (p *Producer) Run(ctx context.Context) error {
	p.log.WithFields(logrus.Fields{"block": len(p.block), "queue": p.queue.Cap()}).Info("producer started")
	defer p.log.Info("producer stopped")
	timer := time.NewTimer(p.idle)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if p.Step() {
			continue
		}
		timer.Reset(p.idle)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// Step renders and queues one block if there is room for it and the live
// graph is not locked by a swap, reporting whether it did.
func (p *Producer) Step() bool {
	if p.queue.Free() < len(p.block) {
		return false
	}
	start := time.Now()
	if !p.renderBlock() {
		return false
	}
	if p.gain != 1 {
		vek32.MulNumber_Inplace(p.block, p.gain)
	}
	vek32.Abs_Into(p.abs, p.block)
	peak := vek32.Max(p.abs)
	rms := float32(math.Sqrt(float64(vek32.Dot(p.block, p.block)) / float64(len(p.block))))
	p.queue.Write(p.block)
	p.stats.recordBlock(time.Since(start), peak, rms)
	return true
}

// renderBlock never waits for a swap in progress: if the live graph is
// locked it gives up and the caller retries after its idle sleep.
func (p *Producer) renderBlock() bool {
	for {
		g := p.coord.Current()
		if !g.TryLock() {
			return false
		}
		if p.coord.Current() != g {
			// superseded before the lock was taken
			g.Unlock()
			continue
		}
		err := render(g, p.block)
		g.Unlock()
		if err != nil {
			clear(p.block)
			p.stats.renderPanics.Add(1)
			p.log.WithError(err).WithField("graph", g.ID()).Error("render failed, silencing")
			p.coord.Panic()
		}
		return true
	}
}

func render(g *vm.Graph, buffer []float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
	}()
	g.Render(buffer)
	return nil
}
