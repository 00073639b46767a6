// Package engine runs a live graph in real time: a coordinator holding the
// graph that is swapped on every edit, a producer rendering it ahead of time
// into a bounded queue, and a player draining the queue from the hardware
// callback.
package engine

import (
	"context"

	"github.com/looptide/looptide/config"
	"github.com/looptide/looptide/vm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Engine wires the parts together from a configuration.
type Engine struct {
	Coordinator *Coordinator
	Queue       *Queue
	Producer    *Producer
	Player      *Player
	Stats       *Stats
}

func New(cfg config.Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := logrus.NewEntry(log)
	stats := &Stats{}
	retry := RetryPolicy{Attempts: cfg.TransferRetries, Delay: cfg.TransferRetryDelay}
	coord := NewCoordinator(cfg.SampleRate, retry, stats, entry, vm.WithMaxVoices(cfg.MaxVoices))
	queue := NewQueue(cfg.QueueSize)
	return &Engine{
		Coordinator: coord,
		Queue:       queue,
		Producer:    NewProducer(coord, queue, cfg.BlockSize, float32(cfg.MasterGain), cfg.ProducerIdle, entry),
		Player:      NewPlayer(coord, queue),
		Stats:       stats,
	}
}

// Run produces audio until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	return e.Producer.Run(ctx)
}

// Register exposes the engine statistics and the queue fill level to reg.
func (e *Engine) Register(reg prometheus.Registerer) error {
	return e.Stats.Register(reg, e.Queue)
}

// Snapshot returns the statistics together with the queue fill level.
func (e *Engine) Snapshot() Snapshot {
	s := e.Stats.Snapshot()
	s.QueueLen = e.Queue.Len()
	s.QueueCap = e.Queue.Cap()
	return s
}
