package engine

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/looptide/looptide/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const echoGraph = `
cps: 1
output: {node: 1}
nodes:
  - type: pattern
    options: {pattern: "x ~ ~ ~", mode: trigger}
  - name: echo
    type: delay
    params: {time: 0.05, feedback: 0.8, mix: 0.5}
    inputs: [{node: 0}]
`

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testEngine(t *testing.T, modify func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.SampleRate = 1000
	cfg.BlockSize = 16
	cfg.QueueSize = 64
	cfg.TransferRetries = 2
	cfg.TransferRetryDelay = time.Microsecond
	if modify != nil {
		modify(&cfg)
	}
	return New(cfg, quietLogger())
}

func load(t *testing.T, c *Coordinator, src string) SwapReport {
	t.Helper()
	rep, err := c.LoadYAML(strings.NewReader(src))
	require.NoError(t, err)
	return rep
}

func TestTryLock(t *testing.T) {
	var mu sync.Mutex
	tries, ok := tryLock(&mu, RetryPolicy{Attempts: 3})
	require.True(t, ok)
	require.Equal(t, 1, tries)
	tries, ok = tryLock(&mu, RetryPolicy{Attempts: 3, Delay: time.Microsecond})
	require.False(t, ok)
	require.Equal(t, 4, tries)
	mu.Unlock()
}

func TestLoadTransfersState(t *testing.T) {
	e := testEngine(t, nil)
	c := e.Coordinator
	rep := load(t, c, echoGraph)
	require.Equal(t, uint64(1), rep.Generation)
	require.True(t, rep.Transferred)
	for e.Producer.Step() {
	}
	old := c.Current()
	require.Equal(t, int64(64), old.Samples())
	require.Greater(t, old.TailEnergy(), 0.0)

	rep = load(t, c, echoGraph)
	require.True(t, rep.Transferred)
	require.Equal(t, 1, rep.Tries)
	require.Equal(t, 2, rep.Transfer.Nodes)
	next := c.Current()
	require.NotSame(t, old, next)
	require.Equal(t, old.CyclePosition(), next.CyclePosition())
	require.Greater(t, next.TailEnergy(), 0.0)
	require.Equal(t, uint64(2), c.Generation())
}

func TestSwapWithoutTransferWhileLocked(t *testing.T) {
	e := testEngine(t, nil)
	c := e.Coordinator
	load(t, c, echoGraph)
	for e.Producer.Step() {
	}
	old := c.Current()
	// the producer is in the middle of rendering old
	old.Lock()
	rep := load(t, c, echoGraph)
	old.Unlock()
	require.False(t, rep.Transferred)
	require.Equal(t, 3, rep.Tries)
	require.Equal(t, uint64(1), e.Stats.Snapshot().TransferSkips)
	require.Equal(t, old.CyclePosition(), c.Current().CyclePosition(), "clock continues anyway")
	require.Equal(t, 0.0, c.Current().TailEnergy())
}

func TestCompileFailureKeepsGraph(t *testing.T) {
	e := testEngine(t, nil)
	c := e.Coordinator
	load(t, c, echoGraph)
	live := c.Current()
	_, err := c.LoadYAML(strings.NewReader("cps: 1\noutput: {node: 7}\n"))
	require.Error(t, err)
	_, err = c.LoadYAML(strings.NewReader("cps: [\n"))
	require.Error(t, err)
	require.Same(t, live, c.Current())
	require.Equal(t, uint64(1), c.Generation())
	require.Equal(t, uint64(2), e.Stats.Snapshot().CompileErrors)
}

func TestHushAndPanic(t *testing.T) {
	e := testEngine(t, nil)
	c := e.Coordinator
	load(t, c, "cps: 0.5\noutput: 0.5\n")
	for e.Producer.Step() {
	}
	pos := c.Current().CyclePosition()
	rep := c.Hush()
	require.True(t, rep.Transferred)
	require.Zero(t, rep.Transfer.Nodes, "silence keeps no tails")
	require.Equal(t, 0, c.Current().NodeCount())
	require.Zero(t, c.Current().TailEnergy())
	require.Equal(t, pos, c.Current().CyclePosition())
	require.Equal(t, 0.5, c.Current().CPS().Float64())

	buf := make([]float32, 8)
	e.Player.ReadAudio(buf)
	require.Equal(t, make([]float32, 8), buf, "queued audio dropped")
	require.Equal(t, uint64(64), e.Stats.Snapshot().DiscardedSamples)

	// panic never waits for the producer
	c.Current().Lock()
	done := make(chan SwapReport)
	go func() { done <- c.Panic() }()
	select {
	case rep = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("panic blocked on the graph lock")
	}
	require.False(t, rep.Transferred)
	require.Equal(t, 0, rep.Tries)
}

func TestFlushNotificationsCoalesce(t *testing.T) {
	e := testEngine(t, nil)
	c := e.Coordinator
	c.Hush()
	load(t, c, echoGraph)
	load(t, c, echoGraph)
	f := <-c.Flushes()
	require.Equal(t, uint64(3), f.Generation)
	require.True(t, f.Discard, "a pending discard survives later swaps")
	select {
	case f = <-c.Flushes():
		t.Fatalf("unexpected second notification %+v", f)
	default:
	}
}

func TestPlayerUnderrun(t *testing.T) {
	e := testEngine(t, nil)
	load(t, e.Coordinator, "cps: 1\noutput: 0.5\n")
	for e.Producer.Step() {
	}
	require.Equal(t, 64, e.Queue.Len())
	buf := make([]float32, 100)
	e.Player.ReadAudio(buf)
	for i := 0; i < 64; i++ {
		require.Equal(t, float32(0.5), buf[i])
	}
	require.Equal(t, make([]float32, 36), buf[64:])
	s := e.Snapshot()
	require.Equal(t, uint64(1), s.Underruns)
	require.Equal(t, uint64(36), s.UnderrunSamples)
	require.Equal(t, uint64(4), s.Blocks)
	require.Equal(t, 0, s.QueueLen)
	require.Equal(t, 64, s.QueueCap)
}

func TestProducerGainAndLevels(t *testing.T) {
	e := testEngine(t, func(c *config.Config) { c.MasterGain = 0.5 })
	load(t, e.Coordinator, "cps: 1\noutput: -0.5\n")
	require.True(t, e.Producer.Step())
	buf := make([]float32, 16)
	e.Player.ReadAudio(buf)
	require.Equal(t, float32(-0.25), buf[15])
	s := e.Snapshot()
	require.Equal(t, float32(0.25), s.Peak)
	require.InDelta(t, 0.25, s.RMS, 1e-6)
	require.GreaterOrEqual(t, s.BlockTimeMax, s.BlockTimeLast)
}

func TestProducerSkipsLockedGraph(t *testing.T) {
	e := testEngine(t, nil)
	load(t, e.Coordinator, echoGraph)
	g := e.Coordinator.Current()
	g.Lock()
	done := make(chan bool)
	go func() { done <- e.Producer.Step() }()
	select {
	case ok := <-done:
		require.False(t, ok, "no block while a swap holds the graph")
	case <-time.After(time.Second):
		g.Unlock()
		t.Fatal("producer blocked on the graph lock")
	}
	require.Equal(t, 0, e.Queue.Len())
	g.Unlock()
	require.True(t, e.Producer.Step())
	require.Equal(t, 16, e.Queue.Len())
}

func TestRenderRecoversPanic(t *testing.T) {
	err := render(nil, make([]float32, 4))
	require.ErrorContains(t, err, "render panicked")
}

func TestProducerRun(t *testing.T) {
	e := testEngine(t, func(c *config.Config) { c.ProducerIdle = time.Millisecond })
	load(t, e.Coordinator, echoGraph)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- e.Run(ctx) }()
	require.Eventually(t, func() bool { return e.Queue.Free() < 16 }, 5*time.Second, time.Millisecond)
	// swaps race with the producer; each one either transfers or skips
	for i := 0; i < 20; i++ {
		_, err := e.Coordinator.LoadYAML(strings.NewReader(echoGraph))
		require.NoError(t, err)
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not stop")
	}
	require.Equal(t, uint64(21), e.Coordinator.Generation())
	require.Equal(t, uint64(21), e.Stats.Snapshot().Swaps)
}

func TestRegister(t *testing.T) {
	e := testEngine(t, nil)
	reg := prometheus.NewRegistry()
	require.NoError(t, e.Register(reg))
	require.Error(t, e.Register(reg), "registering twice")
	load(t, e.Coordinator, echoGraph)
	e.Producer.Step()
	e.Player.ReadAudio(make([]float32, 32))
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		m := f.GetMetric()[0]
		if m.GetCounter() != nil {
			values[f.GetName()] = m.GetCounter().GetValue()
		} else {
			values[f.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, 1.0, values["looptide_engine_underruns_total"])
	require.Equal(t, 16.0, values["looptide_engine_underrun_samples_total"])
	require.Equal(t, 1.0, values["looptide_engine_blocks_total"])
	require.Equal(t, 1.0, values["looptide_engine_swaps_total"])
	require.Equal(t, 0.0, values["looptide_engine_queue_samples"])
	require.Contains(t, values, "looptide_engine_block_seconds_max")
}
