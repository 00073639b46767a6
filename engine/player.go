package engine

// Player is the consumer end of the queue and the engine's AudioSource.
// ReadAudio never blocks, allocates or locks, so it can run on the hardware
// callback thread.
type Player struct {
	queue *Queue
	stats *Stats
	flush <-chan Flush
}

func NewPlayer(coord *Coordinator, queue *Queue) *Player {
	return &Player{queue: queue, stats: coord.stats, flush: coord.Flushes()}
}

// ReadAudio fills buffer with queued samples and pads a shortfall with
// silence, counting it as an underrun.
func (p *Player) ReadAudio(buffer []float32) {
	select {
	case f := <-p.flush:
		if f.Discard {
			p.stats.discarded.Add(uint64(p.queue.Discard()))
		}
	default:
	}
	n := p.queue.Read(buffer)
	if n < len(buffer) {
		clear(buffer[n:])
		p.stats.recordUnderrun(len(buffer) - n)
	}
}
