// Package oto plays engine output on the default audio device.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/looptide/looptide"
)

type (
	Context struct {
		context *oto.Context
	}

	output struct {
		player *oto.Player
	}

	// reader adapts a mono AudioSource to the interleaved stereo byte stream
	// oto pulls from its own goroutine.
	reader struct {
		source looptide.AudioSource
		mono   []float32
	}
)

// NewContext opens the audio device. latency is the size of the device
// buffer; it waits until the device is ready.
func NewContext(sampleRate int, latency time.Duration) (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   latency,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{context: ctx}, nil
}

// Play starts pulling audio from source until the returned closer is closed.
func (c *Context) Play(source looptide.AudioSource) (io.Closer, error) {
	if err := c.context.Err(); err != nil {
		return nil, fmt.Errorf("oto context failed: %w", err)
	}
	p := c.context.NewPlayer(&reader{source: source})
	p.Play()
	return &output{player: p}, nil
}

// Close suspends the device. oto contexts cannot be reopened within a
// process, so a closed context stays unusable.
func (c *Context) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (o *output) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if cap(r.mono) < frames {
		r.mono = make([]float32, frames)
	}
	mono := r.mono[:frames]
	r.source.ReadAudio(mono)
	return MonoToStereoFloat32LE(p, mono), nil
}
