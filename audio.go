package looptide

import "io"

type (
	// AudioSource produces mono samples for an output device. ReadAudio
	// always fills the whole buffer and must never block, as it may be
	// called from a real-time callback.
	AudioSource interface {
		ReadAudio(buffer []float32)
	}

	// AudioContext plays audio sources on an output device.
	AudioContext interface {
		Play(source AudioSource) (io.Closer, error)
		Close() error
	}
)
