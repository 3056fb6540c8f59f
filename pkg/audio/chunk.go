// Package audio implements the full-duplex audio path: sample chunks,
// the lock-free ring buffers that bridge hardware callbacks and
// goroutines, format conversion, and the capture/playback pipelines.
package audio

import "time"

// Chunk is an immutable run of normalized float32 samples in [-1, 1],
// interleaved when Channels > 1. Ownership transfers along the
// pipeline; a chunk must not be mutated after hand-off.
type Chunk struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the play time of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(float64(frames) / float64(c.SampleRate) * float64(time.Second))
}

// Frames returns the number of per-channel sample frames.
func (c Chunk) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}
