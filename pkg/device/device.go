package device

import (
	"context"
	"io"
)

// Source captures audio from an input device. The callback runs on the
// device's own timing and thread; it must return quickly and must not
// block.
type Source interface {
	// SetCallback registers the frame callback. Must be called before
	// Start. Samples are normalized float32, interleaved per Config.
	SetCallback(fn func(samples []float32))

	// Start begins capture.
	Start(ctx context.Context) error

	// Stop halts capture. Safe to call multiple times.
	Stop() error

	// Config returns the device configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases all resources. The source cannot be restarted.
	io.Closer
}

// Sink plays audio through an output device. The callback is invoked
// whenever the device wants more audio; it must fill the whole slice
// (silence for anything unavailable) and must never wait.
type Sink interface {
	// SetCallback registers the pull callback. Must be called before
	// Start.
	SetCallback(fn func(out []float32))

	// Start begins playback.
	Start(ctx context.Context) error

	// Stop halts playback. Safe to call multiple times.
	Stop() error

	// Config returns the device configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	// Close releases all resources. The sink cannot be restarted.
	io.Closer
}
