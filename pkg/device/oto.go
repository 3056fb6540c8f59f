package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays audio through the system default output via oto. The
// oto player pulls PCM from an io.Reader on its own schedule; Read is
// this sink's hardware callback, serviced by the registered pull
// callback and padded with silence when the callback under-fills.
type OtoSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool

	otoCtx  *oto.Context
	player  *oto.Player
	cb      func(out []float32)
	scratch []float32
}

// NewOtoSink creates a playback device. The oto context is created
// eagerly so a missing output device fails at startup, not mid-stream.
func NewOtoSink(cfg Config, logger *slog.Logger) (*OtoSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		// Keep the device-side buffer small; latency lives in our ring.
		BufferSize: cfg.BufferDuration,
	}

	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("device: init oto context: %w", err)
	}
	<-ready

	s := &OtoSink{
		cfg:     cfg,
		logger:  logger,
		otoCtx:  otoCtx,
		scratch: make([]float32, cfg.BufferSize()*cfg.Channels*4),
	}

	logger.Info("oto sink created",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// SetCallback registers the pull callback. Must be called before Start.
func (s *OtoSink) SetCallback(fn func(out []float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = fn
}

// Start creates the player and begins pulling audio.
func (s *OtoSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if s.cb == nil {
		return fmt.Errorf("device: oto sink started without a callback")
	}

	s.player = s.otoCtx.NewPlayer(otoPull{s})
	s.player.Play()
	s.running = true
	s.logger.Info("oto playback started")

	return nil
}

// Stop halts playback.
func (s *OtoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.player != nil {
		s.player.Close()
		s.player = nil
	}

	s.logger.Info("oto playback stopped")
	return nil
}

// Config returns the device configuration.
func (s *OtoSink) Config() Config {
	return s.cfg
}

// Name returns "oto".
func (s *OtoSink) Name() string {
	return "oto"
}

// Close releases the player. The oto context itself has no teardown.
func (s *OtoSink) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// otoPull adapts the pull callback to oto's io.Reader contract.
type otoPull struct {
	s *OtoSink
}

// Read fills p with S16LE audio supplied by the pull callback. It
// always satisfies the full request so the player never starves.
func (r otoPull) Read(p []byte) (int, error) {
	s := r.s
	n := len(p) / 2
	if n > len(s.scratch) {
		n = len(s.scratch)
	}

	out := s.scratch[:n]
	for i := range out {
		out[i] = 0
	}
	s.cb(out)

	for i, v := range out {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		sv := int16(v * 32767)
		p[i*2] = byte(sv)
		p[i*2+1] = byte(sv >> 8)
	}

	return n * 2, nil
}

var _ Sink = (*OtoSink)(nil)
