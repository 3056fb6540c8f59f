package device

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a synthetic capture device for tests and CI machines
// without audio hardware. When started it emits frames on a ticker;
// tests can also drive it deterministically with EmitFrame.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stopCh  chan struct{}
	cb      func(samples []float32)

	// ToneHz, when non-zero, emits a sine wave instead of silence.
	ToneHz float64

	frames  atomic.Int64
	samples atomic.Int64
	phase   float64
}

// NewMockSource creates a mock capture device.
func NewMockSource(cfg Config, logger *slog.Logger) *MockSource {
	return &MockSource{cfg: cfg, logger: logger}
}

// SetCallback registers the frame callback.
func (s *MockSource) SetCallback(fn func(samples []float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = fn
}

// Start emits one frame per BufferDuration until stopped.
func (s *MockSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.running = true
	s.stopCh = make(chan struct{})

	go s.emitLoop(ctx, s.stopCh)
	return nil
}

func (s *MockSource) emitLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.EmitFrame(nil)
		}
	}
}

// EmitFrame delivers one frame to the callback. A nil argument emits a
// generated frame of the configured buffer size.
func (s *MockSource) EmitFrame(samples []float32) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return
	}

	if samples == nil {
		samples = s.generate(s.cfg.BufferSize() * s.cfg.Channels)
	}

	s.frames.Add(1)
	s.samples.Add(int64(len(samples)))
	cb(samples)
}

func (s *MockSource) generate(n int) []float32 {
	out := make([]float32, n)
	if s.ToneHz == 0 {
		return out
	}
	step := 2 * math.Pi * s.ToneHz / float64(s.cfg.SampleRate)
	for i := 0; i < n; i += s.cfg.Channels {
		v := float32(math.Sin(s.phase)) * 0.5
		for ch := 0; ch < s.cfg.Channels; ch++ {
			out[i+ch] = v
		}
		s.phase += step
	}
	return out
}

// Stop halts frame emission.
func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return nil
}

// Config returns the device configuration.
func (s *MockSource) Config() Config { return s.cfg }

// Name returns "mock".
func (s *MockSource) Name() string { return "mock" }

// Close releases the source.
func (s *MockSource) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FramesEmitted reports how many frames have been delivered.
func (s *MockSource) FramesEmitted() int64 { return s.frames.Load() }

var _ Source = (*MockSource)(nil)

// MockSink is a synthetic playback device. When started it pulls one
// frame per BufferDuration and discards it; tests can also pull
// deterministically with PullFrame.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stopCh  chan struct{}
	cb      func(out []float32)

	pulls atomic.Int64
}

// NewMockSink creates a mock playback device.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	return &MockSink{cfg: cfg, logger: logger}
}

// SetCallback registers the pull callback.
func (s *MockSink) SetCallback(fn func(out []float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = fn
}

// Start pulls one frame per BufferDuration until stopped.
func (s *MockSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.running = true
	s.stopCh = make(chan struct{})

	go s.pullLoop(ctx, s.stopCh)
	return nil
}

func (s *MockSink) pullLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.PullFrame(s.cfg.BufferSize() * s.cfg.Channels)
		}
	}
}

// PullFrame requests n samples from the pull callback and returns
// whatever was filled.
func (s *MockSink) PullFrame(n int) []float32 {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb == nil {
		return nil
	}

	out := make([]float32, n)
	cb(out)
	s.pulls.Add(1)
	return out
}

// Stop halts pulling.
func (s *MockSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return nil
}

// Config returns the device configuration.
func (s *MockSink) Config() Config { return s.cfg }

// Name returns "mock".
func (s *MockSink) Name() string { return "mock" }

// Close releases the sink.
func (s *MockSink) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Pulls reports how many frames the device has requested.
func (s *MockSink) Pulls() int64 { return s.pulls.Load() }

var _ Sink = (*MockSink)(nil)
