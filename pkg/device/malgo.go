package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures microphone audio via miniaudio. The data
// callback fires on a realtime-priority device thread; samples handed
// to the registered callback are only valid for the duration of the
// call.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool

	actx    *malgo.AllocatedContext
	dev     *malgo.Device
	cb      func(samples []float32)
	scratch []float32
}

// NewMalgoSource creates a capture device bound to the system default
// microphone. Device initialization failures are fatal at startup by
// design; there is no mid-stream recovery.
func NewMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	ctxCfg := malgo.ContextConfig{}
	ctxCfg.ThreadPriority = malgo.ThreadPriorityRealtime

	actx, err := malgo.InitContext(nil, ctxCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("device: init malgo context: %w", err)
	}

	s := &MalgoSource{
		cfg:    cfg,
		logger: logger,
		actx:   actx,
		// Device periods can exceed the configured duration; leave headroom.
		scratch: make([]float32, cfg.BufferSize()*cfg.Channels*4),
	}

	logger.Info("malgo source created",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"period_ms", cfg.BufferDuration.Milliseconds(),
	)

	return s, nil
}

// SetCallback registers the frame callback. Must be called before Start.
func (s *MalgoSource) SetCallback(fn func(samples []float32)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = fn
}

// Start opens and starts the capture device.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}
	if s.cb == nil {
		return fmt.Errorf("device: malgo source started without a callback")
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = uint32(s.cfg.Channels)
	dc.SampleRate = uint32(s.cfg.SampleRate)
	dc.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			s.onData(in)
		},
	}

	dev, err := malgo.InitDevice(s.actx.Context, dc, callbacks)
	if err != nil {
		return fmt.Errorf("device: init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("device: start capture device: %w", err)
	}

	s.dev = dev
	s.running = true
	s.logger.Info("malgo capture started")

	return nil
}

// onData runs on the device thread: decode S16LE to normalized
// float32 in the preallocated scratch buffer and hand it off.
func (s *MalgoSource) onData(in []byte) {
	n := len(in) / 2
	if n > len(s.scratch) {
		n = len(s.scratch)
	}
	for i := 0; i < n; i++ {
		v := int16(in[i*2]) | int16(in[i*2+1])<<8
		s.scratch[i] = float32(v) / 32767
	}
	s.cb(s.scratch[:n])
}

// Stop halts capture.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.dev != nil {
		s.dev.Stop()
		s.dev.Uninit()
		s.dev = nil
	}

	s.logger.Info("malgo capture stopped")
	return nil
}

// Config returns the device configuration.
func (s *MalgoSource) Config() Config {
	return s.cfg
}

// Name returns "malgo".
func (s *MalgoSource) Name() string {
	return "malgo"
}

// Close releases the device and the miniaudio context.
func (s *MalgoSource) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.actx != nil {
		s.actx.Uninit()
		s.actx.Free()
		s.actx = nil
	}
	return nil
}

var _ Source = (*MalgoSource)(nil)
