package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-ai/parley/pkg/device"
)

// CaptureConfig tunes the capture pipeline.
type CaptureConfig struct {
	// ProtocolRate is the sample rate the protocol expects. Chunks are
	// resampled to this rate and downmixed to mono before encoding.
	ProtocolRate int

	// ChunkDuration is how much device audio accumulates before a
	// chunk is sealed and forwarded.
	ChunkDuration time.Duration

	// DrainInterval is how often the drain goroutine empties the
	// capture ring.
	DrainInterval time.Duration

	// RingDuration sizes the capture ring. Headroom over the drain
	// interval so a stalled drain tick drops nothing.
	RingDuration time.Duration
}

// DefaultCaptureConfig returns the standard capture tuning.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		ProtocolRate:  24000,
		ChunkDuration: 200 * time.Millisecond,
		DrainInterval: 10 * time.Millisecond,
		RingDuration:  2 * time.Second,
	}
}

// CaptureStats reports capture pipeline counters.
type CaptureStats struct {
	ChunksSealed    int64 `json:"chunks_sealed"`
	SamplesCaptured int64 `json:"samples_captured"`
	Overruns        int64 `json:"overruns"`
}

// Capture turns continuous hardware input into discrete protocol-ready
// payloads. The device callback pushes frames into a ring (dropping on
// overflow, never blocking); a drain goroutine accumulates, converts
// to the protocol format, base64-encodes, and forwards.
type Capture struct {
	cfg     CaptureConfig
	src     device.Source
	forward func(base64 string) error
	ring    *Ring
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	chunks   atomic.Int64
	samples  atomic.Int64
	overruns atomic.Int64
}

// NewCapture wires a capture pipeline to an input device and a forward
// function (typically the session engine's audio append). The device
// callback is registered here; call Start to begin capture.
func NewCapture(src device.Source, forward func(base64 string) error, cfg CaptureConfig, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}

	dev := src.Config()
	ringCap := int(float64(dev.SampleRate*dev.Channels) * cfg.RingDuration.Seconds())

	c := &Capture{
		cfg:     cfg,
		src:     src,
		forward: forward,
		ring:    NewRing(ringCap),
		logger:  logger,
	}
	src.SetCallback(c.onFrame)
	return c
}

// onFrame runs on the device thread. It must not block: on a full ring
// the newest samples are dropped and counted.
func (c *Capture) onFrame(samples []float32) {
	c.samples.Add(int64(len(samples)))
	for _, s := range samples {
		if !c.ring.TryPush(s) {
			c.overruns.Add(1)
		}
	}
}

// Start begins capture and the drain goroutine.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("audio: capture already started")
	}
	if err := c.src.Start(ctx); err != nil {
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	c.running = true
	c.stopCh = make(chan struct{})
	go c.drainLoop(ctx, c.stopCh)

	c.logger.Info("capture pipeline started",
		"device_rate", c.src.Config().SampleRate,
		"device_channels", c.src.Config().Channels,
		"protocol_rate", c.cfg.ProtocolRate,
	)
	return nil
}

// drainLoop periodically empties the ring into an accumulation buffer
// and seals a chunk once enough audio has gathered. One bad chunk is
// logged and dropped; capture continues.
func (c *Capture) drainLoop(ctx context.Context, stop chan struct{}) {
	dev := c.src.Config()
	threshold := int(float64(dev.SampleRate*dev.Channels) * c.cfg.ChunkDuration.Seconds())
	acc := make([]float32, 0, threshold*2)

	ticker := time.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			for {
				s, ok := c.ring.TryPop()
				if !ok {
					break
				}
				acc = append(acc, s)
			}

			if len(acc) < threshold {
				continue
			}

			chunk := Chunk{
				Samples:    append([]float32(nil), acc...),
				SampleRate: dev.SampleRate,
				Channels:   dev.Channels,
			}
			acc = acc[:0]

			if err := c.seal(chunk); err != nil {
				c.logger.Warn("dropping capture chunk", "error", err)
			}
		}
	}
}

// seal converts one chunk to the protocol format and forwards it.
func (c *Capture) seal(chunk Chunk) error {
	converted, err := Convert(chunk.Samples, chunk.SampleRate, chunk.Channels, c.cfg.ProtocolRate, 1)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	if err := c.forward(EncodeBase64PCM16(converted)); err != nil {
		return fmt.Errorf("forward: %w", err)
	}

	c.chunks.Add(1)
	return nil
}

// Stop halts the device and the drain goroutine.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	close(c.stopCh)

	if err := c.src.Stop(); err != nil {
		return fmt.Errorf("audio: stop capture device: %w", err)
	}
	c.logger.Info("capture pipeline stopped")
	return nil
}

// Stats returns capture counters.
func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		ChunksSealed:    c.chunks.Load(),
		SamplesCaptured: c.samples.Load(),
		Overruns:        c.overruns.Load(),
	}
}
