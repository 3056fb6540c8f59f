package audio

import (
	"context"
	"testing"
	"time"

	"github.com/parley-ai/parley/pkg/device"
)

func testCaptureConfig() CaptureConfig {
	return CaptureConfig{
		ProtocolRate:  24000,
		ChunkDuration: 10 * time.Millisecond,
		DrainInterval: time.Millisecond,
		RingDuration:  time.Second,
	}
}

func newTestSource(t *testing.T, rate, channels int) *device.MockSource {
	t.Helper()
	cfg := device.Config{
		Backend:        device.BackendMock,
		SampleRate:     rate,
		Channels:       channels,
		BufferDuration: 10 * time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid device config: %v", err)
	}
	return device.NewMockSource(cfg, nil)
}

func TestCaptureSealsProtocolChunks(t *testing.T) {
	src := newTestSource(t, 48000, 1)
	sealed := make(chan string, 16)
	forward := func(payload string) error {
		sealed <- payload
		return nil
	}

	c := NewCapture(src, forward, testCaptureConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	// 1000 samples at 48kHz is past the 10ms (480 sample) threshold.
	src.EmitFrame(make([]float32, 1000))

	select {
	case payload := <-sealed:
		samples, err := DecodeBase64PCM16(payload)
		if err != nil {
			t.Fatalf("sealed payload not decodable: %v", err)
		}
		// 1000 samples resampled 48k -> 24k is 500 samples.
		if len(samples) != 500 {
			t.Errorf("sealed %d samples, want 500", len(samples))
		}
	case <-time.After(time.Second):
		t.Fatal("no chunk sealed within deadline")
	}

	if got := c.Stats().ChunksSealed; got != 1 {
		t.Errorf("ChunksSealed = %d, want 1", got)
	}
}

func TestCaptureBelowThresholdHolds(t *testing.T) {
	src := newTestSource(t, 48000, 1)
	sealed := make(chan string, 1)
	c := NewCapture(src, func(p string) error { sealed <- p; return nil }, testCaptureConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	// 100 samples is well under the 480 sample threshold.
	src.EmitFrame(make([]float32, 100))

	select {
	case <-sealed:
		t.Error("chunk sealed below the accumulation threshold")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCaptureOverrunsDropNotBlock(t *testing.T) {
	src := newTestSource(t, 48000, 1)
	cfg := testCaptureConfig()
	cfg.RingDuration = 10 * time.Millisecond // 480 sample ring

	c := NewCapture(src, func(string) error { return nil }, cfg, nil)

	// No Start: nothing drains the ring, so a large frame overflows it.
	done := make(chan struct{})
	go func() {
		src.EmitFrame(make([]float32, 1000))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitFrame blocked on a full ring")
	}

	stats := c.Stats()
	if stats.Overruns != 520 {
		t.Errorf("Overruns = %d, want 520", stats.Overruns)
	}
	if stats.SamplesCaptured != 1000 {
		t.Errorf("SamplesCaptured = %d, want 1000", stats.SamplesCaptured)
	}
}

func TestCaptureStartTwice(t *testing.T) {
	src := newTestSource(t, 24000, 1)
	c := NewCapture(src, func(string) error { return nil }, testCaptureConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop()

	if err := c.Start(ctx); err == nil {
		t.Error("second Start succeeded, want error")
	}
}

func TestCaptureStopIdempotent(t *testing.T) {
	src := newTestSource(t, 24000, 1)
	c := NewCapture(src, func(string) error { return nil }, testCaptureConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}
