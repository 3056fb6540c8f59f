package audio

import (
	"context"
	"testing"
	"time"

	"github.com/parley-ai/parley/pkg/device"
)

func testPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		RingDuration: time.Second,
		PushBackoff:  time.Millisecond,
		QueueSize:    8,
	}
}

func newTestSink(t *testing.T, rate, channels int) *device.MockSink {
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
	return device.NewMockSink(cfg, nil)
}

// waitBuffered polls until the playback ring holds want samples.
func waitBuffered(t *testing.T, p *Playback, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if p.Buffered() >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Buffered() = %d, want >= %d within deadline", p.Buffered(), want)
}

func TestPlaybackDeliversSamples(t *testing.T) {
	sink := newTestSink(t, 24000, 1)
	p := NewPlayback(sink, testPlaybackConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Shutdown()
	sink.Stop() // stop the ticker; the test drives the device pulls

	in := []float32{0.1, 0.2, 0.3, 0.4}
	if err := p.Play(Chunk{Samples: in, SampleRate: 24000, Channels: 1}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	waitBuffered(t, p, len(in))

	out := sink.PullFrame(len(in))
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if got := p.Buffered(); got != 0 {
		t.Errorf("Buffered() after pull = %d, want 0", got)
	}
}

func TestPlaybackSilenceWhenEmpty(t *testing.T) {
	sink := newTestSink(t, 24000, 1)
	p := NewPlayback(sink, testPlaybackConfig(), nil)

	out := sink.PullFrame(64)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("out[%d] = %v, want silence", i, s)
		}
	}
	// Idle silence is not an underrun.
	if got := p.Stats().Underruns; got != 0 {
		t.Errorf("Underruns = %d, want 0", got)
	}
}

// Stop must leave the ring empty before the very next device pull, even
// with chunks still queued behind it.
func TestPlaybackStopEmptiesBuffer(t *testing.T) {
	sink := newTestSink(t, 24000, 1)
	p := NewPlayback(sink, testPlaybackConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Shutdown()
	sink.Stop()

	chunk := Chunk{Samples: make([]float32, 2400), SampleRate: 24000, Channels: 1}
	for i := range chunk.Samples {
		chunk.Samples[i] = 0.5
	}
	if err := p.Play(chunk); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	waitBuffered(t, p, len(chunk.Samples))

	p.Stop()

	if got := p.Buffered(); got != 0 {
		t.Fatalf("Buffered() after Stop = %d, want 0", got)
	}
	out := sink.PullFrame(128)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("out[%d] = %v after Stop, want silence", i, s)
		}
	}
}

// Chunks enqueued before an interruption must not play after it.
func TestPlaybackStopInvalidatesQueued(t *testing.T) {
	sink := newTestSink(t, 24000, 1)
	cfg := testPlaybackConfig()
	cfg.RingDuration = 10 * time.Millisecond // 240 sample ring forces queueing

	p := NewPlayback(sink, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Shutdown()
	sink.Stop()

	// First chunk fills the ring; the rest back up in the queue and in
	// the command loop's blocked push.
	chunk := Chunk{Samples: make([]float32, 240), SampleRate: 24000, Channels: 1}
	for i := range chunk.Samples {
		chunk.Samples[i] = 0.5
	}
	for i := 0; i < 4; i++ {
		if err := p.Play(chunk); err != nil {
			t.Fatalf("Play %d failed: %v", i, err)
		}
	}
	waitBuffered(t, p, 240)

	p.Stop()

	// Give the command loop time to observe the generation change and
	// discard everything queued.
	time.Sleep(50 * time.Millisecond)
	if got := p.Buffered(); got != 0 {
		t.Errorf("Buffered() = %d after Stop, want 0 (stale chunks played)", got)
	}
}

func TestPlaybackStopIdempotent(t *testing.T) {
	sink := newTestSink(t, 24000, 1)
	p := NewPlayback(sink, testPlaybackConfig(), nil)

	p.Stop()
	p.Stop()
	if got := p.Stats().Interrupts; got != 2 {
		t.Errorf("Interrupts = %d, want 2", got)
	}
	if got := p.Buffered(); got != 0 {
		t.Errorf("Buffered() = %d, want 0", got)
	}
}

func TestPlaybackPlayBeforeStart(t *testing.T) {
	sink := newTestSink(t, 24000, 1)
	p := NewPlayback(sink, testPlaybackConfig(), nil)

	err := p.Play(Chunk{Samples: []float32{0}, SampleRate: 24000, Channels: 1})
	if err == nil {
		t.Error("Play before Start succeeded, want error")
	}
}

func TestPlaybackConvertsToDeviceFormat(t *testing.T) {
	sink := newTestSink(t, 48000, 2)
	p := NewPlayback(sink, testPlaybackConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Shutdown()
	sink.Stop()

	// 240 protocol samples (24kHz mono) become 480 frames at 48kHz,
	// 960 interleaved stereo samples.
	chunk := Chunk{Samples: make([]float32, 240), SampleRate: 24000, Channels: 1}
	if err := p.Play(chunk); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	waitBuffered(t, p, 960)

	if got := p.Buffered(); got != 960 {
		t.Errorf("Buffered() = %d, want 960", got)
	}
}
