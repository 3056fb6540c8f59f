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

// PlaybackConfig tunes the playback pipeline.
type PlaybackConfig struct {
	// RingDuration sizes the playback ring. Generous, because a whole
	// synthesized utterance can arrive faster than it plays.
	RingDuration time.Duration

	// PushBackoff is how long the command loop sleeps when the ring is
	// momentarily full before retrying, instead of dropping audio.
	PushBackoff time.Duration

	// QueueSize bounds the command channel.
	QueueSize int
}

// DefaultPlaybackConfig returns the standard playback tuning.
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		RingDuration: 10 * time.Second,
		PushBackoff:  5 * time.Millisecond,
		QueueSize:    64,
	}
}

// PlaybackStats reports playback pipeline counters.
type PlaybackStats struct {
	ChunksPlayed    int64 `json:"chunks_played"`
	SamplesBuffered int64 `json:"samples_buffered"`
	Underruns       int64 `json:"underruns"`
	Interrupts      int64 `json:"interrupts"`
}

// playCmd is one queued Play. The generation stamp lets Stop discard
// commands that were enqueued before the interruption without touching
// the channel.
type playCmd struct {
	chunk Chunk
	gen   uint64
}

// Playback turns inbound decoded audio into continuous hardware
// output. Play enqueues chunks for the command loop, which converts
// them to the device format and feeds the ring with bounded backoff.
// Stop clears the ring and invalidates queued chunks immediately — the
// barge-in cutoff. The device pull callback pops the ring and
// substitutes silence when it runs dry; it never waits.
type Playback struct {
	cfg    PlaybackConfig
	sink   device.Sink
	ring   *Ring
	cmds   chan playCmd
	gen    atomic.Uint64
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	chunks     atomic.Int64
	underruns  atomic.Int64
	interrupts atomic.Int64
}

// NewPlayback wires a playback pipeline to an output device. The pull
// callback is registered here; call Start to begin playback.
func NewPlayback(sink device.Sink, cfg PlaybackConfig, logger *slog.Logger) *Playback {
	if logger == nil {
		logger = slog.Default()
	}

	dev := sink.Config()
	ringCap := int(float64(dev.SampleRate*dev.Channels) * cfg.RingDuration.Seconds())

	p := &Playback{
		cfg:    cfg,
		sink:   sink,
		ring:   NewRing(ringCap),
		cmds:   make(chan playCmd, cfg.QueueSize),
		logger: logger,
	}
	sink.SetCallback(p.fill)
	return p
}

// fill runs on the device's pull schedule: drain the ring into out,
// silence for whatever is missing. An underrun is a fill that ran dry
// mid-frame; a fully empty ring is just idle silence.
func (p *Playback) fill(out []float32) {
	popped := 0
	for i := range out {
		s, ok := p.ring.TryPop()
		if !ok {
			out[i] = 0
			continue
		}
		out[i] = s
		popped++
	}
	if popped > 0 && popped < len(out) {
		p.underruns.Add(1)
	}
}

// Start begins playback and the command loop.
func (p *Playback) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("audio: playback already started")
	}
	if err := p.sink.Start(ctx); err != nil {
		return fmt.Errorf("audio: start playback device: %w", err)
	}

	p.running = true
	p.stopCh = make(chan struct{})
	go p.commandLoop(ctx, p.stopCh)

	p.logger.Info("playback pipeline started",
		"device_rate", p.sink.Config().SampleRate,
		"device_channels", p.sink.Config().Channels,
		"ring_capacity", p.ring.Cap(),
	)
	return nil
}

// Play enqueues a decoded chunk for playback. Blocks briefly when the
// command queue is full.
func (p *Playback) Play(chunk Chunk) error {
	p.mu.Lock()
	running := p.running
	stop := p.stopCh
	p.mu.Unlock()
	if !running {
		return fmt.Errorf("audio: playback not started")
	}

	select {
	case p.cmds <- playCmd{chunk: chunk, gen: p.gen.Load()}:
		return nil
	case <-stop:
		return fmt.Errorf("audio: playback stopped")
	}
}

// Stop discards all buffered and queued audio immediately. It does not
// halt the pipeline; the next Play starts fresh. Idempotent.
func (p *Playback) Stop() {
	p.gen.Add(1)
	p.ring.Clear()
	p.interrupts.Add(1)
	p.logger.Debug("playback interrupted, buffer cleared")
}

// commandLoop converts queued chunks to the device format and feeds
// the ring, backing off while it is full rather than dropping. A
// generation change (Stop) aborts the chunk in flight and skips stale
// queued chunks.
func (p *Playback) commandLoop(ctx context.Context, stop chan struct{}) {
	dev := p.sink.Config()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case cmd := <-p.cmds:
			if cmd.gen != p.gen.Load() {
				continue
			}

			samples, err := Convert(cmd.chunk.Samples, cmd.chunk.SampleRate, cmd.chunk.Channels, dev.SampleRate, dev.Channels)
			if err != nil {
				p.logger.Warn("dropping playback chunk", "error", err)
				continue
			}

			if p.push(ctx, stop, samples, cmd.gen) {
				p.chunks.Add(1)
			}
		}
	}
}

// push feeds samples into the ring one by one, sleeping while full.
// Returns false if interrupted or shut down mid-chunk.
func (p *Playback) push(ctx context.Context, stop chan struct{}, samples []float32, gen uint64) bool {
	for _, s := range samples {
		for !p.ring.TryPush(s) {
			select {
			case <-ctx.Done():
				return false
			case <-stop:
				return false
			case <-time.After(p.cfg.PushBackoff):
			}
			if gen != p.gen.Load() {
				return false
			}
		}
		// A Stop may have cleared the ring between its generation bump
		// and this push landing; re-clear so the stale sample never
		// reaches the device. Only this goroutine pushes, so nothing
		// newer can be discarded.
		if gen != p.gen.Load() {
			p.ring.Clear()
			return false
		}
	}
	return true
}

// Shutdown halts the device and the command loop.
func (p *Playback) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	close(p.stopCh)

	if err := p.sink.Stop(); err != nil {
		return fmt.Errorf("audio: stop playback device: %w", err)
	}
	p.logger.Info("playback pipeline stopped")
	return nil
}

// Buffered returns the number of samples waiting in the ring.
func (p *Playback) Buffered() int {
	return p.ring.Len()
}

// Stats returns playback counters.
func (p *Playback) Stats() PlaybackStats {
	return PlaybackStats{
		ChunksPlayed:    p.chunks.Load(),
		SamplesBuffered: int64(p.ring.Len()),
		Underruns:       p.underruns.Load(),
		Interrupts:      p.interrupts.Load(),
	}
}
