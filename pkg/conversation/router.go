package conversation

import (
	"context"
	"log/slog"

	"github.com/parley-ai/parley/pkg/audio"
	"github.com/parley-ai/parley/pkg/realtime"
)

// ProtocolSampleRate is the fixed sample rate of audio payloads on the
// wire: 24 kHz mono PCM16.
const ProtocolSampleRate = 24000

// PlaybackControl is what the router needs from the playback pipeline.
type PlaybackControl interface {
	Play(chunk audio.Chunk) error
	Stop()
}

// Router is the single consumer of the session event stream. It folds
// model events into the conversation log, turns audio deltas into Play
// commands, turns speech_started into the barge-in Stop, and fans
// events out to registered observers (display, dashboard).
type Router struct {
	model    *Model
	playback PlaybackControl
	logger   *slog.Logger
	hooks    []func(realtime.Event)
}

// NewRouter creates a router over the given model and playback
// pipeline.
func NewRouter(model *Model, playback PlaybackControl, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{model: model, playback: playback, logger: logger}
}

// OnEvent registers an observer called for every event, on the router
// goroutine, after the model has been updated. Register before Run.
func (r *Router) OnEvent(fn func(realtime.Event)) {
	r.hooks = append(r.hooks, fn)
}

// Run consumes events until the stream closes or the context ends.
func (r *Router) Run(ctx context.Context, events <-chan realtime.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handle(ev)
		}
	}
}

func (r *Router) handle(ev realtime.Event) {
	r.model.Apply(ev)

	switch ev.Type {
	case realtime.TypeSpeechStarted:
		// Barge-in: the user is talking over playback.
		r.playback.Stop()

	case realtime.TypeAudioDelta:
		r.play(ev)

	case realtime.TypeError:
		r.logger.Error("endpoint error", "detail", ev.Data["error"])

	case realtime.TypeDisconnected:
		r.logger.Warn("session ended", "detail", ev.Data["error"])
	}

	for _, fn := range r.hooks {
		fn(ev)
	}
}

// play decodes one audio delta and enqueues it. A bad payload is
// logged and dropped; the stream continues.
func (r *Router) play(ev realtime.Event) {
	payload := getString(ev.Data, "delta")
	if payload == "" {
		return
	}

	samples, err := audio.DecodeBase64PCM16(payload)
	if err != nil {
		r.logger.Warn("dropping audio delta", "error", err)
		return
	}

	chunk := audio.Chunk{Samples: samples, SampleRate: ProtocolSampleRate, Channels: 1}
	if err := r.playback.Play(chunk); err != nil {
		r.logger.Warn("playback rejected chunk", "error", err)
	}
}
