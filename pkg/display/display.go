// Package display renders the live conversation to a terminal. Two
// modes: a transcript view that redraws the ordered conversation on
// every change, and an event view that prints one line per envelope
// with a repeat counter.
package display

import (
	"fmt"
	"io"

	"github.com/parley-ai/parley/pkg/conversation"
	"github.com/parley-ai/parley/pkg/realtime"
)

// Mode selects the rendering style.
type Mode string

// Modes.
const (
	ModeTranscript Mode = "transcript"
	ModeEvents     Mode = "events"
	ModeOff        Mode = "off"
)

// statusMark maps item status to the suffix shown after its text.
func statusMark(s conversation.Status) string {
	switch s {
	case conversation.StatusInProgress:
		return "…"
	case conversation.StatusFailed:
		return " <failed>"
	case conversation.StatusIncomplete:
		return " <incomplete>"
	default:
		return ""
	}
}

// Renderer consumes session events on the router goroutine and writes
// to a terminal.
type Renderer struct {
	mode  Mode
	model *conversation.Model
	out   io.Writer

	prevType string
	repeats  int
	lineOpen bool
}

// New creates a renderer over the conversation model.
func New(mode Mode, model *conversation.Model, out io.Writer) *Renderer {
	return &Renderer{mode: mode, model: model, out: out}
}

// OnEvent renders one event. Register with Router.OnEvent.
func (r *Renderer) OnEvent(ev realtime.Event) {
	switch r.mode {
	case ModeTranscript:
		r.renderTranscript(ev)
	case ModeEvents:
		r.renderEvent(ev)
	}
}

// renderTranscript redraws the whole conversation when an event could
// have changed it.
func (r *Renderer) renderTranscript(ev realtime.Event) {
	switch ev.Type {
	case realtime.TypeItemCreated,
		realtime.TypeAudioTranscriptDelta,
		realtime.TypeAudioTranscriptDone,
		realtime.TypeInputTranscriptionDone:
	default:
		return
	}

	// Clear screen and home the cursor, then repaint every line.
	fmt.Fprint(r.out, "\033[2J\033[H")
	for i, item := range r.model.Items() {
		fmt.Fprintf(r.out, "%d %s: %s%s\n", i, roleLabel(item.Role), item.Transcript(), statusMark(item.Status))
	}
}

// renderEvent prints one line per event, collapsing consecutive
// repeats into a counter on the same line.
func (r *Renderer) renderEvent(ev realtime.Event) {
	if ev.Type == r.prevType {
		r.repeats++
		fmt.Fprintf(r.out, "\r%-6s %s (%d)", ev.Source, ev.Type, r.repeats)
		return
	}

	if r.lineOpen {
		fmt.Fprintln(r.out)
	}
	r.prevType = ev.Type
	r.repeats = 1
	r.lineOpen = true
	fmt.Fprintf(r.out, "%-6s %s", ev.Source, ev.Type)
}

func roleLabel(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return "User"
	case conversation.RoleAssistant:
		return "Assistant"
	case conversation.RoleSystem:
		return "System"
	default:
		return string(role)
	}
}
