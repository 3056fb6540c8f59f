// Package conversation maintains the ordered conversation log derived
// from the session event stream, and routes side effects (playback,
// barge-in) off the same stream.
package conversation

import (
	"sync"
)

// Role identifies who produced an item.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Status is an item's lifecycle status.
type Status string

// Statuses.
const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
)

// Kind identifies a content part's payload type.
type Kind string

// Content kinds.
const (
	KindText       Kind = "text"
	KindAudio      Kind = "audio"
	KindInputText  Kind = "input_text"
	KindInputAudio Kind = "input_audio"
)

// ContentPart is one element of an item's content array. The
// transcript is assembled incrementally: deltas append, a terminal
// done event overwrites with the authoritative value.
type ContentPart struct {
	Kind       Kind   `json:"kind"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// Item is one turn or message unit in the dialogue.
type Item struct {
	ID      string        `json:"id"`
	Role    Role          `json:"role"`
	Status  Status        `json:"status"`
	Content []ContentPart `json:"content"`
}

// Transcript concatenates the transcripts of every content part.
func (it Item) Transcript() string {
	var out string
	for _, p := range it.Content {
		out += p.Transcript
	}
	return out
}

// Model is the ordered, append-mostly conversation log. Mutation
// happens only on the single event-folding goroutine via Apply; the
// mutex exists for the read-side query surface used by renderers.
// Invariant: every id in order has a map entry and vice versa.
type Model struct {
	mu    sync.RWMutex
	order []string
	items map[string]*Item
}

// NewModel creates an empty conversation model.
func NewModel() *Model {
	return &Model{items: make(map[string]*Item)}
}

// Len returns the number of items.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Items returns a snapshot of all items in arrival order, suitable for
// re-rendering on every update.
func (m *Model) Items() []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		it := m.items[id]
		copied := *it
		copied.Content = append([]ContentPart(nil), it.Content...)
		out = append(out, copied)
	}
	return out
}

// Item returns a snapshot of one item by id.
func (m *Model) Item(id string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]
	if !ok {
		return Item{}, false
	}
	copied := *it
	copied.Content = append([]ContentPart(nil), it.Content...)
	return copied, true
}

// add appends a new item. An id collision replaces the mapped item
// without duplicating the order entry.
func (m *Model) add(it Item) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[it.ID]; !exists {
		m.order = append(m.order, it.ID)
	}
	m.items[it.ID] = &it
}

// appendTranscript appends delta to the transcript at (id, index). An
// out-of-range index creates a new text part holding the delta: the
// forgiving, stream-resilient policy.
func (m *Model) appendTranscript(id string, index int, delta string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return
	}
	if index >= 0 && index < len(it.Content) {
		it.Content[index].Transcript += delta
		return
	}
	it.Content = append(it.Content, ContentPart{Kind: KindText, Transcript: delta})
}

// finishTranscript overwrites the transcript at (id, index) with the
// authoritative final value and marks the item completed.
func (m *Model) finishTranscript(id string, index int, transcript string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return
	}
	if index >= 0 && index < len(it.Content) {
		it.Content[index].Transcript = transcript
	} else {
		it.Content = append(it.Content, ContentPart{Kind: KindText, Transcript: transcript})
	}
	it.Status = StatusCompleted
}
