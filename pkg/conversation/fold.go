package conversation

import (
	"github.com/parley-ai/parley/pkg/realtime"
)

// Apply folds one inbound event into the model. Unrecognized event
// types and missing fields are no-ops, never errors: the stream must
// survive anything the endpoint sends.
func (m *Model) Apply(ev realtime.Event) {
	switch ev.Type {
	case realtime.TypeItemCreated:
		item, ok := decodeItem(getMap(ev.Data, "item"))
		if !ok {
			return
		}
		m.add(item)

	case realtime.TypeAudioTranscriptDelta:
		id := getString(ev.Data, "item_id")
		if id == "" {
			return
		}
		m.appendTranscript(id, getInt(ev.Data, "content_index"), getString(ev.Data, "delta"))

	case realtime.TypeAudioTranscriptDone, realtime.TypeInputTranscriptionDone:
		id := getString(ev.Data, "item_id")
		if id == "" {
			return
		}
		m.finishTranscript(id, getInt(ev.Data, "content_index"), getString(ev.Data, "transcript"))
	}
}

// decodeItem builds an Item from the wire item object.
func decodeItem(data map[string]any) (Item, bool) {
	if data == nil {
		return Item{}, false
	}
	id := getString(data, "id")
	if id == "" {
		return Item{}, false
	}

	it := Item{
		ID:     id,
		Role:   Role(getString(data, "role")),
		Status: Status(getString(data, "status")),
	}
	if it.Status == "" {
		it.Status = StatusInProgress
	}

	if parts, ok := data["content"].([]any); ok {
		for _, raw := range parts {
			part, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			it.Content = append(it.Content, ContentPart{
				Kind:       Kind(getString(part, "type")),
				Text:       getString(part, "text"),
				Audio:      getString(part, "audio"),
				Transcript: getString(part, "transcript"),
			})
		}
	}

	return it, true
}

func getMap(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func getString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

// getInt reads a JSON number field; encoding/json decodes numbers into
// float64 inside map[string]any.
func getInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
