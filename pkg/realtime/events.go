package realtime

// Source tags where an event originated.
type Source string

const (
	// SourceClient marks envelopes this client sent (echoed locally so
	// observers see outbound traffic too).
	SourceClient Source = "client"
	// SourceServer marks envelopes received from the endpoint.
	SourceServer Source = "server"
)

// Event is one envelope on the session event stream: every outbound
// intent and every inbound notification, in order.
type Event struct {
	Type   string         `json:"event_type"`
	Source Source         `json:"source"`
	Data   map[string]any `json:"data"`
}

// Outbound envelope types.
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeInputAudioAppend       = "input_audio_buffer.append"
	TypeInputAudioCommit       = "input_audio_buffer.commit"
)

// Inbound envelope types the client acts on. Anything else is passed
// through the event stream and otherwise ignored.
const (
	TypeItemCreated            = "conversation.item.created"
	TypeAudioDelta             = "response.audio.delta"
	TypeAudioTranscriptDelta   = "response.audio_transcript.delta"
	TypeAudioTranscriptDone    = "response.audio_transcript.done"
	TypeInputTranscriptionDone = "conversation.item.input_audio_transcription.completed"
	TypeSpeechStarted          = "input_audio_buffer.speech_started"
	TypeError                  = "error"

	// TypeDisconnected is synthesized locally when the receive lane
	// ends; it is not a wire type.
	TypeDisconnected = "session.disconnected"
)
