package realtime

// SessionConfig is the declarative session snapshot sent in
// session.update: once on connect, and again on demand to reconfigure
// a live session.
type SessionConfig struct {
	Modalities              []string         `json:"modalities"`
	Instructions            string           `json:"instructions"`
	Voice                   string           `json:"voice"`
	InputAudioFormat        string           `json:"input_audio_format"`
	OutputAudioFormat       string           `json:"output_audio_format"`
	InputAudioTranscription map[string]any   `json:"input_audio_transcription,omitempty"`
	TurnDetection           map[string]any   `json:"turn_detection,omitempty"`
	Tools                   []map[string]any `json:"tools"`
	ToolChoice              string           `json:"tool_choice"`
	Temperature             float64          `json:"temperature"`
	MaxResponseOutputTokens int              `json:"max_response_output_tokens"`
}

// DefaultSessionConfig returns a bidirectional text+audio session with
// server-side turn detection.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Modalities:        []string{"text", "audio"},
		Voice:             "alloy",
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection: map[string]any{
			"type": "server_vad",
		},
		Tools:                   []map[string]any{},
		ToolChoice:              "auto",
		Temperature:             0.8,
		MaxResponseOutputTokens: 4096,
	}
}
