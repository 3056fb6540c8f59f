// Package config provides configuration helpers for parley commands.
package config

import (
	"fmt"
	"os"
)

// App holds the process configuration, resolved from environment
// variables (after the command has loaded any .env file).
type App struct {
	// APIKey authenticates against the endpoint. Required.
	APIKey string

	// URL is the realtime endpoint; empty uses the client default.
	URL string

	// Model is the model selector appended to the endpoint URL.
	Model string

	// Voice for synthesized audio responses.
	Voice string

	// Instructions is the system prompt for the session.
	Instructions string

	// AudioBackend selects the device backend (auto, malgo, oto, mock).
	AudioBackend string

	// WebPort enables the dashboard when non-empty.
	WebPort string

	// LogLevel is the slog level name.
	LogLevel string
}

// FromEnv resolves the configuration. The API key is the only
// required setting.
func FromEnv() (App, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return App{}, fmt.Errorf("config: OPENAI_API_KEY is required")
	}

	return App{
		APIKey:       apiKey,
		URL:          os.Getenv("PARLEY_URL"),
		Model:        os.Getenv("PARLEY_MODEL"),
		Voice:        envOr("PARLEY_VOICE", "alloy"),
		Instructions: os.Getenv("PARLEY_INSTRUCTIONS"),
		AudioBackend: envOr("PARLEY_AUDIO", "auto"),
		WebPort:      os.Getenv("PARLEY_WEB_PORT"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
