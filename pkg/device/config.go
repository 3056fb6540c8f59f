// Package device is the audio hardware boundary. A Source delivers
// captured frames through a callback on the device thread; a Sink
// pulls playback frames through a callback whenever the device wants
// more audio. Backends: malgo (capture), oto (playback), mock (tests).
package device

import (
	"fmt"
	"time"
)

// Backend selects the audio backend.
type Backend string

const (
	// BackendAuto picks malgo for capture and oto for playback.
	BackendAuto Backend = "auto"
	// BackendMalgo uses miniaudio bindings for capture.
	BackendMalgo Backend = "malgo"
	// BackendOto uses the oto playback library.
	BackendOto Backend = "oto"
	// BackendMock uses a synthetic implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `json:"backend"`

	// SampleRate is the device sample rate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of interleaved channels.
	Channels int `json:"channels"`

	// BufferDuration is the period between device callbacks.
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is a backend-specific device identifier; empty selects
	// the system default.
	Device string `json:"device"`
}

// DefaultConfig returns a Config matching the protocol's audio format:
// 24 kHz mono with 20 ms periods.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("device: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("device: channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("device: buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of per-channel frames per device period.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
