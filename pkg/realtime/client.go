// Package realtime implements the session protocol engine: a
// message-envelope client that maintains connection state, serializes
// outbound intents, and publishes the inbound event stream for the
// conversation model and the playback pipeline.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
)

// Defaults for the OpenAI Realtime endpoint.
const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"
)

// Session lifecycle errors.
var (
	ErrAlreadyConnected = errors.New("realtime: already connected, disconnect first")
	ErrNotConnected     = errors.New("realtime: not connected")
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const eventBuffer = 256

// Client owns one logical session. Create it, optionally adjust the
// session config and transport, Connect, consume Events, Disconnect.
// A Client is single-use: after the event stream closes, create a new
// one for a new session.
type Client struct {
	url       string
	apiKey    string
	transport Transport
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	conn    Conn
	session SessionConfig

	events   chan Event
	evMu     sync.Mutex
	evClosed bool
}

// NewClient creates a disconnected client targeting the default
// endpoint with the default session configuration.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:       DefaultURL,
		apiKey:    apiKey,
		transport: WebsocketTransport{},
		session:   DefaultSessionConfig(),
		logger:    logger,
		events:    make(chan Event, eventBuffer),
	}
}

// SetURL overrides the endpoint URL. Call before Connect.
func (c *Client) SetURL(u string) { c.url = u }

// SetTransport overrides the transport. Call before Connect.
func (c *Client) SetTransport(t Transport) { c.transport = t }

// SetSession replaces the session configuration snapshot. Call before
// Connect, or follow with UpdateSession to push it to a live session.
func (c *Client) SetSession(cfg SessionConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = cfg
}

// Session returns the current session configuration snapshot.
func (c *Client) Session() SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events returns the ordered session event stream: every envelope
// sent (Source client) and received (Source server). The channel
// closes when the session ends. Consumers must keep draining it;
// events are dropped with a warning if nobody does.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect opens the transport and sends the initial session
// configuration. The session counts as connected only once both have
// succeeded. model overrides the default model selector; empty keeps
// the default.
func (c *Client) Connect(ctx context.Context, model string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	addr, err := c.buildAddr(model)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, err := c.transport.Open(ctx, addr, header)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("realtime: connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	session := c.session
	c.mu.Unlock()

	go c.readLoop(conn)

	if err := c.sendEnvelope(TypeSessionUpdate, map[string]any{"session": session}); err != nil {
		c.mu.Lock()
		c.conn = nil
		c.state = StateDisconnected
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("realtime: initial session update: %w", err)
	}

	c.setState(StateConnected)
	c.logger.Info("session connected", "endpoint", c.url, "model", modelOrDefault(model))
	return nil
}

// Disconnect closes the session. The websocket close handshake is the
// close notification to the endpoint.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	err := conn.Close()
	c.closeEvents()
	c.logger.Info("session disconnected")
	if err != nil {
		return fmt.Errorf("realtime: disconnect: %w", err)
	}
	return nil
}

// Send constructs an envelope with a fresh event_id, the given type,
// and the shallow-merged fields of data, writes it on the send lane,
// and echoes it locally on the event stream.
func (c *Client) Send(eventType string, data map[string]any) error {
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return c.sendEnvelope(eventType, data)
}

// CreateResponse asks the endpoint to generate a response.
func (c *Client) CreateResponse() error {
	return c.Send(TypeResponseCreate, nil)
}

// AppendInputAudio streams one base64 PCM16 payload into the input
// audio buffer.
func (c *Client) AppendInputAudio(base64Payload string) error {
	return c.Send(TypeInputAudioAppend, map[string]any{"audio": base64Payload})
}

// CommitInputAudio commits the input audio buffer, triggering
// processing when server turn detection is off.
func (c *Client) CommitInputAudio() error {
	return c.Send(TypeInputAudioCommit, nil)
}

// SendUserMessage creates a user text item and requests a response.
func (c *Client) SendUserMessage(text string) error {
	err := c.Send(TypeConversationItemCreate, map[string]any{
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
	if err != nil {
		return err
	}
	return c.CreateResponse()
}

// UpdateSession re-sends the current session configuration to a live
// session.
func (c *Client) UpdateSession() error {
	return c.Send(TypeSessionUpdate, map[string]any{"session": c.Session()})
}

// sendEnvelope writes one envelope without checking the public state;
// Connect uses it while still officially connecting.
func (c *Client) sendEnvelope(eventType string, data map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	env := map[string]any{
		"type":     eventType,
		"event_id": uuid.NewString(),
	}
	for k, v := range data {
		env[k] = v
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("realtime: marshal %s: %w", eventType, err)
	}
	if err := conn.WriteText(payload); err != nil {
		return fmt.Errorf("realtime: send %s: %w", eventType, err)
	}

	c.publish(Event{Type: eventType, Source: SourceClient, Data: env})
	return nil
}

// readLoop is the inbound task: one message at a time off the receive
// lane for the lifetime of the connection. A malformed message is
// dropped with a warning; a transport error ends the session and is
// reported as a disconnection event.
func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadText()
		if err != nil {
			c.mu.Lock()
			remote := c.conn != nil
			c.conn = nil
			c.state = StateDisconnected
			c.mu.Unlock()

			if remote {
				c.logger.Warn("receive lane closed", "error", err)
				c.publish(Event{
					Type:   TypeDisconnected,
					Source: SourceServer,
					Data:   map[string]any{"error": err.Error()},
				})
				conn.Close()
			}
			c.closeEvents()
			return
		}

		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}

		eventType, _ := m["type"].(string)
		if eventType == "" {
			eventType = "unknown"
		}
		c.publish(Event{Type: eventType, Source: SourceServer, Data: m})
	}
}

// publish puts an event on the stream, dropping with a warning when no
// consumer is draining. Never blocks and never sends on a closed
// channel.
func (c *Client) publish(ev Event) {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	if c.evClosed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event stream full, dropping event", "type", ev.Type, "source", ev.Source)
	}
}

func (c *Client) closeEvents() {
	c.evMu.Lock()
	defer c.evMu.Unlock()
	if !c.evClosed {
		c.evClosed = true
		close(c.events)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) buildAddr(model string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("realtime: parse url %q: %w", c.url, err)
	}
	q := u.Query()
	q.Set("model", modelOrDefault(model))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func modelOrDefault(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}
