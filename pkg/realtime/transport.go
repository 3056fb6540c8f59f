package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport opens message-based connections. The engine only needs a
// text send lane and a text receive lane; dialing, TLS, and framing
// live behind this boundary.
type Transport interface {
	Open(ctx context.Context, addr string, header http.Header) (Conn, error)
}

// Conn is one open connection. WriteText is the send lane (the engine
// serializes callers), ReadText is the receive lane (single reader).
type Conn interface {
	WriteText(data []byte) error
	ReadText() ([]byte, error)
	Close() error
}

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 120 * time.Second
)

// WebsocketTransport dials wss endpoints with gorilla/websocket.
type WebsocketTransport struct{}

// Open dials addr and returns the connection with keepalive handling
// installed.
func (WebsocketTransport) Open(ctx context.Context, addr string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	ws, _, err := dialer.DialContext(ctx, addr, header)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial %s: %w", addr, err)
	}

	c := &wsConn{ws: ws}

	// Answer pings so the server keeps the session alive.
	ws.SetPingHandler(func(appData string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})
	ws.SetReadDeadline(time.Now().Add(readTimeout))

	return c, nil
}

// wsConn wraps a gorilla connection. The mutex covers writes only;
// reads stay lock-free for the single reader goroutine.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// ReadText returns the next text payload, skipping any non-text frames.
func (c *wsConn) ReadText() ([]byte, error) {
	for {
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	// Best effort close handshake; the peer may already be gone.
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.mu.Unlock()
	return c.ws.Close()
}

var _ Transport = WebsocketTransport{}
