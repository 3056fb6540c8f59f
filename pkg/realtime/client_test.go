package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory transport connection. Tests feed inbound
// frames through the inbound channel and inspect outbound writes.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte

	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) WriteText(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) ReadText() ([]byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-c.closed:
		return nil, io.ErrClosedPipe
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// written returns the decoded envelopes written so far.
func (c *fakeConn) written(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.writes))
	for _, raw := range c.writes {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("unparseable outbound envelope: %v", err)
		}
		out = append(out, m)
	}
	return out
}

type fakeTransport struct {
	conn *fakeConn
	err  error
}

func (t fakeTransport) Open(ctx context.Context, addr string, header http.Header) (Conn, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.conn, nil
}

func newTestClient(conn *fakeConn) *Client {
	c := NewClient("test-key", nil)
	c.SetTransport(fakeTransport{conn: conn})
	return c
}

// nextEvent pulls one event off the stream with a deadline.
func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event stream closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event within deadline")
	}
	return Event{}
}

func TestConnectSendsSessionUpdateFirst(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	if got := c.State(); got != StateConnected {
		t.Errorf("State() = %v, want %v", got, StateConnected)
	}

	writes := conn.written(t)
	if len(writes) != 1 {
		t.Fatalf("wrote %d envelopes, want 1", len(writes))
	}
	if writes[0]["type"] != TypeSessionUpdate {
		t.Errorf("first envelope type = %v, want %s", writes[0]["type"], TypeSessionUpdate)
	}
	if id, _ := writes[0]["event_id"].(string); id == "" {
		t.Error("envelope missing event_id")
	}
	if _, ok := writes[0]["session"]; !ok {
		t.Error("session.update missing session payload")
	}

	// The outbound envelope is echoed on the event stream.
	ev := nextEvent(t, c.Events())
	if ev.Type != TypeSessionUpdate || ev.Source != SourceClient {
		t.Errorf("echo = %s/%s, want %s/%s", ev.Type, ev.Source, TypeSessionUpdate, SourceClient)
	}
}

func TestConnectTwice(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background(), ""); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}
}

func TestConnectTransportError(t *testing.T) {
	c := NewClient("test-key", nil)
	c.SetTransport(fakeTransport{err: errors.New("refused")})

	if err := c.Connect(context.Background(), ""); err == nil {
		t.Fatal("Connect succeeded with failing transport")
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
}

func TestSendBeforeConnect(t *testing.T) {
	c := newTestClient(newFakeConn())

	if err := c.CreateResponse(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("CreateResponse = %v, want ErrNotConnected", err)
	}
	if err := c.Disconnect(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Disconnect = %v, want ErrNotConnected", err)
	}
}

func TestAppendInputAudio(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.AppendInputAudio("AAAA"); err != nil {
		t.Fatalf("AppendInputAudio failed: %v", err)
	}

	writes := conn.written(t)
	last := writes[len(writes)-1]
	if last["type"] != TypeInputAudioAppend {
		t.Errorf("type = %v, want %s", last["type"], TypeInputAudioAppend)
	}
	if last["audio"] != "AAAA" {
		t.Errorf("audio = %v, want AAAA", last["audio"])
	}
}

func TestSendUserMessage(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.SendUserMessage("hello"); err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}

	writes := conn.written(t)
	if len(writes) != 3 { // session.update, item.create, response.create
		t.Fatalf("wrote %d envelopes, want 3", len(writes))
	}
	if writes[1]["type"] != TypeConversationItemCreate {
		t.Errorf("second envelope = %v, want %s", writes[1]["type"], TypeConversationItemCreate)
	}
	if writes[2]["type"] != TypeResponseCreate {
		t.Errorf("third envelope = %v, want %s", writes[2]["type"], TypeResponseCreate)
	}
}

func TestServerEventsPublishedInOrder(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	conn.inbound <- []byte(`{"type":"response.audio.delta","delta":"AAAA"}`)
	conn.inbound <- []byte(`{"type":"error","error":{"message":"bad"}}`)

	ev := nextEvent(t, c.Events()) // session.update echo
	if ev.Source != SourceClient {
		t.Fatalf("first event source = %s, want client echo", ev.Source)
	}

	ev = nextEvent(t, c.Events())
	if ev.Type != TypeAudioDelta || ev.Source != SourceServer {
		t.Errorf("event = %s/%s, want %s/server", ev.Type, ev.Source, TypeAudioDelta)
	}
	if ev.Data["delta"] != "AAAA" {
		t.Errorf("delta = %v, want AAAA", ev.Data["delta"])
	}

	ev = nextEvent(t, c.Events())
	if ev.Type != TypeError {
		t.Errorf("event = %s, want %s", ev.Type, TypeError)
	}
}

func TestMalformedEnvelopeDropped(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Disconnect()

	nextEvent(t, c.Events()) // session.update echo

	conn.inbound <- []byte(`{not json`)
	conn.inbound <- []byte(`{"type":"conversation.item.created"}`)

	ev := nextEvent(t, c.Events())
	if ev.Type != TypeItemCreated {
		t.Errorf("event after malformed frame = %s, want %s", ev.Type, TypeItemCreated)
	}
}

func TestRemoteCloseSynthesizesDisconnected(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	nextEvent(t, c.Events()) // session.update echo

	close(conn.inbound) // server drops the connection

	ev := nextEvent(t, c.Events())
	if ev.Type != TypeDisconnected || ev.Source != SourceServer {
		t.Errorf("event = %s/%s, want %s/server", ev.Type, ev.Source, TypeDisconnected)
	}

	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("expected event stream to close after disconnection")
		}
	case <-time.After(time.Second):
		t.Error("event stream not closed after disconnection")
	}

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
}

func TestDisconnectClosesStreamQuietly(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(conn)

	if err := c.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	nextEvent(t, c.Events()) // session.update echo

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	// A user-initiated disconnect closes the stream without a
	// synthesized disconnection event.
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			if ev.Type == TypeDisconnected {
				t.Fatal("user disconnect synthesized a disconnection event")
			}
		case <-deadline:
			t.Fatal("event stream not closed after Disconnect")
		}
	}
}

func TestBuildAddrModelQuery(t *testing.T) {
	c := NewClient("k", nil)
	c.SetURL("wss://example.test/v1/realtime")

	addr, err := c.buildAddr("some-model")
	if err != nil {
		t.Fatalf("buildAddr failed: %v", err)
	}
	if addr != "wss://example.test/v1/realtime?model=some-model" {
		t.Errorf("addr = %q", addr)
	}

	addr, err = c.buildAddr("")
	if err != nil {
		t.Fatalf("buildAddr failed: %v", err)
	}
	if addr != "wss://example.test/v1/realtime?model="+DefaultModel {
		t.Errorf("default addr = %q", addr)
	}
}
