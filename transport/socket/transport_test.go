package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// testServer is a minimal socket endpoint: it upgrades the connection,
// hands the server-side conn to the test, and pipes inbound frames to a
// channel for assertions.
type testServer struct {
	server  *httptest.Server
	conns   chan *websocket.Conn
	inbound chan Frame
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		conns:   make(chan *websocket.Conn, 1),
		inbound: make(chan Frame, 64),
	}

	upgrader := websocket.Upgrader{}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ts.conns <- conn
		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			ts.inbound <- frame
		}
	}))
	t.Cleanup(ts.server.Close)

	return ts
}

func (ts *testServer) endpoint() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

// acceptConn waits for the server side of the next connection.
func (ts *testServer) acceptConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ts.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

// nextFrame waits for the next client frame received by the server.
func (ts *testServer) nextFrame(t *testing.T) Frame {
	t.Helper()
	select {
	case frame := <-ts.inbound:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func newTestTransport(ts *testServer, interval time.Duration) *Transport {
	return NewTransport(ts.endpoint(), interval, zerolog.Nop())
}

func awaitStatus(t *testing.T, ch <-chan Status, want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", want)
		}
	}
}

func TestTransportConnectHandshake(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, time.Hour)

	statuses := make(chan Status, 8)
	ids := make(chan string, 8)
	tr.OnConnectionStatus(func(s Status) { statuses <- s })
	tr.OnConnectionID(func(id string) { ids <- id })

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	if got := <-statuses; got != StatusConnecting {
		t.Errorf("Expected first status %q, got %q", StatusConnecting, got)
	}
	awaitStatus(t, statuses, StatusConnected)

	// The transport asks for its connection id right after opening.
	frame := ts.nextFrame(t)
	if frame.Action != ActionInfo {
		t.Fatalf("Expected info request, got %q", frame.Action)
	}

	conn := ts.acceptConn(t)
	reply := Frame{Action: ActionInfo, Data: json.RawMessage(`{"connectionId":"cid1"}`)}
	if err := conn.WriteJSON(reply); err != nil {
		t.Fatalf("write info reply: %v", err)
	}

	select {
	case id := <-ids:
		if id != "cid1" {
			t.Errorf("Expected connection id 'cid1', got %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection-id callback never fired")
	}

	if got := tr.ConnectionID(); got != "cid1" {
		t.Errorf("ConnectionID() = %q, want 'cid1'", got)
	}

	// Same id again must not re-fire the callback.
	if err := conn.WriteJSON(reply); err != nil {
		t.Fatalf("rewrite info reply: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	select {
	case id := <-ids:
		t.Errorf("Unexpected duplicate connection-id callback: %q", id)
	default:
	}
}

func TestTransportConnectQueryParams(t *testing.T) {
	var gotQuery string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	tr := NewTransport("ws"+strings.TrimPrefix(srv.URL, "http"), time.Hour, zerolog.Nop())
	if err := tr.Connect("chan-9", "tok-9"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	if !strings.Contains(gotQuery, "channels=chan-9") {
		t.Errorf("Query missing channel: %q", gotQuery)
	}
	if !strings.Contains(gotQuery, "x-lemon-identity=tok-9") {
		t.Errorf("Query missing identity token: %q", gotQuery)
	}
}

func TestTransportDialFailure(t *testing.T) {
	tr := NewTransport("ws://127.0.0.1:1", time.Hour, zerolog.Nop())

	statuses := make(chan Status, 8)
	tr.OnConnectionStatus(func(s Status) { statuses <- s })

	if err := tr.Connect("c1", "t1"); err == nil {
		t.Fatal("Expected dial error")
	}

	if got := <-statuses; got != StatusConnecting {
		t.Errorf("Expected %q, got %q", StatusConnecting, got)
	}
	awaitStatus(t, statuses, StatusError)
}

func TestTransportPingReply(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, time.Hour)

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	ts.nextFrame(t) // info request

	conn := ts.acceptConn(t)
	if err := conn.WriteJSON(Frame{Action: ActionPing, Data: json.RawMessage(`{"timestamp":1}`)}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	pong := ts.nextFrame(t)
	if pong.Action != ActionPong {
		t.Fatalf("Expected pong reply, got %q", pong.Action)
	}
	var payload timestampData
	if err := json.Unmarshal(pong.Data, &payload); err != nil {
		t.Fatalf("pong payload: %v", err)
	}
	if payload.Timestamp == 0 {
		t.Error("Pong must carry the current timestamp")
	}
}

func TestTransportMessageForwarding(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, time.Hour)

	messages := make(chan Frame, 8)
	tr.OnMessage(func(f Frame) { messages <- f })

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	conn := ts.acceptConn(t)

	// A malformed frame is fatal only to itself; the loop keeps reading.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	if err := conn.WriteJSON(Frame{Action: ActionMessage, Data: json.RawMessage(`{"message":"hi","author":"cid2"}`)}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	select {
	case frame := <-messages:
		if frame.Action != ActionMessage {
			t.Errorf("Expected message frame, got %q", frame.Action)
		}
		if !strings.Contains(string(frame.Data), `"hi"`) {
			t.Errorf("Payload not forwarded verbatim: %s", frame.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message callback never fired")
	}
}

func TestTransportSendChatMessage(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, time.Hour)

	t.Run("dropped when disconnected", func(t *testing.T) {
		tr.SendChatMessage("ignored") // must not panic or block
	})

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	ts.nextFrame(t) // info request

	t.Run("framed when connected", func(t *testing.T) {
		tr.SendChatMessage("hello room")

		frame := ts.nextFrame(t)
		if frame.Action != ActionMessage {
			t.Fatalf("Expected message frame, got %q", frame.Action)
		}
		var payload chatData
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			t.Fatalf("chat payload: %v", err)
		}
		if payload.Text != "hello room" {
			t.Errorf("Text = %q, want 'hello room'", payload.Text)
		}
		if payload.Sender != "user" {
			t.Errorf("Sender = %q, want 'user'", payload.Sender)
		}
		if payload.Timestamp == 0 {
			t.Error("Chat frame must carry a timestamp")
		}
	})
}

func TestTransportHeartbeat(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, 30*time.Millisecond)

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ts.nextFrame(t) // info request

	frame := ts.nextFrame(t)
	if frame.Action != ActionPing {
		t.Fatalf("Expected heartbeat ping, got %q", frame.Action)
	}

	tr.Disconnect()

	// After disconnect the heartbeat is stopped and writes are dropped.
	time.Sleep(120 * time.Millisecond)
	if got := tr.ConnectionID(); got != "" {
		t.Errorf("ConnectionID after disconnect = %q, want empty", got)
	}
}

func TestTransportDisconnect(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, time.Hour)

	t.Run("idempotent before connect", func(t *testing.T) {
		tr.Disconnect()
		tr.Disconnect()
	})

	statuses := make(chan Status, 8)
	tr.OnConnectionStatus(func(s Status) { statuses <- s })

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	awaitStatus(t, statuses, StatusConnected)

	t.Run("manual disconnect reports disconnected", func(t *testing.T) {
		tr.Disconnect()
		tr.Disconnect() // second call is a no-op
		awaitStatus(t, statuses, StatusDisconnected)
	})
}

func TestTransportServerClose(t *testing.T) {
	t.Run("clean close reports disconnected", func(t *testing.T) {
		ts := newTestServer(t)
		tr := newTestTransport(ts, time.Hour)

		statuses := make(chan Status, 8)
		tr.OnConnectionStatus(func(s Status) { statuses <- s })

		if err := tr.Connect("c1", "t1"); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		conn := ts.acceptConn(t)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		if err := conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
			t.Fatalf("write close: %v", err)
		}
		awaitStatus(t, statuses, StatusDisconnected)
	})

	t.Run("abrupt close reports error", func(t *testing.T) {
		ts := newTestServer(t)
		tr := newTestTransport(ts, time.Hour)

		statuses := make(chan Status, 8)
		tr.OnConnectionStatus(func(s Status) { statuses <- s })

		if err := tr.Connect("c1", "t1"); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		conn := ts.acceptConn(t)

		// Tear down the TCP stream without a close handshake.
		conn.UnderlyingConn().Close()
		awaitStatus(t, statuses, StatusError)
	})
}

func TestTransportCallbackReplacement(t *testing.T) {
	ts := newTestServer(t)
	tr := newTestTransport(ts, time.Hour)

	first := make(chan Frame, 1)
	second := make(chan Frame, 1)
	tr.OnMessage(func(f Frame) { first <- f })
	tr.OnMessage(func(f Frame) { second <- f }) // replaces, not appends

	if err := tr.Connect("c1", "t1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	conn := ts.acceptConn(t)
	if err := conn.WriteJSON(Frame{Action: ActionMessage, Data: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement callback never fired")
	}
	select {
	case <-first:
		t.Error("Replaced callback must not be invoked")
	default:
	}
}
