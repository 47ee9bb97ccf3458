package socket

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Status is the observable connection state of a Transport.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"

	// StatusReconnecting is a declared observer-visible state for a future
	// retry policy. The transport itself never produces it; there is no
	// automatic reconnect.
	StatusReconnecting Status = "reconnecting"
)

// Frame actions of the socket protocol.
const (
	ActionInfo    = "info"
	ActionMessage = "message"
	ActionPing    = "ping"
	ActionPong    = "pong"
)

// Frame is one tagged protocol message. Data is kept raw for "message"
// frames; classification of chat payloads is the caller's concern.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// infoData is the payload of an "info" frame.
type infoData struct {
	Type         string `json:"type,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
}

// timestampData is the payload of ping/pong keepalive frames.
type timestampData struct {
	Timestamp int64 `json:"timestamp"`
}

// chatData is the payload of an outbound chat frame.
type chatData struct {
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// Transport owns exactly one websocket connection. Callbacks are single-slot:
// registering a new one replaces the previous observer for that event class.
// All inbound callbacks are invoked from a single read loop goroutine, so
// delivery order equals network-arrival order.
type Transport struct {
	endpoint     string
	pingInterval time.Duration
	log          zerolog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	connectionID string
	manualClose  bool
	pingStop     chan struct{}

	statusCallback       func(Status)
	messageCallback      func(Frame)
	connectionIDCallback func(string)
}

// NewTransport creates a disconnected transport for the given socket endpoint.
func NewTransport(endpoint string, pingInterval time.Duration, log zerolog.Logger) *Transport {
	return &Transport{
		endpoint:     endpoint,
		pingInterval: pingInterval,
		log:          log.With().Str("component", "socket").Logger(),
	}
}

// OnConnectionStatus registers the status observer, replacing any previous one.
func (t *Transport) OnConnectionStatus(cb func(Status)) {
	t.mu.Lock()
	t.statusCallback = cb
	t.mu.Unlock()
}

// OnMessage registers the message observer, replacing any previous one.
func (t *Transport) OnMessage(cb func(Frame)) {
	t.mu.Lock()
	t.messageCallback = cb
	t.mu.Unlock()
}

// OnConnectionID registers the connection-id observer, replacing any previous one.
func (t *Transport) OnConnectionID(cb func(string)) {
	t.mu.Lock()
	t.connectionIDCallback = cb
	t.mu.Unlock()
}

// ConnectionID returns the last server-assigned connection id, or "" before
// the handshake completes.
func (t *Transport) ConnectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectionID
}

// Connect dials the socket endpoint for the given channel and identity token.
// On success it requests the server-assigned connection id and starts the
// heartbeat. Outcomes are also observable through the status callback.
func (t *Transport) Connect(channelID, identityToken string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return fmt.Errorf("transport already connected")
	}
	t.manualClose = false
	t.mu.Unlock()

	t.emitStatus(StatusConnecting)

	wsURL := fmt.Sprintf("%s?channels=%s&x-lemon-identity=%s",
		t.endpoint, url.QueryEscape(channelID), url.QueryEscape(identityToken))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.emitStatus(StatusError)
		return fmt.Errorf("socket dial failed: %w", err)
	}

	stop := make(chan struct{})
	t.mu.Lock()
	t.conn = conn
	t.pingStop = stop
	t.mu.Unlock()

	t.log.Debug().Str("channelId", channelID).Msg("socket connected")
	t.emitStatus(StatusConnected)

	// Learn our server-assigned connection id.
	t.writeFrame(Frame{Action: ActionInfo, Data: mustMarshal(infoData{Type: "info"})})

	go t.heartbeat(stop)
	go t.readLoop(conn)

	return nil
}

// SendChatMessage frames and writes chat text. It is a no-op when the socket
// is not open; callers are expected to disable input while disconnected.
func (t *Transport) SendChatMessage(text string) {
	t.mu.Lock()
	open := t.conn != nil
	t.mu.Unlock()
	if !open {
		return
	}

	t.writeFrame(Frame{
		Action: ActionMessage,
		Data:   mustMarshal(chatData{Text: text, Sender: "user", Timestamp: time.Now().UnixMilli()}),
	})
}

// Disconnect marks the close as intentional, stops the heartbeat, clears the
// connection id, and closes the socket. Safe to call repeatedly or before
// Connect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.manualClose = true
	t.connectionID = ""
	if t.pingStop != nil {
		close(t.pingStop)
		t.pingStop = nil
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// readLoop delivers inbound frames until the connection dies. A malformed
// frame aborts only its own dispatch; the loop keeps reading.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			manual := t.manualClose
			if t.conn == conn {
				t.conn = nil
				if t.pingStop != nil {
					close(t.pingStop)
					t.pingStop = nil
				}
			}
			t.mu.Unlock()

			if manual || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emitStatus(StatusDisconnected)
			} else {
				t.log.Warn().Err(err).Msg("socket read failed")
				t.emitStatus(StatusError)
			}
			return
		}

		t.dispatch(data)
	}
}

// dispatch decodes one inbound frame and routes it by action.
func (t *Transport) dispatch(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.log.Warn().Err(err).Msg("malformed socket frame dropped")
		return
	}

	switch frame.Action {
	case ActionInfo:
		var info infoData
		if err := json.Unmarshal(frame.Data, &info); err != nil {
			t.log.Warn().Err(err).Msg("malformed info payload dropped")
			return
		}
		if info.ConnectionID == "" {
			return
		}
		t.mu.Lock()
		changed := info.ConnectionID != t.connectionID
		if changed {
			t.connectionID = info.ConnectionID
		}
		cb := t.connectionIDCallback
		t.mu.Unlock()
		if changed && cb != nil {
			cb(info.ConnectionID)
		}

	case ActionMessage:
		t.mu.Lock()
		cb := t.messageCallback
		t.mu.Unlock()
		if cb != nil {
			cb(frame)
		}

	case ActionPing:
		// Liveness echo; does not affect connection state.
		t.writeFrame(Frame{Action: ActionPong, Data: mustMarshal(timestampData{Timestamp: time.Now().UnixMilli()})})

	default:
		t.log.Debug().Str("action", frame.Action).Msg("unhandled socket frame")
	}
}

// heartbeat emits a keepalive ping every pingInterval until stopped.
func (t *Transport) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.writeFrame(Frame{Action: ActionPing, Data: mustMarshal(timestampData{Timestamp: time.Now().UnixMilli()})})
		case <-stop:
			return
		}
	}
}

// writeFrame serializes writes; drops the frame when the socket is closed.
func (t *Transport) writeFrame(frame Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return
	}
	if err := t.conn.WriteJSON(frame); err != nil {
		t.log.Warn().Err(err).Str("action", frame.Action).Msg("socket write failed")
	}
}

// emitStatus invokes the status callback outside the lock.
func (t *Transport) emitStatus(status Status) {
	t.mu.Lock()
	cb := t.statusCallback
	t.mu.Unlock()
	if cb != nil {
		cb(status)
	}
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
