package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lemonhq/roomchat/chat/config"
	"github.com/lemonhq/roomchat/chat/service"
	"github.com/lemonhq/roomchat/transport/socket"
)

var (
	ErrAlreadyJoined   = errors.New("a session is already active")
	ErrJoinInFlight    = errors.New("a join is already in flight")
	ErrNoSession       = errors.New("no active session")
	ErrLeaveInFlight   = errors.New("a leave is already in flight")
	ErrInvalidResponse = errors.New("invalid enter-room response")
)

// closeTimeout bounds the best-effort leave call during Close.
const closeTimeout = 5 * time.Second

// Transport is the slice of the socket transport the coordinator drives.
type Transport interface {
	Connect(channelID, identityToken string) error
	SendChatMessage(text string)
	OnConnectionStatus(cb func(socket.Status))
	OnMessage(cb func(socket.Frame))
	OnConnectionID(cb func(string))
	ConnectionID() string
	Disconnect()
}

// TranscriptStore receives every feed entry for optional local persistence.
// Failures are logged and never interrupt the feed.
type TranscriptStore interface {
	Append(entry FeedEntry) error
}

// Coordinator sequences the join protocol, owns the Session and the feed, and
// guarantees an at-least-attempted room departure on every exit path. All
// exported accessors return snapshots; callers never touch the socket.
type Coordinator struct {
	cfg          *config.Config
	svc          service.RoomService
	log          zerolog.Logger
	transcript   TranscriptStore
	newTransport func() Transport

	mu        sync.Mutex
	transport Transport
	session   *Session
	feed      []FeedEntry
	status    socket.Status
	joining   bool
	leaving   bool
}

// NewCoordinator creates a coordinator with no active session.
func NewCoordinator(cfg *config.Config, svc service.RoomService, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		cfg:    cfg,
		svc:    svc,
		log:    log.With().Str("component", "session").Logger(),
		status: socket.StatusDisconnected,
	}
	c.newTransport = func() Transport {
		return socket.NewTransport(cfg.SocketEndpoint, cfg.PingInterval, log)
	}
	return c
}

// NewCoordinatorWithTranscript additionally persists every feed entry to the
// given store, best-effort.
func NewCoordinatorWithTranscript(cfg *config.Config, svc service.RoomService, store TranscriptStore, log zerolog.Logger) *Coordinator {
	c := NewCoordinator(cfg, svc, log)
	c.transcript = store
	return c
}

// Join enters the room under the given nickname, opens the realtime socket,
// and wires the handshake that binds the server-assigned connection id back
// to the node. At most one join may be in flight; a second concurrent call is
// rejected. Join either fails wholly or produces a fully usable session.
func (c *Coordinator) Join(ctx context.Context, nickname string) (*Session, error) {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyJoined
	}
	if c.joining {
		c.mu.Unlock()
		return nil, ErrJoinInFlight
	}
	c.joining = true
	c.mu.Unlock()

	// The in-flight flag clears on every path so a failed join can be retried.
	defer func() {
		c.mu.Lock()
		c.joining = false
		c.mu.Unlock()
	}()

	view, err := c.svc.EnterRoom(ctx, service.NodeBody{Name: nickname})
	if err != nil {
		return nil, fmt.Errorf("enter room: %w", err)
	}

	// Defensive validation of the external contract.
	if view.Room == nil || view.Room.ChannelID == "" {
		return nil, fmt.Errorf("%w: missing channel id", ErrInvalidResponse)
	}
	if view.Token == nil || view.Token.IdentityToken == "" {
		return nil, fmt.Errorf("%w: missing identity token", ErrInvalidResponse)
	}

	sess := Session{
		ID:            view.ID,
		RoomID:        view.Room.ID,
		ChannelID:     view.Room.ChannelID,
		IdentityToken: view.Token.IdentityToken,
		Nickname:      nickname,
	}

	tr := c.newTransport()
	tr.OnConnectionStatus(c.onStatus)
	tr.OnMessage(c.onFrame)
	tr.OnConnectionID(c.onConnectionID)

	// Publish before connecting: the connection-id callback needs the node id
	// and may fire as soon as the socket opens.
	c.mu.Lock()
	c.session = &sess
	c.transport = tr
	c.mu.Unlock()

	if err := tr.Connect(sess.ChannelID, sess.IdentityToken); err != nil {
		tr.Disconnect()
		c.mu.Lock()
		c.session = nil
		c.transport = nil
		c.feed = nil
		c.mu.Unlock()
		return nil, fmt.Errorf("socket connect: %w", err)
	}

	c.log.Info().Str("nodeId", sess.ID).Str("channelId", sess.ChannelID).Msg("joined room")
	snapshot := sess
	return &snapshot, nil
}

// Leave departs the room. The REST call's failure is logged, never surfaced:
// local state is torn down regardless so the caller is always "left" locally.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.leaving {
		c.mu.Unlock()
		return ErrLeaveInFlight
	}
	c.leaving = true
	nodeID := c.session.ID
	c.mu.Unlock()

	defer c.teardown()

	if _, err := c.svc.LeaveRoom(ctx, nodeID); err != nil {
		c.log.Error().Err(err).Str("nodeId", nodeID).Msg("leave room failed")
	} else {
		c.log.Info().Str("nodeId", nodeID).Msg("left room")
	}
	return nil
}

// Close is the unmount guarantee: one best-effort leave for the current node
// (log-only on failure) and a forced transport disconnect.
func (c *Coordinator) Close() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if _, err := c.svc.LeaveRoom(ctx, sess.ID); err != nil {
			c.log.Error().Err(err).Str("nodeId", sess.ID).Msg("cleanup leave failed")
		}
	}
	c.teardown()
}

// LeaveBeacon is the page-hide analogue used on shutdown signals: disconnect
// the socket synchronously and dispatch a fire-and-forget leave. A missing
// endpoint configuration fails closed — it is returned to the caller, since
// the alternative is an orphaned server-side room membership.
func (c *Coordinator) LeaveBeacon() error {
	c.mu.Lock()
	sess := c.session
	tr := c.transport
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	if tr != nil {
		tr.Disconnect()
	}

	if err := c.svc.LeaveBeacon(sess.ID); err != nil {
		c.log.Error().Err(err).Str("nodeId", sess.ID).Msg("leave beacon failed; membership may be orphaned")
		return err
	}
	return nil
}

// SendMessage posts chat text over REST, independent of the realtime socket.
// The caller is responsible for serializing sends; the coordinator enforces
// only that a session exists.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (*service.ChatView, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	body := service.ChatBody{
		NodeID:  c.session.ID,
		RoomID:  c.session.RoomID,
		Message: text,
	}
	c.mu.Unlock()

	return c.svc.SendMessage(ctx, body)
}

// SendSocketMessage writes chat text directly onto the socket. Dropped when
// disconnected, matching the transport's contract.
func (c *Coordinator) SendSocketMessage(text string) {
	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()
	if tr != nil {
		tr.SendChatMessage(text)
	}
}

// Session returns a snapshot of the active session, or nil when not joined.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	snapshot := *c.session
	return &snapshot
}

// Feed returns a copy of the message feed in arrival order.
func (c *Coordinator) Feed() []FeedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	feed := make([]FeedEntry, len(c.feed))
	copy(feed, c.feed)
	return feed
}

// Status returns the last observed transport status.
func (c *Coordinator) Status() socket.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connected reports whether the realtime socket is currently open.
func (c *Coordinator) Connected() bool {
	return c.Status() == socket.StatusConnected
}

// onStatus mirrors transport status into the coordinator.
func (c *Coordinator) onStatus(status socket.Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	c.log.Debug().Str("status", string(status)).Msg("connection status")
}

// onConnectionID binds the server-assigned connection id to the node over
// REST and refreshes the stored session with the updated view.
func (c *Coordinator) onConnectionID(connectionID string) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()

	if sess == nil || sess.ID == "" {
		c.log.Error().Msg("connection id received without a node id")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTPTimeout)
	defer cancel()

	updated, err := c.svc.UpdateNode(ctx, sess.ID, connectionID)
	if err != nil {
		c.log.Error().Err(err).Str("connectionId", connectionID).Msg("update node failed")
		return
	}

	c.mu.Lock()
	if c.session != nil {
		merged := mergeSession(*c.session, updated)
		merged.ConnectionID = connectionID
		c.session = &merged
	}
	c.mu.Unlock()

	c.log.Debug().Str("connectionId", connectionID).Msg("node identified")
}

// onFrame classifies one inbound message frame. Join/leave events from other
// participants become system notices; self-originated echoes are dropped;
// everything else is appended verbatim as chat. When the local connection id
// is still unknown, all join/leave events are treated as foreign.
func (c *Coordinator) onFrame(frame socket.Frame) {
	if frame.Action != socket.ActionMessage {
		return
	}

	var payload chatPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		c.log.Warn().Err(err).Msg("undecodable chat payload dropped")
		return
	}

	if payload.Action == "join" || payload.Action == "leave" {
		c.mu.Lock()
		var local string
		if c.transport != nil {
			local = c.transport.ConnectionID()
		}
		c.mu.Unlock()

		if payload.Author == local {
			return
		}

		name := payload.AuthorName
		if name == "" {
			name = "anonymous"
		}
		verb := "joined"
		if payload.Action == "leave" {
			verb = "left"
		}
		c.append(FeedEntry{
			Kind:      EntryNotice,
			Text:      fmt.Sprintf("%s %s", name, verb),
			Timestamp: payload.arrivedAt(),
		})
		return
	}

	c.append(FeedEntry{
		Kind:       EntryChat,
		Author:     payload.Author,
		AuthorName: payload.AuthorName,
		Text:       payload.text(),
		Timestamp:  payload.arrivedAt(),
	})
}

// append adds one entry to the feed and persists it best-effort.
func (c *Coordinator) append(entry FeedEntry) {
	c.mu.Lock()
	c.feed = append(c.feed, entry)
	c.mu.Unlock()

	if c.transcript != nil {
		if err := c.transcript.Append(entry); err != nil {
			c.log.Warn().Err(err).Msg("transcript append failed")
		}
	}
}

// teardown clears all local state and closes the socket. Every exit path
// funnels through here so the client can never be stuck "leaving forever".
func (c *Coordinator) teardown() {
	c.mu.Lock()
	tr := c.transport
	c.transport = nil
	c.session = nil
	c.feed = nil
	c.joining = false
	c.leaving = false
	c.mu.Unlock()

	if tr != nil {
		tr.Disconnect()
	}
}
