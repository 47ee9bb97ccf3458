package stubserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lemonhq/roomchat/transport/socket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next frame from the peer. Client heartbeats
	// arrive well inside this window.
	readWait = 10 * time.Minute

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket connection subscribed to a channel.
type client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	channelID    string
	connectionID string
}

// Hub maintains the set of active clients per channel and broadcasts frames.
// All channel membership mutations happen on the Run goroutine.
type Hub struct {
	channels map[string]map[*client]bool

	broadcast  chan channelFrame
	register   chan *client
	unregister chan *client

	log zerolog.Logger
}

type channelFrame struct {
	channelID string
	frame     socket.Frame
}

// NewHub creates a hub with no subscribers.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		channels:   make(map[string]map[*client]bool),
		broadcast:  make(chan channelFrame),
		register:   make(chan *client),
		unregister: make(chan *client),
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case cf := <-h.broadcast:
			h.broadcastFrame(cf.channelID, cf.frame)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to channelID.
// Every connection gets a fresh server-assigned connection id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channelID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, 256),
		channelID:    channelID,
		connectionID: "conn-" + uuid.New().String(),
	}

	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

// Broadcast sends a frame to every subscriber of the channel.
func (h *Hub) Broadcast(channelID string, frame socket.Frame) {
	h.broadcast <- channelFrame{channelID: channelID, frame: frame}
}

func (h *Hub) registerClient(c *client) {
	if h.channels[c.channelID] == nil {
		h.channels[c.channelID] = make(map[*client]bool)
	}
	h.channels[c.channelID][c] = true

	h.log.Debug().
		Str("channelId", c.channelID).
		Str("connectionId", c.connectionID).
		Int("subscribers", len(h.channels[c.channelID])).
		Msg("client subscribed")
}

func (h *Hub) unregisterClient(c *client) {
	if clients, ok := h.channels[c.channelID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)

			if len(clients) == 0 {
				delete(h.channels, c.channelID)
			}

			h.log.Debug().
				Str("channelId", c.channelID).
				Int("subscribers", len(clients)).
				Msg("client unsubscribed")
		}
	}
}

func (h *Hub) broadcastFrame(channelID string, frame socket.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal broadcast frame")
		return
	}

	if clients, ok := h.channels[channelID]; ok {
		for c := range clients {
			select {
			case c.send <- data:
			default:
				// Client's send channel is full, close it.
				h.unregisterClient(c)
			}
		}
	}
}

// readPump reads frames from the connection and answers the protocol-level
// ones inline: info requests get the connection id, pings get pongs, and chat
// text is rebroadcast to the channel.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Debug().Err(err).Msg("websocket read ended")
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		c.handleFrame(data)
	}
}

func (c *client) handleFrame(data []byte) {
	var frame socket.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.hub.log.Warn().Err(err).Msg("malformed client frame dropped")
		return
	}

	switch frame.Action {
	case socket.ActionInfo:
		reply, _ := json.Marshal(socket.Frame{
			Action: socket.ActionInfo,
			Data:   mustRaw(map[string]string{"type": "connection", "connectionId": c.connectionID}),
		})
		c.enqueue(reply)

	case socket.ActionPing:
		reply, _ := json.Marshal(socket.Frame{
			Action: socket.ActionPong,
			Data:   mustRaw(map[string]int64{"timestamp": time.Now().UnixMilli()}),
		})
		c.enqueue(reply)

	case socket.ActionPong:
		// Keepalive echo from the client, nothing to do.

	case socket.ActionMessage:
		var body struct {
			Text      string `json:"text"`
			Timestamp int64  `json:"timestamp"`
		}
		if err := json.Unmarshal(frame.Data, &body); err != nil {
			c.hub.log.Warn().Err(err).Msg("malformed chat frame dropped")
			return
		}
		c.hub.Broadcast(c.channelID, socket.Frame{
			Action: socket.ActionMessage,
			Data: mustRaw(map[string]interface{}{
				"author":    c.connectionID,
				"message":   body.Text,
				"timestamp": body.Timestamp,
			}),
		})
	}
}

func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	// The hub closed the channel.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func mustRaw(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
