package service

import "time"

// RoomBody is the request body for creating a room.
type RoomBody struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoomView describes a chat room as returned by the server.
type RoomView struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ChannelID string `json:"channelId"`
}

// NodeBody is the request body for entering a room. Name is the
// client-chosen nickname.
type NodeBody struct {
	Name string `json:"name"`
}

// NodeView describes one participant ("node") of a room.
type NodeView struct {
	ID           string `json:"id"`
	RoomID       string `json:"roomId,omitempty"`
	Name         string `json:"name,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
}

// TokenView carries the identity credential used for the socket handshake.
type TokenView struct {
	IdentityToken string `json:"identityToken"`
}

// UserTokenView is the enter-room response: the new node id plus the embedded
// room and token views. The field names mirror the wire contract exactly,
// including the "room$" key and the capitalized "Token".
type UserTokenView struct {
	ID    string     `json:"id"`
	Room  *RoomView  `json:"room$,omitempty"`
	Token *TokenView `json:"Token,omitempty"`
}

// ChatBody is the request body for the REST send path.
type ChatBody struct {
	NodeID  string `json:"nodeId"`
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// ChatView describes a stored chat message as returned by the server.
type ChatView struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId,omitempty"`
	NodeID    string    `json:"nodeId,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
