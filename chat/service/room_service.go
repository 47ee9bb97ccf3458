package service

import "context"

// RoomService defines the REST operations the chat client consumes.
type RoomService interface {
	// Room lifecycle
	CreateRoom(ctx context.Context, body RoomBody) (*RoomView, error)
	FetchRoom(ctx context.Context, roomID string) (*RoomView, error)

	// Session lifecycle
	EnterRoom(ctx context.Context, body NodeBody) (*UserTokenView, error)
	LeaveRoom(ctx context.Context, nodeID string) (*NodeView, error)
	UpdateNode(ctx context.Context, nodeID, connectionID string) (*NodeView, error)

	// Message send path (independent of the realtime socket)
	SendMessage(ctx context.Context, body ChatBody) (*ChatView, error)

	// LeaveBeacon dispatches a non-blocking leave for nodeID and returns
	// without waiting for the response. It fails only on missing
	// configuration; delivery itself is fire-and-forget.
	LeaveBeacon(nodeID string) error
}
