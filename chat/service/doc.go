// Package service defines the REST contract the roomchat client consumes.
//
// The service package contains:
//   - View and body types mirroring the chat server's wire format
//   - The RoomService interface implemented by chat/rest
//
// Core Interface:
//
// RoomService covers the full room/session lifecycle: create and fetch rooms,
// enter and leave a room, bind the socket connection id to a node, and send
// chat text over REST. LeaveBeacon is the fire-and-forget variant of leave
// used during process shutdown.
//
// Wire Format:
//
// The types keep the server's exact JSON keys, including the irregular ones
// ("room$" for the embedded room view, capitalized "Token"). Consumers should
// treat all ids and tokens as opaque strings.
//
// Usage:
//
//	var svc service.RoomService = rest.NewClient(cfg)
//	view, err := svc.EnterRoom(ctx, service.NodeBody{Name: "alice"})
package service
