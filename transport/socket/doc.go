// Package socket provides the realtime transport of the roomchat client.
//
// The socket package implements:
//   - One websocket connection per room session
//   - The tagged frame protocol (info / message / ping / pong)
//   - A periodic keepalive heartbeat while connected
//   - Single-slot callback registration per event class
//   - Connection lifecycle reporting via status callbacks
//
// Protocol:
//
// Frames are JSON objects {action, data}. After the socket opens the
// transport sends an "info" request; the server answers with an "info" frame
// carrying the connection id assigned to this client. "message" frames are
// forwarded to the message callback with their payload untouched — the
// transport has no knowledge of chat semantics. An inbound "ping" is answered
// immediately with a "pong" carrying the current timestamp.
//
// Connection URL:
//
//	{endpoint}?channels={channelId}&x-lemon-identity={identityToken}
//
// State machine:
//
//	disconnected -> connecting -> connected -> disconnected | error
//
// There is no automatic reconnect; StatusReconnecting is declared for
// observers but never produced here.
//
// Concurrency:
//
// A single read-loop goroutine delivers all inbound callbacks, so observers
// see frames in network-arrival order. Writes (chat frames, heartbeat pings,
// pong replies) are serialized internally.
//
// Usage:
//
//	t := socket.NewTransport(cfg.SocketEndpoint, cfg.PingInterval, logger)
//	t.OnMessage(func(f socket.Frame) { ... })
//	t.OnConnectionID(func(id string) { ... })
//	if err := t.Connect(channelID, token); err != nil {
//		return err
//	}
//	defer t.Disconnect()
package socket
