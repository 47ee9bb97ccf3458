// Package stubserver is an in-memory chat backend for local development and
// integration tests. It implements the same REST lifecycle and realtime
// socket contract the client packages speak: room creation and detail,
// start-chat with token issuance, send-message, leave-chat, update-node, and
// a channel-keyed websocket hub that answers info requests with the
// server-assigned connection id and broadcasts chat and join/leave events.
package stubserver
