// Package session coordinates one user's participation in one chat room.
//
// The session package implements:
//   - The join protocol: enter-room REST call, socket connect, connection-id
//     binding via update-node
//   - Ownership of the Session and the message feed
//   - Classification of inbound frames into chat messages and system notices
//   - Guaranteed best-effort room departure on every exit path
//
// Lifecycle:
//
// Join acquires identity over REST, opens the realtime transport, and
// registers the three transport callbacks. The server-assigned connection id
// arrives asynchronously; the coordinator binds it to the node over REST and
// merges the updated view into the session, preserving the nickname. Leave
// calls the REST departure and always tears local state down, even when that
// call fails. Close covers teardown paths; LeaveBeacon covers abrupt process
// shutdown with a fire-and-forget departure.
//
// Guards:
//
// At most one join and at most one leave may be in flight; concurrent calls
// beyond one are rejected with sentinel errors. A failed join clears its
// in-flight flag so it can be retried.
//
// Feed:
//
// The feed is a strict arrival-order log. Join/leave protocol events authored
// by other participants are rewritten into system notices; self-originated
// echoes are dropped. Chat frames arriving before the local connection id is
// known are tolerated — classification fails open until the id resolves.
//
// Usage:
//
//	coord := session.NewCoordinator(cfg, restClient, logger)
//	defer coord.Close()
//
//	sess, err := coord.Join(ctx, "alice")
//	if err != nil {
//		return err
//	}
//	_, err = coord.SendMessage(ctx, "hello")
package session
