// Package rest implements service.RoomService against the chat REST API.
//
// All calls funnel through one JSON request helper that validates the
// configured endpoint, encodes the body, and maps error responses onto Go
// errors. LeaveBeacon is the one exception to the request/response shape: it
// dispatches a fire-and-forget departure from a detached goroutine so it can
// run during process shutdown.
package rest
