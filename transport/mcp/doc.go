// Package mcp provides a Model Context Protocol surface for the chat client.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for room and session operations
//   - A live chat presence driven through the session coordinator
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - join_room: Enter the room under a nickname
//   - send_message: Post a chat message to the room
//   - get_feed: Read the feed, including join/leave notices
//   - connection_status: Check the realtime connection state
//   - leave_room: Depart the room and clear the session
//   - create_room: Create a new chat room
//   - room_detail: Look up a room's details by id
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: HTTP endpoint for remote MCP integration
//
// Usage:
//
//	client := mcp.NewClient(coordinator, restClient)
//	server.ServeStdio(client.GetMCPServer())
package mcp
