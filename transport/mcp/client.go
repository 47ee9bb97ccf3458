package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lemonhq/roomchat/chat/service"
	"github.com/lemonhq/roomchat/chat/session"
)

// Client exposes the chat client as MCP tools so an agent can hold a live
// room presence: join under a nickname, read the feed, send messages, leave.
// Room management tools go straight to the REST service; everything stateful
// runs through the coordinator.
type Client struct {
	coord     *session.Coordinator
	svc       service.RoomService
	mcpServer *server.MCPServer
}

// NewClient creates an MCP surface over the given coordinator and service.
func NewClient(coord *session.Coordinator, svc service.RoomService) *Client {
	c := &Client{
		coord: coord,
		svc:   svc,
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Room Chat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Room Chat - MCP Interface

Join a chat room under a nickname, exchange messages with the other
participants, and leave when done.

AVAILABLE TOOLS:
- join_room: Enter the room under a nickname (one session at a time)
- send_message: Post a chat message to the room
- get_feed: Read the message feed, including join/leave notices
- connection_status: Check the realtime connection state
- leave_room: Depart the room and clear the session
- create_room: Create a new room
- room_detail: Look up a room's details by id

Join before sending or reading; the feed starts at the moment you join.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Enter the chat room under a nickname. Only one session may be active at a time.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"nickname": map[string]interface{}{
					"type":        "string",
					"description": "Display name for this participant",
				},
			},
			Required: []string{"nickname"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "send_message",
		Description: "Post a chat message to the room. Requires an active session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Message text to post",
				},
			},
			Required: []string{"message"},
		},
	}, c.handleSendMessage)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_feed",
		Description: "Read the message feed in arrival order, including join/leave notices.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGetFeed)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "connection_status",
		Description: "Check the realtime connection state and the current session.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleConnectionStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_room",
		Description: "Depart the room and clear the session.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleLeaveRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a new chat room.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Room name",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Optional room description",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_detail",
		Description: "Look up a room's details by id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room id to look up",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomDetail)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Tool handlers

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	nickname, _ := args["nickname"].(string)
	if nickname == "" {
		return mcp.NewToolResultError("nickname is required"), nil
	}

	sess, err := c.coord.Join(ctx, nickname)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joined room %s as %q\nNode: %s\nChannel: %s\n",
		sess.RoomID, sess.Nickname, sess.ID, sess.ChannelID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	message, _ := args["message"].(string)
	if message == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	chat, err := c.coord.SendMessage(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Sent message %s", chat.ID)), nil
}

func (c *Client) handleGetFeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if c.coord.Session() == nil {
		return mcp.NewToolResultError(session.ErrNoSession.Error()), nil
	}

	feed := c.coord.Feed()
	if len(feed) == 0 {
		return mcp.NewToolResultText("The feed is empty."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Feed (%d entries):\n\n", len(feed))
	for _, entry := range feed {
		ts := entry.Timestamp.Format("15:04:05")
		if entry.Kind == session.EntryNotice {
			fmt.Fprintf(&sb, "[%s] * %s\n", ts, entry.Text)
			continue
		}
		name := entry.AuthorName
		if name == "" {
			name = entry.Author
		}
		fmt.Fprintf(&sb, "[%s] %s: %s\n", ts, name, entry.Text)
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleConnectionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := c.coord.Session()
	if sess == nil {
		return mcp.NewToolResultText("Not in a room.\nConnection: " + string(c.coord.Status())), nil
	}

	result := fmt.Sprintf("In room %s as %q\nNode: %s\nConnection: %s\n",
		sess.RoomID, sess.Nickname, sess.ID, c.coord.Status())
	if sess.ConnectionID != "" {
		result += fmt.Sprintf("Connection id: %s\n", sess.ConnectionID)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := c.coord.Leave(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Left the room."), nil
}

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	name, _ := args["name"].(string)
	description, _ := args["description"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	room, err := c.svc.CreateRoom(ctx, service.RoomBody{Name: name, Description: description})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created room: %s\nName: %s\nChannel: %s\n", room.ID, room.Name, room.ChannelID)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRoomDetail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	room, err := c.svc.FetchRoom(ctx, roomID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Room: %s\nName: %s\nChannel: %s\n", room.ID, room.Name, room.ChannelID)
	return mcp.NewToolResultText(result), nil
}
