package mcp

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/lemonhq/roomchat/chat/config"
	"github.com/lemonhq/roomchat/chat/rest"
	"github.com/lemonhq/roomchat/chat/session"
	"github.com/lemonhq/roomchat/stubserver"
)

func newTestMCPClient(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(stubserver.NewServer(zerolog.Nop()))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		APIEndpoint:    srv.URL,
		SocketEndpoint: "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket",
		HTTPTimeout:    5 * time.Second,
		PingInterval:   time.Minute,
	}

	svc := rest.NewClient(cfg, zerolog.Nop())
	coord := session.NewCoordinator(cfg, svc, zerolog.Nop())
	t.Cleanup(coord.Close)

	return NewClient(coord, svc)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	if args == nil {
		args = map[string]interface{}{}
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	client := newTestMCPClient(t)

	if client.coord == nil {
		t.Error("Expected coordinator to be set")
	}
	if client.svc == nil {
		t.Error("Expected service to be set")
	}
	if client.mcpServer == nil {
		t.Error("Expected MCP server to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected GetMCPServer to return the server")
	}
}

func TestJoinSendLeave(t *testing.T) {
	client := newTestMCPClient(t)
	ctx := context.Background()

	result, err := client.handleJoinRoom(ctx, callRequest("join_room", map[string]interface{}{"nickname": "agent"}))
	if err != nil {
		t.Fatalf("join_room failed: %v", err)
	}
	joined := textContent(t, result)
	if !strings.Contains(joined, `as "agent"`) {
		t.Errorf("Expected nickname in join result, got: %s", joined)
	}

	result, err = client.handleSendMessage(ctx, callRequest("send_message", map[string]interface{}{"message": "hello"}))
	if err != nil {
		t.Fatalf("send_message failed: %v", err)
	}
	if !strings.Contains(textContent(t, result), "Sent message") {
		t.Errorf("Expected send confirmation, got: %s", textContent(t, result))
	}

	result, err = client.handleLeaveRoom(ctx, callRequest("leave_room", nil))
	if err != nil {
		t.Fatalf("leave_room failed: %v", err)
	}
	if !strings.Contains(textContent(t, result), "Left the room") {
		t.Errorf("Expected leave confirmation, got: %s", textContent(t, result))
	}
}

func TestToolsRequireSession(t *testing.T) {
	client := newTestMCPClient(t)
	ctx := context.Background()

	t.Run("send_message", func(t *testing.T) {
		result, err := client.handleSendMessage(ctx, callRequest("send_message", map[string]interface{}{"message": "x"}))
		if err != nil {
			t.Fatalf("Handler returned a protocol error: %v", err)
		}
		if !result.IsError {
			t.Error("Expected a tool error without a session")
		}
	})

	t.Run("get_feed", func(t *testing.T) {
		result, err := client.handleGetFeed(ctx, callRequest("get_feed", nil))
		if err != nil {
			t.Fatalf("Handler returned a protocol error: %v", err)
		}
		if !result.IsError {
			t.Error("Expected a tool error without a session")
		}
	})

	t.Run("leave_room", func(t *testing.T) {
		result, err := client.handleLeaveRoom(ctx, callRequest("leave_room", nil))
		if err != nil {
			t.Fatalf("Handler returned a protocol error: %v", err)
		}
		if !result.IsError {
			t.Error("Expected a tool error without a session")
		}
	})
}

func TestJoinValidation(t *testing.T) {
	client := newTestMCPClient(t)

	result, err := client.handleJoinRoom(context.Background(), callRequest("join_room", nil))
	if err != nil {
		t.Fatalf("Handler returned a protocol error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected a tool error for a missing nickname")
	}
}

func TestConnectionStatus(t *testing.T) {
	client := newTestMCPClient(t)
	ctx := context.Background()

	result, err := client.handleConnectionStatus(ctx, callRequest("connection_status", nil))
	if err != nil {
		t.Fatalf("connection_status failed: %v", err)
	}
	if !strings.Contains(textContent(t, result), "Not in a room") {
		t.Errorf("Expected 'Not in a room', got: %s", textContent(t, result))
	}

	if _, err := client.handleJoinRoom(ctx, callRequest("join_room", map[string]interface{}{"nickname": "agent"})); err != nil {
		t.Fatalf("join_room failed: %v", err)
	}

	result, err = client.handleConnectionStatus(ctx, callRequest("connection_status", nil))
	if err != nil {
		t.Fatalf("connection_status failed: %v", err)
	}
	status := textContent(t, result)
	if !strings.Contains(status, `as "agent"`) {
		t.Errorf("Expected session details in status, got: %s", status)
	}
}

func TestRoomManagement(t *testing.T) {
	client := newTestMCPClient(t)
	ctx := context.Background()

	result, err := client.handleCreateRoom(ctx, callRequest("create_room", map[string]interface{}{"name": "standup"}))
	if err != nil {
		t.Fatalf("create_room failed: %v", err)
	}
	created := textContent(t, result)
	if !strings.Contains(created, "standup") {
		t.Errorf("Expected room name in result, got: %s", created)
	}

	// Pull the room id out of the "Created room: <id>" line.
	var roomID string
	for _, line := range strings.Split(created, "\n") {
		if strings.HasPrefix(line, "Created room: ") {
			roomID = strings.TrimPrefix(line, "Created room: ")
		}
	}
	if roomID == "" {
		t.Fatalf("Could not find room id in result: %s", created)
	}

	result, err = client.handleRoomDetail(ctx, callRequest("room_detail", map[string]interface{}{"room_id": roomID}))
	if err != nil {
		t.Fatalf("room_detail failed: %v", err)
	}
	if !strings.Contains(textContent(t, result), roomID) {
		t.Errorf("Expected room id in detail, got: %s", textContent(t, result))
	}

	t.Run("unknown room", func(t *testing.T) {
		result, err := client.handleRoomDetail(ctx, callRequest("room_detail", map[string]interface{}{"room_id": "room-nope"}))
		if err != nil {
			t.Fatalf("Handler returned a protocol error: %v", err)
		}
		if !result.IsError {
			t.Error("Expected a tool error for an unknown room")
		}
	})
}

func TestGetFeed(t *testing.T) {
	client := newTestMCPClient(t)
	ctx := context.Background()

	if _, err := client.handleJoinRoom(ctx, callRequest("join_room", map[string]interface{}{"nickname": "agent"})); err != nil {
		t.Fatalf("join_room failed: %v", err)
	}

	result, err := client.handleGetFeed(ctx, callRequest("get_feed", nil))
	if err != nil {
		t.Fatalf("get_feed failed: %v", err)
	}
	// Own join echo is dropped, so right after joining the feed is empty.
	if !strings.Contains(textContent(t, result), "empty") {
		t.Errorf("Expected an empty feed right after joining, got: %s", textContent(t, result))
	}
}
