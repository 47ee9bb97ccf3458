package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lemonhq/roomchat/chat/config"
	"github.com/lemonhq/roomchat/chat/service"
)

// beaconTimeout bounds the detached leave beacon. The caller never waits on
// it, but the request itself must not linger after process teardown begins.
const beaconTimeout = 3 * time.Second

// Client implements service.RoomService against the chat REST API.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	log        zerolog.Logger
}

var _ service.RoomService = (*Client)(nil)

// NewClient creates a REST client for the configured API endpoint.
func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("component", "rest").Logger(),
	}
}

// CreateRoom creates a new room. The path segment "0" asks the server to
// assign a fresh room id.
func (c *Client) CreateRoom(ctx context.Context, body service.RoomBody) (*service.RoomView, error) {
	var room service.RoomView
	if err := c.apiCall(ctx, http.MethodPost, "/rooms/0", nil, body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// FetchRoom retrieves room details by id.
func (c *Client) FetchRoom(ctx context.Context, roomID string) (*service.RoomView, error) {
	var room service.RoomView
	params := url.Values{"roomId": {roomID}}
	if err := c.apiCall(ctx, http.MethodGet, "/public/room-detail", params, nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// EnterRoom joins the room under the given nickname and returns the node id,
// the room's channel id, and the identity token for the socket handshake.
func (c *Client) EnterRoom(ctx context.Context, body service.NodeBody) (*service.UserTokenView, error) {
	var view service.UserTokenView
	params := url.Values{"token": {""}}
	if err := c.apiCall(ctx, http.MethodPost, "/public/start-chat", params, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// LeaveRoom departs the room for the given node id.
func (c *Client) LeaveRoom(ctx context.Context, nodeID string) (*service.NodeView, error) {
	var node service.NodeView
	params := url.Values{"nodeId": {nodeID}}
	if err := c.apiCall(ctx, http.MethodPost, "/public/leave-chat", params, struct{}{}, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// UpdateNode binds the socket connection id to the node.
func (c *Client) UpdateNode(ctx context.Context, nodeID, connectionID string) (*service.NodeView, error) {
	var node service.NodeView
	params := url.Values{"nodeId": {nodeID}}
	body := map[string]string{"connectionId": connectionID}
	if err := c.apiCall(ctx, http.MethodPost, "/public/update-node", params, body, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// SendMessage posts chat text over REST. This is the write path; delivery to
// other participants happens via the realtime channel on the server side.
func (c *Client) SendMessage(ctx context.Context, body service.ChatBody) (*service.ChatView, error) {
	var chat service.ChatView
	if err := c.apiCall(ctx, http.MethodPost, "/public/send-message", nil, body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// LeaveBeacon dispatches a leave for nodeID without waiting for the response.
// Configuration is validated first and the error returned, since silently
// skipping the beacon would orphan the server-side room membership. The
// request itself runs in a detached goroutine; its outcome is only logged.
func (c *Client) LeaveBeacon(nodeID string) error {
	if err := c.cfg.ValidateAPI(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/public/leave-chat?nodeId=%s", c.cfg.APIEndpoint, url.QueryEscape(nodeID))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString("{}"))
		if err != nil {
			c.log.Error().Err(err).Msg("leave beacon request build failed")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Warn().Err(err).Str("nodeId", nodeID).Msg("leave beacon delivery failed")
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.log.Debug().Str("nodeId", nodeID).Int("status", resp.StatusCode).Msg("leave beacon delivered")
	}()

	return nil
}

// apiCall performs one JSON request against the API endpoint. Configuration
// is validated on every call so a missing endpoint is reported as such.
func (c *Client) apiCall(ctx context.Context, method, path string, params url.Values, body, result interface{}) error {
	if err := c.cfg.ValidateAPI(); err != nil {
		return err
	}

	u := c.cfg.APIEndpoint + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}
