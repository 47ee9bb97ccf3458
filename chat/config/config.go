package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"
)

var (
	ErrMissingAPIEndpoint    = errors.New("chat API endpoint is not configured")
	ErrMissingSocketEndpoint = errors.New("socket endpoint is not configured")
	ErrInvalidEndpoint       = errors.New("invalid endpoint URL")
)

// Config carries the endpoints and tunables every chat component depends on.
// It is constructed once at startup and passed explicitly into the REST client
// and the socket transport; call sites never reach for environment variables.
type Config struct {
	// APIEndpoint is the base URL of the chat REST API, e.g. "https://chat.example.com".
	APIEndpoint string `json:"api_endpoint"`

	// SocketEndpoint is the base URL of the realtime socket, e.g. "wss://sock.example.com".
	SocketEndpoint string `json:"socket_endpoint"`

	// HTTPTimeout bounds every REST call.
	HTTPTimeout time.Duration `json:"http_timeout"`

	// PingInterval is the heartbeat period while the socket is connected.
	PingInterval time.Duration `json:"ping_interval"`
}

const (
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultPingInterval = 180 * time.Second
)

// FromEnv builds a Config from CHAT_API_ENDPOINT and CHAT_SOCKET_ENDPOINT.
// Missing values are left empty; Validate reports them. Callers that load a
// .env file must do so before calling FromEnv.
func FromEnv() *Config {
	return &Config{
		APIEndpoint:    os.Getenv("CHAT_API_ENDPOINT"),
		SocketEndpoint: os.Getenv("CHAT_SOCKET_ENDPOINT"),
		HTTPTimeout:    DefaultHTTPTimeout,
		PingInterval:   DefaultPingInterval,
	}
}

// Validate checks that both endpoints are present and parseable. It is called
// eagerly by every component that depends on the configuration, so a missing
// endpoint fails the dependent operation instead of silently targeting "".
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		return ErrMissingAPIEndpoint
	}
	if c.SocketEndpoint == "" {
		return ErrMissingSocketEndpoint
	}
	for _, endpoint := range []string{c.APIEndpoint, c.SocketEndpoint} {
		u, err := url.Parse(endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
		}
	}
	return nil
}

// ValidateAPI checks only the REST side. The leave beacon uses this so a
// socket-only misconfiguration does not block the final departure call.
func (c *Config) ValidateAPI() error {
	if c.APIEndpoint == "" {
		return ErrMissingAPIEndpoint
	}
	u, err := url.Parse(c.APIEndpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.APIEndpoint)
	}
	return nil
}

// WithDefaults returns a copy with zero-valued tunables replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	return c
}
