package server

import (
	"net/http"
	"time"
)

// Config holds configuration for the HTTP/WebSocket server.
type Config struct {
	// Address is the address to listen on (e.g., ":3000" or "localhost:3000").
	// Default: ":3000".
	Address string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: allows all origins (not recommended for production).
	CheckOrigin func(r *http.Request) bool

	// WriteWait is the maximum time to wait when writing a snapshot to a
	// WebSocket client. Slow clients past this deadline are dropped.
	// Default: 10 seconds.
	WriteWait time.Duration

	// SendBuffer is the per-client snapshot queue size. When the queue is
	// full the oldest snapshot is replaced; clients only ever need the
	// latest state.
	// Default: 8.
	SendBuffer int

	// EnableMetrics mounts the Prometheus handler on /metrics.
	// Default: true (zero value is overridden by DefaultConfig; set
	// DisableMetrics to turn it off).
	DisableMetrics bool

	// HTTP server timeouts

	// ReadHeaderTimeout is the maximum time to read request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ReadTimeout is the maximum time to read the full request.
	// Default: 30 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to write the response. WebSocket
	// connections are exempt once hijacked.
	// Default: 0 (no limit, the state stream is long-lived).
	WriteTimeout time.Duration

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3000",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       func(r *http.Request) bool { return true },
		WriteWait:         10 * time.Second,
		SendBuffer:        8,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// withDefaults fills in defaults for any unset fields.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	defaults := DefaultConfig()
	out := *c
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.WriteWait == 0 {
		out.WriteWait = defaults.WriteWait
	}
	if out.SendBuffer == 0 {
		out.SendBuffer = defaults.SendBuffer
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = defaults.ReadTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = defaults.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	return &out
}
