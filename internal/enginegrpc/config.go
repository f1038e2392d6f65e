package enginegrpc

import "time"

// Config controls the engine gRPC client/server setup.
type Config struct {
	// Address is the engine's host:port.
	Address string
	// ClientID is sent as client-id metadata on every call. Empty generates one.
	ClientID string
	// DialTimeout bounds the initial connection check. Zero skips it.
	DialTimeout time.Duration
	// MaxRecvBytes caps the size of a single state update.
	MaxRecvBytes int
	// KeepaliveInterval enables client keepalive pings when positive.
	KeepaliveInterval time.Duration
	// StopGrace bounds how long the server waits for open calls on shutdown.
	StopGrace time.Duration
}

// DefaultMaxRecvBytes allows large conversation states.
const DefaultMaxRecvBytes = 50 * 1024 * 1024

// DefaultStopGrace is used when Config.StopGrace is zero.
const DefaultStopGrace = 5 * time.Second
