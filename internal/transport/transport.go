// Package transport wraps single real-time connection attempts to the
// upstream event feed. A Connection performs exactly one attempt and retries
// nothing itself; reconnection and backoff belong to the client that owns it.
package transport

import (
	"context"
	"fmt"
	"net/url"
)

// Kind identifies one of the two upstream transports.
type Kind string

const (
	// KindDuplex is the primary bidirectional WebSocket channel.
	KindDuplex Kind = "DUPLEX"
	// KindPush is the unidirectional SSE fallback channel.
	KindPush Kind = "PUSH"
)

// Handlers receive connection lifecycle and message callbacks. Nil callbacks
// are skipped.
type Handlers struct {
	OnOpen    func()
	OnMessage func(frame []byte)
	OnError   func(err error)
	OnClose   func(reason error)
}

// Connection is one connection attempt over one transport kind. Any error
// terminates the connection unconditionally; OnError then OnClose fire at
// most once each.
type Connection interface {
	// Open establishes the connection and starts delivering frames. A
	// returned error means the attempt failed and no callbacks were invoked.
	Open(ctx context.Context, h Handlers) error
	// Close tears the connection down. Idempotent.
	Close() error
}

// Dialer constructs a Connection for the given kind and URL. The client
// injects this so tests can substitute fake connections.
type Dialer func(kind Kind, rawURL string) Connection

// DefaultDialer returns the production dialer: WebSocket for duplex, SSE for
// push.
func DefaultDialer() Dialer {
	return func(kind Kind, rawURL string) Connection {
		if kind == KindPush {
			return NewSSE(rawURL)
		}
		return NewWebSocket(rawURL)
	}
}

// Endpoint describes the two logical upstream endpoints plus an optional
// bearer token appended as a query parameter.
type Endpoint struct {
	DuplexURL string
	PushURL   string
	Token     string
}

// URL resolves the endpoint URL for a transport kind, with the token query
// parameter applied when a token is configured.
func (e Endpoint) URL(kind Kind) (string, error) {
	raw := e.DuplexURL
	if kind == KindPush {
		raw = e.PushURL
	}
	if raw == "" {
		return "", fmt.Errorf("no %s endpoint configured", kind)
	}
	if e.Token == "" {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s endpoint: %w", kind, err)
	}
	q := u.Query()
	q.Set("token", e.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
