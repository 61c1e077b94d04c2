// Package client maintains a single live connection to the upstream event
// feed, falling back from the duplex transport to the push transport and
// reconnecting with capped backoff. Decoded events fan out synchronously to
// registered subscribers.
package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvelichkov/shipstream/internal/domain"
	"github.com/nvelichkov/shipstream/internal/transport"
)

// Phase is the client's position in its connection state machine.
type Phase string

const (
	PhaseDisconnected       Phase = "DISCONNECTED"
	PhaseConnecting         Phase = "CONNECTING"
	PhaseOpen               Phase = "OPEN"
	PhaseReconnectScheduled Phase = "RECONNECT_SCHEDULED"
	PhaseClosed             Phase = "CLOSED"
)

// State is a snapshot of the connection state machine, exposed so the
// dashboard can drive a connectivity banner without the client ever raising
// errors to callers.
type State struct {
	Kind     transport.Kind `json:"kind"`
	Phase    Phase          `json:"phase"`
	Attempts int            `json:"attempts"`
}

// Subscriber receives each successfully decoded event, synchronously, in
// registration order.
type Subscriber func(e *domain.Event)

type subscription struct {
	id int
	fn Subscriber
}

// Client owns at most one transport connection at a time.
//
// Transport selection is sticky: the duplex transport is preferred, but after
// its first failure the client uses the push transport for the remainder of
// the session and never retries duplex.
type Client struct {
	endpoint  transport.Endpoint
	dial      transport.Dialer
	logger    *slog.Logger
	baseDelay time.Duration
	maxDelay  time.Duration

	mu        sync.Mutex
	ctx       context.Context
	phase     Phase
	kind      transport.Kind
	attempts  int
	gen       int
	conn      transport.Connection
	timer     *time.Timer
	subs      []subscription
	nextSubID int
	closed    bool

	dropped atomic.Uint64
}

// New creates a client using the production transports.
func New(endpoint transport.Endpoint, logger *slog.Logger) *Client {
	return NewWithDialer(endpoint, transport.DefaultDialer(), logger)
}

// NewWithDialer creates a client with an injected dialer. Tests use this to
// substitute fake connections.
func NewWithDialer(endpoint transport.Endpoint, dial transport.Dialer, logger *slog.Logger) *Client {
	return &Client{
		endpoint:  endpoint,
		dial:      dial,
		logger:    logger,
		baseDelay: 500 * time.Millisecond,
		maxDelay:  10 * time.Second,
		phase:     PhaseDisconnected,
		kind:      transport.KindDuplex,
	}
}

// Subscribe registers a callback for decoded events and returns an
// unsubscribe func. Unsubscribing during dispatch takes effect on the next
// message.
func (c *Client) Subscribe(fn Subscriber) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return func() {}
	}

	id := c.nextSubID
	c.nextSubID++
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Connect starts the connection state machine. It returns immediately; all
// failures are handled internally via backoff, never surfaced to the caller.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.phase != PhaseDisconnected {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.mu.Unlock()

	c.connect()
}

// connect performs one connection attempt at the current transport kind.
// Also the reconnect timer's target: it must re-check the closed flag because
// a timer may already be in flight when Close is called.
func (c *Client) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseConnecting
	c.gen++
	gen := c.gen
	kind := c.kind
	ctx := c.ctx
	c.mu.Unlock()

	rawURL, err := c.endpoint.URL(kind)
	if err != nil {
		c.logger.Error("unusable endpoint", "kind", kind, "error", err)
		c.scheduleReconnect(gen, true, err)
		return
	}

	conn := c.dial(kind, rawURL)
	h := transport.Handlers{
		OnOpen: func() { c.handleOpen(gen) },
		OnMessage: func(frame []byte) {
			c.handleFrame(gen, frame)
		},
		OnError: func(err error) {
			c.logger.Warn("transport error", "kind", kind, "error", err)
		},
		OnClose: func(reason error) {
			c.scheduleReconnect(gen, false, reason)
		},
	}

	if err := conn.Open(ctx, h); err != nil {
		c.logger.Warn("connection attempt failed", "kind", kind, "error", err)
		c.scheduleReconnect(gen, true, err)
		return
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) handleOpen(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseOpen
	c.attempts = 0
	kind := c.kind
	c.mu.Unlock()

	c.logger.Info("connected to event feed", "kind", kind)
}

// scheduleReconnect moves the machine to ReconnectScheduled. failedOpen
// distinguishes a failed connection attempt (counts toward backoff) from an
// established connection dropping (attempt counter already reset on open).
func (c *Client) scheduleReconnect(gen int, failedOpen bool, reason error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil

	if failedOpen {
		c.attempts++
	}

	// Sticky fallback: the first duplex failure downgrades to push for the
	// rest of the session.
	if c.kind == transport.KindDuplex {
		c.kind = transport.KindPush
		c.logger.Warn("duplex transport failed, falling back to push", "reason", reason)
	}

	delay := time.Duration(c.attempts) * c.baseDelay
	if delay > c.maxDelay {
		delay = c.maxDelay
	}

	c.phase = PhaseReconnectScheduled
	c.timer = time.AfterFunc(delay, c.connect)
	kind := c.kind
	attempts := c.attempts
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled",
		"kind", kind,
		"attempt", attempts,
		"delay", delay,
		"reason", reason,
	)
}

// handleFrame decodes one wire frame and fans it out. Malformed frames are
// dropped without disturbing connection or attempt state; a counter is kept
// so operators can notice a misbehaving upstream.
func (c *Client) handleFrame(gen int, frame []byte) {
	event, err := domain.DecodeEvent(frame)
	if err != nil {
		c.dropped.Add(1)
		c.logger.Debug("dropping malformed frame", "error", err)
		return
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		// Frame from an abandoned transport; lost, never reordered.
		c.mu.Unlock()
		return
	}
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(event)
	}
}

// Close tears down the active connection, clears subscribers, and prevents
// any in-flight reconnect timer from dialing again. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.phase = PhaseClosed
	if c.timer != nil {
		c.timer.Stop()
	}
	conn := c.conn
	c.conn = nil
	c.subs = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.logger.Info("event client closed")
}

// State returns a snapshot of the connection state machine.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Kind: c.kind, Phase: c.phase, Attempts: c.attempts}
}

// DroppedFrames returns the number of frames dropped due to decode failures.
func (c *Client) DroppedFrames() uint64 {
	return c.dropped.Load()
}
