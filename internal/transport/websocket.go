package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConnection is the duplex transport: one WebSocket dial plus a read loop
// that surfaces each text frame as-is.
type wsConnection struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
}

// NewWebSocket creates an unopened duplex connection to the given URL.
func NewWebSocket(rawURL string) Connection {
	return &wsConnection{url: rawURL}
}

func (c *wsConnection) Open(ctx context.Context, h Handlers) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if h.OnOpen != nil {
		h.OnOpen()
	}
	go c.readLoop(h)
	return nil
}

func (c *wsConnection) readLoop(h Handlers) {
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			// Any read error terminates the connection. No retry here.
			c.Close()
			if h.OnError != nil {
				h.OnError(err)
			}
			if h.OnClose != nil {
				h.OnClose(err)
			}
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(frame)
		}
	}
}

func (c *wsConnection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
	return nil
}
