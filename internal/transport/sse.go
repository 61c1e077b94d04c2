package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
)

// sseConnection is the push transport: a long-lived HTTP response streaming
// text/event-stream frames. Each event's data lines form one frame.
type sseConnection struct {
	url    string
	client *http.Client

	mu        sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSSE creates an unopened push connection to the given URL.
func NewSSE(rawURL string) Connection {
	return &sseConnection{
		url: rawURL,
		// No overall timeout: the stream is expected to stay open.
		client: &http.Client{},
	}
}

func (c *sseConnection) Open(ctx context.Context, h Handlers) error {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("building sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return fmt.Errorf("opening sse stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("sse stream returned status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	if h.OnOpen != nil {
		h.OnOpen()
	}
	go c.readLoop(resp, h)
	return nil
}

func (c *sseConnection) readLoop(resp *http.Response, h Handlers) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data [][]byte
	for scanner.Scan() {
		line := scanner.Bytes()

		if len(line) == 0 {
			// Blank line terminates one event.
			if len(data) > 0 {
				frame := bytes.Join(data, []byte("\n"))
				data = data[:0]
				if h.OnMessage != nil {
					h.OnMessage(frame)
				}
			}
			continue
		}

		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			rest = bytes.TrimPrefix(rest, []byte(" "))
			data = append(data, append([]byte(nil), rest...))
		}
		// Other SSE fields (event:, id:, retry:, comments) are ignored; the
		// upstream sends one JSON document per event in data lines only.
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("sse stream ended")
	}
	c.Close()
	if h.OnError != nil {
		h.OnError(err)
	}
	if h.OnClose != nil {
		h.OnClose(err)
	}
}

func (c *sseConnection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	return nil
}
