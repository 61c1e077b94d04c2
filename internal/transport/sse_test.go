package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSSE_ReceivesFrames(t *testing.T) {
	frames := []string{`{"event_id":"a"}`, `{"event_id":"b"}`}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing Accept header, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
			flusher.Flush()
		}
	}))
	defer server.Close()

	conn := NewSSE(server.URL)
	defer conn.Close()

	received := make(chan string, 8)
	closed := make(chan struct{})

	err := conn.Open(context.Background(), Handlers{
		OnMessage: func(frame []byte) { received <- string(frame) },
		OnClose:   func(reason error) { close(closed) },
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	for i, want := range frames {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("frame %d = %s, want %s", i, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	// Stream ended server-side
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}
}

func TestSSE_IgnoresCommentsAndOtherFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "id: 42\nevent: update\ndata: {\"event_id\":\"a\"}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	conn := NewSSE(server.URL)
	defer conn.Close()

	received := make(chan string, 8)
	err := conn.Open(context.Background(), Handlers{
		OnMessage: func(frame []byte) { received <- string(frame) },
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	select {
	case got := <-received:
		if got != `{"event_id":"a"}` {
			t.Errorf("frame = %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	// The keepalive comment must not have produced a frame
	select {
	case extra := <-received:
		t.Errorf("unexpected extra frame: %s", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSE_NonOKStatusFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	conn := NewSSE(server.URL)

	callbacks := 0
	err := conn.Open(context.Background(), Handlers{
		OnOpen:  func() { callbacks++ },
		OnClose: func(reason error) { callbacks++ },
	})
	if err == nil {
		t.Fatal("expected open error for 503 response")
	}
	if callbacks != 0 {
		t.Errorf("failed open invoked %d callbacks, want 0", callbacks)
	}
}
