// Package archive persists every ingested event to Postgres, asynchronously
// and best-effort. The bounded in-memory store is the source of truth for the
// dashboard; the archive only exists so events survive past the retained
// window. Archive failures never block or fail ingestion.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nvelichkov/shipstream/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id            BIGSERIAL PRIMARY KEY,
	event_id      TEXT NOT NULL,
	shipment_id   TEXT,
	event_type    TEXT NOT NULL,
	event_time    TIMESTAMP WITH TIME ZONE,
	payload       JSONB,
	trace_id      TEXT,
	severity      TEXT,
	archived_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_shipment ON events (shipment_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events (event_type);
`

// Archiver buffers events on a channel and writes them from a single
// goroutine. The buffer drops on overflow rather than backpressuring the
// event client.
type Archiver struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	queue  chan domain.Event
	wg     sync.WaitGroup
}

// New connects to Postgres and ensures the events table exists.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Archiver, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring archive schema: %w", err)
	}

	return &Archiver{
		pool:   pool,
		logger: logger,
		queue:  make(chan domain.Event, 1024),
	}, nil
}

// Start launches the writer goroutine. It drains the queue until Stop closes
// it.
func (a *Archiver) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for e := range a.queue {
			a.insert(ctx, e)
		}
	}()
	a.logger.Info("event archiver started")
}

// Enqueue submits an event for archival without blocking. Overflow drops the
// event with a warning.
func (a *Archiver) Enqueue(e domain.Event) {
	select {
	case a.queue <- e:
	default:
		a.logger.Warn("archive queue full, dropping event", "event_id", e.EventID)
	}
}

func (a *Archiver) insert(ctx context.Context, e domain.Event) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		a.logger.Error("failed to marshal payload for archive", "event_id", e.EventID, "error", err)
		return
	}

	var shipmentID *string
	if e.ShipmentID != "" {
		shipmentID = &e.ShipmentID
	}
	var severity *string
	if e.Severity != "" {
		s := string(e.Severity)
		severity = &s
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO events (event_id, shipment_id, event_type, event_time, payload, trace_id, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.EventID, shipmentID, e.EventType, e.Timestamp, payload, e.TraceID, severity)
	if err != nil {
		a.logger.Error("failed to archive event", "event_id", e.EventID, "error", err)
	}
}

// Stop closes the queue, waits for the writer to drain it, and releases the
// pool.
func (a *Archiver) Stop() {
	close(a.queue)
	a.wg.Wait()
	a.pool.Close()
	a.logger.Info("event archiver stopped")
}
