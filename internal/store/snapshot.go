package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys for snapshotted derived state.
const (
	riskScoreKey          = "shipstream:risk_scores"
	settlementProgressKey = "shipstream:settlement_progress"
)

// Snapshot periodically persists the store's scalar derived maps to Redis so
// a restarted dashboard backend does not begin cold. Best-effort: snapshot
// failures are logged and skipped, never surfaced to ingestion.
type Snapshot struct {
	client   *redis.Client
	store    *Store
	logger   *slog.Logger
	interval time.Duration
}

// NewSnapshot connects to Redis and wraps the given store.
func NewSnapshot(ctx context.Context, redisURL string, s *Store, logger *slog.Logger) (*Snapshot, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Snapshot{
		client:   client,
		store:    s,
		logger:   logger,
		interval: 15 * time.Second,
	}, nil
}

// NewSnapshotWithClient wraps an existing Redis client. Tests use this with
// miniredis.
func NewSnapshotWithClient(client *redis.Client, s *Store, logger *slog.Logger) *Snapshot {
	return &Snapshot{
		client:   client,
		store:    s,
		logger:   logger,
		interval: 15 * time.Second,
	}
}

// Save writes the current derived maps to Redis, replacing the previous
// snapshot atomically via a pipeline.
func (sn *Snapshot) Save(ctx context.Context) error {
	riskScores := sn.store.RiskScores()
	progress := sn.store.SettlementProgressAll()

	pipe := sn.client.TxPipeline()
	pipe.Del(ctx, riskScoreKey, settlementProgressKey)

	for shipmentID, score := range riskScores {
		pipe.HSet(ctx, riskScoreKey, shipmentID, score)
	}
	for shipmentID, payload := range progress {
		data, err := json.Marshal(payload)
		if err != nil {
			sn.logger.Error("failed to marshal settlement progress", "shipment_id", shipmentID, "error", err)
			continue
		}
		pipe.HSet(ctx, settlementProgressKey, shipmentID, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Restore seeds the store's derived maps from the last snapshot. Missing keys
// are not an error — a cold start simply restores nothing.
func (sn *Snapshot) Restore(ctx context.Context) error {
	rawScores, err := sn.client.HGetAll(ctx, riskScoreKey).Result()
	if err != nil {
		return fmt.Errorf("reading risk score snapshot: %w", err)
	}
	rawProgress, err := sn.client.HGetAll(ctx, settlementProgressKey).Result()
	if err != nil {
		return fmt.Errorf("reading settlement progress snapshot: %w", err)
	}

	riskScores := make(map[string]float64, len(rawScores))
	for shipmentID, raw := range rawScores {
		var score float64
		if err := json.Unmarshal([]byte(raw), &score); err != nil {
			sn.logger.Warn("skipping unparsable risk score snapshot entry", "shipment_id", shipmentID)
			continue
		}
		riskScores[shipmentID] = score
	}

	progress := make(map[string]map[string]any, len(rawProgress))
	for shipmentID, raw := range rawProgress {
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			sn.logger.Warn("skipping unparsable settlement progress snapshot entry", "shipment_id", shipmentID)
			continue
		}
		progress[shipmentID] = payload
	}

	sn.store.RestoreDerived(riskScores, progress)

	if len(riskScores) > 0 || len(progress) > 0 {
		sn.logger.Info("restored derived state from snapshot",
			"risk_scores", len(riskScores),
			"settlement_progress", len(progress),
		)
	}
	return nil
}

// Run saves a snapshot on every tick until the context is cancelled, then
// writes one final snapshot.
func (sn *Snapshot) Run(ctx context.Context) {
	ticker := time.NewTicker(sn.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := sn.Save(saveCtx); err != nil {
				sn.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := sn.Save(ctx); err != nil {
				sn.logger.Error("snapshot failed", "error", err)
			}
		}
	}
}

// Close releases the Redis client.
func (sn *Snapshot) Close() error {
	return sn.client.Close()
}
