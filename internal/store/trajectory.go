package store

import (
	"math"
	"sort"

	"github.com/nvelichkov/shipstream/internal/domain"
)

// TokenTrajectory computes the cumulative economic value series for a
// shipment's token events, ordered by timestamp ascending. The stored list is
// most-recent-first, so an explicit stable sort is required — a naive reverse
// is wrong when timestamps are missing or tied.
//
// Plain floating-point accumulation, no rounding; NaN from non-numeric source
// values propagates. Read-only; empty input yields an empty series.
func (s *Store) TokenTrajectory(shipmentID string) []domain.TrajectoryPoint {
	events := s.TokenEventsByShipment(shipmentID)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	points := make([]domain.TrajectoryPoint, 0, len(events))
	cumulative := 0.0
	for i, e := range events {
		net := e.TokenAmount*e.RiskMultiplier*e.MLAdjustment - e.BurnAmount
		cumulative += net
		points = append(points, domain.TrajectoryPoint{
			SequenceIndex:   i,
			CumulativeValue: cumulative,
			BurnFlag:        e.BurnAmount != 0 && !math.IsNaN(e.BurnAmount),
			Reliability:     e.Reliability,
		})
	}
	return points
}
