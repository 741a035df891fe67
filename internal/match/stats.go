package match

import (
	"context"
	"fmt"
)

type statsSource interface {
	Counts(ctx context.Context) (Stats, error)
}

// StatsAggregator derives aggregate counters from store state. It holds no state of its own.
type StatsAggregator struct {
	store statsSource
}

// NewStatsAggregator wraps a store's counting operations.
func NewStatsAggregator(store statsSource) *StatsAggregator {
	return &StatsAggregator{store: store}
}

// Snapshot returns open lobbies, all-time matches and distinct players.
func (a *StatsAggregator) Snapshot(ctx context.Context) (Stats, error) {
	stats, err := a.store.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counts: %w", ErrStoreUnavailable, err)
	}
	return stats, nil
}
