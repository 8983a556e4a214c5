package source

import (
	"context"
	"fmt"

	"flipwatch/internal/market"
)

// Loader is the data-loading collaborator. It returns the cleaned metrics
// table for one period, or an error wrapping market.ErrDataUnavailable when
// the period has no usable table. Acquisition details (files, vendors,
// retries) live behind this interface, outside the core.
type Loader interface {
	Load(ctx context.Context, period market.Period) (*market.Snapshot, error)
}

// Static serves pre-built snapshots keyed by period. Used by tests and the
// simulate-alert flow.
type Static struct {
	Snapshots map[market.Period]*market.Snapshot
}

// Load returns the stored snapshot or a data-unavailable error.
func (s *Static) Load(_ context.Context, period market.Period) (*market.Snapshot, error) {
	snap, ok := s.Snapshots[period]
	if !ok {
		return nil, fmt.Errorf("%w: no table for %s", market.ErrDataUnavailable, period)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

var _ Loader = (*Static)(nil)
