package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

// Sweeper deletes raw telemetry past the retention horizon. It runs
// strictly after a successful rollup run, and its cutoff is clamped so
// it can never delete a sample a future run's lookback could still read.
type Sweeper struct {
	telemetry storage.TelemetryStore
	maxAge    time.Duration
	lookback  time.Duration
}

// NewSweeper creates a retention sweeper. maxAge is how long raw samples
// are kept; lookback is the aggregator's lookback horizon, which bounds
// how recent the cutoff may ever be.
func NewSweeper(telemetry storage.TelemetryStore, maxAge, lookback time.Duration) *Sweeper {
	return &Sweeper{
		telemetry: telemetry,
		maxAge:    maxAge,
		lookback:  lookback,
	}
}

// Run deletes samples older than now−maxAge and returns how many were
// removed.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()

	cutoff := now.Add(-s.maxAge)
	if floor := now.Add(-s.lookback); cutoff.After(floor) {
		// A misconfigured retention age must not eat the lookback horizon.
		cutoff = floor
	}

	deleted, err := s.telemetry.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete samples older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		slog.Info("[Retention] Swept old telemetry", "cutoff", cutoff, "deleted", deleted)
	} else {
		slog.Debug("[Retention] No old telemetry to sweep", "cutoff", cutoff)
	}
	return deleted, nil
}
