package rollup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSweeper_DeletesPastRetention(t *testing.T) {
	deviceID := uuid.New()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	maxAge := 30 * 24 * time.Hour

	telemetry := NewInMemoryTelemetryStore(
		sample(deviceID, now.Add(-31*24*time.Hour), fp(-40)), // past retention
		sample(deviceID, now.Add(-29*24*time.Hour), fp(-42)), // inside retention
		sample(deviceID, now.Add(-time.Minute), fp(-44)),     // fresh
	)

	sweeper := NewSweeper(telemetry, maxAge, 2*time.Hour)

	deleted, err := sweeper.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Equal(t, 2, telemetry.Count())
}

func TestSweeper_CutoffClampedToLookback(t *testing.T) {
	deviceID := uuid.New()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	// Retention misconfigured shorter than the aggregation lookback.
	// The sweep must not delete samples the next run could still read.
	telemetry := NewInMemoryTelemetryStore(
		sample(deviceID, now.Add(-90*time.Minute), fp(-40)), // inside lookback
		sample(deviceID, now.Add(-3*time.Hour), fp(-42)),    // outside lookback
	)

	sweeper := NewSweeper(telemetry, 10*time.Minute, 2*time.Hour)

	deleted, err := sweeper.Run(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
	require.Equal(t, 1, telemetry.Count())
}

func TestSweeper_NothingToDelete(t *testing.T) {
	telemetry := NewInMemoryTelemetryStore(
		sample(uuid.New(), time.Now().UTC(), fp(-40)),
	)
	sweeper := NewSweeper(telemetry, 30*24*time.Hour, 2*time.Hour)

	deleted, err := sweeper.Run(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)
	require.Equal(t, 1, telemetry.Count())
}

func TestSweeper_DeleteFailure(t *testing.T) {
	telemetry := NewInMemoryTelemetryStore()
	telemetry.DeleteErr = errors.New("connection reset")
	sweeper := NewSweeper(telemetry, 30*24*time.Hour, 2*time.Hour)

	_, err := sweeper.Run(context.Background(), time.Now().UTC())
	require.Error(t, err)
}
