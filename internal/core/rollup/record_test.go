package rollup

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestAccumulator_HourlyWindow(t *testing.T) {
	// Three samples in [10:00, 11:00), evaluated at 11:00 with a 5 minute
	// staleness threshold. The 10:58 sample is 2 minutes old at
	// evaluation, so it alone counts as active.
	deviceID := uuid.New()
	eval := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	w := WindowOf(time.Date(2026, 3, 2, 10, 2, 0, 0, time.UTC), time.Hour)
	threshold := 5 * time.Minute

	samples := []struct {
		ts     time.Time
		signal *float64
	}{
		{time.Date(2026, 3, 2, 10, 2, 0, 0, time.UTC), fp(-40)},
		{time.Date(2026, 3, 2, 10, 4, 0, 0, time.UTC), fp(-42)},
		{time.Date(2026, 3, 2, 10, 58, 0, 0, time.UTC), fp(-80)},
	}

	var acc Accumulator
	for _, s := range samples {
		acc.Add(s.signal, Classify(s.ts, eval, threshold))
	}

	rec := acc.Record(deviceID, w)
	require.Equal(t, deviceID, rec.DeviceID)
	require.True(t, rec.WindowStart.Equal(w.Start))
	require.True(t, rec.WindowEnd.Equal(w.End))
	require.Equal(t, int64(1), rec.ActiveMinutes)
	require.Equal(t, int64(2), rec.InactiveMinutes)
	require.InDelta(t, 100.0/3.0, rec.UptimePercentage, 1e-9)
	require.NotNil(t, rec.AvgSignal)
	require.Equal(t, -54.0, *rec.AvgSignal)
}

func TestAccumulator_MixedActivity(t *testing.T) {
	var acc Accumulator
	acc.Add(fp(-50), true)
	acc.Add(fp(-60), true)
	acc.Add(fp(-70), false)
	acc.Add(nil, true)

	rec := acc.Record(uuid.New(), Window{})
	require.Equal(t, int64(3), rec.ActiveMinutes)
	require.Equal(t, int64(1), rec.InactiveMinutes)
	require.Equal(t, 75.0, rec.UptimePercentage)
	require.NotNil(t, rec.AvgSignal)
	require.Equal(t, -60.0, *rec.AvgSignal)
}

func TestAccumulator_NullSignalCountsTowardUptimeOnly(t *testing.T) {
	var acc Accumulator
	acc.Add(nil, true)
	acc.Add(fp(-42), true)

	rec := acc.Record(uuid.New(), Window{})
	require.Equal(t, int64(2), rec.ActiveMinutes)
	require.Equal(t, 100.0, rec.UptimePercentage)
	require.NotNil(t, rec.AvgSignal)
	// The null-signal heartbeat must not drag the average toward zero.
	require.Equal(t, -42.0, *rec.AvgSignal)
}

func TestAccumulator_AllNullSignalsYieldNilAverage(t *testing.T) {
	var acc Accumulator
	acc.Add(nil, true)
	acc.Add(nil, false)
	acc.Add(nil, true)

	rec := acc.Record(uuid.New(), Window{})
	require.Nil(t, rec.AvgSignal)
	require.Equal(t, int64(2), rec.ActiveMinutes)
	require.Equal(t, int64(1), rec.InactiveMinutes)
}

func TestAccumulator_OrderIndependent(t *testing.T) {
	// The fold must produce bit-identical results however samples are
	// ordered; this is what lets partitions fan out across workers.
	signals := []float64{-33.7, -91.2, -45.000001, -60.5, -12.25}

	var forward, backward Accumulator
	for i := range signals {
		forward.Add(&signals[i], i%2 == 0)
	}
	for i := len(signals) - 1; i >= 0; i-- {
		backward.Add(&signals[i], i%2 == 0)
	}

	deviceID := uuid.New()
	w := WindowOf(time.Now(), time.Hour)

	recA := forward.Record(deviceID, w)
	recB := backward.Record(deviceID, w)
	require.Equal(t, recA, recB)
}

func TestAccumulator_Count(t *testing.T) {
	var acc Accumulator
	require.Equal(t, int64(0), acc.Count())
	acc.Add(nil, false)
	acc.Add(fp(-10), true)
	require.Equal(t, int64(2), acc.Count())
}

func TestRecordKey(t *testing.T) {
	deviceID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rec := Record{DeviceID: deviceID, WindowStart: start, WindowEnd: start.Add(time.Hour)}

	key := rec.Key()
	require.Equal(t, deviceID, key.DeviceID)
	require.True(t, key.WindowStart.Equal(start))
	require.True(t, key.WindowEnd.Equal(start.Add(time.Hour)))
}
