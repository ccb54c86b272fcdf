package rollup

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Key is the composite identity of a rollup record. At most one record
// exists per key, ever.
type Key struct {
	DeviceID    uuid.UUID
	WindowStart time.Time
	WindowEnd   time.Time
}

// Record is the windowed rollup for one device. Identity is Key; the
// metric fields are only ever replaced wholesale by the aggregator,
// never patched field-by-field.
type Record struct {
	DeviceID    uuid.UUID `json:"device_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// UptimePercentage is active sample count over total count, in [0, 100].
	UptimePercentage float64 `json:"uptime_percentage"`

	// AvgSignal is the mean signal over samples that carried a value.
	// Nil when every sample in the window had a null signal.
	AvgSignal *float64 `json:"avg_rss"`

	// ActiveMinutes and InactiveMinutes count samples, not wall-clock
	// minutes. The names come from the reporting schema, where devices
	// were assumed to report once a minute.
	ActiveMinutes   int64 `json:"active_minutes"`
	InactiveMinutes int64 `json:"inactive_minutes"`
}

// Key returns the record's composite identity.
func (r Record) Key() Key {
	return Key{DeviceID: r.DeviceID, WindowStart: r.WindowStart, WindowEnd: r.WindowEnd}
}

// Accumulator folds the samples of one (device, window) partition into
// rollup metrics. Signal values are summed as decimals, so the result is
// exact and independent of the order samples are folded in.
type Accumulator struct {
	active      int64
	total       int64
	signalSum   decimal.Decimal
	signalCount int64
}

// Add folds one sample into the accumulator. A nil signal counts toward
// uptime but not toward the signal average.
func (a *Accumulator) Add(signal *float64, active bool) {
	a.total++
	if active {
		a.active++
	}
	if signal != nil {
		a.signalSum = a.signalSum.Add(decimal.NewFromFloat(*signal))
		a.signalCount++
	}
}

// Count returns the number of samples folded so far.
func (a *Accumulator) Count() int64 {
	return a.total
}

// Record finalizes the accumulator into a rollup record for the given
// device and window. Must not be called on an empty accumulator: a
// partition with zero samples produces no record at all, by contract.
func (a *Accumulator) Record(deviceID uuid.UUID, w Window) Record {
	rec := Record{
		DeviceID:        deviceID,
		WindowStart:     w.Start,
		WindowEnd:       w.End,
		ActiveMinutes:   a.active,
		InactiveMinutes: a.total - a.active,
	}

	rec.UptimePercentage = float64(a.active) / float64(a.total) * 100

	if a.signalCount > 0 {
		avg, _ := a.signalSum.Div(decimal.NewFromInt(a.signalCount)).Float64()
		rec.AvgSignal = &avg
	}

	return rec
}
