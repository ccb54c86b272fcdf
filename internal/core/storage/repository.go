package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/rollup"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when inserting a record whose identity already exists.
var ErrDuplicate = errors.New("record already exists")

// ErrUpsertConflict is returned when a rollup upsert loses a race with a
// concurrent writer for the same key. Safe to retry with the same record:
// recomputation is idempotent, so resubmitting cannot corrupt state.
var ErrUpsertConflict = errors.New("concurrent upsert conflict")

// TelemetryStore is the append-only raw sample store. The rollup engine
// only reads it; the retention sweeper is the only deleter.
type TelemetryStore interface {
	// SaveSample appends one raw sample and populates its IngestSeq.
	SaveSample(ctx context.Context, sample *v1.Sample) error

	// SaveSamples appends a batch of raw samples in one transaction.
	SaveSamples(ctx context.Context, samples []*v1.Sample) error

	// QueryRange fetches all samples with timestamp in [start, end),
	// across all devices, in arbitrary order. Restartable: re-querying
	// the same range any number of times is safe.
	QueryRange(ctx context.Context, start, end time.Time) ([]*v1.Sample, error)

	// ListByDevice fetches samples for one device in [start, end),
	// newest first, capped at limit. Serves the telemetry read API.
	ListByDevice(ctx context.Context, deviceID uuid.UUID, start, end time.Time, limit int) ([]*v1.Sample, error)

	// DeleteOlderThan removes samples with timestamp before cutoff and
	// returns the number deleted. Only the retention sweeper calls this,
	// strictly after a successful aggregation run.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RollupStore keeps one rollup record per (device, window) key.
type RollupStore interface {
	// Upsert inserts the record, or replaces all metric fields of the
	// existing record with the same key. Atomic per key: concurrent
	// upserts for the same key serialize with last-write-wins and no
	// field-level interleaving; disjoint keys do not block each other.
	Upsert(ctx context.Context, rec rollup.Record) error

	// QueryRange fetches records for one device with window_start in
	// [start, end), ordered by window_start ascending.
	QueryRange(ctx context.Context, deviceID uuid.UUID, start, end time.Time) ([]rollup.Record, error)
}

// DeviceStore is the device registry.
type DeviceStore interface {
	CreateDevice(ctx context.Context, device *v1.Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (*v1.Device, error)
	ListDevices(ctx context.Context, status string, limit, offset int) ([]*v1.Device, error)
	UpdateDevice(ctx context.Context, device *v1.Device) error
	DeleteDevice(ctx context.Context, id uuid.UUID) error

	// TouchLastSeen advances last_seen if the given instant is newer.
	// Best effort from ingestion; never blocks a sample write.
	TouchLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error
}

// KPIStore persists derived KPI calculations for the reporting API.
type KPIStore interface {
	SaveCalculation(ctx context.Context, calc *v1.KPICalculation) error
	ListCalculations(ctx context.Context, deviceID uuid.UUID, calculationType, timePeriod string, limit int) ([]*v1.KPICalculation, error)
}
