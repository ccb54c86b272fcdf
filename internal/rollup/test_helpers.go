package rollup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/rollup"
)

// InMemoryTelemetryStore is a test helper that implements
// storage.TelemetryStore over a slice.
type InMemoryTelemetryStore struct {
	mu      sync.Mutex
	samples []*v1.Sample
	nextSeq int64

	// QueryErr, when set, is returned by QueryRange to simulate a read
	// failure. DeleteErr does the same for DeleteOlderThan.
	QueryErr  error
	DeleteErr error
}

// NewInMemoryTelemetryStore creates an in-memory telemetry store for testing.
func NewInMemoryTelemetryStore(samples ...*v1.Sample) *InMemoryTelemetryStore {
	s := &InMemoryTelemetryStore{}
	for _, smp := range samples {
		s.nextSeq++
		smp.IngestSeq = s.nextSeq
		s.samples = append(s.samples, smp)
	}
	return s
}

func (s *InMemoryTelemetryStore) SaveSample(ctx context.Context, sample *v1.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	sample.IngestSeq = s.nextSeq
	s.samples = append(s.samples, sample)
	return nil
}

func (s *InMemoryTelemetryStore) SaveSamples(ctx context.Context, samples []*v1.Sample) error {
	for _, smp := range samples {
		if err := s.SaveSample(ctx, smp); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryTelemetryStore) QueryRange(ctx context.Context, start, end time.Time) ([]*v1.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	var out []*v1.Sample
	for _, smp := range s.samples {
		if !smp.Timestamp.Before(start) && smp.Timestamp.Before(end) {
			out = append(out, smp)
		}
	}
	return out, nil
}

func (s *InMemoryTelemetryStore) ListByDevice(ctx context.Context, deviceID uuid.UUID, start, end time.Time, limit int) ([]*v1.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*v1.Sample
	for i := len(s.samples) - 1; i >= 0 && len(out) < limit; i-- {
		smp := s.samples[i]
		if smp.DeviceID == deviceID && !smp.Timestamp.Before(start) && smp.Timestamp.Before(end) {
			out = append(out, smp)
		}
	}
	return out, nil
}

func (s *InMemoryTelemetryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}
	var kept []*v1.Sample
	var deleted int64
	for _, smp := range s.samples {
		if smp.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, smp)
	}
	s.samples = kept
	return deleted, nil
}

// Count returns the number of stored samples.
func (s *InMemoryTelemetryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// InMemoryRollupStore is a test helper that implements storage.RollupStore
// over a keyed map.
type InMemoryRollupStore struct {
	mu      sync.Mutex
	records map[rollup.Key]rollup.Record

	// FailUpserts makes the first N Upsert calls return UpsertErr.
	FailUpserts int
	UpsertErr   error

	upsertCalls int
}

// NewInMemoryRollupStore creates an in-memory rollup store for testing.
func NewInMemoryRollupStore() *InMemoryRollupStore {
	return &InMemoryRollupStore{records: make(map[rollup.Key]rollup.Record)}
}

func (s *InMemoryRollupStore) Upsert(ctx context.Context, rec rollup.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.FailUpserts > 0 {
		s.FailUpserts--
		return s.UpsertErr
	}
	s.records[rec.Key()] = rec
	return nil
}

func (s *InMemoryRollupStore) QueryRange(ctx context.Context, deviceID uuid.UUID, start, end time.Time) ([]rollup.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rollup.Record
	for key, rec := range s.records {
		if key.DeviceID == deviceID && !key.WindowStart.Before(start) && key.WindowStart.Before(end) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Get returns the stored record for a key, if any.
func (s *InMemoryRollupStore) Get(key rollup.Key) (rollup.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// Len returns the number of stored records.
func (s *InMemoryRollupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// UpsertCalls returns how many times Upsert was invoked.
func (s *InMemoryRollupStore) UpsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertCalls
}
