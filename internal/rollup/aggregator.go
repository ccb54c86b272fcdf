package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/rollup"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

const (
	defaultWindowSize      = time.Hour
	defaultStaleThreshold  = 5 * time.Minute
	defaultLookbackWindows = 2
	defaultWorkerCount     = 10
	defaultUpsertRetries   = 3
)

// Options controls window geometry and throughput for rollup runs.
type Options struct {
	WindowSize     time.Duration
	StaleThreshold time.Duration

	// LookbackWindows is how many windows each run re-aggregates, the
	// current one included. Two windows means the trailing window keeps
	// being recomputed until it leaves the horizon, which is what makes
	// late-arriving samples converge.
	LookbackWindows int

	WorkerCount   int
	UpsertRetries int
}

// DefaultOptions returns the standard hourly-window configuration.
func DefaultOptions() Options {
	return Options{
		WindowSize:      defaultWindowSize,
		StaleThreshold:  defaultStaleThreshold,
		LookbackWindows: defaultLookbackWindows,
		WorkerCount:     defaultWorkerCount,
		UpsertRetries:   defaultUpsertRetries,
	}
}

func (o Options) normalized() Options {
	n := o
	if n.WindowSize <= 0 {
		n.WindowSize = defaultWindowSize
	}
	if n.StaleThreshold <= 0 {
		n.StaleThreshold = defaultStaleThreshold
	}
	if n.LookbackWindows < 1 {
		n.LookbackWindows = defaultLookbackWindows
	}
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultWorkerCount
	}
	if n.UpsertRetries < 1 {
		n.UpsertRetries = defaultUpsertRetries
	}
	return n
}

// Result summarizes one rollup run for the scheduler and for logging.
type Result struct {
	WindowsUpserted int
	SamplesRead     int
	SamplesSkipped  int
}

// Aggregator converts raw telemetry into per-(device, window) rollup
// records and upserts them. Each run recomputes every window inside the
// lookback horizon from the full raw sample set, so runs are idempotent
// and safe to repeat or overlap: the store's keyed upsert is the only
// synchronization the engine relies on.
type Aggregator struct {
	telemetry storage.TelemetryStore
	rollups   storage.RollupStore
	opts      Options
}

// NewAggregator creates a rollup aggregator over the given stores.
func NewAggregator(telemetry storage.TelemetryStore, rollups storage.RollupStore, opts Options) *Aggregator {
	return &Aggregator{
		telemetry: telemetry,
		rollups:   rollups,
		opts:      opts.normalized(),
	}
}

// Run executes one full read-compute-upsert cycle evaluated at the given
// instant. The upsert phase only begins after every partition has been
// computed; a telemetry read failure therefore aborts with zero writes.
func (a *Aggregator) Run(ctx context.Context, evalInstant time.Time) (Result, error) {
	evalInstant = evalInstant.UTC()

	currentWindow := rollup.WindowOf(evalInstant, a.opts.WindowSize)
	from := currentWindow.Start.Add(-time.Duration(a.opts.LookbackWindows-1) * a.opts.WindowSize)

	samples, err := a.telemetry.QueryRange(ctx, from, evalInstant)
	if err != nil {
		return Result{}, fmt.Errorf("query telemetry range [%s, %s): %w",
			from.Format(time.RFC3339), evalInstant.Format(time.RFC3339), err)
	}

	var result Result
	result.SamplesRead = len(samples)

	if len(samples) == 0 {
		slog.Debug("[Rollup] No samples in lookback horizon", "from", from, "until", evalInstant)
		return result, nil
	}

	groups, skipped := a.partition(samples)
	result.SamplesSkipped = skipped

	records := a.computePartitions(groups, evalInstant)

	upserted, err := a.upsertAll(ctx, records)
	result.WindowsUpserted = upserted
	if err != nil {
		return result, err
	}

	slog.Info("[Rollup] Run complete",
		"eval_instant", evalInstant,
		"samples_read", result.SamplesRead,
		"samples_skipped", result.SamplesSkipped,
		"windows_upserted", result.WindowsUpserted,
	)
	return result, nil
}

// partition groups samples by (device, window). Malformed samples are
// skipped and counted rather than failing the run.
func (a *Aggregator) partition(samples []*v1.Sample) (map[rollup.Key][]*v1.Sample, int) {
	groups := make(map[rollup.Key][]*v1.Sample)
	skipped := 0

	for _, smp := range samples {
		if err := smp.Validate(); err != nil {
			slog.Warn("[Rollup] Skipping malformed sample",
				"ingest_seq", smp.IngestSeq,
				"error", err,
			)
			skipped++
			continue
		}

		w := rollup.WindowOf(smp.Timestamp, a.opts.WindowSize)
		key := rollup.Key{DeviceID: smp.DeviceID, WindowStart: w.Start, WindowEnd: w.End}
		groups[key] = append(groups[key], smp)
	}

	return groups, skipped
}

// computePartitions folds each partition into a rollup record. Partitions
// are independent, so they fan out across a bounded worker pool; the
// decimal accumulator keeps each result identical regardless of worker
// scheduling or sample order.
func (a *Aggregator) computePartitions(groups map[rollup.Key][]*v1.Sample, evalInstant time.Time) []rollup.Record {
	type job struct {
		key     rollup.Key
		samples []*v1.Sample
	}

	workerCount := a.opts.WorkerCount
	if workerCount > len(groups) {
		workerCount = len(groups)
	}
	if workerCount <= 0 {
		return nil
	}

	jobs := make(chan job, len(groups))
	results := make(chan rollup.Record, len(groups))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				var acc rollup.Accumulator
				for _, smp := range j.samples {
					active := rollup.Classify(smp.Timestamp, evalInstant, a.opts.StaleThreshold)
					acc.Add(smp.Signal, active)
				}
				results <- acc.Record(j.key.DeviceID, rollup.Window{Start: j.key.WindowStart, End: j.key.WindowEnd})
			}
		}()
	}

	for key, smps := range groups {
		jobs <- job{key: key, samples: smps}
	}
	close(jobs)

	wg.Wait()
	close(results)

	records := make([]rollup.Record, 0, len(groups))
	for rec := range results {
		records = append(records, rec)
	}
	return records
}

// upsertAll writes every computed record. Keys are disjoint within one
// run, so upserts proceed in parallel; a conflict with a concurrent run
// is retried with the same record, which is safe because recomputation
// is idempotent. Returns the number of records upserted.
func (a *Aggregator) upsertAll(ctx context.Context, records []rollup.Record) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.WorkerCount)

	var mu sync.Mutex
	upserted := 0

	for _, rec := range records {
		g.Go(func() error {
			if err := a.upsertWithRetry(gctx, rec); err != nil {
				return err
			}
			mu.Lock()
			upserted++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return upserted, fmt.Errorf("upsert rollups: %w", err)
	}
	return upserted, nil
}

func (a *Aggregator) upsertWithRetry(ctx context.Context, rec rollup.Record) error {
	var err error
	for attempt := 1; attempt <= a.opts.UpsertRetries; attempt++ {
		err = a.rollups.Upsert(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrUpsertConflict) {
			return err
		}

		slog.Warn("[Rollup] Upsert conflict, retrying",
			"device_id", rec.DeviceID,
			"window_start", rec.WindowStart,
			"attempt", attempt,
		)
	}
	return err
}
