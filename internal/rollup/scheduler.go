package rollup

import (
	"context"
	"log/slog"
	"time"
)

const shutdownRunTimeout = 30 * time.Second

// SamplePuller is the optional first stage of the scheduled pipeline:
// pulling fresh telemetry from a remote device platform before rollup.
type SamplePuller interface {
	Pull(ctx context.Context, now time.Time) (int, error)
}

// Scheduler drives the pull → aggregate → sweep pipeline on a fixed
// cadence. Stages run sequentially within a tick and ticks are handled
// one at a time, so runs normally never overlap; the aggregator stays
// correct even if a second scheduler instance runs concurrently, because
// correctness lives in the rollup store's keyed upsert, not here.
type Scheduler struct {
	interval   time.Duration
	puller     SamplePuller // nil when the collector is disabled
	aggregator *Aggregator
	sweeper    *Sweeper // nil when retention is disabled
}

// NewScheduler creates the pipeline scheduler. puller and sweeper may be
// nil to skip those stages.
func NewScheduler(interval time.Duration, puller SamplePuller, aggregator *Aggregator, sweeper *Sweeper) *Scheduler {
	return &Scheduler{
		interval:   interval,
		puller:     puller,
		aggregator: aggregator,
		sweeper:    sweeper,
	}
}

// Start begins the periodic pipeline. Runs until the context is
// cancelled, then performs one final bounded run before returning.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting rollup pipeline",
		"interval", s.interval,
		"collector", s.puller != nil,
		"retention", s.sweeper != nil,
	)

	// Initial run so a restart doesn't wait a full interval to catch up.
	s.runPipeline(ctx, time.Now().UTC())

	for {
		select {
		case <-ticker.C:
			s.runPipeline(ctx, time.Now().UTC())
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownRunTimeout)
			defer cancel()

			slog.Info("[Scheduler] Running final rollup before shutdown...")
			s.runPipeline(shutdownCtx, time.Now().UTC())
			slog.Info("[Scheduler] Final rollup complete")

			return nil
		}
	}
}

// runPipeline executes one tick. A collector failure is logged but does
// not block aggregation of already-ingested telemetry; a failed rollup
// run leaves existing rollups unchanged and skips the sweeper, since raw
// samples may only be deleted after they have been aggregated.
func (s *Scheduler) runPipeline(ctx context.Context, now time.Time) {
	if s.puller != nil {
		pulled, err := s.puller.Pull(ctx, now)
		if err != nil {
			slog.Error("[Scheduler] Telemetry pull failed", "error", err)
		} else {
			slog.Debug("[Scheduler] Telemetry pull complete", "samples", pulled)
		}
	}

	result, err := s.aggregator.Run(ctx, now)
	if err != nil {
		slog.Error("[Scheduler] Rollup run failed, existing rollups left unchanged",
			"error", err,
			"windows_upserted", result.WindowsUpserted,
		)
		return
	}

	if s.sweeper == nil {
		return
	}

	if _, err := s.sweeper.Run(ctx, now); err != nil {
		slog.Error("[Scheduler] Retention sweep failed", "error", err)
	}
}
