package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/rollup"
)

// RollupAdapter implements storage.RollupStore using PostgreSQL.
// The upsert rides on ON CONFLICT DO UPDATE, so same-key writers
// serialize on the row and disjoint keys proceed in parallel.
type RollupAdapter struct {
	db *sql.DB
}

// NewRollupAdapter creates a RollupAdapter sharing the given connection.
func NewRollupAdapter(db *sql.DB) *RollupAdapter {
	return &RollupAdapter{db: db}
}

// Upsert inserts the record or replaces all metric fields of the stored
// record with the same (device_id, window_start, window_end) key.
// Retryable races surface as storage.ErrUpsertConflict.
func (a *RollupAdapter) Upsert(ctx context.Context, rec rollup.Record) error {
	_, err := a.db.ExecContext(ctx, queryUpsertRollup,
		rec.DeviceID,
		rec.WindowStart,
		rec.WindowEnd,
		rec.UptimePercentage,
		nullFloat(rec.AvgSignal),
		rec.ActiveMinutes,
		rec.InactiveMinutes,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert rollup %s [%s, %s): %w",
			rec.DeviceID, rec.WindowStart.Format(time.RFC3339), rec.WindowEnd.Format(time.RFC3339),
			mapConflictErr(err))
	}

	slog.Debug("[Postgres] Upserted rollup",
		"device_id", rec.DeviceID,
		"window_start", rec.WindowStart,
		"active_minutes", rec.ActiveMinutes,
		"inactive_minutes", rec.InactiveMinutes)
	return nil
}

// QueryRange fetches one device's rollups with window_start in [start, end),
// ordered by window_start ASC. Serves dashboard trend queries.
func (a *RollupAdapter) QueryRange(ctx context.Context, deviceID uuid.UUID, start, end time.Time) ([]rollup.Record, error) {
	rows, err := a.db.QueryContext(ctx, queryRangeRollups, deviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	var records []rollup.Record
	for rows.Next() {
		var rec rollup.Record
		var avg sql.NullFloat64

		if err := rows.Scan(
			&rec.DeviceID,
			&rec.WindowStart,
			&rec.WindowEnd,
			&rec.UptimePercentage,
			&avg,
			&rec.ActiveMinutes,
			&rec.InactiveMinutes,
		); err != nil {
			return nil, fmt.Errorf("query rollups: scan row: %w", err)
		}

		if avg.Valid {
			v := avg.Float64
			rec.AvgSignal = &v
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rollups: iterate rows: %w", err)
	}

	return records, nil
}
