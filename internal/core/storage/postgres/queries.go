package postgres

// SQL queries for the raw telemetry log.

const (
	// querySaveSample appends one raw sample.
	// RETURNING retrieves the auto-generated ingest_seq.
	querySaveSample = `
		INSERT INTO telemetry_logs (device_id, timestamp, rss_value, raw_payload)
		VALUES ($1, $2, $3, $4)
		RETURNING ingest_seq
	`

	// queryRangeSamples fetches all samples with timestamp in [start, end)
	// across all devices. Order is arbitrary from the aggregator's point
	// of view; ingest_seq keeps re-queries of the same range stable.
	queryRangeSamples = `
		SELECT ingest_seq, device_id, timestamp, rss_value, raw_payload
		FROM telemetry_logs
		WHERE timestamp >= $1
		  AND timestamp < $2
		ORDER BY ingest_seq ASC
	`

	// queryListByDevice serves the telemetry read API: one device,
	// newest first, capped.
	queryListByDevice = `
		SELECT ingest_seq, device_id, timestamp, rss_value, raw_payload
		FROM telemetry_logs
		WHERE device_id = $1
		  AND timestamp >= $2
		  AND timestamp < $3
		ORDER BY timestamp DESC, ingest_seq DESC
		LIMIT $4
	`

	// queryDeleteOlderThan removes samples past the retention cutoff.
	// Only the sweeper runs this, strictly after a successful rollup run.
	queryDeleteOlderThan = `
		DELETE FROM telemetry_logs
		WHERE timestamp < $1
	`
)

// SQL queries for the rollup store.

const (
	// queryUpsertRollup is the insert-or-replace-by-key primitive.
	// Replacement, not merge: each run recomputes a window from the full
	// raw sample set, so the fresh values supersede whatever is stored.
	queryUpsertRollup = `
		INSERT INTO device_status (
			device_id, window_start, window_end,
			uptime_percentage, avg_rss, active_minutes, inactive_minutes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (device_id, window_start, window_end)
		DO UPDATE SET
			uptime_percentage = EXCLUDED.uptime_percentage,
			avg_rss           = EXCLUDED.avg_rss,
			active_minutes    = EXCLUDED.active_minutes,
			inactive_minutes  = EXCLUDED.inactive_minutes,
			updated_at        = EXCLUDED.updated_at
	`

	// queryRangeRollups serves dashboard trend queries.
	queryRangeRollups = `
		SELECT device_id, window_start, window_end,
		       uptime_percentage, avg_rss, active_minutes, inactive_minutes
		FROM device_status
		WHERE device_id = $1
		  AND window_start >= $2
		  AND window_start < $3
		ORDER BY window_start ASC
	`
)
