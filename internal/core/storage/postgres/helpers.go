package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

// marshalPayload marshals a sample's opaque payload to JSON.
// Nil payload produces nil (SQL NULL) rather than the JSON "null" string.
func marshalPayload(payload map[string]interface{}) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSampleRow scans a database row into a Sample.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanSampleRow(row scanner) (*v1.Sample, error) {
	var smp v1.Sample
	var rss sql.NullFloat64
	var payloadJSON []byte

	err := row.Scan(
		&smp.IngestSeq,
		&smp.DeviceID,
		&smp.Timestamp,
		&rss,
		&payloadJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sample row: %w", err)
	}

	if rss.Valid {
		v := rss.Float64
		smp.Signal = &v
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &smp.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &smp, nil
}

// Postgres error codes that indicate a lost race with a concurrent
// writer. Such failures map to storage.ErrUpsertConflict so callers can
// retry the single statement instead of failing the whole run.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// mapConflictErr translates retryable concurrency errors into
// storage.ErrUpsertConflict; everything else passes through unchanged.
func mapConflictErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %v", storage.ErrUpsertConflict, err)
		}
	}
	return err
}

// isUniqueViolation reports whether err is a primary-key or unique
// constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}
