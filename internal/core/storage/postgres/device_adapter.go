package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

const (
	queryCreateDevice = `
		INSERT INTO devices (id, name, device_type, location, status, is_test_device, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`

	queryGetDevice = `
		SELECT id, name, device_type, location, status, is_test_device, last_seen, metadata, created_at, updated_at
		FROM devices
		WHERE id = $1
	`

	queryListDevices = `
		SELECT id, name, device_type, location, status, is_test_device, last_seen, metadata, created_at, updated_at
		FROM devices
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	queryUpdateDevice = `
		UPDATE devices
		SET name = $2, device_type = $3, location = $4, status = $5, is_test_device = $6, metadata = $7, updated_at = $8
		WHERE id = $1
	`

	queryDeleteDevice = `DELETE FROM devices WHERE id = $1`

	// Only advances last_seen; ingestion calls this per sample and a
	// stale observation must never move the clock backwards.
	queryTouchLastSeen = `
		UPDATE devices
		SET last_seen = $2, updated_at = $2
		WHERE id = $1 AND (last_seen IS NULL OR last_seen < $2)
	`
)

// DeviceAdapter implements storage.DeviceStore using PostgreSQL.
type DeviceAdapter struct {
	db *sql.DB
}

// NewDeviceAdapter creates a DeviceAdapter sharing the given connection.
func NewDeviceAdapter(db *sql.DB) *DeviceAdapter {
	return &DeviceAdapter{db: db}
}

// CreateDevice inserts a registry entry. Returns storage.ErrDuplicate if
// a device with the same id already exists.
func (a *DeviceAdapter) CreateDevice(ctx context.Context, device *v1.Device) error {
	metadataJSON, err := marshalPayload(device.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now
	if device.Status == "" {
		device.Status = v1.DeviceStatusUnknown
	}

	_, err = a.db.ExecContext(ctx, queryCreateDevice,
		device.ID,
		device.Name,
		device.DeviceType,
		device.Location,
		device.Status,
		device.IsTestDevice,
		metadataJSON,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("create device %s: %w", device.ID, err)
	}

	return nil
}

// GetDevice fetches one registry entry. Returns storage.ErrNotFound when
// the device does not exist.
func (a *DeviceAdapter) GetDevice(ctx context.Context, id uuid.UUID) (*v1.Device, error) {
	device, err := scanDeviceRow(a.db.QueryRowContext(ctx, queryGetDevice, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", id, err)
	}
	return device, nil
}

// ListDevices fetches registry entries, optionally filtered by status.
func (a *DeviceAdapter) ListDevices(ctx context.Context, status string, limit, offset int) ([]*v1.Device, error) {
	rows, err := a.db.QueryContext(ctx, queryListDevices, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []*v1.Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: iterate rows: %w", err)
	}

	return devices, nil
}

// UpdateDevice replaces the mutable fields of a registry entry.
func (a *DeviceAdapter) UpdateDevice(ctx context.Context, device *v1.Device) error {
	metadataJSON, err := marshalPayload(device.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx, queryUpdateDevice,
		device.ID,
		device.Name,
		device.DeviceType,
		device.Location,
		device.Status,
		device.IsTestDevice,
		metadataJSON,
		now,
	)
	if err != nil {
		return fmt.Errorf("update device %s: %w", device.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update device %s: %w", device.ID, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	device.UpdatedAt = now
	return nil
}

// DeleteDevice removes a registry entry and, via the schema's cascade,
// its KPI calculations. Raw telemetry and rollups are left for retention.
func (a *DeviceAdapter) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	result, err := a.db.ExecContext(ctx, queryDeleteDevice, id)
	if err != nil {
		return fmt.Errorf("delete device %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete device %s: %w", id, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// TouchLastSeen advances last_seen if seenAt is newer than the stored
// value. Unknown devices are a no-op, not an error.
func (a *DeviceAdapter) TouchLastSeen(ctx context.Context, id uuid.UUID, seenAt time.Time) error {
	if _, err := a.db.ExecContext(ctx, queryTouchLastSeen, id, seenAt.UTC()); err != nil {
		return fmt.Errorf("touch last_seen for device %s: %w", id, err)
	}
	return nil
}

func scanDeviceRow(row scanner) (*v1.Device, error) {
	var device v1.Device
	var deviceType, location sql.NullString
	var lastSeen sql.NullTime
	var metadataJSON []byte

	err := row.Scan(
		&device.ID,
		&device.Name,
		&deviceType,
		&location,
		&device.Status,
		&device.IsTestDevice,
		&lastSeen,
		&metadataJSON,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	device.DeviceType = deviceType.String
	device.Location = location.String
	if lastSeen.Valid {
		t := lastSeen.Time
		device.LastSeen = &t
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &device.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device metadata: %w", err)
		}
	}

	return &device, nil
}
