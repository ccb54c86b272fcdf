package v1

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Device status values tracked by the registry.
const (
	DeviceStatusUnknown     = "unknown"
	DeviceStatusActive      = "active"
	DeviceStatusInactive    = "inactive"
	DeviceStatusMaintenance = "maintenance"
)

// Device is a registry entry for one IoT device.
type Device struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	DeviceType string    `json:"device_type,omitempty"`
	Location   string    `json:"location,omitempty"`

	// Status is the operator-facing lifecycle state, not the derived
	// freshness classification the rollup engine computes per sample.
	Status string `json:"status"`

	// IsTestDevice excludes the device from dashboards without
	// deleting its history.
	IsTestDevice bool `json:"is_test_device"`

	// LastSeen is the timestamp of the newest telemetry observed for
	// the device, maintained best-effort by ingestion and the collector.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate ensures a registry entry has the required attributes.
func (d *Device) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}

	switch d.Status {
	case "", DeviceStatusUnknown, DeviceStatusActive, DeviceStatusInactive, DeviceStatusMaintenance:
	default:
		return fmt.Errorf("unknown status %q", d.Status)
	}

	return nil
}
