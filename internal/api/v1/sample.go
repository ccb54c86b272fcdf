package v1

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sample is one raw telemetry reading for a device.
// Samples are immutable once written: the rollup engine only reads them,
// and the retention sweeper is the only thing that ever removes them.
type Sample struct {
	// IngestSeq is a monotonic sequence number assigned on ingestion.
	// Set by database (BIGSERIAL), not exposed in the public API.
	IngestSeq int64 `json:"-"`

	// DeviceID is the registry identity of the reporting device.
	DeviceID uuid.UUID `json:"device_id"`

	// Timestamp is when the reading was taken (device-side clock).
	// If a client omits it, the ingestion service stamps server time.
	Timestamp time.Time `json:"timestamp"`

	// Signal is the received signal strength in dBm. Devices that report
	// a heartbeat without a reading leave it null; such samples still
	// count toward uptime but are excluded from signal averages.
	Signal *float64 `json:"rss_value"`

	// Payload is the opaque raw message as received. Never interpreted
	// by the rollup engine.
	Payload map[string]interface{} `json:"raw_payload,omitempty"`
}

// Validate ensures the sample carries the attributes the rollup engine
// partitions on. Samples failing validation are skipped and counted,
// never aggregated.
func (s *Sample) Validate() error {
	if s.DeviceID == uuid.Nil {
		return fmt.Errorf("device_id is required")
	}

	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	return nil
}
