package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

// Collector pulls the newest signal reading for every platform device
// and appends the batch to the telemetry log. It is deliberately dumb:
// dedup and late-arrival handling belong to the rollup engine, so the
// collector never filters what it pulls.
type Collector struct {
	client    *Client
	telemetry storage.TelemetryStore
	devices   storage.DeviceStore

	// span is how far back each pull looks for fresh readings.
	span time.Duration
}

// New creates a collector. span should match the pull cadence so
// consecutive pulls cover the timeline without gaps.
func New(client *Client, telemetry storage.TelemetryStore, devices storage.DeviceStore, span time.Duration) *Collector {
	if span <= 0 {
		span = 5 * time.Minute
	}
	return &Collector{
		client:    client,
		telemetry: telemetry,
		devices:   devices,
		span:      span,
	}
}

// Pull fetches the latest reading per device and persists the batch.
// Returns the number of samples written. Per-device fetch failures are
// logged and skipped; an inventory fetch failure fails the whole pull.
func (c *Collector) Pull(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()

	remotes, err := c.client.FetchDevices(ctx)
	if err != nil {
		return 0, fmt.Errorf("collector: %w", err)
	}
	slog.Info("[Collector] Fetched device inventory", "devices", len(remotes))

	var samples []*v1.Sample
	for _, remote := range remotes {
		c.ensureRegistered(ctx, remote)

		readings, err := c.client.FetchReadings(ctx, remote.ID, now.Add(-c.span), now)
		if err != nil {
			slog.Warn("[Collector] Failed to fetch readings, skipping device",
				"device_id", remote.ID,
				"error", err,
			)
			continue
		}
		if len(readings) == 0 {
			continue
		}

		// Latest reading only: the platform returns the series oldest
		// first, and one point per pull matches the reporting cadence
		// the rollup windows assume.
		latest := readings[len(readings)-1]

		samples = append(samples, &v1.Sample{
			DeviceID:  remote.ID,
			Timestamp: latest.Timestamp,
			Signal:    latest.Signal,
			Payload: map[string]interface{}{
				"source":       "api_ingestion",
				"ingested_at":  now.Format(time.RFC3339),
				"rss_value":    latest.Raw,
				"api_ts_milli": latest.Timestamp.UnixMilli(),
			},
		})
	}

	if len(samples) == 0 {
		slog.Info("[Collector] No fresh readings", "devices", len(remotes))
		return 0, nil
	}

	if err := c.telemetry.SaveSamples(ctx, samples); err != nil {
		return 0, fmt.Errorf("collector: save batch: %w", err)
	}

	for _, smp := range samples {
		if err := c.devices.TouchLastSeen(ctx, smp.DeviceID, smp.Timestamp); err != nil {
			slog.Warn("[Collector] Failed to touch last_seen", "device_id", smp.DeviceID, "error", err)
		}
	}

	slog.Info("[Collector] Pull complete", "devices", len(remotes), "samples", len(samples))
	return len(samples), nil
}

// ensureRegistered creates a registry entry for a platform device the
// first time it is seen. Registry failures never block telemetry.
func (c *Collector) ensureRegistered(ctx context.Context, remote RemoteDevice) {
	_, err := c.devices.GetDevice(ctx, remote.ID)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("[Collector] Registry lookup failed", "device_id", remote.ID, "error", err)
		return
	}

	device := &v1.Device{
		ID:         remote.ID,
		Name:       remote.Name,
		DeviceType: remote.Type,
		Status:     v1.DeviceStatusUnknown,
		Metadata:   map[string]interface{}{"source": "platform_inventory"},
	}
	if device.Name == "" {
		device.Name = remote.ID.String()
	}

	if err := c.devices.CreateDevice(ctx, device); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		slog.Warn("[Collector] Failed to register device", "device_id", remote.ID, "error", err)
		return
	}
	slog.Info("[Collector] Registered new device", "device_id", remote.ID, "name", device.Name)
}
