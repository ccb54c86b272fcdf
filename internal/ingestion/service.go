package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

// Service accepts raw telemetry over HTTP and appends it to the
// telemetry log. It is one of the two ingestion paths; the collector
// pulls from the remote device platform through the same store.
type Service struct {
	telemetry        storage.TelemetryStore
	devices          storage.DeviceStore
	maxBodySizeBytes int
}

func NewService(telemetry storage.TelemetryStore, devices storage.DeviceStore, maxBodySizeMB int) *Service {
	if telemetry == nil {
		panic("ingestion: telemetry store must not be nil")
	}
	if devices == nil {
		panic("ingestion: device store must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		telemetry:        telemetry,
		devices:          devices,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the telemetry ingestion routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/devices/:device_id/telemetry", s.IngestHandler)
	r.GET("/v1/devices/:device_id/telemetry", s.ListSamplesHandler)
}
