package devices

import (
	"github.com/gin-gonic/gin"

	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

// Service is the device registry API: CRUD over registry entries.
// Registry state is glue around the rollup engine; deleting a device
// does not touch its telemetry or rollup history.
type Service struct {
	store storage.DeviceStore
}

func NewService(store storage.DeviceStore) *Service {
	if store == nil {
		panic("devices: store must not be nil")
	}
	return &Service{store: store}
}

// RegisterRoutes registers the device registry routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/devices", s.ListHandler)
	r.POST("/v1/devices", s.CreateHandler)
	r.GET("/v1/devices/:device_id", s.GetHandler)
	r.PUT("/v1/devices/:device_id", s.UpdateHandler)
	r.DELETE("/v1/devices/:device_id", s.DeleteHandler)
}
