package devices

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	httperr "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/errors"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ListHandler handles GET /v1/devices.
func (s *Service) ListHandler(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		Limit  int    `form:"limit"`
		Offset int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	if query.Limit <= 0 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	devices, err := s.store.ListDevices(c.Request.Context(), query.Status, query.Limit, query.Offset)
	if err != nil {
		slog.Error("Failed to list devices", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list devices",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

// CreateHandler handles POST /v1/devices.
func (s *Service) CreateHandler(c *gin.Context) {
	var device v1.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
			Details:   err.Error(),
		})
		return
	}

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	if err := device.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   err.Error(),
		})
		return
	}

	if err := s.store.CreateDevice(c.Request.Context(), &device); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			c.JSON(http.StatusConflict, httperr.ErrorResponse{
				ErrorType: httperr.HttpDuplicateError,
				Message:   "Device already exists",
			})
			return
		}
		slog.Error("Failed to create device", "error", err, "device_id", device.ID)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to create device",
		})
		return
	}

	slog.Info("Registered device", "device_id", device.ID, "name", device.Name)
	c.JSON(http.StatusCreated, device)
}

// GetHandler handles GET /v1/devices/:device_id.
func (s *Service) GetHandler(c *gin.Context) {
	id, ok := parseDeviceID(c)
	if !ok {
		return
	}

	device, err := s.store.GetDevice(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, device)
}

// UpdateHandler handles PUT /v1/devices/:device_id.
func (s *Service) UpdateHandler(c *gin.Context) {
	id, ok := parseDeviceID(c)
	if !ok {
		return
	}

	var device v1.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
			Details:   err.Error(),
		})
		return
	}

	device.ID = id
	if err := device.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   err.Error(),
		})
		return
	}

	if err := s.store.UpdateDevice(c.Request.Context(), &device); err != nil {
		writeLookupError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, device)
}

// DeleteHandler handles DELETE /v1/devices/:device_id.
func (s *Service) DeleteHandler(c *gin.Context) {
	id, ok := parseDeviceID(c)
	if !ok {
		return
	}

	if err := s.store.DeleteDevice(c.Request.Context(), id); err != nil {
		writeLookupError(c, err, id)
		return
	}

	slog.Info("Deleted device", "device_id", id)
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "device_id": id})
}

func parseDeviceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid device id",
		})
		return uuid.Nil, false
	}
	return id, true
}

func writeLookupError(c *gin.Context, err error, id uuid.UUID) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpDeviceNotFoundError,
			Message:   "Device not found",
		})
		return
	}

	slog.Error("Device store operation failed", "error", err, "device_id", id)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Device store operation failed",
	})
}
