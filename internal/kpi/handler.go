package kpi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httperr "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/errors"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

const (
	defaultCalculationLimit = 100
	maxCalculationLimit     = 1000
)

// RegisterRoutes registers the reporting API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/devices/:device_id/status", s.HandleQueryStatus)
	r.GET("/v1/devices/:device_id/kpis", s.HandleListCalculations)
	r.POST("/v1/devices/:device_id/kpis/calculate", s.HandleCalculate)
}

// HandleQueryStatus handles GET /v1/devices/:device_id/status
// Query parameters: start, end (RFC 3339; default last 24h).
func (s *Service) HandleQueryStatus(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	var query struct {
		Start time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
		End   time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	if query.End.IsZero() {
		query.End = s.nowFn()
	}
	if query.Start.IsZero() {
		query.Start = query.End.Add(-24 * time.Hour)
	}

	resp, err := s.QueryStatus(c.Request.Context(), StatusQueryRequest{
		DeviceID: deviceID,
		Start:    query.Start,
		End:      query.End,
	})
	if err != nil {
		writeServiceError(c, err, "Failed to query device status")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleListCalculations handles GET /v1/devices/:device_id/kpis
// Query parameters: calculation_type, time_period, limit.
func (s *Service) HandleListCalculations(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	var query struct {
		CalculationType string `form:"calculation_type"`
		TimePeriod      string `form:"time_period"`
		Limit           int    `form:"limit"`
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
		query.Limit = defaultCalculationLimit
	}
	if query.Limit > maxCalculationLimit {
		query.Limit = maxCalculationLimit
	}

	calcs, err := s.ListCalculations(c.Request.Context(), deviceID, query.CalculationType, query.TimePeriod, query.Limit)
	if err != nil {
		writeServiceError(c, err, "Failed to list KPI calculations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"device_id": deviceID, "count": len(calcs), "kpis": calcs})
}

// HandleCalculate handles POST /v1/devices/:device_id/kpis/calculate.
func (s *Service) HandleCalculate(c *gin.Context) {
	deviceID, ok := parseDeviceID(c)
	if !ok {
		return
	}

	var req CalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
			Details:   err.Error(),
		})
		return
	}

	calcs, err := s.Calculate(c.Request.Context(), deviceID, req)
	if err != nil {
		writeServiceError(c, err, "Failed to calculate KPIs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"device_id": deviceID, "count": len(calcs), "kpis": calcs})
}

func parseDeviceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid device id",
		})
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid KPI query",
			Details:   err.Error(),
		})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpDeviceNotFoundError,
			Message:   "Device not found",
		})
	default:
		slog.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   fallback,
			Details:   err.Error(),
		})
	}
}
