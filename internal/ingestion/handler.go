package ingestion

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	httperr "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/errors"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgInvalidDeviceID = "Invalid device id"
	msgPersistFailed   = "Failed to persist sample"

	defaultListLimit = 100
	maxListLimit     = 1000
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles HTTP POST requests for raw telemetry samples.
func (s *Service) IngestHandler(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("device_id"))
	if err != nil {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidDeviceID,
		})
		return
	}

	smp, payloadSize, ierr := s.parseSample(c, deviceID)
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	slog.Info("Received sample",
		"device_id", smp.DeviceID,
		"timestamp", smp.Timestamp,
		"has_signal", smp.Signal != nil,
		"payload_size", payloadSize)

	if ierr := s.persistSample(c.Request.Context(), smp); ierr != nil {
		writeError(c, ierr)
		return
	}

	// Sample persisted to the log. The next rollup run will pick it up.
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "ingest_seq": smp.IngestSeq})
}

// ListSamplesHandler handles GET requests for one device's raw telemetry.
func (s *Service) ListSamplesHandler(c *gin.Context) {
	deviceID, err := uuid.Parse(c.Param("device_id"))
	if err != nil {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidDeviceID,
		})
		return
	}

	var query struct {
		Start time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00"`
		End   time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00"`
		Limit int       `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		writeError(c, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidQueryError,
			message:    "Invalid query parameters",
			details:    err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	if query.End.IsZero() {
		query.End = now
	}
	if query.Start.IsZero() {
		query.Start = query.End.Add(-24 * time.Hour)
	}
	if query.Limit <= 0 {
		query.Limit = defaultListLimit
	}
	if query.Limit > maxListLimit {
		query.Limit = maxListLimit
	}

	samples, err := s.telemetry.ListByDevice(c.Request.Context(), deviceID, query.Start, query.End, query.Limit)
	if err != nil {
		slog.Error("Failed to list samples", "error", err, "device_id", deviceID)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    "Failed to list samples",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"device_id": deviceID, "count": len(samples), "samples": samples})
}

// parseSample reads the raw request body and binds it into a Sample.
// Returns the parsed sample and the raw payload size (used for structured logging upstream).
func (s *Service) parseSample(c *gin.Context, deviceID uuid.UUID) (*v1.Sample, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var smp v1.Sample
	if err := c.ShouldBindJSON(&smp); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	// The path parameter owns the device identity; a mismatched body
	// device_id is a client error, a missing one is filled in.
	if smp.DeviceID != uuid.Nil && smp.DeviceID != deviceID {
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Body device_id does not match path",
		}
	}
	smp.DeviceID = deviceID

	// Devices with no usable clock may omit the timestamp; stamp server time.
	if smp.Timestamp.IsZero() {
		smp.Timestamp = time.Now().UTC()
	}

	if err := smp.Validate(); err != nil {
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    err.Error(),
		}
	}

	return &smp, len(bodyBytes), nil
}

// persistSample appends the sample to the telemetry log and advances the
// device's last_seen best-effort.
func (s *Service) persistSample(ctx context.Context, smp *v1.Sample) *ingestionError {
	if err := s.telemetry.SaveSample(ctx, smp); err != nil {
		slog.Error("Failed to persist sample", "error", err, "device_id", smp.DeviceID)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}

	// last_seen is observability metadata; a failure here must not fail
	// a sample that is already durably written.
	if err := s.devices.TouchLastSeen(ctx, smp.DeviceID, smp.Timestamp); err != nil {
		slog.Warn("Failed to touch device last_seen", "error", err, "device_id", smp.DeviceID)
	}

	return nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
