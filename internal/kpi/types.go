package kpi

import (
	"time"

	"github.com/google/uuid"

	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/rollup"
)

// StatusQueryRequest asks for a device's rollup trend over a time range.
type StatusQueryRequest struct {
	DeviceID uuid.UUID
	Start    time.Time
	End      time.Time
}

// StatusQueryResponse is the dashboard trend payload. Every window in it
// reflects a complete aggregation pass as of some past evaluation
// instant; half-written windows cannot be observed.
type StatusQueryResponse struct {
	DeviceID uuid.UUID       `json:"device_id"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Windows  []rollup.Record `json:"windows"`
}

// CalculationRequest asks for derived KPIs over a period.
type CalculationRequest struct {
	CalculationTypes []string  `json:"calculation_types" binding:"required,min=1"`
	TimePeriod       string    `json:"time_period" binding:"required"`
	PeriodStart      time.Time `json:"period_start" binding:"required"`
	PeriodEnd        time.Time `json:"period_end" binding:"required"`
}
