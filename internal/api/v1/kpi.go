package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KPI calculation types served by the reporting layer.
const (
	KPIUptimePercentage = "uptime_percentage"
	KPIAvailability     = "availability"
	KPIAvgSignal        = "avg_signal"
)

// KPICalculation is one stored KPI value for a device over a period.
// KPIs are derived from rollup records on demand, never from raw telemetry.
type KPICalculation struct {
	ID              uuid.UUID       `json:"id"`
	DeviceID        uuid.UUID       `json:"device_id"`
	CalculationType string          `json:"calculation_type"`
	TimePeriod      string          `json:"time_period"` // hourly, daily, weekly, monthly
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	Value           decimal.Decimal `json:"value"`
	CalculatedAt    time.Time       `json:"calculated_at"`
}
