package kpi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/rollup"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage"
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid kpi query")

// ErrNoData is returned when a period holds no rollup windows to derive from.
var ErrNoData = errors.New("no rollup data in period")

// kpiValuePrecision matches the NUMERIC(15,6) column the values land in.
const kpiValuePrecision = 6

// Service is the reporting layer: it reads completed rollup windows and
// derives stored KPI values from them. It never touches raw telemetry:
// KPIs always come from rollups, so they inherit the engine's
// idempotence and complete-pass guarantees.
type Service struct {
	rollups storage.RollupStore
	devices storage.DeviceStore
	kpis    storage.KPIStore

	// uptimeThreshold is the uptime fraction a window needs for the
	// availability KPI to count it as available.
	uptimeThreshold float64

	nowFn func() time.Time
}

// NewService creates the KPI reporting service.
func NewService(rollups storage.RollupStore, devices storage.DeviceStore, kpis storage.KPIStore, uptimeThreshold float64) *Service {
	if uptimeThreshold <= 0 || uptimeThreshold > 1 {
		uptimeThreshold = 0.95
	}
	return &Service{
		rollups:         rollups,
		devices:         devices,
		kpis:            kpis,
		uptimeThreshold: uptimeThreshold,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// QueryStatus returns a device's rollup windows over a time range.
func (s *Service) QueryStatus(ctx context.Context, req StatusQueryRequest) (*StatusQueryResponse, error) {
	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidQuery)
	}

	if _, err := s.devices.GetDevice(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	windows, err := s.rollups.QueryRange(ctx, req.DeviceID, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("query rollup range: %w", err)
	}

	return &StatusQueryResponse{
		DeviceID: req.DeviceID,
		Start:    req.Start,
		End:      req.End,
		Windows:  windows,
	}, nil
}

// Calculate derives the requested KPI values for a device over a period
// and persists each one. Types with no derivable value (no rollup
// windows, or no signal data for avg_signal) are skipped, mirroring the
// rollup engine's absence-over-zero policy.
func (s *Service) Calculate(ctx context.Context, deviceID uuid.UUID, req CalculationRequest) ([]*v1.KPICalculation, error) {
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, fmt.Errorf("%w: period_end must be after period_start", ErrInvalidQuery)
	}
	for _, calcType := range req.CalculationTypes {
		switch calcType {
		case v1.KPIUptimePercentage, v1.KPIAvailability, v1.KPIAvgSignal:
		default:
			return nil, fmt.Errorf("%w: unknown calculation type %q", ErrInvalidQuery, calcType)
		}
	}

	if _, err := s.devices.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	windows, err := s.rollups.QueryRange(ctx, deviceID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("query rollup range: %w", err)
	}

	now := s.nowFn()
	var calcs []*v1.KPICalculation

	for _, calcType := range req.CalculationTypes {
		value, err := s.derive(calcType, windows)
		if err != nil {
			if errors.Is(err, ErrNoData) {
				slog.Debug("No data for KPI calculation",
					"device_id", deviceID,
					"calculation_type", calcType,
					"period_start", req.PeriodStart,
				)
				continue
			}
			return nil, err
		}

		calc := &v1.KPICalculation{
			ID:              uuid.New(),
			DeviceID:        deviceID,
			CalculationType: calcType,
			TimePeriod:      req.TimePeriod,
			PeriodStart:     req.PeriodStart,
			PeriodEnd:       req.PeriodEnd,
			Value:           value.Round(kpiValuePrecision),
			CalculatedAt:    now,
		}

		if err := s.kpis.SaveCalculation(ctx, calc); err != nil {
			return nil, fmt.Errorf("save %s calculation: %w", calcType, err)
		}
		calcs = append(calcs, calc)
	}

	return calcs, nil
}

// ListCalculations returns stored KPI values for a device, newest first.
func (s *Service) ListCalculations(ctx context.Context, deviceID uuid.UUID, calculationType, timePeriod string, limit int) ([]*v1.KPICalculation, error) {
	if _, err := s.devices.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	return s.kpis.ListCalculations(ctx, deviceID, calculationType, timePeriod, limit)
}

// derive computes one KPI value from the rollup windows of a period.
func (s *Service) derive(calcType string, windows []rollup.Record) (decimal.Decimal, error) {
	if len(windows) == 0 {
		return decimal.Zero, ErrNoData
	}

	switch calcType {
	case v1.KPIUptimePercentage:
		return sampleWeightedUptime(windows)
	case v1.KPIAvailability:
		return s.availability(windows), nil
	case v1.KPIAvgSignal:
		return weightedAvgSignal(windows)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown calculation type %q", ErrInvalidQuery, calcType)
	}
}

// sampleWeightedUptime is total active samples over total samples across
// the period, as a percentage. Weighting by sample count rather than
// averaging window percentages keeps sparsely-reporting windows from
// dominating the result.
func sampleWeightedUptime(windows []rollup.Record) (decimal.Decimal, error) {
	var active, total int64
	for _, w := range windows {
		active += w.ActiveMinutes
		total += w.ActiveMinutes + w.InactiveMinutes
	}
	if total == 0 {
		return decimal.Zero, ErrNoData
	}
	return decimal.NewFromInt(active).
		Div(decimal.NewFromInt(total)).
		Mul(decimal.NewFromInt(100)), nil
}

// availability is the percentage of windows meeting the uptime threshold.
func (s *Service) availability(windows []rollup.Record) decimal.Decimal {
	available := 0
	for _, w := range windows {
		if w.UptimePercentage >= s.uptimeThreshold*100 {
			available++
		}
	}
	return decimal.NewFromInt(int64(available)).
		Div(decimal.NewFromInt(int64(len(windows)))).
		Mul(decimal.NewFromInt(100))
}

// weightedAvgSignal averages window signal means, weighted by each
// window's sample count. Windows with no signal data contribute nothing.
func weightedAvgSignal(windows []rollup.Record) (decimal.Decimal, error) {
	sum := decimal.Zero
	var weight int64

	for _, w := range windows {
		if w.AvgSignal == nil {
			continue
		}
		n := w.ActiveMinutes + w.InactiveMinutes
		sum = sum.Add(decimal.NewFromFloat(*w.AvgSignal).Mul(decimal.NewFromInt(n)))
		weight += n
	}

	if weight == 0 {
		return decimal.Zero, ErrNoData
	}
	return sum.Div(decimal.NewFromInt(weight)), nil
}
