package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	v1 "github.com/tulaskaratul/IoT-KPI-Dashboard/internal/api/v1"
)

const (
	querySaveCalculation = `
		INSERT INTO kpi_calculations (
			id, device_id, calculation_type, time_period,
			period_start, period_end, value, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	queryListCalculations = `
		SELECT id, device_id, calculation_type, time_period,
		       period_start, period_end, value, calculated_at
		FROM kpi_calculations
		WHERE device_id = $1
		  AND ($2 = '' OR calculation_type = $2)
		  AND ($3 = '' OR time_period = $3)
		ORDER BY calculated_at DESC
		LIMIT $4
	`
)

// KPIAdapter implements storage.KPIStore using PostgreSQL.
// Values are stored as NUMERIC and round-trip through decimal strings.
type KPIAdapter struct {
	db *sql.DB
}

// NewKPIAdapter creates a KPIAdapter sharing the given connection.
func NewKPIAdapter(db *sql.DB) *KPIAdapter {
	return &KPIAdapter{db: db}
}

// SaveCalculation persists one derived KPI value.
func (a *KPIAdapter) SaveCalculation(ctx context.Context, calc *v1.KPICalculation) error {
	_, err := a.db.ExecContext(ctx, querySaveCalculation,
		calc.ID,
		calc.DeviceID,
		calc.CalculationType,
		calc.TimePeriod,
		calc.PeriodStart,
		calc.PeriodEnd,
		calc.Value.String(),
		calc.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("save kpi calculation %s for device %s: %w", calc.CalculationType, calc.DeviceID, err)
	}
	return nil
}

// ListCalculations fetches stored KPI values for a device, newest first,
// optionally filtered by calculation type and time period.
func (a *KPIAdapter) ListCalculations(ctx context.Context, deviceID uuid.UUID, calculationType, timePeriod string, limit int) ([]*v1.KPICalculation, error) {
	rows, err := a.db.QueryContext(ctx, queryListCalculations, deviceID, calculationType, timePeriod, limit)
	if err != nil {
		return nil, fmt.Errorf("list kpi calculations: %w", err)
	}
	defer rows.Close()

	var calcs []*v1.KPICalculation
	for rows.Next() {
		var calc v1.KPICalculation
		var valueStr string

		if err := rows.Scan(
			&calc.ID,
			&calc.DeviceID,
			&calc.CalculationType,
			&calc.TimePeriod,
			&calc.PeriodStart,
			&calc.PeriodEnd,
			&valueStr,
			&calc.CalculatedAt,
		); err != nil {
			return nil, fmt.Errorf("list kpi calculations: scan row: %w", err)
		}

		value, err := decimal.NewFromString(valueStr)
		if err != nil {
			return nil, fmt.Errorf("list kpi calculations: parse value %q: %w", valueStr, err)
		}
		calc.Value = value

		calcs = append(calcs, &calc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list kpi calculations: iterate rows: %w", err)
	}

	return calcs, nil
}
