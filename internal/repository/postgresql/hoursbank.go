package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type hoursBankRepositoryImpl struct {
	db *database.DB
}

func NewHoursBankRepository(db *database.DB) hoursbank.HoursBankRepository {
	return &hoursBankRepositoryImpl{db: db}
}

const hoursBankColumns = `id, employee_id, month, year, expected_minutes, worked_minutes,
	balance_minutes, accumulated_balance_minutes, created_at, updated_at`

func scanHoursBank(row pgx.Row) (hoursbank.HoursBank, error) {
	var h hoursbank.HoursBank
	err := row.Scan(
		&h.ID, &h.EmployeeID, &h.Month, &h.Year, &h.ExpectedMinutes, &h.WorkedMinutes,
		&h.BalanceMinutes, &h.AccumulatedBalanceMinutes, &h.CreatedAt, &h.UpdatedAt,
	)
	return h, err
}

// LockEmployee implements hoursbank.HoursBankRepository. The advisory lock
// is transaction scoped, so it is released on commit or rollback.
func (r *hoursBankRepositoryImpl) LockEmployee(ctx context.Context, employeeID string) error {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('hours_bank:' || $1))`, employeeID); err != nil {
		return fmt.Errorf("failed to lock hours bank: %w", err)
	}
	return nil
}

// Get implements hoursbank.HoursBankRepository.
func (r *hoursBankRepositoryImpl) Get(ctx context.Context, employeeID string, month, year int) (hoursbank.HoursBank, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + hoursBankColumns + ` FROM hours_banks WHERE employee_id = $1 AND month = $2 AND year = $3`

	h, err := scanHoursBank(q.QueryRow(ctx, query, employeeID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return hoursbank.HoursBank{}, hoursbank.ErrHoursBankNotFound
		}
		return hoursbank.HoursBank{}, fmt.Errorf("failed to get hours bank: %w", err)
	}
	return h, nil
}

// ListFrom implements hoursbank.HoursBankRepository.
func (r *hoursBankRepositoryImpl) ListFrom(ctx context.Context, employeeID string, month, year int) ([]hoursbank.HoursBank, error) {
	query := `
		SELECT ` + hoursBankColumns + `
		FROM hours_banks
		WHERE employee_id = $1 AND (year * 12 + month - 1) >= $2
		ORDER BY year, month
		FOR UPDATE
	`
	return r.list(ctx, query, employeeID, hoursbank.Index(month, year))
}

// ListByYear implements hoursbank.HoursBankRepository.
func (r *hoursBankRepositoryImpl) ListByYear(ctx context.Context, employeeID string, year int) ([]hoursbank.HoursBank, error) {
	query := `SELECT ` + hoursBankColumns + ` FROM hours_banks WHERE employee_id = $1 AND year = $2 ORDER BY month`
	return r.list(ctx, query, employeeID, year)
}

func (r *hoursBankRepositoryImpl) list(ctx context.Context, query string, args ...interface{}) ([]hoursbank.HoursBank, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hours bank rows: %w", err)
	}
	defer rows.Close()

	var out []hoursbank.HoursBank
	for rows.Next() {
		h, err := scanHoursBank(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hours bank row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Upsert implements hoursbank.HoursBankRepository.
func (r *hoursBankRepositoryImpl) Upsert(ctx context.Context, row hoursbank.HoursBank) (hoursbank.HoursBank, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO hours_banks (
			id, employee_id, month, year, expected_minutes, worked_minutes,
			balance_minutes, accumulated_balance_minutes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT uk_hours_bank_month DO UPDATE SET
			expected_minutes = EXCLUDED.expected_minutes,
			worked_minutes = EXCLUDED.worked_minutes,
			balance_minutes = EXCLUDED.balance_minutes,
			accumulated_balance_minutes = EXCLUDED.accumulated_balance_minutes,
			updated_at = NOW()
		RETURNING ` + hoursBankColumns

	h, err := scanHoursBank(q.QueryRow(ctx, query,
		uuid.Must(uuid.NewV7()).String(), row.EmployeeID, row.Month, row.Year, row.ExpectedMinutes, row.WorkedMinutes,
		row.BalanceMinutes, row.AccumulatedBalanceMinutes,
	))
	if err != nil {
		return hoursbank.HoursBank{}, fmt.Errorf("failed to upsert hours bank %02d/%d: %w", row.Month, row.Year, err)
	}
	return h, nil
}
