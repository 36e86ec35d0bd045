package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type timeEntryRepositoryImpl struct {
	db *database.DB
}

func NewTimeEntryRepository(db *database.DB) attendance.TimeEntryRepository {
	return &timeEntryRepositoryImpl{db: db}
}

// ListByEmployee implements attendance.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) ListByEmployee(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, entry_date, clock_in, clock_out, lunch_start, lunch_end, entry_type, created_at, updated_at
		FROM time_entries
		WHERE employee_id = $1 AND entry_date BETWEEN $2 AND $3
		ORDER BY entry_date, clock_in NULLS LAST
	`

	rows, err := q.Query(ctx, query, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	var entries []attendance.TimeEntry
	for rows.Next() {
		var e attendance.TimeEntry
		if err := rows.Scan(
			&e.ID, &e.EmployeeID, &e.Date, &e.ClockIn, &e.ClockOut, &e.LunchStart, &e.LunchEnd, &e.Type,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type leaveRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.LeaveRepository {
	return &leaveRepositoryImpl{db: db}
}

// ListApprovedDays implements leave.LeaveRepository.
func (r *leaveRepositoryImpl) ListApprovedDays(ctx context.Context, employeeID string, start, end time.Time) ([]leave.LeaveDay, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT employee_id, leave_date, paid
		FROM leave_days
		WHERE employee_id = $1 AND leave_date BETWEEN $2 AND $3
		ORDER BY leave_date
	`

	rows, err := q.Query(ctx, query, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave days: %w", err)
	}
	defer rows.Close()

	var days []leave.LeaveDay
	for rows.Next() {
		var l leave.LeaveDay
		if err := rows.Scan(&l.EmployeeID, &l.Date, &l.Paid); err != nil {
			return nil, fmt.Errorf("failed to scan leave day: %w", err)
		}
		days = append(days, l)
	}
	return days, rows.Err()
}

type enrollmentRepositoryImpl struct {
	db *database.DB
}

func NewEnrollmentRepository(db *database.DB) benefit.EnrollmentRepository {
	return &enrollmentRepositoryImpl{db: db}
}

// ListEffective implements benefit.EnrollmentRepository.
func (r *enrollmentRepositoryImpl) ListEffective(ctx context.Context, employeeID string, start, end time.Time) ([]benefit.Enrollment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, benefit_type, name, monthly_value, employee_share,
			effective_from, effective_until, created_at, updated_at
		FROM benefit_enrollments
		WHERE employee_id = $1 AND effective_from <= $3 AND (effective_until IS NULL OR effective_until >= $2)
		ORDER BY effective_from, id
	`

	rows, err := q.Query(ctx, query, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list benefit enrollments: %w", err)
	}
	defer rows.Close()

	var out []benefit.Enrollment
	for rows.Next() {
		var e benefit.Enrollment
		if err := rows.Scan(
			&e.ID, &e.EmployeeID, &e.Type, &e.Name, &e.MonthlyValue, &e.EmployeeShare,
			&e.EffectiveFrom, &e.EffectiveUntil, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan benefit enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
