package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

// ========== PERIODS ==========

const periodColumns = `id, reference_month, reference_year, status, closed_by, closed_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (payroll.Period, error) {
	var p payroll.Period
	err := row.Scan(&p.ID, &p.ReferenceMonth, &p.ReferenceYear, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *payrollRepository) CreatePeriod(ctx context.Context, period payroll.Period) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_periods (id, reference_month, reference_year, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + periodColumns

	p, err := scanPeriod(q.QueryRow(ctx, query,
		uuid.Must(uuid.NewV7()).String(), period.ReferenceMonth, period.ReferenceYear, period.Status,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return payroll.Period{}, payroll.ErrPeriodAlreadyExists
		}
		return payroll.Period{}, fmt.Errorf("failed to create payroll period: %w", err)
	}
	return p, nil
}

func (r *payrollRepository) GetPeriodByID(ctx context.Context, id string) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + periodColumns + ` FROM payroll_periods WHERE id = $1`

	p, err := scanPeriod(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Period{}, payroll.ErrPeriodNotFound
		}
		return payroll.Period{}, fmt.Errorf("failed to get payroll period: %w", err)
	}
	return p, nil
}

func (r *payrollRepository) GetPeriodByMonthYear(ctx context.Context, month, year int) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + periodColumns + ` FROM payroll_periods WHERE reference_month = $1 AND reference_year = $2`

	p, err := scanPeriod(q.QueryRow(ctx, query, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Period{}, payroll.ErrPeriodNotFound
		}
		return payroll.Period{}, fmt.Errorf("failed to get payroll period %02d/%d: %w", month, year, err)
	}
	return p, nil
}

func (r *payrollRepository) ListPeriodsByStatus(ctx context.Context, status payroll.PeriodStatus) ([]payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + periodColumns + `
		FROM payroll_periods
		WHERE status = $1
		ORDER BY reference_year, reference_month
	`

	rows, err := q.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll periods: %w", err)
	}
	defer rows.Close()

	var periods []payroll.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// TransitionPeriod is a compare-and-set on status. A miss is resolved
// into not-found or a concurrent change.
func (r *payrollRepository) TransitionPeriod(ctx context.Context, id string, from, to payroll.PeriodStatus, closedBy *string, closedAt *time.Time) (payroll.Period, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_periods
		SET status = $3, closed_by = $4, closed_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + periodColumns

	p, err := scanPeriod(q.QueryRow(ctx, query, id, from, to, closedBy, closedAt))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.Period{}, fmt.Errorf("failed to transition payroll period: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_periods WHERE id = $1)`, id).Scan(&exists); err != nil {
		return payroll.Period{}, fmt.Errorf("failed to check payroll period: %w", err)
	}
	if !exists {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	return payroll.Period{}, payroll.ErrPeriodStateConflict
}

func (r *payrollRepository) IsMonthClosed(ctx context.Context, month, year int) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM payroll_periods
			WHERE reference_month = $1 AND reference_year = $2 AND status = $3
		)
	`

	var closed bool
	if err := q.QueryRow(ctx, query, month, year, payroll.PeriodStatusClosed).Scan(&closed); err != nil {
		return false, fmt.Errorf("failed to check closed month: %w", err)
	}
	return closed, nil
}

// ========== COMPONENTS & ITEMS ==========

func (r *payrollRepository) ListEffectiveComponents(ctx context.Context, employeeID string, start, end time.Time) ([]payroll.Component, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_id, component_type, amount, description, is_active,
			effective_from, effective_until, created_at, updated_at
		FROM payroll_components
		WHERE employee_id = $1
			AND is_active = TRUE
			AND effective_from <= $3
			AND (effective_until IS NULL OR effective_until >= $2)
		ORDER BY effective_from, id
	`

	rows, err := q.Query(ctx, query, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll components: %w", err)
	}
	defer rows.Close()

	var components []payroll.Component
	for rows.Next() {
		var c payroll.Component
		if err := rows.Scan(
			&c.ID, &c.EmployeeID, &c.Type, &c.Amount, &c.Description, &c.IsActive,
			&c.EffectiveFrom, &c.EffectiveUntil, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll component: %w", err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

func (r *payrollRepository) ListItems(ctx context.Context, periodID, employeeID string) ([]payroll.Item, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, period_id, employee_id, code, kind, amount, description, created_at
		FROM payroll_items
		WHERE period_id = $1 AND employee_id = $2
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, periodID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll items: %w", err)
	}
	defer rows.Close()

	var items []payroll.Item
	for rows.Next() {
		var it payroll.Item
		if err := rows.Scan(&it.ID, &it.PeriodID, &it.EmployeeID, &it.Code, &it.Kind, &it.Amount, &it.Description, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payroll item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ========== ENTRIES ==========

// CreateEntries queues every insert in a single round trip.
func (r *payrollRepository) CreateEntries(ctx context.Context, entries []payroll.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_entries (
			id, period_id, employee_id, kind, code, description,
			reference_value, quantity, amount, sequence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		id := e.ID
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		batch.Queue(query,
			id, e.PeriodID, e.EmployeeID, e.Kind, e.Code, e.Description,
			e.ReferenceValue, e.Quantity, e.Amount, e.Sequence,
		)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert payroll entry: %w", err)
		}
	}
	return nil
}

func (r *payrollRepository) ListEntries(ctx context.Context, filter payroll.EntryFilter) ([]payroll.Entry, error) {
	q := GetQuerier(ctx, r.db)

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, period_id, employee_id, kind, code, description,
			reference_value, quantity, amount, sequence, created_at
		FROM payroll_entries
		WHERE period_id = $1`)
	args := []interface{}{filter.PeriodID}

	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		fmt.Fprintf(&sb, " AND employee_id = $%d", len(args))
	}
	if filter.Code != nil {
		args = append(args, *filter.Code)
		fmt.Fprintf(&sb, " AND code = $%d", len(args))
	}
	sb.WriteString(" ORDER BY employee_id, sequence")

	rows, err := q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll entries: %w", err)
	}
	defer rows.Close()

	var entries []payroll.Entry
	for rows.Next() {
		var e payroll.Entry
		if err := rows.Scan(
			&e.ID, &e.PeriodID, &e.EmployeeID, &e.Kind, &e.Code, &e.Description,
			&e.ReferenceValue, &e.Quantity, &e.Amount, &e.Sequence, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *payrollRepository) CountEntries(ctx context.Context, periodID string) (int64, error) {
	q := GetQuerier(ctx, r.db)

	var n int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_entries WHERE period_id = $1`, periodID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count payroll entries: %w", err)
	}
	return n, nil
}

// ========== SLIPS ==========

const slipColumns = `id, period_id, employee_id, gross_salary, total_earnings, total_deductions, net_salary,
	inss_amount, irrf_amount, fgts_amount, details, status, created_at, finalized_at`

func scanSlip(row pgx.Row) (payroll.Slip, error) {
	var s payroll.Slip
	var details []byte
	err := row.Scan(
		&s.ID, &s.PeriodID, &s.EmployeeID, &s.GrossSalary, &s.TotalEarnings, &s.TotalDeductions, &s.NetSalary,
		&s.INSSAmount, &s.IRRFAmount, &s.FGTSAmount, &details, &s.Status, &s.CreatedAt, &s.FinalizedAt,
	)
	if err != nil {
		return payroll.Slip{}, err
	}
	if s.Details, err = decodeSlipDetails(details); err != nil {
		return payroll.Slip{}, err
	}
	return s, nil
}

func encodeSlipDetails(d payroll.SlipDetails) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode slip details: %w", err)
	}
	return raw, nil
}

func decodeSlipDetails(raw []byte) (payroll.SlipDetails, error) {
	var d payroll.SlipDetails
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return payroll.SlipDetails{}, fmt.Errorf("failed to decode slip details: %w", err)
	}
	return d, nil
}

func (r *payrollRepository) CreateSlip(ctx context.Context, slip payroll.Slip) (payroll.Slip, error) {
	q := GetQuerier(ctx, r.db)

	details, err := encodeSlipDetails(slip.Details)
	if err != nil {
		return payroll.Slip{}, err
	}
	status := slip.Status
	if status == "" {
		status = payroll.SlipStatusDraft
	}

	query := `
		INSERT INTO payroll_slips (
			id, period_id, employee_id, gross_salary, total_earnings, total_deductions, net_salary,
			inss_amount, irrf_amount, fgts_amount, details, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + slipColumns

	created, err := scanSlip(q.QueryRow(ctx, query,
		uuid.Must(uuid.NewV7()).String(), slip.PeriodID, slip.EmployeeID,
		slip.GrossSalary, slip.TotalEarnings, slip.TotalDeductions, slip.NetSalary,
		slip.INSSAmount, slip.IRRFAmount, slip.FGTSAmount, details, status,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return payroll.Slip{}, payroll.ErrDuplicateCalculation
		}
		return payroll.Slip{}, fmt.Errorf("failed to create pay slip: %w", err)
	}
	return created, nil
}

func (r *payrollRepository) GetSlip(ctx context.Context, periodID, employeeID string) (payroll.Slip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + slipColumns + ` FROM payroll_slips WHERE period_id = $1 AND employee_id = $2`

	s, err := scanSlip(q.QueryRow(ctx, query, periodID, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Slip{}, payroll.ErrSlipNotFound
		}
		return payroll.Slip{}, fmt.Errorf("failed to get pay slip: %w", err)
	}
	return s, nil
}

func (r *payrollRepository) ListSlips(ctx context.Context, periodID string) ([]payroll.Slip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + slipColumns + ` FROM payroll_slips WHERE period_id = $1 ORDER BY employee_id`

	rows, err := q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pay slips: %w", err)
	}
	defer rows.Close()

	var slips []payroll.Slip
	for rows.Next() {
		s, err := scanSlip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pay slip: %w", err)
		}
		slips = append(slips, s)
	}
	return slips, rows.Err()
}

func (r *payrollRepository) FinalizeSlips(ctx context.Context, periodID string, finalizedAt time.Time) (int64, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_slips
		SET status = $2, finalized_at = $3
		WHERE period_id = $1 AND status = $4
	`

	tag, err := q.Exec(ctx, query, periodID, payroll.SlipStatusFinal, finalizedAt, payroll.SlipStatusDraft)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize pay slips: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ========== RUNS ==========

// UpsertRun keeps the stored attempt count when run.Attempts is zero.
func (r *payrollRepository) UpsertRun(ctx context.Context, run payroll.Run) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (period_id, employee_id, status, error_kind, error_detail, attempts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (period_id, employee_id) DO UPDATE SET
			status = EXCLUDED.status,
			error_kind = EXCLUDED.error_kind,
			error_detail = EXCLUDED.error_detail,
			attempts = CASE WHEN EXCLUDED.attempts = 0 THEN payroll_runs.attempts ELSE EXCLUDED.attempts END,
			updated_at = NOW()
	`

	_, err := q.Exec(ctx, query, run.PeriodID, run.EmployeeID, run.Status, run.ErrorKind, run.ErrorDetail, run.Attempts)
	if err != nil {
		return fmt.Errorf("failed to upsert payroll run: %w", err)
	}
	return nil
}

func (r *payrollRepository) ListRuns(ctx context.Context, periodID string) ([]payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT period_id, employee_id, status, error_kind, error_detail, attempts, updated_at
		FROM payroll_runs
		WHERE period_id = $1
		ORDER BY employee_id
	`

	rows, err := q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		var run payroll.Run
		if err := rows.Scan(&run.PeriodID, &run.EmployeeID, &run.Status, &run.ErrorKind, &run.ErrorDetail, &run.Attempts, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PurgePeriod deletes the period's entries, slips and runs. Callers wrap
// it in a transaction.
func (r *payrollRepository) PurgePeriod(ctx context.Context, periodID string) error {
	q := GetQuerier(ctx, r.db)

	for _, table := range []string{"payroll_entries", "payroll_slips", "payroll_runs"} {
		if _, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE period_id = $1`, periodID); err != nil {
			return fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}
	return nil
}
