package hoursbank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type LedgerImpl struct {
	txManager database.TxManager
	repo      hoursbank.HoursBankRepository
	periods   hoursbank.PeriodStatusReader
}

func NewLedger(txManager database.TxManager, repo hoursbank.HoursBankRepository, periods hoursbank.PeriodStatusReader) hoursbank.Ledger {
	return &LedgerImpl{
		txManager: txManager,
		repo:      repo,
		periods:   periods,
	}
}

// RollForward implements hoursbank.Ledger.
func (l *LedgerImpl) RollForward(ctx context.Context, employeeID string, month, year, expectedMinutes, workedMinutes int) (hoursbank.HoursBank, error) {
	if month < 1 || month > 12 {
		return hoursbank.HoursBank{}, hoursbank.ErrInvalidMonth
	}
	if expectedMinutes < 0 || workedMinutes < 0 {
		return hoursbank.HoursBank{}, hoursbank.ErrNegativeMinutes
	}

	var saved hoursbank.HoursBank
	err := l.txManager.WithinTx(ctx, func(txCtx context.Context) error {
		// Held until the outermost transaction ends, so a later month
		// never reads a carry that has not been committed yet.
		if err := l.repo.LockEmployee(txCtx, employeeID); err != nil {
			return err
		}
		if err := l.ensureOpen(txCtx, month, year); err != nil {
			return err
		}

		carry := 0
		pm, py := hoursbank.Previous(month, year)
		prev, err := l.repo.Get(txCtx, employeeID, pm, py)
		switch {
		case err == nil:
			carry = prev.AccumulatedBalanceMinutes
		case !errors.Is(err, hoursbank.ErrHoursBankNotFound):
			return fmt.Errorf("failed to get previous hours bank: %w", err)
		}

		balance := workedMinutes - expectedMinutes
		target := hoursbank.HoursBank{
			EmployeeID:                employeeID,
			Month:                     month,
			Year:                      year,
			ExpectedMinutes:           expectedMinutes,
			WorkedMinutes:             workedMinutes,
			BalanceMinutes:            balance,
			AccumulatedBalanceMinutes: carry + balance,
		}

		later, err := l.repo.ListFrom(txCtx, employeeID, month, year)
		if err != nil {
			return fmt.Errorf("failed to list later hours bank rows: %w", err)
		}

		// Recompute every later row before writing anything so a locked
		// month aborts the whole roll-forward.
		var cascade []hoursbank.HoursBank
		lastIdx, lastAcc := hoursbank.Index(month, year), target.AccumulatedBalanceMinutes
		for _, row := range later {
			idx := hoursbank.Index(row.Month, row.Year)
			if idx == lastIdx {
				continue
			}
			acc := row.BalanceMinutes
			if idx == lastIdx+1 {
				acc += lastAcc
			}
			lastIdx, lastAcc = idx, acc
			if acc == row.AccumulatedBalanceMinutes {
				continue
			}
			if err := l.ensureOpen(txCtx, row.Month, row.Year); err != nil {
				return err
			}
			row.AccumulatedBalanceMinutes = acc
			cascade = append(cascade, row)
		}

		saved, err = l.repo.Upsert(txCtx, target)
		if err != nil {
			return fmt.Errorf("failed to upsert hours bank: %w", err)
		}
		for _, row := range cascade {
			if _, err := l.repo.Upsert(txCtx, row); err != nil {
				return fmt.Errorf("failed to cascade hours bank %02d/%d: %w", row.Month, row.Year, err)
			}
		}
		if len(cascade) > 0 {
			slog.Info("Cascaded hours bank balance", "employee_id", employeeID, "from", fmt.Sprintf("%02d/%d", month, year), "rows", len(cascade))
		}
		return nil
	})
	if err != nil {
		return hoursbank.HoursBank{}, err
	}
	return saved, nil
}

func (l *LedgerImpl) ensureOpen(ctx context.Context, month, year int) error {
	closed, err := l.periods.IsMonthClosed(ctx, month, year)
	if err != nil {
		return fmt.Errorf("failed to check period status: %w", err)
	}
	if closed {
		return fmt.Errorf("%02d/%d: %w", month, year, hoursbank.ErrPeriodLocked)
	}
	return nil
}

// ListByYear implements hoursbank.Ledger.
func (l *LedgerImpl) ListByYear(ctx context.Context, employeeID string, year int) ([]hoursbank.HoursBank, error) {
	rows, err := l.repo.ListByYear(ctx, employeeID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list hours bank: %w", err)
	}
	return rows, nil
}
