package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/lock"
)

type PeriodServiceImpl struct {
	txManager    database.TxManager
	payrollRepo  payroll.PayrollRepository
	employeeRepo employee.EmployeeRepository
	engine       payroll.CalculationEngine
	locker       lock.Locker
	now          func() time.Time
}

func NewPeriodService(
	txManager database.TxManager,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	engine payroll.CalculationEngine,
	locker lock.Locker,
) payroll.PeriodService {
	return &PeriodServiceImpl{
		txManager:    txManager,
		payrollRepo:  payrollRepo,
		employeeRepo: employeeRepo,
		engine:       engine,
		locker:       locker,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func lockKey(periodID string) string {
	return "payroll:period:" + periodID
}

// withPeriodLock runs fn under the period lock, reporting a held lock as
// ErrPeriodBusy.
func (s *PeriodServiceImpl) withPeriodLock(ctx context.Context, periodID string, fn func(ctx context.Context) error) error {
	err := lock.Hold(ctx, s.locker, lockKey(periodID), fn)
	if errors.Is(err, lock.ErrNotObtained) {
		return fmt.Errorf("%w: %v", payroll.ErrPeriodBusy, err)
	}
	return err
}

// CreatePeriod implements payroll.PeriodService.
func (s *PeriodServiceImpl) CreatePeriod(ctx context.Context, req payroll.CreatePeriodRequest) (payroll.Period, error) {
	if err := req.Validate(); err != nil {
		return payroll.Period{}, err
	}

	created, err := s.payrollRepo.CreatePeriod(ctx, payroll.Period{
		ReferenceMonth: req.Month,
		ReferenceYear:  req.Year,
		Status:         payroll.PeriodStatusOpen,
	})
	if err != nil {
		return payroll.Period{}, err
	}

	slog.Info("Created payroll period", "period_id", created.ID, "period", created.Label())
	return created, nil
}

// GetPeriod implements payroll.PeriodService.
func (s *PeriodServiceImpl) GetPeriod(ctx context.Context, id string) (payroll.Period, error) {
	return s.payrollRepo.GetPeriodByID(ctx, id)
}

// StartCalculation implements payroll.PeriodService.
func (s *PeriodServiceImpl) StartCalculation(ctx context.Context, id string) (payroll.Period, error) {
	var updated payroll.Period
	err := s.withPeriodLock(ctx, id, func(ctx context.Context) error {
		period, err := s.payrollRepo.GetPeriodByID(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != payroll.PeriodStatusOpen {
			return fmt.Errorf("%w: %s -> %s", payroll.ErrInvalidTransition, period.Status, payroll.PeriodStatusCalculating)
		}

		n, err := s.payrollRepo.CountEntries(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}
		if n > 0 {
			return payroll.ErrPeriodHasEntries
		}

		updated, err = s.payrollRepo.TransitionPeriod(ctx, id, payroll.PeriodStatusOpen, payroll.PeriodStatusCalculating, nil, nil)
		return err
	})
	if err != nil {
		return payroll.Period{}, err
	}

	slog.Info("Payroll period calculation started", "period_id", id, "period", updated.Label())
	return updated, nil
}

// Calculate implements payroll.PeriodService.
func (s *PeriodServiceImpl) Calculate(ctx context.Context, id string, opts payroll.CalculateOptions) (payroll.BatchResult, error) {
	var result payroll.BatchResult
	err := s.withPeriodLock(ctx, id, func(ctx context.Context) error {
		var err error
		result, err = s.engine.Calculate(ctx, id, opts)
		return err
	})
	return result, err
}

// Readiness implements payroll.PeriodService.
func (s *PeriodServiceImpl) Readiness(ctx context.Context, id string) (payroll.Readiness, error) {
	period, err := s.payrollRepo.GetPeriodByID(ctx, id)
	if err != nil {
		return payroll.Readiness{}, err
	}
	return s.readiness(ctx, period)
}

func (s *PeriodServiceImpl) readiness(ctx context.Context, period payroll.Period) (payroll.Readiness, error) {
	active, err := s.employeeRepo.ListActiveBetween(ctx, period.Start(), period.End())
	if err != nil {
		return payroll.Readiness{}, fmt.Errorf("failed to list active employees: %w", err)
	}
	slips, err := s.payrollRepo.ListSlips(ctx, period.ID)
	if err != nil {
		return payroll.Readiness{}, fmt.Errorf("failed to list slips: %w", err)
	}
	runs, err := s.payrollRepo.ListRuns(ctx, period.ID)
	if err != nil {
		return payroll.Readiness{}, fmt.Errorf("failed to list runs: %w", err)
	}

	slipByEmployee := make(map[string]payroll.Slip, len(slips))
	for _, slip := range slips {
		slipByEmployee[slip.EmployeeID] = slip
	}
	runByEmployee := make(map[string]payroll.Run, len(runs))
	for _, run := range runs {
		runByEmployee[run.EmployeeID] = run
	}

	r := payroll.Readiness{
		PeriodID:     period.ID,
		ActiveCount:  len(active),
		Pending:      []string{},
		Computing:    []string{},
		Failed:       []string{},
		MissingSlips: []string{},
	}
	for _, emp := range active {
		if run, ok := runByEmployee[emp.ID]; ok {
			switch run.Status {
			case payroll.RunStatusPending:
				r.Pending = append(r.Pending, emp.ID)
			case payroll.RunStatusComputing:
				r.Computing = append(r.Computing, emp.ID)
			case payroll.RunStatusFailed:
				r.Failed = append(r.Failed, emp.ID)
			}
		}

		slip, ok := slipByEmployee[emp.ID]
		switch {
		case !ok:
			r.MissingSlips = append(r.MissingSlips, emp.ID)
		case slip.Status == payroll.SlipStatusFinal:
			r.FinalSlips++
		default:
			r.DraftSlips++
		}
	}
	return r, nil
}

// FinalizeSlips implements payroll.PeriodService.
func (s *PeriodServiceImpl) FinalizeSlips(ctx context.Context, id string) (int64, error) {
	var n int64
	err := s.withPeriodLock(ctx, id, func(ctx context.Context) error {
		period, err := s.payrollRepo.GetPeriodByID(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != payroll.PeriodStatusCalculating {
			return payroll.ErrPeriodNotCalculating
		}

		r, err := s.readiness(ctx, period)
		if err != nil {
			return err
		}
		if !r.AllSucceeded() {
			return notReady(r)
		}

		n, err = s.payrollRepo.FinalizeSlips(ctx, id, s.now())
		if err != nil {
			return fmt.Errorf("failed to finalize slips: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("Finalized pay slips", "period_id", id, "count", n)
	return n, nil
}

// Close implements payroll.PeriodService.
func (s *PeriodServiceImpl) Close(ctx context.Context, id string, closedBy string) (payroll.Period, error) {
	var closed payroll.Period
	err := s.withPeriodLock(ctx, id, func(ctx context.Context) error {
		period, err := s.payrollRepo.GetPeriodByID(ctx, id)
		if err != nil {
			return err
		}
		if period.Status != payroll.PeriodStatusCalculating {
			return payroll.ErrPeriodNotCalculating
		}

		r, err := s.readiness(ctx, period)
		if err != nil {
			return err
		}
		if !r.ReadyToClose() {
			return notReady(r)
		}

		at := s.now()
		closed, err = s.payrollRepo.TransitionPeriod(ctx, id, payroll.PeriodStatusCalculating, payroll.PeriodStatusClosed, &closedBy, &at)
		return err
	})
	if err != nil {
		return payroll.Period{}, err
	}

	slog.Info("Closed payroll period", "period_id", id, "period", closed.Label(), "closed_by", closedBy)
	return closed, nil
}

func notReady(r payroll.Readiness) error {
	return fmt.Errorf("%w: %d draft, %d missing, %d pending, %d computing, %d failed",
		payroll.ErrPeriodNotReady, r.DraftSlips, len(r.MissingSlips), len(r.Pending), len(r.Computing), len(r.Failed))
}

// Purge implements payroll.PeriodService.
func (s *PeriodServiceImpl) Purge(ctx context.Context, id string) error {
	err := s.withPeriodLock(ctx, id, func(ctx context.Context) error {
		period, err := s.payrollRepo.GetPeriodByID(ctx, id)
		if err != nil {
			return err
		}
		if period.Status == payroll.PeriodStatusClosed {
			return payroll.ErrPeriodLocked
		}
		return s.txManager.WithinTx(ctx, func(txCtx context.Context) error {
			if err := s.payrollRepo.PurgePeriod(txCtx, id); err != nil {
				return fmt.Errorf("failed to purge period: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	slog.Warn("Purged payroll period outputs", "period_id", id)
	return nil
}

// ListCalculatingPeriods implements payroll.PeriodService.
func (s *PeriodServiceImpl) ListCalculatingPeriods(ctx context.Context) ([]payroll.Period, error) {
	return s.payrollRepo.ListPeriodsByStatus(ctx, payroll.PeriodStatusCalculating)
}

// ListEntries implements payroll.PeriodService.
func (s *PeriodServiceImpl) ListEntries(ctx context.Context, filter payroll.EntryFilter) ([]payroll.Entry, error) {
	if _, err := s.payrollRepo.GetPeriodByID(ctx, filter.PeriodID); err != nil {
		return nil, err
	}
	return s.payrollRepo.ListEntries(ctx, filter)
}

// GetSlip implements payroll.PeriodService.
func (s *PeriodServiceImpl) GetSlip(ctx context.Context, periodID, employeeID string) (payroll.Slip, []payroll.Entry, error) {
	slip, err := s.payrollRepo.GetSlip(ctx, periodID, employeeID)
	if err != nil {
		return payroll.Slip{}, nil, err
	}
	entries, err := s.payrollRepo.ListEntries(ctx, payroll.EntryFilter{PeriodID: periodID, EmployeeID: &employeeID})
	if err != nil {
		return payroll.Slip{}, nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return slip, entries, nil
}
