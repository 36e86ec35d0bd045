package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
)

type PayrollJobs struct {
	periodService  payroll.PeriodService
	resumeInterval time.Duration
}

func NewPayrollJobs(periodService payroll.PeriodService, resumeInterval time.Duration) *PayrollJobs {
	return &PayrollJobs{
		periodService:  periodService,
		resumeInterval: resumeInterval,
	}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("resume_calculating_periods", j.resumeInterval, j.ResumeCalculatingPeriods)
}

// ResumeCalculatingPeriods re-runs every calculating period that still has
// employees without a slip. Periods held by another operation are skipped.
func (j *PayrollJobs) ResumeCalculatingPeriods(ctx context.Context) error {
	periods, err := j.periodService.ListCalculatingPeriods(ctx)
	if err != nil {
		return fmt.Errorf("failed to list calculating periods: %w", err)
	}
	if len(periods) == 0 {
		slog.Debug("Cron: No calculating periods")
		return nil
	}

	var errs []error
	for _, p := range periods {
		if ctx.Err() != nil {
			break
		}

		readiness, err := j.periodService.Readiness(ctx, p.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("readiness of %s: %w", p.ID, err))
			continue
		}
		if readiness.AllSucceeded() {
			continue
		}

		slog.Info("Cron: Resuming payroll period",
			"period_id", p.ID,
			"period", p.Label(),
			"pending", len(readiness.Pending),
			"failed", len(readiness.Failed),
			"missing_slips", len(readiness.MissingSlips),
		)

		result, err := j.periodService.Calculate(ctx, p.ID, payroll.CalculateOptions{Mode: payroll.CalculationModeResume})
		if errors.Is(err, payroll.ErrPeriodBusy) {
			slog.Info("Cron: Payroll period busy, skipping", "period_id", p.ID)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("calculate %s: %w", p.ID, err))
			continue
		}

		slog.Info("Cron: Payroll period resumed",
			"period_id", p.ID,
			"succeeded", len(result.Succeeded),
			"skipped", len(result.Skipped),
			"failed", len(result.Failed),
		)
	}

	return errors.Join(errs...)
}
