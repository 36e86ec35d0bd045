package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePeriodService implements the calls the job makes. Anything else
// panics through the nil embedded interface.
type fakePeriodService struct {
	payroll.PeriodService
	periods    []payroll.Period
	readiness  map[string]payroll.Readiness
	calcErr    map[string]error
	calculated []string
}

func (f *fakePeriodService) ListCalculatingPeriods(ctx context.Context) ([]payroll.Period, error) {
	return f.periods, nil
}

func (f *fakePeriodService) Readiness(ctx context.Context, id string) (payroll.Readiness, error) {
	return f.readiness[id], nil
}

func (f *fakePeriodService) Calculate(ctx context.Context, id string, opts payroll.CalculateOptions) (payroll.BatchResult, error) {
	if opts.Mode != payroll.CalculationModeResume {
		return payroll.BatchResult{}, errors.New("unexpected mode")
	}
	f.calculated = append(f.calculated, id)
	if err := f.calcErr[id]; err != nil {
		return payroll.BatchResult{}, err
	}
	return payroll.BatchResult{PeriodID: id}, nil
}

func TestPayrollJobs_ResumeCalculatingPeriods(t *testing.T) {
	svc := &fakePeriodService{
		periods: []payroll.Period{
			{ID: "done", ReferenceMonth: 1, ReferenceYear: 2024},
			{ID: "pending", ReferenceMonth: 2, ReferenceYear: 2024},
			{ID: "busy", ReferenceMonth: 3, ReferenceYear: 2024},
		},
		readiness: map[string]payroll.Readiness{
			"done":    {},
			"pending": {Pending: []string{"e1"}},
			"busy":    {Failed: []string{"e2"}},
		},
		calcErr: map[string]error{"busy": payroll.ErrPeriodBusy},
	}

	err := NewPayrollJobs(svc, time.Minute).ResumeCalculatingPeriods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pending", "busy"}, svc.calculated)
}

func TestPayrollJobs_ReportsCalculateFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := &fakePeriodService{
		periods:   []payroll.Period{{ID: "p1", ReferenceMonth: 1, ReferenceYear: 2024}},
		readiness: map[string]payroll.Readiness{"p1": {MissingSlips: []string{"e1"}}},
		calcErr:   map[string]error{"p1": boom},
	}

	err := NewPayrollJobs(svc, time.Minute).ResumeCalculatingPeriods(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_RegisterAndRunOnce(t *testing.T) {
	s := NewScheduler()
	NewPayrollJobs(&fakePeriodService{}, 0).RegisterJobs(s)
	assert.Empty(t, s.Jobs(), "zero interval disables the job")

	NewPayrollJobs(&fakePeriodService{}, time.Minute).RegisterJobs(s)
	assert.Equal(t, []string{"resume_calculating_periods"}, s.Jobs())

	s.AddJob("panics", time.Minute, func(ctx context.Context) error { panic("bad") })
	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panics")
}
