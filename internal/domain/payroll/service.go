package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/shopspring/decimal"
)

// CalculationEngine computes pay slips for the employees of a period.
type CalculationEngine interface {
	Calculate(ctx context.Context, periodID string, opts CalculateOptions) (BatchResult, error)
}

// PeriodService owns the period state machine and is the entry point for
// operators.
type PeriodService interface {
	CreatePeriod(ctx context.Context, req CreatePeriodRequest) (Period, error)
	GetPeriod(ctx context.Context, id string) (Period, error)
	StartCalculation(ctx context.Context, id string) (Period, error)
	Calculate(ctx context.Context, id string, opts CalculateOptions) (BatchResult, error)
	Readiness(ctx context.Context, id string) (Readiness, error)
	FinalizeSlips(ctx context.Context, id string) (int64, error)
	Close(ctx context.Context, id string, closedBy string) (Period, error)
	Purge(ctx context.Context, id string) error
	ListCalculatingPeriods(ctx context.Context) ([]Period, error)

	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	GetSlip(ctx context.Context, periodID, employeeID string) (Slip, []Entry, error)
}

// Earnings is the earning side of a slip together with the salary
// figures the deduction side and the slip details are derived from.
type Earnings struct {
	Entries     []Entry
	MonthlyBase decimal.Decimal
	// BaseAmount is the base salary line, prorated when the employee was
	// hired or terminated inside the period.
	BaseAmount decimal.Decimal
	HourlyRate decimal.Decimal
}

// CompensationAssembler turns recurring components, attendance, benefits
// and one-off items into unsaved slip entries.
type CompensationAssembler interface {
	AssembleEarnings(ctx context.Context, emp employee.Employee, period Period, summary attendance.Summary, bank *hoursbank.HoursBank) (Earnings, error)
	AssembleDeductions(ctx context.Context, emp employee.Employee, period Period, summary attendance.Summary, earnings Earnings) ([]Entry, error)
}
