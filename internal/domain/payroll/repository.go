package payroll

import (
	"context"
	"time"
)

// PayrollRepository defines data access methods for payroll periods and
// their calculation outputs.
type PayrollRepository interface {
	// Periods
	CreatePeriod(ctx context.Context, period Period) (Period, error)
	GetPeriodByID(ctx context.Context, id string) (Period, error)
	GetPeriodByMonthYear(ctx context.Context, month, year int) (Period, error)
	ListPeriodsByStatus(ctx context.Context, status PeriodStatus) ([]Period, error)
	// TransitionPeriod moves a period from one status to another only if
	// it is still in from; otherwise it returns ErrPeriodStateConflict.
	TransitionPeriod(ctx context.Context, id string, from, to PeriodStatus, closedBy *string, closedAt *time.Time) (Period, error)
	IsMonthClosed(ctx context.Context, month, year int) (bool, error)

	// Components and one-off items
	ListEffectiveComponents(ctx context.Context, employeeID string, start, end time.Time) ([]Component, error)
	ListItems(ctx context.Context, periodID, employeeID string) ([]Item, error)

	// Entries
	CreateEntries(ctx context.Context, entries []Entry) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	CountEntries(ctx context.Context, periodID string) (int64, error)

	// Slips
	// CreateSlip returns ErrDuplicateCalculation when a slip already exists
	// for the (period, employee) pair.
	CreateSlip(ctx context.Context, slip Slip) (Slip, error)
	GetSlip(ctx context.Context, periodID, employeeID string) (Slip, error)
	ListSlips(ctx context.Context, periodID string) ([]Slip, error)
	FinalizeSlips(ctx context.Context, periodID string, finalizedAt time.Time) (int64, error)

	// Runs
	UpsertRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, periodID string) ([]Run, error)

	// PurgePeriod deletes entries, slips and runs of a period.
	PurgePeriod(ctx context.Context, periodID string) error
}
