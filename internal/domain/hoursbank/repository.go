package hoursbank

import "context"

type HoursBankRepository interface {
	// LockEmployee blocks until no other transaction holds the employee's
	// ledger, then holds it until the transaction in ctx ends.
	LockEmployee(ctx context.Context, employeeID string) error
	// Get returns ErrHoursBankNotFound when no row exists for the month.
	Get(ctx context.Context, employeeID string, month, year int) (HoursBank, error)
	// ListFrom returns rows at or after (month, year) in chronological order.
	ListFrom(ctx context.Context, employeeID string, month, year int) ([]HoursBank, error)
	ListByYear(ctx context.Context, employeeID string, year int) ([]HoursBank, error)
	Upsert(ctx context.Context, row HoursBank) (HoursBank, error)
}

// PeriodStatusReader tells the ledger whether a month is closed for payroll.
type PeriodStatusReader interface {
	IsMonthClosed(ctx context.Context, month, year int) (bool, error)
}
