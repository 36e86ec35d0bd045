package hoursbank

import "context"

type Ledger interface {
	RollForward(ctx context.Context, employeeID string, month, year, expectedMinutes, workedMinutes int) (HoursBank, error)
	ListByYear(ctx context.Context, employeeID string, year int) ([]HoursBank, error)
}
