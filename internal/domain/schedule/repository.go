package schedule

import "context"

type WorkScheduleRepository interface {
	// GetByEmployeeID returns ErrWorkScheduleNotFound when the employee has
	// no dedicated schedule.
	GetByEmployeeID(ctx context.Context, employeeID string) (WorkSchedule, error)
}
