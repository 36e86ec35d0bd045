package attendance

import (
	"context"
	"time"
)

type TimeEntryRepository interface {
	// ListByEmployee returns entries dated within [start, end], ordered by date.
	ListByEmployee(ctx context.Context, employeeID string, start, end time.Time) ([]TimeEntry, error)
}
