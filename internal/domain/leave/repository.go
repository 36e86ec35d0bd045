package leave

import (
	"context"
	"time"
)

type LeaveRepository interface {
	// ListApprovedDays expands approved leave requests into days within
	// [start, end].
	ListApprovedDays(ctx context.Context, employeeID string, start, end time.Time) ([]LeaveDay, error)
}
