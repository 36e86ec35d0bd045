package leave

import "time"

// LeaveDay is one approved day of leave. Paid leave excuses an expected
// workday; unpaid leave is treated as an absence.
type LeaveDay struct {
	EmployeeID string
	Date       time.Time
	Paid       bool
}
