package employee

import (
	"context"
	"time"
)

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)
	// ListActiveBetween returns employees whose employment overlaps
	// [start, end], ordered by employee code.
	ListActiveBetween(ctx context.Context, start, end time.Time) ([]Employee, error)
}
