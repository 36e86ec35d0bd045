package benefit

import (
	"context"
	"time"
)

type EnrollmentRepository interface {
	ListEffective(ctx context.Context, employeeID string, start, end time.Time) ([]Enrollment, error)
}
