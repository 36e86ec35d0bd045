package attendance

import (
	"context"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
)

type Aggregator interface {
	Aggregate(ctx context.Context, emp employee.Employee, start, end time.Time, policy Policy) (Summary, error)
}
