package employee

import "time"

type EmploymentStatus string

const (
	EmploymentStatusActive   EmploymentStatus = "active"
	EmploymentStatusInactive EmploymentStatus = "inactive"
)

// Employee is the read model payroll consumes from the employee module.
type Employee struct {
	ID               string
	EmployeeCode     string
	FullName         string
	IRRFDependents   int
	HireDate         time.Time
	TerminationDate  *time.Time
	EmploymentStatus EmploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActiveBetween reports whether the employment overlaps [start, end].
func (e Employee) ActiveBetween(start, end time.Time) bool {
	if e.HireDate.After(end) {
		return false
	}
	return e.TerminationDate == nil || !e.TerminationDate.Before(start)
}

// EmployedOn reports whether day falls inside the employment window.
func (e Employee) EmployedOn(day time.Time) bool {
	return e.ActiveBetween(day, day)
}
