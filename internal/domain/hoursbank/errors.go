package hoursbank

import "errors"

var (
	ErrHoursBankNotFound = errors.New("hours bank row not found")
	ErrPeriodLocked      = errors.New("hours bank month belongs to a closed payroll period")
	ErrInvalidMonth      = errors.New("month must be between 1 and 12")
	ErrNegativeMinutes   = errors.New("expected and worked minutes must be non-negative")
)
