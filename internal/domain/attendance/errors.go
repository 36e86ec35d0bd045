package attendance

import "errors"

var (
	// ErrAttendanceDataIncomplete is reported through Summary.Warnings,
	// never returned from Aggregate.
	ErrAttendanceDataIncomplete = errors.New("attendance data incomplete")
	ErrInvalidRange             = errors.New("period start is after period end")
)
