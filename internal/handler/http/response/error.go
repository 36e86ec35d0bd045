package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, jwt.ErrTokenRevoked):
		Unauthorized(w, "Token revoked")
	case errors.Is(err, jwt.ErrInsufficientRole):
		Forbidden(w, err.Error())

	// Lookups
	case errors.Is(err, payroll.ErrPeriodNotFound):
		NotFound(w, "Payroll period not found")
	case errors.Is(err, payroll.ErrSlipNotFound):
		NotFound(w, "Pay slip not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Period state. The wrapped message carries the readiness detail.
	case errors.Is(err, payroll.ErrPeriodAlreadyExists),
		errors.Is(err, payroll.ErrPeriodNotCalculating),
		errors.Is(err, payroll.ErrPeriodLocked),
		errors.Is(err, payroll.ErrPeriodHasEntries),
		errors.Is(err, payroll.ErrPeriodNotReady),
		errors.Is(err, payroll.ErrPeriodStateConflict),
		errors.Is(err, payroll.ErrPeriodBusy),
		errors.Is(err, payroll.ErrInvalidTransition),
		errors.Is(err, payroll.ErrDuplicateCalculation),
		errors.Is(err, hoursbank.ErrPeriodLocked):
		Conflict(w, err.Error())

	// Bad input
	case errors.Is(err, payroll.ErrInvalidPeriod),
		errors.Is(err, payroll.ErrEmployeeNotInPeriod),
		errors.Is(err, payroll.ErrInvalidEntryCode),
		errors.Is(err, hoursbank.ErrInvalidMonth):
		BadRequest(w, err.Error(), nil)

	// Reference data the calculation cannot proceed without
	case errors.Is(err, taxtable.ErrNoBracketsFound),
		errors.Is(err, taxtable.ErrInvalidBracketTable),
		errors.Is(err, payroll.ErrMissingCompensationData):
		UnprocessableEntity(w, err.Error())

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
