package payroll

import (
	"errors"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
)

var (
	ErrPeriodNotFound          = errors.New("payroll period not found")
	ErrPeriodAlreadyExists     = errors.New("payroll period already exists for this month")
	ErrPeriodNotCalculating    = errors.New("payroll period is not in calculating state")
	ErrPeriodLocked            = errors.New("payroll period is closed")
	ErrPeriodHasEntries        = errors.New("payroll period already has entries, purge them first")
	ErrPeriodNotReady          = errors.New("payroll period has employees without a final pay slip")
	ErrPeriodStateConflict     = errors.New("payroll period status changed concurrently")
	ErrPeriodBusy              = errors.New("payroll period is being processed by another operation")
	ErrInvalidTransition       = errors.New("invalid payroll period transition")
	ErrDuplicateCalculation    = errors.New("pay slip already exists for this employee and period")
	ErrMissingCompensationData = errors.New("employee has no active base salary component")
	ErrSlipNotFound            = errors.New("pay slip not found")
	ErrInvalidEntryCode        = errors.New("invalid payroll entry code")
	ErrInvalidComponentType    = errors.New("invalid payroll component type")
	ErrInvalidPeriod           = errors.New("invalid payroll period")
	ErrEmployeeNotInPeriod     = errors.New("employee is not active in this payroll period")
	ErrSlipTotalsMismatch      = errors.New("pay slip totals do not match its entries")
)

// ErrorKind is the failure taxonomy surfaced in batch results.
type ErrorKind string

const (
	KindNoBracketsFound          ErrorKind = "NoBracketsFound"
	KindMissingCompensationData  ErrorKind = "MissingCompensationData"
	KindDuplicateCalculation     ErrorKind = "DuplicateCalculation"
	KindPeriodNotCalculating     ErrorKind = "PeriodNotCalculating"
	KindPeriodLocked             ErrorKind = "PeriodLocked"
	KindAttendanceDataIncomplete ErrorKind = "AttendanceDataIncomplete"
	KindInternal                 ErrorKind = "Internal"
)

// ClassifyError maps a wrapped error onto the failure taxonomy.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, taxtable.ErrNoBracketsFound):
		return KindNoBracketsFound
	case errors.Is(err, ErrMissingCompensationData):
		return KindMissingCompensationData
	case errors.Is(err, ErrDuplicateCalculation):
		return KindDuplicateCalculation
	case errors.Is(err, ErrPeriodNotCalculating):
		return KindPeriodNotCalculating
	case errors.Is(err, ErrPeriodLocked), errors.Is(err, hoursbank.ErrPeriodLocked):
		return KindPeriodLocked
	default:
		return KindInternal
	}
}
