package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/shopspring/decimal"
)

// PeriodStatus enum
type PeriodStatus string

const (
	PeriodStatusOpen        PeriodStatus = "open"
	PeriodStatusCalculating PeriodStatus = "calculating"
	PeriodStatusClosed      PeriodStatus = "closed"
)

// Period - one month of payroll work
type Period struct {
	ID             string
	ReferenceMonth int
	ReferenceYear  int
	Status         PeriodStatus
	ClosedBy       *string
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Start is the first day of the reference month, UTC.
func (p Period) Start() time.Time {
	return time.Date(p.ReferenceYear, time.Month(p.ReferenceMonth), 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the reference month, UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) Label() string {
	return fmt.Sprintf("%04d-%02d", p.ReferenceYear, p.ReferenceMonth)
}

// ComponentType enum
type ComponentType string

const (
	ComponentTypeBaseSalary   ComponentType = "base_salary"
	ComponentTypeFixedBonus   ComponentType = "fixed_bonus"
	ComponentTypeHazardPay    ComponentType = "hazard_pay"
	ComponentTypeUnhealthyPay ComponentType = "unhealthy_pay"
	ComponentTypeOther        ComponentType = "other"
)

// Component - recurring per-employee pay item
type Component struct {
	ID             string
	EmployeeID     string
	Type           ComponentType
	Amount         decimal.Decimal
	Description    *string
	IsActive       bool
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveBetween applies the period rule: starts by the period end,
// has not ended before the period start, and is active.
func (c Component) EffectiveBetween(start, end time.Time) bool {
	if !c.IsActive || c.EffectiveFrom.After(end) {
		return false
	}
	return c.EffectiveUntil == nil || !c.EffectiveUntil.Before(start)
}

// Item - one-off earning or deduction entered for a single period
type Item struct {
	ID          string
	PeriodID    string
	EmployeeID  string
	Code        EntryCode
	Kind        EntryKind
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// Entry - immutable pay slip line
type Entry struct {
	ID             string
	PeriodID       string
	EmployeeID     string
	Kind           EntryKind
	Code           EntryCode
	Description    string
	ReferenceValue decimal.Decimal
	Quantity       decimal.Decimal
	Amount         decimal.Decimal
	Sequence       int
	CreatedAt      time.Time
}

// SlipStatus enum
type SlipStatus string

const (
	SlipStatusDraft SlipStatus = "draft"
	SlipStatusFinal SlipStatus = "final"
)

// Slip - per employee, per period summary
type Slip struct {
	ID              string
	PeriodID        string
	EmployeeID      string
	GrossSalary     decimal.Decimal
	TotalEarnings   decimal.Decimal
	TotalDeductions decimal.Decimal
	NetSalary       decimal.Decimal
	INSSAmount      decimal.Decimal
	IRRFAmount      decimal.Decimal
	FGTSAmount      decimal.Decimal
	Details         SlipDetails
	Status          SlipStatus
	CreatedAt       time.Time
	FinalizedAt     *time.Time
}

// SlipDetails is the structured breakdown stored alongside a slip.
type SlipDetails struct {
	Mode               CalculationMode    `json:"mode"`
	Attendance         attendance.Summary `json:"attendance"`
	HourlyRate         decimal.Decimal    `json:"hourly_rate"`
	INSSRate           decimal.Decimal    `json:"inss_rate"`
	IRRFBase           decimal.Decimal    `json:"irrf_base"`
	IRRFRate           decimal.Decimal    `json:"irrf_rate"`
	IRRFDependents     int                `json:"irrf_dependents"`
	DependentDeduction decimal.Decimal    `json:"dependent_deduction"`
	FGTSRate           decimal.Decimal    `json:"fgts_rate"`
	HoursBank          *HoursBankSnapshot `json:"hours_bank,omitempty"`
}

type HoursBankSnapshot struct {
	BalanceMinutes            int `json:"balance_minutes"`
	AccumulatedBalanceMinutes int `json:"accumulated_balance_minutes"`
}

// RunStatus enum
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusComputing RunStatus = "computing"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run - per (period, employee) calculation state
type Run struct {
	PeriodID    string
	EmployeeID  string
	Status      RunStatus
	ErrorKind   *ErrorKind
	ErrorDetail *string
	Attempts    int
	UpdatedAt   time.Time
}

// CalculationMode controls how an existing slip is treated.
type CalculationMode string

const (
	// CalculationModeResume skips employees that already have a slip.
	CalculationModeResume CalculationMode = "resume"
	// CalculationModeStrict reports DuplicateCalculation for them.
	CalculationModeStrict CalculationMode = "strict"
)

var CalculationModeValues = []string{
	string(CalculationModeResume),
	string(CalculationModeStrict),
}

type CalculateOptions struct {
	EmployeeIDs []string
	Mode        CalculationMode
}

type EmployeeFailure struct {
	EmployeeID string    `json:"employee_id"`
	Kind       ErrorKind `json:"kind"`
	Reason     string    `json:"reason"`
}

type EmployeeWarning struct {
	EmployeeID string             `json:"employee_id"`
	Warning    attendance.Warning `json:"warning"`
}

// BatchResult - outcome of one Calculate call
type BatchResult struct {
	PeriodID  string            `json:"period_id"`
	Succeeded []string          `json:"succeeded"`
	Skipped   []string          `json:"skipped"`
	Failed    []EmployeeFailure `json:"failed"`
	Warnings  []EmployeeWarning `json:"warnings,omitempty"`
}

// Readiness - per-employee state counts used by finalize and close guards
type Readiness struct {
	PeriodID     string   `json:"period_id"`
	ActiveCount  int      `json:"active_count"`
	DraftSlips   int      `json:"draft_slips"`
	FinalSlips   int      `json:"final_slips"`
	Pending      []string `json:"pending"`
	Computing    []string `json:"computing"`
	Failed       []string `json:"failed"`
	MissingSlips []string `json:"missing_slips"`
}

// AllSucceeded reports whether every active employee has a slip and no
// run is outstanding.
func (r Readiness) AllSucceeded() bool {
	return len(r.Pending) == 0 && len(r.Computing) == 0 && len(r.Failed) == 0 && len(r.MissingSlips) == 0
}

// ReadyToClose additionally requires every slip to be final.
func (r Readiness) ReadyToClose() bool {
	return r.AllSucceeded() && r.DraftSlips == 0
}

type EntryFilter struct {
	PeriodID   string
	EmployeeID *string
	Code       *EntryCode
}
