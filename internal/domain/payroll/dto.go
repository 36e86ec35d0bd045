package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== PERIOD DTOs ==========

type CreatePeriodRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (r *CreatePeriodRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Month < 1 || r.Month > 12 {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "must be between 1 and 12"})
	}
	if r.Year < 2000 || r.Year > 2100 {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "must be between 2000 and 2100"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PeriodResponse struct {
	ID             string     `json:"id"`
	ReferenceMonth int        `json:"reference_month"`
	ReferenceYear  int        `json:"reference_year"`
	Status         string     `json:"status"`
	ClosedBy       *string    `json:"closed_by,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewPeriodResponse(p Period) PeriodResponse {
	return PeriodResponse{
		ID:             p.ID,
		ReferenceMonth: p.ReferenceMonth,
		ReferenceYear:  p.ReferenceYear,
		Status:         string(p.Status),
		ClosedBy:       p.ClosedBy,
		ClosedAt:       p.ClosedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ========== CALCULATION DTOs ==========

type CalculateRequest struct {
	EmployeeIDs []string `json:"employee_ids,omitempty"`
	Mode        string   `json:"mode,omitempty"`
}

func (r *CalculateRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Mode != "" && !validator.IsInSlice(r.Mode, CalculationModeValues) {
		errs = append(errs, validator.ValidationError{Field: "mode", Message: "must be 'resume' or 'strict'"})
	}
	for _, id := range r.EmployeeIDs {
		if !validator.IsValidUUID(id) {
			errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "must contain valid UUIDs"})
			break
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Options converts the request, falling back to defaultMode.
func (r *CalculateRequest) Options(defaultMode CalculationMode) CalculateOptions {
	mode := defaultMode
	if r.Mode != "" {
		mode = CalculationMode(r.Mode)
	}
	return CalculateOptions{EmployeeIDs: r.EmployeeIDs, Mode: mode}
}

type BatchSummaryResponse struct {
	BatchResult
	SucceededCount int `json:"succeeded_count"`
	SkippedCount   int `json:"skipped_count"`
	FailedCount    int `json:"failed_count"`
}

func NewBatchSummaryResponse(r BatchResult) BatchSummaryResponse {
	return BatchSummaryResponse{
		BatchResult:    r,
		SucceededCount: len(r.Succeeded),
		SkippedCount:   len(r.Skipped),
		FailedCount:    len(r.Failed),
	}
}

// ========== ENTRY & SLIP DTOs ==========

type EntryResponse struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	Kind           string          `json:"kind"`
	Code           string          `json:"code"`
	Description    string          `json:"description,omitempty"`
	ReferenceValue decimal.Decimal `json:"reference_value"`
	Quantity       decimal.Decimal `json:"quantity"`
	Amount         decimal.Decimal `json:"amount"`
	Sequence       int             `json:"sequence"`
}

func NewEntryResponses(entries []Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:             e.ID,
			EmployeeID:     e.EmployeeID,
			Kind:           string(e.Kind),
			Code:           string(e.Code),
			Description:    e.Description,
			ReferenceValue: e.ReferenceValue,
			Quantity:       e.Quantity,
			Amount:         e.Amount,
			Sequence:       e.Sequence,
		})
	}
	return out
}

type SlipResponse struct {
	ID              string          `json:"id"`
	PeriodID        string          `json:"period_id"`
	EmployeeID      string          `json:"employee_id"`
	GrossSalary     decimal.Decimal `json:"gross_salary"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetSalary       decimal.Decimal `json:"net_salary"`
	INSSAmount      decimal.Decimal `json:"inss_amount"`
	IRRFAmount      decimal.Decimal `json:"irrf_amount"`
	FGTSAmount      decimal.Decimal `json:"fgts_amount"`
	Details         SlipDetails     `json:"details"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	FinalizedAt     *time.Time      `json:"finalized_at,omitempty"`
	Entries         []EntryResponse `json:"entries,omitempty"`
}

func NewSlipResponse(s Slip, entries []Entry) SlipResponse {
	return SlipResponse{
		ID:              s.ID,
		PeriodID:        s.PeriodID,
		EmployeeID:      s.EmployeeID,
		GrossSalary:     s.GrossSalary,
		TotalEarnings:   s.TotalEarnings,
		TotalDeductions: s.TotalDeductions,
		NetSalary:       s.NetSalary,
		INSSAmount:      s.INSSAmount,
		IRRFAmount:      s.IRRFAmount,
		FGTSAmount:      s.FGTSAmount,
		Details:         s.Details,
		Status:          string(s.Status),
		CreatedAt:       s.CreatedAt,
		FinalizedAt:     s.FinalizedAt,
		Entries:         NewEntryResponses(entries),
	}
}
