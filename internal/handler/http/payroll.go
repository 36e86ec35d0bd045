package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Periods
	CreatePeriod(w http.ResponseWriter, r *http.Request)
	GetPeriod(w http.ResponseWriter, r *http.Request)
	StartCalculation(w http.ResponseWriter, r *http.Request)
	Calculate(w http.ResponseWriter, r *http.Request)
	Readiness(w http.ResponseWriter, r *http.Request)
	FinalizeSlips(w http.ResponseWriter, r *http.Request)
	Close(w http.ResponseWriter, r *http.Request)
	Purge(w http.ResponseWriter, r *http.Request)

	// Outputs
	ListEntries(w http.ResponseWriter, r *http.Request)
	GetSlip(w http.ResponseWriter, r *http.Request)

	// Hours bank
	ListHoursBank(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	periodService payroll.PeriodService
	ledger        hoursbank.Ledger
	defaultMode   payroll.CalculationMode
	now           func() time.Time
}

func NewPayrollHandler(periodService payroll.PeriodService, ledger hoursbank.Ledger, defaultMode payroll.CalculationMode) PayrollHandler {
	return &payrollHandlerImpl{
		periodService: periodService,
		ledger:        ledger,
		defaultMode:   defaultMode,
		now:           time.Now,
	}
}

// periodID reads and validates the {id} URL parameter.
func periodID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.BadRequest(w, "Invalid payroll period ID", nil)
		return "", false
	}
	return id, true
}

// ========== PERIODS ==========

func (h *payrollHandlerImpl) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req payroll.CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.periodService.CreatePeriod(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll period created", payroll.NewPeriodResponse(result))
}

func (h *payrollHandlerImpl) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	result, err := h.periodService.GetPeriod(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewPeriodResponse(result))
}

func (h *payrollHandlerImpl) StartCalculation(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	result, err := h.periodService.StartCalculation(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll calculation started", payroll.NewPeriodResponse(result))
}

func (h *payrollHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	// The body is optional: an empty one recalculates everyone pending.
	var req payroll.CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.periodService.Calculate(r.Context(), id, req.Options(h.defaultMode))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewBatchSummaryResponse(result))
}

func (h *payrollHandlerImpl) Readiness(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	result, err := h.periodService.Readiness(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) FinalizeSlips(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	n, err := h.periodService.FinalizeSlips(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Pay slips finalized", map[string]int64{"finalized": n})
}

func (h *payrollHandlerImpl) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	result, err := h.periodService.Close(r.Context(), id, middleware.UserID(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period closed", payroll.NewPeriodResponse(result))
}

func (h *payrollHandlerImpl) Purge(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	if err := h.periodService.Purge(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll period outputs purged", nil)
}

// ========== OUTPUTS ==========

func (h *payrollHandlerImpl) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}

	filter := payroll.EntryFilter{PeriodID: id}
	query := r.URL.Query()
	if employeeID := query.Get("employee_id"); employeeID != "" {
		if !validator.IsValidUUID(employeeID) {
			response.BadRequest(w, "Invalid employee ID", nil)
			return
		}
		filter.EmployeeID = &employeeID
	}
	if raw := query.Get("code"); raw != "" {
		code, err := payroll.ParseEntryCode(raw)
		if err != nil {
			response.HandleError(w, err)
			return
		}
		filter.Code = &code
	}

	entries, err := h.periodService.ListEntries(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, payroll.NewEntryResponses(entries), &response.Meta{TotalItems: int64(len(entries))})
}

func (h *payrollHandlerImpl) GetSlip(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	employeeID := chi.URLParam(r, "employeeId")
	if !validator.IsValidUUID(employeeID) {
		response.BadRequest(w, "Invalid employee ID", nil)
		return
	}

	slip, entries, err := h.periodService.GetSlip(r.Context(), id, employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewSlipResponse(slip, entries))
}

// ========== HOURS BANK ==========

func (h *payrollHandlerImpl) ListHoursBank(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	if !validator.IsValidUUID(employeeID) {
		response.BadRequest(w, "Invalid employee ID", nil)
		return
	}

	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, ok := validator.ParseYear(raw)
		if !ok {
			response.BadRequest(w, "Invalid year", nil)
			return
		}
		year = parsed
	}

	rows, err := h.ledger.ListByYear(r.Context(), employeeID, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, hoursbank.NewHoursBankResponses(rows))
}
