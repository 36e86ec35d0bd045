package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/retry"
	taxservice "github.com/cmlabs-hris/payroll-engine/internal/service/taxtable"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Settings tunes a calculation batch.
type Settings struct {
	Workers            int
	DefaultMode        payroll.CalculationMode
	FGTSRate           decimal.Decimal
	DependentDeduction decimal.Decimal
	Attendance         attendance.Policy
	Retry              retry.Policy
}

func DefaultSettings() Settings {
	return Settings{
		Workers:            4,
		DefaultMode:        payroll.CalculationModeResume,
		FGTSRate:           decimal.RequireFromString("0.08"),
		DependentDeduction: decimal.RequireFromString("189.59"),
		Attendance:         attendance.DefaultPolicy(),
		Retry:              retry.DefaultPolicy(),
	}
}

type EngineImpl struct {
	txManager    database.TxManager
	payrollRepo  payroll.PayrollRepository
	employeeRepo employee.EmployeeRepository
	resolver     taxtable.Resolver
	aggregator   attendance.Aggregator
	assembler    payroll.CompensationAssembler
	ledger       hoursbank.Ledger
	settings     Settings
	now          func() time.Time
}

func NewEngine(
	txManager database.TxManager,
	payrollRepo payroll.PayrollRepository,
	employeeRepo employee.EmployeeRepository,
	resolver taxtable.Resolver,
	aggregator attendance.Aggregator,
	assembler payroll.CompensationAssembler,
	ledger hoursbank.Ledger,
	settings Settings,
) payroll.CalculationEngine {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	if settings.DefaultMode == "" {
		settings.DefaultMode = payroll.CalculationModeResume
	}
	return &EngineImpl{
		txManager:    txManager,
		payrollRepo:  payrollRepo,
		employeeRepo: employeeRepo,
		resolver:     resolver,
		aggregator:   aggregator,
		assembler:    assembler,
		ledger:       ledger,
		settings:     settings,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// tables are the bracket tables of one batch, resolved once at period end.
type tables struct {
	inss    []taxtable.Bracket
	inssErr error
	irrf    []taxtable.Bracket
	irrfErr error
}

type batch struct {
	mu     sync.Mutex
	result payroll.BatchResult
}

func (b *batch) succeed(employeeID string, warnings []attendance.Warning) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result.Succeeded = append(b.result.Succeeded, employeeID)
	for _, w := range warnings {
		b.result.Warnings = append(b.result.Warnings, payroll.EmployeeWarning{EmployeeID: employeeID, Warning: w})
	}
}

func (b *batch) skip(employeeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result.Skipped = append(b.result.Skipped, employeeID)
}

func (b *batch) fail(employeeID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result.Failed = append(b.result.Failed, payroll.EmployeeFailure{
		EmployeeID: employeeID,
		Kind:       payroll.ClassifyError(err),
		Reason:     err.Error(),
	})
}

// Calculate implements payroll.CalculationEngine. Per-employee failures
// are collected in the result; only setup errors and cancellation are
// returned.
func (e *EngineImpl) Calculate(ctx context.Context, periodID string, opts payroll.CalculateOptions) (payroll.BatchResult, error) {
	mode := opts.Mode
	if mode == "" {
		mode = e.settings.DefaultMode
	}

	period, err := retry.Value(ctx, e.settings.Retry, database.IsTransient, "get_period",
		func(ctx context.Context) (payroll.Period, error) {
			return e.payrollRepo.GetPeriodByID(ctx, periodID)
		})
	if err != nil {
		return payroll.BatchResult{}, err
	}
	if period.Status != payroll.PeriodStatusCalculating {
		return payroll.BatchResult{}, payroll.ErrPeriodNotCalculating
	}

	b := &batch{result: payroll.BatchResult{PeriodID: period.ID}}

	targets, err := e.targets(ctx, period, opts.EmployeeIDs, b)
	if err != nil {
		return payroll.BatchResult{}, err
	}

	slips, err := e.payrollRepo.ListSlips(ctx, period.ID)
	if err != nil {
		return payroll.BatchResult{}, fmt.Errorf("failed to list slips: %w", err)
	}
	hasSlip := make(map[string]bool, len(slips))
	for _, s := range slips {
		hasSlip[s.EmployeeID] = true
	}
	runs, err := e.payrollRepo.ListRuns(ctx, period.ID)
	if err != nil {
		return payroll.BatchResult{}, fmt.Errorf("failed to list runs: %w", err)
	}
	attempts := make(map[string]int, len(runs))
	for _, r := range runs {
		attempts[r.EmployeeID] = r.Attempts
	}

	var todo []employee.Employee
	for _, emp := range targets {
		if hasSlip[emp.ID] {
			if mode == payroll.CalculationModeStrict {
				b.fail(emp.ID, fmt.Errorf("employee %s: %w", emp.ID, payroll.ErrDuplicateCalculation))
			} else {
				b.skip(emp.ID)
			}
			continue
		}
		if err := e.payrollRepo.UpsertRun(ctx, payroll.Run{
			PeriodID: period.ID, EmployeeID: emp.ID, Status: payroll.RunStatusPending, Attempts: attempts[emp.ID],
		}); err != nil {
			return payroll.BatchResult{}, fmt.Errorf("failed to mark run pending: %w", err)
		}
		todo = append(todo, emp)
	}

	tbl := e.resolveTables(ctx, period)

	slog.Info("Calculating payroll period", "period_id", period.ID, "period", period.Label(),
		"mode", mode, "targets", len(targets), "queued", len(todo), "workers", e.settings.Workers)

	var g errgroup.Group
	g.SetLimit(e.settings.Workers)
	for _, emp := range todo {
		if ctx.Err() != nil {
			break
		}
		emp := emp
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			e.runEmployee(ctx, period, emp, attempts[emp.ID]+1, mode, tbl, b)
			return nil
		})
	}
	_ = g.Wait()

	res := b.result
	slices.Sort(res.Succeeded)
	slices.Sort(res.Skipped)
	slices.SortFunc(res.Failed, func(a, b payroll.EmployeeFailure) int {
		return strings.Compare(a.EmployeeID, b.EmployeeID)
	})
	slices.SortStableFunc(res.Warnings, func(a, b payroll.EmployeeWarning) int {
		return strings.Compare(a.EmployeeID, b.EmployeeID)
	})

	slog.Info("Payroll batch finished", "period_id", period.ID,
		"succeeded", len(res.Succeeded), "skipped", len(res.Skipped), "failed", len(res.Failed))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// targets lists the active employees of the period, narrowed to ids when
// given. Requested ids outside the period are reported as failures.
func (e *EngineImpl) targets(ctx context.Context, period payroll.Period, ids []string, b *batch) ([]employee.Employee, error) {
	active, err := retry.Value(ctx, e.settings.Retry, database.IsTransient, "list_active_employees",
		func(ctx context.Context) ([]employee.Employee, error) {
			return e.employeeRepo.ListActiveBetween(ctx, period.Start(), period.End())
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list active employees: %w", err)
	}
	if len(ids) == 0 {
		return active, nil
	}

	byID := make(map[string]employee.Employee, len(active))
	for _, emp := range active {
		byID[emp.ID] = emp
	}
	var out []employee.Employee
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		emp, ok := byID[id]
		if !ok {
			b.fail(id, fmt.Errorf("employee %s: %w", id, payroll.ErrEmployeeNotInPeriod))
			continue
		}
		out = append(out, emp)
	}
	return out, nil
}

func (e *EngineImpl) resolveTables(ctx context.Context, period payroll.Period) tables {
	resolve := func(t taxtable.TaxType) ([]taxtable.Bracket, error) {
		return retry.Value(ctx, e.settings.Retry, database.IsTransient, "resolve_brackets",
			func(ctx context.Context) ([]taxtable.Bracket, error) {
				return e.resolver.ResolveBrackets(ctx, t, period.End())
			})
	}
	var tbl tables
	tbl.inss, tbl.inssErr = resolve(taxtable.TaxTypeINSS)
	tbl.irrf, tbl.irrfErr = resolve(taxtable.TaxTypeIRRF)
	return tbl
}

func (e *EngineImpl) runEmployee(ctx context.Context, period payroll.Period, emp employee.Employee, attempt int, mode payroll.CalculationMode, tbl tables, b *batch) {
	// run state must be recorded even when the batch is being cancelled
	stateCtx := context.WithoutCancel(ctx)
	e.setRun(stateCtx, period.ID, emp.ID, payroll.RunStatusComputing, attempt, nil)

	var warnings []attendance.Warning
	err := retry.Do(ctx, e.settings.Retry, database.IsTransient, "calculate_employee", func(ctx context.Context) error {
		var err error
		warnings, err = e.calculateEmployee(ctx, period, emp, mode, tbl)
		return err
	})

	switch {
	case err == nil:
		e.setRun(stateCtx, period.ID, emp.ID, payroll.RunStatusSucceeded, attempt, nil)
		b.succeed(emp.ID, warnings)
	case mode == payroll.CalculationModeResume && errors.Is(err, payroll.ErrDuplicateCalculation):
		// another batch wrote the slip first
		e.setRun(stateCtx, period.ID, emp.ID, payroll.RunStatusSucceeded, attempt, nil)
		b.skip(emp.ID)
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		e.setRun(stateCtx, period.ID, emp.ID, payroll.RunStatusPending, attempt, nil)
	default:
		e.setRun(stateCtx, period.ID, emp.ID, payroll.RunStatusFailed, attempt, err)
		b.fail(emp.ID, err)
		slog.Error("Failed to calculate employee payroll", "period_id", period.ID, "employee_id", emp.ID,
			"kind", payroll.ClassifyError(err), "error", err)
	}
}

func (e *EngineImpl) setRun(ctx context.Context, periodID, employeeID string, status payroll.RunStatus, attempt int, cause error) {
	run := payroll.Run{PeriodID: periodID, EmployeeID: employeeID, Status: status, Attempts: attempt}
	if cause != nil {
		kind := payroll.ClassifyError(cause)
		detail := cause.Error()
		run.ErrorKind = &kind
		run.ErrorDetail = &detail
	}
	if err := e.payrollRepo.UpsertRun(ctx, run); err != nil {
		slog.Error("Failed to record run state", "period_id", periodID, "employee_id", employeeID, "status", status, "error", err)
	}
}

// calculateEmployee computes one slip and stores it, together with the
// hours bank roll-forward and every entry, in a single transaction.
func (e *EngineImpl) calculateEmployee(ctx context.Context, period payroll.Period, emp employee.Employee, mode payroll.CalculationMode, tbl tables) ([]attendance.Warning, error) {
	if tbl.inssErr != nil {
		return nil, fmt.Errorf("failed to resolve INSS brackets: %w", tbl.inssErr)
	}
	if tbl.irrfErr != nil {
		return nil, fmt.Errorf("failed to resolve IRRF brackets: %w", tbl.irrfErr)
	}

	summary, err := e.aggregator.Aggregate(ctx, emp, period.Start(), period.End(), e.settings.Attendance)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}

	err = e.txManager.WithinTx(ctx, func(txCtx context.Context) error {
		bank, err := e.ledger.RollForward(txCtx, emp.ID, period.ReferenceMonth, period.ReferenceYear,
			summary.ExpectedMinutes, summary.WorkedMinutes)
		if err != nil {
			return fmt.Errorf("failed to roll hours bank forward: %w", err)
		}

		earnings, err := e.assembler.AssembleEarnings(txCtx, emp, period, summary, &bank)
		if err != nil {
			return err
		}
		deductions, err := e.assembler.AssembleDeductions(txCtx, emp, period, summary, earnings)
		if err != nil {
			return err
		}

		slip, entries := e.buildSlip(period, emp, mode, summary, bank, earnings, deductions, tbl)
		if err := checkTotals(slip, entries); err != nil {
			return err
		}

		if err := e.payrollRepo.CreateEntries(txCtx, entries); err != nil {
			return fmt.Errorf("failed to create entries: %w", err)
		}
		if _, err := e.payrollRepo.CreateSlip(txCtx, slip); err != nil {
			return fmt.Errorf("failed to create slip: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary.Warnings, nil
}

func (e *EngineImpl) buildSlip(
	period payroll.Period,
	emp employee.Employee,
	mode payroll.CalculationMode,
	summary attendance.Summary,
	bank hoursbank.HoursBank,
	earnings payroll.Earnings,
	deductions []payroll.Entry,
	tbl tables,
) (payroll.Slip, []payroll.Entry) {
	gross := decimal.Zero
	for _, en := range earnings.Entries {
		gross = gross.Add(en.Amount)
	}

	inss := taxservice.ComputeProgressiveTax(gross, tbl.inss)
	inssRate := decimal.Zero
	if b, ok := taxservice.MatchBracket(gross, tbl.inss); ok {
		inssRate = b.Rate
	}

	dependents := decimal.NewFromInt(int64(emp.IRRFDependents))
	irrfBase := money.Round(money.NonNegative(gross.Sub(inss).Sub(e.settings.DependentDeduction.Mul(dependents))))
	irrf := taxservice.ComputeProgressiveTax(irrfBase, tbl.irrf)
	irrfRate := decimal.Zero
	if b, ok := taxservice.MatchBracket(irrfBase, tbl.irrf); ok {
		irrfRate = b.Rate
	}

	fgts := money.Round(gross.Mul(e.settings.FGTSRate))

	entries := make([]payroll.Entry, 0, len(earnings.Entries)+len(deductions)+3)
	entries = append(entries, earnings.Entries...)
	entries = append(entries, deductions...)
	entries = appendTax(entries, payroll.EntryKindDeduction, payroll.CodeINSS, "INSS", inssRate, inss)
	entries = appendTax(entries, payroll.EntryKindDeduction, payroll.CodeIRRF, "IRRF", irrfRate, irrf)
	entries = appendTax(entries, payroll.EntryKindEmployerCharge, payroll.CodeFGTS, "FGTS", e.settings.FGTSRate, fgts)
	payroll.SortEntries(entries)
	for i := range entries {
		entries[i].PeriodID = period.ID
		entries[i].EmployeeID = emp.ID
	}

	earningsTotal, deductionsTotal := totals(entries)
	slip := payroll.Slip{
		PeriodID:        period.ID,
		EmployeeID:      emp.ID,
		GrossSalary:     earningsTotal,
		TotalEarnings:   earningsTotal,
		TotalDeductions: deductionsTotal,
		NetSalary:       earningsTotal.Sub(deductionsTotal),
		INSSAmount:      inss,
		IRRFAmount:      irrf,
		FGTSAmount:      fgts,
		Status:          payroll.SlipStatusDraft,
		Details: payroll.SlipDetails{
			Mode:               mode,
			Attendance:         summary,
			HourlyRate:         earnings.HourlyRate,
			INSSRate:           inssRate,
			IRRFBase:           irrfBase,
			IRRFRate:           irrfRate,
			IRRFDependents:     emp.IRRFDependents,
			DependentDeduction: e.settings.DependentDeduction,
			FGTSRate:           e.settings.FGTSRate,
			HoursBank: &payroll.HoursBankSnapshot{
				BalanceMinutes:            bank.BalanceMinutes,
				AccumulatedBalanceMinutes: bank.AccumulatedBalanceMinutes,
			},
		},
	}
	return slip, entries
}

func appendTax(entries []payroll.Entry, kind payroll.EntryKind, code payroll.EntryCode, desc string, rate, amount decimal.Decimal) []payroll.Entry {
	if !amount.IsPositive() {
		return entries
	}
	return append(entries, payroll.Entry{
		Kind:           kind,
		Code:           code,
		Description:    desc,
		ReferenceValue: money.Round(money.Percent(rate)),
		Quantity:       decimal.NewFromInt(1),
		Amount:         amount,
	})
}

func totals(entries []payroll.Entry) (earnings, deductions decimal.Decimal) {
	earnings, deductions = decimal.Zero, decimal.Zero
	for _, en := range entries {
		switch en.Kind {
		case payroll.EntryKindEarning:
			earnings = earnings.Add(en.Amount)
		case payroll.EntryKindDeduction:
			deductions = deductions.Add(en.Amount)
		}
	}
	return earnings, deductions
}

// checkTotals enforces the slip invariants against its entries: totals
// are the sums per kind, gross equals earnings, net is earnings minus
// deductions, and the tax amounts match their lines.
func checkTotals(slip payroll.Slip, entries []payroll.Entry) error {
	earnings, deductions := totals(entries)
	byCode := make(map[payroll.EntryCode]decimal.Decimal)
	for _, en := range entries {
		byCode[en.Code] = byCode[en.Code].Add(en.Amount)
	}

	switch {
	case !slip.TotalEarnings.Equal(earnings):
		return fmt.Errorf("%w: earnings %s != %s", payroll.ErrSlipTotalsMismatch, slip.TotalEarnings, earnings)
	case !slip.TotalDeductions.Equal(deductions):
		return fmt.Errorf("%w: deductions %s != %s", payroll.ErrSlipTotalsMismatch, slip.TotalDeductions, deductions)
	case !slip.GrossSalary.Equal(slip.TotalEarnings):
		return fmt.Errorf("%w: gross %s != earnings %s", payroll.ErrSlipTotalsMismatch, slip.GrossSalary, slip.TotalEarnings)
	case !slip.NetSalary.Equal(earnings.Sub(deductions)):
		return fmt.Errorf("%w: net %s", payroll.ErrSlipTotalsMismatch, slip.NetSalary)
	case !slip.INSSAmount.Equal(byCode[payroll.CodeINSS]):
		return fmt.Errorf("%w: inss", payroll.ErrSlipTotalsMismatch)
	case !slip.IRRFAmount.Equal(byCode[payroll.CodeIRRF]):
		return fmt.Errorf("%w: irrf", payroll.ErrSlipTotalsMismatch)
	case !slip.FGTSAmount.Equal(byCode[payroll.CodeFGTS]):
		return fmt.Errorf("%w: fgts", payroll.ErrSlipTotalsMismatch)
	}
	for _, en := range entries {
		if !en.Amount.Equal(money.Round(en.Amount)) {
			return fmt.Errorf("%w: %s amount %s is not rounded to cents", payroll.ErrSlipTotalsMismatch, en.Code, en.Amount)
		}
	}
	return nil
}
