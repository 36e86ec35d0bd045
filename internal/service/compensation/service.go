package compensation

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// commercialMonth is the day count salaries are prorated against.
const commercialMonth = 30

var (
	thirty = decimal.NewFromInt(commercialMonth)
	one    = decimal.NewFromInt(1)
)

// Policy holds the pay rules applied on top of the raw components.
type Policy struct {
	MonthlyHours          decimal.Decimal
	Overtime50Multiplier  decimal.Decimal
	Overtime100Multiplier decimal.Decimal
	NightPremium          decimal.Decimal
	VTRate                decimal.Decimal
	PayoutHoursBank       bool
	LateDeduction         bool
}

func DefaultPolicy() Policy {
	return Policy{
		MonthlyHours:          decimal.NewFromInt(220),
		Overtime50Multiplier:  decimal.RequireFromString("1.5"),
		Overtime100Multiplier: decimal.NewFromInt(2),
		NightPremium:          decimal.RequireFromString("0.20"),
		VTRate:                decimal.RequireFromString("0.06"),
	}
}

type AssemblerImpl struct {
	payrollRepo    payroll.PayrollRepository
	enrollmentRepo benefit.EnrollmentRepository
	policy         Policy
}

func NewAssembler(payrollRepo payroll.PayrollRepository, enrollmentRepo benefit.EnrollmentRepository, policy Policy) payroll.CompensationAssembler {
	return &AssemblerImpl{
		payrollRepo:    payrollRepo,
		enrollmentRepo: enrollmentRepo,
		policy:         policy,
	}
}

// AssembleEarnings implements payroll.CompensationAssembler.
func (a *AssemblerImpl) AssembleEarnings(ctx context.Context, emp employee.Employee, period payroll.Period, summary attendance.Summary, bank *hoursbank.HoursBank) (payroll.Earnings, error) {
	components, err := a.payrollRepo.ListEffectiveComponents(ctx, emp.ID, period.Start(), period.End())
	if err != nil {
		return payroll.Earnings{}, fmt.Errorf("failed to list components: %w", err)
	}

	base, ok := baseSalary(components)
	if !ok {
		return payroll.Earnings{}, fmt.Errorf("employee %s: %w", emp.ID, payroll.ErrMissingCompensationData)
	}

	monthly := base.Amount
	days := commercialDays(emp, period)
	baseAmount := monthly
	if days < commercialMonth {
		baseAmount = money.Round(monthly.Div(thirty).Mul(decimal.NewFromInt(int64(days))))
	}
	rate := monthly.Div(a.policy.MonthlyHours)

	out := payroll.Earnings{
		MonthlyBase: monthly,
		BaseAmount:  baseAmount,
		HourlyRate:  money.Round(rate),
	}
	out.Entries = append(out.Entries, line(payroll.EntryKindEarning, payroll.CodeBaseSalary, "Base salary",
		monthly, decimal.NewFromInt(int64(days)), baseAmount))

	out.Entries = appendHours(out.Entries, payroll.CodeOvertime50, "Overtime 50%",
		rate.Mul(a.policy.Overtime50Multiplier), summary.Overtime50Minutes, payroll.EntryKindEarning)
	out.Entries = appendHours(out.Entries, payroll.CodeOvertime100, "Overtime 100%",
		rate.Mul(a.policy.Overtime100Multiplier), summary.Overtime100Minutes, payroll.EntryKindEarning)
	out.Entries = appendHours(out.Entries, payroll.CodeNightShift, "Night shift premium",
		rate.Mul(a.policy.NightPremium), summary.NightShiftMinutes, payroll.EntryKindEarning)

	for _, c := range components {
		if c.Type == payroll.ComponentTypeBaseSalary {
			continue
		}
		code, err := payroll.CodeForComponent(c.Type)
		if err != nil {
			return payroll.Earnings{}, err
		}
		desc := string(c.Type)
		if c.Description != nil && *c.Description != "" {
			desc = *c.Description
		}
		out.Entries = appendAmount(out.Entries, payroll.EntryKindEarning, code, desc, c.Amount)
	}

	if a.policy.PayoutHoursBank && bank != nil && bank.AccumulatedBalanceMinutes > 0 && terminatedWithin(emp, period) {
		out.Entries = appendHours(out.Entries, payroll.CodeOther, "Hours bank payout",
			rate.Mul(a.policy.Overtime50Multiplier), bank.AccumulatedBalanceMinutes, payroll.EntryKindEarning)
	}

	items, err := a.items(ctx, period.ID, emp.ID, payroll.EntryKindEarning)
	if err != nil {
		return payroll.Earnings{}, err
	}
	out.Entries = append(out.Entries, items...)

	payroll.SortEntries(out.Entries)
	return out, nil
}

// AssembleDeductions implements payroll.CompensationAssembler.
func (a *AssemblerImpl) AssembleDeductions(ctx context.Context, emp employee.Employee, period payroll.Period, summary attendance.Summary, earnings payroll.Earnings) ([]payroll.Entry, error) {
	enrollments, err := a.enrollmentRepo.ListEffective(ctx, emp.ID, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("failed to list benefit enrollments: %w", err)
	}

	var out []payroll.Entry
	for _, e := range enrollments {
		switch e.Type {
		case benefit.BenefitTypeTransportVoucher:
			amount := decimal.Min(money.Round(earnings.BaseAmount.Mul(a.policy.VTRate)), e.MonthlyValue)
			if amount.IsPositive() {
				out = append(out, line(payroll.EntryKindDeduction, payroll.CodeVTDiscount, "Transport voucher",
					money.Percent(a.policy.VTRate), one, amount))
			}
		default:
			name := e.Name
			if name == "" {
				name = string(e.Type)
			}
			out = appendAmount(out, payroll.EntryKindDeduction, payroll.CodeBenefitDiscount, name, e.EmployeeShare)
		}
	}

	if summary.AbsenceDays > 0 {
		daily := earnings.MonthlyBase.Div(thirty)
		days := decimal.NewFromInt(int64(summary.AbsenceDays))
		out = append(out, line(payroll.EntryKindDeduction, payroll.CodeAbsence, "Absences",
			daily, days, money.Round(daily.Mul(days))))
	}

	if a.policy.LateDeduction {
		rate := earnings.MonthlyBase.Div(a.policy.MonthlyHours)
		out = appendHours(out, payroll.CodeOther, "Late arrivals", rate, summary.LateMinutes, payroll.EntryKindDeduction)
	}

	items, err := a.items(ctx, period.ID, emp.ID, payroll.EntryKindDeduction)
	if err != nil {
		return nil, err
	}
	out = append(out, items...)

	payroll.SortEntries(out)
	return out, nil
}

func (a *AssemblerImpl) items(ctx context.Context, periodID, employeeID string, kind payroll.EntryKind) ([]payroll.Entry, error) {
	items, err := a.payrollRepo.ListItems(ctx, periodID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll items: %w", err)
	}

	var out []payroll.Entry
	for _, it := range items {
		if it.Kind != kind {
			continue
		}
		if err := validItemKind(it); err != nil {
			return nil, err
		}
		desc := it.Description
		if desc == "" {
			desc = string(it.Code)
		}
		out = appendAmount(out, it.Kind, it.Code, desc, it.Amount)
	}
	return out, nil
}

// validItemKind only lets other and benefit_discount move between kinds.
func validItemKind(it payroll.Item) error {
	def, err := it.Code.DefaultKind()
	if err != nil {
		return err
	}
	if it.Code == payroll.CodeOther || it.Code == payroll.CodeBenefitDiscount {
		if it.Kind == payroll.EntryKindEarning || it.Kind == payroll.EntryKindDeduction {
			return nil
		}
	} else if it.Kind == def {
		return nil
	}
	return fmt.Errorf("%w: %s cannot be a %s item", payroll.ErrInvalidEntryCode, it.Code, it.Kind)
}

// baseSalary picks the base salary component with the latest start.
func baseSalary(components []payroll.Component) (payroll.Component, bool) {
	var best payroll.Component
	found := false
	for _, c := range components {
		if c.Type != payroll.ComponentTypeBaseSalary {
			continue
		}
		if !found || c.EffectiveFrom.After(best.EffectiveFrom) {
			best, found = c, true
		}
	}
	return best, found
}

// commercialDays counts the employed days of the period on a 30-day
// month: day 31 and the last day of a short month both count as day 30.
func commercialDays(emp employee.Employee, period payroll.Period) int {
	start, end := period.Start(), period.End()
	first, last := 1, commercialMonth
	if hire := truncate(emp.HireDate); hire.After(start) {
		if hire.After(end) {
			return 0
		}
		first = commercialDay(hire, end)
	}
	if emp.TerminationDate != nil {
		term := truncate(*emp.TerminationDate)
		if term.Before(start) {
			return 0
		}
		if term.Before(end) {
			last = commercialDay(term, end)
		}
	}
	if last < first {
		return 0
	}
	return last - first + 1
}

// commercialDay maps t onto the 30-day month ending at monthEnd.
func commercialDay(t, monthEnd time.Time) int {
	if t.Day() == monthEnd.Day() || t.Day() > commercialMonth {
		return commercialMonth
	}
	return t.Day()
}

func terminatedWithin(emp employee.Employee, period payroll.Period) bool {
	if emp.TerminationDate == nil {
		return false
	}
	t := truncate(*emp.TerminationDate)
	return !t.Before(period.Start()) && !t.After(period.End())
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func line(kind payroll.EntryKind, code payroll.EntryCode, desc string, ref, qty, amount decimal.Decimal) payroll.Entry {
	return payroll.Entry{
		Kind:           kind,
		Code:           code,
		Description:    desc,
		ReferenceValue: money.Round(ref),
		Quantity:       money.Round(qty),
		Amount:         money.Round(amount),
	}
}

// appendHours adds an hour-based line when minutes is positive.
func appendHours(entries []payroll.Entry, code payroll.EntryCode, desc string, hourly decimal.Decimal, minutes int, kind payroll.EntryKind) []payroll.Entry {
	if minutes <= 0 {
		return entries
	}
	hours := money.Hours(minutes)
	return append(entries, line(kind, code, desc, hourly, hours, hourly.Mul(hours)))
}

// appendAmount adds a flat line when amount is positive.
func appendAmount(entries []payroll.Entry, kind payroll.EntryKind, code payroll.EntryCode, desc string, amount decimal.Decimal) []payroll.Entry {
	if !amount.IsPositive() {
		return entries
	}
	return append(entries, line(kind, code, desc, amount, one, amount))
}
