package compensation

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/benefit"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/hoursbank"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var march = payroll.Period{ID: "period-2024-03", ReferenceMonth: 3, ReferenceYear: 2024, Status: payroll.PeriodStatusCalculating}

type fixture struct {
	store *memory.Store
	emp   employee.Employee
}

func newFixture(t *testing.T, emp employee.Employee, baseSalary string) fixture {
	t.Helper()
	store := memory.NewStore()
	if emp.HireDate.IsZero() {
		emp.HireDate = date(2023, time.June, 1)
	}
	emp = store.AddEmployee(emp)
	if baseSalary != "" {
		store.AddComponent(payroll.Component{
			EmployeeID: emp.ID, Type: payroll.ComponentTypeBaseSalary, Amount: dec(baseSalary),
			IsActive: true, EffectiveFrom: date(2023, time.June, 1),
		})
	}
	return fixture{store: store, emp: emp}
}

func (f fixture) assembler(policy Policy) payroll.CompensationAssembler {
	return NewAssembler(memory.NewPayrollRepository(f.store), memory.NewEnrollmentRepository(f.store), policy)
}

func codes(entries []payroll.Entry) []payroll.EntryCode {
	out := make([]payroll.EntryCode, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

func byCode(t *testing.T, entries []payroll.Entry, code payroll.EntryCode) payroll.Entry {
	t.Helper()
	for _, e := range entries {
		if e.Code == code {
			return e
		}
	}
	t.Fatalf("no %s entry", code)
	return payroll.Entry{}
}

func TestAssembleEarnings_FullMonth(t *testing.T) {
	f := newFixture(t, employee.Employee{EmployeeCode: "E1"}, "3000.00")
	f.store.AddComponent(payroll.Component{
		EmployeeID: f.emp.ID, Type: payroll.ComponentTypeHazardPay, Amount: dec("450.00"),
		IsActive: true, EffectiveFrom: date(2024, time.January, 1),
	})
	f.store.AddItem(payroll.Item{
		PeriodID: march.ID, EmployeeID: f.emp.ID, Code: payroll.CodeBonus, Kind: payroll.EntryKindEarning,
		Amount: dec("200.00"), Description: "Quarterly target",
	})

	summary := attendance.Summary{Overtime50Minutes: 300, Overtime100Minutes: 120, NightShiftMinutes: 240}
	got, err := f.assembler(DefaultPolicy()).AssembleEarnings(context.Background(), f.emp, march, summary, nil)
	require.NoError(t, err)

	assert.Equal(t, []payroll.EntryCode{
		payroll.CodeBaseSalary, payroll.CodeOvertime50, payroll.CodeOvertime100,
		payroll.CodeNightShift, payroll.CodeBonus, payroll.CodeHazardPay,
	}, codes(got.Entries))
	for i, e := range got.Entries {
		assert.Equal(t, i+1, e.Sequence)
		assert.Equal(t, payroll.EntryKindEarning, e.Kind)
	}

	base := byCode(t, got.Entries, payroll.CodeBaseSalary)
	assert.Equal(t, "3000.00", base.Amount.StringFixed(2))
	assert.Equal(t, "30.00", base.Quantity.StringFixed(2))

	assert.Equal(t, "102.27", byCode(t, got.Entries, payroll.CodeOvertime50).Amount.StringFixed(2))
	assert.Equal(t, "54.55", byCode(t, got.Entries, payroll.CodeOvertime100).Amount.StringFixed(2))
	assert.Equal(t, "10.91", byCode(t, got.Entries, payroll.CodeNightShift).Amount.StringFixed(2))
	assert.Equal(t, "450.00", byCode(t, got.Entries, payroll.CodeHazardPay).Amount.StringFixed(2))
	assert.Equal(t, "Quarterly target", byCode(t, got.Entries, payroll.CodeBonus).Description)

	assert.Equal(t, "13.64", got.HourlyRate.StringFixed(2))
	assert.True(t, got.MonthlyBase.Equal(dec("3000")))
}

func TestAssembleEarnings_Proration(t *testing.T) {
	term := date(2024, time.March, 20)
	termLastOfFeb := date(2024, time.February, 29)
	termFeb15 := date(2024, time.February, 15)
	feb := payroll.Period{ID: "feb", ReferenceMonth: 2, ReferenceYear: 2024}
	tests := []struct {
		name   string
		emp    employee.Employee
		period payroll.Period
		days   string
		amount string
	}{
		{"hired mid month", employee.Employee{HireDate: date(2024, time.March, 11)}, march, "20.00", "2000.00"},
		{"hired on the second misses one day", employee.Employee{HireDate: date(2024, time.March, 2)}, march, "29.00", "2900.00"},
		{"hired on the 31st works one day", employee.Employee{HireDate: date(2024, time.March, 31)}, march, "1.00", "100.00"},
		{"terminated mid month", employee.Employee{HireDate: date(2023, time.June, 1), TerminationDate: &term}, march, "20.00", "2000.00"},
		{"hired and terminated in the month", employee.Employee{HireDate: date(2024, time.March, 11), TerminationDate: &term}, march, "10.00", "1000.00"},
		{"short month is still thirty days", employee.Employee{}, feb, "30.00", "3000.00"},
		{"hired mid short month", employee.Employee{HireDate: date(2024, time.February, 15)}, feb, "16.00", "1600.00"},
		{"terminated mid short month", employee.Employee{HireDate: date(2023, time.June, 1), TerminationDate: &termFeb15}, feb, "15.00", "1500.00"},
		{"terminated on the last day of a short month", employee.Employee{HireDate: date(2023, time.June, 1), TerminationDate: &termLastOfFeb}, feb, "30.00", "3000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.emp, "3000.00")
			got, err := f.assembler(DefaultPolicy()).AssembleEarnings(context.Background(), f.emp, tt.period, attendance.Summary{}, nil)
			require.NoError(t, err)

			base := byCode(t, got.Entries, payroll.CodeBaseSalary)
			assert.Equal(t, tt.days, base.Quantity.StringFixed(2))
			assert.Equal(t, tt.amount, base.Amount.StringFixed(2))
			assert.Equal(t, tt.amount, got.BaseAmount.StringFixed(2))
			assert.Equal(t, "3000.00", base.ReferenceValue.StringFixed(2))
		})
	}
}

func TestAssembleEarnings_MissingBaseSalary(t *testing.T) {
	f := newFixture(t, employee.Employee{}, "")
	_, err := f.assembler(DefaultPolicy()).AssembleEarnings(context.Background(), f.emp, march, attendance.Summary{}, nil)
	assert.ErrorIs(t, err, payroll.ErrMissingCompensationData)
}

func TestAssembleEarnings_LatestBaseSalaryWins(t *testing.T) {
	f := newFixture(t, employee.Employee{}, "2500.00")
	f.store.AddComponent(payroll.Component{
		EmployeeID: f.emp.ID, Type: payroll.ComponentTypeBaseSalary, Amount: dec("3000.00"),
		IsActive: true, EffectiveFrom: date(2024, time.January, 1),
	})

	got, err := f.assembler(DefaultPolicy()).AssembleEarnings(context.Background(), f.emp, march, attendance.Summary{}, nil)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
	assert.Equal(t, "3000.00", got.BaseAmount.StringFixed(2))
}

func TestAssembleEarnings_HoursBankPayout(t *testing.T) {
	policy := DefaultPolicy()
	policy.PayoutHoursBank = true
	bank := &hoursbank.HoursBank{AccumulatedBalanceMinutes: 600}

	term := date(2024, time.March, 31)
	leaving := newFixture(t, employee.Employee{TerminationDate: &term}, "3000.00")
	got, err := leaving.assembler(policy).AssembleEarnings(context.Background(), leaving.emp, march, attendance.Summary{}, bank)
	require.NoError(t, err)
	payout := byCode(t, got.Entries, payroll.CodeOther)
	assert.Equal(t, "204.55", payout.Amount.StringFixed(2))
	assert.Equal(t, "10.00", payout.Quantity.StringFixed(2))

	staying := newFixture(t, employee.Employee{}, "3000.00")
	got, err = staying.assembler(policy).AssembleEarnings(context.Background(), staying.emp, march, attendance.Summary{}, bank)
	require.NoError(t, err)
	assert.Equal(t, []payroll.EntryCode{payroll.CodeBaseSalary}, codes(got.Entries))
}

func TestAssembleDeductions(t *testing.T) {
	f := newFixture(t, employee.Employee{}, "3000.00")
	f.store.AddEnrollment(benefit.Enrollment{
		EmployeeID: f.emp.ID, Type: benefit.BenefitTypeTransportVoucher, Name: "VT",
		MonthlyValue: dec("220.00"), EffectiveFrom: date(2024, time.January, 1),
	})
	f.store.AddEnrollment(benefit.Enrollment{
		EmployeeID: f.emp.ID, Type: benefit.BenefitTypeHealth, Name: "Health plan",
		MonthlyValue: dec("600.00"), EmployeeShare: dec("150.00"), EffectiveFrom: date(2024, time.January, 1),
	})
	f.store.AddItem(payroll.Item{
		PeriodID: march.ID, EmployeeID: f.emp.ID, Code: payroll.CodeAdvance, Kind: payroll.EntryKindDeduction,
		Amount: dec("500.00"),
	})

	a := f.assembler(DefaultPolicy())
	summary := attendance.Summary{AbsenceDays: 2, LateMinutes: 30}
	earnings, err := a.AssembleEarnings(context.Background(), f.emp, march, summary, nil)
	require.NoError(t, err)

	got, err := a.AssembleDeductions(context.Background(), f.emp, march, summary, earnings)
	require.NoError(t, err)

	assert.Equal(t, []payroll.EntryCode{
		payroll.CodeVTDiscount, payroll.CodeBenefitDiscount, payroll.CodeAbsence, payroll.CodeAdvance,
	}, codes(got))
	for _, e := range got {
		assert.Equal(t, payroll.EntryKindDeduction, e.Kind)
	}

	vt := byCode(t, got, payroll.CodeVTDiscount)
	assert.Equal(t, "180.00", vt.Amount.StringFixed(2))
	assert.Equal(t, "6.00", vt.ReferenceValue.StringFixed(2))
	assert.Equal(t, "150.00", byCode(t, got, payroll.CodeBenefitDiscount).Amount.StringFixed(2))
	absence := byCode(t, got, payroll.CodeAbsence)
	assert.Equal(t, "200.00", absence.Amount.StringFixed(2))
	assert.Equal(t, "2.00", absence.Quantity.StringFixed(2))
	assert.Equal(t, "advance", byCode(t, got, payroll.CodeAdvance).Description)
}

func TestAssembleDeductions_VoucherCappedAtMonthlyValue(t *testing.T) {
	f := newFixture(t, employee.Employee{}, "3000.00")
	f.store.AddEnrollment(benefit.Enrollment{
		EmployeeID: f.emp.ID, Type: benefit.BenefitTypeTransportVoucher,
		MonthlyValue: dec("120.00"), EffectiveFrom: date(2024, time.January, 1),
	})

	a := f.assembler(DefaultPolicy())
	earnings, err := a.AssembleEarnings(context.Background(), f.emp, march, attendance.Summary{}, nil)
	require.NoError(t, err)
	got, err := a.AssembleDeductions(context.Background(), f.emp, march, attendance.Summary{}, earnings)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "120.00", got[0].Amount.StringFixed(2))
}

func TestAssembleDeductions_LateDeduction(t *testing.T) {
	f := newFixture(t, employee.Employee{}, "3000.00")
	policy := DefaultPolicy()
	policy.LateDeduction = true
	a := f.assembler(policy)

	summary := attendance.Summary{LateMinutes: 30}
	earnings, err := a.AssembleEarnings(context.Background(), f.emp, march, summary, nil)
	require.NoError(t, err)
	got, err := a.AssembleDeductions(context.Background(), f.emp, march, summary, earnings)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, payroll.CodeOther, got[0].Code)
	assert.Equal(t, "6.82", got[0].Amount.StringFixed(2))
}

func TestAssembleDeductions_RejectsItemUnderWrongKind(t *testing.T) {
	f := newFixture(t, employee.Employee{}, "3000.00")
	f.store.AddItem(payroll.Item{
		PeriodID: march.ID, EmployeeID: f.emp.ID, Code: payroll.CodeBonus, Kind: payroll.EntryKindDeduction,
		Amount: dec("10.00"),
	})

	a := f.assembler(DefaultPolicy())
	earnings, err := a.AssembleEarnings(context.Background(), f.emp, march, attendance.Summary{}, nil)
	require.NoError(t, err)
	_, err = a.AssembleDeductions(context.Background(), f.emp, march, attendance.Summary{}, earnings)
	assert.ErrorIs(t, err, payroll.ErrInvalidEntryCode)
}

func TestValidItemKind(t *testing.T) {
	assert.NoError(t, validItemKind(payroll.Item{Code: payroll.CodeOther, Kind: payroll.EntryKindDeduction}))
	assert.NoError(t, validItemKind(payroll.Item{Code: payroll.CodeBenefitDiscount, Kind: payroll.EntryKindEarning}))
	assert.NoError(t, validItemKind(payroll.Item{Code: payroll.CodeCommission, Kind: payroll.EntryKindEarning}))
	assert.Error(t, validItemKind(payroll.Item{Code: payroll.CodeFGTS, Kind: payroll.EntryKindDeduction}))
	assert.Error(t, validItemKind(payroll.Item{Code: "bogus", Kind: payroll.EntryKindEarning}))
}
