package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func at(m time.Month, d, hour, minute int) *time.Time {
	t := time.Date(2024, m, d, hour, minute, 0, 0, time.UTC)
	return &t
}

func regular(empID string, d int, in, out [2]int, withLunch bool) attendance.TimeEntry {
	e := attendance.TimeEntry{
		EmployeeID: empID,
		Date:       day(time.March, d),
		ClockIn:    at(time.March, d, in[0], in[1]),
		ClockOut:   at(time.March, d, out[0], out[1]),
		Type:       attendance.EntryTypeRegular,
	}
	if withLunch {
		e.LunchStart = at(time.March, d, 12, 0)
		e.LunchEnd = at(time.March, d, 13, 0)
	}
	return e
}

func defaultSchedule() schedule.WorkSchedule {
	return schedule.WorkSchedule{DailyMinutes: 480, StartMinute: 480, Workdays: schedule.DefaultWorkdays}
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}
}

func setup(t *testing.T) (*memory.Store, attendance.Aggregator, employee.Employee) {
	t.Helper()
	store := memory.NewStore()
	agg := NewAggregator(
		memory.NewTimeEntryRepository(store),
		memory.NewWorkScheduleRepository(store),
		memory.NewLeaveRepository(store),
		defaultSchedule(),
		fastRetry(),
	)
	emp := store.AddEmployee(employee.Employee{EmployeeCode: "0001-0001", FullName: "Ana Souza", HireDate: day(time.January, 2)})
	return store, agg, emp
}

func TestAggregate_NoRecords(t *testing.T) {
	_, agg, emp := setup(t)

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 1), day(time.March, 31), attendance.DefaultPolicy())
	require.NoError(t, err)

	// March 2024 has 21 weekdays
	assert.Equal(t, 21*480, sum.ExpectedMinutes)
	assert.Equal(t, 0, sum.WorkedMinutes)
	assert.Equal(t, 21, sum.AbsenceDays)
	require.Len(t, sum.Warnings, 21)
	for _, w := range sum.Warnings {
		assert.Equal(t, attendance.WarningAttendanceDataIncomplete, w.Kind)
	}
}

func TestAggregate_Week(t *testing.T) {
	store, agg, emp := setup(t)

	// Mon normal, Tue late with overtime, Wed missing clock-out, Thu absent,
	// Fri late within tolerance, Sat and Sun off-schedule work.
	store.AddTimeEntries(
		regular(emp.ID, 4, [2]int{8, 0}, [2]int{17, 0}, true),
		regular(emp.ID, 5, [2]int{8, 30}, [2]int{18, 30}, true),
		attendance.TimeEntry{
			EmployeeID: emp.ID, Date: day(time.March, 6), ClockIn: at(time.March, 6, 8, 0), Type: attendance.EntryTypeRegular,
		},
		attendance.TimeEntry{EmployeeID: emp.ID, Date: day(time.March, 7), Type: attendance.EntryTypeAbsence},
		regular(emp.ID, 8, [2]int{8, 5}, [2]int{17, 5}, true),
		regular(emp.ID, 9, [2]int{9, 0}, [2]int{13, 0}, false),
		regular(emp.ID, 10, [2]int{10, 0}, [2]int{12, 0}, false),
	)

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 10), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 5*480, sum.ExpectedMinutes)
	assert.Equal(t, 480+540+480+240+120, sum.WorkedMinutes)
	assert.Equal(t, 60+240, sum.Overtime50Minutes)
	assert.Equal(t, 120, sum.Overtime100Minutes)
	assert.Equal(t, 30, sum.LateMinutes)
	assert.Equal(t, 1, sum.AbsenceDays)
	assert.Equal(t, 0, sum.NightShiftMinutes)
	require.Len(t, sum.Warnings, 1)
	assert.Equal(t, day(time.March, 6), sum.Warnings[0].Date)
	assert.Equal(t, "missing clock-out", sum.Warnings[0].Detail)
}

func TestAggregate_NightShift(t *testing.T) {
	store, agg, emp := setup(t)
	store.AddWorkSchedule(schedule.WorkSchedule{
		EmployeeID: emp.ID, DailyMinutes: 360, StartMinute: 20 * 60, Workdays: schedule.DefaultWorkdays,
	})
	store.AddTimeEntries(attendance.TimeEntry{
		EmployeeID: emp.ID,
		Date:       day(time.March, 4),
		ClockIn:    at(time.March, 4, 20, 0),
		ClockOut:   at(time.March, 5, 2, 0),
		Type:       attendance.EntryTypeRegular,
	})

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 4), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 360, sum.ExpectedMinutes)
	assert.Equal(t, 360, sum.WorkedMinutes)
	assert.Equal(t, 240, sum.NightShiftMinutes)
	assert.Equal(t, 0, sum.LateMinutes)
	assert.Equal(t, 0, sum.Overtime50Minutes)
	assert.Empty(t, sum.Warnings)
}

func TestAggregate_HolidayWorkedAtFullPremium(t *testing.T) {
	store, agg, emp := setup(t)
	store.AddTimeEntries(
		regular(emp.ID, 4, [2]int{8, 0}, [2]int{17, 0}, true),
		regular(emp.ID, 5, [2]int{8, 0}, [2]int{17, 0}, true),
		attendance.TimeEntry{
			EmployeeID: emp.ID, Date: day(time.March, 6), Type: attendance.EntryTypeHoliday,
			ClockIn: at(time.March, 6, 8, 0), ClockOut: at(time.March, 6, 12, 0),
		},
	)

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 6), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 2*480, sum.ExpectedMinutes)
	assert.Equal(t, 2*480+240, sum.WorkedMinutes)
	assert.Equal(t, 240, sum.Overtime100Minutes)
	assert.Equal(t, 0, sum.AbsenceDays)
}

func TestAggregate_LeaveDays(t *testing.T) {
	store, agg, emp := setup(t)
	store.AddLeaveDays(
		leave.LeaveDay{EmployeeID: emp.ID, Date: day(time.March, 4), Paid: true},
		leave.LeaveDay{EmployeeID: emp.ID, Date: day(time.March, 5), Paid: false},
	)

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 5), attendance.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, 480, sum.ExpectedMinutes, "paid leave excuses the day")
	assert.Equal(t, 1, sum.AbsenceDays, "unpaid leave counts as absence")
	assert.Empty(t, sum.Warnings)
}

func TestAggregate_ClipsToEmployment(t *testing.T) {
	store, agg, _ := setup(t)
	term := day(time.March, 29)
	emp := store.AddEmployee(employee.Employee{
		EmployeeCode: "0001-0002", HireDate: day(time.March, 27), TerminationDate: &term,
	})

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 1), day(time.March, 31), attendance.DefaultPolicy())
	require.NoError(t, err)

	// Wed 27, Thu 28, Fri 29
	assert.Equal(t, 3*480, sum.ExpectedMinutes)
	assert.Equal(t, 3, sum.AbsenceDays)
}

func TestAggregate_LunchLongerThanShiftClampsToZero(t *testing.T) {
	store, agg, emp := setup(t)
	store.AddTimeEntries(attendance.TimeEntry{
		EmployeeID: emp.ID, Date: day(time.March, 4), Type: attendance.EntryTypeRegular,
		ClockIn: at(time.March, 4, 12, 0), ClockOut: at(time.March, 4, 12, 30),
		LunchStart: at(time.March, 4, 11, 0), LunchEnd: at(time.March, 4, 13, 0),
	})

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 4), attendance.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.WorkedMinutes)
	assert.Empty(t, sum.Warnings)
}

func TestAggregate_RetriesTransientReads(t *testing.T) {
	store, agg, emp := setup(t)
	store.FailNext("ListByEmployee", &pgconn.PgError{Code: "40001"}, &pgconn.PgError{Code: "40P01"})
	store.AddTimeEntries(regular(emp.ID, 4, [2]int{8, 0}, [2]int{17, 0}, true))

	sum, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 4), attendance.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 480, sum.WorkedMinutes)
}

func TestAggregate_GivesUpAfterRetryCap(t *testing.T) {
	store, agg, emp := setup(t)
	transient := &pgconn.PgError{Code: "40001"}
	store.FailNext("ListByEmployee", transient, transient, transient)

	_, err := agg.Aggregate(context.Background(), emp, day(time.March, 4), day(time.March, 4), attendance.DefaultPolicy())
	assert.ErrorIs(t, err, transient)
}

func TestAggregate_InvalidRange(t *testing.T) {
	_, agg, emp := setup(t)
	_, err := agg.Aggregate(context.Background(), emp, day(time.March, 5), day(time.March, 4), attendance.DefaultPolicy())
	assert.ErrorIs(t, err, attendance.ErrInvalidRange)
}
