package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/schedule"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/retry"
)

const dateKey = "2006-01-02"

type AggregatorImpl struct {
	timeEntryRepo   attendance.TimeEntryRepository
	scheduleRepo    schedule.WorkScheduleRepository
	leaveRepo       leave.LeaveRepository
	defaultSchedule schedule.WorkSchedule
	retryPolicy     retry.Policy
}

func NewAggregator(
	timeEntryRepo attendance.TimeEntryRepository,
	scheduleRepo schedule.WorkScheduleRepository,
	leaveRepo leave.LeaveRepository,
	defaultSchedule schedule.WorkSchedule,
	retryPolicy retry.Policy,
) attendance.Aggregator {
	return &AggregatorImpl{
		timeEntryRepo:   timeEntryRepo,
		scheduleRepo:    scheduleRepo,
		leaveRepo:       leaveRepo,
		defaultSchedule: defaultSchedule,
		retryPolicy:     retryPolicy,
	}
}

// Aggregate implements attendance.Aggregator.
func (a *AggregatorImpl) Aggregate(ctx context.Context, emp employee.Employee, start, end time.Time, policy attendance.Policy) (attendance.Summary, error) {
	start, end = truncateDay(start), truncateDay(end)
	if start.After(end) {
		return attendance.Summary{}, attendance.ErrInvalidRange
	}

	// Only days inside the employment window count.
	if hire := truncateDay(emp.HireDate); hire.After(start) {
		start = hire
	}
	if emp.TerminationDate != nil {
		if term := truncateDay(*emp.TerminationDate); term.Before(end) {
			end = term
		}
	}
	if start.After(end) {
		return attendance.Summary{}, nil
	}

	ws, err := a.workSchedule(ctx, emp.ID)
	if err != nil {
		return attendance.Summary{}, err
	}

	entries, err := retry.Value(ctx, a.retryPolicy, database.IsTransient, "list_time_entries",
		func(ctx context.Context) ([]attendance.TimeEntry, error) {
			return a.timeEntryRepo.ListByEmployee(ctx, emp.ID, start, end)
		})
	if err != nil {
		return attendance.Summary{}, fmt.Errorf("failed to list time entries: %w", err)
	}

	leaveDays, err := retry.Value(ctx, a.retryPolicy, database.IsTransient, "list_leave_days",
		func(ctx context.Context) ([]leave.LeaveDay, error) {
			return a.leaveRepo.ListApprovedDays(ctx, emp.ID, start, end)
		})
	if err != nil {
		return attendance.Summary{}, fmt.Errorf("failed to list leave days: %w", err)
	}

	byDay := make(map[string][]attendance.TimeEntry, len(entries))
	for _, e := range entries {
		k := e.Date.Format(dateKey)
		byDay[k] = append(byDay[k], e)
	}
	onLeave := make(map[string]leave.LeaveDay, len(leaveDays))
	for _, l := range leaveDays {
		onLeave[l.Date.Format(dateKey)] = l
	}

	var sum attendance.Summary
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		k := day.Format(dateKey)
		l, hasLeave := onLeave[k]
		aggregateDay(&sum, day, byDay[k], l, hasLeave, ws, policy)
	}

	return sum, nil
}

func (a *AggregatorImpl) workSchedule(ctx context.Context, employeeID string) (schedule.WorkSchedule, error) {
	ws, err := retry.Value(ctx, a.retryPolicy, database.IsTransient, "get_work_schedule",
		func(ctx context.Context) (schedule.WorkSchedule, error) {
			return a.scheduleRepo.GetByEmployeeID(ctx, employeeID)
		})
	if errors.Is(err, schedule.ErrWorkScheduleNotFound) {
		ws = a.defaultSchedule
		ws.EmployeeID = employeeID
		return ws, nil
	}
	if err != nil {
		return schedule.WorkSchedule{}, fmt.Errorf("failed to get work schedule: %w", err)
	}
	return ws, nil
}

func aggregateDay(sum *attendance.Summary, day time.Time, entries []attendance.TimeEntry, lv leave.LeaveDay, hasLeave bool, ws schedule.WorkSchedule, policy attendance.Policy) {
	holiday := false
	for _, e := range entries {
		if e.Type == attendance.EntryTypeHoliday {
			holiday = true
		}
	}

	scheduled := ws.IsWorkday(day.Weekday()) && !holiday
	expected := scheduled && !(hasLeave && lv.Paid)
	if expected {
		sum.ExpectedMinutes += ws.DailyMinutes
	}

	if hasLeave {
		if !lv.Paid && scheduled {
			sum.AbsenceDays++
		}
		return
	}

	if len(entries) == 0 {
		if expected {
			sum.AbsenceDays++
			warn(sum, day, "no time entry recorded for a scheduled workday")
		}
		return
	}

	var regular, overtime, night int
	var firstClockIn *time.Time
	absent := false

	for _, e := range entries {
		switch e.Type {
		case attendance.EntryTypeAbsence:
			absent = true
			continue
		case attendance.EntryTypeHoliday:
			// a bare holiday marker carries no clock data
			if e.ClockIn == nil && e.ClockOut == nil {
				continue
			}
		case attendance.EntryTypeRegular, attendance.EntryTypeOvertime:
		default:
			warn(sum, day, fmt.Sprintf("unknown time entry type %q", e.Type))
			continue
		}

		mins, problem := workedMinutes(e)
		if problem != "" {
			warn(sum, day, problem)
			continue
		}
		night += nightMinutes(e, policy)

		if e.Type == attendance.EntryTypeOvertime {
			overtime += mins
			continue
		}
		regular += mins
		if firstClockIn == nil || e.ClockIn.Before(*firstClockIn) {
			firstClockIn = e.ClockIn
		}
	}

	if absent && regular == 0 && overtime == 0 {
		if expected {
			sum.AbsenceDays++
		}
		return
	}

	sum.WorkedMinutes += regular + overtime
	sum.NightShiftMinutes += night

	extra := overtime
	if expected {
		if beyond := regular - ws.DailyMinutes; beyond > policy.OvertimeToleranceMinutes {
			extra += beyond
		}
		if firstClockIn != nil {
			if late := lateMinutes(day, *firstClockIn, ws.StartMinute); late > policy.LateToleranceMinutes {
				sum.LateMinutes += late
			}
		}
	} else {
		extra += regular
	}

	if policy.OvertimeTier(day.Weekday(), holiday) {
		sum.Overtime100Minutes += extra
	} else {
		sum.Overtime50Minutes += extra
	}
}

// workedMinutes returns clock-out minus clock-in minus lunch, clamped at
// zero, or a non-empty problem when the entry cannot be measured.
func workedMinutes(e attendance.TimeEntry) (int, string) {
	if e.ClockIn == nil {
		return 0, "missing clock-in"
	}
	if e.ClockOut == nil {
		return 0, "missing clock-out"
	}
	if e.ClockOut.Before(*e.ClockIn) {
		return 0, "clock-out before clock-in"
	}

	worked := e.ClockOut.Sub(*e.ClockIn)
	if lunch, ok := lunchDuration(e); ok {
		worked -= lunch
	}
	if worked < 0 {
		return 0, ""
	}
	return int(worked / time.Minute), ""
}

func lunchDuration(e attendance.TimeEntry) (time.Duration, bool) {
	if e.LunchStart == nil || e.LunchEnd == nil || !e.LunchEnd.After(*e.LunchStart) {
		return 0, false
	}
	return e.LunchEnd.Sub(*e.LunchStart), true
}

// nightMinutes counts worked minutes inside the night window, which may
// wrap past midnight. Lunch taken inside the window is excluded.
func nightMinutes(e attendance.TimeEntry, policy attendance.Policy) int {
	if policy.NightStartMinute == policy.NightEndMinute {
		return 0
	}
	total := windowOverlap(*e.ClockIn, *e.ClockOut, policy)
	if _, ok := lunchDuration(e); ok {
		total -= windowOverlap(*e.LunchStart, *e.LunchEnd, policy)
	}
	if total < 0 {
		return 0
	}
	return int(total / time.Minute)
}

func windowOverlap(from, to time.Time, policy attendance.Policy) time.Duration {
	loc := from.Location()
	base := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)

	var total time.Duration
	for offset := -1; offset <= 1; offset++ {
		day := base.AddDate(0, 0, offset)
		ws := day.Add(time.Duration(policy.NightStartMinute) * time.Minute)
		we := day.Add(time.Duration(policy.NightEndMinute) * time.Minute)
		if policy.NightEndMinute <= policy.NightStartMinute {
			we = we.AddDate(0, 0, 1)
		}
		total += overlap(from, to, ws, we)
	}
	return total
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

func lateMinutes(day, clockIn time.Time, startMinute int) int {
	loc := clockIn.Location()
	scheduled := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).
		Add(time.Duration(startMinute) * time.Minute)
	if !clockIn.After(scheduled) {
		return 0
	}
	return int(clockIn.Sub(scheduled) / time.Minute)
}

func warn(sum *attendance.Summary, day time.Time, detail string) {
	sum.Warnings = append(sum.Warnings, attendance.Warning{
		Kind:   attendance.WarningAttendanceDataIncomplete,
		Date:   day,
		Detail: detail,
	})
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
