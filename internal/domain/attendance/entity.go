package attendance

import (
	"time"
)

type EntryType string

const (
	EntryTypeRegular  EntryType = "regular"
	EntryTypeOvertime EntryType = "overtime"
	EntryTypeAbsence  EntryType = "absence"
	EntryTypeHoliday  EntryType = "holiday"
)

var EntryTypeValues = []string{
	string(EntryTypeRegular),
	string(EntryTypeOvertime),
	string(EntryTypeAbsence),
	string(EntryTypeHoliday),
}

// TimeEntry is one recorded day of work for an employee.
type TimeEntry struct {
	ID         string
	EmployeeID string
	Date       time.Time
	ClockIn    *time.Time
	ClockOut   *time.Time
	LunchStart *time.Time
	LunchEnd   *time.Time
	Type       EntryType
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Policy holds the thresholds the aggregator applies. It is supplied by
// the caller so tiering stays configurable.
type Policy struct {
	OvertimeToleranceMinutes int
	LateToleranceMinutes     int
	NightStartMinute         int // 1320 = 22:00
	NightEndMinute           int // 300 = 05:00, may wrap past midnight
	PremiumWeekdays          []time.Weekday
}

// DefaultPolicy is the CLT convention: 10 minutes tolerance, Sunday at
// 100%, night shift from 22:00 to 05:00.
func DefaultPolicy() Policy {
	return Policy{
		OvertimeToleranceMinutes: 10,
		LateToleranceMinutes:     10,
		NightStartMinute:         22 * 60,
		NightEndMinute:           5 * 60,
		PremiumWeekdays:          []time.Weekday{time.Sunday},
	}
}

func (p Policy) isPremiumDay(day time.Weekday) bool {
	for _, w := range p.PremiumWeekdays {
		if w == day {
			return true
		}
	}
	return false
}

// OvertimeTier returns true when minutes worked on day are paid at the
// 100% tier.
func (p Policy) OvertimeTier(day time.Weekday, holiday bool) bool {
	return holiday || p.isPremiumDay(day)
}

type WarningKind string

const (
	WarningAttendanceDataIncomplete WarningKind = "AttendanceDataIncomplete"
)

type Warning struct {
	Kind   WarningKind `json:"kind"`
	Date   time.Time   `json:"date"`
	Detail string      `json:"detail"`
}

// Summary is the reduction of a period's time entries for one employee.
type Summary struct {
	ExpectedMinutes    int       `json:"expected_minutes"`
	WorkedMinutes      int       `json:"worked_minutes"`
	Overtime50Minutes  int       `json:"overtime_50_minutes"`
	Overtime100Minutes int       `json:"overtime_100_minutes"`
	NightShiftMinutes  int       `json:"night_shift_minutes"`
	LateMinutes        int       `json:"late_minutes"`
	AbsenceDays        int       `json:"absence_days"`
	Warnings           []Warning `json:"warnings,omitempty"`
}
