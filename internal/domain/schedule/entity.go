package schedule

import "time"

// WorkSchedule is the standard workday an employee is expected to keep.
type WorkSchedule struct {
	EmployeeID   string
	DailyMinutes int
	StartMinute  int // minutes after midnight, 480 = 08:00
	Workdays     []time.Weekday
}

// IsWorkday reports whether day is a scheduled working day.
func (s WorkSchedule) IsWorkday(day time.Weekday) bool {
	for _, w := range s.Workdays {
		if w == day {
			return true
		}
	}
	return false
}

// DefaultWorkdays is Monday through Friday.
var DefaultWorkdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}
