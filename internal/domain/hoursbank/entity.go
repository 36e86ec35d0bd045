package hoursbank

import "time"

// HoursBank is one employee's minute balance for a calendar month.
type HoursBank struct {
	ID                        string
	EmployeeID                string
	Month                     int
	Year                      int
	ExpectedMinutes           int
	WorkedMinutes             int
	BalanceMinutes            int
	AccumulatedBalanceMinutes int
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// Index orders months on a single axis so neighbours differ by one.
func Index(month, year int) int {
	return year*12 + month - 1
}

// Previous returns the calendar month before (month, year).
func Previous(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}
