package hoursbank

import "time"

type HoursBankResponse struct {
	Month                     int       `json:"month"`
	Year                      int       `json:"year"`
	ExpectedMinutes           int       `json:"expected_minutes"`
	WorkedMinutes             int       `json:"worked_minutes"`
	BalanceMinutes            int       `json:"balance_minutes"`
	AccumulatedBalanceMinutes int       `json:"accumulated_balance_minutes"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

func NewHoursBankResponses(rows []HoursBank) []HoursBankResponse {
	out := make([]HoursBankResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, HoursBankResponse{
			Month:                     h.Month,
			Year:                      h.Year,
			ExpectedMinutes:           h.ExpectedMinutes,
			WorkedMinutes:             h.WorkedMinutes,
			BalanceMinutes:            h.BalanceMinutes,
			AccumulatedBalanceMinutes: h.AccumulatedBalanceMinutes,
			UpdatedAt:                 h.UpdatedAt,
		})
	}
	return out
}
