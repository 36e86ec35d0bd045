package benefit

import (
	"time"

	"github.com/shopspring/decimal"
)

type BenefitType string

const (
	BenefitTypeTransportVoucher BenefitType = "transport_voucher"
	BenefitTypeMeal             BenefitType = "meal"
	BenefitTypeHealth           BenefitType = "health"
	BenefitTypeOther            BenefitType = "other"
)

// Enrollment is an employee's participation in a benefit plan.
// EmployeeShare is ignored for transport vouchers, whose discount is a
// percentage of base salary capped at MonthlyValue.
type Enrollment struct {
	ID             string
	EmployeeID     string
	Type           BenefitType
	Name           string
	MonthlyValue   decimal.Decimal
	EmployeeShare  decimal.Decimal
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveBetween reports whether the enrollment overlaps [start, end].
func (e Enrollment) EffectiveBetween(start, end time.Time) bool {
	if e.EffectiveFrom.After(end) {
		return false
	}
	return e.EffectiveUntil == nil || !e.EffectiveUntil.Before(start)
}
