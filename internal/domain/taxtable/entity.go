package taxtable

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxType identifies a statutory withholding table.
type TaxType string

const (
	TaxTypeINSS TaxType = "inss"
	TaxTypeIRRF TaxType = "irrf"
)

var TaxTypeValues = []string{
	string(TaxTypeINSS),
	string(TaxTypeIRRF),
}

// Bracket is one row of a versioned progressive table. A nil BracketMax
// marks the open-ended top bracket; a nil EffectiveUntil marks the
// current version.
type Bracket struct {
	ID             string
	Type           TaxType
	BracketMin     decimal.Decimal
	BracketMax     *decimal.Decimal
	Rate           decimal.Decimal // fraction, 0.075 for 7.5%
	DeductionValue decimal.Decimal
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
	CreatedAt      time.Time
}

// Contains reports whether base falls inside the bracket. Both ends are
// inclusive, so a base equal to BracketMax stays in this bracket.
func (b Bracket) Contains(base decimal.Decimal) bool {
	if base.LessThan(b.BracketMin) {
		return false
	}
	return b.BracketMax == nil || base.LessThanOrEqual(*b.BracketMax)
}

// ActiveAt reports whether the bracket's table version covers date.
func (b Bracket) ActiveAt(date time.Time) bool {
	if b.EffectiveFrom.After(date) {
		return false
	}
	return b.EffectiveUntil == nil || b.EffectiveUntil.After(date)
}
