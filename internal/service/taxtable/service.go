package taxtable

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/money"
	"github.com/shopspring/decimal"
)

var oneCent = decimal.New(1, -money.Scale)

type ResolverImpl struct {
	repo taxtable.BracketRepository
}

func NewResolver(repo taxtable.BracketRepository) taxtable.Resolver {
	return &ResolverImpl{repo: repo}
}

// ResolveBrackets implements taxtable.Resolver.
func (r *ResolverImpl) ResolveBrackets(ctx context.Context, taxType taxtable.TaxType, asOf time.Time) ([]taxtable.Bracket, error) {
	if taxType != taxtable.TaxTypeINSS && taxType != taxtable.TaxTypeIRRF {
		return nil, taxtable.ErrInvalidTaxType
	}

	rows, err := r.repo.ListActive(ctx, taxType, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s brackets: %w", taxType, err)
	}

	version := latestVersion(rows, asOf)
	if len(version) == 0 {
		return nil, fmt.Errorf("%s at %s: %w", taxType, asOf.Format("2006-01-02"), taxtable.ErrNoBracketsFound)
	}

	sort.SliceStable(version, func(i, j int) bool {
		return version[i].BracketMin.LessThan(version[j].BracketMin)
	})

	if err := validateTable(version); err != nil {
		return nil, fmt.Errorf("%s effective %s: %w", taxType, version[0].EffectiveFrom.Format("2006-01-02"), err)
	}

	return version, nil
}

// latestVersion keeps the rows of the newest table version covering asOf.
func latestVersion(rows []taxtable.Bracket, asOf time.Time) []taxtable.Bracket {
	var latest time.Time
	for _, b := range rows {
		if b.ActiveAt(asOf) && b.EffectiveFrom.After(latest) {
			latest = b.EffectiveFrom
		}
	}

	var version []taxtable.Bracket
	for _, b := range rows {
		if b.ActiveAt(asOf) && b.EffectiveFrom.Equal(latest) {
			version = append(version, b)
		}
	}
	return version
}

func validateTable(brackets []taxtable.Bracket) error {
	for i, b := range brackets {
		if b.BracketMax != nil && b.BracketMax.LessThan(b.BracketMin) {
			return taxtable.ErrInvalidBracketTable
		}
		if b.BracketMax == nil && i != len(brackets)-1 {
			return taxtable.ErrInvalidBracketTable
		}
		if i > 0 {
			// the next bracket starts within one cent of the previous max
			step := b.BracketMin.Sub(*brackets[i-1].BracketMax)
			if !step.IsPositive() || step.GreaterThan(oneCent) {
				return taxtable.ErrInvalidBracketTable
			}
		}
	}
	return nil
}

// ComputeProgressiveTax applies the single matched bracket:
// base × rate − deduction, floored at zero and rounded to cents.
func ComputeProgressiveTax(base decimal.Decimal, brackets []taxtable.Bracket) decimal.Decimal {
	base = money.NonNegative(base)

	b, ok := MatchBracket(base, brackets)
	if !ok {
		return decimal.Zero
	}
	taxable := money.Round(base)
	if b.BracketMax != nil && taxable.GreaterThan(*b.BracketMax) {
		taxable = *b.BracketMax
	}

	tax := taxable.Mul(b.Rate).Sub(b.DeductionValue)
	return money.Round(money.NonNegative(tax))
}

// MatchBracket returns the bracket containing base. Bases below the
// first bracket match nothing; bases above a closed top bracket match
// the top bracket, which then acts as a ceiling. A base between one
// bracket's max and the next min stays in the lower bracket.
func MatchBracket(base decimal.Decimal, brackets []taxtable.Bracket) (taxtable.Bracket, bool) {
	if len(brackets) == 0 {
		return taxtable.Bracket{}, false
	}
	base = money.NonNegative(base)

	top := brackets[len(brackets)-1]
	if top.BracketMax != nil && base.GreaterThan(*top.BracketMax) {
		return top, true
	}
	lower, found := taxtable.Bracket{}, false
	for _, b := range brackets {
		if b.Contains(base) {
			return b, true
		}
		if b.BracketMin.LessThanOrEqual(base) {
			lower, found = b, true
		}
	}
	return lower, found
}
