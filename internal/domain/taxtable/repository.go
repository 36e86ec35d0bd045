package taxtable

import (
	"context"
	"time"
)

type BracketRepository interface {
	// ListActive returns every bracket of taxType whose version covers asOf,
	// across all overlapping versions, in no particular order.
	ListActive(ctx context.Context, taxType TaxType, asOf time.Time) ([]Bracket, error)
	Create(ctx context.Context, bracket Bracket) (Bracket, error)
}
