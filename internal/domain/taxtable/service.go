package taxtable

import (
	"context"
	"time"
)

type Resolver interface {
	ResolveBrackets(ctx context.Context, taxType TaxType, asOf time.Time) ([]Bracket, error)
}
