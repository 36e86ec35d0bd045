package memory

import (
	"context"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
)

type bracketRepository struct {
	s *Store
}

func NewBracketRepository(s *Store) taxtable.BracketRepository {
	return &bracketRepository{s: s}
}

// ListActive implements taxtable.BracketRepository.
func (r *bracketRepository) ListActive(ctx context.Context, taxType taxtable.TaxType, asOf time.Time) ([]taxtable.Bracket, error) {
	if err := r.s.fault("ListActive"); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []taxtable.Bracket
	for _, b := range r.s.brackets {
		if b.Type == taxType && b.ActiveAt(asOf) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Create implements taxtable.BracketRepository.
func (r *bracketRepository) Create(ctx context.Context, b taxtable.Bracket) (taxtable.Bracket, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	b.CreatedAt = r.s.now()
	err := r.s.write(ctx, op{apply: func() {
		r.s.brackets = append(r.s.brackets, b)
	}})
	return b, err
}
