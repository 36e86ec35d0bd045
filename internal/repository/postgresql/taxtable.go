package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/taxtable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
)

type bracketRepositoryImpl struct {
	db *database.DB
}

func NewBracketRepository(db *database.DB) taxtable.BracketRepository {
	return &bracketRepositoryImpl{db: db}
}

// ListActive implements taxtable.BracketRepository.
func (r *bracketRepositoryImpl) ListActive(ctx context.Context, taxType taxtable.TaxType, asOf time.Time) ([]taxtable.Bracket, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, tax_type, bracket_min, bracket_max, rate, deduction_value,
			effective_from, effective_until, created_at
		FROM tax_brackets
		WHERE tax_type = $1 AND effective_from <= $2 AND (effective_until IS NULL OR effective_until > $2)
	`

	rows, err := q.Query(ctx, query, taxType, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s brackets: %w", taxType, err)
	}
	defer rows.Close()

	var brackets []taxtable.Bracket
	for rows.Next() {
		var b taxtable.Bracket
		if err := rows.Scan(
			&b.ID, &b.Type, &b.BracketMin, &b.BracketMax, &b.Rate, &b.DeductionValue,
			&b.EffectiveFrom, &b.EffectiveUntil, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tax bracket: %w", err)
		}
		brackets = append(brackets, b)
	}
	return brackets, rows.Err()
}

// Create implements taxtable.BracketRepository.
func (r *bracketRepositoryImpl) Create(ctx context.Context, bracket taxtable.Bracket) (taxtable.Bracket, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO tax_brackets (id, tax_type, bracket_min, bracket_max, rate, deduction_value, effective_from, effective_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	bracket.ID = uuid.Must(uuid.NewV7()).String()
	err := q.QueryRow(ctx, query,
		bracket.ID, bracket.Type, bracket.BracketMin, bracket.BracketMax, bracket.Rate, bracket.DeductionValue,
		bracket.EffectiveFrom, bracket.EffectiveUntil,
	).Scan(&bracket.ID, &bracket.CreatedAt)
	if err != nil {
		return taxtable.Bracket{}, fmt.Errorf("failed to create tax bracket: %w", err)
	}
	return bracket, nil
}
