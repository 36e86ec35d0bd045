package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"serialization", &pgconn.PgError{Code: SerializationFailure}, true},
		{"wrapped deadlock", fmt.Errorf("failed to list: %w", &pgconn.PgError{Code: DeadlockDetected}), true},
		{"unique violation", &pgconn.PgError{Code: UniqueViolation}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsTransient(c.err), c.name)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: UniqueViolation})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: SerializationFailure}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
}
