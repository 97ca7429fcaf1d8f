package e

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapError(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ErrDeadline},
		{"canceled", context.Canceled, ErrCanceled},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrUniqueViolation},
		{"check", &pgconn.PgError{Code: "23514"}, ErrInvalidInput},
		{"serialization", &pgconn.PgError{Code: "40001"}, ErrVersionConflict},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrStoreUnavailable},
		{"other pg", &pgconn.PgError{Code: "42P01"}, ErrInternal},
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"unknown", errors.New("boom"), ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WrapError(ctx, "op", tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("WrapError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	if WrapError(ctx, "op", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestVersionConflictIsConflict(t *testing.T) {
	if !errors.Is(ErrVersionConflict, ErrConflict) {
		t.Fatal("version conflict should match ErrConflict")
	}
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewValidationError("title", "is required"))

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected ValidationError for title, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError should match ErrValidation")
	}
}
