package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/sift/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"foreign key passes through", fk, fk},
		{"other passes through", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repository.MapError(tt.in, errNotFound, errDuplicate); got != tt.want {
				t.Errorf("MapError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifiers(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
	}

	if !repository.IsForeignKeyViolation(wrap("23503")) {
		t.Error("23503 not a foreign key violation")
	}
	if !repository.IsCheckViolation(wrap("23514")) {
		t.Error("23514 not a check violation")
	}
	for _, code := range []string{"40001", "40P01"} {
		if !repository.IsRetryable(wrap(code)) {
			t.Errorf("%s not retryable", code)
		}
	}
	if repository.IsRetryable(wrap("23505")) || repository.IsRetryable(errors.New("plain")) {
		t.Error("non-transient errors reported retryable")
	}
}
