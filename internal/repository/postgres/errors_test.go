package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorClassification(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("create section: %w", &pgconn.PgError{Code: code})
	}
	tests := []struct {
		name       string
		err        error
		duplicate  bool
		foreignKey bool
		invalid    bool
		noRows     bool
	}{
		{"unique", wrap("23505"), true, false, false, false},
		{"foreign key", wrap("23503"), false, true, false, false},
		{"bad uuid", wrap("22P02"), false, false, true, false},
		{"no rows", fmt.Errorf("get project: %w", pgx.ErrNoRows), false, false, false, true},
		{"other", errors.New("connection reset"), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPgDuplicateError(tt.err); got != tt.duplicate {
				t.Errorf("IsPgDuplicateError = %v", got)
			}
			if got := IsPgForeignKeyError(tt.err); got != tt.foreignKey {
				t.Errorf("IsPgForeignKeyError = %v", got)
			}
			if got := IsPgInvalidTextError(tt.err); got != tt.invalid {
				t.Errorf("IsPgInvalidTextError = %v", got)
			}
			if got := IsPgNoRowsError(tt.err); got != tt.noRows {
				t.Errorf("IsPgNoRowsError = %v", got)
			}
		})
	}
}
