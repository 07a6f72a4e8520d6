package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the outline repositories translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// pgCode returns the SQLSTATE of a server error, or "".
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgDuplicateError reports a primary key or unique violation, e.g. a
// client-generated section ID that is already taken.
func IsPgDuplicateError(err error) bool { return pgCode(err) == codeUniqueViolation }

// IsPgForeignKeyError reports a missing parent row, e.g. a task whose
// section was deleted concurrently.
func IsPgForeignKeyError(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// IsPgInvalidTextError reports a malformed literal such as a bad UUID.
func IsPgInvalidTextError(err error) bool { return pgCode(err) == codeInvalidText }

// IsPgNoRowsError reports an empty QueryRow result.
func IsPgNoRowsError(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
