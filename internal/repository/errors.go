// Package repository implements all database queries for the event catalog.
// It uses pgx directly (no ORM).
package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConstraintViolation is returned when a write would break a uniqueness,
// foreign-key, or check constraint.
var ErrConstraintViolation = errors.New("constraint violation")

// PostgreSQL SQLSTATE codes mapped to ErrConstraintViolation.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// wrapWriteErr annotates err with op, translating constraint failures.
func wrapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
			return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
