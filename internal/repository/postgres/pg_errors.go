package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/okonomi/yoyaku-go/internal/repository"
)

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		// unique_violation: the partial index on active reservations caught a
		// concurrent writer, i.e. invariant enforcement at commit time.
		case "23505":
			return repository.ErrConflict
		// lock_not_available / serialization failures: the caller may retry.
		case "55P03", "40001", "40P01":
			return repository.ErrBusy
		// check_violation on the resale discount range.
		case "23514":
			if pge.ConstraintName == "availability_discount_range" {
				return repository.ErrInvalidDiscount
			}
		}
	}

	return err
}
