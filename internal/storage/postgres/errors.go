package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/felixgeelhaar/arise/internal/domain"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

func isCheckViolation(err error) bool { return hasCode(err, codeCheckViolation) }
