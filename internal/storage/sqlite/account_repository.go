package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

type accountRepository struct {
	tx *sql.Tx
}

func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, username, guild, score, rank, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.Username, a.Guild, a.Score, string(a.Rank), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountAlreadyExists
		}
		return unavailable("create account", err)
	}
	return nil
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, username, guild, score, rank, created_at, updated_at
		FROM accounts WHERE id = ?`, id.String())
	return scanAccount(row)
}

// FindForUpdate reads the account. The enclosing transaction already holds
// the database write lock, so no row-level locking is needed.
func (r *accountRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.FindByID(ctx, id)
}

func (r *accountRepository) Credit(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var score int
	err := r.tx.QueryRowContext(ctx, `
		UPDATE accounts SET score = score + ?, updated_at = ?
		WHERE id = ?
		RETURNING score`,
		amount, time.Now().UTC(), id.String(),
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, unavailable("credit account", err)
	}
	return score, nil
}

func (r *accountRepository) Debit(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var score int
	err := r.tx.QueryRowContext(ctx, `
		UPDATE accounts SET score = score - ?, updated_at = ?
		WHERE id = ? AND score >= ?
		RETURNING score`,
		amount, time.Now().UTC(), id.String(), amount,
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) || isCheckViolation(err) {
		return 0, domain.ErrInsufficientScore
	}
	if err != nil {
		return 0, unavailable("debit account", err)
	}
	return score, nil
}

func (r *accountRepository) SetRank(ctx context.Context, id uuid.UUID, rank domain.Rank) error {
	_, err := r.tx.ExecContext(ctx, "UPDATE accounts SET rank = ? WHERE id = ?", string(rank), id.String())
	if err != nil {
		return unavailable("set rank", err)
	}
	return nil
}

var _ domain.AccountRepository = (*accountRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var id, rank string

	err := row.Scan(&id, &a.Username, &a.Guild, &a.Score, &rank, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, unavailable("scan account", err)
	}

	a.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, unavailable("parse account id", err)
	}
	a.Rank = domain.Rank(rank)
	return &a, nil
}
