package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/arise/internal/domain"
)

type accountRepository struct {
	tx pgx.Tx
}

func (r *accountRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO accounts (id, username, guild, score, rank, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Username, a.Guild, a.Score, string(a.Rank), a.CreatedAt, a.UpdatedAt,
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
	return r.find(ctx, `
		SELECT id, username, guild, score, rank, created_at, updated_at
		FROM accounts WHERE id = $1`, id)
}

func (r *accountRepository) FindForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.find(ctx, `
		SELECT id, username, guild, score, rank, created_at, updated_at
		FROM accounts WHERE id = $1
		FOR UPDATE`, id)
}

func (r *accountRepository) find(ctx context.Context, query string, id uuid.UUID) (*domain.Account, error) {
	var a domain.Account
	var rank string
	err := r.tx.QueryRow(ctx, query, id).Scan(&a.ID, &a.Username, &a.Guild, &a.Score, &rank, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable("find account", err)
	}
	a.Rank = domain.Rank(rank)
	return &a, nil
}

func (r *accountRepository) Credit(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var score int
	err := r.tx.QueryRow(ctx, `
		UPDATE accounts SET score = score + $1, updated_at = $2
		WHERE id = $3
		RETURNING score`,
		amount, time.Now().UTC(), id,
	).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, unavailable("credit account", err)
	}
	return score, nil
}

// Debit is a compare-and-swap: it only applies when the balance covers amount
func (r *accountRepository) Debit(ctx context.Context, id uuid.UUID, amount int) (int, error) {
	var score int
	err := r.tx.QueryRow(ctx, `
		UPDATE accounts SET score = score - $1, updated_at = $2
		WHERE id = $3 AND score >= $1
		RETURNING score`,
		amount, time.Now().UTC(), id,
	).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) || isCheckViolation(err) {
		return 0, domain.ErrInsufficientScore
	}
	if err != nil {
		return 0, unavailable("debit account", err)
	}
	return score, nil
}

func (r *accountRepository) SetRank(ctx context.Context, id uuid.UUID, rank domain.Rank) error {
	if _, err := r.tx.Exec(ctx, "UPDATE accounts SET rank = $1 WHERE id = $2", string(rank), id); err != nil {
		return unavailable("set rank", err)
	}
	return nil
}

type solveRepository struct {
	tx pgx.Tx
}

func (r *solveRepository) Exists(ctx context.Context, userID uuid.UUID, challengeID int64) (bool, error) {
	return exists(ctx, r.tx, "SELECT EXISTS (SELECT 1 FROM solves WHERE user_id = $1 AND challenge_id = $2)", userID, challengeID)
}

func (r *solveRepository) Insert(ctx context.Context, s *domain.Solve) error {
	tag, err := r.tx.Exec(ctx, `
		INSERT INTO solves (user_id, challenge_id, solved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, challenge_id) DO NOTHING`,
		s.UserID, s.ChallengeID, s.SolvedAt,
	)
	return insertResult("insert solve", tag.RowsAffected(), err)
}

func (r *solveRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Solve, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT challenge_id, solved_at FROM solves
		WHERE user_id = $1 ORDER BY solved_at, challenge_id`, userID)
	if err != nil {
		return nil, unavailable("list solves", err)
	}
	solves, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Solve, error) {
		s := domain.Solve{UserID: userID}
		err := row.Scan(&s.ChallengeID, &s.SolvedAt)
		return s, err
	})
	if err != nil {
		return nil, unavailable("list solves", err)
	}
	return solves, nil
}

type hintUnlockRepository struct {
	tx pgx.Tx
}

func (r *hintUnlockRepository) Exists(ctx context.Context, userID uuid.UUID, challengeID int64) (bool, error) {
	return exists(ctx, r.tx, "SELECT EXISTS (SELECT 1 FROM hint_unlocks WHERE user_id = $1 AND challenge_id = $2)", userID, challengeID)
}

func (r *hintUnlockRepository) Insert(ctx context.Context, h *domain.HintUnlock) error {
	tag, err := r.tx.Exec(ctx, `
		INSERT INTO hint_unlocks (user_id, challenge_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, challenge_id) DO NOTHING`,
		h.UserID, h.ChallengeID, h.UnlockedAt,
	)
	return insertResult("insert hint unlock", tag.RowsAffected(), err)
}

func (r *hintUnlockRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.HintUnlock, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT challenge_id, unlocked_at FROM hint_unlocks
		WHERE user_id = $1 ORDER BY unlocked_at, challenge_id`, userID)
	if err != nil {
		return nil, unavailable("list hint unlocks", err)
	}
	unlocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HintUnlock, error) {
		h := domain.HintUnlock{UserID: userID}
		err := row.Scan(&h.ChallengeID, &h.UnlockedAt)
		return h, err
	})
	if err != nil {
		return nil, unavailable("list hint unlocks", err)
	}
	return unlocks, nil
}

type ledgerRepository struct {
	tx pgx.Tx
}

func (r *ledgerRepository) Append(ctx context.Context, e *domain.LedgerEntry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal ledger metadata: %w", err)
		}
		metadata = data
	}

	err := r.tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, challenge_id, kind, delta, balance_after, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.UserID, e.ChallengeID, string(e.Kind), e.Delta, e.BalanceAfter, metadata, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return unavailable("append ledger entry", err)
	}
	return nil
}

var (
	_ domain.AccountRepository    = (*accountRepository)(nil)
	_ domain.SolveRepository      = (*solveRepository)(nil)
	_ domain.HintUnlockRepository = (*hintUnlockRepository)(nil)
	_ domain.LedgerRepository     = (*ledgerRepository)(nil)
)

func exists(ctx context.Context, tx pgx.Tx, query string, userID uuid.UUID, challengeID int64) (bool, error) {
	var ok bool
	if err := tx.QueryRow(ctx, query, userID, challengeID).Scan(&ok); err != nil {
		return false, unavailable("check progress", err)
	}
	return ok, nil
}

func insertResult(op string, rows int64, err error) error {
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return unavailable(op, err)
	}
	if rows == 0 {
		return domain.ErrConflict
	}
	return nil
}
