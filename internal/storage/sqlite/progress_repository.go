package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

type solveRepository struct {
	tx *sql.Tx
}

func (r *solveRepository) Exists(ctx context.Context, userID uuid.UUID, challengeID int64) (bool, error) {
	return exists(ctx, r.tx, "SELECT COUNT(*) FROM solves WHERE user_id = ? AND challenge_id = ?", userID, challengeID)
}

// Insert relies on the primary key to reject a second solve of the same pair
func (r *solveRepository) Insert(ctx context.Context, s *domain.Solve) error {
	result, err := r.tx.ExecContext(ctx, `
		INSERT INTO solves (user_id, challenge_id, solved_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, challenge_id) DO NOTHING`,
		s.UserID.String(), s.ChallengeID, s.SolvedAt,
	)
	return insertResult("insert solve", result, err)
}

func (r *solveRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Solve, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT challenge_id, solved_at FROM solves
		WHERE user_id = ? ORDER BY solved_at, challenge_id`, userID.String())
	if err != nil {
		return nil, unavailable("list solves", err)
	}
	defer rows.Close()

	var solves []domain.Solve
	for rows.Next() {
		s := domain.Solve{UserID: userID}
		if err := rows.Scan(&s.ChallengeID, &s.SolvedAt); err != nil {
			return nil, unavailable("scan solve", err)
		}
		solves = append(solves, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list solves", err)
	}
	return solves, nil
}

type hintUnlockRepository struct {
	tx *sql.Tx
}

func (r *hintUnlockRepository) Exists(ctx context.Context, userID uuid.UUID, challengeID int64) (bool, error) {
	return exists(ctx, r.tx, "SELECT COUNT(*) FROM hint_unlocks WHERE user_id = ? AND challenge_id = ?", userID, challengeID)
}

func (r *hintUnlockRepository) Insert(ctx context.Context, h *domain.HintUnlock) error {
	result, err := r.tx.ExecContext(ctx, `
		INSERT INTO hint_unlocks (user_id, challenge_id, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, challenge_id) DO NOTHING`,
		h.UserID.String(), h.ChallengeID, h.UnlockedAt,
	)
	return insertResult("insert hint unlock", result, err)
}

func (r *hintUnlockRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.HintUnlock, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT challenge_id, unlocked_at FROM hint_unlocks
		WHERE user_id = ? ORDER BY unlocked_at, challenge_id`, userID.String())
	if err != nil {
		return nil, unavailable("list hint unlocks", err)
	}
	defer rows.Close()

	var unlocks []domain.HintUnlock
	for rows.Next() {
		h := domain.HintUnlock{UserID: userID}
		if err := rows.Scan(&h.ChallengeID, &h.UnlockedAt); err != nil {
			return nil, unavailable("scan hint unlock", err)
		}
		unlocks = append(unlocks, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list hint unlocks", err)
	}
	return unlocks, nil
}

var (
	_ domain.SolveRepository      = (*solveRepository)(nil)
	_ domain.HintUnlockRepository = (*hintUnlockRepository)(nil)
)

func exists(ctx context.Context, tx *sql.Tx, query string, userID uuid.UUID, challengeID int64) (bool, error) {
	var count int
	if err := tx.QueryRowContext(ctx, query, userID.String(), challengeID).Scan(&count); err != nil {
		return false, unavailable("check progress", err)
	}
	return count > 0, nil
}

// insertResult maps a constraint-gated insert to ErrConflict when no row was written
func insertResult(op string, result sql.Result, err error) error {
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return unavailable(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return unavailable(op, err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}
