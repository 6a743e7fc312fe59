package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// Store implements domain.Store and the read models on SQLite
type Store struct {
	db *DB
}

// NewStore creates a store on an opened and migrated database
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// OpenStore opens the database at path, applies migrations and returns the store
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, unavailable("open store", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, unavailable("migrate store", err)
	}
	return NewStore(db), nil
}

// DB returns the underlying database
func (s *Store) DB() *DB {
	return s.db
}

// Begin starts a unit of work
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	return newUnitOfWork(tx), nil
}

// SeedChallenges upserts the public columns of every challenge. Points and
// hint cost of a challenge that already has solves or unlocks are frozen.
func (s *Store) SeedChallenges(ctx context.Context, challenges []*domain.Challenge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin seed", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, c := range challenges {
		var points, hintCost int
		err := tx.QueryRowContext(ctx, "SELECT points, hint_cost FROM challenges WHERE id = ?", c.ID).Scan(&points, &hintCost)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return unavailable("read challenge", err)
		case points != c.Points || hintCost != c.HintCost:
			var progress int
			err := tx.QueryRowContext(ctx, `
				SELECT (SELECT COUNT(*) FROM solves WHERE challenge_id = ?)
				     + (SELECT COUNT(*) FROM hint_unlocks WHERE challenge_id = ?)`,
				c.ID, c.ID,
			).Scan(&progress)
			if err != nil {
				return unavailable("count challenge progress", err)
			}
			if progress > 0 {
				return fmt.Errorf("%w: challenge %d has %d solves or unlocks", domain.ErrCatalogConflict, c.ID, progress)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO challenges (id, title, description, category, points, hint_cost, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				title = excluded.title, description = excluded.description,
				category = excluded.category, points = excluded.points,
				hint_cost = excluded.hint_cost, updated_at = excluded.updated_at`,
			c.ID, c.Title, c.Description, string(c.Category), c.Points, c.HintCost, now,
		)
		if err != nil {
			return unavailable("upsert challenge", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit seed", err)
	}
	slog.Debug("challenges seeded", "count", len(challenges))
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Top lists accounts by score, highest first. Ties go to the older account.
func (s *Store) Top(ctx context.Context, limit int) ([]domain.Standing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.username, a.guild, a.score,
		       COALESCE((SELECT MAX(l.id) FROM ledger_entries l WHERE l.user_id = a.id), 0)
		FROM accounts a
		ORDER BY a.score DESC, a.created_at ASC, a.username ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("query leaderboard", err)
	}
	defer rows.Close()

	var standings []domain.Standing
	for rows.Next() {
		var id string
		st := domain.Standing{Position: len(standings) + 1}
		if err := rows.Scan(&id, &st.Username, &st.Guild, &st.Score, &st.Seq); err != nil {
			return nil, unavailable("scan standing", err)
		}
		if st.UserID, err = uuid.Parse(id); err != nil {
			return nil, unavailable("parse account id", err)
		}
		st.Rank = domain.RankFor(st.Score)
		standings = append(standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query leaderboard", err)
	}
	return standings, nil
}

// History returns the newest ledger entries of a user
func (s *Store) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, challenge_id, kind, delta, balance_after, metadata, created_at
		FROM ledger_entries WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`, userID.String(), limit)
	if err != nil {
		return nil, unavailable("query ledger", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{UserID: userID}
		var kind string
		var metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.ChallengeID, &kind, &e.Delta, &e.BalanceAfter, &metadata, &e.CreatedAt); err != nil {
			return nil, unavailable("scan ledger entry", err)
		}
		e.Kind = domain.LedgerKind(kind)
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal ledger metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query ledger", err)
	}
	return entries, nil
}

// Audit recomputes every score from solves and hint unlocks and returns the
// accounts whose stored score disagrees
func (s *Store) Audit(ctx context.Context) ([]domain.LedgerDiscrepancy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, score, expected FROM (
			SELECT a.id, a.username, a.score,
				COALESCE((SELECT SUM(c.points) FROM solves sv
					JOIN challenges c ON c.id = sv.challenge_id
					WHERE sv.user_id = a.id), 0)
				- COALESCE((SELECT SUM(c.hint_cost) FROM hint_unlocks hu
					JOIN challenges c ON c.id = hu.challenge_id
					WHERE hu.user_id = a.id), 0) AS expected
			FROM accounts a
		)
		WHERE score <> expected
		ORDER BY username`)
	if err != nil {
		return nil, unavailable("audit ledger", err)
	}
	defer rows.Close()

	var out []domain.LedgerDiscrepancy
	for rows.Next() {
		var id string
		var d domain.LedgerDiscrepancy
		if err := rows.Scan(&id, &d.Username, &d.Score, &d.Expected); err != nil {
			return nil, unavailable("scan discrepancy", err)
		}
		if d.UserID, err = uuid.Parse(id); err != nil {
			return nil, unavailable("parse account id", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("audit ledger", err)
	}
	return out, nil
}

var (
	_ domain.Store             = (*Store)(nil)
	_ domain.LeaderboardReader = (*Store)(nil)
	_ domain.LedgerReader      = (*Store)(nil)
	_ domain.LedgerAuditor     = (*Store)(nil)
)
