package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// Store implements domain.Store on a pgx pool
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store on a migrated database
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin starts a read-committed unit of work. Per-account serialization comes
// from the row lock taken by FindForUpdate.
func (s *Store) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, unavailable("begin", err)
	}
	return newUnitOfWork(ctx, tx), nil
}

// SeedChallenges upserts the public columns of every challenge. Points and
// hint cost of a challenge that already has solves or unlocks are frozen.
func (s *Store) SeedChallenges(ctx context.Context, challenges []*domain.Challenge) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin seed", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, c := range challenges {
		var points, hintCost int
		err := tx.QueryRow(ctx,
			"SELECT points, hint_cost FROM challenges WHERE id = $1 FOR UPDATE", c.ID,
		).Scan(&points, &hintCost)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return unavailable("read challenge", err)
		case points != c.Points || hintCost != c.HintCost:
			var progress int
			err := tx.QueryRow(ctx, `
				SELECT (SELECT COUNT(*) FROM solves WHERE challenge_id = $1)
				     + (SELECT COUNT(*) FROM hint_unlocks WHERE challenge_id = $1)`,
				c.ID,
			).Scan(&progress)
			if err != nil {
				return unavailable("count challenge progress", err)
			}
			if progress > 0 {
				return fmt.Errorf("%w: challenge %d has %d solves or unlocks", domain.ErrCatalogConflict, c.ID, progress)
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO challenges (id, title, description, category, points, hint_cost, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title, description = EXCLUDED.description,
				category = EXCLUDED.category, points = EXCLUDED.points,
				hint_cost = EXCLUDED.hint_cost, updated_at = EXCLUDED.updated_at`,
			c.ID, c.Title, c.Description, string(c.Category), c.Points, c.HintCost, now,
		)
		if err != nil {
			return unavailable("upsert challenge", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit seed", err)
	}
	return nil
}

// Ping checks the pool
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ domain.Store = (*Store)(nil)
