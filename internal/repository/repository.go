package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// Open connects to PostgreSQL through lib/pq and verifies connectivity
func Open(ctx context.Context, url string) (*sql.DB, error) {
	connector, err := pq.NewConnector(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// ReadRepository implements the scoring read models
type ReadRepository struct {
	db *sql.DB
}

// NewReadRepository creates a read repository on an open database
func NewReadRepository(db *sql.DB) *ReadRepository {
	return &ReadRepository{db: db}
}

// Top lists accounts by score, highest first. Ties go to the older account.
func (r *ReadRepository) Top(ctx context.Context, limit int) ([]domain.Standing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.username, a.guild, a.score,
		       COALESCE((SELECT MAX(l.id) FROM ledger_entries l WHERE l.user_id = a.id), 0)
		FROM accounts a
		ORDER BY a.score DESC, a.created_at ASC, a.username ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, unavailable("query leaderboard", err)
	}
	defer rows.Close()

	var standings []domain.Standing
	for rows.Next() {
		var row standingRow
		if err := rows.Scan(&row.ID, &row.Username, &row.Guild, &row.Score, &row.LastSeq); err != nil {
			return nil, unavailable("scan standing", err)
		}
		standings = append(standings, mapStandingToDomain(row, len(standings)+1))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query leaderboard", err)
	}
	return standings, nil
}

// History returns the newest ledger entries of a user
func (r *ReadRepository) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, challenge_id, kind, delta, balance_after, metadata, created_at
		FROM ledger_entries WHERE user_id = $1
		ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, unavailable("query ledger", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var row ledgerRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.ChallengeID, &row.Kind,
			&row.Delta, &row.BalanceAfter, &row.Metadata, &row.CreatedAt); err != nil {
			return nil, unavailable("scan ledger entry", err)
		}
		entry, err := mapLedgerEntryToDomain(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query ledger", err)
	}
	return entries, nil
}

// Audit recomputes every score from solves and hint unlocks and returns the
// accounts whose stored score disagrees
func (r *ReadRepository) Audit(ctx context.Context) ([]domain.LedgerDiscrepancy, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH earned AS (
			SELECT sv.user_id, SUM(c.points) AS total
			FROM solves sv JOIN challenges c ON c.id = sv.challenge_id
			GROUP BY sv.user_id
		), spent AS (
			SELECT hu.user_id, SUM(c.hint_cost) AS total
			FROM hint_unlocks hu JOIN challenges c ON c.id = hu.challenge_id
			GROUP BY hu.user_id
		)
		SELECT a.id, a.username, a.score,
			COALESCE(earned.total, 0) - COALESCE(spent.total, 0) AS expected
		FROM accounts a
		LEFT JOIN earned ON earned.user_id = a.id
		LEFT JOIN spent ON spent.user_id = a.id
		WHERE a.score <> COALESCE(earned.total, 0) - COALESCE(spent.total, 0)
		ORDER BY a.username`)
	if err != nil {
		return nil, unavailable("audit ledger", err)
	}
	defer rows.Close()

	var out []domain.LedgerDiscrepancy
	for rows.Next() {
		var row discrepancyRow
		if err := rows.Scan(&row.ID, &row.Username, &row.Score, &row.Expected); err != nil {
			return nil, unavailable("scan discrepancy", err)
		}
		out = append(out, mapDiscrepancyToDomain(row))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("audit ledger", err)
	}
	return out, nil
}

var (
	_ domain.LeaderboardReader = (*ReadRepository)(nil)
	_ domain.LedgerReader      = (*ReadRepository)(nil)
	_ domain.LedgerAuditor     = (*ReadRepository)(nil)
)
