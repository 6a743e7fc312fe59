// Package repository provides the PostgreSQL read models of the scoring
// engine: leaderboard, ledger history and ledger audit. It runs on
// database/sql with the lib/pq driver, next to the pgx write path.
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// -----------------------------------------------------------------------------
// Rows
// -----------------------------------------------------------------------------

// standingRow is one account row of the leaderboard query
type standingRow struct {
	ID       uuid.UUID
	Username string
	Guild    string
	Score    int32
	LastSeq  int64
}

// ledgerRow is one ledger_entries row
type ledgerRow struct {
	ID           int64
	UserID       uuid.UUID
	ChallengeID  int64
	Kind         string
	Delta        int32
	BalanceAfter int32
	Metadata     pqtype.NullRawMessage
	CreatedAt    time.Time
}

// discrepancyRow is one account whose score disagrees with its progress
type discrepancyRow struct {
	ID       uuid.UUID
	Username string
	Score    int32
	Expected sql.NullInt64
}

// -----------------------------------------------------------------------------
// Mappers
// -----------------------------------------------------------------------------

// mapStandingToDomain converts a leaderboard row at the given position
func mapStandingToDomain(r standingRow, position int) domain.Standing {
	return domain.Standing{
		Position: position,
		UserID:   r.ID,
		Username: r.Username,
		Guild:    r.Guild,
		Score:    int(r.Score),
		Rank:     domain.RankFor(int(r.Score)),
		Seq:      r.LastSeq,
	}
}

// mapLedgerEntryToDomain converts a ledger row, decoding its JSONB metadata
func mapLedgerEntryToDomain(r ledgerRow) (domain.LedgerEntry, error) {
	e := domain.LedgerEntry{
		ID:           r.ID,
		UserID:       r.UserID,
		ChallengeID:  r.ChallengeID,
		Kind:         domain.LedgerKind(r.Kind),
		Delta:        int(r.Delta),
		BalanceAfter: int(r.BalanceAfter),
		CreatedAt:    r.CreatedAt,
	}
	if r.Metadata.Valid && len(r.Metadata.RawMessage) > 0 {
		if err := json.Unmarshal(r.Metadata.RawMessage, &e.Metadata); err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("unmarshal ledger metadata: %w", err)
		}
	}
	return e, nil
}

// mapDiscrepancyToDomain converts an audit row
func mapDiscrepancyToDomain(r discrepancyRow) domain.LedgerDiscrepancy {
	return domain.LedgerDiscrepancy{
		UserID:   r.ID,
		Username: r.Username,
		Score:    int(r.Score),
		Expected: int(nullInt64Value(r.Expected)),
	}
}

// -----------------------------------------------------------------------------
// Null helpers
// -----------------------------------------------------------------------------

func nullInt64Value(n sql.NullInt64) int64 {
	if n.Valid {
		return n.Int64
	}
	return 0
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}
