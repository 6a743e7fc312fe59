package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/arise/internal/domain"
)

type ledgerRepository struct {
	tx *sql.Tx
}

func (r *ledgerRepository) Append(ctx context.Context, e *domain.LedgerEntry) error {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal ledger metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	result, err := r.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (user_id, challenge_id, kind, delta, balance_after, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID.String(), e.ChallengeID, string(e.Kind), e.Delta, e.BalanceAfter, metadata, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return unavailable("append ledger entry", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return unavailable("append ledger entry", err)
	}
	e.ID = id
	return nil
}

var _ domain.LedgerRepository = (*ledgerRepository)(nil)
