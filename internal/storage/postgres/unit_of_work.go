package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// unitOfWork implements domain.UnitOfWork over a pgx transaction
type unitOfWork struct {
	ctx  context.Context
	tx   pgx.Tx
	done bool
}

func newUnitOfWork(ctx context.Context, tx pgx.Tx) *unitOfWork {
	return &unitOfWork{ctx: ctx, tx: tx}
}

func (u *unitOfWork) Accounts() domain.AccountRepository       { return &accountRepository{tx: u.tx} }
func (u *unitOfWork) Solves() domain.SolveRepository           { return &solveRepository{tx: u.tx} }
func (u *unitOfWork) HintUnlocks() domain.HintUnlockRepository { return &hintUnlockRepository{tx: u.tx} }
func (u *unitOfWork) Ledger() domain.LedgerRepository          { return &ledgerRepository{tx: u.tx} }

func (u *unitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Commit(u.ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// Rollback is a no-op after Commit
func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	// The request context may already be cancelled; the rollback must still reach the server.
	if err := u.tx.Rollback(context.WithoutCancel(u.ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return unavailable("rollback", err)
	}
	return nil
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)
