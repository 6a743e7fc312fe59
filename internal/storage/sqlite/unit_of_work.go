package sqlite

import (
	"database/sql"
	"errors"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// unitOfWork implements domain.UnitOfWork over a single SQLite transaction
type unitOfWork struct {
	tx   *sql.Tx
	done bool

	accounts    *accountRepository
	solves      *solveRepository
	hintUnlocks *hintUnlockRepository
	ledger      *ledgerRepository
}

func newUnitOfWork(tx *sql.Tx) *unitOfWork {
	return &unitOfWork{
		tx:          tx,
		accounts:    &accountRepository{tx: tx},
		solves:      &solveRepository{tx: tx},
		hintUnlocks: &hintUnlockRepository{tx: tx},
		ledger:      &ledgerRepository{tx: tx},
	}
}

func (u *unitOfWork) Accounts() domain.AccountRepository       { return u.accounts }
func (u *unitOfWork) Solves() domain.SolveRepository           { return u.solves }
func (u *unitOfWork) HintUnlocks() domain.HintUnlockRepository { return u.hintUnlocks }
func (u *unitOfWork) Ledger() domain.LedgerRepository          { return u.ledger }

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return unavailable("rollback", err)
	}
	return nil
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)
