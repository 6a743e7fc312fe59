package domain

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository persists accounts and their materialized score
type AccountRepository interface {
	// Create inserts a new account; ErrAccountAlreadyExists on duplicate id or username
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindForUpdate reads the account and holds its row for the rest of the unit of work
	FindForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	// Credit adds amount to the score and returns the new score
	Credit(ctx context.Context, id uuid.UUID, amount int) (int, error)
	// Debit subtracts amount only if the balance covers it; ErrInsufficientScore otherwise
	Debit(ctx context.Context, id uuid.UUID, amount int) (int, error)
	SetRank(ctx context.Context, id uuid.UUID, rank Rank) error
}

// SolveRepository persists solves
type SolveRepository interface {
	Exists(ctx context.Context, userID uuid.UUID, challengeID int64) (bool, error)
	// Insert returns ErrConflict when the (user, challenge) pair already exists
	Insert(ctx context.Context, solve *Solve) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Solve, error)
}

// HintUnlockRepository persists hint unlocks
type HintUnlockRepository interface {
	Exists(ctx context.Context, userID uuid.UUID, challengeID int64) (bool, error)
	// Insert returns ErrConflict when the (user, challenge) pair already exists
	Insert(ctx context.Context, unlock *HintUnlock) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]HintUnlock, error)
}

// LedgerRepository appends score journal entries
type LedgerRepository interface {
	Append(ctx context.Context, entry *LedgerEntry) error
}

// UnitOfWork groups repository calls into a single transaction
type UnitOfWork interface {
	Accounts() AccountRepository
	Solves() SolveRepository
	HintUnlocks() HintUnlockRepository
	Ledger() LedgerRepository

	Commit() error
	// Rollback is a no-op after Commit
	Rollback() error
}

// Store is the durable backing of the scoring engine
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	// SeedChallenges upserts catalog rows; ErrCatalogConflict if it would change
	// points or hint cost of a challenge with recorded progress
	SeedChallenges(ctx context.Context, challenges []*Challenge) error
	Ping(ctx context.Context) error
	Close() error
}

// LeaderboardReader lists accounts ordered by score
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) ([]Standing, error)
}

// LedgerReader reads an account's score journal, newest first
type LedgerReader interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]LedgerEntry, error)
}

// LedgerAuditor recomputes every score from solves and hint unlocks
type LedgerAuditor interface {
	Audit(ctx context.Context) ([]LedgerDiscrepancy, error)
}
