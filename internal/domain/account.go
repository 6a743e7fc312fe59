package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a player's scoring record. Score is a materialized counter that
// only the scoring service mutates; Rank is cached and always derived from Score.
type Account struct {
	ID        uuid.UUID
	Username  string
	Guild     string // Optional
	Score     int
	Rank      Rank
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates an account at score 0 and the lowest tier
func NewAccount(id uuid.UUID, username string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Username:  strings.TrimSpace(username),
		Score:     0,
		Rank:      RankFor(0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks account fields before persistence
func (a *Account) Validate() error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if a.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(a.Username) > 64 {
		return fmt.Errorf("%w: username exceeds 64 characters", ErrInvalidInput)
	}
	if len(a.Guild) > 64 {
		return fmt.Errorf("%w: guild exceeds 64 characters", ErrInvalidInput)
	}
	return nil
}

// Solve records a user's first correct flag for a challenge
type Solve struct {
	UserID      uuid.UUID
	ChallengeID int64
	SolvedAt    time.Time
}

// HintUnlock records that a user paid for a challenge's hint
type HintUnlock struct {
	UserID      uuid.UUID
	ChallengeID int64
	UnlockedAt  time.Time
}

// LedgerKind identifies what moved a score
type LedgerKind string

const (
	LedgerKindSolve LedgerKind = "solve"
	LedgerKindHint  LedgerKind = "hint"
)

// LedgerEntry is an append-only journal line for one score mutation
type LedgerEntry struct {
	ID           int64             `json:"id"`
	UserID       uuid.UUID         `json:"user_id"`
	ChallengeID  int64             `json:"challenge_id"`
	Kind         LedgerKind        `json:"kind"`
	Delta        int               `json:"delta"`
	BalanceAfter int               `json:"balance_after"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Standing is one row of the leaderboard. Seq is the id of the ledger entry
// that produced Score; a higher Seq is a later state of the same account.
type Standing struct {
	Position int       `json:"position"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Guild    string    `json:"guild,omitempty"`
	Score    int       `json:"score"`
	Rank     Rank      `json:"rank"`
	Seq      int64     `json:"-"`
}

// LedgerDiscrepancy reports an account whose score disagrees with its
// solves and hint unlocks
type LedgerDiscrepancy struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
	Expected int       `json:"expected"`
}
