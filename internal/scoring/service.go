// Package scoring evaluates flag submissions and hint unlocks. Every score
// mutation runs in one unit of work together with the progress row that
// justifies it, so an account's score always equals the points of its solves
// minus the cost of its hint unlocks.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// Catalog provides challenge lookup
type Catalog interface {
	Challenge(id int64) (*domain.Challenge, error)
	List() []*domain.Challenge
}

// Service is the scoring engine. It holds no mutable state between calls.
type Service struct {
	store     domain.Store
	catalog   Catalog
	publisher domain.EventPublisher // Optional: receives events after commit
	now       func() time.Time
}

// NewService creates a new scoring service
func NewService(store domain.Store, catalog Catalog) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher sets where committed scoring events are delivered
func (s *Service) SetPublisher(p domain.EventPublisher) {
	s.publisher = p
}

// Submit checks a flag for a challenge on behalf of a user. Only the first
// correct submission awards points; a repeat is reported as already solved
// regardless of the flag text.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, challengeID int64, flag string) (*domain.SubmitResult, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return nil, fmt.Errorf("%w: flag is required", domain.ErrInvalidInput)
	}

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().FindForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := domain.RankFor(account.Score)

	solved, err := uow.Solves().Exists(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if solved {
		return unchangedSubmit(domain.SubmitAlreadySolved, challengeID, account.Score), nil
	}

	challenge, err := s.catalog.Challenge(challengeID)
	if err != nil {
		return nil, err
	}

	if !challenge.MatchesFlag(flag) {
		slog.Debug("incorrect flag", "user_id", userID, "challenge_id", challengeID)
		return unchangedSubmit(domain.SubmitIncorrectFlag, challengeID, account.Score), nil
	}

	now := s.now()
	err = uow.Solves().Insert(ctx, &domain.Solve{UserID: userID, ChallengeID: challengeID, SolvedAt: now})
	if errors.Is(err, domain.ErrConflict) {
		return unchangedSubmit(domain.SubmitAlreadySolved, challengeID, account.Score), nil
	}
	if err != nil {
		return nil, err
	}

	score, err := uow.Accounts().Credit(ctx, userID, challenge.Points)
	if err != nil {
		return nil, err
	}
	rank, err := s.updateRank(ctx, uow, account, score)
	if err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		UserID:       userID,
		ChallengeID:  challengeID,
		Kind:         domain.LedgerKindSolve,
		Delta:        challenge.Points,
		BalanceAfter: score,
		Metadata:     ledgerMetadata(challenge),
		CreatedAt:    now,
	}
	err = uow.Ledger().Append(ctx, entry)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	slog.Info("challenge solved",
		"user_id", userID,
		"challenge_id", challengeID,
		"points", challenge.Points,
		"score", score,
		"rank", rank,
	)

	account.Score, account.Rank = score, rank
	solvedEvent := domain.NewChallengeSolvedEvent(account, challengeID, challenge.Points)
	solvedEvent.LedgerSeq = entry.ID
	events := []domain.Event{solvedEvent}
	if rank != current {
		events = append(events, domain.NewRankChangedEvent(account, current))
	}
	s.publish(ctx, events...)

	return &domain.SubmitResult{
		Outcome:       domain.SubmitSolved,
		ChallengeID:   challengeID,
		PointsAwarded: challenge.Points,
		Score:         score,
		Rank:          rank,
		PreviousRank:  current,
	}, nil
}

// UnlockHint reveals a challenge's hint in exchange for its hint cost. The
// cost is taken with a conditional debit, so a balance never goes negative
// and concurrent unlocks cannot spend the same points twice.
func (s *Service) UnlockHint(ctx context.Context, userID uuid.UUID, challengeID int64) (*domain.UnlockResult, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().FindForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	current := domain.RankFor(account.Score)

	unlocked, err := uow.HintUnlocks().Exists(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	challenge, err := s.catalog.Challenge(challengeID)
	if err != nil {
		return nil, err
	}

	if unlocked {
		return alreadyUnlocked(challenge, account.Score), nil
	}

	if account.Score < challenge.HintCost {
		return insufficientScore(challengeID, account.Score), nil
	}

	score := account.Score
	if challenge.HintCost > 0 {
		score, err = uow.Accounts().Debit(ctx, userID, challenge.HintCost)
		if errors.Is(err, domain.ErrInsufficientScore) {
			return insufficientScore(challengeID, account.Score), nil
		}
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	err = uow.HintUnlocks().Insert(ctx, &domain.HintUnlock{UserID: userID, ChallengeID: challengeID, UnlockedAt: now})
	if errors.Is(err, domain.ErrConflict) {
		if err := uow.Rollback(); err != nil {
			return nil, err
		}
		return alreadyUnlocked(challenge, account.Score), nil
	}
	if err != nil {
		return nil, err
	}

	rank, err := s.updateRank(ctx, uow, account, score)
	if err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		UserID:       userID,
		ChallengeID:  challengeID,
		Kind:         domain.LedgerKindHint,
		Delta:        -challenge.HintCost,
		BalanceAfter: score,
		Metadata:     ledgerMetadata(challenge),
		CreatedAt:    now,
	}
	err = uow.Ledger().Append(ctx, entry)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	slog.Info("hint unlocked",
		"user_id", userID,
		"challenge_id", challengeID,
		"cost", challenge.HintCost,
		"score", score,
		"rank", rank,
	)

	account.Score, account.Rank = score, rank
	unlockEvent := domain.NewHintUnlockedEvent(account, challengeID, challenge.HintCost)
	unlockEvent.LedgerSeq = entry.ID
	events := []domain.Event{unlockEvent}
	if rank != current {
		events = append(events, domain.NewRankChangedEvent(account, current))
	}
	s.publish(ctx, events...)

	return &domain.UnlockResult{
		Outcome:      domain.UnlockUnlocked,
		ChallengeID:  challengeID,
		Hint:         challenge.Hint,
		CostDeducted: challenge.HintCost,
		Score:        score,
		Rank:         rank,
	}, nil
}

// updateRank persists the rank derived from score when it differs from the cached one
func (s *Service) updateRank(ctx context.Context, uow domain.UnitOfWork, account *domain.Account, score int) (domain.Rank, error) {
	rank := domain.RankFor(score)
	if rank == account.Rank {
		return rank, nil
	}
	if err := uow.Accounts().SetRank(ctx, account.ID, rank); err != nil {
		return "", err
	}
	return rank, nil
}

func (s *Service) publish(ctx context.Context, events ...domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		slog.Warn("failed to publish scoring events", "count", len(events), "error", err)
	}
}

func unchangedSubmit(outcome domain.SubmitOutcome, challengeID int64, score int) *domain.SubmitResult {
	rank := domain.RankFor(score)
	return &domain.SubmitResult{
		Outcome:      outcome,
		ChallengeID:  challengeID,
		Score:        score,
		Rank:         rank,
		PreviousRank: rank,
	}
}

func alreadyUnlocked(challenge *domain.Challenge, score int) *domain.UnlockResult {
	return &domain.UnlockResult{
		Outcome:     domain.UnlockAlreadyUnlocked,
		ChallengeID: challenge.ID,
		Hint:        challenge.Hint,
		Score:       score,
		Rank:        domain.RankFor(score),
	}
}

func insufficientScore(challengeID int64, score int) *domain.UnlockResult {
	return &domain.UnlockResult{
		Outcome:     domain.UnlockInsufficientScore,
		ChallengeID: challengeID,
		Score:       score,
		Rank:        domain.RankFor(score),
	}
}

func ledgerMetadata(c *domain.Challenge) map[string]string {
	return map[string]string{
		"title":    c.Title,
		"category": string(c.Category),
		"points":   strconv.Itoa(c.Points),
	}
}
