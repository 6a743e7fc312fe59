package scoring

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// AccountSummary is an account with its progress counters
type AccountSummary struct {
	ID               uuid.UUID   `json:"id"`
	Username         string      `json:"username"`
	Guild            string      `json:"guild,omitempty"`
	Score            int         `json:"score"`
	Rank             domain.Rank `json:"rank"`
	Solved           int         `json:"solved"`
	HintsUnlocked    int         `json:"hints_unlocked"`
	NextRank         domain.Rank `json:"next_rank,omitempty"`
	PointsToNextRank int         `json:"points_to_next_rank,omitempty"`
}

// AccountOption sets an optional field of a new account
type AccountOption func(*domain.Account)

// WithGuild places the new account in a guild
func WithGuild(guild string) AccountOption {
	return func(a *domain.Account) {
		a.Guild = strings.TrimSpace(guild)
	}
}

// ProvisionAccount creates the scoring account of a newly registered user at
// score 0 and rank E. Calling it again for the same user returns the
// existing account unchanged.
func (s *Service) ProvisionAccount(ctx context.Context, userID uuid.UUID, username string, opts ...AccountOption) (*domain.Account, error) {
	account := domain.NewAccount(userID, username)
	for _, opt := range opts {
		opt(account)
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	created, err := s.createAccount(ctx, account)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, domain.ErrAccountAlreadyExists) {
		return nil, err
	}

	// The failed insert may have aborted the transaction; look up in a fresh one.
	existing, findErr := s.findAccount(ctx, userID)
	if errors.Is(findErr, domain.ErrAccountNotFound) {
		// The username belongs to someone else
		return nil, err
	}
	if findErr != nil {
		return nil, findErr
	}
	return existing, nil
}

func (s *Service) createAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.Accounts().Create(ctx, account); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) findAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	return uow.Accounts().FindByID(ctx, userID)
}

// Account returns an account with its solve and unlock counts
func (s *Service) Account(ctx context.Context, userID uuid.UUID) (*AccountSummary, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	account, err := uow.Accounts().FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	solves, err := uow.Solves().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocks, err := uow.HintUnlocks().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &AccountSummary{
		ID:            account.ID,
		Username:      account.Username,
		Guild:         account.Guild,
		Score:         account.Score,
		Rank:          domain.RankFor(account.Score),
		Solved:        len(solves),
		HintsUnlocked: len(unlocks),
	}
	if next, threshold, ok := domain.NextRank(account.Score); ok {
		summary.NextRank = next
		summary.PointsToNextRank = threshold - account.Score
	}
	return summary, nil
}

// Challenges lists the catalog as seen by a user. Hint text appears only for
// unlocked hints. A nil user gets the anonymous view.
func (s *Service) Challenges(ctx context.Context, userID uuid.UUID) ([]domain.ChallengeProgress, error) {
	solved := map[int64]bool{}
	unlocked := map[int64]bool{}

	if userID != uuid.Nil {
		uow, err := s.store.Begin(ctx)
		if err != nil {
			return nil, err
		}
		defer uow.Rollback()

		if _, err := uow.Accounts().FindByID(ctx, userID); err != nil {
			return nil, err
		}
		solves, err := uow.Solves().ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, sv := range solves {
			solved[sv.ChallengeID] = true
		}
		unlocks, err := uow.HintUnlocks().ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, h := range unlocks {
			unlocked[h.ChallengeID] = true
		}
	}

	challenges := s.catalog.List()
	out := make([]domain.ChallengeProgress, len(challenges))
	for i, c := range challenges {
		out[i] = domain.ChallengeProgress{
			ChallengeSummary: c.Summary(),
			Solved:           solved[c.ID],
			HintUnlocked:     unlocked[c.ID],
		}
		if unlocked[c.ID] {
			out[i].Hint = c.Hint
		}
	}
	return out, nil
}
