// Package leaderboard serves the top of the score table. Reads go to a cache
// fed by scoring events when one is configured and fall back to the store.
// Results are eventually consistent with committed scores.
package leaderboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/arise/internal/domain"
)

const (
	// DefaultSize is the number of standings shown when no limit is given
	DefaultSize = 10
	// MaxSize bounds a single leaderboard page
	MaxSize = 100

	warmLimit = 10000
)

// Cache stores standings for fast reads
type Cache interface {
	Put(ctx context.Context, s domain.Standing) error
	Replace(ctx context.Context, standings []domain.Standing) error
	Top(ctx context.Context, limit int) ([]domain.Standing, error)
}

// Service reads the leaderboard
type Service struct {
	reader domain.LeaderboardReader
	cache  Cache // Optional
	size   int
}

// NewService creates a leaderboard backed by the store reader
func NewService(reader domain.LeaderboardReader, size int) *Service {
	if size <= 0 || size > MaxSize {
		size = DefaultSize
	}
	return &Service{reader: reader, size: size}
}

// SetCache enables the read cache
func (s *Service) SetCache(c Cache) {
	s.cache = c
}

// Size returns the default page size
func (s *Service) Size() int {
	return s.size
}

// Top returns up to limit standings ordered by score. A non-positive limit
// uses the configured size.
func (s *Service) Top(ctx context.Context, limit int) ([]domain.Standing, error) {
	if limit <= 0 {
		limit = s.size
	}
	if limit > MaxSize {
		limit = MaxSize
	}

	if s.cache != nil {
		standings, err := s.cache.Top(ctx, limit)
		switch {
		case err != nil:
			slog.Warn("leaderboard cache read failed", "error", err)
		case len(standings) == limit:
			return standings, nil
		}
		// A short page may be missing accounts the cache has not seen yet
	}

	return s.reader.Top(ctx, limit)
}

// Warm loads the cache from the store
func (s *Service) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	standings, err := s.reader.Top(ctx, warmLimit)
	if err != nil {
		return err
	}
	if err := s.cache.Replace(ctx, standings); err != nil {
		return err
	}
	slog.Debug("leaderboard cache warmed", "accounts", len(standings))
	return nil
}

// Refresh re-warms the cache every interval until ctx is done
func (s *Service) Refresh(ctx context.Context, interval time.Duration) {
	if s.cache == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Warm(ctx); err != nil {
				slog.Warn("leaderboard refresh failed", "error", err)
			}
		}
	}
}

// Apply writes the standing carried by a scoring event to the cache
func (s *Service) Apply(ctx context.Context, event domain.ScoreEvent) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Put(ctx, event.Standing())
}

// HandleEvent updates the cache from a scoring event. It matches
// domain.EventHandler so it can subscribe to a dispatcher.
func (s *Service) HandleEvent(ctx context.Context, event domain.Event) {
	se, ok := event.(domain.ScoreEvent)
	if !ok {
		return
	}
	if err := s.Apply(ctx, se); err != nil {
		slog.Warn("leaderboard cache update failed", "event", event.EventType(), "error", err)
	}
}
