// Package catalog holds the static challenge catalog. It is loaded once at
// startup and is read-only afterwards.
package catalog

import (
	"fmt"

	"github.com/felixgeelhaar/arise/internal/domain"
)

// Catalog provides lookup of challenges by ID and listing in catalog order
type Catalog struct {
	order []*domain.Challenge
	byID  map[int64]*domain.Challenge
}

// New validates challenges and builds a catalog. IDs must be unique.
func New(challenges []*domain.Challenge) (*Catalog, error) {
	c := &Catalog{
		order: make([]*domain.Challenge, 0, len(challenges)),
		byID:  make(map[int64]*domain.Challenge, len(challenges)),
	}

	for _, ch := range challenges {
		if err := ch.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate challenge id %d", domain.ErrInvalidInput, ch.ID)
		}
		c.byID[ch.ID] = ch
		c.order = append(c.order, ch)
	}

	return c, nil
}

// Challenge returns a challenge by ID
func (c *Catalog) Challenge(id int64) (*domain.Challenge, error) {
	ch, ok := c.byID[id]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	return ch, nil
}

// List returns all challenges in catalog order. The slice is a copy; the
// challenges themselves must not be modified.
func (c *Catalog) List() []*domain.Challenge {
	out := make([]*domain.Challenge, len(c.order))
	copy(out, c.order)
	return out
}

// Summaries returns the public view of every challenge in catalog order
func (c *Catalog) Summaries() []domain.ChallengeSummary {
	out := make([]domain.ChallengeSummary, len(c.order))
	for i, ch := range c.order {
		out[i] = ch.Summary()
	}
	return out
}

// Len returns the number of challenges
func (c *Catalog) Len() int {
	return len(c.order)
}

// MaxScore returns the score of a user who solved everything without hints
func (c *Catalog) MaxScore() int {
	total := 0
	for _, ch := range c.order {
		total += ch.Points
	}
	return total
}
