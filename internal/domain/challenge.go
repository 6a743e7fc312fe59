package domain

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// Category is a difficulty tier of the challenge catalog
type Category string

const (
	CategoryEasy    Category = "Easy"
	CategoryMedium  Category = "Medium"
	CategoryHard    Category = "Hard"
	CategoryExtreme Category = "Extreme"
)

// Categories returns all categories in display order
func Categories() []Category {
	return []Category{CategoryEasy, CategoryMedium, CategoryHard, CategoryExtreme}
}

// IsValid checks if the category is a known tier
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Challenge is a catalog entry. Flag and Hint are secrets: they leave the
// scoring boundary only through submission and hint unlock results.
type Challenge struct {
	ID          int64
	Title       string
	Description string
	Category    Category
	Points      int
	Flag        string
	Hint        string
	HintCost    int
}

// Validate checks the catalog constraints of a challenge
func (c *Challenge) Validate() error {
	switch {
	case c.ID <= 0:
		return fmt.Errorf("%w: challenge id must be positive", ErrInvalidInput)
	case strings.TrimSpace(c.Title) == "":
		return fmt.Errorf("%w: challenge %d has no title", ErrInvalidInput, c.ID)
	case !c.Category.IsValid():
		return fmt.Errorf("%w: challenge %d has unknown category %q", ErrInvalidInput, c.ID, c.Category)
	case c.Points <= 0:
		return fmt.Errorf("%w: challenge %d points must be positive", ErrInvalidInput, c.ID)
	case c.HintCost < 0:
		return fmt.Errorf("%w: challenge %d hint cost must not be negative", ErrInvalidInput, c.ID)
	case strings.TrimSpace(c.Flag) == "":
		return fmt.Errorf("%w: challenge %d has no flag", ErrInvalidInput, c.ID)
	}
	return nil
}

// MatchesFlag reports whether the submitted flag equals the stored one.
// Surrounding whitespace is ignored; the comparison is exact and case-sensitive.
func (c *Challenge) MatchesFlag(submitted string) bool {
	submitted = strings.TrimSpace(submitted)
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(c.Flag)) == 1
}

// Summary returns the public view of the challenge
func (c *Challenge) Summary() ChallengeSummary {
	return ChallengeSummary{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Points:      c.Points,
		HintCost:    c.HintCost,
	}
}

// ChallengeSummary is a challenge with its secrets stripped
type ChallengeSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Points      int      `json:"points"`
	HintCost    int      `json:"hint_cost"`
}

// ChallengeProgress is a challenge as seen by one user.
// Hint is only populated once the user has unlocked it.
type ChallengeProgress struct {
	ChallengeSummary
	Solved       bool   `json:"solved"`
	HintUnlocked bool   `json:"hint_unlocked"`
	Hint         string `json:"hint,omitempty"`
}
