package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/arise/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// File represents the YAML structure of a catalog file
type File struct {
	Version    int             `yaml:"version"`
	Challenges []ChallengeFile `yaml:"challenges"`
}

// ChallengeFile represents one challenge entry in a catalog file
type ChallengeFile struct {
	ID          int64  `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Points      int    `yaml:"points"`
	Flag        string `yaml:"flag"`
	Hint        string `yaml:"hint"`
	HintCost    int    `yaml:"hint_cost"`
}

// Loader reads a catalog from a YAML file, or the built-in catalog when no
// path is configured
type Loader struct {
	path string
}

// NewLoader creates a new catalog loader. An empty path selects the built-in catalog.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and parses the catalog
func (l *Loader) Load() (*Catalog, error) {
	if l.path == "" {
		return Default()
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse builds a catalog from YAML data
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(file.Challenges) == 0 {
		return nil, fmt.Errorf("%w: catalog has no challenges", domain.ErrInvalidInput)
	}

	challenges := make([]*domain.Challenge, len(file.Challenges))
	for i, c := range file.Challenges {
		challenges[i] = &domain.Challenge{
			ID:          c.ID,
			Title:       strings.TrimSpace(c.Title),
			Description: strings.TrimSpace(c.Description),
			Category:    domain.Category(c.Category),
			Points:      c.Points,
			Flag:        strings.TrimSpace(c.Flag),
			Hint:        strings.TrimSpace(c.Hint),
			HintCost:    c.HintCost,
		}
	}

	return New(challenges)
}
