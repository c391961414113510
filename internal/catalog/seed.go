package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"reportline/internal/domain"
)

//go:embed seed.yml
var seedYAML []byte

type seedFile struct {
	Requests []domain.Request `yaml:"requests"`
}

// SeedRequests returns the built-in sample requests.
func SeedRequests() ([]domain.Request, error) {
	return ParseSeed(seedYAML)
}

// ParseSeed decodes a requests fixture. Unknown keys are rejected.
func ParseSeed(data []byte) ([]domain.Request, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("invalid seed yaml: %w", err)
	}
	return f.Requests, nil
}

// Seed inserts reqs, skipping ids that already exist, and returns how many
// were inserted.
func (s Store) Seed(ctx context.Context, reqs []domain.Request) (int, error) {
	inserted := 0
	for _, r := range reqs {
		err := s.Insert(ctx, r)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", r.ID, err)
		}
		inserted++
	}
	return inserted, nil
}
