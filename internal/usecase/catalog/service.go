// Package catalog serves plant listing and filtering.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdantlab/floramatch/internal/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// PlantStore serves the catalog.
type PlantStore interface {
	List(ctx context.Context) ([]domain.Plant, error)
	Get(ctx context.Context, id int64) (domain.Plant, error)
}

// Filter narrows the catalog listing. Name matches case-insensitively by
// substring; attribute filters match exactly; empty fields are skipped.
type Filter struct {
	Name       string
	Growth     string
	Soil       string
	Sunlight   string
	Watering   string
	Fertilizer string

	Skip  int
	Limit int
}

// Service lists and filters the plant catalog.
type Service struct {
	plants PlantStore
}

// New creates a catalog service.
func New(plants PlantStore) *Service {
	return &Service{plants: plants}
}

// Get returns one catalog entry by id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Plant, error) {
	return s.plants.Get(ctx, id)
}

// List returns the filtered catalog page.
func (s *Service) List(ctx context.Context, f Filter) ([]domain.Plant, error) {
	plants, err := s.plants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	filtered := make([]domain.Plant, 0, len(plants))
	for _, p := range plants {
		if f.matches(p) {
			filtered = append(filtered, p)
		}
	}

	return paginate(filtered, f.Skip, f.Limit), nil
}

func (f Filter) matches(p domain.Plant) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Growth != "" && p.Growth != f.Growth {
		return false
	}
	if f.Soil != "" && p.Soil != f.Soil {
		return false
	}
	if f.Sunlight != "" && p.Sunlight != f.Sunlight {
		return false
	}
	if f.Watering != "" && p.Watering != f.Watering {
		return false
	}
	if f.Fertilizer != "" && p.Fertilization != f.Fertilizer {
		return false
	}
	return true
}

func paginate(plants []domain.Plant, skip, limit int) []domain.Plant {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if skip >= len(plants) {
		return []domain.Plant{}
	}
	end := skip + limit
	if end > len(plants) {
		end = len(plants)
	}
	return plants[skip:end]
}
