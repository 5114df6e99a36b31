package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/kilopost/internal/core/domain"
	"github.com/samirrijal/kilopost/internal/core/ports"
)

// RoadService handles road catalogue business logic.
type RoadService struct {
	roads ports.RoadRepository
	cache ports.CacheService
}

// NewRoadService creates a new RoadService.
func NewRoadService(roads ports.RoadRepository, cache ports.CacheService) *RoadService {
	return &RoadService{roads: roads, cache: cache}
}

// List returns a page of roads plus the total count for pagination.
func (s *RoadService) List(ctx context.Context, limit, offset int) ([]domain.Road, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	roads, err := s.roads.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.roads.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return roads, total, nil
}

// GetByRef returns a single road by its reference code.
func (s *RoadService) GetByRef(ctx context.Context, ref string) (*domain.Road, error) {
	cacheKey := "roads:ref:" + ref
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var road domain.Road
			if err := json.Unmarshal(data, &road); err == nil {
				return &road, nil
			}
		}
	}

	road, err := s.roads.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if road == nil {
		return nil, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(road); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return road, nil
}

// Stats summarizes the stored network.
func (s *RoadService) Stats(ctx context.Context) (*domain.RoadStats, error) {
	cacheKey := "roads:stats"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stats domain.RoadStats
			if err := json.Unmarshal(data, &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := s.roads.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return stats, nil
}

// Invalidate drops cached entries for a road after re-ingest.
func (s *RoadService) Invalidate(ctx context.Context, ref string) error {
	if s.cache == nil {
		return nil
	}
	for _, key := range []string{"roads:ref:" + ref, "roads:line:" + ref, "roads:stats"} {
		if err := s.cache.Delete(ctx, key); err != nil {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
	}
	return nil
}
