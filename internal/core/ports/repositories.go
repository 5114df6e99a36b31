package ports

import (
	"context"

	"github.com/samirrijal/kilopost/internal/core/domain"
)

// RoadRepository persists road centerlines.
type RoadRepository interface {
	Upsert(ctx context.Context, road *domain.Road) error
	UpsertBatch(ctx context.Context, roads []domain.Road) error
	GetByRef(ctx context.Context, ref string) (*domain.Road, error)
	List(ctx context.Context, limit, offset int) ([]domain.Road, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*domain.RoadStats, error)
}
