package usecases

import (
	"context"

	"github.com/samirrijal/kilopost/internal/core/domain"
	"github.com/samirrijal/kilopost/internal/core/linearref"
	"github.com/samirrijal/kilopost/internal/core/ports"
	"github.com/samirrijal/kilopost/internal/pkg/geomcodec"
)

// ChainageService runs linear-referencing operations over ad-hoc WKT
// geometries and over stored roads.
type ChainageService struct {
	engine *linearref.Engine
	roads  ports.RoadRepository
	cache  ports.CacheService
}

// NewChainageService creates a new ChainageService. roads and cache may
// be nil when only the ad-hoc WKT operations are needed.
func NewChainageService(roads ports.RoadRepository, cache ports.CacheService) *ChainageService {
	return &ChainageService{engine: linearref.NewEngine(), roads: roads, cache: cache}
}

// Calibrate snaps a reference point onto a WKT line and returns its
// chainage. The radius is in coordinate-space units (degrees).
func (s *ChainageService) Calibrate(ctx context.Context, lineWKT string, ref domain.GeoPoint, radius float64) (*domain.Calibration, error) {
	line, err := geomcodec.DecodeLine(lineWKT)
	if err != nil {
		return nil, err
	}
	return s.engine.Calibrate(line, ref, radius)
}

// Locate returns the coordinate at a chainage along a WKT line.
func (s *ChainageService) Locate(ctx context.Context, lineWKT string, chainageKm float64) (*domain.LocatedPoint, error) {
	line, err := geomcodec.DecodeLine(lineWKT)
	if err != nil {
		return nil, err
	}
	return s.engine.Locate(line, chainageKm)
}

// Extract returns the sub-line between two chainages of a WKT line.
func (s *ChainageService) Extract(ctx context.Context, lineWKT string, startKm, endKm float64) (*domain.Section, error) {
	line, err := geomcodec.DecodeLine(lineWKT)
	if err != nil {
		return nil, err
	}
	return s.engine.Extract(line, startKm, endKm)
}

// CalibrateOnRoad calibrates a point against a stored road's centerline.
func (s *ChainageService) CalibrateOnRoad(ctx context.Context, ref string, point domain.GeoPoint, radius float64) (*domain.Calibration, error) {
	line, err := s.roadLine(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.engine.Calibrate(line, point, radius)
}

// LocateOnRoad returns the coordinate at a chainage along a stored road.
func (s *ChainageService) LocateOnRoad(ctx context.Context, ref string, chainageKm float64) (*domain.LocatedPoint, error) {
	line, err := s.roadLine(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.engine.Locate(line, chainageKm)
}

// ExtractOnRoad returns the section between two chainages of a stored road.
func (s *ChainageService) ExtractOnRoad(ctx context.Context, ref string, startKm, endKm float64) (*domain.Section, error) {
	line, err := s.roadLine(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.engine.Extract(line, startKm, endKm)
}

// roadLine loads and decodes a road's centerline, caching the raw WKT.
func (s *ChainageService) roadLine(ctx context.Context, ref string) ([]domain.GeoPoint, error) {
	cacheKey := "roads:line:" + ref
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			if line, err := geomcodec.DecodeLine(string(data)); err == nil {
				return line, nil
			}
		}
	}

	road, err := s.roads.GetByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if road == nil {
		return nil, domain.ErrRoadNotFound
	}

	line, err := geomcodec.DecodeLine(road.WKT)
	if err != nil {
		return nil, err
	}

	// Centerlines only change on re-ingest, so an hour is safe.
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, []byte(road.WKT), 3600)
	}

	return line, nil
}
