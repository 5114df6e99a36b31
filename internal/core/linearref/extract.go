package linearref

import (
	"github.com/samirrijal/kilopost/internal/core/domain"
)

// Extract returns the sub-line between two chainages. The endpoints are
// interpolated exactly; interior vertices are carried over verbatim so
// the section preserves the original line's shape. An end chainage past
// the line is clamped to the final vertex and the returned EndCh reflects
// the clamp. Zero-length segments are skipped during the walk.
func (e *Engine) Extract(line []domain.GeoPoint, startKm, endKm float64) (*domain.Section, error) {
	if len(line) < 2 {
		return nil, domain.ErrDegenerateLine
	}
	if startKm < 0 || endKm <= startKm {
		return nil, domain.ErrInvalidInterval
	}

	startPl := e.conv.ToPlanar(startKm)
	endPl := e.conv.ToPlanar(endKm)
	total := lengthPlanar(line)
	if total == 0 || startPl >= total {
		return nil, domain.ErrSectionOutOfRange
	}
	if endPl > total {
		endPl = total
	}

	var (
		acc float64
		pts = make([]domain.GeoPoint, 0, len(line))
	)
	for i := 1; i < len(line); i++ {
		segLen := distance(line[i-1], line[i])
		if segLen == 0 {
			continue
		}
		segStart := acc
		acc += segLen
		if acc <= startPl {
			continue
		}
		if len(pts) == 0 {
			pts = append(pts, interpolate(line[i-1], line[i], (startPl-segStart)/segLen))
		}
		if endPl > acc {
			// Carry the original vertex over unless the interpolated
			// start already snapped onto it.
			if pts[len(pts)-1] != line[i] {
				pts = append(pts, line[i])
			}
			continue
		}
		end := interpolate(line[i-1], line[i], (endPl-segStart)/segLen)
		if pts[len(pts)-1] != end {
			pts = append(pts, end)
		}
		break
	}
	if len(pts) < 2 {
		return nil, domain.ErrSectionOutOfRange
	}

	return &domain.Section{
		StartCh:  startKm,
		EndCh:    e.conv.ToChainageKm(endPl),
		Start:    pts[0],
		End:      pts[len(pts)-1],
		LengthKm: e.conv.ToChainageKm(lengthPlanar(pts)),
		Line:     domain.GeoLineString{Coordinates: pts},
		Bounds:   domain.BoundsOf(pts),
	}, nil
}
