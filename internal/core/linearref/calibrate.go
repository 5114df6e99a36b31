package linearref

import (
	"math"

	"github.com/samirrijal/kilopost/internal/core/domain"
)

// Calibrate snaps a reference point onto the line by choosing the nearest
// line vertex within radius. Only vertices are candidates; points on a
// segment interior are never matched. The radius is expressed in
// coordinate-space units, the same units as the vertices themselves.
//
// Ties are broken in favour of the lowest vertex index. The returned
// chainage is the cumulative planar length from the line start to the
// matched vertex, converted to kilometres.
func (e *Engine) Calibrate(line []domain.GeoPoint, ref domain.GeoPoint, radius float64) (*domain.Calibration, error) {
	if len(line) < 2 {
		return nil, domain.ErrDegenerateLine
	}
	if radius <= 0 {
		return nil, domain.ErrInvalidRadius
	}

	var (
		lengthFromStart float64
		closest         = math.MaxFloat64
		found           *domain.Calibration
	)
	for i, v := range line {
		if i > 0 {
			lengthFromStart += distance(line[i-1], v)
		}
		d := distance(ref, v)
		if d <= radius && d < closest {
			closest = d
			found = &domain.Calibration{
				Chainage:    e.conv.ToChainageKm(lengthFromStart),
				Point:       v,
				VertexIndex: i,
			}
		}
	}
	if found == nil {
		return nil, domain.ErrNoVertexInRadius
	}
	return found, nil
}
