package linearref

import (
	"github.com/samirrijal/kilopost/internal/core/domain"
)

// Locate returns the coordinate at the given chainage along the line.
// Chainage 0 yields the first vertex exactly and the full line length
// yields the last vertex exactly; anything outside [0, length] is out
// of range. Points inside a segment are linearly interpolated.
func (e *Engine) Locate(line []domain.GeoPoint, chainageKm float64) (*domain.LocatedPoint, error) {
	if len(line) < 2 {
		return nil, domain.ErrDegenerateLine
	}

	target := e.conv.ToPlanar(chainageKm)
	total := lengthPlanar(line)
	switch {
	case target < -eps || target > total+eps:
		return nil, domain.ErrChainageOutOfRange
	case target < 0:
		target = 0
	case target > total:
		target = total
	}

	var acc float64
	for i := 1; i < len(line); i++ {
		segLen := distance(line[i-1], line[i])
		if segLen == 0 {
			continue
		}
		if acc+segLen >= target {
			f := (target - acc) / segLen
			return &domain.LocatedPoint{
				Chainage: chainageKm,
				Point:    interpolate(line[i-1], line[i], f),
			}, nil
		}
		acc += segLen
	}

	// Floating-point accumulation can leave target a hair past the last
	// segment; the range check above already admitted it.
	return &domain.LocatedPoint{
		Chainage: chainageKm,
		Point:    line[len(line)-1],
	}, nil
}
