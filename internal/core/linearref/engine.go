// Package linearref implements chainage-based linear referencing over 2D
// polylines: calibrating a point onto a line, locating the coordinate at a
// chainage, and extracting the sub-line between two chainages. Distances
// are planar Euclidean in coordinate space; chainages are kilometres.
package linearref

import (
	"math"

	"github.com/samirrijal/kilopost/internal/core/domain"
)

// Engine performs linear-referencing computations over polylines.
type Engine struct {
	conv Converter
}

// NewEngine creates an Engine with the default unit converter.
func NewEngine() *Engine {
	return &Engine{conv: NewConverter()}
}

// LengthKm returns the chainage of the final vertex, i.e. the total
// length of the line in kilometres.
func (e *Engine) LengthKm(line []domain.GeoPoint) float64 {
	return e.conv.ToChainageKm(lengthPlanar(line))
}

// distance is the planar Euclidean distance between two coordinates.
func distance(a, b domain.GeoPoint) float64 {
	return math.Hypot(b.Lon-a.Lon, b.Lat-a.Lat)
}

// lengthPlanar sums the segment lengths of a polyline in coordinate space.
func lengthPlanar(line []domain.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(line); i++ {
		total += distance(line[i-1], line[i])
	}
	return total
}

// eps absorbs floating-point drift from accumulated segment lengths. It is
// used both as a planar-distance tolerance (degrees, so well under a
// millimetre on the ground) and as a segment-fraction snap.
const eps = 1e-9

// interpolate returns the point at fraction f along the segment a..b.
// Fractions within eps of 0 or 1 yield the vertex exactly, so chainages
// that land on a vertex reproduce its coordinates bit for bit.
func interpolate(a, b domain.GeoPoint, f float64) domain.GeoPoint {
	if f <= eps {
		return a
	}
	if f >= 1-eps {
		return b
	}
	return domain.GeoPoint{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}
