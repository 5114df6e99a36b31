// Package geomcodec converts between WKT/WKB geometry text and domain
// coordinate sequences. Coordinates are X=lon, Y=lat; any Z or M values
// on the input are dropped.
package geomcodec

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/samirrijal/kilopost/internal/core/domain"
)

// maxDigits matches the coordinate precision used in API responses.
const maxDigits = 8

// DecodeLine parses a WKT LINESTRING, or the first part of a WKT
// MULTILINESTRING, into a coordinate sequence. Any other geometry type
// is rejected.
func DecodeLine(s string) ([]domain.GeoPoint, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
	}

	var ls *geom.LineString
	switch t := g.(type) {
	case *geom.LineString:
		ls = t
	case *geom.MultiLineString:
		if t.NumLineStrings() == 0 {
			return nil, fmt.Errorf("%w: empty multilinestring", domain.ErrInvalidGeometry)
		}
		ls = t.LineString(0)
	default:
		return nil, fmt.Errorf("%w: expected linestring, got %T", domain.ErrInvalidGeometry, g)
	}

	coords := make([]domain.GeoPoint, ls.NumCoords())
	for i := range coords {
		c := ls.Coord(i)
		coords[i] = domain.GeoPoint{Lon: c.X(), Lat: c.Y()}
	}
	return coords, nil
}

// DecodePoint parses a WKT POINT.
func DecodePoint(s string) (domain.GeoPoint, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: %v", domain.ErrInvalidGeometry, err)
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return domain.GeoPoint{}, fmt.Errorf("%w: expected point, got %T", domain.ErrInvalidGeometry, g)
	}
	return domain.GeoPoint{Lon: p.X(), Lat: p.Y()}, nil
}

// EncodeLineWKT serializes a coordinate sequence as a WKT LINESTRING.
func EncodeLineWKT(coords []domain.GeoPoint) (string, error) {
	ls, err := toLineString(coords)
	if err != nil {
		return "", err
	}
	return wkt.Marshal(ls, wkt.EncodeOptionWithMaxDecimalDigits(maxDigits))
}

// EncodeLineWKB serializes a coordinate sequence as little-endian WKB.
func EncodeLineWKB(coords []domain.GeoPoint) ([]byte, error) {
	ls, err := toLineString(coords)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(ls, wkb.NDR)
}

// EncodePointWKT serializes a coordinate as a WKT POINT.
func EncodePointWKT(p domain.GeoPoint) (string, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat})
	return wkt.Marshal(pt, wkt.EncodeOptionWithMaxDecimalDigits(maxDigits))
}

func toLineString(coords []domain.GeoPoint) (*geom.LineString, error) {
	if len(coords) < 2 {
		return nil, domain.ErrDegenerateLine
	}
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c.Lon, c.Lat)
	}
	return geom.NewLineStringFlat(geom.XY, flat), nil
}
