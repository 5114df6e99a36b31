package http

import (
	"strconv"

	"github.com/samirrijal/kilopost/internal/core/domain"
)

// Km is a chainage or length in kilometres, serialized with exactly
// six decimal places (millimetre resolution).
type Km float64

// MarshalJSON implements json.Marshaler.
func (k Km) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(k), 'f', 6, 64), nil
}

// Deg is a coordinate in degrees, serialized with exactly eight
// decimal places.
type Deg float64

// MarshalJSON implements json.Marshaler.
func (d Deg) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(d), 'f', 8, 64), nil
}

// calibrationResponse is the payload for point calibration.
type calibrationResponse struct {
	Chainage Km  `json:"chainage"`
	Lat      Deg `json:"lat"`
	Lon      Deg `json:"lon"`
	Index    int `json:"index"`
}

func newCalibrationResponse(cal *domain.Calibration) calibrationResponse {
	return calibrationResponse{
		Chainage: Km(cal.Chainage),
		Lat:      Deg(cal.Point.Lat),
		Lon:      Deg(cal.Point.Lon),
		Index:    cal.VertexIndex,
	}
}

// locateResponse is the payload for point-at-chainage lookups.
type locateResponse struct {
	Chainage Km     `json:"chainage"`
	Lat      Deg    `json:"lat"`
	Lon      Deg    `json:"lon"`
	Geometry string `json:"geometry"`
}

// sectionResponse is the payload for section extraction. Geometry is
// WKT by default, or base64 WKB when requested.
type sectionResponse struct {
	StartCh  Km     `json:"start_ch"`
	EndCh    Km     `json:"end_ch"`
	StartLat Deg    `json:"start_lat"`
	StartLon Deg    `json:"start_lon"`
	EndLat   Deg    `json:"end_lat"`
	EndLon   Deg    `json:"end_lon"`
	Length   Km     `json:"length"`
	Geometry string `json:"geometry"`
}

func newSectionResponse(sec *domain.Section, geometry string) sectionResponse {
	return sectionResponse{
		StartCh:  Km(sec.StartCh),
		EndCh:    Km(sec.EndCh),
		StartLat: Deg(sec.Start.Lat),
		StartLon: Deg(sec.Start.Lon),
		EndLat:   Deg(sec.End.Lat),
		EndLon:   Deg(sec.End.Lon),
		Length:   Km(sec.LengthKm),
		Geometry: geometry,
	}
}
