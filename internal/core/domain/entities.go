package domain

import (
	"time"
)

// Road represents a stored road centerline (e.g. N-634, BI-625).
type Road struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref"`
	Name      string    `json:"name,omitempty"`
	LengthKm  float64   `json:"length_km"`
	WKT       string    `json:"wkt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Calibration is the result of snapping a reference point onto a line.
// Chainage is measured in kilometres from the line start; VertexIndex
// is the zero-based index of the matched vertex.
type Calibration struct {
	Chainage    float64  `json:"chainage"`
	Point       GeoPoint `json:"point"`
	VertexIndex int      `json:"index"`
}

// LocatedPoint is the coordinate found at a given chainage along a line.
type LocatedPoint struct {
	Chainage float64  `json:"chainage"`
	Point    GeoPoint `json:"point"`
}

// Section is a sub-line extracted between two chainages. StartCh and
// EndCh are the effective chainages of the result, which may differ
// from the requested ones when the interval is clamped to the line.
type Section struct {
	StartCh  float64       `json:"start_ch"`
	EndCh    float64       `json:"end_ch"`
	Start    GeoPoint      `json:"start"`
	End      GeoPoint      `json:"end"`
	LengthKm float64       `json:"length"`
	Line     GeoLineString `json:"line"`
	Bounds   Bounds        `json:"bounds"`
}

// RoadStats summarizes the stored road network.
type RoadStats struct {
	RoadCount     int     `json:"road_count"`
	TotalLengthKm float64 `json:"total_length_km"`
}
