package linearref

// metersPerDegree is the fixed planar scale applied to coordinate-space
// distances. One coordinate degree is treated as 111320 metres at every
// latitude; there is no geodesic correction.
const metersPerDegree = 111320.0

// Converter translates between coordinate-space distances and chainage
// kilometres. All unit conversion goes through this type so that a
// latitude-aware scale can replace the constant without touching the
// calibration or extraction walks.
type Converter struct {
	scale float64 // metres per coordinate unit
}

// NewConverter returns a Converter using the fixed degree scale.
func NewConverter() Converter {
	return Converter{scale: metersPerDegree}
}

// ToChainageKm converts a planar coordinate-space distance to kilometres.
func (c Converter) ToChainageKm(d float64) float64 {
	return d * c.scale / 1000
}

// ToPlanar converts a chainage in kilometres to a coordinate-space distance.
func (c Converter) ToPlanar(km float64) float64 {
	return km * 1000 / c.scale
}
