package domain

import "errors"

// Input errors. These indicate the caller supplied something malformed
// and map to a 400 at the HTTP boundary.
var (
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrDegenerateLine  = errors.New("line has fewer than two vertices")
	ErrInvalidRadius   = errors.New("radius must be positive")
	ErrInvalidInterval = errors.New("invalid chainage interval")
)

// Lookup errors. The input was well formed but nothing qualified;
// these map to a 404 at the HTTP boundary.
var (
	ErrRoadNotFound       = errors.New("road not found")
	ErrNoVertexInRadius   = errors.New("no vertex within search radius")
	ErrChainageOutOfRange = errors.New("chainage outside line extent")
	ErrSectionOutOfRange  = errors.New("section interval outside line extent")
)
