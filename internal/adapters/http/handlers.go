package http

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samirrijal/kilopost/internal/core/domain"
	"github.com/samirrijal/kilopost/internal/pkg/geomcodec"
	"github.com/samirrijal/kilopost/internal/pkg/metrics"
)

// calibrateRequest is the body of POST /v1/calibrate. Radius is in
// coordinate-space degrees, not metres.
type calibrateRequest struct {
	Line   string  `json:"line"`
	Point  string  `json:"point"`
	Radius float64 `json:"radius"`
}

// CalibrateHandler snaps a WKT point onto a WKT line.
func CalibrateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req calibrateRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Line == "" || req.Point == "" {
			return errBadRequest(c, "line and point are required")
		}

		ref, err := geomcodec.DecodePoint(req.Point)
		if err != nil {
			return errDomain(c, err)
		}

		cal, err := deps.Chainage.Calibrate(c.Context(), req.Line, ref, req.Radius)
		metrics.Calibrations.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(newCalibrationResponse(cal))
	}
}

// locateRequest is the body of POST /v1/locate.
type locateRequest struct {
	Line     string  `json:"line"`
	Chainage float64 `json:"chainage"`
}

// LocateHandler returns the coordinate at a chainage along a WKT line.
func LocateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locateRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Line == "" {
			return errBadRequest(c, "line is required")
		}

		loc, err := deps.Chainage.Locate(c.Context(), req.Line, req.Chainage)
		metrics.PointsLocated.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(locatedResponse(loc))
	}
}

// sectionRequest is the body of POST /v1/sections.
type sectionRequest struct {
	Line    string  `json:"line"`
	StartCh float64 `json:"start_ch"`
	EndCh   float64 `json:"end_ch"`
	Format  string  `json:"format"` // "wkt" (default) | "wkb"
}

// SectionHandler extracts the sub-line between two chainages of a WKT line.
func SectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sectionRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Line == "" {
			return errBadRequest(c, "line is required")
		}

		sec, err := deps.Chainage.Extract(c.Context(), req.Line, req.StartCh, req.EndCh)
		metrics.SectionsExtracted.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			return errDomain(c, err)
		}
		return sendSection(c, sec, req.Format)
	}
}

// ListRoadsHandler returns a page of stored roads.
func ListRoadsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)

		roads, total, err := deps.Roads.List(c.Context(), limit, offset)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: roads, Pagination: pg})
	}
}

// NetworkStatsHandler summarizes the stored road network.
func NetworkStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Roads.Stats(c.Context())
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// GetRoadHandler returns a single road, centerline included.
func GetRoadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref := c.Params("ref")
		if ref == "" {
			return errBadRequest(c, "road ref is required")
		}
		road, err := deps.Roads.GetByRef(c.Context(), ref)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if road == nil {
			return errNotFound(c, "road not found")
		}
		return c.JSON(road)
	}
}

// RoadCalibrateHandler snaps a point onto a stored road's centerline.
// GET /v1/roads/:ref/calibrate?lat=43.26&lon=-2.92&radius=0.001
func RoadCalibrateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref := c.Params("ref")
		if c.Query("lat") == "" || c.Query("lon") == "" {
			return errBadRequest(c, "lat and lon are required")
		}
		point := domain.GeoPoint{
			Lat: c.QueryFloat("lat", 0),
			Lon: c.QueryFloat("lon", 0),
		}
		radius := c.QueryFloat("radius", 0.001)

		cal, err := deps.Chainage.CalibrateOnRoad(c.Context(), ref, point, radius)
		metrics.Calibrations.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(newCalibrationResponse(cal))
	}
}

// RoadPointHandler returns the coordinate at a chainage of a stored road.
// GET /v1/roads/:ref/point?chainage=12.5
func RoadPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref := c.Params("ref")
		if c.Query("chainage") == "" {
			return errBadRequest(c, "chainage is required")
		}
		chainage := c.QueryFloat("chainage", 0)

		loc, err := deps.Chainage.LocateOnRoad(c.Context(), ref, chainage)
		metrics.PointsLocated.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			return errDomain(c, err)
		}
		return c.JSON(locatedResponse(loc))
	}
}

// RoadSectionHandler extracts a section of a stored road.
// GET /v1/roads/:ref/section?start_ch=2.5&end_ch=7.25&format=wkb
func RoadSectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref := c.Params("ref")
		if c.Query("start_ch") == "" || c.Query("end_ch") == "" {
			return errBadRequest(c, "start_ch and end_ch are required")
		}
		startCh := c.QueryFloat("start_ch", 0)
		endCh := c.QueryFloat("end_ch", 0)

		sec, err := deps.Chainage.ExtractOnRoad(c.Context(), ref, startCh, endCh)
		metrics.SectionsExtracted.WithLabelValues(outcomeLabel(err)).Inc()
		if err != nil {
			return errDomain(c, err)
		}
		return sendSection(c, sec, c.Query("format"))
	}
}

// locatedResponse formats a located point, attaching its WKT geometry.
func locatedResponse(loc *domain.LocatedPoint) locateResponse {
	wkt, _ := geomcodec.EncodePointWKT(loc.Point)
	return locateResponse{
		Chainage: Km(loc.Chainage),
		Lat:      Deg(loc.Point.Lat),
		Lon:      Deg(loc.Point.Lon),
		Geometry: wkt,
	}
}

// sendSection serializes a section in the requested geometry format.
func sendSection(c *fiber.Ctx, sec *domain.Section, format string) error {
	var geometry string
	switch format {
	case "", "wkt":
		s, err := geomcodec.EncodeLineWKT(sec.Line.Coordinates)
		if err != nil {
			return errInternal(c, err.Error())
		}
		geometry = s
	case "wkb":
		b, err := geomcodec.EncodeLineWKB(sec.Line.Coordinates)
		if err != nil {
			return errInternal(c, err.Error())
		}
		geometry = base64.StdEncoding.EncodeToString(b)
	default:
		return errBadRequest(c, "format must be wkt or wkb")
	}
	return c.JSON(newSectionResponse(sec, geometry))
}

// outcomeLabel buckets an operation result for metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoVertexInRadius):
		return "no_match"
	case errors.Is(err, domain.ErrChainageOutOfRange),
		errors.Is(err, domain.ErrSectionOutOfRange):
		return "out_of_range"
	case errors.Is(err, domain.ErrRoadNotFound):
		return "road_missing"
	default:
		return "invalid"
	}
}
