package http_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/kilopost/internal/adapters/http"
	"github.com/samirrijal/kilopost/internal/core/domain"
	"github.com/samirrijal/kilopost/internal/core/usecases"
)

// testWKT is a straight 4-vertex line along the equator. Its planar
// length is 0.006 degrees, i.e. 0.66792 km of chainage.
const testWKT = "LINESTRING (0 0, 0.001 0, 0.003 0, 0.006 0)"

// ---- Mock repository ----

type mockRoadRepo struct {
	upsertFn      func(ctx context.Context, road *domain.Road) error
	upsertBatchFn func(ctx context.Context, roads []domain.Road) error
	getByRefFn    func(ctx context.Context, ref string) (*domain.Road, error)
	listFn        func(ctx context.Context, limit, offset int) ([]domain.Road, error)
	countFn       func(ctx context.Context) (int, error)
	statsFn       func(ctx context.Context) (*domain.RoadStats, error)
}

func (m *mockRoadRepo) Upsert(ctx context.Context, road *domain.Road) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, road)
	}
	return nil
}
func (m *mockRoadRepo) UpsertBatch(ctx context.Context, roads []domain.Road) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, roads)
	}
	return nil
}
func (m *mockRoadRepo) GetByRef(ctx context.Context, ref string) (*domain.Road, error) {
	if m.getByRefFn != nil {
		return m.getByRefFn(ctx, ref)
	}
	return nil, nil
}
func (m *mockRoadRepo) List(ctx context.Context, limit, offset int) ([]domain.Road, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}
func (m *mockRoadRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}
func (m *mockRoadRepo) Stats(ctx context.Context) (*domain.RoadStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &domain.RoadStats{}, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(repo *mockRoadRepo) *handler.Dependencies {
	return &handler.Dependencies{
		Chainage: usecases.NewChainageService(repo, nil),
		Roads:    usecases.NewRoadService(repo, nil),
	}
}

func readBody(t *testing.T, body io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// ---- Calibrate handler tests ----

func TestCalibrate_Success(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","point":"POINT (0.0011 0.0002)","radius":0.001}`
	req := httptest.NewRequest("POST", "/v1/calibrate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	raw := readBody(t, resp.Body)

	// Vertex 1 sits 0.001 degrees from the start: 0.11132 km.
	if !strings.Contains(raw, `"chainage":0.111320`) {
		t.Errorf("expected 6-decimal chainage 0.111320, got %s", raw)
	}
	if !strings.Contains(raw, `"lon":0.00100000`) {
		t.Errorf("expected 8-decimal lon 0.00100000, got %s", raw)
	}

	var result struct {
		Chainage float64 `json:"chainage"`
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
		Index    int     `json:"index"`
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatal(err)
	}
	if result.Index != 1 {
		t.Errorf("expected vertex index 1, got %d", result.Index)
	}
	if result.Lat != 0 {
		t.Errorf("expected snapped lat 0, got %v", result.Lat)
	}
}

func TestCalibrate_MissingFields(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	req := httptest.NewRequest("POST", "/v1/calibrate", strings.NewReader(`{"line":"`+testWKT+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", apiErr.Code)
	}
}

func TestCalibrate_BadGeometry(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"POLYGON ((0 0, 1 0, 1 1, 0 0))","point":"POINT (0 0)","radius":0.001}`
	req := httptest.NewRequest("POST", "/v1/calibrate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCalibrate_NoVertexInRadius(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","point":"POINT (1 1)","radius":0.0001}`
	req := httptest.NewRequest("POST", "/v1/calibrate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "no_match" {
		t.Errorf("expected no_match error, got %s", apiErr.Code)
	}
}

// ---- Locate handler tests ----

func TestLocate_Success(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","chainage":0.11132}`
	req := httptest.NewRequest("POST", "/v1/locate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	raw := readBody(t, resp.Body)
	if !strings.Contains(raw, `"lon":0.00100000`) {
		t.Errorf("expected lon 0.00100000, got %s", raw)
	}
	if !strings.Contains(raw, `"geometry":"POINT`) {
		t.Errorf("expected WKT point geometry, got %s", raw)
	}
}

func TestLocate_OutOfRange(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","chainage":1.0}`
	req := httptest.NewRequest("POST", "/v1/locate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "out_of_range" {
		t.Errorf("expected out_of_range error, got %s", apiErr.Code)
	}
}

// ---- Section handler tests ----

func TestSection_Success(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","start_ch":0.1,"end_ch":0.3}`
	req := httptest.NewRequest("POST", "/v1/sections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		StartCh  float64 `json:"start_ch"`
		EndCh    float64 `json:"end_ch"`
		Length   float64 `json:"length"`
		Geometry string  `json:"geometry"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.StartCh != 0.1 {
		t.Errorf("expected start_ch 0.1, got %v", result.StartCh)
	}
	if math.Abs(result.Length-0.2) > 1e-6 {
		t.Errorf("expected length 0.2, got %v", result.Length)
	}
	if !strings.HasPrefix(result.Geometry, "LINESTRING") {
		t.Errorf("expected WKT linestring, got %s", result.Geometry)
	}
}

func TestSection_EndClampedToLine(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","start_ch":0.5,"end_ch":5.0}`
	req := httptest.NewRequest("POST", "/v1/sections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		EndCh float64 `json:"end_ch"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if math.Abs(result.EndCh-0.66792) > 1e-6 {
		t.Errorf("expected end_ch clamped to 0.66792, got %v", result.EndCh)
	}
}

func TestSection_WKBFormat(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","start_ch":0.1,"end_ch":0.3,"format":"wkb"}`
	req := httptest.NewRequest("POST", "/v1/sections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Geometry string `json:"geometry"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	b, err := base64.StdEncoding.DecodeString(result.Geometry)
	if err != nil {
		t.Fatalf("geometry is not base64: %v", err)
	}
	if len(b) == 0 || b[0] != 1 {
		t.Errorf("expected little-endian WKB, got % x", b)
	}
}

func TestSection_BadFormat(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","start_ch":0.1,"end_ch":0.3,"format":"geojson"}`
	req := httptest.NewRequest("POST", "/v1/sections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSection_InvalidInterval(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	body := `{"line":"` + testWKT + `","start_ch":0.3,"end_ch":0.1}`
	req := httptest.NewRequest("POST", "/v1/sections", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Road catalogue handler tests ----

func TestListRoads_Success(t *testing.T) {
	repo := &mockRoadRepo{
		listFn: func(ctx context.Context, limit, offset int) ([]domain.Road, error) {
			return []domain.Road{
				{ID: "r1", Ref: "N-634", Name: "Carretera Nacional 634", LengthKm: 120.5},
				{ID: "r2", Ref: "BI-625", Name: "Bilbao-Orduña", LengthKm: 38.2},
			}, nil
		},
		countFn: func(ctx context.Context) (int, error) { return 5, nil },
	}
	app := setupApp(makeDeps(repo))

	req := httptest.NewRequest("GET", "/v1/roads?offset=0&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Road `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 roads, got %d", len(result.Data))
	}

	link := resp.Header.Get("Link")
	if !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %s", link)
	}
	if !strings.Contains(link, `rel="first"`) {
		t.Errorf("expected first link, got %s", link)
	}
}

func TestNetworkStats_Success(t *testing.T) {
	repo := &mockRoadRepo{
		statsFn: func(ctx context.Context) (*domain.RoadStats, error) {
			return &domain.RoadStats{RoadCount: 3, TotalLengthKm: 212.7}, nil
		},
	}
	app := setupApp(makeDeps(repo))

	req := httptest.NewRequest("GET", "/v1/roads/stats", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var stats domain.RoadStats
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats.RoadCount != 3 {
		t.Errorf("expected 3 roads, got %d", stats.RoadCount)
	}

	cc := resp.Header.Get("Cache-Control")
	if cc != "public, max-age=60" {
		t.Errorf("expected stats Cache-Control, got %q", cc)
	}
}

func TestGetRoad_Success(t *testing.T) {
	repo := &mockRoadRepo{
		getByRefFn: func(ctx context.Context, ref string) (*domain.Road, error) {
			return &domain.Road{ID: "r1", Ref: ref, Name: "Carretera Nacional 634", WKT: testWKT}, nil
		},
	}
	app := setupApp(makeDeps(repo))

	req := httptest.NewRequest("GET", "/v1/roads/N-634", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var road domain.Road
	json.NewDecoder(resp.Body).Decode(&road)
	if road.Ref != "N-634" {
		t.Errorf("expected ref N-634, got %s", road.Ref)
	}
	if road.WKT == "" {
		t.Error("expected centerline WKT in response")
	}
}

func TestGetRoad_NotFound(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	req := httptest.NewRequest("GET", "/v1/roads/NOPE", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Stored-road chainage handler tests ----

func storedRoadRepo() *mockRoadRepo {
	return &mockRoadRepo{
		getByRefFn: func(ctx context.Context, ref string) (*domain.Road, error) {
			if ref != "N-634" {
				return nil, nil
			}
			return &domain.Road{ID: "r1", Ref: ref, WKT: testWKT, LengthKm: 0.66792}, nil
		},
	}
}

func TestRoadCalibrate_Success(t *testing.T) {
	app := setupApp(makeDeps(storedRoadRepo()))

	req := httptest.NewRequest("GET", "/v1/roads/N-634/calibrate?lat=0.0002&lon=0.0011&radius=0.001", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}

	var result struct {
		Chainage float64 `json:"chainage"`
		Index    int     `json:"index"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Index != 1 {
		t.Errorf("expected vertex index 1, got %d", result.Index)
	}
	if math.Abs(result.Chainage-0.11132) > 1e-6 {
		t.Errorf("expected chainage 0.11132, got %v", result.Chainage)
	}
}

func TestRoadCalibrate_MissingParams(t *testing.T) {
	app := setupApp(makeDeps(storedRoadRepo()))

	req := httptest.NewRequest("GET", "/v1/roads/N-634/calibrate?lat=0.0002", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRoadCalibrate_RoadMissing(t *testing.T) {
	app := setupApp(makeDeps(storedRoadRepo()))

	req := httptest.NewRequest("GET", "/v1/roads/A-8/calibrate?lat=0&lon=0", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "not_found" {
		t.Errorf("expected not_found error, got %s", apiErr.Code)
	}
}

func TestRoadPoint_Success(t *testing.T) {
	app := setupApp(makeDeps(storedRoadRepo()))

	req := httptest.NewRequest("GET", "/v1/roads/N-634/point?chainage=0.11132", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	raw := readBody(t, resp.Body)
	if !strings.Contains(raw, `"lon":0.00100000`) {
		t.Errorf("expected lon 0.00100000, got %s", raw)
	}
}

func TestRoadPoint_MissingChainage(t *testing.T) {
	app := setupApp(makeDeps(storedRoadRepo()))

	req := httptest.NewRequest("GET", "/v1/roads/N-634/point", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRoadSection_Success(t *testing.T) {
	app := setupApp(makeDeps(storedRoadRepo()))

	req := httptest.NewRequest("GET", "/v1/roads/N-634/section?start_ch=0.1&end_ch=0.3", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Length   float64 `json:"length"`
		Geometry string  `json:"geometry"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if math.Abs(result.Length-0.2) > 1e-6 {
		t.Errorf("expected length 0.2, got %v", result.Length)
	}
	if !strings.HasPrefix(result.Geometry, "LINESTRING") {
		t.Errorf("expected WKT geometry, got %s", result.Geometry)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	// DB, NATS, Cache are nil → should report not ready
	app := setupApp(makeDeps(&mockRoadRepo{}))

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	// With nil DB, ready should return 503
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

// ---- Cache-Control defaults ----

func TestListRoads_CacheControlHeader(t *testing.T) {
	app := setupApp(makeDeps(&mockRoadRepo{}))

	req := httptest.NewRequest("GET", "/v1/roads", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cc := resp.Header.Get("Cache-Control")
	if cc != "public, max-age=600" {
		t.Errorf("expected road catalogue Cache-Control, got %q", cc)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()

	// Register middleware
	app.Use(handler.AccessLogMiddleware())

	// Simple test route
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	// Make request
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	// Verify response body
	body := readBody(t, resp.Body)
	if !strings.Contains(body, "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", body)
	}
}
