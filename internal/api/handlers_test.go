package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PabloReca/busca-pisos/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Listings(ctx context.Context, category models.Category) ([]models.Listing, error) {
	args := m.Called(ctx, category)
	listings, _ := args.Get(0).([]models.Listing)
	return listings, args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RunNow(ctx context.Context) models.RefreshSummary {
	return m.Called(ctx).Get(0).(models.RefreshSummary)
}

func (m *MockRefresher) RunAsync() bool {
	return m.Called().Bool(0)
}

type MockBot struct {
	mock.Mock
}

func (m *MockBot) TestBot(ctx context.Context) models.BotStatus {
	return m.Called(ctx).Get(0).(models.BotStatus)
}

var vigo = orb.Point{-8.7124252, 42.2313601}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func sampleListings() []models.Listing {
	return []models.Listing{
		{
			WebSlug: "piso-caro", PropertyType: models.CategoryApartment,
			Title: strPtr("Piso caro"), Price: floatPtr(690), Rooms: intPtr(3),
			Latitude: floatPtr(42.2406), Longitude: floatPtr(-8.7207),
		},
		{
			WebSlug: "piso-barato", PropertyType: models.CategoryApartment,
			Title: strPtr("Piso barato"), Price: floatPtr(450), Rooms: intPtr(2),
		},
		{
			WebSlug: "casa", PropertyType: models.CategoryHouse,
			Title: strPtr("Casa"), Price: floatPtr(800), Rooms: intPtr(4), Bathrooms: intPtr(2),
			Latitude: floatPtr(42.4310), Longitude: floatPtr(-8.6446),
		},
	}
}

type testEnv struct {
	router    *gin.Engine
	store     *MockStore
	refresher *MockRefresher
	bot       *MockBot
}

func setupTestRouter(t *testing.T, staticDir string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	env := &testEnv{store: &MockStore{}, refresher: &MockRefresher{}, bot: &MockBot{}}
	handler := NewHandler(env.store, env.refresher, env.bot, vigo, logger)
	env.router = NewRouter(handler, staticDir)
	return env
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Ping", mock.Anything).Return(nil).Once()

	rec := env.do(http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHealthDatabaseDown(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Ping", mock.Anything).Return(errors.New("sql: database is closed")).Once()

	rec := env.do(http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error: sql: database is closed", decode(t, rec)["database"])
}

func TestTelegramHealth(t *testing.T) {
	env := setupTestRouter(t, "")
	env.bot.On("TestBot", mock.Anything).Return(models.BotStatus{OK: true, BotUsername: "pisos_bot", ChatID: "42"})

	rec := env.do(http.MethodGet, "/health/telegram")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "pisos_bot", body["bot_username"])
}

func TestGetListings(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantTotal float64
		wantSlugs []string
	}{
		{name: "Default sorts by price", query: "", wantTotal: 3, wantSlugs: []string{"piso-barato", "piso-caro", "casa"}},
		{name: "Property type", query: "?property_type=house", wantTotal: 1, wantSlugs: []string{"casa"}},
		{name: "Price range", query: "?min_price=400&max_price=700&sort_order=desc", wantTotal: 2, wantSlugs: []string{"piso-caro", "piso-barato"}},
		{name: "Min bathrooms", query: "?min_bathrooms=1", wantTotal: 1, wantSlugs: []string{"casa"}},
		{name: "Max distance", query: "?max_distance=5", wantTotal: 1, wantSlugs: []string{"piso-caro"}},
		{name: "Distance sort", query: "?sort_by=distance", wantTotal: 3, wantSlugs: []string{"piso-caro", "casa", "piso-barato"}},
		{name: "Pagination", query: "?page=2&page_size=2", wantTotal: 3, wantSlugs: []string{"casa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(t, "")
			env.store.On("Listings", mock.Anything, models.Category("")).Return(sampleListings(), nil)

			rec := env.do(http.MethodGet, "/api/listings"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, tt.wantTotal, body["total"])

			items := body["listings"].([]interface{})
			slugs := make([]string, len(items))
			for i, item := range items {
				slugs[i] = item.(map[string]interface{})["web_slug"].(string)
			}
			assert.Equal(t, tt.wantSlugs, slugs)
		})
	}
}

func TestGetListingsResponseShape(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Listings", mock.Anything, models.Category("")).Return(sampleListings(), nil)

	rec := env.do(http.MethodGet, "/api/listings?property_type=apartment&sort_by=price&sort_order=desc&page_size=1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(1), body["page_size"])
	assert.Equal(t, float64(2), body["pages"])

	first := body["listings"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "piso-caro", first["web_slug"])
	assert.Contains(t, first, "location")
	assert.Equal(t, float64(3), first["type_attributes"].(map[string]interface{})["rooms"])
	assert.Equal(t, 1.2, first["distance_km"])
}

func TestGetListingsInvalidQuery(t *testing.T) {
	tests := []string{
		"?page=0",
		"?page_size=101",
		"?min_price=cheap",
	}

	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			env := setupTestRouter(t, "")
			rec := env.do(http.MethodGet, "/api/listings"+query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env.store.AssertNotCalled(t, "Listings", mock.Anything, mock.Anything)
		})
	}
}

func TestGetListingsStoreError(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Listings", mock.Anything, models.Category("")).Return(nil, errors.New("boom"))

	rec := env.do(http.MethodGet, "/api/listings")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load listings", decode(t, rec)["error"])
}

func TestGetListingsGeoJSON(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Listings", mock.Anything, models.Category("")).Return(sampleListings(), nil)

	rec := env.do(http.MethodGet, "/api/listings/geojson?property_type=apartment")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 1, "listings without coordinates are left out")
}

func TestGetStats(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Listings", mock.Anything, models.Category("")).Return(sampleListings(), nil)

	rec := env.do(http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["apartments"])
	assert.Equal(t, float64(1), body["houses"])
	assert.Equal(t, map[string]interface{}{"min": float64(450), "max": float64(800)}, body["price"])
	assert.Equal(t, map[string]interface{}{"min": float64(2), "max": float64(2)}, body["bathrooms"])
}

func TestRefresh(t *testing.T) {
	env := setupTestRouter(t, "")
	env.refresher.On("RunNow", mock.Anything).Return(models.RefreshSummary{
		RunID:   "abc",
		Success: true,
		Results: []models.CategoryResult{{PropertyType: models.CategoryApartment, New: 2}},
	})

	rec := env.do(http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "abc", body["run_id"])
	assert.Equal(t, true, body["success"])
	result := body["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "apartment", result["property_type"])
	assert.Equal(t, float64(2), result["new"])
}

func TestRefreshAsync(t *testing.T) {
	env := setupTestRouter(t, "")
	env.refresher.On("RunAsync").Return(true).Once()

	rec := env.do(http.MethodPost, "/api/refresh/async")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Refresh started in background", decode(t, rec)["message"])

	env.refresher.On("RunAsync").Return(false).Once()
	rec = env.do(http.MethodPost, "/api/refresh/async")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStaticFilesAndCORS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>BuscaPisos</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	env := setupTestRouter(t, dir)

	rec := env.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BuscaPisos")

	rec = env.do(http.MethodGet, "/static/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/static/app.js", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNoStaticRoutesWithoutStaticDir(t *testing.T) {
	env := setupTestRouter(t, "")
	env.store.On("Ping", mock.Anything).Return(nil).Once()

	rec := env.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/static/app.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}
