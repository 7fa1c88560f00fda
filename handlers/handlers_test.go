package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"poi-map/config"
	"poi-map/controller"
	"poi-map/markers"
	"poi-map/models"
	"poi-map/schema"
	"poi-map/services"
	"poi-map/storage"
	"poi-map/utils/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	*httptest.Server
	store *services.POIService
	page  *PageHandler
	logs  *observer.ObservedLogs
}

func newTestServer(t *testing.T, auth config.AuthConfig) *testServer {
	t.Helper()
	dir := t.TempDir()
	icon := filepath.Join(dir, "sea.svg")
	require.NoError(t, os.WriteFile(icon, []byte(`<svg><path fill="#000000"/></svg>`), 0o644))

	cfg := &config.Config{
		Title:      "Test map",
		Database:   filepath.Join(dir, "pois.jsonl"),
		Categories: map[string]string{"city": "", "sea": icon},
		LogLevel:   "INFO",
		Zoom:       6,
		Center:     []float64{56, 10},
		Port:       8050,
		Auth:       auth,
	}
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	table, err := storage.Open(context.Background(), cfg.Database, storage.Options{})
	require.NoError(t, err)

	store := services.NewPOIService(table, schema.NewValidator(cfg.CategoryNames()), logger)
	geo := services.NewGeoService(nil, logger)
	store.OnChange(geo.Sync)
	_, err = store.Load(context.Background())
	require.NoError(t, err)

	projector := markers.NewProjector(IconPrefix, []string{"sea"})
	page := NewPageHandler(cfg, logger)
	router := NewRouter(Deps{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Geo:        geo,
		Auth:       services.NewAuthService(cfg.Auth),
		Controller: controller.New(store, projector, logger),
		Projector:  projector,
		Page:       page,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return &testServer{Server: srv, store: store, page: page, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func newPOI(title string, lat, lon float64, date string, categories ...string) models.POI {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return models.POI{Latitude: lat, Longitude: lon, Category: categories, Date: d, Title: title, Description: title + " text"}
}

func TestCreateListDeletePOI(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})

	resp := s.do(t, http.MethodPost, "/api/pois", newPOI("Aarhus", 56.1572, 10.2107, "2020-01-01", "city", "sea"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.POI](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/pois/"+created.ID, resp.Header.Get("Location"))

	resp = s.do(t, http.MethodPost, "/api/pois", newPOI("Copenhagen", 55.6761, 12.5683, "2021-06-01", "city"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/pois", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[MarkersResponse](t, resp)
	assert.Equal(t, 2, all.Count)
	assert.Equal(t, "city, sea", all.Markers[0].Category)
	assert.Equal(t, "/icons/sea", all.Markers[0].Icon)

	resp = s.do(t, http.MethodGet, "/api/pois?categories=sea", nil)
	assert.Equal(t, 1, decode[MarkersResponse](t, resp).Count)

	resp = s.do(t, http.MethodGet, "/api/pois?categories=", nil)
	assert.Equal(t, 0, decode[MarkersResponse](t, resp).Count)

	resp = s.do(t, http.MethodGet, "/api/pois?from=2021-01-01", nil)
	filtered := decode[MarkersResponse](t, resp)
	require.Equal(t, 1, filtered.Count)
	assert.Equal(t, "Copenhagen", filtered.Markers[0].Title)

	resp = s.do(t, http.MethodGet, "/api/pois?from=2021-01-01&to=2020-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/pois/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Aarhus", decode[models.POI](t, resp).Title)

	resp = s.do(t, http.MethodGet, "/api/stats", nil)
	stats := decode[StatsResponse](t, resp)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, map[string]int{"city": 2, "sea": 1}, stats.CategoryCounts)

	resp = s.do(t, http.MethodDelete, "/api/pois/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.store.Len())

	resp = s.do(t, http.MethodDelete, "/api/pois/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "POI_NOT_FOUND", decode[errors.APIError](t, resp).Code)
}

func TestCreateInvalidPOI(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})

	resp := s.do(t, http.MethodPost, "/api/pois", newPOI("Lighthouse", 95, 10, "2020-01-01", "city"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	apiErr := decode[errors.APIError](t, resp)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	require.Len(t, apiErr.Violations, 1)
	assert.Contains(t, apiErr.Violations[0], "latitude")
	assert.Equal(t, 0, s.store.Len())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/pois", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	raw, err := s.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestCreatePOIAcceptsMixedCaseCategoriesAndKeepsText(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})
	poi := newPOI("Fish & Chips", 56.1572, 10.2107, "2020-01-01", "City", " SEA ")
	poi.Description = `5 < 6 & "quoted"`

	resp := s.do(t, http.MethodPost, "/api/pois", poi)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"city", "sea"}, decode[models.POI](t, resp).Category)

	resp = s.do(t, http.MethodGet, "/api/pois", nil)
	list := decode[MarkersResponse](t, resp)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Fish & Chips", list.Markers[0].Title)
	assert.Equal(t, `5 < 6 & "quoted"`, list.Markers[0].Description)
	assert.Equal(t, "5 &lt; 6 &amp; &#34;quoted&#34;", list.Markers[0].DescriptionHTML)

	created := s.logs.FilterMessage("POI created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "anonymous", created[0].ContextMap()["actor"])
}

func TestNearbyPOIs(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})
	s.do(t, http.MethodPost, "/api/pois", newPOI("Aarhus", 56.1572, 10.2107, "2020-01-01", "city"))
	s.do(t, http.MethodPost, "/api/pois", newPOI("Copenhagen", 55.6761, 12.5683, "2020-01-01", "city"))

	resp := s.do(t, http.MethodGet, "/api/pois/nearby?lat=56.15&lon=10.21&radius=5000", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nearby := decode[NearbyPOIResponse](t, resp)
	require.Equal(t, 1, nearby.Count)
	assert.Equal(t, "Aarhus", nearby.NearbyPOIs[0].Title)
	assert.Equal(t, 5000.0, nearby.Radius)

	resp = s.do(t, http.MethodGet, "/api/pois/nearby?lat=x&lon=10", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsDriveWorkflows(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})

	resp := s.do(t, http.MethodPost, "/api/events", controller.Event{Name: controller.EventAddOpen})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, "awaiting_map_click", view["add_state"])
	assert.Equal(t, false, view["add_enabled"])

	resp = s.do(t, http.MethodPost, "/api/events", controller.Event{Name: controller.EventRemoveOpen})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "WORKFLOW_BUSY", decode[errors.APIError](t, resp).Code)

	s.do(t, http.MethodPost, "/api/events", controller.Event{Name: controller.EventMapClick, Lat: 56, Lon: 10})
	resp = s.do(t, http.MethodPost, "/api/events", controller.Event{
		Name: controller.EventAddSubmit,
		Form: &controller.Form{Latitude: 56, Longitude: 10, Category: []string{"sea"}, Date: "2022-02-02", Title: "Bay"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[map[string]any](t, resp)
	assert.Equal(t, "idle", view["add_state"])
	assert.Equal(t, true, view["rerender"])
	assert.Len(t, view["markers"], 1)
	assert.Equal(t, 1, s.store.Len())

	resp = s.do(t, http.MethodPost, "/api/events", map[string]string{"event": "nonsense"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[map[string]any](t, resp)["markers"], 1)
}

func TestAuthProtectsMutatingRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newTestServer(t, config.AuthConfig{PasswordHash: string(hash), JWTSecret: "secret"})
	poi := newPOI("Aarhus", 56, 10, "2020-01-01", "city")

	resp := s.do(t, http.MethodPost, "/api/pois", poi)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = s.do(t, http.MethodPost, "/api/events", controller.Event{Name: controller.EventAddOpen})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/auth/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/auth/login", map[string]string{"password": "hunter2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decode[map[string]string](t, resp)["token"]
	require.NotEmpty(t, token)

	resp = s.do(t, http.MethodPost, "/api/pois", poi, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	created := s.logs.FilterMessage("POI created").All()
	require.Len(t, created, 1)
	assert.Equal(t, services.OwnerSubject, created[0].ContextMap()["actor"])

	// reads stay public
	resp = s.do(t, http.MethodGet, "/api/pois", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWithoutAuthConfigured(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})
	resp := s.do(t, http.MethodPost, "/auth/login", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "AUTH_DISABLED", decode[errors.APIError](t, resp).Code)
}

func TestPageAndAssets(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})

	resp := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<title>Test map</title>")

	resp = s.do(t, http.MethodGet, "/static/app.js", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "enableHighAccuracy: true", "map offers the locate control")
	assert.NotContains(t, string(body), "${m.description}", "popups never interpolate record text as HTML")

	resp = s.do(t, http.MethodGet, "/icons/sea", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fill="#FFFFFF"`)
	assert.NotContains(t, string(body), `fill="#000000"`)

	resp = s.do(t, http.MethodGet, "/icons/city", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/config", nil)
	cfg := decode[ConfigResponse](t, resp)
	assert.Equal(t, "Test map", cfg.Title)
	assert.Equal(t, []CategoryInfo{{Name: "city"}, {Name: "sea", Icon: "/icons/sea"}}, cfg.Categories)
}

func TestProbes(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/live", nil).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, http.MethodGet, "/ready", nil).StatusCode)
	s.page.SetReady(true)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", nil).StatusCode)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", nil).StatusCode)
}
