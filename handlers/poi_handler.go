package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"poi-map/config"
	"poi-map/filter"
	"poi-map/markers"
	"poi-map/middleware"
	"poi-map/models"
	"poi-map/services"
	"poi-map/utils/errors"
)

// DefaultNearbyRadius is used when a nearby query has no positive radius.
const DefaultNearbyRadius = 1000 // meters

type POIHandler struct {
	store     *services.POIService
	geo       *services.GeoService
	projector *markers.Projector
	cfg       *config.Config
	logger    *zap.Logger
}

type CategoryInfo struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type ConfigResponse struct {
	Title       string         `json:"title"`
	Zoom        int            `json:"zoom"`
	Center      []float64      `json:"center"`
	Categories  []CategoryInfo `json:"categories"`
	AuthEnabled bool           `json:"auth_enabled"`
}

type MarkersResponse struct {
	Markers []models.Marker `json:"markers"`
	Count   int             `json:"count"`
}

type NearbyPOIResponse struct {
	NearbyPOIs []models.NearbyPOI `json:"nearby_pois"`
	Count      int                `json:"count"`
	Lat        float64            `json:"lat"`
	Lon        float64            `json:"lon"`
	Radius     float64            `json:"radius"`
}

type StatsResponse struct {
	Count          int            `json:"count"`
	CategoryCounts map[string]int `json:"category_counts"`
}

func NewPOIHandler(store *services.POIService, geo *services.GeoService, projector *markers.Projector, cfg *config.Config, logger *zap.Logger) *POIHandler {
	return &POIHandler{store: store, geo: geo, projector: projector, cfg: cfg, logger: logger}
}

func (h *POIHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Title:       h.cfg.Title,
		Zoom:        h.cfg.Zoom,
		Center:      h.cfg.Center,
		Categories:  []CategoryInfo{},
		AuthEnabled: h.cfg.Auth.Enabled(),
	}
	for _, name := range h.cfg.CategoryNames() {
		info := CategoryInfo{Name: name}
		if h.cfg.Categories[name] != "" {
			info.Icon = iconURL(name)
		}
		response.Categories = append(response.Categories, info)
	}
	writeJSON(w, http.StatusOK, response)
}

// ListPOIs returns the marker layer. An absent categories parameter applies
// no category filter; a present but empty one selects nothing.
func (h *POIHandler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	list := h.projector.Project(filter.Filter(h.store.All(), criteria))
	writeJSON(w, http.StatusOK, MarkersResponse{Markers: list, Count: len(list)})
}

func (h *POIHandler) GetPOI(w http.ResponseWriter, r *http.Request) {
	poi, err := h.store.Get(mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, poi)
}

func (h *POIHandler) CreatePOI(w http.ResponseWriter, r *http.Request) {
	var input models.POI
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, h.logger, errors.NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest, err.Error()))
		return
	}
	id, err := h.store.Add(r.Context(), input)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	poi, err := h.store.Get(id)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("POI created", zap.String("id", id), zap.String("actor", actor(r)))
	w.Header().Set("Location", "/api/pois/"+id)
	writeJSON(w, http.StatusCreated, poi)
}

func (h *POIHandler) DeletePOI(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.Remove(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	h.logger.Info("POI deleted", zap.String("id", removed.ID), zap.String("actor", actor(r)))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Removed POI '%s'", removed.Title),
		"removed": removed,
	})
}

func (h *POIHandler) GetNearbyPOIs(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		middleware.WriteError(w, h.logger, errors.ErrInvalidInput)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		middleware.WriteError(w, h.logger, errors.ErrInvalidInput)
		return
	}
	radius := float64(DefaultNearbyRadius)
	if raw := r.URL.Query().Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			middleware.WriteError(w, h.logger, errors.ErrInvalidInput)
			return
		}
	}
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}
	category := strings.ToLower(r.URL.Query().Get("category"))

	pois, err := h.geo.FindNearbyPOIs(r.Context(), lat, lon, radius, category)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, NearbyPOIResponse{
		NearbyPOIs: pois,
		Count:      len(pois),
		Lat:        lat,
		Lon:        lon,
		Radius:     radius,
	})
}

func (h *POIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Count:          h.store.Len(),
		CategoryCounts: h.store.CategoryCounts(),
	})
}

func criteriaFromQuery(q url.Values) (filter.Criteria, error) {
	var c filter.Criteria
	if _, ok := q["categories"]; ok {
		c.Categories = []string{}
		for _, name := range strings.Split(q.Get("categories"), ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				c.Categories = append(c.Categories, name)
			}
		}
	}
	r, err := filter.ParseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		return c, errors.NewAPIError("INVALID_INPUT", "Invalid date range", http.StatusBadRequest, err.Error())
	}
	c.Range = r
	return c, nil
}

func iconURL(category string) string {
	return IconPrefix + url.PathEscape(category)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// actor names the caller of a mutating route in the audit log.
func actor(r *http.Request) string {
	if subject, ok := middleware.Subject(r.Context()); ok {
		return subject
	}
	return "anonymous"
}
