package handlers

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"poi-map/config"
	"poi-map/controller"
	"poi-map/markers"
	"poi-map/metrics"
	"poi-map/middleware"
	"poi-map/services"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      *services.POIService
	Geo        *services.GeoService
	Auth       *services.AuthService
	Controller *controller.Controller
	Projector  *markers.Projector
	Page       *PageHandler
}

// NewRouter wires every route of the server.
func NewRouter(d Deps) *mux.Router {
	poiHandler := NewPOIHandler(d.Store, d.Geo, d.Projector, d.Config, d.Logger)
	eventHandler := NewEventHandler(d.Controller, d.Logger)
	authHandler := NewAuthHandler(d.Auth, d.Logger)
	requireToken := middleware.JWTMiddleware(d.Auth, d.Logger)

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware(d.Logger))
	r.Use(middleware.AccessMiddleware(d.Logger))
	r.Use(middleware.CORSMiddleware(d.Config.CORS.AllowedOrigins))

	// Page, assets, probes
	r.HandleFunc("/", d.Page.Index).Methods("GET")
	r.PathPrefix("/static/").Handler(d.Page.Static()).Methods("GET")
	r.HandleFunc(IconPrefix+"{category}", d.Page.Icon).Methods("GET")
	r.HandleFunc("/live", d.Page.Live).Methods("GET")
	r.HandleFunc("/ready", d.Page.Ready).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Auth routes
	r.HandleFunc("/auth/login", authHandler.LoginUser).Methods("POST", "OPTIONS")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", poiHandler.GetConfig).Methods("GET", "OPTIONS")
	api.HandleFunc("/stats", poiHandler.GetStats).Methods("GET", "OPTIONS")
	api.HandleFunc("/session", eventHandler.GetSession).Methods("GET", "OPTIONS")
	api.HandleFunc("/pois", poiHandler.ListPOIs).Methods("GET", "OPTIONS")
	api.HandleFunc("/pois/nearby", poiHandler.GetNearbyPOIs).Methods("GET", "OPTIONS")
	api.HandleFunc("/pois/{id}", poiHandler.GetPOI).Methods("GET", "OPTIONS")

	// Mutating routes
	protected := api.NewRoute().Subrouter()
	protected.Use(requireToken)
	protected.HandleFunc("/pois", poiHandler.CreatePOI).Methods("POST", "OPTIONS")
	protected.HandleFunc("/pois/{id}", poiHandler.DeletePOI).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/events", eventHandler.PostEvent).Methods("POST", "OPTIONS")

	return r
}
