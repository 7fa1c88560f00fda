package handlers

import (
	"bytes"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"poi-map/config"
	"poi-map/middleware"
	"poi-map/utils/errors"
	"poi-map/web"
)

// IconPrefix is the route under which category icons are served.
const IconPrefix = "/icons/"

// PageHandler serves the map page, its assets and the category icons.
type PageHandler struct {
	cfg    *config.Config
	logger *zap.Logger
	ready  atomic.Bool
}

func NewPageHandler(cfg *config.Config, logger *zap.Logger) *PageHandler {
	return &PageHandler{cfg: cfg, logger: logger}
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	data := web.PageData{Title: h.cfg.Title, AuthEnabled: h.cfg.Auth.Enabled()}
	if err := web.Index.Execute(&buf, data); err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// Static serves the embedded assets under /static/.
func (h *PageHandler) Static() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.FS(web.Static())))
}

// Icon serves the SVG icon of a category, recoloured white so it reads on
// the marker background.
func (h *PageHandler) Icon(w http.ResponseWriter, r *http.Request) {
	path := h.cfg.Categories[mux.Vars(r)["category"]]
	if path == "" {
		middleware.WriteError(w, h.logger, errors.ErrNotFound)
		return
	}
	svg, err := os.ReadFile(path)
	if err != nil {
		h.logger.Warn("Failed to read icon", zap.String("path", path), zap.Error(err))
		middleware.WriteError(w, h.logger, errors.ErrNotFound)
		return
	}
	svg = bytes.ReplaceAll(svg, []byte(`fill="#000000"`), []byte(`fill="#FFFFFF"`))
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(svg)
}

// SetReady flips the readiness probe.
func (h *PageHandler) SetReady(ready bool) { h.ready.Store(ready) }

func (h *PageHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *PageHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT READY"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}
