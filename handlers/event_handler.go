package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"poi-map/controller"
	"poi-map/middleware"
	"poi-map/utils/errors"
)

// EventHandler exposes the interaction controller to the page.
type EventHandler struct {
	controller *controller.Controller
	logger     *zap.Logger
}

func NewEventHandler(c *controller.Controller, logger *zap.Logger) *EventHandler {
	return &EventHandler{controller: c, logger: logger}
}

// GetSession returns the current view including the full marker layer.
func (h *EventHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Session())
}

// PostEvent dispatches one UI event and answers with the resulting view.
func (h *EventHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev controller.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		middleware.WriteError(w, h.logger, errors.NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest, err.Error()))
		return
	}
	h.logger.Debug("Dispatching event", zap.String("event", ev.Name), zap.String("actor", actor(r)))
	view, err := h.controller.Dispatch(r.Context(), ev)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
