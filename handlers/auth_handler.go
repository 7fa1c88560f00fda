package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"poi-map/middleware"
	"poi-map/services"
	"poi-map/utils/errors"
)

type AuthHandler struct {
	authService *services.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		middleware.WriteError(w, h.logger, errors.ErrInvalidInput)
		return
	}
	token, err := h.authService.Login(input.Password)
	if err != nil {
		h.logger.Info("Login failed", zap.String("ip", r.RemoteAddr), zap.Error(err))
		middleware.WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
