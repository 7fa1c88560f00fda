package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"poi-map/utils/errors"
)

// ErrorMiddleware recovers handler panics and answers them with a standard
// JSON error.
func ErrorMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					WriteError(w, logger, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON APIError. Domain errors are mapped to
// their status codes; anything else is a 500.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	apiErr := errors.FromError(err)
	if apiErr.Status >= 500 {
		logger.Error("Server error", zap.String("code", apiErr.Code), zap.String("details", apiErr.Details), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(apiErr)
}
