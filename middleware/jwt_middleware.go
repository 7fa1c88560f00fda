package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"poi-map/utils/errors"
)

type contextKey string

const subjectKey contextKey = "subject"

// TokenValidator checks a bearer token and returns its subject.
type TokenValidator interface {
	Enabled() bool
	ValidateToken(token string) (string, error)
}

// JWTMiddleware requires a valid bearer token on the wrapped routes. When the
// validator is disabled requests pass through untouched.
func JWTMiddleware(auth TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.Enabled() || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				WriteError(w, logger, errors.ErrUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			subject, err := auth.ValidateToken(tokenString)
			if err != nil {
				logger.Debug("Rejected token", zap.String("path", r.URL.Path), zap.Error(err))
				WriteError(w, logger, errors.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated subject of the request, if any.
func Subject(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}
