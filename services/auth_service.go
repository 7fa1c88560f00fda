package services

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"poi-map/config"
	"poi-map/utils/errors"
)

// OwnerSubject is the subject of every issued token; the map has a single
// owner.
const OwnerSubject = "owner"

const tokenTTL = 24 * time.Hour

var ErrInvalidCredentials = errors.NewAPIError("INVALID_CREDENTIALS", "Invalid password", http.StatusUnauthorized)

// AuthService checks the owner password and issues tokens for the mutating
// routes.
type AuthService struct {
	passwordHash []byte
	jwtSecret    []byte
	now          func() time.Time
}

func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		passwordHash: []byte(cfg.PasswordHash),
		jwtSecret:    []byte(cfg.JWTSecret),
		now:          time.Now,
	}
}

// Enabled reports whether tokens are required at all.
func (s *AuthService) Enabled() bool { return len(s.jwtSecret) > 0 }

// HashPassword returns the bcrypt hash to put in auth.password_hash.
func HashPassword(password string) (string, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}
	return string(passwordHash), nil
}

// Login authenticates the owner and returns a JWT
func (s *AuthService) Login(password string) (string, error) {
	if !s.Enabled() {
		return "", errors.ErrAuthDisabled
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   OwnerSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.Wrap(err, "JWT_ERROR", "Failed to generate token", http.StatusInternalServerError)
	}
	return tokenString, nil
}

// ValidateToken parses tokenString and returns its subject.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.NewAPIError("INVALID_TOKEN", "Unexpected signing method", http.StatusUnauthorized)
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", errors.ErrUnauthorized
	}
	if claims.Subject != OwnerSubject {
		return "", errors.ErrUnauthorized
	}
	return claims.Subject, nil
}
