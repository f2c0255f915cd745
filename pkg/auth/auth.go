// Package auth authenticates back-office admins: bcrypt password hashes,
// HS256 bearer tokens and the HTTP middleware that checks them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// AdminStore is the part of the storage layer auth needs.
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin *models.Admin) error
	FindAdminByUsername(ctx context.Context, username string) (*models.Admin, error)
}

// Service logs admins in and issues their tokens.
type Service struct {
	admins AdminStore
	tokens *JWTService
	log    *logrus.Logger
}

func NewService(admins AdminStore, tokens *JWTService, log *logrus.Logger) *Service {
	return &Service{admins: admins, tokens: tokens, log: log}
}

// HashPassword hashes a password with bcrypt's default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// EnsureAdmin creates the admin unless the username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if _, err := s.admins.FindAdminByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrAdminNotFound) {
		return fmt.Errorf("failed to look up admin %q: %w", username, err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.Admin{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.admins.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicateAdminUsername) {
			return nil
		}
		return fmt.Errorf("failed to create admin %q: %w", username, err)
	}
	s.log.WithField("username", username).Info("Bootstrap admin created")
	return nil
}

// Login checks the credentials and returns a signed token with its expiry.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	admin, err := s.admins.FindAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, fmt.Errorf("failed to look up admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.tokens.GenerateToken(admin.ID, admin.Username)
}

type contextKey string

const claimsContextKey contextKey = "claims"

// ContextWithClaims returns a new context with the given Claims attached.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts Claims from the context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// Middleware rejects requests without a valid bearer token.
func (s *JWTService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := s.ValidateToken(tokenString)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}
