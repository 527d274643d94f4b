package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/config"
	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
)

type ctxKey struct{}

var userIDKey ctxKey

// identity is the subset of token claims the API cares about.
type identity struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

type tokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*identity, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v oidcVerifier) Verify(ctx context.Context, rawToken string) (*identity, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var id identity
	if err := token.Claims(&id); err != nil {
		return nil, err
	}
	return &id, nil
}

type AuthMiddleware struct {
	Verifier tokenVerifier
	UserRepo ports.UserRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAuthMiddleware(ctx context.Context, userRepo ports.UserRepository, oidcCfg config.OIDCConfig) *AuthMiddleware {
	m := &AuthMiddleware{
		UserRepo: userRepo,
		logger:   log.WithComponent("auth"),
		now:      time.Now,
	}

	if oidcCfg.ProviderURL == "" {
		m.logger.Warn().Msg("OIDC provider URL not set, every viewer is anonymous")
		return m
	}

	provider, err := oidc.NewProvider(ctx, oidcCfg.ProviderURL)
	if err != nil {
		// Don't crash, just log error and fail later if auth is used
		m.logger.Error().Err(err).Str("provider", oidcCfg.ProviderURL).Msg("failed to query OIDC provider")
		return m
	}

	// Mobile clients send access tokens whose aud rarely matches client_id.
	m.Verifier = oidcVerifier{verifier: provider.Verifier(&oidc.Config{
		ClientID:          oidcCfg.ClientID,
		SkipClientIDCheck: true,
	})}
	return m
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Verifier == nil {
			http.Error(w, "OIDC not configured on server", http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		m.authenticate(w, r, next)
	})
}

// OptionalAuth lets anonymous requests through. A token that is present
// must still be valid.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Verifier == nil || r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		m.authenticate(w, r, next)
	})
}

func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	claims, err := m.Verifier.Verify(ctx, parts[1])
	if err != nil {
		m.logger.Info().Err(err).Msg("token verification failed")
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Sub == "" {
		http.Error(w, "Invalid token claims", http.StatusUnauthorized)
		return
	}

	user, err := m.provision(ctx, claims)
	if err != nil {
		m.logger.Error().Err(err).Str("user_id", claims.Sub).Msg("user provisioning failed")
		http.Error(w, "User provisioning failed", http.StatusInternalServerError)
		return
	}

	next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, userIDKey, user.ID)))
}

// provision upserts the user behind a verified token.
func (m *AuthMiddleware) provision(ctx context.Context, claims *identity) (*domain.User, error) {
	now := m.now()
	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}

	user, err := m.UserRepo.GetByID(ctx, claims.Sub)
	if errors.Is(err, domain.ErrNotFound) {
		user = &domain.User{
			ID:        claims.Sub,
			Email:     email,
			Name:      claims.Name,
			CreatedAt: now,
			LastSeen:  now,
		}
		if err := m.UserRepo.Save(ctx, user); err != nil {
			return nil, err
		}
		m.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("provisioned new user")
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	user.LastSeen = now
	if email != "" {
		user.Email = email
	}
	if claims.Name != "" {
		user.Name = claims.Name
	}
	if err := m.UserRepo.Save(ctx, user); err != nil {
		m.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last seen")
	}
	return user, nil
}

// GetUserID returns the authenticated viewer, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return id
}
