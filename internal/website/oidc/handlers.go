// Package oidc makes the server a minimal OpenID Connect issuer: a discovery
// document, a JWKS endpoint and a token endpoint that exchanges a browser
// session for a short lived bearer token.
package oidc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// DefaultTokenTTL is how long issued bearer tokens stay valid.
const DefaultTokenTTL = time.Hour

// Handler serves the issuer endpoints.
type Handler struct {
	keyManager *KeyManager
	sessions   identity.Provider
	baseURL    string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// NewHandler creates issuer endpoints for baseURL. Tokens are only issued to
// callers the sessions provider recognises.
func NewHandler(keyManager *KeyManager, sessions identity.Provider, baseURL, audience string, opts ...Option) *Handler {
	h := &Handler{
		keyManager: keyManager,
		sessions:   sessions,
		baseURL:    baseURL,
		audience:   audience,
		ttl:        DefaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Issuer is the iss claim on every token this handler signs.
func (h *Handler) Issuer() string {
	return h.baseURL
}

// RegisterRoutes adds the issuer endpoints to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /.well-known/openid-configuration", h.DiscoveryHandler())
	mux.HandleFunc("GET /.well-known/jwks.json", h.JWKSHandler())
	mux.HandleFunc("POST /auth/token", h.TokenHandler())
}

// DiscoveryHandler serves /.well-known/openid-configuration.
func (h *Handler) DiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		config := map[string]any{
			"issuer":                                h.baseURL,
			"jwks_uri":                              h.baseURL + "/.well-known/jwks.json",
			"token_endpoint":                        h.baseURL + "/auth/token",
			"response_types_supported":              []string{"token"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{jwt.SigningMethodES256.Alg()},
		}

		w.Header().Set("Cache-Control", "public, max-age=86400")
		writeJSON(w, r, http.StatusOK, config)
	}
}

// JWKSHandler serves the public signing key at /.well-known/jwks.json.
func (h *Handler) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks := map[string]any{
			"keys": []identity.JWK{h.keyManager.JWK()},
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, r, http.StatusOK, jwks)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenHandler issues a bearer token for the caller's session at
// POST /auth/token. The token carries the active organization, if any.
func (h *Handler) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := hlog.FromRequest(r)

		id, err := h.sessions.CurrentIdentity(r.Context(), r)
		if err != nil || id == nil {
			logger.Warn().Err(err).Msg("Token request without valid session")
			writeJSON(w, r, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		now := h.now()
		claims := identity.Claims{
			PrincipalID: id.ID.String(),
			Name:        id.Name,
			Email:       id.Email,
			OrgID:       id.ActiveScope.String(),
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    h.baseURL,
				Subject:   id.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
				ID:        uuid.NewString(),
			},
		}
		if h.audience != "" {
			claims.Audience = jwt.ClaimStrings{h.audience}
		}

		tokenString, err := h.keyManager.SignJWT(claims)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to sign JWT")
			writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		logger.Info().
			Str("principal_id", id.ID.String()).
			Str("org_id", claims.OrgID).
			Msg("Issued bearer token")

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, r, http.StatusOK, tokenResponse{
			AccessToken: tokenString,
			TokenType:   "Bearer",
			ExpiresIn:   int64(h.ttl.Seconds()),
		})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}
