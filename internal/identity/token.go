package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Claims are the claims carried by bearer tokens. The subject, or the
// principal_id claim when the issuer uses its own subject format, must be a UUID.
type Claims struct {
	PrincipalID string `json:"principal_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenProvider resolves identities from ES256 bearer tokens.
type TokenProvider struct {
	*MembershipLoader

	issuer   string
	audience string
	keys     KeySource
	leeway   time.Duration
}

// NewTokenProvider creates a provider trusting tokens from issuer.
// An empty audience disables the audience check.
func NewTokenProvider(issuer, audience string, keys KeySource, loader *MembershipLoader) *TokenProvider {
	return &TokenProvider{
		MembershipLoader: loader,
		issuer:           issuer,
		audience:         audience,
		keys:             keys,
		leeway:           30 * time.Second,
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentIdentity implements Provider.
func (p *TokenProvider) CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error) {
	tokenString, ok := BearerToken(r)
	if !ok {
		return nil, nil
	}

	id, err := p.Verify(ctx, tokenString)
	if err != nil {
		log.Debug().Err(err).Msg("Bearer token rejected")
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return id, nil
}

// Verify checks a token's signature and claims and returns its identity.
func (p *TokenProvider) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(p.leeway),
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid")
		}
		return p.keys.PublicKey(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, err
	}

	subject := claims.PrincipalID
	if subject == "" {
		subject = claims.Subject
	}
	principalID, err := uuid.Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("invalid principal id %q: %w", subject, err)
	}

	id := &Identity{
		ID:    principalID,
		Name:  claims.Name,
		Email: claims.Email,
	}
	if claims.OrgID != "" {
		scope, err := ParseScope(claims.OrgID)
		if err != nil {
			return nil, err
		}
		id.ActiveScope = scope
	}

	return id, nil
}
