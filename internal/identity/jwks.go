package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// KeySource returns the public key a token was signed with.
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error)
}

// minRefreshInterval bounds how often an unknown kid can trigger a fetch.
const minRefreshInterval = 30 * time.Second

// JWKSKeySource fetches signing keys from a JWKS endpoint. HTTP caching is
// left to the client transport; parsed keys are cached by kid.
type JWKSKeySource struct {
	url        string
	httpClient *http.Client
	keys       *cache.Cache

	mu          sync.Mutex
	lastRefresh time.Time
	minRefresh  time.Duration
	now         func() time.Time
}

// NewJWKSKeySource creates a key source for jwksURL. A nil client uses a
// plain client with a 10s timeout.
func NewJWKSKeySource(jwksURL string, httpClient *http.Client) *JWKSKeySource {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	return &JWKSKeySource{
		url:        jwksURL,
		httpClient: httpClient,
		keys:       cache.New(time.Hour, 10*time.Minute),
		minRefresh: minRefreshInterval,
		now:        time.Now,
	}
}

// PublicKey returns the key for kid, refreshing the JWKS on a miss so
// rotated keys are picked up. Misses inside the refresh interval fail
// without a fetch.
func (s *JWKSKeySource) PublicKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	if key, ok := s.keys.Get(kid); ok {
		return key.(*ecdsa.PublicKey), nil
	}

	if err := s.refreshIfStale(ctx, kid); err != nil {
		return nil, err
	}

	if key, ok := s.keys.Get(kid); ok {
		return key.(*ecdsa.PublicKey), nil
	}
	return nil, fmt.Errorf("kid not found in JWKS: %s", kid)
}

func (s *JWKSKeySource) refreshIfStale(ctx context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// another caller may have fetched while we waited
	if _, ok := s.keys.Get(kid); ok {
		return nil
	}

	now := s.now()
	if !s.lastRefresh.IsZero() && now.Sub(s.lastRefresh) < s.minRefresh {
		log.Debug().Str("kid", kid).Msg("Skipping JWKS refresh")
		return nil
	}

	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.lastRefresh = now
	return nil
}

func (s *JWKSKeySource) refresh(ctx context.Context) error {
	log.Debug().Str("jwks_url", s.url).Msg("Fetching JWKS")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS request failed: %s", resp.Status)
	}

	var jwks struct {
		Keys []JWK `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	for _, jwk := range jwks.Keys {
		key, err := jwk.PublicKey()
		if err != nil {
			log.Warn().Err(err).Str("kid", jwk.Kid).Msg("Failed to parse JWK")
			continue
		}
		s.keys.SetDefault(jwk.Kid, key)
	}

	log.Info().Int("total_keys", len(jwks.Keys)).Msg("Cached JWKS")
	return nil
}

// JWK is an EC public key in JSON Web Key form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// NewJWK converts a P-256 public key into a JWK with the given kid.
func NewJWK(kid string, key *ecdsa.PublicKey) JWK {
	size := (key.Curve.Params().BitSize + 7) / 8
	return JWK{
		Kty: "EC",
		Use: "sig",
		Kid: kid,
		Alg: "ES256",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(key.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(key.Y.FillBytes(make([]byte, size))),
	}
}

// PublicKey parses the JWK into an ECDSA public key.
func (k JWK) PublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != "EC" {
		return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
	}
	if k.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported curve: %s", k.Crv)
	}
	if k.Kid == "" {
		return nil, fmt.Errorf("missing kid")
	}

	xBytes, err := decodeBase64URL(k.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x: %w", err)
	}
	yBytes, err := decodeBase64URL(k.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y: %w", err)
	}

	key := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if _, err := key.ECDH(); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return key, nil
}

// decodeBase64URL accepts padded and unpadded base64url.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
