package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type staticKeys map[string]*ecdsa.PublicKey

func (s staticKeys) PublicKey(_ context.Context, kid string) (*ecdsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return key, nil
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *ecdsa.PrivateKey, kid string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims(issuer string, principalID uuid.UUID) Claims {
	now := time.Now()
	return Claims{
		Name:  "Jane",
		Email: "jane@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   principalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestSessionCookie(t *testing.T) {
	cookie, err := NewSessionCookie(testSecret, time.Hour)
	require.NoError(t, err)

	id := uuid.Must(uuid.NewV7())
	value := cookie.Encode(id)

	decoded, err := cookie.Decode(value)
	require.NoError(t, err)
	require.Equal(t, id, decoded)

	other := uuid.Must(uuid.NewV7())
	_, sig, _ := strings.Cut(value, ".")
	_, err = cookie.Decode(other.String() + "." + sig)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = cookie.Decode("garbage")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = NewSessionCookie([]byte("short"), time.Hour)
	require.Error(t, err)
}

func TestSessionProvider(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	cookie, err := NewSessionCookie(testSecret, time.Hour)
	require.NoError(t, err)

	principal := &models.Principal{
		PrincipalID: uuid.Must(uuid.NewV7()),
		Name:        "Jane",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, stores.Principals.Create(ctx, principal))

	orgID := uuid.Must(uuid.NewV7())
	require.NoError(t, stores.Organizations.Create(ctx, &models.Organization{
		OrgID:            orgID,
		Name:             "Acme",
		OwnerPrincipalID: principal.PrincipalID,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}))

	session := &models.Session{
		SessionID:   uuid.Must(uuid.NewV7()),
		PrincipalID: principal.PrincipalID,
		ActiveOrgID: &orgID,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
		LastUsedAt:  time.Now(),
	}
	require.NoError(t, stores.Sessions.Create(ctx, session))

	provider := NewSessionProvider(cookie, stores.Sessions, stores.Principals, NewMembershipLoader(stores.Memberships, time.Minute))

	t.Run("valid session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie.Encode(session.SessionID)})

		id, err := Resolve(ctx, provider, req)
		require.NoError(t, err)
		require.NotNil(t, id)
		require.Equal(t, principal.PrincipalID, id.ID)
		require.Equal(t, Scope(orgID), id.ActiveScope)
		require.Len(t, id.Memberships, 1)
		require.Equal(t, models.RoleOwner, id.Memberships[0].Role)
		require.Equal(t, Scope(orgID), id.DefaultScope())
	})

	t.Run("no cookie is anonymous", func(t *testing.T) {
		id, err := provider.CurrentIdentity(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		require.Nil(t, id)
	})

	t.Run("unknown session is anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: cookie.Encode(uuid.Must(uuid.NewV7()))})

		id, err := provider.CurrentIdentity(ctx, req)
		require.NoError(t, err)
		require.Nil(t, id)
	})
}

func TestTokenProvider(t *testing.T) {
	ctx := context.Background()
	key := newKey(t)
	issuer := "https://funnel.example.com"
	loader := NewMembershipLoader(memory.NewMembershipStore(), time.Minute)
	provider := NewTokenProvider(issuer, "", staticKeys{"k1": &key.PublicKey}, loader)

	principalID := uuid.Must(uuid.NewV7())

	request := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}

	t.Run("valid token", func(t *testing.T) {
		id, err := provider.CurrentIdentity(ctx, request(signToken(t, key, "k1", validClaims(issuer, principalID))))
		require.NoError(t, err)
		require.Equal(t, principalID, id.ID)
		require.Equal(t, "jane@example.com", id.Email)
	})

	t.Run("principal_id claim wins over subject", func(t *testing.T) {
		claims := validClaims(issuer, principalID)
		claims.Subject = "user_2abc"
		claims.PrincipalID = principalID.String()

		id, err := provider.CurrentIdentity(ctx, request(signToken(t, key, "k1", claims)))
		require.NoError(t, err)
		require.Equal(t, principalID, id.ID)
	})

	tests := []struct {
		name  string
		token func() string
	}{
		{"wrong issuer", func() string { return signToken(t, key, "k1", validClaims("https://evil.example.com", principalID)) }},
		{"unknown kid", func() string { return signToken(t, key, "k2", validClaims(issuer, principalID)) }},
		{"wrong key", func() string { return signToken(t, newKey(t), "k1", validClaims(issuer, principalID)) }},
		{"expired", func() string {
			claims := validClaims(issuer, principalID)
			claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			return signToken(t, key, "k1", claims)
		}},
		{"non uuid subject", func() string {
			claims := validClaims(issuer, principalID)
			claims.Subject = "user_2abc"
			return signToken(t, key, "k1", claims)
		}},
		{"garbage", func() string { return "not.a.jwt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := provider.CurrentIdentity(ctx, request(tt.token()))
			require.ErrorIs(t, err, ErrInvalidCredentials)
			require.Nil(t, id)
		})
	}

	t.Run("no header is anonymous", func(t *testing.T) {
		id, err := provider.CurrentIdentity(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		require.Nil(t, id)
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	loader := NewMembershipLoader(memory.NewMembershipStore(), time.Minute)
	key := newKey(t)
	issuer := "https://funnel.example.com"

	chain := Chain{
		NewTokenProvider(issuer, "", staticKeys{"k1": &key.PublicKey}, loader),
		NewHeaderProvider(loader),
	}

	userID := uuid.Must(uuid.NewV7())

	t.Run("falls through when no token is presented", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?userId="+userID.String(), nil)
		id, err := chain.CurrentIdentity(ctx, req)
		require.NoError(t, err)
		require.Equal(t, userID, id.ID)
	})

	t.Run("invalid token does not fall through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer invalid")
		req.Header.Set(UserIDHeader, userID.String())

		id, err := chain.CurrentIdentity(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Nil(t, id)
	})

	t.Run("malformed header id is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserIDHeader, "nope")

		_, err := chain.CurrentIdentity(ctx, req)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestJWKSKeySource(t *testing.T) {
	key := newKey(t)
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []JWK{NewJWK("k1", &key.PublicKey)}})
	}))
	defer srv.Close()

	now := time.Now()
	source := NewJWKSKeySource(srv.URL, srv.Client())
	source.now = func() time.Time { return now }

	got, err := source.PublicKey(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(got))

	_, err = source.PublicKey(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	// unknown kids inside the refresh interval do not reach the endpoint
	for _, kid := range []string{"missing", "other", "missing"} {
		_, err = source.PublicKey(context.Background(), kid)
		require.Error(t, err)
	}
	require.Equal(t, int32(1), hits.Load())

	now = now.Add(minRefreshInterval)
	_, err = source.PublicKey(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())

	_, err = source.PublicKey(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestJWKSKeySource_FailedFetchRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	source := NewJWKSKeySource(srv.URL, srv.Client())

	_, err := source.PublicKey(context.Background(), "k1")
	require.Error(t, err)
	_, err = source.PublicKey(context.Background(), "k1")
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestMembershipLoader_Invalidate(t *testing.T) {
	ctx := context.Background()
	memberships := memory.NewMembershipStore()
	loader := NewMembershipLoader(memberships, time.Minute)

	id := Identity{ID: uuid.Must(uuid.NewV7())}

	got, err := loader.Memberships(ctx, id)
	require.NoError(t, err)
	require.Empty(t, got)

	orgID := uuid.Must(uuid.NewV7())
	require.NoError(t, memberships.Add(ctx, &models.Membership{
		OrgID:       orgID,
		PrincipalID: id.ID,
		Role:        models.RoleMember,
		CreatedAt:   time.Now(),
	}))

	got, err = loader.Memberships(ctx, id)
	require.NoError(t, err)
	require.Empty(t, got, "cached result is served until invalidated")

	loader.Invalidate(id.ID)

	got, err = loader.Memberships(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []Membership{{OrganizationScope: Scope(orgID), Role: models.RoleMember}}, got)
}

func TestMiddleware(t *testing.T) {
	loader := NewMembershipLoader(memory.NewMembershipStore(), time.Minute)
	userID := uuid.Must(uuid.NewV7())

	var seen *Identity
	handler := Middleware(NewHeaderProvider(loader))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := FromContext(r.Context())
		require.NoError(t, err)
		seen = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, userID.String())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	require.Equal(t, userID, seen.ID)
}
