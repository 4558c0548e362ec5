package login

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/funnelhq/funnel360/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func createTestStores() Stores {
	return Stores{
		Sessions:   memory.NewSessionStore(),
		Principals: memory.NewPrincipalStore(),
	}
}

func newTestGithub(t *testing.T, stores Stores) *Github {
	t.Helper()
	cookie, err := identity.NewSessionCookie(testSecret, 24*time.Hour)
	require.NoError(t, err)

	gh, err := NewGithub("test-client-id", "test-client-secret", "http://localhost/callback", cookie, stores)
	require.NoError(t, err)
	return gh
}

// fakeGithub serves the token exchange and user API.
func fakeGithub(t *testing.T, user map[string]any, emails []githubEmail) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "gho_test", "token_type": "bearer"})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer gho_test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("GET /user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(emails)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pointGithubAt(gh *Github, srv *httptest.Server) {
	gh.config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/login/oauth/authorize",
		TokenURL:  srv.URL + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	gh.apiURL = srv.URL
}

func callbackRequest(state, code string) *http.Request {
	q := url.Values{"state": {state}, "code": {code}}
	r := httptest.NewRequest(http.MethodGet, "/github/callback?"+q.Encode(), nil)
	r.AddCookie(&http.Cookie{Name: stateCookieName, Value: state})
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestNewGithub(t *testing.T) {
	gh := newTestGithub(t, createTestStores())

	require.Equal(t, "test-client-id", gh.config.ClientID)
	require.Equal(t, "test-client-secret", gh.config.ClientSecret)
	require.Equal(t, "http://localhost/callback", gh.config.RedirectURL)
	require.Equal(t, []string{"user:email"}, gh.config.Scopes)
}

func TestNewGithub_invalidArguments(t *testing.T) {
	cookie, err := identity.NewSessionCookie(testSecret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		cookie  *identity.SessionCookie
		stores  Stores
		wantErr string
	}{
		{name: "missing client id", id: "", cookie: cookie, stores: createTestStores(), wantErr: "client ID"},
		{name: "missing cookie", id: "id", cookie: nil, stores: createTestStores(), wantErr: "session cookie"},
		{name: "missing stores", id: "id", cookie: cookie, stores: Stores{}, wantErr: "all stores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGithub(tt.id, "secret", "http://localhost/callback", tt.cookie, tt.stores)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGithub_saveState_randomness(t *testing.T) {
	gh := newTestGithub(t, createTestStores())

	states := make(map[string]bool)
	for range 10 {
		w := httptest.NewRecorder()
		state := gh.saveState(w)
		require.Greater(t, len(state), 10)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, state, cookies[0].Value)
		require.True(t, cookies[0].HttpOnly)
		states[state] = true
	}

	require.Len(t, states, 10)
}

func TestGithub_LoginHandler(t *testing.T) {
	gh := newTestGithub(t, createTestStores())

	w := httptest.NewRecorder()
	gh.LoginHandler(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	require.Equal(t, http.StatusFound, w.Code)

	location := w.Header().Get("Location")
	require.Contains(t, location, "github.com/login/oauth/authorize")
	require.Contains(t, location, "client_id=test-client-id")
	require.Contains(t, location, "scope=user%3Aemail")
}

func TestGithub_CallbackHandler_rejected(t *testing.T) {
	gh := newTestGithub(t, createTestStores())
	srv := fakeGithub(t, map[string]any{"id": 1, "login": "octocat"}, nil)
	pointGithubAt(gh, srv)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{
			name: "missing code",
			req:  httptest.NewRequest(http.MethodGet, "/github/callback?state=abc", nil),
		},
		{
			name: "missing state cookie",
			req:  httptest.NewRequest(http.MethodGet, "/github/callback?state=abc&code=good-code", nil),
		},
		{
			name: "state mismatch",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/github/callback?state=abc&code=good-code", nil)
				r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "other"})
				return r
			}(),
		},
		{
			name: "bad code",
			req:  callbackRequest("abc", "bad-code"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			gh.CallbackHandler(w, tt.req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			require.Contains(t, w.Body.String(), "Authentication failed")
		})
	}
}

func TestGithub_CallbackHandler_createsPrincipalAndSession(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	gh := newTestGithub(t, stores)
	srv := fakeGithub(t,
		map[string]any{"id": 583231, "login": "octocat", "name": "", "avatar_url": "https://example.com/a.png"},
		[]githubEmail{
			{Email: "old@example.com", Primary: false, Verified: true},
			{Email: "octo@example.com", Primary: true, Verified: true},
		},
	)
	pointGithubAt(gh, srv)

	w := httptest.NewRecorder()
	r := callbackRequest("abc", "good-code")
	r.Header.Set("User-Agent", "test-agent")
	gh.CallbackHandler(w, r)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	require.Equal(t, AfterSignInPath, w.Header().Get("Location"))

	principal, err := stores.Principals.GetByGitHubID(ctx, "583231")
	require.NoError(t, err)
	require.Equal(t, "octocat", principal.Name, "login is used when the name is empty")
	require.Equal(t, "octo@example.com", principal.DisplayEmail())

	sessionID, err := gh.cookie.Decode(sessionCookie(t, w).Value)
	require.NoError(t, err)

	session, err := stores.Sessions.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, principal.PrincipalID, session.PrincipalID)
	require.Equal(t, "test-agent", session.UserAgent)
	require.Nil(t, session.ActiveOrgID)

	// Signing in again reuses the principal.
	w = httptest.NewRecorder()
	gh.CallbackHandler(w, callbackRequest("def", "good-code"))
	require.Equal(t, http.StatusFound, w.Code)

	again, err := stores.Principals.GetByGitHubID(ctx, "583231")
	require.NoError(t, err)
	require.Equal(t, principal.PrincipalID, again.PrincipalID)
}

func TestGithub_LogoutHandler(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	gh := newTestGithub(t, stores)

	now := time.Now()
	session := &models.Session{
		SessionID:   uuid.Must(uuid.NewV7()),
		PrincipalID: uuid.Must(uuid.NewV7()),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		LastUsedAt:  now,
	}
	require.NoError(t, stores.Sessions.Create(ctx, session))

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.AddCookie(&http.Cookie{Name: identity.SessionCookieName, Value: gh.cookie.Encode(session.SessionID)})

	w := httptest.NewRecorder()
	gh.LogoutHandler(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, SignedOutPath, w.Header().Get("Location"))

	_, err := stores.Sessions.Get(ctx, session.SessionID)
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.SessionCookieName {
			cleared = c.MaxAge < 0
		}
	}
	require.True(t, cleared)
}

func TestOptional(t *testing.T) {
	require.Nil(t, optional(""))
	require.Equal(t, "x", *optional("x"))
}
