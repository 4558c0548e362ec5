// Package login signs principals in with GitHub and manages their
// server-side sessions.
package login

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	httpmiddleware "github.com/funnelhq/funnel360/internal/http"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/funnelhq/funnel360/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateCookieName = "state"
	defaultAPIURL   = "https://api.github.com"

	// AfterSignInPath is where a fresh session lands.
	AfterSignInPath = "/dashboard"
	// SignedOutPath is where logout lands.
	SignedOutPath = "/sign-in"
)

// Stores are the stores sign-in writes to.
type Stores struct {
	Sessions   store.SessionStore
	Principals store.PrincipalStore
}

type Github struct {
	config *oauth2.Config
	cookie *identity.SessionCookie
	stores Stores

	apiURL string
	now    func() time.Time
}

func NewGithub(clientID, clientSecret, callbackURL string, cookie *identity.SessionCookie, stores Stores) (*Github, error) {
	if clientID == "" || clientSecret == "" || callbackURL == "" {
		return nil, fmt.Errorf("client ID, client secret, and callback URL are required")
	}

	if cookie == nil {
		return nil, fmt.Errorf("session cookie is required")
	}

	if stores.Sessions == nil || stores.Principals == nil {
		return nil, fmt.Errorf("all stores (Sessions, Principals) are required")
	}

	return &Github{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		cookie: cookie,
		stores: stores,
		apiURL: defaultAPIURL,
		now:    time.Now,
	}, nil
}

func (g *Github) saveState(w http.ResponseWriter) string {
	// generate random state
	state := rand.Text()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes - enough time for OAuth flow
	})

	return state
}

func (g *Github) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoginHandler starts the GitHub OAuth flow.
func (g *Github) LoginHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("Initiating GitHub OAuth flow")

	state := g.saveState(w)

	// redirect to github
	http.Redirect(w, r, g.config.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the OAuth flow: it records the GitHub user as a
// principal and opens a session for them.
func (g *Github) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("OAuth callback received")

	state := r.FormValue("state")
	code := r.FormValue("code")

	if state == "" || code == "" {
		log.Warn().Msg("OAuth callback missing state or code")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		log.Warn().Err(err).Msg("OAuth callback missing state cookie")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	if state != cookie.Value {
		log.Warn().Msg("OAuth callback state mismatch")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	g.clearState(w)

	ctx := r.Context()

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to exchange OAuth code for token")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	userInfo, err := g.getUserInfo(ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch user info from GitHub")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	principal, err := g.upsertPrincipal(ctx, userInfo)
	if err != nil {
		log.Error().Err(err).Str("github_login", userInfo.Login).Msg("Failed to record principal")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	session, err := g.createSession(ctx, r, principal.PrincipalID)
	if err != nil {
		log.Error().Err(err).Str("principal_id", principal.PrincipalID.String()).Msg("Failed to create session")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	g.cookie.Set(w, session.SessionID)
	telemetry.GetMetrics().SessionsIssuedTotal.Add(ctx, 1)

	log.Info().
		Str("principal_id", principal.PrincipalID.String()).
		Str("github_login", userInfo.Login).
		Msg("User authenticated successfully")

	http.Redirect(w, r, AfterSignInPath, http.StatusFound)
}

// LogoutHandler ends the current session.
func (g *Github) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, present, err := g.cookie.SessionID(r)
	if present && err == nil {
		if err := g.stores.Sessions.Delete(r.Context(), sessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to delete session")
		} else {
			log.Info().Str("session_id", sessionID.String()).Msg("Session ended")
		}
	}

	g.cookie.Clear(w)
	http.Redirect(w, r, SignedOutPath, http.StatusFound)
}

func (g *Github) upsertPrincipal(ctx context.Context, info *UserInfo) (*models.Principal, error) {
	githubID := strconv.FormatInt(info.ID, 10)
	now := g.now()

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = info.Login
	}

	principal, err := g.stores.Principals.GetByGitHubID(ctx, githubID)
	switch {
	case err == nil:
		principal.Name = name
		principal.GitHubLogin = optional(info.Login)
		principal.Email = optional(info.Email)
		principal.AvatarURL = optional(info.AvatarURL)
		principal.UpdatedAt = now
		if err := g.stores.Principals.Update(ctx, principal); err != nil {
			return nil, fmt.Errorf("failed to update principal: %w", err)
		}
		return principal, nil

	case errors.Is(err, store.ErrPrincipalNotFound):
		principalID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate principal ID: %w", err)
		}
		principal = &models.Principal{
			PrincipalID: principalID,
			Name:        name,
			GitHubID:    &githubID,
			GitHubLogin: optional(info.Login),
			Email:       optional(info.Email),
			AvatarURL:   optional(info.AvatarURL),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := g.stores.Principals.Create(ctx, principal); err != nil {
			return nil, fmt.Errorf("failed to create principal: %w", err)
		}
		log.Info().Str("principal_id", principalID.String()).Str("github_login", info.Login).Msg("Principal created")
		return principal, nil

	default:
		return nil, fmt.Errorf("failed to look up principal: %w", err)
	}
}

func (g *Github) createSession(ctx context.Context, r *http.Request, principalID uuid.UUID) (*models.Session, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	ip := httpmiddleware.FromContext(ctx)
	if ip == "" {
		ip = (&httpmiddleware.ClientAddr{}).Resolve(r)
	}

	now := g.now()
	session := &models.Session{
		SessionID:   sessionID,
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.cookie.TTL()),
		LastUsedAt:  now,
		UserAgent:   r.UserAgent(),
		IPAddress:   ip,
	}

	if err := g.stores.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type UserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

func (g *Github) getUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	// Add timeout to prevent hanging on slow GitHub API
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var userInfo UserInfo
	if err := g.getJSON(ctx, token, "/user", &userInfo); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	if userInfo.ID == 0 {
		return nil, errors.New("GitHub user info missing id")
	}

	// If email is not available from /user endpoint, fetch from /user/emails
	if userInfo.Email == "" {
		var emails []githubEmail
		if err := g.getJSON(ctx, token, "/user/emails", &emails); err != nil {
			return nil, fmt.Errorf("failed to fetch user emails: %w", err)
		}
		for _, email := range emails {
			if email.Primary && email.Verified {
				userInfo.Email = email.Email
				break
			}
		}
	}

	return &userInfo, nil
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *Github) getJSON(ctx context.Context, token *oauth2.Token, path string, dst any) error {
	client := g.config.Client(ctx, token)
	resp, err := client.Get(g.apiURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Validate HTTP status code
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GitHub API returned HTTP %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
