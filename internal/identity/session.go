package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionCookieName is the cookie carrying the signed session id.
const SessionCookieName = "_session"

// SessionCookie signs and verifies session ids stored in the browser.
// The cookie only ever holds the id; session state lives in the store.
type SessionCookie struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionCookie creates a cookie codec. The secret must be at least 32 bytes.
func NewSessionCookie(secret []byte, ttl time.Duration) (*SessionCookie, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be 32 bytes")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	return &SessionCookie{secret: secret, ttl: ttl}, nil
}

// TTL is how long sessions issued with this cookie live.
func (c *SessionCookie) TTL() time.Duration {
	return c.ttl
}

// Encode returns the cookie value for a session id: id.base64(hmac).
func (c *SessionCookie) Encode(sessionID uuid.UUID) string {
	id := sessionID.String()
	return id + "." + base64.RawURLEncoding.EncodeToString(c.sign(id))
}

// Decode verifies a cookie value and returns the session id.
func (c *SessionCookie) Decode(value string) (uuid.UUID, error) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok {
		return uuid.Nil, ErrInvalidCredentials
	}

	received, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}

	// constant-time comparison
	if !hmac.Equal(received, c.sign(id)) {
		log.Debug().Msg("Session cookie signature validation failed")
		return uuid.Nil, ErrInvalidCredentials
	}

	sessionID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return sessionID, nil
}

// Set writes the session cookie.
func (c *SessionCookie) Set(w http.ResponseWriter, sessionID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    c.Encode(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.ttl.Seconds()),
	})
}

// Clear expires the session cookie.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID extracts and verifies the session id from a request.
func (c *SessionCookie) SessionID(r *http.Request) (uuid.UUID, bool, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, false, nil
	}
	id, err := c.Decode(cookie.Value)
	return id, true, err
}

func (c *SessionCookie) sign(value string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

// SessionProvider resolves identities from first-party session cookies.
type SessionProvider struct {
	*MembershipLoader

	cookie     *SessionCookie
	sessions   store.SessionStore
	principals store.PrincipalStore
}

// NewSessionProvider creates a provider backed by the session and principal stores.
func NewSessionProvider(cookie *SessionCookie, sessions store.SessionStore, principals store.PrincipalStore, loader *MembershipLoader) *SessionProvider {
	return &SessionProvider{
		MembershipLoader: loader,
		cookie:           cookie,
		sessions:         sessions,
		principals:       principals,
	}
}

// CurrentIdentity implements Provider. Unknown, expired or tampered sessions
// are treated as no session at all.
func (p *SessionProvider) CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error) {
	sessionID, present, err := p.cookie.SessionID(r)
	if !present {
		return nil, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("Session cookie rejected")
		return nil, nil
	}

	session, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
			log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("Session not usable")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	principal, err := p.principals.Get(ctx, session.PrincipalID)
	if err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			log.Warn().Str("principal_id", session.PrincipalID.String()).Msg("Session references unknown principal")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}

	if err := p.sessions.UpdateLastUsed(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to update session last used")
	}

	id := &Identity{
		ID:          principal.PrincipalID,
		Name:        principal.Name,
		Email:       principal.DisplayEmail(),
		ActiveScope: Scope(session.ActiveOrganization()),
	}

	return id, nil
}

// Session returns the session attached to the request, if any.
func (p *SessionProvider) Session(r *http.Request) (uuid.UUID, bool) {
	sessionID, present, err := p.cookie.SessionID(r)
	if !present || err != nil {
		return uuid.Nil, false
	}
	return sessionID, true
}
