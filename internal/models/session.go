package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a signed-in browser. Only SessionID leaves the server, inside
// the signed session cookie.
type Session struct {
	SessionID   uuid.UUID
	PrincipalID uuid.UUID
	ActiveOrgID *uuid.UUID // nil until an organization is chosen

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time

	UserAgent string
	IPAddress string
}

// ExpiredAt reports whether the session has lapsed at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ActiveOrganization returns the selected organization, or uuid.Nil.
func (s *Session) ActiveOrganization() uuid.UUID {
	if s.ActiveOrgID == nil {
		return uuid.Nil
	}
	return *s.ActiveOrgID
}
