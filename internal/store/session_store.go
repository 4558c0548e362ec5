package store

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionStore manages server-side browser sessions.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionExpired for sessions past their expiry.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// SetActiveOrg records the organization selected in the session.
	SetActiveOrg(ctx context.Context, sessionID uuid.UUID, orgID *uuid.UUID) error

	// UpdateLastUsed updates the last_used_at timestamp for a session.
	UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error

	// Delete deletes a session by ID (logout).
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// DeleteExpired deletes all expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}
