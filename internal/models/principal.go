package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal represents a human user known to the system. Principals are
// independent of any organization; access to an organization is granted by a
// Membership.
type Principal struct {
	PrincipalID uuid.UUID // UUIDv7
	Name        string    // Display name (e.g., "Jane Doe")

	// Set for principals that signed in with GitHub
	GitHubID    *string // GitHub user ID (numeric, as string)
	GitHubLogin *string // GitHub username
	Email       *string // Primary email address
	AvatarURL   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayEmail returns the principal's email or an empty string.
func (p *Principal) DisplayEmail() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}
