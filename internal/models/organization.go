package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant boundary. Clients, projects and memberships all
// carry its OrgID and never cross into another organization.
type Organization struct {
	OrgID            uuid.UUID
	Name             string
	OwnerPrincipalID uuid.UUID // granted the owner role when the organization is created
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OwnedBy reports whether principalID created the organization.
func (o *Organization) OwnedBy(principalID uuid.UUID) bool {
	return o.OwnerPrincipalID == principalID
}
