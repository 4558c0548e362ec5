package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a principal's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Membership links a principal to an organization with a role.
type Membership struct {
	OrgID       uuid.UUID
	PrincipalID uuid.UUID
	Role        Role
	CreatedAt   time.Time
}
