package store

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

var (
	ErrMembershipNotFound      = errors.New("membership not found")
	ErrMembershipAlreadyExists = errors.New("membership already exists")
)

// MembershipStore manages which principals belong to which organizations.
type MembershipStore interface {
	// Add adds a principal to an organization.
	// Returns ErrMembershipAlreadyExists if the principal is already a member.
	Add(ctx context.Context, membership *models.Membership) error

	// Remove removes a principal from an organization.
	// Returns ErrMembershipNotFound if the principal is not a member.
	Remove(ctx context.Context, orgID, principalID uuid.UUID) error

	// ListByPrincipal returns all memberships of a principal.
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error)

	// ListByOrg returns all memberships of an organization, oldest first.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error)
}
