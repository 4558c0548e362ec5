package store

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
)

// OrganizationStore defines the interface for organization storage operations.
// Organizations are tenants: every client and project belongs to exactly one.
type OrganizationStore interface {
	// Create creates a new organization together with the owner's membership.
	// Returns ErrOrganizationAlreadyExists if an organization with the same ID already exists.
	Create(ctx context.Context, org *models.Organization) error

	// Get retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// Update updates an existing organization.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Update(ctx context.Context, org *models.Organization) error

	// ListByOwner returns all organizations owned by a specific principal.
	ListByOwner(ctx context.Context, ownerPrincipalID uuid.UUID) ([]*models.Organization, error)
}
