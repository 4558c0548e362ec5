package store

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrProjectAlreadyExists = errors.New("project already exists")
)

// ProjectStore persists projects. Every method is scoped to an organization.
type ProjectStore interface {
	// Create inserts a new project.
	// Returns ErrClientNotFound if the referenced client does not exist in the
	// project's organization at write time.
	Create(ctx context.Context, project *models.Project) error

	// Get retrieves a project by ID within an organization.
	Get(ctx context.Context, orgID, projectID uuid.UUID) (*models.Project, error)

	// List returns the organization's projects, newest first.
	List(ctx context.Context, orgID uuid.UUID, opts ListProjectsOptions) ([]*models.Project, error)

	// Update replaces the mutable fields of a project.
	// Returns ErrClientNotFound if the new client reference is not in the organization.
	Update(ctx context.Context, project *models.Project) error

	// Delete removes a project.
	Delete(ctx context.Context, orgID, projectID uuid.UUID) error
}

// ListProjectsOptions specifies filters for listing projects.
type ListProjectsOptions struct {
	ClientID *uuid.UUID // Filter by client (nil = all)
	ListOptions
}
