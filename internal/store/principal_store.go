package store

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

// Errors
var (
	ErrPrincipalNotFound      = errors.New("principal not found")
	ErrPrincipalAlreadyExists = errors.New("principal already exists")
)

// PrincipalStore manages user principals.
type PrincipalStore interface {
	// Create creates a new principal.
	// Returns ErrPrincipalAlreadyExists if the ID or GitHub ID is already taken.
	Create(ctx context.Context, principal *models.Principal) error

	// Get retrieves a principal by ID.
	Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error)

	// GetByGitHubID retrieves a principal by its GitHub user ID.
	GetByGitHubID(ctx context.Context, githubID string) (*models.Principal, error)

	// Update updates display attributes of an existing principal.
	Update(ctx context.Context, principal *models.Principal) error
}
