package store

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

var (
	ErrClientNotFound      = errors.New("client not found")
	ErrClientAlreadyExists = errors.New("client already exists")
	ErrClientInUse         = errors.New("client is referenced by projects")
)

// ClientStore persists clients. Every method is scoped to an organization: a
// client in another organization is reported as ErrClientNotFound.
type ClientStore interface {
	// Create inserts a new client.
	Create(ctx context.Context, client *models.Client) error

	// Get retrieves a client by ID within an organization.
	Get(ctx context.Context, orgID, clientID uuid.UUID) (*models.Client, error)

	// List returns the organization's clients, newest first.
	List(ctx context.Context, orgID uuid.UUID, opts ListOptions) ([]*models.Client, error)

	// Update replaces the mutable fields of a client.
	Update(ctx context.Context, client *models.Client) error

	// Delete removes a client.
	// Returns ErrClientInUse if projects still reference it.
	Delete(ctx context.Context, orgID, clientID uuid.UUID) error
}

// ListOptions bounds list queries.
type ListOptions struct {
	Limit int // Max results (0 = DefaultListLimit)
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// EffectiveLimit returns the limit to apply for the options.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		return MaxListLimit
	}
	return o.Limit
}
