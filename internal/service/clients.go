package service

import (
	"context"
	"errors"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/funnelhq/funnel360/internal/telemetry"
	"github.com/funnelhq/funnel360/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateClient validates req and stores a new client in scope. Ownership is
// always taken from id; any createdBy in the request is ignored.
func (s *Service) CreateClient(ctx context.Context, req validation.CreateClientRequest, id *identity.Identity, scope identity.OrganizationScope) (*models.Client, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageClients)); err != nil {
		return nil, err
	}

	input, err := req.Validate()
	if err != nil {
		return nil, err
	}

	clientID, err := s.generateID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	client := &models.Client{
		ClientID:  clientID,
		OrgID:     scope.OrganizationID,
		Name:      input.Name,
		Email:     input.Email,
		Notes:     input.Notes,
		CreatedBy: id.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.stores.Clients.Create(ctx, client); err != nil {
		return nil, apperr.Internal(err)
	}

	telemetry.GetMetrics().ClientsCreatedTotal.Add(ctx, 1)
	log.Info().
		Str("client_id", client.ClientID.String()).
		Str("org_id", client.OrgID.String()).
		Str("principal_id", id.ID.String()).
		Msg("Client created")

	return client, nil
}

// GetClient returns a client in scope. Clients of other organizations are
// reported as not found.
func (s *Service) GetClient(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, clientID uuid.UUID) (*models.Client, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermClientsRead)); err != nil {
		return nil, err
	}

	client, err := s.stores.Clients.Get(ctx, scope.OrganizationID, clientID)
	if err != nil {
		return nil, clientError(err)
	}
	return client, nil
}

// ListClients returns the clients in scope, newest first.
func (s *Service) ListClients(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, limit int) ([]*models.Client, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermClientsRead)); err != nil {
		return nil, err
	}

	clients, err := s.stores.Clients.List(ctx, scope.OrganizationID, store.ListOptions{Limit: limit})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if clients == nil {
		clients = []*models.Client{}
	}
	return clients, nil
}

// UpdateClient applies a partial update to a client in scope.
func (s *Service) UpdateClient(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, clientID uuid.UUID, req validation.UpdateClientRequest) (*models.Client, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageClients)); err != nil {
		return nil, err
	}

	client, err := s.stores.Clients.Get(ctx, scope.OrganizationID, clientID)
	if err != nil {
		return nil, clientError(err)
	}

	input, err := req.Apply(client)
	if err != nil {
		return nil, err
	}

	client.Name = input.Name
	client.Email = input.Email
	client.Notes = input.Notes

	if err := s.stores.Clients.Update(ctx, client); err != nil {
		return nil, clientError(err)
	}

	return client, nil
}

// DeleteClient removes a client in scope. A client that still has projects
// cannot be deleted.
func (s *Service) DeleteClient(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, clientID uuid.UUID) error {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageClients)); err != nil {
		return err
	}

	if err := s.stores.Clients.Delete(ctx, scope.OrganizationID, clientID); err != nil {
		return clientError(err)
	}

	telemetry.GetMetrics().RecordDeleted(ctx, "client")
	log.Info().
		Str("client_id", clientID.String()).
		Str("org_id", scope.String()).
		Msg("Client deleted")

	return nil
}

func clientError(err error) error {
	switch {
	case errors.Is(err, store.ErrClientNotFound):
		return apperr.NotFound("client not found", err)
	case errors.Is(err, store.ErrClientInUse):
		return apperr.InvalidReference("client still has projects", err)
	default:
		return apperr.Internal(err)
	}
}
