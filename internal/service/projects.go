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

// CreateProject validates req and stores a new project in scope. The
// referenced client must exist in the same organization; the store enforces
// this again at write time so a concurrent client delete cannot slip through.
func (s *Service) CreateProject(ctx context.Context, req validation.CreateProjectRequest, id *identity.Identity, scope identity.OrganizationScope) (*models.Project, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageProjects)); err != nil {
		return nil, err
	}

	input, err := req.Validate()
	if err != nil {
		return nil, err
	}

	if err := s.resolveClient(ctx, scope, input.ClientID); err != nil {
		return nil, err
	}

	projectID, err := s.generateID()
	if err != nil {
		return nil, err
	}

	ownerID := id.ID
	if input.OwnerID != nil {
		if err := s.resolveOwner(ctx, scope, *input.OwnerID); err != nil {
			return nil, err
		}
		ownerID = *input.OwnerID
	}

	now := s.now()
	project := &models.Project{
		ProjectID:   projectID,
		OrgID:       scope.OrganizationID,
		ClientID:    input.ClientID,
		Title:       input.Title,
		Description: input.Description,
		OwnerID:     ownerID,
		Budget:      input.Budget,
		Priority:    input.Priority,
		CreatedBy:   id.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.stores.Projects.Create(ctx, project); err != nil {
		return nil, projectError(err)
	}

	telemetry.GetMetrics().ProjectsCreatedTotal.Add(ctx, 1)
	log.Info().
		Str("project_id", project.ProjectID.String()).
		Str("client_id", project.ClientID.String()).
		Str("org_id", project.OrgID.String()).
		Str("principal_id", id.ID.String()).
		Msg("Project created")

	return project, nil
}

// GetProject returns a project in scope.
func (s *Service) GetProject(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, projectID uuid.UUID) (*models.Project, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermProjectsRead)); err != nil {
		return nil, err
	}

	project, err := s.stores.Projects.Get(ctx, scope.OrganizationID, projectID)
	if err != nil {
		return nil, projectError(err)
	}
	return project, nil
}

// ProjectFilter narrows ListProjects.
type ProjectFilter struct {
	ClientID *uuid.UUID
	Limit    int
}

// ListProjects returns the projects in scope, newest first.
func (s *Service) ListProjects(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, filter ProjectFilter) ([]*models.Project, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermProjectsRead)); err != nil {
		return nil, err
	}

	projects, err := s.stores.Projects.List(ctx, scope.OrganizationID, store.ListProjectsOptions{
		ClientID:    filter.ClientID,
		ListOptions: store.ListOptions{Limit: filter.Limit},
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return projects, nil
}

// UpdateProject applies a partial update to a project in scope. Moving a
// project to another client re-checks the reference.
func (s *Service) UpdateProject(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, projectID uuid.UUID, req validation.UpdateProjectRequest) (*models.Project, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageProjects)); err != nil {
		return nil, err
	}

	project, err := s.stores.Projects.Get(ctx, scope.OrganizationID, projectID)
	if err != nil {
		return nil, projectError(err)
	}

	input, err := req.Apply(project)
	if err != nil {
		return nil, err
	}

	if input.ClientID != project.ClientID {
		if err := s.resolveClient(ctx, scope, input.ClientID); err != nil {
			return nil, err
		}
	}

	// an owner who has since left the organization is kept until changed
	if input.OwnerID != nil && *input.OwnerID != project.OwnerID {
		if err := s.resolveOwner(ctx, scope, *input.OwnerID); err != nil {
			return nil, err
		}
	}

	project.Title = input.Title
	project.Description = input.Description
	project.ClientID = input.ClientID
	project.Budget = input.Budget
	project.Priority = input.Priority
	if input.OwnerID != nil {
		project.OwnerID = *input.OwnerID
	}

	if err := s.stores.Projects.Update(ctx, project); err != nil {
		return nil, projectError(err)
	}

	return project, nil
}

// DeleteProject removes a project in scope.
func (s *Service) DeleteProject(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, projectID uuid.UUID) error {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageProjects)); err != nil {
		return err
	}

	if err := s.stores.Projects.Delete(ctx, scope.OrganizationID, projectID); err != nil {
		return projectError(err)
	}

	telemetry.GetMetrics().RecordDeleted(ctx, "project")
	log.Info().
		Str("project_id", projectID.String()).
		Str("org_id", scope.String()).
		Msg("Project deleted")

	return nil
}

// resolveClient checks that clientID names a client in scope.
func (s *Service) resolveClient(ctx context.Context, scope identity.OrganizationScope, clientID uuid.UUID) error {
	_, err := s.stores.Clients.Get(ctx, scope.OrganizationID, clientID)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrClientNotFound) {
		return apperr.InvalidReference("client not found in organization", err)
	}
	return apperr.Internal(err)
}

// resolveOwner checks that ownerID is a member of the organization in scope.
func (s *Service) resolveOwner(ctx context.Context, scope identity.OrganizationScope, ownerID uuid.UUID) error {
	memberships, err := s.stores.Memberships.ListByOrg(ctx, scope.OrganizationID)
	if err != nil {
		return apperr.Internal(err)
	}
	for _, m := range memberships {
		if m.PrincipalID == ownerID {
			return nil
		}
	}
	return apperr.InvalidReference("owner is not a member of the organization", nil)
}

func projectError(err error) error {
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		return apperr.NotFound("project not found", err)
	case errors.Is(err, store.ErrClientNotFound):
		return apperr.InvalidReference("client not found in organization", err)
	default:
		return apperr.Internal(err)
	}
}
