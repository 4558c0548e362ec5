package service

import (
	"context"
	"errors"
	"time"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/funnelhq/funnel360/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TeamMember is a member of an organization as shown in the team directory.
type TeamMember struct {
	PrincipalID uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
	Role        models.Role `json:"role"`
	JoinedAt    time.Time   `json:"joinedAt"`
}

// OrganizationSummary is an organization the caller belongs to.
type OrganizationSummary struct {
	OrganizationID uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Role           models.Role `json:"role"`
	Owned          bool        `json:"owned"`
}

// CreateOrganization creates an organization owned by the caller.
func (s *Service) CreateOrganization(ctx context.Context, id *identity.Identity, req validation.CreateOrganizationRequest) (*models.Organization, error) {
	if err := s.authorize(ctx, id, identity.OrganizationScope{}, authz.Requirement{}); err != nil {
		return nil, err
	}

	name, err := req.Validate()
	if err != nil {
		return nil, err
	}

	orgID, err := s.generateID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	org := &models.Organization{
		OrgID:            orgID,
		Name:             name,
		OwnerPrincipalID: id.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.stores.Organizations.Create(ctx, org); err != nil {
		return nil, apperr.Internal(err)
	}

	if s.cache != nil {
		s.cache.Invalidate(id.ID)
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("principal_id", id.ID.String()).
		Msg("Organization created")

	return org, nil
}

// ListOrganizations returns the organizations the caller belongs to.
func (s *Service) ListOrganizations(ctx context.Context, id *identity.Identity) ([]OrganizationSummary, error) {
	if err := s.authorize(ctx, id, identity.OrganizationScope{}, authz.Requirement{}); err != nil {
		return nil, err
	}

	owned, err := s.stores.Organizations.ListByOwner(ctx, id.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	ownedIDs := make(map[uuid.UUID]bool, len(owned))
	for _, org := range owned {
		ownedIDs[org.OrgID] = true
	}

	summaries := make([]OrganizationSummary, 0, len(id.Memberships))
	for _, m := range id.Memberships {
		org, err := s.stores.Organizations.Get(ctx, m.OrganizationID)
		if err != nil {
			if errors.Is(err, store.ErrOrganizationNotFound) {
				continue
			}
			return nil, apperr.Internal(err)
		}
		summaries = append(summaries, OrganizationSummary{
			OrganizationID: org.OrgID,
			Name:           org.Name,
			Role:           m.Role,
			Owned:          ownedIDs[org.OrgID],
		})
	}

	return summaries, nil
}

// RenameOrganization changes the display name of scope. Requires manage-team.
func (s *Service) RenameOrganization(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, req validation.CreateOrganizationRequest) (*models.Organization, error) {
	if err := s.authorize(ctx, id, scope, authz.Require(authz.PermManageTeam)); err != nil {
		return nil, err
	}

	name, err := req.Validate()
	if err != nil {
		return nil, err
	}

	org, err := s.stores.Organizations.Get(ctx, scope.OrganizationID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, apperr.NotFound("organization not found", err)
		}
		return nil, apperr.Internal(err)
	}

	org.Name = name
	org.UpdatedAt = s.now()
	if err := s.stores.Organizations.Update(ctx, org); err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, apperr.NotFound("organization not found", err)
		}
		return nil, apperr.Internal(err)
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("principal_id", id.ID.String()).
		Msg("Organization renamed")

	return org, nil
}

// SelectOrganization records scope as the active organization of a session.
func (s *Service) SelectOrganization(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, sessionID uuid.UUID) error {
	if err := s.authorize(ctx, id, scope, authz.Requirement{RequireOrganization: true}); err != nil {
		return err
	}

	orgID := scope.OrganizationID
	if err := s.stores.Sessions.SetActiveOrg(ctx, sessionID, &orgID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return apperr.Unauthenticated("session not found")
		}
		return apperr.Internal(err)
	}
	return nil
}

// ListTeamMembers returns the members of scope. When the service allows
// public team listings, anonymous callers and authenticated non-members get
// the same directory without emails.
func (s *Service) ListTeamMembers(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope) ([]TeamMember, error) {
	public := false

	switch {
	case s.publicTeamMembers && id == nil:
		public = true
	default:
		err := s.authorize(ctx, id, scope, authz.Require(authz.PermTeamRead))
		if err == nil {
			break
		}
		if !s.publicTeamMembers || apperr.KindOf(err) != apperr.KindForbidden {
			return nil, err
		}
		public = true
	}

	if public {
		if scope.IsZero() {
			return nil, apperr.OrganizationRequired()
		}
		log.Warn().
			Str("org_id", scope.String()).
			Bool("authenticated", id != nil).
			Msg("Team members listed publicly")
	}

	memberships, err := s.stores.Memberships.ListByOrg(ctx, scope.OrganizationID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	members := make([]TeamMember, 0, len(memberships))
	for _, m := range memberships {
		member := TeamMember{
			PrincipalID: m.PrincipalID,
			Role:        m.Role,
			JoinedAt:    m.CreatedAt,
		}

		principal, err := s.stores.Principals.Get(ctx, m.PrincipalID)
		switch {
		case err == nil:
			member.Name = principal.Name
			if !public {
				member.Email = principal.DisplayEmail()
			}
		case errors.Is(err, store.ErrPrincipalNotFound):
			// Identities from an external issuer have no local profile.
		default:
			return nil, apperr.Internal(err)
		}

		members = append(members, member)
	}

	return members, nil
}
