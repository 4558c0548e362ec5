// Package service implements the organization-scoped operations on clients,
// projects, teams and organizations. Every operation checks the caller with
// the authorization evaluator before touching the stores.
package service

import (
	"context"
	"time"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/funnelhq/funnel360/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MembershipCache is notified when a principal's memberships change.
type MembershipCache interface {
	Invalidate(principalID uuid.UUID)
}

// Service is safe for concurrent use; the stores are its only shared state.
type Service struct {
	stores    store.Stores
	evaluator *authz.Evaluator
	cache     MembershipCache

	publicTeamMembers bool

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// Option configures a Service.
type Option func(*Service)

// WithMembershipCache invalidates cached memberships after organization changes.
func WithMembershipCache(cache MembershipCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithPublicTeamMembers lets anonymous callers list an organization's members.
func WithPublicTeamMembers(public bool) Option {
	return func(s *Service) {
		s.publicTeamMembers = public
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a service over stores.
func New(stores store.Stores, evaluator *authz.Evaluator, opts ...Option) *Service {
	s := &Service{
		stores:    stores,
		evaluator: evaluator,
		now:       time.Now,
		newID:     uuid.NewV7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize runs the evaluator and counts denials.
func (s *Service) authorize(ctx context.Context, id *identity.Identity, scope identity.OrganizationScope, req authz.Requirement) error {
	err := s.evaluator.CanAccess(id, scope, req)
	if err == nil {
		return nil
	}

	kind := apperr.KindOf(err)
	telemetry.GetMetrics().RecordDenied(ctx, kind.String())

	event := log.Debug().
		Str("kind", kind.String()).
		Str("org_id", scope.String()).
		Str("permission", string(req.Permission))
	if id != nil {
		event = event.Str("principal_id", id.ID.String())
	}
	event.Msg("Access denied")

	return err
}

func (s *Service) generateID() (uuid.UUID, error) {
	id, err := s.newID()
	if err != nil {
		return uuid.Nil, apperr.Internal(err)
	}
	return id, nil
}
