// Package identity resolves who is calling and which organizations they
// belong to. Providers are interchangeable: first-party sessions, bearer
// tokens from a trusted issuer, and a development header.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned when a caller presented credentials that
// could not be verified. It is distinct from presenting no credentials.
var ErrInvalidCredentials = errors.New("invalid credentials")

// OrganizationScope is the tenant boundary a request acts within.
// The zero value means no organization was selected.
type OrganizationScope struct {
	OrganizationID uuid.UUID
}

// Scope returns the scope for an organization.
func Scope(orgID uuid.UUID) OrganizationScope {
	return OrganizationScope{OrganizationID: orgID}
}

// ParseScope parses an organization id. An empty string yields the zero scope.
func ParseScope(raw string) (OrganizationScope, error) {
	if raw == "" {
		return OrganizationScope{}, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return OrganizationScope{}, fmt.Errorf("invalid organization id %q: %w", raw, err)
	}
	return Scope(id), nil
}

func (s OrganizationScope) IsZero() bool {
	return s.OrganizationID == uuid.Nil
}

func (s OrganizationScope) String() string {
	if s.IsZero() {
		return ""
	}
	return s.OrganizationID.String()
}

// Membership is an identity's role within one organization.
type Membership struct {
	OrganizationScope
	Role models.Role
}

// Identity is an authenticated caller. It is built once per request and
// never modified afterwards; use WithMemberships to derive a new value.
type Identity struct {
	ID    uuid.UUID
	Name  string
	Email string

	// ActiveScope is the organization the caller last selected, if any.
	ActiveScope OrganizationScope

	Memberships []Membership
}

// MembershipIn returns the identity's membership in scope.
func (i *Identity) MembershipIn(scope OrganizationScope) (Membership, bool) {
	for _, m := range i.Memberships {
		if m.OrganizationScope == scope {
			return m, true
		}
	}
	return Membership{}, false
}

// WithMemberships returns a copy of the identity carrying memberships.
func (i *Identity) WithMemberships(memberships []Membership) *Identity {
	clone := *i
	clone.Memberships = slices.Clone(memberships)
	return &clone
}

// DefaultScope picks the organization a caller works in when none is given:
// the active selection if still a member, otherwise the oldest membership.
func (i *Identity) DefaultScope() OrganizationScope {
	if !i.ActiveScope.IsZero() {
		if _, ok := i.MembershipIn(i.ActiveScope); ok {
			return i.ActiveScope
		}
	}
	if len(i.Memberships) > 0 {
		return i.Memberships[0].OrganizationScope
	}
	return OrganizationScope{}
}

// Provider resolves identities from requests.
type Provider interface {
	// CurrentIdentity returns the caller, or nil when no credentials were
	// presented. Credentials that fail verification yield ErrInvalidCredentials.
	CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error)

	// Memberships returns the organizations the identity belongs to.
	Memberships(ctx context.Context, id Identity) ([]Membership, error)
}
