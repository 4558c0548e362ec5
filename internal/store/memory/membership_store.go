package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
)

type membershipKey struct {
	orgID       uuid.UUID
	principalID uuid.UUID
}

// MembershipStore implements store.MembershipStore using in-memory storage.
type MembershipStore struct {
	mu sync.RWMutex

	memberships map[membershipKey]*models.Membership
}

// NewMembershipStore creates a new in-memory membership store.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		memberships: make(map[membershipKey]*models.Membership),
	}
}

// Add adds a principal to an organization.
func (s *MembershipStore) Add(ctx context.Context, membership *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{orgID: membership.OrgID, principalID: membership.PrincipalID}
	if _, exists := s.memberships[key]; exists {
		return store.ErrMembershipAlreadyExists
	}

	clone := *membership
	s.memberships[key] = &clone

	return nil
}

// Remove removes a principal from an organization.
func (s *MembershipStore) Remove(ctx context.Context, orgID, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{orgID: orgID, principalID: principalID}
	if _, exists := s.memberships[key]; !exists {
		return store.ErrMembershipNotFound
	}

	delete(s.memberships, key)

	return nil
}

// ListByPrincipal returns all memberships of a principal.
func (s *MembershipStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error) {
	return s.list(func(m *models.Membership) bool { return m.PrincipalID == principalID }), nil
}

// ListByOrg returns all memberships of an organization, oldest first.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	return s.list(func(m *models.Membership) bool { return m.OrgID == orgID }), nil
}

func (s *MembershipStore) list(match func(*models.Membership) bool) []*models.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Membership
	for _, m := range s.memberships {
		if match(m) {
			clone := *m
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result
}
