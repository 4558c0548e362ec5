package memory

import (
	"context"
	"sync"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type OrganizationStore struct {
	mu sync.RWMutex

	organizations map[uuid.UUID]*models.Organization // org_id -> Organization
	memberships   *MembershipStore
}

// NewOrganizationStore creates a new in-memory organization store. Owner
// memberships are written to the given membership store.
func NewOrganizationStore(memberships *MembershipStore) *OrganizationStore {
	return &OrganizationStore{
		organizations: make(map[uuid.UUID]*models.Organization),
		memberships:   memberships,
	}
}

// Create creates a new organization in memory and makes the owner a member.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if organization already exists
	if _, exists := s.organizations[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	err := s.memberships.Add(ctx, &models.Membership{
		OrgID:       org.OrgID,
		PrincipalID: org.OwnerPrincipalID,
		Role:        models.RoleOwner,
		CreatedAt:   org.CreatedAt,
	})
	if err != nil {
		return err
	}

	// Clone to avoid external modifications
	clone := *org
	s.organizations[org.OrgID] = &clone

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// Update updates an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[org.OrgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	org.UpdatedAt = time.Now()

	clone := *org
	s.organizations[org.OrgID] = &clone

	return nil
}

// ListByOwner returns all organizations owned by a specific principal.
func (s *OrganizationStore) ListByOwner(ctx context.Context, ownerPrincipalID uuid.UUID) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Organization
	for _, org := range s.organizations {
		if org.OwnedBy(ownerPrincipalID) {
			clone := *org
			result = append(result, &clone)
		}
	}

	return result, nil
}
