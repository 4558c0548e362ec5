package memory

import (
	"context"
	"sync"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
)

// PrincipalStore implements store.PrincipalStore using in-memory storage.
type PrincipalStore struct {
	mu sync.RWMutex

	principals map[uuid.UUID]*models.Principal // principal_id -> Principal
	byGitHubID map[string]uuid.UUID            // github_id -> principal_id
}

// NewPrincipalStore creates a new in-memory principal store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{
		principals: make(map[uuid.UUID]*models.Principal),
		byGitHubID: make(map[string]uuid.UUID),
	}
}

// Create creates a new principal.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.principals[principal.PrincipalID]; exists {
		return store.ErrPrincipalAlreadyExists
	}
	if principal.GitHubID != nil {
		if _, exists := s.byGitHubID[*principal.GitHubID]; exists {
			return store.ErrPrincipalAlreadyExists
		}
		s.byGitHubID[*principal.GitHubID] = principal.PrincipalID
	}

	clone := *principal
	s.principals[principal.PrincipalID] = &clone

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principal, exists := s.principals[principalID]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *principal
	return &clone, nil
}

// GetByGitHubID retrieves a principal by GitHub user ID.
func (s *PrincipalStore) GetByGitHubID(ctx context.Context, githubID string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principalID, exists := s.byGitHubID[githubID]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *s.principals[principalID]
	return &clone, nil
}

// Update updates display attributes of an existing principal.
func (s *PrincipalStore) Update(ctx context.Context, principal *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.principals[principal.PrincipalID]
	if !exists {
		return store.ErrPrincipalNotFound
	}

	principal.UpdatedAt = time.Now()

	// GitHub ID is immutable
	clone := *principal
	clone.GitHubID = existing.GitHubID
	s.principals[principal.PrincipalID] = &clone

	return nil
}
