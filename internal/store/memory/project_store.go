package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
)

// ProjectStore implements store.ProjectStore using in-memory storage.
// Client references are checked against the linked ClientStore while its
// read lock is held, so a client cannot disappear between check and insert.
type ProjectStore struct {
	mu sync.RWMutex

	projects map[uuid.UUID]*models.Project // project_id -> Project
	clients  *ClientStore
}

// NewProjectStore creates a new in-memory project store linked to clients.
func NewProjectStore(clients *ClientStore) *ProjectStore {
	s := &ProjectStore{
		projects: make(map[uuid.UUID]*models.Project),
		clients:  clients,
	}

	clients.mu.Lock()
	clients.projects = s
	clients.mu.Unlock()

	return s
}

// Create inserts a new project.
func (s *ProjectStore) Create(ctx context.Context, project *models.Project) error {
	s.clients.mu.RLock()
	defer s.clients.mu.RUnlock()

	if _, ok := s.clients.lookup(project.OrgID, project.ClientID); !ok {
		return store.ErrClientNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ProjectID]; exists {
		return store.ErrProjectAlreadyExists
	}

	clone := *project
	s.projects[project.ProjectID] = &clone

	return nil
}

// Get retrieves a project by ID within an organization.
func (s *ProjectStore) Get(ctx context.Context, orgID, projectID uuid.UUID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.lookup(orgID, projectID)
	if !ok {
		return nil, store.ErrProjectNotFound
	}

	clone := *project
	return &clone, nil
}

// List returns the organization's projects, newest first.
func (s *ProjectStore) List(ctx context.Context, orgID uuid.UUID, opts store.ListProjectsOptions) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Project
	for _, project := range s.projects {
		if project.OrgID != orgID {
			continue
		}
		if opts.ClientID != nil && project.ClientID != *opts.ClientID {
			continue
		}
		clone := *project
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit := opts.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Update replaces the mutable fields of a project.
func (s *ProjectStore) Update(ctx context.Context, project *models.Project) error {
	s.clients.mu.RLock()
	defer s.clients.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.lookup(project.OrgID, project.ProjectID)
	if !ok {
		return store.ErrProjectNotFound
	}

	if _, ok := s.clients.lookup(project.OrgID, project.ClientID); !ok {
		return store.ErrClientNotFound
	}

	project.UpdatedAt = time.Now()
	existing.Title = project.Title
	existing.Description = project.Description
	existing.ClientID = project.ClientID
	existing.OwnerID = project.OwnerID
	existing.Budget = project.Budget
	existing.Priority = project.Priority
	existing.UpdatedAt = project.UpdatedAt

	return nil
}

// Delete removes a project.
func (s *ProjectStore) Delete(ctx context.Context, orgID, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(orgID, projectID); !ok {
		return store.ErrProjectNotFound
	}

	delete(s.projects, projectID)

	return nil
}

// referencesClient reports whether any project points at the client.
func (s *ProjectStore) referencesClient(clientID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, project := range s.projects {
		if project.ClientID == clientID {
			return true
		}
	}
	return false
}

// lookup must be called with s.mu held.
func (s *ProjectStore) lookup(orgID, projectID uuid.UUID) (*models.Project, bool) {
	project, exists := s.projects[projectID]
	if !exists || project.OrgID != orgID {
		return nil, false
	}
	return project, true
}
