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

// ClientStore implements store.ClientStore using in-memory storage.
type ClientStore struct {
	mu sync.RWMutex

	clients  map[uuid.UUID]*models.Client // client_id -> Client
	projects *ProjectStore                // set by NewProjectStore, used for delete checks
}

// NewClientStore creates a new in-memory client store.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: make(map[uuid.UUID]*models.Client),
	}
}

// Create inserts a new client.
func (s *ClientStore) Create(ctx context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ClientID]; exists {
		return store.ErrClientAlreadyExists
	}

	clone := *client
	s.clients[client.ClientID] = &clone

	return nil
}

// Get retrieves a client by ID within an organization.
func (s *ClientStore) Get(ctx context.Context, orgID, clientID uuid.UUID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.lookup(orgID, clientID)
	if !ok {
		return nil, store.ErrClientNotFound
	}

	clone := *client
	return &clone, nil
}

// List returns the organization's clients, newest first.
func (s *ClientStore) List(ctx context.Context, orgID uuid.UUID, opts store.ListOptions) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Client
	for _, client := range s.clients {
		if client.OrgID == orgID {
			clone := *client
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit := opts.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Update replaces the mutable fields of a client.
func (s *ClientStore) Update(ctx context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.lookup(client.OrgID, client.ClientID)
	if !ok {
		return store.ErrClientNotFound
	}

	client.UpdatedAt = time.Now()
	existing.Name = client.Name
	existing.Email = client.Email
	existing.Notes = client.Notes
	existing.UpdatedAt = client.UpdatedAt

	return nil
}

// Delete removes a client that no project references.
func (s *ClientStore) Delete(ctx context.Context, orgID, clientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(orgID, clientID); !ok {
		return store.ErrClientNotFound
	}

	// Lock order is always clients then projects.
	if s.projects != nil && s.projects.referencesClient(clientID) {
		return store.ErrClientInUse
	}

	delete(s.clients, clientID)

	return nil
}

// lookup must be called with s.mu held.
func (s *ClientStore) lookup(orgID, clientID uuid.UUID) (*models.Client, bool) {
	client, exists := s.clients[clientID]
	if !exists || client.OrgID != orgID {
		return nil, false
	}
	return client, true
}
