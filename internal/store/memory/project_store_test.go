package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestProjectStore_CreateRequiresClientInSameOrg(t *testing.T) {
	ctx := context.Background()
	clients := NewClientStore()
	projects := NewProjectStore(clients)

	orgA, orgB := uuid.New(), uuid.New()
	client := newTestClient(orgA, "Acme")
	require.NoError(t, clients.Create(ctx, client))

	t.Run("same org", func(t *testing.T) {
		require.NoError(t, projects.Create(ctx, newTestProject(orgA, client.ClientID)))
	})

	t.Run("other org", func(t *testing.T) {
		err := projects.Create(ctx, newTestProject(orgB, client.ClientID))
		require.Equal(t, store.ErrClientNotFound, err)
	})

	t.Run("unknown client", func(t *testing.T) {
		err := projects.Create(ctx, newTestProject(orgA, uuid.New()))
		require.Equal(t, store.ErrClientNotFound, err)
	})

	list, err := projects.List(ctx, orgB, store.ListProjectsOptions{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestProjectStore_ListByClient(t *testing.T) {
	ctx := context.Background()
	clients := NewClientStore()
	projects := NewProjectStore(clients)
	orgID := uuid.New()

	acme := newTestClient(orgID, "Acme")
	globex := newTestClient(orgID, "Globex")
	require.NoError(t, clients.Create(ctx, acme))
	require.NoError(t, clients.Create(ctx, globex))

	require.NoError(t, projects.Create(ctx, newTestProject(orgID, acme.ClientID)))
	require.NoError(t, projects.Create(ctx, newTestProject(orgID, acme.ClientID)))
	require.NoError(t, projects.Create(ctx, newTestProject(orgID, globex.ClientID)))

	list, err := projects.List(ctx, orgID, store.ListProjectsOptions{ClientID: &acme.ClientID})
	require.NoError(t, err)
	require.Len(t, list, 2)

	all, err := projects.List(ctx, orgID, store.ListProjectsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestProjectStore_UpdateRejectsForeignClient(t *testing.T) {
	ctx := context.Background()
	clients := NewClientStore()
	projects := NewProjectStore(clients)

	orgA, orgB := uuid.New(), uuid.New()
	mine := newTestClient(orgA, "Acme")
	theirs := newTestClient(orgB, "Initech")
	require.NoError(t, clients.Create(ctx, mine))
	require.NoError(t, clients.Create(ctx, theirs))

	project := newTestProject(orgA, mine.ClientID)
	require.NoError(t, projects.Create(ctx, project))

	project.ClientID = theirs.ClientID
	require.Equal(t, store.ErrClientNotFound, projects.Update(ctx, project))

	project.ClientID = mine.ClientID
	project.Priority = models.PriorityHigh
	require.NoError(t, projects.Update(ctx, project))

	got, err := projects.Get(ctx, orgA, project.ProjectID)
	require.NoError(t, err)
	require.Equal(t, models.PriorityHigh, got.Priority)
}

func TestProjectStore_ConcurrentCreateAndClientDelete(t *testing.T) {
	ctx := context.Background()
	clients := NewClientStore()
	projects := NewProjectStore(clients)
	orgID := uuid.New()

	client := newTestClient(orgID, "Acme")
	require.NoError(t, clients.Create(ctx, client))

	var (
		wg        sync.WaitGroup
		createErr error
		deleteErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		createErr = projects.Create(ctx, newTestProject(orgID, client.ClientID))
	}()
	go func() {
		defer wg.Done()
		deleteErr = clients.Delete(ctx, orgID, client.ClientID)
	}()
	wg.Wait()

	// Exactly one of the two wins; never a project pointing at a deleted client.
	if createErr == nil {
		require.Equal(t, store.ErrClientInUse, deleteErr)
		_, err := clients.Get(ctx, orgID, client.ClientID)
		require.NoError(t, err)
	} else {
		require.Equal(t, store.ErrClientNotFound, createErr)
		require.NoError(t, deleteErr)
	}
}
