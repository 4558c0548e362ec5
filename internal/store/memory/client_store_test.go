package memory

import (
	"context"
	"testing"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(orgID uuid.UUID, name string) *models.Client {
	now := time.Now()
	return &models.Client{
		ClientID:  uuid.New(),
		OrgID:     orgID,
		Name:      name,
		Email:     "billing@example.com",
		CreatedBy: uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestProject(orgID, clientID uuid.UUID) *models.Project {
	now := time.Now()
	return &models.Project{
		ProjectID: uuid.New(),
		OrgID:     orgID,
		ClientID:  clientID,
		Title:     "Website refresh",
		OwnerID:   uuid.New(),
		Budget:    decimal.RequireFromString("1000.00"),
		Priority:  models.PriorityMedium,
		CreatedBy: uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestClientStore_OrganizationScoping(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()

	orgA, orgB := uuid.New(), uuid.New()
	client := newTestClient(orgA, "Acme")
	require.NoError(t, st.Create(ctx, client))

	_, err := st.Get(ctx, orgA, client.ClientID)
	require.NoError(t, err)

	_, err = st.Get(ctx, orgB, client.ClientID)
	require.Equal(t, store.ErrClientNotFound, err)

	list, err := st.List(ctx, orgB, store.ListOptions{})
	require.NoError(t, err)
	require.Empty(t, list)

	require.Equal(t, store.ErrClientNotFound, st.Delete(ctx, orgB, client.ClientID))
}

func TestClientStore_ListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()
	orgID := uuid.New()

	base := time.Now()
	for i, name := range []string{"first", "second", "third"} {
		c := newTestClient(orgID, name)
		c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.Create(ctx, c))
	}

	list, err := st.List(ctx, orgID, store.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "third", list[0].Name)
	require.Equal(t, "second", list[1].Name)
}

func TestClientStore_Update(t *testing.T) {
	ctx := context.Background()
	st := NewClientStore()
	orgID := uuid.New()

	client := newTestClient(orgID, "Acme")
	require.NoError(t, st.Create(ctx, client))

	client.Name = "Acme Corp"
	client.Notes = "renewal in May"
	require.NoError(t, st.Update(ctx, client))

	got, err := st.Get(ctx, orgID, client.ClientID)
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", got.Name)
	require.Equal(t, "renewal in May", got.Notes)
}

func TestClientStore_DeleteReferencedClient(t *testing.T) {
	ctx := context.Background()
	clients := NewClientStore()
	projects := NewProjectStore(clients)
	orgID := uuid.New()

	client := newTestClient(orgID, "Acme")
	require.NoError(t, clients.Create(ctx, client))

	project := newTestProject(orgID, client.ClientID)
	require.NoError(t, projects.Create(ctx, project))

	require.Equal(t, store.ErrClientInUse, clients.Delete(ctx, orgID, client.ClientID))

	require.NoError(t, projects.Delete(ctx, orgID, project.ProjectID))
	require.NoError(t, clients.Delete(ctx, orgID, client.ClientID))
}
