//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (store.Stores, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{
		ConnString:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		AutoMigrate: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return NewStores(pool), cleanup
}

func TestIntegration_OrganizationScopedRecords(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Microsecond)
	owner := uuid.Must(uuid.NewV7())

	newOrg := func(name string) *models.Organization {
		org := &models.Organization{
			OrgID:            uuid.Must(uuid.NewV7()),
			Name:             name,
			OwnerPrincipalID: owner,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		require.NoError(t, stores.Organizations.Create(ctx, org))
		return org
	}

	orgA := newOrg("Acme")
	orgB := newOrg("Globex")

	t.Run("create adds owner membership", func(t *testing.T) {
		memberships, err := stores.Memberships.ListByOrg(ctx, orgA.OrgID)
		require.NoError(t, err)
		require.Len(t, memberships, 1)
		require.Equal(t, owner, memberships[0].PrincipalID)
		require.Equal(t, models.RoleOwner, memberships[0].Role)
	})

	client := &models.Client{
		ClientID:  uuid.Must(uuid.NewV7()),
		OrgID:     orgA.OrgID,
		Name:      "Initech",
		Email:     "ops@initech.example",
		CreatedBy: owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, stores.Clients.Create(ctx, client))

	t.Run("client is invisible from another organization", func(t *testing.T) {
		_, err := stores.Clients.Get(ctx, orgB.OrgID, client.ClientID)
		require.ErrorIs(t, err, store.ErrClientNotFound)
	})

	project := &models.Project{
		ProjectID: uuid.Must(uuid.NewV7()),
		OrgID:     orgA.OrgID,
		ClientID:  client.ClientID,
		Title:     "Website relaunch",
		OwnerID:   owner,
		Budget:    decimal.RequireFromString("12500.50"),
		Priority:  models.PriorityHigh,
		CreatedBy: owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("project round trip keeps budget precision", func(t *testing.T) {
		require.NoError(t, stores.Projects.Create(ctx, project))

		got, err := stores.Projects.Get(ctx, orgA.OrgID, project.ProjectID)
		require.NoError(t, err)
		require.True(t, project.Budget.Equal(got.Budget))
		require.Equal(t, models.PriorityHigh, got.Priority)

		clientID := client.ClientID
		list, err := stores.Projects.List(ctx, orgA.OrgID, store.ListProjectsOptions{ClientID: &clientID})
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("project with client from another organization is rejected", func(t *testing.T) {
		foreign := *project
		foreign.ProjectID = uuid.Must(uuid.NewV7())
		foreign.OrgID = orgB.OrgID

		err := stores.Projects.Create(ctx, &foreign)
		require.ErrorIs(t, err, store.ErrClientNotFound)
	})

	t.Run("referenced client cannot be deleted", func(t *testing.T) {
		err := stores.Clients.Delete(ctx, orgA.OrgID, client.ClientID)
		require.ErrorIs(t, err, store.ErrClientInUse)

		require.NoError(t, stores.Projects.Delete(ctx, orgA.OrgID, project.ProjectID))
		require.NoError(t, stores.Clients.Delete(ctx, orgA.OrgID, client.ClientID))
	})
}

func TestIntegration_Sessions(t *testing.T) {
	ctx := context.Background()
	stores, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	now := time.Now()
	session := &models.Session{
		SessionID:   uuid.Must(uuid.NewV7()),
		PrincipalID: uuid.Must(uuid.NewV7()),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		LastUsedAt:  now,
		UserAgent:   "test",
		IPAddress:   "10.0.0.1",
	}
	require.NoError(t, stores.Sessions.Create(ctx, session))

	got, err := stores.Sessions.Get(ctx, session.SessionID)
	require.NoError(t, err)
	require.Nil(t, got.ActiveOrgID)
	require.Equal(t, "10.0.0.1", got.IPAddress)

	expired := &models.Session{
		SessionID:   uuid.Must(uuid.NewV7()),
		PrincipalID: session.PrincipalID,
		CreatedAt:   now.Add(-2 * time.Hour),
		ExpiresAt:   now.Add(-time.Hour),
		LastUsedAt:  now.Add(-2 * time.Hour),
	}
	require.NoError(t, stores.Sessions.Create(ctx, expired))

	_, err = stores.Sessions.Get(ctx, expired.SessionID)
	require.ErrorIs(t, err, store.ErrSessionExpired)

	count, err := stores.Sessions.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
