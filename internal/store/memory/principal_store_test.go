package memory

import (
	"context"
	"testing"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestPrincipal(t *testing.T, githubID string) *models.Principal {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	return &models.Principal{
		PrincipalID: id,
		Name:        "Jane Doe",
		GitHubID:    &githubID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPrincipalStore_Create(t *testing.T) {
	t.Run("create new principal", func(t *testing.T) {
		st := NewPrincipalStore()
		ctx := context.Background()

		err := st.Create(ctx, newTestPrincipal(t, "1001"))
		require.NoError(t, err)
	})

	t.Run("create duplicate principal returns error", func(t *testing.T) {
		st := NewPrincipalStore()
		ctx := context.Background()

		principal := newTestPrincipal(t, "1001")
		require.NoError(t, st.Create(ctx, principal))

		err := st.Create(ctx, principal)
		require.Equal(t, store.ErrPrincipalAlreadyExists, err)
	})

	t.Run("duplicate github id returns error", func(t *testing.T) {
		st := NewPrincipalStore()
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, newTestPrincipal(t, "1001")))

		err := st.Create(ctx, newTestPrincipal(t, "1001"))
		require.Equal(t, store.ErrPrincipalAlreadyExists, err)
	})
}

func TestPrincipalStore_GetByGitHubID(t *testing.T) {
	st := NewPrincipalStore()
	ctx := context.Background()

	principal := newTestPrincipal(t, "4242")
	require.NoError(t, st.Create(ctx, principal))

	got, err := st.GetByGitHubID(ctx, "4242")
	require.NoError(t, err)
	require.Equal(t, principal.PrincipalID, got.PrincipalID)

	_, err = st.GetByGitHubID(ctx, "missing")
	require.Equal(t, store.ErrPrincipalNotFound, err)
}

func TestPrincipalStore_Update(t *testing.T) {
	st := NewPrincipalStore()
	ctx := context.Background()

	principal := newTestPrincipal(t, "7")
	require.NoError(t, st.Create(ctx, principal))

	email := "jane@example.com"
	principal.Name = "Jane Q. Doe"
	principal.Email = &email
	require.NoError(t, st.Update(ctx, principal))

	got, err := st.Get(ctx, principal.PrincipalID)
	require.NoError(t, err)
	require.Equal(t, "Jane Q. Doe", got.Name)
	require.Equal(t, "jane@example.com", got.DisplayEmail())

	missing := newTestPrincipal(t, "8")
	require.Equal(t, store.ErrPrincipalNotFound, st.Update(ctx, missing))
}
