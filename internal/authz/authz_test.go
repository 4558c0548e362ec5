package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy_Allows(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name           string
		role           models.Role
		permission     Permission
		expectedResult bool
	}{
		{name: "owner can manage team", role: models.RoleOwner, permission: PermManageTeam, expectedResult: true},
		{name: "admin can manage clients", role: models.RoleAdmin, permission: PermManageClients, expectedResult: true},
		{name: "member can manage clients", role: models.RoleMember, permission: PermManageClients, expectedResult: true},
		{name: "member can manage projects", role: models.RoleMember, permission: PermManageProjects, expectedResult: true},
		{name: "member can read team", role: models.RoleMember, permission: PermTeamRead, expectedResult: true},
		{name: "member cannot manage team", role: models.RoleMember, permission: PermManageTeam, expectedResult: false},
		{name: "viewer can read clients", role: models.RoleViewer, permission: PermClientsRead, expectedResult: true},
		{name: "viewer can read projects", role: models.RoleViewer, permission: PermProjectsRead, expectedResult: true},
		{name: "viewer cannot manage clients", role: models.RoleViewer, permission: PermManageClients, expectedResult: false},
		{name: "viewer cannot manage projects", role: models.RoleViewer, permission: PermManageProjects, expectedResult: false},
		{name: "unknown role has no permissions", role: models.Role("guest"), permission: PermClientsRead, expectedResult: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedResult, policy.Allows(tt.role, tt.permission))
		})
	}
}

func TestEvaluator_CanAccess(t *testing.T) {
	orgA := identity.Scope(uuid.Must(uuid.NewV7()))
	orgB := identity.Scope(uuid.Must(uuid.NewV7()))

	member := &identity.Identity{
		ID:          uuid.Must(uuid.NewV7()),
		Memberships: []identity.Membership{{OrganizationScope: orgA, Role: models.RoleMember}},
	}
	viewer := &identity.Identity{
		ID:          uuid.Must(uuid.NewV7()),
		Memberships: []identity.Membership{{OrganizationScope: orgA, Role: models.RoleViewer}},
	}
	loner := &identity.Identity{ID: uuid.Must(uuid.NewV7())}

	eval := NewEvaluator(nil)

	tests := []struct {
		name     string
		identity *identity.Identity
		scope    identity.OrganizationScope
		req      Requirement
		wantKind apperr.Kind
		allowed  bool
	}{
		{name: "anonymous", identity: nil, scope: orgA, req: Require(PermClientsRead), wantKind: apperr.KindUnauthenticated},
		{name: "anonymous without scope", identity: nil, req: Requirement{}, wantKind: apperr.KindUnauthenticated},
		{name: "member with permission", identity: member, scope: orgA, req: Require(PermManageClients), allowed: true},
		{name: "member without permission", identity: member, scope: orgA, req: Require(PermManageTeam), wantKind: apperr.KindForbidden},
		{name: "in scope and no permission tag", identity: viewer, scope: orgA, req: Requirement{RequireOrganization: true}, allowed: true},
		{name: "viewer cannot write", identity: viewer, scope: orgA, req: Require(PermManageProjects), wantKind: apperr.KindForbidden},
		{name: "other organization with permission", identity: member, scope: orgB, req: Require(PermClientsRead), wantKind: apperr.KindForbidden},
		{name: "other organization without permission tag", identity: member, scope: orgB, req: Requirement{}, wantKind: apperr.KindForbidden},
		{name: "organization required but missing", identity: member, req: Require(PermClientsRead), wantKind: apperr.KindOrganizationRequired},
		{name: "no memberships and no organization needed", identity: loner, req: Requirement{}, allowed: true},
		{name: "no memberships and organization needed", identity: loner, req: Requirement{RequireOrganization: true}, wantKind: apperr.KindOrganizationRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.CanAccess(tt.identity, tt.scope, tt.req)
			if tt.allowed {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, tt.wantKind, apperr.KindOf(err))
		})
	}
}

func TestParsePolicy(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		policy, err := ParsePolicy([]byte(`
roles:
  owner: [clients:read, manage-clients, projects:read, manage-projects, team:read, manage-team]
  viewer: [clients:read]
`))
		require.NoError(t, err)
		require.True(t, policy.Allows(models.RoleViewer, PermClientsRead))
		require.False(t, policy.Allows(models.RoleViewer, PermProjectsRead))
		require.False(t, policy.Allows(models.RoleMember, PermClientsRead))
	})

	t.Run("unknown permission", func(t *testing.T) {
		_, err := ParsePolicy([]byte("roles:\n  owner: [clients:write]\n"))
		require.ErrorContains(t, err, "unknown permission")
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := ParsePolicy([]byte("roles:\n  superuser: [clients:read]\n"))
		require.ErrorContains(t, err, "unknown role")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParsePolicy([]byte("{}"))
		require.Error(t, err)
	})
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  admin: [team:read]\n"), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	require.True(t, policy.Allows(models.RoleAdmin, PermTeamRead))

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
