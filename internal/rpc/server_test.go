package rpc_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/client"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/logger"
	"github.com/funnelhq/funnel360/internal/rpc"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/funnelhq/funnel360/internal/store/memory"
	"github.com/funnelhq/funnel360/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type harness struct {
	url string
	svc *service.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	stores := memory.NewStores()
	loader := identity.NewMembershipLoader(stores.Memberships, time.Minute)
	svc := service.New(stores, authz.NewEvaluator(nil), service.WithMembershipCache(loader))

	handler := rpc.NewServer(svc).Handler(
		connect.WithInterceptors(logger.NewConnectRequests(zerolog.Nop())),
	)
	srv := httptest.NewServer(identity.Middleware(identity.NewHeaderProvider(loader))(handler))
	t.Cleanup(srv.Close)

	return &harness{url: srv.URL, svc: svc}
}

func (h *harness) clients(t *testing.T, auth *client.AuthInterceptor) *client.Clients {
	t.Helper()
	clients, err := client.NewClients(client.Config{ServerURL: h.url, Timeout: 5 * time.Second},
		connect.WithInterceptors(auth))
	require.NoError(t, err)
	return clients
}

func (h *harness) newOrg(t *testing.T, user uuid.UUID) string {
	t.Helper()
	org, err := h.svc.CreateOrganization(context.Background(), &identity.Identity{ID: user},
		validation.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	return org.OrgID.String()
}

func errorCode(t *testing.T, err error) (connect.Code, string) {
	t.Helper()
	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr), "expected connect error, got %v", err)
	return cerr.Code(), cerr.Meta().Get("Funnel-Error-Code")
}

func TestRecordsOverRPC(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	user := uuid.Must(uuid.NewV7())
	org := h.newOrg(t, user)

	c := h.clients(t, &client.AuthInterceptor{UserID: user.String(), OrganizationID: org})

	created, err := c.CreateClient.CallUnary(ctx, connect.NewRequest(&rpc.CreateClientRequest{
		CreateClientRequest: validation.CreateClientRequest{Name: "Debug Client", Email: "debug@test.com"},
	}))
	require.NoError(t, err)
	clientID := created.Msg.Client.ClientID

	project, err := c.CreateProject.CallUnary(ctx, connect.NewRequest(&rpc.CreateProjectRequest{
		CreateProjectRequest: validation.CreateProjectRequest{
			Title:    "Debug Project",
			ClientID: clientID.String(),
			Budget:   "1000.00",
			Priority: "medium",
		},
	}))
	require.NoError(t, err)
	require.Equal(t, clientID, project.Msg.Project.ClientID)
	require.Equal(t, "1000.00", project.Msg.Project.Budget.StringFixed(2))

	_, err = c.CreateProject.CallUnary(ctx, connect.NewRequest(&rpc.CreateProjectRequest{
		CreateProjectRequest: validation.CreateProjectRequest{
			Title:    "Debug Project",
			ClientID: "nonexistent",
			Budget:   "1000.00",
			Priority: "medium",
		},
	}))
	code, kind := errorCode(t, err)
	require.Equal(t, connect.CodeInvalidArgument, code)
	require.Equal(t, "invalid_reference", kind)

	clients, err := c.ListClients.CallUnary(ctx, connect.NewRequest(&rpc.ListClientsRequest{}))
	require.NoError(t, err)
	require.Len(t, clients.Msg.Clients, 1)

	projects, err := c.ListProjects.CallUnary(ctx, connect.NewRequest(&rpc.ListProjectsRequest{ClientID: clientID.String()}))
	require.NoError(t, err)
	require.Len(t, projects.Msg.Projects, 1)
}

func TestRPCErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := uuid.Must(uuid.NewV7())
	org := h.newOrg(t, owner)

	tests := []struct {
		name     string
		auth     *client.AuthInterceptor
		req      *rpc.ListClientsRequest
		wantCode connect.Code
		wantKind string
	}{
		{
			name:     "anonymous",
			auth:     &client.AuthInterceptor{OrganizationID: org},
			req:      &rpc.ListClientsRequest{},
			wantCode: connect.CodeUnauthenticated,
			wantKind: "unauthenticated",
		},
		{
			name:     "stranger",
			auth:     &client.AuthInterceptor{UserID: uuid.Must(uuid.NewV7()).String()},
			req:      &rpc.ListClientsRequest{OrganizationID: org},
			wantCode: connect.CodePermissionDenied,
			wantKind: "forbidden",
		},
		{
			name:     "organization required",
			auth:     &client.AuthInterceptor{UserID: owner.String()},
			req:      &rpc.ListClientsRequest{},
			wantCode: connect.CodePermissionDenied,
			wantKind: "organization_required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.clients(t, tt.auth).ListClients.CallUnary(ctx, connect.NewRequest(tt.req))
			code, kind := errorCode(t, err)
			require.Equal(t, tt.wantCode, code)
			require.Equal(t, tt.wantKind, kind)
		})
	}
}
