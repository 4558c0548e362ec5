// Package rpc exposes client and project operations over Connect with a JSON
// codec.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Server implements the ClientService and ProjectService procedures.
type Server struct {
	svc *service.Service
}

// NewServer creates an RPC server backed by svc.
func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// Handler returns a handler serving every procedure. Callers must already
// be resolved into the request context by identity.Middleware.
func (s *Server) Handler(opts ...connect.HandlerOption) http.Handler {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateClientProcedure, connect.NewUnaryHandler(CreateClientProcedure, s.CreateClient, opts...))
	mux.Handle(ListClientsProcedure, connect.NewUnaryHandler(ListClientsProcedure, s.ListClients, opts...))
	mux.Handle(CreateProjectProcedure, connect.NewUnaryHandler(CreateProjectProcedure, s.CreateProject, opts...))
	mux.Handle(ListProjectsProcedure, connect.NewUnaryHandler(ListProjectsProcedure, s.ListProjects, opts...))
	return mux
}

func (s *Server) CreateClient(
	ctx context.Context,
	req *connect.Request[CreateClientRequest],
) (*connect.Response[CreateClientResponse], error) {
	id, scope, err := scoped(ctx, req.Header(), req.Msg.OrganizationID)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	client, err := s.svc.CreateClient(ctx, req.Msg.CreateClientRequest, id, scope)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	return connect.NewResponse(&CreateClientResponse{Client: client}), nil
}

func (s *Server) ListClients(
	ctx context.Context,
	req *connect.Request[ListClientsRequest],
) (*connect.Response[ListClientsResponse], error) {
	id, scope, err := scoped(ctx, req.Header(), req.Msg.OrganizationID)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	clients, err := s.svc.ListClients(ctx, id, scope, req.Msg.Limit)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	return connect.NewResponse(&ListClientsResponse{Clients: clients}), nil
}

func (s *Server) CreateProject(
	ctx context.Context,
	req *connect.Request[CreateProjectRequest],
) (*connect.Response[CreateProjectResponse], error) {
	id, scope, err := scoped(ctx, req.Header(), req.Msg.OrganizationID)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	project, err := s.svc.CreateProject(ctx, req.Msg.CreateProjectRequest, id, scope)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	return connect.NewResponse(&CreateProjectResponse{Project: project}), nil
}

func (s *Server) ListProjects(
	ctx context.Context,
	req *connect.Request[ListProjectsRequest],
) (*connect.Response[ListProjectsResponse], error) {
	id, scope, err := scoped(ctx, req.Header(), req.Msg.OrganizationID)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	filter := service.ProjectFilter{Limit: req.Msg.Limit}
	if req.Msg.ClientID != "" {
		// A malformed id filters to the nil client, which has no projects.
		clientID, _ := uuid.Parse(req.Msg.ClientID)
		filter.ClientID = &clientID
	}

	projects, err := s.svc.ListProjects(ctx, id, scope, filter)
	if err != nil {
		return nil, connectError(ctx, err)
	}

	return connect.NewResponse(&ListProjectsResponse{Projects: projects}), nil
}

// scoped resolves the caller from ctx and the organization from the message,
// falling back to the organization header.
func scoped(ctx context.Context, header http.Header, orgID string) (*identity.Identity, identity.OrganizationScope, error) {
	id, err := identity.FromContext(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, identity.OrganizationScope{}, apperr.Unauthenticated("invalid credentials")
		}
		return nil, identity.OrganizationScope{}, apperr.Internal(err)
	}
	if id == nil {
		return nil, identity.OrganizationScope{}, apperr.Unauthenticated("authentication required")
	}

	if orgID == "" {
		orgID = header.Get(OrganizationHeader)
	}
	scope, err := identity.ParseScope(orgID)
	if err != nil {
		return nil, identity.OrganizationScope{}, apperr.Forbidden("not a member of this organization")
	}

	return id, scope, nil
}

// connectError maps a domain error onto a connect code. Internal causes are
// logged and replaced with a generic message.
func connectError(ctx context.Context, err error) *connect.Error {
	appErr := apperr.From(err)

	var code connect.Code
	switch appErr.Kind {
	case apperr.KindUnauthenticated:
		code = connect.CodeUnauthenticated
	case apperr.KindForbidden, apperr.KindOrganizationRequired:
		code = connect.CodePermissionDenied
	case apperr.KindValidation, apperr.KindInvalidReference:
		code = connect.CodeInvalidArgument
	case apperr.KindNotFound:
		code = connect.CodeNotFound
	default:
		log.Ctx(ctx).Error().Err(err).Msg("RPC failed")
		code = connect.CodeInternal
	}

	cerr := connect.NewError(code, errors.New(appErr.PublicMessage()))
	cerr.Meta().Set("Funnel-Error-Code", appErr.Kind.String())
	for field, msg := range appErr.Fields {
		cerr.Meta().Add("Funnel-Field-Error", field+": "+msg)
	}
	return cerr
}
