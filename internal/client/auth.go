package client

import (
	"context"

	"connectrpc.com/connect"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/rpc"
)

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// AuthInterceptor adds caller credentials and the organization scope to
// outgoing requests. Token is a bearer JWT from /auth/token; UserID is the
// development header honoured by servers running with --no-auth.
type AuthInterceptor struct {
	Token          string
	UserID         string
	OrganizationID string
}

func (i *AuthInterceptor) apply(headers interface{ Set(string, string) }) {
	if i.Token != "" {
		headers.Set("Authorization", "Bearer "+i.Token)
	}
	if i.UserID != "" {
		headers.Set(identity.UserIDHeader, i.UserID)
	}
	if i.OrganizationID != "" {
		headers.Set(rpc.OrganizationHeader, i.OrganizationID)
	}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		i.apply(req.Header())
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		i.apply(conn.RequestHeader())
		return conn
	}
}

// WrapStreamingHandler is not used for client interceptors.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
