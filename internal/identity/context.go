package identity

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

type contextKey int

const (
	identityContextKey contextKey = iota
)

type resolution struct {
	identity *Identity
	err      error
}

// WithIdentity attaches a resolved identity (or resolution error) to ctx.
func WithIdentity(ctx context.Context, id *Identity, err error) context.Context {
	return context.WithValue(ctx, identityContextKey, resolution{identity: id, err: err})
}

// FromContext returns the identity attached by Middleware. A nil identity with
// a nil error means the caller is anonymous.
func FromContext(ctx context.Context) (*Identity, error) {
	res, _ := ctx.Value(identityContextKey).(resolution)
	return res.identity, res.err
}

// Middleware resolves the caller once per request and attaches it, with its
// memberships, to the request context. Handlers decide what an anonymous or
// failed resolution means.
func Middleware(p Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id, err := Resolve(ctx, p, r)
			if id != nil {
				hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("principal_id", id.ID.String())
				})
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id, err)))
		})
	}
}

// Resolve returns the caller with memberships populated.
func Resolve(ctx context.Context, p Provider, r *http.Request) (*Identity, error) {
	id, err := p.CurrentIdentity(ctx, r)
	if err != nil || id == nil {
		return nil, err
	}

	memberships, err := p.Memberships(ctx, *id)
	if err != nil {
		log.Error().Err(err).Str("principal_id", id.ID.String()).Msg("Failed to load memberships")
		return nil, err
	}

	return id.WithMemberships(memberships), nil
}
