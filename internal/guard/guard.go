// Package guard gates page navigations. A navigation starts in StateUnknown
// while the caller is resolved in the background, then settles into one of
// the authenticated states and is allowed or redirected.
package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/telemetry"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Redirect targets.
const (
	SignInPath    = "/sign-in"
	OrgSetupPath  = "/org/setup"
	ForbiddenPath = "/forbidden"
)

// DefaultResolveTimeout bounds how long a navigation waits for the caller to
// be resolved before it is sent to sign in.
const DefaultResolveTimeout = 5 * time.Second

// State is what the guard knows about the caller.
type State int

const (
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticatedNoOrg
	StateAuthenticatedInOrg
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedNoOrg:
		return "authenticated_no_org"
	case StateAuthenticatedInOrg:
		return "authenticated_in_org"
	default:
		return "unknown"
	}
}

// Snapshot is a resolved (or still unknown) caller.
type Snapshot struct {
	State    State
	Identity *identity.Identity
	Scope    identity.OrganizationScope
}

// Requirements describe what a page needs.
type Requirements struct {
	RequireAuth         bool
	RequireOrganization bool
	RequiredPermission  authz.Permission
}

// DecisionKind is the outcome of evaluating a navigation.
type DecisionKind int

const (
	// Pending means the caller is not resolved yet; render a neutral view.
	Pending DecisionKind = iota
	Allow
	Redirect
)

// Decision is what the navigation should do next.
type Decision struct {
	Kind   DecisionKind
	Target string
}

func pending() Decision { return Decision{Kind: Pending} }

func allow() Decision { return Decision{Kind: Allow} }

func redirect(target string) Decision { return Decision{Kind: Redirect, Target: target} }

// Guard evaluates navigations against the authorization policy.
type Guard struct {
	provider  identity.Provider
	evaluator *authz.Evaluator
	timeout   time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithResolveTimeout overrides DefaultResolveTimeout.
func WithResolveTimeout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// New creates a guard resolving callers with provider.
func New(provider identity.Provider, evaluator *authz.Evaluator, opts ...Option) *Guard {
	g := &Guard{
		provider:  provider,
		evaluator: evaluator,
		timeout:   DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate decides a navigation. It never allows an unknown caller.
func (g *Guard) Evaluate(snap Snapshot, req Requirements) Decision {
	needsCaller := req.RequireAuth || req.RequireOrganization || req.RequiredPermission != ""

	switch snap.State {
	case StateUnknown:
		return pending()

	case StateUnauthenticated:
		if needsCaller {
			return redirect(SignInPath)
		}
		return allow()

	case StateAuthenticatedNoOrg:
		if req.RequireOrganization {
			return redirect(OrgSetupPath)
		}
	}

	err := g.evaluator.CanAccess(snap.Identity, snap.Scope, authz.Requirement{
		RequireOrganization: req.RequireOrganization,
		Permission:          req.RequiredPermission,
	})
	if err == nil {
		return allow()
	}

	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return redirect(SignInPath)
	case apperr.KindOrganizationRequired:
		return redirect(OrgSetupPath)
	default:
		return redirect(ForbiddenPath)
	}
}

// Resolve works out the caller of r in a separate goroutine. The channel
// yields one snapshot, or is closed without a value if ctx ends first.
func (g *Guard) Resolve(ctx context.Context, r *http.Request) <-chan Snapshot {
	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)

		snap := g.resolve(ctx, r)
		if ctx.Err() != nil {
			return
		}
		out <- snap
	}()

	return out
}

func (g *Guard) resolve(ctx context.Context, r *http.Request) Snapshot {
	id, err := identity.Resolve(ctx, g.provider, r)
	if err != nil {
		if ctx.Err() == nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Caller could not be resolved")
		}
		return Snapshot{State: StateUnauthenticated}
	}
	if id == nil {
		return Snapshot{State: StateUnauthenticated}
	}

	scope := id.DefaultScope()
	if raw := r.URL.Query().Get("organizationId"); raw != "" {
		requested, err := identity.ParseScope(raw)
		if err != nil {
			log.Debug().Str("organization_id", raw).Msg("Ignoring malformed organization id")
		} else {
			scope = requested
		}
	}

	if scope.IsZero() {
		return Snapshot{State: StateAuthenticatedNoOrg, Identity: id}
	}
	return Snapshot{State: StateAuthenticatedInOrg, Identity: id, Scope: scope}
}

type contextKey struct{}

// FromContext returns the snapshot of a navigation allowed by Middleware.
func FromContext(ctx context.Context) (Snapshot, bool) {
	snap, ok := ctx.Value(contextKey{}).(Snapshot)
	return snap, ok
}

// Middleware gates page handlers. Allowed navigations carry their snapshot
// and identity in the request context; everything else is redirected.
func (g *Guard) Middleware(req Requirements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
			defer cancel()

			snap := Snapshot{State: StateUnknown}
			select {
			case s, ok := <-g.Resolve(ctx, r):
				if ok {
					snap = s
				}
			case <-ctx.Done():
			}

			if r.Context().Err() != nil {
				// Client went away.
				return
			}

			decision := g.Evaluate(snap, req)
			if decision.Kind == Pending {
				hlog.FromRequest(r).Warn().Dur("timeout", g.timeout).Msg("Caller resolution timed out")
				decision = redirect(SignInPath)
			}

			if decision.Kind == Redirect {
				telemetry.GetMetrics().RecordRedirect(r.Context(), decision.Target)
				hlog.FromRequest(r).Debug().
					Str("path", r.URL.Path).
					Str("state", snap.State.String()).
					Str("target", decision.Target).
					Msg("Navigation redirected")
				http.Redirect(w, r, decision.Target, http.StatusFound)
				return
			}

			rctx := context.WithValue(r.Context(), contextKey{}, snap)
			rctx = identity.WithIdentity(rctx, snap.Identity, nil)
			next.ServeHTTP(w, r.WithContext(rctx))
		})
	}
}
