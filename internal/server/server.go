// Package server assembles the HTTP surface: the REST and RPC APIs, the
// sign-in flow, the token issuer and the guarded pages.
package server

import (
	"net/http"
	"strings"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"filippo.io/csrf"
	"github.com/funnelhq/funnel360/internal/api"
	"github.com/funnelhq/funnel360/internal/authz"
	"github.com/funnelhq/funnel360/internal/guard"
	httpmiddleware "github.com/funnelhq/funnel360/internal/http"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/login"
	"github.com/funnelhq/funnel360/internal/rpc"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/funnelhq/funnel360/internal/website"
	"github.com/funnelhq/funnel360/internal/website/oidc"
	"github.com/rs/cors"
)

// Components are the pieces the router mounts. Login and Issuer are
// optional; without them the sign-in and token endpoints are not served.
type Components struct {
	Service   *service.Service
	Evaluator *authz.Evaluator
	Provider  identity.Provider
	Sessions  website.SessionLookup
	Login     *login.Github
	Issuer    *oidc.Handler

	// ClientAddr resolves the address recorded on new sessions.
	ClientAddr *httpmiddleware.ClientAddr

	Guard       []guard.Option
	RPCOptions  []connect.HandlerOption
	CORSOrigins []string
}

// New returns the root handler. API routes get CORS, everything else gets
// cross-origin request protection.
func New(c Components) http.Handler {
	apiHandler := api.Resolving(apiRoutes(c), c.Provider)
	apiHandler = withCORS(c.CORSOrigins, apiHandler)

	protection := csrf.New()
	pageHandler := protection.Handler(pageRoutes(c))

	return api.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			apiHandler.ServeHTTP(w, r)
			return
		}
		pageHandler.ServeHTTP(w, r)
	}))
}

func apiRoutes(c Components) *http.ServeMux {
	mux := http.NewServeMux()

	rest := api.New(c.Service, c.Provider)
	mux.Handle("/api/", rest)
	mux.Handle("GET /healthz", rest)

	rpcHandler := rpc.NewServer(c.Service).Handler(c.RPCOptions...)
	mux.Handle("/funnel.v1.ClientService/", rpcHandler)
	mux.Handle("/funnel.v1.ProjectService/", rpcHandler)

	if c.Issuer != nil {
		mux.HandleFunc("GET /.well-known/openid-configuration", c.Issuer.DiscoveryHandler())
		mux.HandleFunc("GET /.well-known/jwks.json", c.Issuer.JWKSHandler())
	}

	return mux
}

func pageRoutes(c Components) *http.ServeMux {
	mux := http.NewServeMux()

	g := guard.New(c.Provider, c.Evaluator, c.Guard...)
	pages := website.NewPages(c.Service, c.Sessions)

	mux.HandleFunc("GET /sign-in", pages.SignIn)
	mux.Handle("GET /forbidden", api.Resolving(http.HandlerFunc(pages.Forbidden), c.Provider))
	mux.Handle("/org/setup", g.Middleware(guard.Requirements{RequireAuth: true})(http.HandlerFunc(pages.OrgSetup)))
	mux.Handle("GET /dashboard", g.Middleware(guard.Requirements{
		RequireAuth:         true,
		RequireOrganization: true,
		RequiredPermission:  authz.PermClientsRead,
	})(http.HandlerFunc(pages.Dashboard)))
	mux.Handle("GET /{$}", http.RedirectHandler("/dashboard", http.StatusFound))

	if c.Login != nil {
		clientAddr := c.ClientAddr
		if clientAddr == nil {
			clientAddr = &httpmiddleware.ClientAddr{}
		}
		clientIP := clientAddr.Middleware
		mux.Handle("GET /login", clientIP(http.HandlerFunc(c.Login.LoginHandler)))
		mux.Handle("GET /github/callback", clientIP(http.HandlerFunc(c.Login.CallbackHandler)))
		mux.Handle("POST /logout", clientIP(http.HandlerFunc(c.Login.LogoutHandler)))
	}

	if c.Issuer != nil {
		mux.HandleFunc("POST /auth/token", c.Issuer.TokenHandler())
	}

	return mux
}

// isAPIRoute reports whether path is served with CORS instead of cross-origin
// protection.
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") ||
		path == "/healthz" ||
		strings.HasPrefix(path, "/funnel.v1.") ||
		strings.HasPrefix(path, "/.well-known/")
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: append(connectcors.AllowedMethods(), http.MethodPatch, http.MethodDelete),
		AllowedHeaders: append(connectcors.AllowedHeaders(),
			"Authorization", api.OrganizationHeader, identity.UserIDHeader),
		ExposedHeaders:   append(connectcors.ExposedHeaders(), "ETag"),
		AllowCredentials: true,
	})
	return middleware.Handler(h)
}
