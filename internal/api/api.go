// Package api serves the JSON REST surface. Handlers resolve the caller and
// organization scope from the request, call the service and translate domain
// errors into HTTP responses.
package api

import (
	"net/http"
	"time"

	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// OrganizationHeader carries the organization scope when the query parameter
// is absent.
const OrganizationHeader = "X-Organization-ID"

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// Handler serves /api/* and /healthz.
type Handler struct {
	svc      *service.Service
	provider identity.Provider
	mux      *http.ServeMux
}

// New creates the REST handler. Callers are resolved with provider.
func New(svc *service.Service, provider identity.Provider) *Handler {
	h := &Handler{
		svc:      svc,
		provider: provider,
		mux:      http.NewServeMux(),
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /healthz", h.health)

	h.mux.HandleFunc("POST /api/clients", h.createClient)
	h.mux.HandleFunc("GET /api/clients", h.listClients)
	h.mux.HandleFunc("GET /api/clients/{id}", h.getClient)
	h.mux.HandleFunc("PATCH /api/clients/{id}", h.updateClient)
	h.mux.HandleFunc("DELETE /api/clients/{id}", h.deleteClient)

	h.mux.HandleFunc("POST /api/projects", h.createProject)
	h.mux.HandleFunc("GET /api/projects", h.listProjects)
	h.mux.HandleFunc("GET /api/projects/{id}", h.getProject)
	h.mux.HandleFunc("PATCH /api/projects/{id}", h.updateProject)
	h.mux.HandleFunc("DELETE /api/projects/{id}", h.deleteProject)

	h.mux.HandleFunc("GET /api/team/members", h.listTeamMembers)
	h.mux.HandleFunc("GET /api/me", h.me)
	h.mux.HandleFunc("GET /api/organizations", h.listOrganizations)
	h.mux.HandleFunc("POST /api/organizations", h.createOrganization)
	h.mux.HandleFunc("PATCH /api/organizations/{id}", h.renameOrganization)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Wrap adds request logging, caller resolution and response compression.
func Wrap(h http.Handler, provider identity.Provider) http.Handler {
	return Logging(Resolving(h, provider))
}

// Resolving attaches the caller to the request context and compresses
// responses.
func Resolving(h http.Handler, provider identity.Provider) http.Handler {
	return gzhttp.GzipHandler(identity.Middleware(provider)(h))
}

// Logging assigns request ids and writes an access log line per request.
func Logging(h http.Handler) http.Handler {
	handler := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http request")
	})(h)
	handler = hlog.RequestIDHandler("req_id", "X-Request-ID")(handler)
	return hlog.NewHandler(log.Logger)(handler)
}

// Handler returns h wrapped with the standard middleware stack.
func (h *Handler) Handler() http.Handler {
	return Wrap(h, h.provider)
}

func requestLogger(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}
