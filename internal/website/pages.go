// Package website serves the server-rendered pages around sign-in:
// organization setup, the dashboard and the access-denied page.
package website

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/guard"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/funnelhq/funnel360/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// dashboardLimit caps the records shown on the dashboard.
const dashboardLimit = 20

// SessionLookup returns the browser session of a request, if any.
type SessionLookup interface {
	Session(r *http.Request) (uuid.UUID, bool)
}

// Pages renders the HTML pages.
type Pages struct {
	svc      *service.Service
	sessions SessionLookup
}

// NewPages creates the page handlers.
func NewPages(svc *service.Service, sessions SessionLookup) *Pages {
	return &Pages{svc: svc, sessions: sessions}
}

type page struct {
	Title    string
	Message  string
	Identity *identity.Identity

	Organizations []service.OrganizationSummary
	Organization  string
	Clients       []*models.Client
	Projects      []*models.Project
}

var signInMessages = map[string]string{
	"expired": "Your session has expired. Please sign in again.",
	"invalid": "Please sign in to continue.",
}

func render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("template", name).Msg("Failed to render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// SignIn renders the sign-in page.
func (p *Pages) SignIn(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "sign-in.html", page{
		Title:   "Sign in",
		Message: signInMessages[r.URL.Query().Get("error_code")],
	})
}

// Forbidden renders the access-denied page.
func (p *Pages) Forbidden(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	render(w, r, http.StatusForbidden, "forbidden.html", page{Title: "Access denied", Identity: id})
}

// OrgSetup lists the caller's organizations (GET) and creates or selects one
// (POST). It must be mounted behind a guard requiring authentication.
func (p *Pages) OrgSetup(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.FromContext(r.Context())
	if id == nil {
		http.Redirect(w, r, guard.SignInPath, http.StatusFound)
		return
	}

	if r.Method == http.MethodPost {
		p.orgSetupSubmit(w, r, id)
		return
	}

	p.renderOrgSetup(w, r, id, http.StatusOK, "")
}

func (p *Pages) renderOrgSetup(w http.ResponseWriter, r *http.Request, id *identity.Identity, status int, message string) {
	orgs, err := p.svc.ListOrganizations(r.Context(), id)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to list organizations")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	render(w, r, status, "org-setup.html", page{
		Title:         "Organizations",
		Message:       message,
		Identity:      id,
		Organizations: orgs,
	})
}

func (p *Pages) orgSetupSubmit(w http.ResponseWriter, r *http.Request, id *identity.Identity) {
	if err := r.ParseForm(); err != nil {
		p.renderOrgSetup(w, r, id, http.StatusBadRequest, "The form could not be read.")
		return
	}

	var scope identity.OrganizationScope

	switch r.PostForm.Get("action") {
	case "create":
		org, err := p.svc.CreateOrganization(r.Context(), id, validation.CreateOrganizationRequest{
			Name: r.PostForm.Get("name"),
		})
		if err != nil {
			p.formError(w, r, id, err)
			return
		}
		scope = identity.Scope(org.OrgID)
		// The new membership is not on the request's identity yet.
		id = id.WithMemberships(append(id.Memberships, identity.Membership{OrganizationScope: scope, Role: models.RoleOwner}))

	case "select":
		parsed, err := identity.ParseScope(r.PostForm.Get("organizationId"))
		if err != nil || parsed.IsZero() {
			p.renderOrgSetup(w, r, id, http.StatusBadRequest, "Choose an organization.")
			return
		}
		scope = parsed

	default:
		p.renderOrgSetup(w, r, id, http.StatusBadRequest, "Unknown action.")
		return
	}

	sessionID, ok := p.sessions.Session(r)
	if !ok {
		// Token callers have no session to remember the choice in.
		http.Redirect(w, r, "/dashboard?organizationId="+url.QueryEscape(scope.String()), http.StatusSeeOther)
		return
	}

	if err := p.svc.SelectOrganization(r.Context(), id, scope, sessionID); err != nil {
		p.formError(w, r, id, err)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (p *Pages) formError(w http.ResponseWriter, r *http.Request, id *identity.Identity, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		hlog.FromRequest(r).Error().Err(err).Msg("Organization setup failed")
	}

	message := appErr.PublicMessage()
	if name, ok := appErr.Fields["name"]; ok {
		message = "Name " + name + "."
	}
	p.renderOrgSetup(w, r, id, appErr.Kind.HTTPStatus(), message)
}

// Dashboard shows the selected organization's records. It must be mounted
// behind a guard requiring an organization.
func (p *Pages) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap, ok := guard.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, guard.SignInPath, http.StatusFound)
		return
	}
	ctx := r.Context()

	data := page{Title: "Dashboard", Identity: snap.Identity}

	orgs, err := p.svc.ListOrganizations(ctx, snap.Identity)
	if err != nil {
		p.dashboardError(w, r, err)
		return
	}
	for _, org := range orgs {
		if org.OrganizationID == snap.Scope.OrganizationID {
			data.Organization = org.Name
		}
	}

	if data.Clients, err = p.svc.ListClients(ctx, snap.Identity, snap.Scope, dashboardLimit); err != nil {
		p.dashboardError(w, r, err)
		return
	}
	if data.Projects, err = p.svc.ListProjects(ctx, snap.Identity, snap.Scope, service.ProjectFilter{Limit: dashboardLimit}); err != nil {
		p.dashboardError(w, r, err)
		return
	}

	render(w, r, http.StatusOK, "dashboard.html", data)
}

func (p *Pages) dashboardError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		http.Redirect(w, r, guard.SignInPath, http.StatusFound)
	case apperr.KindForbidden:
		http.Redirect(w, r, guard.ForbiddenPath, http.StatusFound)
	case apperr.KindOrganizationRequired:
		http.Redirect(w, r, guard.OrgSetupPath, http.StatusFound)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to load dashboard")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
