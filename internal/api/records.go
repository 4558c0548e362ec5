package api

import (
	"net/http"
	"strconv"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/funnelhq/funnel360/internal/validation"
	"github.com/google/uuid"
)

type clientList struct {
	Clients []*models.Client `json:"clients"`
}

type projectList struct {
	Projects []*models.Project `json:"projects"`
}

// queryLimit reads the optional limit parameter. Unusable values fall back
// to the store default.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req validation.CreateClientRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	client, err := h.svc.CreateClient(r.Context(), req, id, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	clients, err := h.svc.ListClients(r.Context(), id, scope, queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheable(w, r, clientList{Clients: clients})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	client, err := h.svc.GetClient(r.Context(), id, scope, pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheable(w, r, client)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req validation.UpdateClientRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	client, err := h.svc.UpdateClient(r.Context(), id, scope, pathID(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteClient(r.Context(), id, scope, pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req validation.CreateProjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.svc.CreateProject(r.Context(), req, id, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filter := service.ProjectFilter{Limit: queryLimit(r)}
	if raw := r.URL.Query().Get("clientId"); raw != "" {
		// A malformed id filters to the nil client, which has no projects.
		clientID, _ := uuid.Parse(raw)
		filter.ClientID = &clientID
	}

	projects, err := h.svc.ListProjects(r.Context(), id, scope, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheable(w, r, projectList{Projects: projects})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.svc.GetProject(r.Context(), id, scope, pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheable(w, r, project)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req validation.UpdateProjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.svc.UpdateProject(r.Context(), id, scope, pathID(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, scope, err := authenticated(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteProject(r.Context(), id, scope, pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
