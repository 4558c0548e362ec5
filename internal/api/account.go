package api

import (
	"net/http"
	"time"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/identity"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/service"
	"github.com/funnelhq/funnel360/internal/validation"
	"github.com/google/uuid"
)

type teamList struct {
	Members []service.TeamMember `json:"members"`
}

type meResponse struct {
	ID            uuid.UUID                     `json:"id"`
	Name          string                        `json:"name"`
	Email         string                        `json:"email,omitempty"`
	Organizations []service.OrganizationSummary `json:"organizations"`
}

type organizationList struct {
	Organizations []service.OrganizationSummary `json:"organizations"`
}

type organizationResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

func newOrganizationResponse(org *models.Organization) organizationResponse {
	return organizationResponse{
		ID:        org.OrgID,
		Name:      org.Name,
		OwnerID:   org.OwnerPrincipalID,
		CreatedAt: org.CreatedAt,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listTeamMembers(w http.ResponseWriter, r *http.Request) {
	id, scope, err := scoped(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	members, err := h.svc.ListTeamMembers(r.Context(), id, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheable(w, r, teamList{Members: members})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if id == nil {
		writeError(w, r, apperr.Unauthenticated("authentication required"))
		return
	}

	orgs, err := h.svc.ListOrganizations(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:            id.ID,
		Name:          id.Name,
		Email:         id.Email,
		Organizations: orgs,
	})
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if id == nil {
		writeError(w, r, apperr.Unauthenticated("authentication required"))
		return
	}

	var req validation.CreateOrganizationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	org, err := h.svc.CreateOrganization(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrganizationResponse(org))
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orgs, err := h.svc.ListOrganizations(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeCacheable(w, r, organizationList{Organizations: orgs})
}

// renameOrganization scopes the request by the organization in the path.
func (h *Handler) renameOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if id == nil {
		writeError(w, r, apperr.Unauthenticated("authentication required"))
		return
	}

	var req validation.CreateOrganizationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	org, err := h.svc.RenameOrganization(r.Context(), id, identity.Scope(pathID(r)), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrganizationResponse(org))
}
