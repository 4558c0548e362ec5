package rpc

import (
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/validation"
)

// Procedure paths.
const (
	ClientServiceName  = "funnel.v1.ClientService"
	ProjectServiceName = "funnel.v1.ProjectService"

	CreateClientProcedure  = "/" + ClientServiceName + "/CreateClient"
	ListClientsProcedure   = "/" + ClientServiceName + "/ListClients"
	CreateProjectProcedure = "/" + ProjectServiceName + "/CreateProject"
	ListProjectsProcedure  = "/" + ProjectServiceName + "/ListProjects"
)

// OrganizationHeader names the organization when a message leaves
// OrganizationID empty.
const OrganizationHeader = "X-Organization-ID"

type CreateClientRequest struct {
	OrganizationID string `json:"organizationId,omitempty"`
	validation.CreateClientRequest
}

type CreateClientResponse struct {
	Client *models.Client `json:"client"`
}

type ListClientsRequest struct {
	OrganizationID string `json:"organizationId,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type ListClientsResponse struct {
	Clients []*models.Client `json:"clients"`
}

type CreateProjectRequest struct {
	OrganizationID string `json:"organizationId,omitempty"`
	validation.CreateProjectRequest
}

type CreateProjectResponse struct {
	Project *models.Project `json:"project"`
}

type ListProjectsRequest struct {
	OrganizationID string `json:"organizationId,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type ListProjectsResponse struct {
	Projects []*models.Project `json:"projects"`
}
