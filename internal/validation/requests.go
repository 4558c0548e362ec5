package validation

import (
	"bytes"
	"encoding/json"
	"maps"
	"strings"

	"github.com/funnelhq/funnel360/internal/apperr"
	"github.com/funnelhq/funnel360/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amount accepts a JSON string ("1000.00") or a JSON number (1000.00) and
// keeps its literal text so precision is never lost to float parsing.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

// CreateClientRequest is the wire body for creating a client. CreatedBy is
// accepted for compatibility and ignored.
type CreateClientRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email,max=320"`
	Notes     string `json:"notes,omitempty" validate:"max=5000"`
	CreatedBy string `json:"createdBy,omitempty" validate:"-"`
}

// ClientInput is a validated client payload.
type ClientInput struct {
	Name  string
	Email string
	Notes string
}

// Validate normalizes the request and checks every field.
func (r CreateClientRequest) Validate() (ClientInput, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Notes = strings.TrimSpace(r.Notes)

	if err := check(r); err != nil {
		return ClientInput{}, err
	}

	return ClientInput{Name: r.Name, Email: r.Email, Notes: r.Notes}, nil
}

// UpdateClientRequest is a partial update; nil fields are left unchanged.
type UpdateClientRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// Apply merges the patch onto an existing client and validates the result.
func (r UpdateClientRequest) Apply(existing *models.Client) (ClientInput, error) {
	merged := CreateClientRequest{
		Name:  existing.Name,
		Email: existing.Email,
		Notes: existing.Notes,
	}
	if r.Name != nil {
		merged.Name = *r.Name
	}
	if r.Email != nil {
		merged.Email = *r.Email
	}
	if r.Notes != nil {
		merged.Notes = *r.Notes
	}
	return merged.Validate()
}

// CreateProjectRequest is the wire body for creating a project. CreatedBy is
// accepted for compatibility and ignored.
type CreateProjectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=5000"`
	ClientID    string `json:"clientId" validate:"required"`
	OwnerID     string `json:"ownerId,omitempty" validate:"omitempty,uuid"`
	Budget      Amount `json:"budget" validate:"required"`
	Priority    string `json:"priority" validate:"required,priority"`
	CreatedBy   string `json:"createdBy,omitempty" validate:"-"`
}

// ProjectInput is a validated project payload.
type ProjectInput struct {
	Title       string
	Description string
	ClientID    uuid.UUID
	OwnerID     *uuid.UUID
	Budget      decimal.Decimal
	Priority    models.Priority
}

// Validate normalizes the request and checks every field. A clientId that is
// present but cannot name any client is an invalid reference rather than a
// validation failure.
func (r CreateProjectRequest) Validate() (ProjectInput, error) {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	r.Budget = Amount(strings.TrimSpace(string(r.Budget)))
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))

	fields := map[string]string{}
	if err := check(r); err != nil {
		appErr := apperr.From(err)
		if appErr.Kind != apperr.KindValidation {
			return ProjectInput{}, err
		}
		maps.Copy(fields, appErr.Fields)
	}

	// The budget is parsed once, and only when present.
	var budget decimal.Decimal
	if _, missing := fields["budget"]; !missing {
		var err error
		if budget, err = ParseBudget(string(r.Budget)); err != nil {
			fields["budget"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return ProjectInput{}, apperr.Validation(fields)
	}

	input := ProjectInput{
		Title:       r.Title,
		Description: r.Description,
		Budget:      budget,
		Priority:    models.Priority(r.Priority),
	}

	if r.OwnerID != "" {
		ownerID, err := uuid.Parse(r.OwnerID)
		if err != nil {
			return ProjectInput{}, apperr.Validation(map[string]string{"ownerId": "must be a UUID"})
		}
		input.OwnerID = &ownerID
	}

	clientID, err := uuid.Parse(r.ClientID)
	if err != nil {
		return ProjectInput{}, apperr.InvalidReference("client not found in organization", err)
	}
	input.ClientID = clientID

	return input, nil
}

// UpdateProjectRequest is a partial update; nil fields are left unchanged.
type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ClientID    *string `json:"clientId,omitempty"`
	OwnerID     *string `json:"ownerId,omitempty"`
	Budget      *Amount `json:"budget,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

// Apply merges the patch onto an existing project and validates the result.
func (r UpdateProjectRequest) Apply(existing *models.Project) (ProjectInput, error) {
	merged := CreateProjectRequest{
		Title:       existing.Title,
		Description: existing.Description,
		ClientID:    existing.ClientID.String(),
		OwnerID:     existing.OwnerID.String(),
		Budget:      Amount(existing.Budget.StringFixed(2)),
		Priority:    string(existing.Priority),
	}
	if r.Title != nil {
		merged.Title = *r.Title
	}
	if r.Description != nil {
		merged.Description = *r.Description
	}
	if r.ClientID != nil {
		merged.ClientID = *r.ClientID
	}
	if r.OwnerID != nil {
		merged.OwnerID = *r.OwnerID
	}
	if r.Budget != nil {
		merged.Budget = *r.Budget
	}
	if r.Priority != nil {
		merged.Priority = *r.Priority
	}
	return merged.Validate()
}

// CreateOrganizationRequest is the wire body for organization setup.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// Validate normalizes the request and returns the organization name.
func (r CreateOrganizationRequest) Validate() (string, error) {
	r.Name = strings.TrimSpace(r.Name)
	if err := check(r); err != nil {
		return "", err
	}
	return r.Name, nil
}
