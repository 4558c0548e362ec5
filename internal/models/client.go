package models

import (
	"time"

	"github.com/google/uuid"
)

// Client is a customer record managed by an organization.
type Client struct {
	ClientID  uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"organizationId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Notes     string    `json:"notes"`
	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
