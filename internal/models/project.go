package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Priority of a project.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Project is a piece of work delivered for a client. A project always
// references a client in the same organization.
type Project struct {
	ProjectID   uuid.UUID       `json:"id"`
	OrgID       uuid.UUID       `json:"organizationId"`
	ClientID    uuid.UUID       `json:"clientId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	OwnerID     uuid.UUID       `json:"ownerId"`
	Budget      decimal.Decimal `json:"budget"`
	Priority    Priority        `json:"priority"`
	CreatedBy   uuid.UUID       `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
