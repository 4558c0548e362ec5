// Package memory provides in-memory store implementations for development
// and tests. Data is lost on restart.
package memory

import "github.com/funnelhq/funnel360/internal/store"

// NewStores wires a complete set of in-memory stores.
func NewStores() store.Stores {
	memberships := NewMembershipStore()
	clients := NewClientStore()

	return store.Stores{
		Organizations: NewOrganizationStore(memberships),
		Principals:    NewPrincipalStore(),
		Memberships:   memberships,
		Sessions:      NewSessionStore(),
		Clients:       clients,
		Projects:      NewProjectStore(clients),
	}
}
