package postgres

import (
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewStores wires every PostgreSQL-backed store onto one shared pool.
func NewStores(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Organizations: NewOrganizationStore(pool),
		Principals:    NewPrincipalStore(pool),
		Memberships:   NewMembershipStore(pool),
		Sessions:      NewSessionStore(pool),
		Clients:       NewClientStore(pool),
		Projects:      NewProjectStore(pool),
	}
}
