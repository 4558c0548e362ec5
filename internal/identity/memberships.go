package identity

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// DefaultMembershipTTL bounds how stale a cached membership list may be.
const DefaultMembershipTTL = 30 * time.Second

// MembershipLoader reads memberships from the store and caches them per
// principal. It is safe for concurrent use.
type MembershipLoader struct {
	store store.MembershipStore
	cache *cache.Cache
}

// NewMembershipLoader creates a loader. A ttl of zero uses DefaultMembershipTTL.
func NewMembershipLoader(memberships store.MembershipStore, ttl time.Duration) *MembershipLoader {
	if ttl == 0 {
		ttl = DefaultMembershipTTL
	}
	return &MembershipLoader{
		store: memberships,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Memberships implements the membership half of Provider.
func (l *MembershipLoader) Memberships(ctx context.Context, id Identity) ([]Membership, error) {
	key := id.ID.String()
	if cached, ok := l.cache.Get(key); ok {
		return slices.Clone(cached.([]Membership)), nil
	}

	rows, err := l.store.ListByPrincipal(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}

	memberships := make([]Membership, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, Membership{
			OrganizationScope: Scope(row.OrgID),
			Role:              row.Role,
		})
	}

	l.cache.SetDefault(key, memberships)
	log.Debug().
		Str("principal_id", key).
		Int("count", len(memberships)).
		Msg("Loaded memberships")

	return memberships, nil
}

// Invalidate drops the cached memberships of a principal.
func (l *MembershipLoader) Invalidate(principalID uuid.UUID) {
	l.cache.Delete(principalID.String())
}
