package postgres

import (
	"context"
	"fmt"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

// Add adds a principal to an organization.
func (s *MembershipStore) Add(ctx context.Context, membership *models.Membership) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO memberships (org_id, principal_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		membership.OrgID,
		membership.PrincipalID,
		string(membership.Role),
		membership.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrMembershipAlreadyExists
		}
		if isForeignKeyViolation(err, "") {
			return store.ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to add membership: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("org_id", membership.OrgID.String()).
		Str("principal_id", membership.PrincipalID.String()).
		Str("role", string(membership.Role)).
		Msg("Added membership")

	return nil
}

// Remove removes a principal from an organization.
func (s *MembershipStore) Remove(ctx context.Context, orgID, principalID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM memberships WHERE org_id = $1 AND principal_id = $2
	`, orgID, principalID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	return nil
}

// ListByPrincipal returns all memberships of a principal.
func (s *MembershipStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error) {
	return s.list(ctx, `
		SELECT org_id, principal_id, role, created_at
		FROM memberships
		WHERE principal_id = $1
		ORDER BY created_at ASC
	`, principalID)
}

// ListByOrg returns all memberships of an organization, oldest first.
func (s *MembershipStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	return s.list(ctx, `
		SELECT org_id, principal_id, role, created_at
		FROM memberships
		WHERE org_id = $1
		ORDER BY created_at ASC
	`, orgID)
}

func (s *MembershipStore) list(ctx context.Context, query string, arg uuid.UUID) ([]*models.Membership, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	memberships, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Membership, error) {
		var m models.Membership
		var role string
		if err := row.Scan(&m.OrgID, &m.PrincipalID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		return &m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan memberships: %w", err)
	}

	return memberships, nil
}
