package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/funnelhq/funnel360/internal/models"
	"github.com/funnelhq/funnel360/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const principalColumns = `
	principal_id, name,
	github_id, github_login, email, avatar_url,
	created_at, updated_at
`

// PrincipalStore implements store.PrincipalStore using PostgreSQL.
type PrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPrincipalStore creates a new PostgreSQL-backed principal store.
func NewPrincipalStore(pool *pgxpool.Pool) *PrincipalStore {
	return &PrincipalStore{
		pool: pool,
	}
}

// Create creates a new principal in the database.
func (s *PrincipalStore) Create(ctx context.Context, principal *models.Principal) error {
	query := `
		INSERT INTO principals (` + principalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		principal.PrincipalID,
		principal.Name,
		principal.GitHubID,
		principal.GitHubLogin,
		principal.Email,
		principal.AvatarURL,
		principal.CreatedAt,
		principal.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrPrincipalAlreadyExists
		}
		return fmt.Errorf("failed to create principal: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("principal_id", principal.PrincipalID.String()).
		Str("name", principal.Name).
		Msg("Created principal")

	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE principal_id = $1`

	principal, err := scanPrincipal(s.pool.QueryRow(ctx, query, principalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	return principal, nil
}

// GetByGitHubID retrieves a principal by its GitHub user ID.
func (s *PrincipalStore) GetByGitHubID(ctx context.Context, githubID string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE github_id = $1`

	principal, err := scanPrincipal(s.pool.QueryRow(ctx, query, githubID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to get principal by github id: %w", err)
	}

	return principal, nil
}

// Update updates display attributes of an existing principal. The GitHub ID
// is never rewritten.
func (s *PrincipalStore) Update(ctx context.Context, principal *models.Principal) error {
	principal.UpdatedAt = time.Now()

	query := `
		UPDATE principals SET
			name = $2,
			github_login = $3,
			email = $4,
			avatar_url = $5,
			updated_at = $6
		WHERE principal_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		principal.PrincipalID,
		principal.Name,
		principal.GitHubLogin,
		principal.Email,
		principal.AvatarURL,
		principal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update principal: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrPrincipalNotFound
	}

	log.Debug().
		Str("principal_id", principal.PrincipalID.String()).
		Msg("Updated principal")

	return nil
}

func scanPrincipal(row pgx.Row) (*models.Principal, error) {
	var p models.Principal
	err := row.Scan(
		&p.PrincipalID,
		&p.Name,
		&p.GitHubID,
		&p.GitHubLogin,
		&p.Email,
		&p.AvatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
