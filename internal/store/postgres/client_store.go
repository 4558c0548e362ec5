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

const (
	clientColumns = `client_id, org_id, name, email, notes, created_by, created_at, updated_at`

	// projects_client_fkey ties a project to a client in the same organization.
	projectClientConstraint = "projects_client_fkey"
)

// ClientStore implements store.ClientStore using PostgreSQL.
type ClientStore struct {
	pool *pgxpool.Pool
}

// NewClientStore creates a new PostgreSQL-backed client store.
func NewClientStore(pool *pgxpool.Pool) *ClientStore {
	return &ClientStore{
		pool: pool,
	}
}

// Create inserts a new client.
func (s *ClientStore) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		client.ClientID,
		client.OrgID,
		client.Name,
		client.Email,
		client.Notes,
		client.CreatedBy,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrClientAlreadyExists
		}
		if isForeignKeyViolation(err, "") {
			return store.ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to create client: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("client_id", client.ClientID.String()).
		Str("org_id", client.OrgID.String()).
		Msg("Created client")

	return nil
}

// Get retrieves a client by ID within an organization.
func (s *ClientStore) Get(ctx context.Context, orgID, clientID uuid.UUID) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE org_id = $1 AND client_id = $2`

	client, err := scanClient(s.pool.QueryRow(ctx, query, orgID, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// List returns the organization's clients, newest first.
func (s *ClientStore) List(ctx context.Context, orgID uuid.UUID, opts store.ListOptions) ([]*models.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE org_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, orgID, opts.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	clients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Client, error) {
		return scanClient(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan clients: %w", err)
	}

	return clients, nil
}

// Update replaces the mutable fields of a client.
func (s *ClientStore) Update(ctx context.Context, client *models.Client) error {
	client.UpdatedAt = time.Now()

	query := `
		UPDATE clients SET
			name = $3,
			email = $4,
			notes = $5,
			updated_at = $6
		WHERE org_id = $1 AND client_id = $2
	`

	result, err := s.pool.Exec(ctx, query,
		client.OrgID,
		client.ClientID,
		client.Name,
		client.Email,
		client.Notes,
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrClientNotFound
	}

	log.Debug().
		Str("client_id", client.ClientID.String()).
		Msg("Updated client")

	return nil
}

// Delete removes a client. The foreign key from projects rejects the delete
// while any project still references the client.
func (s *ClientStore) Delete(ctx context.Context, orgID, clientID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE org_id = $1 AND client_id = $2`, orgID, clientID)
	if err != nil {
		if isForeignKeyViolation(err, projectClientConstraint) {
			return store.ErrClientInUse
		}
		return fmt.Errorf("failed to delete client: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrClientNotFound
	}

	log.Debug().
		Str("client_id", clientID.String()).
		Msg("Deleted client")

	return nil
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	err := row.Scan(
		&c.ClientID,
		&c.OrgID,
		&c.Name,
		&c.Email,
		&c.Notes,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
