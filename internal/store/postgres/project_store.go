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
	"github.com/shopspring/decimal"
)

// budget travels as text so NUMERIC precision survives the round trip.
const projectColumns = `
	project_id, org_id, client_id, title, description, owner_id,
	budget::text, priority, created_by, created_at, updated_at
`

// ProjectStore implements store.ProjectStore using PostgreSQL.
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore creates a new PostgreSQL-backed project store.
func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{
		pool: pool,
	}
}

// Create inserts a new project. The composite foreign key on (client_id,
// org_id) rejects a client from another organization.
func (s *ProjectStore) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (
			project_id, org_id, client_id, title, description, owner_id,
			budget, priority, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		project.ProjectID,
		project.OrgID,
		project.ClientID,
		project.Title,
		project.Description,
		project.OwnerID,
		project.Budget.String(),
		string(project.Priority),
		project.CreatedBy,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrProjectAlreadyExists
		}
		if isForeignKeyViolation(err, projectClientConstraint) {
			return store.ErrClientNotFound
		}
		if isForeignKeyViolation(err, "") {
			return store.ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to create project: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("project_id", project.ProjectID.String()).
		Str("org_id", project.OrgID.String()).
		Str("client_id", project.ClientID.String()).
		Msg("Created project")

	return nil
}

// Get retrieves a project by ID within an organization.
func (s *ProjectStore) Get(ctx context.Context, orgID, projectID uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE org_id = $1 AND project_id = $2`

	project, err := scanProject(s.pool.QueryRow(ctx, query, orgID, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// List returns the organization's projects, newest first.
func (s *ProjectStore) List(ctx context.Context, orgID uuid.UUID, opts store.ListProjectsOptions) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE org_id = $1
		  AND ($2::uuid IS NULL OR client_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.pool.Query(ctx, query, orgID, opts.ClientID, opts.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Project, error) {
		return scanProject(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan projects: %w", err)
	}

	return projects, nil
}

// Update replaces the mutable fields of a project.
func (s *ProjectStore) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects SET
			client_id = $3,
			title = $4,
			description = $5,
			owner_id = $6,
			budget = $7::numeric,
			priority = $8,
			updated_at = $9
		WHERE org_id = $1 AND project_id = $2
	`

	result, err := s.pool.Exec(ctx, query,
		project.OrgID,
		project.ProjectID,
		project.ClientID,
		project.Title,
		project.Description,
		project.OwnerID,
		project.Budget.String(),
		string(project.Priority),
		project.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err, projectClientConstraint) {
			return store.ErrClientNotFound
		}
		return fmt.Errorf("failed to update project: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProjectNotFound
	}

	log.Debug().
		Str("project_id", project.ProjectID.String()).
		Msg("Updated project")

	return nil
}

// Delete removes a project.
func (s *ProjectStore) Delete(ctx context.Context, orgID, projectID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE org_id = $1 AND project_id = $2`, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProjectNotFound
	}

	log.Debug().
		Str("project_id", projectID.String()).
		Msg("Deleted project")

	return nil
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var (
		p        models.Project
		budget   string
		priority string
	)
	err := row.Scan(
		&p.ProjectID,
		&p.OrgID,
		&p.ClientID,
		&p.Title,
		&p.Description,
		&p.OwnerID,
		&budget,
		&priority,
		&p.CreatedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Budget, err = decimal.NewFromString(budget)
	if err != nil {
		return nil, fmt.Errorf("invalid budget %q: %w", budget, err)
	}
	p.Priority = models.Priority(priority)

	return &p, nil
}
