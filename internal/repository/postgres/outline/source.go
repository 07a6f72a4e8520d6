package outline

import (
	"context"
	"fmt"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
	outlineRepo "tenderplan/internal/domain/repositories/outline"
	"tenderplan/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSourceRepository implements the SourceRepository interface
type PostgresSourceRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(config *postgres.RepositoryConfig) outlineRepo.SourceRepository {
	return &PostgresSourceRepository{pool: config.Pool, tables: config.Tables}
}

// ListApplicable returns project-scoped sources followed by global ones
func (r *PostgresSourceRepository) ListApplicable(ctx context.Context, projectID string) ([]models.Source, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, title, type, origin_url, created_at
		FROM %s
		WHERE project_id = $1 OR project_id IS NULL
		ORDER BY project_id NULLS LAST, created_at ASC
	`, r.tables.Sources)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []models.Source{}
	for rows.Next() {
		var s models.Source
		var sourceType *string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Title, &sourceType, &s.OriginURL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if sourceType != nil {
			s.Type = models.SourceType(*sourceType)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// ListLinkedIDs returns the source IDs linked to a project
func (r *PostgresSourceRepository) ListLinkedIDs(ctx context.Context, projectID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT ps.source_id
		FROM %s ps
		JOIN %s s ON s.id = ps.source_id
		WHERE ps.project_id = $1
		ORDER BY s.created_at ASC
	`, r.tables.ProjectSources, r.tables.Sources)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list linked sources: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan linked source: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked sources: %w", err)
	}
	return ids, nil
}

// PostgresProjectRepository implements the ProjectRepository interface
type PostgresProjectRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(config *postgres.RepositoryConfig) outlineRepo.ProjectRepository {
	return &PostgresProjectRepository{pool: config.Pool, tables: config.Tables}
}

// GetByID retrieves a project owned by userID
func (r *PostgresProjectRepository) GetByID(ctx context.Context, id, userID string) (*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, created_at, updated_at
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, r.tables.Projects)

	var p models.Project
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id, userID).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// Create inserts a project, keeping a preset ID when present
func (r *PostgresProjectRepository) Create(ctx context.Context, p *models.Project) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, uuid_generate_v4()), $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, created_at, updated_at
	`, r.tables.Projects)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, p.ID, p.UserID, p.Name, p.CreatedAt, p.UpdatedAt).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}
