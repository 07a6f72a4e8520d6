package outline

import (
	"context"
	"fmt"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
	outlineRepo "tenderplan/internal/domain/repositories/outline"
	"tenderplan/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sectionColumns = `id, project_id, parent_id, title, order_index, content,
	generation_method, is_modified, last_integrated_at, citations, created_at, updated_at`

// PostgresSectionRepository implements the SectionRepository interface
type PostgresSectionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(config *postgres.RepositoryConfig) outlineRepo.SectionRepository {
	return &PostgresSectionRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanSection(row pgx.Row) (*models.Section, error) {
	var s models.Section
	var method *string
	err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.ParentID,
		&s.Title,
		&s.OrderIndex,
		&s.Content,
		&method,
		&s.IsModified,
		&s.LastIntegratedAt,
		&s.Citations,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.GenerationMethod = models.GenerationMethodManual
	if method != nil && *method != "" {
		s.GenerationMethod = models.GenerationMethod(*method)
	}
	if s.Citations == nil {
		s.Citations = []models.Citation{}
	}
	return &s, nil
}

// ListByProject returns all sections of a project ordered by order_index
func (r *PostgresSectionRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Section, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE project_id = $1
		ORDER BY order_index ASC, created_at ASC
	`, sectionColumns, r.tables.Sections)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	sections := []*models.Section{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return sections, nil
}

// GetByID retrieves a section scoped to a project
func (r *PostgresSectionRepository) GetByID(ctx context.Context, projectID, id string) (*models.Section, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND project_id = $2
	`, sectionColumns, r.tables.Sections)

	executor := postgres.GetExecutor(ctx, r.pool)
	s, err := scanSection(executor.QueryRow(ctx, query, id, projectID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get section: %w", err)
	}
	return s, nil
}

// Create inserts a section, keeping a client-generated ID when present
func (r *PostgresSectionRepository) Create(ctx context.Context, s *models.Section) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, parent_id, title, order_index, content,
			generation_method, is_modified, citations, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, uuid_generate_v4()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, r.tables.Sections)

	citations := s.Citations
	if citations == nil {
		citations = []models.Citation{}
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		s.ID,
		s.ProjectID,
		s.ParentID,
		s.Title,
		s.OrderIndex,
		s.Content,
		string(s.GenerationMethod),
		s.IsModified,
		citations,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("section %s already exists", s.ID),
				ResourceType: "section",
				ResourceID:   s.ID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("section parent: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update applies a partial update
func (r *PostgresSectionRepository) Update(ctx context.Context, projectID, id string, patch models.SectionPatch) error {
	var set setClause
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.OrderIndex != nil {
		set.add("order_index", *patch.OrderIndex)
	}
	if patch.Content != nil {
		set.add("content", *patch.Content)
	}
	if patch.GenerationMethod != nil {
		set.add("generation_method", string(*patch.GenerationMethod))
	}
	if patch.IsModified != nil {
		set.add("is_modified", *patch.IsModified)
	}
	if patch.LastIntegratedAt != nil {
		set.add("last_integrated_at", *patch.LastIntegratedAt)
	}
	if patch.Citations != nil {
		set.add("citations", patch.Citations)
	}
	if set.empty() {
		return nil
	}

	assignments, next := set.sql()
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND project_id = $%d`,
		r.tables.Sections, assignments, next, next+1)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, append(set.args, id, projectID)...)
	if err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateOrders writes order_index for every entry in one round trip
func (r *PostgresSectionRepository) UpdateOrders(ctx context.Context, projectID string, updates []models.SectionOrderUpdate) error {
	query := fmt.Sprintf(`
		UPDATE %s SET order_index = $1, updated_at = NOW()
		WHERE id = $2 AND project_id = $3
	`, r.tables.Sections)

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.OrderIndex, u.ID, projectID)
	}
	return execBatch(ctx, postgres.GetExecutor(ctx, r.pool), batch, true, "update section order")
}

// Delete removes a section; children and tasks cascade
func (r *PostgresSectionRepository) Delete(ctx context.Context, projectID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND project_id = $2`, r.tables.Sections)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, projectID)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountChildren counts direct children of a section
func (r *PostgresSectionRepository) CountChildren(ctx context.Context, projectID, parentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE project_id = $1 AND parent_id = $2`, r.tables.Sections)
	return r.count(ctx, query, projectID, parentID)
}

// DeleteChildren removes every direct child of a section
func (r *PostgresSectionRepository) DeleteChildren(ctx context.Context, projectID, parentID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1 AND parent_id = $2`, r.tables.Sections)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, projectID, parentID)
	if err != nil {
		return 0, fmt.Errorf("delete child sections: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountByProject counts all sections of a project
func (r *PostgresSectionRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE project_id = $1`, r.tables.Sections)
	return r.count(ctx, query, projectID)
}

// DeleteByProject removes every section of a project
func (r *PostgresSectionRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1`, r.tables.Sections)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, projectID)
	if err != nil {
		return 0, fmt.Errorf("delete project sections: %w", err)
	}
	return result.RowsAffected(), nil
}

// ClearContent nulls the integrated content of a section
func (r *PostgresSectionRepository) ClearContent(ctx context.Context, projectID, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET content = NULL, last_integrated_at = NULL, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
	`, r.tables.Sections)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, projectID)
	if err != nil {
		return fmt.Errorf("clear section content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresSectionRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return n, nil
}
