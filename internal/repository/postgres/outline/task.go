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

const taskColumns = `id, project_id, section_id, requirement_text, status, order_index,
	workflow_type, generation_method, is_modified, citations, citation_source_id,
	citation_page, created_at, updated_at`

// PostgresTaskRepository implements the TaskRepository interface
type PostgresTaskRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(config *postgres.RepositoryConfig) outlineRepo.TaskRepository {
	return &PostgresTaskRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var status, workflow, method *string
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.SectionID,
		&t.RequirementText,
		&status,
		&t.OrderIndex,
		&workflow,
		&method,
		&t.IsModified,
		&t.Citations,
		&t.CitationSourceID,
		&t.CitationPage,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatusPending
	if status != nil && *status != "" {
		t.Status = models.TaskStatus(*status)
	}
	if workflow != nil {
		t.WorkflowType = *workflow
	}
	t.GenerationMethod = models.GenerationMethodManual
	if method != nil && *method != "" {
		t.GenerationMethod = models.GenerationMethod(*method)
	}
	if t.Citations == nil {
		t.Citations = []models.Citation{}
	}
	return &t, nil
}

// ListByProject returns all tasks of a project ordered by order_index
func (r *PostgresTaskRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE project_id = $1
		ORDER BY order_index ASC, created_at ASC
	`, taskColumns, r.tables.Tasks)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts a task, keeping a client-generated ID when present
func (r *PostgresTaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, project_id, section_id, requirement_text, status, order_index,
			workflow_type, generation_method, is_modified, citations, citation_source_id,
			citation_page, created_at, updated_at)
		VALUES (COALESCE(NULLIF($1, '')::uuid, uuid_generate_v4()), $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`, r.tables.Tasks)

	citations := t.Citations
	if citations == nil {
		citations = []models.Citation{}
	}

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		t.ID,
		t.ProjectID,
		t.SectionID,
		t.RequirementText,
		string(t.Status),
		t.OrderIndex,
		t.WorkflowType,
		string(t.GenerationMethod),
		t.IsModified,
		citations,
		t.CitationSourceID,
		t.CitationPage,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if postgres.IsPgDuplicateError(err) {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("task %s already exists", t.ID),
				ResourceType: "task",
				ResourceID:   t.ID,
			}
		}
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("task section %s: %w", t.SectionID, domain.ErrNotFound)
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update applies a partial update
func (r *PostgresTaskRepository) Update(ctx context.Context, projectID, id string, patch models.TaskPatch) error {
	var set setClause
	if patch.SectionID != nil {
		set.add("section_id", *patch.SectionID)
	}
	if patch.RequirementText != nil {
		set.add("requirement_text", *patch.RequirementText)
	}
	if patch.Status != nil {
		set.add("status", string(*patch.Status))
	}
	if patch.OrderIndex != nil {
		set.add("order_index", *patch.OrderIndex)
	}
	if patch.WorkflowType != nil {
		set.add("workflow_type", *patch.WorkflowType)
	}
	if patch.IsModified != nil {
		set.add("is_modified", *patch.IsModified)
	}
	if patch.CitationSourceID != nil {
		set.add("citation_source_id", *patch.CitationSourceID)
	}
	if patch.CitationPage != nil {
		set.add("citation_page", *patch.CitationPage)
	}
	if set.empty() {
		return nil
	}

	assignments, next := set.sql()
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d AND project_id = $%d`,
		r.tables.Tasks, assignments, next, next+1)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, append(set.args, id, projectID)...)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("task section: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdatePositions writes section_id and order_index in one round trip.
// A nil SectionID leaves the task in its section.
func (r *PostgresTaskRepository) UpdatePositions(ctx context.Context, projectID string, updates []models.TaskMoveUpdate) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			order_index = $1,
			section_id = COALESCE($2::uuid, section_id),
			updated_at = NOW()
		WHERE id = $3 AND project_id = $4
	`, r.tables.Tasks)

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.OrderIndex, u.SectionID, u.ID, projectID)
	}
	return execBatch(ctx, postgres.GetExecutor(ctx, r.pool), batch, true, "update task position")
}

// Delete removes a task
func (r *PostgresTaskRepository) Delete(ctx context.Context, projectID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND project_id = $2`, r.tables.Tasks)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, projectID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountBySection counts the tasks of a section
func (r *PostgresTaskRepository) CountBySection(ctx context.Context, projectID, sectionID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE project_id = $1 AND section_id = $2`, r.tables.Tasks)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, projectID, sectionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

// DeleteBySection removes every task of a section
func (r *PostgresTaskRepository) DeleteBySection(ctx context.Context, projectID, sectionID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE project_id = $1 AND section_id = $2`, r.tables.Tasks)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, projectID, sectionID)
	if err != nil {
		return 0, fmt.Errorf("delete section tasks: %w", err)
	}
	return result.RowsAffected(), nil
}
