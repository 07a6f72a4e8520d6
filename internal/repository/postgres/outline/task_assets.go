package outline

import (
	"context"
	"fmt"

	models "tenderplan/internal/domain/models/outline"
	outlineRepo "tenderplan/internal/domain/repositories/outline"
	"tenderplan/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTaskImageRepository implements the TaskImageRepository interface
type PostgresTaskImageRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewTaskImageRepository creates a new task image repository
func NewTaskImageRepository(config *postgres.RepositoryConfig) outlineRepo.TaskImageRepository {
	return &PostgresTaskImageRepository{pool: config.Pool, tables: config.Tables}
}

// ListByProject returns the images of every task in a project
func (r *PostgresTaskImageRepository) ListByProject(ctx context.Context, projectID string) ([]models.TaskImage, error) {
	query := fmt.Sprintf(`
		SELECT id, task_id, project_id, image_type, prompt, image_url, caption, created_at
		FROM %s
		WHERE project_id = $1
		ORDER BY created_at ASC
	`, r.tables.TaskImages)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list task images: %w", err)
	}
	defer rows.Close()

	images := []models.TaskImage{}
	for rows.Next() {
		var img models.TaskImage
		var imageType *string
		if err := rows.Scan(&img.ID, &img.TaskID, &img.ProjectID, &imageType, &img.Prompt,
			&img.ImageURL, &img.Caption, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task image: %w", err)
		}
		if imageType != nil {
			img.ImageType = *imageType
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task images: %w", err)
	}
	return images, nil
}

// CountByTask counts the images of a task
func (r *PostgresTaskImageRepository) CountByTask(ctx context.Context, taskID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE task_id = $1`, r.tables.TaskImages)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count task images: %w", err)
	}
	return n, nil
}

// DeleteByTask removes every image of a task
func (r *PostgresTaskImageRepository) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE task_id = $1`, r.tables.TaskImages)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete task images: %w", err)
	}
	return result.RowsAffected(), nil
}

// PostgresTaskContentRepository implements the TaskContentRepository interface
type PostgresTaskContentRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewTaskContentRepository creates a new task content repository
func NewTaskContentRepository(config *postgres.RepositoryConfig) outlineRepo.TaskContentRepository {
	return &PostgresTaskContentRepository{pool: config.Pool, tables: config.Tables}
}

// ListLatestByProject returns the highest content version of every task
func (r *PostgresTaskContentRepository) ListLatestByProject(ctx context.Context, projectID string) ([]models.TaskContent, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (c.task_id) c.task_id, c.version, COALESCE(c.content, ''), c.word_count, c.updated_at
		FROM %s c
		JOIN %s t ON t.id = c.task_id
		WHERE t.project_id = $1
		ORDER BY c.task_id, c.version DESC
	`, r.tables.TaskContents, r.tables.Tasks)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list task contents: %w", err)
	}
	defer rows.Close()

	contents := []models.TaskContent{}
	for rows.Next() {
		var c models.TaskContent
		var wordCount *int
		if err := rows.Scan(&c.TaskID, &c.Version, &c.Content, &wordCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task content: %w", err)
		}
		if wordCount != nil {
			c.WordCount = *wordCount
		}
		contents = append(contents, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task contents: %w", err)
	}
	return contents, nil
}

// CountByTask counts non-empty drafts of a task
func (r *PostgresTaskContentRepository) CountByTask(ctx context.Context, taskID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE task_id = $1 AND content <> ''`, r.tables.TaskContents)

	var n int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count task contents: %w", err)
	}
	return n, nil
}

// DeleteByTask removes every draft of a task
func (r *PostgresTaskContentRepository) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE task_id = $1`, r.tables.TaskContents)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete task contents: %w", err)
	}
	return result.RowsAffected(), nil
}
