package outline

import (
	"context"

	models "tenderplan/internal/domain/models/outline"
)

// TaskRepository defines data access operations for tasks
type TaskRepository interface {
	// ListByProject returns every task of a project ordered by order_index
	ListByProject(ctx context.Context, projectID string) ([]*models.Task, error)

	// Create inserts a task. A non-empty ID is kept (client-generated).
	Create(ctx context.Context, task *models.Task) error

	// Update applies a partial update
	Update(ctx context.Context, projectID, id string, patch models.TaskPatch) error

	// UpdatePositions writes section_id/order_index for every entry in a single batch
	UpdatePositions(ctx context.Context, projectID string, updates []models.TaskMoveUpdate) error

	// Delete removes a task
	Delete(ctx context.Context, projectID, id string) error

	// CountBySection counts the tasks of a section
	CountBySection(ctx context.Context, projectID, sectionID string) (int, error)

	// DeleteBySection removes every task of a section
	DeleteBySection(ctx context.Context, projectID, sectionID string) (int64, error)
}

// TaskImageRepository defines data access operations for task images
type TaskImageRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]models.TaskImage, error)
	CountByTask(ctx context.Context, taskID string) (int, error)
	DeleteByTask(ctx context.Context, taskID string) (int64, error)
}

// TaskContentRepository defines data access operations for versioned task drafts
type TaskContentRepository interface {
	// ListLatestByProject returns the highest version per task of a project
	ListLatestByProject(ctx context.Context, projectID string) ([]models.TaskContent, error)
	CountByTask(ctx context.Context, taskID string) (int, error)
	DeleteByTask(ctx context.Context, taskID string) (int64, error)
}
