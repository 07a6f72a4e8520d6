package outline

import (
	"context"

	models "tenderplan/internal/domain/models/outline"
)

// SourceRepository defines data access operations for reference sources
type SourceRepository interface {
	// ListApplicable returns project-scoped sources plus global ones
	ListApplicable(ctx context.Context, projectID string) ([]models.Source, error)

	// ListLinkedIDs returns the source IDs linked to a project
	ListLinkedIDs(ctx context.Context, projectID string) ([]string, error)
}

// ProjectRepository defines data access operations for projects
type ProjectRepository interface {
	// GetByID retrieves a project owned by userID
	GetByID(ctx context.Context, id, userID string) (*models.Project, error)

	// Create inserts a project
	Create(ctx context.Context, project *models.Project) error
}
