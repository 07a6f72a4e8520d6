package outline

import (
	"context"

	models "tenderplan/internal/domain/models/outline"
)

// SectionRepository defines data access operations for sections
type SectionRepository interface {
	// ListByProject returns every section of a project ordered by order_index.
	// Children and Tasks are left empty.
	ListByProject(ctx context.Context, projectID string) ([]*models.Section, error)

	// GetByID retrieves a section scoped to a project
	GetByID(ctx context.Context, projectID, id string) (*models.Section, error)

	// Create inserts a section. A non-empty ID is kept (client-generated).
	Create(ctx context.Context, section *models.Section) error

	// Update applies a partial update
	Update(ctx context.Context, projectID, id string, patch models.SectionPatch) error

	// UpdateOrders writes order_index for every entry in a single batch
	UpdateOrders(ctx context.Context, projectID string, updates []models.SectionOrderUpdate) error

	// Delete removes a section; descendants and their tasks cascade
	Delete(ctx context.Context, projectID, id string) error

	// CountChildren counts direct children of a section
	CountChildren(ctx context.Context, projectID, parentID string) (int, error)

	// DeleteChildren removes every direct child of a section (cascading)
	DeleteChildren(ctx context.Context, projectID, parentID string) (int64, error)

	// CountByProject counts all sections of a project
	CountByProject(ctx context.Context, projectID string) (int, error)

	// DeleteByProject removes every section of a project (cascading)
	DeleteByProject(ctx context.Context, projectID string) (int64, error)

	// ClearContent nulls the integrated content of a section
	ClearContent(ctx context.Context, projectID, id string) error
}
