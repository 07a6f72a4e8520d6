package outline

import (
	"context"
	"log/slog"
	"time"

	models "tenderplan/internal/domain/models/outline"
	outlineRepo "tenderplan/internal/domain/repositories/outline"

	"github.com/patrickmn/go-cache"
)

// DefaultSourceTTL bounds how long a project's applicable sources are cached.
const DefaultSourceTTL = 5 * time.Minute

// SourceCatalog caches the applicable sources (project plus global) per project.
type SourceCatalog struct {
	repo   outlineRepo.SourceRepository
	client *cache.Cache
	logger *slog.Logger
}

// NewSourceCatalog creates a catalog. ttl <= 0 uses DefaultSourceTTL.
func NewSourceCatalog(repo outlineRepo.SourceRepository, ttl time.Duration, logger *slog.Logger) *SourceCatalog {
	if ttl <= 0 {
		ttl = DefaultSourceTTL
	}
	return &SourceCatalog{
		repo:   repo,
		client: cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Applicable returns the sources visible to a project.
func (c *SourceCatalog) Applicable(ctx context.Context, projectID string) ([]models.Source, error) {
	if v, ok := c.client.Get(projectID); ok {
		return v.([]models.Source), nil
	}
	sources, err := c.repo.ListApplicable(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.client.Set(projectID, sources, cache.DefaultExpiration)
	c.logger.Debug("sources cached", "project_id", projectID, "count", len(sources))
	return sources, nil
}

// Invalidate drops the cached entry of a project.
func (c *SourceCatalog) Invalidate(projectID string) {
	c.client.Delete(projectID)
}

// InvalidateAll drops every cached entry. A global source is visible to all
// projects.
func (c *SourceCatalog) InvalidateAll() {
	c.client.Flush()
}

// InvalidateFor drops the entries a source change can affect.
func (c *SourceCatalog) InvalidateFor(evt models.ChangeEvent, projectID string) {
	if evt.IsGlobalSource() {
		c.InvalidateAll()
		c.logger.Debug("source cache flushed", "source_id", evt.RecordID)
		return
	}
	c.Invalidate(projectID)
}
