package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tenderplan/internal/domain"
	outlineRepo "tenderplan/internal/domain/repositories/outline"

	"github.com/patrickmn/go-cache"
)

// DefaultAccessTTL is how long an access decision is reused.
const DefaultAccessTTL = time.Minute

// OwnerAuthorizer grants access to the owner of a project. Decisions are
// cached per user and project; lookup failures are not.
type OwnerAuthorizer struct {
	projects outlineRepo.ProjectRepository
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewOwnerAuthorizer creates an authorizer. A ttl <= 0 uses DefaultAccessTTL.
func NewOwnerAuthorizer(projects outlineRepo.ProjectRepository, ttl time.Duration, logger *slog.Logger) *OwnerAuthorizer {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &OwnerAuthorizer{
		projects: projects,
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// CanAccessProject implements services.ProjectAuthorizer.
func (a *OwnerAuthorizer) CanAccessProject(ctx context.Context, userID, projectID string) error {
	key := userID + ":" + projectID
	if allowed, ok := a.cache.Get(key); ok {
		if allowed.(bool) {
			return nil
		}
		return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
	}

	// GetByID filters by owner, so not found means someone else's project.
	_, err := a.projects.GetByID(ctx, projectID, userID)
	switch {
	case err == nil:
		a.cache.SetDefault(key, true)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		a.cache.SetDefault(key, false)
		a.logger.Debug("project access denied", "project_id", projectID, "user_id", userID)
		return fmt.Errorf("access denied to project %s: %w", projectID, domain.ErrForbidden)
	default:
		return fmt.Errorf("check project access: %w", err)
	}
}
