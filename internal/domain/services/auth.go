package services

import "context"

// ProjectAuthorizer decides whether a user may open a project's outline.
// Sections, tasks, generations and the event feed are all addressed through
// their project, so this is the only access check.
type ProjectAuthorizer interface {
	// CanAccessProject returns nil, an error wrapping domain.ErrForbidden, or
	// a lookup failure.
	CanAccessProject(ctx context.Context, userID, projectID string) error
}
