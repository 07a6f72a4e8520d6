package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"tenderplan/internal/domain"
	"tenderplan/internal/domain/services"
	"tenderplan/internal/httputil"

	"github.com/google/uuid"
)

// ProjectAccess checks that the authenticated user may open the project named
// by the {id} path value and stores its ID in the request context. Wrap each
// project-scoped route with it so the path value is already set.
func ProjectAccess(authorizer services.ProjectAuthorizer, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			projectID := r.PathValue("id")
			if _, err := uuid.Parse(projectID); err != nil {
				httputil.RespondError(w, http.StatusBadRequest, "invalid project ID")
				return
			}

			userID := httputil.GetUserID(r)
			if userID == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if err := authorizer.CanAccessProject(r.Context(), userID, projectID); err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					httputil.RespondError(w, http.StatusForbidden, "access denied")
					return
				}
				logger.Error("project access check failed", "project_id", projectID, "user_id", userID, "error", err)
				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next(w, httputil.WithProjectID(r, projectID))
		}
	}
}
