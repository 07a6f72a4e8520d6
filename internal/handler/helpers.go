package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tenderplan/internal/domain"
	"tenderplan/internal/httputil"
	outlineService "tenderplan/internal/service/outline"
)

// SessionProvider returns the live outline session of a project.
type SessionProvider interface {
	Get(ctx context.Context, projectID string) (*outlineService.Session, error)
}

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var genConflict *domain.GenerationConflictError
	var genFailed *domain.GenerationFailedError
	var missing *domain.MissingDataError
	var conflictErr *domain.ConflictError
	var httpErr domain.HTTPError

	switch {
	case errors.As(err, &genConflict):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, genConflict.Error(), map[string]interface{}{
			"conflict": map[string]interface{}{
				"kind":      genConflict.Kind,
				"target_id": genConflict.TargetID,
				"existing":  genConflict.Existing,
			},
		})
	// Checked before MissingDataError, which it may wrap for non-structure kinds.
	case errors.As(err, &genFailed):
		httputil.RespondError(w, http.StatusBadGateway, genFailed.Error())
	case errors.As(err, &missing):
		httputil.RespondErrorWithExtras(w, http.StatusUnprocessableEntity, missing.Error(), map[string]interface{}{
			"error": "MISSING_DATA",
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// projectSession resolves the session of the project authorized by the
// ProjectAccess middleware. It writes the error response and returns nil on failure.
func projectSession(w http.ResponseWriter, r *http.Request, sessions SessionProvider, logger *slog.Logger) *outlineService.Session {
	projectID := httputil.GetProjectID(r)
	if projectID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "project not found in context")
		return nil
	}
	s, err := sessions.Get(r.Context(), projectID)
	if err != nil {
		logger.Error("failed to open outline session", "project_id", projectID, "error", err)
		handleError(w, err)
		return nil
	}
	return s
}

// HealthCheck reports liveness
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
