package handler

import (
	"log/slog"
	"net/http"

	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/httputil"
	outlineService "tenderplan/internal/service/outline"
)

// GenerationHandler triggers remote generation and reports progress
type GenerationHandler struct {
	sessions  SessionProvider
	generator *outlineService.GenerationOrchestrator
	logger    *slog.Logger
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(sessions SessionProvider, generator *outlineService.GenerationOrchestrator, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{sessions: sessions, generator: generator, logger: logger}
}

type generateRequest struct {
	SectionID       string            `json:"section_id"`
	TaskID          string            `json:"task_id"`
	SourceIDs       []string          `json:"source_ids"`
	UserDescription string            `json:"user_description"`
	Resolution      models.Resolution `json:"resolution"`
}

// Generate runs one generation
// POST /api/projects/{id}/generate/{kind}
// Existing artifacts without a resolution answer 409 with the conflict;
// the client repeats the request with resolution append, replace or cancel.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}

	var req generateRequest
	if err := httputil.ParseOptionalJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Resolution {
	case models.ResolutionNone, models.ResolutionAppend, models.ResolutionReplace, models.ResolutionCancel:
	default:
		httputil.RespondError(w, http.StatusBadRequest, "resolution must be append, replace or cancel")
		return
	}

	result, err := h.generator.Generate(r.Context(), s, outlineService.GenerationRequest{
		Kind:            models.GenerationKind(r.PathValue("kind")),
		SectionID:       req.SectionID,
		TaskID:          req.TaskID,
		SourceIDs:       req.SourceIDs,
		UserDescription: req.UserDescription,
	}, outlineService.FixedDecider(req.Resolution))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, result)
}

type progressResponse struct {
	models.Progress
	Streaming  []string `json:"streaming"`
	Generating []string `json:"generating"`
}

// GetProgress reports the generation counter and active flags
// GET /api/projects/{id}/progress
func (h *GenerationHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	httputil.RespondJSON(w, http.StatusOK, progressResponse{
		Progress:   s.Progress(),
		Streaming:  s.Streaming(),
		Generating: s.Busy(),
	})
}
