package handler

import (
	"log/slog"
	"net/http"

	"tenderplan/internal/httputil"
	outlineService "tenderplan/internal/service/outline"
)

// DragHandler applies drag-and-drop reorders
type DragHandler struct {
	sessions SessionProvider
	drag     *outlineService.DragController
	logger   *slog.Logger
}

// NewDragHandler creates a new drag handler
func NewDragHandler(sessions SessionProvider, drag *outlineService.DragController, logger *slog.Logger) *DragHandler {
	return &DragHandler{sessions: sessions, drag: drag, logger: logger}
}

type dropResponse struct {
	Moved bool `json:"moved"`
}

// DropSection reorders a section among its siblings
// POST /api/projects/{id}/drag/section
// Drops across parents are ignored and report moved=false
func (h *DragHandler) DropSection(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var drop outlineService.SectionDrop
	if err := httputil.ParseJSON(w, r, &drop); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	moved, err := h.drag.DropSection(r.Context(), s, drop)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, dropResponse{Moved: moved})
}

// DropTask moves a task within or across sections
// POST /api/projects/{id}/drag/task
func (h *DragHandler) DropTask(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var drop outlineService.TaskDrop
	if err := httputil.ParseJSON(w, r, &drop); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch drop.OverType {
	case outlineService.DropOnTask, outlineService.DropOnSection, outlineService.DropOnPlaceholder:
	default:
		httputil.RespondError(w, http.StatusBadRequest, "over_type must be task, section or empty-section-placeholder")
		return
	}

	moved, err := h.drag.DropTask(r.Context(), s, drop)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, dropResponse{Moved: moved})
}
