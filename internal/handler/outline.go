package handler

import (
	"log/slog"
	"net/http"
	"strings"

	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/httputil"
	outlineService "tenderplan/internal/service/outline"
)

// OutlineHandler serves the outline tree and inline edits
type OutlineHandler struct {
	sessions SessionProvider
	editor   *outlineService.Editor
	logger   *slog.Logger
}

// NewOutlineHandler creates a new outline handler
func NewOutlineHandler(sessions SessionProvider, editor *outlineService.Editor, logger *slog.Logger) *OutlineHandler {
	return &OutlineHandler{sessions: sessions, editor: editor, logger: logger}
}

type outlineResponse struct {
	*models.Outline
	Expanded []string `json:"expanded"`
}

type flatResponse struct {
	ProjectID string           `json:"project_id"`
	Rows      []models.FlatRow `json:"rows"`
}

// GetOutline returns the current outline
// GET /api/projects/{id}/outline
// ?flat=1 returns visible rows; ?expanded=a,b replaces the expanded set first
func (h *OutlineHandler) GetOutline(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}

	q := r.URL.Query()
	if q.Has("expanded") {
		s.SetExpanded(splitIDs(q.Get("expanded")))
	}
	if q.Get("flat") == "1" || q.Get("flat") == "true" {
		httputil.RespondJSON(w, http.StatusOK, flatResponse{ProjectID: s.ProjectID(), Rows: s.Flatten()})
		return
	}

	httputil.RespondJSON(w, http.StatusOK, outlineResponse{Outline: s.Outline(), Expanded: s.Expanded()})
}

// ReloadOutline forces a reload from the store
// POST /api/projects/{id}/outline/reload
func (h *OutlineHandler) ReloadOutline(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	if err := s.Reload(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, outlineResponse{Outline: s.Outline(), Expanded: s.Expanded()})
}

type expandedRequest struct {
	Expanded []string `json:"expanded"`
}

// SetExpanded replaces the expanded section set
// PUT /api/projects/{id}/outline/expanded
func (h *OutlineHandler) SetExpanded(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var req expandedRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.SetExpanded(req.Expanded)
	httputil.RespondJSON(w, http.StatusOK, expandedRequest{Expanded: s.Expanded()})
}

// SaveOutline rebalances and persists the whole outline
// POST /api/projects/{id}/outline/save
func (h *OutlineHandler) SaveOutline(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	o, err := h.editor.SaveOutline(r.Context(), s)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, o)
}

// AutoSortChapters orders chapters by their leading Chinese numeral
// POST /api/projects/{id}/outline/auto-sort
func (h *OutlineHandler) AutoSortChapters(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	changed, err := h.editor.AutoSortSections(r.Context(), s, nil)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

type createSectionRequest struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Title    string  `json:"title"`
}

// CreateSection adds a section at the end of its siblings
// POST /api/projects/{id}/sections
func (h *OutlineHandler) CreateSection(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var req createSectionRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	section, err := h.editor.CreateSection(r.Context(), s, outlineService.CreateSectionRequest{
		ID:       req.ID,
		ParentID: req.ParentID,
		Title:    strings.TrimSpace(req.Title),
	})
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, section)
}

type updateSectionRequest struct {
	Title      *string                 `json:"title"`
	Content    httputil.OptionalString `json:"content"`
	IsModified *bool                   `json:"is_modified"`
	Citations  []models.Citation       `json:"citations"`
}

// UpdateSection edits a section
// PATCH /api/projects/{id}/sections/{sid}
// "content": null clears the integrated content
func (h *OutlineHandler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var req updateSectionRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := models.SectionPatch{
		Title:      req.Title,
		IsModified: req.IsModified,
		Citations:  req.Citations,
	}
	if v, ok := req.Content.Ptr(); ok {
		content := ""
		if v != nil {
			content = *v
		}
		patch.Content = &content
	}

	section, err := h.editor.UpdateSection(r.Context(), s, r.PathValue("sid"), patch)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, section)
}

// DeleteSection removes a section with its subtree
// DELETE /api/projects/{id}/sections/{sid}
func (h *OutlineHandler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	if err := h.editor.DeleteSection(r.Context(), s, r.PathValue("sid")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AutoSortSection orders a section's children, or its tasks with ?scope=tasks
// POST /api/projects/{id}/sections/{sid}/auto-sort
func (h *OutlineHandler) AutoSortSection(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	sectionID := r.PathValue("sid")

	var changed bool
	var err error
	if r.URL.Query().Get("scope") == "tasks" {
		changed, err = h.editor.AutoSortTasks(r.Context(), s, sectionID)
	} else {
		changed, err = h.editor.AutoSortSections(r.Context(), s, &sectionID)
	}
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

type createTaskRequest struct {
	ID              string `json:"id"`
	SectionID       string `json:"section_id"`
	RequirementText string `json:"requirement_text"`
	WorkflowType    string `json:"workflow_type"`
}

// CreateTask adds a task at the end of a section
// POST /api/projects/{id}/tasks
func (h *OutlineHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var req createTaskRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.editor.CreateTask(r.Context(), s, outlineService.CreateTaskRequest{
		ID:              req.ID,
		SectionID:       req.SectionID,
		RequirementText: strings.TrimSpace(req.RequirementText),
		WorkflowType:    req.WorkflowType,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, task)
}

// UpdateTask edits a task
// PATCH /api/projects/{id}/tasks/{tid}
func (h *OutlineHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	var patch models.TaskPatch
	if err := httputil.ParseJSON(w, r, &patch); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.editor.UpdateTask(r.Context(), s, r.PathValue("tid"), patch)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, task)
}

// DeleteTask removes a task
// DELETE /api/projects/{id}/tasks/{tid}
func (h *OutlineHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}
	if err := h.editor.DeleteTask(r.Context(), s, r.PathValue("tid")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitIDs(raw string) []string {
	ids := []string{}
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
