package handler

import (
	"log/slog"
	"net/http"

	outlineService "tenderplan/internal/service/outline"
)

// ExportHandler renders the outline as a markdown document
type ExportHandler struct {
	sessions  SessionProvider
	converter outlineService.MarkdownConverter
	logger    *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(sessions SessionProvider, converter outlineService.MarkdownConverter, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{sessions: sessions, converter: converter, logger: logger}
}

// ExportMarkdown returns the outline as markdown
// GET /api/projects/{id}/outline/export
func (h *ExportHandler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	s := projectSession(w, r, h.sessions, h.logger)
	if s == nil {
		return
	}

	doc, err := outlineService.ExportMarkdown(s.Outline(), h.converter)
	if err != nil {
		h.logger.Error("outline export failed", "project_id", s.ProjectID(), "error", err)
		handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", `attachment; filename="outline.md"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
