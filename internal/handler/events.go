package handler

import (
	"context"
	"log/slog"
	"net/http"

	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/handler/sse"
	"tenderplan/internal/httputil"
	"tenderplan/internal/realtime"
	outlineService "tenderplan/internal/service/outline"
)

// SessionHolder keeps a project's session open while a stream is connected.
type SessionHolder interface {
	Acquire(ctx context.Context, projectID string) (*outlineService.Session, func(), error)
}

// EventsHandler streams project events over Server-Sent Events
type EventsHandler struct {
	sessions SessionHolder
	hub      *realtime.Hub
	config   *sse.Config
	logger   *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(sessions SessionHolder, hub *realtime.Hub, config *sse.Config, logger *slog.Logger) *EventsHandler {
	if config == nil {
		config = sse.DefaultConfig()
	}
	return &EventsHandler{sessions: sessions, hub: hub, config: config, logger: logger}
}

// Stream handles GET /api/projects/{id}/events
// Events: outline_reloaded, task_generated, progress, streaming, notification
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	// Opening the session starts its change subscriptions, so generated
	// tasks are counted even before any other request touches the project.
	// The session stays open until the last stream of the project ends.
	projectID := httputil.GetProjectID(r)
	if projectID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "project not found in context")
		return
	}
	s, release, err := h.sessions.Acquire(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to open outline session", "project_id", projectID, "error", err)
		handleError(w, err)
		return
	}
	defer release()

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	client := h.hub.NewClient(s.ProjectID(), httputil.GetUserID(r))
	defer h.hub.CloseClient(client)

	logger := h.logger.With("project_id", s.ProjectID(), "client_id", client.ID)
	logger.Info("SSE stream established")

	w.WriteHeader(http.StatusOK)
	if err := writer.WriteRetry(h.config.RetryInterval); err != nil {
		logger.Debug("initial write failed - connection already dead", "error", err)
		return
	}
	// Current counters so a reconnecting client does not wait for the next change.
	if err := writer.WriteEvent(models.ClientEvent{Type: models.EventProgress, Data: s.Progress()}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	pings := sse.KeepAlive(ctx, writer, h.config.KeepAliveInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("SSE client disconnected")
			return
		case err := <-pings:
			logger.Warn("SSE keep-alive failed", "error", err)
			return
		case evt, ok := <-client.Outbound:
			if !ok {
				return
			}
			if err := writer.WriteEvent(evt); err != nil {
				logger.Warn("SSE write failed", "error", err)
				return
			}
		}
	}
}
