package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
)

const (
	// DefaultTimeout bounds one webhook call
	DefaultTimeout = 10 * time.Minute

	// maxResponseSize caps the response body read from a webhook
	maxResponseSize = 10 << 20

	missingDataCode = "MISSING_DATA"
)

var (
	// ErrEmptyResponse is returned when a webhook answers 2xx with no body
	ErrEmptyResponse = errors.New("empty webhook response")

	// ErrInvalidResponse is returned when a webhook body is not JSON
	ErrInvalidResponse = errors.New("invalid webhook response")
)

// Client posts generation requests to the configured webhooks.
type Client struct {
	registry   *Registry
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a webhook client. timeout <= 0 uses DefaultTimeout.
func NewClient(registry *Registry, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		registry: registry,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Trigger posts req to the webhook of kind. Non-2xx statuses, empty bodies
// and non-JSON bodies are failures; a 422 carrying MISSING_DATA is reported
// as *domain.MissingDataError.
func (c *Client) Trigger(ctx context.Context, kind models.GenerationKind, req models.WebhookRequest) (*models.WebhookResponse, error) {
	endpoint, err := c.registry.URL(kind)
	if err != nil {
		return nil, &domain.GenerationFailedError{Kind: string(kind), Message: err.Error(), Err: err}
	}
	if req.SourceIDs == nil {
		req.SourceIDs = []string{}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.GenerationFailedError{Kind: string(kind), Message: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &domain.GenerationFailedError{Kind: string(kind), Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	c.logger.Info("webhook called",
		"kind", kind,
		"project_id", req.ProjectID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnprocessableEntity {
			var parsed models.WebhookResponse
			if json.Unmarshal(body, &parsed) == nil && parsed.Error == missingDataCode {
				return nil, &domain.MissingDataError{Message: parsed.Message}
			}
		}
		return nil, &domain.GenerationFailedError{
			Kind:    string(kind),
			Status:  resp.StatusCode,
			Message: truncate(strings.TrimSpace(string(body)), 512),
		}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &domain.GenerationFailedError{Kind: string(kind), Status: resp.StatusCode, Message: ErrEmptyResponse.Error(), Err: ErrEmptyResponse}
	}

	var parsed models.WebhookResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.GenerationFailedError{
			Kind:    string(kind),
			Status:  resp.StatusCode,
			Message: ErrInvalidResponse.Error(),
			Err:     fmt.Errorf("%w: %v", ErrInvalidResponse, err),
		}
	}
	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
