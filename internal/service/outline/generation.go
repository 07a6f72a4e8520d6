package outline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
	outlineSvc "tenderplan/internal/domain/services/outline"
)

// GenerationRequest asks for one remote generation.
type GenerationRequest struct {
	Kind            models.GenerationKind
	SectionID       string
	TaskID          string
	SourceIDs       []string // nil selects the project's linked sources
	UserDescription string
}

// GenerationResult reports what a generation did.
type GenerationResult struct {
	Kind      models.GenerationKind   `json:"kind"`
	TargetID  string                  `json:"target_id"`
	Mode      models.Resolution       `json:"mode,omitempty"`
	Deleted   int64                   `json:"deleted"`
	Cancelled bool                    `json:"cancelled"`
	Response  *models.WebhookResponse `json:"response,omitempty"`
	Trace     []ConflictState         `json:"trace"`
}

// GenerationOrchestrator runs the gate, calls the webhook and reconciles.
type GenerationOrchestrator struct {
	resolver *ConflictResolver
	webhook  outlineSvc.WebhookClient
	logger   *slog.Logger
}

// NewGenerationOrchestrator creates an orchestrator.
func NewGenerationOrchestrator(resolver *ConflictResolver, webhook outlineSvc.WebhookClient, logger *slog.Logger) *GenerationOrchestrator {
	return &GenerationOrchestrator{resolver: resolver, webhook: webhook, logger: logger}
}

// Generate runs one generation against the session's project.
//
// The outline is reloaded after every attempt that got past the gate, so the
// tree reflects whatever the backend wrote even when the call failed.
func (g *GenerationOrchestrator) Generate(ctx context.Context, s *Session, req GenerationRequest, decider Decider) (*GenerationResult, error) {
	if err := validateGeneration(&req); err != nil {
		return nil, err
	}
	tree := s.Outline()

	target, section, err := resolveTarget(tree, s.ProjectID(), req)
	if err != nil {
		return nil, err
	}
	sourceIDs, err := resolveSources(tree, req.SourceIDs)
	if err != nil && req.SourceIDs != nil {
		// A source created since the last load is not in the tree yet
		if rerr := s.Reload(ctx); rerr != nil {
			return nil, err
		}
		tree = s.Outline()
		if target, section, err = resolveTarget(tree, s.ProjectID(), req); err != nil {
			return nil, err
		}
		sourceIDs, err = resolveSources(tree, req.SourceIDs)
	}
	if err != nil {
		return nil, err
	}

	key := target.Key()
	if !s.TryBegin(key) {
		return nil, &domain.ConflictError{
			Message:      domain.ErrAlreadyGenerating.Error(),
			ResourceType: string(target.Kind),
			ResourceID:   target.ScopeID(),
		}
	}
	defer s.End(key)

	result := &GenerationResult{Kind: req.Kind, TargetID: target.ScopeID()}

	outcome, err := g.resolver.Resolve(ctx, target, decider)
	result.Trace = outcome.Trace
	if err != nil {
		var conflict *domain.GenerationConflictError
		if !errors.As(err, &conflict) {
			s.Notify(models.LevelError, "Generation aborted", err.Error())
		}
		return nil, err
	}
	if !outcome.Proceed {
		result.Cancelled = true
		g.logger.Info("generation cancelled", "project_id", s.ProjectID(), "kind", req.Kind, "target_id", target.ScopeID())
		return result, nil
	}
	result.Mode = outcome.Mode
	result.Deleted = outcome.Deleted

	defer func() {
		_ = s.Reload(context.WithoutCancel(ctx))
	}()

	if outcome.Mode == models.ResolutionReplace {
		s.Mutate(func(o *models.Outline) *models.Outline { return clearLocalArtifacts(o, target) })
	}

	payload := models.WebhookRequest{
		ProjectID:       s.ProjectID(),
		TaskID:          target.TaskID,
		SourceIDs:       sourceIDs,
		UserDescription: req.UserDescription,
	}
	if section != nil {
		payload.SectionID = section.ID
		payload.SectionTitle = section.Title
	}
	if req.Kind == models.KindStructure || req.Kind == models.KindSubsection {
		// Titles cleared by a replace must not steer the new outline
		payload.AllSections = AllTitles(s.Outline())
	}
	if outcome.Mode == models.ResolutionAppend {
		payload.Action = string(models.ResolutionAppend)
	}

	g.logger.Info("generation started",
		"project_id", s.ProjectID(),
		"kind", req.Kind,
		"target_id", target.ScopeID(),
		"mode", outcome.Mode,
		"source_count", len(sourceIDs),
	)

	resp, err := g.webhook.Trigger(ctx, req.Kind, payload)
	if err != nil {
		var missing *domain.MissingDataError
		if errors.As(err, &missing) {
			if req.Kind == models.KindStructure {
				s.Notify(models.LevelWarning, "Template required", "Upload a tender template before generating the outline")
				return nil, err
			}
			err = &domain.GenerationFailedError{Kind: string(req.Kind), Status: missing.StatusCode(), Message: missing.Error(), Err: err}
		}
		g.logger.Error("generation failed", "project_id", s.ProjectID(), "kind", req.Kind, "error", err)
		s.Notify(models.LevelError, "Generation failed", err.Error())
		return nil, err
	}
	result.Response = resp

	if resp.TotalModules > 0 {
		s.StartProgress(key, resp.TotalModules)
		s.MarkStreaming(key)
	}
	if req.Kind == models.KindIntegration && resp.IntegratedContent != "" && section != nil {
		content := resp.IntegratedContent
		now := time.Now()
		s.Mutate(func(o *models.Outline) *models.Outline {
			return UpdateNode(o, section.ID, models.SectionPatch{Content: &content, LastIntegratedAt: &now})
		})
	}

	message := resp.Message
	if message == "" {
		message = fmt.Sprintf("%s generation finished", req.Kind)
	}
	s.Notify(models.LevelSuccess, "Generation complete", message)

	g.logger.Info("generation finished",
		"project_id", s.ProjectID(),
		"kind", req.Kind,
		"target_id", target.ScopeID(),
		"total_modules", resp.TotalModules,
	)
	return result, nil
}

// resolveTarget checks the request against the current tree. Task-scoped
// kinds also return the section holding the task.
func resolveTarget(tree *models.Outline, projectID string, req GenerationRequest) (Target, *models.Section, error) {
	t := Target{Kind: req.Kind, ProjectID: projectID}
	switch {
	case !req.Kind.Valid():
		return t, nil, &domain.ValidationError{Message: fmt.Sprintf("unknown generation kind %q", req.Kind)}

	case req.Kind == models.KindStructure:
		return t, nil, nil

	case req.Kind.TargetsTask():
		if req.TaskID == "" {
			return t, nil, &domain.ValidationError{Message: "task_id is required"}
		}
		task, owner := FindTask(tree, req.TaskID)
		if task == nil {
			return t, nil, &domain.NotFoundError{Message: fmt.Sprintf("task %s not found", req.TaskID)}
		}
		t.TaskID = task.ID
		t.SectionID = owner.ID
		return t, owner, nil
	}

	if req.SectionID == "" {
		return t, nil, &domain.ValidationError{Message: "section_id is required"}
	}
	section := FindNode(tree, req.SectionID)
	if section == nil {
		return t, nil, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", req.SectionID)}
	}
	t.SectionID = section.ID
	return t, section, nil
}

// resolveSources defaults to the linked sources and rejects unknown IDs.
func resolveSources(tree *models.Outline, requested []string) ([]string, error) {
	if requested == nil {
		out := make([]string, len(tree.DefaultSourceIDs))
		copy(out, tree.DefaultSourceIDs)
		return out, nil
	}
	known := make(map[string]bool, len(tree.Sources))
	for _, src := range tree.Sources {
		known[src.ID] = true
	}
	out := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, id := range requested {
		if !known[id] {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown source %s", id)}
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}
