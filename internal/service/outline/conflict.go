package outline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
)

// ConflictState is a step of the pre-generation gate.
type ConflictState string

const (
	StateIdle               ConflictState = "idle"
	StateCheckingExisting   ConflictState = "checking_existing"
	StateNoConflict         ConflictState = "no_conflict"
	StateAwaitingUserChoice ConflictState = "awaiting_user_choice"
	StateDeleting           ConflictState = "deleting"
	StateProceeding         ConflictState = "proceeding"
	StateCancelled          ConflictState = "cancelled"
)

// Target identifies what a generation writes into.
type Target struct {
	Kind      models.GenerationKind
	ProjectID string
	SectionID string // empty for structure
	TaskID    string // set for task-scoped kinds
}

// ScopeID is the ID the generated artifacts hang off.
func (t Target) ScopeID() string {
	switch {
	case t.Kind == models.KindStructure:
		return t.ProjectID
	case t.Kind.TargetsTask():
		return t.TaskID
	default:
		return t.SectionID
	}
}

// Key identifies the action for duplicate-submission checks.
func (t Target) Key() string {
	return string(t.Kind) + ":" + t.ScopeID()
}

// Conflict describes existing artifacts at a target.
type Conflict struct {
	Target   Target
	Existing int
}

// Decider answers a conflict with append, replace or cancel.
type Decider interface {
	Decide(ctx context.Context, c Conflict) (models.Resolution, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, c Conflict) (models.Resolution, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, c Conflict) (models.Resolution, error) {
	return f(ctx, c)
}

// FixedDecider answers every conflict with r. ResolutionNone reports the
// conflict back to the caller as a *domain.GenerationConflictError.
func FixedDecider(r models.Resolution) Decider {
	return DeciderFunc(func(_ context.Context, c Conflict) (models.Resolution, error) {
		if r == models.ResolutionNone {
			return r, &domain.GenerationConflictError{
				Kind:     string(c.Target.Kind),
				TargetID: c.Target.ScopeID(),
				Existing: c.Existing,
			}
		}
		return r, nil
	})
}

// Outcome is the result of a pass through the gate.
type Outcome struct {
	Proceed  bool
	Mode     models.Resolution // append, replace, or none when nothing existed
	Conflict *Conflict
	Deleted  int64
	Trace    []ConflictState
}

// ArtifactStore counts and deletes the artifacts at a target.
type ArtifactStore interface {
	CountExisting(ctx context.Context, t Target) (int, error)
	DeleteExisting(ctx context.Context, t Target) (int64, error)
}

// ConflictResolver gates generation on existing artifacts.
type ConflictResolver struct {
	store  ArtifactStore
	logger *slog.Logger
}

// NewConflictResolver creates a resolver.
func NewConflictResolver(store ArtifactStore, logger *slog.Logger) *ConflictResolver {
	return &ConflictResolver{store: store, logger: logger}
}

// Resolve runs the gate for target. Any error leaves the gate in
// StateIdle with nothing deleted unless the error came from the delete itself.
func (r *ConflictResolver) Resolve(ctx context.Context, target Target, decider Decider) (Outcome, error) {
	out := Outcome{Trace: []ConflictState{StateIdle, StateCheckingExisting}}
	fail := func(err error) (Outcome, error) {
		out.Trace = append(out.Trace, StateIdle)
		return out, err
	}

	existing, err := r.store.CountExisting(ctx, target)
	if err != nil {
		return fail(fmt.Errorf("check existing %s artifacts: %w", target.Kind, err))
	}
	if existing == 0 {
		out.Trace = append(out.Trace, StateNoConflict, StateProceeding)
		out.Proceed = true
		return out, nil
	}

	conflict := Conflict{Target: target, Existing: existing}
	out.Conflict = &conflict
	out.Trace = append(out.Trace, StateAwaitingUserChoice)

	choice, err := decider.Decide(ctx, conflict)
	if err != nil {
		return fail(err)
	}

	switch choice {
	case models.ResolutionAppend:
		out.Mode = models.ResolutionAppend
		out.Trace = append(out.Trace, StateProceeding)
		out.Proceed = true
		return out, nil

	case models.ResolutionReplace:
		out.Trace = append(out.Trace, StateDeleting)
		deleted, err := r.store.DeleteExisting(ctx, target)
		if err != nil {
			r.logger.Error("replace delete failed",
				"kind", target.Kind,
				"scope_id", target.ScopeID(),
				"error", err,
			)
			return fail(fmt.Errorf("delete existing %s artifacts: %w", target.Kind, err))
		}
		r.logger.Info("existing artifacts deleted",
			"kind", target.Kind,
			"scope_id", target.ScopeID(),
			"deleted", deleted,
		)
		out.Mode = models.ResolutionReplace
		out.Deleted = deleted
		out.Trace = append(out.Trace, StateProceeding)
		out.Proceed = true
		return out, nil

	case models.ResolutionCancel:
		out.Trace = append(out.Trace, StateCancelled, StateIdle)
		return out, nil
	}

	return fail(&domain.ValidationError{Message: fmt.Sprintf("unknown resolution %q", choice)})
}

// repoArtifactStore maps each generation kind to its scoped count and delete.
type repoArtifactStore struct {
	repos Repositories
}

// NewArtifactStore returns the store-backed ArtifactStore.
func NewArtifactStore(repos Repositories) ArtifactStore {
	return &repoArtifactStore{repos: repos}
}

func (s *repoArtifactStore) CountExisting(ctx context.Context, t Target) (int, error) {
	switch t.Kind {
	case models.KindStructure:
		return s.repos.Sections.CountByProject(ctx, t.ProjectID)
	case models.KindSubsection:
		return s.repos.Sections.CountChildren(ctx, t.ProjectID, t.SectionID)
	case models.KindTask:
		return s.repos.Tasks.CountBySection(ctx, t.ProjectID, t.SectionID)
	case models.KindContent:
		return s.repos.Contents.CountByTask(ctx, t.TaskID)
	case models.KindImage:
		return s.repos.Images.CountByTask(ctx, t.TaskID)
	case models.KindIntegration:
		section, err := s.repos.Sections.GetByID(ctx, t.ProjectID, t.SectionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return 0, nil
			}
			return 0, err
		}
		if section.HasContent() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, &domain.ValidationError{Message: fmt.Sprintf("unknown generation kind %q", t.Kind)}
}

func (s *repoArtifactStore) DeleteExisting(ctx context.Context, t Target) (int64, error) {
	switch t.Kind {
	case models.KindStructure:
		return s.repos.Sections.DeleteByProject(ctx, t.ProjectID)
	case models.KindSubsection:
		return s.repos.Sections.DeleteChildren(ctx, t.ProjectID, t.SectionID)
	case models.KindTask:
		return s.repos.Tasks.DeleteBySection(ctx, t.ProjectID, t.SectionID)
	case models.KindContent:
		return s.repos.Contents.DeleteByTask(ctx, t.TaskID)
	case models.KindImage:
		return s.repos.Images.DeleteByTask(ctx, t.TaskID)
	case models.KindIntegration:
		if err := s.repos.Sections.ClearContent(ctx, t.ProjectID, t.SectionID); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, &domain.ValidationError{Message: fmt.Sprintf("unknown generation kind %q", t.Kind)}
}

// clearLocalArtifacts mirrors a successful replace delete in the tree.
func clearLocalArtifacts(o *models.Outline, t Target) *models.Outline {
	switch t.Kind {
	case models.KindStructure:
		return withChapters(o, []*models.Section{})
	case models.KindSubsection:
		return ReplaceChildren(o, &t.SectionID, []*models.Section{})
	case models.KindTask:
		return ReplaceTasks(o, map[string][]*models.Task{t.SectionID: {}})
	case models.KindContent:
		return SetTaskContent(o, t.TaskID, nil)
	case models.KindImage:
		return SetTaskImages(o, t.TaskID, []models.TaskImage{})
	case models.KindIntegration:
		empty := ""
		return UpdateNode(o, t.SectionID, models.SectionPatch{Content: &empty})
	}
	return o
}
