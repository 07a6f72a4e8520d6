package outline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"

	"github.com/google/uuid"
)

// CreateSectionRequest adds a section after the last sibling.
type CreateSectionRequest struct {
	ID       string  // optional client-generated UUID
	ParentID *string // nil creates a chapter
	Title    string
}

// CreateTaskRequest adds a task at the end of a section.
type CreateTaskRequest struct {
	ID              string
	SectionID       string
	RequirementText string
	WorkflowType    string
}

// ContentSanitizer cleans user-supplied chapter HTML.
type ContentSanitizer interface {
	Sanitize(html string) string
}

// Editor applies user edits optimistically and writes them through.
// A failed write keeps the local change, notifies the user and queues a
// reload to reconcile.
type Editor struct {
	sync      *SyncService
	sanitizer ContentSanitizer
	logger    *slog.Logger
}

// NewEditor creates an editor. sanitizer may be nil.
func NewEditor(syncSvc *SyncService, sanitizer ContentSanitizer, logger *slog.Logger) *Editor {
	return &Editor{sync: syncSvc, sanitizer: sanitizer, logger: logger}
}

func (e *Editor) writeFailed(s *Session, title string, err error) error {
	e.logger.Error(title, "project_id", s.ProjectID(), "error", err)
	s.Notify(models.LevelError, title, err.Error())
	s.RequestReload()
	return err
}

func lastOrder[T Ordered](list []T) *float64 {
	if len(list) == 0 {
		return nil
	}
	v := list[len(list)-1].Order()
	return &v
}

// CreateSection inserts a section at the end of its sibling list.
func (e *Editor) CreateSection(ctx context.Context, s *Session, req CreateSectionRequest) (*models.Section, error) {
	if err := validateCreateSection(&req); err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	tree := s.Outline()
	siblings := tree.Chapters
	if req.ParentID != nil {
		parent := FindNode(tree, *req.ParentID)
		if parent == nil {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", *req.ParentID)}
		}
		siblings = parent.Children
	}
	if FindNode(tree, id) != nil {
		return nil, &domain.ConflictError{Message: "section already exists", ResourceType: "section", ResourceID: id}
	}

	now := time.Now()
	section := &models.Section{
		ID:               id,
		ProjectID:        s.ProjectID(),
		ParentID:         req.ParentID,
		Title:            req.Title,
		OrderIndex:       InsertBetween(lastOrder(siblings), nil),
		GenerationMethod: models.GenerationMethodManual,
		Citations:        []models.Citation{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.Mutate(func(o *models.Outline) *models.Outline { return InsertSection(o, section) })
	if err := e.sync.CreateSection(ctx, section); err != nil {
		return nil, e.writeFailed(s, "Failed to create section", err)
	}

	e.logger.Info("section created", "project_id", s.ProjectID(), "section_id", id)
	return FindNode(s.Outline(), id), nil
}

// UpdateSection edits a section. Editing a generated section marks it modified.
func (e *Editor) UpdateSection(ctx context.Context, s *Session, id string, patch models.SectionPatch) (*models.Section, error) {
	if err := validateSectionPatch(&patch); err != nil {
		return nil, err
	}
	current := FindNode(s.Outline(), id)
	if current == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", id)}
	}
	if patch.IsEmpty() {
		return current, nil
	}
	if patch.Content != nil && e.sanitizer != nil {
		clean := e.sanitizer.Sanitize(*patch.Content)
		patch.Content = &clean
	}
	if (patch.Title != nil || patch.Content != nil) && current.GenerationMethod != models.GenerationMethodManual && patch.IsModified == nil {
		modified := true
		patch.IsModified = &modified
	}

	s.Mutate(func(o *models.Outline) *models.Outline { return UpdateNode(o, id, patch) })
	if err := e.sync.UpdateSection(ctx, s.ProjectID(), id, patch); err != nil {
		return nil, e.writeFailed(s, "Failed to update section", err)
	}
	return FindNode(s.Outline(), id), nil
}

// DeleteSection removes a section with its subtree and tasks.
func (e *Editor) DeleteSection(ctx context.Context, s *Session, id string) error {
	if FindNode(s.Outline(), id) == nil {
		return &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", id)}
	}
	s.Mutate(func(o *models.Outline) *models.Outline { return RemoveSection(o, id) })
	if err := e.sync.DeleteSection(ctx, s.ProjectID(), id); err != nil {
		return e.writeFailed(s, "Failed to delete section", err)
	}
	e.logger.Info("section deleted", "project_id", s.ProjectID(), "section_id", id)
	return nil
}

// CreateTask inserts a task at the end of its section.
func (e *Editor) CreateTask(ctx context.Context, s *Session, req CreateTaskRequest) (*models.Task, error) {
	if err := validateCreateTask(&req); err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	tree := s.Outline()
	section := FindNode(tree, req.SectionID)
	if section == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", req.SectionID)}
	}
	if existing, _ := FindTask(tree, id); existing != nil {
		return nil, &domain.ConflictError{Message: "task already exists", ResourceType: "task", ResourceID: id}
	}

	now := time.Now()
	task := &models.Task{
		ID:               id,
		ProjectID:        s.ProjectID(),
		SectionID:        section.ID,
		RequirementText:  req.RequirementText,
		Status:           models.TaskStatusPending,
		OrderIndex:       InsertBetween(lastOrder(section.Tasks), nil),
		WorkflowType:     req.WorkflowType,
		GenerationMethod: models.GenerationMethodManual,
		Citations:        []models.Citation{},
		Images:           []models.TaskImage{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.Mutate(func(o *models.Outline) *models.Outline { return InsertTask(o, task) })
	if err := e.sync.CreateTask(ctx, task); err != nil {
		return nil, e.writeFailed(s, "Failed to create task", err)
	}

	e.logger.Info("task created", "project_id", s.ProjectID(), "task_id", id, "section_id", section.ID)
	t, _ := FindTask(s.Outline(), id)
	return t, nil
}

// UpdateTask edits a task in place. Moving between sections goes through
// the drag controller.
func (e *Editor) UpdateTask(ctx context.Context, s *Session, id string, patch models.TaskPatch) (*models.Task, error) {
	if err := validateTaskPatch(&patch); err != nil {
		return nil, err
	}
	current, _ := FindTask(s.Outline(), id)
	if current == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("task %s not found", id)}
	}
	if patch.SectionID != nil && *patch.SectionID != current.SectionID {
		return nil, &domain.ValidationError{Message: "section_id cannot be changed here, drag the task instead"}
	}
	patch.SectionID = nil
	if patch.IsEmpty() {
		return current, nil
	}
	if patch.RequirementText != nil && current.GenerationMethod != models.GenerationMethodManual && patch.IsModified == nil {
		modified := true
		patch.IsModified = &modified
	}

	s.Mutate(func(o *models.Outline) *models.Outline { return UpdateTask(o, id, patch) })
	if err := e.sync.UpdateTask(ctx, s.ProjectID(), id, patch); err != nil {
		return nil, e.writeFailed(s, "Failed to update task", err)
	}
	t, _ := FindTask(s.Outline(), id)
	return t, nil
}

// DeleteTask removes a task.
func (e *Editor) DeleteTask(ctx context.Context, s *Session, id string) error {
	if t, _ := FindTask(s.Outline(), id); t == nil {
		return &domain.NotFoundError{Message: fmt.Sprintf("task %s not found", id)}
	}
	s.Mutate(func(o *models.Outline) *models.Outline { return RemoveTask(o, id) })
	if err := e.sync.DeleteTask(ctx, s.ProjectID(), id); err != nil {
		return e.writeFailed(s, "Failed to delete task", err)
	}
	e.logger.Info("task deleted", "project_id", s.ProjectID(), "task_id", id)
	return nil
}

// AutoSortSections orders the children of parentID (chapters when nil) by
// their leading Chinese numeral. It reports whether anything moved.
func (e *Editor) AutoSortSections(ctx context.Context, s *Session, parentID *string) (bool, error) {
	var updates []models.SectionOrderUpdate
	s.Mutate(func(o *models.Outline) *models.Outline {
		siblings := o.Chapters
		if parentID != nil {
			parent := FindNode(o, *parentID)
			if parent == nil {
				return o
			}
			siblings = parent.Children
		}
		sorted, assignments, changed := AutoSortByChineseNumeral(siblings)
		if !changed {
			return o
		}
		updates = sectionOrderUpdates(assignments)
		return ReplaceChildren(o, parentID, applySectionOrders(sorted, assignments))
	})
	if parentID != nil && FindNode(s.Outline(), *parentID) == nil {
		return false, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", *parentID)}
	}
	if len(updates) == 0 {
		return false, nil
	}
	if err := e.sync.PersistReorder(ctx, s.ProjectID(), updates); err != nil {
		return true, e.writeFailed(s, "Failed to save chapter order", err)
	}
	e.logger.Info("sections auto-sorted", "project_id", s.ProjectID(), "count", len(updates))
	return true, nil
}

// AutoSortTasks orders the tasks of a section by their leading Chinese numeral.
func (e *Editor) AutoSortTasks(ctx context.Context, s *Session, sectionID string) (bool, error) {
	if FindNode(s.Outline(), sectionID) == nil {
		return false, &domain.NotFoundError{Message: fmt.Sprintf("section %s not found", sectionID)}
	}
	var updates []models.TaskMoveUpdate
	s.Mutate(func(o *models.Outline) *models.Outline {
		section := FindNode(o, sectionID)
		if section == nil {
			return o
		}
		sorted, assignments, changed := AutoSortByChineseNumeral(section.Tasks)
		if !changed {
			return o
		}
		for _, a := range assignments {
			updates = append(updates, models.TaskMoveUpdate{ID: a.ID, OrderIndex: a.OrderIndex})
		}
		return ReplaceTasks(o, map[string][]*models.Task{sectionID: applyTaskOrders(sorted, sectionID, assignments)})
	})
	if len(updates) == 0 {
		return false, nil
	}
	if err := e.sync.PersistTaskMove(ctx, s.ProjectID(), updates); err != nil {
		return true, e.writeFailed(s, "Failed to save task order", err)
	}
	return true, nil
}

// SaveOutline rebalances crowded sibling lists and persists the result. The
// written keys are applied to the live tree, so edits made during the save
// are kept.
func (e *Editor) SaveOutline(ctx context.Context, s *Session) (*models.Outline, error) {
	snapshot := s.Outline()
	_, writes, err := e.sync.SaveOutline(ctx, snapshot)
	if err != nil {
		return nil, e.writeFailed(s, "Failed to save outline", err)
	}
	return s.Mutate(func(o *models.Outline) *models.Outline {
		if !o.LoadedAt.Equal(snapshot.LoadedAt) {
			// A reload landed while saving; the store already holds the new keys.
			return o
		}
		return ApplyOrderWrites(o, writes)
	}), nil
}
