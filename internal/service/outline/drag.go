package outline

import (
	"context"
	"log/slog"

	models "tenderplan/internal/domain/models/outline"
)

// DropTargetType is the kind of element a task was dropped on.
type DropTargetType string

const (
	DropOnTask        DropTargetType = "task"
	DropOnSection     DropTargetType = "section"
	DropOnPlaceholder DropTargetType = "empty-section-placeholder"
)

// SectionDrop is a section dropped onto another section.
type SectionDrop struct {
	ActiveID string `json:"active_id"`
	OverID   string `json:"over_id"`
}

// TaskDrop is a task dropped onto a task, a section or an empty section placeholder.
type TaskDrop struct {
	ActiveID string         `json:"active_id"`
	OverID   string         `json:"over_id"`
	OverType DropTargetType `json:"over_type"`
}

// DragController applies drops optimistically and persists them in the
// background. Persist failures are reported, the local tree is not rolled back.
type DragController struct {
	sync   *SyncService
	logger *slog.Logger
}

// NewDragController creates a drag controller.
func NewDragController(syncSvc *SyncService, logger *slog.Logger) *DragController {
	return &DragController{sync: syncSvc, logger: logger}
}

// arrayMove moves the element at from to index to.
func arrayMove[T any](list []T, from, to int) []T {
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	if to > len(out) {
		to = len(out)
	}
	out = append(out[:to], append([]T{list[from]}, out[to:]...)...)
	return out
}

// neighbours returns the keys around index i, nil at either end.
func neighbours[T Ordered](list []T, i int) (prev, next *float64) {
	if i > 0 {
		v := list[i-1].Order()
		prev = &v
	}
	if i < len(list)-1 {
		v := list[i+1].Order()
		next = &v
	}
	return prev, next
}

// DropSection reorders a section among its siblings. Drops across parents,
// onto itself or onto unknown IDs are ignored and return false.
func (d *DragController) DropSection(ctx context.Context, s *Session, drop SectionDrop) (bool, error) {
	if drop.ActiveID == "" || drop.OverID == "" || drop.ActiveID == drop.OverID {
		return false, nil
	}

	var updates []models.SectionOrderUpdate
	s.Mutate(func(o *models.Outline) *models.Outline {
		active, ok := FindNodeWithParent(o, drop.ActiveID)
		if !ok {
			return o
		}
		over, ok := FindNodeWithParent(o, drop.OverID)
		if !ok || !sameParent(active.Parent, over.Parent) {
			return o
		}

		moved := arrayMove(active.Siblings, active.Index, over.Index)
		prev, next := neighbours(moved, over.Index)
		order := InsertBetween(prev, next)

		node := *moved[over.Index]
		node.OrderIndex = order
		moved[over.Index] = &node

		if NeedsRebalance(OrdersOf(moved)) {
			assignments := Rebalance(moved)
			moved = applySectionOrders(moved, assignments)
			updates = sectionOrderUpdates(assignments)
		} else {
			updates = []models.SectionOrderUpdate{{ID: node.ID, OrderIndex: order}}
		}

		var parentID *string
		if active.Parent != nil {
			parentID = &active.Parent.ID
		}
		return ReplaceChildren(o, parentID, moved)
	})
	if len(updates) == 0 {
		return false, nil
	}

	d.logger.Debug("section dropped",
		"project_id", s.ProjectID(),
		"section_id", drop.ActiveID,
		"over_id", drop.OverID,
		"updates", len(updates),
	)

	projectID := s.ProjectID()
	s.Go(func(bg context.Context) {
		if err := d.sync.PersistReorder(bg, projectID, updates); err != nil {
			d.logger.Error("failed to persist section order", "project_id", projectID, "error", err)
			s.Notify(models.LevelError, "Failed to save chapter order", err.Error())
		}
	})
	return true, nil
}

func sameParent(a, b *models.Section) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

// DropTask moves a task within its section or into another one.
func (d *DragController) DropTask(ctx context.Context, s *Session, drop TaskDrop) (bool, error) {
	if drop.ActiveID == "" || drop.OverID == "" || drop.ActiveID == drop.OverID {
		return false, nil
	}

	var updates []models.TaskMoveUpdate
	s.Mutate(func(o *models.Outline) *models.Outline {
		task, from := FindTask(o, drop.ActiveID)
		if task == nil {
			return o
		}
		to, overIndex := resolveTaskTarget(o, drop)
		if to == nil {
			return o
		}

		source := make([]*models.Task, 0, len(from.Tasks))
		fromIndex := -1
		for i, t := range from.Tasks {
			if t.ID == task.ID {
				fromIndex = i
				continue
			}
			source = append(source, t)
		}

		var target []*models.Task
		var insertAt int
		if to.ID == from.ID {
			if overIndex < 0 {
				// Dropped on its own section: move to the end.
				overIndex = len(from.Tasks) - 1
			}
			if overIndex == fromIndex {
				return o
			}
			target = arrayMove(from.Tasks, fromIndex, overIndex)
			insertAt = overIndex
		} else {
			target = make([]*models.Task, 0, len(to.Tasks)+1)
			insertAt = overIndex
			if insertAt < 0 || insertAt > len(to.Tasks) {
				insertAt = len(to.Tasks)
			}
			target = append(target, to.Tasks[:insertAt]...)
			target = append(target, task)
			target = append(target, to.Tasks[insertAt:]...)
		}

		prev, next := neighbours(target, insertAt)
		order := InsertBetween(prev, next)

		movedTask := *task
		movedTask.OrderIndex = order
		movedTask.SectionID = to.ID
		target[insertAt] = &movedTask

		update := models.TaskMoveUpdate{ID: task.ID, OrderIndex: order}
		if to.ID != from.ID {
			sectionID := to.ID
			update.SectionID = &sectionID
		}

		if NeedsRebalance(OrdersOf(target)) {
			assignments := Rebalance(target)
			target = applyTaskOrders(target, to.ID, assignments)
			updates = make([]models.TaskMoveUpdate, len(assignments))
			for i, a := range assignments {
				updates[i] = models.TaskMoveUpdate{ID: a.ID, OrderIndex: a.OrderIndex}
				if a.ID == task.ID {
					updates[i].SectionID = update.SectionID
				}
			}
		} else {
			updates = []models.TaskMoveUpdate{update}
		}

		lists := map[string][]*models.Task{to.ID: target}
		if to.ID != from.ID {
			lists[from.ID] = source
		}
		return ReplaceTasks(o, lists)
	})
	if len(updates) == 0 {
		return false, nil
	}

	d.logger.Debug("task dropped",
		"project_id", s.ProjectID(),
		"task_id", drop.ActiveID,
		"over_id", drop.OverID,
		"over_type", drop.OverType,
	)

	projectID := s.ProjectID()
	s.Go(func(bg context.Context) {
		if err := d.sync.PersistTaskMove(bg, projectID, updates); err != nil {
			d.logger.Error("failed to persist task move", "project_id", projectID, "error", err)
			s.Notify(models.LevelError, "Failed to save task position", err.Error())
		}
	})
	return true, nil
}

// resolveTaskTarget returns the destination section and the index of the
// task dropped on, or -1 when the drop was on a section or placeholder.
func resolveTaskTarget(o *models.Outline, drop TaskDrop) (*models.Section, int) {
	switch drop.OverType {
	case DropOnTask:
		over, owner := FindTask(o, drop.OverID)
		if over == nil {
			return nil, -1
		}
		for i, t := range owner.Tasks {
			if t.ID == over.ID {
				return owner, i
			}
		}
	case DropOnSection, DropOnPlaceholder:
		if section := FindNode(o, drop.OverID); section != nil {
			return section, -1
		}
	}
	return nil, -1
}
