package outline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/domain/repositories"
	outlineRepo "tenderplan/internal/domain/repositories/outline"
	outlineSvc "tenderplan/internal/domain/services/outline"

	"golang.org/x/sync/errgroup"
)

// Repositories groups the stores an outline is assembled from.
type Repositories struct {
	Sections outlineRepo.SectionRepository
	Tasks    outlineRepo.TaskRepository
	Images   outlineRepo.TaskImageRepository
	Contents outlineRepo.TaskContentRepository
	Sources  outlineRepo.SourceRepository
}

// SyncService loads outlines from the store, persists local mutations and
// relays change notifications.
type SyncService struct {
	repos     Repositories
	catalog   *SourceCatalog
	images    outlineSvc.ImageResolver
	changes   outlineSvc.ChangeSubscriber
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewSyncService creates a sync service. images and changes may be nil.
func NewSyncService(
	repos Repositories,
	catalog *SourceCatalog,
	images outlineSvc.ImageResolver,
	changes outlineSvc.ChangeSubscriber,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		repos:     repos,
		catalog:   catalog,
		images:    images,
		changes:   changes,
		txManager: txManager,
		logger:    logger,
	}
}

// Load fetches every row of a project and rebuilds its outline.
func (s *SyncService) Load(ctx context.Context, projectID string) (*models.Outline, error) {
	var in BuildInput
	in.ProjectID = projectID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Sections, err = s.repos.Sections.ListByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Tasks, err = s.repos.Tasks.ListByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Images, err = s.repos.Images.ListByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Contents, err = s.repos.Contents.ListLatestByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Sources, err = s.catalog.Applicable(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		in.DefaultSourceIDs, err = s.repos.Sources.ListLinkedIDs(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load outline %s: %w", projectID, err)
	}

	if s.images != nil {
		for i := range in.Images {
			url, err := s.images.ResolveImageURL(ctx, in.Images[i].ImageURL)
			if err != nil {
				s.logger.Warn("failed to resolve task image",
					"project_id", projectID,
					"image_id", in.Images[i].ID,
					"error", err,
				)
				continue
			}
			in.Images[i].ImageURL = url
		}
	}

	tree, stats := Build(in)
	tree.LoadedAt = time.Now()

	s.logger.Info("outline loaded",
		"project_id", projectID,
		"section_count", stats.Sections,
		"task_count", stats.Tasks,
		"orphan_sections", stats.OrphanSections,
		"orphan_tasks", stats.OrphanTasks,
	)

	return tree, nil
}

// ForgetSources drops the cached source list of a project so the next Load
// reads it from the store.
func (s *SyncService) ForgetSources(projectID string) {
	s.catalog.Invalidate(projectID)
}

// PersistReorder writes new order keys for sibling sections.
func (s *SyncService) PersistReorder(ctx context.Context, projectID string, updates []models.SectionOrderUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if err := s.repos.Sections.UpdateOrders(ctx, projectID, updates); err != nil {
		return fmt.Errorf("persist section order: %w", err)
	}
	s.logger.Debug("section order persisted", "project_id", projectID, "count", len(updates))
	return nil
}

// PersistTaskMove writes section and order changes of moved tasks.
func (s *SyncService) PersistTaskMove(ctx context.Context, projectID string, updates []models.TaskMoveUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if err := s.repos.Tasks.UpdatePositions(ctx, projectID, updates); err != nil {
		return fmt.Errorf("persist task move: %w", err)
	}
	s.logger.Debug("task positions persisted", "project_id", projectID, "count", len(updates))
	return nil
}

// CreateSection inserts a section.
func (s *SyncService) CreateSection(ctx context.Context, section *models.Section) error {
	if err := s.repos.Sections.Create(ctx, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// UpdateSection writes a partial section update.
func (s *SyncService) UpdateSection(ctx context.Context, projectID, id string, patch models.SectionPatch) error {
	if err := s.repos.Sections.Update(ctx, projectID, id, patch); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	return nil
}

// DeleteSection removes a section with its subtree.
func (s *SyncService) DeleteSection(ctx context.Context, projectID, id string) error {
	if err := s.repos.Sections.Delete(ctx, projectID, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// CreateTask inserts a task.
func (s *SyncService) CreateTask(ctx context.Context, task *models.Task) error {
	if err := s.repos.Tasks.Create(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTask writes a partial task update.
func (s *SyncService) UpdateTask(ctx context.Context, projectID, id string, patch models.TaskPatch) error {
	if err := s.repos.Tasks.Update(ctx, projectID, id, patch); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// DeleteTask removes a task.
func (s *SyncService) DeleteTask(ctx context.Context, projectID, id string) error {
	if err := s.repos.Tasks.Delete(ctx, projectID, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// RebalanceOutline rebalances every sibling list whose keys are too close.
// It returns the new outline and the writes needed to persist it.
func RebalanceOutline(o *models.Outline) (*models.Outline, []models.SectionOrderUpdate, []models.TaskMoveUpdate) {
	if o == nil {
		return o, nil, nil
	}
	var sectionUpdates []models.SectionOrderUpdate
	var taskUpdates []models.TaskMoveUpdate

	var walk func(list []*models.Section) []*models.Section
	walk = func(list []*models.Section) []*models.Section {
		if NeedsRebalance(OrdersOf(list)) {
			assignments := Rebalance(list)
			sectionUpdates = append(sectionUpdates, sectionOrderUpdates(assignments)...)
			list = applySectionOrders(list, assignments)
		}
		out := make([]*models.Section, len(list))
		for i, sec := range list {
			children := walk(sec.Children)
			tasks := sec.Tasks
			if NeedsRebalance(OrdersOf(tasks)) {
				assignments := Rebalance(tasks)
				for _, a := range assignments {
					taskUpdates = append(taskUpdates, models.TaskMoveUpdate{ID: a.ID, OrderIndex: a.OrderIndex})
				}
				tasks = applyTaskOrders(tasks, sec.ID, assignments)
			}
			if sameSections(children, sec.Children) && sameTasks(tasks, sec.Tasks) {
				out[i] = sec
				continue
			}
			cp := *sec
			cp.Children = children
			cp.Tasks = tasks
			out[i] = &cp
		}
		return out
	}

	chapters := walk(o.Chapters)
	if len(sectionUpdates) == 0 && len(taskUpdates) == 0 {
		return o, nil, nil
	}
	return withChapters(o, chapters), sectionUpdates, taskUpdates
}

func sameSections(a, b []*models.Section) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameTasks(a, b []*models.Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// OrderWrites are the order keys written by one save.
type OrderWrites struct {
	Sections []models.SectionOrderUpdate
	Tasks    []models.TaskMoveUpdate
}

// IsEmpty reports whether nothing was written.
func (w OrderWrites) IsEmpty() bool { return len(w.Sections) == 0 && len(w.Tasks) == 0 }

// ApplyOrderWrites sets written keys on the matching nodes of o and re-sorts
// the touched sibling lists. IDs missing from o are skipped, every other field
// of o is kept.
func ApplyOrderWrites(o *models.Outline, w OrderWrites) *models.Outline {
	if o == nil || w.IsEmpty() {
		return o
	}
	sectionKeys := make(map[string]float64, len(w.Sections))
	for _, u := range w.Sections {
		sectionKeys[u.ID] = u.OrderIndex
	}
	taskKeys := make(map[string]float64, len(w.Tasks))
	for _, u := range w.Tasks {
		taskKeys[u.ID] = u.OrderIndex
	}

	var walk func(list []*models.Section) ([]*models.Section, bool)
	walk = func(list []*models.Section) ([]*models.Section, bool) {
		changed := false
		out := make([]*models.Section, len(list))
		for i, sec := range list {
			children, childrenChanged := walk(sec.Children)
			tasks, tasksChanged := applyTaskKeys(sec.Tasks, taskKeys)
			key, ok := sectionKeys[sec.ID]
			ok = ok && key != sec.OrderIndex
			if !childrenChanged && !tasksChanged && !ok {
				out[i] = sec
				continue
			}
			cp := *sec
			cp.Children = children
			cp.Tasks = tasks
			if ok {
				cp.OrderIndex = key
			}
			out[i] = &cp
			changed = true
		}
		if changed {
			sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
		}
		return out, changed
	}

	chapters, changed := walk(o.Chapters)
	if !changed {
		return o
	}
	return withChapters(o, chapters)
}

func applyTaskKeys(list []*models.Task, keys map[string]float64) ([]*models.Task, bool) {
	changed := false
	out := make([]*models.Task, len(list))
	for i, t := range list {
		key, ok := keys[t.ID]
		if !ok || key == t.OrderIndex {
			out[i] = t
			continue
		}
		cp := *t
		cp.OrderIndex = key
		out[i] = &cp
		changed = true
	}
	if !changed {
		return list, false
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, true
}

// SaveOutline rebalances crowded sibling lists and persists the new keys in
// one transaction. It returns the rebalanced outline and the keys written.
func (s *SyncService) SaveOutline(ctx context.Context, o *models.Outline) (*models.Outline, OrderWrites, error) {
	rebalanced, sectionUpdates, taskUpdates := RebalanceOutline(o)
	writes := OrderWrites{Sections: sectionUpdates, Tasks: taskUpdates}
	if writes.IsEmpty() {
		return o, writes, nil
	}

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.repos.Sections.UpdateOrders(txCtx, o.ProjectID, sectionUpdates); err != nil {
			return err
		}
		return s.repos.Tasks.UpdatePositions(txCtx, o.ProjectID, taskUpdates)
	})
	if err != nil {
		return nil, OrderWrites{}, fmt.Errorf("save outline %s: %w", o.ProjectID, err)
	}

	s.logger.Info("outline rebalanced",
		"project_id", o.ProjectID,
		"section_updates", len(sectionUpdates),
		"task_updates", len(taskUpdates),
	)
	return rebalanced, writes, nil
}

// RealtimeHandlers receives change notifications of one project.
type RealtimeHandlers struct {
	OnSectionChange    func(models.ChangeEvent)
	OnTaskChange       func(models.ChangeEvent)
	OnSourceLinkChange func(models.ChangeEvent)
	OnSourceChange     func(models.ChangeEvent)
}

// SubscribeRealtime routes a project's change notifications to handlers.
// project_sources and sources changes also invalidate cached source lists.
func (s *SyncService) SubscribeRealtime(projectID string, h RealtimeHandlers) (unsubscribe func()) {
	if s.changes == nil {
		return func() {}
	}
	return s.changes.Subscribe(projectID, func(evt models.ChangeEvent) {
		switch evt.Table {
		case models.TableSections:
			if h.OnSectionChange != nil {
				h.OnSectionChange(evt)
			}
		case models.TableTasks, models.TableTaskImages, models.TableTaskContents:
			if h.OnTaskChange != nil {
				h.OnTaskChange(evt)
			}
		case models.TableProjectSources:
			s.catalog.Invalidate(projectID)
			if h.OnSourceLinkChange != nil {
				h.OnSourceLinkChange(evt)
			}
		case models.TableSources:
			s.catalog.InvalidateFor(evt, projectID)
			if h.OnSourceChange != nil {
				h.OnSourceChange(evt)
			}
		}
	})
}

// SubscribeTaskInserts registers fn for task INSERT events of every project.
func (s *SyncService) SubscribeTaskInserts(fn func(models.ChangeEvent)) (unsubscribe func()) {
	if s.changes == nil {
		return func() {}
	}
	return s.changes.SubscribeTaskInserts(fn)
}
