package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/domain/repositories"
	outlineService "tenderplan/internal/service/outline"
)

const (
	chapterA = "00000000-0000-4000-8000-0000000000a1"
	chapterB = "00000000-0000-4000-8000-0000000000a2"
	subA     = "00000000-0000-4000-8000-0000000000a3"
	taskA1   = "00000000-0000-4000-8000-0000000000b1"
	taskA2   = "00000000-0000-4000-8000-0000000000b2"
	taskB1   = "00000000-0000-4000-8000-0000000000b3"
)

// outlineStore keeps one project's rows in memory behind the repository
// interfaces.
type outlineStore struct {
	mu       sync.Mutex
	sections map[string]*models.Section
	tasks    map[string]*models.Task
}

func newOutlineStore() *outlineStore {
	st := &outlineStore{
		sections: make(map[string]*models.Section),
		tasks:    make(map[string]*models.Task),
	}
	chapter := func(id, parent, title string, order float64) {
		sec := &models.Section{ID: id, ProjectID: "p1", Title: title, OrderIndex: order, GenerationMethod: models.GenerationMethodManual}
		if parent != "" {
			sec.ParentID = &parent
		}
		st.sections[id] = sec
	}
	chapter(chapterA, "", "一、总则", 1000)
	chapter(chapterB, "", "二、技术方案", 2000)
	chapter(subA, chapterA, "项目背景", 1000)

	task := func(id, section, text string, order float64) {
		st.tasks[id] = &models.Task{ID: id, ProjectID: "p1", SectionID: section, RequirementText: text, Status: models.TaskStatusPending, OrderIndex: order}
	}
	task(taskA1, subA, "说明现状", 1000)
	task(taskA2, subA, "说明目标", 2000)
	task(taskB1, chapterB, "绘制架构图", 1000)
	return st
}

func (st *outlineStore) repos() outlineService.Repositories {
	return outlineService.Repositories{
		Sections: storeSections{st},
		Tasks:    storeTasks{st},
		Images:   storeImages{},
		Contents: storeContents{},
		Sources:  storeSources{},
	}
}

func (st *outlineStore) section(id string) *models.Section {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sections[id]
}

func (st *outlineStore) task(id string) *models.Task {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.tasks[id]
}

func (st *outlineStore) deleteSectionLocked(id string) int64 {
	n := int64(1)
	delete(st.sections, id)
	for tid, t := range st.tasks {
		if t.SectionID == id {
			delete(st.tasks, tid)
		}
	}
	for cid, c := range st.sections {
		if c.ParentID != nil && *c.ParentID == id {
			n += st.deleteSectionLocked(cid)
		}
	}
	return n
}

type storeSections struct{ st *outlineStore }

func (r storeSections) ListByProject(context.Context, string) ([]*models.Section, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]*models.Section, 0, len(r.st.sections))
	for _, s := range r.st.sections {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r storeSections) GetByID(_ context.Context, _, id string) (*models.Section, error) {
	if s := r.st.section(id); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r storeSections) Create(_ context.Context, s *models.Section) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *s
	r.st.sections[s.ID] = &cp
	return nil
}

func (r storeSections) Update(_ context.Context, _, id string, patch models.SectionPatch) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s, ok := r.st.sections[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.st.sections[id] = patch.Apply(s)
	return nil
}

func (r storeSections) UpdateOrders(_ context.Context, _ string, updates []models.SectionOrderUpdate) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range updates {
		if s, ok := r.st.sections[u.ID]; ok {
			cp := *s
			cp.OrderIndex = u.OrderIndex
			r.st.sections[u.ID] = &cp
		}
	}
	return nil
}

func (r storeSections) Delete(_ context.Context, _, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.sections[id]; !ok {
		return domain.ErrNotFound
	}
	r.st.deleteSectionLocked(id)
	return nil
}

func (r storeSections) CountChildren(_ context.Context, _, parentID string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for _, s := range r.st.sections {
		if s.ParentID != nil && *s.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

func (r storeSections) DeleteChildren(_ context.Context, _, parentID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, s := range r.st.sections {
		if s.ParentID != nil && *s.ParentID == parentID {
			n += r.st.deleteSectionLocked(id)
		}
	}
	return n, nil
}

func (r storeSections) CountByProject(context.Context, string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return len(r.st.sections), nil
}

func (r storeSections) DeleteByProject(context.Context, string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := int64(len(r.st.sections))
	r.st.sections = make(map[string]*models.Section)
	r.st.tasks = make(map[string]*models.Task)
	return n, nil
}

func (r storeSections) ClearContent(_ context.Context, _, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if s, ok := r.st.sections[id]; ok {
		cp := *s
		cp.Content = nil
		r.st.sections[id] = &cp
	}
	return nil
}

type storeTasks struct{ st *outlineStore }

func (r storeTasks) ListByProject(context.Context, string) ([]*models.Task, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	out := make([]*models.Task, 0, len(r.st.tasks))
	for _, t := range r.st.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r storeTasks) Create(_ context.Context, t *models.Task) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cp := *t
	r.st.tasks[t.ID] = &cp
	return nil
}

func (r storeTasks) Update(_ context.Context, _, id string, patch models.TaskPatch) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	t, ok := r.st.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.st.tasks[id] = patch.Apply(t)
	return nil
}

func (r storeTasks) UpdatePositions(_ context.Context, _ string, updates []models.TaskMoveUpdate) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range updates {
		t, ok := r.st.tasks[u.ID]
		if !ok {
			continue
		}
		cp := *t
		cp.OrderIndex = u.OrderIndex
		if u.SectionID != nil {
			cp.SectionID = *u.SectionID
		}
		r.st.tasks[u.ID] = &cp
	}
	return nil
}

func (r storeTasks) Delete(_ context.Context, _, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.st.tasks, id)
	return nil
}

func (r storeTasks) CountBySection(_ context.Context, _, sectionID string) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for _, t := range r.st.tasks {
		if t.SectionID == sectionID {
			n++
		}
	}
	return n, nil
}

func (r storeTasks) DeleteBySection(_ context.Context, _, sectionID string) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, t := range r.st.tasks {
		if t.SectionID == sectionID {
			delete(r.st.tasks, id)
			n++
		}
	}
	return n, nil
}

type storeImages struct{}

func (storeImages) ListByProject(context.Context, string) ([]models.TaskImage, error) {
	return []models.TaskImage{}, nil
}
func (storeImages) CountByTask(context.Context, string) (int, error)    { return 0, nil }
func (storeImages) DeleteByTask(context.Context, string) (int64, error) { return 0, nil }

type storeContents struct{}

func (storeContents) ListLatestByProject(context.Context, string) ([]models.TaskContent, error) {
	return []models.TaskContent{}, nil
}
func (storeContents) CountByTask(context.Context, string) (int, error)    { return 0, nil }
func (storeContents) DeleteByTask(context.Context, string) (int64, error) { return 0, nil }

type storeSources struct{}

func (storeSources) ListApplicable(context.Context, string) ([]models.Source, error) {
	return []models.Source{}, nil
}
func (storeSources) ListLinkedIDs(context.Context, string) ([]string, error) { return []string{}, nil }

type passTx struct{}

func (passTx) ExecTx(ctx context.Context, fn repositories.TxFn) error { return fn(ctx) }

// recordingWebhook accepts every generation.
type recordingWebhook struct {
	mu    sync.Mutex
	kinds []models.GenerationKind
}

func (w *recordingWebhook) Trigger(_ context.Context, kind models.GenerationKind, _ models.WebhookRequest) (*models.WebhookResponse, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kinds = append(w.kinds, kind)
	return &models.WebhookResponse{Message: "queued"}, nil
}

func (w *recordingWebhook) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.kinds)
}

type storeEnv struct {
	store   *outlineStore
	session *outlineService.Session
	webhook *recordingWebhook
	mux     *http.ServeMux
}

// newStoreEnv wires the outline, drag and generation handlers over an
// in-memory store, routed like the server does.
func newStoreEnv(t *testing.T) *storeEnv {
	t.Helper()
	logger := testLogger()
	store := newOutlineStore()
	repos := store.repos()

	catalog := outlineService.NewSourceCatalog(repos.Sources, 0, logger)
	syncSvc := outlineService.NewSyncService(repos, catalog, nil, nil, passTx{}, logger)
	session := outlineService.NewSession("p1", syncSvc, nil, logger, outlineService.SessionOptions{})
	if err := session.Reload(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(session.Close)

	webhook := &recordingWebhook{}
	sessions := staticSessions{s: session}
	outline := NewOutlineHandler(sessions, outlineService.NewEditor(syncSvc, nil, logger), logger)
	drag := NewDragHandler(sessions, outlineService.NewDragController(syncSvc, logger), logger)
	resolver := outlineService.NewConflictResolver(outlineService.NewArtifactStore(repos), logger)
	generation := NewGenerationHandler(sessions, outlineService.NewGenerationOrchestrator(resolver, webhook, logger), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects/{id}/sections", outline.CreateSection)
	mux.HandleFunc("PATCH /api/projects/{id}/sections/{sid}", outline.UpdateSection)
	mux.HandleFunc("DELETE /api/projects/{id}/sections/{sid}", outline.DeleteSection)
	mux.HandleFunc("POST /api/projects/{id}/tasks", outline.CreateTask)
	mux.HandleFunc("PATCH /api/projects/{id}/tasks/{tid}", outline.UpdateTask)
	mux.HandleFunc("DELETE /api/projects/{id}/tasks/{tid}", outline.DeleteTask)
	mux.HandleFunc("POST /api/projects/{id}/drag/section", drag.DropSection)
	mux.HandleFunc("POST /api/projects/{id}/drag/task", drag.DropTask)
	mux.HandleFunc("POST /api/projects/{id}/generate/{kind}", generation.Generate)

	return &storeEnv{store: store, session: session, webhook: webhook, mux: mux}
}

// do serves one request as the owner of project p1.
func (e *storeEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := withProject(httptest.NewRequest(method, path, reader))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}
