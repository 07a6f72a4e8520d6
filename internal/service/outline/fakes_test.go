package outline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/domain/repositories"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testID(n int) string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}

var (
	projectID = testID(1)
	chapter1  = testID(10) // 一、总则
	chapter2  = testID(11) // 三、售后服务
	chapter3  = testID(12) // 二、技术方案
	sub1      = testID(20)
	sub2      = testID(21)
	task1     = testID(30)
	task2     = testID(31)
	task3     = testID(32)
	task4     = testID(33)
	source1   = testID(40)
	source2   = testID(41)
)

func strPtr(s string) *string { return &s }

// memStore is an in-memory implementation of every outline repository.
type memStore struct {
	mu       sync.Mutex
	sections map[string]*models.Section
	tasks    map[string]*models.Task
	images   []models.TaskImage
	contents []models.TaskContent
	sources  []models.Source
	linked   []string
	failures map[string]error
	hooks    map[string]func()
	calls    []string
}

func newMemStore() *memStore {
	return &memStore{
		sections: make(map[string]*models.Section),
		tasks:    make(map[string]*models.Task),
		failures: make(map[string]error),
		hooks:    make(map[string]func()),
	}
}

// seededStore holds three chapters, two sub-sections and four tasks.
func seededStore() *memStore {
	m := newMemStore()
	add := func(id string, parent *string, title string, order float64) {
		m.sections[id] = &models.Section{ID: id, ProjectID: projectID, ParentID: parent, Title: title, OrderIndex: order, GenerationMethod: models.GenerationMethodManual}
	}
	add(chapter1, nil, "一、总则", 1000)
	add(chapter2, nil, "三、售后服务", 2000)
	add(chapter3, nil, "二、技术方案", 3000)
	add(sub1, strPtr(chapter1), "项目背景", 1000)
	add(sub2, strPtr(chapter1), "建设范围", 2000)

	addTask := func(id, section, text string, order float64) {
		m.tasks[id] = &models.Task{ID: id, ProjectID: projectID, SectionID: section, RequirementText: text, Status: models.TaskStatusPending, OrderIndex: order, GenerationMethod: models.GenerationMethodManual}
	}
	addTask(task1, sub1, "二、说明现状", 1000)
	addTask(task2, sub1, "一、说明目标", 2000)
	addTask(task3, sub1, "三、说明边界", 3000)
	addTask(task4, chapter2, "承诺响应时间", 1000)

	m.images = []models.TaskImage{{ID: testID(50), TaskID: task1, ProjectID: projectID, ImageType: "diagram", ImageURL: "images/a.png"}}
	m.contents = []models.TaskContent{
		{TaskID: task1, Content: "v1", Version: 1, WordCount: 1},
		{TaskID: task1, Content: "第二 版", Version: 2, WordCount: 2},
	}
	m.sources = []models.Source{
		{ID: source1, ProjectID: strPtr(projectID), Title: "招标文件", Type: models.SourceTypeTender},
		{ID: source2, Title: "公司资质", Type: models.SourceTypeInternal},
	}
	m.linked = []string{source1}
	return m
}

func (m *memStore) fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// onCall runs fn once, without the store lock, when op is next called.
func (m *memStore) onCall(op string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[op] = fn
}

func (m *memStore) runHook(op string) {
	m.mu.Lock()
	fn := m.hooks[op]
	delete(m.hooks, op)
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// record logs the call and returns the injected failure, if any.
func (m *memStore) record(op string) error {
	m.calls = append(m.calls, op)
	return m.failures[op]
}

func (m *memStore) called(op string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == op {
			return true
		}
	}
	return false
}

func (m *memStore) section(id string) *models.Section {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *memStore) task(id string) *models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// deleteSectionLocked removes a section, its descendants and their tasks.
func (m *memStore) deleteSectionLocked(id string) int64 {
	if _, ok := m.sections[id]; !ok {
		return 0
	}
	n := int64(1)
	delete(m.sections, id)
	for tid, t := range m.tasks {
		if t.SectionID == id {
			delete(m.tasks, tid)
		}
	}
	for cid, s := range m.sections {
		if s.ParentID != nil && *s.ParentID == id {
			n += m.deleteSectionLocked(cid)
		}
	}
	return n
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Sections: memSections{m},
		Tasks:    memTasks{m},
		Images:   memImages{m},
		Contents: memContents{m},
		Sources:  memSources{m},
	}
}

type memSections struct{ m *memStore }

func (r memSections) ListByProject(_ context.Context, pid string) ([]*models.Section, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.List"); err != nil {
		return nil, err
	}
	out := []*models.Section{}
	for _, s := range r.m.sections {
		if s.ProjectID == pid {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memSections) GetByID(_ context.Context, pid, id string) (*models.Section, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sections[id]
	if !ok || s.ProjectID != pid {
		return nil, fmt.Errorf("section %s: %w", id, domain.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r memSections) Create(_ context.Context, s *models.Section) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.Create"); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	cp.Children, cp.Tasks = nil, nil
	r.m.sections[s.ID] = &cp
	return nil
}

func (r memSections) Update(_ context.Context, _ string, id string, patch models.SectionPatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.Update"); err != nil {
		return err
	}
	s, ok := r.m.sections[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.m.sections[id] = patch.Apply(s)
	return nil
}

func (r memSections) UpdateOrders(_ context.Context, _ string, updates []models.SectionOrderUpdate) error {
	r.m.runHook("sections.UpdateOrders")
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.UpdateOrders"); err != nil {
		return err
	}
	for _, u := range updates {
		if s, ok := r.m.sections[u.ID]; ok {
			cp := *s
			cp.OrderIndex = u.OrderIndex
			r.m.sections[u.ID] = &cp
		}
	}
	return nil
}

func (r memSections) Delete(_ context.Context, _ string, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.Delete"); err != nil {
		return err
	}
	r.m.deleteSectionLocked(id)
	return nil
}

func (r memSections) CountChildren(_ context.Context, _ string, parentID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, s := range r.m.sections {
		if s.ParentID != nil && *s.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

func (r memSections) DeleteChildren(_ context.Context, _ string, parentID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.DeleteChildren"); err != nil {
		return 0, err
	}
	var n int64
	for id, s := range r.m.sections {
		if s.ParentID != nil && *s.ParentID == parentID {
			n += r.m.deleteSectionLocked(id)
		}
	}
	return n, nil
}

func (r memSections) CountByProject(_ context.Context, pid string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.CountByProject"); err != nil {
		return 0, err
	}
	n := 0
	for _, s := range r.m.sections {
		if s.ProjectID == pid {
			n++
		}
	}
	return n, nil
}

func (r memSections) DeleteByProject(_ context.Context, pid string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.DeleteByProject"); err != nil {
		return 0, err
	}
	var n int64
	for id, s := range r.m.sections {
		if s.ProjectID == pid {
			delete(r.m.sections, id)
			n++
		}
	}
	for id, t := range r.m.tasks {
		if t.ProjectID == pid {
			delete(r.m.tasks, id)
		}
	}
	return n, nil
}

func (r memSections) ClearContent(_ context.Context, _ string, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sections.ClearContent"); err != nil {
		return err
	}
	if s, ok := r.m.sections[id]; ok {
		cp := *s
		cp.Content = nil
		r.m.sections[id] = &cp
	}
	return nil
}

type memTasks struct{ m *memStore }

func (r memTasks) ListByProject(_ context.Context, pid string) ([]*models.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.List"); err != nil {
		return nil, err
	}
	out := []*models.Task{}
	for _, t := range r.m.tasks {
		if t.ProjectID == pid {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTasks) Create(_ context.Context, t *models.Task) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.Create"); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	cp.Images, cp.Content = nil, nil
	r.m.tasks[t.ID] = &cp
	return nil
}

func (r memTasks) Update(_ context.Context, _ string, id string, patch models.TaskPatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.Update"); err != nil {
		return err
	}
	t, ok := r.m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.m.tasks[id] = patch.Apply(t)
	return nil
}

func (r memTasks) UpdatePositions(_ context.Context, _ string, updates []models.TaskMoveUpdate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.UpdatePositions"); err != nil {
		return err
	}
	for _, u := range updates {
		t, ok := r.m.tasks[u.ID]
		if !ok {
			continue
		}
		cp := *t
		cp.OrderIndex = u.OrderIndex
		if u.SectionID != nil {
			cp.SectionID = *u.SectionID
		}
		r.m.tasks[u.ID] = &cp
	}
	return nil
}

func (r memTasks) Delete(_ context.Context, _ string, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.Delete"); err != nil {
		return err
	}
	delete(r.m.tasks, id)
	return nil
}

func (r memTasks) CountBySection(_ context.Context, _ string, sectionID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.CountBySection"); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range r.m.tasks {
		if t.SectionID == sectionID {
			n++
		}
	}
	return n, nil
}

func (r memTasks) DeleteBySection(_ context.Context, _ string, sectionID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("tasks.DeleteBySection"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range r.m.tasks {
		if t.SectionID == sectionID {
			delete(r.m.tasks, id)
			n++
		}
	}
	return n, nil
}

type memImages struct{ m *memStore }

func (r memImages) ListByProject(_ context.Context, _ string) ([]models.TaskImage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]models.TaskImage, len(r.m.images))
	copy(out, r.m.images)
	return out, nil
}

func (r memImages) CountByTask(_ context.Context, taskID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, img := range r.m.images {
		if img.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (r memImages) DeleteByTask(_ context.Context, taskID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("images.DeleteByTask"); err != nil {
		return 0, err
	}
	kept := r.m.images[:0]
	var n int64
	for _, img := range r.m.images {
		if img.TaskID == taskID {
			n++
			continue
		}
		kept = append(kept, img)
	}
	r.m.images = kept
	return n, nil
}

type memContents struct{ m *memStore }

func (r memContents) ListLatestByProject(_ context.Context, _ string) ([]models.TaskContent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	latest := map[string]models.TaskContent{}
	for _, c := range r.m.contents {
		if cur, ok := latest[c.TaskID]; !ok || c.Version > cur.Version {
			latest[c.TaskID] = c
		}
	}
	out := make([]models.TaskContent, 0, len(latest))
	for _, c := range latest {
		out = append(out, c)
	}
	return out, nil
}

func (r memContents) CountByTask(_ context.Context, taskID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, c := range r.m.contents {
		if c.TaskID == taskID && c.Content != "" {
			n++
		}
	}
	return n, nil
}

func (r memContents) DeleteByTask(_ context.Context, taskID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("contents.DeleteByTask"); err != nil {
		return 0, err
	}
	kept := r.m.contents[:0]
	var n int64
	for _, c := range r.m.contents {
		if c.TaskID == taskID {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.m.contents = kept
	return n, nil
}

type memSources struct{ m *memStore }

func (r memSources) ListApplicable(_ context.Context, _ string) ([]models.Source, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.record("sources.ListApplicable"); err != nil {
		return nil, err
	}
	out := make([]models.Source, len(r.m.sources))
	copy(out, r.m.sources)
	return out, nil
}

func (r memSources) ListLinkedIDs(_ context.Context, _ string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]string, len(r.m.linked))
	copy(out, r.m.linked)
	return out, nil
}

type memTx struct{}

func (memTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

// fakeChanges is a ChangeSubscriber the test drives by hand.
type fakeChanges struct {
	mu      sync.Mutex
	project map[string][]func(models.ChangeEvent)
	inserts []func(models.ChangeEvent)
}

func newFakeChanges() *fakeChanges {
	return &fakeChanges{project: make(map[string][]func(models.ChangeEvent))}
}

func (f *fakeChanges) Subscribe(pid string, fn func(models.ChangeEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.project[pid] = append(f.project[pid], fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.project, pid)
	}
}

func (f *fakeChanges) SubscribeTaskInserts(fn func(models.ChangeEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, fn)
	return func() {}
}

func (f *fakeChanges) emit(evt models.ChangeEvent) {
	f.mu.Lock()
	handlers := append([]func(models.ChangeEvent){}, f.project[evt.ProjectID]...)
	if evt.IsGlobalSource() {
		for _, fns := range f.project {
			handlers = append(handlers, fns...)
		}
	}
	if evt.IsTaskInsert() {
		handlers = append(handlers, f.inserts...)
	}
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

// recordingEvents captures every client event.
type recordingEvents struct {
	mu     sync.Mutex
	events []models.ClientEvent
}

func (r *recordingEvents) Publish(_ string, evt models.ClientEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEvents) notifications(level models.NotificationLevel) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, e := range r.events {
		if n, ok := e.Data.(models.Notification); ok && n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// fakeWebhook answers every trigger with respond.
type fakeWebhook struct {
	mu      sync.Mutex
	calls   []models.WebhookRequest
	kinds   []models.GenerationKind
	respond func(kind models.GenerationKind, req models.WebhookRequest) (*models.WebhookResponse, error)
}

func (f *fakeWebhook) Trigger(_ context.Context, kind models.GenerationKind, req models.WebhookRequest) (*models.WebhookResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.kinds = append(f.kinds, kind)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &models.WebhookResponse{}, nil
	}
	return respond(kind, req)
}

func (f *fakeWebhook) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testEnv struct {
	store   *memStore
	changes *fakeChanges
	events  *recordingEvents
	sync    *SyncService
	session *Session
}

// newTestEnv returns a loaded session over store.
func newTestEnv(t *testing.T, store *memStore) *testEnv {
	t.Helper()
	logger := testLogger()
	env := &testEnv{
		store:   store,
		changes: newFakeChanges(),
		events:  &recordingEvents{},
	}
	catalog := NewSourceCatalog(memSources{store}, 0, logger)
	env.sync = NewSyncService(store.repos(), catalog, nil, env.changes, memTx{}, logger)
	env.session = NewSession(projectID, env.sync, env.events, logger, SessionOptions{})
	if err := env.session.Reload(context.Background()); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	t.Cleanup(env.session.Close)
	return env
}
