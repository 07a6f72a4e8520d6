package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	models "tenderplan/internal/domain/models/outline"
	outlineService "tenderplan/internal/service/outline"
)

func TestSectionEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
		check  func(t *testing.T, env *storeEnv, body []byte)
	}{
		{
			name:   "create chapter",
			method: http.MethodPost,
			path:   "/api/projects/p1/sections",
			body:   `{"title":"  三、售后服务 "}`,
			want:   http.StatusCreated,
			check: func(t *testing.T, env *storeEnv, body []byte) {
				var created models.Section
				if err := json.Unmarshal(body, &created); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if created.Title != "三、售后服务" || created.OrderIndex <= 2000 {
					t.Errorf("created = %+v", created)
				}
				if env.store.section(created.ID) == nil {
					t.Error("section not stored")
				}
			},
		},
		{
			name:   "create under unknown parent",
			method: http.MethodPost,
			path:   "/api/projects/p1/sections",
			body:   `{"title":"附件","parent_id":"00000000-0000-4000-8000-0000000000ff"}`,
			want:   http.StatusNotFound,
		},
		{
			name:   "create without title",
			method: http.MethodPost,
			path:   "/api/projects/p1/sections",
			body:   `{"title":""}`,
			want:   http.StatusBadRequest,
		},
		{
			name:   "rename",
			method: http.MethodPatch,
			path:   "/api/projects/p1/sections/" + chapterA,
			body:   `{"title":"一、总体说明"}`,
			want:   http.StatusOK,
			check: func(t *testing.T, env *storeEnv, _ []byte) {
				if got := env.store.section(chapterA).Title; got != "一、总体说明" {
					t.Errorf("stored title = %q", got)
				}
				if got := outlineService.FindNode(env.session.Outline(), chapterA).Title; got != "一、总体说明" {
					t.Errorf("session title = %q", got)
				}
			},
		},
		{
			name:   "clear content with null",
			method: http.MethodPatch,
			path:   "/api/projects/p1/sections/" + chapterB,
			body:   `{"content":null}`,
			want:   http.StatusOK,
			check: func(t *testing.T, env *storeEnv, _ []byte) {
				if c := env.store.section(chapterB).Content; c == nil || *c != "" {
					t.Errorf("stored content = %v, want empty", c)
				}
			},
		},
		{
			name:   "patch unknown section",
			method: http.MethodPatch,
			path:   "/api/projects/p1/sections/00000000-0000-4000-8000-0000000000ff",
			body:   `{"title":"x"}`,
			want:   http.StatusNotFound,
		},
		{
			name:   "delete chapter with subtree",
			method: http.MethodDelete,
			path:   "/api/projects/p1/sections/" + chapterA,
			want:   http.StatusNoContent,
			check: func(t *testing.T, env *storeEnv, _ []byte) {
				if env.store.section(chapterA) != nil || env.store.section(subA) != nil {
					t.Error("subtree still stored")
				}
				if env.store.task(taskA1) != nil {
					t.Error("tasks of the subtree still stored")
				}
				if outlineService.FindNode(env.session.Outline(), subA) != nil {
					t.Error("subtree still in the session")
				}
			},
		},
		{
			name:   "delete unknown section",
			method: http.MethodDelete,
			path:   "/api/projects/p1/sections/00000000-0000-4000-8000-0000000000ff",
			want:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newStoreEnv(t)
			rec := env.do(tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, env, rec.Body.Bytes())
			}
		})
	}
}

func TestTaskEndpoints(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
		check  func(t *testing.T, env *storeEnv, body []byte)
	}{
		{
			name:   "create task",
			method: http.MethodPost,
			path:   "/api/projects/p1/tasks",
			body:   `{"section_id":"` + chapterB + `","requirement_text":"说明部署方式","workflow_type":"functional"}`,
			want:   http.StatusCreated,
			check: func(t *testing.T, env *storeEnv, body []byte) {
				var created models.Task
				if err := json.Unmarshal(body, &created); err != nil {
					t.Fatalf("decode: %v", err)
				}
				stored := env.store.task(created.ID)
				if stored == nil || stored.SectionID != chapterB || stored.OrderIndex <= 1000 {
					t.Errorf("stored = %+v", stored)
				}
			},
		},
		{
			name:   "create in unknown section",
			method: http.MethodPost,
			path:   "/api/projects/p1/tasks",
			body:   `{"section_id":"00000000-0000-4000-8000-0000000000ff","requirement_text":"x"}`,
			want:   http.StatusNotFound,
		},
		{
			name:   "create with malformed section id",
			method: http.MethodPost,
			path:   "/api/projects/p1/tasks",
			body:   `{"section_id":"s1","requirement_text":"x"}`,
			want:   http.StatusBadRequest,
		},
		{
			name:   "free-form status",
			method: http.MethodPatch,
			path:   "/api/projects/p1/tasks/" + taskA1,
			body:   `{"status":"approved"}`,
			want:   http.StatusOK,
			check: func(t *testing.T, env *storeEnv, _ []byte) {
				if got := env.store.task(taskA1).Status; got != "approved" {
					t.Errorf("stored status = %q", got)
				}
			},
		},
		{
			name:   "status too long",
			method: http.MethodPatch,
			path:   "/api/projects/p1/tasks/" + taskA1,
			body:   `{"status":"` + strings.Repeat("s", 65) + `"}`,
			want:   http.StatusBadRequest,
		},
		{
			name:   "delete task",
			method: http.MethodDelete,
			path:   "/api/projects/p1/tasks/" + taskA2,
			want:   http.StatusNoContent,
			check: func(t *testing.T, env *storeEnv, _ []byte) {
				if env.store.task(taskA2) != nil {
					t.Error("task still stored")
				}
				if task, _ := outlineService.FindTask(env.session.Outline(), taskA2); task != nil {
					t.Error("task still in the session")
				}
			},
		},
		{
			name:   "delete unknown task",
			method: http.MethodDelete,
			path:   "/api/projects/p1/tasks/00000000-0000-4000-8000-0000000000ff",
			want:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newStoreEnv(t)
			rec := env.do(tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, env, rec.Body.Bytes())
			}
		})
	}
}

func TestDragEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		want      int
		wantMoved bool
		check     func(t *testing.T, env *storeEnv)
	}{
		{
			name:      "reorder chapters",
			path:      "/api/projects/p1/drag/section",
			body:      `{"active_id":"` + chapterB + `","over_id":"` + chapterA + `"}`,
			want:      http.StatusOK,
			wantMoved: true,
			check: func(t *testing.T, env *storeEnv) {
				chapters := env.session.Outline().Chapters
				if chapters[0].ID != chapterB {
					t.Errorf("first chapter = %s, want %s", chapters[0].ID, chapterB)
				}
				if env.store.section(chapterB).OrderIndex >= env.store.section(chapterA).OrderIndex {
					t.Error("new order not persisted")
				}
			},
		},
		{
			name: "drop across parents ignored",
			path: "/api/projects/p1/drag/section",
			body: `{"active_id":"` + subA + `","over_id":"` + chapterB + `"}`,
			want: http.StatusOK,
		},
		{
			name:      "move task to another section",
			path:      "/api/projects/p1/drag/task",
			body:      `{"active_id":"` + taskA1 + `","over_id":"` + chapterB + `","over_type":"section"}`,
			want:      http.StatusOK,
			wantMoved: true,
			check: func(t *testing.T, env *storeEnv) {
				if got := env.store.task(taskA1).SectionID; got != chapterB {
					t.Errorf("stored section = %s, want %s", got, chapterB)
				}
				if _, owner := outlineService.FindTask(env.session.Outline(), taskA1); owner == nil || owner.ID != chapterB {
					t.Error("task not moved in the session")
				}
			},
		},
		{
			name: "unknown drop target type",
			path: "/api/projects/p1/drag/task",
			body: `{"active_id":"` + taskA1 + `","over_id":"` + chapterB + `","over_type":"column"}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newStoreEnv(t)
			rec := env.do(http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusOK {
				return
			}
			var body dropResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Moved != tt.wantMoved {
				t.Errorf("moved = %v, want %v", body.Moved, tt.wantMoved)
			}
			env.session.Wait()
			if tt.check != nil {
				tt.check(t, env)
			}
		})
	}
}

func TestGenerateConflictRoundTrip(t *testing.T) {
	env := newStoreEnv(t)
	path := "/api/projects/p1/generate/task"

	rec := env.do(http.MethodPost, path, `{"section_id":"`+subA+`"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("first attempt: status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"conflict"`) {
		t.Errorf("conflict body = %s", rec.Body.String())
	}
	if env.webhook.calls() != 0 {
		t.Fatal("webhook called before the conflict was resolved")
	}

	rec = env.do(http.MethodPost, path, `{"section_id":"`+subA+`","resolution":"replace"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolved attempt: status = %d: %s", rec.Code, rec.Body.String())
	}
	var result outlineService.GenerationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Mode != models.ResolutionReplace || result.Deleted != 2 {
		t.Errorf("result = %+v", result)
	}
	if env.webhook.calls() != 1 {
		t.Errorf("webhook calls = %d, want 1", env.webhook.calls())
	}
	if env.store.task(taskA1) != nil || env.store.task(taskA2) != nil {
		t.Error("replaced tasks still stored")
	}
	if env.store.task(taskB1) == nil {
		t.Error("task of another section deleted")
	}
}
