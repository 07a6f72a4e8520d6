package outline

import (
	"context"
	"errors"
	"testing"

	models "tenderplan/internal/domain/models/outline"
)

func childIDs(list []*models.Section) []string {
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

func taskIDs(list []*models.Task) []string {
	ids := make([]string, len(list))
	for i, t := range list {
		ids[i] = t.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
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

func TestDropSection(t *testing.T) {
	tests := []struct {
		name      string
		drop      SectionDrop
		wantMoved bool
		wantOrder []string
	}{
		{"to the front", SectionDrop{ActiveID: chapter3, OverID: chapter1}, true, []string{chapter3, chapter1, chapter2}},
		{"to the end", SectionDrop{ActiveID: chapter1, OverID: chapter3}, true, []string{chapter2, chapter3, chapter1}},
		{"onto itself", SectionDrop{ActiveID: chapter1, OverID: chapter1}, false, []string{chapter1, chapter2, chapter3}},
		{"across parents", SectionDrop{ActiveID: sub1, OverID: chapter2}, false, []string{chapter1, chapter2, chapter3}},
		{"unknown target", SectionDrop{ActiveID: chapter1, OverID: testID(999)}, false, []string{chapter1, chapter2, chapter3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, seededStore())
			drag := NewDragController(env.sync, testLogger())

			moved, err := drag.DropSection(context.Background(), env.session, tt.drop)
			if err != nil {
				t.Fatalf("DropSection: %v", err)
			}
			env.session.Wait()

			if moved != tt.wantMoved {
				t.Errorf("moved = %v, want %v", moved, tt.wantMoved)
			}
			if got := childIDs(env.session.Outline().Chapters); !equalIDs(got, tt.wantOrder) {
				t.Errorf("order = %v, want %v", got, tt.wantOrder)
			}
			if moved != env.store.called("sections.UpdateOrders") {
				t.Errorf("persisted = %v, want %v", !moved, moved)
			}
		})
	}
}

func TestDropSectionPersistsSingleKey(t *testing.T) {
	env := newTestEnv(t, seededStore())
	drag := NewDragController(env.sync, testLogger())

	if _, err := drag.DropSection(context.Background(), env.session, SectionDrop{ActiveID: chapter3, OverID: chapter1}); err != nil {
		t.Fatal(err)
	}
	env.session.Wait()

	if got := env.store.section(chapter3).OrderIndex; got != 500 {
		t.Errorf("stored order = %v, want 500", got)
	}
	if got := env.store.section(chapter1).OrderIndex; got != 1000 {
		t.Errorf("neighbour rewritten to %v", got)
	}
}

func TestDropSectionRebalancesCrowdedList(t *testing.T) {
	store := seededStore()
	store.sections[chapter2].OrderIndex = 1000 + 1e-7
	env := newTestEnv(t, store)
	drag := NewDragController(env.sync, testLogger())

	if _, err := drag.DropSection(context.Background(), env.session, SectionDrop{ActiveID: chapter3, OverID: chapter2}); err != nil {
		t.Fatal(err)
	}
	env.session.Wait()

	want := map[string]float64{chapter1: 1000, chapter3: 2000, chapter2: 3000}
	for id, order := range want {
		if got := store.section(id).OrderIndex; got != order {
			t.Errorf("stored order of %s = %v, want %v", id, got, order)
		}
		if got := FindNode(env.session.Outline(), id).OrderIndex; got != order {
			t.Errorf("local order of %s = %v, want %v", id, got, order)
		}
	}
}

func TestDropTask(t *testing.T) {
	tests := []struct {
		name        string
		drop        TaskDrop
		wantMoved   bool
		wantSection string
		wantOrder   float64
		wantTasks   map[string][]string
	}{
		{
			name:        "within section",
			drop:        TaskDrop{ActiveID: task3, OverID: task1, OverType: DropOnTask},
			wantMoved:   true,
			wantSection: sub1,
			wantOrder:   500,
			wantTasks:   map[string][]string{sub1: {task3, task1, task2}},
		},
		{
			name:        "onto own section",
			drop:        TaskDrop{ActiveID: task1, OverID: sub1, OverType: DropOnSection},
			wantMoved:   true,
			wantSection: sub1,
			wantOrder:   4000,
			wantTasks:   map[string][]string{sub1: {task2, task3, task1}},
		},
		{
			name:        "onto a task of another section",
			drop:        TaskDrop{ActiveID: task1, OverID: task4, OverType: DropOnTask},
			wantMoved:   true,
			wantSection: chapter2,
			wantOrder:   500,
			wantTasks:   map[string][]string{sub1: {task2, task3}, chapter2: {task1, task4}},
		},
		{
			name:        "onto an empty section placeholder",
			drop:        TaskDrop{ActiveID: task2, OverID: sub2, OverType: DropOnPlaceholder},
			wantMoved:   true,
			wantSection: sub2,
			wantOrder:   0,
			wantTasks:   map[string][]string{sub1: {task1, task3}, sub2: {task2}},
		},
		{
			name:        "unknown target",
			drop:        TaskDrop{ActiveID: task1, OverID: testID(999), OverType: DropOnTask},
			wantSection: sub1,
			wantOrder:   1000,
			wantTasks:   map[string][]string{sub1: {task1, task2, task3}},
		},
		{
			name:        "section id passed as task",
			drop:        TaskDrop{ActiveID: task1, OverID: chapter2, OverType: DropOnTask},
			wantSection: sub1,
			wantOrder:   1000,
			wantTasks:   map[string][]string{sub1: {task1, task2, task3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, seededStore())
			drag := NewDragController(env.sync, testLogger())

			moved, err := drag.DropTask(context.Background(), env.session, tt.drop)
			if err != nil {
				t.Fatalf("DropTask: %v", err)
			}
			env.session.Wait()

			if moved != tt.wantMoved {
				t.Errorf("moved = %v, want %v", moved, tt.wantMoved)
			}
			tree := env.session.Outline()
			for sectionID, want := range tt.wantTasks {
				if got := taskIDs(FindNode(tree, sectionID).Tasks); !equalIDs(got, want) {
					t.Errorf("tasks of %s = %v, want %v", sectionID, got, want)
				}
			}

			stored := env.store.task(tt.drop.ActiveID)
			if stored.SectionID != tt.wantSection {
				t.Errorf("stored section = %s, want %s", stored.SectionID, tt.wantSection)
			}
			if stored.OrderIndex != tt.wantOrder {
				t.Errorf("stored order = %v, want %v", stored.OrderIndex, tt.wantOrder)
			}
			local, owner := FindTask(tree, tt.drop.ActiveID)
			if owner.ID != tt.wantSection || local.SectionID != tt.wantSection {
				t.Errorf("local section = %s (%s), want %s", owner.ID, local.SectionID, tt.wantSection)
			}
		})
	}
}

func TestDropTaskPersistFailureKeepsLocalMove(t *testing.T) {
	env := newTestEnv(t, seededStore())
	env.store.fail("tasks.UpdatePositions", errors.New("deadlock detected"))
	drag := NewDragController(env.sync, testLogger())

	moved, err := drag.DropTask(context.Background(), env.session, TaskDrop{ActiveID: task1, OverID: task4, OverType: DropOnTask})
	if err != nil || !moved {
		t.Fatalf("DropTask = %v, %v", moved, err)
	}
	env.session.Wait()

	if _, owner := FindTask(env.session.Outline(), task1); owner.ID != chapter2 {
		t.Error("local move rolled back")
	}
	if n := env.events.notifications(models.LevelError); len(n) != 1 {
		t.Errorf("error notifications = %d, want 1", len(n))
	}
}
