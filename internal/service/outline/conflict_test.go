package outline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"tenderplan/internal/domain"
	models "tenderplan/internal/domain/models/outline"
)

func TestConflictResolver(t *testing.T) {
	taskTarget := Target{Kind: models.KindTask, ProjectID: projectID, SectionID: sub1}
	emptyTarget := Target{Kind: models.KindTask, ProjectID: projectID, SectionID: sub2}

	tests := []struct {
		name        string
		target      Target
		decider     Decider
		failDelete  bool
		wantProceed bool
		wantMode    models.Resolution
		wantDeleted int64
		wantTrace   []ConflictState
		wantErr     func(error) bool
	}{
		{
			name:        "nothing existing",
			target:      emptyTarget,
			decider:     FixedDecider(models.ResolutionNone),
			wantProceed: true,
			wantTrace:   []ConflictState{StateIdle, StateCheckingExisting, StateNoConflict, StateProceeding},
		},
		{
			name:    "conflict without a choice",
			target:  taskTarget,
			decider: FixedDecider(models.ResolutionNone),
			wantTrace: []ConflictState{
				StateIdle, StateCheckingExisting, StateAwaitingUserChoice, StateIdle,
			},
			wantErr: func(err error) bool {
				var conflict *domain.GenerationConflictError
				return errors.As(err, &conflict) && conflict.Existing == 3 && conflict.TargetID == sub1
			},
		},
		{
			name:        "append",
			target:      taskTarget,
			decider:     FixedDecider(models.ResolutionAppend),
			wantProceed: true,
			wantMode:    models.ResolutionAppend,
			wantTrace:   []ConflictState{StateIdle, StateCheckingExisting, StateAwaitingUserChoice, StateProceeding},
		},
		{
			name:        "replace",
			target:      taskTarget,
			decider:     FixedDecider(models.ResolutionReplace),
			wantProceed: true,
			wantMode:    models.ResolutionReplace,
			wantDeleted: 3,
			wantTrace: []ConflictState{
				StateIdle, StateCheckingExisting, StateAwaitingUserChoice, StateDeleting, StateProceeding,
			},
		},
		{
			name:    "cancel",
			target:  taskTarget,
			decider: FixedDecider(models.ResolutionCancel),
			wantTrace: []ConflictState{
				StateIdle, StateCheckingExisting, StateAwaitingUserChoice, StateCancelled, StateIdle,
			},
		},
		{
			name:       "replace delete fails",
			target:     taskTarget,
			decider:    FixedDecider(models.ResolutionReplace),
			failDelete: true,
			wantTrace: []ConflictState{
				StateIdle, StateCheckingExisting, StateAwaitingUserChoice, StateDeleting, StateIdle,
			},
			wantErr: func(err error) bool { return err != nil },
		},
		{
			name:    "unknown choice",
			target:  taskTarget,
			decider: FixedDecider("merge"),
			wantTrace: []ConflictState{
				StateIdle, StateCheckingExisting, StateAwaitingUserChoice, StateIdle,
			},
			wantErr: func(err error) bool {
				var v *domain.ValidationError
				return errors.As(err, &v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seededStore()
			if tt.failDelete {
				store.fail("tasks.DeleteBySection", errors.New("permission denied"))
			}
			resolver := NewConflictResolver(NewArtifactStore(store.repos()), testLogger())

			out, err := resolver.Resolve(context.Background(), tt.target, tt.decider)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if err != nil {
				t.Fatalf("Resolve: %v", err)
			}

			if out.Proceed != tt.wantProceed {
				t.Errorf("Proceed = %v, want %v", out.Proceed, tt.wantProceed)
			}
			if out.Mode != tt.wantMode {
				t.Errorf("Mode = %q, want %q", out.Mode, tt.wantMode)
			}
			if out.Deleted != tt.wantDeleted {
				t.Errorf("Deleted = %d, want %d", out.Deleted, tt.wantDeleted)
			}
			if !reflect.DeepEqual(out.Trace, tt.wantTrace) {
				t.Errorf("Trace = %v, want %v", out.Trace, tt.wantTrace)
			}
		})
	}
}

func TestConflictResolverCountFailure(t *testing.T) {
	store := seededStore()
	store.fail("tasks.CountBySection", errors.New("timeout"))
	resolver := NewConflictResolver(NewArtifactStore(store.repos()), testLogger())

	decided := false
	decider := DeciderFunc(func(context.Context, Conflict) (models.Resolution, error) {
		decided = true
		return models.ResolutionReplace, nil
	})

	_, err := resolver.Resolve(context.Background(), Target{Kind: models.KindTask, ProjectID: projectID, SectionID: sub1}, decider)
	if err == nil {
		t.Fatal("expected error")
	}
	if decided || store.called("tasks.DeleteBySection") {
		t.Error("gate continued after a failed check")
	}
}

func TestArtifactStoreCounts(t *testing.T) {
	store := seededStore()
	content := "已整合"
	store.sections[chapter2].Content = &content
	artifacts := NewArtifactStore(store.repos())

	tests := []struct {
		name   string
		target Target
		want   int
	}{
		{"structure", Target{Kind: models.KindStructure, ProjectID: projectID}, 5},
		{"subsection", Target{Kind: models.KindSubsection, ProjectID: projectID, SectionID: chapter1}, 2},
		{"task", Target{Kind: models.KindTask, ProjectID: projectID, SectionID: sub1}, 3},
		{"content", Target{Kind: models.KindContent, ProjectID: projectID, TaskID: task1}, 2},
		{"image", Target{Kind: models.KindImage, ProjectID: projectID, TaskID: task1}, 1},
		{"integration with content", Target{Kind: models.KindIntegration, ProjectID: projectID, SectionID: chapter2}, 1},
		{"integration without content", Target{Kind: models.KindIntegration, ProjectID: projectID, SectionID: chapter1}, 0},
		{"integration of missing section", Target{Kind: models.KindIntegration, ProjectID: projectID, SectionID: testID(999)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := artifacts.CountExisting(context.Background(), tt.target)
			if err != nil {
				t.Fatalf("CountExisting: %v", err)
			}
			if got != tt.want {
				t.Errorf("CountExisting = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTargetKey(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{Kind: models.KindStructure, ProjectID: "p"}, "structure:p"},
		{Target{Kind: models.KindTask, ProjectID: "p", SectionID: "s"}, "task:s"},
		{Target{Kind: models.KindContent, ProjectID: "p", SectionID: "s", TaskID: "t"}, "content:t"},
		{Target{Kind: models.KindImage, ProjectID: "p", SectionID: "s", TaskID: "t"}, "image:t"},
	}
	for _, tt := range tests {
		if got := tt.target.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}
