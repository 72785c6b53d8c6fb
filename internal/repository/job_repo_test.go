package repository

import (
	"testing"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

func TestJobHasActive(t *testing.T) {
	db := newTestDB(t)
	tpl := seedTemplate(t, db)
	repo := NewJobRepository(db)

	active, err := repo.HasActive(tpl.ID)
	if err != nil {
		t.Fatalf("HasActive error: %v", err)
	}
	if active {
		t.Fatalf("expected no active job")
	}

	job := &model.GenerationJob{JobID: "job-1", TemplateID: tpl.ID, Status: "in_progress"}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	active, _ = repo.HasActive(tpl.ID)
	if !active {
		t.Fatalf("expected active job")
	}

	job.Status = "completed"
	repo.Save(job)
	active, _ = repo.HasActive(tpl.ID)
	if active {
		t.Fatalf("expected no active job after completion")
	}
}

func TestJobUpdateItemSyncsCurrentIndex(t *testing.T) {
	db := newTestDB(t)
	tpl := seedTemplate(t, db)
	repo := NewJobRepository(db)

	job := &model.GenerationJob{
		JobID: "job-2", TemplateID: tpl.ID, Status: "in_progress",
		Items: []model.GenerationJobItem{
			{SubsectionID: 1, SortOrder: 1, Status: "pending"},
			{SubsectionID: 2, SortOrder: 2, Status: "pending"},
		},
	}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	item := &job.Items[0]
	item.Status = "completed"
	if err := repo.UpdateItem(item, 1); err != nil {
		t.Fatalf("UpdateItem error: %v", err)
	}

	got, err := repo.GetWithItems("job-2")
	if err != nil {
		t.Fatalf("GetWithItems error: %v", err)
	}
	if got.CurrentIndex != 1 {
		t.Fatalf("expected current_index 1, got %d", got.CurrentIndex)
	}
	if got.Items[0].Status != "completed" || got.Items[1].Status != "pending" {
		t.Fatalf("unexpected item states: %+v", got.Items)
	}
}

func TestFailStaleOnlyTouchesNonTerminal(t *testing.T) {
	db := newTestDB(t)
	tpl := seedTemplate(t, db)
	repo := NewJobRepository(db)

	repo.Create(&model.GenerationJob{JobID: "a", TemplateID: tpl.ID, Status: "pending"})
	repo.Create(&model.GenerationJob{JobID: "b", TemplateID: tpl.ID, Status: "in_progress"})
	repo.Create(&model.GenerationJob{JobID: "c", TemplateID: tpl.ID, Status: "completed"})

	affected, err := repo.FailStale(0, "interrupted by restart")
	if err != nil {
		t.Fatalf("FailStale error: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 stale jobs failed, got %d", affected)
	}

	done, _ := repo.GetByJobID("c")
	if done.Status != "completed" {
		t.Fatalf("terminal job must not change, got %s", done.Status)
	}
	failed, _ := repo.GetByJobID("a")
	if failed.Status != "failed" || failed.ErrorMsg != "interrupted by restart" {
		t.Fatalf("unexpected stale job state: %+v", failed)
	}
}
