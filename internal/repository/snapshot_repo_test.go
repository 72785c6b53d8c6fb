package repository

import (
	"encoding/json"
	"testing"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

func TestSnapshotVersionNumbering(t *testing.T) {
	db := newTestDB(t)
	tpl := seedTemplate(t, db)
	repo := NewSnapshotRepository(db)

	payload, _ := json.Marshal(model.SnapshotPayload{Template: model.SnapshotTemplate{Name: tpl.Name}})
	for i := 1; i <= 3; i++ {
		snap := &model.TemplateSnapshot{TemplateID: tpl.ID, Name: tpl.Name, Snapshot: string(payload)}
		if err := repo.Create(snap); err != nil {
			t.Fatalf("Create snapshot %d error: %v", i, err)
		}
		if snap.VersionNumber != i {
			t.Fatalf("expected snapshot version %d, got %d", i, snap.VersionNumber)
		}
	}
}

func TestSnapshotListOmitsPayload(t *testing.T) {
	db := newTestDB(t)
	tpl := seedTemplate(t, db)
	repo := NewSnapshotRepository(db)

	payload, _ := json.Marshal(model.SnapshotPayload{Template: model.SnapshotTemplate{Name: tpl.Name}})
	if err := repo.Create(&model.TemplateSnapshot{TemplateID: tpl.ID, Snapshot: string(payload)}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	snaps, err := repo.ListByTemplate(tpl.ID, 0)
	if err != nil {
		t.Fatalf("ListByTemplate error: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Snapshot != "" {
		t.Fatalf("expected payload omitted in list")
	}
}

func TestRestoreTreeReplacesSections(t *testing.T) {
	db := newTestDB(t)
	tpl := seedTemplate(t, db)
	repo := NewSnapshotRepository(db)

	// 现有树：一个待替换的 section
	oldSec := &model.Section{TemplateID: tpl.ID, Title: "旧章节", Position: 1}
	db.Create(oldSec)
	oldSub := &model.Subsection{SectionID: oldSec.ID, Title: "旧小节", Position: 1, WidgetType: "summary"}
	db.Create(oldSub)
	db.Create(&model.SubsectionVersion{SubsectionID: oldSub.ID, VersionNumber: 1, Content: "old"})

	payload := &model.SnapshotPayload{
		Template: model.SnapshotTemplate{
			Name: "恢复后的模板", OutputFormat: "pdf", Orientation: "portrait", FormattingProfile: "{}",
		},
		Sections: []model.SnapshotSection{
			{
				Position: 1, Title: "概览",
				Subsections: []model.SnapshotSubsection{
					{Title: "摘要", Position: 1, WidgetType: "summary", Content: "已有内容", ContentType: "markdown", VersionNumber: 3},
				},
			},
			{
				Position: 2, Title: "财务",
				Subsections: []model.SnapshotSubsection{
					{Title: "营收图", Position: 1, WidgetType: "chart"},
				},
			},
		},
	}

	restored, err := repo.RestoreTree(tpl.ID, payload)
	if err != nil {
		t.Fatalf("RestoreTree error: %v", err)
	}
	if restored != 2 {
		t.Fatalf("expected 2 sections restored, got %d", restored)
	}

	// 旧树连同版本历史一并删除
	var oldCount int64
	db.Model(&model.Subsection{}).Where("id = ?", oldSub.ID).Count(&oldCount)
	if oldCount != 0 {
		t.Fatalf("expected old subsection removed")
	}
	db.Model(&model.SubsectionVersion{}).Where("subsection_id = ?", oldSub.ID).Count(&oldCount)
	if oldCount != 0 {
		t.Fatalf("expected old versions removed")
	}

	var got model.Template
	db.First(&got, tpl.ID)
	if got.Name != "恢复后的模板" || got.Orientation != "portrait" {
		t.Fatalf("template metadata not restored: %+v", got)
	}

	var sections []model.Section
	db.Where("template_id = ?", tpl.ID).Order("position").Find(&sections)
	if len(sections) != 2 || sections[0].Title != "概览" || sections[1].Title != "财务" {
		t.Fatalf("unexpected restored sections: %+v", sections)
	}

	// 非空内容的小节落一条 import 版本，缓存视图一致
	var sub model.Subsection
	db.Where("section_id = ? AND position = 1", sections[0].ID).First(&sub)
	if sub.Content != "已有内容" || sub.VersionNumber != 1 {
		t.Fatalf("restored subsection cached view wrong: content=%q version=%d", sub.Content, sub.VersionNumber)
	}
	var version model.SubsectionVersion
	if err := db.Where("subsection_id = ?", sub.ID).First(&version).Error; err != nil {
		t.Fatalf("expected import version: %v", err)
	}
	if version.GeneratedBy != "import" {
		t.Fatalf("expected generated_by import, got %q", version.GeneratedBy)
	}

	// 空内容的小节没有版本行
	var chartSub model.Subsection
	db.Where("section_id = ?", sections[1].ID).First(&chartSub)
	var verCount int64
	db.Model(&model.SubsectionVersion{}).Where("subsection_id = ?", chartSub.ID).Count(&verCount)
	if verCount != 0 {
		t.Fatalf("expected no version for empty content, got %d", verCount)
	}
}

func TestCreateTreeFork(t *testing.T) {
	db := newTestDB(t)
	repo := NewSnapshotRepository(db)

	payload := &model.SnapshotPayload{
		Template: model.SnapshotTemplate{Name: "原模板"},
		Sections: []model.SnapshotSection{
			{Position: 1, Title: "概览", Subsections: []model.SnapshotSubsection{
				{Title: "摘要", Position: 1, WidgetType: "summary", Content: "内容", ContentType: "markdown"},
			}},
		},
	}
	tpl := &model.Template{Name: "派生模板", Status: "draft", OutputFormat: "pdf", Orientation: "landscape"}
	if err := repo.CreateTree(tpl, payload); err != nil {
		t.Fatalf("CreateTree error: %v", err)
	}
	if tpl.ID == 0 {
		t.Fatalf("expected new template id")
	}

	var sections []model.Section
	db.Where("template_id = ?", tpl.ID).Find(&sections)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section in fork, got %d", len(sections))
	}
	var subs []model.Subsection
	db.Where("section_id = ?", sections[0].ID).Find(&subs)
	if len(subs) != 1 || subs[0].Content != "内容" {
		t.Fatalf("unexpected forked subsections: %+v", subs)
	}
}
