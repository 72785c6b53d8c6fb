package repository

import (
	"testing"

	"github.com/alexwday/report-designer-sub001/internal/model"
	"gorm.io/gorm"
)

func seedSubsection(t *testing.T, db *gorm.DB) *model.Subsection {
	t.Helper()
	tpl := seedTemplate(t, db)
	sec := &model.Section{TemplateID: tpl.ID, Title: "财务", Position: 1}
	if err := db.Create(sec).Error; err != nil {
		t.Fatalf("seed section error: %v", err)
	}
	sub := &model.Subsection{
		SectionID:    sec.ID,
		Title:        "营收分析",
		Position:     1,
		WidgetType:   "summary",
		Instructions: "总结本季度营收",
		ContentType:  "markdown",
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("seed subsection error: %v", err)
	}
	return sub
}

func strPtr(s string) *string { return &s }

func TestSaveVersionNumbersAndCachedView(t *testing.T) {
	db := newTestDB(t)
	sub := seedSubsection(t, db)
	repo := NewVersionRepository(db)

	v1, err := repo.SaveVersion(sub.ID, VersionWrite{
		Content:     strPtr("第一版内容"),
		GeneratedBy: "agent",
	})
	if err != nil {
		t.Fatalf("SaveVersion v1 error: %v", err)
	}
	if v1.VersionNumber != 1 {
		t.Fatalf("expected version 1, got %d", v1.VersionNumber)
	}
	// nil 字段沿用小节当前值
	if v1.Instructions != "总结本季度营收" {
		t.Fatalf("expected inherited instructions, got %q", v1.Instructions)
	}

	v2, err := repo.SaveVersion(sub.ID, VersionWrite{
		Content:     strPtr("第二版内容"),
		GeneratedBy: "user_edit",
	})
	if err != nil {
		t.Fatalf("SaveVersion v2 error: %v", err)
	}
	if v2.VersionNumber != 2 {
		t.Fatalf("expected version 2, got %d", v2.VersionNumber)
	}

	var cached model.Subsection
	if err := db.First(&cached, sub.ID).Error; err != nil {
		t.Fatalf("load subsection error: %v", err)
	}
	if cached.Content != "第二版内容" || cached.VersionNumber != 2 {
		t.Fatalf("cached view not updated: content=%q version=%d", cached.Content, cached.VersionNumber)
	}
}

func TestSaveVersionHistoryOrder(t *testing.T) {
	db := newTestDB(t)
	sub := seedSubsection(t, db)
	repo := NewVersionRepository(db)

	for _, content := range []string{"a", "b", "c"} {
		if _, err := repo.SaveVersion(sub.ID, VersionWrite{Content: strPtr(content), GeneratedBy: "agent"}); err != nil {
			t.Fatalf("SaveVersion error: %v", err)
		}
	}

	versions, err := repo.History(sub.ID)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	// 新的在前
	if versions[0].VersionNumber != 3 || versions[2].VersionNumber != 1 {
		t.Fatalf("unexpected history order: %d..%d", versions[0].VersionNumber, versions[2].VersionNumber)
	}
}

func TestSaveVersionNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewVersionRepository(db)

	if _, err := repo.SaveVersion(999, VersionWrite{Content: strPtr("x"), GeneratedBy: "agent"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkFinalClearsOtherVersions(t *testing.T) {
	db := newTestDB(t)
	sub := seedSubsection(t, db)
	repo := NewVersionRepository(db)

	v1, _ := repo.SaveVersion(sub.ID, VersionWrite{Content: strPtr("a"), GeneratedBy: "agent", IsFinal: true})
	v2, _ := repo.SaveVersion(sub.ID, VersionWrite{Content: strPtr("b"), GeneratedBy: "agent"})

	if err := repo.MarkFinal(v2.ID); err != nil {
		t.Fatalf("MarkFinal error: %v", err)
	}

	got1, _ := repo.GetVersion(v1.ID)
	got2, _ := repo.GetVersion(v2.ID)
	if got1.IsFinal {
		t.Fatalf("expected v1 final flag cleared")
	}
	if !got2.IsFinal {
		t.Fatalf("expected v2 marked final")
	}
}
