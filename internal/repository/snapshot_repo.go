package repository

import (
	"database/sql"

	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Create(snap *model.TemplateSnapshot) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var maxVersion sql.NullInt64
		if err := tx.Model(&model.TemplateSnapshot{}).
			Where("template_id = ?", snap.TemplateID).
			Select("MAX(version_number)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		snap.VersionNumber = 1
		if maxVersion.Valid {
			snap.VersionNumber = int(maxVersion.Int64) + 1
		}
		return tx.Create(snap).Error
	})
}

func (r *snapshotRepository) ListByTemplate(templateID uint, limit int) ([]model.TemplateSnapshot, error) {
	var snaps []model.TemplateSnapshot
	query := r.db.Where("template_id = ?", templateID).
		Omit("snapshot").
		Order("version_number DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&snaps).Error
	return snaps, err
}

func (r *snapshotRepository) Get(id uint) (*model.TemplateSnapshot, error) {
	var snap model.TemplateSnapshot
	if err := r.db.First(&snap, id).Error; err != nil {
		return nil, translate(err)
	}
	return &snap, nil
}

func (r *snapshotRepository) RestoreTree(templateID uint, payload *model.SnapshotPayload) (int, error) {
	restored := 0
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var t model.Template
		if err := tx.First(&t, templateID).Error; err != nil {
			return err
		}

		// 删旧树：版本历史随小节一并清掉
		var oldSectionIDs []uint
		if err := tx.Model(&model.Section{}).
			Where("template_id = ?", templateID).
			Pluck("id", &oldSectionIDs).Error; err != nil {
			return err
		}
		if len(oldSectionIDs) > 0 {
			var oldSubIDs []uint
			if err := tx.Model(&model.Subsection{}).
				Where("section_id IN ?", oldSectionIDs).
				Pluck("id", &oldSubIDs).Error; err != nil {
				return err
			}
			if len(oldSubIDs) > 0 {
				if err := tx.Where("subsection_id IN ?", oldSubIDs).
					Delete(&model.SubsectionVersion{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", oldSubIDs).
					Delete(&model.Subsection{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ?", oldSectionIDs).
				Delete(&model.Section{}).Error; err != nil {
				return err
			}
		}

		t.Name = payload.Template.Name
		t.Description = payload.Template.Description
		t.OutputFormat = payload.Template.OutputFormat
		t.Orientation = payload.Template.Orientation
		t.FormattingProfile = payload.Template.FormattingProfile
		if err := tx.Save(&t).Error; err != nil {
			return err
		}

		if err := buildTree(tx, templateID, payload); err != nil {
			return err
		}
		restored = len(payload.Sections)
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}
	return restored, nil
}

func (r *snapshotRepository) CreateTree(t *model.Template, payload *model.SnapshotPayload) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return buildTree(tx, t.ID, payload)
	})
}

// buildTree 按快照内容建整棵章节树。非空内容的小节落一条 import 版本，
// 缓存视图与版本行保持一致。
func buildTree(tx *gorm.DB, templateID uint, payload *model.SnapshotPayload) error {
	for _, sec := range payload.Sections {
		section := model.Section{
			TemplateID: templateID,
			Title:      sec.Title,
			Position:   sec.Position,
		}
		if err := tx.Create(&section).Error; err != nil {
			return err
		}
		for _, ss := range sec.Subsections {
			sub := model.Subsection{
				SectionID:        section.ID,
				Title:            ss.Title,
				Position:         ss.Position,
				WidgetType:       ss.WidgetType,
				DataSourceConfig: ss.DataSourceConfig,
				Notes:            ss.Notes,
				Instructions:     ss.Instructions,
				Content:          ss.Content,
				ContentType:      ss.ContentType,
			}
			if ss.Content != "" {
				sub.VersionNumber = 1
			}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
			if ss.Content != "" {
				version := model.SubsectionVersion{
					SubsectionID:  sub.ID,
					VersionNumber: 1,
					Instructions:  ss.Instructions,
					Notes:         ss.Notes,
					Content:       ss.Content,
					ContentType:   ss.ContentType,
					GeneratedBy:   string(model.GeneratedByImport),
				}
				if err := tx.Create(&version).Error; err != nil {
					return err
				}
			}
		}
	}
	return nil
}
