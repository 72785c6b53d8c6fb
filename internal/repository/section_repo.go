package repository

import (
	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type sectionRepository struct {
	db *gorm.DB
}

func NewSectionRepository(db *gorm.DB) SectionRepository {
	return &sectionRepository{db: db}
}

func (r *sectionRepository) CreateAt(section *model.Section, position *int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Section{}).
			Where("template_id = ?", section.TemplateID).Count(&count).Error; err != nil {
			return err
		}

		if position == nil || *position > int(count) {
			section.Position = int(count) + 1
		} else {
			p := *position
			if p < 1 {
				p = 1
			}
			// 腾出位置
			if err := tx.Model(&model.Section{}).
				Where("template_id = ? AND position >= ?", section.TemplateID, p).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
			section.Position = p
		}
		return tx.Create(section).Error
	})
}

func (r *sectionRepository) Get(id uint) (*model.Section, error) {
	var section model.Section
	if err := r.db.First(&section, id).Error; err != nil {
		return nil, translate(err)
	}
	return &section, nil
}

func (r *sectionRepository) GetWithSubsections(id uint) (*model.Section, error) {
	var section model.Section
	err := r.db.Preload("Subsections", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).First(&section, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &section, nil
}

func (r *sectionRepository) ListByTemplate(templateID uint) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.Where("template_id = ?", templateID).
		Order("position").
		Preload("Subsections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		Find(&sections).Error
	return sections, err
}

func (r *sectionRepository) Save(section *model.Section) error {
	return r.db.Save(section).Error
}

func (r *sectionRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var section model.Section
		if err := tx.First(&section, id).Error; err != nil {
			return translate(err)
		}

		var subsectionIDs []uint
		if err := tx.Model(&model.Subsection{}).Where("section_id = ?", id).
			Pluck("id", &subsectionIDs).Error; err != nil {
			return err
		}
		if len(subsectionIDs) > 0 {
			if err := tx.Where("subsection_id IN ?", subsectionIDs).
				Delete(&model.SubsectionVersion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("section_id = ?", id).Delete(&model.Subsection{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&model.Section{}, id).Error; err != nil {
			return err
		}
		// 压缩位置，保持 1..N 无空洞
		return tx.Model(&model.Section{}).
			Where("template_id = ? AND position > ?", section.TemplateID, section.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

func (r *sectionRepository) Reorder(id uint, newPosition int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var section model.Section
		if err := tx.First(&section, id).Error; err != nil {
			return translate(err)
		}

		var count int64
		if err := tx.Model(&model.Section{}).
			Where("template_id = ?", section.TemplateID).Count(&count).Error; err != nil {
			return err
		}
		if newPosition < 1 {
			newPosition = 1
		}
		if newPosition > int(count) {
			newPosition = int(count)
		}
		if newPosition == section.Position {
			return nil
		}

		if newPosition < section.Position {
			if err := tx.Model(&model.Section{}).
				Where("template_id = ? AND position >= ? AND position < ?",
					section.TemplateID, newPosition, section.Position).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&model.Section{}).
				Where("template_id = ? AND position > ? AND position <= ?",
					section.TemplateID, section.Position, newPosition).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Section{}).Where("id = ?", id).
			Update("position", newPosition).Error
	})
}
