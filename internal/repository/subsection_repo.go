package repository

import (
	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type subsectionRepository struct {
	db *gorm.DB
}

func NewSubsectionRepository(db *gorm.DB) SubsectionRepository {
	return &subsectionRepository{db: db}
}

func (r *subsectionRepository) CreateAt(sub *model.Subsection, position *int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Subsection{}).
			Where("section_id = ?", sub.SectionID).Count(&count).Error; err != nil {
			return err
		}

		if position == nil || *position > int(count) {
			sub.Position = int(count) + 1
		} else {
			p := *position
			if p < 1 {
				p = 1
			}
			if err := tx.Model(&model.Subsection{}).
				Where("section_id = ? AND position >= ?", sub.SectionID, p).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
			sub.Position = p
		}
		return tx.Create(sub).Error
	})
}

func (r *subsectionRepository) Get(id uint) (*model.Subsection, error) {
	var sub model.Subsection
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r *subsectionRepository) ListBySection(sectionID uint) ([]model.Subsection, error) {
	var subs []model.Subsection
	err := r.db.Where("section_id = ?", sectionID).Order("position").Find(&subs).Error
	return subs, err
}

func (r *subsectionRepository) Save(sub *model.Subsection) error {
	return r.db.Save(sub).Error
}

func (r *subsectionRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var sub model.Subsection
		if err := tx.First(&sub, id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("subsection_id = ?", id).
			Delete(&model.SubsectionVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Subsection{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&model.Subsection{}).
			Where("section_id = ? AND position > ?", sub.SectionID, sub.Position).
			Update("position", gorm.Expr("position - 1")).Error
	})
}

func (r *subsectionRepository) Reorder(id uint, newPosition int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var sub model.Subsection
		if err := tx.First(&sub, id).Error; err != nil {
			return translate(err)
		}

		var count int64
		if err := tx.Model(&model.Subsection{}).
			Where("section_id = ?", sub.SectionID).Count(&count).Error; err != nil {
			return err
		}
		if newPosition < 1 {
			newPosition = 1
		}
		if newPosition > int(count) {
			newPosition = int(count)
		}
		if newPosition == sub.Position {
			return nil
		}

		if newPosition < sub.Position {
			if err := tx.Model(&model.Subsection{}).
				Where("section_id = ? AND position >= ? AND position < ?",
					sub.SectionID, newPosition, sub.Position).
				Update("position", gorm.Expr("position + 1")).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&model.Subsection{}).
				Where("section_id = ? AND position > ? AND position <= ?",
					sub.SectionID, sub.Position, newPosition).
				Update("position", gorm.Expr("position - 1")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Subsection{}).Where("id = ?", id).
			Update("position", newPosition).Error
	})
}

func (r *subsectionRepository) TemplateID(subsectionID uint) (uint, error) {
	var templateID uint
	err := r.db.Model(&model.Subsection{}).
		Joins("JOIN sections ON sections.id = subsections.section_id").
		Where("subsections.id = ?", subsectionID).
		Select("sections.template_id").
		Scan(&templateID).Error
	if err != nil {
		return 0, err
	}
	if templateID == 0 {
		return 0, ErrNotFound
	}
	return templateID, nil
}
