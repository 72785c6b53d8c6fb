package repository

import (
	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(t *model.Template) error {
	return r.db.Create(t).Error
}

func (r *templateRepository) List() ([]model.Template, error) {
	var templates []model.Template
	err := r.db.Order("created_at DESC").Find(&templates).Error
	return templates, err
}

func (r *templateRepository) Get(id uint) (*model.Template, error) {
	var t model.Template
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *templateRepository) Save(t *model.Template) error {
	return r.db.Save(t).Error
}

// Delete 级联清理模板独占拥有的所有子实体
func (r *templateRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var sectionIDs []uint
		if err := tx.Model(&model.Section{}).Where("template_id = ?", id).
			Pluck("id", &sectionIDs).Error; err != nil {
			return err
		}
		if len(sectionIDs) > 0 {
			var subsectionIDs []uint
			if err := tx.Model(&model.Subsection{}).Where("section_id IN ?", sectionIDs).
				Pluck("id", &subsectionIDs).Error; err != nil {
				return err
			}
			if len(subsectionIDs) > 0 {
				if err := tx.Where("subsection_id IN ?", subsectionIDs).
					Delete(&model.SubsectionVersion{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", subsectionIDs).
					Delete(&model.Subsection{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ?", sectionIDs).Delete(&model.Section{}).Error; err != nil {
				return err
			}
		}

		var conv model.Conversation
		if err := tx.Where("template_id = ?", id).First(&conv).Error; err == nil {
			if err := tx.Where("conversation_id = ?", conv.ID).
				Delete(&model.ConversationMessage{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&conv).Error; err != nil {
				return err
			}
		}

		var jobRowIDs []uint
		if err := tx.Model(&model.GenerationJob{}).Where("template_id = ?", id).
			Pluck("id", &jobRowIDs).Error; err != nil {
			return err
		}
		if len(jobRowIDs) > 0 {
			if err := tx.Where("job_row_id IN ?", jobRowIDs).
				Delete(&model.GenerationJobItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", jobRowIDs).Delete(&model.GenerationJob{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("template_id = ?", id).Delete(&model.TemplateSnapshot{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&model.RunInputsPreset{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&model.Upload{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Template{}, id).Error
	})
}
