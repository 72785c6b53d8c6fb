package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type presetRepository struct {
	db *gorm.DB
}

func NewPresetRepository(db *gorm.DB) PresetRepository {
	return &presetRepository{db: db}
}

// Get 无预设时返回空 map 预设而不是错误
func (r *presetRepository) Get(templateID uint) (*model.RunInputsPreset, error) {
	var preset model.RunInputsPreset
	err := r.db.Where("template_id = ?", templateID).First(&preset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.RunInputsPreset{TemplateID: templateID, RunInputs: "{}"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

func (r *presetRepository) Upsert(templateID uint, runInputs string) (*model.RunInputsPreset, error) {
	preset := &model.RunInputsPreset{
		TemplateID: templateID,
		RunInputs:  runInputs,
		UpdatedAt:  time.Now(),
	}
	err := r.db.Save(preset).Error
	if err != nil {
		return nil, err
	}
	return preset, nil
}
