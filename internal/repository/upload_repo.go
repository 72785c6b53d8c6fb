package repository

import (
	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type uploadRepository struct {
	db *gorm.DB
}

func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(u *model.Upload) error {
	return r.db.Create(u).Error
}

func (r *uploadRepository) ListByTemplate(templateID uint) ([]model.Upload, error) {
	var uploads []model.Upload
	err := r.db.Where("template_id = ?", templateID).Order("created_at DESC").Find(&uploads).Error
	return uploads, err
}

func (r *uploadRepository) Get(id uint) (*model.Upload, error) {
	var u model.Upload
	if err := r.db.First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *uploadRepository) Delete(id uint) error {
	return r.db.Delete(&model.Upload{}, id).Error
}
