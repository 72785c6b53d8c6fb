package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type registryRepository struct {
	db *gorm.DB
}

func NewRegistryRepository(db *gorm.DB) RegistryRepository {
	return &registryRepository{db: db}
}

func (r *registryRepository) List(activeOnly bool) ([]model.DataSource, error) {
	var sources []model.DataSource
	query := r.db.Order("id")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&sources).Error
	return sources, err
}

func (r *registryRepository) Get(id string) (*model.DataSource, error) {
	var ds model.DataSource
	if err := r.db.Where("id = ?", id).First(&ds).Error; err != nil {
		return nil, translate(err)
	}
	return &ds, nil
}

func (r *registryRepository) Upsert(ds *model.DataSource) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(ds).Error
}

func (r *registryRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.DataSource{}).Count(&count).Error
	return count, err
}
