package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *model.GenerationJob) error {
	return r.db.Create(job).Error
}

func (r *jobRepository) GetByJobID(jobID string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := r.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

func (r *jobRepository) GetWithItems(jobID string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := r.db.Where("job_id = ?", jobID).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order")
		}).
		First(&job).Error
	if err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

func (r *jobRepository) Save(job *model.GenerationJob) error {
	return r.db.Save(job).Error
}

func (r *jobRepository) HasActive(templateID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.GenerationJob{}).
		Where("template_id = ? AND status IN ?", templateID,
			[]string{"pending", "in_progress"}).
		Count(&count).Error
	return count > 0, err
}

// UpdateItem 单条进度与作业 current_index 同事务落库，避免观察者读到撕裂状态
func (r *jobRepository) UpdateItem(item *model.GenerationJobItem, currentIndex int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return tx.Model(&model.GenerationJob{}).
			Where("id = ?", item.JobRowID).
			Updates(map[string]interface{}{
				"current_index": currentIndex,
				"updated_at":    time.Now(),
			}).Error
	})
}

// FailStale 进程重启后清理遗留的未终态作业
func (r *jobRepository) FailStale(templateID uint, reason string) (int64, error) {
	query := r.db.Model(&model.GenerationJob{}).
		Where("status IN ?", []string{"pending", "in_progress"})
	if templateID != 0 {
		query = query.Where("template_id = ?", templateID)
	}
	result := query.Updates(map[string]interface{}{
		"status":    "failed",
		"error_msg": reason,
	})
	return result.RowsAffected, result.Error
}
