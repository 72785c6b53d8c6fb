package repository

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type versionRepository struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

// SaveVersion 版本写入与小节缓存视图更新在同一事务内完成。
// 版本号取 MAX(version_number)+1；(subsection_id, version_number) 唯一索引
// 保证并发写入不会产生重号 —— 冲突时事务失败，由上层按 Conflict 重试。
func (r *versionRepository) SaveVersion(subsectionID uint, write VersionWrite) (*model.SubsectionVersion, error) {
	var version *model.SubsectionVersion

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var sub model.Subsection
		if err := tx.First(&sub, subsectionID).Error; err != nil {
			return translate(err)
		}

		var maxVersion sql.NullInt64
		if err := tx.Model(&model.SubsectionVersion{}).
			Where("subsection_id = ?", subsectionID).
			Select("MAX(version_number)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		nextVersion := 1
		if maxVersion.Valid {
			nextVersion = int(maxVersion.Int64) + 1
		}

		// nil 字段沿用小节当前值
		instructions := sub.Instructions
		if write.Instructions != nil {
			instructions = *write.Instructions
		}
		notes := sub.Notes
		if write.Notes != nil {
			notes = *write.Notes
		}
		content := sub.Content
		if write.Content != nil {
			content = *write.Content
		}
		contentType := sub.ContentType
		if write.ContentType != nil {
			contentType = *write.ContentType
		}
		if contentType == "" {
			contentType = string(model.ContentMarkdown)
		}

		version = &model.SubsectionVersion{
			SubsectionID:      subsectionID,
			VersionNumber:     nextVersion,
			Instructions:      instructions,
			Notes:             notes,
			Content:           content,
			ContentType:       contentType,
			GeneratedBy:       write.GeneratedBy,
			IsFinal:           write.IsFinal,
			GenerationContext: write.GenerationContext,
		}
		if err := tx.Create(version).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"instructions":   instructions,
			"notes":          notes,
			"content":        content,
			"content_type":   contentType,
			"version_number": nextVersion,
			"updated_at":     time.Now(),
		}
		if write.Title != nil {
			updates["title"] = *write.Title
		}
		if err := tx.Model(&model.Subsection{}).
			Where("id = ?", subsectionID).
			Updates(updates).Error; err != nil {
			return err
		}

		if write.IsFinal {
			if err := tx.Model(&model.SubsectionVersion{}).
				Where("subsection_id = ? AND id != ?", subsectionID, version.ID).
				Update("is_final", false).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

func (r *versionRepository) History(subsectionID uint) ([]model.SubsectionVersion, error) {
	var versions []model.SubsectionVersion
	err := r.db.Where("subsection_id = ?", subsectionID).
		Order("version_number DESC").
		Find(&versions).Error
	return versions, err
}

func (r *versionRepository) GetVersion(versionID uint) (*model.SubsectionVersion, error) {
	var version model.SubsectionVersion
	if err := r.db.First(&version, versionID).Error; err != nil {
		return nil, translate(err)
	}
	return &version, nil
}

func (r *versionRepository) MarkFinal(versionID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var version model.SubsectionVersion
		if err := tx.First(&version, versionID).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&model.SubsectionVersion{}).
			Where("subsection_id = ? AND id != ?", version.SubsectionID, versionID).
			Update("is_final", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.SubsectionVersion{}).
			Where("id = ?", versionID).
			Update("is_final", true).Error
	})
}
