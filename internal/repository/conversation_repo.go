package repository

import (
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/model"
)

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetOrCreate(templateID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.Where("template_id = ?", templateID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	conv = model.Conversation{TemplateID: templateID}
	if err := r.db.Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessage 序号取 MAX+1，与插入同事务；
// (conversation_id, sequence_number) 唯一索引兜底并发追加
func (r *conversationRepository) AppendMessage(msg *model.ConversationMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var maxSeq sql.NullInt64
		if err := tx.Model(&model.ConversationMessage{}).
			Where("conversation_id = ?", msg.ConversationID).
			Select("MAX(sequence_number)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		msg.SequenceNumber = 1
		if maxSeq.Valid {
			msg.SequenceNumber = int(maxSeq.Int64) + 1
		}
		return tx.Create(msg).Error
	})
}

func (r *conversationRepository) History(conversationID uint, limit int) ([]model.ConversationMessage, error) {
	var messages []model.ConversationMessage
	query := r.db.Where("conversation_id = ?", conversationID).
		Order("sequence_number")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&messages).Error
	return messages, err
}
