package service

import (
	"errors"

	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

// ConversationService 每模板一条会话流水。消息序号在会话锁内取号，
// 保证单调递增无空洞。
type ConversationService struct {
	templateRepo     repository.TemplateRepository
	conversationRepo repository.ConversationRepository
	locks            *Locks
}

func NewConversationService(templateRepo repository.TemplateRepository, conversationRepo repository.ConversationRepository, locks *Locks) *ConversationService {
	return &ConversationService{
		templateRepo:     templateRepo,
		conversationRepo: conversationRepo,
		locks:            locks,
	}
}

var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"tool":      true,
}

// AppendMessageInput 追加一条会话消息
type AppendMessageInput struct {
	Role         string `json:"role" binding:"required"`
	Content      string `json:"content" binding:"required"`
	Surface      string `json:"surface"`
	SectionID    *uint  `json:"section_id"`
	SubsectionID *uint  `json:"subsection_id"`
}

func (s *ConversationService) Append(templateID uint, input AppendMessageInput) (*model.ConversationMessage, error) {
	if !validRoles[input.Role] {
		return nil, apperrors.NewValidation("invalid role: %s", input.Role)
	}
	if input.Surface == "" {
		input.Surface = "main"
	}

	conv, err := s.getOrCreate(templateID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.Conversation(templateID)
	lock.Lock()
	defer lock.Unlock()

	msg := &model.ConversationMessage{
		ConversationID: conv.ID,
		Role:           input.Role,
		Content:        input.Content,
		Surface:        input.Surface,
		SectionID:      input.SectionID,
		SubsectionID:   input.SubsectionID,
	}
	if err := s.conversationRepo.AppendMessage(msg); err != nil {
		return nil, apperrors.NewStorage("message append", err)
	}
	klog.V(6).Infof("会话消息已追加: template=%d seq=%d role=%s", templateID, msg.SequenceNumber, msg.Role)
	return msg, nil
}

// History 按序号升序返回会话消息，limit<=0 返回全部
func (s *ConversationService) History(templateID uint, limit int) ([]model.ConversationMessage, error) {
	conv, err := s.getOrCreate(templateID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.conversationRepo.History(conv.ID, limit)
	if err != nil {
		return nil, apperrors.NewStorage("conversation history", err)
	}
	return msgs, nil
}

func (s *ConversationService) getOrCreate(templateID uint) (*model.Conversation, error) {
	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("template get", err)
	}
	conv, err := s.conversationRepo.GetOrCreate(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("conversation get", err)
	}
	return conv, nil
}
