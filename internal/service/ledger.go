package service

import (
	"errors"
	"strings"

	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

// LedgerService 小节版本账本：追加不可变版本并维护缓存当前视图。
// 每个小节的写路径（作业驱动或单独生成或人工编辑）都经过同一把小节锁，
// 版本号因此严格 +1 无跳号；唯一索引兜底进程外的并发写入。
type LedgerService struct {
	subRepo     repository.SubsectionRepository
	versionRepo repository.VersionRepository
	locks       *Locks
}

func NewLedgerService(subRepo repository.SubsectionRepository, versionRepo repository.VersionRepository, locks *Locks) *LedgerService {
	return &LedgerService{
		subRepo:     subRepo,
		versionRepo: versionRepo,
		locks:       locks,
	}
}

const saveRetries = 3

type SaveVersionInput struct {
	Content           *string
	ContentType       *string
	Instructions      *string
	Notes             *string
	GeneratedBy       string
	IsFinal           bool
	GenerationContext string
	Title             *string
}

type SaveVersionResult struct {
	VersionID     uint   `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	SubsectionID  uint   `json:"subsection_id"`
	ContentType   string `json:"content_type"`
	GeneratedBy   string `json:"generated_by"`
	IsFinal       bool   `json:"is_final"`
}

func (s *LedgerService) Save(subsectionID uint, input SaveVersionInput) (*SaveVersionResult, error) {
	if input.GeneratedBy == "" {
		input.GeneratedBy = string(model.GeneratedByAgent)
	}
	if !model.GeneratedBy(input.GeneratedBy).Valid() {
		return nil, apperrors.NewValidation("invalid generated_by: %s", input.GeneratedBy)
	}
	if input.ContentType != nil && !model.ContentType(*input.ContentType).Valid() {
		return nil, apperrors.NewValidation("invalid content_type: %s", *input.ContentType)
	}

	lock := s.locks.Subsection(subsectionID)
	lock.Lock()
	defer lock.Unlock()

	write := repository.VersionWrite{
		Content:           input.Content,
		ContentType:       input.ContentType,
		Instructions:      input.Instructions,
		Notes:             input.Notes,
		GeneratedBy:       input.GeneratedBy,
		IsFinal:           input.IsFinal,
		GenerationContext: input.GenerationContext,
		Title:             input.Title,
	}

	// 锁内冲突只可能来自进程外写入；命中唯一索引则重试取号
	var version *model.SubsectionVersion
	var err error
	for attempt := 0; attempt < saveRetries; attempt++ {
		version, err = s.versionRepo.SaveVersion(subsectionID, write)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("subsection", subsectionID)
		}
		if !isUniqueViolation(err) {
			return nil, apperrors.NewStorage("version save", err)
		}
		klog.V(6).Infof("版本号冲突，重试: subsection=%d attempt=%d", subsectionID, attempt+1)
	}
	if err != nil {
		return nil, apperrors.NewConflict("concurrent version write on subsection %d", subsectionID)
	}

	return &SaveVersionResult{
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		SubsectionID:  subsectionID,
		ContentType:   version.ContentType,
		GeneratedBy:   version.GeneratedBy,
		IsFinal:       version.IsFinal,
	}, nil
}

// Latest 渲染始终使用小节的缓存当前视图
func (s *LedgerService) Latest(subsectionID uint) (*model.Subsection, error) {
	sub, err := s.subRepo.Get(subsectionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("subsection", subsectionID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("subsection get", err)
	}
	return sub, nil
}

// History 全部版本，新的在前
func (s *LedgerService) History(subsectionID uint) ([]model.SubsectionVersion, error) {
	if _, err := s.Latest(subsectionID); err != nil {
		return nil, err
	}
	versions, err := s.versionRepo.History(subsectionID)
	if err != nil {
		return nil, apperrors.NewStorage("version history", err)
	}
	return versions, nil
}

// Version 按版本 ID 取单条历史记录
func (s *LedgerService) Version(versionID uint) (*model.SubsectionVersion, error) {
	version, err := s.versionRepo.GetVersion(versionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("version", versionID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("version get", err)
	}
	return version, nil
}

// MarkFinal 最终标记仅供参考，不影响渲染取哪个版本
func (s *LedgerService) MarkFinal(versionID uint) (*model.SubsectionVersion, error) {
	version, err := s.versionRepo.GetVersion(versionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("version", versionID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("version get", err)
	}

	lock := s.locks.Subsection(version.SubsectionID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.versionRepo.MarkFinal(versionID); err != nil {
		return nil, apperrors.NewStorage("version mark final", err)
	}
	return s.versionRepo.GetVersion(versionID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
