package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

// SnapshotService 模板级快照：整树深拷贝的创建、查询、恢复与派生。
// 快照只存各小节的缓存当前内容，不带版本历史。
type SnapshotService struct {
	templateRepo repository.TemplateRepository
	sectionRepo  repository.SectionRepository
	snapshotRepo repository.SnapshotRepository
	locks        *Locks
}

func NewSnapshotService(templateRepo repository.TemplateRepository, sectionRepo repository.SectionRepository, snapshotRepo repository.SnapshotRepository, locks *Locks) *SnapshotService {
	return &SnapshotService{
		templateRepo: templateRepo,
		sectionRepo:  sectionRepo,
		snapshotRepo: snapshotRepo,
		locks:        locks,
	}
}

// SnapshotDetail 带解析后载荷的快照
type SnapshotDetail struct {
	ID            uint                   `json:"id"`
	TemplateID    uint                   `json:"template_id"`
	VersionNumber int                    `json:"version_number"`
	Name          string                 `json:"name"`
	CreatedBy     string                 `json:"created_by"`
	Payload       *model.SnapshotPayload `json:"payload"`
}

// RestoreResult 恢复操作的结果摘要
type RestoreResult struct {
	TemplateID       uint `json:"template_id"`
	SnapshotID       uint `json:"snapshot_id"`
	SectionsRestored int  `json:"sections_restored"`
}

// ForkResult 派生出的新模板及其来源模板
type ForkResult struct {
	Template   *model.Template `json:"template"`
	ForkedFrom uint            `json:"forked_from"`
}

// Create 给模板当前状态拍快照。持模板锁，保证拍到的是一致的树。
func (s *SnapshotService) Create(templateID uint, createdBy string) (*model.TemplateSnapshot, error) {
	lock := s.locks.Template(templateID)
	lock.Lock()
	defer lock.Unlock()

	payload, name, err := s.buildPayload(templateID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewStorage("snapshot marshal", err)
	}

	snap := &model.TemplateSnapshot{
		TemplateID: templateID,
		Name:       name,
		Snapshot:   string(raw),
		CreatedBy:  createdBy,
	}
	if err := s.snapshotRepo.Create(snap); err != nil {
		return nil, apperrors.NewStorage("snapshot create", err)
	}
	klog.V(6).Infof("模板快照已创建: template=%d version=%d sections=%d",
		templateID, snap.VersionNumber, len(payload.Sections))
	return snap, nil
}

// List 返回模板的快照列表（不含载荷），新的在前
func (s *SnapshotService) List(templateID uint, limit int) ([]model.TemplateSnapshot, error) {
	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("template get", err)
	}
	snaps, err := s.snapshotRepo.ListByTemplate(templateID, limit)
	if err != nil {
		return nil, apperrors.NewStorage("snapshot list", err)
	}
	return snaps, nil
}

// Get 返回单个快照及解析后的载荷
func (s *SnapshotService) Get(snapshotID uint) (*SnapshotDetail, error) {
	snap, payload, err := s.load(snapshotID)
	if err != nil {
		return nil, err
	}
	return &SnapshotDetail{
		ID:            snap.ID,
		TemplateID:    snap.TemplateID,
		VersionNumber: snap.VersionNumber,
		Name:          snap.Name,
		CreatedBy:     snap.CreatedBy,
		Payload:       payload,
	}, nil
}

// Restore 用快照内容整体替换模板当前的章节树。
// 恢复本身不自动再拍一张快照，当前未快照的改动会丢；调用方要保留现状需先 Create。
func (s *SnapshotService) Restore(templateID, snapshotID uint) (*RestoreResult, error) {
	lock := s.locks.Template(templateID)
	lock.Lock()
	defer lock.Unlock()

	snap, payload, err := s.load(snapshotID)
	if err != nil {
		return nil, err
	}
	if snap.TemplateID != templateID {
		return nil, apperrors.NewValidation("snapshot %d does not belong to template %d", snapshotID, templateID)
	}

	restored, err := s.snapshotRepo.RestoreTree(templateID, payload)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("snapshot restore", err)
	}
	klog.Infof("模板已从快照恢复: template=%d snapshot=%d sections=%d", templateID, snapshotID, restored)
	return &RestoreResult{
		TemplateID:       templateID,
		SnapshotID:       snapshotID,
		SectionsRestored: restored,
	}, nil
}

// Fork 按模板当前的实时树深拷贝出一个新的 draft 模板，原模板不受影响。
// 持模板锁，拷贝的是一致的树；快照之后的未快照改动一并带走。
func (s *SnapshotService) Fork(templateID uint, newName string) (*ForkResult, error) {
	lock := s.locks.Template(templateID)
	lock.Lock()
	defer lock.Unlock()

	payload, name, err := s.buildPayload(templateID)
	if err != nil {
		return nil, err
	}
	if newName == "" {
		newName = fmt.Sprintf("%s (fork)", name)
	}

	t := &model.Template{
		Name:              newName,
		Description:       payload.Template.Description,
		OutputFormat:      payload.Template.OutputFormat,
		Orientation:       payload.Template.Orientation,
		Status:            model.TemplateStatusDraft,
		FormattingProfile: payload.Template.FormattingProfile,
	}
	if err := s.snapshotRepo.CreateTree(t, payload); err != nil {
		return nil, apperrors.NewStorage("template fork", err)
	}
	klog.Infof("已派生新模板: source=%d new_template=%d sections=%d", templateID, t.ID, len(payload.Sections))
	return &ForkResult{Template: t, ForkedFrom: templateID}, nil
}

func (s *SnapshotService) load(snapshotID uint) (*model.TemplateSnapshot, *model.SnapshotPayload, error) {
	snap, err := s.snapshotRepo.Get(snapshotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NewNotFound("snapshot", snapshotID)
	}
	if err != nil {
		return nil, nil, apperrors.NewStorage("snapshot get", err)
	}
	var payload model.SnapshotPayload
	if err := json.Unmarshal([]byte(snap.Snapshot), &payload); err != nil {
		return nil, nil, apperrors.NewStorage("snapshot unmarshal", err)
	}
	return snap, &payload, nil
}

func (s *SnapshotService) buildPayload(templateID uint) (*model.SnapshotPayload, string, error) {
	t, err := s.templateRepo.Get(templateID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperrors.NewNotFound("template", templateID)
	}
	if err != nil {
		return nil, "", apperrors.NewStorage("template get", err)
	}
	sections, err := s.sectionRepo.ListByTemplate(templateID)
	if err != nil {
		return nil, "", apperrors.NewStorage("section list", err)
	}

	payload := &model.SnapshotPayload{
		Template: model.SnapshotTemplate{
			Name:              t.Name,
			Description:       t.Description,
			OutputFormat:      t.OutputFormat,
			Orientation:       t.Orientation,
			Status:            t.Status,
			FormattingProfile: t.FormattingProfile,
		},
	}
	for _, sec := range sections {
		snapSec := model.SnapshotSection{
			Position: sec.Position,
			Title:    sec.Title,
		}
		for _, sub := range sec.Subsections {
			snapSec.Subsections = append(snapSec.Subsections, model.SnapshotSubsection{
				Title:            sub.Title,
				Position:         sub.Position,
				WidgetType:       sub.WidgetType,
				DataSourceConfig: sub.DataSourceConfig,
				Notes:            sub.Notes,
				Instructions:     sub.Instructions,
				Content:          sub.Content,
				ContentType:      sub.ContentType,
				VersionNumber:    sub.VersionNumber,
			})
		}
		payload.Sections = append(payload.Sections, snapSec)
	}
	return payload, t.Name, nil
}
