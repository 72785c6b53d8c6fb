package service

import (
	"errors"

	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

type TemplateService struct {
	templateRepo repository.TemplateRepository
	sectionRepo  repository.SectionRepository
	locks        *Locks
}

func NewTemplateService(templateRepo repository.TemplateRepository, sectionRepo repository.SectionRepository, locks *Locks) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		sectionRepo:  sectionRepo,
		locks:        locks,
	}
}

type CreateTemplateInput struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	OutputFormat      string `json:"output_format"`
	Orientation       string `json:"orientation"`
	FormattingProfile string `json:"formatting_profile"`
}

func (s *TemplateService) Create(input CreateTemplateInput) (*model.Template, error) {
	if input.Name == "" {
		return nil, apperrors.NewValidation("template name is required")
	}
	if input.OutputFormat == "" {
		input.OutputFormat = model.OutputFormatPDF
	}
	if !model.ValidOutputFormat(input.OutputFormat) {
		return nil, apperrors.NewValidation("invalid output_format: %s", input.OutputFormat)
	}
	if input.Orientation == "" {
		input.Orientation = model.OrientationLandscape
	}
	if !model.ValidOrientation(input.Orientation) {
		return nil, apperrors.NewValidation("invalid orientation: %s", input.Orientation)
	}
	profile := input.FormattingProfile
	if profile == "" {
		profile = "{}"
	}

	t := &model.Template{
		Name:              input.Name,
		Description:       input.Description,
		OutputFormat:      input.OutputFormat,
		Orientation:       input.Orientation,
		Status:            model.TemplateStatusDraft,
		FormattingProfile: profile,
	}
	if err := s.templateRepo.Create(t); err != nil {
		return nil, apperrors.NewStorage("template create", err)
	}
	klog.V(6).Infof("模板已创建: id=%d name=%s", t.ID, t.Name)
	return t, nil
}

func (s *TemplateService) List() ([]model.Template, error) {
	templates, err := s.templateRepo.List()
	if err != nil {
		return nil, apperrors.NewStorage("template list", err)
	}
	return templates, nil
}

func (s *TemplateService) Get(id uint) (*model.Template, error) {
	t, err := s.templateRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("template", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("template get", err)
	}
	return t, nil
}

// GetTree 模板及按位置排序的整棵 section/subsection 树
func (s *TemplateService) GetTree(id uint) (*model.Template, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	sections, err := s.sectionRepo.ListByTemplate(id)
	if err != nil {
		return nil, apperrors.NewStorage("section list", err)
	}
	t.Sections = sections
	return t, nil
}

type UpdateTemplateInput struct {
	Name              *string `json:"name"`
	Description       *string `json:"description"`
	Orientation       *string `json:"orientation"`
	Status            *string `json:"status"`
	FormattingProfile *string `json:"formatting_profile"`
}

func (s *TemplateService) Update(id uint, input UpdateTemplateInput) (*model.Template, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.NewValidation("template name cannot be empty")
		}
		t.Name = *input.Name
	}
	if input.Description != nil {
		t.Description = *input.Description
	}
	if input.Orientation != nil {
		if !model.ValidOrientation(*input.Orientation) {
			return nil, apperrors.NewValidation("invalid orientation: %s", *input.Orientation)
		}
		t.Orientation = *input.Orientation
	}
	if input.Status != nil {
		if !model.ValidTemplateStatus(*input.Status) {
			return nil, apperrors.NewValidation("invalid status: %s", *input.Status)
		}
		t.Status = *input.Status
	}
	if input.FormattingProfile != nil {
		t.FormattingProfile = *input.FormattingProfile
	}
	if err := s.templateRepo.Save(t); err != nil {
		return nil, apperrors.NewStorage("template save", err)
	}
	return t, nil
}

// Delete 级联删除模板拥有的全部子实体
func (s *TemplateService) Delete(id uint) error {
	lock := s.locks.Template(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.templateRepo.Delete(id); err != nil {
		return apperrors.NewStorage("template delete", err)
	}
	klog.V(6).Infof("模板已删除: id=%d", id)
	return nil
}
