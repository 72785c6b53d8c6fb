package service

import (
	"errors"

	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

type SectionService struct {
	templateRepo repository.TemplateRepository
	sectionRepo  repository.SectionRepository
	locks        *Locks
}

func NewSectionService(templateRepo repository.TemplateRepository, sectionRepo repository.SectionRepository, locks *Locks) *SectionService {
	return &SectionService{
		templateRepo: templateRepo,
		sectionRepo:  sectionRepo,
		locks:        locks,
	}
}

// Create 在模板结构锁内插入 section；position 为 nil 时追加到末尾
func (s *SectionService) Create(templateID uint, title string, position *int) (*model.Section, error) {
	lock := s.locks.Template(templateID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("template get", err)
	}
	if position != nil && *position < 1 {
		return nil, apperrors.NewValidation("position must be >= 1")
	}

	section := &model.Section{TemplateID: templateID, Title: title}
	if err := s.sectionRepo.CreateAt(section, position); err != nil {
		return nil, apperrors.NewStorage("section create", err)
	}
	klog.V(6).Infof("section 已创建: template=%d section=%d position=%d", templateID, section.ID, section.Position)
	return section, nil
}

func (s *SectionService) Get(id uint) (*model.Section, error) {
	section, err := s.sectionRepo.GetWithSubsections(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("section", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}
	return section, nil
}

func (s *SectionService) List(templateID uint) ([]model.Section, error) {
	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("template", templateID)
		}
		return nil, apperrors.NewStorage("template get", err)
	}
	sections, err := s.sectionRepo.ListByTemplate(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("section list", err)
	}
	return sections, nil
}

func (s *SectionService) Rename(id uint, title string) (*model.Section, error) {
	section, err := s.sectionRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("section", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}

	lock := s.locks.Template(section.TemplateID)
	lock.Lock()
	defer lock.Unlock()

	section.Title = title
	if err := s.sectionRepo.Save(section); err != nil {
		return nil, apperrors.NewStorage("section save", err)
	}
	return section, nil
}

func (s *SectionService) Reorder(id uint, newPosition int) (*model.Section, error) {
	if newPosition < 1 {
		return nil, apperrors.NewValidation("position must be >= 1")
	}
	section, err := s.sectionRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("section", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}

	lock := s.locks.Template(section.TemplateID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.sectionRepo.Reorder(id, newPosition); err != nil {
		return nil, apperrors.NewStorage("section reorder", err)
	}
	return s.sectionRepo.Get(id)
}

func (s *SectionService) Delete(id uint) error {
	section, err := s.sectionRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("section", id)
	}
	if err != nil {
		return apperrors.NewStorage("section get", err)
	}

	lock := s.locks.Template(section.TemplateID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.sectionRepo.Delete(id); err != nil {
		return apperrors.NewStorage("section delete", err)
	}
	klog.V(6).Infof("section 已删除并压缩位置: template=%d section=%d", section.TemplateID, id)
	return nil
}
