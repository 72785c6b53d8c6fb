package service

import (
	"errors"
	"fmt"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

type SubsectionService struct {
	sectionRepo  repository.SectionRepository
	subRepo      repository.SubsectionRepository
	registryRepo repository.RegistryRepository
	locks        *Locks
}

func NewSubsectionService(sectionRepo repository.SectionRepository, subRepo repository.SubsectionRepository, registryRepo repository.RegistryRepository, locks *Locks) *SubsectionService {
	return &SubsectionService{
		sectionRepo:  sectionRepo,
		subRepo:      subRepo,
		registryRepo: registryRepo,
		locks:        locks,
	}
}

type CreateSubsectionInput struct {
	SectionID  uint   `json:"section_id"`
	Title      string `json:"title"`
	WidgetType string `json:"widget_type"`
	Position   *int   `json:"position"`
}

func (s *SubsectionService) Create(input CreateSubsectionInput) (*model.Subsection, error) {
	section, err := s.sectionRepo.Get(input.SectionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("section", input.SectionID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}

	widget := input.WidgetType
	if widget == "" {
		widget = string(model.WidgetSummary)
	}
	if !model.WidgetType(widget).Valid() {
		return nil, apperrors.NewValidation("invalid widget_type: %s", widget)
	}
	if input.Position != nil && *input.Position < 1 {
		return nil, apperrors.NewValidation("position must be >= 1")
	}

	lock := s.locks.Template(section.TemplateID)
	lock.Lock()
	defer lock.Unlock()

	sub := &model.Subsection{
		SectionID:   input.SectionID,
		Title:       input.Title,
		WidgetType:  widget,
		ContentType: string(model.ContentMarkdown),
	}
	if err := s.subRepo.CreateAt(sub, input.Position); err != nil {
		return nil, apperrors.NewStorage("subsection create", err)
	}
	return sub, nil
}

func (s *SubsectionService) Get(id uint) (*model.Subsection, error) {
	sub, err := s.subRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("subsection", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("subsection get", err)
	}
	return sub, nil
}

// Label 小节的字母标签 (position 1 -> A)
func (s *SubsectionService) Label(sub *model.Subsection) string {
	return model.PositionLabel(sub.Position)
}

func (s *SubsectionService) Rename(id uint, title string) (*model.Subsection, error) {
	return s.update(id, func(sub *model.Subsection) error {
		sub.Title = title
		return nil
	})
}

// SetNotes 更新协作备注；不产生版本，版本行记录写入时刻的生效值
func (s *SubsectionService) SetNotes(id uint, notes string) (*model.Subsection, error) {
	return s.update(id, func(sub *model.Subsection) error {
		sub.Notes = notes
		return nil
	})
}

func (s *SubsectionService) SetInstructions(id uint, instructions string) (*model.Subsection, error) {
	return s.update(id, func(sub *model.Subsection) error {
		sub.Instructions = instructions
		return nil
	})
}

func (s *SubsectionService) SetWidgetType(id uint, widget string) (*model.Subsection, error) {
	if !model.WidgetType(widget).Valid() {
		return nil, apperrors.NewValidation("invalid widget_type: %s", widget)
	}
	return s.update(id, func(sub *model.Subsection) error {
		sub.WidgetType = widget
		return nil
	})
}

// ConfigureDataSource 校验并写入小节的数据源配置。
// 引用的 source/method 必须存在于目录中；inactive 源允许配置，
// 生成前置检查阶段才会把它算作阻塞错误。
func (s *SubsectionService) ConfigureDataSource(id uint, rawConfig string) (*model.Subsection, error) {
	cfg, err := model.ParseDataSourceConfig(rawConfig)
	if err != nil {
		return nil, apperrors.NewValidation("%v", err)
	}
	for _, input := range cfg.Inputs {
		if input.SourceID == "" || input.MethodID == "" {
			return nil, apperrors.NewValidation("data input requires source_id and method_id")
		}
		ds, err := s.registryRepo.Get(input.SourceID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidation("unknown data source: %s", input.SourceID)
		}
		if err != nil {
			return nil, apperrors.NewStorage("registry get", err)
		}
		methods, err := model.ParseRetrievalMethods(ds.Methods)
		if err != nil {
			return nil, apperrors.NewStorage("registry parse", err)
		}
		found := false
		for _, m := range methods {
			if m.MethodID == input.MethodID {
				found = true
				break
			}
		}
		if !found {
			return nil, apperrors.NewValidation("unknown retrieval method: %s.%s", input.SourceID, input.MethodID)
		}
	}

	return s.update(id, func(sub *model.Subsection) error {
		sub.DataSourceConfig = rawConfig
		return nil
	})
}

func (s *SubsectionService) Reorder(id uint, newPosition int) (*model.Subsection, error) {
	if newPosition < 1 {
		return nil, apperrors.NewValidation("position must be >= 1")
	}
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	section, err := s.sectionRepo.Get(sub.SectionID)
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}

	lock := s.locks.Template(section.TemplateID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.subRepo.Reorder(id, newPosition); err != nil {
		return nil, apperrors.NewStorage("subsection reorder", err)
	}
	return s.Get(id)
}

func (s *SubsectionService) Delete(id uint) error {
	sub, err := s.Get(id)
	if err != nil {
		return err
	}
	section, err := s.sectionRepo.Get(sub.SectionID)
	if err != nil {
		return apperrors.NewStorage("section get", err)
	}

	lock := s.locks.Template(section.TemplateID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.subRepo.Delete(id); err != nil {
		return apperrors.NewStorage("subsection delete", err)
	}
	return nil
}

func (s *SubsectionService) update(id uint, mutate func(*model.Subsection) error) (*model.Subsection, error) {
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(sub); err != nil {
		return nil, err
	}
	if err := s.subRepo.Save(sub); err != nil {
		return nil, apperrors.NewStorage(fmt.Sprintf("subsection %d save", id), err)
	}
	return sub, nil
}
