package service

import (
	"encoding/json"
	"errors"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

// PresetService 每模板一条的运行输入预设
type PresetService struct {
	templateRepo repository.TemplateRepository
	presetRepo   repository.PresetRepository
}

func NewPresetService(templateRepo repository.TemplateRepository, presetRepo repository.PresetRepository) *PresetService {
	return &PresetService{templateRepo: templateRepo, presetRepo: presetRepo}
}

// PresetView 预设的读模型
type PresetView struct {
	TemplateID uint           `json:"template_id"`
	RunInputs  map[string]any `json:"run_inputs"`
}

// Get 没有预设时返回空 map，不报错
func (s *PresetService) Get(templateID uint) (*PresetView, error) {
	if err := s.ensureTemplate(templateID); err != nil {
		return nil, err
	}
	preset, err := s.presetRepo.Get(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("preset get", err)
	}
	inputs := map[string]any{}
	if preset.RunInputs != "" {
		if err := json.Unmarshal([]byte(preset.RunInputs), &inputs); err != nil {
			return nil, apperrors.NewStorage("preset parse", err)
		}
	}
	return &PresetView{TemplateID: templateID, RunInputs: inputs}, nil
}

// Save 整体覆盖写入
func (s *PresetService) Save(templateID uint, runInputs map[string]any) (*PresetView, error) {
	if err := s.ensureTemplate(templateID); err != nil {
		return nil, err
	}
	if runInputs == nil {
		runInputs = map[string]any{}
	}
	raw, err := json.Marshal(runInputs)
	if err != nil {
		return nil, apperrors.NewValidation("invalid run inputs: %v", err)
	}
	if _, err := s.presetRepo.Upsert(templateID, string(raw)); err != nil {
		return nil, apperrors.NewStorage("preset save", err)
	}
	return &PresetView{TemplateID: templateID, RunInputs: runInputs}, nil
}

func (s *PresetService) ensureTemplate(templateID uint) error {
	if _, err := s.templateRepo.Get(templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("template", templateID)
		}
		return apperrors.NewStorage("template get", err)
	}
	return nil
}
