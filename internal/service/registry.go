package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
)

// RegistryService 数据源目录：生成编排只读消费，条目经 YAML 种子或 Upsert 维护
type RegistryService struct {
	registryRepo repository.RegistryRepository
}

func NewRegistryService(registryRepo repository.RegistryRepository) *RegistryService {
	return &RegistryService{registryRepo: registryRepo}
}

// List 返回目录条目，activeOnly 时过滤掉停用数据源
func (s *RegistryService) List(activeOnly bool) ([]model.CatalogEntry, error) {
	sources, err := s.registryRepo.List(activeOnly)
	if err != nil {
		return nil, apperrors.NewStorage("registry list", err)
	}
	entries := make([]model.CatalogEntry, 0, len(sources))
	for _, ds := range sources {
		entry, err := toCatalogEntry(&ds)
		if err != nil {
			return nil, apperrors.NewStorage("registry parse", err)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (s *RegistryService) Get(id string) (*model.CatalogEntry, error) {
	ds, err := s.registryRepo.Get(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("data source", id)
	}
	if err != nil {
		return nil, apperrors.NewStorage("registry get", err)
	}
	entry, err := toCatalogEntry(ds)
	if err != nil {
		return nil, apperrors.NewStorage("registry parse", err)
	}
	return entry, nil
}

// seedSource YAML 种子文件里的一条数据源
type seedSource struct {
	ID               string                  `yaml:"id"`
	Name             string                  `yaml:"name"`
	Description      string                  `yaml:"description"`
	Category         string                  `yaml:"category"`
	IsActive         *bool                   `yaml:"is_active"`
	RetrievalMethods []seedRetrievalMethod   `yaml:"retrieval_methods"`
}

type seedRetrievalMethod struct {
	MethodID    string          `yaml:"method_id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Parameters  []seedParameter `yaml:"parameters"`
}

type seedParameter struct {
	Key      string   `yaml:"key"`
	Label    string   `yaml:"label"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Default  any      `yaml:"default"`
	Options  []string `yaml:"options"`
}

// SeedFromFile 目录为空时从 YAML 种子文件导入。目录非空或文件缺失时跳过。
func (s *RegistryService) SeedFromFile(path string) error {
	if path == "" {
		return nil
	}
	count, err := s.registryRepo.Count()
	if err != nil {
		return apperrors.NewStorage("registry count", err)
	}
	if count > 0 {
		klog.V(6).Infof("数据源目录已有 %d 条，跳过种子导入", count)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			klog.Warningf("数据源种子文件不存在，跳过: %s", path)
			return nil
		}
		return fmt.Errorf("read registry seed: %w", err)
	}

	var seeds []seedSource
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("parse registry seed: %w", err)
	}

	for _, seed := range seeds {
		if seed.ID == "" || seed.Name == "" {
			return apperrors.NewValidation("registry seed entry missing id or name")
		}
		methods := make([]model.RetrievalMethod, 0, len(seed.RetrievalMethods))
		for _, m := range seed.RetrievalMethods {
			method := model.RetrievalMethod{
				MethodID:    m.MethodID,
				Name:        m.Name,
				Description: m.Description,
			}
			for _, p := range m.Parameters {
				method.Parameters = append(method.Parameters, model.ParameterDef{
					Key:      p.Key,
					Label:    p.Label,
					Type:     p.Type,
					Required: p.Required,
					Default:  p.Default,
					Options:  p.Options,
				})
			}
			methods = append(methods, method)
		}
		methodsRaw, err := json.Marshal(methods)
		if err != nil {
			return fmt.Errorf("marshal methods for %s: %w", seed.ID, err)
		}
		isActive := true
		if seed.IsActive != nil {
			isActive = *seed.IsActive
		}
		ds := &model.DataSource{
			ID:          seed.ID,
			Name:        seed.Name,
			Description: seed.Description,
			Category:    seed.Category,
			IsActive:    isActive,
			Methods:     string(methodsRaw),
		}
		if err := s.registryRepo.Upsert(ds); err != nil {
			return apperrors.NewStorage("registry seed upsert", err)
		}
	}
	klog.Infof("数据源目录种子导入完成: %d 条", len(seeds))
	return nil
}

func toCatalogEntry(ds *model.DataSource) (*model.CatalogEntry, error) {
	methods, err := model.ParseRetrievalMethods(ds.Methods)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", ds.ID, err)
	}
	return &model.CatalogEntry{
		ID:               ds.ID,
		Name:             ds.Name,
		Description:      ds.Description,
		Category:         ds.Category,
		RetrievalMethods: methods,
		IsActive:         ds.IsActive,
	}, nil
}
