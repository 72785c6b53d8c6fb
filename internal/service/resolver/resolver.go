// Package resolver computes what a generation run needs before it can start.
//
// Resolve is a pure function over the current template tree, the data source
// catalog and the merged run inputs: identical inputs always yield identical
// output, and nothing here touches storage or the network.
package resolver

import (
	"fmt"
	"sort"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
)

// Catalog 数据源目录的内存视图，由调用方从 Registry 构建
type Catalog map[string]CatalogSource

type CatalogSource struct {
	IsActive bool
	Methods  map[string]model.RetrievalMethod
}

// BuildCatalog 把目录行转换为 Resolver 可用的查找结构
func BuildCatalog(sources []model.DataSource) (Catalog, error) {
	catalog := make(Catalog, len(sources))
	for _, ds := range sources {
		methods, err := model.ParseRetrievalMethods(ds.Methods)
		if err != nil {
			return nil, fmt.Errorf("data source %s: %w", ds.ID, err)
		}
		entry := CatalogSource{
			IsActive: ds.IsActive,
			Methods:  make(map[string]model.RetrievalMethod, len(methods)),
		}
		for _, m := range methods {
			entry.Methods[m.MethodID] = m
		}
		catalog[ds.ID] = entry
	}
	return catalog, nil
}

// ResolvedInput 面向生成器的已解析数据输入
type ResolvedInput struct {
	SourceID   string         `json:"source_id"`
	MethodID   string         `json:"method_id"`
	Parameters map[string]any `json:"parameters"`
}

// Target 通过前置检查、可参与生成的小节
type Target struct {
	SubsectionID    uint
	Title           string
	Position        int
	SectionID       uint
	SectionPosition int
	SectionTitle    string
	WidgetType      string
	ResolvedInputs  []ResolvedInput
}

// Result 前置检查结果
type Result struct {
	Ready                 bool
	RequiredInputs        []apperrors.RequiredInput
	BlockingErrors        []apperrors.BlockingError
	SubsectionsConsidered int
	// Targets 非阻塞小节，按 (section.position, subsection.position) 排序
	Targets []Target
}

// Resolve 扫描给定 sections 下的小节，对照目录与合并后的运行输入计算就绪状态。
// ready = 无阻塞错误且无未满足的必填参数。
func Resolve(sections []model.Section, catalog Catalog, runInputs map[string]any) Result {
	result := Result{}
	requiredByKey := map[string]*apperrors.RequiredInput{}

	for _, section := range sections {
		sectionTitle := section.Title
		if sectionTitle == "" {
			sectionTitle = fmt.Sprintf("Section %d", section.Position)
		}

		for _, sub := range section.Subsections {
			if !eligible(sub) {
				continue
			}
			result.SubsectionsConsidered++

			cfg, err := model.ParseDataSourceConfig(sub.DataSourceConfig)
			if err != nil {
				result.BlockingErrors = append(result.BlockingErrors,
					blocking(sub, sectionTitle, err.Error()))
				continue
			}

			target := Target{
				SubsectionID:    sub.ID,
				Title:           sub.Title,
				Position:        sub.Position,
				SectionID:       section.ID,
				SectionPosition: section.Position,
				SectionTitle:    sectionTitle,
				WidgetType:      sub.WidgetType,
			}

			blocked := false
			var missing []model.ParameterDef
			for _, input := range cfg.Inputs {
				source, ok := catalog[input.SourceID]
				if !ok {
					result.BlockingErrors = append(result.BlockingErrors,
						blocking(sub, sectionTitle,
							fmt.Sprintf("Unknown data source: %s", input.SourceID)))
					blocked = true
					break
				}
				if !source.IsActive {
					result.BlockingErrors = append(result.BlockingErrors,
						blocking(sub, sectionTitle,
							fmt.Sprintf("Data source is inactive: %s", input.SourceID)))
					blocked = true
					break
				}
				method, ok := source.Methods[input.MethodID]
				if !ok {
					result.BlockingErrors = append(result.BlockingErrors,
						blocking(sub, sectionTitle,
							fmt.Sprintf("Unknown retrieval method: %s.%s", input.SourceID, input.MethodID)))
					blocked = true
					break
				}

				resolved := ResolvedInput{
					SourceID:   input.SourceID,
					MethodID:   input.MethodID,
					Parameters: map[string]any{},
				}
				for _, def := range method.Parameters {
					value, ok := parameterValue(def, input.Parameters, runInputs)
					if ok {
						resolved.Parameters[def.Key] = value
						continue
					}
					if !def.Required {
						continue
					}
					missing = append(missing, def)
				}
				target.ResolvedInputs = append(target.ResolvedInputs, resolved)
			}
			if blocked {
				continue
			}
			// 被阻塞的小节不登记必填参数
			for _, def := range missing {
				addRequired(requiredByKey, def, sub, sectionTitle)
			}
			result.Targets = append(result.Targets, target)
		}
	}

	for _, req := range requiredByKey {
		result.RequiredInputs = append(result.RequiredInputs, *req)
	}
	sort.Slice(result.RequiredInputs, func(i, j int) bool {
		return result.RequiredInputs[i].Key < result.RequiredInputs[j].Key
	})
	sort.Slice(result.Targets, func(i, j int) bool {
		a, b := result.Targets[i], result.Targets[j]
		if a.SectionPosition != b.SectionPosition {
			return a.SectionPosition < b.SectionPosition
		}
		return a.Position < b.Position
	})

	result.Ready = len(result.BlockingErrors) == 0 && len(result.RequiredInputs) == 0
	return result
}

// eligible 有生成指令的小节或 chart 构件才参与生成
func eligible(sub model.Subsection) bool {
	return sub.Instructions != "" || sub.WidgetType == string(model.WidgetChart)
}

// parameterValue 取值优先级：小节配置里的字面值 > 合并运行输入 > 参数默认值
func parameterValue(def model.ParameterDef, configured map[string]any, runInputs map[string]any) (any, bool) {
	if v, ok := configured[def.Key]; ok && v != nil {
		return v, true
	}
	if v, ok := runInputs[def.Key]; ok && v != nil {
		return v, true
	}
	if def.Default != nil {
		return def.Default, true
	}
	return nil, false
}

func addRequired(byKey map[string]*apperrors.RequiredInput, def model.ParameterDef, sub model.Subsection, sectionTitle string) {
	req, ok := byKey[def.Key]
	if !ok {
		label := def.Label
		if label == "" {
			label = def.Key
		}
		paramType := def.Type
		if paramType == "" {
			paramType = "string"
		}
		req = &apperrors.RequiredInput{
			Key:     def.Key,
			Label:   label,
			Type:    paramType,
			Options: def.Options,
		}
		byKey[def.Key] = req
	}
	req.UsedBy = append(req.UsedBy, apperrors.RequiredInputUse{
		SubsectionID:    sub.ID,
		SectionTitle:    sectionTitle,
		SubsectionTitle: sub.Title,
		ParameterKey:    def.Key,
	})
}

func blocking(sub model.Subsection, sectionTitle, reason string) apperrors.BlockingError {
	return apperrors.BlockingError{
		SubsectionID:       sub.ID,
		SubsectionTitle:    sub.Title,
		SubsectionPosition: sub.Position,
		SectionTitle:       sectionTitle,
		Reason:             reason,
	}
}
