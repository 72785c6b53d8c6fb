package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/config"
	appmodel "github.com/alexwday/report-designer-sub001/internal/model"
)

// EinoGenerator 基于 Eino 原生 OpenAI ChatModel 的生成器实现
type EinoGenerator struct {
	chatModel model.ToolCallingChatModel
}

// NewEinoGenerator 创建 LLM 生成器
func NewEinoGenerator(cfg *config.Config) (*EinoGenerator, error) {
	klog.V(6).Infof("[EinoGenerator] 创建 OpenAI ChatModel: model=%s, baseURL=%s",
		cfg.LLM.Model, cfg.LLM.APIURL)

	modelConfig := &openai.ChatModelConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}
	if cfg.LLM.APIURL != "" {
		modelConfig.BaseURL = cfg.LLM.APIURL
	}
	if cfg.LLM.MaxTokens > 0 {
		maxTokens := cfg.LLM.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}

	chatModel, err := openai.NewChatModel(context.Background(), modelConfig)
	if err != nil {
		klog.Errorf("[EinoGenerator] 创建 ChatModel 失败: %v", err)
		return nil, err
	}
	return &EinoGenerator{chatModel: chatModel}, nil
}

func (g *EinoGenerator) Generate(ctx context.Context, req Request) (Output, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt(req)),
		schema.UserMessage(userPrompt(req)),
	}

	klog.V(6).Infof("[EinoGenerator] Generate: section=%q subsection=%q widget=%s inputs=%d",
		req.SectionTitle, req.SubsectionTitle, req.WidgetType, len(req.ResolvedInputs))

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return Output{}, err
	}
	if resp == nil || resp.Content == "" {
		return Output{}, fmt.Errorf("empty response from model")
	}

	return Output{
		Content:     resp.Content,
		ContentType: contentTypeFor(req.WidgetType),
	}, nil
}

// contentTypeFor 构件类型到内容类型的穷举映射
func contentTypeFor(widget appmodel.WidgetType) appmodel.ContentType {
	switch widget {
	case appmodel.WidgetChart:
		return appmodel.ContentJSON
	case appmodel.WidgetSummary, appmodel.WidgetKeyPoints, appmodel.WidgetTable,
		appmodel.WidgetComparison, appmodel.WidgetCustom:
		return appmodel.ContentMarkdown
	default:
		return appmodel.ContentMarkdown
	}
}

func systemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a report content writer producing one subsection of the report ")
	fmt.Fprintf(&b, "%q.\n", req.TemplateName)

	switch req.WidgetType {
	case appmodel.WidgetChart:
		b.WriteString("Return a single JSON object describing the chart: ")
		b.WriteString(`{"chart_type":"bar"|"line","title":string,"x_key":string,"y_key":string,"data":[...]}. `)
		b.WriteString("Return only JSON, no prose.\n")
	case appmodel.WidgetTable:
		b.WriteString("Return a well-formed markdown table with a header row.\n")
	case appmodel.WidgetKeyPoints:
		b.WriteString("Return a concise markdown bullet list of the key points.\n")
	case appmodel.WidgetComparison:
		b.WriteString("Return a markdown comparison of the subjects in the provided data.\n")
	case appmodel.WidgetSummary, appmodel.WidgetCustom:
		b.WriteString("Return polished markdown prose.\n")
	}

	if req.FormattingProfile != "" && req.FormattingProfile != "{}" {
		fmt.Fprintf(&b, "Formatting profile: %s\n", req.FormattingProfile)
	}
	return b.String()
}

func userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Section: %s\nSubsection %s: %s\n", req.SectionTitle, req.SubsectionLabel, req.SubsectionTitle)
	if req.Instructions != "" {
		fmt.Fprintf(&b, "\nInstructions:\n%s\n", req.Instructions)
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "\nCollaboration notes:\n%s\n", req.Notes)
	}
	if len(req.ResolvedInputs) > 0 {
		data, err := json.MarshalIndent(req.ResolvedInputs, "", "  ")
		if err == nil {
			fmt.Fprintf(&b, "\nResolved data inputs:\n%s\n", data)
		}
	}
	if req.PriorContext != "" {
		fmt.Fprintf(&b, "\nPreviously generated content in this run:\n%s\n", req.PriorContext)
	}
	return b.String()
}
