// Package generator wraps the external content generation call.
//
// The orchestration layer only depends on the ContentGenerator interface;
// prompt construction and model invocation live behind it.
package generator

import (
	"context"
	"errors"
	"time"

	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/service/resolver"
)

// ErrTimeout 单个小节的生成调用超时
var ErrTimeout = errors.New("generation timed out")

// Request 一次小节生成所需的全部上下文
type Request struct {
	TemplateName      string
	FormattingProfile string
	SectionTitle      string
	SubsectionLabel   string
	SubsectionTitle   string
	WidgetType        model.WidgetType
	Instructions      string
	Notes             string
	ResolvedInputs    []resolver.ResolvedInput
	// PriorContext 同一次运行中先前生成的小节摘要
	PriorContext string
}

// Output 生成结果
type Output struct {
	Content     string
	ContentType model.ContentType
}

type ContentGenerator interface {
	Generate(ctx context.Context, req Request) (Output, error)
}

// WithTimeout 把慢调用转换为该小节的失败，而不是拖垮整个作业
func WithTimeout(g ContentGenerator, timeout time.Duration) ContentGenerator {
	return &timeoutGenerator{inner: g, timeout: timeout}
}

type timeoutGenerator struct {
	inner   ContentGenerator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, req Request) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.inner.Generate(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Output{}, ErrTimeout
	}
	return out, err
}
