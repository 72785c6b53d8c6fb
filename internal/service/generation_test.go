package service

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/model"
)

const benchmarkingConfig = `{"inputs":[{"source_id":"benchmarking","method_id":"peer_metrics","parameters":{}}]}`

func TestRequirementsReportsMissingInputs(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	tpl, _, subs := env.seedTree(t, "营收", "利润")

	_, err := env.subsections.ConfigureDataSource(subs[0].ID, benchmarkingConfig)
	require.NoError(t, err)

	view, err := env.generation.Requirements(tpl.ID, nil, nil)
	require.NoError(t, err)
	assert.False(t, view.Ready)
	assert.Equal(t, 2, view.SubsectionsConsidered)
	require.Len(t, view.RequiredInputs, 1)
	assert.Equal(t, "quarter", view.RequiredInputs[0].Key)
	assert.Equal(t, "Quarter", view.RequiredInputs[0].Label)
	require.Len(t, view.RequiredInputs[0].UsedBy, 1)
	assert.Equal(t, subs[0].ID, view.RequiredInputs[0].UsedBy[0].SubsectionID)

	// 运行输入补上后就绪，但不落库
	view, err = env.generation.Requirements(tpl.ID, nil, map[string]any{"quarter": "Q3-2026"})
	require.NoError(t, err)
	assert.True(t, view.Ready)
	assert.Empty(t, view.SavedRunInputs)
}

func TestStartJobBlockedWhenInputsMissing(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	tpl, _, subs := env.seedTree(t, "营收")

	_, err := env.subsections.ConfigureDataSource(subs[0].ID, benchmarkingConfig)
	require.NoError(t, err)

	_, err = env.generation.StartJob(tpl.ID, nil)
	blocked, ok := apperrors.AsBlocked(err)
	require.True(t, ok, "expected BlockedError, got %v", err)
	require.Len(t, blocked.RequiredInputs, 1)
	assert.Equal(t, "quarter", blocked.RequiredInputs[0].Key)

	// 作业不应被创建
	active, err := env.jobRepo.HasActive(tpl.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestStartJobRejectsConcurrentRun(t *testing.T) {
	env := newTestEnv(t, 1)
	env.seedRegistry(t)
	tpl, _, _ := env.seedTree(t, "营收", "利润")

	env.gen.gate = make(chan struct{})
	env.gen.started = make(chan string, 4)

	job, err := env.generation.StartJob(tpl.ID, nil)
	require.NoError(t, err)
	<-env.gen.started // 第一个小节已在跑

	_, err = env.generation.StartJob(tpl.ID, nil)
	assert.True(t, apperrors.IsConflict(err), "expected ConflictError, got %v", err)

	close(env.gen.gate)
	done := env.waitJobTerminal(t, job.JobID)
	assert.Equal(t, "completed", done.Status)

	// 上一个作业结束后可以再启
	job2, err := env.generation.StartJob(tpl.ID, nil)
	require.NoError(t, err)
	env.waitJobTerminal(t, job2.JobID)
}

func TestJobCompletesWithPartialFailure(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	tpl, _, subs := env.seedTree(t, "营收", "利润", "展望")
	env.gen.failTitles["利润"] = true

	job, err := env.generation.StartJob(tpl.ID, nil)
	require.NoError(t, err)
	done := env.waitJobTerminal(t, job.JobID)

	// 单个小节失败不拖垮整个作业
	assert.Equal(t, "completed", done.Status)
	require.Len(t, done.Items, 3)
	byTitle := map[string]model.GenerationJobItem{}
	for _, item := range done.Items {
		byTitle[item.Title] = item
	}
	assert.Equal(t, "completed", byTitle["营收"].Status)
	assert.Equal(t, "failed", byTitle["利润"].Status)
	assert.Contains(t, byTitle["利润"].ErrorMsg, "model unavailable")
	assert.Equal(t, "completed", byTitle["展望"].Status)

	// 成功的小节各落了一个 agent 版本，失败的没有
	for i, want := range []int{1, 0, 1} {
		history, err := env.ledger.History(subs[i].ID)
		require.NoError(t, err)
		require.Len(t, history, want, "subsection %s", subs[i].Title)
		if want == 1 {
			assert.Equal(t, "agent", history[0].GeneratedBy)
			assert.Equal(t, "generated: "+subs[i].Title, history[0].Content)
		}
	}
}

func TestCancelJobStopsDispatch(t *testing.T) {
	env := newTestEnv(t, 1)
	env.seedRegistry(t)
	tpl, _, subs := env.seedTree(t, "营收", "利润", "展望")

	env.gen.gate = make(chan struct{})
	env.gen.started = make(chan string, 4)

	job, err := env.generation.StartJob(tpl.ID, nil)
	require.NoError(t, err)
	<-env.gen.started // 第一个小节进入生成器

	cancelled, err := env.generation.CancelJob(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", cancelled.Status)

	close(env.gen.gate)
	done := env.waitJobTerminal(t, job.JobID)
	assert.Equal(t, "failed", done.Status)
	assert.Equal(t, "cancelled", done.ErrorMsg)

	// 在途小节照常跑完；单并发下第二个可能已派发；第三个必须保持 pending
	byTitle := map[string]model.GenerationJobItem{}
	for _, item := range done.Items {
		byTitle[item.Title] = item
	}
	assert.Equal(t, "completed", byTitle["营收"].Status)
	assert.Equal(t, "pending", byTitle["展望"].Status)

	history, err := env.ledger.History(subs[2].ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	tpl, _, _ := env.seedTree(t, "营收")

	job, err := env.generation.StartJob(tpl.ID, nil)
	require.NoError(t, err)
	env.waitJobTerminal(t, job.JobID)

	_, err = env.generation.CancelJob(job.JobID)
	assert.True(t, apperrors.IsConflict(err), "expected ConflictError, got %v", err)
}

func TestStartJobPersistsMergedPreset(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	tpl, _, subs := env.seedTree(t, "营收")

	_, err := env.subsections.ConfigureDataSource(subs[0].ID, benchmarkingConfig)
	require.NoError(t, err)
	_, err = env.presets.Save(tpl.ID, map[string]any{"bank": "RBC"})
	require.NoError(t, err)

	job, err := env.generation.StartJob(tpl.ID, map[string]any{"quarter": "Q3-2026"})
	require.NoError(t, err)
	env.waitJobTerminal(t, job.JobID)

	preset, err := env.presets.Get(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "RBC", preset.RunInputs["bank"])
	assert.Equal(t, "Q3-2026", preset.RunInputs["quarter"])
}

func TestGenerateOneSavesVersion(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	_, _, subs := env.seedTree(t, "营收")

	result, err := env.generation.GenerateOne(context.Background(), subs[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, subs[0].ID, result.SubsectionID)
	assert.Equal(t, 1, result.VersionNumber)
	assert.Equal(t, "generated: 营收", result.Content)

	sub, err := env.ledger.Latest(subs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "generated: 营收", sub.Content)
	assert.Equal(t, 1, sub.VersionNumber)
}

func TestGenerateOneWithoutInstructionsRejected(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	_, sec, _ := env.seedTree(t, "营收")

	bare, err := env.subsections.Create(CreateSubsectionInput{SectionID: sec.ID, Title: "空白文本"})
	require.NoError(t, err)

	_, err = env.generation.GenerateOne(context.Background(), bare.ID, nil)
	assert.True(t, apperrors.IsValidation(err), "expected ValidationError, got %v", err)
}

func TestGenerateOnePropagatesGenerationError(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	_, _, subs := env.seedTree(t, "营收")
	env.gen.failTitles["营收"] = true

	_, err := env.generation.GenerateOne(context.Background(), subs[0].ID, nil)
	var genErr *apperrors.GenerationError
	require.ErrorAs(t, err, &genErr)

	history, err := env.ledger.History(subs[0].ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGenerateSectionRunsInOrder(t *testing.T) {
	env := newTestEnv(t, 2)
	env.seedRegistry(t)
	_, sec, subs := env.seedTree(t, "营收", "利润")
	env.gen.failTitles["利润"] = true

	result, err := env.generation.GenerateSection(context.Background(), sec.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, sec.ID, result.SectionID)
	require.Len(t, result.Results, 1)
	assert.Equal(t, subs[0].ID, result.Results[0].SubsectionID)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "利润")
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("营收增长", 50) // 每个字 3 字节

	for _, max := range []int{500, 501, 502, 3, 1} {
		out := truncate(s, max)
		assert.True(t, utf8.ValidString(out), "max=%d produced invalid UTF-8: %q", max, out)
		assert.LessOrEqual(t, len(out), max+len("..."), "max=%d", max)
	}
	assert.Equal(t, "短", truncate("短", 10))
}
