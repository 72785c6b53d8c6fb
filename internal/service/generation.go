package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/generator"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
	"github.com/alexwday/report-designer-sub001/internal/service/resolver"
	"github.com/alexwday/report-designer-sub001/internal/service/statemachine"
)

// GenerationService 生成编排器：前置检查、模板级批量作业、单小节/单章节生成。
// 每个模板同一时刻至多一个活动作业；作业内小节由有界协程池并发执行。
type GenerationService struct {
	templateRepo repository.TemplateRepository
	sectionRepo  repository.SectionRepository
	subRepo      repository.SubsectionRepository
	jobRepo      repository.JobRepository
	presetRepo   repository.PresetRepository
	registryRepo repository.RegistryRepository
	ledger       *LedgerService
	gen          generator.ContentGenerator
	locks        *Locks
	jobSM        *statemachine.JobStateMachine

	pool *ants.Pool

	// runs 按模板记录进行中的作业槽位（单进程内存态）
	runsMu sync.Mutex
	runs   map[uint]*jobRun
}

// jobRun 一次作业运行的内存槽位
type jobRun struct {
	jobID      string
	templateID uint
	cancelled  atomic.Bool
	cancel     context.CancelFunc

	mu           sync.Mutex
	priorContext []string
}

func NewGenerationService(
	templateRepo repository.TemplateRepository,
	sectionRepo repository.SectionRepository,
	subRepo repository.SubsectionRepository,
	jobRepo repository.JobRepository,
	presetRepo repository.PresetRepository,
	registryRepo repository.RegistryRepository,
	ledger *LedgerService,
	gen generator.ContentGenerator,
	locks *Locks,
	maxWorkers int,
) (*GenerationService, error) {
	if maxWorkers <= 0 {
		maxWorkers = 3
	}
	pool, err := ants.NewPool(maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &GenerationService{
		templateRepo: templateRepo,
		sectionRepo:  sectionRepo,
		subRepo:      subRepo,
		jobRepo:      jobRepo,
		presetRepo:   presetRepo,
		registryRepo: registryRepo,
		ledger:       ledger,
		gen:          gen,
		locks:        locks,
		jobSM:        statemachine.NewJobStateMachine(),
		pool:         pool,
		runs:         make(map[uint]*jobRun),
	}, nil
}

// Release 关停协程池，进程退出时调用
func (s *GenerationService) Release() {
	s.pool.Release()
}

// RequirementsView 生成前置检查的完整结果
type RequirementsView struct {
	Ready                 bool                       `json:"ready"`
	RequiredInputs        []apperrors.RequiredInput  `json:"required_inputs"`
	BlockingErrors        []apperrors.BlockingError  `json:"blocking_errors"`
	SubsectionsConsidered int                        `json:"subsections_considered"`
	SavedRunInputs        map[string]any             `json:"saved_run_inputs"`
}

// Requirements 计算模板（或其中一个章节）启动生成还缺什么。
// overrides 覆盖已保存预设中的同名键，但不落库。
func (s *GenerationService) Requirements(templateID uint, sectionID *uint, overrides map[string]any) (*RequirementsView, error) {
	sections, err := s.sectionsInScope(templateID, sectionID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.buildCatalog()
	if err != nil {
		return nil, err
	}
	saved, err := s.savedRunInputs(templateID)
	if err != nil {
		return nil, err
	}
	merged := mergeRunInputs(saved, overrides)

	result := resolver.Resolve(sections, catalog, merged)
	return &RequirementsView{
		Ready:                 result.Ready,
		RequiredInputs:        result.RequiredInputs,
		BlockingErrors:        result.BlockingErrors,
		SubsectionsConsidered: result.SubsectionsConsidered,
		SavedRunInputs:        saved,
	}, nil
}

// StartJob 启动模板级批量生成作业。
// 前置检查未通过返回 BlockedError；模板已有活动作业返回 ConflictError。
// 成功时合并后的运行输入会覆盖写入模板预设，随后台协程异步执行。
func (s *GenerationService) StartJob(templateID uint, runInputs map[string]any) (*model.GenerationJob, error) {
	lock := s.locks.Template(templateID)
	lock.Lock()
	defer lock.Unlock()

	template, err := s.templateRepo.Get(templateID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("template", templateID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("template get", err)
	}

	sections, err := s.sectionsInScope(templateID, nil)
	if err != nil {
		return nil, err
	}
	catalog, err := s.buildCatalog()
	if err != nil {
		return nil, err
	}
	saved, err := s.savedRunInputs(templateID)
	if err != nil {
		return nil, err
	}
	merged := mergeRunInputs(saved, runInputs)

	result := resolver.Resolve(sections, catalog, merged)
	if !result.Ready {
		return nil, &apperrors.BlockedError{
			RequiredInputs: result.RequiredInputs,
			BlockingErrors: result.BlockingErrors,
		}
	}
	if len(result.Targets) == 0 {
		return nil, apperrors.NewValidation("template %d has no subsections eligible for generation", templateID)
	}

	s.runsMu.Lock()
	if existing, ok := s.runs[templateID]; ok {
		s.runsMu.Unlock()
		return nil, apperrors.NewConflict("template %d already has an active job: %s", templateID, existing.jobID)
	}
	s.runsMu.Unlock()
	active, err := s.jobRepo.HasActive(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("job active check", err)
	}
	if active {
		return nil, apperrors.NewConflict("template %d already has an active job", templateID)
	}

	job := &model.GenerationJob{
		JobID:      uuid.New().String(),
		TemplateID: templateID,
		Status:     string(statemachine.JobStatusPending),
	}
	for i, target := range result.Targets {
		job.Items = append(job.Items, model.GenerationJobItem{
			SubsectionID: target.SubsectionID,
			Title:        target.Title,
			Position:     target.Position,
			SectionTitle: target.SectionTitle,
			WidgetType:   target.WidgetType,
			SortOrder:    i + 1,
			Status:       string(statemachine.ItemStatusPending),
		})
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, apperrors.NewStorage("job create", err)
	}

	// 本次实际生效的输入覆盖写入预设，下次启动直接复用
	if raw, err := json.Marshal(merged); err == nil {
		if _, err := s.presetRepo.Upsert(templateID, string(raw)); err != nil {
			klog.Errorf("预设保存失败: template=%d err=%v", templateID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &jobRun{jobID: job.JobID, templateID: templateID, cancel: cancel}
	s.runsMu.Lock()
	s.runs[templateID] = run
	s.runsMu.Unlock()

	klog.Infof("生成作业已启动: job=%s template=%d targets=%d", job.JobID, templateID, len(result.Targets))
	go s.run(ctx, run, job, template, result.Targets, merged)
	return job, nil
}

// run 作业主循环：按文档顺序派发小节到协程池，等待全部终态后收尾。
// 槽位必须在终态落库之前释放，否则轮询到终态的调用方再次 StartJob 会撞到残留槽位。
func (s *GenerationService) run(ctx context.Context, run *jobRun, job *model.GenerationJob, template *model.Template, targets []resolver.Target, runInputs map[string]any) {
	status, errMsg := s.runJob(ctx, run, job, template, targets, runInputs)

	s.runsMu.Lock()
	delete(s.runs, run.templateID)
	s.runsMu.Unlock()
	run.cancel()

	s.finishJob(job, status, errMsg)
	klog.Infof("生成作业结束: job=%s status=%s", job.JobID, job.Status)
}

func (s *GenerationService) runJob(ctx context.Context, run *jobRun, job *model.GenerationJob, template *model.Template, targets []resolver.Target, runInputs map[string]any) (statemachine.JobStatus, string) {
	if err := s.jobSM.Transition(statemachine.JobStatusPending, statemachine.JobStatusInProgress, job.JobID); err != nil {
		klog.Errorf("作业启动失败: job=%s err=%v", job.JobID, err)
		return statemachine.JobStatusFailed, err.Error()
	}
	now := time.Now()
	job.Status = string(statemachine.JobStatusInProgress)
	job.StartedAt = &now
	if err := s.jobRepo.Save(job); err != nil {
		klog.Errorf("作业状态落库失败: job=%s err=%v", job.JobID, err)
		return statemachine.JobStatusFailed, "storage unavailable at job start"
	}

	var wg sync.WaitGroup
	for i := range targets {
		if run.cancelled.Load() {
			break
		}
		target := targets[i]
		item := &job.Items[i]

		item.Status = string(statemachine.ItemStatusInProgress)
		startedAt := time.Now()
		item.StartedAt = &startedAt
		if err := s.jobRepo.UpdateItem(item, item.SortOrder); err != nil {
			klog.Errorf("作业进度落库失败: job=%s item=%d err=%v", job.JobID, item.SortOrder, err)
			wg.Wait()
			return statemachine.JobStatusFailed, "storage unavailable during job"
		}

		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			s.executeTarget(ctx, run, job, template, target, item, runInputs)
		})
		if err != nil {
			wg.Done()
			s.failItem(item, fmt.Sprintf("worker pool rejected task: %v", err))
		}
	}
	wg.Wait()

	if run.cancelled.Load() {
		return statemachine.JobStatusFailed, "cancelled"
	}
	// 个别小节失败不影响作业完成态
	return statemachine.JobStatusCompleted, ""
}

// executeTarget 生成单个小节并落一条版本。失败只记在该小节上。
func (s *GenerationService) executeTarget(ctx context.Context, run *jobRun, job *model.GenerationJob, template *model.Template, target resolver.Target, item *model.GenerationJobItem, runInputs map[string]any) {
	if ctx.Err() != nil {
		s.failItem(item, "cancelled before generation")
		return
	}

	run.mu.Lock()
	prior := strings.Join(run.priorContext, "\n\n")
	run.mu.Unlock()

	req := generator.Request{
		TemplateName:      template.Name,
		FormattingProfile: template.FormattingProfile,
		SectionTitle:      target.SectionTitle,
		SubsectionLabel:   model.PositionLabel(target.Position),
		SubsectionTitle:   target.Title,
		WidgetType:        model.WidgetType(target.WidgetType),
		Instructions:      s.latestInstructions(target.SubsectionID),
		Notes:             s.latestNotes(target.SubsectionID),
		ResolvedInputs:    target.ResolvedInputs,
		PriorContext:      prior,
	}

	out, err := s.gen.Generate(ctx, req)
	if err != nil {
		genErr := &apperrors.GenerationError{SubsectionID: target.SubsectionID, Err: err}
		klog.Errorf("小节生成失败: job=%s subsection=%d err=%v", job.JobID, target.SubsectionID, err)
		s.failItem(item, genErr.Error())
		return
	}

	genCtx := generationContext{
		JobID:          job.JobID,
		RunInputs:      runInputs,
		ResolvedInputs: target.ResolvedInputs,
	}
	ctxRaw, _ := json.Marshal(genCtx)
	contentType := string(out.ContentType)
	if _, err := s.ledger.Save(target.SubsectionID, SaveVersionInput{
		Content:           &out.Content,
		ContentType:       &contentType,
		GeneratedBy:       string(model.GeneratedByAgent),
		GenerationContext: string(ctxRaw),
	}); err != nil {
		klog.Errorf("版本写入失败: job=%s subsection=%d err=%v", job.JobID, target.SubsectionID, err)
		s.failItem(item, fmt.Sprintf("version save failed: %v", err))
		return
	}

	completedAt := time.Now()
	item.Status = string(statemachine.ItemStatusCompleted)
	item.CompletedAt = &completedAt
	if err := s.jobRepo.UpdateItem(item, item.SortOrder); err != nil {
		klog.Errorf("作业进度落库失败: job=%s item=%d err=%v", job.JobID, item.SortOrder, err)
	}

	run.mu.Lock()
	run.priorContext = append(run.priorContext,
		fmt.Sprintf("## %s / %s\n%s", target.SectionTitle, target.Title, truncate(out.Content, 500)))
	run.mu.Unlock()
}

func (s *GenerationService) failItem(item *model.GenerationJobItem, reason string) {
	if !statemachine.CanTransitionItem(statemachine.ItemStatus(item.Status), statemachine.ItemStatusFailed) {
		return
	}
	completedAt := time.Now()
	item.Status = string(statemachine.ItemStatusFailed)
	item.ErrorMsg = reason
	item.CompletedAt = &completedAt
	if err := s.jobRepo.UpdateItem(item, item.SortOrder); err != nil {
		klog.Errorf("作业进度落库失败: item=%d err=%v", item.ID, err)
	}
}

func (s *GenerationService) finishJob(job *model.GenerationJob, to statemachine.JobStatus, errMsg string) {
	if err := s.jobSM.Transition(statemachine.JobStatus(job.Status), to, job.JobID); err != nil {
		return
	}
	now := time.Now()
	job.Status = string(to)
	job.ErrorMsg = errMsg
	job.CompletedAt = &now
	if err := s.jobRepo.Save(job); err != nil {
		klog.Errorf("作业收尾落库失败: job=%s err=%v", job.JobID, err)
	}
}

// JobStatus 返回作业及按文档顺序排列的小节进度
func (s *GenerationService) JobStatus(jobID string) (*model.GenerationJob, error) {
	job, err := s.jobRepo.GetWithItems(jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("job", jobID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("job get", err)
	}
	return job, nil
}

// CancelJob 取消作业：停止派发新小节，在途小节跑完，未派发的保持 pending。
// 终态作业返回 ConflictError。
func (s *GenerationService) CancelJob(jobID string) (*model.GenerationJob, error) {
	job, err := s.jobRepo.GetByJobID(jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("job", jobID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("job get", err)
	}
	if statemachine.IsTerminal(statemachine.JobStatus(job.Status)) {
		return nil, apperrors.NewConflict("job %s is already %s", jobID, job.Status)
	}

	s.runsMu.Lock()
	run, ok := s.runs[job.TemplateID]
	s.runsMu.Unlock()
	if ok && run.jobID == jobID {
		// 只停止派发。在途小节跑完，其上下文不被打断。
		run.cancelled.Store(true)
		klog.Infof("作业取消已登记: job=%s", jobID)
		return job, nil
	}

	// 槽位不在（进程重启过的遗留作业），直接落终态
	s.finishJob(job, statemachine.JobStatusFailed, "cancelled")
	return job, nil
}

// SingleResult 单小节生成的同步结果
type SingleResult struct {
	SubsectionID  uint   `json:"subsection_id"`
	VersionNumber int    `json:"version_number"`
	Content       string `json:"content"`
	ContentType   string `json:"content_type"`
}

// GenerateOne 同步生成单个小节，不经过作业。
// 该小节自身的前置检查未通过时返回 BlockedError。
func (s *GenerationService) GenerateOne(ctx context.Context, subsectionID uint, overrides map[string]any) (*SingleResult, error) {
	sub, err := s.subRepo.Get(subsectionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("subsection", subsectionID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("subsection get", err)
	}
	section, err := s.sectionRepo.Get(sub.SectionID)
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}
	templateID := section.TemplateID
	template, err := s.templateRepo.Get(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("template get", err)
	}

	scope := []model.Section{{
		ID:          section.ID,
		TemplateID:  section.TemplateID,
		Title:       section.Title,
		Position:    section.Position,
		Subsections: []model.Subsection{*sub},
	}}
	targets, runInputs, err := s.resolveScope(templateID, scope, overrides)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, apperrors.NewValidation("subsection %d is not eligible for generation (no instructions)", subsectionID)
	}
	return s.generateSync(ctx, template, targets[0], runInputs, "")
}

// SectionRunResult 章节级同步生成的汇总
type SectionRunResult struct {
	SectionID uint           `json:"section_id"`
	Results   []SingleResult `json:"results"`
	Failures  []string       `json:"failures,omitempty"`
}

// GenerateSection 同步按顺序生成某章节下的全部可生成小节
func (s *GenerationService) GenerateSection(ctx context.Context, sectionID uint, overrides map[string]any) (*SectionRunResult, error) {
	section, err := s.sectionRepo.GetWithSubsections(sectionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("section", sectionID)
	}
	if err != nil {
		return nil, apperrors.NewStorage("section get", err)
	}
	template, err := s.templateRepo.Get(section.TemplateID)
	if err != nil {
		return nil, apperrors.NewStorage("template get", err)
	}

	targets, runInputs, err := s.resolveScope(section.TemplateID, []model.Section{*section}, overrides)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, apperrors.NewValidation("section %d has no subsections eligible for generation", sectionID)
	}

	out := &SectionRunResult{SectionID: sectionID}
	prior := ""
	for _, target := range targets {
		res, err := s.generateSync(ctx, template, target, runInputs, prior)
		if err != nil {
			out.Failures = append(out.Failures,
				fmt.Sprintf("subsection %d (%s): %v", target.SubsectionID, target.Title, err))
			continue
		}
		out.Results = append(out.Results, *res)
		prior += fmt.Sprintf("## %s / %s\n%s\n\n", target.SectionTitle, target.Title, truncate(res.Content, 500))
	}
	return out, nil
}

func (s *GenerationService) generateSync(ctx context.Context, template *model.Template, target resolver.Target, runInputs map[string]any, prior string) (*SingleResult, error) {
	req := generator.Request{
		TemplateName:      template.Name,
		FormattingProfile: template.FormattingProfile,
		SectionTitle:      target.SectionTitle,
		SubsectionLabel:   model.PositionLabel(target.Position),
		SubsectionTitle:   target.Title,
		WidgetType:        model.WidgetType(target.WidgetType),
		Instructions:      s.latestInstructions(target.SubsectionID),
		Notes:             s.latestNotes(target.SubsectionID),
		ResolvedInputs:    target.ResolvedInputs,
		PriorContext:      prior,
	}
	out, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, &apperrors.GenerationError{SubsectionID: target.SubsectionID, Err: err}
	}

	ctxRaw, _ := json.Marshal(generationContext{
		RunInputs:      runInputs,
		ResolvedInputs: target.ResolvedInputs,
	})
	contentType := string(out.ContentType)
	saved, err := s.ledger.Save(target.SubsectionID, SaveVersionInput{
		Content:           &out.Content,
		ContentType:       &contentType,
		GeneratedBy:       string(model.GeneratedByAgent),
		GenerationContext: string(ctxRaw),
	})
	if err != nil {
		return nil, err
	}
	return &SingleResult{
		SubsectionID:  target.SubsectionID,
		VersionNumber: saved.VersionNumber,
		Content:       out.Content,
		ContentType:   contentType,
	}, nil
}

// resolveScope 对给定范围做前置检查，未就绪直接返回 BlockedError
func (s *GenerationService) resolveScope(templateID uint, sections []model.Section, overrides map[string]any) ([]resolver.Target, map[string]any, error) {
	catalog, err := s.buildCatalog()
	if err != nil {
		return nil, nil, err
	}
	saved, err := s.savedRunInputs(templateID)
	if err != nil {
		return nil, nil, err
	}
	merged := mergeRunInputs(saved, overrides)

	result := resolver.Resolve(sections, catalog, merged)
	if !result.Ready {
		return nil, nil, &apperrors.BlockedError{
			RequiredInputs: result.RequiredInputs,
			BlockingErrors: result.BlockingErrors,
		}
	}
	return result.Targets, merged, nil
}

func (s *GenerationService) sectionsInScope(templateID uint, sectionID *uint) ([]model.Section, error) {
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
	if sectionID == nil {
		return sections, nil
	}
	for _, sec := range sections {
		if sec.ID == *sectionID {
			return []model.Section{sec}, nil
		}
	}
	return nil, apperrors.NewNotFound("section", *sectionID)
}

func (s *GenerationService) buildCatalog() (resolver.Catalog, error) {
	sources, err := s.registryRepo.List(false)
	if err != nil {
		return nil, apperrors.NewStorage("registry list", err)
	}
	catalog, err := resolver.BuildCatalog(sources)
	if err != nil {
		return nil, apperrors.NewStorage("registry parse", err)
	}
	return catalog, nil
}

func (s *GenerationService) savedRunInputs(templateID uint) (map[string]any, error) {
	preset, err := s.presetRepo.Get(templateID)
	if err != nil {
		return nil, apperrors.NewStorage("preset get", err)
	}
	inputs := map[string]any{}
	if preset.RunInputs != "" {
		if err := json.Unmarshal([]byte(preset.RunInputs), &inputs); err != nil {
			klog.Errorf("预设解析失败，按空处理: template=%d err=%v", templateID, err)
			return map[string]any{}, nil
		}
	}
	return inputs, nil
}

// latestInstructions 派发时重读指令，作业固化的是目标清单而非文案
func (s *GenerationService) latestInstructions(subsectionID uint) string {
	sub, err := s.subRepo.Get(subsectionID)
	if err != nil {
		return ""
	}
	return sub.Instructions
}

func (s *GenerationService) latestNotes(subsectionID uint) string {
	sub, err := s.subRepo.Get(subsectionID)
	if err != nil {
		return ""
	}
	return sub.Notes
}

// generationContext 写入版本行的生成上下文 JSON
type generationContext struct {
	JobID          string                   `json:"job_id,omitempty"`
	RunInputs      map[string]any           `json:"run_inputs"`
	ResolvedInputs []resolver.ResolvedInput `json:"resolved_inputs"`
}

func mergeRunInputs(saved, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(saved)+len(overrides))
	for k, v := range saved {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// truncate 按字节上限截断，但不从多字节字符中间切开
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
