package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/generator"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
	"github.com/alexwday/report-designer-sub001/internal/service/statemachine"
)

// fakeGenerator 可控的内容生成器：按标题注入失败，可用 gate 卡住调用
type fakeGenerator struct {
	mu         sync.Mutex
	calls      int
	failTitles map[string]bool
	gate       chan struct{}
	started    chan string
}

func (f *fakeGenerator) Generate(ctx context.Context, req generator.Request) (generator.Output, error) {
	if f.started != nil {
		f.started <- req.SubsectionTitle
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return generator.Output{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls++
	fail := f.failTitles[req.SubsectionTitle]
	f.mu.Unlock()
	if fail {
		return generator.Output{}, errors.New("model unavailable")
	}
	return generator.Output{
		Content:     "generated: " + req.SubsectionTitle,
		ContentType: model.ContentMarkdown,
	}, nil
}

type testEnv struct {
	db               *gorm.DB
	gen              *fakeGenerator
	templateRepo     repository.TemplateRepository
	sectionRepo      repository.SectionRepository
	subRepo          repository.SubsectionRepository
	jobRepo          repository.JobRepository
	presetRepo       repository.PresetRepository
	registryRepo     repository.RegistryRepository
	snapshotRepo     repository.SnapshotRepository
	conversationRepo repository.ConversationRepository

	templates     *TemplateService
	sections      *SectionService
	subsections   *SubsectionService
	ledger        *LedgerService
	generation    *GenerationService
	snapshots     *SnapshotService
	conversations *ConversationService
	presets       *PresetService
}

func newTestEnv(t *testing.T, maxWorkers int) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	// 内存库按连接隔离，并发用例必须共用同一个连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.Template{},
		&model.Section{},
		&model.Subsection{},
		&model.SubsectionVersion{},
		&model.GenerationJob{},
		&model.GenerationJobItem{},
		&model.TemplateSnapshot{},
		&model.RunInputsPreset{},
		&model.Conversation{},
		&model.ConversationMessage{},
		&model.DataSource{},
		&model.Upload{},
	))

	env := &testEnv{
		db:               db,
		gen:              &fakeGenerator{failTitles: map[string]bool{}},
		templateRepo:     repository.NewTemplateRepository(db),
		sectionRepo:      repository.NewSectionRepository(db),
		subRepo:          repository.NewSubsectionRepository(db),
		jobRepo:          repository.NewJobRepository(db),
		presetRepo:       repository.NewPresetRepository(db),
		registryRepo:     repository.NewRegistryRepository(db),
		snapshotRepo:     repository.NewSnapshotRepository(db),
		conversationRepo: repository.NewConversationRepository(db),
	}

	locks := NewLocks()
	versionRepo := repository.NewVersionRepository(db)
	env.templates = NewTemplateService(env.templateRepo, env.sectionRepo, locks)
	env.sections = NewSectionService(env.templateRepo, env.sectionRepo, locks)
	env.subsections = NewSubsectionService(env.sectionRepo, env.subRepo, env.registryRepo, locks)
	env.ledger = NewLedgerService(env.subRepo, versionRepo, locks)
	env.snapshots = NewSnapshotService(env.templateRepo, env.sectionRepo, env.snapshotRepo, locks)
	env.conversations = NewConversationService(env.templateRepo, env.conversationRepo, locks)
	env.presets = NewPresetService(env.templateRepo, env.presetRepo)

	gen, err := NewGenerationService(
		env.templateRepo, env.sectionRepo, env.subRepo, env.jobRepo,
		env.presetRepo, env.registryRepo, env.ledger, env.gen, locks, maxWorkers,
	)
	require.NoError(t, err)
	env.generation = gen
	t.Cleanup(gen.Release)

	return env
}

// seedRegistry 一个带必填参数的数据源和一个停用数据源
func (env *testEnv) seedRegistry(t *testing.T) {
	t.Helper()
	require.NoError(t, env.registryRepo.Upsert(&model.DataSource{
		ID: "benchmarking", Name: "Benchmarking", IsActive: true,
		Methods: `[{"method_id":"peer_metrics","name":"Peer metrics","parameters":[
			{"key":"quarter","label":"Quarter","type":"string","required":true}]}]`,
	}))
	require.NoError(t, env.registryRepo.Upsert(&model.DataSource{
		ID: "transcripts", Name: "Transcripts", IsActive: false,
		Methods: `[{"method_id":"search","name":"Search","parameters":[]}]`,
	}))
}

// seedTree 一个模板、一个章节和 titles 对应的小节（都带生成指令）
func (env *testEnv) seedTree(t *testing.T, titles ...string) (*model.Template, *model.Section, []model.Subsection) {
	t.Helper()
	tpl, err := env.templates.Create(CreateTemplateInput{Name: "季度报告"})
	require.NoError(t, err)
	sec, err := env.sections.Create(tpl.ID, "财务", nil)
	require.NoError(t, err)

	subs := make([]model.Subsection, 0, len(titles))
	for _, title := range titles {
		sub, err := env.subsections.Create(CreateSubsectionInput{SectionID: sec.ID, Title: title})
		require.NoError(t, err)
		_, err = env.subsections.SetInstructions(sub.ID, "写一段"+title)
		require.NoError(t, err)
		fresh, err := env.subsections.Get(sub.ID)
		require.NoError(t, err)
		subs = append(subs, *fresh)
	}
	return tpl, sec, subs
}

// waitJobTerminal 轮询直到作业到达终态
func (env *testEnv) waitJobTerminal(t *testing.T, jobID string) *model.GenerationJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := env.generation.JobStatus(jobID)
		require.NoError(t, err)
		if statemachine.IsTerminal(statemachine.JobStatus(job.Status)) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", jobID)
	return nil
}
