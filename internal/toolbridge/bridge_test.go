package toolbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alexwday/report-designer-sub001/internal/apperrors"
	"github.com/alexwday/report-designer-sub001/internal/generator"
	"github.com/alexwday/report-designer-sub001/internal/model"
	"github.com/alexwday/report-designer-sub001/internal/repository"
	"github.com/alexwday/report-designer-sub001/internal/service"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, req generator.Request) (generator.Output, error) {
	return generator.Output{Content: "generated: " + req.SubsectionTitle, ContentType: model.ContentMarkdown}, nil
}

type bridgeEnv struct {
	bridge        *Bridge
	templates     *service.TemplateService
	sections      *service.SectionService
	subsections   *service.SubsectionService
	conversations *service.ConversationService
	registryRepo  repository.RegistryRepository
	tpl           *model.Template
	sec           *model.Section
	sub           *model.Subsection
}

func newBridgeEnv(t *testing.T) *bridgeEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
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
	))

	templateRepo := repository.NewTemplateRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	subRepo := repository.NewSubsectionRepository(db)
	registryRepo := repository.NewRegistryRepository(db)
	locks := service.NewLocks()

	templates := service.NewTemplateService(templateRepo, sectionRepo, locks)
	sections := service.NewSectionService(templateRepo, sectionRepo, locks)
	subsections := service.NewSubsectionService(sectionRepo, subRepo, registryRepo, locks)
	ledger := service.NewLedgerService(subRepo, repository.NewVersionRepository(db), locks)
	snapshots := service.NewSnapshotService(templateRepo, sectionRepo, repository.NewSnapshotRepository(db), locks)
	conversations := service.NewConversationService(templateRepo, repository.NewConversationRepository(db), locks)
	generation, err := service.NewGenerationService(
		templateRepo, sectionRepo, subRepo, repository.NewJobRepository(db),
		repository.NewPresetRepository(db), registryRepo, ledger, stubGenerator{}, locks, 1,
	)
	require.NoError(t, err)
	t.Cleanup(generation.Release)

	env := &bridgeEnv{
		bridge:        NewBridge(templates, sections, subsections, ledger, generation, snapshots, conversations),
		templates:     templates,
		sections:      sections,
		subsections:   subsections,
		conversations: conversations,
		registryRepo:  registryRepo,
	}

	env.tpl, err = templates.Create(service.CreateTemplateInput{Name: "季度报告"})
	require.NoError(t, err)
	env.sec, err = sections.Create(env.tpl.ID, "财务", nil)
	require.NoError(t, err)
	env.sub, err = subsections.Create(service.CreateSubsectionInput{SectionID: env.sec.ID, Title: "营收"})
	require.NoError(t, err)
	return env
}

func (env *bridgeEnv) invoke(t *testing.T, name string, args any) any {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	result, err := env.bridge.Invoke(context.Background(), name, raw)
	require.NoError(t, err)
	return result
}

func TestBridgeCommandCatalog(t *testing.T) {
	env := newBridgeEnv(t)
	cmds := env.bridge.Commands()
	require.NotEmpty(t, cmds)
	seen := map[string]bool{}
	for i, cmd := range cmds {
		assert.NotEmpty(t, cmd.Description, cmd.Name)
		assert.False(t, seen[cmd.Name], "duplicate command %s", cmd.Name)
		seen[cmd.Name] = true
		if i > 0 {
			assert.Less(t, cmds[i-1].Name, cmd.Name, "catalog must be sorted")
		}
	}
	for _, want := range []string{
		"create_section", "create_subsection", "set_instructions", "save_content",
		"get_requirements", "start_generation_job", "generate_subsection",
		"create_snapshot", "restore_snapshot",
	} {
		assert.True(t, seen[want], "missing command %s", want)
	}
}

func TestBridgeUnknownCommand(t *testing.T) {
	env := newBridgeEnv(t)
	_, err := env.bridge.Invoke(context.Background(), "drop_tables", json.RawMessage(`{}`))
	var unknown *UnknownCommandError
	require.True(t, errors.As(err, &unknown), "expected UnknownCommandError, got %v", err)
}

func TestBridgeLogsInvocationToTranscript(t *testing.T) {
	env := newBridgeEnv(t)

	env.invoke(t, "set_instructions", map[string]any{
		"template_id":   env.tpl.ID,
		"subsection_id": env.sub.ID,
		"value":         "写得具体些",
	})

	sub, err := env.subsections.Get(env.sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "写得具体些", sub.Instructions)

	history, err := env.conversations.History(env.tpl.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "tool", history[0].Role)
	assert.Equal(t, "tool", history[0].Surface)
	assert.Contains(t, history[0].Content, "set_instructions")
}

func TestBridgeStartJobBlockedReply(t *testing.T) {
	env := newBridgeEnv(t)
	require.NoError(t, env.registryRepo.Upsert(&model.DataSource{
		ID: "benchmarking", Name: "Benchmarking", IsActive: true,
		Methods: `[{"method_id":"peer_metrics","name":"Peer metrics","parameters":[
			{"key":"quarter","label":"Quarter","type":"string","required":true}]}]`,
	}))
	_, err := env.subsections.SetInstructions(env.sub.ID, "写一段营收")
	require.NoError(t, err)
	_, err = env.subsections.ConfigureDataSource(env.sub.ID,
		`{"inputs":[{"source_id":"benchmarking","method_id":"peer_metrics","parameters":{}}]}`)
	require.NoError(t, err)

	result := env.invoke(t, "start_generation_job", map[string]any{"template_id": env.tpl.ID})

	// 前置检查未通过不算命令失败，回包带完整 requirements 载荷
	reply, ok := result.(map[string]any)
	require.True(t, ok, "expected map reply, got %T", result)
	assert.Equal(t, false, reply["started"])
	assert.Equal(t, false, reply["ready"])
	inputs, ok := reply["required_inputs"].([]apperrors.RequiredInput)
	require.True(t, ok, "expected required inputs, got %T", reply["required_inputs"])
	require.Len(t, inputs, 1)
	assert.Equal(t, "quarter", inputs[0].Key)
}

func TestBridgeRecoversFromPanicWithoutCrash(t *testing.T) {
	env := newBridgeEnv(t)
	// 非法 JSON 参数走 ValidationError 而非 panic
	_, err := env.bridge.Invoke(context.Background(), "create_section", json.RawMessage(`{"template_id":"oops"}`))
	require.Error(t, err)
}

func mcpSession(t *testing.T, env *bridgeEnv) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "report-designer-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	env.bridge.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(impl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestMCPCreateSectionRoundTrip(t *testing.T) {
	env := newBridgeEnv(t)
	session := mcpSession(t, env)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "create_section",
		Arguments: map[string]any{"template_id": env.tpl.ID, "title": "风险"},
	})
	require.NoError(t, err)
	// 工具级错误不过线，客户端只能看 IsError
	require.False(t, result.IsError)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var created model.Section
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &created))
	assert.Equal(t, "风险", created.Title)
	assert.Equal(t, 2, created.Position)

	listed, err := env.sections.List(env.tpl.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestMCPToolErrorSurfacesAsToolError(t *testing.T) {
	env := newBridgeEnv(t)
	session := mcpSession(t, env)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "rename_section",
		Arguments: map[string]any{"template_id": env.tpl.ID, "section_id": 9999, "title": "x"},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
