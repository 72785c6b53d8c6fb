package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/klog/v2"

	"github.com/alexwday/report-designer-sub001/config"
	"github.com/alexwday/report-designer-sub001/internal/generator"
	"github.com/alexwday/report-designer-sub001/internal/handler"
	"github.com/alexwday/report-designer-sub001/internal/pkg/database"
	"github.com/alexwday/report-designer-sub001/internal/repository"
	"github.com/alexwday/report-designer-sub001/internal/router"
	"github.com/alexwday/report-designer-sub001/internal/service"
	"github.com/alexwday/report-designer-sub001/internal/toolbridge"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	mcpMode := flag.Bool("mcp", false, "serve the tool catalog over MCP stdio instead of HTTP")
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Data.UploadDir, 0755); err != nil {
		log.Fatalf("Failed to create upload directory: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	templateRepo := repository.NewTemplateRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	subRepo := repository.NewSubsectionRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	jobRepo := repository.NewJobRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	presetRepo := repository.NewPresetRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	registryRepo := repository.NewRegistryRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	// 启动时清理上一个进程遗留的未终态作业
	if affected, err := jobRepo.FailStale(0, "interrupted by restart"); err != nil {
		klog.Errorf("遗留作业清理失败: %v", err)
	} else if affected > 0 {
		klog.Infof("启动时清理了 %d 个遗留作业", affected)
	}

	// 初始化 Service
	locks := service.NewLocks()
	templateService := service.NewTemplateService(templateRepo, sectionRepo, locks)
	sectionService := service.NewSectionService(templateRepo, sectionRepo, locks)
	subsectionService := service.NewSubsectionService(sectionRepo, subRepo, registryRepo, locks)
	ledgerService := service.NewLedgerService(subRepo, versionRepo, locks)
	snapshotService := service.NewSnapshotService(templateRepo, sectionRepo, snapshotRepo, locks)
	conversationService := service.NewConversationService(templateRepo, conversationRepo, locks)
	presetService := service.NewPresetService(templateRepo, presetRepo)
	registryService := service.NewRegistryService(registryRepo)
	uploadService := service.NewUploadService(templateRepo, uploadRepo, cfg.Data.UploadDir)

	contentGen, err := generator.NewEinoGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize content generator: %v", err)
	}
	generationService, err := service.NewGenerationService(
		templateRepo, sectionRepo, subRepo, jobRepo, presetRepo, registryRepo,
		ledgerService,
		generator.WithTimeout(contentGen, cfg.Generation.SubsectionTimeout),
		locks,
		cfg.Generation.MaxWorkers,
	)
	if err != nil {
		log.Fatalf("Failed to initialize generation service: %v", err)
	}
	defer generationService.Release()

	// 数据源目录为空时从种子文件导入
	if err := registryService.SeedFromFile(cfg.Data.RegistrySeed); err != nil {
		log.Fatalf("Failed to seed data source registry: %v", err)
	}

	bridge := toolbridge.NewBridge(
		templateService, sectionService, subsectionService,
		ledgerService, generationService, snapshotService, conversationService,
	)

	if *mcpMode {
		runMCP(bridge)
		return
	}

	// 初始化 Handler
	templateHandler := handler.NewTemplateHandler(templateService)
	sectionHandler := handler.NewSectionHandler(sectionService)
	subsectionHandler := handler.NewSubsectionHandler(subsectionService)
	versionHandler := handler.NewVersionHandler(ledgerService)
	generateHandler := handler.NewGenerateHandler(generationService)
	snapshotHandler := handler.NewSnapshotHandler(snapshotService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	presetHandler := handler.NewPresetHandler(presetService)
	registryHandler := handler.NewRegistryHandler(registryService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	toolHandler := handler.NewToolHandler(bridge)

	// 设置路由
	r := router.Setup(cfg,
		templateHandler, sectionHandler, subsectionHandler, versionHandler,
		generateHandler, snapshotHandler, conversationHandler, presetHandler,
		registryHandler, uploadHandler, toolHandler,
	)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// runMCP 以 MCP stdio 模式暴露工具目录
func runMCP(bridge *toolbridge.Bridge) {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "report-designer",
		Version: "1.0.0",
	}, nil)
	bridge.RegisterMCP(srv)

	klog.Info("MCP stdio 服务启动")
	if err := srv.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
