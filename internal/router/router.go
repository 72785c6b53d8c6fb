package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/alexwday/report-designer-sub001/config"
	"github.com/alexwday/report-designer-sub001/internal/handler"
)

func Setup(
	cfg *config.Config,
	templateHandler *handler.TemplateHandler,
	sectionHandler *handler.SectionHandler,
	subsectionHandler *handler.SubsectionHandler,
	versionHandler *handler.VersionHandler,
	generateHandler *handler.GenerateHandler,
	snapshotHandler *handler.SnapshotHandler,
	conversationHandler *handler.ConversationHandler,
	presetHandler *handler.PresetHandler,
	registryHandler *handler.RegistryHandler,
	uploadHandler *handler.UploadHandler,
	toolHandler *handler.ToolHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	api := r.Group("/api")
	{
		templates := api.Group("/templates")
		{
			templates.POST("", templateHandler.Create)
			templates.GET("", templateHandler.List)
			templates.GET("/:id", templateHandler.Get)
			templates.GET("/:id/tree", templateHandler.GetTree)
			templates.PUT("/:id", templateHandler.Update)
			templates.DELETE("/:id", templateHandler.Delete)

			templates.GET("/:id/sections", sectionHandler.List)
			templates.POST("/:id/sections", sectionHandler.Create)

			templates.GET("/:id/requirements", generateHandler.Requirements)
			templates.POST("/:id/requirements", generateHandler.Requirements)
			templates.POST("/:id/generate", generateHandler.StartJob)

			templates.POST("/:id/snapshots", snapshotHandler.Create)
			templates.GET("/:id/snapshots", snapshotHandler.List)
			templates.GET("/:id/snapshots/:snapshotId", snapshotHandler.Get)
			templates.POST("/:id/snapshots/:snapshotId/restore", snapshotHandler.Restore)
			templates.POST("/:id/fork", snapshotHandler.Fork)

			templates.GET("/:id/conversation", conversationHandler.History)
			templates.POST("/:id/conversation", conversationHandler.Append)

			templates.GET("/:id/preset", presetHandler.Get)
			templates.PUT("/:id/preset", presetHandler.Save)

			templates.POST("/:id/uploads", uploadHandler.Upload)
			templates.GET("/:id/uploads", uploadHandler.List)
			templates.GET("/:id/uploads/:uploadId", uploadHandler.Download)
			templates.DELETE("/:id/uploads/:uploadId", uploadHandler.Delete)
		}

		sections := api.Group("/sections")
		{
			sections.GET("/:id", sectionHandler.Get)
			sections.PUT("/:id", sectionHandler.Rename)
			sections.PUT("/:id/reorder", sectionHandler.Reorder)
			sections.DELETE("/:id", sectionHandler.Delete)
			sections.POST("/:id/subsections", subsectionHandler.Create)
			sections.POST("/:id/generate", generateHandler.GenerateSection)
		}

		subsections := api.Group("/subsections")
		{
			subsections.GET("/:id", subsectionHandler.Get)
			subsections.PUT("/:id", subsectionHandler.Rename)
			subsections.PUT("/:id/notes", subsectionHandler.SetNotes)
			subsections.PUT("/:id/instructions", subsectionHandler.SetInstructions)
			subsections.PUT("/:id/widget-type", subsectionHandler.SetWidgetType)
			subsections.PUT("/:id/data-source", subsectionHandler.ConfigureDataSource)
			subsections.PUT("/:id/reorder", subsectionHandler.Reorder)
			subsections.DELETE("/:id", subsectionHandler.Delete)
			subsections.GET("/:id/versions", versionHandler.History)
			subsections.POST("/:id/versions", versionHandler.SaveManual)
			subsections.POST("/:id/generate", generateHandler.GenerateOne)
		}

		versions := api.Group("/versions")
		{
			versions.GET("/:id", versionHandler.Get)
			versions.POST("/:id/mark-final", versionHandler.MarkFinal)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("/:jobId", generateHandler.JobStatus)
			jobs.POST("/:jobId/cancel", generateHandler.CancelJob)
		}

		registry := api.Group("/data-sources")
		{
			registry.GET("", registryHandler.List)
			registry.GET("/:id", registryHandler.Get)
		}

		tools := api.Group("/tools")
		{
			tools.GET("", toolHandler.List)
			tools.POST("/invoke", toolHandler.Invoke)
		}
	}

	return r
}
