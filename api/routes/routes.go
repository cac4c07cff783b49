package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tapu-processor/api/handlers"
	"github.com/feichai0017/tapu-processor/api/middleware"
	"github.com/feichai0017/tapu-processor/config"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

// SetupRoutes registers every route on r.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, cfg *config.Config, log logger.Logger) {
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/healthz", handlers.Health)

	v1 := r.Group("/api/v1")
	jobs := v1.Group("/jobs")
	{
		jobs.POST("", middleware.BodyLimit(cfg.Server.MaxUploadBytes()), h.Job.SubmitJob)
		jobs.GET("/:id", h.Job.GetJob)
		jobs.GET("/:id/events", h.Job.StreamEvents)
		jobs.GET("/:id/download", h.Job.DownloadOutput)
	}
}
