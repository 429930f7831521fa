package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/catalogsync/internal/api/handler"
	"github.com/timmy/catalogsync/internal/api/middleware"
	"github.com/timmy/catalogsync/internal/config"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, db *gorm.DB, deps handler.Deps) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.CORS, cfg.Admin.Header))

	healthHandler := handler.NewHealthHandler(db)
	adminHandler := handler.NewAdminHandler(deps)

	r.GET("/health", healthHandler.Health)

	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AdminAuth(cfg.Admin))
	{
		admin.GET("/status", adminHandler.Status)
		admin.POST("/maintenance", adminHandler.Maintenance)
		admin.POST("/worker", adminHandler.Worker)
		admin.POST("/dedupe", adminHandler.Dedupe)
		admin.GET("/dropped", adminHandler.Dropped)
		admin.GET("/records", adminHandler.FindRecords)
		admin.GET("/records/:id", adminHandler.GetRecord)

		queues := admin.Group("/queues/:pipeline")
		queues.POST("/lease", adminHandler.Lease)
		queues.POST("/enqueue", adminHandler.Enqueue)
		queues.POST("/jobs/:id/complete", adminHandler.Complete)
		queues.POST("/jobs/:id/reschedule", adminHandler.Reschedule)
		queues.GET("/jobs/:id/resolve", adminHandler.Resolve)

		admin.POST("/rehost/complete", adminHandler.RehostComplete)
	}

	return r
}
