package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"fileforge/internal/config"
	"fileforge/internal/database"
	"fileforge/internal/handlers"
	"fileforge/internal/jobs"
	"fileforge/internal/middleware"
	"fileforge/internal/repositories"
	"fileforge/internal/storage"
)

// Setup creates and configures the Gin router for the submission/query
// REST surface (spec §6). The worker fleets are separate processes
// (cmd/worker) and never mounted here.
func Setup(cfg *config.Config, db *database.DB, store *storage.Store, submitter *jobs.Submitter) *gin.Engine {
	fileHandler := handlers.NewFileHandler(db, store, submitter)
	jobHandler := handlers.NewJobHandler(db)
	users := repositories.NewUserRepository(db)

	router := setupBaseRouter(cfg)

	router.GET("/health", healthCheck(db))

	authorized := router.Group("/")
	authorized.Use(middleware.Auth(cfg.SecretKey, users))
	{
		authorized.POST("/files/upload", fileHandler.Upload)
		authorized.GET("/files", fileHandler.List)
		authorized.GET("/files/:id", fileHandler.Get)
		authorized.GET("/files/:id/jobs", fileHandler.Jobs)
		authorized.GET("/files/:id/download", fileHandler.Download)
		authorized.DELETE("/files/:id", fileHandler.Delete)

		authorized.GET("/jobs/:id", jobHandler.Get)
		authorized.GET("/jobs", jobHandler.List)
	}

	router.GET("/api", apiDocumentation())

	return router
}

func setupBaseRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit())

	// In production, set this to the specific IP ranges of the load
	// balancer or reverse proxy; nil means no proxy headers are trusted.
	router.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowHeaders = []string{
		"Origin", "Content-Type", "Authorization", "Accept", "User-Agent",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	return router
}

func healthCheck(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now().Unix(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "postgresql",
			"timestamp": time.Now().Unix(),
		})
	}
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "fileforge",
			"description": "File processing pipeline platform: upload, route, and execute image/video/security/AI jobs",
			"endpoints": gin.H{
				"health": "GET /health",
				"files": gin.H{
					"upload":   "POST /files/upload",
					"list":     "GET /files",
					"get":      "GET /files/:id",
					"jobs":     "GET /files/:id/jobs",
					"download": "GET /files/:id/download",
					"delete":   "DELETE /files/:id",
				},
				"jobs": gin.H{
					"get":  "GET /jobs/:id",
					"list": "GET /jobs",
				},
			},
		})
	}
}
