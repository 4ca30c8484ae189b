package api

import (
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkgrab/linkgrab/api/handlers"
	"github.com/linkgrab/linkgrab/api/middleware"
	"github.com/linkgrab/linkgrab/internal/app"
	"github.com/linkgrab/linkgrab/pkg/logger"
	"github.com/linkgrab/linkgrab/pkg/metrics"
	"github.com/linkgrab/linkgrab/web"
)

// SetupRouter sets up the HTTP router
func SetupRouter(
	jobMgr *app.JobManager,
	discovery *app.DiscoveryService,
	multiLogger *logger.MultiLogger,
	metricsEnabled bool,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	log := multiLogger.General()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(jobMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	if metricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		discoveryHandler := handlers.NewDiscoveryHandler(discovery, log)
		v1.GET("/categories", discoveryHandler.GetCategories)
		v1.GET("/discover", discoveryHandler.Discover)

		jobHandler := handlers.NewJobHandler(jobMgr, log)
		wsHandler := handlers.NewJobWebSocketHandler(jobMgr, log)
		jobs := v1.Group("/jobs")
		{
			jobs.POST("/discover", middleware.RequireJSON(), jobHandler.SubmitDiscovery)
			jobs.POST("/download", middleware.RequireJSON(), jobHandler.SubmitDownload)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/stats", jobHandler.GetStats)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.GET("/:id/events", wsHandler.HandleWebSocket)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
			jobs.DELETE("/:id", jobHandler.DeleteJob)
		}

		logHandler := handlers.NewLogHandler(multiLogger.GetLogsDir())
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	// Serve embedded dashboard
	dashboardFS := web.GetStaticFS()

	router.GET("/", func(c *gin.Context) {
		serveFile(c, dashboardFS, "index.html")
	})
	router.GET("/static/*filepath", func(c *gin.Context) {
		serveFile(c, dashboardFS, strings.TrimPrefix(c.Param("filepath"), "/"))
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}

// serveFile serves a file from the embedded filesystem with proper content type
func serveFile(c *gin.Context, dashboardFS fs.FS, filePath string) {
	file, err := dashboardFS.Open(filePath)
	if err != nil {
		c.String(http.StatusNotFound, "File not found: %v", err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to read file: %v", err)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Data(http.StatusOK, contentType, content)
}
