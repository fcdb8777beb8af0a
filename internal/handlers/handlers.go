package handlers

import (
	"errors"
	"net/http"

	"stockbutler/internal/config"
	"stockbutler/internal/email"
	"stockbutler/internal/logger"
	"stockbutler/internal/metrics"
	"stockbutler/internal/middleware"
	"stockbutler/internal/notion"
	"stockbutler/internal/reports"
	"stockbutler/internal/store"
	"stockbutler/internal/tracker"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Config  *config.Config
	Tracker *tracker.Tracker
	Mailer  reports.Sender
	Proxy   notion.Proxy
	Metrics *metrics.Collector
}

func SetupRoutes(r *gin.Engine, deps Deps) {
	blocker := middleware.NewBlocker(deps.Config)

	r.Use(middleware.LogRequests())
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.SecurityHeaders(deps.Config))
	r.Use(middleware.CORS(deps.Config.AllowedOrigins))
	r.Use(blocker.IPBlocker())
	r.Use(blocker.Track404())
	r.Use(addDepsContext(deps))

	r.GET("/healthz", handleHealth)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(deps.Config))
	{
		api.GET("/items", handleListItems)
		api.POST("/items", handleCreateItem)
		api.GET("/items/export", handleExportItems)
		api.PUT("/items/:id", handleUpdateItem)
		api.DELETE("/items/:id", handleDeleteItem)
		api.POST("/items/:id/use", handleUseItem)

		api.GET("/groups", handleGroups)
		api.GET("/reminders", handleReminders)
		api.GET("/summary", handleSummary)
		api.GET("/summary/weekly", handleWeeklySummary)
		api.GET("/summary/monthly", handleMonthlySummary)
		api.GET("/summary/upcoming", handleUpcoming)
		api.GET("/copy", handleCopyCandidates)
		api.GET("/categories", handleCategories)

		api.GET("/settings", handleGetSettings)
		api.PUT("/settings", handleUpdateSettings)
		api.POST("/sweep", handleSweep)

		api.GET("/report", handleReport)
		api.POST("/send-report", middleware.MailRateLimit(deps.Config), handleSendReport)
		api.POST("/register-report", handleRegisterReport)
		api.POST("/cron/send-reports", middleware.CronAuth(deps.Config.CronSecret), handleCronSendReports)

		api.POST("/notion-proxy", middleware.MailRateLimit(deps.Config), handleNotionProxy)
		api.POST("/mirror/collection", handleCreateMirrorCollection)
	}
}

func addDepsContext(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("tracker", deps.Tracker)
		c.Set("mailer", deps.Mailer)
		c.Set("proxy", deps.Proxy)
		c.Next()
	}
}

func trackerFrom(c *gin.Context) *tracker.Tracker {
	return c.MustGet("tracker").(*tracker.Tracker)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps core errors onto HTTP answers.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSyncFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "sync failed", "detail": err.Error()})
	case errors.Is(err, tracker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, email.ErrNotConfigured):
		c.JSON(http.StatusOK, gin.H{"ok": true, "sent": 0, "message": "未配置发信服务，跳过发送。"})
	case errors.Is(err, reports.ErrStorageUnavailable):
		c.JSON(http.StatusOK, gin.H{"ok": true, "sent": 0, "message": "未关联订阅存储，跳过定期发送。"})
	default:
		logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
