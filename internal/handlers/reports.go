package handlers

import (
	"errors"
	"net/http"
	"strings"

	"stockbutler/internal/models"
	"stockbutler/internal/reports"
	"stockbutler/internal/tracker"

	"github.com/gin-gonic/gin"
)

func handleReminders(c *gin.Context) {
	reminders, err := trackerFrom(c).Reminders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

func handleSummary(c *gin.Context) {
	summary, weeks, err := trackerFrom(c).Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"weeks":      weeks,
		"newEntries": nonNilTotals(summary.NewEntries),
		"used":       nonNilTotals(summary.Used),
	})
}

func handleWeeklySummary(c *gin.Context) {
	summary, err := trackerFrom(c).WeeklySummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func handleMonthlySummary(c *gin.Context) {
	summary, err := trackerFrom(c).MonthlySummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func handleUpcoming(c *gin.Context) {
	totals, err := trackerFrom(c).Upcoming(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": nonNilTotals(totals)})
}

func nonNilTotals(totals []models.CategoryTotal) []models.CategoryTotal {
	if totals == nil {
		return []models.CategoryTotal{}
	}
	return totals
}

func handleReport(c *gin.Context) {
	report, err := trackerFrom(c).RefreshReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type sendReportRequest struct {
	To string `json:"to"`
}

func handleSendReport(c *gin.Context) {
	var req sendReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "请求体格式错误")
			return
		}
	}

	mailer := c.MustGet("mailer").(reports.Sender)
	to, err := trackerFrom(c).SendReport(c.Request.Context(), mailer, strings.TrimSpace(req.To))
	if err != nil {
		if errors.Is(err, tracker.ErrMissingRecipient) {
			badRequest(c, "请提供收件邮箱 to")
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "to": to})
}

type registerReportRequest struct {
	Email           string         `json:"email"`
	RemindCycleDays int            `json:"remindCycleDays"`
	Report          *models.Report `json:"report"`
	Enabled         bool           `json:"enabled"`
}

func handleRegisterReport(c *gin.Context) {
	var req registerReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请求体格式错误")
		return
	}
	if reports.NormalizeEmail(req.Email) == "" {
		badRequest(c, "请提供 email")
		return
	}

	tr := trackerFrom(c)
	action, err := tr.Registry().Register(req.Email, req.RemindCycleDays, req.Report, req.Enabled, tr.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "action": action})
}

func handleCronSendReports(c *gin.Context) {
	mailer := c.MustGet("mailer").(reports.Sender)
	if m, ok := mailer.(interface{ IsEnabled() bool }); ok && !m.IsEnabled() {
		c.JSON(http.StatusOK, gin.H{"ok": true, "sent": 0, "message": "未配置发信服务，跳过定期发送。"})
		return
	}

	sent, err := trackerFrom(c).DispatchScheduled(c.Request.Context(), mailer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sent": sent})
}
