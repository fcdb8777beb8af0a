package handlers

import (
	"net/http"
	"strings"

	"stockbutler/internal/models"
	"stockbutler/internal/notion"

	"github.com/gin-gonic/gin"
)

// settingsResponse is what clients see of the settings. The mirror token is
// write-only.
type settingsResponse struct {
	RemindCycleDays    int    `json:"remindCycleDays"`
	NotifyEmail        string `json:"notifyEmail"`
	SummaryWeeks       int    `json:"summaryWeeks"`
	MirrorEnabled      bool   `json:"mirrorEnabled"`
	MirrorTokenSet     bool   `json:"mirrorTokenSet"`
	MirrorDatabaseID   string `json:"mirrorDatabaseId"`
	PurgeUsedUpEnabled bool   `json:"purgeUsedUpEnabled"`
	PurgeUsedUpWeeks   int    `json:"purgeUsedUpWeeks"`
	AutoReportEnabled  bool   `json:"autoReportEnabled"`
}

func newSettingsResponse(s models.Settings) settingsResponse {
	return settingsResponse{
		RemindCycleDays:    s.RemindCycleDays,
		NotifyEmail:        s.NotifyEmail,
		SummaryWeeks:       s.SummaryWeeks,
		MirrorEnabled:      s.MirrorEnabled,
		MirrorTokenSet:     s.MirrorToken != "",
		MirrorDatabaseID:   s.MirrorDatabaseID,
		PurgeUsedUpEnabled: s.PurgeUsedUpEnabled,
		PurgeUsedUpWeeks:   s.PurgeUsedUpWeeks,
		AutoReportEnabled:  s.AutoReportEnabled,
	}
}

func handleGetSettings(c *gin.Context) {
	settings, err := trackerFrom(c).Settings()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

// handleUpdateSettings overlays the request body on the stored settings, so
// clients may send only the fields they change. An omitted mirrorToken keeps
// the stored one.
func handleUpdateSettings(c *gin.Context) {
	tr := trackerFrom(c)

	settings, err := tr.Settings()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "请求体格式错误")
		return
	}

	saved, err := tr.SaveSettings(c.Request.Context(), settings)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsResponse(saved))
}

func handleCategories(c *gin.Context) {
	catalog, err := trackerFrom(c).Categories()
	if err != nil {
		respondError(c, err)
		return
	}
	if catalog == nil {
		catalog = models.CategoryCatalog{}
	}
	c.JSON(http.StatusOK, catalog)
}

func handleSweep(c *gin.Context) {
	removed, err := trackerFrom(c).Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

type mirrorCollectionRequest struct {
	Token        string `json:"token"`
	ParentPageID string `json:"parentPageId"`
}

func handleCreateMirrorCollection(c *gin.Context) {
	var req mirrorCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请求体格式错误")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	req.ParentPageID = strings.TrimSpace(req.ParentPageID)
	if req.Token == "" || req.ParentPageID == "" {
		badRequest(c, "创建数据库需要 token 和 parentPageId")
		return
	}

	settings, err := trackerFrom(c).CreateMirrorCollection(c.Request.Context(), req.Token, req.ParentPageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

type proxyRequest struct {
	Token        string         `json:"token"`
	Action       string         `json:"action"`
	ParentPageID string         `json:"parentPageId"`
	DatabaseID   string         `json:"databaseId"`
	PageID       string         `json:"pageId"`
	Payload      map[string]any `json:"payload"`
}

// handleNotionProxy forwards one call to the document store without
// keeping anything from the request.
func handleNotionProxy(c *gin.Context) {
	var req proxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请求体格式错误")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		badRequest(c, "缺少 token")
		return
	}
	if req.Action == "" {
		badRequest(c, "缺少 action")
		return
	}
	action, ok := notion.ParseAction(req.Action)
	if !ok {
		badRequest(c, "不支持的 action")
		return
	}

	var target, missing string
	switch action {
	case notion.ActionCreateCollection:
		target, missing = req.ParentPageID, "创建数据库需要 parentPageId"
	case notion.ActionQueryCollection, notion.ActionCreateItem:
		target, missing = req.DatabaseID, "缺少 databaseId"
	default:
		target, missing = req.PageID, "缺少 pageId"
	}
	if notion.CleanID(target) == "" {
		badRequest(c, missing)
		return
	}

	var payload any
	if req.Payload != nil {
		payload = req.Payload
	}

	proxy := c.MustGet("proxy").(notion.Proxy)
	resp, err := proxy.Send(c.Request.Context(), action, token, target, payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.Status, "application/json; charset=utf-8", resp.Data)
}
