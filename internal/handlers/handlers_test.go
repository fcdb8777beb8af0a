package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbutler/internal/config"
	"stockbutler/internal/database"
	"stockbutler/internal/email"
	"stockbutler/internal/metrics"
	"stockbutler/internal/models"
	"stockbutler/internal/notion/notiontest"
	"stockbutler/internal/tracker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

type fakeMailer struct {
	enabled bool
	sent    []string
}

func (m *fakeMailer) IsEnabled() bool { return m.enabled }

func (m *fakeMailer) SendReport(ctx context.Context, to string, report models.Report) error {
	if !m.enabled {
		return email.ErrNotConfigured
	}
	m.sent = append(m.sent, to)
	return nil
}

type testServer struct {
	router *gin.Engine
	fake   *notiontest.Fake
	mailer *fakeMailer
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	fake := notiontest.New()
	m := metrics.New()
	tr := tracker.New(tracker.Options{
		DB:       db,
		Proxy:    fake,
		Metrics:  m,
		Clock:    func() time.Time { return testNow },
		Location: time.UTC,
	})
	mailer := &fakeMailer{enabled: true}

	r := gin.New()
	SetupRoutes(r, Deps{
		Config:  &config.Config{Environment: "development", CronSecret: "s3cret"},
		Tracker: tr,
		Mailer:  mailer,
		Proxy:   fake,
		Metrics: m,
	})
	return &testServer{router: r, fake: fake, mailer: mailer}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func milkBody() map[string]any {
	return map[string]any{
		"name":             "牛奶",
		"brand":            "光明",
		"category1":        "乳品",
		"category2":        "鲜奶",
		"quantity":         2,
		"unitPrice":        10,
		"purchaseDate":     "2024-03-01",
		"expiryDate":       "2024-03-06",
		"remindBeforeDays": 7,
	}
}

type itemResponse struct {
	Item models.InventoryRecord `json:"item"`
}

type itemsResponse struct {
	Items []models.InventoryRecord `json:"items"`
}

func TestHealthz(t *testing.T) {
	s := setupTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestItemLifecycle(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/items", milkBody())
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[itemResponse](t, w).Item
	assert.Equal(t, models.StatusInStock, created.Status)
	assert.NotEmpty(t, created.ID)

	w = s.do(t, http.MethodGet, "/api/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reminders := decode[tracker.Reminders](t, w)
	assert.Len(t, reminders.Items, 1)
	assert.Equal(t, "有几样快到期啦，记得先用哦～", reminders.UrgingText)

	w = s.do(t, http.MethodPost, "/api/items/"+created.ID+"/use", map[string]any{"amount": 1})
	require.Equal(t, http.StatusOK, w.Code)
	used := decode[tracker.UseResult](t, w)
	assert.True(t, used.Changed)

	w = s.do(t, http.MethodGet, "/api/items?status=used_up", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[itemsResponse](t, w).Items, 1)

	w = s.do(t, http.MethodGet, "/api/groups?status=used_up", nil)
	require.Equal(t, http.StatusOK, w.Code)
	groups := decode[map[string][]models.SkuGroup](t, w)["groups"]
	require.Len(t, groups, 1)
	assert.Equal(t, 10.0, groups[0].TotalPrice)

	w = s.do(t, http.MethodPut, "/api/items/"+created.ID, map[string]any{"note": "冷藏"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "冷藏", decode[itemResponse](t, w).Item.Note)

	w = s.do(t, http.MethodDelete, "/api/items/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/items?status=in_stock", nil)
	assert.Empty(t, decode[itemsResponse](t, w).Items)
}

func TestItemValidation(t *testing.T) {
	s := setupTestServer(t)

	body := milkBody()
	body["name"] = "  "
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/items", body).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/items?status=gone", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/items/x/use", map[string]any{}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/items/missing", map[string]any{"note": "x"}).Code)
}

func TestUseNoOp(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/items/missing/use", map[string]any{"amount": 1})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[tracker.UseResult](t, w)
	assert.False(t, result.Changed)
	assert.Nil(t, result.Record)
}

func TestSyncFailureMapsToBadGateway(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]any{
		"mirrorEnabled":    true,
		"mirrorToken":      "tok",
		"mirrorDatabaseId": "db",
	})
	require.Equal(t, http.StatusOK, w.Code)

	s.fake.FailNow()
	w = s.do(t, http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "sync failed", decode[map[string]any](t, w)["error"])
}

func TestSettingsPartialUpdate(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]any{"summaryWeeks": 6})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/settings", nil)
	settings := decode[settingsResponse](t, w)
	assert.Equal(t, 6, settings.SummaryWeeks)
	assert.Equal(t, 7, settings.RemindCycleDays)
	assert.True(t, settings.PurgeUsedUpEnabled)
}

func TestSummaryAndCategories(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/items", milkBody()).Code)

	w := s.do(t, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[struct {
		Weeks      int                    `json:"weeks"`
		NewEntries []models.CategoryTotal `json:"newEntries"`
		Used       []models.CategoryTotal `json:"used"`
	}](t, w)
	assert.Equal(t, 4, summary.Weeks)
	require.Len(t, summary.NewEntries, 1)
	assert.Equal(t, 20.0, summary.NewEntries[0].TotalPrice)
	assert.Empty(t, summary.Used)

	for _, path := range []string{"/api/summary/weekly", "/api/summary/monthly", "/api/summary/upcoming", "/api/copy?q=milk"} {
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, nil).Code, path)
	}

	w = s.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"鲜奶"}, decode[models.CategoryCatalog](t, w)["乳品"])
}

func TestExportItems(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/items", milkBody()).Code)

	w := s.do(t, http.MethodGet, "/api/items/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "牛奶,光明,乳品,鲜奶,2,10.00,20.00"))
}

func TestSendReport(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/send-report", map[string]any{}).Code)

	w := s.do(t, http.MethodPost, "/api/send-report", map[string]any{"to": "me@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"me@example.com"}, s.mailer.sent)

	s.mailer.enabled = false
	w = s.do(t, http.MethodPost, "/api/send-report", map[string]any{"to": "me@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode[map[string]any](t, w)["sent"])
}

func TestRegisterAndCron(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/register-report", map[string]any{"enabled": true}).Code)

	w := s.do(t, http.MethodPost, "/api/register-report", map[string]any{
		"email":           "Me@Example.com",
		"remindCycleDays": 3,
		"report":          map[string]any{"urgingText": "", "windowWeeks": 4},
		"enabled":         true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "subscribed", decode[map[string]any](t, w)["action"])

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/cron/send-reports", nil).Code)

	w = s.do(t, http.MethodPost, "/api/cron/send-reports?secret=s3cret", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode[map[string]any](t, w)["sent"])
	assert.Equal(t, []string{"me@example.com"}, s.mailer.sent)
}

func TestNotionProxy(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/notion-proxy", map[string]any{"action": "queryDatabase"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/notion-proxy", map[string]any{"token": "tok", "action": "drop"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/notion-proxy", map[string]any{"token": "tok", "action": "updatePage"}).Code)

	w := s.do(t, http.MethodPost, "/api/notion-proxy", map[string]any{
		"token":      "tok",
		"action":     "createPage",
		"databaseId": "db",
		"payload":    map[string]any{"properties": map[string]any{}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]any](t, w)["id"])
	assert.Equal(t, 1, s.fake.Live())
}

func TestCreateMirrorCollection(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/mirror/collection", map[string]any{"token": "tok"}).Code)

	w := s.do(t, http.MethodPost, "/api/mirror/collection", map[string]any{"token": "secret-tok", "parentPageId": "parent"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-tok")
	settings := decode[settingsResponse](t, w)
	assert.True(t, settings.MirrorEnabled)
	assert.True(t, settings.MirrorTokenSet)
	assert.Equal(t, "db-parent", settings.MirrorDatabaseID)
}

func TestSweepEndpoint(t *testing.T) {
	s := setupTestServer(t)
	w := s.do(t, http.MethodPost, "/api/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode[map[string]any](t, w)["removed"])
}

func TestSettingsNeverExposeMirrorToken(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]any{
		"mirrorEnabled":    true,
		"mirrorToken":      "secret_abc123",
		"mirrorDatabaseId": "db",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret_abc123")
	assert.True(t, decode[settingsResponse](t, w).MirrorTokenSet)

	w = s.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret_abc123")
	assert.NotContains(t, w.Body.String(), `"mirrorToken"`)

	// a later update without the token keeps the stored one
	w = s.do(t, http.MethodPut, "/api/settings", map[string]any{"summaryWeeks": 3})
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode[settingsResponse](t, w)
	assert.True(t, settings.MirrorTokenSet)
	assert.True(t, settings.MirrorEnabled)
	assert.Equal(t, 3, settings.SummaryWeeks)

	// the stored token still reaches the mirror
	w = s.do(t, http.MethodGet, "/api/items", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
