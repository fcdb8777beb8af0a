package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"stockbutler/internal/config"
	"stockbutler/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.POST("/cron", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func perform(r http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCronAuth(t *testing.T) {
	r := newRouter(CronAuth("s3cret"))

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/cron", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodPost, "/cron", map[string]string{"Authorization": "Bearer nope"}).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/cron", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/cron", map[string]string{"Authorization": "bearer s3cret"}).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/cron?secret=s3cret", nil).Code)
}

func TestCronAuthOpenWithoutSecret(t *testing.T) {
	r := newRouter(CronAuth(""))
	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/cron", nil).Code)
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS([]string{"https://home.example.com"}))

	w := perform(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://home.example.com"})
	assert.Equal(t, "https://home.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodOptions, "/ping", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSWildcard(t *testing.T) {
	r := newRouter(CORS([]string{"*"}))
	w := perform(r, http.MethodGet, "/ping", map[string]string{"Origin": "https://any.example.com"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLimiterSet(t *testing.T) {
	set := newLimiterSet(time.Minute, 2, time.Hour)
	now := time.Now()

	assert.True(t, set.allow("1.2.3.4", now))
	assert.True(t, set.allow("1.2.3.4", now))
	assert.False(t, set.allow("1.2.3.4", now))
	assert.True(t, set.allow("5.6.7.8", now))

	// idle clients are forgotten
	assert.True(t, set.allow("5.6.7.8", now.Add(2*time.Hour)))
	assert.Len(t, set.clients, 1)
}

func TestRateLimitSkippedInDevelopment(t *testing.T) {
	r := newRouter(RateLimit(&config.Config{Environment: "development"}))
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
	}
}

func TestBlockerAfterRepeated404s(t *testing.T) {
	b := NewBlocker(&config.Config{Environment: "production"})
	r := newRouter(b.IPBlocker(), b.Track404())

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/nope", nil).Code)
	}
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/ping", nil).Code)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	r := newRouter(Metrics(m))
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `route="/ping"`)
}
