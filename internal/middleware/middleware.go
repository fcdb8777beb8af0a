package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"stockbutler/internal/config"
	"stockbutler/internal/logger"
	"stockbutler/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type clientTracker struct {
	errors404    []time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

// limiterSet holds one token bucket per client IP.
type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*rateLimiter
	every   time.Duration
	burst   int
	idle    time.Duration
}

func newLimiterSet(every time.Duration, burst int, idle time.Duration) *limiterSet {
	return &limiterSet{
		clients: make(map[string]*rateLimiter),
		every:   every,
		burst:   burst,
		idle:    idle,
	}
}

func (s *limiterSet) allow(ip string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, exists := s.clients[ip]
	if !exists {
		client = &rateLimiter{limiter: rate.NewLimiter(rate.Every(s.every), s.burst)}
		s.clients[ip] = client
	}
	client.lastSeen = now

	for other, c := range s.clients {
		if now.Sub(c.lastSeen) > s.idle {
			delete(s.clients, other)
		}
	}
	return client.limiter.AllowN(now, 1)
}

func RateLimit(cfg *config.Config) gin.HandlerFunc {
	set := newLimiterSet(time.Second/20, 20, 10*time.Minute)
	return func(c *gin.Context) {
		// Skip rate limiting in development mode
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		if !set.allow(c.ClientIP(), time.Now()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MailRateLimit guards the endpoints that send mail or hit the document
// store on behalf of a caller.
func MailRateLimit(cfg *config.Config) gin.HandlerFunc {
	set := newLimiterSet(time.Minute, 5, 30*time.Minute)
	return func(c *gin.Context) {
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		if !set.allow(c.ClientIP(), time.Now()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please wait before trying again"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Blocker turns away clients that keep hitting unknown routes.
type Blocker struct {
	mu       sync.Mutex
	trackers map[string]*clientTracker
	cfg      *config.Config
}

func NewBlocker(cfg *config.Config) *Blocker {
	return &Blocker{trackers: make(map[string]*clientTracker), cfg: cfg}
}

func (b *Blocker) IPBlocker() gin.HandlerFunc {
	return func(c *gin.Context) {
		if b.cfg.IsDevelopment() {
			c.Next()
			return
		}

		b.mu.Lock()
		tracker, exists := b.trackers[c.ClientIP()]
		blocked := exists && time.Now().Before(tracker.blockedUntil)
		b.mu.Unlock()

		if blocked {
			c.JSON(http.StatusForbidden, gin.H{"error": "Too many invalid requests, try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (b *Blocker) Track404() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if b.cfg.IsDevelopment() || c.Writer.Status() != http.StatusNotFound {
			return
		}

		ip := c.ClientIP()
		now := time.Now()

		b.mu.Lock()
		defer b.mu.Unlock()

		tracker, exists := b.trackers[ip]
		if !exists {
			tracker = &clientTracker{}
			b.trackers[ip] = tracker
		}
		tracker.lastSeen = now

		// Keep the 404s from the last 5 minutes
		cutoff := now.Add(-5 * time.Minute)
		recent := tracker.errors404[:0]
		for _, at := range tracker.errors404 {
			if at.After(cutoff) {
				recent = append(recent, at)
			}
		}
		tracker.errors404 = append(recent, now)

		if len(tracker.errors404) >= 10 {
			tracker.blockedUntil = now.Add(15 * time.Minute)
			tracker.errors404 = nil
			logger.Warn("Blocked client after repeated 404s", "ip", ip, "minutes", 15)
		}

		for other, t := range b.trackers {
			if now.Sub(t.lastSeen) > 30*time.Minute && now.After(t.blockedUntil) {
				delete(b.trackers, other)
			}
		}
	}
}

// CORS echoes allowed origins back. A "*" entry allows any origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, allowed := range allowedOrigins {
			if allowed == "*" {
				c.Header("Access-Control-Allow-Origin", "*")
				break
			}
			if origin != "" && origin == allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				break
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SecurityHeaders(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.IsDevelopment() {
			c.Next()
			return
		}

		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Next()
	}
}

// LogRequests writes one line per request through the service logger.
func LogRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			logger.Error("Request failed", fields...)
		case status >= 400:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

// Metrics records request latency by matched route.
func Metrics(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// CronAuth checks the shared secret of the scheduled trigger, sent as a
// bearer token or a "secret" query parameter. An empty secret leaves the
// route open.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
			token = strings.TrimSpace(token[7:])
		} else {
			token = ""
		}
		if token == "" {
			token = c.Query("secret")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "未授权"})
			c.Abort()
			return
		}
		c.Next()
	}
}
