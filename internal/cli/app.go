package cli

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"stockbutler/internal/config"
	"stockbutler/internal/database"
	"stockbutler/internal/email"
	"stockbutler/internal/logger"
	"stockbutler/internal/metrics"
	"stockbutler/internal/notion"
	"stockbutler/internal/tracker"
)

const notionTimeout = 15 * time.Second

// app is everything a command needs, wired from the configuration.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	proxy   notion.Proxy
	metrics *metrics.Collector
	tracker *tracker.Tracker
	mailer  *email.Service
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Initialize(logger.ParseLevel(cfg.LogLevel), cfg.IsDevelopment())

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	proxy := notion.NewHTTPProxy(cfg.NotionBaseURL, cfg.NotionVersion, &http.Client{Timeout: notionTimeout})
	m := metrics.New()

	return &app{
		cfg:     cfg,
		db:      db,
		proxy:   proxy,
		metrics: m,
		tracker: tracker.New(tracker.Options{
			DB:       db,
			Proxy:    proxy,
			Metrics:  m,
			Location: loc,
		}),
		mailer: email.NewService(cfg),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
