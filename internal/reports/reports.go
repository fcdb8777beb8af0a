// Package reports keeps the list of addresses that receive the periodic
// report mail and sends the ones that are due.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"stockbutler/internal/database"
	"stockbutler/internal/logger"
	"stockbutler/internal/metrics"
	"stockbutler/internal/models"
)

const (
	DefaultCycleDays = 7
	MaxCycleDays     = 90

	ActionSubscribed   = "subscribed"
	ActionUnsubscribed = "unsubscribed"
)

var (
	ErrStorageUnavailable = errors.New("subscriber storage unavailable")
	ErrMissingEmail       = errors.New("missing email")
)

// Sender delivers one report to one address.
type Sender interface {
	SendReport(ctx context.Context, to string, report models.Report) error
}

type Registry struct {
	mu      sync.Mutex
	db      *sql.DB
	metrics *metrics.Collector
}

func NewRegistry(db *sql.DB, m *metrics.Collector) *Registry {
	return &Registry{db: db, metrics: m}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ClampCycle maps an unset cycle to the default and bounds the rest to
// [1, 90] days.
func ClampCycle(days int) int {
	if days == 0 {
		return DefaultCycleDays
	}
	if days < 1 {
		return 1
	}
	if days > MaxCycleDays {
		return MaxCycleDays
	}
	return days
}

func (r *Registry) List() (map[string]models.Subscriber, error) {
	if r == nil || r.db == nil {
		return nil, ErrStorageUnavailable
	}
	return database.GetSubscribers(r.db)
}

// Register subscribes or unsubscribes email. A nil report keeps the
// snapshot stored by an earlier registration.
func (r *Registry) Register(email string, cycleDays int, report *models.Report, enabled bool, now time.Time) (string, error) {
	if r == nil || r.db == nil {
		return "", ErrStorageUnavailable
	}
	email = NormalizeEmail(email)
	if email == "" {
		return "", ErrMissingEmail
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, err := database.GetSubscribers(r.db)
	if err != nil {
		return "", err
	}

	if !enabled {
		delete(subs, email)
		if err := database.SaveSubscribers(r.db, subs); err != nil {
			return "", err
		}
		logger.Info("Report subscription removed", "email", email)
		return ActionUnsubscribed, nil
	}

	previous := subs[email]
	sub := models.Subscriber{
		RemindCycleDays: ClampCycle(cycleDays),
		LastReport:      previous.LastReport,
		LastSentAt:      previous.LastSentAt,
		UpdatedAt:       now.UTC(),
	}
	if report != nil {
		snapshot := *report
		sub.LastReport = &snapshot
	}
	subs[email] = sub

	if err := database.SaveSubscribers(r.db, subs); err != nil {
		return "", err
	}
	logger.Info("Report subscription saved", "email", email, "cycle_days", sub.RemindCycleDays)
	return ActionSubscribed, nil
}

// Due returns, sorted, the addresses whose cycle has elapsed and that have
// a snapshot to send.
func Due(subs map[string]models.Subscriber, now time.Time) []string {
	var due []string
	for email, sub := range subs {
		if sub.LastReport == nil {
			continue
		}
		days := sub.RemindCycleDays
		if days < 1 {
			days = DefaultCycleDays
		}
		if sub.LastSentAt != nil && now.Sub(*sub.LastSentAt) < time.Duration(days)*24*time.Hour {
			continue
		}
		due = append(due, email)
	}
	sort.Strings(due)
	return due
}

// Dispatch sends every due report and returns how many went out. A failed
// send is logged and leaves that subscriber's lastSentAt alone.
func (r *Registry) Dispatch(ctx context.Context, sender Sender, now time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, ErrStorageUnavailable
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	subs, err := database.GetSubscribers(r.db)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, email := range Due(subs, now) {
		sub := subs[email]
		if err := sender.SendReport(ctx, email, *sub.LastReport); err != nil {
			logger.Error("Scheduled report failed", "email", email, "error", err)
			r.metrics.RecordReport(false)
			continue
		}
		sentAt := now.UTC()
		sub.LastSentAt = &sentAt
		subs[email] = sub
		sent++
		r.metrics.RecordReport(true)
	}

	if sent > 0 {
		if err := database.SaveSubscribers(r.db, subs); err != nil {
			return sent, err
		}
	}
	return sent, nil
}
