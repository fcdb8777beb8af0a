package tracker

import (
	"context"
	"fmt"

	"stockbutler/internal/database"
	"stockbutler/internal/inventory"
	"stockbutler/internal/logger"
	"stockbutler/internal/models"
	"stockbutler/internal/notion"
	"stockbutler/internal/reports"
	"stockbutler/internal/store"
)

// SaveSettings persists settings. Changing the mirror credentials drops the
// remote cache, and the auto-report subscription follows the new values.
func (t *Tracker) SaveSettings(ctx context.Context, next models.Settings) (models.Settings, error) {
	t.settingsMu.Lock()
	defer t.settingsMu.Unlock()

	previous, err := t.Settings()
	if err != nil {
		return models.Settings{}, err
	}
	next = next.Normalize()

	if err := database.SaveSettings(t.db, next); err != nil {
		return models.Settings{}, err
	}

	if mirrorChanged(previous, next) {
		t.stores.Invalidate()
		logger.Info("Mirror settings changed", "mirror_enabled", next.MirrorEnabled, "database_id", next.MirrorDatabaseID)
	}

	t.syncSubscription(ctx, previous, next, nil)
	return next, nil
}

func mirrorChanged(a, b models.Settings) bool {
	return a.MirrorEnabled != b.MirrorEnabled ||
		a.MirrorToken != b.MirrorToken ||
		a.MirrorDatabaseID != b.MirrorDatabaseID
}

// syncSubscription keeps the report subscription of notifyEmail in line
// with autoReportEnabled. Failures are logged; subscription storage is
// optional.
func (t *Tracker) syncSubscription(ctx context.Context, previous, next models.Settings, report *models.Report) {
	now := t.Now()
	oldEmail := reports.NormalizeEmail(previous.NotifyEmail)
	newEmail := reports.NormalizeEmail(next.NotifyEmail)

	if previous.AutoReportEnabled && oldEmail != "" && (!next.AutoReportEnabled || oldEmail != newEmail) {
		if _, err := t.registry.Register(oldEmail, 0, nil, false, now); err != nil {
			logger.Warn("Failed to remove report subscription", "email", oldEmail, "error", err)
		}
	}

	if !next.AutoReportEnabled || newEmail == "" {
		return
	}
	if report == nil {
		built, err := t.Report(ctx)
		if err != nil {
			logger.Warn("Failed to build report snapshot", "error", err)
		} else {
			report = &built
		}
	}
	if _, err := t.registry.Register(newEmail, next.RemindCycleDays, report, true, now); err != nil {
		logger.Warn("Failed to save report subscription", "email", newEmail, "error", err)
	}
}

// CreateMirrorCollection creates the mirror database under parentPageID
// with credential, then switches the mirror on with it.
func (t *Tracker) CreateMirrorCollection(ctx context.Context, credential, parentPageID string) (models.Settings, error) {
	client := notion.NewClient(t.proxy, credential, "")
	databaseID, err := client.CreateCollection(ctx, parentPageID)
	if err != nil {
		t.metrics.RecordSyncFailure("create_collection")
		return models.Settings{}, fmt.Errorf("%w: create collection: %v", store.ErrSyncFailed, err)
	}

	settings, err := t.Settings()
	if err != nil {
		return models.Settings{}, err
	}
	settings.MirrorEnabled = true
	settings.MirrorToken = credential
	settings.MirrorDatabaseID = databaseID
	return t.SaveSettings(ctx, settings)
}

// Report builds the digest for today.
func (t *Tracker) Report(ctx context.Context) (models.Report, error) {
	recs, settings, err := t.records(ctx)
	if err != nil {
		return models.Report{}, err
	}
	return inventory.BuildReport(recs, settings.SummaryWeeks, t.Now()), nil
}

// RefreshReport builds the digest and, with auto reports on, stores it as
// the subscription snapshot.
func (t *Tracker) RefreshReport(ctx context.Context) (models.Report, error) {
	report, err := t.Report(ctx)
	if err != nil {
		return models.Report{}, err
	}
	settings, err := t.Settings()
	if err != nil {
		return report, nil
	}
	if settings.AutoReportEnabled && settings.NotifyEmail != "" {
		t.syncSubscription(ctx, settings, settings, &report)
	}
	return report, nil
}

// SendReport mails today's digest to to, or to notifyEmail when to is
// blank, and returns the address used.
func (t *Tracker) SendReport(ctx context.Context, sender reports.Sender, to string) (string, error) {
	if to == "" {
		settings, err := t.Settings()
		if err != nil {
			return "", err
		}
		to = settings.NotifyEmail
	}
	if to == "" {
		return "", ErrMissingRecipient
	}

	report, err := t.Report(ctx)
	if err != nil {
		return "", err
	}
	err = sender.SendReport(ctx, to, report)
	t.metrics.RecordReport(err == nil)
	if err != nil {
		return "", err
	}
	return to, nil
}

// DispatchScheduled sends every due subscription.
func (t *Tracker) DispatchScheduled(ctx context.Context, sender reports.Sender) (int, error) {
	return t.registry.Dispatch(ctx, sender, t.clock())
}
