package tracker

import (
	"context"

	"stockbutler/internal/inventory"
	"stockbutler/internal/models"
)

// UpcomingDays is the horizon of the upcoming-expiry totals.
const UpcomingDays = 30

type Reminders struct {
	UrgingText string                   `json:"urgingText"`
	Items      []models.InventoryRecord `json:"items"`
}

func (t *Tracker) Groups(ctx context.Context, status models.Status) ([]models.SkuGroup, error) {
	t.sweepQuietly(ctx)
	recs, _, err := t.records(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.GroupByStatus(recs, status), nil
}

func (t *Tracker) Reminders(ctx context.Context) (Reminders, error) {
	recs, _, err := t.records(ctx)
	if err != nil {
		return Reminders{}, err
	}
	due := inventory.DueForReminder(recs, t.Now())
	if due == nil {
		due = []models.InventoryRecord{}
	}
	return Reminders{UrgingText: inventory.UrgingText(len(due)), Items: due}, nil
}

// Summary aggregates spend over the configured number of weeks.
func (t *Tracker) Summary(ctx context.Context) (models.Summary, int, error) {
	recs, settings, err := t.records(ctx)
	if err != nil {
		return models.Summary{}, 0, err
	}
	weeks := settings.SummaryWeeks
	return inventory.AggregateByCategory1(recs, weeks, t.Now()), weeks, nil
}

func (t *Tracker) WeeklySummary(ctx context.Context) (models.WeeklySummary, error) {
	recs, _, err := t.records(ctx)
	if err != nil {
		return models.WeeklySummary{}, err
	}
	return inventory.BuildWeeklySummary(recs, t.Now()), nil
}

func (t *Tracker) MonthlySummary(ctx context.Context) (models.MonthlySummary, error) {
	recs, _, err := t.records(ctx)
	if err != nil {
		return models.MonthlySummary{}, err
	}
	return inventory.BuildMonthlySummary(recs, t.Now()), nil
}

func (t *Tracker) Upcoming(ctx context.Context) ([]models.CategoryTotal, error) {
	recs, _, err := t.records(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.FutureExpiringByCategory1(recs, t.Now(), UpcomingDays), nil
}

func (t *Tracker) CopyCandidates(ctx context.Context, keyword string) ([]models.InventoryRecord, error) {
	recs, _, err := t.records(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.CopyCandidates(recs, keyword), nil
}
