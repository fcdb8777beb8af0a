package reports

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbutler/internal/database"
	"stockbutler/internal/metrics"
	"stockbutler/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeSender struct {
	sent []string
	fail map[string]bool
}

func (f *fakeSender) SendReport(ctx context.Context, to string, report models.Report) error {
	if f.fail[to] {
		return errors.New("mailbox full")
	}
	f.sent = append(f.sent, to)
	return nil
}

var testNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestClampCycle(t *testing.T) {
	assert.Equal(t, 7, ClampCycle(0))
	assert.Equal(t, 1, ClampCycle(-3))
	assert.Equal(t, 14, ClampCycle(14))
	assert.Equal(t, 90, ClampCycle(365))
}

func TestRegisterNormalizesAndKeepsSnapshot(t *testing.T) {
	reg := NewRegistry(setupTestDB(t), metrics.New())
	report := &models.Report{UrgingText: "快吃快用啊！别浪费！", WindowWeeks: 4}

	action, err := reg.Register("  Mom@Example.COM ", 0, report, true, testNow)
	require.NoError(t, err)
	assert.Equal(t, ActionSubscribed, action)

	_, err = reg.Register("mom@example.com", 14, nil, true, testNow.Add(time.Hour))
	require.NoError(t, err)

	subs, err := reg.List()
	require.NoError(t, err)
	require.Contains(t, subs, "mom@example.com")
	sub := subs["mom@example.com"]
	assert.Equal(t, 14, sub.RemindCycleDays)
	require.NotNil(t, sub.LastReport)
	assert.Equal(t, "快吃快用啊！别浪费！", sub.LastReport.UrgingText)
	assert.Equal(t, testNow.Add(time.Hour), sub.UpdatedAt)
}

func TestRegisterDisableRemoves(t *testing.T) {
	reg := NewRegistry(setupTestDB(t), nil)

	_, err := reg.Register("a@example.com", 7, &models.Report{}, true, testNow)
	require.NoError(t, err)
	action, err := reg.Register("A@example.com", 7, nil, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, ActionUnsubscribed, action)

	subs, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestRegisterErrors(t *testing.T) {
	_, err := NewRegistry(setupTestDB(t), nil).Register("  ", 7, nil, true, testNow)
	assert.ErrorIs(t, err, ErrMissingEmail)

	_, err = NewRegistry(nil, nil).Register("a@example.com", 7, nil, true, testNow)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestDue(t *testing.T) {
	recent := testNow.Add(-3 * 24 * time.Hour)
	old := testNow.Add(-8 * 24 * time.Hour)
	report := &models.Report{}

	subs := map[string]models.Subscriber{
		"never@example.com":    {RemindCycleDays: 7, LastReport: report},
		"recent@example.com":   {RemindCycleDays: 7, LastReport: report, LastSentAt: &recent},
		"old@example.com":      {RemindCycleDays: 7, LastReport: report, LastSentAt: &old},
		"snapless@example.com": {RemindCycleDays: 1},
	}

	assert.Equal(t, []string{"never@example.com", "old@example.com"}, Due(subs, testNow))
}

func TestDispatch(t *testing.T) {
	db := setupTestDB(t)
	m := metrics.New()
	reg := NewRegistry(db, m)
	report := &models.Report{WindowWeeks: 4}

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := reg.Register(email, 7, report, true, testNow)
		require.NoError(t, err)
	}
	_, err := reg.Register("d@example.com", 7, nil, true, testNow)
	require.NoError(t, err)

	sender := &fakeSender{fail: map[string]bool{"b@example.com": true}}
	sent, err := reg.Dispatch(context.Background(), sender, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []string{"a@example.com", "c@example.com"}, sender.sent)

	subs, err := reg.List()
	require.NoError(t, err)
	require.NotNil(t, subs["a@example.com"].LastSentAt)
	assert.Nil(t, subs["b@example.com"].LastSentAt)
	assert.Nil(t, subs["d@example.com"].LastSentAt)

	// a and c are inside their cycle now
	sender = &fakeSender{}
	sent, err = reg.Dispatch(context.Background(), sender, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"b@example.com"}, sender.sent)
}
