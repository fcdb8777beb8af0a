package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "stock.db"))
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("MAILGUN_DOMAIN", "")
	t.Setenv("MAILGUN_API_KEY", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, Execute())
	return out.String()
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "sweep", "report", "send-reports"} {
		assert.True(t, names[want], want)
	}
}

func TestSweepOnEmptyDatabase(t *testing.T) {
	assert.Equal(t, "removed 0 record(s)\n", run(t, "sweep"))
}

func TestReportPrintsJSON(t *testing.T) {
	out := run(t, "report")
	assert.Contains(t, out, `"windowWeeks": 4`)
}

func TestSendReportsWithoutMailgun(t *testing.T) {
	assert.Empty(t, run(t, "send-reports"))
}
