package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, false)

	l.Info("mirror enabled", "token", "secret_abcdef", "database_id", "0123456789abcdef", "to", "someone@example.com")

	out := buf.String()
	assert.Contains(t, out, "[INFO] mirror enabled")
	assert.Contains(t, out, "token=[REDACTED]")
	assert.Contains(t, out, "database_id=0123****")
	assert.Contains(t, out, "to=s****e@example.com")
	assert.NotContains(t, out, "secret_abcdef")
}

func TestDevDebugKeepsRawValues(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, true)

	l.Debug("send", "email", "someone@example.com")

	assert.Contains(t, buf.String(), "email=someone@example.com")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, false)

	l.Info("hidden")
	l.Error("shown", "count", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[ERROR] shown { count=3 }")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
	assert.Equal(t, INFO, ParseLevel("nope"))
}
