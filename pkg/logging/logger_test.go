package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewLogger()
	l.SetOutput(buf)
	return l, buf
}

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		entry := map[string]interface{}{}
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerEmitsJSONLines(t *testing.T) {
	l, buf := captureLogger()

	l.Info("order placed",
		String("venue", "aster"),
		Int("attempt", 2),
		Decimal("price", decimal.RequireFromString("50000.5")),
	)

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "order placed", entries[0]["message"])
	assert.Equal(t, "aster", entries[0]["venue"])
	assert.Equal(t, float64(2), entries[0]["attempt"])
	assert.Equal(t, "50000.5", entries[0]["price"], "decimals are logged as exact strings")
	assert.NotEmpty(t, entries[0]["timestamp"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	l, buf := captureLogger()

	l.Debug("hidden at default level")
	l.Info("visible")

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0]["message"])

	l.SetLevel(ERROR)
	l.Warn("now hidden")
	l.Error("still visible")

	entries = decodeEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0]["level"])
}

func TestWithFieldsPropagatesToEveryEntry(t *testing.T) {
	l, buf := captureLogger()
	child := l.WithFields(String("venue", "hyperliquid"), String("capability", "stream"))

	child.Info("connected")
	child.Warn("dropped", Int("attempt", 1))

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "hyperliquid", entry["venue"])
		assert.Equal(t, "stream", entry["capability"])
	}
	assert.Equal(t, float64(1), entries[1]["attempt"])
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "s", Value: "v"}, String("s", "v"))
	assert.Equal(t, Field{Key: "i", Value: 7}, Int("i", 7))
	assert.Equal(t, Field{Key: "i64", Value: int64(9)}, Int64("i64", 9))
	assert.Equal(t, Field{Key: "f", Value: 1.5}, Float64("f", 1.5))
	assert.Equal(t, Field{Key: "b", Value: true}, Bool("b", true))
	assert.Equal(t, Field{Key: "d", Value: "1.5s"}, Duration("d", 1500*time.Millisecond))
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Error(errors.New("boom")))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestZapLoggerWritesThroughInterface(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewZapLogger(WithLogLevel(DEBUG))
	l.SetOutput(buf)

	l.Info("stream subscribed", String("symbol", "BTCUSDT"))
	if zl, ok := l.(*ZapLogger); ok {
		_ = zl.Sync()
	}

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "stream subscribed", entries[0]["msg"])
	assert.Equal(t, "BTCUSDT", entries[0]["symbol"])
}

func TestZapLoggerWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewZapLogger()
	l.SetOutput(buf)

	child := l.WithFields(String("venue", "aster"))
	child.Error("request failed", Error(errors.New("timeout")))

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "aster", entries[0]["venue"])
	assert.Equal(t, "timeout", entries[0]["error"])
}
