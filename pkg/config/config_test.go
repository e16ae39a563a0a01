package config_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tearframe/pkg/config"
)

var keys = []string{
	"TEARFRAME_LEDGER_PATH", "TEARFRAME_FLOORS_PATH", "TEARFRAME_RECEIPTS_DSN",
	"TEARFRAME_REDIS_ADDR", "TEARFRAME_LOG_LEVEL", "TEARFRAME_LOG_FORMAT",
	"TEARFRAME_OTLP_ENDPOINT", "TEARFRAME_ENV",
	"TEARFRAME_BACKPRESSURE_RPM", "TEARFRAME_BACKPRESSURE_BURST",
}

// TestLoad_Defaults: the process boots with safe local defaults.
func TestLoad_Defaults(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}

	cfg := config.Load()
	assert.Equal(t, "cooling_ledger/ledger.jsonl", cfg.LedgerPath)
	assert.Equal(t, "memory", cfg.ReceiptsDSN)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.FloorsPath)
	assert.False(t, cfg.BackpressureEnabled())
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TEARFRAME_LEDGER_PATH", "/var/lib/tearframe/ledger.jsonl")
	t.Setenv("TEARFRAME_RECEIPTS_DSN", "sqlite:///var/lib/tearframe/seals.db")
	t.Setenv("TEARFRAME_LOG_LEVEL", "debug")
	t.Setenv("TEARFRAME_LOG_FORMAT", "JSON")
	t.Setenv("TEARFRAME_BACKPRESSURE_RPM", "30")
	t.Setenv("TEARFRAME_BACKPRESSURE_BURST", "not-a-number")

	cfg := config.Load()
	assert.Equal(t, "/var/lib/tearframe/ledger.jsonl", cfg.LedgerPath)
	assert.Equal(t, "sqlite:///var/lib/tearframe/seals.db", cfg.ReceiptsDSN)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.BackpressureEnabled())
	assert.Equal(t, 30, cfg.BackpressureRPM)
	assert.Equal(t, 1, cfg.BackpressureBurst, "bad numbers fall back")

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello", "k", "v")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
}
