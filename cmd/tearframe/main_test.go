package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "ledger.jsonl")
	t.Setenv("TEARFRAME_LEDGER_PATH", ledgerPath)
	t.Setenv("TEARFRAME_RECEIPTS_DSN", "sqlite://"+filepath.Join(dir, "receipts.db"))
	t.Setenv("TEARFRAME_FLOORS_PATH", "")
	t.Setenv("TEARFRAME_REDIS_ADDR", "")
	t.Setenv("TEARFRAME_OTLP_ENDPOINT", "")
	t.Setenv("TEARFRAME_BACKPRESSURE_RPM", "")
	t.Setenv("TEARFRAME_LOG_FORMAT", "json")
	return ledgerPath
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"tearframe"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := run(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "USAGE")

	code, _, stderr = run(t, "bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Unknown command: bogus")

	code, stdout, _ := run(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "resolve")
}

func TestRunCmd_RequiresTask(t *testing.T) {
	setupEnv(t)
	code, _, stderr := run(t, "run")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "--task is required")
}

func TestRunCmd_SealsThenResolves(t *testing.T) {
	setupEnv(t)

	code, stdout, stderr := run(t, "run", "--task", "Provide compassionate response")
	require.Equal(t, exitOK, code, stderr)

	var out struct {
		Status       string   `json:"status"`
		SealID       *string  `json:"seal_id"`
		PlanID       string   `json:"plan_id"`
		ContentHash  string   `json:"content_hash"`
		RouteHistory []string `json:"route_history"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "sealed", out.Status)
	require.NotNil(t, out.SealID)
	assert.Equal(t, "integration", out.RouteHistory[len(out.RouteHistory)-1])

	code, stdout, stderr = run(t, "resolve", "--receipt", *out.SealID)
	require.Equal(t, exitOK, code, stderr)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, out.ContentHash, rec["hash"])

	code, stdout, _ = run(t, "recent", "--agent", "integration", "-n", "3")
	require.Equal(t, exitOK, code)
	var recent []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &recent))
	assert.Len(t, recent, 1)

	code, stdout, _ = run(t, "verify")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, `"records": 2`)
}

func TestRunCmd_PauseExitCode(t *testing.T) {
	ledgerPath := setupEnv(t)

	code, stdout, _ := run(t, "run", "--task", "Plan harm", "--seed", "We plan harm and violence.")
	assert.Equal(t, exitPause, code)

	var report pauseReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "pause", report.Status)
	assert.Equal(t, "SEEDED_DRAFT_REJECTED", string(report.Kind))

	_, err := os.Stat(ledgerPath)
	assert.True(t, os.IsNotExist(err))
}

func TestResolveCmd_Unknown(t *testing.T) {
	setupEnv(t)
	code, _, stderr := run(t, "resolve", "--receipt", "nope")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "not found")
}

func TestVerifyCmd_ReportsDamage(t *testing.T) {
	ledgerPath := setupEnv(t)
	require.NoError(t, os.WriteFile(ledgerPath, []byte("{not json\n"), 0o600))

	code, stdout, _ := run(t, "verify")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "malformed")
}

func TestFloorsCmd(t *testing.T) {
	setupEnv(t)
	code, stdout, _ := run(t, "floors")
	require.Equal(t, exitOK, code)

	var doc struct {
		Floors map[string]float64 `json:"floors"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, 0.95, doc.Floors["psi_min"])
	assert.Equal(t, 0.99, doc.Floors["truth"])
}

func TestQuorumCmd(t *testing.T) {
	setupEnv(t)

	code, _, _ := run(t, "quorum", "--human", "0.97", "--ai", "0.98", "--earth", "0.96")
	assert.Equal(t, exitOK, code)

	code, stdout, _ := run(t, "quorum", "--human", "0.97", "--ai", "0.5", "--earth", "0.96")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, `"met": false`)

	code, _, _ = run(t, "quorum", "--human", "0.6", "--ai", "0.6", "--earth", "0.6", "--threshold", "0.5")
	assert.Equal(t, exitOK, code)
}
