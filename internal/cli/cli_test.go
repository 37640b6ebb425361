package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/lifeaxes/internal/store"
)

const cliCatalog = `
axes:
  - key: body
    label: Corpo & Movimento
    evidence:
      habits: [corrida]
      journal: [treino]
    minimum_signals:
      habit_days: 10
      months_active: 2
achievements:
  - id: ten_runs
    axis_key: body
    title: Ten runs
    signal: activity_count
    threshold: 10
`

// setup points the CLI at a fresh database and catalog.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("LIFEAXES_URL", "http://127.0.0.1:1")
	t.Setenv("LIFEAXES_PIPELINE_TIMEZONE", "UTC")
	t.Setenv("LIFEAXES_LOG_LEVEL", "error")

	cat := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(cat, []byte(cliCatalog), 0o644))
	t.Setenv("LIFEAXES_CATALOG_PATH", cat)

	userID, windowFlag, jsonOut = "", "", false
	runAll, runDry, runRemote = false, false, ""
	axesStatus, configPath, verbose = "", "", false
	feedbackHistory, feedbackContext, feedbackLimit = false, "", store.FeedbackHistoryLimit
	dbOverride = filepath.Join(dir, "lifeaxes.db")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--db", dbOverride))
	err := rootCmd.Execute()
	return out.String(), err
}

// writeExport writes twelve run days over the last ~45 days.
func writeExport(t *testing.T, dir string) string {
	t.Helper()
	now := time.Now().UTC()
	var b strings.Builder
	for i := 0; i < 12; i++ {
		at := now.AddDate(0, 0, -1-4*i)
		fmt.Fprintf(&b, `{"id":"run-%d","type":"habit","subtype":"corrida","timestamp":%q}`+"\n", i, at.Format(time.RFC3339))
	}
	b.WriteString("garbage\n")
	path := filepath.Join(dir, "export.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	setup(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lifeaxes dev")
}

func TestImportRunAndRead(t *testing.T) {
	dir := setup(t)
	export := writeExport(t, dir)

	out, err := execute(t, "import", export, "-u", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 12 of 12 activities (1 malformed, 0 for other users)")

	out, err = execute(t, "run", "-u", "ana", "-w", "90d")
	require.NoError(t, err)
	assert.Contains(t, out, "Corpo & Movimento")
	assert.Contains(t, out, "achievement completed: ten_runs")

	out, err = execute(t, "axes", "-u", "ana", "-w", "90d")
	require.NoError(t, err)
	assert.Contains(t, out, "Corpo & Movimento")

	out, err = execute(t, "axes", "-u", "ana", "-w", "7d")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored axes for ana (7d)")

	out, err = execute(t, "achievements", "-u", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] Ten runs")
}

func TestFeedbackHistory(t *testing.T) {
	dir := setup(t)
	_, err := execute(t, "import", writeExport(t, dir), "-u", "ana")
	require.NoError(t, err)

	out, err := execute(t, "feedback", "-u", "ana", "--history")
	require.NoError(t, err)
	assert.Contains(t, out, "No feedback recorded for ana.")

	_, err = execute(t, "run", "-u", "ana", "-w", "90d")
	require.NoError(t, err)
	out, err = execute(t, "feedback", "-u", "ana", "-w", "90d", "--history=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Corpo & Movimento")

	out, err = execute(t, "feedback", "-u", "ana", "--history")
	require.NoError(t, err)
	assert.Contains(t, out, "axis_summary")
	assert.Contains(t, out, "achievement_unlock")
	assert.Contains(t, out, "Achievement reached: Ten runs.")

	out, err = execute(t, "feedback", "-u", "ana", "--history", "--context", "achievement_unlock", "--json")
	require.NoError(t, err)
	var entries []store.FeedbackEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, store.FeedbackAchievementUnlock, entries[0].Context)

	_, err = execute(t, "feedback", "-u", "ana", "--history", "--context", "weekly_rant")
	assert.ErrorContains(t, err, "unknown feedback context")
}

func TestRunRejectsBadInput(t *testing.T) {
	setup(t)
	_, err := execute(t, "run", "-u", "ana", "-w", "2w")
	assert.ErrorContains(t, err, "unknown window")

	_, err = execute(t, "run", "-w", "90d")
	assert.ErrorContains(t, err, "--user or --all")
}

func TestDeclareCompareHistory(t *testing.T) {
	dir := setup(t)
	_, err := execute(t, "import", writeExport(t, dir), "-u", "ana")
	require.NoError(t, err)

	_, err = execute(t, "declare", "bio", "-u", "ana", "Corro", "cedo.")
	require.NoError(t, err)
	_, err = execute(t, "declare", "add", "-u", "ana", "Corpo")
	require.NoError(t, err)
	out, err := execute(t, "declare", "add", "-u", "ana", "Pintora")
	require.NoError(t, err)
	assert.Contains(t, out, "labels: Corpo, Pintora")

	_, err = execute(t, "declare", "add", "-u", "ana", "corpo")
	assert.ErrorContains(t, err, "already declared")

	out, err = execute(t, "compare", "-u", "ana", "-w", "90d")
	require.NoError(t, err)
	assert.Contains(t, out, "= Corpo  ~  Corpo & Movimento")
	assert.Contains(t, out, "- Pintora: not in data")

	out, err = execute(t, "history", "-u", "ana")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Corro cedo."))
}

func TestLogFallsBackToLocal(t *testing.T) {
	setup(t)
	out, err := execute(t, "log", "-u", "ana", "--type", "Journal", "--text", "treino leve")
	require.NoError(t, err)
	assert.Contains(t, out, "logged 1 activity to")

	_, err = execute(t, "log", "-u", "ana", "--type", "mood")
	assert.ErrorContains(t, err, "--type must be")
}

func TestCatalogCommands(t *testing.T) {
	dir := setup(t)
	out, err := execute(t, "catalog", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "key: body")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("axes:\n  - key: a\n    label: A\n  - key: a\n    label: B\n"), 0o644))
	_, err = execute(t, "catalog", "validate", bad)
	assert.ErrorContains(t, err, "duplicate key")

	out, err = execute(t, "catalog", "validate", filepath.Join(dir, "catalog.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 1 axes, 1 achievements")
}
