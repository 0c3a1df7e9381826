package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/service"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	content := fmt.Sprintf(`storage:
  driver: file
  data_dir: %s
backup:
  driver: local
  dir: %s
legacy:
  dir: %s
log:
  level: error
`, filepath.Join(root, "data"), filepath.Join(root, "backups"), filepath.Join(root, "legacy"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte(content), 0o600))
	return root
}

func run(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	shutdown()
	return out.Bytes(), err
}

func TestWorkoutctl_SessionLifecycle(t *testing.T) {
	dir := writeTestConfig(t)
	metricsPath := filepath.Join(dir, "workout.prom")

	out, err := run(t, "--config", dir, "start", "u1", "Push")
	require.NoError(t, err)
	var session domain.UnifiedWorkoutSession
	require.NoError(t, json.Unmarshal(out, &session))
	assert.Equal(t, domain.SessionActive, session.SessionType)

	out, err = run(t, "--config", dir, "log-set", "u1", session.ID, "bench",
		"--name", "Bench Press", "--weight", "100", "--reps", "10")
	require.NoError(t, err)
	var logged service.LogSetResult
	require.NoError(t, json.Unmarshal(out, &logged))
	assert.Equal(t, 1000.0, logged.TotalVolume)

	out, err = run(t, "--config", dir, "--metrics-file", metricsPath, "complete", "u1", session.ID, "--rating", "4")
	require.NoError(t, err)
	var summary service.CompletionSummary
	require.NoError(t, json.Unmarshal(out, &summary))
	assert.Equal(t, session.ID, summary.SessionID)
	assert.Equal(t, 1, summary.SetCount)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "workout_engine_sessions_total")

	out, err = run(t, "--config", dir, "summary", "u1")
	require.NoError(t, err)
	var agg domain.Aggregations
	require.NoError(t, json.Unmarshal(out, &agg))
	assert.Equal(t, 1, agg.TotalWorkouts)
	assert.Equal(t, 1000.0, agg.TotalVolume)

	out, err = run(t, "--config", dir, "sessions", "u1", "--type", "completed")
	require.NoError(t, err)
	var sessions []domain.UnifiedWorkoutSession
	require.NoError(t, json.Unmarshal(out, &sessions))
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].Rating)
	assert.Equal(t, 4, *sessions[0].Rating)

	out, err = run(t, "--config", dir, "snapshots", "u1")
	require.NoError(t, err)
	var keys []string
	require.NoError(t, json.Unmarshal(out, &keys))
	assert.NotEmpty(t, keys)
}

func TestWorkoutctl_Errors(t *testing.T) {
	dir := writeTestConfig(t)

	_, err := run(t, "--config", dir, "active", "../u1")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = run(t, "--config", dir, "complete", "u1", "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = run(t, "--config", dir, "sessions", "u1", "--from", "yesterday")
	require.Error(t, err)
}

func TestParseDay(t *testing.T) {
	day, err := parseDay("")
	require.NoError(t, err)
	assert.Nil(t, day)

	day, err = parseDay("2026-03-10")
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.Equal(t, 10, day.Day())

	_, err = parseDay("10/03/2026")
	require.Error(t, err)
}
