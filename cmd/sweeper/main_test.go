package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/p-arndt/sweeper/internal/checkpoint"
	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/p-arndt/sweeper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := stdout
	stdout = buf
	t.Cleanup(func() { stdout = prev })
	return buf
}

func trial(input string, user float64) runspec.Spec {
	return runspec.New("EXEC", input, "400", runspec.NoSaft, nil, "").
		DeriveOutputFile("out").
		WithStats(runspec.Stats{UserTime: user, SystemTime: 1})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestMeanCommand(t *testing.T) {
	out := captureStdout(t)
	path := filepath.Join(t.TempDir(), "Data.json")
	require.NoError(t, checkpoint.Write(path, []runspec.Spec{
		trial("./configs/a_b.csv", 10),
		trial("./configs/a_b.csv", 20),
		trial("./configs/a_b.csv", 30),
	}))

	assert.Equal(t, 0, runMean([]string{path}))
	assert.Contains(t, out.String(), "a-b.csv")
	assert.Contains(t, out.String(), "20.000")
	assert.Regexp(t, `\s3\s+20\.000\s+1\.000`, out.String())
}

func TestMeanCommandSweepDir(t *testing.T) {
	out := captureStdout(t)
	dir := t.TempDir()
	_, err := checkpoint.New(dir).Save([]runspec.Spec{trial("a.csv", 4)})
	require.NoError(t, err)

	assert.Equal(t, 0, runMean([]string{dir}))
	assert.Contains(t, out.String(), "4.000")
}

func TestMeanCommandErrors(t *testing.T) {
	captureStdout(t)
	assert.Equal(t, 1, runMean(nil))
	assert.Equal(t, 1, runMean([]string{filepath.Join(t.TempDir(), "missing.json")}))
}

func TestRepairCommand(t *testing.T) {
	out := captureStdout(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.json")
	dst := filepath.Join(dir, "out.json")
	require.NoError(t, checkpoint.Write(in, []runspec.Spec{
		trial("a.csv", 1), trial("a.csv", 3), trial("a.csv", 6),
	}))

	assert.Equal(t, 0, runRepair([]string{in, dst}))
	assert.Contains(t, out.String(), "repaired 3 runs")

	got, err := checkpoint.Load(dst)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Stats.UserTime)
	assert.Equal(t, 2.0, got[1].Stats.UserTime)
	assert.Equal(t, 3.0, got[2].Stats.UserTime)
	assert.Equal(t, 0.0, got[1].Stats.SystemTime)
}

func TestRepairCommandUsage(t *testing.T) {
	assert.Equal(t, 1, runRepair([]string{"only-one.json"}))
}

func TestHistoryCommand(t *testing.T) {
	out := captureStdout(t)
	dbPath := filepath.Join(t.TempDir(), "sweeper.db")

	st, err := store.New(dbPath, 0)
	require.NoError(t, err)
	require.NoError(t, st.CreateSweep(&store.Sweep{
		ID: "sweep-1", Folder: ".", OutputDir: "./run-dir", Expander: "identity", StartedAt: time.Now(),
	}))
	for i, u := range []float64{2, 4} {
		r := trial("a.csv", u)
		require.NoError(t, st.RecordRun(&store.Run{
			SweepID: "sweep-1", Seq: i, Spec: r, Command: r.Command(), CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, st.FinishSweep("sweep-1", store.StatusFinished, time.Now()))
	require.NoError(t, st.Close())

	assert.Equal(t, 0, runHistory([]string{"--db", dbPath}))
	assert.Contains(t, out.String(), "sweep-1")
	assert.Contains(t, out.String(), "finished")

	out.Reset()
	assert.Equal(t, 0, runHistory([]string{"--db", dbPath, "sweep-1"}))
	assert.Contains(t, out.String(), "3.000")

	assert.Equal(t, 1, runHistory([]string{"--db", dbPath, "nope"}))
}

func TestHistoryCommandMissingDB(t *testing.T) {
	assert.Equal(t, 1, runHistory([]string{"--db", filepath.Join(t.TempDir(), "none.db")}))
}

func TestExpandersCommand(t *testing.T) {
	out := captureStdout(t)
	t.Chdir(t.TempDir())

	assert.Equal(t, 0, runExpanders(nil))
	for _, name := range []string{"identity", "slaves", "pyramid", "tangent-steps"} {
		assert.Contains(t, out.String(), name)
	}
}
