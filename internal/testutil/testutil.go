package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/p-arndt/sweeper/internal/config"
	"github.com/p-arndt/sweeper/internal/store"
)

// TestConfig returns a Config rooted at folder with the build step skipped.
func TestConfig(folder string) *config.Config {
	return &config.Config{
		RAMLimitBytes: config.GiB(config.DefaultRAMLimitGiB),
		MaxColumns:    "400",
		Folder:        folder,
		DBPath:        ":memory:",
		Expander:      "identity",
		Build: config.BuildConfig{
			Command:      "true",
			Artifact:     filepath.Join(folder, "solver"),
			RetargetTool: "true",
			Skip:         true,
		},
		Exec: config.ExecConfig{
			Shell: "/bin/sh",
		},
	}
}

// NewTestStore creates an in-memory SQLite store for testing.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:", 0)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// WriteFakeSolver writes an executable shell script standing in for the
// solver binary and returns its path.
func WriteFakeSolver(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "solver")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake solver: %v", err)
	}
	return path
}
