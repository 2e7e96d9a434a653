// Package runlog writes the human-readable per-run log that is kept next to
// the sweep's results and mirrored to the console.
package runlog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/p-arndt/sweeper/internal/executor"
	"github.com/p-arndt/sweeper/internal/runspec"
)

// Log appends lines to a persistent stream and echoes them to the console.
type Log struct {
	mu         sync.Mutex
	persistent io.Writer
	console    io.Writer
	closer     io.Closer
	now        func() time.Time
}

// New returns a Log. A nil persistent writer means console only.
func New(persistent, console io.Writer) *Log {
	if console == nil {
		console = io.Discard
	}
	return &Log{persistent: persistent, console: console, now: time.Now}
}

// Open appends to the log file at path.
func Open(path string, console io.Writer) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	l := New(f, console)
	l.closer = f
	return l, nil
}

func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Write appends line and a newline to both sinks. A failing persistent sink
// does not stop the console copy.
func (l *Log) Write(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.persistent != nil {
		if _, werr := io.WriteString(l.persistent, line+"\n"); werr != nil {
			err = fmt.Errorf("write run log: %w", werr)
		}
	}
	io.WriteString(l.console, line+"\n")
	return err
}

// Start writes the banner for a run about to execute.
func (l *Log) Start(spec runspec.Spec) error {
	return l.Write(spec.StartMessage(l.now()))
}

// Finish writes the exit code and captured streams, then two blank lines.
func (l *Log) Finish(res *executor.Result) error {
	lines := []string{
		fmt.Sprintf("Exit code : %d", res.ExitCode),
		"StdOut : <<" + Sanitize(res.Stdout) + ">>",
		"StdErr : <<" + Sanitize(res.Stderr) + ">>",
		"",
		"",
	}
	var first error
	for _, line := range lines {
		if err := l.Write(line); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Sanitize drops every run of three newlines to keep the log compact.
func Sanitize(s string) string {
	return strings.ReplaceAll(s, "\n\n\n", "")
}
