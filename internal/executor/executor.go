// Package executor runs solver invocations as child processes and measures
// the CPU time they consume.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/p-arndt/sweeper/internal/runspec"
)

// Result is the outcome of one run. A non-zero ExitCode is not an error.
type Result struct {
	Spec      runspec.Spec  `json:"spec"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Runner executes a spec and returns it with its stats filled.
type Runner interface {
	Run(ctx context.Context, spec runspec.Spec) (*Result, error)
}

// Usage is a cumulative CPU reading.
type Usage struct {
	User   time.Duration
	System time.Duration
}

// Sub returns u - prev.
func (u Usage) Sub(prev Usage) Usage {
	return Usage{User: u.User - prev.User, System: u.System - prev.System}
}

// UsageSampler reads cumulative CPU usage of all waited-for children.
type UsageSampler interface {
	Sample() (Usage, error)
}

type Options struct {
	Shell string
	// TTYStdout gives the child a terminal for stdout so line-buffered
	// solvers flush progress. Output is still captured.
	TTYStdout bool
	// Live receives stdout as it is produced in TTY mode.
	Live    io.Writer
	Sampler UsageSampler
}

// Executor spawns runs one at a time. The stats of a run are the difference
// between two cumulative child-usage readings, which is only meaningful when
// no other child exits in between, so Run calls are serialized.
type Executor struct {
	mu      sync.Mutex
	shell   string
	tty     bool
	live    io.Writer
	sampler UsageSampler
}

func New(opts Options) *Executor {
	shell := opts.Shell
	if shell == "" {
		shell = findShell()
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = ChildUsage{}
	}
	return &Executor{
		shell:   shell,
		tty:     opts.TTYStdout,
		live:    opts.Live,
		sampler: sampler,
	}
}

// Run blocks until the child exits. There is no timeout: a hung solver
// blocks the caller. ctx is only checked before spawning.
func (e *Executor) Run(ctx context.Context, spec runspec.Spec) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cmd := exec.Command(e.shell, "-c", spec.Command())
	cmd.Env = append(os.Environ(), spec.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr

	before, err := e.sampler.Sample()
	if err != nil {
		return nil, fmt.Errorf("sample usage: %w", err)
	}

	start := time.Now()
	var waitErr error
	if e.tty {
		waitErr, err = runWithTTY(cmd, &stdout, e.live)
	} else {
		cmd.Stdout = &stdout
		if err = cmd.Start(); err == nil {
			waitErr = cmd.Wait()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("exec start: %w", err)
	}
	elapsed := time.Since(start)

	after, err := e.sampler.Sample()
	if err != nil {
		return nil, fmt.Errorf("sample usage: %w", err)
	}
	delta := after.Sub(before)

	res := &Result{
		Spec: spec.WithStats(runspec.Stats{
			UserTime:   delta.User.Seconds(),
			SystemTime: delta.System.Seconds(),
		}),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		StartedAt: start,
		Duration:  elapsed,
	}
	if e.tty {
		res.Stdout = normalizeLineEndings(res.Stdout)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			res.Stderr += "\nexec error: " + waitErr.Error()
		}
	}
	return res, nil
}

// findShell returns the host shell used to interpret run commands.
func findShell() string {
	for _, sh := range []string{"/bin/sh", "/bin/bash"} {
		if _, err := os.Stat(sh); err == nil {
			return sh
		}
	}
	return "sh"
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "")
}
