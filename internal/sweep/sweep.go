// Package sweep drives a benchmark sweep: it builds the solver, expands every
// input file into run variants, executes them one after the other and
// persists the growing result list after each run.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/p-arndt/sweeper/internal/checkpoint"
	"github.com/p-arndt/sweeper/internal/config"
	"github.com/p-arndt/sweeper/internal/executor"
	"github.com/p-arndt/sweeper/internal/expand"
	"github.com/p-arndt/sweeper/internal/runlog"
	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/p-arndt/sweeper/internal/store"
)

var (
	ErrNoInputFiles = errors.New("no input files")
	ErrBuildFailed  = errors.New("build failed")
)

const (
	execName    = "EXEC"
	timeLogName = "time"
)

type Deps struct {
	Runner  executor.Runner
	Plan    expand.Plan
	Builder Builder     // nil uses the configured build command
	Results ResultStore // optional
	Console io.Writer   // run log mirror, defaults to stdout
	Logger  *slog.Logger

	// Overridable for tests.
	Now      func() time.Time
	CommitID func(ctx context.Context) string
}

type Driver struct {
	cfg     *config.Config
	runner  executor.Runner
	plan    expand.Plan
	builder Builder
	results ResultStore
	console io.Writer
	logger  *slog.Logger
	now     func() time.Time
	commit  func(ctx context.Context) string

	sweepID   string
	outputDir string
	recording bool
}

func New(cfg *config.Config, deps Deps) *Driver {
	d := &Driver{
		cfg:     cfg,
		runner:  deps.Runner,
		plan:    deps.Plan,
		builder: deps.Builder,
		results: deps.Results,
		console: deps.Console,
		logger:  deps.Logger,
		now:     deps.Now,
		commit:  deps.CommitID,
	}
	if d.runner == nil {
		d.runner = executor.New(executor.Options{Shell: cfg.Exec.Shell, TTYStdout: cfg.Exec.TTYStdout})
	}
	if d.plan.Expander == nil {
		d.plan.Expander = expand.Identity
	}
	if d.plan.Strategy == nil {
		d.plan.Strategy = expand.Default{}
	}
	if d.plan.Name == "" {
		d.plan.Name = "identity"
	}
	if d.builder == nil {
		d.builder = ShellBuilder{Shell: cfg.Exec.Shell, Command: cfg.Build.Command}
	}
	if d.console == nil {
		d.console = os.Stdout
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.commit == nil {
		d.commit = commitID
	}
	return d
}

// OutputDir is the directory of the last sweep started by Run.
func (d *Driver) OutputDir() string { return d.outputDir }

// SweepID is the results database ID of the last sweep started by Run.
func (d *Driver) SweepID() string { return d.sweepID }

// dirName is "<rfc3339 seconds with the space dashed>-<git HEAD>".
func (d *Driver) dirName(ctx context.Context) (string, string) {
	stamp := d.now().Format("2006-01-02-15:04:05-07:00")
	commit := d.commit(ctx)
	if commit == "" {
		return stamp, ""
	}
	return stamp + "-" + commit, commit
}

// Run executes the sweep over files and returns every executed run in order.
// Failing checkpoint or database writes are logged and do not stop the sweep.
// ctx is checked between runs; a started run is never interrupted.
func (d *Driver) Run(ctx context.Context, files []string) ([]runspec.Spec, error) {
	if len(files) == 0 {
		return nil, ErrNoInputFiles
	}

	name, commit := d.dirName(ctx)
	d.outputDir = filepath.Join(d.cfg.Folder, name)
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	if err := d.build(ctx); err != nil {
		return nil, err
	}

	execPath := filepath.Join(d.outputDir, execName)
	if err := copyExecutable(d.cfg.Build.Artifact, execPath); err != nil {
		return nil, err
	}

	timelog, err := runlog.Open(filepath.Join(d.outputDir, timeLogName), d.console)
	if err != nil {
		return nil, err
	}
	defer timelog.Close()

	d.logger.Info("using directory", "dir", d.outputDir, "expander", d.plan.Name)
	d.startSweep(commit)

	runs, runErr := d.sweep(ctx, timelog, execPath, files)

	if path, err := checkpoint.New(d.outputDir).SaveFinal(runs); err != nil {
		d.logger.Error("final checkpoint", "path", path, "error", err)
	}

	status := store.StatusFinished
	if runErr != nil {
		status = store.StatusFailed
	}
	d.finishSweep(status)

	d.logger.Info("sweep complete", "runs", len(runs), "dir", d.outputDir)
	return runs, runErr
}

func (d *Driver) build(ctx context.Context) error {
	if d.cfg.Build.Skip {
		d.logger.Info("build skipped")
		return nil
	}
	d.logger.Info("executing build", "command", d.cfg.Build.Command)
	out, err := d.builder.Build(ctx)
	if err != nil {
		fmt.Fprint(d.console, out)
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	d.logger.Info("build successful")
	return nil
}

func (d *Driver) sweep(ctx context.Context, timelog *runlog.Log, execPath string, files []string) ([]runspec.Spec, error) {
	runs := make([]runspec.Spec, 0, len(files))
	checkpoints := checkpoint.New(d.outputDir)
	runner := &loggingRunner{inner: d.runner, log: timelog, logger: d.logger}

	for _, input := range files {
		for _, saft := range d.cfg.SaftValues() {
			base := runspec.New(execPath, input, d.cfg.MaxColumns, saft, d.cfg.SlaveStop, d.cfg.ExtraArgs).
				DeriveOutputFile(d.outputDir)

			variants := d.plan.Expander(base)
			if len(variants) == 0 {
				d.logger.Warn("expander produced no variants", "input", input, "saft", saft, "expander", d.plan.Name)
				continue
			}

			for _, variant := range variants {
				if err := ctx.Err(); err != nil {
					return runs, err
				}

				res, err := d.plan.Strategy.Execute(ctx, runner, variant)
				if err != nil {
					if res == nil {
						d.logger.Error("run failed", "output_file", variant.OutputFile, "error", err)
						continue
					}
					d.logger.Warn("run finished with error", "output_file", variant.OutputFile, "error", err)
				}

				executed := res.Spec
				if executed.Stats.Negative() {
					d.logger.Warn("negative run statistics",
						"output_file", executed.OutputFile,
						"user_time", executed.Stats.UserTime,
						"system_time", executed.Stats.SystemTime)
				}

				runs = append(runs, executed)

				if path, err := checkpoints.Save(runs); err != nil {
					d.logger.Error("checkpoint", "path", path, "error", err)
				}
				d.recordRun(len(runs)-1, res)
			}
		}
	}
	return runs, nil
}

func (d *Driver) startSweep(commit string) {
	d.sweepID = uuid.NewString()
	d.recording = false
	if d.results == nil {
		return
	}
	err := d.results.CreateSweep(&store.Sweep{
		ID:        d.sweepID,
		Folder:    d.cfg.Folder,
		OutputDir: d.outputDir,
		CommitID:  commit,
		Expander:  d.plan.Name,
		StartedAt: d.now(),
	})
	if err != nil {
		d.logger.Error("record sweep", "sweep_id", d.sweepID, "error", err)
		return
	}
	d.recording = true
}

func (d *Driver) recordRun(seq int, res *executor.Result) {
	if !d.recording {
		return
	}
	err := d.results.RecordRun(&store.Run{
		SweepID:    d.sweepID,
		Seq:        seq,
		Spec:       res.Spec,
		Command:    res.Spec.Command(),
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  d.now(),
	})
	if err != nil {
		d.logger.Error("record run", "sweep_id", d.sweepID, "seq", seq, "error", err)
	}
}

func (d *Driver) finishSweep(status string) {
	if !d.recording {
		return
	}
	if err := d.results.FinishSweep(d.sweepID, status, d.now()); err != nil {
		d.logger.Error("finish sweep", "sweep_id", d.sweepID, "error", err)
	}
}

// loggingRunner writes every execution a strategy performs to the run log.
type loggingRunner struct {
	inner  executor.Runner
	log    *runlog.Log
	logger *slog.Logger
}

func (r *loggingRunner) Run(ctx context.Context, spec runspec.Spec) (*executor.Result, error) {
	if err := r.log.Start(spec); err != nil {
		r.logger.Error("run log", "error", err)
	}
	res, err := r.inner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := r.log.Finish(res); err != nil {
		r.logger.Error("run log", "error", err)
	}
	return res, nil
}
