package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/p-arndt/sweeper/internal/executor"
	"github.com/p-arndt/sweeper/internal/runspec"
)

var ErrNoArtifact = errors.New("no cgdump artifact found")

// Strategy executes one variant. It may call the runner several times and
// perform its own I/O in between; the returned result is the one the sweep
// records. Strategies that chain executions are not idempotent and must not
// be retried.
type Strategy interface {
	Execute(ctx context.Context, runner executor.Runner, spec runspec.Spec) (*executor.Result, error)
}

// Default runs the spec once.
type Default struct{}

func (Default) Execute(ctx context.Context, runner executor.Runner, spec runspec.Spec) (*executor.Result, error) {
	return runner.Run(ctx, spec)
}

var DefaultTangentSteps = []string{"0.1", "0.2", "0.3", "0.4", "0.5", "0.75", "1", "2", "5"}

// TangentSteps runs the spec once per step with TANGENT_STEP set in the
// child environment. The last execution is recorded.
type TangentSteps struct {
	Steps []string
}

func (ts TangentSteps) Execute(ctx context.Context, runner executor.Runner, spec runspec.Spec) (*executor.Result, error) {
	if len(ts.Steps) == 0 {
		return runner.Run(ctx, spec)
	}
	var last *executor.Result
	for _, step := range ts.Steps {
		s := spec.WithEnv("TANGENT_STEP", step).WithOutputFile(spec.OutputFile + ".tangent_step_" + step)
		res, err := runner.Run(ctx, s)
		if err != nil {
			return last, fmt.Errorf("tangent step %s: %w", step, err)
		}
		last = res
	}
	return last, nil
}

var cgdumpIteration = regexp.MustCompile(`_([0-9]+)\.cgdump$`)

// Pyramid runs the spec, retargets the newest column-generation dump it
// produced to a new resolution, and runs again warm-started from the
// retargeted dump. The chained run is recorded.
type Pyramid struct {
	RetargetTool string
	To           string
	Shell        string
	Logger       *slog.Logger
}

func (p *Pyramid) Execute(ctx context.Context, runner executor.Runner, spec runspec.Spec) (*executor.Result, error) {
	if p.To == "" {
		return nil, errors.New("pyramid: retarget resolution (PYRAMID_TO) not set")
	}

	first, err := runner.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	dump, err := LatestCGDump(spec.OutputFile)
	if err != nil {
		return first, err
	}

	if err := p.retarget(ctx, dump); err != nil {
		return first, err
	}

	chained := spec.
		WithInputFile("").
		WithExtraArgs(" --slave_warm_start " + dump + ".retargeted.cgdump" + spec.ExtraArgs).
		WithOutputSuffix(".pyramid")
	return runner.Run(ctx, chained)
}

func (p *Pyramid) retarget(ctx context.Context, dump string) error {
	command := p.RetargetTool + " --to " + p.To + " " + dump
	if p.Logger != nil {
		p.Logger.Info("retargeting cgdump", "command", command)
	}
	shell := p.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	out, err := exec.CommandContext(ctx, shell, "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("retarget %s: %w\n%s", dump, err, out)
	}
	return nil
}

// LatestCGDump returns the dump written by the run with the given output
// file that carries the highest iteration number. Warm-start dumps are
// ignored.
func LatestCGDump(outputFile string) (string, error) {
	dir := filepath.Dir(outputFile)
	prefix := filepath.Base(outputFile)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}

	type candidate struct {
		iter int
		path string
	}
	var found []candidate
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, "warm.cgdump") {
			continue
		}
		m := cgdumpIteration.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		iter, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, candidate{iter, filepath.Join(dir, name)})
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoArtifact, outputFile)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].iter > found[j].iter })
	return found[0].path, nil
}
