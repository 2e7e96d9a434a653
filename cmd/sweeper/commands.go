package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/p-arndt/sweeper/internal/aggregate"
	"github.com/p-arndt/sweeper/internal/checkpoint"
	"github.com/p-arndt/sweeper/internal/config"
	"github.com/p-arndt/sweeper/internal/executor"
	"github.com/p-arndt/sweeper/internal/expand"
	"github.com/p-arndt/sweeper/internal/governor"
	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/p-arndt/sweeper/internal/store"
	"github.com/p-arndt/sweeper/internal/sweep"
)

// stdout receives tables and reports; replaced in tests.
var stdout io.Writer = os.Stdout

// loadConfig falls back to ./sweeper.yaml when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat("sweeper.yaml"); err == nil {
			path = "sweeper.yaml"
		}
	}
	return config.Load(path)
}

func runSweep(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "path to sweeper.yaml")
	expander := fs.String("expander", "", "variant expander (see 'sweeper expanders')")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	noDB := fs.Bool("no-db", false, "do not record the sweep in the results database")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	logger := newLogger(*logLevel)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	if *expander != "" {
		cfg.Expander = *expander
	}

	// Children inherit the ceiling, so it must be in place before the build
	// or any solver is spawned.
	limit, err := governor.Install(cfg.RAMLimitBytes)
	if err != nil {
		logger.Error("install memory limit", "limit", cfg.RAMLimitString(), "error", err)
		return 1
	}
	fmt.Fprintln(stdout, limit.String())

	registry, err := expand.Presets(cfg, logger)
	if err != nil {
		logger.Error("load expanders", "error", err)
		return 1
	}
	plan, err := registry.Lookup(cfg.Expander)
	if err != nil {
		logger.Error("select expander", "error", err)
		return 1
	}

	deps := sweep.Deps{
		Runner: executor.New(executor.Options{
			Shell:     cfg.Exec.Shell,
			TTYStdout: cfg.Exec.TTYStdout,
			Live:      os.Stdout,
		}),
		Plan:   plan,
		Logger: logger,
	}
	if !*noDB {
		st, err := openStore(cfg.DBPath)
		if err != nil {
			logger.Warn("results database unavailable, continuing without it", "path", cfg.DBPath, "error", err)
		} else {
			defer st.Close()
			deps.Results = st
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := sweep.New(cfg, deps)
	runs, err := driver.Run(ctx, fs.Args())
	if err != nil {
		logger.Error("sweep", "dir", driver.OutputDir(), "runs", len(runs), "error", err)
	}
	if len(runs) > 0 {
		if neg := aggregate.Negative(runs); len(neg) > 0 {
			logger.Warn("runs with negative statistics", "count", len(neg))
		}
		printMeanTable(stdout, runs)
	}
	if err != nil {
		return 1
	}
	return 0
}

func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return store.New(path, 0)
}

func runMean(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: sweeper mean <checkpoint.json|sweep dir>")
		return 1
	}
	runs, err := loadRuns(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "mean: %v\n", err)
		return 1
	}
	printMeanTable(stdout, runs)
	return 0
}

// loadRuns reads a checkpoint file, or the newest checkpoint of a sweep dir.
func loadRuns(path string) ([]runspec.Spec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		_, runs, err := checkpoint.Latest(path)
		return runs, err
	}
	return checkpoint.Load(path)
}

func runRepair(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: sweeper repair <in.json> <out.json>")
		return 1
	}
	runs, err := checkpoint.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "repair: %v\n", err)
		return 1
	}
	repaired := aggregate.Repair(runs)
	if err := checkpoint.Write(args[1], repaired); err != nil {
		fmt.Fprintf(os.Stderr, "repair: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "repaired %d runs -> %s\n", len(repaired), args[1])
	if neg := aggregate.Negative(repaired); len(neg) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d runs have negative statistics\n", len(neg))
		for _, r := range neg {
			fmt.Fprintf(os.Stderr, "  %s user=%.3f system=%.3f\n", r.OutputFile, r.Stats.UserTime, r.Stats.SystemTime)
		}
	}
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "path to sweeper.yaml")
	dbPath := fs.String("db", "", "results database (default from config)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	path := *dbPath
	if path == "" {
		cfg, err := loadConfig(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "history: load config: %v\n", err)
			return 1
		}
		path = cfg.DBPath
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "history: no results database at %s\n", path)
		return 1
	}

	st, err := store.New(path, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		return 1
	}
	defer st.Close()

	if fs.NArg() == 0 {
		sweeps, err := st.ListSweeps()
		if err != nil {
			fmt.Fprintf(os.Stderr, "history: %v\n", err)
			return 1
		}
		printSweepTable(stdout, sweeps)
		return 0
	}

	id := fs.Arg(0)
	sw, err := st.GetSweep(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		return 1
	}
	if sw == nil {
		fmt.Fprintf(os.Stderr, "history: sweep %s not found\n", id)
		return 1
	}
	runs, err := st.Specs(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "sweep %s (%s, %s) in %s\n\n", sw.ID, sw.Expander, sw.Status, sw.OutputDir)
	printMeanTable(stdout, runs)
	return 0
}

func runExpanders(args []string) int {
	fs := flag.NewFlagSet("expanders", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	cfgPath := fs.String("config", "", "path to sweeper.yaml")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expanders: load config: %v\n", err)
		return 1
	}
	registry, err := expand.Presets(cfg, newLogger("error"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "expanders: %v\n", err)
		return 1
	}
	for _, p := range registry.Plans() {
		fmt.Fprintf(stdout, "%-16s %s\n", p.Name, p.Description)
	}
	return 0
}
