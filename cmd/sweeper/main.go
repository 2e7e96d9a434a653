package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var code int
	switch os.Args[1] {
	case "run":
		code = runSweep(args)
	case "mean":
		code = runMean(args)
	case "repair":
		code = runRepair(args)
	case "history":
		code = runHistory(args)
	case "expanders":
		code = runExpanders(args)
	case "-h", "--help", "help":
		printMainUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printMainUsage()
		code = 1
	}
	os.Exit(code)
}

func printMainUsage() {
	fmt.Fprint(os.Stderr, `Usage:
  sweeper run [--config <path>] [--expander <name>] [--log-level <level>] <input>...
  sweeper mean <checkpoint.json|sweep dir>
  sweeper repair <in.json> <out.json>
  sweeper history [--config <path>] [--db <path>] [sweep-id]
  sweeper expanders [--config <path>]

Environment:
  RAM_LIMIT    address-space ceiling, GiB or a size like 512MiB (default 75)
  MAX_COLUMNS  --max_columns passed to the solver (default 400)
  EXTRA_ARGS   extra solver arguments
  SLAVESTOP    --slavestop value, omitted when unset
  FOLDER       where sweep directories are created (default .)
  SAFT         adds a second pass with this --saft value
  PANDORA      build the alternate flavor
  PYRAMID_TO   target resolution for the pyramid expander
`)
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
