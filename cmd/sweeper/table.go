package main

import (
	"fmt"
	"io"

	"github.com/p-arndt/sweeper/internal/aggregate"
	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/p-arndt/sweeper/internal/store"
)

const meanRow = "%-32s %-6s %-8s %-30s %3s %10s %10s\n"

func printMeanTable(w io.Writer, runs []runspec.Spec) {
	groups := aggregate.ByKey(runs)
	means := aggregate.Mean(runs)

	fmt.Fprintf(w, meanRow, "RUN", "SAFT", "COLUMNS", "EXTRA ARGS", "N", "USER (s)", "SYSTEM (s)")
	fmt.Fprintf(w, meanRow, "---", "----", "-------", "----------", "-", "--------", "----------")
	for i, m := range means {
		fmt.Fprintf(w, meanRow,
			m.RunName(), m.Saft, m.MaxColumns, m.ExtraArgs,
			fmt.Sprint(len(groups[i].Runs)),
			fmt.Sprintf("%.3f", m.Stats.UserTime),
			fmt.Sprintf("%.3f", m.Stats.SystemTime))
	}
}

func printSweepTable(w io.Writer, sweeps []*store.Sweep) {
	fmt.Fprintf(w, "%-36s %-19s %-9s %4s %-14s %s\n", "SWEEP ID", "STARTED", "STATUS", "RUNS", "EXPANDER", "DIR")
	fmt.Fprintf(w, "%-36s %-19s %-9s %4s %-14s %s\n", "--------", "-------", "------", "----", "--------", "---")
	for _, s := range sweeps {
		fmt.Fprintf(w, "%-36s %-19s %-9s %4d %-14s %s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Status, s.RunCount, s.Expander, s.OutputDir)
	}
}
