// Package aggregate reduces repeated trials to summary runs.
package aggregate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/p-arndt/sweeper/internal/runspec"
)

var ErrCardinality = errors.New("unexpected group size")

// Mean groups runs by key and returns one run per key, in order of first
// appearance. Each result is a copy of the group's first run whose stats are
// the mean user and system time of the group.
func Mean(runs []runspec.Spec) []runspec.Spec {
	groups := ByKey(runs)
	out := make([]runspec.Spec, 0, len(groups))
	for _, g := range groups {
		var user, sys float64
		for _, r := range g.Runs {
			user += r.Stats.UserTime
			sys += r.Stats.SystemTime
		}
		n := float64(len(g.Runs))
		out = append(out, g.Runs[0].WithStats(runspec.Stats{
			UserTime:   user / n,
			SystemTime: sys / n,
		}))
	}
	return out
}

// A Group is the set of trials sharing one key.
type Group struct {
	Key  runspec.Key
	Runs []runspec.Spec
}

// ByKey partitions runs by key, ordered by first appearance.
func ByKey(runs []runspec.Spec) []Group {
	index := make(map[runspec.Key]int)
	var groups []Group
	for _, r := range runs {
		k := r.Key()
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Runs = append(groups[i].Runs, r)
	}
	return groups
}

// Negative returns the runs whose stats are below zero.
func Negative(runs []runspec.Spec) []runspec.Spec {
	var out []runspec.Spec
	for _, r := range runs {
		if r.Stats.Negative() {
			out = append(out, r)
		}
	}
	return out
}

// Repair turns cumulative readings into per-run deltas: the first run is
// kept, every later run gets its stats minus its predecessor's. Results may
// be negative and should be checked with Negative.
func Repair(runs []runspec.Spec) []runspec.Spec {
	if len(runs) == 0 {
		return nil
	}
	out := make([]runspec.Spec, 0, len(runs))
	out = append(out, runs[0].Clone())
	for i := 1; i < len(runs); i++ {
		prev, cur := runs[i-1].Stats, runs[i].Stats
		out = append(out, runs[i].WithStats(runspec.Stats{
			UserTime:   cur.UserTime - prev.UserTime,
			SystemTime: cur.SystemTime - prev.SystemTime,
		}))
	}
	return out
}

// CheckCardinality verifies that every input file has exactly want runs,
// e.g. one per variant of a comparison.
func CheckCardinality(runs []runspec.Spec, want int) error {
	counts := make(map[string]int)
	var order []string
	for _, r := range runs {
		in := r.Key().InputFile
		if _, ok := counts[in]; !ok {
			order = append(order, in)
		}
		counts[in]++
	}
	var bad []string
	for _, in := range order {
		if counts[in] != want {
			bad = append(bad, fmt.Sprintf("%s has %d", in, counts[in]))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: want %d per input, %s", ErrCardinality, want, strings.Join(bad, ", "))
	}
	return nil
}
