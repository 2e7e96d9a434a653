// Package expand turns one base run into the concrete variants a sweep
// executes, and defines strategies that chain several executions.
package expand

import (
	"strings"

	"github.com/p-arndt/sweeper/internal/runspec"
)

// Expander derives zero or more variants from a base spec. Returned specs
// must be independent copies; the base is never modified.
type Expander func(base runspec.Spec) []runspec.Spec

// Identity runs the base spec unchanged.
func Identity(base runspec.Spec) []runspec.Spec {
	return []runspec.Spec{base.Clone()}
}

// Sweep explores one flag over a list of values. Each variant gets
// "<Prefix> <Flag> <value>" appended to its extra arguments and
// "_<flag name>_<value>" appended to its output file.
type Sweep struct {
	Prefix string
	Flag   string
	Values []string
}

func (s Sweep) Expand(base runspec.Spec) []runspec.Spec {
	name := strings.TrimLeft(s.Flag, "-")
	out := make([]runspec.Spec, 0, len(s.Values))
	for _, v := range s.Values {
		args := " "
		if s.Prefix != "" {
			args += s.Prefix + " "
		}
		args += s.Flag + " " + v + " "
		out = append(out, base.AppendExtraArgs(args).WithOutputSuffix("_"+name+"_"+v))
	}
	return out
}

// ParameterSweep is Sweep without a prefix.
func ParameterSweep(flag string, values []string) Expander {
	return Sweep{Flag: flag, Values: values}.Expand
}

// Flags runs one variant per switch. A switch may carry its own value
// ("slaves 4"); spaces become underscores in the output suffix. The empty
// switch is the baseline and only gets the "_" suffix.
func Flags(switches []string) Expander {
	return func(base runspec.Spec) []runspec.Spec {
		out := make([]runspec.Spec, 0, len(switches))
		for _, sw := range switches {
			v := base
			if sw != "" {
				v = v.AppendExtraArgs(" --" + sw + " ")
			}
			out = append(out, v.WithOutputSuffix("_"+strings.ReplaceAll(sw, " ", "_")))
		}
		return out
	}
}

// Each applies fn to a copy of the base and returns the single result.
func Each(fn func(runspec.Spec) runspec.Spec) Expander {
	return func(base runspec.Spec) []runspec.Spec {
		return []runspec.Spec{fn(base.Clone())}
	}
}
