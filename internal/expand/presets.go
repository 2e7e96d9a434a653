package expand

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/p-arndt/sweeper/internal/config"
	"github.com/p-arndt/sweeper/internal/runspec"
)

var ErrUnknownExpander = errors.New("unknown expander")

// Plan is what a sweep applies to every base spec: an expander that picks
// the variants and a strategy that executes each one.
type Plan struct {
	Name        string
	Description string
	Expander    Expander
	Strategy    Strategy
}

type Registry struct {
	plans map[string]Plan
}

func NewRegistry() *Registry {
	return &Registry{plans: make(map[string]Plan)}
}

// Register adds or replaces a plan. Missing parts default to Identity and
// Default.
func (r *Registry) Register(p Plan) {
	if p.Expander == nil {
		p.Expander = Identity
	}
	if p.Strategy == nil {
		p.Strategy = Default{}
	}
	r.plans[p.Name] = p
}

func (r *Registry) Lookup(name string) (Plan, error) {
	p, ok := r.plans[name]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownExpander, name)
	}
	return p, nil
}

// Plans returns all registered plans sorted by name.
func (r *Registry) Plans() []Plan {
	out := make([]Plan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Presets returns the built-in plans plus any declared in cfg.Expanders.
func Presets(cfg *config.Config, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry()

	r.Register(Plan{Name: "identity", Description: "run every base spec once"})
	r.Register(Plan{
		Name:        "slaves",
		Description: "concurrent slave counts 1..10",
		Expander: Sweep{
			Prefix: "--master_threshold 20000",
			Flag:   "--slaves",
			Values: []string{"1", "2", "4", "6", "8", "10"},
		}.Expand,
	})
	r.Register(Plan{
		Name:        "cuts",
		Description: "baseline vs slave cuts",
		Expander:    Flags([]string{"", "slave_cuts", "compare_slave_cuts"}),
	})
	r.Register(Plan{
		Name:        "callback",
		Description: "callback tricks one at a time",
		Expander: Flags([]string{
			"no_randomisation", "no_rounding_down", "no_tangents",
			"slaves 10", "slaves 4", "slaves 1", "slave_cuts",
		}),
	})
	r.Register(Plan{
		Name:        "master-solver",
		Description: "simplex, dual simplex, barrier and all columns at once",
		Expander:    masterSolvers,
	})
	r.Register(Plan{
		Name:        "mst",
		Description: "with and without master solution threshold",
		Expander:    masterSolutionThreshold,
	})
	r.Register(Plan{
		Name:        "warm-start",
		Description: "load the input as slave warm start",
		Expander:    Each(slaveWarmStart),
	})
	r.Register(Plan{
		Name:        "tangent-steps",
		Description: "one execution per TANGENT_STEP value",
		Strategy:    TangentSteps{Steps: DefaultTangentSteps},
	})
	r.Register(Plan{
		Name:        "pyramid",
		Description: "retarget the newest cgdump and rerun from it",
		Strategy: &Pyramid{
			RetargetTool: cfg.Build.RetargetTool,
			To:           cfg.PyramidTo,
			Shell:        cfg.Exec.Shell,
			Logger:       logger,
		},
	})

	for _, ec := range cfg.Expanders {
		p, err := planFromConfig(ec)
		if err != nil {
			return nil, err
		}
		r.Register(p)
	}
	return r, nil
}

func planFromConfig(ec config.ExpanderConfig) (Plan, error) {
	if ec.Name == "" {
		return Plan{}, errors.New("expander without name")
	}
	switch {
	case ec.Flag != "" && len(ec.Values) > 0:
		return Plan{
			Name:        ec.Name,
			Description: fmt.Sprintf("%s over %v", ec.Flag, ec.Values),
			Expander:    Sweep{Prefix: ec.Prefix, Flag: ec.Flag, Values: ec.Values}.Expand,
		}, nil
	case len(ec.Flags) > 0:
		return Plan{
			Name:        ec.Name,
			Description: fmt.Sprintf("switches %v", ec.Flags),
			Expander:    Flags(ec.Flags),
		}, nil
	default:
		return Plan{}, fmt.Errorf("expander %q: need flag+values or flags", ec.Name)
	}
}

func masterSolvers(base runspec.Spec) []runspec.Spec {
	var out []runspec.Spec
	for _, solver := range []string{"0", "1", "2"} {
		out = append(out, base.
			AppendExtraArgs(" --master_solver "+solver+" --no_warm_start_values --slow_warm_start").
			WithOutputSuffix("_"+solver))
	}
	out = append(out, base.
		AppendExtraArgs(" --no_warm_start_values ").
		WithOutputSuffix(".all_columns_at_once"))
	return out
}

func masterSolutionThreshold(base runspec.Spec) []runspec.Spec {
	var out []runspec.Spec
	for _, mst := range []string{"1e-05", "0"} {
		v := base.AppendExtraArgs(" --master_solution_threshold " + mst + " ")
		if mst != "0" {
			v = v.WithOutputSuffix("_mst" + mst)
		}
		out = append(out, v)
	}
	return out
}

func slaveWarmStart(s runspec.Spec) runspec.Spec {
	return s.AppendExtraArgs(" --slave_warm_start " + s.InputFile).WithInputFile("")
}
