package expand

import (
	"strings"
	"testing"

	"github.com/p-arndt/sweeper/internal/config"
	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSpec() runspec.Spec {
	return runspec.New("EXEC", "./configs/a.csv", "400", runspec.NoSaft, nil, "").DeriveOutputFile("out")
}

func TestIdentity(t *testing.T) {
	base := baseSpec()
	got := Identity(base)
	require.Len(t, got, 1)
	assert.Equal(t, base, got[0])
}

func TestParameterSweep(t *testing.T) {
	base := baseSpec()
	got := ParameterSweep("--slaves", []string{"1", "2", "4"})(base)
	require.Len(t, got, 3)

	for i, v := range []string{"1", "2", "4"} {
		assert.Contains(t, got[i].ExtraArgs, "--slaves "+v)
		assert.Equal(t, 1, strings.Count(got[i].ExtraArgs, "--slaves"))
		assert.True(t, strings.HasSuffix(got[i].OutputFile, "_slaves_"+v), got[i].OutputFile)
	}
	assert.Equal(t, "", base.ExtraArgs)
	assert.Equal(t, "out/a.csv_log", base.OutputFile)
}

func TestSweepPrefix(t *testing.T) {
	got := Sweep{Prefix: "--master_threshold 20000", Flag: "--slaves", Values: []string{"6"}}.Expand(baseSpec())
	require.Len(t, got, 1)
	assert.Equal(t, " --master_threshold 20000 --slaves 6 ", got[0].ExtraArgs)
	assert.Equal(t, "out/a.csv_log_slaves_6", got[0].OutputFile)
}

func TestSweepNoValues(t *testing.T) {
	assert.Empty(t, ParameterSweep("--slaves", nil)(baseSpec()))
}

func TestFlags(t *testing.T) {
	got := Flags([]string{"", "slave_cuts", "slaves 4"})(baseSpec())
	require.Len(t, got, 3)

	assert.Equal(t, "", got[0].ExtraArgs)
	assert.Equal(t, "out/a.csv_log_", got[0].OutputFile)
	assert.Equal(t, " --slave_cuts ", got[1].ExtraArgs)
	assert.Equal(t, "out/a.csv_log_slave_cuts", got[1].OutputFile)
	assert.Equal(t, " --slaves 4 ", got[2].ExtraArgs)
	assert.Equal(t, "out/a.csv_log_slaves_4", got[2].OutputFile)
}

func TestVariantsHaveDistinctKeys(t *testing.T) {
	got := Flags([]string{"a", "b"})(baseSpec())
	assert.NotEqual(t, got[0].Key(), got[1].Key())
}

func TestMasterSolvers(t *testing.T) {
	got := masterSolvers(baseSpec())
	require.Len(t, got, 4)
	assert.Equal(t, " --master_solver 2 --no_warm_start_values --slow_warm_start", got[2].ExtraArgs)
	assert.Equal(t, "out/a.csv_log_2", got[2].OutputFile)
	assert.Equal(t, "out/a.csv_log.all_columns_at_once", got[3].OutputFile)
}

func TestMasterSolutionThreshold(t *testing.T) {
	got := masterSolutionThreshold(baseSpec())
	require.Len(t, got, 2)
	assert.Equal(t, "out/a.csv_log_mst1e-05", got[0].OutputFile)
	assert.Equal(t, "out/a.csv_log", got[1].OutputFile)
	assert.Contains(t, got[1].ExtraArgs, "--master_solution_threshold 0")
}

func TestSlaveWarmStart(t *testing.T) {
	got := Each(slaveWarmStart)(baseSpec())
	require.Len(t, got, 1)
	assert.Empty(t, got[0].InputFile)
	assert.Equal(t, " --slave_warm_start ./configs/a.csv", got[0].ExtraArgs)
	assert.NotContains(t, got[0].Command(), " -C ")
}

func TestPresets(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	r, err := Presets(cfg, nil)
	require.NoError(t, err)

	var names []string
	for _, p := range r.Plans() {
		names = append(names, p.Name)
		assert.NotNil(t, p.Expander, p.Name)
		assert.NotNil(t, p.Strategy, p.Name)
	}
	assert.Equal(t, []string{
		"callback", "cuts", "identity", "master-solver", "mst",
		"pyramid", "slaves", "tangent-steps", "warm-start",
	}, names)

	p, err := r.Lookup("slaves")
	require.NoError(t, err)
	assert.Len(t, p.Expander(baseSpec()), 6)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownExpander)
}

func TestPresetsFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Expanders = []config.ExpanderConfig{
		{Name: "threads", Flag: "--threads", Values: []string{"1", "8"}},
		{Name: "tricks", Flags: []string{"no_tangents"}},
	}

	r, err := Presets(cfg, nil)
	require.NoError(t, err)

	p, err := r.Lookup("threads")
	require.NoError(t, err)
	got := p.Expander(baseSpec())
	require.Len(t, got, 2)
	assert.Equal(t, "out/a.csv_log_threads_8", got[1].OutputFile)
	assert.IsType(t, Default{}, p.Strategy)

	p, err = r.Lookup("tricks")
	require.NoError(t, err)
	assert.Len(t, p.Expander(baseSpec()), 1)
}

func TestPresetsFromConfigInvalid(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Expanders = []config.ExpanderConfig{{Name: "broken"}}

	_, err = Presets(cfg, nil)
	assert.Error(t, err)
}
