package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// DefaultRAMLimitGiB is the address-space ceiling used when RAM_LIMIT is unset.
const DefaultRAMLimitGiB = 75

// GiB converts gibibytes to bytes.
func GiB(n int64) int64 {
	return n * units.GiB
}

type BuildConfig struct {
	Command       string `yaml:"command"`
	Artifact      string `yaml:"artifact"`
	RetargetTool  string `yaml:"retarget_tool"`
	Skip          bool   `yaml:"skip"`
	PandoraFlavor bool   `yaml:"pandora"`
}

type ExecConfig struct {
	Shell     string `yaml:"shell"`
	TTYStdout bool   `yaml:"tty_stdout"`
}

// ExpanderConfig declares a named expander in the config file. Exactly one
// of Values or Flags is expected.
type ExpanderConfig struct {
	Name   string   `yaml:"name"`
	Flag   string   `yaml:"flag"`
	Values []string `yaml:"values"`
	Flags  []string `yaml:"flags"`
	Prefix string   `yaml:"prefix"`
}

type Config struct {
	RAMLimitBytes int64   `yaml:"-"`
	RAMLimit      string  `yaml:"ram_limit"`
	MaxColumns    string  `yaml:"max_columns"`
	ExtraArgs     string  `yaml:"extra_args"`
	SlaveStop     *string `yaml:"slave_stop"`
	Folder        string  `yaml:"folder"`
	Saft          *string `yaml:"saft"`
	DBPath        string  `yaml:"db_path"`
	Expander      string  `yaml:"expander"`
	PyramidTo     string  `yaml:"pyramid_to"`

	Build     BuildConfig      `yaml:"build"`
	Exec      ExecConfig       `yaml:"exec"`
	Expanders []ExpanderConfig `yaml:"expanders"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		RAMLimitBytes: GiB(DefaultRAMLimitGiB),
		MaxColumns:    "400",
		Folder:        ".",
		Expander:      "identity",
		Build: BuildConfig{
			Command:      "make -j3",
			Artifact:     "./build9/opt",
			RetargetTool: "build9/config_retarget",
		},
		Exec: ExecConfig{
			Shell: "/bin/sh",
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if cfg.RAMLimit != "" {
		if n, ok := ParseRAMLimit(cfg.RAMLimit); ok {
			cfg.RAMLimitBytes = n
		}
	}

	applyEnvOverrides(cfg)
	applyPandora(cfg)

	if cfg.DBPath == "" {
		cfg.DBPath = strings.TrimSuffix(cfg.Folder, "/") + "/sweeper.db"
	}

	return cfg, nil
}

// ParseRAMLimit accepts a bare number of gibibytes ("75") or a size with a
// unit ("512MiB", "2g").
func ParseRAMLimit(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 {
			return 0, false
		}
		return GiB(n), true
	}
	n, err := units.RAMInBytes(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// SaftValues lists the sweep values for one input file. The no-SAFT pass
// always runs; a configured SAFT adds a second pass.
func (c *Config) SaftValues() []string {
	vals := []string{"1"}
	if c.Saft != nil {
		vals = append(vals, *c.Saft)
	}
	return vals
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAM_LIMIT"); v != "" {
		if n, ok := ParseRAMLimit(v); ok {
			cfg.RAMLimit = v
			cfg.RAMLimitBytes = n
		}
	}
	if v := os.Getenv("MAX_COLUMNS"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.MaxColumns = v
		}
	}
	if v, ok := os.LookupEnv("EXTRA_ARGS"); ok {
		cfg.ExtraArgs = v
	}
	if v, ok := os.LookupEnv("SLAVESTOP"); ok {
		cfg.SlaveStop = &v
	}
	if v := os.Getenv("FOLDER"); v != "" {
		cfg.Folder = v
	}
	if v, ok := os.LookupEnv("SAFT"); ok {
		cfg.Saft = &v
	}
	if _, ok := os.LookupEnv("PANDORA"); ok {
		cfg.Build.PandoraFlavor = true
	}
	if v := os.Getenv("PYRAMID_TO"); v != "" {
		cfg.PyramidTo = v
	}
	if v := os.Getenv("SWEEPER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SWEEPER_EXPANDER"); v != "" {
		cfg.Expander = v
	}
	if v := os.Getenv("SWEEPER_BUILD_COMMAND"); v != "" {
		cfg.Build.Command = v
	}
	if v := os.Getenv("SWEEPER_SKIP_BUILD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Build.Skip = b
		}
	}
	if v := os.Getenv("SWEEPER_TTY_STDOUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Exec.TTYStdout = b
		}
	}
}

// applyPandora switches the default build flavor. Explicitly configured
// commands and paths are left alone.
func applyPandora(cfg *Config) {
	if !cfg.Build.PandoraFlavor {
		return
	}
	if cfg.Build.Command == "make -j3" {
		cfg.Build.Command = "make -j3 PANDORA=1"
	}
	if cfg.Build.Artifact == "./build9/opt" {
		cfg.Build.Artifact = "./build8/opt"
	}
	if cfg.Build.RetargetTool == "build9/config_retarget" {
		cfg.Build.RetargetTool = "build8/config_retarget"
	}
}

// RAMLimitString formats the ceiling for humans.
func (c *Config) RAMLimitString() string {
	return units.BytesSize(float64(c.RAMLimitBytes))
}
