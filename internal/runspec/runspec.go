// Package runspec describes a single parameterized invocation of the solver.
package runspec

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// NoSaft is the sweep value that disables SAFT post-processing.
const NoSaft = "1"

// Stats holds the CPU time a run consumed, in seconds.
type Stats struct {
	UserTime   float64 `json:"user_time"`
	SystemTime float64 `json:"system_time"`
}

// Negative reports whether either reading is below zero. Well-formed single
// executions never produce this; it shows up after repairs or when rusage
// readings are inconsistent.
func (s Stats) Negative() bool {
	return s.UserTime < 0 || s.SystemTime < 0
}

// Spec is one fully parameterized solver invocation.
//
// A Spec is a value: derive variants with the With* helpers, which return
// modified copies and leave the receiver untouched.
type Spec struct {
	ExecPath   string   `json:"exec_path"`
	InputFile  string   `json:"input_file"`
	MaxColumns string   `json:"max_columns"`
	Saft       string   `json:"saft"`
	SlaveStop  *string  `json:"slave_stop,omitempty"`
	ExtraArgs  string   `json:"extra_args"`
	OutputFile string   `json:"output_file"`
	Env        []string `json:"env,omitempty"`
	Stats      Stats    `json:"stats"`
}

// Key identifies repeated trials of the same experiment.
type Key struct {
	MaxColumns string
	Saft       string
	SlaveStop  string
	HasStop    bool
	ExtraArgs  string
	InputFile  string
}

func (k Key) String() string {
	stop := "None"
	if k.HasStop {
		stop = k.SlaveStop
	}
	return fmt.Sprintf("(%s, %s, %s, %q, %s)", k.MaxColumns, k.Saft, stop, k.ExtraArgs, k.InputFile)
}

// New returns the base spec for one input file and sweep value.
func New(execPath, inputFile, maxColumns, saft string, slaveStop *string, extraArgs string) Spec {
	s := Spec{
		ExecPath:   execPath,
		InputFile:  inputFile,
		MaxColumns: maxColumns,
		Saft:       saft,
		ExtraArgs:  extraArgs,
	}
	if slaveStop != nil {
		v := *slaveStop
		s.SlaveStop = &v
	}
	return s
}

// Command renders the shell command line. The argument order is what the
// solver's parser expects.
func (s Spec) Command() string {
	var b strings.Builder
	b.WriteString(s.ExecPath)
	if s.InputFile != "" {
		b.WriteString(" -C ")
		b.WriteString(s.InputFile)
	}
	b.WriteString(" ")
	b.WriteString(s.ExtraArgs)
	if s.SlaveStop != nil {
		b.WriteString(" --slavestop ")
		b.WriteString(*s.SlaveStop)
	}
	fmt.Fprintf(&b, " --max_columns %s --saft %s -o %s", s.MaxColumns, s.Saft, s.OutputFile)
	return b.String()
}

// DeriveOutputFile returns a copy whose output file is named after the input
// basename and sweep value. Downstream tooling keys off these names.
func (s Spec) DeriveOutputFile(outputDir string) Spec {
	base := filepath.Base(s.InputFile)
	if s.InputFile == "" {
		base = ""
	}
	if s.Saft == NoSaft {
		s.OutputFile = outputDir + "/" + base + "_log"
	} else {
		s.OutputFile = outputDir + "/" + base + "_with_" + s.Saft + "_saft_log"
	}
	return s.Clone()
}

// Key returns the identifying tuple. Output file and stats are ignored.
func (s Spec) Key() Key {
	k := Key{
		MaxColumns: s.MaxColumns,
		Saft:       s.Saft,
		ExtraArgs:  s.ExtraArgs,
		InputFile:  strings.TrimPrefix(s.InputFile, "./"),
	}
	if s.SlaveStop != nil {
		k.SlaveStop = *s.SlaveStop
		k.HasStop = true
	}
	return k
}

// RunName is a display label for tables and plots.
func (s Spec) RunName() string {
	return filepath.Base(strings.ReplaceAll(s.InputFile, "_", "-"))
}

// StartMessage is the banner written before a run executes.
func (s Spec) StartMessage(now time.Time) string {
	stop := "None"
	if s.SlaveStop != nil {
		stop = *s.SlaveStop
	}
	return fmt.Sprintf("\n==== (CURRENT TIME) ==== %s\n"+
		"Running %s columns, saft set to %s, slavestop is %s on %s, extra args is %s :\n"+
		"Executing ,,%s'' ...\n",
		now.Format("2006-01-02T15:04:05.000000"),
		s.MaxColumns, s.Saft, stop, s.OutputFile, s.ExtraArgs,
		s.Command())
}

// Clone returns a deep copy.
func (s Spec) Clone() Spec {
	if s.SlaveStop != nil {
		v := *s.SlaveStop
		s.SlaveStop = &v
	}
	if s.Env != nil {
		s.Env = append([]string(nil), s.Env...)
	}
	return s
}

func (s Spec) WithExtraArgs(args string) Spec {
	c := s.Clone()
	c.ExtraArgs = args
	return c
}

// AppendExtraArgs concatenates args verbatim; callers supply their own spacing.
func (s Spec) AppendExtraArgs(args string) Spec {
	c := s.Clone()
	c.ExtraArgs += args
	return c
}

func (s Spec) WithOutputFile(path string) Spec {
	c := s.Clone()
	c.OutputFile = path
	return c
}

func (s Spec) WithOutputSuffix(suffix string) Spec {
	c := s.Clone()
	c.OutputFile += suffix
	return c
}

func (s Spec) WithInputFile(path string) Spec {
	c := s.Clone()
	c.InputFile = path
	return c
}

// WithEnv sets key=value in the child environment, replacing an earlier
// value for the same key.
func (s Spec) WithEnv(key, value string) Spec {
	c := s.Clone()
	prefix := key + "="
	out := c.Env[:0]
	for _, kv := range c.Env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	c.Env = append(out, prefix+value)
	return c
}

func (s Spec) WithStats(st Stats) Spec {
	c := s.Clone()
	c.Stats = st
	return c
}
