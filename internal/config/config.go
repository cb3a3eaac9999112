/*
PURPOSE:
  Defines the sweep configuration and its loading logic for Sweep Runner.
  Adheres to "Config IS Code" philosophy: the whole sweep is one explicit struct.

REQUIREMENTS:
  User-specified:
  - Configure the benchmark command, the engine / value size / thread axes,
    op count, per-trial timeout, cooldown and the result table location.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs to support Environment variables overrides (SWEEP_...).
  - Needs validation before a multi-hour sweep starts, not halfway through.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/sweep
  - Dependencies: gopkg.in/yaml.v3, github.com/go-playground/validator/v10

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default config files fall back to DefaultConfig().

IMPLEMENTATION RULES:
  - Config struct tags should support yaml and validate.
  - Defaults match the run_benchmark.sh sweep used before this tool existed.
  - A Config is immutable once a sweep starts.

USAGE:
  cfg, err := config.Load("sweep.yaml")
  grid := cfg.Grid()

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new sweep axes.
*/

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/daryltucker/sweep-runner/internal/model"
)

// Environment variables that override file values.
const (
	EnvBenchmark = "SWEEP_BENCHMARK"
	EnvOutputDir = "SWEEP_OUTPUT_DIR"
	EnvTimeout   = "SWEEP_TIMEOUT"
	EnvCooldown  = "SWEEP_COOLDOWN"
)

// DefaultFiles are searched, in order, when no --config is given.
var DefaultFiles = []string{"sweep.yaml", "sweep_runner.yaml"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config represents the full configuration of one sweep.
type Config struct {
	// Benchmark is the command and its leading arguments; trial flags are appended.
	Benchmark []string `yaml:"benchmark" validate:"required,min=1,dive,required"`
	// WorkDir is the benchmark's working directory. Empty means the current one.
	WorkDir string `yaml:"work_dir"`
	// Env is extra KEY=VALUE pairs for the benchmark environment.
	Env []string `yaml:"env" validate:"dive,contains=="`

	Engines      []string `yaml:"engines" validate:"required,min=1,dive,required"`
	ValueSizes   []int    `yaml:"value_sizes" validate:"required,min=1,dive,gt=0"`
	ThreadCounts []int    `yaml:"thread_counts" validate:"required,min=1,dive,gt=0"`
	Ops          int      `yaml:"ops" validate:"gt=0"`

	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	Cooldown time.Duration `yaml:"cooldown" validate:"gte=0"`

	OutputDir  string `yaml:"output_dir" validate:"required"`
	OutputFile string `yaml:"output_file" validate:"required"`
	// Journal enables the NDJSON outcome journal next to the table.
	Journal bool `yaml:"journal"`
	// MaxOutputBytes caps captured stdout/stderr per trial; 0 means unlimited.
	MaxOutputBytes int `yaml:"max_output_bytes" validate:"gte=0"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Benchmark:    []string{"./run_benchmark.sh"},
		Engines:      []string{"mooncake"},
		ValueSizes:   []int{524288, 1048576, 8388608, 16777200},
		ThreadCounts: []int{2, 4, 8},
		Ops:          2000,
		Timeout:      5 * time.Minute,
		Cooldown:     1 * time.Second,
		OutputDir:    "./results",
		OutputFile:   "benchmark_results.csv",
		Journal:      true,
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches DefaultFiles in order.
// If no file found, returns default config.
// Environment overrides are applied last; the result is not validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
		}
	}

	if path != "" {
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from SWEEP_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvBenchmark); v != "" {
		c.Benchmark = strings.Fields(v)
	}
	if v := getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := getenv(EnvCooldown); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCooldown, err)
		}
		c.Cooldown = d
	}
	return nil
}

// Validate checks the config before a sweep starts.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s: %w", strings.Join(msgs, "; "), err)
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResultTablePath is where the result table is written.
func (c *Config) ResultTablePath() string {
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// Command returns the benchmark executable and its leading arguments.
func (c *Config) Command() (string, []string) {
	if len(c.Benchmark) == 0 {
		return "", nil
	}
	return c.Benchmark[0], c.Benchmark[1:]
}

// Grid expands the sweep axes: engine outermost, then value size, then threads.
func (c *Config) Grid() []model.TrialConfig {
	grid := make([]model.TrialConfig, 0, len(c.Engines)*len(c.ValueSizes)*len(c.ThreadCounts))
	for _, engine := range c.Engines {
		for _, size := range c.ValueSizes {
			for _, threads := range c.ThreadCounts {
				grid = append(grid, model.TrialConfig{
					Engine:    engine,
					ValueSize: size,
					Threads:   threads,
					Ops:       c.Ops,
				})
			}
		}
	}
	return grid
}
