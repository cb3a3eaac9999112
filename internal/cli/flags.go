package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/sweep-runner/internal/config"
)

// sweepFlags are the config overrides shared by run and plan.
type sweepFlags struct {
	benchmark  string
	engines    []string
	valueSizes []int
	threads    []int
	ops        int
	timeout    time.Duration
	cooldown   time.Duration
	outputDir  string
	outputFile string
}

func (f *sweepFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.benchmark, "benchmark", "", "benchmark command and leading arguments, space separated")
	fl.StringSliceVar(&f.engines, "engines", nil, "comma-separated list of storage engines")
	fl.IntSliceVar(&f.valueSizes, "value-sizes", nil, "comma-separated list of value sizes in bytes")
	fl.IntSliceVar(&f.threads, "threads", nil, "comma-separated list of thread counts")
	fl.IntVar(&f.ops, "ops", 0, "operations per trial")
	fl.DurationVar(&f.timeout, "timeout", 0, "per-trial timeout (e.g. 5m)")
	fl.DurationVar(&f.cooldown, "cooldown", 0, "pause between trials (e.g. 1s)")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "output directory for the result table")
	fl.StringVar(&f.outputFile, "output-file", "", "result table file name")
}

// apply copies every flag the user actually set onto cfg.
func (f *sweepFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("benchmark") {
		cfg.Benchmark = strings.Fields(f.benchmark)
	}
	if fl.Changed("engines") {
		cfg.Engines = f.engines
	}
	if fl.Changed("value-sizes") {
		cfg.ValueSizes = f.valueSizes
	}
	if fl.Changed("threads") {
		cfg.ThreadCounts = f.threads
	}
	if fl.Changed("ops") {
		cfg.Ops = f.ops
	}
	if fl.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fl.Changed("cooldown") {
		cfg.Cooldown = f.cooldown
	}
	if fl.Changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if fl.Changed("output-file") {
		cfg.OutputFile = f.outputFile
	}
}

// loadConfig loads --config, applies flag overrides and validates the result.
func loadConfig(cmd *cobra.Command, f *sweepFlags) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
