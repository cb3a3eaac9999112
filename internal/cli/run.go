/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark sweep.

REQUIREMENTS:
  User-specified:
  - Run the sweep.
  - Specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.
  - Ctrl-C must stop the current benchmark and leave a readable table.

ARCHITECTURE INTEGRATION:
  - Calls: internal/sweep.Driver.Run()
  - Uses: internal/config, internal/process, internal/output

ERROR HANDLING:
  - Returns error if config load fails, the table cannot be created or a row
    cannot be written. Failed trials are not errors.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Validate -> Recorders -> Driver.Run.

USAGE:
  sweep-runner run --engines mooncake --threads 2,4

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/flags.go
  - internal/sweep/driver.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/daryltucker/sweep-runner/internal/model"
	"github.com/daryltucker/sweep-runner/internal/output"
	"github.com/daryltucker/sweep-runner/internal/process"
	"github.com/daryltucker/sweep-runner/internal/sweep"
)

var (
	runFlags    sweepFlags
	metricsAddr string
	noJournal   bool
	echoOutput  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the benchmark sweep",
	Long: `Executes the benchmark once for every combination of engine, value size and
thread count, strictly one at a time, in declaration order:
1. Invoke: <benchmark> --engine=E --value-size=V --num-ops=N --num-threads=T
2. Parse: Takes the last "Throughput:" value under the Prefill and Decode result headers.
3. Record: Appends one row to the result table and syncs it before the next trial.

Failed or timed-out trials are recorded with empty throughput fields. An existing
table is moved aside (e.g., results.csv.1) rather than overwritten.`,
	Example: `  # Run with defaults (uses sweep.yaml if present)
  sweep-runner run

  # Sweep two engines at one value size
  sweep-runner run --engines redis,mooncake --value-sizes 524288 --threads 2,4,8

  # Point at a different benchmark and output directory
  sweep-runner run --benchmark "bash ./bench/run.sh" -o ./benchmarks

  # Expose progress metrics while the sweep runs
  sweep-runner run --metrics-addr :9102`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd)
	},
}

func runSweep(cmd *cobra.Command) (err error) {
	// 1. Load Config
	cfg, err := loadConfig(cmd, &runFlags)
	if err != nil {
		return err
	}
	if noJournal {
		cfg.Journal = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Recorders
	table, err := output.NewCSVTable(cfg.ResultTablePath())
	if err != nil {
		return fmt.Errorf("failed to create result table: %w", err)
	}
	if table.Rotated() != "" {
		output.Logger.Info("Previous results moved", "from", table.Path(), "to", table.Rotated())
	}
	recorders := []output.Recorder{table}
	if cfg.Journal {
		journal, err := output.NewJSONJournal(output.JournalPath(table.Path()))
		if err != nil {
			table.Close()
			return fmt.Errorf("failed to create journal: %w", err)
		}
		output.Logger.Info("Writing journal", "path", journal.Path())
		recorders = append(recorders, journal)
	}
	rec := output.Multi(recorders...)
	defer func() {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close results: %w", cerr)
		}
	}()

	// 3. Progress, logging and metrics
	progress := output.NewProgress(os.Stderr)
	if l, lerr := output.NewLogger(progress.Wrap(cmd.ErrOrStderr()), logLevel, logFormat); lerr == nil {
		output.SetLogger(l)
	}
	opts := []sweep.Option{
		sweep.WithProgress(func(done, total int, o model.TrialOutcome) {
			progress.Update(done, total, o.Config.String())
		}),
	}
	if metricsAddr != "" {
		m, shutdown, err := serveMetrics(metricsAddr)
		if err != nil {
			return err
		}
		defer shutdown()
		opts = append(opts, sweep.WithMetrics(m))
	}

	runner := &process.Exec{
		Dir:            cfg.WorkDir,
		Env:            cfg.Env,
		MaxOutputBytes: cfg.MaxOutputBytes,
	}
	if echoOutput {
		runner.Stdout = cmd.ErrOrStderr()
		runner.Stderr = cmd.ErrOrStderr()
	}

	// 4. Execution
	start := time.Now()
	driver := sweep.New(cfg, runner, rec, opts...)
	outcomes, err := driver.Run(ctx)
	progress.Finish()

	fmt.Fprintf(cmd.OutOrStdout(), "sweep %s: %s\n", driver.SweepID(), sweep.Summarize(outcomes, time.Since(start)))
	return err
}

// serveMetrics exposes a private registry on addr until shutdown is called.
func serveMetrics(addr string) (*sweep.Metrics, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := sweep.NewMetrics(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			output.Logger.Error("Metrics server stopped", "error", err)
		}
	}()
	output.Logger.Info("Serving metrics", "addr", ln.Addr().String())

	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runFlags.register(runCmd)
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	runCmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not write the NDJSON outcome journal")
	runCmd.Flags().BoolVar(&echoOutput, "echo", false, "mirror benchmark output to stderr while it runs")
}
