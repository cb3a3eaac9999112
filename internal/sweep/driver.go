/*
PURPOSE:
  High-level driver that orchestrates a benchmark sweep.
  Loops through Engines -> Value Sizes -> Thread Counts and executes one trial each.

REQUIREMENTS:
  User-specified:
  - Attempt every grid point exactly once, in declaration order.
  - Record every trial, failed ones included, as soon as it finishes.
  - Cool down between trials.
  - Report progress and a per-trial line; total elapsed time at the end.

  Implementation-discovered:
  - A trial failure is data, a recorder failure is fatal: losing rows silently
    is worse than stopping early.
  - An operator interrupt mid-trial drops that trial; rows already written stay.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/process, internal/parser, internal/output, internal/config

ERROR HANDLING:
  - Logs trial errors but continues (resilience).
  - Returns a wrapped error if the recorder fails or ctx is cancelled.

IMPLEMENTATION RULES:
  - Strictly sequential. Parallel trials would contend for the measured resource.
  - The only blocking points are the runner (bounded by Timeout) and the cooldown.

USAGE:
  outcomes, err := sweep.RunSweep(ctx, cfg, process.NewExec(), recorder)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/process/runner.go
  - internal/parser/parser.go
  - internal/output/csv.go

MAINTENANCE:
  - Update outcome() when the parser grows new sections.
*/

package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/sweep-runner/internal/config"
	"github.com/daryltucker/sweep-runner/internal/model"
	"github.com/daryltucker/sweep-runner/internal/output"
	"github.com/daryltucker/sweep-runner/internal/parser"
	"github.com/daryltucker/sweep-runner/internal/process"
)

// ProgressFunc is called after each recorded trial.
type ProgressFunc func(done, total int, o model.TrialOutcome)

// Option configures a Driver.
type Option func(*Driver)

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) { d.progress = fn }
}

// WithMetrics records sweep metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithSweepID overrides the generated sweep id.
func WithSweepID(id string) Option {
	return func(d *Driver) { d.sweepID = id }
}

// WithClock overrides time.Now for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithSleep overrides the cooldown wait.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(d *Driver) { d.sleep = sleep }
}

// Driver runs one sweep. It is not safe for concurrent use.
type Driver struct {
	cfg      *config.Config
	runner   process.Runner
	rec      output.Recorder
	progress ProgressFunc
	metrics  *Metrics
	sweepID  string
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// New creates a Driver. cfg must already be validated.
func New(cfg *config.Config, runner process.Runner, rec output.Recorder, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg,
		runner:  runner,
		rec:     rec,
		sweepID: uuid.NewString(),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunSweep runs the whole grid of cfg with default options.
func RunSweep(ctx context.Context, cfg *config.Config, runner process.Runner, rec output.Recorder) ([]model.TrialOutcome, error) {
	return New(cfg, runner, rec).Run(ctx)
}

// SweepID identifies this run in logs and in the journal.
func (d *Driver) SweepID() string { return d.sweepID }

// Run executes every trial in grid order. It returns the outcomes recorded so far
// together with the error that stopped the sweep, if any.
func (d *Driver) Run(ctx context.Context) ([]model.TrialOutcome, error) {
	grid := d.cfg.Grid()
	command, baseArgs := d.cfg.Command()
	start := d.now()

	d.metrics.setPlanned(len(grid))
	output.Logger.Info("Starting sweep",
		"sweep_id", d.sweepID,
		"trials", len(grid),
		"benchmark", command,
		"timeout", d.cfg.Timeout,
		"cooldown", d.cfg.Cooldown,
	)

	outcomes := make([]model.TrialOutcome, 0, len(grid))
	for i, tc := range grid {
		if err := ctx.Err(); err != nil {
			return outcomes, d.interrupted(err, len(outcomes), len(grid))
		}

		args := append(slices.Clone(baseArgs), tc.Args()...)
		res := d.runner.Run(ctx, command, args, d.cfg.Timeout)

		if ctx.Err() != nil && res.Status.Failed() {
			return outcomes, d.interrupted(ctx.Err(), len(outcomes), len(grid))
		}

		o := d.outcome(i, tc, res)
		if err := d.rec.Append(o); err != nil {
			return outcomes, fmt.Errorf("record trial %d/%d (%s): %w", i+1, len(grid), tc, err)
		}
		outcomes = append(outcomes, o)

		d.report(o, res)
		d.metrics.observe(o)
		if d.progress != nil {
			d.progress(len(outcomes), len(grid), o)
		}

		if i < len(grid)-1 && d.cfg.Cooldown > 0 {
			if err := d.sleep(ctx, d.cfg.Cooldown); err != nil {
				return outcomes, d.interrupted(err, len(outcomes), len(grid))
			}
		}
	}

	summary := Summarize(outcomes, d.now().Sub(start))
	output.Logger.Info("Benchmark completed",
		"sweep_id", d.sweepID,
		"elapsed", summary.Elapsed.Round(10*time.Millisecond),
		"ok", summary.OK,
		"failed", summary.Failed(),
		"results", d.cfg.ResultTablePath(),
	)
	return outcomes, nil
}

func (d *Driver) outcome(i int, tc model.TrialConfig, res process.Result) model.TrialOutcome {
	o := model.TrialOutcome{
		SweepID:   d.sweepID,
		Index:     i,
		Config:    tc,
		Timestamp: d.now(),
		Duration:  res.Duration,
		Status:    res.Status,
	}

	if res.Status.Failed() {
		o.ErrorDetail = res.Detail()
		return o
	}

	if res.Truncated {
		output.Logger.Warn("Benchmark output truncated", "trial", tc.String(), "limit", d.cfg.MaxOutputBytes)
	}
	rec, anomalies := parser.Inspect(res.Stdout)
	for _, a := range anomalies {
		output.Logger.Warn("Suspicious benchmark output", "trial", tc.String(), "anomaly", a.String())
	}
	o.PrefillThroughput = rec.ThroughputPtr(parser.SectionPrefill)
	o.DecodeThroughput = rec.ThroughputPtr(parser.SectionDecode)
	return o
}

func (d *Driver) report(o model.TrialOutcome, res process.Result) {
	attrs := []any{
		slog.String("engine", o.Config.Engine),
		slog.String("value_size", model.FormatSize(o.Config.ValueSize)),
		slog.Int("threads", o.Config.Threads),
		slog.Duration("duration", o.Duration.Round(time.Millisecond)),
	}
	if !o.Status.Failed() {
		attrs = append(attrs,
			slog.String("prefill_tput", optional(o.PrefillThroughput)),
			slog.String("decode_tput", optional(o.DecodeThroughput)),
		)
		output.Logger.Info("Completed", attrs...)
		return
	}

	attrs = append(attrs, slog.String("status", string(o.Status)), slog.String("error", o.ErrorDetail))
	if res.Err != nil && o.Status == model.StatusUnexpectedError {
		attrs = append(attrs, slog.Any("cause", res.Err))
	}
	output.Logger.Error("Trial failed", attrs...)
}

func (d *Driver) interrupted(err error, done, total int) error {
	output.Logger.Warn("Sweep interrupted",
		"sweep_id", d.sweepID,
		"completed", done,
		"total", total,
		"results", d.cfg.ResultTablePath(),
	)
	return fmt.Errorf("sweep interrupted after %d/%d trials: %w", done, total, err)
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprint(*v)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
