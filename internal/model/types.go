/*
PURPOSE:
  Defines the core data structures used throughout Sweep Runner.
  These models represent one point of the sweep grid and the outcome of running it.

REQUIREMENTS:
  User-specified:
  - Record engine, value size, thread count and op count per trial.
  - Record prefill/decode throughput, timestamp and failure class.

  Implementation-discovered:
  - Throughput must distinguish "absent" from 0.0, hence *float64.
  - The CSV schema has no status column; the JSON journal carries it.

ARCHITECTURE INTEGRATION:
  - Used by: internal/sweep, internal/process, internal/output, internal/config
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - TrialConfig is a value type; never mutate one after the grid is built.

USAGE:
  out := model.TrialOutcome{Config: cfg, Status: model.StatusOK}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add field and update CSV/JSON writers.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go

MAINTENANCE:
  - Update when the benchmark reports new sections.
*/

package model

import (
	"fmt"
	"time"
)

// Status classifies how a single trial ended.
type Status string

const (
	StatusOK              Status = "ok"
	StatusProcessError    Status = "process_error"
	StatusTimeout         Status = "timeout"
	StatusUnexpectedError Status = "unexpected_error"
)

// Failed reports whether the trial produced no usable output.
func (s Status) Failed() bool {
	return s != StatusOK
}

// TrialConfig is one point of the sweep grid.
type TrialConfig struct {
	Engine    string `json:"engine"`
	ValueSize int    `json:"value_size"`
	Threads   int    `json:"threads"`
	Ops       int    `json:"ops"`
}

// Args renders the benchmark command-line flags for this configuration.
func (c TrialConfig) Args() []string {
	return []string{
		"--engine=" + c.Engine,
		fmt.Sprintf("--value-size=%d", c.ValueSize),
		fmt.Sprintf("--num-ops=%d", c.Ops),
		fmt.Sprintf("--num-threads=%d", c.Threads),
	}
}

func (c TrialConfig) String() string {
	return fmt.Sprintf("%s/%s/%d threads", c.Engine, FormatSize(c.ValueSize), c.Threads)
}

// TrialOutcome is the result of one benchmark invocation.
type TrialOutcome struct {
	SweepID           string        `json:"sweep_id,omitempty"`
	Index             int           `json:"index"`
	Config            TrialConfig   `json:"config"`
	PrefillThroughput *float64      `json:"prefill_throughput"`
	DecodeThroughput  *float64      `json:"decode_throughput"`
	Timestamp         time.Time     `json:"timestamp"`
	Duration          time.Duration `json:"duration"`
	Status            Status        `json:"status"`
	ErrorDetail       string        `json:"error_detail,omitempty"`
}

// FormatSize renders a byte count the way the sweep logs show it (512KB, 16MB).
func FormatSize(n int) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB"} {
		if size < 1024 {
			return fmt.Sprintf("%.0f%s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1fGB", size)
}
