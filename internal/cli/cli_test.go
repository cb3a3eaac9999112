package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/sweep-runner/internal/model"
	"github.com/daryltucker/sweep-runner/internal/output"
)

// execute runs the root command with args and returns stdout and stderr.
// Flag state is reset afterwards because the commands are package globals.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	prevLogger := output.Logger
	t.Cleanup(func() {
		output.SetLogger(prevLogger)
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestPlan(t *testing.T) {
	stdout, _, err := execute(t, "", "plan", "--value-sizes", "524288", "--threads", "2,4", "--benchmark", "bash ./bench dir/run.sh")
	require.NoError(t, err)

	assert.Contains(t, stdout, "2 trials, timeout 5m0s, cooldown 1s")
	assert.Contains(t, stdout, "mooncake/512KB/2 threads")
	assert.Contains(t, stdout, "bash ./bench dir/run.sh --engine=mooncake --value-size=524288 --num-ops=2000 --num-threads=4")
	assert.NotContains(t, stdout, "--num-threads=8")
}

func TestPlan_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engines: [redis, mooncake]\nvalue_sizes: [1024]\nthread_counts: [8]\nops: 10\n"), 0644))

	stdout, _, err := execute(t, "", "plan", "--config", path, "--engines", "redis")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 trials")
	assert.Contains(t, stdout, "--engine=redis --value-size=1024 --num-ops=10 --num-threads=8")
}

func TestPlan_InvalidOverride(t *testing.T) {
	_, _, err := execute(t, "", "plan", "--threads", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ThreadCounts[0]")
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, `./run.sh --engine=x 'a b' '' 'it'\''s'`, shellJoin([]string{"./run.sh", "--engine=x", "a b", "", "it's"}))
}

func TestParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trial.log")
	log := "Prefill Results\nThroughput: 1.5\nPrefill Results\nDecode Results\nThroughput: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(log), 0644))

	stdout, stderr, err := execute(t, "Decode Results\nThroughput: 9e3\n", "parse", path, "-")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)

	var got struct {
		File      string                        `json:"file"`
		Record    map[string]map[string]float64 `json:"record"`
		Anomalies int                           `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, path, got.File)
	assert.Equal(t, map[string]map[string]float64{
		"prefill": {"throughput": 1.5},
		"decode":  {"throughput": 2},
	}, got.Record)
	assert.Equal(t, 1, got.Anomalies)
	assert.Contains(t, stderr, "repeated_header")

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "-", got.File)
	assert.Equal(t, 9000.0, got.Record["decode"]["throughput"])
}

func TestParse_MissingFile(t *testing.T) {
	_, _, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	table, err := output.NewCSVTable(path)
	require.NoError(t, err)

	v := 1.0
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, o := range []model.TrialOutcome{
		{Config: model.TrialConfig{Engine: "redis", ValueSize: 1024, Threads: 2, Ops: 1}, PrefillThroughput: &v, DecodeThroughput: &v},
		{Config: model.TrialConfig{Engine: "redis", ValueSize: 1024, Threads: 4, Ops: 1}, PrefillThroughput: &v},
		{Config: model.TrialConfig{Engine: "mooncake", ValueSize: 1024, Threads: 2, Ops: 1}},
	} {
		o.Timestamp = ts.Add(time.Duration(i) * time.Minute)
		require.NoError(t, table.Append(o))
	}
	require.NoError(t, table.Close())

	stdout, _, err := execute(t, "", "summary", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "3 rows")
	assert.Contains(t, stdout, "from 2025-06-01T12:00:00.000000Z to 2025-06-01T12:02:00.000000Z")
	fields := func(line string) []string { return strings.Fields(line) }
	var table2 [][]string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "redis") || strings.HasPrefix(line, "mooncake") {
			table2 = append(table2, fields(line))
		}
	}
	assert.Equal(t, [][]string{{"redis", "2", "0", "1"}, {"mooncake", "1", "1", "1"}}, table2)
}

const helperEnv = "SWEEP_CLI_HELPER_BENCHMARK"

// TestHelperBenchmark is not a real test. It is the fake benchmark for TestRun.
func TestHelperBenchmark(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	var threads string
	for _, a := range os.Args {
		if v, ok := strings.CutPrefix(a, "--num-threads="); ok {
			threads = v
		}
	}
	if threads == "4" {
		fmt.Fprintln(os.Stderr, "out of memory")
		os.Exit(2)
	}
	fmt.Printf("Prefill Results\nThroughput: %s00\nDecode Results\nThroughput: %s0\n", threads, threads)
	os.Exit(0)
}

func TestRun(t *testing.T) {
	t.Setenv(helperEnv, "1")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.csv"), []byte("old\n"), 0644))

	stdout, stderr, err := execute(t, "", "run",
		"--benchmark", os.Args[0]+" -test.run=TestHelperBenchmark --",
		"--value-sizes", "1024",
		"--threads", "2,4",
		"--cooldown", "0s",
		"--timeout", "30s",
		"-o", dir,
		"--output-file", "results.csv",
	)
	require.NoError(t, err, stderr)

	assert.Regexp(t, `^sweep [0-9a-f-]{36}: 2 trials: 1 ok, 1 process errors, 0 timeouts`, stdout)
	assert.Contains(t, stderr, "Previous results moved")
	assert.Contains(t, stderr, "Writing journal")
	assert.Contains(t, stderr, "Trial failed")
	assert.Contains(t, stderr, "out of memory")

	rows, err := output.ReadTable(filepath.Join(dir, "results.csv"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 200.0, *rows[0].PrefillThroughput)
	assert.Equal(t, 20.0, *rows[0].DecodeThroughput)
	assert.Nil(t, rows[1].PrefillThroughput)

	old, err := os.ReadFile(filepath.Join(dir, "results.csv.1"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(old))
	assert.FileExists(t, filepath.Join(dir, "results.csv.jsonl"))
}

func TestRun_NoJournal(t *testing.T) {
	t.Setenv(helperEnv, "1")
	dir := t.TempDir()

	_, stderr, err := execute(t, "", "run",
		"--benchmark", os.Args[0]+" -test.run=TestHelperBenchmark --",
		"--value-sizes", "1024",
		"--threads", "1",
		"-o", dir,
		"--no-journal",
	)
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(dir, "benchmark_results.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "benchmark_results.csv.jsonl"))
}

func TestRun_BadLogLevel(t *testing.T) {
	_, _, err := execute(t, "", "--log-level", "chatty", "plan")
	assert.ErrorContains(t, err, "unknown log level")
}
