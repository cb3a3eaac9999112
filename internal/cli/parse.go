package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/daryltucker/sweep-runner/internal/parser"
)

// parseResult is what 'parse' prints for one log.
type parseResult struct {
	File      string        `json:"file"`
	Record    parser.Record `json:"record"`
	Anomalies int           `json:"anomalies"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <logfile>...",
	Short: "Extract throughput from captured benchmark logs",
	Long: `Runs the log parser over saved benchmark output and prints one JSON object per file.
Use "-" to read standard input. Suspicious structure (repeated headers, values outside
a section, overwritten values) is reported on stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, name := range args {
			data, err := readLog(cmd, name)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}

			rec, anomalies := parser.Inspect(string(data))
			for _, a := range anomalies {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", name, a)
			}
			if err := enc.Encode(parseResult{File: name, Record: rec, Anomalies: len(anomalies)}); err != nil {
				return err
			}
		}
		return nil
	},
}

func readLog(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
