/*
PURPOSE:
  Defines the 'plan' subcommand.
  Shows what 'run' would do without starting any benchmark.

REQUIREMENTS:
  User-specified:
  - List every trial of the sweep.

  Implementation-discovered:
  - Useful validation step before a multi-hour run: config errors and
    typos in axis values surface here.

ARCHITECTURE INTEGRATION:
  - Uses: internal/config (Load, Validate, Grid, Command)

ERROR HANDLING:
  - Returns the config or validation error.

IMPLEMENTATION RULES:
  - Simple output to stdout.
  - Accepts the same overrides as 'run'.

USAGE:
  sweep-runner plan --threads 2,4

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/cli/flags.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var planFlags sweepFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the sweep grid and benchmark command lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, &planFlags)
		if err != nil {
			return err
		}

		grid := cfg.Grid()
		command, baseArgs := cfg.Command()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%d trials, timeout %s, cooldown %s, results %s\n\n",
			len(grid), cfg.Timeout, cfg.Cooldown, cfg.ResultTablePath())

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tTRIAL\tCOMMAND")
		for i, tc := range grid {
			argv := append([]string{command}, baseArgs...)
			argv = append(argv, tc.Args()...)
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, tc, shellJoin(argv))
		}
		return tw.Flush()
	},
}

// shellJoin quotes arguments that a POSIX shell would split or expand.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

func init() {
	rootCmd.AddCommand(planCmd)
	planFlags.register(planCmd)
}
