package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/daryltucker/sweep-runner/internal/output"
)

type engineCounts struct {
	engine         string
	rows           int
	missingPrefill int
	missingDecode  int
}

var summaryCmd = &cobra.Command{
	Use:   "summary <table.csv>",
	Short: "Count rows and missing values in a result table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := output.ReadTable(args[0])
		if err != nil {
			return err
		}

		var counts []*engineCounts
		byEngine := make(map[string]*engineCounts)
		for _, r := range rows {
			c, ok := byEngine[r.Engine]
			if !ok {
				c = &engineCounts{engine: r.Engine}
				byEngine[r.Engine] = c
				counts = append(counts, c)
			}
			c.rows++
			if r.PrefillThroughput == nil {
				c.missingPrefill++
			}
			if r.DecodeThroughput == nil {
				c.missingDecode++
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d rows\n", args[0], len(rows))
		if len(rows) > 0 {
			fmt.Fprintf(out, "from %s to %s\n",
				rows[0].Timestamp.Format(output.TimestampLayout),
				rows[len(rows)-1].Timestamp.Format(output.TimestampLayout))
		}
		fmt.Fprintln(out)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ENGINE\tROWS\tNO PREFILL\tNO DECODE")
		for _, c := range counts {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", c.engine, c.rows, c.missingPrefill, c.missingDecode)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
