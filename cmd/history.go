package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tflmake/internal/ledger"
	"github.com/agentic-research/tflmake/internal/pipeline"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded build runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := resolveEnv(os.Getenv)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(env)
		if err != nil {
			return err
		}

		path := pipeline.HistoryPath(cfg, env.Root)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No builds recorded.")
			return nil
		}

		l, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()

		runs, err := l.Runs(historyLimit)
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), runs)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func printRuns(w io.Writer, runs []ledger.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tTARGETS\tDURATION")
	for _, r := range runs {
		dur := "-"
		if !r.Finished.IsZero() {
			dur = r.Finished.Sub(r.Started).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Started.Format(time.DateTime), r.Status, len(r.Targets), dur)
		if r.Error != "" {
			_, _ = fmt.Fprintf(tw, "\t\terror: %s\t\t\n", r.Error)
		}
	}
	return tw.Flush()
}
