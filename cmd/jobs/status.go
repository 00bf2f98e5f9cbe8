// File: cmd/jobs/status.go
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

var statusLimit int

var queueStatusCmd = &cobra.Command{
	Use:     "queue-stats",
	Aliases: []string{"stats", "qs"},
	Short:   "Shows recent queue outcomes",
	Long: `Prints the most recently completed and failed tasks, giving an
operator a quick read on whether the worker fleet is healthy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		d, err := connectDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		headerColor.Fprintln(w, "--- Queue Status ---")

		completed, err := d.queue.RecentCompleted(ctx, statusLimit)
		if err != nil {
			return fmt.Errorf("recent completed: %w", err)
		}
		headerColor.Fprintf(w, "\n%s (%d)\n", "Recently completed", len(completed))
		for _, t := range completed {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", t.TaskID, t.JobID, goodColor.Sprint(t.Outcome), t.FinishedAt.Format(time.RFC3339))
		}

		failed, err := d.queue.RecentFailed(ctx, statusLimit)
		if err != nil {
			return fmt.Errorf("recent failed: %w", err)
		}
		headerColor.Fprintf(w, "\n%s (%d)\n", "Recently failed", len(failed))
		for _, t := range failed {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", t.TaskID, t.JobID, badColor.Sprint(t.Outcome), t.FinishedAt.Format(time.RFC3339))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueStatusCmd)
	queueStatusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of recent tasks to show per outcome")
}
