// File: cmd/jobs/replay.go
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/imagerestore/controlplane/internal/usecase"
)

var (
	replayOperator string
	replayReason   string
	replayOverride int
	cleanupAfter   time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Inspect and requeue dead-lettered restoration jobs",
}

var replayListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Lists archived dead letters",
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

		entries, err := d.replay.List(ctx, statusLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()
		headerColor.Fprintln(w, "ID\tJOB\tOWNER\tKIND\tATTEMPTS\tFAILED AT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", e.ID, e.JobID, e.OwnerID, e.FailureKind, e.Attempts, e.FailedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var replayStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows a coarse dead-letter backlog summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		d, err := connectDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		stats, err := d.replay.StatsSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%+v\n", stats)
		return nil
	},
}

var replayOneCmd = &cobra.Command{
	Use:   "replay <dead-letter-id>",
	Short: "Requeues a single dead-lettered job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		d, err := connectDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		jobID, err := d.replay.Replay(ctx, args[0], usecase.ReplayOptions{
			Operator:            replayOperator,
			Reason:              replayReason,
			OverrideMaxAttempts: replayOverride,
		})
		if err != nil {
			return err
		}
		goodColor.Printf("requeued as job %s\n", jobID)
		return nil
	},
}

var replayAllCmd = &cobra.Command{
	Use:   "replay-all",
	Short: "Requeues every archived dead letter, best-effort",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		d, err := connectDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		replayed, failures := d.replay.ReplayAll(ctx, usecase.ReplayOptions{Operator: replayOperator, Reason: replayReason})
		goodColor.Printf("replayed %d\n", replayed)
		for id, ferr := range failures {
			badColor.Printf("  %s: %v\n", id, ferr)
		}
		return nil
	},
}

var replayUserCmd = &cobra.Command{
	Use:   "replay-user <owner-id>",
	Short: "Requeues every archived dead letter belonging to one owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		d, err := connectDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		replayed, failures := d.replay.ReplayUser(ctx, args[0], usecase.ReplayOptions{Operator: replayOperator, Reason: replayReason})
		goodColor.Printf("replayed %d\n", replayed)
		for id, ferr := range failures {
			badColor.Printf("  %s: %v\n", id, ferr)
		}
		return nil
	},
}

var replayCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purges dead letters older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		d, err := connectDeps(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		n, err := d.replay.Cleanup(ctx, cleanupAfter)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d dead letters older than %s\n", n, cleanupAfter)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.AddCommand(replayListCmd, replayStatsCmd, replayOneCmd, replayAllCmd, replayUserCmd, replayCleanupCmd)

	replayCmd.PersistentFlags().StringVar(&replayOperator, "operator", "", "operator identifier recorded on the replay audit trail")
	replayCmd.PersistentFlags().StringVar(&replayReason, "reason", "", "reason recorded on the replay audit trail")
	replayOneCmd.Flags().IntVar(&replayOverride, "override-max-attempts", 0, "override the replayed task's attempt budget (0 keeps the original)")
	replayListCmd.Flags().IntVar(&statusLimit, "limit", 50, "maximum number of entries to list")
	replayCleanupCmd.Flags().DurationVar(&cleanupAfter, "older-than", 30*24*time.Hour, "retention window; entries older than this are purged")
}
