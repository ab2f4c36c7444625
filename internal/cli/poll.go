// Package cli provides the command-line interface for the filings tracker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"edgar-tracker/internal/notify"
)

// addPollCommands adds polling and status commands.
func addPollCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRefreshCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [SYMBOL...]",
		Short: "Poll now, once",
		Long: `Run a single poll pass over the given symbols, or the whole watchlist
when none are given. Tickers held back by failure backoff are skipped
unless polling.manual_bypasses_backoff is set; the registry throttle
always applies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			sched := app.newScheduler()
			result, err := sched.RunOnce(ctx, args...)
			if err != nil {
				output.Error("Refresh failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(result)
			}

			if len(result.Polled) == 0 && len(result.Skipped) == 0 {
				output.Info("Nothing to poll; the watchlist is empty.")
				return nil
			}
			if result.NewFilings > 0 {
				output.Success("✓ %d new filings across %d tickers", result.NewFilings, len(result.Polled))
			} else {
				output.Info("No new filings (%d tickers polled)", len(result.Polled))
			}
			if len(result.Skipped) > 0 {
				output.Dim("Skipped (no CIK, backing off, or in flight): %s", strings.Join(result.Skipped, ", "))
			}
			if len(result.Failed) > 0 {
				output.Warning("Failed: %s", strings.Join(result.Failed, ", "))
				output.Dim("See 'edgar-tracker status' for per-ticker errors.")
			}
			return nil
		},
	}
}

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background poller",
		Long: `Run the poll scheduler in the foreground until interrupted. New filings
are announced on the terminal and through any configured notification
channels. Poll state persists, so a restart resumes where it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}

			// Announce on the terminal too while in the foreground.
			app.Notifier.AddChannel(notify.NewTerminalChannel())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sched := app.newScheduler()
			if err := sched.Start(ctx); err != nil {
				output.Error("Failed to start scheduler: %v", err)
				return err
			}

			output.Info("Polling every %s (%d workers). Ctrl-C to stop.",
				FormatDuration(app.Config.Polling.Interval), app.Config.Polling.MaxWorkers)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			output.Println()
			output.Info("Shutting down...")
			// Stop before cancelling the context: in-flight cycles get the
			// grace period to finish their current stage and persist their
			// poll state.
			sched.Stop()
			cancel()
			output.Success("✓ Stopped")
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-ticker poll status",
		Long: `Show the last outcome, failure count, and next eligible poll time for
every watched ticker, plus the unread alert count.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			sched := app.newScheduler()
			status, err := sched.Status(ctx)
			if err != nil {
				output.Error("Failed to read status: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(status)
			}
			if len(status.Tickers) == 0 {
				output.Info("No watched tickers.")
				return nil
			}

			now := time.Now()
			table := NewTable(output, "Symbol", "Last Outcome", "Failures", "Next Poll", "Error")
			for _, t := range status.Tickers {
				failures := ""
				if t.Failures > 0 {
					failures = output.Yellow(strconv.Itoa(t.Failures))
					if t.Degraded {
						failures = output.Red(strconv.Itoa(t.Failures) + " (degraded)")
					}
				}
				table.AddRow(
					output.BoldText(t.Symbol),
					output.OutcomeText(string(t.LastOutcome)),
					failures,
					FormatUntil(t.NextPoll, now),
					TruncateString(t.LastError, 40),
				)
			}
			table.Render()
			output.Println()
			if status.PendingAlerts > 0 {
				output.Warning("🔔 %d unread alerts ('edgar-tracker alerts list')", status.PendingAlerts)
			} else {
				output.Dim("No unread alerts.")
			}
			return nil
		},
	}
}
