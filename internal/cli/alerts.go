// Package cli provides the command-line interface for the filings tracker.
package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// addAlertCommands adds alert inbox commands.
func addAlertCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Alert inbox",
		Long:  "Review and acknowledge alerts raised for newly observed filings.",
	}

	cmd.AddCommand(newAlertsListCmd(app))
	cmd.AddCommand(newAlertsReadCmd(app))
	cmd.AddCommand(newAlertsReadAllCmd(app))

	rootCmd.AddCommand(cmd)
}

func newAlertsListCmd(app *App) *cobra.Command {
	var (
		all   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unread alerts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			alerts, err := app.Store.ListAlerts(ctx, !all, limit)
			if err != nil {
				output.Error("Failed to list alerts: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				if all {
					output.Info("No alerts.")
				} else {
					output.Success("Inbox zero: no unread alerts.")
				}
				return nil
			}

			now := time.Now()
			table := NewTable(output, "ID", "Symbol", "Form", "Filing", "Raised", "")
			for _, a := range alerts {
				read := ""
				if a.Read {
					read = output.DimText("read")
				} else {
					read = output.Yellow("unread")
				}
				table.AddRow(
					strconv.FormatInt(a.ID, 10),
					output.BoldText(a.Symbol),
					output.FilingTag(string(a.Type)),
					TruncateString(a.Title, 44),
					FormatAge(a.CreatedAt, now),
					read,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include already-read alerts")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum alerts to show")
	return cmd
}

func newAlertsReadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read ID",
		Short: "Mark one alert as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			alertID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				output.Error("Invalid alert id %q", args[0])
				return err
			}
			if err := app.Store.MarkAlertRead(ctx, alertID); err != nil {
				output.Error("Failed to mark alert read: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"read": alertID})
			}
			output.Success("✓ Alert %d read", alertID)
			return nil
		},
	}
}

func newAlertsReadAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every alert as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, err := app.Store.MarkAllAlertsRead(ctx)
			if err != nil {
				output.Error("Failed to mark alerts read: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"read": n})
			}
			output.Success("✓ Marked %d alerts read", n)
			return nil
		},
	}
}
