// Package cli provides the command-line interface for the filings tracker.
package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"edgar-tracker/internal/logging"
	"edgar-tracker/internal/models"
	"edgar-tracker/internal/source"
	"edgar-tracker/internal/store"
)

// addFilingCommands adds filing browsing commands.
func addFilingCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "filings",
		Short: "Browse stored filings",
		Long:  "List and inspect filings already observed for the watchlist.",
	}

	cmd.AddCommand(newFilingsListCmd(app))
	cmd.AddCommand(newFilingsShowCmd(app))
	cmd.AddCommand(newFilingsReadCmd(app))

	rootCmd.AddCommand(cmd)
}

func newFilingsListCmd(app *App) *cobra.Command {
	var (
		symbol     string
		formType   string
		sinceDays  int
		unreadOnly bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored filings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			filter := store.FilingFilter{
				Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
				Type:       models.FilingType(formType),
				UnreadOnly: unreadOnly,
				Limit:      limit,
			}
			if sinceDays > 0 {
				filter.Since = time.Now().AddDate(0, 0, -sinceDays)
			}

			filings, err := app.Store.ListFilings(ctx, filter)
			if err != nil {
				output.Error("Failed to list filings: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(filings)
			}
			if len(filings) == 0 {
				output.Info("No filings match.")
				return nil
			}

			table := NewTable(output, "ID", "Symbol", "Form", "Filed", "Title", "Read")
			for _, f := range filings {
				read := ""
				if f.Read {
					read = output.DimText("✓")
				}
				table.AddRow(
					strconv.FormatInt(f.ID, 10),
					output.BoldText(f.Symbol),
					output.FilingTag(string(f.Type)),
					FormatDate(f.FiledAt),
					TruncateString(f.Title, 52),
					read,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by ticker symbol")
	cmd.Flags().StringVar(&formType, "type", "", "filter by form type (10-K, 10-Q, 8-K, ...)")
	cmd.Flags().IntVar(&sinceDays, "days", 0, "only filings filed in the last N days")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread filings")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum filings to show")
	return cmd
}

func newFilingsShowCmd(app *App) *cobra.Command {
	var fetchText bool
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one filing in detail",
		Long: `Show a stored filing. With --text the primary document is fetched from
the registry (cached on disk) and a plain-text excerpt is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			rowID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				output.Error("Invalid filing id %q", args[0])
				return err
			}

			filing, err := app.Store.GetFiling(ctx, rowID)
			if err != nil {
				output.Error("Failed to load filing: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(filing)
			}

			output.Bold("%s %s", filing.Symbol, output.FilingTag(string(filing.Type)))
			output.Printf("  Accession: %s\n", filing.FilingID)
			output.Printf("  Filed:     %s\n", FormatDate(filing.FiledAt))
			output.Printf("  Title:     %s\n", filing.Title)
			output.Printf("  URL:       %s\n", filing.URL)
			output.Printf("  Source:    %s\n", filing.Source)
			if filing.Read {
				output.Dim("  Read")
			}

			if fetchText {
				logger := logging.WithFiling(app.Logger, filing.FilingID)
				logger.Debug().Msg("Fetching filing document")
				doc, err := app.Source.FetchDocument(ctx, *filing)
				if err != nil {
					output.Warning("Could not fetch document: %v", err)
					return nil
				}
				text := source.ExtractText(doc, 4000)
				if text == "" {
					output.Dim("  (no extractable text)")
					return nil
				}
				output.Println()
				output.Println(text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fetchText, "text", false, "fetch and print a text excerpt of the document")
	return cmd
}

func newFilingsReadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "read ID",
		Short: "Mark a filing as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			rowID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				output.Error("Invalid filing id %q", args[0])
				return err
			}
			if err := app.Store.MarkFilingRead(ctx, rowID); err != nil {
				output.Error("Failed to mark filing read: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"read": rowID})
			}
			output.Success("✓ Marked filing %d read", rowID)
			return nil
		},
	}
}
